package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/akpande2/bom-buddy-factory-sub000/config"
	"github.com/akpande2/bom-buddy-factory-sub000/models"
	"github.com/akpande2/bom-buddy-factory-sub000/storage"
	"github.com/akpande2/bom-buddy-factory-sub000/workflow"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Report what would change without writing")
	failOnNegative := flag.Bool("fail-on-negative", false, "Exit non-zero when any partition goes negative")
	flag.Parse()

	ctx := context.Background()
	settings := config.Load()
	logger := config.GetLogger()

	kv, err := storage.Open(ctx, settings, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer kv.Close()

	stores, err := models.NewStores(ctx, kv, models.StoreOptions{
		Logger:            logger,
		UploadMaxBytes:    settings.UploadMaxBytes,
		StrictLedgerStock: config.StrictLedgerStock(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "load stores: %v\n", err)
		os.Exit(1)
	}
	defer stores.Close()

	report, err := workflow.Rebuild(ctx, stores, workflow.RebuildOptions{DryRun: *dryRun, Logger: logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("partitions=%d balances_changed=%d items_updated=%d dry_run=%t\n",
		report.Partitions, report.BalancesChanged, report.ItemsUpdated, *dryRun)
	for _, p := range report.NegativeBalances {
		fmt.Printf("negative balance: item=%s warehouse=%s\n", p.ItemCode, p.Warehouse)
	}
	if *failOnNegative && len(report.NegativeBalances) > 0 {
		os.Exit(3)
	}
	fmt.Println("stock rebuild complete")
}
