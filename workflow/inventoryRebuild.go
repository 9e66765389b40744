package workflow

import (
	"context"
	"strings"

	"github.com/akpande2/bom-buddy-factory-sub000/config"
	"github.com/akpande2/bom-buddy-factory-sub000/models"
	"github.com/sirupsen/logrus"
)

type RebuildOptions struct {
	DryRun bool
	Logger *logrus.Logger
}

type RebuildReport struct {
	Partitions       int                   `json:"partitions"`
	BalancesChanged  int                   `json:"balancesChanged"`
	NegativeBalances []models.PartitionKey `json:"negativeBalances"`
	ItemsUpdated     int                   `json:"itemsUpdated"`
}

// Rebuild recomputes every partition's running balances from the ledger and resets each item's
// currentStock to openingStock plus its net movement. Negative histories are reported, not refused.
func Rebuild(ctx context.Context, stores *models.Stores, opts RebuildOptions) (*RebuildReport, error) {
	logger := opts.Logger
	if logger == nil {
		logger = config.GetLogger()
	}
	items := stores.Items.List()
	bySku := make(map[string]models.InventoryItem, len(items))
	for _, i := range items {
		bySku[strings.ToUpper(i.Sku)] = i
	}

	report := &RebuildReport{}
	rebalance := func(txs []models.StockTransaction) []models.StockTransaction {
		before := make([]string, len(txs))
		for i, t := range txs {
			before[i] = t.Balance.String()
		}
		for _, p := range models.Partitions(txs) {
			report.Partitions++
			start := bySku[strings.ToUpper(p.ItemCode)].StartingBalance(p.Warehouse)
			_ = models.Rebalance(txs, p.ItemCode, p.Warehouse, start, true)
			for _, t := range txs {
				if t.InPartition(p.ItemCode, p.Warehouse) && t.Balance.IsNegative() {
					report.NegativeBalances = append(report.NegativeBalances, p)
					break
				}
			}
		}
		for i, t := range txs {
			if t.Balance.String() != before[i] {
				report.BalancesChanged++
			}
		}
		return txs
	}

	var txs []models.StockTransaction
	if opts.DryRun {
		txs = rebalance(stores.Ledger.List())
	} else {
		var err error
		txs, err = stores.Ledger.Rewrite(ctx, func(txs []models.StockTransaction) ([]models.StockTransaction, error) {
			return rebalance(txs), nil
		})
		if err != nil {
			config.LogError(logger, "workflow", "Rebuild", "rewrite ledger", nil, err)
			return nil, err
		}
	}

	for _, item := range items {
		want := item.OpeningStock.Add(models.NetQuantity(txs, item.Sku))
		if item.CurrentStock.Equal(want) {
			continue
		}
		report.ItemsUpdated++
		if opts.DryRun {
			continue
		}
		if _, _, err := stores.Items.UpdateWith(ctx, item.Id, func(i models.InventoryItem) (models.InventoryItem, error) {
			i.CurrentStock = i.OpeningStock.Add(models.NetQuantity(txs, i.Sku))
			return i, nil
		}); err != nil {
			config.LogError(logger, "workflow", "Rebuild", item.Sku, nil, err)
			return report, err
		}
	}

	logger.WithFields(logrus.Fields{
		"dry_run":          opts.DryRun,
		"partitions":       report.Partitions,
		"balances_changed": report.BalancesChanged,
		"negative":         len(report.NegativeBalances),
		"items_updated":    report.ItemsUpdated,
	}).Info("stock rebuild finished")
	return report, nil
}
