package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/akpande2/bom-buddy-factory-sub000/utils"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"vendor-quick-add", "add a vendor from the quick-add form", runVendorQuickAdd},
	{"vendors", "list vendors (search, active only, top rated, distribution)", runVendors},
	{"item-add", "add an inventory item", runItemAdd},
	{"items", "list inventory items", runItems},
	{"warehouses", "list warehouses with occupancy", runWarehouses},
	{"stock-in", "post a GRN or Return", runStockIn},
	{"stock-out", "post an Issue", runStockOut},
	{"stock-adjust", "post a signed Adjustment", runStockAdjust},
	{"balances", "list stock balances per item and warehouse", runBalances},
	{"valuation", "value an item's stock (FIFO or weighted average)", runValuation},
	{"doc-generate", "generate a procurement document (OPS, PR, LOI, PO, GRN)", runDocGenerate},
	{"export", "export vendors, items, balances or valuation to xlsx", runExport},
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: mrpctl <command> [flags]")
	fmt.Fprintln(os.Stderr)
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-18s %s\n", c.name, c.usage)
	}
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	name := os.Args[1]
	var cmd *command
	for i := range commands {
		if commands[i].name == name {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		usage()
		os.Exit(2)
	}

	ctx := utils.SetUserNameInContext(context.Background(), currentUser())
	ctx = utils.SetCorrelationIdInContext(ctx, utils.CorrelationIdFromContextOrNew(ctx))

	a, err := openApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	err = cmd.run(ctx, a, os.Args[2:])
	a.close()
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, describe(err))
		os.Exit(1)
	}
}

func currentUser() string {
	if u := strings.TrimSpace(os.Getenv("MRP_USER")); u != "" {
		return u
	}
	return strings.TrimSpace(os.Getenv("USER"))
}

// describe spells out field errors one per line.
func describe(err error) string {
	var ve *utils.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	fields := make([]string, 0, len(ve.Fields))
	for f := range ve.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	var b strings.Builder
	b.WriteString("validation failed")
	for _, f := range fields {
		fmt.Fprintf(&b, "\n  %s: %s", f, ve.Fields[f])
	}
	return b.String()
}
