package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/akpande2/bom-buddy-factory-sub000/models"
	"github.com/akpande2/bom-buddy-factory-sub000/models/reports"
	"github.com/akpande2/bom-buddy-factory-sub000/procurement"
	"github.com/akpande2/bom-buddy-factory-sub000/utils"
	"github.com/akpande2/bom-buddy-factory-sub000/workflow"
	"github.com/shopspring/decimal"
)

// fieldValues collects repeated -set name=value flags.
type fieldValues map[string]string

func (f fieldValues) String() string { return fmt.Sprint(map[string]string(f)) }

func (f fieldValues) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("expected name=value, got %q", s)
	}
	f[strings.TrimSpace(name)] = value
	return nil
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

func parseDate(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", strings.TrimSpace(s))
}

func parseOptionalDecimal(s string) (*decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d, err := utils.ParseDecimal(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func runVendorQuickAdd(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("vendor-quick-add", flag.ContinueOnError)
	var in models.QuickAddVendor
	fs.StringVar(&in.Name, "name", "", "vendor name")
	fs.StringVar(&in.GstNumber, "gst", "", "GSTIN")
	fs.StringVar(&in.Email, "email", "", "email")
	fs.StringVar(&in.Phone, "phone", "", "10-digit phone")
	fs.StringVar(&in.ContactPerson, "contact", "", "contact person")
	if err := fs.Parse(args); err != nil {
		return err
	}
	v, err := a.stores.Vendors.QuickAdd(ctx, in)
	if err != nil {
		return err
	}
	fmt.Printf("vendor %s added (%s, rating %d, %s)\n", v.Id, v.Status, v.Rating, v.VendorType)
	return nil
}

func runVendors(_ context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("vendors", flag.ContinueOnError)
	query := fs.String("q", "", "search name, contact, GSTIN, email or category")
	active := fs.Bool("active", false, "active vendors only")
	top := fs.Int("top", 0, "show the n best rated vendors")
	dist := fs.Bool("distribution", false, "show the vendor type distribution")
	if err := fs.Parse(args); err != nil {
		return err
	}
	vendors := a.stores.Vendors.List()
	if *active {
		vendors = models.FilterActiveVendors(vendors)
	}
	vendors = reports.FilterBySubstring(vendors, *query, reports.VendorSearchFields...)

	w := newTable()
	defer w.Flush()
	switch {
	case *dist:
		fmt.Fprintln(w, "TYPE\tCOUNT\tPERCENT\tARC")
		for _, s := range reports.CategoryDistribution(vendors) {
			fmt.Fprintf(w, "%s\t%d\t%s%%\t%s-%s\n", s.VendorType, s.Count, s.Percentage, s.StartAngle, s.EndAngle)
		}
	case *top > 0:
		fmt.Fprintln(w, "NAME\tOVERALL\tTYPE")
		for _, r := range reports.TopRated(vendors, *top) {
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.Vendor.Name, r.Overall, r.Vendor.VendorType)
		}
	default:
		fmt.Fprintln(w, "ID\tNAME\tTYPE\tGSTIN\tSTATUS\tRATING")
		for _, v := range reports.SortBy(vendors, func(v models.Vendor) string { return strings.ToLower(v.Name) }, false) {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", v.Id, v.Name, v.VendorType, v.GstNumber, v.Status, reports.OverallRating(v))
		}
	}
	return nil
}

func runItemAdd(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("item-add", flag.ContinueOnError)
	var item models.InventoryItem
	fs.StringVar(&item.Sku, "sku", "", "item code")
	fs.StringVar(&item.ItemName, "name", "", "item name")
	fs.StringVar(&item.Category, "category", "", "category")
	itemType := fs.String("type", string(models.ItemTypeRawMaterial), "RawMaterial, FinishedGood, Consumable or Asset")
	fs.StringVar(&item.HsnSacCode, "hsn", "", "HSN/SAC code")
	fs.IntVar(&item.GstRate, "gst", 18, "GST rate (0, 5, 12, 18, 28)")
	fs.StringVar(&item.Uom, "uom", "Nos", "unit of measure")
	fs.StringVar(&item.Warehouse, "warehouse", "", "home warehouse code (holds the opening stock)")
	opening := fs.String("opening", "0", "opening stock")
	reorder := fs.String("reorder", "0", "reorder level")
	maxLevel := fs.String("max", "0", "max stock level")
	cost := fs.String("cost", "0", "standard cost")
	if err := fs.Parse(args); err != nil {
		return err
	}
	item.ItemType = models.ItemType(*itemType)
	item.Status = models.StatusActive
	for _, f := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"opening", *opening, &item.OpeningStock},
		{"reorder", *reorder, &item.ReorderLevel},
		{"max", *maxLevel, &item.MaxStockLevel},
		{"cost", *cost, &item.StandardCost},
	} {
		d, err := utils.ParseDecimal(f.raw)
		if err != nil {
			return fmt.Errorf("-%s: %w", f.name, err)
		}
		*f.dst = d
	}
	added, err := a.stores.Items.Add(ctx, item)
	if err != nil {
		return err
	}
	fmt.Printf("item %s added (%s, stock %s %s)\n", added.Id, added.Sku, added.CurrentStock, added.Uom)
	return nil
}

func runItems(_ context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("items", flag.ContinueOnError)
	query := fs.String("q", "", "search name, sku, category or HSN")
	reorder := fs.Bool("reorder", false, "only items below their reorder level")
	if err := fs.Parse(args); err != nil {
		return err
	}
	items := reports.FilterBySubstring(a.stores.Items.List(), *query, reports.ItemSearchFields...)
	if *reorder {
		items = reports.NeedsReorder(items)
	}
	w := newTable()
	defer w.Flush()
	fmt.Fprintln(w, "SKU\tNAME\tCATEGORY\tGST\tSTOCK\tREORDER\tWAREHOUSE")
	for _, i := range reports.SortBy(items, func(i models.InventoryItem) string { return i.Sku }, false) {
		flagged := ""
		if i.NeedsReorder() {
			flagged = " *"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d%%\t%s %s%s\t%s\t%s\n", i.Sku, i.ItemName, i.Category, i.GstRate, i.CurrentStock, i.Uom, flagged, i.ReorderLevel, i.Warehouse)
	}
	return nil
}

func runWarehouses(_ context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("warehouses", flag.ContinueOnError)
	query := fs.String("q", "", "search name, code, location or manager")
	if err := fs.Parse(args); err != nil {
		return err
	}
	w := newTable()
	defer w.Flush()
	fmt.Fprintln(w, "CODE\tNAME\tSTATUS\tOCCUPANCY\tBINS")
	for _, wh := range reports.FilterBySubstring(a.stores.Warehouses.List(), *query, reports.WarehouseSearchFields...) {
		o := reports.Occupancy(wh)
		fmt.Fprintf(w, "%s\t%s\t%s\t%d%% (%d/%d)\t%d\n", wh.Code, wh.Name, wh.Status, o.Percent, wh.Occupied, wh.Capacity, len(wh.Bins))
	}
	return nil
}

type postingFlags struct {
	item, warehouse, qty, cost, ref, date, remarks string
}

func bindPosting(fs *flag.FlagSet, withCost bool) *postingFlags {
	p := &postingFlags{}
	fs.StringVar(&p.item, "item", "", "item code (sku)")
	fs.StringVar(&p.warehouse, "warehouse", "", "warehouse code")
	fs.StringVar(&p.qty, "qty", "", "quantity")
	if withCost {
		fs.StringVar(&p.cost, "cost", "", "unit cost of the receipt (default: last purchase price, else standard cost)")
	}
	fs.StringVar(&p.ref, "ref", "", "reference (GRN number, issue slip, ...)")
	fs.StringVar(&p.date, "date", "", "posting date YYYY-MM-DD (default now)")
	fs.StringVar(&p.remarks, "remarks", "", "remarks")
	return p
}

func (p *postingFlags) post(ctx context.Context, a *app, typ models.TransactionType) error {
	qty, err := utils.ParseDecimal(p.qty)
	if err != nil {
		return fmt.Errorf("-qty: %w", err)
	}
	cost, err := parseOptionalDecimal(p.cost)
	if err != nil {
		return fmt.Errorf("-cost: %w", err)
	}
	date, err := parseDate(p.date)
	if err != nil {
		return fmt.Errorf("-date: %w", err)
	}
	tx, err := a.stores.Ledger.Record(ctx, &models.NewStockTransaction{
		Date:            date,
		ItemCode:        p.item,
		Warehouse:       p.warehouse,
		TransactionType: typ,
		Quantity:        qty,
		UnitCost:        cost,
		Reference:       p.ref,
		Remarks:         p.remarks,
	})
	if err != nil {
		return err
	}
	fmt.Printf("%s %s in %s: in %s out %s, balance %s\n", tx.TransactionType, tx.ItemCode, tx.Warehouse, tx.QuantityIn, tx.QuantityOut, tx.Balance)
	return nil
}

func runStockIn(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("stock-in", flag.ContinueOnError)
	p := bindPosting(fs, true)
	ret := fs.Bool("return", false, "post as a Return instead of a GRN")
	if err := fs.Parse(args); err != nil {
		return err
	}
	typ := models.TransactionTypeGRN
	if *ret {
		typ = models.TransactionTypeReturn
	}
	return p.post(ctx, a, typ)
}

func runStockOut(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("stock-out", flag.ContinueOnError)
	p := bindPosting(fs, false)
	if err := fs.Parse(args); err != nil {
		return err
	}
	return p.post(ctx, a, models.TransactionTypeIssue)
}

func runStockAdjust(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("stock-adjust", flag.ContinueOnError)
	p := bindPosting(fs, true)
	if err := fs.Parse(args); err != nil {
		return err
	}
	return p.post(ctx, a, models.TransactionTypeAdjustment)
}

func runBalances(_ context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("balances", flag.ContinueOnError)
	item := fs.String("item", "", "only this item code")
	if err := fs.Parse(args); err != nil {
		return err
	}
	w := newTable()
	defer w.Flush()
	fmt.Fprintln(w, "ITEM\tNAME\tWAREHOUSE\tBALANCE")
	for _, b := range reports.StockBalances(a.stores.Items.List(), a.stores.Ledger.List()) {
		if *item != "" && !strings.EqualFold(b.ItemCode, *item) {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s %s\n", b.ItemCode, b.ItemName, b.Warehouse, b.Balance, b.Uom)
	}
	return nil
}

func valuations(a *app, itemCode, method, asOf string) ([]*workflow.Valuation, error) {
	m, err := workflow.ParseValuationMethod(method)
	if err != nil {
		return nil, err
	}
	at, err := parseDate(asOf)
	if err != nil {
		return nil, fmt.Errorf("-as-of: %w", err)
	}
	if !at.IsZero() {
		at = at.Add(24*time.Hour - time.Nanosecond)
	}
	items := a.stores.Items.List()
	if itemCode != "" {
		item, ok := a.stores.Items.FindByCode(itemCode)
		if !ok {
			return nil, fmt.Errorf("item %s: %w", itemCode, utils.ErrorRecordNotFound)
		}
		items = []models.InventoryItem{item}
	}
	txs := a.stores.Ledger.List()
	out := make([]*workflow.Valuation, 0, len(items))
	for _, item := range items {
		v, err := workflow.Valuate(item, txs, m, at)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func runValuation(_ context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("valuation", flag.ContinueOnError)
	item := fs.String("item", "", "item code (default: every item)")
	method := fs.String("method", "FIFO", "FIFO or WeightedAverage")
	asOf := fs.String("as-of", "", "value as of the end of this day, YYYY-MM-DD (default now)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	vals, err := valuations(a, *item, *method, *asOf)
	if err != nil {
		return err
	}
	w := newTable()
	defer w.Flush()
	fmt.Fprintln(w, "ITEM\tRECEIVED\tAGE\tQTY\tUNIT COST\tVALUE")
	for _, v := range vals {
		for _, l := range v.Layers {
			fmt.Fprintf(w, "%s\t%s\t%dd\t%s\t%s\t%s\n", v.ItemCode, l.ReceivedAt.Format("2006-01-02"), l.AgeDays, l.Quantity, l.UnitCost, l.Value())
		}
		fmt.Fprintf(w, "%s\tTOTAL\t\t%s\t%s\t%s\n", v.ItemCode, v.TotalQuantity, v.UnitCost(), v.TotalValue)
	}
	return nil
}

func runDocGenerate(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("doc-generate", flag.ContinueOnError)
	docType := fs.String("type", "", "OPS, PR, LOI, PO or GRN")
	values := fieldValues{}
	fs.Var(values, "set", "field value as name=value (repeatable)")
	outDir := fs.String("out", ".", "directory the PDF is written to")
	addToStock := fs.Bool("add-to-stock", false, "GRN only: post the received quantity as a stock-in")
	fields := fs.Bool("fields", false, "print the form fields of -type and exit")
	signedURL := fs.Duration("signed-url", 0, "also print a signed download link valid this long (e.g. 15m); needs GCS_BUCKET")
	if err := fs.Parse(args); err != nil {
		return err
	}
	t, err := procurement.ParseDocumentType(*docType)
	if err != nil {
		return err
	}
	if *fields {
		schema, _ := procurement.SchemaFor(t)
		w := newTable()
		defer w.Flush()
		fmt.Fprintln(w, "FIELD\tLABEL\tKIND\tREQUIRED")
		for _, f := range schema.Fields {
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", f.Name, f.Label, f.Kind, f.Required)
		}
		return nil
	}

	draft, err := a.docs.NewDraft(t)
	if err != nil {
		return err
	}
	if err := draft.SetAll(values); err != nil {
		return err
	}
	doc, rec, err := a.docs.Submit(ctx, draft)
	if err != nil {
		return err
	}
	path := filepath.Join(*outDir, doc.DownloadName())
	if err := os.WriteFile(path, doc.Bytes, 0o644); err != nil {
		return err
	}
	fmt.Printf("%s written (%d pages)\n", path, doc.Pages)
	for _, line := range doc.Computed {
		fmt.Println("  " + line)
	}
	if a.archiver != nil {
		fmt.Println("archived at", a.archiver.AccessURL(rec))
	}
	if *signedURL > 0 {
		if a.archiver == nil {
			return fmt.Errorf("-signed-url: no archive bucket configured (GCS_BUCKET)")
		}
		link, err := a.archiver.DownloadURL(rec, *signedURL)
		if err != nil {
			return fmt.Errorf("-signed-url: %w", err)
		}
		fmt.Println("download", link)
	}

	if *addToStock && t == procurement.DocumentTypeGRN {
		var handoff workflow.Handoff
		if _, err := handoff.AddToStock(workflow.GoodsReceiptFromForm(rec.FormData)); err != nil {
			return err
		}
		tx, err := handoff.PostPending(ctx, a.stores.Ledger)
		if err != nil {
			return err
		}
		fmt.Printf("stock-in %s %s into %s, balance %s\n", tx.ItemCode, tx.QuantityIn, tx.Warehouse, tx.Balance)
	}
	return nil
}

func runExport(_ context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	what := fs.String("what", "vendors", "vendors, items, balances or valuation")
	out := fs.String("out", "", "output .xlsx file (default <what>.xlsx)")
	method := fs.String("method", "FIFO", "valuation method")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := *out
	if path == "" {
		path = *what + ".xlsx"
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch *what {
	case "vendors":
		err = reports.ExportVendors(f, a.stores.Vendors.List(), a.settings.PhoneRegion)
	case "items":
		err = reports.ExportItems(f, a.stores.Items.List())
	case "balances":
		err = reports.ExportStockBalances(f, reports.StockBalances(a.stores.Items.List(), a.stores.Ledger.List()))
	case "valuation":
		var vals []*workflow.Valuation
		vals, err = valuations(a, "", *method, "")
		if err == nil {
			var rows []reports.ValuationRow
			for _, v := range vals {
				rows = append(rows, v.Rows()...)
			}
			err = reports.ExportValuation(f, rows)
		}
	default:
		err = fmt.Errorf("unknown export %q", *what)
	}
	if err != nil {
		return err
	}
	fmt.Println(path, "written")
	return f.Close()
}
