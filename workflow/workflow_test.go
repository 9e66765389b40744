package workflow_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/akpande2/bom-buddy-factory-sub000/models"
	"github.com/akpande2/bom-buddy-factory-sub000/storage"
	"github.com/akpande2/bom-buddy-factory-sub000/utils"
	"github.com/akpande2/bom-buddy-factory-sub000/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func memoryStores(t *testing.T) *models.Stores {
	t.Helper()
	kv := storage.NewMemoryStore(0)
	t.Cleanup(func() { _ = kv.Close() })
	stores, err := models.NewStores(context.Background(), kv, models.StoreOptions{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("NewStores: %v", err)
	}
	t.Cleanup(stores.Close)
	return stores
}

func motor() models.InventoryItem {
	return models.InventoryItem{
		ItemName:      "Motor 2HP",
		Sku:           "MTR-001",
		Category:      "Motors",
		ItemType:      models.ItemTypeRawMaterial,
		HsnSacCode:    "8501",
		GstRate:       18,
		Uom:           "Nos",
		Warehouse:     "WH-001",
		OpeningStock:  dec("10"),
		ReorderLevel:  dec("20"),
		MaxStockLevel: dec("500"),
		StandardCost:  dec("400"),
		Status:        models.StatusActive,
	}
}

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func post(t *testing.T, stores *models.Stores, typ models.TransactionType, qty string, cost *decimal.Decimal, days int) {
	t.Helper()
	_, err := stores.Ledger.Record(context.Background(), &models.NewStockTransaction{
		Date:            day0.AddDate(0, 0, days),
		ItemCode:        "MTR-001",
		Warehouse:       "WH-001",
		TransactionType: typ,
		Quantity:        dec(qty),
		UnitCost:        cost,
	})
	if err != nil {
		t.Fatalf("Record(%s %s): %v", typ, qty, err)
	}
}

// opening 10 @400, +20 @500 on day 10, -15 on day 20, +5 @600 on day 30
func seededLedger(t *testing.T) (*models.Stores, models.InventoryItem) {
	t.Helper()
	stores := memoryStores(t)
	item := motor()
	item.CreatedAt = day0
	added, err := stores.Items.Add(context.Background(), item)
	if err != nil {
		t.Fatalf("Items.Add: %v", err)
	}
	post(t, stores, models.TransactionTypeGRN, "20", decPtr("500"), 10)
	post(t, stores, models.TransactionTypeIssue, "15", nil, 20)
	post(t, stores, models.TransactionTypeGRN, "5", decPtr("600"), 30)
	current, _ := stores.Items.Get(added.Id)
	return stores, current
}

func TestValuateFIFO(t *testing.T) {
	stores, item := seededLedger(t)
	asOf := day0.AddDate(0, 0, 40)

	v, err := workflow.Valuate(item, stores.Ledger.List(), workflow.ValuationFIFO, asOf)
	if err != nil {
		t.Fatalf("Valuate: %v", err)
	}
	want := []struct {
		qty, cost string
		age       int
	}{
		{"15", "500", 30},
		{"5", "600", 10},
	}
	if len(v.Layers) != len(want) {
		t.Fatalf("expected %d layers, got %+v", len(want), v.Layers)
	}
	for i, w := range want {
		l := v.Layers[i]
		if !l.Quantity.Equal(dec(w.qty)) || !l.UnitCost.Equal(dec(w.cost)) || l.AgeDays != w.age {
			t.Fatalf("layer %d expected %s@%s age %d, got %+v", i, w.qty, w.cost, w.age, l)
		}
	}
	if !v.TotalValue.Equal(dec("10500")) || !v.TotalQuantity.Equal(dec("20")) {
		t.Fatalf("expected 20 units worth 10500, got %s worth %s", v.TotalQuantity, v.TotalValue)
	}
	if !v.Reconciles(item.CurrentStock) {
		t.Fatalf("FIFO valuation does not reconcile with currentStock %s", item.CurrentStock)
	}
	if rows := v.Rows(); len(rows) != 2 || !rows[0].Value.Equal(dec("7500")) || rows[0].Method != "FIFO" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestValuateWeightedAverage(t *testing.T) {
	stores, item := seededLedger(t)

	v, err := workflow.Valuate(item, stores.Ledger.List(), workflow.ValuationWeightedAverage, day0.AddDate(0, 0, 40))
	if err != nil {
		t.Fatalf("Valuate: %v", err)
	}
	// (10*400 + 20*500) / 30 = 466.6667; 15 left, then +5 @600 -> (15*466.6667 + 3000) / 20 = 500.0000
	if len(v.Layers) != 1 {
		t.Fatalf("expected one blended layer, got %+v", v.Layers)
	}
	if !v.Layers[0].UnitCost.Equal(dec("500.0000")) {
		t.Fatalf("expected unit cost 500.0000, got %s", v.Layers[0].UnitCost)
	}
	if !v.Reconciles(item.CurrentStock) {
		t.Fatalf("weighted average does not reconcile: %+v vs %s", v, item.CurrentStock)
	}
}

func TestValuateAsOfAndFallbackCost(t *testing.T) {
	stores, item := seededLedger(t)

	v, err := workflow.Valuate(item, stores.Ledger.List(), workflow.ValuationFIFO, day0.AddDate(0, 0, 5))
	if err != nil {
		t.Fatalf("Valuate: %v", err)
	}
	if len(v.Layers) != 1 || !v.TotalValue.Equal(dec("4000")) {
		t.Fatalf("before any posting only opening stock expected, got %+v", v.Layers)
	}

	last := dec("450")
	item.LastPurchasePrice = &last
	txs := []models.StockTransaction{{
		Id: "r", Date: day0.AddDate(0, 0, 1), ItemCode: "MTR-001", Warehouse: "WH-001",
		TransactionType: models.TransactionTypeGRN, QuantityIn: dec("2"),
	}}
	v, err = workflow.Valuate(item, txs, workflow.ValuationFIFO, day0.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("Valuate: %v", err)
	}
	if !v.Layers[1].UnitCost.Equal(last) {
		t.Fatalf("receipt without unit cost expected lastPurchasePrice, got %s", v.Layers[1].UnitCost)
	}
}

func TestValuateRejectsOverdrawnHistory(t *testing.T) {
	item := motor()
	item.OpeningStock = decimal.Zero
	txs := []models.StockTransaction{{
		Id: "o", Date: day0, ItemCode: "MTR-001", Warehouse: "WH-001",
		TransactionType: models.TransactionTypeIssue, QuantityOut: dec("1"),
	}}
	for _, m := range []workflow.ValuationMethod{workflow.ValuationFIFO, workflow.ValuationWeightedAverage} {
		if _, err := workflow.Valuate(item, txs, m, day0.AddDate(0, 0, 1)); !errors.Is(err, utils.ErrInsufficientStock) {
			t.Fatalf("%s expected ErrInsufficientStock, got %v", m, err)
		}
	}
	if _, err := workflow.Valuate(item, nil, "LIFO", day0); err == nil {
		t.Fatalf("unknown method expected an error")
	}
}

func TestParseValuationMethod(t *testing.T) {
	tests := []struct {
		in   string
		want workflow.ValuationMethod
		ok   bool
	}{
		{"fifo", workflow.ValuationFIFO, true},
		{"", workflow.ValuationFIFO, true},
		{"WeightedAverage", workflow.ValuationWeightedAverage, true},
		{"wavg", workflow.ValuationWeightedAverage, true},
		{"lifo", "", false},
	}
	for _, tt := range tests {
		got, err := workflow.ParseValuationMethod(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Fatalf("ParseValuationMethod(%q) expected %s, got %s (%v)", tt.in, tt.want, got, err)
		}
	}
}

func TestRebuildRepairsDrift(t *testing.T) {
	ctx := context.Background()
	stores, item := seededLedger(t)

	if _, err := stores.Ledger.Rewrite(ctx, func(txs []models.StockTransaction) ([]models.StockTransaction, error) {
		for i := range txs {
			txs[i].Balance = decimal.Zero
		}
		return txs, nil
	}); err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if _, _, err := stores.Items.Update(ctx, item.Id, map[string]any{"currentStock": 999}); err != nil {
		t.Fatalf("Items.Update: %v", err)
	}

	dry, err := workflow.Rebuild(ctx, stores, workflow.RebuildOptions{DryRun: true, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("Rebuild dry run: %v", err)
	}
	if dry.BalancesChanged != 3 || dry.ItemsUpdated != 1 {
		t.Fatalf("dry run expected 3 balances and 1 item, got %+v", dry)
	}
	if got, _ := stores.Items.Get(item.Id); !got.CurrentStock.Equal(dec("999")) {
		t.Fatalf("dry run must not write, currentStock is %s", got.CurrentStock)
	}

	report, err := workflow.Rebuild(ctx, stores, workflow.RebuildOptions{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if report.Partitions != 1 || len(report.NegativeBalances) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if got, _ := stores.Items.Get(item.Id); !got.CurrentStock.Equal(dec("20")) {
		t.Fatalf("currentStock expected 20, got %s", got.CurrentStock)
	}
	if b := stores.Ledger.Balance("MTR-001", "WH-001"); !b.Equal(dec("20")) {
		t.Fatalf("balance expected 20, got %s", b)
	}

	again, err := workflow.Rebuild(ctx, stores, workflow.RebuildOptions{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if again.BalancesChanged != 0 || again.ItemsUpdated != 0 {
		t.Fatalf("second rebuild expected no changes, got %+v", again)
	}
}

func TestRebuildReportsNegativeHistory(t *testing.T) {
	ctx := context.Background()
	stores, _ := seededLedger(t)
	if _, err := stores.Ledger.Rewrite(ctx, func(txs []models.StockTransaction) ([]models.StockTransaction, error) {
		return append(txs, models.StockTransaction{
			Id: "imported", Date: day0.AddDate(0, 0, 1), ItemCode: "MTR-001", ItemName: "Motor 2HP",
			TransactionType: models.TransactionTypeIssue, QuantityOut: dec("50"), Warehouse: "WH-001",
		}), nil
	}); err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	report, err := workflow.Rebuild(ctx, stores, workflow.RebuildOptions{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if len(report.NegativeBalances) != 1 || report.NegativeBalances[0].ItemCode != "MTR-001" {
		t.Fatalf("expected MTR-001 reported negative, got %+v", report.NegativeBalances)
	}
}
