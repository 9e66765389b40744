package workflow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/akpande2/bom-buddy-factory-sub000/models"
	"github.com/akpande2/bom-buddy-factory-sub000/utils"
	"github.com/akpande2/bom-buddy-factory-sub000/workflow"
)

func TestAddToStockPrefillsOnce(t *testing.T) {
	var h workflow.Handoff
	grn := workflow.GoodsReceipt{
		GrnNumber: "GRN-2024-001",
		Warehouse: "WH-001",
		Items: []workflow.GoodsReceiptLine{
			{ItemCode: "MTR-001", Quantity: dec("50")},
			{ItemCode: "BRG-010", Quantity: dec("5")},
		},
	}
	if _, err := h.AddToStock(grn); err != nil {
		t.Fatalf("AddToStock: %v", err)
	}

	pending, ok := h.Pending()
	if !ok {
		t.Fatalf("expected the stock-in form to open")
	}
	if pending.ItemCode != "MTR-001" || pending.Warehouse != "WH-001" || !pending.Quantity.Equal(dec("50")) || pending.Reference != "GRN-2024-001" {
		t.Fatalf("unexpected draft %+v", pending)
	}

	if _, ok := h.Take(); !ok {
		t.Fatalf("Take expected the draft")
	}
	if _, ok := h.Take(); ok {
		t.Fatalf("draft must be consumed once")
	}
	if _, ok := h.Pending(); ok {
		t.Fatalf("draft must be cleared after Take")
	}

	if _, err := h.AddToStock(workflow.GoodsReceipt{GrnNumber: "GRN-2024-002"}); err == nil {
		t.Fatalf("receipt without lines expected an error")
	}
}

func TestGoodsReceiptFromForm(t *testing.T) {
	grn := workflow.GoodsReceiptFromForm(map[string]string{
		"grnNumber":        "GRN-2024-001",
		"poNumber":         "PO-2024-001",
		"warehouse":        "WH-001",
		"deliveryDate":     "2024-03-05",
		"itemCode":         "MTR-001",
		"quantityReceived": "50",
		"unitPrice":        "₹450",
	})
	if len(grn.Items) != 1 || !grn.Items[0].Quantity.Equal(dec("50")) || !grn.Items[0].UnitPrice.Equal(dec("450")) {
		t.Fatalf("unexpected lines %+v", grn.Items)
	}
	if grn.ReceivedAt.Day() != 5 || grn.PoNumber != "PO-2024-001" {
		t.Fatalf("unexpected receipt %+v", grn)
	}
	if empty := workflow.GoodsReceiptFromForm(map[string]string{"grnNumber": "X"}); len(empty.Items) != 0 {
		t.Fatalf("form without item code expected no lines, got %+v", empty.Items)
	}
}

func TestPostPending(t *testing.T) {
	ctx := context.Background()
	stores := memoryStores(t)
	item, err := stores.Items.Add(ctx, motor())
	if err != nil {
		t.Fatalf("Items.Add: %v", err)
	}

	var h workflow.Handoff
	if _, err := h.PostPending(ctx, stores.Ledger); !errors.Is(err, workflow.ErrNoPendingStockIn) {
		t.Fatalf("expected ErrNoPendingStockIn, got %v", err)
	}

	if _, err := h.AddToStock(workflow.GoodsReceipt{
		GrnNumber: "GRN-2024-001",
		Warehouse: "WH-001",
		Items:     []workflow.GoodsReceiptLine{{ItemCode: "NOPE-1", Quantity: dec("50")}},
	}); err != nil {
		t.Fatalf("AddToStock: %v", err)
	}
	if _, err := h.PostPending(ctx, stores.Ledger); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("unknown item expected ErrorRecordNotFound, got %v", err)
	}
	if _, ok := h.Pending(); !ok {
		t.Fatalf("failed posting must keep the draft")
	}

	if _, err := h.AddToStock(workflow.GoodsReceipt{
		GrnNumber: "GRN-2024-001",
		Warehouse: "WH-001",
		Items:     []workflow.GoodsReceiptLine{{ItemCode: "MTR-001", Quantity: dec("50")}},
	}); err != nil {
		t.Fatalf("AddToStock: %v", err)
	}
	tx, err := h.PostPending(ctx, stores.Ledger)
	if err != nil {
		t.Fatalf("PostPending: %v", err)
	}
	if tx.TransactionType != models.TransactionTypeGRN || tx.Reference != "GRN-2024-001" || !tx.Balance.Equal(dec("60")) {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	if got, _ := stores.Items.Get(item.Id); !got.CurrentStock.Equal(dec("60")) {
		t.Fatalf("currentStock expected 60, got %s", got.CurrentStock)
	}
}
