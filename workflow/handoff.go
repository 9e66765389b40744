package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/akpande2/bom-buddy-factory-sub000/models"
	"github.com/akpande2/bom-buddy-factory-sub000/utils"
	"github.com/shopspring/decimal"
)

var ErrNoPendingStockIn = errors.New("no pending stock-in")

type GoodsReceiptLine struct {
	ItemCode  string           `json:"itemCode"`
	Quantity  decimal.Decimal  `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unitPrice,omitempty"`
}

// GoodsReceipt is the part of a generated GRN the stock screen needs.
type GoodsReceipt struct {
	GrnNumber  string             `json:"grnNumber"`
	PoNumber   string             `json:"poNumber"`
	Warehouse  string             `json:"warehouse"`
	ReceivedAt time.Time          `json:"receivedAt"`
	Items      []GoodsReceiptLine `json:"items"`
}

// GoodsReceiptFromForm reads a GRN form. Empty or unparsable numbers are left zero.
func GoodsReceiptFromForm(form map[string]string) GoodsReceipt {
	grn := GoodsReceipt{
		GrnNumber: strings.TrimSpace(form["grnNumber"]),
		PoNumber:  strings.TrimSpace(form["poNumber"]),
		Warehouse: strings.TrimSpace(form["warehouse"]),
	}
	if at, err := time.Parse("2006-01-02", strings.TrimSpace(form["deliveryDate"])); err == nil {
		grn.ReceivedAt = at
	}
	line := GoodsReceiptLine{ItemCode: strings.TrimSpace(form["itemCode"])}
	line.Quantity, _ = utils.ParseDecimal(form["quantityReceived"])
	if price, err := utils.ParseDecimal(form["unitPrice"]); err == nil && !price.IsZero() {
		line.UnitPrice = &price
	}
	if line.ItemCode != "" {
		grn.Items = append(grn.Items, line)
	}
	return grn
}

// StockInDraft prefills the stock-in form.
type StockInDraft struct {
	ItemCode  string           `json:"itemCode"`
	Warehouse string           `json:"warehouse"`
	Quantity  decimal.Decimal  `json:"quantity"`
	UnitCost  *decimal.Decimal `json:"unitCost,omitempty"`
	Reference string           `json:"reference"`
	Date      time.Time        `json:"date"`
}

func (d StockInDraft) Transaction() *models.NewStockTransaction {
	return &models.NewStockTransaction{
		Date:            d.Date,
		ItemCode:        d.ItemCode,
		Warehouse:       d.Warehouse,
		TransactionType: models.TransactionTypeGRN,
		Quantity:        d.Quantity,
		UnitCost:        d.UnitCost,
		Reference:       d.Reference,
	}
}

// Handoff carries one pending stock-in from a goods receipt to the stock screen.
// A new receipt replaces whatever was pending.
type Handoff struct {
	mu    sync.Mutex
	draft *StockInDraft
}

// AddToStock stages the receipt's first line. Later lines are ignored.
func (h *Handoff) AddToStock(grn GoodsReceipt) (StockInDraft, error) {
	if len(grn.Items) == 0 {
		return StockInDraft{}, utils.NewValidationError("items", "goods receipt has no lines")
	}
	line := grn.Items[0]
	d := StockInDraft{
		ItemCode:  line.ItemCode,
		Warehouse: grn.Warehouse,
		Quantity:  line.Quantity,
		UnitCost:  line.UnitPrice,
		Reference: grn.GrnNumber,
		Date:      grn.ReceivedAt,
	}
	h.mu.Lock()
	h.draft = &d
	h.mu.Unlock()
	return d, nil
}

// Pending reports the staged draft without consuming it. The stock screen opens its form when ok.
func (h *Handoff) Pending() (d StockInDraft, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draft == nil {
		return StockInDraft{}, false
	}
	return *h.draft, true
}

// Take consumes the staged draft.
func (h *Handoff) Take() (d StockInDraft, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draft == nil {
		return StockInDraft{}, false
	}
	d = *h.draft
	h.draft = nil
	return d, true
}

// PostPending takes the staged draft and records it as a GRN movement. A failed posting
// puts the draft back.
func (h *Handoff) PostPending(ctx context.Context, ledger *models.Ledger) (models.StockTransaction, error) {
	d, ok := h.Take()
	if !ok {
		return models.StockTransaction{}, ErrNoPendingStockIn
	}
	tx, err := ledger.Record(ctx, d.Transaction())
	if err != nil {
		h.mu.Lock()
		if h.draft == nil {
			h.draft = &d
		}
		h.mu.Unlock()
		return models.StockTransaction{}, err
	}
	return tx, nil
}
