package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/akpande2/bom-buddy-factory-sub000/utils"
	"github.com/shopspring/decimal"
)

// legal GST rates, in percent
var GSTRates = []int{0, 5, 12, 18, 28}

type InventoryItem struct {
	Id                string           `json:"id" validate:"required"`
	ItemName          string           `json:"itemName" validate:"required,max=200"`
	Sku               string           `json:"sku" validate:"required,max=64"`
	Category          string           `json:"category"`
	ItemType          ItemType         `json:"itemType" validate:"required,oneof=RawMaterial FinishedGood Consumable Asset"`
	HsnSacCode        string           `json:"hsnSacCode" validate:"omitempty,numeric,min=4,max=8"`
	GstRate           int              `json:"gstRate" validate:"oneof=0 5 12 18 28"`
	Uom               string           `json:"uom" validate:"required"`
	Warehouse         string           `json:"warehouse,omitempty"`
	OpeningStock      decimal.Decimal  `json:"openingStock"`
	CurrentStock      decimal.Decimal  `json:"currentStock"`
	ReorderLevel      decimal.Decimal  `json:"reorderLevel"`
	MaxStockLevel     decimal.Decimal  `json:"maxStockLevel"`
	StandardCost      decimal.Decimal  `json:"standardCost"`
	LastPurchasePrice *decimal.Decimal `json:"lastPurchasePrice,omitempty"`
	Status            Status           `json:"status" validate:"required,oneof=Active Inactive"`
	CreatedAt         time.Time        `json:"createdAt"`
}

func (i InventoryItem) GetId() string { return i.Id }

func (i InventoryItem) WithId(id string) InventoryItem {
	i.Id = id
	return i
}

func (i InventoryItem) Normalized() InventoryItem {
	i.Id = strings.TrimSpace(i.Id)
	i.ItemName = strings.TrimSpace(i.ItemName)
	i.Sku = strings.TrimSpace(i.Sku)
	i.Category = strings.TrimSpace(i.Category)
	i.HsnSacCode = strings.TrimSpace(i.HsnSacCode)
	i.Uom = strings.TrimSpace(i.Uom)
	i.Warehouse = strings.TrimSpace(i.Warehouse)
	if i.Status == "" {
		i.Status = StatusActive
	}
	return i
}

func (i InventoryItem) Validate() error {
	ve := &utils.ValidationError{Fields: map[string]string{}}
	if err := utils.ValidateStruct(i); err != nil {
		fe, ok := err.(*utils.ValidationError)
		if !ok {
			return err
		}
		ve = fe
	}
	// decimals are not reachable through struct tags
	nonNegative := map[string]decimal.Decimal{
		"openingStock":  i.OpeningStock,
		"reorderLevel":  i.ReorderLevel,
		"maxStockLevel": i.MaxStockLevel,
		"standardCost":  i.StandardCost,
	}
	for field, value := range nonNegative {
		if value.IsNegative() {
			ve.Fields[field] = "must not be negative"
		}
	}
	if i.LastPurchasePrice != nil && i.LastPurchasePrice.IsNegative() {
		ve.Fields["lastPurchasePrice"] = "must not be negative"
	}
	if i.MaxStockLevel.IsPositive() && i.ReorderLevel.GreaterThan(i.MaxStockLevel) {
		ve.Fields["reorderLevel"] = "must not exceed maxStockLevel"
	}
	if len(ve.Fields) > 0 {
		return ve
	}
	return nil
}

// NeedsReorder is currentStock < reorderLevel.
func (i InventoryItem) NeedsReorder() bool {
	return i.CurrentStock.LessThan(i.ReorderLevel)
}

// ReceiptCost is the unit cost used for a receipt that carries none: last purchase price, else standard cost.
func (i InventoryItem) ReceiptCost() decimal.Decimal {
	if i.LastPurchasePrice != nil {
		return *i.LastPurchasePrice
	}
	return i.StandardCost
}

// StartingBalance is the balance a (item, warehouse) partition starts from.
// Only the item's home warehouse carries the opening stock.
func (i InventoryItem) StartingBalance(warehouse string) decimal.Decimal {
	if i.Warehouse != "" && strings.EqualFold(i.Warehouse, warehouse) {
		return i.OpeningStock
	}
	return decimal.Zero
}

// ItemStore is the inventory item collection.
type ItemStore struct {
	*Collection[InventoryItem]
	ledger *Ledger
}

func prepareItem(i InventoryItem) InventoryItem {
	// a new item has no ledger history yet
	i.CurrentStock = i.OpeningStock
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC()
	}
	return i
}

// strictStockGuard refuses direct currentStock edits; the ledger owns that field.
func strictStockGuard(patch map[string]any) error {
	if _, ok := patch["currentStock"]; ok {
		return fmt.Errorf("currentStock is maintained by the stock ledger: %w", utils.ErrImmutableField)
	}
	return nil
}

// Update patches an item. sku and warehouse are frozen once the item has ledger postings, and an
// openingStock change is carried through the ledger so currentStock and the home partition follow it.
func (s *ItemStore) Update(ctx context.Context, id string, patch map[string]any) (InventoryItem, bool, error) {
	current, ok := s.Get(id)
	if !ok || s.ledger == nil {
		return s.Collection.Update(ctx, id, patch)
	}
	if err := s.ledger.guardItemPatch(current, patch); err != nil {
		return InventoryItem{}, true, err
	}
	if _, ok := patch["openingStock"]; !ok {
		return s.Collection.Update(ctx, id, patch)
	}
	return s.ledger.reopen(ctx, current, patch)
}

// FindByCode resolves a ledger item code: the sku first, then the id.
func (s *ItemStore) FindByCode(code string) (InventoryItem, bool) {
	code = strings.TrimSpace(code)
	if item, ok := s.Find(func(i InventoryItem) bool { return strings.EqualFold(i.Sku, code) }); ok {
		return item, true
	}
	return s.Get(code)
}
