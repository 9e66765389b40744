package models

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/akpande2/bom-buddy-factory-sub000/config"
	"github.com/akpande2/bom-buddy-factory-sub000/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type StockTransaction struct {
	Id              string           `json:"id" validate:"required"`
	Date            time.Time        `json:"date" validate:"required"`
	ItemCode        string           `json:"itemCode" validate:"required"`
	ItemName        string           `json:"itemName"`
	TransactionType TransactionType  `json:"transactionType" validate:"required,oneof=GRN Issue Return Adjustment"`
	QuantityIn      decimal.Decimal  `json:"quantityIn"`
	QuantityOut     decimal.Decimal  `json:"quantityOut"`
	Warehouse       string           `json:"warehouse" validate:"required"`
	Balance         decimal.Decimal  `json:"balance"`
	UnitCost        *decimal.Decimal `json:"unitCost,omitempty"`
	Reference       string           `json:"reference,omitempty"`
	Remarks         string           `json:"remarks"`
}

func (t StockTransaction) GetId() string { return t.Id }

func (t StockTransaction) WithId(id string) StockTransaction {
	t.Id = id
	return t
}

func (t StockTransaction) Normalized() StockTransaction {
	t.ItemCode = strings.TrimSpace(t.ItemCode)
	t.Warehouse = strings.TrimSpace(t.Warehouse)
	t.Reference = strings.TrimSpace(t.Reference)
	t.Remarks = strings.TrimSpace(t.Remarks)
	return t
}

func (t StockTransaction) Validate() error {
	if err := utils.ValidateStruct(t); err != nil {
		return err
	}
	if t.QuantityIn.IsNegative() || t.QuantityOut.IsNegative() {
		return utils.NewValidationError("quantity", "quantities must not be negative")
	}
	if t.QuantityIn.IsZero() == t.QuantityOut.IsZero() {
		return utils.NewValidationError("quantity", "exactly one of quantityIn and quantityOut must be non-zero")
	}
	if t.UnitCost != nil && t.UnitCost.IsNegative() {
		return utils.NewValidationError("unitCost", "must not be negative")
	}
	return nil
}

// SignedQuantity is quantityIn - quantityOut.
func (t StockTransaction) SignedQuantity() decimal.Decimal {
	return t.QuantityIn.Sub(t.QuantityOut)
}

func (t StockTransaction) InPartition(itemCode, warehouse string) bool {
	return strings.EqualFold(t.ItemCode, itemCode) && strings.EqualFold(t.Warehouse, warehouse)
}

// NewStockTransaction is a posting request. Quantity is positive for GRN, Return and Issue;
// an Adjustment carries its sign (negative removes stock) and must not be zero.
type NewStockTransaction struct {
	Date            time.Time        `json:"date"`
	ItemCode        string           `json:"itemCode" validate:"required"`
	Warehouse       string           `json:"warehouse" validate:"required"`
	TransactionType TransactionType  `json:"transactionType" validate:"required,oneof=GRN Issue Return Adjustment"`
	Quantity        decimal.Decimal  `json:"quantity"`
	UnitCost        *decimal.Decimal `json:"unitCost,omitempty"`
	Reference       string           `json:"reference"`
	Remarks         string           `json:"remarks"`
}

func (input *NewStockTransaction) validate() error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.TransactionType == TransactionTypeAdjustment {
		if input.Quantity.IsZero() {
			return utils.NewValidationError("quantity", "adjustment quantity must be non-zero")
		}
	} else if !input.Quantity.IsPositive() {
		return utils.NewValidationError("quantity", "quantity must be greater than zero")
	}
	if input.UnitCost != nil && input.UnitCost.IsNegative() {
		return utils.NewValidationError("unitCost", "must not be negative")
	}
	return nil
}

func (input *NewStockTransaction) quantities() (in, out decimal.Decimal) {
	switch input.TransactionType {
	case TransactionTypeIssue:
		return decimal.Zero, input.Quantity
	case TransactionTypeAdjustment:
		if input.Quantity.IsNegative() {
			return decimal.Zero, input.Quantity.Neg()
		}
		return input.Quantity, decimal.Zero
	default:
		return input.Quantity, decimal.Zero
	}
}

// InsufficientStockError is an outflow the partition cannot cover. It unwraps to ErrInsufficientStock.
type InsufficientStockError struct {
	ItemCode  string
	Warehouse string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s in %s: available %s, requested %s",
		e.ItemCode, e.Warehouse, e.Available.String(), e.Requested.String())
}

func (e *InsufficientStockError) Unwrap() error { return utils.ErrInsufficientStock }

// partitionOrder returns the indexes of the partition's transactions by date; equal dates keep insertion order.
func partitionOrder(txs []StockTransaction, itemCode, warehouse string) []int {
	var idx []int
	for i, t := range txs {
		if t.InPartition(itemCode, warehouse) {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return txs[idx[a]].Date.Before(txs[idx[b]].Date)
	})
	return idx
}

// Rebalance recomputes, in place, the running balances of one (item, warehouse) partition from start.
// Unless allowNegative, a balance going below zero stops it with *InsufficientStockError.
func Rebalance(txs []StockTransaction, itemCode, warehouse string, start decimal.Decimal, allowNegative bool) error {
	running := start
	for _, i := range partitionOrder(txs, itemCode, warehouse) {
		next := running.Add(txs[i].SignedQuantity())
		if next.IsNegative() && !allowNegative {
			return &InsufficientStockError{
				ItemCode:  itemCode,
				Warehouse: warehouse,
				Available: running,
				Requested: txs[i].QuantityOut,
			}
		}
		txs[i].Balance = next
		running = next
	}
	return nil
}

// NetQuantity is Σ quantityIn − Σ quantityOut of one item over every warehouse.
func NetQuantity(txs []StockTransaction, itemCode string) decimal.Decimal {
	net := decimal.Zero
	for _, t := range txs {
		if strings.EqualFold(t.ItemCode, itemCode) {
			net = net.Add(t.SignedQuantity())
		}
	}
	return net
}

// PartitionKey names one running balance.
type PartitionKey struct {
	ItemCode  string
	Warehouse string
}

// Partitions lists the distinct (item, warehouse) pairs in first-seen order.
func Partitions(txs []StockTransaction) []PartitionKey {
	seen := make(map[string]bool)
	var keys []PartitionKey
	for _, t := range txs {
		k := strings.ToUpper(t.ItemCode) + "\x00" + strings.ToUpper(t.Warehouse)
		if !seen[k] {
			seen[k] = true
			keys = append(keys, PartitionKey{ItemCode: t.ItemCode, Warehouse: t.Warehouse})
		}
	}
	return keys
}

// Ledger is the authoritative stock-transaction log. Posting through it keeps each item's
// currentStock equal to openingStock plus the item's net movement.
type Ledger struct {
	*Collection[StockTransaction]
	items  *ItemStore
	logger *logrus.Logger
}

// Record posts one movement. Backdated postings are slotted in by date and the partition is
// rebalanced; the posting is refused when any resulting balance would be negative.
func (l *Ledger) Record(ctx context.Context, input *NewStockTransaction) (StockTransaction, error) {
	if err := input.validate(); err != nil {
		return StockTransaction{}, err
	}
	item, ok := l.items.FindByCode(input.ItemCode)
	if !ok {
		return StockTransaction{}, fmt.Errorf("item %s: %w", input.ItemCode, utils.ErrorRecordNotFound)
	}

	date := input.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	in, out := input.quantities()
	tx := StockTransaction{
		Id:              uuid.NewString(),
		Date:            date,
		ItemCode:        item.Sku,
		ItemName:        item.ItemName,
		TransactionType: input.TransactionType,
		QuantityIn:      in,
		QuantityOut:     out,
		Warehouse:       strings.TrimSpace(input.Warehouse),
		UnitCost:        input.UnitCost,
		Reference:       input.Reference,
		Remarks:         input.Remarks,
	}.Normalized()
	if err := tx.Validate(); err != nil {
		return StockTransaction{}, err
	}

	var posted StockTransaction
	txs, err := l.apply(ctx, ActionCreate, tx.Id, func(txs []StockTransaction) ([]StockTransaction, error) {
		txs = append(txs, tx)
		if err := Rebalance(txs, tx.ItemCode, tx.Warehouse, item.StartingBalance(tx.Warehouse), false); err != nil {
			// a backdated outflow may trip a later row; report what this posting asked for
			var short *InsufficientStockError
			if errors.As(err, &short) && out.IsPositive() {
				short.Requested = out
			}
			return nil, err
		}
		posted = txs[len(txs)-1]
		return txs, nil
	})
	if err != nil {
		if !errors.Is(err, utils.ErrInsufficientStock) {
			config.LogError(l.logger, "models", "Ledger.Record", tx.ItemCode, input, err)
		}
		return StockTransaction{}, err
	}

	if err := l.syncItemStock(ctx, item.Id, txs); err != nil {
		config.LogError(l.logger, "models", "Ledger.Record", "sync item stock", tx.Id, err)
		if rerr := l.unpost(ctx, tx, item); rerr != nil {
			config.LogError(l.logger, "models", "Ledger.Record", "rollback posting", tx.Id, rerr)
		}
		return StockTransaction{}, err
	}

	l.logger.WithFields(logrus.Fields{
		"item":      posted.ItemCode,
		"warehouse": posted.Warehouse,
		"type":      posted.TransactionType,
		"balance":   posted.Balance.String(),
	}).Info("stock posted")
	return posted, nil
}

func (l *Ledger) unpost(ctx context.Context, tx StockTransaction, item InventoryItem) error {
	_, err := l.apply(ctx, ActionDelete, tx.Id, func(txs []StockTransaction) ([]StockTransaction, error) {
		idx := indexOf(txs, tx.Id)
		if idx < 0 {
			return nil, errNoChange
		}
		next := append(append([]StockTransaction(nil), txs[:idx]...), txs[idx+1:]...)
		if err := Rebalance(next, tx.ItemCode, tx.Warehouse, item.StartingBalance(tx.Warehouse), true); err != nil {
			return nil, err
		}
		return next, nil
	})
	if errors.Is(err, errNoChange) {
		return nil
	}
	return err
}

func (l *Ledger) syncItemStock(ctx context.Context, itemId string, txs []StockTransaction) error {
	_, found, err := l.items.UpdateWith(ctx, itemId, func(i InventoryItem) (InventoryItem, error) {
		i.CurrentStock = i.OpeningStock.Add(NetQuantity(txs, i.Sku))
		return i, nil
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("item %s: %w", itemId, utils.ErrorRecordNotFound)
	}
	return nil
}

// guardItemPatch refuses sku and warehouse changes for an item that already has postings;
// the postings are keyed by those values.
func (l *Ledger) guardItemPatch(current InventoryItem, patch map[string]any) error {
	if len(l.Transactions(current.Sku)) == 0 {
		return nil
	}
	for field, now := range map[string]string{"sku": current.Sku, "warehouse": current.Warehouse} {
		v, ok := patch[field]
		if !ok {
			continue
		}
		if next, isString := v.(string); isString && strings.EqualFold(strings.TrimSpace(next), now) {
			continue
		}
		return fmt.Errorf("%s of an item with stock postings: %w", field, utils.ErrImmutableField)
	}
	return nil
}

// reopen applies a patch that changes openingStock. The home partition is rebalanced from the new
// opening first; a balance going negative refuses the whole change.
func (l *Ledger) reopen(ctx context.Context, current InventoryItem, patch map[string]any) (InventoryItem, bool, error) {
	if guard := l.items.opts.GuardPatch; guard != nil {
		if err := guard(patch); err != nil {
			return InventoryItem{}, true, err
		}
	}
	next, err := utils.MergePatch(current, patch)
	if err != nil {
		return InventoryItem{}, true, err
	}
	next = next.WithId(current.Id).Normalized()
	if err := next.Validate(); err != nil {
		return InventoryItem{}, true, err
	}

	txs := l.List()
	rebalanced := len(l.Transactions(current.Sku)) > 0 && next.Warehouse != ""
	if rebalanced {
		txs, err = l.Rewrite(ctx, func(txs []StockTransaction) ([]StockTransaction, error) {
			if err := Rebalance(txs, next.Sku, next.Warehouse, next.OpeningStock, false); err != nil {
				return nil, err
			}
			return txs, nil
		})
		if err != nil {
			return InventoryItem{}, true, err
		}
	}

	updated, found, err := l.items.UpdateWith(ctx, current.Id, func(i InventoryItem) (InventoryItem, error) {
		merged, err := utils.MergePatch(i, patch)
		if err != nil {
			return i, err
		}
		merged.CurrentStock = merged.OpeningStock.Add(NetQuantity(txs, merged.Sku))
		return merged, nil
	})
	if err == nil && !found {
		err = fmt.Errorf("item %s: %w", current.Id, utils.ErrorRecordNotFound)
	}
	if err != nil {
		config.LogError(l.logger, "models", "Ledger.reopen", current.Sku, patch, err)
		if rebalanced {
			if _, rerr := l.Rewrite(ctx, func(txs []StockTransaction) ([]StockTransaction, error) {
				return txs, Rebalance(txs, current.Sku, current.Warehouse, current.OpeningStock, true)
			}); rerr != nil {
				config.LogError(l.logger, "models", "Ledger.reopen", "restore balances", current.Sku, rerr)
			}
		}
		return InventoryItem{}, found, err
	}
	return updated, true, nil
}

// Rewrite runs fn over the whole ledger as one persisted mutation.
func (l *Ledger) Rewrite(ctx context.Context, fn func([]StockTransaction) ([]StockTransaction, error)) ([]StockTransaction, error) {
	return l.apply(ctx, ActionUpdate, "*", fn)
}

// Partition returns one partition's transactions in balance order.
func (l *Ledger) Partition(itemCode, warehouse string) []StockTransaction {
	txs := l.List()
	idx := partitionOrder(txs, itemCode, warehouse)
	out := make([]StockTransaction, 0, len(idx))
	for _, i := range idx {
		out = append(out, txs[i])
	}
	return out
}

// Transactions returns every transaction of an item, in date order.
func (l *Ledger) Transactions(itemCode string) []StockTransaction {
	var out []StockTransaction
	for _, t := range l.List() {
		if strings.EqualFold(t.ItemCode, itemCode) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Date.Before(out[b].Date) })
	return out
}

// Balance is the latest running balance of a partition, or its starting balance when it has no postings.
func (l *Ledger) Balance(itemCode, warehouse string) decimal.Decimal {
	if p := l.Partition(itemCode, warehouse); len(p) > 0 {
		return p[len(p)-1].Balance
	}
	if item, ok := l.items.FindByCode(itemCode); ok {
		return item.StartingBalance(warehouse)
	}
	return decimal.Zero
}
