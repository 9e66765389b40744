package workflow

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/akpande2/bom-buddy-factory-sub000/models"
	"github.com/akpande2/bom-buddy-factory-sub000/models/reports"
	"github.com/akpande2/bom-buddy-factory-sub000/utils"
	"github.com/shopspring/decimal"
)

type ValuationMethod string

const (
	ValuationFIFO            ValuationMethod = "FIFO"
	ValuationWeightedAverage ValuationMethod = "WeightedAverage"
)

func ParseValuationMethod(s string) (ValuationMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fifo", "":
		return ValuationFIFO, nil
	case "weightedaverage", "weighted-average", "wavg", "average":
		return ValuationWeightedAverage, nil
	}
	return "", fmt.Errorf("unknown valuation method %q", s)
}

// unit costs of blended layers are kept to this many places
const averageCostPlaces = 4

// Layer is a quantity still on hand at one unit cost.
type Layer struct {
	ReceivedAt time.Time       `json:"receivedAt"`
	Reference  string          `json:"reference,omitempty"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unitCost"`
	AgeDays    int             `json:"ageDays"`
}

func (l Layer) Value() decimal.Decimal {
	return l.Quantity.Mul(l.UnitCost)
}

// Valuation of one item's remaining quantity. TotalQuantity == Σ layer quantities and
// TotalValue == Σ layer quantity × unit cost, exactly.
type Valuation struct {
	ItemCode      string          `json:"itemCode"`
	Method        ValuationMethod `json:"method"`
	AsOf          time.Time       `json:"asOf"`
	Layers        []Layer         `json:"layers"`
	TotalQuantity decimal.Decimal `json:"totalQuantity"`
	TotalValue    decimal.Decimal `json:"totalValue"`
}

// UnitCost is the blended cost of what is on hand.
func (v *Valuation) UnitCost() decimal.Decimal {
	if v.TotalQuantity.IsZero() {
		return decimal.Zero
	}
	return v.TotalValue.Div(v.TotalQuantity).Round(averageCostPlaces)
}

// Reconciles checks both valuation identities against the item's current stock.
func (v *Valuation) Reconciles(currentStock decimal.Decimal) bool {
	qty, value := decimal.Zero, decimal.Zero
	for _, l := range v.Layers {
		qty = qty.Add(l.Quantity)
		value = value.Add(l.Value())
	}
	return qty.Equal(v.TotalQuantity) && value.Equal(v.TotalValue) && qty.Equal(currentStock)
}

func (v *Valuation) Rows() []reports.ValuationRow {
	rows := make([]reports.ValuationRow, 0, len(v.Layers))
	for _, l := range v.Layers {
		rows = append(rows, reports.ValuationRow{
			ItemCode:   v.ItemCode,
			Method:     string(v.Method),
			ReceivedAt: l.ReceivedAt,
			AgeDays:    l.AgeDays,
			Quantity:   l.Quantity,
			UnitCost:   l.UnitCost,
			Value:      l.Value(),
		})
	}
	return rows
}

func ageDays(from, asOf time.Time) int {
	if from.IsZero() || asOf.Before(from) {
		return 0
	}
	return int(asOf.Sub(from).Hours() / 24)
}

// movement is one ledger line reduced to what valuation needs.
type movement struct {
	at        time.Time
	reference string
	in        decimal.Decimal
	out       decimal.Decimal
	unitCost  decimal.Decimal
}

func movements(item models.InventoryItem, txs []models.StockTransaction, asOf time.Time) []movement {
	var own []models.StockTransaction
	for _, t := range txs {
		if strings.EqualFold(t.ItemCode, item.Sku) && !t.Date.After(asOf) {
			own = append(own, t)
		}
	}
	sort.SliceStable(own, func(a, b int) bool { return own[a].Date.Before(own[b].Date) })

	var out []movement
	if item.OpeningStock.IsPositive() {
		at := item.CreatedAt
		if len(own) > 0 && (at.IsZero() || own[0].Date.Before(at)) {
			at = own[0].Date
		}
		out = append(out, movement{at: at, reference: "opening stock", in: item.OpeningStock, out: decimal.Zero, unitCost: item.StandardCost})
	}
	fallback := item.ReceiptCost()
	for _, t := range own {
		cost := utils.DereferencePtr(t.UnitCost, fallback)
		ref := t.Reference
		if ref == "" {
			ref = string(t.TransactionType)
		}
		out = append(out, movement{at: t.Date, reference: ref, in: t.QuantityIn, out: t.QuantityOut, unitCost: cost})
	}
	return out
}

// Valuate values an item's stock on hand at asOf (zero means now) from its ledger history.
// FIFO consumes the oldest layers first; weighted average keeps one moving blended layer.
func Valuate(item models.InventoryItem, txs []models.StockTransaction, method ValuationMethod, asOf time.Time) (*Valuation, error) {
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	moves := movements(item, txs, asOf)

	var (
		layers []Layer
		err    error
	)
	switch method {
	case ValuationFIFO:
		layers, err = fifoLayers(item.Sku, moves, asOf)
	case ValuationWeightedAverage:
		layers, err = averageLayers(item.Sku, moves, asOf)
	default:
		return nil, fmt.Errorf("unknown valuation method %q", method)
	}
	if err != nil {
		return nil, err
	}

	v := &Valuation{ItemCode: item.Sku, Method: method, AsOf: asOf, Layers: layers, TotalQuantity: decimal.Zero, TotalValue: decimal.Zero}
	for _, l := range layers {
		v.TotalQuantity = v.TotalQuantity.Add(l.Quantity)
		v.TotalValue = v.TotalValue.Add(l.Value())
	}
	return v, nil
}

func fifoLayers(itemCode string, moves []movement, asOf time.Time) ([]Layer, error) {
	var layers []Layer
	for _, m := range moves {
		if m.in.IsPositive() {
			layers = append(layers, Layer{ReceivedAt: m.at, Reference: m.reference, Quantity: m.in, UnitCost: m.unitCost})
		}
		need := m.out
		for need.IsPositive() {
			if len(layers) == 0 {
				return nil, fmt.Errorf("insufficient FIFO layers for %s at %s (missing %s): %w",
					itemCode, m.at.Format(time.RFC3339), need.String(), utils.ErrInsufficientStock)
			}
			take := decimal.Min(need, layers[0].Quantity)
			layers[0].Quantity = layers[0].Quantity.Sub(take)
			need = need.Sub(take)
			if layers[0].Quantity.IsZero() {
				layers = layers[1:]
			}
		}
	}
	for i := range layers {
		layers[i].AgeDays = ageDays(layers[i].ReceivedAt, asOf)
	}
	return layers, nil
}

func averageLayers(itemCode string, moves []movement, asOf time.Time) ([]Layer, error) {
	qty, avg := decimal.Zero, decimal.Zero
	var lastReceipt time.Time
	for _, m := range moves {
		if m.in.IsPositive() {
			value := qty.Mul(avg).Add(m.in.Mul(m.unitCost))
			qty = qty.Add(m.in)
			avg = value.Div(qty).Round(averageCostPlaces)
			lastReceipt = m.at
		}
		if m.out.IsPositive() {
			if m.out.GreaterThan(qty) {
				return nil, fmt.Errorf("insufficient stock to value %s at %s (on hand %s, out %s): %w",
					itemCode, m.at.Format(time.RFC3339), qty.String(), m.out.String(), utils.ErrInsufficientStock)
			}
			qty = qty.Sub(m.out)
		}
	}
	if qty.IsZero() {
		return nil, nil
	}
	return []Layer{{
		ReceivedAt: lastReceipt,
		Reference:  "weighted average",
		Quantity:   qty,
		UnitCost:   avg,
		AgeDays:    ageDays(lastReceipt, asOf),
	}}, nil
}
