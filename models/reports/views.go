package reports

import (
	"cmp"
	"slices"
	"strings"

	"github.com/akpande2/bom-buddy-factory-sub000/models"
	"github.com/shopspring/decimal"
)

// FilterBySubstring keeps the items where any field contains query, ignoring case.
// An empty query keeps everything.
func FilterBySubstring[T any](items []T, query string, fields ...func(T) string) []T {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return append([]T(nil), items...)
	}
	var out []T
	for _, item := range items {
		for _, field := range fields {
			if strings.Contains(strings.ToLower(field(item)), query) {
				out = append(out, item)
				break
			}
		}
	}
	return out
}

// search fields used by the list screens
var (
	VendorSearchFields = []func(models.Vendor) string{
		func(v models.Vendor) string { return v.Name },
		func(v models.Vendor) string { return v.ContactPerson },
		func(v models.Vendor) string { return v.GstNumber },
		func(v models.Vendor) string { return v.Email },
		func(v models.Vendor) string { return strings.Join(v.ProductCategories, " ") },
	}
	ItemSearchFields = []func(models.InventoryItem) string{
		func(i models.InventoryItem) string { return i.ItemName },
		func(i models.InventoryItem) string { return i.Sku },
		func(i models.InventoryItem) string { return i.Category },
		func(i models.InventoryItem) string { return i.HsnSacCode },
	}
	WarehouseSearchFields = []func(models.Warehouse) string{
		func(w models.Warehouse) string { return w.Name },
		func(w models.Warehouse) string { return w.Code },
		func(w models.Warehouse) string { return w.Location },
		func(w models.Warehouse) string { return w.Manager },
	}
)

// SortBy sorts a copy of items on one key. Equal keys keep their original order.
func SortBy[T any, K cmp.Ordered](items []T, key func(T) K, descending bool) []T {
	out := append([]T(nil), items...)
	slices.SortStableFunc(out, func(a, b T) int {
		c := cmp.Compare(key(a), key(b))
		if descending {
			return -c
		}
		return c
	})
	return out
}

// SortByDecimal is SortBy for decimal keys.
func SortByDecimal[T any](items []T, key func(T) decimal.Decimal, descending bool) []T {
	out := append([]T(nil), items...)
	slices.SortStableFunc(out, func(a, b T) int {
		c := key(a).Cmp(key(b))
		if descending {
			return -c
		}
		return c
	})
	return out
}

// OverallRating is the mean of the non-zero sub-scores, or the coarse rating when none is set,
// rounded to one decimal place.
func OverallRating(v models.Vendor) decimal.Decimal {
	sum := decimal.Zero
	n := 0
	for _, s := range v.Ratings.Scores() {
		if s > 0 {
			sum = sum.Add(decimal.NewFromFloat(s))
			n++
		}
	}
	if n == 0 {
		return decimal.NewFromInt(int64(v.Rating)).Round(1)
	}
	return sum.Div(decimal.NewFromInt(int64(n))).Round(1)
}

type CategorySlice struct {
	VendorType models.VendorType `json:"vendorType"`
	Count      int               `json:"count"`
	Percentage decimal.Decimal   `json:"percentage"`
	// arc of a 360 degree chart, cumulative in VendorType order
	StartAngle decimal.Decimal `json:"startAngle"`
	EndAngle   decimal.Decimal `json:"endAngle"`
}

// CategoryDistribution counts vendors per vendor type. Types without vendors are left out.
func CategoryDistribution(vendors []models.Vendor) []CategorySlice {
	if len(vendors) == 0 {
		return nil
	}
	counts := make(map[models.VendorType]int)
	for _, v := range vendors {
		counts[v.VendorType]++
	}
	types := append([]models.VendorType(nil), models.AllVendorTypes...)
	for t := range counts {
		if !t.IsValid() {
			types = append(types, t)
		}
	}
	slices.SortStableFunc(types[len(models.AllVendorTypes):], func(a, b models.VendorType) int {
		return cmp.Compare(a, b)
	})

	total := decimal.NewFromInt(int64(len(vendors)))
	full := decimal.NewFromInt(360)
	hundred := decimal.NewFromInt(100)
	var (
		out     []CategorySlice
		counted int
	)
	for _, t := range types {
		n := counts[t]
		if n == 0 {
			continue
		}
		start := decimal.NewFromInt(int64(counted)).Div(total).Mul(full)
		counted += n
		end := decimal.NewFromInt(int64(counted)).Div(total).Mul(full)
		out = append(out, CategorySlice{
			VendorType: t,
			Count:      n,
			Percentage: decimal.NewFromInt(int64(n)).Div(total).Mul(hundred).Round(1),
			StartAngle: start.Round(2),
			EndAngle:   end.Round(2),
		})
	}
	return out
}

type RatedVendor struct {
	Vendor  models.Vendor   `json:"vendor"`
	Overall decimal.Decimal `json:"overall"`
}

// TopRated returns the n best vendors by overall rating; ties keep list order.
func TopRated(vendors []models.Vendor, n int) []RatedVendor {
	rated := make([]RatedVendor, 0, len(vendors))
	for _, v := range vendors {
		rated = append(rated, RatedVendor{Vendor: v, Overall: OverallRating(v)})
	}
	rated = SortByDecimal(rated, func(r RatedVendor) decimal.Decimal { return r.Overall }, true)
	if n >= 0 && n < len(rated) {
		rated = rated[:n]
	}
	return rated
}

// OccupancyPercent is round(occupied / capacity * 100). It may exceed 100.
func OccupancyPercent(occupied, capacity int) int {
	if capacity <= 0 {
		return 0
	}
	return int(decimal.NewFromInt(int64(occupied)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(capacity))).
		Round(0).
		IntPart())
}

// DisplayOccupancy clamps a percentage to [0, 100] for progress bars.
func DisplayOccupancy(percent int) int {
	return min(max(percent, 0), 100)
}

type WarehouseOccupancy struct {
	WarehouseId string `json:"warehouseId"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Percent     int    `json:"percent"`
	Display     int    `json:"display"`
}

func Occupancy(w models.Warehouse) WarehouseOccupancy {
	p := OccupancyPercent(w.Occupied, w.Capacity)
	return WarehouseOccupancy{WarehouseId: w.Id, Code: w.Code, Name: w.Name, Percent: p, Display: DisplayOccupancy(p)}
}

func BinOccupancy(b models.Bin) int {
	return OccupancyPercent(b.Occupied, b.Capacity)
}

// NeedsReorder lists the items whose current stock is below their reorder level.
func NeedsReorder(items []models.InventoryItem) []models.InventoryItem {
	var out []models.InventoryItem
	for _, i := range items {
		if i.NeedsReorder() {
			out = append(out, i)
		}
	}
	return out
}

type StockBalance struct {
	ItemCode  string          `json:"itemCode"`
	ItemName  string          `json:"itemName"`
	Warehouse string          `json:"warehouse"`
	Uom       string          `json:"uom"`
	Balance   decimal.Decimal `json:"balance"`
}

// StockBalances is the balance of every (item, warehouse) pair, including home warehouses
// with no postings yet, ordered by item code then warehouse.
func StockBalances(items []models.InventoryItem, txs []models.StockTransaction) []StockBalance {
	bySku := make(map[string]models.InventoryItem, len(items))
	for _, i := range items {
		bySku[strings.ToUpper(i.Sku)] = i
	}

	latest := make(map[string]StockBalance)
	key := func(item, warehouse string) string {
		return strings.ToUpper(item) + "\x00" + strings.ToUpper(warehouse)
	}
	for _, p := range models.Partitions(txs) {
		var last models.StockTransaction
		found := false
		for _, t := range txs {
			if t.InPartition(p.ItemCode, p.Warehouse) && (!found || !t.Date.Before(last.Date)) {
				last = t
				found = true
			}
		}
		sb := StockBalance{ItemCode: p.ItemCode, ItemName: last.ItemName, Warehouse: p.Warehouse, Balance: last.Balance}
		if item, ok := bySku[strings.ToUpper(p.ItemCode)]; ok {
			sb.ItemName = item.ItemName
			sb.Uom = item.Uom
		}
		latest[key(p.ItemCode, p.Warehouse)] = sb
	}
	for _, i := range items {
		if i.Warehouse == "" {
			continue
		}
		k := key(i.Sku, i.Warehouse)
		if _, ok := latest[k]; !ok {
			latest[k] = StockBalance{ItemCode: i.Sku, ItemName: i.ItemName, Warehouse: i.Warehouse, Uom: i.Uom, Balance: i.OpeningStock}
		}
	}

	out := make([]StockBalance, 0, len(latest))
	for _, sb := range latest {
		out = append(out, sb)
	}
	slices.SortFunc(out, func(a, b StockBalance) int {
		if c := cmp.Compare(strings.ToUpper(a.ItemCode), strings.ToUpper(b.ItemCode)); c != 0 {
			return c
		}
		return cmp.Compare(strings.ToUpper(a.Warehouse), strings.ToUpper(b.Warehouse))
	})
	return out
}
