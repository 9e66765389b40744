package reports

import (
	"io"
	"strings"
	"time"

	"github.com/akpande2/bom-buddy-factory-sub000/models"
	"github.com/akpande2/bom-buddy-factory-sub000/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ExcelExporter is one spreadsheet row.
type ExcelExporter interface {
	GetCellValues() []interface{}
}

// cell values excelize stores as numbers
func num(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func exportExcel(w io.Writer, sheetName string, headings []string, rows []ExcelExporter) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	// Add headers
	for i, h := range headings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return err
		}
	}
	if err := f.SetRowStyle(sheetName, 1, 1, bold); err != nil {
		return err
	}

	// Add data
	for r, d := range rows {
		for c, value := range d.GetCellValues() {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return err
			}
		}
	}

	return f.Write(w)
}

type vendorRow struct {
	v      models.Vendor
	region string
}

func (r vendorRow) GetCellValues() []interface{} {
	return []interface{}{
		r.v.Name,
		string(r.v.VendorType),
		r.v.ContactPerson,
		utils.FormatPhoneNumber(r.v.Phone, r.region),
		r.v.Email,
		r.v.GstNumber,
		r.v.PanNumber,
		string(r.v.Status),
		num(OverallRating(r.v)),
		strings.Join(r.v.ProductCategories, ", "),
	}
}

// ExportVendors writes the vendor list as an xlsx workbook. Phones are formatted for region.
func ExportVendors(w io.Writer, vendors []models.Vendor, region string) error {
	rows := make([]ExcelExporter, 0, len(vendors))
	for _, v := range vendors {
		rows = append(rows, vendorRow{v: v, region: region})
	}
	return exportExcel(w, "Vendors", []string{
		"Name", "Type", "ContactPerson", "Phone", "Email", "GSTNumber", "PANNumber", "Status", "OverallRating", "ProductCategories",
	}, rows)
}

type itemRow models.InventoryItem

func (r itemRow) GetCellValues() []interface{} {
	reorder := "No"
	if models.InventoryItem(r).NeedsReorder() {
		reorder = "Yes"
	}
	return []interface{}{
		r.Sku,
		r.ItemName,
		r.Category,
		string(r.ItemType),
		r.HsnSacCode,
		r.GstRate,
		r.Uom,
		num(r.OpeningStock),
		num(r.CurrentStock),
		num(r.ReorderLevel),
		num(r.StandardCost),
		reorder,
	}
}

func ExportItems(w io.Writer, items []models.InventoryItem) error {
	rows := make([]ExcelExporter, 0, len(items))
	for _, i := range items {
		rows = append(rows, itemRow(i))
	}
	return exportExcel(w, "Items", []string{
		"SKU", "ItemName", "Category", "ItemType", "HSN/SAC", "GSTRate", "UoM", "OpeningStock", "CurrentStock", "ReorderLevel", "StandardCost", "NeedsReorder",
	}, rows)
}

type stockBalanceRow StockBalance

func (r stockBalanceRow) GetCellValues() []interface{} {
	return []interface{}{r.ItemCode, r.ItemName, r.Warehouse, r.Uom, num(r.Balance)}
}

func ExportStockBalances(w io.Writer, balances []StockBalance) error {
	rows := make([]ExcelExporter, 0, len(balances))
	for _, b := range balances {
		rows = append(rows, stockBalanceRow(b))
	}
	return exportExcel(w, "StockBalances", []string{"ItemCode", "ItemName", "Warehouse", "UoM", "Balance"}, rows)
}

// ValuationRow is one valuation layer of one item.
type ValuationRow struct {
	ItemCode   string
	Method     string
	ReceivedAt time.Time
	AgeDays    int
	Quantity   decimal.Decimal
	UnitCost   decimal.Decimal
	Value      decimal.Decimal
}

func (r ValuationRow) GetCellValues() []interface{} {
	received := ""
	if !r.ReceivedAt.IsZero() {
		received = r.ReceivedAt.Format("2006-01-02")
	}
	return []interface{}{r.ItemCode, r.Method, received, r.AgeDays, num(r.Quantity), num(r.UnitCost), num(r.Value)}
}

func ExportValuation(w io.Writer, rows []ValuationRow) error {
	out := make([]ExcelExporter, 0, len(rows))
	for _, r := range rows {
		out = append(out, r)
	}
	return exportExcel(w, "Valuation", []string{"ItemCode", "Method", "ReceivedAt", "AgeDays", "Quantity", "UnitCost", "Value"}, out)
}
