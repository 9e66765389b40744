package procurement

import (
	"bytes"
	"fmt"
	"maps"
	"regexp"
	"strings"
	"time"

	"github.com/akpande2/bom-buddy-factory-sub000/utils"
	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

// Document is a generated artifact together with the exact values it was made from.
type Document struct {
	Type        DocumentType      `json:"type"`
	Title       string            `json:"title"`
	Bytes       []byte            `json:"-"`
	Lines       []string          `json:"lines"`
	Computed    []string          `json:"computed"`
	Pages       int               `json:"pages"`
	FormData    map[string]string `json:"formData"`
	GeneratedAt time.Time         `json:"generatedAt"`
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// DownloadName is the file name a generated document is offered under.
func DownloadName(title string, at time.Time) string {
	return fmt.Sprintf("%s_%d.pdf", whitespaceRun.ReplaceAllString(strings.TrimSpace(title), "_"), at.UnixMilli())
}

func (d *Document) DownloadName() string {
	return DownloadName(d.Title, d.GeneratedAt)
}

// summaries are rendered with utils.ExecTemplate over the form values
var summaries = map[DocumentType]string{
	DocumentTypeOPS: "Requirement of {{.quantity}} x {{.itemDescription}} raised by {{.requestedBy}} ({{.department}}), required by {{.requiredBy}}.",
	DocumentTypePR:  "Requisition {{.prNumber}} for {{.quantity}} x {{.itemDescription}} requested by {{.requestedBy}} ({{.department}}), required by {{.requiredBy}}.",
	DocumentTypeLOI: "We intend to purchase {{.quantity}} x {{.itemDescription}} from {{.vendorName}} at {{.unitPrice}} per unit, for delivery by {{.deliveryDate}}. This letter is not a purchase order.",
	DocumentTypeGRN: "Goods delivered on {{.deliveryDate}} against PO {{.poNumber}} were inspected and found in {{.condition}} condition. Quantity received: {{.quantityReceived}}.",
}

func number(values map[string]string, name string) decimal.Decimal {
	d, err := utils.ParseDecimal(values[name])
	if err != nil {
		return decimal.Zero
	}
	return d
}

// computedContent is the type-specific section under the field listing.
func computedContent(t DocumentType, values map[string]string) ([]string, error) {
	var lines []string
	switch t {
	case DocumentTypePO:
		total := number(values, "quantity").Mul(number(values, "unitPrice"))
		taxes := number(values, "taxes")
		lines = append(lines,
			"Total Amount: "+total.String(),
			"Taxes: "+taxes.String(),
			"Grand Total: "+total.Add(taxes).String(),
		)
	case DocumentTypeLOI:
		value := number(values, "quantity").Mul(number(values, "unitPrice"))
		lines = append(lines, "Estimated Value: "+value.String())
	case DocumentTypePR:
		if values["estimatedCost"] != "" {
			lines = append(lines, "Estimated Cost: "+number(values, "estimatedCost").String())
		}
	}
	if tmpl, ok := summaries[t]; ok {
		data := make(map[string]interface{}, len(values))
		for k, v := range values {
			data[k] = v
		}
		summary, err := utils.ExecTemplate(tmpl, data)
		if err != nil {
			return nil, err
		}
		lines = append(lines, summary)
	}
	return lines, nil
}

// fieldLines lists every schema field as "Label: Value", in schema order.
func fieldLines(schema Schema, values map[string]string) []string {
	lines := make([]string, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		v := strings.TrimSpace(values[f.Name])
		if v == "" {
			v = "-"
		}
		lines = append(lines, f.Label+": "+v)
	}
	return lines
}

// Generate renders the values of one form into a PDF.
func Generate(schema Schema, values map[string]string, at time.Time) (*Document, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	computed, err := computedContent(schema.Type, values)
	if err != nil {
		return nil, err
	}
	doc := &Document{
		Type:        schema.Type,
		Title:       schema.Title,
		Lines:       fieldLines(schema, values),
		Computed:    computed,
		FormData:    maps.Clone(values),
		GeneratedAt: at,
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(schema.Title, true)
	pdf.SetCreator("bom-buddy", true)
	pdf.SetCreationDate(at)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(schema.Title), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 6, "Generated "+at.Format("2006-01-02 15:04"), "", 1, "R", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	for _, line := range doc.Lines {
		pdf.MultiCell(0, 7, tr(line), "", "L", false)
	}

	if len(doc.Computed) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, "Summary", "B", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		for _, line := range doc.Computed {
			pdf.MultiCell(0, 7, tr(line), "", "L", false)
		}
	}

	doc.Pages = pdf.PageCount()
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render %s: %w", schema.Type, err)
	}
	doc.Bytes = buf.Bytes()
	return doc, nil
}
