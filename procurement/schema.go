package procurement

import (
	"fmt"
	"slices"
	"strings"
)

type DocumentType string

const (
	DocumentTypeOPS DocumentType = "OPS"
	DocumentTypePR  DocumentType = "PR"
	DocumentTypeLOI DocumentType = "LOI"
	DocumentTypePO  DocumentType = "PO"
	DocumentTypeGRN DocumentType = "GRN"
)

// Stages is the procurement chain in order.
var Stages = []DocumentType{DocumentTypeOPS, DocumentTypePR, DocumentTypeLOI, DocumentTypePO, DocumentTypeGRN}

func ParseDocumentType(s string) (DocumentType, error) {
	t := DocumentType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := schemas[t]; !ok {
		return "", fmt.Errorf("unknown document type %q", s)
	}
	return t, nil
}

// Previous is the stage a document of type t follows. OPS has none.
func (t DocumentType) Previous() (DocumentType, bool) {
	for i, s := range Stages {
		if s == t && i > 0 {
			return Stages[i-1], true
		}
	}
	return "", false
}

type FieldKind string

const (
	FieldText     FieldKind = "text"
	FieldTextArea FieldKind = "textarea"
	FieldNumber   FieldKind = "number"
	FieldDate     FieldKind = "date"
	FieldSelect   FieldKind = "select"
)

type Field struct {
	Name     string    `json:"name"`
	Label    string    `json:"label"`
	Kind     FieldKind `json:"kind"`
	Required bool      `json:"required"`
	Options  []string  `json:"options,omitempty"`
}

type Schema struct {
	Type   DocumentType `json:"type"`
	Title  string       `json:"title"`
	Fields []Field      `json:"fields"`
}

func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func req(name, label string, kind FieldKind) Field {
	return Field{Name: name, Label: label, Kind: kind, Required: true}
}

func opt(name, label string, kind FieldKind) Field {
	return Field{Name: name, Label: label, Kind: kind}
}

var schemas = map[DocumentType]Schema{
	DocumentTypeOPS: {
		Type:  DocumentTypeOPS,
		Title: "Order Processing Sheet",
		Fields: []Field{
			req("opsNumber", "OPS Number", FieldText),
			req("date", "Date", FieldDate),
			req("department", "Department", FieldText),
			req("requestedBy", "Requested By", FieldText),
			req("itemDescription", "Item Description", FieldTextArea),
			req("quantity", "Quantity", FieldNumber),
			req("requiredBy", "Required By", FieldDate),
			{Name: "priority", Label: "Priority", Kind: FieldSelect, Options: []string{"Low", "Medium", "High"}},
			opt("purpose", "Purpose", FieldTextArea),
		},
	},
	DocumentTypePR: {
		Type:  DocumentTypePR,
		Title: "Purchase Requisition",
		Fields: []Field{
			req("prNumber", "PR Number", FieldText),
			opt("opsNumber", "OPS Number", FieldText),
			req("date", "Date", FieldDate),
			req("department", "Department", FieldText),
			req("requestedBy", "Requested By", FieldText),
			req("itemDescription", "Item Description", FieldTextArea),
			req("quantity", "Quantity", FieldNumber),
			opt("estimatedCost", "Estimated Cost", FieldNumber),
			req("requiredBy", "Required By", FieldDate),
			opt("justification", "Justification", FieldTextArea),
		},
	},
	DocumentTypeLOI: {
		Type:  DocumentTypeLOI,
		Title: "Letter of Intent",
		Fields: []Field{
			req("loiNumber", "LOI Number", FieldText),
			opt("prNumber", "PR Number", FieldText),
			req("date", "Date", FieldDate),
			req("vendorName", "Vendor Name", FieldText),
			opt("vendorAddress", "Vendor Address", FieldTextArea),
			req("itemDescription", "Item Description", FieldTextArea),
			req("quantity", "Quantity", FieldNumber),
			req("unitPrice", "Unit Price", FieldNumber),
			req("deliveryDate", "Delivery Date", FieldDate),
			opt("terms", "Terms and Conditions", FieldTextArea),
		},
	},
	DocumentTypePO: {
		Type:  DocumentTypePO,
		Title: "Purchase Order",
		Fields: []Field{
			req("poNumber", "PO Number", FieldText),
			opt("loiNumber", "LOI Number", FieldText),
			req("date", "Date", FieldDate),
			req("vendorName", "Vendor Name", FieldText),
			opt("vendorGstin", "Vendor GSTIN", FieldText),
			opt("itemCode", "Item Code", FieldText),
			req("itemDescription", "Item Description", FieldTextArea),
			req("quantity", "Quantity", FieldNumber),
			req("unitPrice", "Unit Price", FieldNumber),
			req("taxes", "Taxes", FieldNumber),
			req("deliveryDate", "Delivery Date", FieldDate),
			opt("paymentTerms", "Payment Terms", FieldText),
			opt("shippingAddress", "Shipping Address", FieldTextArea),
		},
	},
	DocumentTypeGRN: {
		Type:  DocumentTypeGRN,
		Title: "Goods Receipt Note",
		Fields: []Field{
			req("grnNumber", "GRN Number", FieldText),
			req("poNumber", "PO Number", FieldText),
			req("vendorName", "Vendor Name", FieldText),
			req("deliveryDate", "Delivery Date", FieldDate),
			req("itemCode", "Item Code", FieldText),
			opt("itemDescription", "Item Description", FieldTextArea),
			req("quantityReceived", "Quantity Received", FieldNumber),
			opt("unitPrice", "Unit Price", FieldNumber),
			req("warehouse", "Warehouse", FieldText),
			{Name: "condition", Label: "Condition", Kind: FieldSelect, Required: true, Options: []string{"Good", "Damaged", "Partial"}},
			opt("inspectedBy", "Inspected By", FieldText),
			opt("remarks", "Remarks", FieldTextArea),
		},
	},
}

// SchemaFor returns the form schema of a document type.
func SchemaFor(t DocumentType) (Schema, bool) {
	s, ok := schemas[t]
	s.Fields = slices.Clone(s.Fields)
	return s, ok
}
