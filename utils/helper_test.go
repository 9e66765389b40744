package utils_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/akpande2/bom-buddy-factory-sub000/utils"
	"github.com/shopspring/decimal"
)

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"20,000", "20000"},
		{"INR 20,000", "20000"},
		{"Rs. -1,234.50", "-1234.5"},
		{"₹450", "450"},
		{" 12.75 ", "12.75"},
		{"inr 1,00,000", "100000"},
		{"1e3", "1000"},
	}
	for _, tt := range tests {
		got, err := utils.ParseDecimal(tt.in)
		if err != nil {
			t.Fatalf("ParseDecimal(%q) unexpected error: %v", tt.in, err)
		}
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Fatalf("ParseDecimal(%q) expected %s, got %s", tt.in, tt.want, got)
		}
	}

	for _, in := range []string{"", "   ", "abc", "12abc", "12 rs", "--5", "Rs.", "1.2.3"} {
		if _, err := utils.ParseDecimal(in); err == nil {
			t.Fatalf("ParseDecimal(%q) expected error", in)
		}
	}
}

func TestUniqueSliceBy(t *testing.T) {
	got := utils.UniqueSliceBy([]string{"Motors", "motors", "Pumps", "MOTORS", "pumps", "Valves"}, strings.ToLower)
	if joined := strings.Join(got, ","); joined != "Motors,Pumps,Valves" {
		t.Fatalf("UniqueSliceBy expected Motors,Pumps,Valves, got %s", joined)
	}
}

func TestDereferencePtr(t *testing.T) {
	cost := decimal.RequireFromString("450")
	if got := utils.DereferencePtr(&cost, decimal.Zero); !got.Equal(cost) {
		t.Fatalf("DereferencePtr expected 450, got %s", got)
	}
	if got := utils.DereferencePtr[decimal.Decimal](nil, decimal.RequireFromString("400")); !got.Equal(decimal.RequireFromString("400")) {
		t.Fatalf("nil DereferencePtr expected the default 400, got %s", got)
	}
	if got := utils.DereferencePtr[string](nil); got != "" {
		t.Fatalf("nil DereferencePtr without default expected zero value, got %q", got)
	}
}

type patchTarget struct {
	Name  string `json:"name"`
	City  string `json:"city"`
	Count int    `json:"count"`
}

func TestMergePatch(t *testing.T) {
	current := patchTarget{Name: "Acme", City: "Pune", Count: 3}
	got, err := utils.MergePatch(current, map[string]any{"city": "Nashik", "count": 4})
	if err != nil {
		t.Fatalf("MergePatch unexpected error: %v", err)
	}
	want := patchTarget{Name: "Acme", City: "Nashik", Count: 4}
	if got != want {
		t.Fatalf("MergePatch expected %+v, got %+v", want, got)
	}

	if _, err := utils.MergePatch(current, map[string]any{"count": "four"}); err == nil {
		t.Fatalf("MergePatch with a mistyped value expected error")
	}
}

func TestFormatPatterns(t *testing.T) {
	tests := []struct {
		name  string
		check func(string) bool
		value string
		want  bool
	}{
		{"gstin", utils.IsGSTIN, "27AAPFU0939F1ZV", true},
		{"gstin lower case", utils.IsGSTIN, "27aapfu0939f1zv", false},
		{"gstin short", utils.IsGSTIN, "27AAPFU0939F1Z", false},
		{"pan", utils.IsPAN, "AAPFU0939F", true},
		{"pan digits first", utils.IsPAN, "0939FAAPFU", false},
		{"ifsc", utils.IsIFSC, "HDFC0001234", true},
		{"ifsc fifth char", utils.IsIFSC, "HDFC1001234", false},
		{"phone", utils.IsPhone10, "9876543210", true},
		{"phone with code", utils.IsPhone10, "+919876543210", false},
		{"account", utils.IsAccountNo, "123456789", true},
		{"account short", utils.IsAccountNo, "12345678", false},
	}
	for _, tt := range tests {
		if got := tt.check(tt.value); got != tt.want {
			t.Fatalf("%s(%q) expected %t, got %t", tt.name, tt.value, tt.want, got)
		}
	}
}

type taggedVendor struct {
	Name      string `json:"name" validate:"required"`
	GstNumber string `json:"gstNumber" validate:"omitempty,gstin"`
}

func TestValidateStruct(t *testing.T) {
	if err := utils.ValidateStruct(taggedVendor{Name: "Acme", GstNumber: "27AAPFU0939F1ZV"}); err != nil {
		t.Fatalf("ValidateStruct unexpected error: %v", err)
	}

	err := utils.ValidateStruct(taggedVendor{GstNumber: "BAD"})
	var ve *utils.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("ValidateStruct expected *ValidationError, got %v", err)
	}
	if got := ve.Fields["gstNumber"]; got != "invalid GST number format" {
		t.Fatalf("gstNumber expected invalid GST number format, got %q", got)
	}
	if _, ok := ve.Fields["name"]; !ok {
		t.Fatalf("name expected a required error, got %v", ve.Fields)
	}
}

func TestObjectAccessURL(t *testing.T) {
	const key = "procurement/PO/Purchase_Order_1700000000000.pdf"
	tests := []struct {
		base string
		want string
	}{
		{"", "https://storage.googleapis.com/docs/" + key},
		{"https://cdn.example.com/files/", "https://cdn.example.com/files/" + key},
		{"https://cdn.example.com/{objectKey}", "https://cdn.example.com/" + key},
		{"https://files.example.com/get?key=", "https://files.example.com/get?key=procurement%2FPO%2FPurchase_Order_1700000000000.pdf"},
	}
	for _, tt := range tests {
		if got := utils.ObjectAccessURL(tt.base, "docs", key); got != tt.want {
			t.Fatalf("ObjectAccessURL with base %q expected %s, got %s", tt.base, tt.want, got)
		}
	}
}
