package utils

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
)

// FormatPhoneNumber renders a national number in international format ("+91 98765 43210").
// Numbers that cannot be parsed are returned unchanged.
func FormatPhoneNumber(phoneNumber, countryCode string) string {
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return phoneNumber
	}
	return libphonenumber.Format(p, libphonenumber.INTERNATIONAL)
}

// UniqueSliceBy keeps the first element for each key, in order.
func UniqueSliceBy[T any, K comparable](slice []T, key func(T) K) []T {
	inResult := make(map[K]bool)
	var result []T
	for _, elm := range slice {
		k := key(elm)
		if _, ok := inResult[k]; !ok {
			// if not exists in map, append it, otherwise do nothing
			inResult[k] = true
			result = append(result, elm)
		}
	}
	return result
}

// execute given template string and return generated string
func ExecTemplate(tString string, data map[string]interface{}) (string, error) {
	t, err := template.New("doc").Option("missingkey=zero").Parse(tString)
	if err != nil {
		return "", errors.New("error parsing template: " + err.Error())
	}
	var b bytes.Buffer
	if err := t.Execute(&b, data); err != nil {
		return "", errors.New("failed to execute template: " + err.Error())
	}
	return b.String(), nil
}

// safely dereference pointer of type T, nil pointer return zero value or optional default
func DereferencePtr[T any](ptr *T, defaults ...T) T {
	var defaultValue T
	if len(defaults) > 0 {
		defaultValue = defaults[0]
	}
	if ptr == nil {
		return defaultValue
	}
	return *ptr
}

// currency markers accepted in front of an amount; "Rs." before "Rs"
var currencyMarkers = []string{"INR", "Rs.", "Rs", "₹"}

// ParseDecimal converts user-typed text to a decimal.
//
// Accepts formatted strings like "20,000", "INR 20,000", "Rs. -1,234.50" or "₹450". Only the
// thousands separators and a leading currency marker are dropped; anything else must be a number.
func ParseDecimal(value string) (decimal.Decimal, error) {
	s := strings.TrimSpace(value)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimSpace(s[1:])
	}
	for _, marker := range currencyMarkers {
		if len(s) >= len(marker) && strings.EqualFold(s[:len(marker)], marker) {
			s = strings.TrimSpace(s[len(marker):])
			break
		}
	}
	if !neg && strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimSpace(s[1:])
	}
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, errors.New("empty decimal string")
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, fmt.Errorf("invalid decimal %q", value)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q", value)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}
