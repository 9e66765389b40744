package utils

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	gstinPattern     = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][0-9A-Z]Z[0-9A-Z]$`)
	panPattern       = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	ifscPattern      = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	phonePattern     = regexp.MustCompile(`^[0-9]{10}$`)
	accountNoPattern = regexp.MustCompile(`^[0-9]{9,18}$`)

	validate     *validator.Validate
	validateOnce sync.Once
)

// ValidationError maps field names (json names, dotted for nested fields) to messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a single-field validation error.
func NewValidationError(field string, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func IsGSTIN(s string) bool { return gstinPattern.MatchString(s) }
func IsPAN(s string) bool { return panPattern.MatchString(s) }
func IsIFSC(s string) bool { return ifscPattern.MatchString(s) }
func IsPhone10(s string) bool { return phonePattern.MatchString(s) }
func IsAccountNo(s string) bool { return accountNoPattern.MatchString(s) }

func regexValidator(match func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return match(fl.Field().String())
	}
}

// Validator returns the shared validator with the domain tags registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("gstin", regexValidator(IsGSTIN))
		_ = v.RegisterValidation("pan", regexValidator(IsPAN))
		_ = v.RegisterValidation("ifsc", regexValidator(IsIFSC))
		_ = v.RegisterValidation("phone10", regexValidator(IsPhone10))
		_ = v.RegisterValidation("accountno", regexValidator(IsAccountNo))
		validate = v
	})
	return validate
}

// ValidateStruct runs the struct tags of s and returns a *ValidationError on failure.
func ValidateStruct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return &ValidationError{Fields: ProcessValidationErrors(ve)}
	}
	return err
}

func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return errorResponse
	}

	for _, ve := range validationErrors {
		errorResponse[fieldPath(ve)] = validationMessage(ve)
	}
	return errorResponse
}

// drop the root struct name from the namespace: "Vendor.ratings.quality" -> "ratings.quality"
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gstin":
		return "invalid GST number format"
	case "pan":
		return "invalid PAN number format"
	case "ifsc":
		return "invalid IFSC code format"
	case "phone10":
		return "must be exactly 10 digits"
	case "accountno":
		return "account number must be 9 to 18 digits"
	case "email":
		return "invalid email address"
	case "url":
		return "invalid url"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "unique":
		return "must not contain duplicates"
	default:
		return fe.Tag()
	}
}
