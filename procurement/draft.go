package procurement

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/akpande2/bom-buddy-factory-sub000/utils"
)

type DraftState string

const (
	StateEmpty     DraftState = "Empty"
	StateDrafting  DraftState = "Drafting"
	StateGenerated DraftState = "Generated"
)

// MissingFieldsError blocks generation. Fields are labels, in schema order.
type MissingFieldsError struct {
	Type   DocumentType
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("%s: missing required fields: %s", e.Type, strings.Join(e.Fields, ", "))
}

// Draft is a document form being filled in.
type Draft struct {
	schema Schema
	values map[string]string
	state  DraftState
}

func NewDraft(t DocumentType) (*Draft, error) {
	schema, ok := SchemaFor(t)
	if !ok {
		return nil, fmt.Errorf("unknown document type %q", t)
	}
	return &Draft{schema: schema, values: make(map[string]string), state: StateDrafting}, nil
}

func (d *Draft) Type() DocumentType { return d.schema.Type }

func (d *Draft) Schema() Schema { return d.schema }

func (d *Draft) State() DraftState { return d.state }

// Set records one field value. Unknown fields are refused so the form cannot drift from its schema.
func (d *Draft) Set(name, value string) error {
	if d.state == StateGenerated {
		return fmt.Errorf("%s draft already generated: %w", d.schema.Type, utils.ErrInvalidTransition)
	}
	f, ok := d.schema.Field(name)
	if !ok {
		return utils.NewValidationError(name, "is not a field of "+string(d.schema.Type))
	}
	d.values[f.Name] = value
	return nil
}

func (d *Draft) SetAll(values map[string]string) error {
	for name, value := range values {
		if err := d.Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

func (d *Draft) Get(name string) string { return d.values[name] }

// Values is a copy of the captured field values.
func (d *Draft) Values() map[string]string {
	return maps.Clone(d.values)
}

// Missing lists the labels of required fields left blank.
func (d *Draft) Missing() []string {
	var missing []string
	for _, f := range d.schema.Fields {
		if f.Required && strings.TrimSpace(d.values[f.Name]) == "" {
			missing = append(missing, f.Label)
		}
	}
	return missing
}

// Check is the structural gate of Drafting → Generated: required fields filled,
// numbers numeric, dates parseable and select values from their options.
func (d *Draft) Check() error {
	if d.state != StateDrafting {
		return fmt.Errorf("%s draft is %s: %w", d.schema.Type, d.state, utils.ErrInvalidTransition)
	}
	if missing := d.Missing(); len(missing) > 0 {
		return &MissingFieldsError{Type: d.schema.Type, Fields: missing}
	}
	ve := &utils.ValidationError{Fields: map[string]string{}}
	for _, f := range d.schema.Fields {
		v := strings.TrimSpace(d.values[f.Name])
		if v == "" {
			continue
		}
		switch f.Kind {
		case FieldNumber:
			if _, err := utils.ParseDecimal(v); err != nil {
				ve.Fields[f.Name] = "must be a number"
			}
		case FieldDate:
			if _, err := time.Parse("2006-01-02", v); err != nil {
				ve.Fields[f.Name] = "must be a date (YYYY-MM-DD)"
			}
		case FieldSelect:
			if len(f.Options) > 0 && !containsFold(f.Options, v) {
				ve.Fields[f.Name] = "must be one of: " + strings.Join(f.Options, ", ")
			}
		}
	}
	if len(ve.Fields) > 0 {
		return ve
	}
	return nil
}

func (d *Draft) markGenerated() { d.state = StateGenerated }

func containsFold(options []string, v string) bool {
	for _, o := range options {
		if strings.EqualFold(o, v) {
			return true
		}
	}
	return false
}
