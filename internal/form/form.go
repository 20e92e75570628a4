// Package form derives the input fields a document needs from the
// dimension configuration and validates their values.
package form

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/crowdframe/internal/model"
)

// Context is the read access a form needs to the session that owns it
type Context interface {
	StepIndex() int
	QuestionnaireAmountStart() int
	DocumentsAmount() int

	// LatestSelectedURL returns the URL most recently selected from search
	// results for a document
	LatestSelectedURL(document int) (string, bool)

	// LatestRetrievedURLs returns the URLs of the most recent retrieval
	// batch for a document dimension
	LatestRetrievedURLs(document, dimension int) []string
}

// Kind identifies which control of a dimension a field backs
type Kind string

const (
	KindValue         Kind = "value"
	KindJustification Kind = "justification"
	KindURL           Kind = "url"
	KindList          Kind = "list"
	KindElement       Kind = "element"
)

// Field is one input slot of a document form
type Field struct {
	Name      string   `json:"name"`
	Kind      Kind     `json:"kind"`
	Dimension int      `json:"dimension"`
	Element   int      `json:"element"` // -1 unless Kind is KindElement
	Required  bool     `json:"required"`
	Min       *float64 `json:"min,omitempty"`
	Options   []string `json:"options,omitempty"` // list controls only

	value      string
	checked    map[string]bool
	validators []Validator
}

// Value returns the current value of the field
func (f *Field) Value() string {
	return f.value
}

// Form is the field set of one document
type Form struct {
	Document int

	fields []*Field
	byName map[string]*Field
}

// Assemble builds the form of a document. Pairwise dimensions get one
// value field per paired element; all other dimensions get a value field
// plus optional justification, url and list controls.
func Assemble(doc *model.Document, dims []model.Dimension, ctx Context) *Form {
	f := &Form{Document: doc.Index, byName: make(map[string]*Field)}

	for i := range dims {
		d := &dims[i]
		if d.IsPairwise() {
			for j := 0; j < doc.Elements(); j++ {
				f.add(&Field{
					Name:       fmt.Sprintf("%s_value_element_%d", d.Name, j),
					Kind:       KindElement,
					Dimension:  d.Index,
					Element:    j,
					Required:   true,
					validators: []Validator{required},
				})
			}
			continue
		}

		if d.Scale != nil {
			f.addScale(d)
		}

		if d.Justification != nil {
			f.add(&Field{
				Name:       d.Name + "_justification",
				Kind:       KindJustification,
				Dimension:  d.Index,
				Element:    -1,
				Required:   true,
				validators: []Validator{required, justification(ctx, doc.Index, d.Justification.MinWords)},
			})
		}

		if d.URL {
			f.add(&Field{
				Name:       d.Name + "_url",
				Kind:       KindURL,
				Dimension:  d.Index,
				Element:    -1,
				validators: []Validator{retrievedURL(ctx, d.Index)},
			})
		}
	}
	return f
}

func (f *Form) addScale(d *model.Dimension) {
	value := &Field{
		Name:       d.Name + "_value",
		Kind:       KindValue,
		Dimension:  d.Index,
		Element:    -1,
		Required:   true,
		validators: []Validator{required},
	}

	switch d.Scale.Type {
	case model.ScaleCategorical:
		if d.Scale.Categorical.MultipleSelection {
			list := &Field{
				Name:      d.Name + "_list",
				Kind:      KindList,
				Dimension: d.Index,
				Element:   -1,
				checked:   make(map[string]bool),
			}
			for _, opt := range d.Scale.Categorical.Mapping {
				list.Options = append(list.Options, opt.Value)
				list.checked[opt.Value] = false
			}
			f.add(value)
			f.add(list)
			return
		}
	case model.ScaleInterval:
		setMin(value, d.Scale.Interval.Min)
	case model.ScaleMagnitude:
		m := d.Scale.Magnitude.Min
		if !d.Scale.Magnitude.LowerBound {
			m++
		}
		setMin(value, m)
	}
	f.add(value)
}

func setMin(field *Field, m float64) {
	field.Min = &m
	field.validators = append(field.validators, minimum(m))
}

func (f *Form) add(field *Field) {
	f.fields = append(f.fields, field)
	f.byName[field.Name] = field
}

// Field returns a field by name
func (f *Form) Field(name string) (*Field, bool) {
	field, ok := f.byName[name]
	return field, ok
}

// Fields returns the fields in assembly order
func (f *Form) Fields() []*Field {
	return f.fields
}

// Set stores a value. It never validates and never touches the ledger.
func (f *Form) Set(name, value string) error {
	field, ok := f.byName[name]
	if !ok {
		return fmt.Errorf("document %d has no field %q", f.Document, name)
	}
	if field.Kind == KindList {
		return fmt.Errorf("field %q is a list, use SetListOption", name)
	}
	field.value = value
	return nil
}

// SetListOption checks or unchecks one option of a multi-select list and
// syncs the dimension's value field: empty when nothing is checked,
// otherwise the serialized list state.
func (f *Form) SetListOption(dimension, option string, checked bool) error {
	list, ok := f.byName[dimension+"_list"]
	if !ok {
		return fmt.Errorf("dimension %q has no list on document %d", dimension, f.Document)
	}
	if _, known := list.checked[option]; !known {
		return fmt.Errorf("dimension %q has no option %q", dimension, option)
	}
	list.checked[option] = checked

	value := f.byName[dimension+"_value"]
	selected := false
	for _, c := range list.checked {
		if c {
			selected = true
			break
		}
	}
	if !selected {
		value.value = ""
		return nil
	}
	raw, err := json.Marshal(list.checked)
	if err != nil {
		return fmt.Errorf("encode list state: %w", err)
	}
	value.value = string(raw)
	return nil
}

// Checked returns the checked options of a list in option order
func (f *Form) Checked(dimension string) []string {
	list, ok := f.byName[dimension+"_list"]
	if !ok {
		return nil
	}
	var out []string
	for _, opt := range list.Options {
		if list.checked[opt] {
			out = append(out, opt)
		}
	}
	return out
}

// Validate runs every validator of every field. The first failing
// validator of a field decides its code.
func (f *Form) Validate() []ValidationError {
	var errs []ValidationError
	for _, field := range f.fields {
		for _, v := range field.validators {
			if code := v(field.value); code != "" {
				errs = append(errs, ValidationError{Field: field.Name, Code: code})
				break
			}
		}
	}
	return errs
}

// Valid reports whether the form has no validation errors
func (f *Form) Valid() bool {
	return len(f.Validate()) == 0
}

// Values returns the non-list field values keyed by field name
func (f *Form) Values() map[string]any {
	out := make(map[string]any, len(f.fields))
	for _, field := range f.fields {
		if field.Kind == KindList {
			continue
		}
		if field.value == "" {
			continue
		}
		out[field.Name] = field.value
	}
	return out
}

// Names returns the field names in sorted order
func (f *Form) Names() []string {
	names := make([]string, 0, len(f.fields))
	for _, field := range f.fields {
		names = append(names, field.Name)
	}
	sort.Strings(names)
	return names
}

// Words splits text on spaces and drops empty tokens
func Words(text string) []string {
	var words []string
	for _, t := range strings.Split(text, " ") {
		if t = strings.TrimSpace(t); t != "" {
			words = append(words, t)
		}
	}
	return words
}
