package model

import (
	"encoding/json"
	"fmt"
)

// Dimension is one axis of assessment a worker answers about each document
type Dimension struct {
	Index         int            `json:"index"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	Justification *Justification `json:"justification,omitempty"`
	URL           bool           `json:"url"`
	Gold          bool           `json:"gold"`
	Scale         *Scale         `json:"scale,omitempty"`
}

// Justification requires a free-text field with a minimum word count
type Justification struct {
	Text     string `json:"text"`
	MinWords int    `json:"min_words"`
}

// ScaleType is the discriminant of the Scale variant
type ScaleType string

const (
	ScaleCategorical ScaleType = "categorical"
	ScaleInterval    ScaleType = "interval"
	ScaleMagnitude   ScaleType = "magnitude_estimation"
	ScalePairwise    ScaleType = "pairwise"
)

// Scale is a closed tagged union. Exactly the variant named by Type is set.
type Scale struct {
	Type        ScaleType
	Categorical *CategoricalScale
	Interval    *IntervalScale
	Magnitude   *MagnitudeScale
	Pairwise    *PairwiseScale
}

// MappingOption is one selectable label of a categorical scale
type MappingOption struct {
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Value       string `json:"value"`
}

type CategoricalScale struct {
	Mapping           []MappingOption `json:"mapping"`
	MultipleSelection bool            `json:"multipleSelection"`
}

type IntervalScale struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
}

// MagnitudeScale is open-ended above Min. Without LowerBound the literal
// minimum is reserved and not an accepted answer.
type MagnitudeScale struct {
	Min        float64 `json:"min"`
	LowerBound bool    `json:"lower_bound"`
}

type PairwiseScale struct {
	Statements []string `json:"statements"`
}

type scaleHeader struct {
	Type ScaleType `json:"type"`
}

func (s *Scale) UnmarshalJSON(b []byte) error {
	var h scaleHeader
	if err := json.Unmarshal(b, &h); err != nil {
		return fmt.Errorf("scale header: %w", err)
	}
	*s = Scale{Type: h.Type}
	switch h.Type {
	case ScaleCategorical:
		s.Categorical = &CategoricalScale{}
		return json.Unmarshal(b, s.Categorical)
	case ScaleInterval:
		s.Interval = &IntervalScale{Step: 1}
		return json.Unmarshal(b, s.Interval)
	case ScaleMagnitude:
		s.Magnitude = &MagnitudeScale{}
		return json.Unmarshal(b, s.Magnitude)
	case ScalePairwise:
		s.Pairwise = &PairwiseScale{}
		return json.Unmarshal(b, s.Pairwise)
	default:
		return fmt.Errorf("unknown scale type %q", h.Type)
	}
}

func (s Scale) MarshalJSON() ([]byte, error) {
	var body any
	switch s.Type {
	case ScaleCategorical:
		body = s.Categorical
	case ScaleInterval:
		body = s.Interval
	case ScaleMagnitude:
		body = s.Magnitude
	case ScalePairwise:
		body = s.Pairwise
	default:
		return nil, fmt.Errorf("unknown scale type %q", s.Type)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = make(map[string]any)
	}
	fields["type"] = s.Type
	return json.Marshal(fields)
}

// Validate checks the dimension and its scale variant
func (d *Dimension) Validate() error {
	if d.Name == "" {
		return Invalidf("dimension", "dimension %d has no name", d.Index)
	}
	if d.Justification != nil && d.Justification.MinWords < 0 {
		return Invalidf("dimension", "%s: min_words must not be negative", d.Name)
	}
	if d.Scale == nil {
		return nil
	}

	s := d.Scale
	set := 0
	for _, p := range []bool{s.Categorical != nil, s.Interval != nil, s.Magnitude != nil, s.Pairwise != nil} {
		if p {
			set++
		}
	}
	if set != 1 {
		return Invalidf("dimension", "%s: scale must have exactly one variant, got %d", d.Name, set)
	}

	switch s.Type {
	case ScaleCategorical:
		if s.Categorical == nil || len(s.Categorical.Mapping) == 0 {
			return Invalidf("dimension", "%s: categorical scale has no mapping", d.Name)
		}
	case ScaleInterval:
		if s.Interval == nil {
			return Invalidf("dimension", "%s: interval scale missing", d.Name)
		}
		if s.Interval.Min > s.Interval.Max {
			return Invalidf("dimension", "%s: interval min %v exceeds max %v", d.Name, s.Interval.Min, s.Interval.Max)
		}
		if s.Interval.Step <= 0 {
			return Invalidf("dimension", "%s: interval step must be positive", d.Name)
		}
	case ScaleMagnitude:
		if s.Magnitude == nil {
			return Invalidf("dimension", "%s: magnitude scale missing", d.Name)
		}
	case ScalePairwise:
		if s.Pairwise == nil {
			return Invalidf("dimension", "%s: pairwise scale missing", d.Name)
		}
	default:
		return Invalidf("dimension", "%s: unknown scale type %q", d.Name, s.Type)
	}
	return nil
}

// IsPairwise reports whether the dimension is assessed per paired element
func (d *Dimension) IsPairwise() bool {
	return d.Scale != nil && d.Scale.Type == ScalePairwise
}

// ParseDimensions decodes and validates the dimensions configuration
func ParseDimensions(data []byte) ([]Dimension, error) {
	var dims []Dimension
	if err := json.Unmarshal(data, &dims); err != nil {
		return nil, Invalidf("dimension", "decode dimensions: %v", err)
	}
	names := make(map[string]bool)
	for i := range dims {
		dims[i].Index = i
		if err := dims[i].Validate(); err != nil {
			return nil, err
		}
		if names[dims[i].Name] {
			return nil, Invalidf("dimension", "duplicate dimension name %q", dims[i].Name)
		}
		names[dims[i].Name] = true
	}
	return dims, nil
}
