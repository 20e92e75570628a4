package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Document is one evaluation unit shown to a worker
type Document struct {
	Index      int            `json:"index"`                // Position in the batch sequence
	ID         string         `json:"id"`                   // Opaque id, contains "GOLD" for gold units
	Attributes map[string]any `json:"attributes,omitempty"` // Domain fields (text, statement, url, ...)

	// CountdownExpired is set by the session when the document countdown fires
	CountdownExpired bool `json:"countdown_expired"`
}

// IsGold reports whether the document is a gold unit by naming convention
func (d *Document) IsGold() bool {
	return strings.Contains(d.ID, "GOLD")
}

// Value returns a raw attribute
func (d *Document) Value(field string) (any, bool) {
	v, ok := d.Attributes[field]
	return v, ok
}

// String returns an attribute rendered as a string ("" when absent)
func (d *Document) String(field string) string {
	v, ok := d.Attributes[field]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// Elements returns the number of paired elements for pairwise assessment.
// Documents without an "elements" array are treated as a plain pair.
func (d *Document) Elements() int {
	if v, ok := d.Attributes["elements"].([]any); ok && len(v) > 0 {
		return len(v)
	}
	return 2
}

// ParseDocuments decodes the batch payload (an array of free-form objects).
// Indexes are assigned from array position.
func ParseDocuments(data []byte) ([]Document, error) {
	var raw []map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, Invalidf("documents", "decode batch payload: %v", err)
	}

	docs := make([]Document, 0, len(raw))
	seen := make(map[string]bool)
	for i, attrs := range raw {
		id, ok := attrs["id"].(string)
		if !ok || id == "" {
			return nil, Invalidf("documents", "document %d has no string id", i)
		}
		if seen[id] {
			return nil, Invalidf("documents", "duplicate document id %q", id)
		}
		seen[id] = true
		delete(attrs, "id")
		docs = append(docs, Document{Index: i, ID: id, Attributes: attrs})
	}
	return docs, nil
}

// FlexString decodes from either a JSON string or a JSON number.
// Gold arrays and log sequences arrive in both shapes.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("flex string: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }
