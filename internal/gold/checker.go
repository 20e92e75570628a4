// Package gold decides whether a worker passed the hidden quality checks
// placed in a batch.
package gold

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/crowdframe/internal/model"
)

// Item is the gold configuration for one gold document: the document,
// the worker's answers for it and the worker's notes on it.
type Item struct {
	Document model.Document `json:"document"`
	Answers  map[string]any `json:"answers"`
	Notes    []model.Note   `json:"notes"`
}

// Checker is a gold-check policy
type Checker interface {
	// Name returns the policy name
	Name() string

	// Check returns the check vector for a non-empty set of gold items
	Check(items []Item) ([]bool, error)
}

// Policy names
const (
	PolicyAnnotations = "annotations"
	PolicyMagnitude   = "magnitude"
)

// Perform runs the checker. A batch without gold documents passes
// vacuously with a single true entry.
func Perform(c Checker, items []Item) ([]bool, error) {
	if len(items) == 0 {
		return []bool{true}, nil
	}
	return c.Check(items)
}

// Passed reports whether every entry of the vector is true
func Passed(checks []bool) bool {
	for _, ok := range checks {
		if !ok {
			return false
		}
	}
	return true
}

// ResolvePolicy picks the policy for a task. An explicit setting wins;
// otherwise laws annotators use annotation matching.
func ResolvePolicy(settings *model.Settings) string {
	if settings.GoldPolicy != "" {
		return settings.GoldPolicy
	}
	if settings.Annotator != nil && settings.Annotator.Type == model.AnnotatorLaws {
		return PolicyAnnotations
	}
	return PolicyMagnitude
}

// NewChecker creates the checker for a policy
func NewChecker(policy, taskType string) (Checker, error) {
	switch strings.ToLower(policy) {
	case PolicyAnnotations:
		return NewAnnotationChecker(), nil
	case PolicyMagnitude:
		return NewMagnitudeChecker(taskType), nil
	default:
		return nil, model.Invalidf("gold", "unknown gold policy %q (supported: %s, %s)", policy, PolicyAnnotations, PolicyMagnitude)
	}
}

// ValidateDocuments checks at construction time that the gold documents
// carry what the policy needs
func ValidateDocuments(policy, taskType string, gold []*model.Document) error {
	if len(gold) == 0 {
		return nil
	}
	switch strings.ToLower(policy) {
	case PolicyAnnotations:
		for _, d := range gold {
			if _, err := ParseGoldNotes(d); err != nil {
				return err
			}
		}
		return nil
	case PolicyMagnitude:
		ids := make(map[string]bool, len(gold))
		for _, d := range gold {
			ids[d.ID] = true
		}
		for _, id := range anchorsFor(taskType) {
			if !ids[id] {
				return model.Invalidf("gold", "anchor document %s missing from gold set", id)
			}
		}
		return nil
	default:
		return model.Invalidf("gold", "unknown gold policy %q", policy)
	}
}

var multiSpace = regexp.MustCompile(` {2,}`)

// Normalize collapses runs of two or more spaces into one
func Normalize(s string) string {
	return multiSpace.ReplaceAllString(s, " ")
}

func errMissingAnswer(id, field string) error {
	return fmt.Errorf("anchor %s has no answer for %s: %w", id, field, model.ErrInvalidConfig)
}
