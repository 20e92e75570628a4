package gold

import (
	"fmt"
	"strconv"
	"strings"
)

// Anchor document ids recognised by the magnitude policy
const (
	AnchorLow        = "GOLD_LOW"
	AnchorHigh       = "GOLD_HIGH"
	AnchorLineLow    = "GOLD_LINE_LOW"
	AnchorLineMedium = "GOLD_LINE_MEDIUM"
	AnchorLineHigh   = "GOLD_LINE_HIGH"
)

// TaskTypeTraining switches the magnitude policy to length anchors
const TaskTypeTraining = "Training"

// MagnitudeChecker asserts a strict ordering of the worker's numeric
// answers on anchor documents
type MagnitudeChecker struct {
	TaskType          string
	TruthfulnessField string
	LengthField       string
}

// NewMagnitudeChecker creates a checker reading the truthfulness_value and
// length_value answers
func NewMagnitudeChecker(taskType string) *MagnitudeChecker {
	return &MagnitudeChecker{
		TaskType:          taskType,
		TruthfulnessField: "truthfulness_value",
		LengthField:       "length_value",
	}
}

func (c *MagnitudeChecker) Name() string { return PolicyMagnitude }

// Check pushes an unconditional true per gold item and appends the real
// ordering result as the final entry.
//
// TODO(product): per-item checks are never evaluated, only the appended
// ordering flag can fail; confirm with the task owners before changing.
func (c *MagnitudeChecker) Check(items []Item) ([]bool, error) {
	training := c.TaskType == TaskTypeTraining
	field := c.TruthfulnessField
	if training {
		field = c.LengthField
	}

	values := make(map[string]float64)
	checks := make([]bool, 0, len(items)+1)
	for _, item := range items {
		checks = append(checks, true)
		if !isAnchor(item.Document.ID, c.TaskType) {
			continue
		}
		raw, ok := item.Answers[field]
		if !ok {
			return nil, errMissingAnswer(item.Document.ID, field)
		}
		v, err := toFloat(raw)
		if err != nil {
			return nil, fmt.Errorf("anchor %s: %w", item.Document.ID, err)
		}
		values[item.Document.ID] = v
	}

	for _, id := range anchorsFor(c.TaskType) {
		if _, ok := values[id]; !ok {
			return nil, errMissingAnswer(id, field)
		}
	}

	var ordered bool
	if training {
		ordered = values[AnchorLineLow] < values[AnchorLineMedium] && values[AnchorLineMedium] < values[AnchorLineHigh]
	} else {
		ordered = values[AnchorLow] < values[AnchorHigh]
	}
	return append(checks, ordered), nil
}

func anchorsFor(taskType string) []string {
	if taskType == TaskTypeTraining {
		return []string{AnchorLineLow, AnchorLineMedium, AnchorLineHigh}
	}
	return []string{AnchorLow, AnchorHigh}
}

func isAnchor(id, taskType string) bool {
	for _, a := range anchorsFor(taskType) {
		if id == a {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("answer %q is not numeric", t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("answer of type %T is not numeric", v)
	}
}
