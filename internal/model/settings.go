package model

import (
	"encoding/json"
)

// Settings holds the per-task configuration (task.json)
type Settings struct {
	TaskName        string `json:"task_name" yaml:"task_name"`
	BatchName       string `json:"batch_name" yaml:"batch_name"`
	TaskType        string `json:"task_type,omitempty" yaml:"task_type,omitempty"` // e.g. "Training"
	AllowedTries    int    `json:"allowed_tries" yaml:"allowed_tries"`
	TimeCheckAmount int    `json:"time_check_amount,omitempty" yaml:"time_check_amount,omitempty"` // minimum seconds per document

	Countdown Countdown  `json:"countdown" yaml:"countdown"`
	Annotator *Annotator `json:"annotator,omitempty" yaml:"annotator,omitempty"`

	// GoldPolicy selects the gold-check strategy: "annotations" or "magnitude".
	// Empty picks annotations for laws annotators and magnitude otherwise.
	GoldPolicy string `json:"gold_policy,omitempty" yaml:"gold_policy,omitempty"`

	BlacklistBatches []string `json:"blacklist_batches,omitempty" yaml:"blacklist_batches,omitempty"`
	WhitelistBatches []string `json:"whitelist_batches,omitempty" yaml:"whitelist_batches,omitempty"`

	SearchEngine SearchEngineSettings `json:"search_engine" yaml:"search_engine"`

	Messages []string `json:"messages,omitempty" yaml:"messages,omitempty"`
}

// Countdown configures the per-document timer
type Countdown struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Time    int  `json:"time" yaml:"time"` // seconds
}

// SearchEngineSettings configures the embedded search box
type SearchEngineSettings struct {
	Provider       string   `json:"provider,omitempty" yaml:"provider,omitempty"`
	BlockedDomains []string `json:"blocked_domains,omitempty" yaml:"blocked_domains,omitempty"`
	PageSize       int      `json:"page_size,omitempty" yaml:"page_size,omitempty"`
}

// AnnotatorType selects the annotation subsystem
type AnnotatorType string

const (
	AnnotatorOptions AnnotatorType = "options"
	AnnotatorLaws    AnnotatorType = "laws"
)

// Annotator configures free-text span highlighting
type Annotator struct {
	Type   AnnotatorType     `json:"type" yaml:"type"`
	Values []AnnotatorOption `json:"values,omitempty" yaml:"values,omitempty"`
}

// AnnotatorOption is one allowed annotation label
type AnnotatorOption struct {
	Label string `json:"label" yaml:"label"`
	Color string `json:"color,omitempty" yaml:"color,omitempty"`
}

// HasOption reports whether label is an allowed annotation option
func (a *Annotator) HasOption(label string) bool {
	if a == nil {
		return false
	}
	if len(a.Values) == 0 {
		return true
	}
	for _, v := range a.Values {
		if v.Label == label {
			return true
		}
	}
	return false
}

// Allows applies the batch block/allow lists to the batches a worker
// already took part in. A blocked batch always wins over the allow list.
func (s *Settings) Allows(previousBatches []string) bool {
	for _, b := range previousBatches {
		if contains(s.BlacklistBatches, b) {
			return false
		}
	}
	if len(s.WhitelistBatches) == 0 {
		return true
	}
	for _, b := range previousBatches {
		if contains(s.WhitelistBatches, b) {
			return true
		}
	}
	return false
}

// Validate checks settings that would invalidate collected data
func (s *Settings) Validate() error {
	if s.TaskName == "" {
		return Invalidf("settings", "task_name is required")
	}
	if s.BatchName == "" {
		return Invalidf("settings", "batch_name is required")
	}
	if s.AllowedTries < 0 {
		return Invalidf("settings", "allowed_tries must not be negative")
	}
	if s.Countdown.Enabled && s.Countdown.Time <= 0 {
		return Invalidf("settings", "countdown enabled without a positive time")
	}
	if s.Annotator != nil {
		switch s.Annotator.Type {
		case AnnotatorOptions, AnnotatorLaws:
		default:
			return Invalidf("settings", "unknown annotator type %q", s.Annotator.Type)
		}
	}
	return nil
}

// ParseSettings decodes task.json
func ParseSettings(data []byte) (*Settings, error) {
	s := &Settings{AllowedTries: 1}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, Invalidf("settings", "decode settings: %v", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Instruction is one page of task instructions
type Instruction struct {
	Caption string   `json:"caption,omitempty"`
	Text    string   `json:"text"`
	Steps   []string `json:"steps,omitempty"`
}

// ParseInstructions decodes an instructions file
func ParseInstructions(data []byte) ([]Instruction, error) {
	var out []Instruction
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, Invalidf("instructions", "decode instructions: %v", err)
	}
	return out, nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
