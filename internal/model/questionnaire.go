package model

import (
	"encoding/json"
	"strings"
)

// Position places a questionnaire before or after the documents
type Position string

const (
	PositionStart Position = "start"
	PositionEnd   Position = "end"
)

// Questionnaire is a block of questions shown outside the document steps
type Questionnaire struct {
	Index       int        `json:"index"`
	Type        string     `json:"type"` // standard, likert, crt
	Description string     `json:"description,omitempty"`
	Position    Position   `json:"position,omitempty"`
	Questions   []Question `json:"questions"`
	Mapping     []string   `json:"mapping,omitempty"` // likert labels
}

// Question is a node of the question tree. Sub-questions nest without limit.
type Question struct {
	Index     int        `json:"index"`
	Name      string     `json:"name"`
	Text      string     `json:"text,omitempty"`
	Type      string     `json:"type,omitempty"`
	Required  bool       `json:"required"`
	Answers   []string   `json:"answers,omitempty"`
	Questions []Question `json:"questions,omitempty"`
	NameFull  string     `json:"name_full"`
}

// EffectivePosition treats a missing position as start
func (q *Questionnaire) EffectivePosition() Position {
	if q.Position == PositionEnd {
		return PositionEnd
	}
	return PositionStart
}

// Clone returns a copy that shares no memory with q
func (q Questionnaire) Clone() Questionnaire {
	c := q
	c.Questions = cloneQuestions(q.Questions)
	if q.Mapping != nil {
		c.Mapping = append([]string(nil), q.Mapping...)
	}
	return c
}

func cloneQuestions(nodes []Question) []Question {
	if nodes == nil {
		return nil
	}
	out := make([]Question, len(nodes))
	for i, n := range nodes {
		out[i] = n
		if n.Answers != nil {
			out[i].Answers = append([]string(nil), n.Answers...)
		}
		out[i].Questions = cloneQuestions(n.Questions)
	}
	return out
}

// AssignNames fills NameFull on every question of the tree by joining
// ancestor names with "_".
func (q *Questionnaire) AssignNames() {
	for i := range q.Questions {
		q.Questions[i].Index = i
		assignNames(&q.Questions[i], nil)
	}
}

func assignNames(node *Question, ancestors []string) {
	path := append(append([]string(nil), ancestors...), node.Name)
	node.NameFull = strings.Join(path, "_")
	for i := range node.Questions {
		node.Questions[i].Index = i
		assignNames(&node.Questions[i], path)
	}
}

// Walk visits every question of the tree depth-first
func (q *Questionnaire) Walk(fn func(*Question)) {
	var walk func(nodes []Question)
	walk = func(nodes []Question) {
		for i := range nodes {
			fn(&nodes[i])
			walk(nodes[i].Questions)
		}
	}
	walk(q.Questions)
}

// ParseQuestionnaires decodes questionnaires and assigns full names
func ParseQuestionnaires(data []byte) ([]Questionnaire, error) {
	var qs []Questionnaire
	if err := json.Unmarshal(data, &qs); err != nil {
		return nil, Invalidf("questionnaire", "decode questionnaires: %v", err)
	}
	for i := range qs {
		qs[i].Index = i
		switch qs[i].Position {
		case "", PositionStart, PositionEnd:
		default:
			return nil, Invalidf("questionnaire", "questionnaire %d: unknown position %q", i, qs[i].Position)
		}
		qs[i].AssignNames()
	}
	return qs, nil
}

// SplitByPosition counts start and end questionnaires
func SplitByPosition(qs []Questionnaire) (start, end int) {
	for i := range qs {
		if qs[i].EffectivePosition() == PositionEnd {
			end++
		} else {
			start++
		}
	}
	return start, end
}
