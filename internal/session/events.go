package session

import (
	"fmt"

	"github.com/ppiankov/crowdframe/internal/form"
	"github.com/ppiankov/crowdframe/internal/ledger"
	"github.com/ppiankov/crowdframe/internal/model"
)

// SelectValue sets the value of a dimension on the active document and
// records it. Categorical values resolve their label and description.
func (s *Session) SelectValue(dimension int, value string) error {
	doc, err := s.activeDocument()
	if err != nil {
		return err
	}
	d, err := s.dimension(dimension)
	if err != nil {
		return err
	}
	if d.Scale == nil || d.IsPairwise() {
		return fmt.Errorf("dimension %s has no single value", d.Name)
	}

	name := d.Name + "_value"
	if err := s.forms[doc].Set(name, value); err != nil {
		return err
	}

	v := ledger.Value{Field: name, Value: value}
	if d.Scale.Type == model.ScaleCategorical {
		for _, opt := range d.Scale.Categorical.Mapping {
			if opt.Value == value {
				v.Label = opt.Label
				v.Description = opt.Description
				break
			}
		}
	}
	s.recordValue(doc, dimension, v)
	return nil
}

// SetField sets any field of the active document form. Value and element
// fields are recorded in the value ledger; the rest stay in the form.
func (s *Session) SetField(name, value string) error {
	doc, err := s.activeDocument()
	if err != nil {
		return err
	}
	f := s.forms[doc]
	if err := f.Set(name, value); err != nil {
		return err
	}
	field, _ := f.Field(name)

	switch field.Kind {
	case form.KindValue, form.KindElement:
		s.recordValue(doc, field.Dimension, ledger.Value{Field: name, Value: value})
	default:
		s.emit(ActionField, map[string]any{
			"document":  doc,
			"dimension": field.Dimension,
			"field":     name,
			"value":     value,
		})
	}
	return nil
}

// SetListOption checks or unchecks a multi-select option on the active
// document and records the synced value
func (s *Session) SetListOption(dimension int, option string, checked bool) error {
	doc, err := s.activeDocument()
	if err != nil {
		return err
	}
	d, err := s.dimension(dimension)
	if err != nil {
		return err
	}
	f := s.forms[doc]
	if err := f.SetListOption(d.Name, option, checked); err != nil {
		return err
	}
	name := d.Name + "_value"
	field, _ := f.Field(name)
	s.recordValue(doc, dimension, ledger.Value{Field: name, Value: field.Value()})
	return nil
}

func (s *Session) recordValue(doc, dimension int, v ledger.Value) {
	e := s.responses.RecordValue(doc, dimension, v)
	s.emit(ActionValue, e)
}

// RecordQuery records a search query typed on the active document
func (s *Session) RecordQuery(dimension int, text, provider string) (int, error) {
	doc, err := s.activeDocument()
	if err != nil {
		return 0, err
	}
	if _, err := s.dimension(dimension); err != nil {
		return 0, err
	}
	e := s.responses.RecordQuery(doc, dimension, ledger.Query{Text: text, Provider: provider})
	s.emit(ActionQuery, e)
	return doc, nil
}

// RecordRetrieved records a retrieval batch. The document is the one the
// query was typed on, which may no longer be the active one.
func (s *Session) RecordRetrieved(document, dimension int, results []model.SearchResult) error {
	if document < 0 || document >= len(s.Documents) {
		return fmt.Errorf("document %d out of range", document)
	}
	if _, err := s.dimension(dimension); err != nil {
		return err
	}
	entries := s.responses.RecordRetrieved(document, dimension, results)
	s.emit(ActionRetrieved, map[string]any{
		"document":  document,
		"dimension": dimension,
		"amount":    len(entries),
		"entries":   entries,
	})
	return nil
}

// SelectResult records a search result picked on the active document and
// fills the dimension's url field when it has one
func (s *Session) SelectResult(dimension int, result model.SearchResult) error {
	doc, err := s.activeDocument()
	if err != nil {
		return err
	}
	d, err := s.dimension(dimension)
	if err != nil {
		return err
	}
	e := s.responses.RecordSelected(doc, dimension, result)
	if d.URL {
		if err := s.forms[doc].Set(d.Name+"_url", result.URL); err != nil {
			return err
		}
	}
	s.emit(ActionSelected, e)
	return nil
}

// AnswerQuestion stores an answer on the active questionnaire
func (s *Session) AnswerQuestion(nameFull, value string) error {
	q, ok := s.ActiveQuestionnaire()
	if !ok {
		return fmt.Errorf("%w (section %s)", ErrNoActiveQuestionnaire, s.Section())
	}
	var found bool
	s.Questionnaires[q].Walk(func(node *model.Question) {
		if node.NameFull == nameFull {
			found = true
		}
	})
	if !found {
		return fmt.Errorf("questionnaire %d has no question %q", q, nameFull)
	}
	s.answers[q][nameFull] = value
	s.emit(ActionAnswer, map[string]any{
		"questionnaire": q,
		"question":      nameFull,
		"value":         value,
	})
	return nil
}

// MissingAnswers lists the required questions of a questionnaire that have
// no answer yet
func (s *Session) MissingAnswers(questionnaire int) []string {
	if questionnaire < 0 || questionnaire >= len(s.Questionnaires) {
		return nil
	}
	var missing []string
	s.Questionnaires[questionnaire].Walk(func(node *model.Question) {
		if node.Required && s.answers[questionnaire][node.NameFull] == "" {
			missing = append(missing, node.NameFull)
		}
	})
	return missing
}
