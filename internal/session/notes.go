package session

import (
	"fmt"

	"github.com/ppiankov/crowdframe/internal/model"
)

// NoteField is the document attribute notes are highlighted on
const NoteField = "text"

func (s *Session) noteText(doc int) string {
	d := &s.Documents[doc]
	if t := d.String(NoteField); t != "" {
		return t
	}
	return d.String("statement")
}

// AddNote highlights text[start:end] of the active document with an
// annotator option
func (s *Session) AddNote(start, end int, option string) (model.Note, error) {
	doc, err := s.activeDocument()
	if err != nil {
		return model.Note{}, err
	}
	a := s.Settings.Annotator
	if a == nil {
		return model.Note{}, fmt.Errorf("task has no annotator")
	}
	if !a.HasOption(option) {
		return model.Note{}, fmt.Errorf("annotator has no option %q", option)
	}

	kind := model.NoteStandard
	if a.Type == model.AnnotatorLaws {
		kind = model.NoteLaws
	}
	n, err := model.NewNote(kind, doc, s.noteText(doc), start, end, option, s.now())
	if err != nil {
		return model.Note{}, err
	}
	for _, v := range a.Values {
		if v.Label == option {
			n.Color = v.Color
		}
	}

	s.notes[doc] = append(s.notes[doc], n)
	s.emit(ActionNote, map[string]any{"event": "add", "note": n.Clone()})
	return n.Clone(), nil
}

// AddInnerNote attaches an inner reference to a laws note on the active
// document
func (s *Session) AddInnerNote(noteID string, start, end int, year, number string) (model.Note, error) {
	doc, err := s.activeDocument()
	if err != nil {
		return model.Note{}, err
	}
	outer, err := s.note(doc, noteID)
	if err != nil {
		return model.Note{}, err
	}
	if outer.Kind != model.NoteLaws {
		return model.Note{}, fmt.Errorf("note %s does not take inner references", noteID)
	}

	inner, err := model.NewNote(model.NoteLaws, doc, s.noteText(doc), start, end, outer.Option, s.now())
	if err != nil {
		return model.Note{}, err
	}
	inner.Year = model.FlexString(year)
	inner.Number = model.FlexString(number)
	outer.AddInner(inner)

	s.emit(ActionNote, map[string]any{"event": "inner", "note": outer.Clone()})
	return inner, nil
}

// UpdateNote mutates a note of the active document and bumps its version
func (s *Session) UpdateNote(noteID string, fn func(*model.Note)) error {
	doc, err := s.activeDocument()
	if err != nil {
		return err
	}
	n, err := s.note(doc, noteID)
	if err != nil {
		return err
	}
	n.Update(fn)
	s.emit(ActionNote, map[string]any{"event": "update", "note": n.Clone()})
	return nil
}

// DeleteNote soft-deletes a note of the active document
func (s *Session) DeleteNote(noteID string) error {
	doc, err := s.activeDocument()
	if err != nil {
		return err
	}
	n, err := s.note(doc, noteID)
	if err != nil {
		return err
	}
	if n.Deleted {
		return nil
	}
	n.MarkDeleted(s.now())
	s.emit(ActionNote, map[string]any{"event": "delete", "note": n.Clone()})
	return nil
}

func (s *Session) note(doc int, id string) (*model.Note, error) {
	notes := s.notes[doc]
	for i := range notes {
		if notes[i].ID == id {
			return &notes[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s on document %d", ErrUnknownNote, id, doc)
}
