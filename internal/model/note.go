package model

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ErrInvalidSpan is returned when a highlight does not cover a valid
// range of the document text
var ErrInvalidSpan = errors.New("invalid note span")

// NoteKind separates flat notes from citation notes with inner references
type NoteKind string

const (
	NoteStandard NoteKind = "standard"
	NoteLaws     NoteKind = "laws"
)

// Note is a worker-created span annotation over document text.
// Version increases on every mutation and is never reset.
type Note struct {
	ID            string   `json:"id"`
	Kind          NoteKind `json:"kind"`
	DocumentIndex int      `json:"document_index"`
	Version       int      `json:"version"`
	Deleted       bool     `json:"deleted"`

	TimestampCreated time.Time  `json:"timestamp_created"`
	TimestampDeleted *time.Time `json:"timestamp_deleted,omitempty"`

	Option     string `json:"option"` // annotator label, the note "type"
	Color      string `json:"color,omitempty"`
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`

	// Text around and inside the span at creation time
	TextLeft    string `json:"text_left"`
	TextRight   string `json:"text_right"`
	CurrentText string `json:"current_text"`

	// Citation fields, laws notes only
	Year             FlexString `json:"year,omitempty"`
	Number           FlexString `json:"number,omitempty"`
	InnerAnnotations []Note     `json:"inner_annotations,omitempty"`
}

// NewNote creates a note over text[start:end]. Offsets are byte offsets
// and must satisfy 0 <= start <= end <= len(text) on rune boundaries.
func NewNote(kind NoteKind, documentIndex int, text string, start, end int, option string, now time.Time) (Note, error) {
	if start < 0 || end < start || end > len(text) {
		return Note{}, fmt.Errorf("%w: [%d:%d] on text of length %d", ErrInvalidSpan, start, end, len(text))
	}
	if !onRuneBoundary(text, start) || !onRuneBoundary(text, end) {
		return Note{}, fmt.Errorf("%w: [%d:%d] splits a character", ErrInvalidSpan, start, end)
	}
	return Note{
		ID:               uuid.New().String(),
		Kind:             kind,
		DocumentIndex:    documentIndex,
		Version:          0,
		TimestampCreated: now,
		Option:           option,
		StartIndex:       start,
		EndIndex:         end,
		TextLeft:         text[:start],
		TextRight:        text[end:],
		CurrentText:      text[start:end],
	}, nil
}

func onRuneBoundary(text string, i int) bool {
	return i == len(text) || utf8.RuneStart(text[i])
}

// Update applies fn and bumps the version
func (n *Note) Update(fn func(*Note)) {
	fn(n)
	n.Version++
}

// MarkDeleted soft-deletes the note
func (n *Note) MarkDeleted(now time.Time) {
	n.Update(func(n *Note) {
		n.Deleted = true
		n.TimestampDeleted = &now
	})
}

// Clone returns a copy that shares no memory with n
func (n Note) Clone() Note {
	c := n
	if n.TimestampDeleted != nil {
		ts := *n.TimestampDeleted
		c.TimestampDeleted = &ts
	}
	if n.InnerAnnotations != nil {
		c.InnerAnnotations = make([]Note, len(n.InnerAnnotations))
		for i, inner := range n.InnerAnnotations {
			c.InnerAnnotations[i] = inner.Clone()
		}
	}
	return c
}

// AddInner attaches an inner reference to a laws note
func (n *Note) AddInner(inner Note) {
	n.Update(func(n *Note) {
		n.InnerAnnotations = append(n.InnerAnnotations, inner)
	})
}

// SearchResult is the provider-independent shape of one retrieved result
type SearchResult struct {
	URL        string            `json:"url"`
	Name       string            `json:"name"`
	Snippet    string            `json:"snippet"`
	Parameters map[string]string `json:"parameters,omitempty"`
}
