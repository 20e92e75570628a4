package gold

import (
	"encoding/json"

	"github.com/ppiankov/crowdframe/internal/model"
)

// GoldNote is one expected citation annotation on a gold document
type GoldNote struct {
	Type       string
	Text       string
	Number     string
	Year       string
	InnerNotes []InnerRef
	InnerTexts []string
}

// InnerRef identifies an inner reference by year and number
type InnerRef struct {
	Year   model.FlexString `json:"year"`
	Number model.FlexString `json:"number"`
}

// goldSpec mirrors the parallel arrays stored on a gold document
type goldSpec struct {
	Types      []model.FlexString   `json:"gold_type"`
	Texts      []model.FlexString   `json:"gold_text"`
	Numbers    []model.FlexString   `json:"gold_number"`
	Years      []model.FlexString   `json:"gold_year"`
	InnerNotes [][]InnerRef         `json:"gold_inner_notes"`
	InnerTexts [][]model.FlexString `json:"gold_inner_texts"`
}

// ParseGoldNotes zips the parallel gold arrays of a document into gold
// notes. Missing keys mean no expected notes; mismatched lengths are a
// configuration error.
func ParseGoldNotes(d *model.Document) ([]GoldNote, error) {
	raw, err := json.Marshal(d.Attributes)
	if err != nil {
		return nil, model.Invalidf("gold", "document %s: encode attributes: %v", d.ID, err)
	}
	var spec goldSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return nil, model.Invalidf("gold", "document %s: decode gold arrays: %v", d.ID, err)
	}

	n := len(spec.Types)
	if len(spec.Texts) != n || len(spec.Numbers) != n || len(spec.Years) != n {
		return nil, model.Invalidf("gold", "document %s: gold arrays differ in length (type=%d text=%d number=%d year=%d)",
			d.ID, n, len(spec.Texts), len(spec.Numbers), len(spec.Years))
	}
	if spec.InnerTexts != nil && len(spec.InnerTexts) != n {
		return nil, model.Invalidf("gold", "document %s: gold_inner_texts has %d entries, want %d", d.ID, len(spec.InnerTexts), n)
	}
	if spec.InnerNotes != nil && len(spec.InnerNotes) != n {
		return nil, model.Invalidf("gold", "document %s: gold_inner_notes has %d entries, want %d", d.ID, len(spec.InnerNotes), n)
	}

	notes := make([]GoldNote, n)
	for i := 0; i < n; i++ {
		g := GoldNote{
			Type:   spec.Types[i].String(),
			Text:   spec.Texts[i].String(),
			Number: spec.Numbers[i].String(),
			Year:   spec.Years[i].String(),
		}
		if spec.InnerTexts != nil {
			for _, t := range spec.InnerTexts[i] {
				g.InnerTexts = append(g.InnerTexts, t.String())
			}
		}
		if spec.InnerNotes != nil {
			g.InnerNotes = spec.InnerNotes[i]
		}
		if len(g.InnerNotes) != len(g.InnerTexts) {
			return nil, model.Invalidf("gold", "document %s: gold note %d has %d inner notes for %d inner texts",
				d.ID, i, len(g.InnerNotes), len(g.InnerTexts))
		}
		notes[i] = g
	}
	return notes, nil
}

// AnnotationChecker passes a gold document when every expected citation
// was annotated by the worker
type AnnotationChecker struct{}

func NewAnnotationChecker() *AnnotationChecker {
	return &AnnotationChecker{}
}

func (c *AnnotationChecker) Name() string { return PolicyAnnotations }

// Check returns one entry per gold document
func (c *AnnotationChecker) Check(items []Item) ([]bool, error) {
	checks := make([]bool, 0, len(items))
	for i := range items {
		golds, err := ParseGoldNotes(&items[i].Document)
		if err != nil {
			return nil, err
		}
		checks = append(checks, Passed(MatchGoldNotes(golds, items[i].Notes)))
	}
	return checks, nil
}

// MatchGoldNotes reports for each gold note whether some live worker note
// matches it. Found is monotonic: once matched a gold note stays found.
func MatchGoldNotes(golds []GoldNote, notes []model.Note) []bool {
	found := make([]bool, len(golds))
	for _, n := range notes {
		if n.Deleted {
			continue
		}
		for i := range golds {
			if found[i] {
				continue
			}
			if noteMatches(&golds[i], &n) {
				found[i] = true
			}
		}
	}
	return found
}

func noteMatches(g *GoldNote, n *model.Note) bool {
	if n.Year.String() != g.Year || n.Number.String() != g.Number {
		return false
	}
	if n.Option != g.Type {
		return false
	}
	if n.CurrentText != Normalize(g.Text) {
		return false
	}
	return innerMatches(g, n)
}

// innerMatches counts the expected inner references present on the note;
// the count must equal the number required, not exceed it.
func innerMatches(g *GoldNote, n *model.Note) bool {
	matched := 0
	for j, text := range g.InnerTexts {
		ref := g.InnerNotes[j]
		for _, inner := range n.InnerAnnotations {
			if inner.Deleted {
				continue
			}
			if inner.Year == ref.Year && inner.Number == ref.Number && inner.CurrentText == text {
				matched++
				break
			}
		}
	}
	return matched == len(g.InnerTexts)
}
