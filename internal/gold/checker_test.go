package gold

import (
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/crowdframe/internal/model"
)

func lawsDocument() model.Document {
	return model.Document{
		Index: 0,
		ID:    "GOLD_DOC_1",
		Attributes: map[string]any{
			"text":        "irrelevant",
			"gold_type":   []any{"law", "decree"},
			"gold_text":   []any{"Law  12  of 2019", "Decree 7"},
			"gold_number": []any{12, "7"},
			"gold_year":   []any{2019, "2001"},
			"gold_inner_notes": []any{
				[]any{map[string]any{"year": 1990, "number": 3}},
				[]any{},
			},
			"gold_inner_texts": []any{
				[]any{"Law 3 of 1990"},
				[]any{},
			},
		},
	}
}

func lawsNotes() []model.Note {
	return []model.Note{
		{
			Kind: model.NoteLaws, Option: "law", CurrentText: "Law 12 of 2019", Year: "2019", Number: "12",
			InnerAnnotations: []model.Note{{Year: "1990", Number: "3", CurrentText: "Law 3 of 1990"}},
		},
		{Kind: model.NoteLaws, Option: "decree", CurrentText: "Decree 7", Year: "2001", Number: "7"},
	}
}

func TestPerform_NoGoldDocumentsPasses(t *testing.T) {
	for _, c := range []Checker{NewAnnotationChecker(), NewMagnitudeChecker("")} {
		checks, err := Perform(c, nil)
		if err != nil {
			t.Fatalf("%s: expected no error, got %v", c.Name(), err)
		}
		if len(checks) != 1 || !checks[0] {
			t.Errorf("%s: expected [true], got %v", c.Name(), checks)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{"", "a", "a  b", "a     b   c", "  lead", "trail   ", "tab\t\tkept", "one space"}
	for _, s := range inputs {
		once := Normalize(s)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q vs %q", s, once, twice)
		}
		if strings.Contains(once, "  ") {
			t.Errorf("Expected no double spaces in %q", once)
		}
	}
	if got := Normalize("Law  12   of 2019"); got != "Law 12 of 2019" {
		t.Errorf("Expected collapsed text, got %q", got)
	}
}

func TestAnnotationChecker_ExactReproductionPasses(t *testing.T) {
	items := []Item{{Document: lawsDocument(), Notes: lawsNotes()}}
	checks, err := Perform(NewAnnotationChecker(), items)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(checks) != 1 || !checks[0] {
		t.Errorf("Expected [true], got %v", checks)
	}
}

func TestAnnotationChecker_RemovingAFieldFlipsOnlyThatNote(t *testing.T) {
	doc := lawsDocument()
	golds, err := ParseGoldNotes(&doc)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	mutations := []struct {
		name   string
		target int
		mutate func(*model.Note)
	}{
		{"year", 0, func(n *model.Note) { n.Year = "" }},
		{"number", 0, func(n *model.Note) { n.Number = "" }},
		{"type", 1, func(n *model.Note) { n.Option = "" }},
		{"text", 1, func(n *model.Note) { n.CurrentText = "" }},
		{"inner", 0, func(n *model.Note) { n.InnerAnnotations = nil }},
		{"inner year", 0, func(n *model.Note) { n.InnerAnnotations[0].Year = "1991" }},
	}

	for _, m := range mutations {
		t.Run(m.name, func(t *testing.T) {
			notes := lawsNotes()
			m.mutate(&notes[m.target])

			found := MatchGoldNotes(golds, notes)
			for i, f := range found {
				if i == m.target && f {
					t.Errorf("Expected gold note %d to be unfound", i)
				}
				if i != m.target && !f {
					t.Errorf("Expected gold note %d to stay found", i)
				}
			}

			checks, err := NewAnnotationChecker().Check([]Item{{Document: doc, Notes: notes}})
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if Passed(checks) {
				t.Error("Expected overall failure")
			}
		})
	}
}

func TestAnnotationChecker_DuplicateInnerCountsOnce(t *testing.T) {
	doc := lawsDocument()
	golds, _ := ParseGoldNotes(&doc)

	notes := lawsNotes()
	// Duplicated inner references still count each expected reference once
	notes[0].InnerAnnotations = append(notes[0].InnerAnnotations, notes[0].InnerAnnotations[0])
	if found := MatchGoldNotes(golds, notes); !found[0] {
		t.Error("Expected duplicate inner annotation to still match")
	}
}

func TestAnnotationChecker_NoInnerReferencesPassVacuously(t *testing.T) {
	g := []GoldNote{{Type: "law", Text: "x", Number: "1", Year: "2000"}}
	n := []model.Note{{Option: "law", CurrentText: "x", Number: "1", Year: "2000",
		InnerAnnotations: []model.Note{{Year: "1", Number: "1", CurrentText: "extra"}}}}
	if found := MatchGoldNotes(g, n); !found[0] {
		t.Error("Expected note without required inner references to match")
	}
}

func TestAnnotationChecker_DeletedNotesIgnored(t *testing.T) {
	notes := lawsNotes()
	notes[1].Deleted = true
	checks, err := NewAnnotationChecker().Check([]Item{{Document: lawsDocument(), Notes: notes}})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if Passed(checks) {
		t.Error("Expected deleted note not to satisfy the gold note")
	}
}

func TestAnnotationChecker_AnyMatchingDuplicateSuffices(t *testing.T) {
	notes := append(lawsNotes(), lawsNotes()...)
	notes[0].CurrentText = "wrong"
	checks, err := NewAnnotationChecker().Check([]Item{{Document: lawsDocument(), Notes: notes}})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !Passed(checks) {
		t.Errorf("Expected pass, got %v", checks)
	}
}

func TestAnnotationChecker_MissingKeysDoNotThrow(t *testing.T) {
	doc := model.Document{ID: "GOLD_EMPTY", Attributes: map[string]any{"text": "x"}}
	checks, err := NewAnnotationChecker().Check([]Item{{Document: doc}})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(checks) != 1 || !checks[0] {
		t.Errorf("Expected [true], got %v", checks)
	}
}

func TestParseGoldNotes_MismatchedArrays(t *testing.T) {
	doc := model.Document{ID: "GOLD_BAD", Attributes: map[string]any{
		"gold_type": []any{"law", "law"},
		"gold_text": []any{"a"},
	}}
	if _, err := ParseGoldNotes(&doc); !errors.Is(err, model.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func magnitudeItems(values map[string]any, field string) []Item {
	var items []Item
	for _, id := range []string{"GOLD_LINE_LOW", "GOLD_LINE_MEDIUM", "GOLD_LINE_HIGH", "GOLD_LOW", "GOLD_HIGH"} {
		v, ok := values[id]
		if !ok {
			continue
		}
		items = append(items, Item{
			Document: model.Document{ID: id},
			Answers:  map[string]any{field: v},
		})
	}
	return items
}

func TestMagnitudeChecker_TrainingOrdering(t *testing.T) {
	c := NewMagnitudeChecker(TaskTypeTraining)

	checks, err := c.Check(magnitudeItems(map[string]any{
		"GOLD_LINE_LOW": 1.0, "GOLD_LINE_MEDIUM": "2", "GOLD_LINE_HIGH": 3,
	}, "length_value"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(checks) != 4 {
		t.Fatalf("Expected 3 unconditional entries plus 1, got %v", checks)
	}
	for i := 0; i < 3; i++ {
		if !checks[i] {
			t.Errorf("Expected unconditional true at %d", i)
		}
	}
	if !checks[3] {
		t.Error("Expected ordering check to pass")
	}

	checks, err = c.Check(magnitudeItems(map[string]any{
		"GOLD_LINE_LOW": 1.0, "GOLD_LINE_MEDIUM": 2.0, "GOLD_LINE_HIGH": 2.0,
	}, "length_value"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if checks[len(checks)-1] {
		t.Error("Expected non-strict ordering to fail")
	}
	if Passed(checks) {
		t.Error("Expected overall failure")
	}
}

func TestMagnitudeChecker_TruthfulnessOrdering(t *testing.T) {
	c := NewMagnitudeChecker("Main")

	checks, err := c.Check(magnitudeItems(map[string]any{"GOLD_LOW": "10", "GOLD_HIGH": "90"}, "truthfulness_value"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(checks) != 3 || !Passed(checks) {
		t.Errorf("Expected [true true true], got %v", checks)
	}

	checks, _ = c.Check(magnitudeItems(map[string]any{"GOLD_LOW": 90, "GOLD_HIGH": 10}, "truthfulness_value"))
	if checks[2] {
		t.Error("Expected reversed anchors to fail")
	}
}

func TestMagnitudeChecker_NonAnchorGoldStillPushesTrue(t *testing.T) {
	items := magnitudeItems(map[string]any{"GOLD_LOW": 1, "GOLD_HIGH": 2}, "truthfulness_value")
	items = append(items, Item{Document: model.Document{ID: "GOLD_OTHER"}})
	checks, err := NewMagnitudeChecker("").Check(items)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(checks) != 4 || !Passed(checks) {
		t.Errorf("Expected 4 true entries, got %v", checks)
	}
}

func TestMagnitudeChecker_MissingAnchorAnswerIsConfigError(t *testing.T) {
	c := NewMagnitudeChecker("")

	items := []Item{
		{Document: model.Document{ID: "GOLD_LOW"}, Answers: map[string]any{}},
		{Document: model.Document{ID: "GOLD_HIGH"}, Answers: map[string]any{"truthfulness_value": 2}},
	}
	if _, err := c.Check(items); !errors.Is(err, model.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for missing answer, got %v", err)
	}

	if _, err := c.Check(items[1:]); !errors.Is(err, model.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for missing anchor document, got %v", err)
	}
}

func TestValidateDocuments(t *testing.T) {
	low := &model.Document{ID: "GOLD_LOW"}
	high := &model.Document{ID: "GOLD_HIGH"}

	if err := ValidateDocuments(PolicyMagnitude, "", []*model.Document{low, high}); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if err := ValidateDocuments(PolicyMagnitude, TaskTypeTraining, []*model.Document{low, high}); !errors.Is(err, model.ErrInvalidConfig) {
		t.Errorf("Expected missing line anchors error, got %v", err)
	}
	if err := ValidateDocuments(PolicyMagnitude, "", nil); err != nil {
		t.Errorf("Expected empty gold set to be valid, got %v", err)
	}
	if err := ValidateDocuments("coinflip", "", []*model.Document{low}); !errors.Is(err, model.ErrInvalidConfig) {
		t.Errorf("Expected unknown policy error, got %v", err)
	}
}

func TestResolvePolicy(t *testing.T) {
	laws := &model.Settings{Annotator: &model.Annotator{Type: model.AnnotatorLaws}}
	if got := ResolvePolicy(laws); got != PolicyAnnotations {
		t.Errorf("Expected annotations, got %s", got)
	}
	if got := ResolvePolicy(&model.Settings{}); got != PolicyMagnitude {
		t.Errorf("Expected magnitude, got %s", got)
	}
	explicit := &model.Settings{GoldPolicy: PolicyAnnotations}
	if got := ResolvePolicy(explicit); got != PolicyAnnotations {
		t.Errorf("Expected explicit policy, got %s", got)
	}
	if _, err := NewChecker("nope", ""); !errors.Is(err, model.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}
