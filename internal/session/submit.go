package session

import (
	"fmt"
	"time"

	"github.com/ppiankov/crowdframe/internal/gold"
	"github.com/ppiankov/crowdframe/internal/ledger"
	"github.com/ppiankov/crowdframe/internal/logger"
	"github.com/ppiankov/crowdframe/internal/model"
	"github.com/ppiankov/crowdframe/internal/section"
)

// Outcome is the result of a submission
type Outcome struct {
	Section    section.Section `json:"section"`
	GoldChecks []bool          `json:"gold_checks"`
	TimeCheck  bool            `json:"time_check"`
	Passed     bool            `json:"passed"`
	TriesLeft  int             `json:"tries_left"`
}

// Submit ends the attempt from the last step: it runs the gold check,
// the time-spent check and moves to success, retry or fail. A gold
// configuration problem found at this point is returned as an error and
// leaves the session where it was.
func (s *Session) Submit() (*Outcome, error) {
	if !s.machine.Inputs().TaskStarted {
		return nil, fmt.Errorf("%w: task not started (section %s)", ErrInvalidTransition, s.Section())
	}
	step := s.StepIndex()
	if step != s.TotalSteps()-1 {
		return nil, fmt.Errorf("%w: submit from step %d, last step is %d", ErrInvalidTransition, step, s.TotalSteps()-1)
	}

	checks, err := gold.Perform(s.checker, goldItems(s.GoldDocuments, s.Dimensions, s.responses, s.notes))
	if err != nil {
		logger.Error("session %s: gold check failed: %v", s.ID, err)
		return nil, fmt.Errorf("gold check: %w", err)
	}

	s.leave(step)
	s.goldChecks = checks
	s.timeCheck = s.timeSpentCheck()
	passed := gold.Passed(checks) && s.timeCheck

	cur := s.machine.Update(func(in *section.Inputs) {
		in.TaskStarted = false
		in.CheckCompleted = false
		in.TaskCompleted = true
		in.TaskSuccessful = passed
		in.TaskFailed = !passed
		if !passed && in.AllowedTries > 0 {
			in.AllowedTries--
		}
	})

	out := &Outcome{
		Section:    cur,
		GoldChecks: s.GoldChecks(),
		TimeCheck:  s.timeCheck,
		Passed:     passed,
		TriesLeft:  s.TriesLeft(),
	}
	s.emit(ActionSubmit, out)
	s.emit(ActionFinalData, s.Snapshot())
	logger.Info("session %s: try %d submitted, passed=%v, section %s", s.ID, s.tryCurrent, passed, cur)
	return out, nil
}

// Retry starts a new attempt from the first document. Ledgers, notes and
// form values are kept.
func (s *Session) Retry() error {
	if err := s.expect(section.Retry); err != nil {
		return err
	}
	s.tryCurrent++
	for i := range s.Documents {
		s.Documents[i].CountdownExpired = false
	}
	first := s.questionnaireAmountStart
	s.machine.Update(func(in *section.Inputs) {
		in.TaskStarted = true
		in.CheckCompleted = true
		in.TaskCompleted = false
		in.TaskSuccessful = false
		in.TaskFailed = false
		in.StepIndex = first
	})
	s.emit(ActionRetry, map[string]any{"try_current": s.tryCurrent, "tries_left": s.TriesLeft()})
	s.enter(first)
	return nil
}

// timeSpentCheck requires every document to have been worked on for at
// least time_check_amount seconds. Zero disables the check.
func (s *Session) timeSpentCheck() bool {
	required := time.Duration(s.Settings.TimeCheckAmount) * time.Second
	if required <= 0 {
		return true
	}
	for i := range s.Documents {
		if s.TimeSpent(s.questionnaireAmountStart+i) < required {
			return false
		}
	}
	return true
}

// goldItems builds the gold configuration from the ledgers. Answers are
// the latest value of each field, limited to gold dimensions when any
// dimension is flagged gold.
func goldItems(docs []*model.Document, dims []model.Dimension, responses *ledger.Responses, notes map[int][]model.Note) []gold.Item {
	var goldDims map[int]bool
	for i := range dims {
		if dims[i].Gold {
			if goldDims == nil {
				goldDims = make(map[int]bool)
			}
			goldDims[dims[i].Index] = true
		}
	}

	items := make([]gold.Item, 0, len(docs))
	for _, d := range docs {
		answers := make(map[string]any)
		for _, e := range responses.Values.Entries(d.Index) {
			if e.Payload.Field == "" {
				continue
			}
			if goldDims != nil && !goldDims[e.Dimension] {
				continue
			}
			answers[e.Payload.Field] = e.Payload.Value
		}
		items = append(items, gold.Item{
			Document: *d,
			Answers:  answers,
			Notes:    notes[d.Index],
		})
	}
	return items
}
