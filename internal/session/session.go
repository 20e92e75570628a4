// Package session owns one worker's attempt at one task unit: the
// documents and dimensions it was configured with, the response ledgers,
// the per-document forms and the section state machine.
//
// A Session is not safe for concurrent use. Events from timers and
// network callbacks are serialized through a Driver. Without one, timer
// callbacks are queued until the owner calls Drain.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/crowdframe/internal/form"
	"github.com/ppiankov/crowdframe/internal/gold"
	"github.com/ppiankov/crowdframe/internal/ledger"
	"github.com/ppiankov/crowdframe/internal/logger"
	"github.com/ppiankov/crowdframe/internal/model"
	"github.com/ppiankov/crowdframe/internal/section"
)

var (
	ErrInvalidTransition     = errors.New("action not allowed in the current section")
	ErrNoActiveDocument      = errors.New("no document is active")
	ErrNoActiveQuestionnaire = errors.New("no questionnaire is active")
	ErrStepOutOfRange        = errors.New("step out of range")
	ErrUnknownNote           = errors.New("unknown note")
)

// Identity identifies the worker and the unit they were assigned
type Identity struct {
	Worker string `json:"worker"`
	UnitID string `json:"unit_id"`
}

// Session is the root aggregate of one worker attempt
type Session struct {
	ID       string
	Identity Identity

	Settings               *model.Settings
	Documents              []model.Document
	Dimensions             []model.Dimension
	Questionnaires         []model.Questionnaire // start questionnaires first, then end
	Instructions           []model.Instruction
	EvaluationInstructions []model.Instruction

	// Views into Documents and Dimensions
	GoldDocuments  []*model.Document
	GoldDimensions []*model.Dimension

	policy  string
	checker gold.Checker

	responses *ledger.Responses
	forms     []*form.Form
	notes     map[int][]model.Note
	answers   []map[string]string

	machine                  *section.Machine
	questionnaireAmountStart int
	questionnaireAmountEnd   int

	tryCurrent      int
	goldChecks      []bool
	timeCheck       bool
	timestampsStart map[int][]time.Time
	timestampsEnd   map[int][]time.Time
	accesses        []int

	countdown      Timer
	countdownToken int

	now       func() time.Time
	scheduler Scheduler
	post      func(func())
	pending   pendingQueue
	emitter   Emitter
	sequence  int
	bucket    string
	region    string
}

// Option configures a Session
type Option func(*Session)

// WithClock sets the clock used for ledger and step timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithScheduler sets the scheduler used for document countdowns
func WithScheduler(sch Scheduler) Option {
	return func(s *Session) { s.scheduler = sch }
}

// WithEmitter sets where logged actions are sent
func WithEmitter(e Emitter) Option {
	return func(s *Session) { s.emitter = e }
}

// WithOrigin sets the bucket and region stamped on logged actions
func WithOrigin(bucket, region string) Option {
	return func(s *Session) {
		s.bucket = bucket
		s.region = region
	}
}

// New builds a session from a task bundle. Any configuration problem is
// returned as an error wrapping model.ErrInvalidConfig before a single
// event is accepted.
func New(b *Bundle, id Identity, opts ...Option) (*Session, error) {
	if b == nil || b.Settings == nil {
		return nil, model.Invalidf("settings", "task settings are missing")
	}
	if err := b.Settings.Validate(); err != nil {
		return nil, err
	}
	if len(b.Documents) == 0 {
		return nil, model.Invalidf("document", "batch has no documents")
	}

	s := &Session{
		ID:                     uuid.NewString(),
		Identity:               id,
		Settings:               b.Settings,
		Instructions:           b.Instructions,
		EvaluationInstructions: b.EvaluationInstructions,
		notes:                  make(map[int][]model.Note),
		timestampsStart:        make(map[int][]time.Time),
		timestampsEnd:          make(map[int][]time.Time),
		now:                    time.Now,
		scheduler:              realScheduler{},
		emitter:                nopEmitter{},
		tryCurrent:             1,
		timeCheck:              true,
	}
	s.post = s.pending.push
	for _, opt := range opts {
		opt(s)
	}
	if s.Identity.UnitID == "" {
		s.Identity.UnitID = uuid.NewString()
	}

	if err := s.loadDimensions(b.Dimensions); err != nil {
		return nil, err
	}
	s.loadQuestionnaires(b.Questionnaires)

	s.Documents = make([]model.Document, len(b.Documents))
	copy(s.Documents, b.Documents)
	for i := range s.Documents {
		s.Documents[i].Index = i
		if s.Documents[i].IsGold() {
			s.GoldDocuments = append(s.GoldDocuments, &s.Documents[i])
		}
	}

	s.policy = gold.ResolvePolicy(s.Settings)
	checker, err := gold.NewChecker(s.policy, s.Settings.TaskType)
	if err != nil {
		return nil, err
	}
	s.checker = checker
	if err := gold.ValidateDocuments(s.policy, s.Settings.TaskType, s.GoldDocuments); err != nil {
		return nil, err
	}

	s.responses = ledger.NewResponses(s.now)
	s.forms = make([]*form.Form, len(s.Documents))
	for i := range s.Documents {
		s.forms[i] = form.Assemble(&s.Documents[i], s.Dimensions, s)
	}

	s.machine = section.NewMachine(s.questionnaireAmountStart, len(s.Documents), s.questionnaireAmountEnd, s.Settings.AllowedTries)
	s.machine.OnChange(func(from, to section.Section) {
		logger.Debug("session %s: %s -> %s", s.ID, from, to)
	})
	s.accesses = make([]int, s.TotalSteps())

	logger.Debug("session %s: %d documents, %d dimensions, %d+%d questionnaires, gold policy %s (%d gold documents)",
		s.ID, len(s.Documents), len(s.Dimensions), s.questionnaireAmountStart, s.questionnaireAmountEnd, s.policy, len(s.GoldDocuments))
	return s, nil
}

func (s *Session) loadDimensions(dims []model.Dimension) error {
	s.Dimensions = make([]model.Dimension, len(dims))
	copy(s.Dimensions, dims)

	names := make(map[string]bool, len(dims))
	for i := range s.Dimensions {
		d := &s.Dimensions[i]
		d.Index = i
		if err := d.Validate(); err != nil {
			return err
		}
		if names[d.Name] {
			return model.Invalidf("dimension", "duplicate dimension name %q", d.Name)
		}
		names[d.Name] = true
		if d.Gold {
			s.GoldDimensions = append(s.GoldDimensions, d)
		}
	}
	return nil
}

// loadQuestionnaires orders start questionnaires before end ones and
// renumbers them by their position in that order
func (s *Session) loadQuestionnaires(qs []model.Questionnaire) {
	var start, end []model.Questionnaire
	for _, src := range qs {
		q := src.Clone()
		q.AssignNames()
		if q.EffectivePosition() == model.PositionEnd {
			end = append(end, q)
		} else {
			start = append(start, q)
		}
	}
	s.Questionnaires = append(start, end...)
	for i := range s.Questionnaires {
		s.Questionnaires[i].Index = i
	}
	s.questionnaireAmountStart = len(start)
	s.questionnaireAmountEnd = len(end)
	s.answers = make([]map[string]string, len(s.Questionnaires))
	for i := range s.answers {
		s.answers[i] = make(map[string]string)
	}
}

// Section returns the section the worker should currently see
func (s *Session) Section() section.Section {
	return s.machine.Current()
}

// InstructionsAllowed reports whether the instructions may be reopened
func (s *Session) InstructionsAllowed() bool {
	return s.machine.InstructionsAllowed()
}

// Policy returns the resolved gold policy name
func (s *Session) Policy() string {
	return s.policy
}

// Responses returns the response ledgers
func (s *Session) Responses() *ledger.Responses {
	return s.responses
}

// Form returns the form of a document
func (s *Session) Form(document int) (*form.Form, error) {
	if document < 0 || document >= len(s.forms) {
		return nil, fmt.Errorf("document %d out of range", document)
	}
	return s.forms[document], nil
}

// Notes returns the notes of a document, deleted ones included
func (s *Session) Notes(document int) []model.Note {
	notes := s.notes[document]
	if notes == nil {
		return nil
	}
	out := make([]model.Note, len(notes))
	for i := range notes {
		out[i] = notes[i].Clone()
	}
	return out
}

// Answers returns the answers of a questionnaire keyed by question full name
func (s *Session) Answers(questionnaire int) map[string]string {
	if questionnaire < 0 || questionnaire >= len(s.answers) {
		return nil
	}
	out := make(map[string]string, len(s.answers[questionnaire]))
	for k, v := range s.answers[questionnaire] {
		out[k] = v
	}
	return out
}

// TryCurrent returns the one-based attempt number
func (s *Session) TryCurrent() int {
	return s.tryCurrent
}

// TriesLeft returns the remaining allowed tries
func (s *Session) TriesLeft() int {
	return s.machine.Inputs().AllowedTries
}

// GoldChecks returns the vector computed at the last submission
func (s *Session) GoldChecks() []bool {
	return append([]bool(nil), s.goldChecks...)
}

// Accesses returns how many times a step was entered
func (s *Session) Accesses(step int) int {
	if step < 0 || step >= len(s.accesses) {
		return 0
	}
	return s.accesses[step]
}

// TotalSteps is the number of stepper positions
func (s *Session) TotalSteps() int {
	return s.questionnaireAmountStart + len(s.Documents) + s.questionnaireAmountEnd
}

// ActiveDocument returns the document shown at the current step
func (s *Session) ActiveDocument() (int, bool) {
	if !s.machine.Inputs().TaskStarted {
		return 0, false
	}
	return s.machine.ActiveDocument()
}

// ActiveQuestionnaire returns the questionnaire shown at the current step
func (s *Session) ActiveQuestionnaire() (int, bool) {
	in := s.machine.Inputs()
	if !in.TaskStarted {
		return 0, false
	}
	step := in.StepIndex
	docEnd := s.questionnaireAmountStart + len(s.Documents)
	switch {
	case step < s.questionnaireAmountStart:
		return step, true
	case step >= docEnd && step < s.TotalSteps():
		return s.questionnaireAmountStart + step - docEnd, true
	}
	return 0, false
}

// StepIndex implements form.Context
func (s *Session) StepIndex() int {
	return s.machine.Inputs().StepIndex
}

// QuestionnaireAmountStart implements form.Context
func (s *Session) QuestionnaireAmountStart() int {
	return s.questionnaireAmountStart
}

// DocumentsAmount implements form.Context
func (s *Session) DocumentsAmount() int {
	return len(s.Documents)
}

// LatestSelectedURL implements form.Context
func (s *Session) LatestSelectedURL(document int) (string, bool) {
	return s.responses.LatestSelectedURL(document)
}

// LatestRetrievedURLs implements form.Context
func (s *Session) LatestRetrievedURLs(document, dimension int) []string {
	return s.responses.LatestRetrievedURLs(document, dimension)
}

func (s *Session) dimension(index int) (*model.Dimension, error) {
	if index < 0 || index >= len(s.Dimensions) {
		return nil, fmt.Errorf("dimension %d out of range", index)
	}
	return &s.Dimensions[index], nil
}

func (s *Session) activeDocument() (int, error) {
	doc, ok := s.ActiveDocument()
	if !ok {
		return 0, fmt.Errorf("%w (section %s)", ErrNoActiveDocument, s.Section())
	}
	return doc, nil
}
