// Package section derives the single UI section a worker should see from
// the session control flags and the stepper position.
package section

import "fmt"

// Kind identifies a section
type Kind string

const (
	Loading            Kind = "loading"
	Instructions       Kind = "instructions"
	TokenEntry         Kind = "token-entry"
	AlreadyStarted     Kind = "already-started"
	QuestionnaireStart Kind = "questionnaire-start"
	Document           Kind = "document"
	QuestionnaireEnd   Kind = "questionnaire-end"
	Success            Kind = "success"
	Retry              Kind = "retry"
	Fail               Kind = "fail"
)

// Section is a section kind plus its index for indexed kinds
type Section struct {
	Kind  Kind
	Index int
}

// Indexed reports whether the kind carries an index
func (s Section) Indexed() bool {
	switch s.Kind {
	case QuestionnaireStart, Document, QuestionnaireEnd:
		return true
	}
	return false
}

func (s Section) String() string {
	if s.Indexed() {
		return fmt.Sprintf("%s[%d]", s.Kind, s.Index)
	}
	return string(s.Kind)
}

// Inputs are the values the section is derived from
type Inputs struct {
	TaskAllowed          bool
	TaskStarted          bool
	TaskCompleted        bool
	TaskSuccessful       bool
	TaskFailed           bool
	CheckCompleted       bool
	TaskInstructionsRead bool
	StepIndex            int

	QuestionnaireAmountStart int
	DocumentsAmount          int
	QuestionnaireAmountEnd   int
	AllowedTries             int
}

// Compute evaluates the rules in priority order; the first match wins.
// It also returns the derived instructionsAllowed flag.
func Compute(in Inputs) (Section, bool) {
	instructionsAllowed := in.TaskAllowed && in.CheckCompleted && in.TaskInstructionsRead
	docStart := in.QuestionnaireAmountStart
	docEnd := in.QuestionnaireAmountStart + in.DocumentsAmount

	var s Section
	switch {
	case in.TaskAllowed && in.CheckCompleted && !in.TaskInstructionsRead:
		s = Section{Kind: Instructions}
	case !in.TaskStarted && in.TaskAllowed && in.CheckCompleted && in.TaskInstructionsRead:
		s = Section{Kind: TokenEntry}
	case !in.TaskStarted && !in.TaskAllowed:
		s = Section{Kind: AlreadyStarted}
	case in.TaskStarted && in.StepIndex < docStart:
		s = Section{Kind: QuestionnaireStart, Index: in.StepIndex}
	case in.TaskStarted && in.StepIndex >= docEnd:
		s = Section{Kind: QuestionnaireEnd, Index: in.StepIndex}
	case in.TaskStarted && in.StepIndex >= docStart && in.StepIndex < docEnd:
		s = Section{Kind: Document, Index: in.StepIndex - docStart}
	case in.TaskCompleted && in.TaskSuccessful:
		s = Section{Kind: Success}
	case in.TaskCompleted && !in.TaskSuccessful && in.AllowedTries > 0:
		s = Section{Kind: Retry}
	case in.TaskCompleted && in.TaskFailed:
		s = Section{Kind: Fail}
	default:
		s = Section{Kind: Loading}
	}
	return s, instructionsAllowed
}

// Machine holds the inputs and recomputes the section on every change
type Machine struct {
	in                  Inputs
	current             Section
	instructionsAllowed bool
	onChange            func(from, to Section)
}

// NewMachine creates a machine for the given session shape
func NewMachine(questionnaireAmountStart, documentsAmount, questionnaireAmountEnd, allowedTries int) *Machine {
	m := &Machine{in: Inputs{
		QuestionnaireAmountStart: questionnaireAmountStart,
		DocumentsAmount:          documentsAmount,
		QuestionnaireAmountEnd:   questionnaireAmountEnd,
		AllowedTries:             allowedTries,
	}}
	m.Recompute()
	return m
}

// OnChange registers a callback fired when the computed section changes
func (m *Machine) OnChange(fn func(from, to Section)) {
	m.onChange = fn
}

// Recompute re-evaluates the whole rule list. Calling it twice is a no-op.
func (m *Machine) Recompute() Section {
	prev := m.current
	m.current, m.instructionsAllowed = Compute(m.in)
	if m.onChange != nil && prev != m.current {
		m.onChange(prev, m.current)
	}
	return m.current
}

func (m *Machine) Current() Section         { return m.current }
func (m *Machine) InstructionsAllowed() bool { return m.instructionsAllowed }
func (m *Machine) Inputs() Inputs            { return m.in }

func (m *Machine) SetTaskAllowed(v bool)          { m.in.TaskAllowed = v; m.Recompute() }
func (m *Machine) SetTaskStarted(v bool)          { m.in.TaskStarted = v; m.Recompute() }
func (m *Machine) SetTaskCompleted(v bool)        { m.in.TaskCompleted = v; m.Recompute() }
func (m *Machine) SetTaskSuccessful(v bool)       { m.in.TaskSuccessful = v; m.Recompute() }
func (m *Machine) SetTaskFailed(v bool)           { m.in.TaskFailed = v; m.Recompute() }
func (m *Machine) SetCheckCompleted(v bool)       { m.in.CheckCompleted = v; m.Recompute() }
func (m *Machine) SetTaskInstructionsRead(v bool) { m.in.TaskInstructionsRead = v; m.Recompute() }
func (m *Machine) SetStepIndex(v int)             { m.in.StepIndex = v; m.Recompute() }
func (m *Machine) SetAllowedTries(v int)          { m.in.AllowedTries = v; m.Recompute() }

// Update applies several input changes and recomputes once
func (m *Machine) Update(fn func(*Inputs)) Section {
	fn(&m.in)
	return m.Recompute()
}

// ActiveDocument returns the document index for the current step, if the
// step is inside the document range
func (m *Machine) ActiveDocument() (int, bool) {
	return DocumentAt(m.in.StepIndex, m.in.QuestionnaireAmountStart, m.in.DocumentsAmount)
}

// DocumentAt maps a stepper position to a document index
func DocumentAt(step, questionnaireAmountStart, documentsAmount int) (int, bool) {
	if step < questionnaireAmountStart || step >= questionnaireAmountStart+documentsAmount {
		return 0, false
	}
	return step - questionnaireAmountStart, true
}
