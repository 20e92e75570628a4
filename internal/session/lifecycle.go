package session

import (
	"fmt"
	"time"

	"github.com/ppiankov/crowdframe/internal/logger"
	"github.com/ppiankov/crowdframe/internal/section"
)

// CheckWorker applies the batch allow and block lists to the batches the
// worker already took part in and completes the admission check
func (s *Session) CheckWorker(previousBatches []string) bool {
	allowed := s.Settings.Allows(previousBatches)
	s.machine.Update(func(in *section.Inputs) {
		in.TaskAllowed = allowed
		in.CheckCompleted = true
	})
	s.emit(ActionCheck, map[string]any{
		"previous_batches": previousBatches,
		"allowed":          allowed,
	})
	return allowed
}

// ReadInstructions marks the main instructions as read
func (s *Session) ReadInstructions() error {
	if err := s.expect(section.Instructions); err != nil {
		return err
	}
	s.machine.SetTaskInstructionsRead(true)
	s.emit(ActionInstructions, nil)
	return nil
}

// Start begins the task at the first step
func (s *Session) Start() error {
	if err := s.expect(section.TokenEntry); err != nil {
		return err
	}
	s.machine.Update(func(in *section.Inputs) {
		in.TaskStarted = true
		in.StepIndex = 0
	})
	s.emit(ActionStart, map[string]any{"steps": s.TotalSteps()})
	s.enter(0)
	return nil
}

// Next moves to the following step. Field validity never blocks movement.
func (s *Session) Next() error {
	return s.GoTo(s.StepIndex() + 1)
}

// Previous moves to the preceding step
func (s *Session) Previous() error {
	return s.GoTo(s.StepIndex() - 1)
}

// GoTo moves the stepper to any step
func (s *Session) GoTo(step int) error {
	if !s.machine.Inputs().TaskStarted {
		return fmt.Errorf("%w: task not started (section %s)", ErrInvalidTransition, s.Section())
	}
	if step < 0 || step >= s.TotalSteps() {
		return fmt.Errorf("%w: %d of %d", ErrStepOutOfRange, step, s.TotalSteps())
	}
	from := s.StepIndex()
	if step == from {
		return nil
	}

	s.leave(from)
	s.machine.SetStepIndex(step)
	s.emit(ActionMovement, map[string]any{
		"from":    from,
		"to":      step,
		"section": s.Section().String(),
	})
	s.enter(step)
	return nil
}

func (s *Session) expect(kind section.Kind) error {
	if cur := s.Section(); cur.Kind != kind {
		return fmt.Errorf("%w: expected %s, current %s", ErrInvalidTransition, kind, cur)
	}
	return nil
}

func (s *Session) enter(step int) {
	s.timestampsStart[step] = append(s.timestampsStart[step], s.now())
	s.accesses[step]++
	if doc, ok := s.ActiveDocument(); ok {
		s.startCountdown(doc)
	}
}

func (s *Session) leave(step int) {
	s.timestampsEnd[step] = append(s.timestampsEnd[step], s.now())
	s.stopCountdown()
}

// TimeSpent sums the completed visits of a step
func (s *Session) TimeSpent(step int) time.Duration {
	starts, ends := s.timestampsStart[step], s.timestampsEnd[step]
	var total time.Duration
	for i := 0; i < len(starts) && i < len(ends); i++ {
		total += ends[i].Sub(starts[i])
	}
	return total
}

// startCountdown schedules the document timer. Expired documents keep
// their flag and are not timed again.
func (s *Session) startCountdown(doc int) {
	cd := s.Settings.Countdown
	if !cd.Enabled || cd.Time <= 0 || s.Documents[doc].CountdownExpired {
		return
	}
	s.countdownToken++
	token := s.countdownToken
	s.countdown = s.scheduler.AfterFunc(time.Duration(cd.Time)*time.Second, func() {
		s.post(func() { s.countdownFired(token, doc) })
	})
}

func (s *Session) stopCountdown() {
	if s.countdown != nil {
		s.countdown.Stop()
		s.countdown = nil
	}
	s.countdownToken++
}

// countdownFired ignores timers whose document is no longer shown
func (s *Session) countdownFired(token, doc int) {
	if token != s.countdownToken {
		logger.Debug("session %s: stale countdown for document %d ignored", s.ID, doc)
		return
	}
	if active, ok := s.ActiveDocument(); !ok || active != doc {
		logger.Debug("session %s: countdown for document %d fired off-document", s.ID, doc)
		return
	}
	s.countdown = nil
	s.Documents[doc].CountdownExpired = true
	s.emit(ActionCountdown, map[string]any{"document": doc})
	s.machine.Recompute()
}
