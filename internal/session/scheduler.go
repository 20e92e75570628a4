package session

import (
	"sync"
	"time"
)

// Timer is a scheduled one-shot callback
type Timer interface {
	Stop() bool
}

// Scheduler schedules one-shot callbacks. Callbacks run on their own
// goroutine and must post back into the session's event loop.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// pendingQueue holds callbacks posted while no Driver owns the session.
// Any goroutine may push; only the session owner takes.
type pendingQueue struct {
	mu  sync.Mutex
	fns []func()
}

func (q *pendingQueue) push(fn func()) {
	q.mu.Lock()
	q.fns = append(q.fns, fn)
	q.mu.Unlock()
}

func (q *pendingQueue) take() []func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	fns := q.fns
	q.fns = nil
	return fns
}

// Drain runs the timer callbacks posted since the last call on the
// calling goroutine and returns how many ran. Sessions wrapped by a
// Driver never queue here.
func (s *Session) Drain() int {
	n := 0
	for {
		fns := s.pending.take()
		if len(fns) == 0 {
			return n
		}
		for _, fn := range fns {
			fn()
		}
		n += len(fns)
	}
}
