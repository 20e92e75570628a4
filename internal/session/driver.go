package session

import (
	"context"
	"errors"

	"github.com/ppiankov/crowdframe/internal/logger"
	"github.com/ppiankov/crowdframe/internal/model"
)

// ErrDriverStopped is returned for events sent after the loop ended
var ErrDriverStopped = errors.New("session driver stopped")

// Searcher runs embedded search queries
type Searcher interface {
	ProviderName() string
	Search(ctx context.Context, query string, offset int) ([]model.SearchResult, error)
}

// Driver serializes every event of a session on one goroutine. Timer
// callbacks and search completions are posted as ordinary events.
type Driver struct {
	session  *Session
	searcher Searcher
	events   chan func(*Session)
	done     chan struct{}
}

// NewDriver wraps a session. The searcher may be nil when the task has no
// search dimensions.
func NewDriver(s *Session, searcher Searcher) *Driver {
	d := &Driver{
		session:  s,
		searcher: searcher,
		events:   make(chan func(*Session), 64),
		done:     make(chan struct{}),
	}
	s.post = func(fn func()) {
		d.Post(func(*Session) { fn() })
	}
	return d
}

// Run processes events until the context is cancelled
func (d *Driver) Run(ctx context.Context) error {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-d.events:
			fn(d.session)
		}
	}
}

// Post enqueues an event without waiting for it. Events posted after the
// loop ended are dropped and Post returns false.
func (d *Driver) Post(fn func(*Session)) bool {
	select {
	case d.events <- fn:
		return true
	case <-d.done:
		logger.Debug("session %s: event dropped, driver stopped", d.session.ID)
		return false
	}
}

// Do runs fn on the event loop and waits for its error
func (d *Driver) Do(ctx context.Context, fn func(*Session) error) error {
	errCh := make(chan error, 1)
	select {
	case d.events <- func(s *Session) { errCh <- fn(s) }:
	case <-d.done:
		return ErrDriverStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-errCh:
		return err
	case <-d.done:
		return ErrDriverStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Search records the query on the active document, runs it off the loop
// and posts the retrieval back. The returned channel yields the search
// error, or nil once the results are in the ledger.
func (d *Driver) Search(ctx context.Context, dimension int, query string, offset int) <-chan error {
	result := make(chan error, 1)
	if d.searcher == nil {
		result <- errors.New("no search provider configured")
		return result
	}

	var doc int
	err := d.Do(ctx, func(s *Session) error {
		var err error
		doc, err = s.RecordQuery(dimension, query, d.searcher.ProviderName())
		return err
	})
	if err != nil {
		result <- err
		return result
	}

	go func() {
		results, err := d.searcher.Search(ctx, query, offset)
		if err != nil {
			logger.Warn("session %s: search %q failed: %v", d.session.ID, query, err)
			result <- err
			return
		}
		posted := d.Post(func(s *Session) {
			result <- s.RecordRetrieved(doc, dimension, results)
		})
		if !posted {
			result <- ErrDriverStopped
		}
	}()
	return result
}
