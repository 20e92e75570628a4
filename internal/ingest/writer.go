package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/crowdframe/internal/logger"
	"github.com/ppiankov/crowdframe/internal/model"
)

var (
	// ErrItemExists is returned by a store when the (worker, sequence) key
	// is already taken
	ErrItemExists = errors.New("item already exists")

	// ErrDeliveryFailed is terminal for one record after every attempt failed
	ErrDeliveryFailed = errors.New("delivery failed")
)

// DefaultMaxAttempts is the total number of write attempts per record
const DefaultMaxAttempts = 3

// writeSleepFunc is the sleep function used between attempts (injectable for tests)
var writeSleepFunc = time.Sleep

// Store performs the conditional write of one item
type Store interface {
	// PutIfAbsent writes the item unless its (worker, sequence) key exists,
	// in which case it returns ErrItemExists
	PutIfAbsent(ctx context.Context, table string, item Item) error
}

// Writer stamps, serializes and writes records with bounded retries
type Writer struct {
	store       Store
	prefix      string
	maxAttempts int
	now         func() time.Time
}

// NewWriter creates a writer over a store
func NewWriter(store Store, prefix string, maxAttempts int) *Writer {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Writer{
		store:       store,
		prefix:      prefix,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// Write stores a record. Attempt i > 0 rewrites the sequence to
// "<i>_<original>" so a retry never collides with the key the failed
// attempt may have taken.
func (w *Writer) Write(ctx context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	table := TableName(w.prefix, rec.Task, rec.Batch)
	item, err := toItem(&rec, w.now().UnixMilli())
	if err != nil {
		return err
	}

	original := item.Sequence
	var lastErr error
	for attempt := 0; attempt < w.maxAttempts; attempt++ {
		if attempt > 0 {
			item.Sequence = fmt.Sprintf("%d_%s", attempt, original)
			writeSleepFunc(time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = w.store.PutIfAbsent(ctx, table, item)
		if lastErr == nil {
			logger.Debug("ingest: stored %s/%s in %s", item.Worker, item.Sequence, table)
			return nil
		}
		logger.Warn("ingest: attempt %d for %s/%s failed: %v", attempt+1, item.Worker, item.Sequence, lastErr)
	}

	return fmt.Errorf("%w: %s/%s after %d attempts: %v", ErrDeliveryFailed, rec.Worker, original, w.maxAttempts, lastErr)
}

// Deliver implements Deliverer so a writer can back a Client directly
func (w *Writer) Deliver(ctx context.Context, rec Record) error {
	return w.Write(ctx, rec)
}

// Sequence renders a session sequence number in wire form
func Sequence(n int) model.FlexString {
	return model.FlexString(fmt.Sprintf("%d", n))
}
