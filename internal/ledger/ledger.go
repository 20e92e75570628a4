// Package ledger records worker behaviour as per-document append-only logs.
// Entries are never removed or reordered; the order of Data is the record
// of what the worker did.
package ledger

import (
	"sort"
	"time"
)

// Entry is one recorded event
type Entry[T any] struct {
	Document  int       `json:"document"`
	Dimension int       `json:"dimension"`
	Index     int       `json:"index"` // position within the document log
	Group     int       `json:"group"` // append operation that produced the entry
	Timestamp time.Time `json:"timestamp"`
	Payload   T         `json:"payload"`
}

// Log is the ordered event sequence of one document.
// Amount always equals len(Data).
type Log[T any] struct {
	Data   []Entry[T] `json:"data"`
	Amount int        `json:"amount"`
	Groups int        `json:"groups"`

	// LastGroups maps a dimension to its most recent group, including
	// groups that produced no entries
	LastGroups map[int]int `json:"last_groups,omitempty"`
}

func (lg *Log[T]) markGroup(dimension int) {
	if lg.LastGroups == nil {
		lg.LastGroups = make(map[int]int)
	}
	lg.LastGroups[dimension] = lg.Groups
	lg.Groups++
}

func (lg *Log[T]) clone() Log[T] {
	out := Log[T]{
		Data:   make([]Entry[T], len(lg.Data)),
		Amount: lg.Amount,
		Groups: lg.Groups,
	}
	copy(out.Data, lg.Data)
	if lg.LastGroups != nil {
		out.LastGroups = make(map[int]int, len(lg.LastGroups))
		for k, v := range lg.LastGroups {
			out.LastGroups[k] = v
		}
	}
	return out
}

// Ledger maps document index to its log
type Ledger[T any] struct {
	logs map[int]*Log[T]
	now  func() time.Time
}

// New creates an empty ledger. A nil clock uses time.Now.
func New[T any](now func() time.Time) *Ledger[T] {
	if now == nil {
		now = time.Now
	}
	return &Ledger[T]{
		logs: make(map[int]*Log[T]),
		now:  now,
	}
}

// Record appends one entry to the document log
func (l *Ledger[T]) Record(document, dimension int, payload T) Entry[T] {
	log := l.logFor(document)
	e := Entry[T]{
		Document:  document,
		Dimension: dimension,
		Index:     log.Amount,
		Group:     log.Groups,
		Timestamp: l.now(),
		Payload:   payload,
	}
	log.Data = append(log.Data, e)
	log.Amount = len(log.Data)
	log.markGroup(dimension)
	return e
}

// RecordBatch appends all payloads as a single group. An empty batch still
// counts as one group since the worker did trigger the operation.
func (l *Ledger[T]) RecordBatch(document, dimension int, payloads []T) []Entry[T] {
	log := l.logFor(document)
	ts := l.now()
	group := log.Groups
	out := make([]Entry[T], 0, len(payloads))
	for _, p := range payloads {
		e := Entry[T]{
			Document:  document,
			Dimension: dimension,
			Index:     len(log.Data),
			Group:     group,
			Timestamp: ts,
			Payload:   p,
		}
		log.Data = append(log.Data, e)
		out = append(out, e)
	}
	log.Amount = len(log.Data)
	log.markGroup(dimension)
	return out
}

// Amount returns the number of entries recorded for the document
func (l *Ledger[T]) Amount(document int) int {
	if log, ok := l.logs[document]; ok {
		return log.Amount
	}
	return 0
}

// Last returns the latest entry of the document, the one at Amount-1
func (l *Ledger[T]) Last(document int) (Entry[T], bool) {
	log, ok := l.logs[document]
	if !ok || log.Amount == 0 {
		var zero Entry[T]
		return zero, false
	}
	return log.Data[log.Amount-1], true
}

// LastFor returns the latest entry of the document for one dimension
func (l *Ledger[T]) LastFor(document, dimension int) (Entry[T], bool) {
	if log, ok := l.logs[document]; ok {
		for i := log.Amount - 1; i >= 0; i-- {
			if log.Data[i].Dimension == dimension {
				return log.Data[i], true
			}
		}
	}
	var zero Entry[T]
	return zero, false
}

// LastGroup returns the most recent group recorded for a document
// dimension, even when that group was an empty batch
func (l *Ledger[T]) LastGroup(document, dimension int) (int, bool) {
	log, ok := l.logs[document]
	if !ok {
		return 0, false
	}
	g, ok := log.LastGroups[dimension]
	return g, ok
}

// Entries returns a copy of the document log entries
func (l *Ledger[T]) Entries(document int) []Entry[T] {
	log, ok := l.logs[document]
	if !ok {
		return nil
	}
	out := make([]Entry[T], len(log.Data))
	copy(out, log.Data)
	return out
}

// Log returns a copy of one document log. A document with no entries
// has an empty log.
func (l *Ledger[T]) Log(document int) Log[T] {
	log, ok := l.logs[document]
	if !ok {
		return Log[T]{Data: []Entry[T]{}}
	}
	return log.clone()
}

// Documents returns the document indexes with at least one log, ascending
func (l *Ledger[T]) Documents() []int {
	out := make([]int, 0, len(l.logs))
	for d := range l.logs {
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}

// Export returns a copy of every log keyed by document index
func (l *Ledger[T]) Export() map[int]Log[T] {
	out := make(map[int]Log[T], len(l.logs))
	for d, log := range l.logs {
		out[d] = log.clone()
	}
	return out
}

// Import rebuilds a ledger from exported logs. Amount is recomputed from
// the data so a tampered snapshot cannot break the invariant.
func Import[T any](logs map[int]Log[T], now func() time.Time) *Ledger[T] {
	l := New[T](now)
	for d, log := range logs {
		c := log.clone()
		c.Amount = len(c.Data)
		l.logs[d] = &c
	}
	return l
}

func (l *Ledger[T]) logFor(document int) *Log[T] {
	log, ok := l.logs[document]
	if !ok {
		log = &Log[T]{}
		l.logs[document] = log
	}
	return log
}
