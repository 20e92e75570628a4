package session

import (
	"github.com/ppiankov/crowdframe/internal/ingest"
)

// Action types of logged records
const (
	ActionCheck        = "check"
	ActionInstructions = "instructions"
	ActionStart        = "start"
	ActionMovement     = "movement"
	ActionValue        = "value"
	ActionField        = "field"
	ActionQuery        = "query"
	ActionRetrieved    = "retrieved"
	ActionSelected     = "selected"
	ActionAnswer       = "answer"
	ActionNote         = "note"
	ActionCountdown    = "countdown"
	ActionSubmit       = "submit"
	ActionFinalData    = "final_data"
	ActionRetry        = "retry"
)

// Emitter receives logged actions. Emit must not block session progress;
// delivery failures are the emitter's concern.
type Emitter interface {
	Emit(rec ingest.Record)
}

type nopEmitter struct{}

func (nopEmitter) Emit(ingest.Record) {}

// EmitterFunc adapts a function to an Emitter
type EmitterFunc func(rec ingest.Record)

func (f EmitterFunc) Emit(rec ingest.Record) { f(rec) }

// emit stamps the session identity and the next sequence number
func (s *Session) emit(action string, details any) {
	rec := ingest.Record{
		Sequence:   ingest.Sequence(s.sequence),
		Bucket:     s.bucket,
		Task:       s.Settings.TaskName,
		Batch:      s.Settings.BatchName,
		Worker:     s.Identity.Worker,
		UnitID:     s.Identity.UnitID,
		TryCurrent: s.tryCurrent,
		Region:     s.region,
		Type:       action,
		Details:    details,
		ClientTime: s.now().UnixMilli(),
	}
	s.sequence++
	s.emitter.Emit(rec)
}
