// Package ingest delivers session log records to the ingestion table.
package ingest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/crowdframe/internal/model"
)

// Record is the wire contract of one logged action
type Record struct {
	Sequence   model.FlexString `json:"sequence"`
	Bucket     string           `json:"bucket"`
	Task       string           `json:"task"`
	Batch      string           `json:"batch"`
	Worker     string           `json:"worker"`
	UnitID     string           `json:"unitId"`
	TryCurrent int              `json:"try_current"`
	Region     string           `json:"region"`
	Type       string           `json:"type"`
	Details    any              `json:"details"`
	ClientTime int64            `json:"client_time,omitempty"` // unix millis
	ServerTime int64            `json:"server_time,omitempty"` // unix millis, stamped by the writer
}

// Validate checks the fields the conditional write depends on
func (r *Record) Validate() error {
	var missing []string
	if r.Sequence == "" {
		missing = append(missing, "sequence")
	}
	if r.Task == "" {
		missing = append(missing, "task")
	}
	if r.Batch == "" {
		missing = append(missing, "batch")
	}
	if r.Worker == "" {
		missing = append(missing, "worker")
	}
	if len(missing) > 0 {
		return fmt.Errorf("record missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Item is a record as stored: details serialized to a string
type Item struct {
	Worker     string `json:"worker"`
	Sequence   string `json:"sequence"`
	Bucket     string `json:"bucket"`
	Task       string `json:"task"`
	Batch      string `json:"batch"`
	UnitID     string `json:"unitId"`
	TryCurrent int    `json:"try_current"`
	Region     string `json:"region"`
	Type       string `json:"type"`
	Details    string `json:"details"`
	ClientTime int64  `json:"client_time"`
	ServerTime int64  `json:"server_time"`
}

// toItem flattens a record. String details are stored as they are.
func toItem(r *Record, serverTime int64) (Item, error) {
	var details string
	switch d := r.Details.(type) {
	case nil:
	case string:
		details = d
	default:
		raw, err := json.Marshal(d)
		if err != nil {
			return Item{}, fmt.Errorf("encode details: %w", err)
		}
		details = string(raw)
	}

	return Item{
		Worker:     r.Worker,
		Sequence:   r.Sequence.String(),
		Bucket:     r.Bucket,
		Task:       r.Task,
		Batch:      r.Batch,
		UnitID:     r.UnitID,
		TryCurrent: r.TryCurrent,
		Region:     r.Region,
		Type:       r.Type,
		Details:    details,
		ClientTime: r.ClientTime,
		ServerTime: serverTime,
	}, nil
}

// TableName returns the log table of a task batch: <prefix>-<task>_<batch>_Logger
func TableName(prefix, task, batch string) string {
	return fmt.Sprintf("%s-%s_%s_Logger", prefix, task, batch)
}
