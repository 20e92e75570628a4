package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/crowdframe/internal/gold"
	"github.com/ppiankov/crowdframe/internal/ledger"
	"github.com/ppiankov/crowdframe/internal/model"
)

// Ledgers is the serialized form of the four response ledgers
type Ledgers struct {
	Values    map[int]ledger.Log[ledger.Value]     `json:"dimension_values"`
	Queries   map[int]ledger.Log[ledger.Query]     `json:"search_queries"`
	Retrieved map[int]ledger.Log[ledger.Retrieved] `json:"search_retrieved"`
	Selected  map[int]ledger.Log[ledger.Selected]  `json:"search_selected"`
}

// Snapshot is the full session state for audit and replay
type Snapshot struct {
	SessionID  string `json:"session_id"`
	Worker     string `json:"worker"`
	UnitID     string `json:"unit_id"`
	TryCurrent int    `json:"try_current"`
	Policy     string `json:"policy"`

	Settings       *model.Settings       `json:"settings"`
	Documents      []model.Document      `json:"documents"`
	Dimensions     []model.Dimension     `json:"dimensions"`
	Questionnaires []model.Questionnaire `json:"questionnaires"`

	Answers []map[string]string  `json:"questionnaire_answers"`
	Ledgers Ledgers              `json:"ledgers"`
	Notes   map[int][]model.Note `json:"notes"`

	TimestampsStart  map[int][]time.Time `json:"timestamps_start"`
	TimestampsEnd    map[int][]time.Time `json:"timestamps_end"`
	ElementsAccesses []int               `json:"elements_accesses"`

	GoldChecks []bool `json:"gold_checks,omitempty"`
	TimeCheck  bool   `json:"time_check"`
}

// Snapshot captures the session as a single serializable structure
func (s *Session) Snapshot() *Snapshot {
	notes := make(map[int][]model.Note, len(s.notes))
	for doc, ns := range s.notes {
		notes[doc] = append([]model.Note(nil), ns...)
	}
	answers := make([]map[string]string, len(s.answers))
	for i := range s.answers {
		answers[i] = s.Answers(i)
	}

	return &Snapshot{
		SessionID:      s.ID,
		Worker:         s.Identity.Worker,
		UnitID:         s.Identity.UnitID,
		TryCurrent:     s.tryCurrent,
		Policy:         s.policy,
		Settings:       s.Settings,
		Documents:      append([]model.Document(nil), s.Documents...),
		Dimensions:     s.Dimensions,
		Questionnaires: s.Questionnaires,
		Answers:        answers,
		Ledgers: Ledgers{
			Values:    s.responses.Values.Export(),
			Queries:   s.responses.Queries.Export(),
			Retrieved: s.responses.Retrieved.Export(),
			Selected:  s.responses.Selected.Export(),
		},
		Notes:            notes,
		TimestampsStart:  copyTimes(s.timestampsStart),
		TimestampsEnd:    copyTimes(s.timestampsEnd),
		ElementsAccesses: append([]int(nil), s.accesses...),
		GoldChecks:       s.GoldChecks(),
		TimeCheck:        s.timeCheck,
	}
}

func copyTimes(in map[int][]time.Time) map[int][]time.Time {
	out := make(map[int][]time.Time, len(in))
	for k, v := range in {
		out[k] = append([]time.Time(nil), v...)
	}
	return out
}

// Replay re-runs the gold check of a snapshot from its ledgers and notes
func Replay(snap *Snapshot) ([]bool, error) {
	if snap.Settings == nil {
		return nil, model.Invalidf("snapshot", "snapshot has no settings")
	}
	policy := snap.Policy
	if policy == "" {
		policy = gold.ResolvePolicy(snap.Settings)
	}
	checker, err := gold.NewChecker(policy, snap.Settings.TaskType)
	if err != nil {
		return nil, err
	}

	responses := &ledger.Responses{
		Values:    ledger.Import(snap.Ledgers.Values, nil),
		Queries:   ledger.Import(snap.Ledgers.Queries, nil),
		Retrieved: ledger.Import(snap.Ledgers.Retrieved, nil),
		Selected:  ledger.Import(snap.Ledgers.Selected, nil),
	}

	var docs []*model.Document
	for i := range snap.Documents {
		if snap.Documents[i].IsGold() {
			docs = append(docs, &snap.Documents[i])
		}
	}
	return gold.Perform(checker, goldItems(docs, snap.Dimensions, responses, snap.Notes))
}

// LoadSnapshot reads a snapshot JSON file
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// Auditor replays snapshot files for the batch processor
type Auditor struct{}

// AuditFile replays one snapshot and compares the result with the vector
// recorded at submission
func (Auditor) AuditFile(ctx context.Context, path string) (*model.AuditReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, err := LoadSnapshot(path)
	if err != nil {
		return nil, err
	}
	checks, err := Replay(snap)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", snap.SessionID, err)
	}

	policy := snap.Policy
	if policy == "" {
		policy = gold.ResolvePolicy(snap.Settings)
	}
	return &model.AuditReport{
		Path:       path,
		SessionID:  snap.SessionID,
		Worker:     snap.Worker,
		UnitID:     snap.UnitID,
		TryCurrent: snap.TryCurrent,
		Policy:     policy,
		Checks:     checks,
		Recorded:   snap.GoldChecks,
		Passed:     gold.Passed(checks),
		Consistent: len(snap.GoldChecks) == 0 || equalChecks(checks, snap.GoldChecks),
	}, nil
}

func equalChecks(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
