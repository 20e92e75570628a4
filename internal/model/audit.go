package model

// AuditReport is the outcome of re-running the gold check over a stored
// session snapshot
type AuditReport struct {
	Path       string `json:"path"`
	SessionID  string `json:"session_id"`
	Worker     string `json:"worker"`
	UnitID     string `json:"unit_id"`
	TryCurrent int    `json:"try_current"`
	Policy     string `json:"policy"`

	Checks   []bool `json:"checks"`
	Recorded []bool `json:"recorded,omitempty"` // vector stored at submission
	Passed   bool   `json:"passed"`

	// Consistent is false when the replayed vector differs from the
	// recorded one
	Consistent bool `json:"consistent"`
}
