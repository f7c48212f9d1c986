package contracts

import "time"

// AuditEntry is one line of the persisted audit log, derived from a
// completed stage of a RunResult
type AuditEntry struct {
	Time    time.Time `json:"time"`
	Agent   string    `json:"agent"`
	Type    string    `json:"type"`
	ID      string    `json:"id"`
	Summary string    `json:"summary"`
}

// Stats holds the persisted run counters
type Stats struct {
	RunCount   int `json:"runCount"`
	VetoCount  int `json:"vetoCount"`
	AuditCount int `json:"auditCount"`
}
