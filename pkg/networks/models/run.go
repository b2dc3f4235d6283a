package models

import "time"

// RunRecord summarises one enrichment pass.
type RunRecord struct {
	RunID         string    `json:"run_id"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Networks      int       `json:"networks"`
	EmptyNetworks int       `json:"empty_networks"`
	FromSnapshot  bool      `json:"from_snapshot"`
	Warning       string    `json:"warning,omitempty"`
}
