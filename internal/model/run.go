package model

import "time"

// RunStatus represents the current state of a scrape run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is a persisted scrape run.
type Run struct {
	ID          string    `json:"id" db:"id"`
	Query       string    `json:"query" db:"query"`
	Total       int       `json:"total" db:"total"`
	Status      RunStatus `json:"status" db:"status"`
	Candidates  int       `json:"candidates" db:"candidates"`
	PlacesCount int       `json:"places_count" db:"places_count"`
	Error       string    `json:"error,omitempty" db:"error"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// RunResult is the outcome recorded when a run finishes.
type RunResult struct {
	Status     RunStatus `json:"status"`
	Candidates int       `json:"candidates"`
	Places     int       `json:"places"`
	Error      string    `json:"error,omitempty"`
}
