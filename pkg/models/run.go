package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run records one summarize invocation that published its clusters.
type Run struct {
	ID          uuid.UUID  `db:"id"           json:"id"`
	Status      string     `db:"status"       json:"status"`
	Failures    int        `db:"failures"     json:"failures"`
	Clusters    int        `db:"clusters"     json:"clusters"`
	OutputPath  string     `db:"output_path"  json:"output_path"`
	StartedAt   time.Time  `db:"started_at"   json:"started_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// ClusterRecord is the persisted summary of a rendered cluster. ID is the
// stable digest of Key, so a key that survives across runs keeps its row.
type ClusterRecord struct {
	ID           string    `db:"id"             json:"id"`
	Key          string    `db:"cluster_key"    json:"key"`
	Text         string    `db:"text"           json:"text"`
	Owner        string    `db:"owner"          json:"owner"`
	FailureCount int       `db:"failure_count"  json:"failure_count"`
	TestCount    int       `db:"test_count"     json:"test_count"`
	FirstSeenRun uuid.UUID `db:"first_seen_run" json:"first_seen_run"`
	LastSeenRun  uuid.UUID `db:"last_seen_run"  json:"last_seen_run"`
	CreatedAt    time.Time `db:"created_at"     json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"     json:"updated_at"`
}
