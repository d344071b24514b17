package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/triage/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrInvalidTransition = errors.New("invalid run status transition")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateRun(ctx context.Context, run *models.Run) error
	CompleteRun(ctx context.Context, id uuid.UUID, status string, failures, clusters int) error

	UpsertClusters(ctx context.Context, runID uuid.UUID, clusters []*models.ClusterRecord) error
	ListClusters(ctx context.Context, filter ClusterFilter) ([]*models.ClusterRecord, int, error)
	GetCluster(ctx context.Context, id string) (*models.ClusterRecord, error)
	LatestKeys(ctx context.Context) ([]string, error)
}

// ClusterFilter narrows ListClusters. Empty fields match everything.
type ClusterFilter struct {
	Owner  string
	Prefix string
	// Current restricts results to clusters seen in the latest completed run.
	Current bool
	Page    int
	Limit   int
}

// Records summarizes rendered clusters for persistence.
func Records(out *models.Output) []*models.ClusterRecord {
	records := make([]*models.ClusterRecord, 0, len(out.Clustered))
	for _, c := range out.Clustered {
		records = append(records, &models.ClusterRecord{
			ID:           c.ID,
			Key:          c.Key,
			Text:         c.Text,
			Owner:        c.Owner,
			FailureCount: c.FailureCount(),
			TestCount:    len(c.Tests),
		})
	}
	return records
}
