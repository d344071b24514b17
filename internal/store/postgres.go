package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kiranshivaraju/triage/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Runs ---

func (s *PostgresStore) CreateRun(ctx context.Context, run *models.Run) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, status, failures, clusters, output_path, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.Status, run.Failures, run.Clusters, run.OutputPath, run.StartedAt)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

var validTransitions = map[string][]string{
	models.RunStatusRunning: {models.RunStatusCompleted, models.RunStatusFailed},
}

func (s *PostgresStore) CompleteRun(ctx context.Context, id uuid.UUID, status string, failures, clusters int) error {
	var current string
	err := s.pool.QueryRow(ctx, `SELECT status FROM runs WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get run status: %w", err)
	}

	valid := false
	for _, a := range validTransitions[current] {
		if a == status {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE runs SET status = $2, failures = $3, clusters = $4, completed_at = $5 WHERE id = $1`,
		id, status, failures, clusters, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// --- Clusters ---

const upsertClusterSQL = `INSERT INTO clusters (id, cluster_key, text, owner, failure_count, test_count, first_seen_run, last_seen_run, created_at, updated_at)
 VALUES ($1, $2, $3, $4, $5, $6, $7, $7, NOW(), NOW())
 ON CONFLICT (id) DO UPDATE SET
   cluster_key = EXCLUDED.cluster_key,
   text = EXCLUDED.text,
   owner = EXCLUDED.owner,
   failure_count = EXCLUDED.failure_count,
   test_count = EXCLUDED.test_count,
   last_seen_run = EXCLUDED.last_seen_run,
   updated_at = NOW()`

// UpsertClusters records every cluster as seen in runID in one transaction.
// Existing rows keep their first_seen_run.
func (s *PostgresStore) UpsertClusters(ctx context.Context, runID uuid.UUID, clusters []*models.ClusterRecord) error {
	if len(clusters) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert clusters: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, c := range clusters {
		batch.Queue(upsertClusterSQL, c.ID, c.Key, c.Text, c.Owner, c.FailureCount, c.TestCount, runID)
	}

	br := tx.SendBatch(ctx, batch)
	for range clusters {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("upsert cluster: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("upsert clusters: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert clusters: %w", err)
	}
	return nil
}

const clusterColumns = `id, cluster_key, text, owner, failure_count, test_count, first_seen_run, last_seen_run, created_at, updated_at`

func scanCluster(row pgx.Row) (*models.ClusterRecord, error) {
	var c models.ClusterRecord
	err := row.Scan(&c.ID, &c.Key, &c.Text, &c.Owner, &c.FailureCount, &c.TestCount,
		&c.FirstSeenRun, &c.LastSeenRun, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const latestRunSQL = `SELECT id FROM runs WHERE status = 'completed' ORDER BY completed_at DESC LIMIT 1`

func (s *PostgresStore) ListClusters(ctx context.Context, filter ClusterFilter) ([]*models.ClusterRecord, int, error) {
	// Build WHERE clause dynamically
	conditions := []string{"TRUE"}
	var args []any
	argIdx := 1

	if filter.Owner != "" {
		conditions = append(conditions, fmt.Sprintf("owner = $%d", argIdx))
		args = append(args, filter.Owner)
		argIdx++
	}
	if filter.Prefix != "" {
		conditions = append(conditions, fmt.Sprintf("starts_with(id, $%d)", argIdx))
		args = append(args, filter.Prefix)
		argIdx++
	}
	if filter.Current {
		conditions = append(conditions, "last_seen_run = ("+latestRunSQL+")")
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM clusters WHERE " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count clusters: %w", err)
	}

	// Normalize pagination
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	dataQuery := fmt.Sprintf(
		`SELECT %s FROM clusters WHERE %s ORDER BY failure_count DESC, id LIMIT $%d OFFSET $%d`,
		clusterColumns, where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list clusters: %w", err)
	}
	defer rows.Close()

	clusters := []*models.ClusterRecord{}
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan cluster: %w", err)
		}
		clusters = append(clusters, c)
	}
	return clusters, total, rows.Err()
}

func (s *PostgresStore) GetCluster(ctx context.Context, id string) (*models.ClusterRecord, error) {
	c, err := scanCluster(s.pool.QueryRow(ctx,
		`SELECT `+clusterColumns+` FROM clusters WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cluster: %w", err)
	}
	return c, nil
}

// LatestKeys returns the keys of the clusters seen in the latest completed
// run, largest first. It can seed global clustering in place of a previous
// output file.
func (s *PostgresStore) LatestKeys(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT cluster_key FROM clusters WHERE last_seen_run = (`+latestRunSQL+`)
		 ORDER BY failure_count DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("latest keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
