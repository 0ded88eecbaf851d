// Package jobstore persists job metadata rows (id, status, request,
// error, timestamps). One narrow table with no relational joins, so pgx's
// plain query API is used directly.
package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veridocs/trainforge/internal/types"
)

// ErrNotFound is returned by Get when no job with the given ID exists.
var ErrNotFound = errors.New("jobstore: job not found")

// Store is a pgx-backed job metadata store.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to dsn and returns a ready Store.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("jobstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("jobstore: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() { s.pool.Close() }

// Create inserts a new job row in JobStatusQueued.
func (s *Store) Create(ctx context.Context, id string, req types.JobRequest) (*types.JobRecord, error) {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("jobstore: marshal request: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO jobs (id, status, request, error, created_at, updated_at)
		 VALUES ($1, $2, $3, '', $4, $4)`,
		id, types.JobStatusQueued, reqJSON, now,
	)
	if err != nil {
		return nil, fmt.Errorf("jobstore: insert: %w", err)
	}
	return &types.JobRecord{ID: id, Status: types.JobStatusQueued, Request: req, CreatedAt: now, UpdatedAt: now}, nil
}

// Get loads a job row by ID.
func (s *Store) Get(ctx context.Context, id string) (*types.JobRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, status, request, error, created_at, updated_at, completed_at
		 FROM jobs WHERE id = $1`, id)

	var rec types.JobRecord
	var reqJSON []byte
	if err := row.Scan(&rec.ID, &rec.Status, &reqJSON, &rec.Error, &rec.CreatedAt, &rec.UpdatedAt, &rec.CompletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("jobstore: get: %w", err)
	}
	if err := json.Unmarshal(reqJSON, &rec.Request); err != nil {
		return nil, fmt.Errorf("jobstore: unmarshal request: %w", err)
	}
	return &rec, nil
}

// UpdateStatus transitions a job's status, recording errMsg (if any) and
// setting completed_at when the status is terminal.
func (s *Store) UpdateStatus(ctx context.Context, id string, status types.JobStatus, errMsg string) error {
	now := time.Now().UTC()
	var completedAt any
	if status == types.JobStatusCompleted || status == types.JobStatusFailed {
		completedAt = now
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $2, error = $3, updated_at = $4, completed_at = COALESCE($5, completed_at)
		 WHERE id = $1`,
		id, status, errMsg, now, completedAt,
	)
	if err != nil {
		return fmt.Errorf("jobstore: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
