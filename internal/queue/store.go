package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"coursecast/internal/database"
)

const jobColumns = "id, asset_id, status, request_id, forced, worker_id, error_message, created_at, updated_at, started_at, finished_at, last_heartbeat"

// Store persists conversion jobs in the shared SQLite database.
type Store struct {
	db *database.DB
}

// NewStore wraps an open database.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job          Job
		status       string
		forced       int
		workerID     sql.NullString
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
		startedRaw   sql.NullString
		finishedRaw  sql.NullString
		heartbeatRaw sql.NullString
	)
	if err := scanner.Scan(
		&job.ID,
		&job.AssetID,
		&status,
		&job.RequestID,
		&forced,
		&workerID,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&finishedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}
	job.Status = Status(status)
	job.Force = forced != 0
	job.WorkerID = workerID.String
	job.ErrorMessage = errorMessage.String
	if created, err := database.ParseTime(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := database.ParseTime(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	job.StartedAt = database.ParseTimePtr(startedRaw.String, startedRaw.Valid)
	job.FinishedAt = database.ParseTimePtr(finishedRaw.String, finishedRaw.Valid)
	job.LastHeartbeat = database.ParseTimePtr(heartbeatRaw.String, heartbeatRaw.Valid)
	return &job, nil
}

// Enqueue adds a queued job for assetID. When the asset already has a queued
// job, that job is returned with created=false. A running job never absorbs a
// new request: it may already have recorded its outcome on the asset.
func (s *Store) Enqueue(ctx context.Context, assetID int64, requestID string, force bool) (*Job, bool, error) {
	if strings.TrimSpace(requestID) == "" {
		return nil, false, errors.New("enqueue: request id is required")
	}
	now := database.Now()
	res, err := s.db.Exec(ctx,
		`INSERT OR IGNORE INTO conversion_jobs (asset_id, status, request_id, forced, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		assetID, StatusQueued, requestID, boolToInt(force), now, now,
	)
	if err != nil {
		return nil, false, fmt.Errorf("enqueue job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("enqueue job: %w", err)
	}
	if affected == 0 {
		job, err := s.queuedForAsset(ctx, assetID)
		if err != nil {
			return nil, false, err
		}
		if job == nil {
			return nil, false, fmt.Errorf("enqueue job: asset %d insert ignored without a queued job", assetID)
		}
		return job, false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("last insert id: %w", err)
	}
	job, err := s.GetByID(ctx, id)
	return job, true, err
}

// Claim atomically moves the oldest queued job to running for workerID. It
// returns nil when nothing is queued.
func (s *Store) Claim(ctx context.Context, workerID string) (*Job, error) {
	var job *Job
	err := database.RetryOnBusy(ctx, func() error {
		now := database.Now()
		row := s.db.QueryRow(ctx,
			`UPDATE conversion_jobs
             SET status = ?, worker_id = ?, started_at = ?, last_heartbeat = ?, updated_at = ?
             WHERE id = (SELECT id FROM conversion_jobs WHERE status = ? ORDER BY id LIMIT 1)
               AND status = ?
             RETURNING `+jobColumns,
			StatusRunning, workerID, now, now, now, StatusQueued, StatusQueued,
		)
		var scanErr error
		job, scanErr = scanJob(row)
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// Finish records the terminal status of a running job.
func (s *Store) Finish(ctx context.Context, id int64, status Status, message string) error {
	if !IsFinished(status) {
		return fmt.Errorf("finish job: %q is not a terminal status", status)
	}
	now := database.Now()
	res, err := s.db.Exec(ctx,
		`UPDATE conversion_jobs
         SET status = ?, error_message = ?, finished_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		status, database.NullableString(message), now, now, id, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("finish job %d: job is not running", id)
	}
	return nil
}

// UpdateHeartbeat updates the last heartbeat timestamp for a running job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := database.Now()
	if _, err := s.db.Exec(ctx,
		`UPDATE conversion_jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		now, now, id, StatusRunning,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStale fails running jobs whose heartbeat is older than cutoff and
// returns them so callers can release their assets.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) ([]*Job, error) {
	now := database.Now()
	rows, err := s.db.Query(ctx,
		`UPDATE conversion_jobs
         SET status = ?, error_message = ?, finished_at = ?, updated_at = ?
         WHERE status = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)
         RETURNING `+jobColumns,
		StatusFailed, HeartbeatLostReason, now, now, StatusRunning, database.FormatTime(cutoff),
	)
	if err != nil {
		return nil, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return collectJobs(rows)
}

// GetByID fetches a job by identifier. A missing job yields nil, nil.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	job, err := scanJob(s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM conversion_jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ActiveForAsset returns the newest queued or running job for assetID, if any.
func (s *Store) ActiveForAsset(ctx context.Context, assetID int64) (*Job, error) {
	job, err := scanJob(s.db.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM conversion_jobs WHERE asset_id = ? AND status IN (?, ?) ORDER BY id DESC LIMIT 1`,
		assetID, StatusQueued, StatusRunning,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active job: %w", err)
	}
	return job, nil
}

func (s *Store) queuedForAsset(ctx context.Context, assetID int64) (*Job, error) {
	job, err := scanJob(s.db.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM conversion_jobs WHERE asset_id = ? AND status = ?`,
		assetID, StatusQueued,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queued job: %w", err)
	}
	return job, nil
}

// Recent returns up to limit jobs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `SELECT `+jobColumns+` FROM conversion_jobs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent jobs: %w", err)
	}
	return collectJobs(rows)
}

// ClearFinished deletes done, failed and skipped jobs.
func (s *Store) ClearFinished(ctx context.Context) (int64, error) {
	res, err := s.db.Exec(ctx,
		`DELETE FROM conversion_jobs WHERE status IN (?, ?, ?)`,
		StatusDone, StatusFailed, StatusSkipped,
	)
	if err != nil {
		return 0, fmt.Errorf("clear finished jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.Query(ctx, `SELECT status, COUNT(1) FROM conversion_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var (
			status Status
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates job counts for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	var health HealthSummary
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusQueued:
			health.Queued += count
		case StatusRunning:
			health.Running += count
		case StatusDone:
			health.Done += count
		case StatusFailed:
			health.Failed += count
		case StatusSkipped:
			health.Skipped += count
		}
	}
	return health, nil
}

func collectJobs(rows *sql.Rows) ([]*Job, error) {
	defer rows.Close()
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
