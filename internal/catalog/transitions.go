package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"coursecast/internal/database"
	"coursecast/internal/services"
)

// Each transition is a single conditional UPDATE whose WHERE clause is built
// from the transitions table, so concurrent callers cannot both succeed.

var allStatuses = []HLSStatus{StatusNone, StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

// transitionGuard renders the hls_status condition admitting every status
// CanTransition allows a move to `to` from.
func transitionGuard(to HLSStatus, force bool) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	for _, from := range allStatuses {
		if !CanTransition(from, to, force) {
			continue
		}
		if from == StatusNone {
			clauses = append(clauses, "hls_status IS NULL")
			continue
		}
		args = append(args, string(from))
	}
	if len(args) > 0 {
		clauses = append(clauses, "hls_status IN ("+database.Placeholders(len(args))+")")
	}
	if len(clauses) == 0 {
		return "0", nil
	}
	return "(" + strings.Join(clauses, " OR ") + ")", args
}

// MarkPending moves an asset to pending and clears every output field. Assets
// in none, pending or failed qualify; completed assets require force.
func (s *Store) MarkPending(ctx context.Context, id int64, force bool) error {
	guard, from := transitionGuard(StatusPending, force)
	res, err := s.db.Exec(ctx,
		`UPDATE video_assets
         SET hls_status = 'pending', hls_manifest_path = NULL, hls_error_message = NULL,
             hls_encoded_at = NULL, updated_at = ?
         WHERE id = ? AND `+guard,
		append([]any{database.Now(), id}, from...)...,
	)
	if err != nil {
		return fmt.Errorf("mark pending: %w", err)
	}
	return s.checkTransition(ctx, res, id, StatusPending)
}

// ClaimProcessing moves a pending asset to processing. It returns false when
// the asset is not pending, which means another worker already claimed it or
// the request was superseded.
func (s *Store) ClaimProcessing(ctx context.Context, id int64) (bool, error) {
	guard, from := transitionGuard(StatusProcessing, false)
	res, err := s.db.Exec(ctx,
		`UPDATE video_assets SET hls_status = 'processing', updated_at = ?
         WHERE id = ? AND `+guard,
		append([]any{database.Now(), id}, from...)...,
	)
	if err != nil {
		return false, fmt.Errorf("claim processing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim processing: %w", err)
	}
	return affected == 1, nil
}

// MarkCompleted records a finished conversion.
func (s *Store) MarkCompleted(ctx context.Context, id int64, manifestPath string, encodedAt time.Time) error {
	manifestPath = strings.TrimSpace(manifestPath)
	if manifestPath == "" {
		return fmt.Errorf("mark completed: manifest path is required")
	}
	if encodedAt.IsZero() {
		encodedAt = time.Now()
	}
	guard, from := transitionGuard(StatusCompleted, false)
	res, err := s.db.Exec(ctx,
		`UPDATE video_assets
         SET hls_status = 'completed', hls_manifest_path = ?, hls_encoded_at = ?,
             hls_error_message = NULL, updated_at = ?
         WHERE id = ? AND `+guard,
		append([]any{manifestPath, database.FormatTime(encodedAt), database.Now(), id}, from...)...,
	)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return s.checkTransition(ctx, res, id, StatusCompleted)
}

// MarkFailed records a failed conversion with a readable message.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		message = "conversion failed"
	}
	guard, from := transitionGuard(StatusFailed, false)
	res, err := s.db.Exec(ctx,
		`UPDATE video_assets
         SET hls_status = 'failed', hls_error_message = ?, hls_manifest_path = NULL,
             hls_encoded_at = NULL, updated_at = ?
         WHERE id = ? AND `+guard,
		append([]any{message, database.Now(), id}, from...)...,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return s.checkTransition(ctx, res, id, StatusFailed)
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

func (s *Store) checkTransition(ctx context.Context, res rowsAffecter, id int64, to HLSStatus) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition to %s: %w", to.Label(), err)
	}
	if affected == 1 {
		return nil
	}
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("asset %d: %w", id, services.ErrNotFound)
	}
	return fmt.Errorf("%w: asset %d %s -> %s", ErrInvalidTransition, id, current.HLSStatus.Label(), to.Label())
}
