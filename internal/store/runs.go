package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/modelforge/modelforge/internal/domain"
)

// CreateRun inserts a Run, defaulting Status to domain.RunQueued when unset.
func (s *Store) CreateRun(ctx context.Context, r *domain.Run) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = domain.RunQueued
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	modelIDsJSON, err := json.Marshal(r.ModelIDs)
	if err != nil {
		return fmt.Errorf("failed to encode run model ids: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, name, problem_set_id, model_ids, judge_model_id, status, stream, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, nullIfEmpty(r.Name), r.ProblemSetID, string(modelIDsJSON), r.JudgeModelID,
		string(r.Status), boolToInt(r.StreamEnabled), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(name, ''), problem_set_id, model_ids, judge_model_id, status, stream,
		       created_at, cancelled_at, COALESCE(cancelled_by, '')
		FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// RunFilter narrows ListRuns to a status and/or problem set (spec §6.1
// list_runs); zero values are "no filter".
type RunFilter struct {
	Status       domain.RunStatus
	ProblemSetID string
	Limit        int
}

// ListRuns returns runs newest-first, optionally filtered by status and/or
// problem set, capped at f.Limit (clamped to [1,200], default 50).
func (s *Store) ListRuns(ctx context.Context, f RunFilter) ([]*domain.Run, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	query := `
		SELECT id, COALESCE(name, ''), problem_set_id, model_ids, judge_model_id, status, stream,
		       created_at, cancelled_at, COALESCE(cancelled_by, '')
		FROM runs WHERE 1=1`
	var args []any
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.ProblemSetID != "" {
		query += ` AND problem_set_id = ?`
		args = append(args, f.ProblemSetID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []*domain.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TransitionRunStatus moves a Run to `to` only if its current status is a
// member of fromSet, failing otherwise (spec §4.1). cancelledBy is recorded
// only on a transition into domain.RunCancelled.
func (s *Store) TransitionRunStatus(ctx context.Context, runID string, fromSet []domain.RunStatus, to domain.RunStatus, cancelledBy string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transition transaction: %w", err)
	}
	defer tx.Rollback()

	var current string
	if err := tx.QueryRowContext(ctx, `SELECT status FROM runs WHERE id = ?`, runID).Scan(&current); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("run not found: %s", runID)
		}
		return fmt.Errorf("failed to read run status: %w", err)
	}

	allowed := false
	for _, f := range fromSet {
		if string(f) == current {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("run %s: invalid transition from %s to %s", runID, current, to)
	}

	if to == domain.RunCancelled {
		_, err = tx.ExecContext(ctx,
			`UPDATE runs SET status = ?, cancelled_at = ?, cancelled_by = ? WHERE id = ?`,
			string(to), time.Now().UTC(), nullIfEmpty(cancelledBy), runID)
	} else {
		_, err = tx.ExecContext(ctx, `UPDATE runs SET status = ? WHERE id = ?`, string(to), runID)
	}
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}

	return tx.Commit()
}

func scanRun(row rowScanner) (*domain.Run, error) {
	r := &domain.Run{}
	var modelIDsJSON, status string
	var stream int
	var cancelledAt sql.NullTime
	if err := row.Scan(&r.ID, &r.Name, &r.ProblemSetID, &modelIDsJSON, &r.JudgeModelID, &status,
		&stream, &r.CreatedAt, &cancelledAt, &r.CancelledBy); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run not found")
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	if err := json.Unmarshal([]byte(modelIDsJSON), &r.ModelIDs); err != nil {
		return nil, fmt.Errorf("failed to decode run model ids: %w", err)
	}
	r.Status = domain.RunStatus(status)
	r.StreamEnabled = stream != 0
	if cancelledAt.Valid {
		t := cancelledAt.Time
		r.CancelledAt = &t
	}
	return r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
