package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelforge/modelforge/internal/domain"
)

// CreateRunResult inserts a RunResult row for one (run, problem, model)
// triple, defaulting Status to pending when unset. The Scheduler creates one
// as each model worker reaches a problem, before calling the model.
func (s *Store) CreateRunResult(ctx context.Context, r *domain.RunResult) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = domain.ResultPending
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_results (id, run_id, problem_id, model_id, output, score, status, judged_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RunID, r.ProblemID, r.ModelID, nullIfEmpty(r.Output), r.Score, string(r.Status),
		nullIfEmpty(r.JudgedBy), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create run result: %w", err)
	}
	return nil
}

func (s *Store) GetRunResult(ctx context.Context, id string) (*domain.RunResult, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, run_id, problem_id, model_id, COALESCE(output, ''), score, status,
		       COALESCE(judged_by, ''), COALESCE(judge_reasoning, ''), created_at, cancelled_at
		FROM run_results WHERE id = ?`, id)
	return scanRunResult(row)
}

// ListRunResultsByRun returns every RunResult recorded for a Run.
func (s *Store) ListRunResultsByRun(ctx context.Context, runID string) ([]*domain.RunResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, problem_id, model_id, COALESCE(output, ''), score, status,
		       COALESCE(judged_by, ''), COALESCE(judge_reasoning, ''), created_at, cancelled_at
		FROM run_results WHERE run_id = ? ORDER BY created_at ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list run results: %w", err)
	}
	defer rows.Close()

	var out []*domain.RunResult
	for rows.Next() {
		r, err := scanRunResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkResult applies a partial update to a RunResult; only non-nil patch
// fields are touched (spec §4.1).
func (s *Store) MarkResult(ctx context.Context, resultID string, patch domain.ResultPatch) error {
	var sets []string
	var args []any

	if patch.Output != nil {
		sets = append(sets, "output = ?")
		args = append(args, *patch.Output)
	}
	if patch.Score != nil {
		sets = append(sets, "score = ?")
		args = append(args, *patch.Score)
	}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*patch.Status))
	}
	if patch.JudgedBy != nil {
		sets = append(sets, "judged_by = ?")
		args = append(args, *patch.JudgedBy)
	}
	if patch.JudgeReasoning != nil {
		sets = append(sets, "judge_reasoning = ?")
		args = append(args, *patch.JudgeReasoning)
	}
	if patch.CancelledAt != nil {
		sets = append(sets, "cancelled_at = ?")
		args = append(args, *patch.CancelledAt)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, resultID)
	query := fmt.Sprintf("UPDATE run_results SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to mark run result: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run result not found: %s", resultID)
	}
	return nil
}

func scanRunResult(row rowScanner) (*domain.RunResult, error) {
	r := &domain.RunResult{}
	var status string
	var score sql.NullInt64
	var cancelledAt sql.NullTime
	if err := row.Scan(&r.ID, &r.RunID, &r.ProblemID, &r.ModelID, &r.Output, &score, &status,
		&r.JudgedBy, &r.JudgeReasoning, &r.CreatedAt, &cancelledAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run result not found")
		}
		return nil, fmt.Errorf("failed to scan run result: %w", err)
	}
	r.Status = domain.ResultStatus(status)
	if score.Valid {
		v := int(score.Int64)
		r.Score = &v
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		r.CancelledAt = &t
	}
	return r, nil
}
