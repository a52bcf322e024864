package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/modelforge/modelforge/internal/domain"
)

func (s *Store) CreateProblem(ctx context.Context, p *domain.Problem) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Kind == "" {
		p.Kind = domain.ProblemText
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO problems (id, problem_set_id, kind, prompt, expected, html_assets, scoring_hints, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ProblemSetID, string(p.Kind), p.Prompt, nullIfEmpty(p.Expected),
		nullIfEmpty(p.HTMLAssets), nullIfEmpty(p.ScoringHints), p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create problem: %w", err)
	}
	return nil
}

func (s *Store) GetProblem(ctx context.Context, id string) (*domain.Problem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, problem_set_id, kind, prompt, COALESCE(expected, ''), COALESCE(html_assets, ''),
		       COALESCE(scoring_hints, ''), created_at
		FROM problems WHERE id = ?`, id)
	return scanProblem(row)
}

// ListProblemsBySet returns a ProblemSet's problems in ascending created-at
// order, the ordering the Scheduler relies on for per-model FIFO (spec §4.7).
func (s *Store) ListProblemsBySet(ctx context.Context, problemSetID string) ([]*domain.Problem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, problem_set_id, kind, prompt, COALESCE(expected, ''), COALESCE(html_assets, ''),
		       COALESCE(scoring_hints, ''), created_at
		FROM problems WHERE problem_set_id = ? ORDER BY created_at ASC`, problemSetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list problems: %w", err)
	}
	defer rows.Close()

	var out []*domain.Problem
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProblem(row rowScanner) (*domain.Problem, error) {
	p := &domain.Problem{}
	var kind string
	if err := row.Scan(&p.ID, &p.ProblemSetID, &kind, &p.Prompt, &p.Expected, &p.HTMLAssets,
		&p.ScoringHints, &p.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("problem not found")
		}
		return nil, fmt.Errorf("failed to scan problem: %w", err)
	}
	p.Kind = domain.ProblemKind(kind)
	return p, nil
}
