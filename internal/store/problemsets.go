package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/modelforge/modelforge/internal/domain"
)

func (s *Store) CreateProblemSet(ctx context.Context, ps *domain.ProblemSet) error {
	if ps.ID == "" {
		ps.ID = uuid.New().String()
	}
	if ps.CreatedAt.IsZero() {
		ps.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO problem_sets (id, name, description, created_at)
		VALUES (?, ?, ?, ?)`,
		ps.ID, ps.Name, nullIfEmpty(ps.Description), ps.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create problem set: %w", err)
	}
	return nil
}

func (s *Store) GetProblemSet(ctx context.Context, id string) (*domain.ProblemSet, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(description, ''), created_at FROM problem_sets WHERE id = ?`, id)
	ps := &domain.ProblemSet{}
	if err := row.Scan(&ps.ID, &ps.Name, &ps.Description, &ps.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("problem set not found")
		}
		return nil, fmt.Errorf("failed to scan problem set: %w", err)
	}
	return ps, nil
}

func (s *Store) ListProblemSets(ctx context.Context) ([]*domain.ProblemSet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(description, ''), created_at
		FROM problem_sets ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list problem sets: %w", err)
	}
	defer rows.Close()

	var out []*domain.ProblemSet
	for rows.Next() {
		ps := &domain.ProblemSet{}
		if err := rows.Scan(&ps.ID, &ps.Name, &ps.Description, &ps.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan problem set: %w", err)
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}
