package store

import (
	"context"
	"fmt"
)

// withForeignKeysOff disables FK enforcement for the duration of fn and
// guarantees it is re-enabled on every exit path, including a panic. sqlite
// only honors the foreign_keys pragma outside an open transaction, so it is
// toggled on the shared connection around — not inside — the transaction fn
// opens.
func (s *Store) withForeignKeysOff(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, execErr := s.db.ExecContext(ctx, `PRAGMA foreign_keys = OFF`); execErr != nil {
		return fmt.Errorf("failed to disable foreign keys: %w", execErr)
	}
	defer func() {
		if _, execErr := s.db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); execErr != nil && err == nil {
			err = fmt.Errorf("failed to re-enable foreign keys: %w", execErr)
		}
	}()

	return fn(ctx)
}

// CascadeDeleteProblemSet removes a ProblemSet and every Problem, Run and
// RunResult it implicates, in one transaction (spec §4.1).
func (s *Store) CascadeDeleteProblemSet(ctx context.Context, id string) error {
	return s.withForeignKeysOff(ctx, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin cascade delete: %w", err)
		}
		defer tx.Rollback()

		stmts := []struct {
			query string
			arg   string
		}{
			{`DELETE FROM run_results WHERE run_id IN (SELECT id FROM runs WHERE problem_set_id = ?)`, id},
			{`DELETE FROM runs WHERE problem_set_id = ?`, id},
			{`DELETE FROM problems WHERE problem_set_id = ?`, id},
			{`DELETE FROM problem_sets WHERE id = ?`, id},
		}
		for _, st := range stmts {
			if _, err := tx.ExecContext(ctx, st.query, st.arg); err != nil {
				return fmt.Errorf("cascade delete problem set failed (%s): %w", st.query, err)
			}
		}
		return tx.Commit()
	})
}

// modelReferencingRunIDs returns every Run that names id as a candidate (in
// its model_ids JSON array) or as its judge_model_id.
func (s *Store) modelReferencingRunIDs(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, model_ids FROM runs WHERE judge_model_id = ? OR model_ids LIKE '%' || ? || '%'`,
		id, fmt.Sprintf("%q", id))
	if err != nil {
		return nil, fmt.Errorf("failed to query runs referencing model: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var runID, modelIDsJSON string
		if err := rows.Scan(&runID, &modelIDsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan referencing run: %w", err)
		}
		out = append(out, runID)
	}
	return out, rows.Err()
}

// DeleteModel removes a Model, refusing if any Run still references it as a
// candidate or judge (spec §3 invariants). Use CascadeDeleteModel to force
// deletion of those Runs too.
func (s *Store) DeleteModel(ctx context.Context, id string) error {
	referencing, err := s.modelReferencingRunIDs(ctx, id)
	if err != nil {
		return err
	}
	if len(referencing) > 0 {
		return fmt.Errorf("model %s is referenced by %d run(s); use cascade delete", id, len(referencing))
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM models WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete model: %w", err)
	}
	return nil
}

// CascadeDeleteModel removes a Model along with every Run that references
// it (as candidate or judge) and all of those Runs' RunResults (spec §3
// invariants: deleting a model is refused unless cascade is requested).
func (s *Store) CascadeDeleteModel(ctx context.Context, id string) error {
	return s.withForeignKeysOff(ctx, func(ctx context.Context) error {
		referencing, err := s.modelReferencingRunIDs(ctx, id)
		if err != nil {
			return err
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin cascade delete: %w", err)
		}
		defer tx.Rollback()

		for _, runID := range referencing {
			if _, err := tx.ExecContext(ctx, `DELETE FROM run_results WHERE run_id = ?`, runID); err != nil {
				return fmt.Errorf("cascade delete model failed (run_results for run %s): %w", runID, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID); err != nil {
				return fmt.Errorf("cascade delete model failed (run %s): %w", runID, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM run_results WHERE model_id = ?`, id); err != nil {
			return fmt.Errorf("cascade delete model failed (dangling run_results): %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM models WHERE id = ?`, id); err != nil {
			return fmt.Errorf("cascade delete model failed (models): %w", err)
		}
		return tx.Commit()
	})
}

// CascadeDeleteProvider removes a Provider, its Models, and every RunResult
// keyed to one of those models.
func (s *Store) CascadeDeleteProvider(ctx context.Context, id string) error {
	return s.withForeignKeysOff(ctx, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin cascade delete: %w", err)
		}
		defer tx.Rollback()

		stmts := []string{
			`DELETE FROM run_results WHERE model_id IN (SELECT id FROM models WHERE provider_id = ?)`,
			`DELETE FROM models WHERE provider_id = ?`,
			`DELETE FROM providers WHERE id = ?`,
		}
		for _, query := range stmts {
			if _, err := tx.ExecContext(ctx, query, id); err != nil {
				return fmt.Errorf("cascade delete provider failed (%s): %w", query, err)
			}
		}
		return tx.Commit()
	})
}
