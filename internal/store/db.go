// Package store implements the Run Execution Engine's persistence layer:
// a self-migrating, write-ahead-logged sqlite database with transactional
// cascade deletes and run/result status transitions.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// Store wraps a sqlite connection pool and the repository operations the
// Scheduler and httpapi layers depend on.
type Store struct {
	db     *sql.DB
	logger *logrus.Logger
}

// Open connects to (and self-migrates) the sqlite file at path. An empty
// path defaults to DefaultDataPath.
func Open(path string, logger *logrus.Logger) (*Store, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if path == "" {
		path = DefaultDataPath()
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	// sqlite only tolerates one writer; every statement, read or write, goes
	// through this single connection, so reads are serialized with writes too.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}
	return s, nil
}

// DefaultDataPath mirrors the teacher's getEnv-with-default configuration
// style (internal/config.go) rather than introducing a config file format.
func DefaultDataPath() string {
	if v := os.Getenv("MODELFORGE_DATA_PATH"); v != "" {
		return v
	}
	return "apps/api/var/data.sqlite"
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range baseSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed (%s): %w", stmt, err)
		}
	}

	for _, cb := range columnBackfills {
		has, err := s.hasColumn(ctx, cb.table, cb.column)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", cb.table, cb.column, cb.definition)
		if _, err := s.db.ExecContext(ctx, alter); err != nil {
			return fmt.Errorf("failed to add column %s.%s: %w", cb.table, cb.column, err)
		}
		s.logger.WithFields(logrus.Fields{"table": cb.table, "column": cb.column}).
			Info("store: backfilled missing column")
	}

	if err := s.backfillProblemCreatedAt(ctx); err != nil {
		return err
	}

	return nil
}

func (s *Store) hasColumn(ctx context.Context, table, column string) (bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("failed to inspect table %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return false, fmt.Errorf("failed to scan table_info row: %w", err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// backfillProblemCreatedAt sets problems.created_at to now for any zero
// rows, per spec §4.1, so chronological ordering stays well-defined on
// data files migrated from a schema that lacked the column.
func (s *Store) backfillProblemCreatedAt(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE problems SET created_at = ? WHERE created_at IS NULL`,
		time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to backfill problems.created_at: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.WithField("rows", n).Info("store: backfilled problems.created_at")
	}
	return nil
}
