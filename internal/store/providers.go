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

var adapterKindAliases = map[string]domain.AdapterKind{
	"openaicompat":     domain.AdapterOpenAICompat,
	"openaicompatible": domain.AdapterOpenAICompat,
	"openai":           domain.AdapterOpenAICompat,
	"oai":              domain.AdapterOpenAICompat,
	"compatible":       domain.AdapterOpenAICompat,
	"anthropic":        domain.AdapterAnthropic,
	"claude":           domain.AdapterAnthropic,
	"gemini":           domain.AdapterGemini,
	"google":           domain.AdapterGemini,
	"googleai":         domain.AdapterGemini,
	"googlegenai":      domain.AdapterGemini,
	"custom":           domain.AdapterCustom,
}

// NormalizeAdapterKind lower-cases and strips non-alphanumerics, then
// collapses known aliases to a canonical kind (spec §4.2).
func NormalizeAdapterKind(raw string) domain.AdapterKind {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	stripped := b.String()
	if canonical, ok := adapterKindAliases[stripped]; ok {
		return canonical
	}
	return domain.AdapterKind(stripped)
}

// CreateProvider inserts a new Provider, generating an ID if unset and
// normalizing its adapter kind.
func (s *Store) CreateProvider(ctx context.Context, p *domain.Provider) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.AdapterKind = NormalizeAdapterKind(string(p.AdapterKind))
	p.BaseURL = strings.TrimRight(p.BaseURL, "/")
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO providers (id, name, adapter_kind, base_url, credential, default_model_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, string(p.AdapterKind), p.BaseURL, nullIfEmpty(p.Credential), nullIfEmpty(p.DefaultModelID), p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}
	return nil
}

func (s *Store) GetProvider(ctx context.Context, id string) (*domain.Provider, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, adapter_kind, base_url, COALESCE(credential, ''), COALESCE(default_model_id, ''),
		       created_at, last_checked
		FROM providers WHERE id = ?`, id)
	return scanProvider(row)
}

func (s *Store) ListProviders(ctx context.Context) ([]*domain.Provider, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, adapter_kind, base_url, COALESCE(credential, ''), COALESCE(default_model_id, ''),
		       created_at, last_checked
		FROM providers ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	defer rows.Close()

	var out []*domain.Provider
	for rows.Next() {
		p, err := scanProviderRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateProviderProbe persists a successful connectivity probe timestamp
// (spec §6.4).
func (s *Store) UpdateProviderProbe(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE providers SET last_checked = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("failed to update provider probe time: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("provider not found: %s", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProvider(row rowScanner) (*domain.Provider, error) {
	p, err := scanProviderCore(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("provider not found")
	}
	return p, err
}

func scanProviderRows(rows *sql.Rows) (*domain.Provider, error) {
	return scanProviderCore(rows)
}

func scanProviderCore(row rowScanner) (*domain.Provider, error) {
	p := &domain.Provider{}
	var adapterKind string
	var lastChecked sql.NullTime
	if err := row.Scan(&p.ID, &p.Name, &adapterKind, &p.BaseURL, &p.Credential, &p.DefaultModelID,
		&p.CreatedAt, &lastChecked); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan provider: %w", err)
	}
	p.AdapterKind = domain.AdapterKind(adapterKind)
	if lastChecked.Valid {
		t := lastChecked.Time
		p.LastProbeAt = &t
	}
	return p, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
