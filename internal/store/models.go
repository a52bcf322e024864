package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/modelforge/modelforge/internal/domain"
)

// CreateModel inserts a candidate Model under a Provider, encoding its
// parameter map as JSON (spec §4.2 — params vary per adapter kind).
func (s *Store) CreateModel(ctx context.Context, m *domain.Model) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	paramsJSON, err := marshalParams(m.Params)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO models (id, provider_id, label, vendor_model_id, params)
		VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ProviderID, m.Label, m.VendorID, paramsJSON)
	if err != nil {
		return fmt.Errorf("failed to create model: %w", err)
	}
	return nil
}

func (s *Store) GetModel(ctx context.Context, id string) (*domain.Model, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, provider_id, label, vendor_model_id, params FROM models WHERE id = ?`, id)
	return scanModel(row)
}

// ListModelsByProvider returns every Model registered under a Provider.
func (s *Store) ListModelsByProvider(ctx context.Context, providerID string) ([]*domain.Model, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider_id, label, vendor_model_id, params
		FROM models WHERE provider_id = ? ORDER BY label ASC`, providerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	var out []*domain.Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ResolveModelProvider fetches the Provider that owns a Model, used by the
// Scheduler to pick the adapter kind and credential for a candidate.
func (s *Store) ResolveModelProvider(ctx context.Context, modelID string) (*domain.Model, *domain.Provider, error) {
	m, err := s.GetModel(ctx, modelID)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.GetProvider(ctx, m.ProviderID)
	if err != nil {
		return nil, nil, err
	}
	return m, p, nil
}

func scanModel(row rowScanner) (*domain.Model, error) {
	m := &domain.Model{}
	var paramsJSON string
	if err := row.Scan(&m.ID, &m.ProviderID, &m.Label, &m.VendorID, &paramsJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("model not found")
		}
		return nil, fmt.Errorf("failed to scan model: %w", err)
	}
	params, err := unmarshalParams(paramsJSON)
	if err != nil {
		return nil, err
	}
	m.Params = params
	return m, nil
}

func marshalParams(params map[string]domain.ParamValue) (string, error) {
	if params == nil {
		return "{}", nil
	}
	b, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to encode model params: %w", err)
	}
	return string(b), nil
}

func unmarshalParams(raw string) (map[string]domain.ParamValue, error) {
	if raw == "" {
		return map[string]domain.ParamValue{}, nil
	}
	var params map[string]domain.ParamValue
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, fmt.Errorf("failed to decode model params: %w", err)
	}
	return params, nil
}
