package assetstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"aimatrix/internal/job"
	"aimatrix/internal/services"
)

// SaveDefinition inserts or replaces a workflow definition keyed by id.
func (s *Store) SaveDefinition(ctx context.Context, wf *job.Workflow) error {
	if wf == nil || wf.ID == "" {
		return services.Wrap(services.ErrValidation, "assetstore", "save-definition", "definition id is required", nil)
	}
	payload, err := json.Marshal(wf)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}

	timestamp := s.clock.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO workflow_definitions (id, name, type, definition_json, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             name = excluded.name,
             type = excluded.type,
             definition_json = excluded.definition_json,
             updated_at = excluded.updated_at`,
		wf.ID,
		wf.Name,
		string(wf.Type),
		string(payload),
		timestamp,
		timestamp,
	)
	if err != nil {
		return fmt.Errorf("save definition: %w", err)
	}
	return nil
}

// LoadDefinition fetches a saved workflow definition by id.
func (s *Store) LoadDefinition(ctx context.Context, id string) (*job.Workflow, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT definition_json FROM workflow_definitions WHERE id = ?`, id,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "assetstore", "load-definition", "no definition with id "+id, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("load definition: %w", err)
	}

	var wf job.Workflow
	if err := json.Unmarshal([]byte(payload), &wf); err != nil {
		return nil, fmt.Errorf("decode definition %s: %w", id, err)
	}
	return &wf, nil
}

// ListDefinitions returns every saved definition ordered by name.
func (s *Store) ListDefinitions(ctx context.Context) ([]*job.Workflow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT definition_json FROM workflow_definitions ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}
	defer rows.Close()

	var defs []*job.Workflow
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var wf job.Workflow
		if err := json.Unmarshal([]byte(payload), &wf); err != nil {
			return nil, fmt.Errorf("decode definition: %w", err)
		}
		defs = append(defs, &wf)
	}
	return defs, rows.Err()
}

// DeleteDefinition removes a saved definition. Missing ids are a no-op.
func (s *Store) DeleteDefinition(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM workflow_definitions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete definition: %w", err)
	}
	return nil
}
