package assetstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"aimatrix/internal/clock"
	"aimatrix/internal/config"
	"aimatrix/internal/job"
	"aimatrix/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; existing databases must then be deleted and recreated.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Store persists assets and workflow definitions in SQLite.
type Store struct {
	db    *sql.DB
	clock clock.Clock
	path  string
}

// Open initializes or connects to the database at the config's data path.
func Open(cfg *config.Config, clk clock.Clock) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	if clk == nil {
		clk = clock.System{}
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, clock: clk, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

const assetColumns = "id, job_id, scene_id, kind, path, metadata_json, created_at"

// CreateAsset validates and persists one asset, returning the stored row.
func (s *Store) CreateAsset(ctx context.Context, spec Spec) (*Asset, error) {
	if spec.JobID == "" {
		return nil, services.Wrap(services.ErrValidation, "assetstore", "create", "asset job id is required", nil)
	}
	if spec.Path == "" {
		return nil, services.Wrap(services.ErrValidation, "assetstore", "create", "asset path is required", nil)
	}
	if !validKind(spec.Kind) {
		return nil, services.Wrap(services.ErrValidation, "assetstore", "create", "unknown asset kind "+string(spec.Kind), nil)
	}

	timestamp := s.clock.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO assets (job_id, scene_id, kind, path, metadata_json, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		spec.JobID,
		nullableString(spec.SceneID),
		string(spec.Kind),
		spec.Path,
		nullableString(string(spec.Metadata)),
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert asset: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetAsset(ctx, id)
}

// GetAsset fetches one asset by row id.
func (s *Store) GetAsset(ctx context.Context, id int64) (*Asset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "assetstore", "get", fmt.Sprintf("no asset with id %d", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return asset, nil
}

// QueryAssets returns assets matching the filter, oldest first.
func (s *Store) QueryAssets(ctx context.Context, filter Filter) ([]*Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets`
	var (
		clauses []string
		args    []any
	)
	if filter.JobID != "" {
		clauses = append(clauses, "job_id = ?")
		args = append(args, filter.JobID)
	}
	if filter.SceneID != "" {
		clauses = append(clauses, "scene_id = ?")
		args = append(args, filter.SceneID)
	}
	if filter.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer rows.Close()

	var assets []*Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

// DeleteAssetsForJob removes every asset recorded for a job.
func (s *Store) DeleteAssetsForJob(ctx context.Context, jobID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE job_id = ?`, jobID)
	if err != nil {
		return 0, fmt.Errorf("delete assets: %w", err)
	}
	return res.RowsAffected()
}

func validKind(kind job.PortType) bool {
	switch kind {
	case job.PortText, job.PortImage, job.PortVideo, job.PortAudio, job.PortFile:
		return true
	default:
		return false
	}
}
