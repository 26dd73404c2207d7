// Package history persists one row per completed build run for the
// longitudinal `dtifx history` query surface described in SPEC_FULL.md's
// domain-stack enrichment: run id, timing, cache hit/miss counts, and
// policy violation counts, independent of the flat-file dependency
// snapshot the Dependency Snapshot Store keeps for its own purposes.
package history

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Run is one row of build-run history.
type Run struct {
	ID               string
	Status           string
	StartedAt        time.Time
	EndedAt          *time.Time
	DurationMs       float64
	PlanEntryCount   int
	SnapshotCount    int
	TransformCount   int
	ArtifactCount    int
	CacheHits        int
	CacheMisses      int
	ViolationCount   int
	AuditStatus      *string
	Error            *string
	StageDurationsMs map[string]float64
	CreatedAt        time.Time
}

// Config configures a Store's SQLite connection.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store persists build-run history in SQLite, WAL-mode, one file per
// configured path.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at cfg.Path,
// applies connection pool settings, and runs every pending migration.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("history: database path is required")
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 10
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 2
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("history: migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("history: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("history: migration instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("history: run migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun upserts a completed or failed run. Callers insert once, at the
// end of a pipeline run, with whatever fields are known at that point.
func (s *Store) RecordRun(ctx context.Context, run *Run) error {
	stageDurations, err := json.Marshal(run.StageDurationsMs)
	if err != nil {
		return fmt.Errorf("history: marshal stage durations: %w", err)
	}
	query := `
		INSERT INTO runs (
			id, status, started_at, ended_at, duration_ms,
			plan_entry_count, snapshot_count, transform_count, artifact_count,
			cache_hits, cache_misses, violation_count, audit_status, error,
			stage_durations_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			ended_at = excluded.ended_at,
			duration_ms = excluded.duration_ms,
			plan_entry_count = excluded.plan_entry_count,
			snapshot_count = excluded.snapshot_count,
			transform_count = excluded.transform_count,
			artifact_count = excluded.artifact_count,
			cache_hits = excluded.cache_hits,
			cache_misses = excluded.cache_misses,
			violation_count = excluded.violation_count,
			audit_status = excluded.audit_status,
			error = excluded.error,
			stage_durations_ms = excluded.stage_durations_ms
	`
	_, err = s.db.ExecContext(ctx, query,
		run.ID, run.Status, run.StartedAt, run.EndedAt, run.DurationMs,
		run.PlanEntryCount, run.SnapshotCount, run.TransformCount, run.ArtifactCount,
		run.CacheHits, run.CacheMisses, run.ViolationCount, run.AuditStatus, run.Error,
		string(stageDurations), run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("history: record run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `
		SELECT id, status, started_at, ended_at, duration_ms,
			plan_entry_count, snapshot_count, transform_count, artifact_count,
			cache_hits, cache_misses, violation_count, audit_status, error,
			stage_durations_ms, created_at
		FROM runs WHERE id = ?
	`
	row := s.db.QueryRowContext(ctx, query, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("history: run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("history: get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first, for a `dtifx
// history` listing.
func (s *Store) ListRuns(ctx context.Context, limit, offset int) ([]*Run, error) {
	query := `
		SELECT id, status, started_at, ended_at, duration_ms,
			plan_entry_count, snapshot_count, transform_count, artifact_count,
			cache_hits, cache_misses, violation_count, audit_status, error,
			stage_durations_ms, created_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate runs: %w", err)
	}
	return runs, nil
}

// DeleteRunsBefore removes every run started before cutoff, for retention
// pruning, and reports how many rows were removed.
func (s *Store) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("history: delete runs: %w", err)
	}
	return result.RowsAffected()
}

// scanner abstracts over *sql.Row and *sql.Rows so scanRun serves both
// GetRun and ListRuns.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	run := &Run{}
	var stageDurations string
	if err := sc.Scan(
		&run.ID, &run.Status, &run.StartedAt, &run.EndedAt, &run.DurationMs,
		&run.PlanEntryCount, &run.SnapshotCount, &run.TransformCount, &run.ArtifactCount,
		&run.CacheHits, &run.CacheMisses, &run.ViolationCount, &run.AuditStatus, &run.Error,
		&stageDurations, &run.CreatedAt,
	); err != nil {
		return nil, err
	}
	if stageDurations != "" {
		if err := json.Unmarshal([]byte(stageDurations), &run.StageDurationsMs); err != nil {
			return nil, fmt.Errorf("unmarshal stage durations: %w", err)
		}
	}
	return run, nil
}

// HealthCheck pings the underlying database.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
