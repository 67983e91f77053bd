package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(timeLayout) }

func nullStr(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func toNull(s string) sql.NullString { return sql.NullString{String: s, Valid: s != ""} }

const currentSchemaVersion = schemaVersionV1

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db *sql.DB
}

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory (e.g. .looprig) if it does not exist.
func Open(path string) (*SqlStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; the pipeline is sequential anyway
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SqlStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqlStore) migrate() error {
	if _, err := s.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableCount == 0 {
		return s.freshInstall()
	}

	var v int
	err = s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return s.freshInstall()
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v != currentSchemaVersion {
		return fmt.Errorf("unknown schema version %d", v)
	}
	return nil
}

func (s *SqlStore) freshInstall() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(schemaV1); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version(version) VALUES(?)", currentSchemaVersion); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return tx.Commit()
}

// Close closes the underlying database.
func (s *SqlStore) Close() error {
	return s.db.Close()
}

func (s *SqlStore) CreateRun(r *Run) error {
	if r.StartedAt == "" {
		r.StartedAt = nowUTC()
	}
	if r.Status == "" {
		r.Status = StatusRunning
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (id, selector, status, cases, failed, archive, error, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Selector, r.Status, r.Cases, r.Failed, toNull(r.Archive), toNull(r.Error), r.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun stores the final counters and status of r and stamps EndedAt.
func (s *SqlStore) FinishRun(r *Run) error {
	if r.EndedAt == "" {
		r.EndedAt = nowUTC()
	}
	res, err := s.db.Exec(
		`UPDATE runs SET status = ?, cases = ?, failed = ?, archive = ?, error = ?, ended_at = ?
		 WHERE id = ?`,
		r.Status, r.Cases, r.Failed, toNull(r.Archive), toNull(r.Error), r.EndedAt, r.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: run %s not found", r.ID)
	}
	return nil
}

const runColumns = `id, selector, status, cases, failed, archive, error, started_at, ended_at`

func scanRun(sc interface{ Scan(...any) error }) (*Run, error) {
	var r Run
	var archive, errMsg, ended sql.NullString
	if err := sc.Scan(&r.ID, &r.Selector, &r.Status, &r.Cases, &r.Failed, &archive, &errMsg, &r.StartedAt, &ended); err != nil {
		return nil, err
	}
	r.Archive = nullStr(archive)
	r.Error = nullStr(errMsg)
	r.EndedAt = nullStr(ended)
	return &r, nil
}

// GetRun returns nil, nil when no run has the given id.
func (s *SqlStore) GetRun(id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

func (s *SqlStore) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var out []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SqlStore) AddOutcome(o *CaseOutcome) error {
	_, err := s.db.Exec(
		`INSERT INTO outcomes (run_id, seq, case_name, exit_code, failed, reason, duration_ms, bundle_dir, files)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.RunID, o.Seq, o.Case, o.ExitCode, o.Failed, toNull(o.Reason), o.DurationMS, toNull(o.BundleDir), o.Files,
	)
	if err != nil {
		return fmt.Errorf("add outcome %s/%s: %w", o.RunID, o.Case, err)
	}
	return nil
}

func (s *SqlStore) ListOutcomes(runID string) ([]*CaseOutcome, error) {
	rows, err := s.db.Query(
		`SELECT run_id, seq, case_name, exit_code, failed, reason, duration_ms, bundle_dir, files
		 FROM outcomes WHERE run_id = ? ORDER BY seq`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()
	var out []*CaseOutcome
	for rows.Next() {
		var o CaseOutcome
		var reason, bundle sql.NullString
		if err := rows.Scan(&o.RunID, &o.Seq, &o.Case, &o.ExitCode, &o.Failed, &reason, &o.DurationMS, &bundle, &o.Files); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Reason = nullStr(reason)
		o.BundleDir = nullStr(bundle)
		out = append(out, &o)
	}
	return out, rows.Err()
}

// SaveArchiveDigest replaces the recorded archive members of a run.
func (s *SqlStore) SaveArchiveDigest(runID string, sums map[string]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin digest tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(`DELETE FROM archive_members WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("clear digest: %w", err)
	}
	for name, sum := range sums {
		if _, err := tx.Exec(
			`INSERT INTO archive_members (run_id, name, sha256) VALUES (?, ?, ?)`, runID, name, sum,
		); err != nil {
			return fmt.Errorf("save digest %s: %w", name, err)
		}
	}
	return tx.Commit()
}

func (s *SqlStore) ArchiveDigest(runID string) (map[string]string, error) {
	rows, err := s.db.Query(`SELECT name, sha256 FROM archive_members WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("archive digest: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var name, sum string
		if err := rows.Scan(&name, &sum); err != nil {
			return nil, fmt.Errorf("scan digest: %w", err)
		}
		out[name] = sum
	}
	return out, rows.Err()
}
