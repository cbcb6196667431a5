package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // Postgres driver
	_ "github.com/mattn/go-sqlite3"

	"swotlens/internal/core"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

var (
	// ErrNotFound is returned when no report matches an ID.
	ErrNotFound = errors.New("report not found")
	// ErrAmbiguousID is returned when an ID prefix matches several reports.
	ErrAmbiguousID = errors.New("report ID prefix is ambiguous")
)

// Store persists analysis reports in SQLite or PostgreSQL
type Store struct {
	db     *sql.DB
	driver string
	path   string // SQLite file, empty for postgres
}

// ReportSummary is one row of the report listing
type ReportSummary struct {
	ID        string
	Model     string
	Mode      string
	Reviews   int
	Batches   int
	Succeeded int
	Skipped   int
	Findings  int
	StartedAt time.Time
	Duration  time.Duration
}

// Stats represents store statistics
type Stats struct {
	ReportCount    int
	FindingCount   int
	SkippedBatches int
	LastReport     time.Time
	DatabaseSize   int64 // SQLite only
}

// NewStore creates a SQLite store in dataDir
func NewStore(dataDir string) (*Store, error) {
	// Ensure data directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return Open(DriverSQLite, filepath.Join(dataDir, "reports.db"))
}

// Open connects to a database and creates the schema if needed
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, driver: driver}
	if driver == DriverSQLite {
		s.path = dsn
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := s.initialize(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

// initialize creates the necessary tables
func (s *Store) initialize(ctx context.Context) error {
	reportsTable := `
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		model TEXT NOT NULL DEFAULT '',
		mode TEXT NOT NULL DEFAULT '',
		reviews INTEGER NOT NULL DEFAULT 0,
		batches INTEGER NOT NULL DEFAULT 0,
		succeeded INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		skipped_batches TEXT NOT NULL DEFAULT '[]',
		findings INTEGER NOT NULL DEFAULT 0,
		result TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);`

	startedIndex := `CREATE INDEX IF NOT EXISTS idx_reports_started_at ON reports (started_at);`

	for _, stmt := range []string{reportsTable, startedIndex} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the database driver name
func (s *Store) Driver() string { return s.driver }

// SaveReport stores a report, replacing any report with the same ID. A report
// without a run ID is given one.
func (s *Store) SaveReport(ctx context.Context, report *core.AggregatedReport) error {
	if report == nil {
		return errors.New("cannot save nil report")
	}
	if report.Run.ID == "" {
		report.Run.ID = uuid.NewString()
	}
	if report.Run.StartedAt.IsZero() {
		report.Run.StartedAt = time.Now()
	}

	result, err := json.Marshal(report.StructuredResult)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	skipped := report.Run.SkippedBatches
	if skipped == nil {
		skipped = []core.SkippedBatch{}
	}
	skippedJSON, err := json.Marshal(skipped)
	if err != nil {
		return fmt.Errorf("failed to marshal skipped batches: %w", err)
	}

	query := `
	INSERT INTO reports
	(id, model, mode, reviews, batches, succeeded, skipped, skipped_batches, findings, result, started_at, duration_ms, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		model = excluded.model,
		mode = excluded.mode,
		reviews = excluded.reviews,
		batches = excluded.batches,
		succeeded = excluded.succeeded,
		skipped = excluded.skipped,
		skipped_batches = excluded.skipped_batches,
		findings = excluded.findings,
		result = excluded.result,
		started_at = excluded.started_at,
		duration_ms = excluded.duration_ms`

	run := report.Run
	_, err = s.db.ExecContext(ctx, s.rebind(query),
		run.ID,
		run.Model,
		run.Mode,
		run.Reviews,
		run.Batches,
		run.Succeeded,
		run.Skipped,
		string(skippedJSON),
		report.SWOT.Count(),
		string(result),
		run.StartedAt.UTC(),
		run.Duration.Milliseconds(),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save report %s: %w", run.ID, err)
	}
	return nil
}

// GetReport loads a report by ID or unique ID prefix
func (s *Store) GetReport(ctx context.Context, id string) (*core.AggregatedReport, error) {
	fullID, err := s.resolveID(ctx, id)
	if err != nil {
		return nil, err
	}

	query := `
	SELECT id, model, mode, reviews, batches, succeeded, skipped, skipped_batches, result, started_at, duration_ms
	FROM reports
	WHERE id = ?`

	var (
		report      core.AggregatedReport
		skippedJSON string
		resultJSON  string
		durationMS  int64
	)
	run := &report.Run
	err = s.db.QueryRowContext(ctx, s.rebind(query), fullID).Scan(
		&run.ID,
		&run.Model,
		&run.Mode,
		&run.Reviews,
		&run.Batches,
		&run.Succeeded,
		&run.Skipped,
		&skippedJSON,
		&resultJSON,
		&run.StartedAt,
		&durationMS,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan report: %w", err)
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond

	dec := json.NewDecoder(bytes.NewReader([]byte(resultJSON)))
	dec.UseNumber()
	if err := dec.Decode(&report.StructuredResult); err != nil {
		return nil, fmt.Errorf("failed to decode stored report %s: %w", fullID, err)
	}
	if err := json.Unmarshal([]byte(skippedJSON), &run.SkippedBatches); err != nil {
		return nil, fmt.Errorf("failed to decode skipped batches of %s: %w", fullID, err)
	}
	if len(run.SkippedBatches) == 0 {
		run.SkippedBatches = nil
	}
	fillEmpty(&report.SWOT)

	return &report, nil
}

// ListReports returns the newest reports first. A limit of 0 returns all.
func (s *Store) ListReports(ctx context.Context, limit int) ([]ReportSummary, error) {
	query := `
	SELECT id, model, mode, reviews, batches, succeeded, skipped, findings, started_at, duration_ms
	FROM reports
	ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var summaries []ReportSummary
	for rows.Next() {
		var r ReportSummary
		var durationMS int64
		if err := rows.Scan(&r.ID, &r.Model, &r.Mode, &r.Reviews, &r.Batches, &r.Succeeded,
			&r.Skipped, &r.Findings, &r.StartedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		summaries = append(summaries, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return summaries, nil
}

// DeleteReport removes a report by ID or unique ID prefix
func (s *Store) DeleteReport(ctx context.Context, id string) error {
	fullID, err := s.resolveID(ctx, id)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM reports WHERE id = ?`), fullID)
	if err != nil {
		return fmt.Errorf("failed to delete report %s: %w", fullID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Stats returns statistics about stored reports
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	query := `SELECT COUNT(*), COALESCE(SUM(findings), 0), COALESCE(SUM(skipped), 0) FROM reports`
	if err := s.db.QueryRowContext(ctx, query).Scan(&stats.ReportCount, &stats.FindingCount, &stats.SkippedBatches); err != nil {
		return nil, fmt.Errorf("failed to get counts: %w", err)
	}

	if stats.ReportCount > 0 {
		var t time.Time
		err := s.db.QueryRowContext(ctx, `SELECT started_at FROM reports ORDER BY started_at DESC LIMIT 1`).Scan(&t)
		if err != nil {
			return nil, fmt.Errorf("failed to get last report: %w", err)
		}
		stats.LastReport = t
	}

	// Get database size (file size)
	if s.path != "" {
		if fileInfo, err := os.Stat(s.path); err == nil {
			stats.DatabaseSize = fileInfo.Size()
		}
	}
	return stats, nil
}

// resolveID expands a unique ID prefix to the full report ID
func (s *Store) resolveID(ctx context.Context, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: empty ID", ErrNotFound)
	}

	prefix := stripWildcards(id)
	if prefix == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id FROM reports WHERE id = ? OR id LIKE ? LIMIT 2`), id, prefix+"%")
	if err != nil {
		return "", fmt.Errorf("failed to look up report %s: %w", id, err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return "", fmt.Errorf("failed to scan report ID: %w", err)
		}
		if m == id {
			return m, nil
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to look up report %s: %w", id, err)
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("%w: %s", ErrAmbiguousID, id)
}

// rebind converts ? placeholders to $n for postgres
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func stripWildcards(s string) string {
	return strings.NewReplacer("%", "", "_", "").Replace(s)
}

func fillEmpty(s *core.SWOT) {
	for _, c := range core.AllCategories {
		if s.Get(c) == nil {
			s.Set(c, []core.Finding{})
		}
	}
}
