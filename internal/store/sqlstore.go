package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"regent/internal/kernel"
	"regent/internal/metrics"
)

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

// nullStr converts a sql.NullString to a plain string (empty if null).
func nullStr(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// currentSchemaVersion is the target schema version for this build.
const currentSchemaVersion = schemaVersionV1

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db *sql.DB
}

var _ Store = (*SqlStore)(nil)

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory (e.g. .regent) if it does not exist.
func Open(path string) (*SqlStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; parallel seeds serialize through the pool.
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

// Close closes the database.
func (s *SqlStore) Close() error { return s.db.Close() }

func (s *SqlStore) migrate() error {
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
		return fmt.Errorf("schema_version table is empty")
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v != currentSchemaVersion {
		return fmt.Errorf("unknown schema version %d (want %d)", v, currentSchemaVersion)
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

// CreateExperiment inserts e. CreatedAt defaults to now.
func (s *SqlStore) CreateExperiment(e *Experiment) error {
	if e.CreatedAt == "" {
		e.CreatedAt = nowUTC()
	}
	_, err := s.db.Exec("INSERT INTO experiments(id, name, config, created_at) VALUES(?, ?, ?, ?)",
		e.ID, e.Name, e.Config, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert experiment %s: %w", e.ID, err)
	}
	return nil
}

// GetExperiment returns nil, nil when id is unknown.
func (s *SqlStore) GetExperiment(id string) (*Experiment, error) {
	var e Experiment
	err := s.db.QueryRow("SELECT id, name, config, created_at FROM experiments WHERE id = ?", id).
		Scan(&e.ID, &e.Name, &e.Config, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get experiment %s: %w", id, err)
	}
	return &e, nil
}

// SaveRun stores a run summary and its RTD in one transaction.
func (s *SqlStore) SaveRun(experimentID string, r *kernel.RunResult) error {
	counters, err := json.Marshal(r.Interference)
	if err != nil {
		return fmt.Errorf("encode interference counters: %w", err)
	}
	row := runRow(experimentID, r)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin run tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`INSERT INTO runs(experiment_id, seed, status, invalid_reason, failure_class,
		aa_ppm, aaa_ppm, horizon_epochs, lapse_count, max_lapse_epochs, terminal_lapse_epochs,
		total_flips, total_targets, trace_digest, interference)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		experimentID, int64(r.Seed), string(row.Status), row.InvalidReason, string(row.FailureClass),
		row.AAPPM, row.AAAPPM, int64(row.HorizonEpochs), int64(row.LapseCount), int64(row.MaxLapseEpochs),
		int64(row.TerminalLapseEpochs), int64(row.Flips), int64(row.Targets), row.TraceDigest, string(counters))
	if err != nil {
		return fmt.Errorf("insert run seed %d: %w", r.Seed, err)
	}

	if r.Summary != nil {
		for i, n := range r.Summary.RTD {
			var upper sql.NullInt64
			if i < metrics.NumRTDBuckets-1 {
				upper = sql.NullInt64{Int64: int64(metrics.RTDBounds[i]), Valid: true}
			}
			if _, err := tx.Exec("INSERT INTO rtd_buckets(experiment_id, seed, bucket, upper_bound, count) VALUES(?, ?, ?, ?, ?)",
				experimentID, int64(r.Seed), i, upper, int64(n)); err != nil {
				return fmt.Errorf("insert rtd bucket %d seed %d: %w", i, r.Seed, err)
			}
		}
	}
	return tx.Commit()
}

func runRow(experimentID string, r *kernel.RunResult) *Run {
	row := &Run{
		ExperimentID:  experimentID,
		Seed:          r.Seed,
		Status:        r.Status,
		InvalidReason: r.InvalidReason,
		Flips:         r.Interference.Flips,
		Targets:       r.Interference.Targets,
		TraceDigest:   r.TraceDigest,
	}
	if s := r.Summary; s != nil {
		row.FailureClass = s.FailureClass
		row.AAPPM = s.AAPPM
		row.AAAPPM = s.AAAPPM
		row.HorizonEpochs = s.HorizonEpochs
		row.LapseCount = s.LapseCount
		row.MaxLapseEpochs = s.MaxSingleLapseEpochs
		row.TerminalLapseEpochs = s.TerminalLapseEpochs
	}
	return row
}

// ListRuns returns the runs of an experiment ordered by seed.
func (s *SqlStore) ListRuns(experimentID string) ([]*Run, error) {
	rows, err := s.db.Query(`SELECT seed, status, invalid_reason, failure_class, aa_ppm, aaa_ppm,
		horizon_epochs, lapse_count, max_lapse_epochs, terminal_lapse_epochs, total_flips, total_targets, trace_digest
		FROM runs WHERE experiment_id = ? ORDER BY seed`, experimentID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		var (
			r                                  Run
			seed, horizon, lapses, maxL, termL int64
			flips, targets                     int64
			status                             string
			reason, class, digest              sql.NullString
		)
		if err := rows.Scan(&seed, &status, &reason, &class, &r.AAPPM, &r.AAAPPM,
			&horizon, &lapses, &maxL, &termL, &flips, &targets, &digest); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.ExperimentID = experimentID
		r.Seed = uint64(seed)
		r.Status = kernel.Status(status)
		r.InvalidReason = nullStr(reason)
		r.FailureClass = metrics.Class(nullStr(class))
		r.HorizonEpochs = uint64(horizon)
		r.LapseCount = uint64(lapses)
		r.MaxLapseEpochs = uint64(maxL)
		r.TerminalLapseEpochs = uint64(termL)
		r.Flips = uint64(flips)
		r.Targets = uint64(targets)
		r.TraceDigest = nullStr(digest)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// GetRTD returns the stored RTD of one seed; all zero for an invalid run.
func (s *SqlStore) GetRTD(experimentID string, seed uint64) (metrics.RTD, error) {
	var rtd metrics.RTD
	rows, err := s.db.Query("SELECT bucket, count FROM rtd_buckets WHERE experiment_id = ? AND seed = ?",
		experimentID, int64(seed))
	if err != nil {
		return rtd, fmt.Errorf("get rtd: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var bucket int
		var n int64
		if err := rows.Scan(&bucket, &n); err != nil {
			return rtd, fmt.Errorf("scan rtd: %w", err)
		}
		if bucket < 0 || bucket >= metrics.NumRTDBuckets {
			return rtd, fmt.Errorf("rtd bucket %d out of range", bucket)
		}
		rtd[bucket] = uint64(n)
	}
	return rtd, rows.Err()
}

// CountEpochs returns how many epoch rows were recorded for a seed.
func (s *SqlStore) CountEpochs(experimentID string, seed uint64) (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM epochs WHERE experiment_id = ? AND seed = ?",
		experimentID, int64(seed)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count epochs: %w", err)
	}
	return n, nil
}

// epochBatch is the number of epoch rows written per transaction.
const epochBatch = 1024

// EpochWriter is a kernel.Sink that buffers epoch records and writes them in
// batches. It is safe for concurrent use. Call Close to flush the tail.
type EpochWriter struct {
	store        *SqlStore
	experimentID string

	mu  sync.Mutex
	buf []kernel.EpochRecord
}

var _ kernel.Sink = (*EpochWriter)(nil)

// EpochWriter returns a sink that records epochs under experimentID.
func (s *SqlStore) EpochWriter(experimentID string) *EpochWriter {
	return &EpochWriter{store: s, experimentID: experimentID, buf: make([]kernel.EpochRecord, 0, epochBatch)}
}

// RecordEpoch implements kernel.Sink.
func (w *EpochWriter) RecordEpoch(rec kernel.EpochRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, rec)
	if len(w.buf) < epochBatch {
		return nil
	}
	return w.flushLocked()
}

// Close flushes buffered records.
func (w *EpochWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func (w *EpochWriter) flushLocked() error {
	if len(w.buf) == 0 {
		return nil
	}
	tx, err := w.store.db.Begin()
	if err != nil {
		return fmt.Errorf("begin epoch tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.Prepare(`INSERT INTO epochs(experiment_id, seed, epoch, holder, auth, raw_sem_pass,
		post_sem_pass, phase, targets, flips, streak, transition) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare epoch insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range w.buf {
		var holder sql.NullString
		var raw, post sql.NullBool
		if rec.Auth {
			holder = sql.NullString{String: string(rec.Holder), Valid: true}
			raw = sql.NullBool{Bool: rec.Raw.SemPass, Valid: true}
			post = sql.NullBool{Bool: rec.Post.SemPass, Valid: true}
		}
		if _, err := stmt.Exec(w.experimentID, int64(rec.Seed), int64(rec.Epoch), holder, rec.Auth, raw, post,
			rec.Interference.Phase, rec.Interference.Targets, rec.Interference.Flips, rec.Streak,
			string(rec.Transition)); err != nil {
			return fmt.Errorf("insert epoch %d seed %d: %w", rec.Epoch, rec.Seed, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit epochs: %w", err)
	}
	w.buf = w.buf[:0]
	return nil
}
