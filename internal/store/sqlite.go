package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nvandessel/rumorsim/internal/models"

	_ "modernc.org/sqlite" // SQLite driver
)

// timeFormat is fixed-width so created_at sorts lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRunStore implements RunStore using SQLite for persistence.
type SQLiteRunStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteRunStore opens (or creates) the run database at dbPath.
func NewSQLiteRunStore(dbPath string) (*SQLiteRunStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRunStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteRunStore) Path() string {
	return s.dbPath
}

// SaveRun inserts a run and its series in one transaction.
func (s *SQLiteRunStore) SaveRun(ctx context.Context, run *models.RunRecord) (string, error) {
	if run == nil {
		return "", errors.New("run is required")
	}
	if err := validateSeries(run.Series); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	p := run.Parameters
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, created_at, steps,
			population_size, surprise_factor, confidence_factor,
			randomize_interaction_counts, stifle_probability, allow_repeat_pairs, seed,
			bully_id, victim_id, victim_was_hit, victim_hears_fraction,
			final_believers, final_victim_reputation
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.CreatedAt.UTC().Format(timeFormat), run.Steps,
		p.PopulationSize, p.SurpriseFactor, p.ConfidenceFactor,
		boolToInt(p.RandomizeInteractionCounts), p.StifleProbability, boolToInt(p.AllowRepeatPairs),
		strconv.FormatUint(p.Seed, 10),
		run.BullyID, run.VictimID, boolToInt(run.VictimWasHit), run.VictimHearsFraction,
		run.FinalBelievers(), run.FinalVictimReputation(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_series (run_id, step, victim_reputation, believers, ignorant, stiflers)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare series insert: %w", err)
	}
	defer stmt.Close()

	ser := run.Series
	for i := range ser.Len() {
		if _, err := stmt.ExecContext(ctx, run.ID, i,
			ser.VictimReputation[i], ser.Believers[i], ser.Ignorant[i], ser.Stiflers[i]); err != nil {
			return "", fmt.Errorf("failed to insert series step %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return run.ID, nil
}

// GetRun retrieves a run with its full series.
func (s *SQLiteRunStore) GetRun(ctx context.Context, id string) (*models.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		run               models.RunRecord
		createdAt, seed   string
		randomize, repeat int
		victimWasHit      int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			id, created_at, steps,
			population_size, surprise_factor, confidence_factor,
			randomize_interaction_counts, stifle_probability, allow_repeat_pairs, seed,
			bully_id, victim_id, victim_was_hit, victim_hears_fraction
		FROM runs WHERE id = ?
	`, id).Scan(
		&run.ID, &createdAt, &run.Steps,
		&run.Parameters.PopulationSize, &run.Parameters.SurpriseFactor, &run.Parameters.ConfidenceFactor,
		&randomize, &run.Parameters.StifleProbability, &repeat, &seed,
		&run.BullyID, &run.VictimID, &victimWasHit, &run.VictimHearsFraction,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	run.Parameters.RandomizeInteractionCounts = randomize != 0
	run.Parameters.AllowRepeatPairs = repeat != 0
	run.VictimWasHit = victimWasHit != 0
	if run.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if run.Parameters.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}

	if run.Series, err = s.loadSeries(ctx, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// loadSeries reads the per-step rows of a run (caller must hold lock).
func (s *SQLiteRunStore) loadSeries(ctx context.Context, id string) (models.Series, error) {
	var ser models.Series

	rows, err := s.db.QueryContext(ctx, `
		SELECT victim_reputation, believers, ignorant, stiflers
		FROM run_series WHERE run_id = ? ORDER BY step
	`, id)
	if err != nil {
		return ser, fmt.Errorf("failed to query series: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rep                          float64
			believers, ignorant, stifled int
		)
		if err := rows.Scan(&rep, &believers, &ignorant, &stifled); err != nil {
			return ser, fmt.Errorf("failed to scan series row: %w", err)
		}
		ser.VictimReputation = append(ser.VictimReputation, rep)
		ser.Believers = append(ser.Believers, believers)
		ser.Ignorant = append(ser.Ignorant, ignorant)
		ser.Stiflers = append(ser.Stiflers, stifled)
	}
	return ser, rows.Err()
}

// ListRuns returns run summaries, newest first.
func (s *SQLiteRunStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, created_at, steps, population_size, seed,
			final_believers, final_victim_reputation, victim_was_hit
		FROM runs ORDER BY created_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	summaries := make([]RunSummary, 0)
	for rows.Next() {
		var (
			sum             RunSummary
			createdAt, seed string
			hit             int
		)
		if err := rows.Scan(&sum.ID, &createdAt, &sum.Steps, &sum.PopulationSize, &seed,
			&sum.FinalBelievers, &sum.FinalVictimReputation, &hit); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if sum.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		if sum.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
			return nil, fmt.Errorf("failed to parse seed: %w", err)
		}
		sum.VictimWasHit = hit != 0
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// DeleteRun removes a run. The series rows go with it via ON DELETE CASCADE.
func (s *SQLiteRunStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteRunStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
