package db

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/spectral.report/internal/change"
	"github.com/banshee-data/spectral.report/internal/pipeline"
	"github.com/banshee-data/spectral.report/internal/raster"
	"github.com/banshee-data/spectral.report/internal/timeutil"
)

// ErrRunNotFound is returned when a run ID is not in the store.
var ErrRunNotFound = errors.New("run not found")

// Run kinds.
const (
	KindChange = "change"
	KindIndex  = "index"
)

// Run is one recorded analysis.
type Run struct {
	RunID            string          `json:"run_id"`
	Kind             string          `json:"kind"`
	BeforeScene      string          `json:"before_scene"`
	AfterScene       string          `json:"after_scene,omitempty"`
	FamilyAIndex     string          `json:"family_a_index"`
	FamilyAThreshold float64         `json:"family_a_threshold"`
	FamilyBIndex     string          `json:"family_b_index,omitempty"`
	FamilyBThreshold float64         `json:"family_b_threshold"`
	Direction        string          `json:"direction"`
	Rule             string          `json:"rule,omitempty"`
	Mode             string          `json:"mode,omitempty"`
	Rows             int             `json:"rows"`
	Cols             int             `json:"cols"`
	Tally            change.Tally    `json:"tally"`
	ParamsJSON       json.RawMessage `json:"params_json,omitempty"`
	CategoryBlob     []byte          `json:"-"`
	DurationMS       int64           `json:"duration_ms"`
	CreatedAt        int64           `json:"created_at"`
}

// Output is a file written by a run.
type Output struct {
	RunID     string `json:"run_id"`
	Kind      string `json:"kind"`
	Path      string `json:"path"`
	CreatedAt int64  `json:"created_at"`
}

// NewChangeRun builds a Run from a completed change analysis. params is
// stored verbatim as the run's parameter snapshot and may be nil.
func NewChangeRun(req pipeline.ChangeRequest, res *pipeline.ChangeResult, params any, took time.Duration) (*Run, error) {
	if res == nil || res.Categories == nil {
		return nil, fmt.Errorf("change run without categories: %w", raster.ErrConfiguration)
	}
	blob, err := EncodeCategories(res.Categories)
	if err != nil {
		return nil, err
	}
	run := &Run{
		Kind:             KindChange,
		BeforeScene:      req.Before.Name,
		AfterScene:       req.After.Name,
		FamilyAIndex:     string(res.FamilyA.Index),
		FamilyAThreshold: res.FamilyA.Threshold,
		FamilyBIndex:     string(res.FamilyB.Index),
		FamilyBThreshold: res.FamilyB.Threshold,
		Direction:        res.Direction.String(),
		Rule:             string(res.Rule),
		Mode:             string(res.Mode),
		Rows:             res.Categories.Shape().Rows,
		Cols:             res.Categories.Shape().Cols,
		Tally:            res.Tally,
		CategoryBlob:     blob,
		DurationMS:       took.Milliseconds(),
	}
	if params != nil {
		if run.ParamsJSON, err = json.Marshal(params); err != nil {
			return nil, fmt.Errorf("encode params: %w", err)
		}
	}
	return run, nil
}

// NewIndexRun builds a Run for an index-only analysis of one scene.
func NewIndexRun(scene pipeline.Scene, results []pipeline.IndexResult, took time.Duration) (*Run, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("index run without results: %w", raster.ErrConfiguration)
	}
	names := make([]string, len(results))
	summaries := make(map[string]raster.Summary, len(results))
	for i, r := range results {
		names[i] = string(r.Name)
		sum := r.Summary
		if sum.Valid == 0 {
			// JSON has no NaN; an all-undefined grid reports zero statistics.
			sum.Min, sum.Max, sum.Mean, sum.StdDev, sum.Median = 0, 0, 0, 0, 0
		}
		summaries[string(r.Name)] = sum
	}
	params, err := json.Marshal(summaries)
	if err != nil {
		return nil, fmt.Errorf("encode summaries: %w", err)
	}
	s := results[0].Grid.Shape()
	return &Run{
		Kind:         KindIndex,
		BeforeScene:  scene.Name,
		FamilyAIndex: strings.Join(names, ","),
		Rows:         s.Rows,
		Cols:         s.Cols,
		ParamsJSON:   params,
		DurationMS:   took.Milliseconds(),
	}, nil
}

type categoryBlob struct {
	Rows, Cols int
	Codes      []uint8
}

// EncodeCategories serialises a category grid as gzip-compressed gob.
func EncodeCategories(g *raster.CategoryGrid) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	s := g.Shape()
	if err := gob.NewEncoder(gz).Encode(categoryBlob{Rows: s.Rows, Cols: s.Cols, Codes: g.Data()}); err != nil {
		return nil, fmt.Errorf("gob encode error: %v", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("gzip error: %v", err)
	}
	return buf.Bytes(), nil
}

// DecodeCategories reverses EncodeCategories.
func DecodeCategories(blob []byte) (*raster.CategoryGrid, error) {
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("gunzip error: %v", err)
	}
	defer gz.Close()
	var cb categoryBlob
	if err := gob.NewDecoder(gz).Decode(&cb); err != nil {
		return nil, fmt.Errorf("gob decode error: %v", err)
	}
	return raster.CategoryGridFromSlice(cb.Rows, cb.Cols, cb.Codes)
}

// RunStore provides persistence for run history.
type RunStore struct {
	db    *DB
	clock timeutil.Clock
}

// NewRunStore creates a RunStore. A nil clock uses the real clock.
func NewRunStore(db *DB, clock timeutil.Clock) *RunStore {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &RunStore{db: db, clock: clock}
}

// Insert persists a run. If RunID is empty, a UUID is generated; if
// CreatedAt is zero, the store clock is used.
func (s *RunStore) Insert(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = s.clock.Now().UnixNano()
	}

	var paramsStr interface{}
	if len(run.ParamsJSON) > 0 {
		paramsStr = string(run.ParamsJSON)
	}

	return retryOnBusy(s.clock, func() error {
		_, err := s.db.Exec(`
			INSERT INTO spectral_runs (
				run_id, kind, before_scene, after_scene,
				family_a_index, family_a_threshold, family_b_index, family_b_threshold,
				direction, rule, mode, grid_rows, grid_cols,
				no_change, a_only, b_only, both_changed,
				params_json, category_blob, duration_ms, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.Kind, run.BeforeScene, run.AfterScene,
			run.FamilyAIndex, run.FamilyAThreshold, run.FamilyBIndex, run.FamilyBThreshold,
			run.Direction, run.Rule, run.Mode, run.Rows, run.Cols,
			run.Tally.NoChange, run.Tally.AOnly, run.Tally.BOnly, run.Tally.Both,
			paramsStr, run.CategoryBlob, run.DurationMS, run.CreatedAt,
		)
		return err
	})
}

const runColumns = `run_id, kind, before_scene, after_scene,
		       family_a_index, family_a_threshold, family_b_index, family_b_threshold,
		       direction, rule, mode, grid_rows, grid_cols,
		       no_change, a_only, b_only, both_changed,
		       params_json, duration_ms, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var paramsStr sql.NullString
	err := row.Scan(
		&r.RunID, &r.Kind, &r.BeforeScene, &r.AfterScene,
		&r.FamilyAIndex, &r.FamilyAThreshold, &r.FamilyBIndex, &r.FamilyBThreshold,
		&r.Direction, &r.Rule, &r.Mode, &r.Rows, &r.Cols,
		&r.Tally.NoChange, &r.Tally.AOnly, &r.Tally.BOnly, &r.Tally.Both,
		&paramsStr, &r.DurationMS, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if paramsStr.Valid {
		r.ParamsJSON = json.RawMessage(paramsStr.String)
	}
	return &r, nil
}

// List returns the most recent runs first. limit <= 0 returns all runs.
// Category blobs are not loaded; use Categories.
func (s *RunStore) List(limit int) ([]*Run, error) {
	q := `SELECT ` + runColumns + ` FROM spectral_runs ORDER BY created_at DESC, run_id`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Get returns a single run by ID without its category blob.
func (s *RunStore) Get(runID string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM spectral_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return r, nil
}

// Categories decodes the category grid stored with a change run.
func (s *RunStore) Categories(runID string) (*raster.CategoryGrid, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT category_blob FROM spectral_runs WHERE run_id = ?`, runID).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
		}
		return nil, fmt.Errorf("query category blob: %w", err)
	}
	if len(blob) == 0 {
		return nil, fmt.Errorf("run %s has no category grid: %w", runID, ErrRunNotFound)
	}
	return DecodeCategories(blob)
}

// Delete removes a run and its outputs.
func (s *RunStore) Delete(runID string) error {
	return retryOnBusy(s.clock, func() error {
		if _, err := s.db.Exec(`DELETE FROM spectral_run_outputs WHERE run_id = ?`, runID); err != nil {
			return err
		}
		result, err := s.db.Exec(`DELETE FROM spectral_runs WHERE run_id = ?`, runID)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
		}
		return nil
	})
}

// AddOutput records a file written by a run.
func (s *RunStore) AddOutput(runID, kind, path string) error {
	return retryOnBusy(s.clock, func() error {
		_, err := s.db.Exec(`
			INSERT OR REPLACE INTO spectral_run_outputs (run_id, kind, path, created_at)
			VALUES (?, ?, ?, ?)`,
			runID, kind, path, s.clock.Now().UnixNano(),
		)
		return err
	})
}

// Outputs lists the files recorded for a run in path order.
func (s *RunStore) Outputs(runID string) ([]Output, error) {
	rows, err := s.db.Query(`
		SELECT run_id, kind, path, created_at
		FROM spectral_run_outputs
		WHERE run_id = ?
		ORDER BY path`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outputs: %w", err)
	}
	defer rows.Close()

	var out []Output
	for rows.Next() {
		var o Output
		if err := rows.Scan(&o.RunID, &o.Kind, &o.Path, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan output: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

const (
	busyRetries = 5
	busyBackoff = 20 * time.Millisecond
)

// retryOnBusy runs fn, retrying with exponential backoff while SQLite
// reports the database as busy or locked.
func retryOnBusy(clock timeutil.Clock, fn func() error) error {
	var err error
	for attempt := 0; attempt < busyRetries; attempt++ {
		if err = fn(); err == nil || !isBusy(err) {
			return err
		}
		clock.Sleep(busyBackoff << attempt)
	}
	return fmt.Errorf("database busy after %d attempts: %w", busyRetries, err)
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
