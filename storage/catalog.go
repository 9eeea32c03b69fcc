// Package storage keeps a catalog of finished design searches in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/notargets/goptdesign/exchange"
	"github.com/notargets/goptdesign/types"
	"github.com/notargets/goptdesign/utils"
)

var ErrNotFound = errors.New("run not found")

const (
	designMatrix = "design"
	aliasMatrix  = "alias"
	// fixed width so created_at sorts as text
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

type Catalog struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Run is one stored search.
type Run struct {
	ID        uuid.UUID
	Title     string
	Criterion types.Criterion
	Blocked   bool
	Seed      int64
	CreatedAt time.Time
	Result    exchange.Result
}

// Summary is the catalog listing of a run.
type Summary struct {
	ID        uuid.UUID
	Title     string
	Criterion types.Criterion
	Trials    int
	Value     float64 // NaN when no design was available
	Available bool
	Blocked   bool
	CreatedAt time.Time
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
}

// Open opens or creates the catalog at path and brings its schema up to date.
func Open(path string, logger zerolog.Logger) (c *Catalog, err error) {
	var db *sql.DB
	if db, err = sql.Open("sqlite", path); err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	// PRAGMAs are per connection
	db.SetMaxOpenConns(1)
	for _, pragma := range pragmas {
		if _, err = db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	c = &Catalog{db: db, logger: logger}
	if err = c.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

// SaveRun stores r in one transaction, assigning an ID and creation time when unset.
func (c *Catalog) SaveRun(ctx context.Context, r *Run) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	var tx *sql.Tx
	if tx, err = c.db.BeginTx(ctx, nil); err != nil {
		return
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	var (
		res   = r.Result
		id    = r.ID.String()
		value sql.NullFloat64
	)
	if !math.IsNaN(res.Criterion) {
		value = sql.NullFloat64{Float64: res.Criterion, Valid: true}
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, title, criterion, trials, value, available, blocked, seed, sweeps, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.Title, r.Criterion.String(), len(res.Indices), value, res.Available, r.Blocked,
		r.Seed, res.Sweeps, r.CreatedAt.UTC().Format(timeLayout),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	violation := make(map[int]bool, len(res.Violations))
	for _, i := range res.Violations {
		violation[i] = true
	}
	for i, candidate := range res.Indices {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO run_rows (run_id, trial, candidate, violation) VALUES (?, ?, ?, ?)`,
			id, i, candidate, violation[i]); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	for k, weight := range res.Levels {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO alias_levels (run_id, step, weight) VALUES (?, ?, ?)`,
			id, k, weight); err != nil {
			return fmt.Errorf("insert alias level %d: %w", k, err)
		}
	}
	if err = saveMatrix(ctx, tx, id, designMatrix, res.Design); err != nil {
		return
	}
	if err = saveMatrix(ctx, tx, id, aliasMatrix, res.AliasDesign); err != nil {
		return
	}
	if err = tx.Commit(); err != nil {
		return
	}
	c.logger.Debug().Str("run", id).Stringer("criterion", r.Criterion).Msg("run saved")
	return
}

func saveMatrix(ctx context.Context, tx *sql.Tx, id, name string, M utils.Matrix) (err error) {
	if M.IsEmpty() {
		return
	}
	nr, nc := M.Dims()
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO run_matrices (run_id, name, nrows, ncols) VALUES (?, ?, ?, ?)`,
		id, name, nr, nc); err != nil {
		return fmt.Errorf("insert %s matrix: %w", name, err)
	}
	var stmt *sql.Stmt
	if stmt, err = tx.PrepareContext(ctx,
		`INSERT INTO run_matrix_values (run_id, name, row, col, value) VALUES (?, ?, ?, ?, ?)`); err != nil {
		return
	}
	defer stmt.Close()
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			if _, err = stmt.ExecContext(ctx, id, name, i, j, M.At(i, j)); err != nil {
				return fmt.Errorf("insert %s(%d,%d): %w", name, i, j, err)
			}
		}
	}
	return
}

// ListRuns returns the catalog, newest first.
func (c *Catalog) ListRuns(ctx context.Context) (runs []Summary, err error) {
	var rows *sql.Rows
	if rows, err = c.db.QueryContext(ctx, `
		SELECT id, title, criterion, trials, value, available, blocked, created_at
		FROM runs
		ORDER BY created_at DESC, id`); err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			s                   Summary
			id, kind, createdAt string
			value               sql.NullFloat64
		)
		if err = rows.Scan(&id, &s.Title, &kind, &s.Trials, &value, &s.Available, &s.Blocked, &createdAt); err != nil {
			return nil, err
		}
		if s.ID, s.Criterion, s.CreatedAt, err = parseRunColumns(id, kind, createdAt); err != nil {
			return nil, err
		}
		s.Value = math.NaN()
		if value.Valid {
			s.Value = value.Float64
		}
		runs = append(runs, s)
	}
	return runs, rows.Err()
}

// LoadRun returns the stored run with the given id, or ErrNotFound.
func (c *Catalog) LoadRun(ctx context.Context, id uuid.UUID) (r Run, err error) {
	var (
		kind, createdAt string
		idText          string
		value           sql.NullFloat64
		nTrials         int
	)
	err = c.db.QueryRowContext(ctx, `
		SELECT id, title, criterion, trials, value, available, blocked, seed, sweeps, created_at
		FROM runs WHERE id = ?`, id.String()).Scan(
		&idText, &r.Title, &kind, &nTrials, &value, &r.Result.Available, &r.Blocked, &r.Seed,
		&r.Result.Sweeps, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return
	}
	if r.ID, r.Criterion, r.CreatedAt, err = parseRunColumns(idText, kind, createdAt); err != nil {
		return
	}
	r.Result.Criterion = math.NaN()
	if value.Valid {
		r.Result.Criterion = value.Float64
	}
	if err = c.loadRows(ctx, &r, nTrials); err != nil {
		return
	}
	if err = c.loadLevels(ctx, &r); err != nil {
		return
	}
	if r.Result.Design, err = c.loadMatrix(ctx, id.String(), designMatrix); err != nil {
		return
	}
	r.Result.AliasDesign, err = c.loadMatrix(ctx, id.String(), aliasMatrix)
	return
}

func (c *Catalog) loadRows(ctx context.Context, r *Run, nTrials int) (err error) {
	if nTrials == 0 {
		return
	}
	var rows *sql.Rows
	if rows, err = c.db.QueryContext(ctx,
		`SELECT trial, candidate, violation FROM run_rows WHERE run_id = ? ORDER BY trial`,
		r.ID.String()); err != nil {
		return
	}
	defer rows.Close()
	r.Result.Indices = utils.NewIndex(nTrials)
	for rows.Next() {
		var (
			trial, candidate int
			violation        bool
		)
		if err = rows.Scan(&trial, &candidate, &violation); err != nil {
			return
		}
		r.Result.Indices[trial] = candidate
		if violation {
			r.Result.Violations = append(r.Result.Violations, trial)
		}
	}
	return rows.Err()
}

func (c *Catalog) loadLevels(ctx context.Context, r *Run) (err error) {
	var rows *sql.Rows
	if rows, err = c.db.QueryContext(ctx,
		`SELECT weight FROM alias_levels WHERE run_id = ? ORDER BY step`, r.ID.String()); err != nil {
		return
	}
	defer rows.Close()
	for rows.Next() {
		var weight float64
		if err = rows.Scan(&weight); err != nil {
			return
		}
		r.Result.Levels = append(r.Result.Levels, weight)
	}
	return rows.Err()
}

func (c *Catalog) loadMatrix(ctx context.Context, id, name string) (M utils.Matrix, err error) {
	var nr, nc int
	err = c.db.QueryRowContext(ctx,
		`SELECT nrows, ncols FROM run_matrices WHERE run_id = ? AND name = ?`, id, name).Scan(&nr, &nc)
	if errors.Is(err, sql.ErrNoRows) {
		return M, nil
	}
	if err != nil {
		return
	}
	var rows *sql.Rows
	if rows, err = c.db.QueryContext(ctx,
		`SELECT row, col, value FROM run_matrix_values WHERE run_id = ? AND name = ?`, id, name); err != nil {
		return
	}
	defer rows.Close()
	M = utils.NewMatrix(nr, nc)
	for rows.Next() {
		var (
			i, j int
			v    float64
		)
		if err = rows.Scan(&i, &j, &v); err != nil {
			return
		}
		M.Set(i, j, v)
	}
	return M, rows.Err()
}

// DeleteRun removes a run and everything stored with it.
func (c *Catalog) DeleteRun(ctx context.Context, id uuid.UUID) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}

func parseRunColumns(id, kind, createdAt string) (u uuid.UUID, c types.Criterion, t time.Time, err error) {
	if u, err = uuid.Parse(id); err != nil {
		return
	}
	if c, err = types.NewCriterion(kind); err != nil {
		return
	}
	t, err = time.Parse(timeLayout, createdAt)
	return
}
