package storage

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/goptdesign/exchange"
	"github.com/notargets/goptdesign/types"
	"github.com/notargets/goptdesign/utils"
)

func openCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "catalog.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func aliasRun() *Run {
	return &Run{
		Title:     "three level grid",
		Criterion: types.Criterion_Alias,
		Seed:      7,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 500, time.UTC),
		Result: exchange.Result{
			Indices:     utils.Index{1, 3, 7, 9},
			Design:      utils.NewMatrix(4, 2, []float64{1, -1, 1, 1, 1, -1, 1, 1}),
			AliasDesign: utils.NewMatrix(4, 3, []float64{1, -1, 1, 1, 1, 1, 1, -1, 1, 1, 1, 1}),
			Criterion:   0.25,
			Available:   true,
			Levels:      []float64{0.95, 0.9},
			Sweeps:      5,
			Violations:  []int{2},
		},
	}
}

func TestMigrations(t *testing.T) {
	c := openCatalog(t)
	version, dirty, err := c.Version()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), version)
	// Reapplying is a no-op
	assert.NoError(t, c.MigrateUp())
}

func TestSaveAndLoadRun(t *testing.T) {
	var (
		ctx = context.Background()
		c   = openCatalog(t)
		r   = aliasRun()
	)
	require.NoError(t, c.SaveRun(ctx, r))
	require.NotEqual(t, uuid.Nil, r.ID)

	loaded, err := c.LoadRun(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, loaded.ID)
	assert.Equal(t, r.Title, loaded.Title)
	assert.Equal(t, r.Criterion, loaded.Criterion)
	assert.Equal(t, r.Seed, loaded.Seed)
	assert.True(t, r.CreatedAt.Equal(loaded.CreatedAt))

	want, got := r.Result, loaded.Result
	assert.Equal(t, want.Indices, got.Indices)
	assert.Equal(t, want.Criterion, got.Criterion)
	assert.Equal(t, want.Available, got.Available)
	assert.Equal(t, want.Sweeps, got.Sweeps)
	if diff := cmp.Diff(want.Levels, got.Levels); diff != "" {
		t.Errorf("levels mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want.Violations, got.Violations); diff != "" {
		t.Errorf("violations mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want.Design.RawMatrix().Data, got.Design.RawMatrix().Data); diff != "" {
		t.Errorf("design mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want.AliasDesign.RawMatrix().Data, got.AliasDesign.RawMatrix().Data); diff != "" {
		t.Errorf("alias design mismatch (-want +got):\n%s", diff)
	}
}

func TestNotAvailableRun(t *testing.T) {
	var (
		ctx = context.Background()
		c   = openCatalog(t)
		r   = &Run{Criterion: types.Criterion_D, Result: exchange.NotAvailable()}
	)
	require.NoError(t, c.SaveRun(ctx, r))
	loaded, err := c.LoadRun(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, loaded.Result.Available)
	assert.True(t, math.IsNaN(loaded.Result.Criterion))
	assert.Empty(t, loaded.Result.Indices)
	assert.True(t, loaded.Result.Design.IsEmpty())
}

func TestListAndDeleteRuns(t *testing.T) {
	var (
		ctx   = context.Background()
		c     = openCatalog(t)
		older = aliasRun()
		newer = &Run{
			Title:     "linear",
			Criterion: types.Criterion_D,
			Blocked:   true,
			CreatedAt: older.CreatedAt.Add(time.Hour),
			Result: exchange.Result{
				Indices:   utils.Index{1, 2},
				Design:    utils.NewMatrix(2, 2, []float64{1, -1, 1, 1}),
				Criterion: 4,
				Available: true,
			},
		}
	)
	require.NoError(t, c.SaveRun(ctx, older))
	require.NoError(t, c.SaveRun(ctx, newer))

	runs, err := c.ListRuns(ctx)
	require.NoError(t, err)
	want := []Summary{
		{ID: newer.ID, Title: "linear", Criterion: types.Criterion_D, Trials: 2, Value: 4,
			Available: true, Blocked: true, CreatedAt: newer.CreatedAt},
		{ID: older.ID, Title: "three level grid", Criterion: types.Criterion_Alias, Trials: 4, Value: 0.25,
			Available: true, CreatedAt: older.CreatedAt},
	}
	if diff := cmp.Diff(want, runs, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("catalog mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, c.DeleteRun(ctx, older.ID))
	_, err = c.LoadRun(ctx, older.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, c.DeleteRun(ctx, older.ID), ErrNotFound)

	runs, err = c.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, newer.ID, runs[0].ID)
}
