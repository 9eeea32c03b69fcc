package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/goptdesign/InputParameters"
	"github.com/notargets/goptdesign/readfiles"
	"github.com/notargets/goptdesign/storage"
	"github.com/notargets/goptdesign/utils"
)

func writeFiles(t *testing.T, files map[string]string) (dir string) {
	t.Helper()
	dir = t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return
}

func parseInput(t *testing.T, dir string) *InputParameters.SearchParameters {
	t.Helper()
	sp, err := processInput(&Search{ICFile: filepath.Join(dir, "search.yaml")})
	require.NoError(t, err)
	return sp
}

func TestRunSearch(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"search.yaml": `
Title: Linear
Criterion: D
Trials: 4
InitialRows: [2, 3, 2, 3]
CandidateFile: candidates.csv
`,
		"candidates.csv": "one,x\n1,0\n1,1\n1,2\n1,3\n",
	})
	sp := parseInput(t, dir)
	r, err := RunSearch(context.Background(), sp, dir)
	require.NoError(t, err)
	require.True(t, r.Available)
	assert.Equal(t, utils.Index{1, 4, 1, 4}, r.Indices)
	assert.InDelta(t, 36., r.Criterion, 1e-9)

	out := filepath.Join(dir, "design.csv")
	require.NoError(t, writeDesign(out, r))
	D, _, err := readfiles.ReadMatrix(out, false)
	require.NoError(t, err)
	assert.Equal(t, r.Design.RawMatrix().Data, D.RawMatrix().Data)

	db := filepath.Join(dir, "catalog.db")
	require.NoError(t, saveRun(context.Background(), db, sp, r))
	c, err := storage.Open(db, zerolog.Nop())
	require.NoError(t, err)
	defer c.Close()
	runs, err := c.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "Linear", runs[0].Title)
	var buf bytes.Buffer
	printSummaries(&buf, runs)
	assert.Contains(t, buf.String(), runs[0].ID.String())
	assert.Contains(t, buf.String(), "4 trials")
	assert.Contains(t, buf.String(), "Linear")
}

func TestRunSearchBlocked(t *testing.T) {
	var (
		blocks, cov strings.Builder
	)
	blocks.WriteString("one,w\n")
	for i := 0; i < 8; i++ {
		w := "-1"
		if i >= 4 {
			w = "1"
		}
		blocks.WriteString("1," + w + "\n")
		row := make([]string, 8)
		for k := range row {
			switch {
			case k == i:
				row[k] = "2"
			case k/4 == i/4:
				row[k] = "1"
			default:
				row[k] = "0"
			}
		}
		cov.WriteString(strings.Join(row, ",") + "\n")
	}
	dir := writeFiles(t, map[string]string{
		"search.yaml": `
Criterion: D
Trials: 8
Seed: 3
CandidateFile: candidates.csv
Blocked:
  BlockFile: blocks.csv
  CovarianceFile: cov.csv
  Interactions: [[1, 2]]
  DisallowedFile: disallowed.csv
`,
		"candidates.csv": "1,-1\n1,0\n1,1\n",
		"blocks.csv":     blocks.String(),
		"cov.csv":        cov.String(),
		"disallowed.csv": "1,-1,1,-1\n",
	})
	sp := parseInput(t, dir)
	r, err := RunSearch(context.Background(), sp, dir)
	require.NoError(t, err)
	require.True(t, r.Available)
	assert.Len(t, r.Indices, 8)
	assert.Empty(t, r.Violations)
	for i := 0; i < 8; i++ {
		assert.False(t, r.Design.RowEquals(i, []float64{1, -1, 1, -1}))
	}
}

func TestProcessInputErrors(t *testing.T) {
	{
		_, err := processInput(&Search{})
		assert.Error(t, err)
	}
	{
		dir := writeFiles(t, map[string]string{"search.yaml": "Criterion: custom\nTrials: 2\nCandidateFile: c.csv\n"})
		_, err := processInput(&Search{ICFile: filepath.Join(dir, "search.yaml")})
		assert.ErrorIs(t, err, InputParameters.ErrInvalidParameters)
	}
	{
		dir := writeFiles(t, map[string]string{
			"search.yaml": "Criterion: D\nTrials: 2\nInitialRows: [1, 9]\nCandidateFile: c.csv\n",
			"c.csv":       "1,0\n1,1\n",
		})
		sp := parseInput(t, dir)
		_, err := RunSearch(context.Background(), sp, dir)
		assert.Error(t, err)
	}
	{
		dir := writeFiles(t, map[string]string{"search.yaml": "Criterion: D\nTrials: 2\nSeed: 5\nCandidateFile: c.csv\n"})
		sp, err := processInput(&Search{ICFile: filepath.Join(dir, "search.yaml"), Seed: 9, SeedSet: true})
		require.NoError(t, err)
		assert.Equal(t, int64(9), sp.Seed)
		_, err = RunSearch(context.Background(), sp, dir)
		assert.Error(t, err, "candidate file is missing")
	}
}
