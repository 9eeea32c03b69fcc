package exchange

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/goptdesign/criteria"
	"github.com/notargets/goptdesign/initializer"
	"github.com/notargets/goptdesign/types"
	"github.com/notargets/goptdesign/utils"
)

var subPlotLevels = []float64{-1, 0, 1}

/*
splitPlot is a two whole-plot design of eight runs. The block columns are the intercept and the
whole-plot factor w, the sub-plot factor x takes three levels and the w·x interaction follows:

	[1 | w | x | w·x]

Runs within a whole plot have covariance 1, every run has variance 2.
*/
func splitPlot(kind types.Criterion, disallowed ...[]float64) (Problem, Blocking) {
	var (
		nTrials = 8
		C       = utils.NewMatrix(3, 2)
		blocks  = utils.NewMatrix(nTrials, 2)
		cov     = utils.NewMatrix(nTrials, nTrials)
		rows    = []int{3, 1, 2, 3, 1, 3, 2, 1}
	)
	for j, x := range subPlotLevels {
		C.SetRow(j, []float64{1, x})
	}
	for i := 0; i < nTrials; i++ {
		w := -1.
		if i >= nTrials/2 {
			w = 1
		}
		blocks.SetRow(i, []float64{1, w})
		for k := 0; k < nTrials; k++ {
			switch {
			case k == i:
				cov.Set(i, k, 2)
			case k/4 == i/4:
				cov.Set(i, k, 1)
			}
		}
	}
	p := problemFrom(C, kind, rows...)
	b := Blocking{
		Blocks:       blocks,
		Covariance:   cov,
		Interactions: []Interaction{{A: 1, B: 2}},
	}
	if len(disallowed) != 0 {
		b.AnyDisallowed = true
		b.Disallowed = utils.NewMatrix(len(disallowed), 4)
		for k, row := range disallowed {
			b.Disallowed.SetRow(k, row)
		}
	}
	return p, b
}

func assertBlockedCorrespondence(t *testing.T, r Result, b Blocking) {
	t.Helper()
	n, nc := r.Design.Dims()
	require.Equal(t, 4, nc)
	require.Len(t, r.Indices, n)
	for i, idx := range r.Indices {
		require.True(t, idx >= 1 && idx <= len(subPlotLevels))
		assert.Equal(t, b.Blocks.Row(i), r.Design.Row(i)[:2], "block columns of row %d changed", i)
		assert.Equal(t, subPlotLevels[idx-1], r.Design.At(i, 2))
		assert.Equal(t, r.Design.At(i, 1)*r.Design.At(i, 2), r.Design.At(i, 3))
	}
}

func glsWeight(t *testing.T, b Blocking) *utils.Matrix {
	W, err := b.Covariance.InverseSym()
	require.NoError(t, err)
	return &W
}

func TestBlockedDisallowed(t *testing.T) {
	// x = 1 is not allowed in the w = -1 whole plot; rows 0 and 3 start there
	disallowed := []float64{1, -1, 1, -1}
	p, b := splitPlot(types.Criterion_D, disallowed)
	r, err := GenerateBlocked(context.Background(), p, b, rand.New(rand.NewSource(11)))
	require.NoError(t, err)
	require.True(t, r.Available)
	assertBlockedCorrespondence(t, r, b)
	for i := 0; i < 8; i++ {
		assert.False(t, r.Design.RowEquals(i, disallowed), "row %d is disallowed", i)
	}
	assert.Empty(t, r.Violations)
	assert.InDelta(t, criteria.D(r.Design, glsWeight(t, b)).Value, r.Criterion, 1e-9*r.Criterion)
}

func TestBlockedMustChangeWithoutReplacement(t *testing.T) {
	// Every sub-plot level is disallowed in the w = -1 whole plot
	p, b := splitPlot(types.Criterion_D,
		[]float64{1, -1, -1, 1},
		[]float64{1, -1, 0, 0},
		[]float64{1, -1, 1, -1},
	)
	r, err := GenerateBlocked(context.Background(), p, b, rand.New(rand.NewSource(12)))
	require.NoError(t, err)
	require.True(t, r.Available)
	assertBlockedCorrespondence(t, r, b)
	assert.Equal(t, []int{0, 1, 2, 3}, r.Violations)
	assert.Equal(t, p.InitialRows[:4], r.Indices[:4])
}

func TestBlockedCriteria(t *testing.T) {
	kinds := []types.Criterion{
		types.Criterion_D, types.Criterion_I, types.Criterion_A,
		types.Criterion_T, types.Criterion_E, types.Criterion_Custom,
	}
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			p, b := splitPlot(kind)
			p.Tolerance = 1e-6
			p.Moments = utils.NewMatrix(4, 4, []float64{
				1, 0, 0, 0,
				0, 1, 0, 0,
				0, 0, 1, 0,
				0, 0, 0, 1,
			})
			var vInvSeen bool
			p.Custom = func(design utils.Matrix, vInv *utils.Matrix) (float64, error) {
				vInvSeen = vInv != nil
				return criteria.D(design, vInv).Value, nil
			}
			var values []float64
			r, err := GenerateBlocked(context.Background(), p, b, rand.New(rand.NewSource(13)),
				WithSweepObserver(func(s SweepStats) {
					if s.Criterion == kind {
						values = append(values, s.Value)
					}
				}))
			require.NoError(t, err)
			require.True(t, r.Available)
			assertBlockedCorrespondence(t, r, b)
			require.NotEmpty(t, values)
			for k := 1; k < len(values); k++ {
				slack := 1e-9 * math.Abs(values[k-1])
				if kind.Direction() == types.Maximize {
					assert.GreaterOrEqual(t, values[k], values[k-1]-slack)
				} else {
					assert.LessOrEqual(t, values[k], values[k-1]+slack)
				}
			}
			c := criteria.New(kind, glsWeight(t, b))
			c.Moments, c.Custom = p.Moments, p.Custom
			ev, err := c.Evaluate(r.Design)
			require.NoError(t, err)
			assert.InDelta(t, ev.Value, r.Criterion, 1e-9*math.Abs(ev.Value))
			if kind == types.Criterion_Custom {
				assert.True(t, vInvSeen)
			}
		})
	}
}

func TestBlockedAlias(t *testing.T) {
	p, b := splitPlot(types.Criterion_Alias)
	var (
		A       = utils.NewMatrix(3, 3)
		initial = utils.NewMatrix(8, 3)
	)
	for j, x := range subPlotLevels {
		A.SetRow(j, []float64{1, x, x * x})
	}
	for i, idx := range p.InitialRows {
		initial.SetRow(i, A.RowView(idx-1))
	}
	p.AliasCandidates, p.AliasInitial = A, initial
	r, err := GenerateBlocked(context.Background(), p, b, rand.New(rand.NewSource(14)))
	require.NoError(t, err)
	require.True(t, r.Available)
	assertBlockedCorrespondence(t, r, b)
	// [1 | w | x | x^2 | w·x]
	_, nc := r.AliasDesign.Dims()
	require.Equal(t, 5, nc)
	for i, idx := range r.Indices {
		x := subPlotLevels[idx-1]
		assert.Equal(t, []float64{x, x * x, r.AliasDesign.At(i, 1) * x}, r.AliasDesign.Row(i)[2:])
	}
	require.NotEmpty(t, r.Levels)
	assert.InDelta(t, 0.95, r.Levels[0], 1e-12)
	assert.InDelta(t, criteria.AliasTrace(r.Design, r.AliasDesign, glsWeight(t, b)).Value, r.Criterion, 1e-9)
}

func TestBlockedErrors(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(15))
	{
		p, b := splitPlot(types.Criterion_G)
		r, err := GenerateBlocked(ctx, p, b, rng)
		assert.ErrorIs(t, err, ErrUnsupportedCriterion)
		assert.False(t, r.Available)
	}
	{
		// Three runs cannot estimate four combined columns
		p, b := splitPlot(types.Criterion_D)
		p = problemFrom(p.Candidates, types.Criterion_D, 1, 2, 3)
		b.Blocks = b.Blocks.SliceRows(utils.Index{0, 1, 2})
		b.Covariance = b.Covariance.SliceRows(utils.Index{0, 1, 2}).SliceCols(utils.Index{0, 1, 2})
		_, err := GenerateBlocked(ctx, p, b, rng)
		assert.ErrorIs(t, err, initializer.ErrTooFewTrials)
	}
	{
		p, b := splitPlot(types.Criterion_D)
		b.Interactions = []Interaction{{A: 1, B: 7}}
		_, err := GenerateBlocked(ctx, p, b, rng)
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	}
	{
		p, b := splitPlot(types.Criterion_D)
		b.Covariance = b.Covariance.SliceCols(utils.Index{0, 1, 2})
		_, err := GenerateBlocked(ctx, p, b, rng)
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	}
}
