package criteria

import (
	"errors"
	"math"
	"testing"

	"github.com/notargets/goptdesign/types"
	"github.com/notargets/goptdesign/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearDesign() utils.Matrix {
	return utils.NewMatrix(4, 2, []float64{
		1, 0,
		1, 1,
		1, 2,
		1, 3,
	})
}

func TestCriteria(t *testing.T) {
	/*
		X'X = 4  6    det = 20    inv(X'X) = 1/20 * 14 -6
		      6 14                                 -6  4
	*/
	X := linearDesign()
	{
		assert.InDelta(t, 20., D(X, nil).Value, 1e-10)
		assert.InDelta(t, 0.9, A(X, nil).Value, 1e-12)
		assert.InDelta(t, 18., T(X, nil).Value, 1e-12)
		assert.InDelta(t, 9-math.Sqrt(61), E(X, nil).Value, 1e-12)
		ident := utils.NewMatrix(2, 2, []float64{1, 0, 0, 1})
		assert.InDelta(t, 0.9, I(X, ident, nil).Value, 1e-12)
		assert.InDelta(t, 0.7, G(X, X).Value, 1e-12)
		assert.InDelta(t, math.Sqrt(20)/4, DEfficiency(X, nil), 1e-12)
		assert.InDelta(t, math.Sqrt(20), DEfficiencyUnnormalized(X, nil), 1e-12)
	}
	// Alias trace, the quadratic term regressed on the linear model
	{
		alias := utils.NewMatrix(4, 1, []float64{0, 1, 4, 9})
		assert.InDelta(t, 10., AliasTrace(X, alias, nil).Value, 1e-10)
		assert.InDelta(t, 10., AliasTracePseudoInverse(X, alias, nil).Value, 1e-10)
	}
	// A GLS weight of 2·I doubles the information
	{
		W := utils.NewMatrix(4, 4)
		for i := 0; i < 4; i++ {
			W.Set(i, i, 2)
		}
		assert.InDelta(t, 80., D(X, &W).Value, 1e-10)
		assert.InDelta(t, 0.45, A(X, &W).Value, 1e-12)
		assert.InDelta(t, 36., T(X, &W).Value, 1e-12)
	}
}

func TestSingularDesigns(t *testing.T) {
	X := utils.NewMatrix(3, 2, []float64{
		1, 1,
		1, 1,
		1, 1,
	})
	assert.True(t, IsSingular(X, nil))
	assert.True(t, A(X, nil).Singular)
	assert.True(t, I(X, utils.NewMatrix(2, 2, []float64{1, 0, 0, 1}), nil).Singular)
	assert.True(t, AliasTrace(X, utils.NewMatrix(3, 1, []float64{1, 2, 3}), nil).Singular)
	assert.False(t, AliasTracePseudoInverse(X, utils.NewMatrix(3, 1, []float64{1, 2, 3}), nil).Singular)
	{
		c := New(types.Criterion_T, nil)
		ev, err := c.Evaluate(X)
		require.NoError(t, err)
		assert.True(t, ev.Singular, "T is screened for singularity")
	}
	{
		c := New(types.Criterion_D, nil)
		ev, err := c.Evaluate(X)
		require.NoError(t, err)
		assert.False(t, ev.Singular)
		assert.InDelta(t, 0., ev.Value, 1e-12)
	}
}

func TestCustomCriterion(t *testing.T) {
	X := linearDesign()
	{
		c := New(types.Criterion_Custom, nil)
		c.Custom = func(design utils.Matrix, vInv *utils.Matrix) (float64, error) {
			assert.Nil(t, vInv)
			return design.Gram(nil).Trace() * 2, nil
		}
		ev, err := c.Evaluate(X)
		require.NoError(t, err)
		assert.InDelta(t, 36., ev.Value, 1e-12)
	}
	{
		boom := errors.New("boom")
		c := New(types.Criterion_Custom, nil)
		c.Custom = func(utils.Matrix, *utils.Matrix) (float64, error) { return 0, boom }
		_, err := c.Evaluate(X)
		assert.ErrorIs(t, err, boom)
	}
	{
		c := New(types.Criterion_Custom, nil)
		_, err := c.Evaluate(X)
		assert.Error(t, err)
	}
}
