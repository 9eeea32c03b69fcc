// Package criteria holds the scalar optimality criteria of a design's information matrix.
//
// Every evaluator works on X'X, or on the GLS weighted X'WX when a weight matrix is supplied.
// A numerically singular information matrix never produces an error: evaluators return
// Singular and the caller skips the candidate.
package criteria

import (
	"fmt"
	"math"

	"github.com/notargets/goptdesign/types"
	"github.com/notargets/goptdesign/utils"
)

// ConditionLimit is the condition number above which an information matrix is treated as singular.
const ConditionLimit = 1e15

type Evaluation struct {
	Value    float64
	Singular bool
}

func Evaluated(val float64) Evaluation { return Evaluation{Value: val} }

var Singular = Evaluation{Value: math.NaN(), Singular: true}

// CustomFunc scores a design, larger is better. vInv is nil for unblocked searches.
// Errors abort the search and are returned to the caller.
type CustomFunc func(design utils.Matrix, vInv *utils.Matrix) (float64, error)

func Information(X utils.Matrix, W *utils.Matrix) utils.Matrix {
	return X.Gram(W)
}

func IsSingular(X utils.Matrix, W *utils.Matrix) bool {
	return IsSingularAt(X, W, ConditionLimit)
}

func IsSingularAt(X utils.Matrix, W *utils.Matrix, limit float64) bool {
	return Information(X, W).ConditionNumber() > limit
}

// Criterion binds a criterion kind to the inputs it needs.
type Criterion struct {
	Kind       types.Criterion
	Moments    utils.Matrix  // I
	Candidates utils.Matrix  // G
	Weight     *utils.Matrix // GLS weight, nil when unblocked
	Custom     CustomFunc
	// ScreenSingular rejects designs whose information matrix has a condition number above
	// Limit, which the determinant, trace and eigenvalue criteria cannot detect on their own.
	ScreenSingular bool
	Limit          float64
}

func New(kind types.Criterion, W *utils.Matrix) *Criterion {
	c := &Criterion{
		Kind:   kind,
		Weight: W,
		Limit:  ConditionLimit,
	}
	switch kind {
	case types.Criterion_T, types.Criterion_E, types.Criterion_G, types.Criterion_Custom:
		c.ScreenSingular = true
	}
	return c
}

func (c *Criterion) Direction() types.Direction { return c.Kind.Direction() }

func (c *Criterion) Evaluate(X utils.Matrix) (Evaluation, error) {
	return c.EvaluateInformation(X, Information(X, c.Weight))
}

// EvaluateInformation scores design X whose (weighted) information matrix M has already been
// formed, letting callers update M incrementally.
func (c *Criterion) EvaluateInformation(X, M utils.Matrix) (ev Evaluation, err error) {
	if c.ScreenSingular && M.ConditionNumber() > c.Limit {
		return Singular, nil
	}
	switch c.Kind {
	case types.Criterion_D, types.Criterion_Alias:
		ev = DFromInformation(M)
	case types.Criterion_I:
		ev = IFromInformation(M, c.Moments)
	case types.Criterion_A:
		ev = AFromInformation(M)
	case types.Criterion_G:
		ev = GFromInformation(M, c.Candidates)
	case types.Criterion_T:
		ev = TFromInformation(M)
	case types.Criterion_E:
		ev = EFromInformation(M)
	case types.Criterion_Custom:
		if c.Custom == nil {
			err = fmt.Errorf("custom criterion selected without a scoring function")
			return
		}
		var val float64
		if val, err = c.Custom(X, c.Weight); err != nil {
			err = fmt.Errorf("custom criterion: %w", err)
			return
		}
		if math.IsNaN(val) {
			return Singular, nil
		}
		ev = Evaluated(val)
	default:
		err = fmt.Errorf("no evaluator for criterion %v", c.Kind)
	}
	return
}

// D: det(X'WX), maximized.
func D(X utils.Matrix, W *utils.Matrix) Evaluation {
	return DFromInformation(Information(X, W))
}

func DFromInformation(M utils.Matrix) Evaluation {
	return Evaluated(M.Det())
}

// I: trace(inv(X'WX)·Moments), minimized.
func I(X utils.Matrix, moments utils.Matrix, W *utils.Matrix) Evaluation {
	return IFromInformation(Information(X, W), moments)
}

func IFromInformation(M, moments utils.Matrix) Evaluation {
	Minv, err := M.InverseSym()
	if err != nil {
		return Singular
	}
	var (
		n, _ = Minv.Dims()
		tr   float64
	)
	// trace(A·B) without forming the product
	for i := 0; i < n; i++ {
		row := Minv.RowView(i)
		for k := 0; k < n; k++ {
			tr += row[k] * moments.At(k, i)
		}
	}
	return Evaluated(tr)
}

// A: trace(inv(X'WX)), minimized.
func A(X utils.Matrix, W *utils.Matrix) Evaluation {
	return AFromInformation(Information(X, W))
}

func AFromInformation(M utils.Matrix) Evaluation {
	Minv, err := M.InverseSym()
	if err != nil {
		return Singular
	}
	return Evaluated(Minv.Trace())
}

// G: the largest scaled prediction variance over the candidate set,
// max diag(C·inv(X'X)·C'), minimized. There is no blocked form.
func G(X, candidates utils.Matrix) Evaluation {
	return GFromInformation(Information(X, nil), candidates)
}

func GFromInformation(M, candidates utils.Matrix) Evaluation {
	Minv, err := M.InverseSym()
	if err != nil {
		return Singular
	}
	var (
		nc, _ = candidates.Dims()
		gmax  = math.Inf(-1)
	)
	for j := 0; j < nc; j++ {
		row := candidates.RowView(j)
		if v := Minv.QuadForm(row, row); v > gmax {
			gmax = v
		}
	}
	return Evaluated(gmax)
}

// T: trace(X'WX), maximized.
func T(X utils.Matrix, W *utils.Matrix) Evaluation {
	return TFromInformation(Information(X, W))
}

func TFromInformation(M utils.Matrix) Evaluation {
	return Evaluated(M.Trace())
}

// E: the smallest eigenvalue of X'WX, maximized.
func E(X utils.Matrix, W *utils.Matrix) Evaluation {
	return EFromInformation(Information(X, W))
}

func EFromInformation(M utils.Matrix) Evaluation {
	values, err := M.SymEigenvalues()
	if err != nil || len(values) == 0 {
		return Singular
	}
	return Evaluated(values[0])
}
