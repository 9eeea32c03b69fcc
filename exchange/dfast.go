package exchange

import (
	"fmt"

	"github.com/notargets/goptdesign/criteria"
	"github.com/notargets/goptdesign/types"
	"github.com/notargets/goptdesign/utils"
)

/*
dObjective is the determinant fast path for unweighted designs. It keeps V = inv(X'X) and rates
replacing row x by candidate y with the relative determinant change

	Δ = y'Vy - x'Vx + (y'Vx)² - x'Vx·y'Vy

so det(X'X) becomes det(X'X)·(1+Δ). A committed exchange updates V with the rank-2 identity

	V ← V - V·F1·inv(I₂ + F2'·V·F1)·F2'·V,  F1 = [y, -x], F2 = [y, x]

and V stays exact without refactorization.
*/
type dObjective struct {
	V       utils.Matrix
	x, yV   []float64
	xVx     float64
	running float64
	F1, F2t utils.Matrix
}

func newDObjective(d *design) (o *dObjective, err error) {
	var (
		_, p = d.X.Dims()
		M    = criteria.Information(d.X, nil)
	)
	o = &dObjective{
		x:       make([]float64, p),
		yV:      make([]float64, p),
		running: M.Det(),
		F1:      utils.NewMatrix(p, 2),
		F2t:     utils.NewMatrix(2, p),
	}
	if o.V, err = M.InverseSym(); err != nil {
		err = fmt.Errorf("determinant fast path: %w", err)
	}
	return
}

func (o *dObjective) direction() types.Direction { return types.Maximize }

// begin returns zero: Δ is a relative change, any positive Δ improves.
func (o *dObjective) begin(d *design, i int) float64 {
	copy(o.x, d.X.RowView(i))
	o.xVx = o.V.QuadForm(o.x, o.x)
	return 0
}

func (o *dObjective) score(d *design, i int) (criteria.Evaluation, error) {
	return criteria.Evaluated(o.delta(d.trial)), nil
}

func (o *dObjective) delta(y []float64) float64 {
	var (
		p    = len(y)
		data = o.V.RawMatrix().Data
		yVx  float64
		yVy  float64
	)
	for c := 0; c < p; c++ {
		var s float64
		for r := 0; r < p; r++ {
			s += y[r] * data[r*p+c]
		}
		o.yV[c] = s
		yVx += s * o.x[c]
		yVy += s * y[c]
	}
	return yVy - o.xVx + (yVx*yVx - o.xVx*yVy)
}

func (o *dObjective) commit(d *design, i, j int, ev criteria.Evaluation) {
	updated := o.rankUpdate(o.x, d.trial)
	d.Assign(i, j)
	if !updated {
		o.refactor(d)
	}
	o.running *= 1 + ev.Value
}

// rankUpdate applies the exchange of x for y to V. It reports false when I₂ + F2'·V·F1 is
// singular, leaving V untouched.
func (o *dObjective) rankUpdate(x, y []float64) bool {
	var (
		p = len(x)
	)
	for r := 0; r < p; r++ {
		o.F1.Set(r, 0, y[r])
		o.F1.Set(r, 1, -x[r])
		o.F2t.Set(0, r, y[r])
		o.F2t.Set(1, r, x[r])
	}
	var (
		VF1   = o.V.Mul(o.F1)  // p x 2
		F2tV  = o.F2t.Mul(o.V) // 2 x p
		inner = F2tV.Mul(o.F1) // 2 x 2
		a, b  = inner.At(0, 0) + 1, inner.At(0, 1)
		c, e  = inner.At(1, 0), inner.At(1, 1) + 1
		det   = a*e - b*c
	)
	if det == 0 {
		return false
	}
	innerInv := utils.NewMatrix(2, 2, []float64{
		e / det, -b / det,
		-c / det, a / det,
	})
	o.V.Subtract(VF1.Mul(innerInv).Mul(F2tV))
	return true
}

func (o *dObjective) refactor(d *design) {
	M := criteria.Information(d.X, nil)
	V, err := M.InverseSym()
	if err != nil {
		// Not positive definite to working precision, fall back to LU
		if V, err = M.Inverse(); err != nil {
			return
		}
	}
	o.V = V
}

func (o *dObjective) value(d *design) (criteria.Evaluation, error) {
	return criteria.Evaluated(o.running), nil
}
