package exchange

import (
	"github.com/notargets/goptdesign/criteria"
	"github.com/notargets/goptdesign/types"
	"github.com/notargets/goptdesign/utils"
)

// objective scores proposed exchanges during a sweep. begin returns the value a candidate for
// row i must strictly beat, score rates the row staged by design.propose, commit applies it.
type objective interface {
	direction() types.Direction
	begin(d *design, i int) (incumbent float64)
	score(d *design, i int) (criteria.Evaluation, error)
	commit(d *design, i, j int, ev criteria.Evaluation)
	// value is the tracked criterion value after a completed sweep.
	value(d *design) (criteria.Evaluation, error)
}

// rowUpdate forms the information matrix of a design whose row i is replaced, from the
// committed information M = X'WX:
//
//	M' = M + u·δ' + δ·u' + w·δ·δ'
//
// with δ the change of row i, u = X'W·e_i and w = W_ii. Unweighted, u is row i itself and w = 1.
type rowUpdate struct {
	M     utils.Matrix
	u, x  []float64
	w     float64
	delta []float64
	trial utils.Matrix
}

func newRowUpdate(d *design) *rowUpdate {
	var (
		_, p = d.X.Dims()
	)
	return &rowUpdate{
		M:     criteria.Information(d.X, d.weight),
		u:     make([]float64, p),
		x:     make([]float64, p),
		delta: make([]float64, p),
		trial: utils.NewMatrix(p, p),
	}
}

func (ru *rowUpdate) refresh(d *design) {
	ru.M = criteria.Information(d.X, d.weight)
}

func (ru *rowUpdate) begin(d *design, i int) {
	copy(ru.x, d.X.RowView(i))
	if d.weight == nil {
		copy(ru.u, ru.x)
		ru.w = 1
		return
	}
	var (
		n = d.nTrials()
	)
	for c := range ru.u {
		ru.u[c] = 0
	}
	for k := 0; k < n; k++ {
		wki := d.weight.At(k, i)
		if wki == 0 {
			continue
		}
		for c, val := range d.X.RowView(k) {
			ru.u[c] += val * wki
		}
	}
	ru.w = d.weight.At(i, i)
}

// apply stages the information matrix of the design with row i replaced by y.
func (ru *rowUpdate) apply(y []float64) utils.Matrix {
	var (
		p    = len(y)
		data = ru.trial.RawMatrix().Data
		M    = ru.M.RawMatrix().Data
	)
	for c := range ru.delta {
		ru.delta[c] = y[c] - ru.x[c]
	}
	for a := 0; a < p; a++ {
		ua, da := ru.u[a], ru.delta[a]
		for b := 0; b < p; b++ {
			data[a*p+b] = M[a*p+b] + ua*ru.delta[b] + da*ru.u[b] + ru.w*da*ru.delta[b]
		}
	}
	return ru.trial
}

// criterionObjective scores any criterion by recomputing it from the updated information matrix.
type criterionObjective struct {
	c       *criteria.Criterion
	ru      *rowUpdate
	current float64
}

func newCriterionObjective(d *design, c *criteria.Criterion) (o *criterionObjective, err error) {
	o = &criterionObjective{c: c, ru: newRowUpdate(d)}
	var ev criteria.Evaluation
	if ev, err = c.EvaluateInformation(d.X, o.ru.M); err != nil {
		return
	}
	o.current = ev.Value
	return
}

func (o *criterionObjective) direction() types.Direction { return o.c.Direction() }

func (o *criterionObjective) begin(d *design, i int) float64 {
	o.ru.begin(d, i)
	return o.current
}

func (o *criterionObjective) score(d *design, i int) (ev criteria.Evaluation, err error) {
	M := o.ru.apply(d.trial)
	if o.c.Kind != types.Criterion_Custom {
		return o.c.EvaluateInformation(d.X, M)
	}
	// Custom scoring needs the design itself: swap the staged row in and restore it after.
	row := d.X.RowView(i)
	copy(row, d.trial)
	ev, err = o.c.EvaluateInformation(d.X, M)
	copy(row, o.ru.x)
	return
}

func (o *criterionObjective) commit(d *design, i, j int, ev criteria.Evaluation) {
	d.Assign(i, j)
	o.ru.refresh(d)
	o.current = ev.Value
}

func (o *criterionObjective) value(d *design) (criteria.Evaluation, error) {
	ev, err := o.c.EvaluateInformation(d.X, o.ru.M)
	if err == nil && !ev.Singular {
		o.current = ev.Value
	}
	return ev, err
}
