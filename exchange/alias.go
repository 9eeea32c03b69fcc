package exchange

import (
	"context"
	"math"

	"github.com/notargets/goptdesign/criteria"
	"github.com/notargets/goptdesign/types"
	"github.com/notargets/goptdesign/utils"
)

// aliasStep is the decrement of the D-efficiency weight between continuation levels.
const aliasStep = 0.05

/*
aliasObjective maximizes the blend of D-efficiency and alias trace at one weight level:

	weight·D/D₀ + (1-weight)·(1 - A/A₀)

D is the unnormalized D-efficiency and A the alias trace, D₀ and A₀ their values for the seed
design. An exchange that drops the normalized D-efficiency to MinDopt or below is infeasible.
*/
type aliasObjective struct {
	weight, firstA, initialD, minDopt float64
	nTrials                           int
	ru                                *rowUpdate
	cross, crossTrial                 utils.Matrix // X'·Alias
	alpha                             []float64
	optimum                           float64
	currentA, currentD                float64
}

func newAliasObjective(d *design, weight, firstA, initialD, currentA, currentD, minDopt float64) *aliasObjective {
	var (
		_, q = d.Alias.Dims()
		o    = &aliasObjective{
			weight:   weight,
			firstA:   firstA,
			initialD: initialD,
			minDopt:  minDopt,
			nTrials:  d.nTrials(),
			ru:       newRowUpdate(d),
			cross:    criteria.CrossProduct(d.X, d.Alias),
			alpha:    make([]float64, q),
			currentA: currentA,
			currentD: currentD,
		}
	)
	o.crossTrial = o.cross.Copy()
	o.optimum = o.blend(currentD, currentA)
	return o
}

func (o *aliasObjective) blend(D, A float64) float64 {
	return o.weight*D/o.initialD + (1-o.weight)*(1-A/o.firstA)
}

func (o *aliasObjective) direction() types.Direction { return types.Maximize }

func (o *aliasObjective) begin(d *design, i int) float64 {
	o.ru.begin(d, i)
	copy(o.alpha, d.Alias.RowView(i))
	return o.optimum
}

// score rates the staged rows. Row i of the cross product changes as X'A - x·α' + y·β'.
func (o *aliasObjective) score(d *design, i int) (criteria.Evaluation, error) {
	var (
		M     = o.ru.apply(d.trial)
		p, q  = o.cross.Dims()
		cross = o.cross.RawMatrix().Data
		data  = o.crossTrial.RawMatrix().Data
		x, y  = o.ru.x, d.trial
		beta  = d.aliasTrial
	)
	for r := 0; r < p; r++ {
		for c := 0; c < q; c++ {
			data[r*q+c] = cross[r*q+c] - x[r]*o.alpha[c] + y[r]*beta[c]
		}
	}
	A := criteria.AliasTraceFromProducts(M, o.crossTrial)
	if A.Singular {
		return criteria.Singular, nil
	}
	D := criteria.DEfficiencyFromInformation(M, 1)
	if !(D/float64(o.nTrials) > o.minDopt) {
		return criteria.Singular, nil
	}
	return criteria.Evaluated(o.blend(D, A.Value)), nil
}

func (o *aliasObjective) commit(d *design, i, j int, ev criteria.Evaluation) {
	d.Assign(i, j)
	o.ru.refresh(d)
	o.cross = criteria.CrossProduct(d.X, d.Alias)
	o.optimum = ev.Value
}

func (o *aliasObjective) value(d *design) (criteria.Evaluation, error) {
	o.currentD = criteria.DEfficiencyFromInformation(o.ru.M, 1)
	o.currentA = criteria.AliasTraceFromProducts(o.ru.M, o.cross).Value
	o.optimum = o.blend(o.currentD, o.currentA)
	return criteria.Evaluated(o.optimum), nil
}

type aliasOutcome struct {
	best   *design
	bestA  float64
	levels []float64
}

/*
continuation runs the weighted alias search on a design already optimized for D. Starting from
weight 1 it lowers the D weight by aliasStep per level, running the exchange loop under the
blended objective at each level, and stops when the weight reaches aliasStep or the alias trace
is zero. The state with the lowest alias trace over all levels is returned.
*/
func (e *engine) continuation(ctx context.Context, d *design, minDopt float64) (out aliasOutcome, err error) {
	var (
		firstA   = criteria.AliasTracePseudoInverse(d.X, d.Alias, d.weight).Value
		initialD = criteria.DEfficiencyUnnormalized(d.X, d.weight)
		currentA = firstA
		currentD = initialD
		nLevels  = int(math.Round(1 / aliasStep))
	)
	out = aliasOutcome{best: d.snapshot(), bestA: firstA}
	e.logger.Debug().Float64("alias", firstA).Float64("deff", initialD).Msg("alias continuation seed")
	for k := 1; k < nLevels && firstA != 0 && currentA != 0; k++ {
		weight := 1 - float64(k)*aliasStep
		out.levels = append(out.levels, weight)
		obj := newAliasObjective(d, weight, firstA, initialD, currentA, currentD, minDopt)
		_, err = e.optimize(ctx, d, obj, types.Criterion_Alias, weight, true)
		currentA, currentD = obj.currentA, obj.currentD
		if err != nil {
			return
		}
		if currentA < out.bestA {
			out.bestA = currentA
			out.best = d.snapshot()
		}
	}
	return
}
