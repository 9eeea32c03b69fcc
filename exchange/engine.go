package exchange

import (
	"context"
	"math"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/notargets/goptdesign/criteria"
	"github.com/notargets/goptdesign/initializer"
	"github.com/notargets/goptdesign/types"
)

type engine struct {
	*config
	tolerance float64
	sweeps    int
}

func newEngine(tolerance float64, opts []Option) *engine {
	return &engine{
		config:    newConfig(opts),
		tolerance: tolerance,
	}
}

/*
sweep visits rows 0..nTrials-1 once. For each row it scans every candidate in order and keeps the
first strictly best legal replacement, then commits it before moving to the next row. A row
flagged by MustChange accepts its first legal candidate unconditionally.

Cancellation is checked before each row, so a cancelled sweep never leaves an exchange half done.
*/
func (e *engine) sweep(ctx context.Context, d *design, obj objective) (exchanges int, err error) {
	var (
		dir   = obj.direction()
		nCand = d.nCandidates()
	)
	for i := 0; i < d.nTrials(); i++ {
		if err = ctx.Err(); err != nil {
			return
		}
		var (
			best   = obj.begin(d, i)
			forced = d.forced(i)
			found  bool
			entry  int
			bestEv criteria.Evaluation
		)
		for j := 0; j < nCand; j++ {
			if !d.propose(i, j) {
				continue
			}
			var ev criteria.Evaluation
			if ev, err = obj.score(d, i); err != nil {
				return
			}
			if ev.Singular {
				continue
			}
			if forced || dir.Improves(ev.Value, best) {
				found, entry, best, bestEv = true, j, ev.Value, ev
				forced = false
			}
		}
		if found {
			d.propose(i, entry)
			obj.commit(d, i, entry, bestEv)
			d.clearViolation(i)
			exchanges++
		}
	}
	return
}

/*
optimize repeats sweeps until the relative change of the tracked value between two sweeps is
within tolerance, in the objective's direction. With force set the first sweep always runs.
*/
func (e *engine) optimize(ctx context.Context, d *design, obj objective, kind types.Criterion,
	weight float64, force bool) (value float64, err error) {
	var (
		dir   = obj.direction()
		ev    criteria.Evaluation
		prior float64
	)
	if ev, err = obj.value(d); err != nil {
		return
	}
	value = ev.Value
	prior = dir.Seed(value)
	for n := 0; force || dir.Continue(value, prior, e.tolerance); n++ {
		if e.maxSweeps > 0 && n >= e.maxSweeps {
			e.logger.Warn().Stringer("criterion", kind).Int("sweeps", n).Msg("sweep limit reached before convergence")
			break
		}
		force = false
		prior = value
		var exchanges int
		exchanges, err = e.sweep(ctx, d, obj)
		e.sweeps++
		if err != nil {
			return
		}
		if ev, err = obj.value(d); err != nil {
			return
		}
		value = ev.Value
		e.observe(SweepStats{Criterion: kind, Sweep: e.sweeps, Value: value, Exchanges: exchanges, Weight: weight})
	}
	return
}

func (e *engine) observe(s SweepStats) {
	event := e.logger.Debug().Stringer("criterion", s.Criterion).Int("sweep", s.Sweep).
		Float64("value", s.Value).Int("exchanges", s.Exchanges)
	if s.Weight != 0 {
		event = event.Float64("weight", s.Weight)
	}
	event.Msg("sweep complete")
	if e.observer != nil {
		e.observer(s)
	}
}

// seedD runs the D exchange loop, on the fast path when the design is unweighted.
func (e *engine) seedD(ctx context.Context, d *design) (err error) {
	var obj objective
	if d.weight == nil {
		if obj, err = newDObjective(d); err != nil {
			return
		}
	} else {
		if obj, err = newCriterionObjective(d, e.criterion(types.Criterion_D, d)); err != nil {
			return
		}
	}
	_, err = e.optimize(ctx, d, obj, types.Criterion_D, 0, false)
	return
}

func (e *engine) criterion(kind types.Criterion, d *design) *criteria.Criterion {
	c := criteria.New(kind, d.weight)
	c.Limit = e.limit
	return c
}

/*
run optimizes an initialized design for criterion c and returns the result with the criterion
recomputed from the final design. On cancellation the current, consistent state is returned with
the context's error.
*/
func (e *engine) run(ctx context.Context, d *design, c *criteria.Criterion, minDopt float64) (r Result, err error) {
	var levels []float64
	switch c.Kind {
	case types.Criterion_D:
		err = e.seedD(ctx, d)
	case types.Criterion_G:
		if err = e.seedD(ctx, d); err == nil {
			err = e.exchange(ctx, d, c)
		}
	case types.Criterion_Alias:
		if err = e.seedD(ctx, d); err == nil {
			var out aliasOutcome
			out, err = e.continuation(ctx, d, minDopt)
			levels = out.levels
			if err == nil {
				d = out.best
			}
		}
	default:
		err = e.exchange(ctx, d, c)
	}
	if err != nil && ctx.Err() == nil {
		return NotAvailable(), err
	}
	r = d.result()
	r.Levels = levels
	r.Sweeps = e.sweeps
	r.Criterion = e.final(d, c)
	return
}

func (e *engine) exchange(ctx context.Context, d *design, c *criteria.Criterion) error {
	obj, err := newCriterionObjective(d, c)
	if err != nil {
		return err
	}
	_, err = e.optimize(ctx, d, obj, c.Kind, 0, false)
	return err
}

func (e *engine) final(d *design, c *criteria.Criterion) float64 {
	if c.Kind == types.Criterion_Alias {
		return criteria.AliasTrace(d.X, d.Alias, d.weight).Value
	}
	ev, err := c.Evaluate(d.X)
	if err != nil {
		return math.NaN()
	}
	return ev.Value
}

/*
Generate searches for a design of Problem's size that optimizes the problem's criterion.

The initial design is used when it is nonsingular; otherwise up to 100·nTrials random designs are
tried, then an orthogonal construction. When none is nonsingular the result is NotAvailable with
a nil error. Too few trials or a factor aliased with the intercept are errors, as are errors
returned by a custom criterion. All randomness is drawn from rng.
*/
func Generate(ctx context.Context, p Problem, rng *rand.Rand, opts ...Option) (r Result, err error) {
	if err = p.validate(); err != nil {
		return NotAvailable(), err
	}
	var (
		nTrials, width = p.Initial.Dims()
		e              = newEngine(p.Tolerance, opts)
	)
	if err = checkMoments(p.Criterion, p.Moments, width); err != nil {
		return NotAvailable(), err
	}
	if err = initializer.CheckStructure(p.Candidates, nTrials, width); err != nil {
		return NotAvailable(), err
	}
	d := &design{
		X:          p.Initial.Copy(),
		Rows:       p.InitialRows.Copy(),
		candidates: p.Candidates,
		at:         layout{offset: 0, width: width, products: width},
		limit:      e.limit,
		trial:      make([]float64, width),
	}
	if p.hasAlias() {
		_, q := p.AliasInitial.Dims()
		d.Alias = p.AliasInitial.Copy()
		d.aliasCandidates = p.AliasCandidates
		d.aliasAt = layout{offset: 0, width: q, products: q}
		d.aliasTrial = make([]float64, q)
	}
	d.candidates.SetReadOnly("candidates")
	search := initializer.Search{
		NTrials:    nTrials,
		Candidates: p.Candidates,
		MaxChecks:  100 * nTrials,
		Shuffle:    true,
		Rng:        rng,
		Logger:     e.logger,
	}
	if !search.Run(d) {
		return NotAvailable(), nil
	}
	c := e.criterion(p.Criterion, d)
	c.Moments = p.Moments
	c.Candidates = p.Candidates
	c.Custom = p.Custom
	r, err = e.run(ctx, d, c, p.MinDopt)
	e.summary(c.Kind, r)
	return
}

func (e *engine) summary(kind types.Criterion, r Result) {
	var event *zerolog.Event
	if r.Available {
		event = e.logger.Info()
	} else {
		event = e.logger.Warn()
	}
	event.Stringer("criterion", kind).Float64("value", r.Criterion).Int("sweeps", r.Sweeps).
		Bool("available", r.Available).Msg("search finished")
}
