package exchange

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/notargets/goptdesign/initializer"
	"github.com/notargets/goptdesign/types"
	"github.com/notargets/goptdesign/utils"
)

/*
GenerateBlocked searches for a split-plot design whose whole-plot columns are fixed by b.Blocks.

The intercept, column 0 of the candidate set, is carried by the block columns and is removed from
the candidate set, the initial design and both alias matrices. The working design is

	[blocks | candidate columns without the intercept | interaction products]

and every criterion uses the GLS information X'·inv(Covariance)·X. Rows matching a disallowed
row are never introduced, and rows that match one at the start are replaced by their first legal
candidate even when it does not improve the criterion. Rows left in violation are listed in
Result.Violations. G has no blocked form and returns ErrUnsupportedCriterion.
*/
func GenerateBlocked(ctx context.Context, p Problem, b Blocking, rng *rand.Rand, opts ...Option) (r Result, err error) {
	if err = p.validate(); err != nil {
		return NotAvailable(), err
	}
	if p.Criterion == types.Criterion_G {
		return NotAvailable(), fmt.Errorf("blocked %v: %w", p.Criterion, ErrUnsupportedCriterion)
	}
	if err = initializer.CheckIntercept(p.Candidates); err != nil {
		return NotAvailable(), err
	}
	var (
		nTrials       = p.nTrials()
		candidates    = p.Candidates.DropCol(0)
		_, reduced    = candidates.Dims()
		_, blockCols  = b.Blocks.Dims()
		nInteractions = len(b.Interactions)
		width         = blockCols + reduced + nInteractions
		e             = newEngine(p.Tolerance, opts)
	)
	if err = b.validate(nTrials, reduced); err != nil {
		return NotAvailable(), err
	}
	if err = initializer.CheckTrials(nTrials, width); err != nil {
		return NotAvailable(), err
	}
	if err = checkMoments(p.Criterion, p.Moments, width); err != nil {
		return NotAvailable(), err
	}
	vInv, err := b.Covariance.InverseSym()
	if err != nil {
		return NotAvailable(), fmt.Errorf("block covariance: %w", err)
	}
	d := &design{
		X:            combine(b.Blocks, p.Initial.DropCol(0), b.Interactions),
		Rows:         p.InitialRows.Copy(),
		candidates:   candidates,
		at:           layout{offset: blockCols, width: reduced, products: blockCols + reduced},
		interactions: b.Interactions,
		weight:       &vInv,
		limit:        e.limit,
		trial:        make([]float64, width),
	}
	if p.hasAlias() {
		var (
			aliasCandidates = p.AliasCandidates.DropCol(0)
			_, aliasReduced = aliasCandidates.Dims()
		)
		for _, in := range b.Interactions {
			if in.A >= blockCols+aliasReduced || in.B >= blockCols+aliasReduced {
				return NotAvailable(), fmt.Errorf("interaction %v outside the alias design: %w", in, ErrDimensionMismatch)
			}
		}
		d.Alias = combine(b.Blocks, p.AliasInitial.DropCol(0), b.Interactions)
		d.aliasCandidates = aliasCandidates
		d.aliasAt = layout{offset: blockCols, width: aliasReduced, products: blockCols + aliasReduced}
		d.aliasTrial = make([]float64, blockCols+aliasReduced+nInteractions)
	}
	if b.AnyDisallowed {
		d.disallowed = b.Disallowed
	}
	d.candidates.SetReadOnly("candidates")
	search := initializer.Search{
		NTrials:    nTrials,
		Candidates: candidates,
		MaxChecks:  10 * nTrials,
		Rng:        rng,
		Logger:     e.logger,
	}
	if !search.Run(d) {
		return NotAvailable(), nil
	}
	d.markViolations()
	c := e.criterion(p.Criterion, d)
	c.Moments = p.Moments
	c.Custom = p.Custom
	r, err = e.run(ctx, d, c, p.MinDopt)
	if len(r.Violations) != 0 {
		e.logger.Warn().Ints("rows", r.Violations).Msg("rows still match a disallowed combination")
	}
	e.summary(c.Kind, r)
	return
}

// combine lays out [blocks | sub | interaction products].
func combine(blocks, sub utils.Matrix, interactions []Interaction) (R utils.Matrix) {
	var (
		nr, blockCols = blocks.Dims()
		_, subCols    = sub.Dims()
		at            = layout{offset: blockCols, width: subCols, products: blockCols + subCols}
	)
	R = utils.NewMatrix(nr, blockCols+subCols+len(interactions))
	R.SetBlock(0, 0, blocks)
	for i := 0; i < nr; i++ {
		at.fill(R.RowView(i), sub.RowView(i), interactions)
	}
	return
}
