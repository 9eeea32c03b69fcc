// Package exchange searches for optimal experimental designs by coordinate exchange.
//
// A search replaces one design row at a time with the candidate that most improves the chosen
// criterion, sweeping all rows until the relative change between sweeps falls within tolerance.
// Generate runs the unblocked search; GenerateBlocked holds a whole-plot block structure fixed,
// weights the information matrix by the inverse block covariance and respects disallowed rows.
package exchange

import (
	"errors"
	"fmt"

	"github.com/notargets/goptdesign/criteria"
	"github.com/notargets/goptdesign/types"
	"github.com/notargets/goptdesign/utils"
)

var (
	ErrUnsupportedCriterion = errors.New("criterion is not supported by this search")
	ErrMissingCustom        = errors.New("custom criterion selected without a scoring function")
	ErrDimensionMismatch    = errors.New("input dimensions do not agree")
)

// Problem holds the unblocked search inputs. Candidate rows are model matrix rows. InitialRows
// are 1-based candidate indices of the Initial rows.
type Problem struct {
	Initial     utils.Matrix
	InitialRows utils.Index
	Candidates  utils.Matrix
	Criterion   types.Criterion
	// Moments integrates prediction variance over the design region, required for I.
	Moments utils.Matrix
	// AliasInitial and AliasCandidates expand Initial and Candidates with the aliasing model.
	// They are required for Alias and carried along for every other criterion when present.
	AliasInitial    utils.Matrix
	AliasCandidates utils.Matrix
	// MinDopt is the D-efficiency floor during alias continuation.
	MinDopt   float64
	Tolerance float64
	Custom    criteria.CustomFunc
}

// Interaction derives a column as the elementwise product of columns A and B. Columns are 0-based
// in the combined layout [block columns | candidate columns without the intercept].
type Interaction struct {
	A, B int
}

// Blocking holds the additional inputs of a blocked (split-plot) search.
type Blocking struct {
	// Blocks are the whole-plot columns, nTrials rows, never exchanged.
	Blocks utils.Matrix
	// Covariance is the nTrials x nTrials block covariance, inverted to the GLS weight.
	Covariance   utils.Matrix
	Interactions []Interaction
	// Disallowed lists full combined rows, interactions included, that may not appear in the design.
	Disallowed    utils.Matrix
	AnyDisallowed bool
}

func (p Problem) nTrials() int {
	n, _ := p.Initial.Dims()
	return n
}

func (p Problem) hasAlias() bool {
	return !p.AliasInitial.IsEmpty() && !p.AliasCandidates.IsEmpty()
}

func (p Problem) validate() (err error) {
	if p.Initial.IsEmpty() || p.Candidates.IsEmpty() {
		return fmt.Errorf("initial design and candidate set are required: %w", ErrDimensionMismatch)
	}
	var (
		nTrials, nc = p.Initial.Dims()
		nCand, ncc  = p.Candidates.Dims()
	)
	switch {
	case nc != ncc:
		return fmt.Errorf("initial design has %d columns, candidate set %d: %w", nc, ncc, ErrDimensionMismatch)
	case len(p.InitialRows) != nTrials:
		return fmt.Errorf("%d initial rows for %d trials: %w", len(p.InitialRows), nTrials, ErrDimensionMismatch)
	case p.Tolerance < 0:
		return fmt.Errorf("negative tolerance %v", p.Tolerance)
	}
	for i, r := range p.InitialRows {
		if r < 1 || r > nCand {
			return fmt.Errorf("initial row %d references candidate %d of %d: %w", i, r, nCand, ErrDimensionMismatch)
		}
	}
	if p.Criterion > types.Criterion_Custom {
		return fmt.Errorf("%v: %w", p.Criterion, ErrUnsupportedCriterion)
	}
	if p.Criterion == types.Criterion_Custom && p.Custom == nil {
		return ErrMissingCustom
	}
	if p.Criterion == types.Criterion_Alias && !p.hasAlias() {
		return fmt.Errorf("alias criterion requires an alias design and alias candidate set: %w", ErrDimensionMismatch)
	}
	if p.hasAlias() {
		na, _ := p.AliasInitial.Dims()
		nac, _ := p.AliasCandidates.Dims()
		if na != nTrials || nac != nCand {
			return fmt.Errorf("alias design %d rows, alias candidates %d rows: %w", na, nac, ErrDimensionMismatch)
		}
	}
	return
}

func (b Blocking) validate(nTrials, reducedCols int) error {
	if b.Blocks.IsEmpty() || b.Covariance.IsEmpty() {
		return fmt.Errorf("block design and block covariance are required: %w", ErrDimensionMismatch)
	}
	var (
		nb, blockCols = b.Blocks.Dims()
		nr, nc        = b.Covariance.Dims()
		width         = blockCols + reducedCols
	)
	if nb != nTrials {
		return fmt.Errorf("block design has %d rows for %d trials: %w", nb, nTrials, ErrDimensionMismatch)
	}
	if nr != nTrials || nc != nTrials {
		return fmt.Errorf("block covariance is %d x %d for %d trials: %w", nr, nc, nTrials, ErrDimensionMismatch)
	}
	for _, in := range b.Interactions {
		if in.A < 0 || in.B < 0 || in.A >= width || in.B >= width {
			return fmt.Errorf("interaction %v outside %d combined columns: %w", in, width, ErrDimensionMismatch)
		}
	}
	if b.AnyDisallowed && !b.Disallowed.IsEmpty() {
		if _, dc := b.Disallowed.Dims(); dc != width+len(b.Interactions) {
			return fmt.Errorf("disallowed rows have %d columns, design has %d: %w",
				dc, width+len(b.Interactions), ErrDimensionMismatch)
		}
	}
	return nil
}

func checkMoments(c types.Criterion, moments utils.Matrix, width int) error {
	if c != types.Criterion_I {
		return nil
	}
	if moments.IsEmpty() {
		return fmt.Errorf("I criterion requires a moments matrix: %w", ErrDimensionMismatch)
	}
	if nr, nc := moments.Dims(); nr != width || nc != width {
		return fmt.Errorf("moments matrix is %d x %d, design has %d columns: %w", nr, nc, width, ErrDimensionMismatch)
	}
	return nil
}
