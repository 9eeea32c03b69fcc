package initializer

import (
	"errors"
	"math"
	"math/rand"

	"github.com/notargets/goptdesign/utils"
)

// ErrRankDeficient reports a candidate set whose column rank is below its column count.
var ErrRankDeficient = errors.New("candidate set is rank deficient, no nonsingular design can be built from it")

const orthogonalTolerance = 1e-8

/*
Orthogonal builds a nonsingular design by the nullify procedure:
  - pick the longest unused row of a working copy of the candidate set
  - Gram-Schmidt orthogonalize every unused row against it
  - repeat until p rows (p = number of columns) have been picked

The remaining nTrials-p rows are drawn from the candidate set with replacement. Returned rows
are 0-based candidate indices in selection order, unshuffled. A rank deficient candidate set
returns an all-zero index and ErrRankDeficient.
*/
func Orthogonal(candidates utils.Matrix, nTrials int, rng *rand.Rand) (rows utils.Index, err error) {
	var (
		work        = candidates.Copy()
		nr, p       = work.Dims()
		used        = make([]bool, nr)
		tolerance   = orthogonalTolerance
		rankFailure = func() (utils.Index, error) {
			return utils.NewIndex(nTrials), ErrRankDeficient
		}
	)
	rows = utils.NewIndex(nTrials)
	if p > nTrials || p > nr {
		return rankFailure()
	}
	for i := 0; i < p; i++ {
		next := longestRow(work, used)
		length := math.Sqrt(dot(work.RowView(next), work.RowView(next)))
		if i == 0 {
			// Scale to the candidate set's longest vector
			tolerance *= length
		}
		if length < tolerance || length == 0 {
			return rankFailure()
		}
		used[next] = true
		rows[i] = next
		if i != p-1 {
			orthogonalizeAgainst(work, next, used)
		}
	}
	for i := p; i < nTrials; i++ {
		rows[i] = rng.Intn(nr)
	}
	return
}

func longestRow(X utils.Matrix, used []bool) (index int) {
	longest := -1.
	for i := range used {
		if used[i] {
			continue
		}
		row := X.RowView(i)
		if l := dot(row, row); l > longest {
			longest = l
			index = i
		}
	}
	return
}

// orthogonalizeAgainst removes the component along row basis from every unused row, in place.
func orthogonalizeAgainst(X utils.Matrix, basis int, used []bool) {
	var (
		b         = X.RowView(basis)
		basisNorm = dot(b, b)
	)
	for i := range used {
		if used[i] {
			continue
		}
		row := X.RowView(i)
		scale := dot(row, b) / basisNorm
		for j := range row {
			row[j] -= b[j] * scale
		}
	}
}

func dot(a, b []float64) (s float64) {
	for i, val := range a {
		s += val * b[i]
	}
	return
}
