// Package initializer produces a nonsingular starting design for the exchange search.
package initializer

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/notargets/goptdesign/utils"
)

var (
	ErrTooFewTrials     = errors.New("too few runs to generate initial non-singular matrix: increase the number of runs or decrease the number of parameters in the matrix")
	ErrInterceptAliased = errors.New("singular model matrix from factor aliased into intercept, revise model")
)

// CheckStructure rejects problems no search can solve: fewer trials than parameters, or a
// model column identical to the intercept column 0.
func CheckStructure(candidates utils.Matrix, nTrials, nParams int) error {
	if err := CheckTrials(nTrials, nParams); err != nil {
		return err
	}
	return CheckIntercept(candidates)
}

func CheckTrials(nTrials, nParams int) error {
	if nTrials < nParams {
		return fmt.Errorf("%d trials for %d parameters: %w", nTrials, nParams, ErrTooFewTrials)
	}
	return nil
}

func CheckIntercept(candidates utils.Matrix) error {
	var (
		_, nc = candidates.Dims()
	)
	for j := 1; j < nc; j++ {
		if candidates.ColEquals(0, j) {
			return fmt.Errorf("column %d: %w", j, ErrInterceptAliased)
		}
	}
	return nil
}

// Assigner is the design being initialized. Assign places candidate row j (0-based) at
// trial i, keeping every derived column of that trial consistent.
type Assigner interface {
	Assign(i, j int)
	Singular() bool
}

type Search struct {
	NTrials    int
	Candidates utils.Matrix
	// MaxChecks bounds the random restarts before the orthogonal fallback.
	MaxChecks int
	// Shuffle randomizes the order of the orthogonal construction's rows.
	Shuffle bool
	Rng     *rand.Rand
	Logger  zerolog.Logger
}

// Run leaves the assigner holding a nonsingular design and returns true, or returns false
// when none could be constructed. The assigner's current design is tested first.
func (s *Search) Run(a Assigner) bool {
	var (
		totalPoints, _ = s.Candidates.Dims()
	)
	for check := 0; check < s.MaxChecks; check++ {
		if !a.Singular() {
			if check > 0 {
				s.Logger.Debug().Int("restarts", check).Msg("random restart produced a nonsingular design")
			}
			return true
		}
		shuffled := s.Rng.Perm(totalPoints)
		for i := 0; i < s.NTrials; i++ {
			a.Assign(i, shuffled[i%totalPoints])
		}
	}
	if !a.Singular() {
		return true
	}
	s.Logger.Info().Int("restarts", s.MaxChecks).Msg("random restarts exhausted, using orthogonal construction")
	rows, err := Orthogonal(s.Candidates, s.NTrials, s.Rng)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("orthogonal construction failed")
		return false
	}
	if s.Shuffle {
		s.Rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
	}
	for i, j := range rows {
		a.Assign(i, j)
	}
	if a.Singular() {
		s.Logger.Warn().Msg("no nonsingular starting design found")
		return false
	}
	return true
}
