package types

import (
	"fmt"
	"strings"
)

type Criterion uint8

const (
	Criterion_D Criterion = iota
	Criterion_I
	Criterion_A
	Criterion_G
	Criterion_T
	Criterion_E
	Criterion_Alias
	Criterion_Custom
)

var criterionNames = [...]string{"D", "I", "A", "G", "T", "E", "ALIAS", "CUSTOM"}

func (c Criterion) String() string {
	if int(c) < len(criterionNames) {
		return criterionNames[c]
	}
	return fmt.Sprintf("Criterion(%d)", c)
}

var CriterionNameMap = map[string]Criterion{
	"d":      Criterion_D,
	"i":      Criterion_I,
	"a":      Criterion_A,
	"g":      Criterion_G,
	"t":      Criterion_T,
	"e":      Criterion_E,
	"alias":  Criterion_Alias,
	"custom": Criterion_Custom,
}

func NewCriterion(label string) (c Criterion, err error) {
	var ok bool
	if c, ok = CriterionNameMap[strings.ToLower(strings.TrimSpace(label))]; !ok {
		err = fmt.Errorf("unknown optimality criterion %q", label)
	}
	return
}

type Direction int8

const (
	Maximize Direction = 1
	Minimize Direction = -1
)

// Direction is the sense in which the criterion's tracked value improves. Alias is minimized
// overall even though its continuation maximizes a blended score.
func (c Criterion) Direction() Direction {
	switch c {
	case Criterion_I, Criterion_A, Criterion_G, Criterion_Alias:
		return Minimize
	default:
		return Maximize
	}
}

// Improves reports whether newVal is strictly better than oldVal.
func (d Direction) Improves(newVal, oldVal float64) bool {
	if d == Minimize {
		return newVal < oldVal
	}
	return newVal > oldVal
}

// Continue is the sweep-level test on the relative change between two completed sweeps.
func (d Direction) Continue(newVal, priorVal, tolerance float64) bool {
	rel := (newVal - priorVal) / priorVal
	if d == Minimize {
		return rel < -tolerance
	}
	return rel > tolerance
}

// Seed returns the artificial prior used before the first sweep so that the first
// Continue test always passes.
func (d Direction) Seed(val float64) float64 {
	if d == Minimize {
		return val * 2
	}
	return val / 2
}
