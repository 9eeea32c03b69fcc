package exchange

import (
	"fmt"
	"math"
	"strings"

	"github.com/notargets/goptdesign/utils"
)

// Result is the outcome of a search. When no nonsingular starting design exists, Available is
// false, Criterion is NaN and the index and design fields are empty.
type Result struct {
	Indices     utils.Index // 1-based candidate rows
	Design      utils.Matrix
	AliasDesign utils.Matrix
	Criterion   float64
	Available   bool
	// Levels lists the visited alias continuation weights, in order.
	Levels []float64
	Sweeps int
	// Violations lists 0-based rows still matching a disallowed row.
	Violations []int
}

func NotAvailable() Result {
	return Result{Criterion: math.NaN()}
}

func (r Result) Print() {
	fmt.Printf("%s", r.String())
}

func (r Result) String() string {
	var sb strings.Builder
	if !r.Available {
		sb.WriteString("no nonsingular design could be constructed\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "Criterion = %g after %d sweeps\n", r.Criterion, r.Sweeps)
	if len(r.Levels) != 0 {
		fmt.Fprintf(&sb, "Alias weight levels = %v\n", r.Levels)
	}
	if len(r.Violations) != 0 {
		fmt.Fprintf(&sb, "Rows matching a disallowed combination = %v\n", r.Violations)
	}
	fmt.Fprintf(&sb, "Candidate rows = %v\n", []int(r.Indices))
	fmt.Fprintf(&sb, "Design =\n%v\n", r.Design)
	return sb.String()
}
