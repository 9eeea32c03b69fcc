package exchange

import (
	"github.com/notargets/goptdesign/criteria"
	"github.com/notargets/goptdesign/utils"
)

// layout places candidate values inside a design row: columns [offset, offset+width) come from
// the candidate, interaction products follow at column products.
type layout struct {
	offset, width int
	products      int
}

func (l layout) fill(row, candidate []float64, interactions []Interaction) {
	copy(row[l.offset:l.offset+l.width], candidate)
	for k, in := range interactions {
		row[l.products+k] = row[in.A] * row[in.B]
	}
}

/*
design is the mutable search state. Row i of X always equals the fill of candidate Rows[i]-1
into row i, and the same holds for Alias when an alias model is present.

A scan over candidates for row i stages each tentative row in trial and aliasTrial through
propose; the committed state changes only through Assign.
*/
type design struct {
	X, Alias                    utils.Matrix
	Rows                        utils.Index
	candidates, aliasCandidates utils.Matrix
	at, aliasAt                 layout
	interactions                []Interaction
	disallowed                  utils.Matrix
	mustChange                  []bool
	weight                      *utils.Matrix
	limit                       float64

	trial, aliasTrial []float64
}

func (d *design) nTrials() int {
	n, _ := d.X.Dims()
	return n
}

func (d *design) nCandidates() int {
	n, _ := d.candidates.Dims()
	return n
}

func (d *design) hasAlias() bool { return !d.Alias.IsEmpty() }

// Assign places candidate j (0-based) at trial i.
func (d *design) Assign(i, j int) {
	d.at.fill(d.X.RowView(i), d.candidates.RowView(j), d.interactions)
	if d.hasAlias() {
		d.aliasAt.fill(d.Alias.RowView(i), d.aliasCandidates.RowView(j), d.interactions)
	}
	d.Rows[i] = j + 1
}

func (d *design) Singular() bool {
	return criteria.IsSingularAt(d.X, d.weight, d.limit)
}

// propose stages row i with candidate j substituted and reports whether the staged row is legal.
func (d *design) propose(i, j int) (allowed bool) {
	copy(d.trial, d.X.RowView(i))
	d.at.fill(d.trial, d.candidates.RowView(j), d.interactions)
	if d.hasAlias() {
		copy(d.aliasTrial, d.Alias.RowView(i))
		d.aliasAt.fill(d.aliasTrial, d.aliasCandidates.RowView(j), d.interactions)
	}
	return d.allowed(d.trial)
}

func (d *design) allowed(row []float64) bool {
	if d.disallowed.IsEmpty() {
		return true
	}
	nr, _ := d.disallowed.Dims()
	for k := 0; k < nr; k++ {
		if d.disallowed.RowEquals(k, row) {
			return false
		}
	}
	return true
}

// markViolations flags every row that currently matches a disallowed row.
func (d *design) markViolations() {
	if d.disallowed.IsEmpty() {
		return
	}
	d.mustChange = make([]bool, d.nTrials())
	for i := range d.mustChange {
		d.mustChange[i] = !d.allowed(d.X.RowView(i))
	}
}

func (d *design) forced(i int) bool {
	return d.mustChange != nil && d.mustChange[i]
}

func (d *design) clearViolation(i int) {
	if d.mustChange != nil {
		d.mustChange[i] = false
	}
}

func (d *design) violations() (rows []int) {
	for i, flagged := range d.mustChange {
		if flagged {
			rows = append(rows, i)
		}
	}
	return
}

// snapshot copies the committed state. Inputs shared by every snapshot are not copied.
func (d *design) snapshot() *design {
	s := *d
	s.X = d.X.Copy()
	if d.hasAlias() {
		s.Alias = d.Alias.Copy()
	}
	s.Rows = d.Rows.Copy()
	if d.mustChange != nil {
		s.mustChange = append([]bool(nil), d.mustChange...)
	}
	s.trial = make([]float64, len(d.trial))
	s.aliasTrial = make([]float64, len(d.aliasTrial))
	return &s
}

func (d *design) result() Result {
	r := Result{
		Indices:    d.Rows.Copy(),
		Design:     d.X.Copy(),
		Available:  true,
		Violations: d.violations(),
	}
	if d.hasAlias() {
		r.AliasDesign = d.Alias.Copy()
	}
	return r
}
