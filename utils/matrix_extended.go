package utils

import (
	"fmt"

	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/mat"
)

type Matrix struct {
	M        *mat.Dense
	readOnly bool
	name     string
}

func NewMatrix(nr, nc int, dataO ...[]float64) (R Matrix) {
	var m *mat.Dense
	if len(dataO) != 0 {
		if len(dataO[0]) != nr*nc {
			err := fmt.Errorf("mismatch in allocation: NewMatrix nr,nc = %v,%v, len(data[0]) = %v\n", nr, nc, len(dataO[0]))
			panic(err)
		}
		m = mat.NewDense(nr, nc, dataO[0])
	} else {
		m = mat.NewDense(nr, nc, make([]float64, nr*nc))
	}
	R = Matrix{
		m,
		false,
		"unnamed - hint: pass a variable name to SetReadOnly()",
	}
	return
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m Matrix) Dims() (r, c int)          { return m.M.Dims() }
func (m Matrix) At(i, j int) float64       { return m.M.At(i, j) }
func (m Matrix) T() mat.Matrix             { return m.M.T() }
func (m Matrix) RawMatrix() blas64.General { return m.M.RawMatrix() }

// IsEmpty reports whether the matrix was never allocated, which is how optional inputs
// (moments, alias sets) are left unset.
func (m Matrix) IsEmpty() bool { return m.M == nil }

// Chainable methods (extended)
func (m *Matrix) SetReadOnly(name ...string) Matrix {
	if len(name) != 0 {
		m.name = name[0]
	}
	m.readOnly = true
	return *m
}

func (m Matrix) Copy() (R Matrix) { // Does not change receiver
	var (
		data   = m.M.RawMatrix().Data
		nr, nc = m.Dims()
		dataR  = make([]float64, nr*nc)
	)
	copy(dataR, data)
	R = NewMatrix(nr, nc, dataR)
	return
}

func (m Matrix) Transpose() (R Matrix) { // Does not change receiver
	var (
		nr, nc = m.Dims()
		data   = m.M.RawMatrix().Data
	)
	R = NewMatrix(nc, nr)
	dataR := R.M.RawMatrix().Data
	for j := 0; j < nc; j++ {
		for i := 0; i < nr; i++ {
			dataR[i+nr*j] = data[i*nc+j]
		}
	}
	return
}

func (m Matrix) Mul(A Matrix) (R Matrix) { // Does not change receiver
	var (
		nrM, _ = m.M.Dims()
		_, ncA = A.M.Dims()
	)
	R = NewMatrix(nrM, ncA)
	R.M.Mul(m.M, A.M)
	return R
}

func (m Matrix) SliceRows(I Index) (R Matrix) { // Does not change receiver
	// I should contain a list of row indices into M
	var (
		nr, nc   = m.Dims()
		nI       = len(I)
		maxIndex = nr - 1
	)
	R = NewMatrix(nI, nc)
	for iNewRow, i := range I {
		if i > maxIndex || i < 0 {
			fmt.Printf("index out of bounds: index = %d, max_bounds = %d\n", i, maxIndex)
			panic("unable to subset rows from matrix")
		}
		R.M.SetRow(iNewRow, m.M.RawRowView(i))
	}
	return
}

func (m Matrix) SliceCols(I Index) (R Matrix) { // Does not change receiver
	// I should contain a list of column indices into M
	var (
		nr, nc   = m.Dims()
		maxIndex = nc - 1
		nI       = len(I)
		dataM    = m.RawMatrix().Data
		colData  = make([]float64, nr)
	)
	R = NewMatrix(nr, nI)
	for jNewCol, j := range I {
		if j > maxIndex || j < 0 {
			fmt.Printf("index out of bounds: index = %d, max_bounds = %d\n", j, maxIndex)
			panic("unable to subset columns from matrix")
		}
		for i := 0; i < nr; i++ {
			colData[i] = dataM[i*nc+j]
		}
		R.M.SetCol(jNewCol, colData)
	}
	return
}

// DropCol returns a copy without column j.
func (m Matrix) DropCol(j int) (R Matrix) {
	var (
		_, nc = m.Dims()
		keep  = NewIndex(0)
	)
	for jj := 0; jj < nc; jj++ {
		if jj != j {
			keep = append(keep, jj)
		}
	}
	return m.SliceCols(keep)
}

func (m Matrix) Set(i, j int, val float64) Matrix { // Changes receiver
	var (
		nr, nc = m.Dims()
	)
	i, j = lim(i, nr), lim(j, nc)
	m.checkWritable()
	m.M.Set(i, j, val)
	return m
}

func (m Matrix) SetRow(i int, data []float64) Matrix { // Changes receiver
	var (
		nr, _ = m.Dims()
	)
	i = lim(i, nr)
	m.checkWritable()
	m.M.SetRow(i, data)
	return m
}

// SetRowRange overwrites row i starting at column j0 with data.
func (m Matrix) SetRowRange(i, j0 int, data []float64) Matrix { // Changes receiver
	var (
		_, nc = m.Dims()
	)
	if j0+len(data) > nc {
		panic(fmt.Errorf("row range [%d:%d] exceeds %d columns", j0, j0+len(data), nc))
	}
	m.checkWritable()
	copy(m.M.RawRowView(i)[j0:], data)
	return m
}

// SetBlock copies A into the receiver with its top left corner at (i0, j0).
func (m Matrix) SetBlock(i0, j0 int, A Matrix) Matrix { // Changes receiver
	var (
		nrA, _ = A.Dims()
	)
	for i := 0; i < nrA; i++ {
		m.SetRowRange(i0+i, j0, A.RowView(i))
	}
	return m
}

// Row returns a copy of row i.
func (m Matrix) Row(i int) (r []float64) {
	var (
		nr, nc = m.Dims()
	)
	r = make([]float64, nc)
	copy(r, m.M.RawRowView(lim(i, nr)))
	return
}

// RowView returns row i backed by the matrix storage.
func (m Matrix) RowView(i int) []float64 {
	return m.M.RawRowView(i)
}

// RowEquals is an exact comparison, matching how candidate rows are copied into designs.
func (m Matrix) RowEquals(i int, row []float64) bool {
	var (
		r = m.M.RawRowView(i)
	)
	if len(r) != len(row) {
		return false
	}
	for j, val := range r {
		if val != row[j] {
			return false
		}
	}
	return true
}

// ColEquals reports whether columns j1 and j2 hold identical values.
func (m Matrix) ColEquals(j1, j2 int) bool {
	var (
		nr, _ = m.Dims()
	)
	for i := 0; i < nr; i++ {
		if m.M.At(i, j1) != m.M.At(i, j2) {
			return false
		}
	}
	return true
}

func (m Matrix) Add(A Matrix) Matrix { // Changes receiver
	var (
		dataM = m.RawMatrix().Data
		dataA = A.RawMatrix().Data
	)
	m.checkWritable()
	for i, val := range dataA {
		dataM[i] += val
	}
	return m
}

func (m Matrix) Subtract(a Matrix) Matrix { // Changes receiver
	var (
		data  = m.M.RawMatrix().Data
		dataA = a.M.RawMatrix().Data
	)
	m.checkWritable()
	for i := range data {
		data[i] -= dataA[i]
	}
	return m
}

func (m Matrix) String() string {
	return fmt.Sprintf("%v", mat.Formatted(m.M, mat.Squeeze()))
}

func (m Matrix) checkWritable() {
	if m.readOnly {
		err := fmt.Errorf("attempt to write to a read only matrix named: \"%v\"", m.name)
		panic(err)
	}
}

func lim(i, imax int) int {
	if i < 0 {
		return imax + i // Support indexing from end, -1 is imax
	}
	return i
}
