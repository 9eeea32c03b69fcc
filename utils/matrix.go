package utils

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/lapack/lapack64"
	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned when a factorization or inversion breaks down.
var ErrSingular = errors.New("utils: matrix is numerically singular")

// Gram returns m'·W·m, or m'·m when W is nil.
func (m Matrix) Gram(W *Matrix) (R Matrix) {
	var (
		_, nc = m.Dims()
	)
	R = NewMatrix(nc, nc)
	if W == nil {
		R.M.Mul(m.M.T(), m.M)
		return
	}
	var WX mat.Dense
	WX.Mul(W.M, m.M)
	R.M.Mul(m.M.T(), &WX)
	return
}

// Inverse uses an LU factorization and works for any nonsingular square matrix.
func (m Matrix) Inverse() (R Matrix, err error) {
	var (
		nr, nc = m.Dims()
	)
	R = m.Copy()
	iPiv := make([]int, nr)
	if ok := lapack64.Getrf(R.RawMatrix(), iPiv); !ok {
		err = fmt.Errorf("unable to invert: %w", ErrSingular)
		return
	}
	work := make([]float64, nr*nc)
	if ok := lapack64.Getri(R.RawMatrix(), iPiv, work, nr*nc); !ok {
		err = fmt.Errorf("unable to invert: %w", ErrSingular)
	}
	return
}

// InverseSym inverts a symmetric positive definite matrix through its Cholesky factor and fails
// when the matrix is not positive definite.
func (m Matrix) InverseSym() (R Matrix, err error) {
	var (
		n, _ = m.Dims()
		ch   mat.Cholesky
		inv  mat.SymDense
	)
	if ok := ch.Factorize(m.Sym()); !ok {
		err = fmt.Errorf("cholesky factorization failed: %w", ErrSingular)
		return
	}
	if err = ch.InverseTo(&inv); err != nil {
		err = fmt.Errorf("cholesky inverse failed: %v: %w", err, ErrSingular)
		return
	}
	R = NewMatrix(n, n)
	R.M.Copy(&inv)
	return
}

// PseudoInverse is the Moore-Penrose inverse from a thin SVD, zeroing singular values below
// max(nr,nc)·σmax·eps.
func (m Matrix) PseudoInverse() (R Matrix, err error) {
	var (
		nr, nc = m.Dims()
		svd    mat.SVD
		u, v   mat.Dense
	)
	if ok := svd.Factorize(m.M, mat.SVDThin); !ok {
		err = fmt.Errorf("svd failed: %w", ErrSingular)
		return
	}
	values := svd.Values(nil)
	svd.UTo(&u)
	svd.VTo(&v)
	tol := 0.
	if len(values) != 0 {
		tol = float64(max(nr, nc)) * values[0] * (math.Nextafter(1, 2) - 1)
	}
	// pinv = V · diag(1/σ) · U'
	R = NewMatrix(nc, nr)
	for k, s := range values {
		if s <= tol {
			continue
		}
		for i := 0; i < nc; i++ {
			vik := v.At(i, k) / s
			if vik == 0 {
				continue
			}
			row := R.RowView(i)
			for j := 0; j < nr; j++ {
				row[j] += vik * u.At(j, k)
			}
		}
	}
	return
}

func (m Matrix) Det() float64 {
	return mat.Det(m.M)
}

func (m Matrix) Trace() float64 {
	return mat.Trace(m.M)
}

// Sym views the upper triangle of a square matrix as symmetric.
func (m Matrix) Sym() *mat.SymDense {
	var (
		n, nc = m.Dims()
	)
	if n != nc {
		panic(fmt.Errorf("Sym requires a square matrix, have %d x %d", n, nc))
	}
	data := make([]float64, n*n)
	copy(data, m.M.RawMatrix().Data)
	return mat.NewSymDense(n, data)
}

// QuadForm returns x'·m·y.
func (m Matrix) QuadForm(x, y []float64) (q float64) {
	var (
		nr, nc = m.Dims()
		data   = m.M.RawMatrix().Data
	)
	for i := 0; i < nr; i++ {
		if x[i] == 0 {
			continue
		}
		var s float64
		for j := 0; j < nc; j++ {
			s += data[i*nc+j] * y[j]
		}
		q += x[i] * s
	}
	return
}
