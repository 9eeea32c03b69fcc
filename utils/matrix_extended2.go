package utils

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ConditionNumber is the 2-norm condition number, the ratio of the largest to the smallest
// singular value. A failed factorization or a zero singular value reports +Inf.
func (m Matrix) ConditionNumber() float64 {
	var svd mat.SVD
	if !svd.Factorize(m.M, mat.SVDNone) {
		return math.Inf(1)
	}
	values := svd.Values(nil)
	if len(values) == 0 {
		return math.Inf(1)
	}
	minVal := values[len(values)-1] // Singular values are in descending order
	maxVal := values[0]
	if minVal == 0 || math.IsNaN(minVal) {
		return math.Inf(1)
	}
	return maxVal / minVal
}

// SymEigenvalues returns the eigenvalues of a symmetric matrix in ascending order.
func (m Matrix) SymEigenvalues() (values []float64, err error) {
	var (
		eigen mat.EigenSym
	)
	if ok := eigen.Factorize(m.Sym(), false); !ok {
		err = fmt.Errorf("eigen decomposition failed: %w", ErrSingular)
		return
	}
	values = eigen.Values(nil)
	return
}
