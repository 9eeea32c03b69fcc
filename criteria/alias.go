package criteria

import (
	"math"

	"github.com/notargets/goptdesign/utils"
)

// AliasTrace is trace(A'A) with A = inv(X'WX)·X'·Alias, the squared Frobenius norm of the
// alias matrix. It is Singular when X'WX is not positive definite.
func AliasTrace(X, alias utils.Matrix, W *utils.Matrix) Evaluation {
	return AliasTraceFromProducts(Information(X, W), CrossProduct(X, alias))
}

// AliasTracePseudoInverse replaces the inverse with a pseudo-inverse so that a seed design on
// the edge of singularity still yields a finite trace.
func AliasTracePseudoInverse(X, alias utils.Matrix, W *utils.Matrix) Evaluation {
	Mpinv, err := Information(X, W).PseudoInverse()
	if err != nil {
		return Singular
	}
	return Evaluated(aliasNorm(Mpinv, CrossProduct(X, alias)))
}

// CrossProduct is X'·Alias. The GLS weight enters the alias trace through the inverse only.
func CrossProduct(X, alias utils.Matrix) utils.Matrix {
	return X.Transpose().Mul(alias)
}

// AliasTraceFromProducts scores an information matrix M against a precomputed cross product
// X'·Alias, letting callers update both incrementally.
func AliasTraceFromProducts(M, cross utils.Matrix) Evaluation {
	Minv, err := M.InverseSym()
	if err != nil {
		return Singular
	}
	return Evaluated(aliasNorm(Minv, cross))
}

func aliasNorm(Minv, cross utils.Matrix) (tr float64) {
	A := Minv.Mul(cross)
	for _, val := range A.RawMatrix().Data {
		tr += val * val
	}
	return
}

// DEfficiency is det(X'WX)^(1/p)/n.
func DEfficiency(X utils.Matrix, W *utils.Matrix) float64 {
	var (
		n, _ = X.Dims()
	)
	return DEfficiencyFromInformation(Information(X, W), n)
}

// DEfficiencyUnnormalized is det(X'WX)^(1/p).
func DEfficiencyUnnormalized(X utils.Matrix, W *utils.Matrix) float64 {
	return DEfficiencyFromInformation(Information(X, W), 1)
}

func DEfficiencyFromInformation(M utils.Matrix, nTrials int) float64 {
	var (
		p, _ = M.Dims()
	)
	return math.Pow(M.Det(), 1./float64(p)) / float64(nTrials)
}
