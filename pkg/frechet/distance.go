package frechet

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"
)

// sqrtmRegularization is added to the diagonal of both covariances when the square root of their product is not
// finite.
const sqrtmRegularization = 1e-6

// FromStatistics returns the Fréchet distance between the Gaussians N(mu1, sigma1) and N(mu2, sigma2):
//
//	||mu1 - mu2||² + tr(sigma1) + tr(sigma2) - 2·tr(sqrtm(sigma1·sigma2))
//
// If the matrix square root has non-finite entries, it is recomputed once with 1e-6 added to the diagonal of both
// covariances. Only the real part of the square root is used.
//
// It returns ErrInvalidInput if the dimensions are inconsistent.
func FromStatistics(mu1 []float64, sigma1 mat.Matrix, mu2 []float64, sigma2 mat.Matrix) (float64, error) {
	d := len(mu1)
	if d == 0 {
		return 0, errorf("statistics have dimension 0")
	}
	if len(mu2) != d {
		return 0, errorf("means have different lengths: %d and %d", d, len(mu2))
	}
	for ii, sigma := range []mat.Matrix{sigma1, sigma2} {
		if r, c := sigma.Dims(); r != d || c != d {
			return 0, errorf("covariance %d is %dx%d, expected %dx%d to match the means", ii+1, r, c, d, d)
		}
	}
	return frechetDistance(mu1, sigma1, mu2, sigma2, sqrtm), nil
}

// frechetDistance implements FromStatistics on validated inputs, with the given matrix square root.
func frechetDistance(mu1 []float64, sigma1 mat.Matrix, mu2 []float64, sigma2 mat.Matrix,
	sqrtFn func(mat.Matrix) *mat.CDense) float64 {
	diff := make([]float64, len(mu1))
	floats.SubTo(diff, mu1, mu2)

	var product mat.Dense
	product.Mul(sigma1, sigma2)
	covMean := sqrtFn(&product)
	if !allFinite(covMean) {
		klog.V(1).Infof("Fréchet distance: product of covariances is singular, adding %g to the diagonal", sqrtmRegularization)
		var offset1, offset2 mat.Dense
		offset1.Add(sigma1, scaledIdentity(len(mu1), sqrtmRegularization))
		offset2.Add(sigma2, scaledIdentity(len(mu1), sqrtmRegularization))
		product.Mul(&offset1, &offset2)
		covMean = sqrtFn(&product)
	}

	var trCovMean float64
	for ii := range len(mu1) {
		trCovMean += real(covMean.At(ii, ii))
	}
	return floats.Dot(diff, diff) + mat.Trace(sigma1) + mat.Trace(sigma2) - 2*trCovMean
}

func scaledIdentity(n int, scale float64) *mat.DiagDense {
	diag := make([]float64, n)
	for ii := range diag {
		diag[ii] = scale
	}
	return mat.NewDiagDense(n, diag)
}
