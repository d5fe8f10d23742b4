package frechet

import (
	"github.com/nkiyohara/srvpfd/pkg/core/tensors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Statistics summarizes a set of feature vectors as a Gaussian: their mean and their sample covariance
// (normalized by N-1).
type Statistics struct {
	Mean       []float64
	Covariance *mat.SymDense
}

// ComputeStatistics returns the mean and covariance of features shaped [N, D].
//
// It requires at least 2 feature vectors (N ≥ 2), otherwise the covariance is undefined. With N ≤ D the
// covariance is singular, which the distance tolerates.
func ComputeStatistics(features *tensors.Tensor) (*Statistics, error) {
	if features.Rank() != 2 {
		return nil, errorf("features must be shaped [N, D], got %s", features)
	}
	n, d := features.Dim(0), features.Dim(1)
	if n < 2 {
		return nil, errorf("at least 2 feature vectors are needed to estimate a covariance, got %d", n)
	}
	if d == 0 {
		return nil, errorf("features have dimension 0")
	}
	x := mat.NewDense(n, d, features.Float64s())
	mean := make([]float64, d)
	column := make([]float64, n)
	for j := range d {
		mat.Col(column, j, x)
		mean[j] = stat.Mean(column, nil)
	}
	var covariance mat.SymDense
	stat.CovarianceMatrix(&covariance, x, nil)
	return &Statistics{Mean: mean, Covariance: &covariance}, nil
}

// Dim returns the dimension of the feature vectors.
func (s *Statistics) Dim() int {
	return len(s.Mean)
}

// Distance returns the Fréchet distance between s and other, see FromStatistics.
func (s *Statistics) Distance(other *Statistics) (float64, error) {
	return FromStatistics(s.Mean, s.Covariance, other.Mean, other.Covariance)
}

// Spectrum returns the eigenvalues of the covariance, in decreasing order.
func (s *Statistics) Spectrum() ([]float64, error) {
	var eig mat.EigenSym
	if ok := eig.Factorize(s.Covariance, false); !ok {
		return nil, errorf("eigendecomposition of the covariance failed")
	}
	values := eig.Values(nil)
	// Values are returned in ascending order.
	for i, j := 0, len(values)-1; i < j; i, j = i+1, j-1 {
		values[i], values[j] = values[j], values[i]
	}
	return values, nil
}
