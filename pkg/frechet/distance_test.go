package frechet

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSqrtm(t *testing.T) {
	root := sqrtm(mat.NewDense(2, 2, []float64{4, 0, 0, 9}))
	assert.InDelta(t, 2, real(root.At(0, 0)), 1e-12)
	assert.InDelta(t, 3, real(root.At(1, 1)), 1e-12)
	assert.InDelta(t, 0, cmplx.Abs(root.At(0, 1)), 1e-12)

	// root² == a, for a non-symmetric matrix.
	a := mat.NewDense(3, 3, []float64{4, 1, 0, 2, 5, 1, 0, 1, 3})
	root = sqrtm(a)
	for i := range 3 {
		for j := range 3 {
			var v complex128
			for k := range 3 {
				v += root.At(i, k) * root.At(k, j)
			}
			assert.InDelta(t, a.At(i, j), real(v), 1e-9, "(%d, %d)", i, j)
			assert.InDelta(t, 0, imag(v), 1e-9, "(%d, %d)", i, j)
		}
	}

	// Negative eigenvalues give imaginary roots.
	root = sqrtm(mat.NewDense(2, 2, []float64{-4, 0, 0, 1}))
	assert.InDelta(t, 0, real(root.At(0, 0)), 1e-12)
	assert.InDelta(t, 2, imag(root.At(0, 0)), 1e-12)
}

func TestFromStatistics(t *testing.T) {
	identity := mat.NewDiagDense(2, []float64{1, 1})
	four := mat.NewDiagDense(2, []float64{4, 4})
	d, err := FromStatistics([]float64{0, 0}, identity, []float64{3, 4}, four)
	require.NoError(t, err)
	assert.InDelta(t, 25+2+8-2*4, d, 1e-9)

	// Symmetric.
	d2, err := FromStatistics([]float64{3, 4}, four, []float64{0, 0}, identity)
	require.NoError(t, err)
	assert.InDelta(t, d, d2, 1e-9)

	// Zero covariances: finite and non-negative.
	zeros := mat.NewSymDense(3, nil)
	d, err = FromStatistics([]float64{1, 2, 3}, zeros, []float64{1, 2, 3}, zeros)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(d) || math.IsInf(d, 0))
	assert.GreaterOrEqual(t, d, 0.0)
	assert.InDelta(t, 0, d, 1e-6)
}

func TestFromStatisticsErrors(t *testing.T) {
	identity := mat.NewDiagDense(2, []float64{1, 1})
	_, err := FromStatistics([]float64{0, 0}, identity, []float64{0, 0, 0}, identity)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = FromStatistics([]float64{0, 0}, identity, []float64{0, 0}, mat.NewDense(2, 3, nil))
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = FromStatistics([]float64{0, 0, 0}, identity, []float64{0, 0, 0}, identity)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = FromStatistics(nil, identity, nil, identity)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestFrechetDistanceRetry(t *testing.T) {
	mu := []float64{1, 1}
	sigma := mat.NewDiagDense(2, []float64{1, 2})

	// First square root is not finite: retried once, with the regularized covariances.
	var products []*mat.Dense
	stub := func(a mat.Matrix) *mat.CDense {
		products = append(products, mat.DenseCopyOf(a))
		if len(products) == 1 {
			return nanCDense(2)
		}
		return sqrtm(a)
	}
	d := frechetDistance(mu, sigma, mu, sigma, stub)
	require.Len(t, products, 2)
	assert.InDelta(t, (1+1e-6)*(1+1e-6), products[1].At(0, 0), 1e-15)
	assert.InDelta(t, (2+1e-6)*(2+1e-6), products[1].At(1, 1), 1e-15)
	assert.InDelta(t, 0, d, 1e-5)

	// The result of the retry is not checked again.
	products = nil
	alwaysNaN := func(_ mat.Matrix) *mat.CDense {
		products = append(products, nil)
		return nanCDense(2)
	}
	d = frechetDistance(mu, sigma, mu, sigma, alwaysNaN)
	assert.Len(t, products, 2)
	assert.True(t, math.IsNaN(d))

	// Finite on the first try: no retry.
	calls := 0
	counting := func(a mat.Matrix) *mat.CDense {
		calls++
		return sqrtm(a)
	}
	d = frechetDistance(mu, sigma, []float64{1, 2}, sigma, counting)
	assert.Equal(t, 1, calls)
	assert.InDelta(t, 1, d, 1e-9)
}
