package frechet

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// sqrtm returns the principal square root of the square matrix a, which need not be symmetric.
//
// It uses the eigendecomposition a = V·Λ·V⁻¹, so sqrtm(a) = V·√Λ·V⁻¹, with the principal branch of the complex
// square root of each eigenvalue. If the decomposition fails or V is singular, all entries are NaN.
func sqrtm(a mat.Matrix) *mat.CDense {
	n, _ := a.Dims()
	var eig mat.Eigen
	if ok := eig.Factorize(a, mat.EigenRight); !ok {
		return nanCDense(n)
	}
	values := eig.Values(nil)
	var vectors mat.CDense
	eig.VectorsTo(&vectors)

	embedded := embedComplex(&vectors)
	var inverse mat.Dense
	if err := inverse.Inverse(embedded); err != nil {
		if cond, ok := err.(mat.Condition); !ok || math.IsInf(float64(cond), 1) {
			return nanCDense(n)
		}
	}

	// V·√Λ: scale the columns of V.
	scaled := mat.NewCDense(n, n, nil)
	for j, lambda := range values {
		root := cmplx.Sqrt(lambda)
		for i := range n {
			scaled.Set(i, j, vectors.At(i, j)*root)
		}
	}
	var product mat.Dense
	product.Mul(embedComplex(scaled), &inverse)
	return extractComplex(&product, n)
}

// embedComplex returns the real 2n×2n matrix [[Re, -Im], [Im, Re]] representing the complex matrix c.
// The embedding preserves products and inverses.
func embedComplex(c *mat.CDense) *mat.Dense {
	n, _ := c.Dims()
	d := mat.NewDense(2*n, 2*n, nil)
	for i := range n {
		for j := range n {
			v := c.At(i, j)
			d.Set(i, j, real(v))
			d.Set(i, j+n, -imag(v))
			d.Set(i+n, j, imag(v))
			d.Set(i+n, j+n, real(v))
		}
	}
	return d
}

// extractComplex is the inverse of embedComplex.
func extractComplex(d *mat.Dense, n int) *mat.CDense {
	c := mat.NewCDense(n, n, nil)
	for i := range n {
		for j := range n {
			c.Set(i, j, complex(d.At(i, j), d.At(i+n, j)))
		}
	}
	return c
}

func nanCDense(n int) *mat.CDense {
	c := mat.NewCDense(n, n, nil)
	nan := complex(math.NaN(), math.NaN())
	for i := range n {
		for j := range n {
			c.Set(i, j, nan)
		}
	}
	return c
}

// allFinite reports whether every entry of c has finite real and imaginary parts.
func allFinite(c *mat.CDense) bool {
	r, cols := c.Dims()
	for i := range r {
		for j := range cols {
			v := c.At(i, j)
			if math.IsNaN(real(v)) || math.IsInf(real(v), 0) || math.IsNaN(imag(v)) || math.IsInf(imag(v), 0) {
				return false
			}
		}
	}
	return true
}
