package resolution

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Epsilon is the recurrence coefficient sqrt((n^2-m^2)/(4n^2-1)) of the
// normalized associated Legendre functions.
func Epsilon(n, m int) float64 {
	if n <= 0 || n < m {
		return 0
	}
	fn, fm := float64(n), float64(m)
	return math.Sqrt((fn*fn - fm*fm) / (4*fn*fn - 1))
}

// AssociatedLegendre evaluates the normalized associated Legendre functions
// P(n,m)(mu) for n = m..nmax at every mu. Row n-m of the result holds degree n.
// The normalization is (1/2) * integral over [-1,1] of P^2 = 1, so P(0,0) = 1;
// this is sqrt(2) (1-mu^2)^(m/2) times the orthonormal Jacobi polynomial
// P^(m,m)_(n-m).
func AssociatedLegendre(mu []float64, m, nmax int) *mat.Dense {
	nlat := len(mu)
	P := mat.NewDense(nmax-m+1, nlat, nil)

	// P(m,m) = prod_{k=1..m} sqrt((2k+1)/(2k)) * cos^m
	pmm := P.RawRowView(0)
	for j := range pmm {
		pmm[j] = 1
	}
	for k := 1; k <= m; k++ {
		fac := math.Sqrt(float64(2*k+1) / float64(2*k))
		for j, x := range mu {
			pmm[j] *= fac * math.Sqrt(1-x*x)
		}
	}
	if nmax == m {
		return P
	}

	// P(m+1,m) = sqrt(2m+3) mu P(m,m)
	p1 := P.RawRowView(1)
	fac := math.Sqrt(float64(2*m + 3))
	for j, x := range mu {
		p1[j] = fac * x * pmm[j]
	}

	// P(n,m) = (mu P(n-1,m) - eps(n-1,m) P(n-2,m)) / eps(n,m)
	for n := m + 2; n <= nmax; n++ {
		pn := P.RawRowView(n - m)
		pn1 := P.RawRowView(n - m - 1)
		pn2 := P.RawRowView(n - m - 2)
		e1, e0 := Epsilon(n-1, m), Epsilon(n, m)
		for j, x := range mu {
			pn[j] = (x*pn1[j] - e1*pn2[j]) / e0
		}
	}
	return P
}

// MeridionalDerivative computes H(n,m) = (1-mu^2) dP(n,m)/dmu for n = m..nmax
// from a table of P(n,m) that extends to degree nmax+1:
//
//	H(n,m) = -n eps(n+1,m) P(n+1,m) + (n+1) eps(n,m) P(n-1,m)
func MeridionalDerivative(P *mat.Dense, m, nmax int) *mat.Dense {
	_, nlat := P.Dims()
	H := mat.NewDense(nmax-m+1, nlat, nil)
	for n := m; n <= nmax; n++ {
		hn := H.RawRowView(n - m)
		up := P.RawRowView(n + 1 - m)
		cUp := -float64(n) * Epsilon(n+1, m)
		if n == m {
			for j := range hn {
				hn[j] = cUp * up[j]
			}
			continue
		}
		down := P.RawRowView(n - 1 - m)
		cDown := float64(n+1) * Epsilon(n, m)
		for j := range hn {
			hn[j] = cUp*up[j] + cDown*down[j]
		}
	}
	return H
}
