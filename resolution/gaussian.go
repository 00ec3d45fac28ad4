package resolution

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// JacobiP evaluates the orthonormal Jacobi polynomial of type (alpha,beta) at
// points x for order n
func JacobiP(x []float64, alpha, beta float64, n int) []float64 {
	Np := len(x)
	P := make([]float64, Np)

	// Initial values P_0(x) and P_1(x)
	gamma0 := Gamma0(alpha, beta)
	for i := range P {
		P[i] = 1.0 / math.Sqrt(gamma0)
	}
	if n == 0 {
		return P
	}

	gamma1 := Gamma1(alpha, beta)
	Pold := P
	P = make([]float64, Np)
	for i := range P {
		P[i] = ((alpha+beta+2)*x[i] + (alpha - beta)) / 2 / math.Sqrt(gamma1)
	}
	if n == 1 {
		return P
	}

	// Three term recurrence for higher orders
	aold := 2.0 / (2.0 + alpha + beta) * math.Sqrt((alpha+1)*(beta+1)/(alpha+beta+3))
	Pnew := make([]float64, Np)
	for i := 1; i < n; i++ {
		fi := float64(i)
		h1 := 2*fi + alpha + beta
		anew := 2.0 / (h1 + 2) * math.Sqrt((fi+1)*(fi+1+alpha+beta)*
			(fi+1+alpha)*(fi+1+beta)/(h1+1)/(h1+3))
		bnew := -(alpha*alpha - beta*beta) / h1 / (h1 + 2)

		for j := range P {
			Pnew[j] = 1 / anew * (-aold*Pold[j] + (x[j]-bnew)*P[j])
		}
		Pold, P, Pnew = P, Pnew, Pold

		aold = anew
	}

	return P
}

// GradJacobiP evaluates the derivative of the orthonormal Jacobi polynomial of
// type (alpha,beta) at points x for order n
func GradJacobiP(x []float64, alpha, beta float64, n int) []float64 {
	dP := make([]float64, len(x))
	if n == 0 {
		return dP
	}

	// d/dx P_n^(a,b)(x) = sqrt(n(n+a+b+1)) * P_{n-1}^(a+1,b+1)(x)
	Ptemp := JacobiP(x, alpha+1, beta+1, n-1)
	for i := range dP {
		dP[i] = math.Sqrt(float64(n)*(float64(n)+alpha+beta+1)) * Ptemp[i]
	}
	return dP
}

// JacobiGQ computes the N+1 point Gauss quadrature nodes (ascending) and
// weights for the Jacobi weight (1-x)^alpha (1+x)^beta by the Golub-Welsch
// eigenvalue method
func JacobiGQ(alpha, beta float64, N int) (X, W []float64, err error) {
	if N == 0 {
		return []float64{-(alpha - beta) / (alpha + beta + 2.)}, []float64{2.}, nil
	}

	h1 := make([]float64, N+1)
	for i := 0; i < N+1; i++ {
		h1[i] = 2*float64(i) + alpha + beta
	}

	// main diagonal: d0[i] = -(β²-α²)/((2i+α+β)*(2i+α+β+2))
	d0 := make([]float64, N+1)
	fac := beta*beta - alpha*alpha
	for i := 0; i < N+1; i++ {
		d0[i] = fac / (h1[i] * (h1[i] + 2.))
	}
	if alpha+beta < 10*1.e-16 {
		d0[0] = 0.
	}

	// 1st upper diagonal
	d1 := make([]float64, N)
	for i := 0; i < N; i++ {
		ip1 := float64(i + 1)
		d1[i] = 2.0 / (h1[i] + 2.0) * math.Sqrt(
			ip1*(ip1+alpha+beta)*(ip1+alpha)*(ip1+beta)/(h1[i]+1)/(h1[i]+3),
		)
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(NewSymTriDiagonal(d0, d1), true); !ok {
		return nil, nil, fmt.Errorf("resolution: eigenvalue decomposition failed for N=%d", N)
	}
	X = eig.Values(nil)

	var VVr mat.Dense
	eig.VectorsTo(&VVr)
	W = make([]float64, N+1)
	g0 := Gamma0(alpha, beta)
	for i := range W {
		v := VVr.At(0, i)
		W[i] = v * v * g0
	}
	return X, W, nil
}

// Gamma0 is the squared norm of the constant Jacobi polynomial
func Gamma0(alpha, beta float64) float64 {
	ab1 := alpha + beta + 1.
	la, _ := math.Lgamma(alpha + 1.)
	lb, _ := math.Lgamma(beta + 1.)
	lab, _ := math.Lgamma(ab1)
	return math.Exp(la+lb-lab) * math.Pow(2, ab1) / ab1
}

// Gamma1 is the squared norm of the linear Jacobi polynomial
func Gamma1(alpha, beta float64) float64 {
	return (alpha + 1.) * (beta + 1.) * Gamma0(alpha, beta) / (alpha + beta + 3.0)
}

// NewSymTriDiagonal builds the symmetric tridiagonal matrix with diagonal d0
// and off-diagonal d1
func NewSymTriDiagonal(d0, d1 []float64) *mat.SymDense {
	n := len(d0)
	Tri := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		Tri.SetSym(i, i, d0[i])
		if i < n-1 {
			Tri.SetSym(i, i+1, d1[i])
		}
	}
	return Tri
}

// GaussianLatitudes returns mu = sin(latitude) of the nlat Gaussian latitudes
// ordered north to south, and their quadrature weights (summing to 2). The
// eigenvalue nodes are polished with Newton steps on P_nlat.
func GaussianLatitudes(nlat int) (mu, w []float64, err error) {
	if nlat < 1 {
		return nil, nil, fmt.Errorf("resolution: invalid latitude count %d", nlat)
	}
	x, _, err := JacobiGQ(0, 0, nlat-1)
	if err != nil {
		return nil, nil, err
	}

	for iter := 0; iter < 3; iter++ {
		p := JacobiP(x, 0, 0, nlat)
		dp := GradJacobiP(x, 0, 0, nlat)
		for i := range x {
			x[i] -= p[i] / dp[i]
		}
	}

	// With orthonormal J_n = sqrt((2n+1)/2) P_n: w = (2n+1) / ((1-x^2) J_n'^2)
	dp := GradJacobiP(x, 0, 0, nlat)
	mu = make([]float64, nlat)
	w = make([]float64, nlat)
	for i := range x {
		j := nlat - 1 - i
		mu[j] = x[i]
		w[j] = float64(2*nlat+1) / ((1 - x[i]*x[i]) * dp[i] * dp[i])
	}
	return mu, w, nil
}
