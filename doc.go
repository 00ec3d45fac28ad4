// Package spectrans performs the distributed inverse spherical-harmonic
// transform: spectral coefficients of vorticity, divergence and any number of
// scalar fields are turned into values on a reduced Gaussian grid.
//
// A call runs in three stages on every rank of a process group:
//
//   - Legendre stage (package legendre): each rank sums the spectral
//     coefficients of the zonal wavenumbers it owns against the normalized
//     associated Legendre functions, giving Fourier coefficients for every
//     latitude. Winds are derived from vorticity and divergence here, as are
//     north-south derivatives.
//
//   - Transposition (package transpose): an all-to-all exchange regroups the
//     Fourier coefficients by latitude row.
//
//   - Fourier stage (package zonal): each rank applies an optional hook to
//     the coefficients of its rows, forms east-west derivatives and runs an
//     inverse real FFT per row and field.
//
// The grid-point results are packed into caller-owned arrays in blocks of
// NPROMA points (package gridpoint). Which fields are computed, in which
// order and into which output slot is decided up front by package layout.
//
// Resolutions are registered once and shared read-only:
//
//	reg := resolution.NewRegistry()
//	tag, err := reg.Register(resolution.Config{Truncation: 21, Latitudes: 32})
//	...
//	group := transpose.NewLocalGroup(1)
//	tr := spectrans.New(reg, group.Member(0))
//	err = tr.InvTrans(ctx, &spectrans.Args{Resolution: tag, Args: layout.Args{...}})
//
// Every rank of the group must call InvTrans with the same resolution and the
// same global field description. A failure on one rank makes the whole call
// fail on every rank; no output array is written unless the call succeeds
// everywhere.
package spectrans
