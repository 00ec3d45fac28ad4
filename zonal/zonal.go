// Package zonal implements the Fourier stage of the inverse transform: on every
// latitude row a rank owns it applies the optional Fourier-space hook, forms
// east-west derivatives and runs the inverse real FFT onto the row's points.
package zonal

import (
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/notargets/SpecTrans/errs"
	"github.com/notargets/SpecTrans/gridpoint"
	"github.com/notargets/SpecTrans/layout"
	"github.com/notargets/SpecTrans/resolution"
	"github.com/notargets/SpecTrans/transpose"
)

// Unit is one Fourier-space field on one latitude row, as handed to a Hook.
// Coeffs holds the coefficients m = 0..mmax of the row; the hook may change
// their values but not their number.
type Unit struct {
	Field  int // index into Plan.Fourier
	Kind   layout.Kind
	Source layout.Source
	Level  int
	Var    int
	Row    int     // global latitude row, north to south
	Mu     float64 // sin(latitude)
	Coeffs []complex128
}

// Hook is called once per Fourier-space field and latitude row, before east-west
// derivatives are formed. Calls for one rank are sequential.
type Hook interface {
	Apply(u *Unit) error
}

// HookFunc adapts a function to Hook
type HookFunc func(u *Unit) error

// Apply calls f(u)
func (f HookFunc) Apply(u *Unit) error { return f(u) }

// Synthesize runs the Fourier stage for the rank described by rl and returns
// its grid-point fields in canonical order
func Synthesize(res *resolution.Resolution, rl resolution.RankLayout, plan *layout.Plan,
	recv *transpose.Fourier, hook Hook) (*gridpoint.Grid, error) {

	if len(recv.Rows) != len(rl.Rows) || recv.Fields != len(plan.Fourier) {
		return nil, errs.DimensionMismatch("Fourier buffer has %d rows and %d fields, want %d and %d",
			len(recv.Rows), recv.Fields, len(rl.Rows), len(plan.Fourier))
	}
	grid := gridpoint.NewGrid(len(plan.Fields), rl.GridPoints)

	ffts := make(map[int]*fourier.FFT)
	base := make([][]complex128, len(plan.Fourier))
	var spectrum []complex128

	off := 0
	for i, row := range rl.Rows {
		nlon := res.NLoen[row]
		mmax := res.MaxWave(row)

		for k := range plan.Fourier {
			c := make([]complex128, mmax+1)
			copy(c, recv.Coeffs(i, k)[:mmax+1])
			c[0] = complex(real(c[0]), 0)
			if hook != nil {
				f := plan.FourierField(k)
				u := &Unit{
					Field:  k,
					Kind:   f.Kind,
					Source: f.Source,
					Level:  f.Level,
					Var:    f.Var,
					Row:    row,
					Mu:     res.Mu[row],
					Coeffs: c,
				}
				if err := hook.Apply(u); err != nil {
					return nil, err
				}
				if len(u.Coeffs) != mmax+1 {
					return nil, errs.CallbackContract("field %d row %d: %d coefficients, want %d",
						k, row, len(u.Coeffs), mmax+1)
				}
				c = u.Coeffs
			}
			base[k] = c
		}

		fft, ok := ffts[nlon]
		if !ok {
			fft = fourier.NewFFT(nlon)
			ffts[nlon] = fft
		}
		if n := nlon/2 + 1; cap(spectrum) < n {
			spectrum = make([]complex128, n)
		}
		spectrum = spectrum[:nlon/2+1]

		ew := 1 / (res.Radius * res.CosLat[row])
		for fi := range plan.Fields {
			f := &plan.Fields[fi]
			for m := range spectrum {
				spectrum[m] = 0
			}
			c := base[f.Fourier]
			if f.Kind == layout.EWDerivative {
				for m := 1; m <= mmax; m++ {
					spectrum[m] = complex(0, float64(m)*ew) * c[m]
				}
			} else {
				copy(spectrum, c)
			}
			fft.Sequence(grid.Field(fi)[off:off+nlon], spectrum)
		}
		off += nlon
	}
	return grid, nil
}
