// Package legendre implements the meridional stage of the inverse transform:
// for every zonal wavenumber a rank owns it sums spectral coefficients against
// the associated Legendre tables, giving Fourier coefficients on every
// Gaussian latitude.
package legendre

import (
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/SpecTrans/errs"
	"github.com/notargets/SpecTrans/layout"
	"github.com/notargets/SpecTrans/resolution"
)

// Output holds the Fourier coefficients produced by one rank: one complex
// value per (local field, owned wavenumber, latitude), latitude fastest.
// Entries with m above the row's maximum wavenumber are left zero.
type Output struct {
	Fields int   // local Fourier-space fields
	Local  []int // index into Plan.Fourier of each local field
	Waves  []int // owned zonal wavenumbers, ascending
	NLat   int
	Data   []complex128
}

// Index returns the position of (local field f, wave index im, latitude lat)
func (o *Output) Index(f, im, lat int) int {
	return (f*len(o.Waves)+im)*o.NLat + lat
}

// At returns the coefficient of (local field f, wave index im, latitude lat)
func (o *Output) At(f, im, lat int) complex128 {
	return o.Data[o.Index(f, im, lat)]
}

// LocalFields lists the Fourier-space fields whose spectral data is held by
// the local b-set, in canonical order
func LocalFields(plan *layout.Plan) []int {
	var local []int
	for k := range plan.Fourier {
		if plan.FourierField(k).Local() {
			local = append(local, k)
		}
	}
	return local
}

// Synthesize runs the Legendre stage for the rank described by rl
func Synthesize(res *resolution.Resolution, rl resolution.RankLayout, plan *layout.Plan) (*Output, error) {
	out := &Output{
		Local: LocalFields(plan),
		Waves: rl.Waves,
		NLat:  res.NLat,
	}
	out.Fields = len(out.Local)
	out.Data = make([]complex128, out.Fields*len(out.Waves)*out.NLat)

	if err := checkColumns(plan, out.Local, rl.NSpec2); err != nil {
		return nil, err
	}
	if out.Fields == 0 {
		return out, nil
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for im, m := range out.Waves {
		im, m := im, m
		g.Go(func() error {
			synthesizeWave(res, plan, out, im, m)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func checkColumns(plan *layout.Plan, local []int, nspec2 int) error {
	check := func(name string, a *mat.Dense) error {
		if a == nil {
			return nil
		}
		if r, c := a.Dims(); r > 0 && c != nspec2 {
			return errs.DimensionMismatch("%s has %d spectral columns, want %d", name, c, nspec2)
		}
		return nil
	}
	if err := check("vorticity", plan.Vorticity); err != nil {
		return err
	}
	if err := check("divergence", plan.Divergence); err != nil {
		return err
	}
	for _, k := range local {
		f := plan.FourierField(k)
		if err := check(f.String(), f.Spectral); err != nil {
			return err
		}
	}
	return nil
}

// synthesizeWave fills every local field's coefficients for wavenumber m.
// Sums run over n ascending.
func synthesizeWave(res *resolution.Resolution, plan *layout.Plan, out *Output, im, m int) {
	T := res.Truncation
	P, H := res.Legendre(m)
	fm := float64(m)
	a := res.Radius

	// latitudes where m is representable
	var lats []int
	for j := 0; j < res.NLat; j++ {
		if m <= res.MaxWave(j) {
			lats = append(lats, j)
		}
	}

	coef := func(s *mat.Dense, row, n int) complex128 {
		col := res.SpectralIndex(m, n)
		return complex(s.At(row, col), s.At(row, col+1))
	}

	for lf, k := range out.Local {
		f := plan.FourierField(k)
		dst := out.Data[out.Index(lf, im, 0) : out.Index(lf, im, 0)+out.NLat]

		switch f.Kind {
		case layout.Vorticity, layout.Divergence, layout.Scalar:
			for n := m; n <= T; n++ {
				c := coef(f.Spectral, f.Row, n)
				if c == 0 {
					continue
				}
				pn := P.RawRowView(n - m)
				for _, j := range lats {
					dst[j] += c * complex(pn[j], 0)
				}
			}

		case layout.NSDerivative:
			for n := m; n <= T; n++ {
				c := coef(f.Spectral, f.Row, n)
				if c == 0 {
					continue
				}
				hn := H.RawRowView(n - m)
				for _, j := range lats {
					dst[j] += c * complex(hn[j], 0)
				}
			}
			for _, j := range lats {
				dst[j] /= complex(a*res.CosLat[j], 0)
			}

		case layout.U, layout.V:
			for n := m; n <= T; n++ {
				if n == 0 {
					continue
				}
				z := coef(plan.Vorticity, f.Row, n)
				d := coef(plan.Divergence, f.Row, n)
				fac := a / float64(n*(n+1))
				pn, hn := P.RawRowView(n-m), H.RawRowView(n-m)
				imz, imd := complex(0, fm)*z, complex(0, fm)*d
				if f.Kind == layout.U {
					// (zeta H - i m D P) a/(n(n+1))
					for _, j := range lats {
						dst[j] += complex(fac, 0) * (z*complex(hn[j], 0) - imd*complex(pn[j], 0))
					}
				} else {
					// -(D H + i m zeta P) a/(n(n+1))
					for _, j := range lats {
						dst[j] -= complex(fac, 0) * (d*complex(hn[j], 0) + imz*complex(pn[j], 0))
					}
				}
			}
			for _, j := range lats {
				dst[j] /= complex(res.CosLat[j], 0)
			}
		}
	}
}
