package zonal

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/SpecTrans/errs"
	"github.com/notargets/SpecTrans/gridpoint"
	"github.com/notargets/SpecTrans/layout"
	"github.com/notargets/SpecTrans/resolution"
	"github.com/notargets/SpecTrans/transpose"
)

type fixture struct {
	res  *resolution.Resolution
	rl   resolution.RankLayout
	plan *layout.Plan
	recv *transpose.Fourier
}

// one scalar with both derivatives: fields scalar, ns, ew
func newFixture(t *testing.T) *fixture {
	res, err := resolution.NewResolution(resolution.Config{
		Truncation: 4,
		NLoen:      []int{6, 10, 10, 6},
		Radius:     2,
	})
	require.NoError(t, err)
	rl, err := res.RankLayout(0)
	require.NoError(t, err)

	args := &layout.Args{
		Scalar:            mat.NewDense(1, rl.NSpec2, nil),
		ScalarDerivatives: true,
		GP:                gridpoint.NewArray3(16, 3, gridpoint.NumBlocks(rl.GridPoints, 16)),
	}
	plan, err := layout.Resolve(args, layout.Geometry{BSets: 1, GridPoints: rl.GridPoints, Proma: 16})
	require.NoError(t, err)

	recv := &transpose.Fourier{
		Rows:   rl.Rows,
		Fields: len(plan.Fourier),
		Waves:  res.Truncation + 1,
	}
	recv.Data = make([]complex128, len(recv.Rows)*recv.Fields*recv.Waves)
	return &fixture{res: res, rl: rl, plan: plan, recv: recv}
}

func (fx *fixture) lambda(row, i int) float64 {
	return 2 * math.Pi * float64(i) / float64(fx.res.NLoen[row])
}

func TestSingleWave(t *testing.T) {
	fx := newFixture(t)
	c1 := complex(0.5, -0.25)
	for i := range fx.rl.Rows {
		fx.recv.Coeffs(i, 0)[0] = complex(1, 7) // imaginary part of m=0 is dropped
		fx.recv.Coeffs(i, 0)[1] = c1
		fx.recv.Coeffs(i, 0)[4] = 3 // above mmax of the 6-point rows
	}

	grid, err := Synthesize(fx.res, fx.rl, fx.plan, fx.recv, nil)
	require.NoError(t, err)
	require.Equal(t, 3, grid.Fields)

	off := 0
	for _, row := range fx.rl.Rows {
		nlon := fx.res.NLoen[row]
		ew := 1 / (fx.res.Radius * fx.res.CosLat[row])
		for i := 0; i < nlon; i++ {
			lam := fx.lambda(row, i)
			want := 1 + math.Cos(lam) + 0.5*math.Sin(lam)
			dwant := (-math.Sin(lam) + 0.5*math.Cos(lam)) * ew
			if fx.res.MaxWave(row) >= 4 {
				want += 6 * math.Cos(4*lam)
				dwant += -24 * math.Sin(4*lam) * ew
			}
			assert.InDelta(t, want, grid.Field(0)[off+i], 1e-12, "row %d point %d", row, i)
			assert.InDelta(t, 0, grid.Field(1)[off+i], 1e-12)
			assert.InDelta(t, dwant, grid.Field(2)[off+i], 1e-12, "row %d point %d", row, i)
		}
		off += nlon
	}
}

func TestHookCalls(t *testing.T) {
	fx := newFixture(t)
	for i := range fx.rl.Rows {
		fx.recv.Coeffs(i, 0)[1] = 1
	}
	calls := 0
	hook := HookFunc(func(u *Unit) error {
		calls++
		assert.Len(t, u.Coeffs, fx.res.MaxWave(u.Row)+1)
		assert.Equal(t, fx.res.Mu[u.Row], u.Mu)
		for m := range u.Coeffs {
			u.Coeffs[m] *= 2
		}
		return nil
	})
	grid, err := Synthesize(fx.res, fx.rl, fx.plan, fx.recv, hook)
	require.NoError(t, err)

	// scalar and ns derivative are Fourier-space fields, the ew derivative is not
	assert.Equal(t, 2*len(fx.rl.Rows), calls)

	// the doubled coefficients feed both the field and its ew derivative
	row := fx.rl.Rows[0]
	ew := 1 / (fx.res.Radius * fx.res.CosLat[row])
	lam := fx.lambda(row, 1)
	assert.InDelta(t, 4*math.Cos(lam), grid.Field(0)[1], 1e-12)
	assert.InDelta(t, -4*math.Sin(lam)*ew, grid.Field(2)[1], 1e-12)
}

func TestHookContract(t *testing.T) {
	fx := newFixture(t)
	hook := HookFunc(func(u *Unit) error {
		u.Coeffs = append(u.Coeffs, 0)
		return nil
	})
	_, err := Synthesize(fx.res, fx.rl, fx.plan, fx.recv, hook)
	assert.True(t, errors.Is(err, errs.ErrCallbackContract))
	assert.ErrorContains(t, err, "field 0 row 0")
	assert.ErrorContains(t, err, "coefficients, want")

	boom := errors.New("boom")
	_, err = Synthesize(fx.res, fx.rl, fx.plan, fx.recv, HookFunc(func(*Unit) error { return boom }))
	assert.Equal(t, boom, err)
}

func TestBufferMismatch(t *testing.T) {
	fx := newFixture(t)
	fx.recv.Fields = 1
	_, err := Synthesize(fx.res, fx.rl, fx.plan, fx.recv, nil)
	assert.True(t, errors.Is(err, errs.ErrDimensionMismatch))
}
