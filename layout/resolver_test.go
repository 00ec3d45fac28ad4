package layout

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/SpecTrans/errs"
	"github.com/notargets/SpecTrans/gridpoint"
)

const nspec2 = 12

var single = Geometry{BSet: 0, BSets: 1, GridPoints: 40, Proma: 16}

func spectral(rows int) *mat.Dense {
	if rows == 0 {
		return &mat.Dense{}
	}
	return mat.NewDense(rows, nspec2, nil)
}

func kinds(p *Plan) []Kind {
	k := make([]Kind, len(p.Fields))
	for i, f := range p.Fields {
		k[i] = f.Kind
	}
	return k
}

func TestResolveCombinedOrdering(t *testing.T) {
	const nlev, nsc = 2, 3
	args := &Args{
		Vorticity:         spectral(nlev),
		Divergence:        spectral(nlev),
		Scalar:            spectral(nsc),
		ScalarDerivatives: true,
		VorticityGP:       true,
		DivergenceGP:      true,
		WindDerivatives:   true,
	}
	// vor, div, u, v, sc, ns, ewu, ewv, ewsc
	nfld := 6*nlev + 3*nsc
	args.GP = gridpoint.NewArray3(16, nfld, 3)

	plan, err := Resolve(args, single)
	require.NoError(t, err)
	assert.Equal(t, InputCombined, plan.Input)
	assert.Equal(t, OutputCombined, plan.Output)
	assert.Equal(t, 3, plan.Blocks)
	require.Len(t, plan.Fields, nfld)

	want := []Kind{
		Vorticity, Vorticity, Divergence, Divergence, U, U, V, V,
		Scalar, Scalar, Scalar, NSDerivative, NSDerivative, NSDerivative,
		EWDerivative, EWDerivative, EWDerivative, EWDerivative,
		EWDerivative, EWDerivative, EWDerivative,
	}
	assert.Equal(t, want, kinds(plan))

	// every non east-west field is synthesized in Fourier space
	assert.Len(t, plan.Fourier, nfld-2*nlev-nsc)
	for k, idx := range plan.Fourier {
		f := plan.Fields[idx]
		assert.NotEqual(t, EWDerivative, f.Kind)
		assert.Equal(t, k, f.Fourier)
	}

	// east-west derivatives point back at their base fields
	for _, f := range plan.Fields[14:] {
		base := plan.FourierField(f.Fourier)
		assert.Equal(t, f.Base, base.Kind)
		assert.Equal(t, f.Level, base.Level)
		assert.Equal(t, f.Var, base.Var)
		assert.Nil(t, f.Spectral)
	}

	for i, tg := range plan.Targets() {
		assert.Same(t, args.GP, tg.A3)
		assert.Equal(t, i, tg.Field)
	}
}

func TestResolveSplitSlots(t *testing.T) {
	const nlev, nvar3 = 3, 2
	args := &Args{
		Vorticity:         spectral(nlev),
		Divergence:        spectral(nlev),
		Scalar3A:          []*mat.Dense{spectral(nlev), spectral(nlev)},
		Scalar2:           spectral(4),
		ScalarDerivatives: true,
		WindDerivatives:   true,
		Proma:             8,
	}
	blocks := gridpoint.NumBlocks(single.GridPoints, 8)
	args.GPUV = gridpoint.NewArray4(8, nlev, 4, blocks)
	args.GP3A = gridpoint.NewArray4(8, nlev, 3*nvar3, blocks)
	args.GP2 = gridpoint.NewArray3(8, 3*4, blocks)

	plan, err := Resolve(args, single)
	require.NoError(t, err)
	assert.Equal(t, InputSplit, plan.Input)
	assert.Equal(t, OutputSplit, plan.Output)
	assert.Equal(t, 8, plan.Proma)

	slots := map[[2]int]bool{}
	for _, f := range plan.Fields {
		tg := f.Target
		switch f.Source {
		case SourceUV:
			require.Same(t, args.GPUV, tg.A4)
		case Source3A:
			require.Same(t, args.GP3A, tg.A4)
			// var-major, level fastest within a group
			assert.Equal(t, f.Level, tg.Level)
		case Source2:
			require.Same(t, args.GP2, tg.A3)
		}
		key := [2]int{int(f.Source)*1000 + tg.Level, tg.Field}
		assert.False(t, slots[key], "slot reused by %s", f.String())
		slots[key] = true
	}

	// u, v, ewu, ewv in that order in GPUV
	var uvKinds []Kind
	for _, f := range plan.Fields {
		if f.Source == SourceUV && f.Level == 0 {
			uvKinds = append(uvKinds, f.Kind)
			assert.Equal(t, len(uvKinds)-1, f.Target.Field)
		}
	}
	assert.Equal(t, []Kind{U, V, EWDerivative, EWDerivative}, uvKinds)

	// third 3A group (east-west) sits at slot 2*vars+var
	for _, f := range plan.Fields {
		if f.Source == Source3A && f.Kind == EWDerivative {
			assert.Equal(t, 2*nvar3+f.Var, f.Target.Field)
		}
	}
}

func TestResolveOwnership(t *testing.T) {
	geom := Geometry{BSet: 1, BSets: 2, GridPoints: 10, Proma: 4}
	vset := []int{0, 1, 1, 0, 1}
	args := &Args{
		Vorticity:  spectral(3),
		Divergence: spectral(3),
		VSetUV:     vset,
		Scalar:     spectral(0),
		VSetSC:     []int{0, 0},
	}
	args.GP = gridpoint.NewArray3(4, 2*5+2, 3)

	plan, err := Resolve(args, geom)
	require.NoError(t, err)

	var rows []int
	for _, f := range plan.Fields {
		if f.Kind == U {
			rows = append(rows, f.Row)
			assert.Equal(t, vset[f.Level], f.Owner)
		}
		if f.Kind == Scalar {
			assert.False(t, f.Local())
		}
	}
	assert.Equal(t, []int{-1, 0, 1, -1, 2}, rows)

	// the same call on the other b-set has the same shape
	other := *args
	other.Vorticity, other.Divergence = spectral(2), spectral(2)
	other.Scalar = spectral(2)
	plan0, err := Resolve(&other, Geometry{BSet: 0, BSets: 2, GridPoints: 10, Proma: 4})
	require.NoError(t, err)
	assert.Equal(t, plan.Signature(), plan0.Signature())
}

func TestResolveSplitOwnership(t *testing.T) {
	geom := Geometry{BSet: 1, BSets: 2, GridPoints: 10, Proma: 4}
	vA, vB, vC := []int{1, 0, 1}, []int{0, 1}, []int{1, 1}
	args := &Args{
		Scalar3A:          []*mat.Dense{spectral(2), spectral(2)},
		VSetSC3A:          vA,
		Scalar3B:          []*mat.Dense{spectral(1), spectral(1)},
		VSetSC3B:          vB,
		Scalar2:           spectral(2),
		VSetSC2:           vC,
		ScalarDerivatives: true,
		GP3A:              gridpoint.NewArray4(4, 3, 6, 3),
		GP3B:              gridpoint.NewArray4(4, 2, 6, 3),
		GP2:               gridpoint.NewArray3(4, 6, 3),
	}
	plan, err := Resolve(args, geom)
	require.NoError(t, err)
	require.Len(t, plan.Fields, 3*(6+4+2))

	rows := map[Source][]int{}
	for _, f := range plan.Fields {
		if f.Kind != Scalar {
			continue
		}
		rows[f.Source] = append(rows[f.Source], f.Row)
		switch f.Source {
		case Source3A:
			assert.Equal(t, vA[f.Level], f.Owner)
			assert.Same(t, args.GP3A, f.Target.A4)
		case Source3B:
			assert.Equal(t, vB[f.Level], f.Owner)
			assert.Same(t, args.GP3B, f.Target.A4)
			assert.Equal(t, f.Var, f.Target.Field)
		case Source2:
			assert.Equal(t, vC[f.Var], f.Owner)
		}
		if f.Row >= 0 {
			assert.NotNil(t, f.Spectral)
		}
	}
	// var-major, level fastest; rows index the local per-variable matrices
	assert.Equal(t, []int{0, -1, 1, 0, -1, 1}, rows[Source3A])
	assert.Equal(t, []int{-1, 0, -1, 0}, rows[Source3B])
	assert.Equal(t, []int{0, 1}, rows[Source2])

	// b-set 0 holds the complement and resolves to the same plan shape
	other := *args
	other.Scalar3A = []*mat.Dense{spectral(1), spectral(1)}
	other.Scalar2 = spectral(0)
	plan0, err := Resolve(&other, Geometry{BSet: 0, BSets: 2, GridPoints: 10, Proma: 4})
	require.NoError(t, err)
	assert.Equal(t, plan.Signature(), plan0.Signature())

	// a 3B vector that does not match the local level count
	bad := *args
	bad.VSetSC3B = []int{1, 1}
	_, err = Resolve(&bad, geom)
	assert.True(t, errors.Is(err, errs.ErrDimensionMismatch), "%v", err)
}

func TestResolveErrors(t *testing.T) {
	gp := func(nfld int) *gridpoint.Array3 { return gridpoint.NewArray3(16, nfld, 3) }
	for name, tc := range map[string]struct {
		args *Args
		want error
	}{
		"nothing": {
			&Args{GP: gp(1)}, errs.ErrInvalidLayout,
		},
		"vorticity without divergence": {
			&Args{Vorticity: spectral(1), GP: gp(2)}, errs.ErrInvalidLayout,
		},
		"combined and split input": {
			&Args{Scalar: spectral(1), Scalar2: spectral(1), GP: gp(2)}, errs.ErrInvalidLayout,
		},
		"combined and split output": {
			&Args{Scalar: spectral(1), GP: gp(1), GP2: gp(1)}, errs.ErrInvalidLayout,
		},
		"no output": {
			&Args{Scalar: spectral(1)}, errs.ErrInvalidLayout,
		},
		"split input into combined output": {
			&Args{Scalar2: spectral(1), GP: gp(1)}, errs.ErrInvalidLayout,
		},
		"wind derivatives without winds": {
			&Args{Scalar: spectral(1), WindDerivatives: true, GP: gp(1)}, errs.ErrInvalidLayout,
		},
		"scalar derivatives without scalars": {
			&Args{Vorticity: spectral(1), Divergence: spectral(1), ScalarDerivatives: true, GP: gp(2)},
			errs.ErrInvalidLayout,
		},
		"missing split output": {
			&Args{Scalar2: spectral(1), Scalar3A: []*mat.Dense{spectral(1)},
				GP2: gp(1)}, errs.ErrInvalidLayout,
		},
		"orphan ownership vector": {
			&Args{Scalar: spectral(1), VSetUV: []int{0}, GP: gp(1)}, errs.ErrInvalidLayout,
		},
		"owner out of range": {
			&Args{Scalar: spectral(1), VSetSC: []int{1}, GP: gp(1)}, errs.ErrInvalidLayout,
		},
		"ownership count": {
			&Args{Scalar: spectral(2), VSetSC: []int{0, 0, 0}, GP: gp(3)}, errs.ErrDimensionMismatch,
		},
		"output field count": {
			&Args{Scalar: spectral(2), GP: gp(3)}, errs.ErrDimensionMismatch,
		},
		"output blocks": {
			&Args{Scalar: spectral(2), GP: gridpoint.NewArray3(16, 2, 4)}, errs.ErrDimensionMismatch,
		},
		"vorticity and divergence shapes": {
			&Args{Vorticity: spectral(2), Divergence: spectral(1), GP: gp(4)}, errs.ErrDimensionMismatch,
		},
		"negative blocking factor": {
			&Args{Scalar: spectral(1), Proma: -4, GP: gp(1)}, errs.ErrInvalidLayout,
		},
		"3-D variables disagree": {
			&Args{Scalar3A: []*mat.Dense{spectral(2), spectral(3)},
				GP3A: gridpoint.NewArray4(16, 2, 2, 3)}, errs.ErrDimensionMismatch,
		},
	} {
		_, err := Resolve(tc.args, single)
		assert.True(t, errors.Is(err, tc.want), "%s: %v", name, err)
	}
}

func TestSignatureDiffers(t *testing.T) {
	a := &Args{Scalar: spectral(2), GP: gridpoint.NewArray3(16, 2, 3)}
	b := &Args{Scalar: spectral(2), ScalarDerivatives: true, GP: gridpoint.NewArray3(16, 6, 3)}
	pa, err := Resolve(a, single)
	require.NoError(t, err)
	pb, err := Resolve(b, single)
	require.NoError(t, err)
	assert.NotEqual(t, pa.Signature(), pb.Signature())
	assert.Less(t, pa.Signature(), uint64(1)<<52)
}
