// Package layout turns the optional input and output arrays of an inverse
// transform call into one canonical, ordered list of field descriptors.
package layout

import (
	"encoding/binary"
	"hash/fnv"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/SpecTrans/errs"
	"github.com/notargets/SpecTrans/gridpoint"
)

// Args are the optional arrays and switches of one call, as seen by one rank.
// Spectral arrays hold the rank's locally owned field instances as rows and
// its wave set's local spectral coefficients as columns. A rank owning none of
// a group's instances passes an empty &mat.Dense{}.
type Args struct {
	Vorticity  *mat.Dense // local levels x NSpec2
	Divergence *mat.Dense // local levels x NSpec2

	// Combined scalar input, or the alternative inputs below
	Scalar *mat.Dense // local fields x NSpec2

	Scalar3A []*mat.Dense // one local levels x NSpec2 matrix per variable
	Scalar3B []*mat.Dense // one local levels x NSpec2 matrix per variable
	Scalar2  *mat.Dense   // local fields x NSpec2

	// Ownership vectors: the b-set owning each global instance. Absent means
	// b-set 0 owns all of them.
	VSetUV   []int // per level of vorticity/divergence
	VSetSC   []int // per combined scalar field
	VSetSC3A []int // per level of Scalar3A
	VSetSC3B []int // per level of Scalar3B
	VSetSC2  []int // per field of Scalar2

	ScalarDerivatives bool // N-S and E-W derivatives of scalars
	VorticityGP       bool // grid-point vorticity
	DivergenceGP      bool // grid-point divergence
	WindDerivatives   bool // E-W derivatives of u and v

	Proma int // blocking factor, 0 selects the resolution's

	// Combined output, or the alternative outputs below
	GP *gridpoint.Array3 // (proma, all fields, blocks)

	GPUV *gridpoint.Array4 // (proma, uv levels, uv fields, blocks)
	GP3A *gridpoint.Array4 // (proma, 3A levels, 3A fields, blocks)
	GP3B *gridpoint.Array4 // (proma, 3B levels, 3B fields, blocks)
	GP2  *gridpoint.Array3 // (proma, 2 fields, blocks)
}

// Geometry is what the resolver needs to know about the calling rank
type Geometry struct {
	BSet       int
	BSets      int
	GridPoints int
	Proma      int // default blocking factor
}

// InputMode tags how scalar spectral input was supplied
type InputMode int

const (
	InputCombined InputMode = iota
	InputSplit
)

// OutputMode tags how grid-point output is returned
type OutputMode int

const (
	OutputCombined OutputMode = iota
	OutputSplit
)

// Plan is the resolved, immutable description of one call
type Plan struct {
	Input  InputMode
	Output OutputMode
	Proma  int
	Blocks int

	Groups []FieldGroup
	Fields []Field // canonical order

	// Canonical indices of the fields synthesized in Fourier space (every kind
	// but EWDerivative), in canonical order
	Fourier []int

	Vorticity  *mat.Dense
	Divergence *mat.Dense
}

// Targets returns the output slot of every field in canonical order
func (p *Plan) Targets() []gridpoint.Target {
	t := make([]gridpoint.Target, len(p.Fields))
	for i := range p.Fields {
		t[i] = p.Fields[i].Target
	}
	return t
}

// FourierField returns the descriptor of Fourier-space field k
func (p *Plan) FourierField(k int) *Field {
	return &p.Fields[p.Fourier[k]]
}

// Signature hashes the global shape of the plan: every rank of a call must
// arrive at the same value.
func (p *Plan) Signature() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	put := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	put(len(p.Fields))
	for _, f := range p.Fields {
		put(int(f.Kind))
		put(int(f.Base))
		put(int(f.Source))
		put(f.Owner)
	}
	// keep it exactly representable as a float64 message header
	return h.Sum64() & (1<<52 - 1)
}

type scalarSource struct {
	src    Source
	levels int
	vars   int
	owners []int
	// local matrix for (level, var)
	matrix func(v int) *mat.Dense
}

// Resolve validates args against geom and builds the call's Plan. No numerical
// work is done here.
func Resolve(args *Args, geom Geometry) (*Plan, error) {
	if args == nil {
		return nil, errs.InvalidLayout("no arguments")
	}
	if args.Proma < 0 {
		return nil, errs.InvalidLayout("blocking factor %d", args.Proma)
	}
	hasUV, err := checkPresence(args)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Input:  InputCombined,
		Output: OutputCombined,
		Proma:  args.Proma,
	}
	if plan.Proma == 0 {
		plan.Proma = geom.Proma
	}
	if plan.Proma <= 0 {
		return nil, errs.InvalidLayout("blocking factor %d", plan.Proma)
	}
	plan.Blocks = gridpoint.NumBlocks(geom.GridPoints, plan.Proma)
	if args.Scalar3A != nil || args.Scalar3B != nil || args.Scalar2 != nil {
		plan.Input = InputSplit
	}
	if args.GP == nil {
		plan.Output = OutputSplit
	}

	// Ownership of vorticity/divergence levels
	var uvOwners []int
	if hasUV {
		vr, vc := args.Vorticity.Dims()
		dr, dc := args.Divergence.Dims()
		if vr != dr || vc != dc {
			return nil, errs.DimensionMismatch("vorticity is %dx%d, divergence %dx%d", vr, vc, dr, dc)
		}
		if uvOwners, err = owners("VSetUV", args.VSetUV, vr, geom); err != nil {
			return nil, err
		}
		plan.Vorticity, plan.Divergence = args.Vorticity, args.Divergence
	}

	scalars, err := scalarSources(args, geom)
	if err != nil {
		return nil, err
	}

	b := &planBuilder{plan: plan, geom: geom, args: args, base: map[baseKey]int{}}

	// Canonical order: vor, div, u, v, scalars, N-S ders, E-W u, E-W v, E-W scalars
	if hasUV {
		uv := scalarSource{src: SourceUV, levels: len(uvOwners), vars: 1, owners: uvOwners}
		if args.VorticityGP {
			uv.matrix = func(int) *mat.Dense { return args.Vorticity }
			b.addGroup(Vorticity, Vorticity, uv)
		}
		if args.DivergenceGP {
			uv.matrix = func(int) *mat.Dense { return args.Divergence }
			b.addGroup(Divergence, Divergence, uv)
		}
		uv.matrix = func(int) *mat.Dense { return nil }
		b.addGroup(U, U, uv)
		b.addGroup(V, V, uv)
	}
	for _, s := range scalars {
		b.addGroup(Scalar, Scalar, s)
	}
	if args.ScalarDerivatives {
		for _, s := range scalars {
			b.addGroup(NSDerivative, Scalar, s)
		}
	}
	if hasUV && args.WindDerivatives {
		uv := scalarSource{src: SourceUV, levels: len(uvOwners), vars: 1, owners: uvOwners,
			matrix: func(int) *mat.Dense { return nil }}
		b.addGroup(EWDerivative, U, uv)
		b.addGroup(EWDerivative, V, uv)
	}
	if args.ScalarDerivatives {
		for _, s := range scalars {
			b.addGroup(EWDerivative, Scalar, s)
		}
	}

	if err := b.assignTargets(); err != nil {
		return nil, err
	}
	return plan, nil
}

// checkPresence applies the mutual-exclusion and dependency rules between
// optional arguments
func checkPresence(args *Args) (hasUV bool, err error) {
	hasVor, hasDiv := args.Vorticity != nil, args.Divergence != nil
	if hasVor != hasDiv {
		return false, errs.InvalidLayout("vorticity and divergence must be supplied together")
	}
	hasUV = hasVor

	combinedIn := args.Scalar != nil
	splitIn := args.Scalar3A != nil || args.Scalar3B != nil || args.Scalar2 != nil
	if combinedIn && splitIn {
		return false, errs.InvalidLayout("combined scalar input given together with alternative scalar input")
	}
	hasScalar := combinedIn || splitIn

	combinedOut := args.GP != nil
	splitOut := args.GPUV != nil || args.GP3A != nil || args.GP3B != nil || args.GP2 != nil
	if combinedOut && splitOut {
		return false, errs.InvalidLayout("combined output given together with alternative output")
	}

	if !hasUV && (args.VorticityGP || args.DivergenceGP || args.WindDerivatives) {
		return false, errs.InvalidLayout("wind outputs requested without vorticity/divergence input")
	}
	if !hasScalar && args.ScalarDerivatives {
		return false, errs.InvalidLayout("scalar derivatives requested without scalar input")
	}
	if !hasUV && !hasScalar {
		return false, errs.InvalidLayout("no spectral input")
	}

	for name, v := range map[string]struct {
		vset    []int
		present bool
	}{
		"VSetUV":   {args.VSetUV, hasUV},
		"VSetSC":   {args.VSetSC, args.Scalar != nil},
		"VSetSC3A": {args.VSetSC3A, args.Scalar3A != nil},
		"VSetSC3B": {args.VSetSC3B, args.Scalar3B != nil},
		"VSetSC2":  {args.VSetSC2, args.Scalar2 != nil},
	} {
		if v.vset != nil && !v.present {
			return false, errs.InvalidLayout("%s given without its spectral array", name)
		}
	}

	if !combinedOut && !splitOut {
		return false, errs.InvalidLayout("no output array")
	}
	if combinedOut && splitIn {
		return false, errs.InvalidLayout("alternative scalar input needs the alternative output arrays")
	}
	if splitOut {
		if combinedIn {
			return false, errs.InvalidLayout("combined scalar input needs the combined output array")
		}
		pairs := []struct {
			name    string
			in, out bool
		}{
			{"vorticity/divergence and GPUV", hasUV, args.GPUV != nil},
			{"Scalar3A and GP3A", args.Scalar3A != nil, args.GP3A != nil},
			{"Scalar3B and GP3B", args.Scalar3B != nil, args.GP3B != nil},
			{"Scalar2 and GP2", args.Scalar2 != nil, args.GP2 != nil},
		}
		for _, p := range pairs {
			if p.in != p.out {
				return false, errs.InvalidLayout("%s must be supplied together", p.name)
			}
		}
	}
	return hasUV, nil
}

// owners validates an ownership vector against the local row count. A nil
// vector means every instance belongs to b-set 0 and every rank passes all of
// them.
func owners(name string, vset []int, localRows int, geom Geometry) ([]int, error) {
	if vset == nil {
		return make([]int, localRows), nil
	}
	mine := 0
	for i, b := range vset {
		if b < 0 || b >= geom.BSets {
			return nil, errs.InvalidLayout("%s[%d] = %d outside b-sets [0,%d)", name, i, b, geom.BSets)
		}
		if b == geom.BSet {
			mine++
		}
	}
	if mine != localRows {
		return nil, errs.DimensionMismatch("%s of length %d assigns %d instances to b-set %d, local array has %d rows",
			name, len(vset), mine, geom.BSet, localRows)
	}
	return append([]int(nil), vset...), nil
}

func scalarSources(args *Args, geom Geometry) ([]scalarSource, error) {
	var out []scalarSource
	if args.Scalar != nil {
		r, _ := args.Scalar.Dims()
		own, err := owners("VSetSC", args.VSetSC, r, geom)
		if err != nil {
			return nil, err
		}
		out = append(out, scalarSource{src: SourceScalar, levels: 1, vars: len(own), owners: own,
			matrix: func(int) *mat.Dense { return args.Scalar }})
	}
	for _, s3 := range []struct {
		src  Source
		name string
		vars []*mat.Dense
		vset []int
	}{
		{Source3A, "VSetSC3A", args.Scalar3A, args.VSetSC3A},
		{Source3B, "VSetSC3B", args.Scalar3B, args.VSetSC3B},
	} {
		if s3.vars == nil {
			continue
		}
		if len(s3.vars) == 0 {
			return nil, errs.InvalidLayout("%s input has no variables", s3.src)
		}
		for v, m := range s3.vars {
			if m == nil {
				return nil, errs.InvalidLayout("%s variable %d is nil", s3.src, v)
			}
		}
		r, c := s3.vars[0].Dims()
		for v, m := range s3.vars {
			if vr, vc := m.Dims(); vr != r || vc != c {
				return nil, errs.DimensionMismatch("%s variable %d is %dx%d, variable 0 is %dx%d",
					s3.src, v, vr, vc, r, c)
			}
		}
		own, err := owners(s3.name, s3.vset, r, geom)
		if err != nil {
			return nil, err
		}
		vars := s3.vars
		out = append(out, scalarSource{src: s3.src, levels: len(own), vars: len(vars), owners: own,
			matrix: func(v int) *mat.Dense { return vars[v] }})
	}
	if args.Scalar2 != nil {
		r, _ := args.Scalar2.Dims()
		own, err := owners("VSetSC2", args.VSetSC2, r, geom)
		if err != nil {
			return nil, err
		}
		out = append(out, scalarSource{src: Source2, levels: 1, vars: len(own), owners: own,
			matrix: func(int) *mat.Dense { return args.Scalar2 }})
	}
	return out, nil
}

type baseKey struct {
	kind     Kind
	src      Source
	instance int
}

type planBuilder struct {
	plan *Plan
	geom Geometry
	args *Args
	// canonical index of every Fourier-space field that can be a derivative base
	base map[baseKey]int
}

func (b *planBuilder) addGroup(kind, base Kind, s scalarSource) {
	g := FieldGroup{
		Kind:   kind,
		Base:   base,
		Source: s.src,
		Levels: s.levels,
		Vars:   s.vars,
		Count:  s.levels * s.vars,
		Owners: s.owners,
		Offset: len(b.plan.Fields),
	}
	gi := len(b.plan.Groups)
	b.plan.Groups = append(b.plan.Groups, g)

	rows := localRows(s.owners, b.geom.BSet)
	instance := 0
	for v := 0; v < s.vars; v++ {
		for l := 0; l < s.levels; l++ {
			f := Field{
				Index:  len(b.plan.Fields),
				Group:  gi,
				Kind:   kind,
				Base:   base,
				Source: s.src,
				Level:  l,
				Var:    v,
				Owner:  g.Owner(l, v),
			}
			if s.src.is3D() {
				f.Row = rows[l]
			} else {
				f.Row = rows[v]
			}
			if f.Row >= 0 && kind != EWDerivative {
				f.Spectral = s.matrix(v)
			}

			key := baseKey{kind: base, src: s.src, instance: instance}
			if kind == EWDerivative {
				f.Fourier = b.plan.Fields[b.base[key]].Fourier
			} else {
				f.Fourier = len(b.plan.Fourier)
				b.plan.Fourier = append(b.plan.Fourier, f.Index)
				if kind == U || kind == V || kind == Scalar {
					b.base[key] = f.Index
				}
			}
			b.plan.Fields = append(b.plan.Fields, f)
			instance++
		}
	}
}

// localRows maps each instance owned by bset to its row in the local array
func localRows(owners []int, bset int) []int {
	rows := make([]int, len(owners))
	next := 0
	for i, o := range owners {
		if o == bset {
			rows[i] = next
			next++
		} else {
			rows[i] = -1
		}
	}
	return rows
}

// assignTargets resolves the output slot of every field and checks the output
// arrays' shapes
func (b *planBuilder) assignTargets() error {
	p, args := b.plan, b.args
	if p.Output == OutputCombined {
		if err := args.GP.Check(p.Proma, len(p.Fields), p.Blocks); err != nil {
			return errs.DimensionMismatch("GP: %v", err)
		}
		for i := range p.Fields {
			p.Fields[i].Target = gridpoint.Target{A3: args.GP, Field: i}
		}
		return nil
	}

	// Split output: slot = (group ordinal within source) * vars + var
	ordinal := map[Source]int{}
	groupOrd := make([]int, len(p.Groups))
	for gi, g := range p.Groups {
		groupOrd[gi] = ordinal[g.Source]
		ordinal[g.Source]++
	}
	for i := range p.Fields {
		f := &p.Fields[i]
		g := p.Groups[f.Group]
		slot := groupOrd[f.Group]*g.Vars + f.Var
		switch f.Source {
		case SourceUV:
			f.Target = gridpoint.Target{A4: args.GPUV, Level: f.Level, Field: slot}
		case Source3A:
			f.Target = gridpoint.Target{A4: args.GP3A, Level: f.Level, Field: slot}
		case Source3B:
			f.Target = gridpoint.Target{A4: args.GP3B, Level: f.Level, Field: slot}
		case Source2:
			f.Target = gridpoint.Target{A3: args.GP2, Field: slot}
		}
	}

	// Shapes: levels of the first group of each source, fields = ordinal*vars
	for gi, g := range p.Groups {
		if groupOrd[gi] != 0 {
			continue
		}
		nfld := ordinal[g.Source] * g.Vars
		var err error
		name := ""
		switch g.Source {
		case SourceUV:
			name, err = "GPUV", args.GPUV.Check(p.Proma, g.Levels, nfld, p.Blocks)
		case Source3A:
			name, err = "GP3A", args.GP3A.Check(p.Proma, g.Levels, nfld, p.Blocks)
		case Source3B:
			name, err = "GP3B", args.GP3B.Check(p.Proma, g.Levels, nfld, p.Blocks)
		case Source2:
			name, err = "GP2", args.GP2.Check(p.Proma, nfld, p.Blocks)
		}
		if err != nil {
			return errs.DimensionMismatch("%s: %v", name, err)
		}
	}
	return nil
}
