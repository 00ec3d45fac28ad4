package layout

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/SpecTrans/gridpoint"
)

// Kind is the physical quantity a field descriptor synthesizes
type Kind int

const (
	Vorticity Kind = iota
	Divergence
	U
	V
	Scalar
	NSDerivative // north-south derivative of a scalar
	EWDerivative // east-west derivative of u, v or a scalar
)

func (k Kind) String() string {
	switch k {
	case Vorticity:
		return "vorticity"
	case Divergence:
		return "divergence"
	case U:
		return "u"
	case V:
		return "v"
	case Scalar:
		return "scalar"
	case NSDerivative:
		return "ns-derivative"
	case EWDerivative:
		return "ew-derivative"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Source is the spectral input a field is synthesized from
type Source int

const (
	SourceUV     Source = iota // vorticity and divergence
	SourceScalar               // combined scalar array
	Source3A                   // first 3-D alternative scalar array
	Source3B                   // second 3-D alternative scalar array
	Source2                    // 2-D alternative scalar array
)

func (s Source) String() string {
	switch s {
	case SourceUV:
		return "uv"
	case SourceScalar:
		return "scalar"
	case Source3A:
		return "3a"
	case Source3B:
		return "3b"
	case Source2:
		return "2"
	}
	return fmt.Sprintf("source(%d)", int(s))
}

// is3D reports whether the source is distributed over its level dimension
func (s Source) is3D() bool {
	return s == SourceUV || s == Source3A || s == Source3B
}

// FieldGroup describes one contiguous run of the canonical field ordering:
// every instance of one kind synthesized from one source
type FieldGroup struct {
	Kind   Kind
	Base   Kind // U, V or Scalar for derivative kinds, Kind otherwise
	Source Source
	Levels int
	Vars   int
	Count  int   // Levels * Vars
	Owners []int // owning b-set per level (3-D sources) or per var (2-D sources)
	Offset int   // canonical index of the first instance
}

// Owner returns the b-set owning instance (level, var) in spectral space
func (g *FieldGroup) Owner(level, v int) int {
	if g.Source.is3D() {
		return g.Owners[level]
	}
	return g.Owners[v]
}

// Field is one instance of the canonical ordering, resolved down to the local
// spectral row it reads and the output slot it is packed into
type Field struct {
	Index  int // canonical position
	Group  int // index into Plan.Groups
	Kind   Kind
	Base   Kind
	Source Source
	Level  int
	Var    int
	Owner  int // b-set owning the spectral data

	// Spectral is the local matrix holding this field's coefficients and Row
	// its row there; Row is -1 when the local b-set does not own the field.
	// U and V read Plan.Vorticity and Plan.Divergence at Row.
	Spectral *mat.Dense
	Row      int

	// Fourier is the index into Plan.Fourier of the Fourier-space field whose
	// coefficients this field is synthesized from: itself, or its base field
	// for east-west derivatives.
	Fourier int

	Target gridpoint.Target
}

// Local reports whether the field's spectral data is held by this rank
func (f *Field) Local() bool {
	return f.Row >= 0
}

func (f *Field) String() string {
	if f.Kind == EWDerivative {
		return fmt.Sprintf("%s(%s)[%s v%d l%d]", f.Kind, f.Base, f.Source, f.Var, f.Level)
	}
	return fmt.Sprintf("%s[%s v%d l%d]", f.Kind, f.Source, f.Var, f.Level)
}
