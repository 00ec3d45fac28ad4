package gridpoint

import "fmt"

// Target is the slot a synthesized field is packed into: a field of an Array3,
// or a (level, field) pair of an Array4. Exactly one of A3 and A4 is set.
type Target struct {
	A3    *Array3
	A4    *Array4
	Level int
	Field int
}

// Grid is the per-call grid-point scratch of one rank: Fields rows of Points
// values, the points being the rank's latitude rows north to south.
type Grid struct {
	Fields int
	Points int
	Data   []float64
}

// NewGrid allocates zeroed scratch for nfld fields of npts points
func NewGrid(nfld, npts int) *Grid {
	return &Grid{Fields: nfld, Points: npts, Data: make([]float64, nfld*npts)}
}

// Field returns the values of field f
func (g *Grid) Field(f int) []float64 {
	return g.Data[f*g.Points : (f+1)*g.Points]
}

// Assemble copies every field of g into its target, proma points per block.
// Entries beyond ValidCount of the last block are left untouched.
func Assemble(targets []Target, g *Grid, proma int) error {
	if len(targets) != g.Fields {
		return fmt.Errorf("gridpoint: %d targets for %d fields", len(targets), g.Fields)
	}
	nblk := NumBlocks(g.Points, proma)
	for f, tg := range targets {
		vals := g.Field(f)
		for b := 0; b < nblk; b++ {
			n := ValidCount(g.Points, proma, b)
			src := vals[b*proma : b*proma+n]
			switch {
			case tg.A3 != nil:
				start := tg.A3.index(0, tg.Field, b)
				copy(tg.A3.Data[start:start+n], src)
			case tg.A4 != nil:
				start := tg.A4.index(0, tg.Level, tg.Field, b)
				copy(tg.A4.Data[start:start+n], src)
			default:
				return fmt.Errorf("gridpoint: field %d has no target", f)
			}
		}
	}
	return nil
}
