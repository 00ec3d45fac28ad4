package transpose

import (
	"fmt"

	"github.com/notargets/SpecTrans/layout"
	"github.com/notargets/SpecTrans/legendre"
	"github.com/notargets/SpecTrans/resolution"
)

// Connector holds the pick and place indices of one rank for the transposition
// from wavenumber-distributed to latitude-distributed Fourier coefficients.
// Both sides are derived from the same traversal: the target's rows ascending,
// then Fourier fields ascending, then m ascending, restricted to the
// (source, target) pair. A message is therefore just the picked values in
// order and needs no per-value addressing.
type Connector struct {
	Rank int
	Size int

	// Fourier-space layout on this rank after the exchange
	Rows   []int // local latitude rows
	Fields int   // Fourier-space fields
	Waves  int   // T+1

	// Pick[t] lists positions in this rank's legendre.Output.Data that are
	// sent to rank t; Place[s] lists positions in this rank's Fourier buffer
	// that receive the values sent by rank s.
	Pick  []PickBuffer
	Place []PlaceBuffer

	// Shape of the wave-side array the pick indices refer to
	localFields int
	localWaves  int
	nlat        int
	maxWave     []int // per local row
	latMaxWave  []int // per global latitude
}

// PickBuffer contains indices for gathering values to send
type PickBuffer struct {
	Indices []int
	Target  int
}

// PlaceBuffer contains indices for scattering received values
type PlaceBuffer struct {
	Indices []int
	Source  int
}

// NewConnector builds the pick and place indices of rank
func NewConnector(res *resolution.Resolution, plan *layout.Plan, rank int) (*Connector, error) {
	self, err := res.RankLayout(rank)
	if err != nil {
		return nil, err
	}
	nproc := res.NProc()
	nF := len(plan.Fourier)

	// Fourier field k -> position among the fields local to b-set b
	localIndex := make([][]int, res.BSets)
	for b := range localIndex {
		localIndex[b] = make([]int, nF)
		next := 0
		for k := 0; k < nF; k++ {
			if plan.FourierField(k).Owner == b {
				localIndex[b][k] = next
				next++
			} else {
				localIndex[b][k] = -1
			}
		}
	}

	c := &Connector{
		Rank:        rank,
		Size:        nproc,
		Rows:        self.Rows,
		Fields:      nF,
		Waves:       res.Truncation + 1,
		Pick:        make([]PickBuffer, nproc),
		Place:       make([]PlaceBuffer, nproc),
		localFields: countLocal(localIndex[self.BSet]),
		localWaves:  len(self.Waves),
		nlat:        res.NLat,
		maxWave:     make([]int, len(self.Rows)),
	}
	for i, row := range self.Rows {
		c.maxWave[i] = res.MaxWave(row)
	}
	c.latMaxWave = make([]int, res.NLat)
	for j := range c.latMaxWave {
		c.latMaxWave[j] = res.MaxWave(j)
	}

	// Sending side: this rank is the source for every target
	for t := 0; t < nproc; t++ {
		c.Pick[t].Target = t
		tgt, _ := res.RankLayout(t)
		for _, row := range tgt.Rows {
			mmax := res.MaxWave(row)
			for k := 0; k < nF; k++ {
				lf := localIndex[self.BSet][k]
				if lf < 0 {
					continue
				}
				for im, m := range self.Waves {
					if m > mmax {
						break
					}
					c.Pick[t].Indices = append(c.Pick[t].Indices, (lf*c.localWaves+im)*c.nlat+row)
				}
			}
		}
	}

	// Receiving side: this rank is the target for every source
	for s := 0; s < nproc; s++ {
		c.Place[s].Source = s
		src, _ := res.RankLayout(s)
		for i := range self.Rows {
			for k := 0; k < nF; k++ {
				if plan.FourierField(k).Owner != src.BSet {
					continue
				}
				for _, m := range src.Waves {
					if m > c.maxWave[i] {
						break
					}
					c.Place[s].Indices = append(c.Place[s].Indices, c.Index(i, k, m))
				}
			}
		}
	}
	return c, nil
}

func countLocal(idx []int) int {
	n := 0
	for _, v := range idx {
		if v >= 0 {
			n++
		}
	}
	return n
}

// Index returns the position of (local row i, Fourier field k, wavenumber m)
// in the Fourier buffer
func (c *Connector) Index(i, k, m int) int {
	return (i*c.Fields+k)*c.Waves + m
}

// BufferLen is the length of the Fourier buffer
func (c *Connector) BufferLen() int {
	return len(c.Rows) * c.Fields * c.Waves
}

// GetPickIndices returns the indices sent to target
func (c *Connector) GetPickIndices(target int) []int {
	if target < 0 || target >= c.Size {
		return nil
	}
	return c.Pick[target].Indices
}

// GetPlaceIndices returns the indices filled from source
func (c *Connector) GetPlaceIndices(source int) []int {
	if source < 0 || source >= c.Size {
		return nil
	}
	return c.Place[source].Indices
}

// Verify checks index validity and conservation on this rank: every
// representable wave-side value is picked exactly once and every
// representable Fourier slot is placed exactly once.
func (c *Connector) Verify(out *legendre.Output) error {
	if out.Fields != c.localFields || len(out.Waves) != c.localWaves || out.NLat != c.nlat {
		return fmt.Errorf("connector for %dx%dx%d, output is %dx%dx%d",
			c.localFields, c.localWaves, c.nlat, out.Fields, len(out.Waves), out.NLat)
	}

	picked := make([]int, len(out.Data))
	for t := range c.Pick {
		for _, idx := range c.Pick[t].Indices {
			if idx < 0 || idx >= len(picked) {
				return fmt.Errorf("invalid pick index %d for target %d (max %d)", idx, t, len(picked)-1)
			}
			picked[idx]++
		}
	}
	for f := 0; f < out.Fields; f++ {
		for im := range out.Waves {
			for lat := 0; lat < out.NLat; lat++ {
				want := 0
				if out.Waves[im] <= c.latMaxWave[lat] {
					want = 1
				}
				if got := picked[out.Index(f, im, lat)]; got != want {
					return fmt.Errorf("conservation error: (%d,%d,%d) picked %d times, want %d",
						f, im, lat, got, want)
				}
			}
		}
	}

	placed := make([]int, c.BufferLen())
	for s := range c.Place {
		for _, idx := range c.Place[s].Indices {
			if idx < 0 || idx >= len(placed) {
				return fmt.Errorf("invalid place index %d from source %d (max %d)", idx, s, len(placed)-1)
			}
			placed[idx]++
		}
	}
	for i := range c.Rows {
		for k := 0; k < c.Fields; k++ {
			for m := 0; m < c.Waves; m++ {
				want := 0
				if m <= c.maxWave[i] {
					want = 1
				}
				if got := placed[c.Index(i, k, m)]; got != want {
					return fmt.Errorf("conservation error: row %d field %d m %d placed %d times, want %d",
						c.Rows[i], k, m, got, want)
				}
			}
		}
	}
	return nil
}
