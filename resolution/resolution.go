package resolution

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/SpecTrans/errs"
	"github.com/notargets/SpecTrans/partitions"
)

// Resolution is the immutable transform configuration of one registered tag:
// truncation, reduced Gaussian grid, Legendre tables and the two process
// distributions (zonal wavenumbers over wave sets, latitude rows over ranks).
// It is shared read-only by every call that resolves the tag.
type Resolution struct {
	Tag        Tag
	Truncation int
	NLat       int
	NLoen      []int     // points per row, north to south
	Mu         []float64 // sin(latitude) per row
	Weights    []float64 // Gaussian weights per row
	CosLat     []float64 // cos(latitude) per row
	Radius     float64
	Proma      int // default blocking factor

	WaveSets         int
	BSets            int
	WaveDistribution partitions.PartitionStrategy

	waves   *partitions.PartitionLayout // m -> wave set
	rows    *partitions.PartitionLayout // row -> rank
	offsets []int                       // per m: first (m,n) pair in its wave set's local array
	nspec2  []int                       // per wave set: local spectral length (real, imag pairs)
	rowOff  []int                       // per row: first grid point within the owning rank

	p []*mat.Dense // per m: P(n,m), n = m..T+1
	h []*mat.Dense // per m: (1-mu^2) dP(n,m)/dmu, n = m..T
}

// RankLayout is the part of a resolution owned by one rank of the process group
type RankLayout struct {
	Rank       int
	ASet       int   // wave set
	BSet       int   // b-set
	Waves      []int // zonal wavenumbers, ascending
	Rows       []int // latitude rows, ascending (north to south)
	GridPoints int   // sum of NLoen over Rows
	NSpec2     int   // local spectral length
}

// NewResolution builds the geometry, distributions and Legendre tables for cfg
func NewResolution(cfg Config) (*Resolution, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	mu, w, err := GaussianLatitudes(len(cfg.NLoen))
	if err != nil {
		return nil, err
	}

	r := &Resolution{
		Truncation: cfg.Truncation,
		NLat:       len(cfg.NLoen),
		NLoen:      cfg.NLoen,
		Mu:         mu,
		Weights:    w,
		CosLat:     make([]float64, len(mu)),
		Radius:     cfg.Radius,
		Proma:      cfg.Proma,
		WaveSets:   cfg.WaveSets,
		BSets:      cfg.BSets,
	}
	if r.WaveDistribution, err = waveStrategy(cfg.WaveDistribution); err != nil {
		return nil, err
	}
	for j, x := range mu {
		r.CosLat[j] = math.Sqrt(1 - x*x)
	}

	if err := r.buildDistributions(); err != nil {
		return nil, err
	}
	r.buildTables()
	return r, nil
}

func (r *Resolution) buildDistributions() error {
	var err error
	// weight each wavenumber by its coefficient count for the balance report
	coefs := make([]int, r.Truncation+1)
	for m := range coefs {
		coefs[m] = r.Truncation - m + 1
	}
	wb := &partitions.PartitionBuilder{
		NumElements:   r.Truncation + 1,
		NumPartitions: r.WaveSets,
		Weights:       coefs,
		Strategy:      r.WaveDistribution,
	}
	if r.waves, err = wb.BuildPartitions(); err != nil {
		return fmt.Errorf("resolution: wavenumber distribution: %w", err)
	}

	rb := &partitions.PartitionBuilder{
		NumElements:   r.NLat,
		NumPartitions: r.NProc(),
		Weights:       r.NLoen,
		Strategy:      partitions.WeightedBlock,
	}
	if r.rows, err = rb.BuildPartitions(); err != nil {
		return fmt.Errorf("resolution: latitude distribution: %w", err)
	}

	// Local spectral arrays: owned m ascending, n = m..T within each m
	r.offsets = make([]int, r.Truncation+1)
	r.nspec2 = make([]int, r.WaveSets)
	for a, part := range r.waves.Partitions {
		off := 0
		for _, m := range part.Elements {
			r.offsets[m] = off
			off += r.Truncation - m + 1
		}
		r.nspec2[a] = 2 * off
	}

	r.rowOff = make([]int, r.NLat)
	for _, part := range r.rows.Partitions {
		off := 0
		for _, row := range part.Elements {
			r.rowOff[row] = off
			off += r.NLoen[row]
		}
	}
	return nil
}

func (r *Resolution) buildTables() {
	T := r.Truncation
	r.p = make([]*mat.Dense, T+1)
	r.h = make([]*mat.Dense, T+1)
	for m := 0; m <= T; m++ {
		r.p[m] = AssociatedLegendre(r.Mu, m, T+1)
		r.h[m] = MeridionalDerivative(r.p[m], m, T)
	}
}

// NProc is the size of the process group the resolution is distributed over
func (r *Resolution) NProc() int {
	return r.WaveSets * r.BSets
}

// MaxWave is the highest zonal wavenumber representable on row j: it is
// limited by the truncation and by the row's point count.
func (r *Resolution) MaxWave(row int) int {
	m := (r.NLoen[row] - 1) / 2
	if m > r.Truncation {
		m = r.Truncation
	}
	return m
}

// WaveSet returns the wave set owning zonal wavenumber m
func (r *Resolution) WaveSet(m int) int {
	return r.waves.GetPartition(m)
}

// Waves returns the zonal wavenumbers of wave set a in ascending order
func (r *Resolution) Waves(a int) []int {
	return r.waves.Partitions[a].Elements
}

// RowOwner returns the rank owning latitude row j in grid-point space
func (r *Resolution) RowOwner(row int) int {
	return r.rows.GetPartition(row)
}

// RowOffset returns the position of row j's first point in its owner's local
// grid-point ordering
func (r *Resolution) RowOffset(row int) int {
	return r.rowOff[row]
}

// NSpec2 returns the local spectral length of wave set a
func (r *Resolution) NSpec2(a int) int {
	return r.nspec2[a]
}

// SpectralIndex returns the local column of the real part of coefficient
// (m,n) in its wave set's spectral array; the imaginary part follows it.
func (r *Resolution) SpectralIndex(m, n int) int {
	return 2 * (r.offsets[m] + n - m)
}

// Legendre returns the tables for zonal wavenumber m: P(n,m) with row n-m for
// n = m..T+1, and H(n,m) = (1-mu^2) dP/dmu with row n-m for n = m..T. Columns
// are latitude rows. The tables are shared and must not be modified.
func (r *Resolution) Legendre(m int) (P, H *mat.Dense) {
	return r.p[m], r.h[m]
}

// RankLayout returns the portion of the resolution owned by rank
func (r *Resolution) RankLayout(rank int) (RankLayout, error) {
	if rank < 0 || rank >= r.NProc() {
		return RankLayout{}, errs.DimensionMismatch("rank %d outside process group of %d", rank, r.NProc())
	}
	a, b := rank/r.BSets, rank%r.BSets
	rows := r.rows.Partitions[rank]
	return RankLayout{
		Rank:       rank,
		ASet:       a,
		BSet:       b,
		Waves:      r.Waves(a),
		Rows:       rows.Elements,
		GridPoints: rows.Weight,
		NSpec2:     r.nspec2[a],
	}, nil
}

// Rank returns the rank holding wave set a and b-set b
func (r *Resolution) Rank(a, b int) int {
	return a*r.BSets + b
}

// WaveStats and RowStats report the load balance of the two distributions
func (r *Resolution) WaveStats() partitions.PartitionStats { return r.waves.PartitionStatistics() }
func (r *Resolution) RowStats() partitions.PartitionStats  { return r.rows.PartitionStatistics() }
