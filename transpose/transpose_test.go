package transpose

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/SpecTrans/errs"
	"github.com/notargets/SpecTrans/gridpoint"
	"github.com/notargets/SpecTrans/layout"
	"github.com/notargets/SpecTrans/legendre"
	"github.com/notargets/SpecTrans/resolution"
)

func TestLocalGroupAllToAll(t *testing.T) {
	const n = 3
	g := NewLocalGroup(n)
	got := make([][][]float64, n)
	err := Run(n, func(rank int) error {
		m := g.Member(rank)
		send := make([][]float64, n)
		for tgt := range send {
			send[tgt] = []float64{float64(10*rank + tgt)}
		}
		// two rounds, to check messages do not overtake each other
		for round := 0; round < 2; round++ {
			recv, err := m.AllToAll(context.Background(), send)
			if err != nil {
				return err
			}
			got[rank] = recv
		}
		return nil
	})
	require.NoError(t, err)
	for rank := 0; rank < n; rank++ {
		for src := 0; src < n; src++ {
			assert.Equal(t, []float64{float64(10*src + rank)}, got[rank][src])
		}
	}
}

func TestLocalGroupAbortAndCancel(t *testing.T) {
	g := NewLocalGroup(2)
	done := make(chan error, 1)
	go func() {
		_, err := g.Member(0).AllToAll(context.Background(), [][]float64{{0}, {1}})
		done <- err
	}()
	g.Abort(fmt.Errorf("rank 1 crashed"))
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, errs.ErrCollectiveFailure))
	case <-time.After(5 * time.Second):
		t.Fatal("abort did not release the waiting rank")
	}

	g = NewLocalGroup(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// rank 1 never joins: the receive phase must honour the cancelled context
	_, err := g.Member(0).AllToAll(ctx, [][]float64{{0}, {1}})
	assert.True(t, errors.Is(err, errs.ErrCollectiveFailure))
}

type world struct {
	res    *resolution.Resolution
	vset   []int
	plans  []*layout.Plan
	layout []resolution.RankLayout
}

func newWorld(t *testing.T) *world {
	res, err := resolution.NewResolution(resolution.Config{
		Truncation: 7,
		Latitudes:  8,
		Grid:       "octahedral",
		WaveSets:   2,
		BSets:      2,
		Radius:     1,
	})
	require.NoError(t, err)
	w := &world{res: res, vset: []int{0, 1, 1}}
	for rank := 0; rank < res.NProc(); rank++ {
		rl, err := res.RankLayout(rank)
		require.NoError(t, err)
		rows := 0
		for _, b := range w.vset {
			if b == rl.BSet {
				rows++
			}
		}
		sc := &mat.Dense{}
		if rows > 0 {
			sc = mat.NewDense(rows, rl.NSpec2, nil)
		}
		args := &layout.Args{
			Scalar:            sc,
			VSetSC:            w.vset,
			ScalarDerivatives: true,
			GP:                gridpoint.NewArray3(16, 9, gridpoint.NumBlocks(rl.GridPoints, 16)),
		}
		plan, err := layout.Resolve(args, layout.Geometry{
			BSet: rl.BSet, BSets: res.BSets, GridPoints: rl.GridPoints, Proma: 16,
		})
		require.NoError(t, err)
		w.plans = append(w.plans, plan)
		w.layout = append(w.layout, rl)
	}
	return w
}

// output fills a rank's wave-side array with values identifying their origin
func (w *world) output(rank int) *legendre.Output {
	rl := w.layout[rank]
	plan := w.plans[rank]
	out := &legendre.Output{
		Local: legendre.LocalFields(plan),
		Waves: rl.Waves,
		NLat:  w.res.NLat,
	}
	out.Fields = len(out.Local)
	out.Data = make([]complex128, out.Fields*len(out.Waves)*out.NLat)
	for lf, k := range out.Local {
		for im, m := range out.Waves {
			for lat := 0; lat < out.NLat; lat++ {
				out.Data[out.Index(lf, im, lat)] = complex(float64(1000*k+m), float64(lat))
			}
		}
	}
	return out
}

func TestConnectorConservation(t *testing.T) {
	w := newWorld(t)
	nproc := w.res.NProc()
	conns := make([]*Connector, nproc)
	for rank := range conns {
		c, err := NewConnector(w.res, w.plans[rank], rank)
		require.NoError(t, err)
		require.NoError(t, c.Verify(w.output(rank)))
		conns[rank] = c
	}
	for s := 0; s < nproc; s++ {
		for tgt := 0; tgt < nproc; tgt++ {
			assert.Len(t, conns[tgt].GetPlaceIndices(s), len(conns[s].GetPickIndices(tgt)),
				"pair %d -> %d", s, tgt)
		}
	}
	assert.Nil(t, conns[0].GetPickIndices(nproc))
}

func TestExchange(t *testing.T) {
	w := newWorld(t)
	nproc := w.res.NProc()
	g := NewLocalGroup(nproc)
	bufs := make([]*Fourier, nproc)

	err := Run(nproc, func(rank int) error {
		conn, err := NewConnector(w.res, w.plans[rank], rank)
		if err != nil {
			return err
		}
		bufs[rank], err = Exchange(context.Background(), g.Member(rank), conn, w.output(rank), nil,
			w.plans[rank].Signature())
		return err
	})
	require.NoError(t, err)

	nF := len(w.plans[0].Fourier)
	for rank, f := range bufs {
		require.Equal(t, w.layout[rank].Rows, f.Rows)
		for i, row := range f.Rows {
			mmax := w.res.MaxWave(row)
			for k := 0; k < nF; k++ {
				c := f.Coeffs(i, k)
				for m := range c {
					want := complex128(0)
					if m <= mmax {
						want = complex(float64(1000*k+m), float64(row))
					}
					assert.Equal(t, want, c[m], "rank %d row %d field %d m %d", rank, row, k, m)
				}
			}
		}
	}
}

func TestExchangeLocalFailure(t *testing.T) {
	w := newWorld(t)
	nproc := w.res.NProc()
	g := NewLocalGroup(nproc)
	boom := errs.DimensionMismatch("rank 2 input")
	results := make([]error, nproc)

	_ = Run(nproc, func(rank int) error {
		if rank == 2 {
			_, results[rank] = Exchange(context.Background(), g.Member(rank), nil, nil, boom, 0)
			return results[rank]
		}
		conn, err := NewConnector(w.res, w.plans[rank], rank)
		if err != nil {
			return err
		}
		_, results[rank] = Exchange(context.Background(), g.Member(rank), conn, w.output(rank), nil,
			w.plans[rank].Signature())
		return results[rank]
	})

	for rank, err := range results {
		if rank == 2 {
			assert.Equal(t, boom, err)
			continue
		}
		assert.True(t, errors.Is(err, errs.ErrCollectiveFailure), "rank %d: %v", rank, err)
	}
}

func TestAgree(t *testing.T) {
	const n = 3
	g := NewLocalGroup(n)
	results := make([]error, n)
	_ = Run(n, func(rank int) error {
		sig := uint64(42)
		var local error
		if rank == 1 {
			local = errs.ErrCallbackContract
		}
		results[rank] = Agree(context.Background(), g.Member(rank), local, sig)
		return nil
	})
	assert.True(t, errors.Is(results[0], errs.ErrCollectiveFailure))
	assert.True(t, errors.Is(results[1], errs.ErrCallbackContract))
	assert.True(t, errors.Is(results[2], errs.ErrCollectiveFailure))

	// diverged signatures
	g = NewLocalGroup(2)
	_ = Run(2, func(rank int) error {
		results[rank] = Agree(context.Background(), g.Member(rank), nil, uint64(rank))
		return nil
	})
	assert.True(t, errors.Is(results[0], errs.ErrCollectiveFailure))
	assert.True(t, errors.Is(results[1], errs.ErrCollectiveFailure))
}
