// Package transpose moves Fourier coefficients from the wavenumber
// distribution of the Legendre stage to the latitude distribution of the
// Fourier stage.
package transpose

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/notargets/SpecTrans/errs"
)

// Group is the process group of one transform call. Every rank must enter
// each collective operation in the same order.
type Group interface {
	Rank() int
	Size() int
	// AllToAll sends send[t] to rank t and returns the message received
	// from every rank, indexed by source.
	AllToAll(ctx context.Context, send [][]float64) ([][]float64, error)
}

// LocalGroup is an in-process process group whose ranks are goroutines
type LocalGroup struct {
	size  int
	chans [][]chan []float64 // [source][target]

	done    chan struct{}
	once    sync.Once
	mu      sync.Mutex
	aborted error
}

// NewLocalGroup creates a group of size ranks
func NewLocalGroup(size int) *LocalGroup {
	g := &LocalGroup{
		size:  size,
		chans: make([][]chan []float64, size),
		done:  make(chan struct{}),
	}
	for s := range g.chans {
		g.chans[s] = make([]chan []float64, size)
		for t := range g.chans[s] {
			// one message in flight per pair is enough: a rank cannot send
			// its next message to t before t's previous one was received
			g.chans[s][t] = make(chan []float64, 1)
		}
	}
	return g
}

// Size is the number of ranks
func (g *LocalGroup) Size() int { return g.size }

// Member returns the Group view of one rank
func (g *LocalGroup) Member(rank int) Group {
	return &member{g: g, rank: rank}
}

// Abort breaks the group: every pending and future collective fails
func (g *LocalGroup) Abort(err error) {
	g.once.Do(func() {
		g.mu.Lock()
		g.aborted = err
		g.mu.Unlock()
		close(g.done)
	})
}

func (g *LocalGroup) abortErr() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return errs.CollectiveFailure("group aborted: %v", g.aborted)
}

type member struct {
	g    *LocalGroup
	rank int
}

func (m *member) Rank() int { return m.rank }
func (m *member) Size() int { return m.g.size }

func (m *member) AllToAll(ctx context.Context, send [][]float64) ([][]float64, error) {
	g := m.g
	if len(send) != g.size {
		return nil, errs.CollectiveFailure("rank %d: %d messages for %d ranks", m.rank, len(send), g.size)
	}
	if ctx.Err() != nil {
		return nil, m.cancelled(ctx)
	}
	for t := 0; t < g.size; t++ {
		select {
		case g.chans[m.rank][t] <- send[t]:
		case <-ctx.Done():
			return nil, m.cancelled(ctx)
		case <-g.done:
			return nil, g.abortErr()
		}
	}
	recv := make([][]float64, g.size)
	for s := 0; s < g.size; s++ {
		select {
		case recv[s] = <-g.chans[s][m.rank]:
		case <-ctx.Done():
			return nil, m.cancelled(ctx)
		case <-g.done:
			return nil, g.abortErr()
		}
	}
	return recv, nil
}

// cancelled breaks the group: peers waiting on this rank would never be served
func (m *member) cancelled(ctx context.Context) error {
	err := errs.CollectiveFailure("rank %d: %v", m.rank, ctx.Err())
	m.g.Abort(err)
	return err
}

// Run calls fn once per rank of a group of size n, each on its own goroutine,
// and returns the first error
func Run(n int, fn func(rank int) error) error {
	var eg errgroup.Group
	for r := 0; r < n; r++ {
		r := r
		eg.Go(func() error { return fn(r) })
	}
	return eg.Wait()
}
