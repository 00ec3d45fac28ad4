package transpose

import (
	"context"

	"github.com/notargets/SpecTrans/errs"
	"github.com/notargets/SpecTrans/legendre"
)

// Every message starts with a header of two values: the sender's status and
// the signature of the plan it resolved.
const (
	statusOK     = 0
	statusFailed = 1
	headerLen    = 2
)

// Fourier is the latitude-distributed Fourier buffer of one rank: for every
// local row and Fourier-space field the coefficients m = 0..T. Slots above the
// row's maximum wavenumber are zero.
type Fourier struct {
	Rows   []int
	Fields int
	Waves  int
	Data   []complex128
}

// Index returns the position of (local row i, Fourier field k, wavenumber m)
func (f *Fourier) Index(i, k, m int) int {
	return (i*f.Fields+k)*f.Waves + m
}

// Coeffs returns the coefficients of Fourier field k on local row i
func (f *Fourier) Coeffs(i, k int) []complex128 {
	start := f.Index(i, k, 0)
	return f.Data[start : start+f.Waves]
}

func header(failed bool, sig uint64) []float64 {
	status := float64(statusOK)
	if failed {
		status = statusFailed
	}
	return []float64{status, float64(sig)}
}

// checkHeaders turns a failed or diverged peer into a collective failure
func checkHeaders(recv [][]float64, rank int, sig uint64) error {
	for s, msg := range recv {
		if len(msg) < headerLen {
			return errs.CollectiveFailure("rank %d: short message from rank %d", rank, s)
		}
		if msg[0] != statusOK {
			return errs.CollectiveFailure("rank %d: rank %d failed", rank, s)
		}
	}
	for s, msg := range recv {
		if uint64(msg[1]) != sig {
			return errs.CollectiveFailure("rank %d: rank %d resolved a different call", rank, s)
		}
	}
	return nil
}

// Exchange performs the transposition. A rank whose own preparation failed
// passes localErr (conn and out may then be nil): it still takes part in the
// exchange so that no peer waits forever, and gets localErr back while its
// peers get a collective failure.
func Exchange(ctx context.Context, g Group, conn *Connector, out *legendre.Output, localErr error, sig uint64) (*Fourier, error) {
	send := make([][]float64, g.Size())
	for t := range send {
		if localErr != nil {
			send[t] = header(true, sig)
			continue
		}
		pick := conn.GetPickIndices(t)
		msg := make([]float64, headerLen, headerLen+2*len(pick))
		copy(msg, header(false, sig))
		for _, idx := range pick {
			v := out.Data[idx]
			msg = append(msg, real(v), imag(v))
		}
		send[t] = msg
	}

	recv, err := g.AllToAll(ctx, send)
	if localErr != nil {
		return nil, localErr
	}
	if err != nil {
		return nil, err
	}
	if err := checkHeaders(recv, g.Rank(), sig); err != nil {
		return nil, err
	}

	f := &Fourier{
		Rows:   conn.Rows,
		Fields: conn.Fields,
		Waves:  conn.Waves,
		Data:   make([]complex128, conn.BufferLen()),
	}
	for s, msg := range recv {
		place := conn.GetPlaceIndices(s)
		if len(msg) != headerLen+2*len(place) {
			return nil, errs.CollectiveFailure("rank %d: %d values from rank %d, want %d",
				g.Rank(), (len(msg)-headerLen)/2, s, len(place))
		}
		vals := msg[headerLen:]
		for i, idx := range place {
			f.Data[idx] = complex(vals[2*i], vals[2*i+1])
		}
	}
	return f, nil
}

// Agree is a header-only all-to-all: every rank learns whether any rank
// failed since the last collective. The local error wins over a peer's.
func Agree(ctx context.Context, g Group, localErr error, sig uint64) error {
	send := make([][]float64, g.Size())
	for t := range send {
		send[t] = header(localErr != nil, sig)
	}
	recv, err := g.AllToAll(ctx, send)
	if localErr != nil {
		return localErr
	}
	if err != nil {
		return err
	}
	return checkHeaders(recv, g.Rank(), sig)
}
