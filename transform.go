package spectrans

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/notargets/SpecTrans/errs"
	"github.com/notargets/SpecTrans/gridpoint"
	"github.com/notargets/SpecTrans/layout"
	"github.com/notargets/SpecTrans/legendre"
	"github.com/notargets/SpecTrans/resolution"
	"github.com/notargets/SpecTrans/transpose"
	"github.com/notargets/SpecTrans/zonal"
)

// Args are the arguments of one InvTrans call on one rank
type Args struct {
	layout.Args

	// Resolution selects a registered resolution; the zero value selects the
	// first one registered.
	Resolution resolution.Tag

	// Hook, if set, is applied to every Fourier-space field on every local
	// latitude row before east-west derivatives are taken.
	Hook zonal.Hook
}

// Transformer runs inverse transforms for one rank of a process group
type Transformer struct {
	reg   *resolution.Registry
	group transpose.Group
	log   logrus.FieldLogger
}

// Option configures a Transformer
type Option func(*Transformer)

// WithLogger sets the logger; the default is the logrus standard logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(t *Transformer) {
		t.log = log
	}
}

// New returns a Transformer for the rank of group
func New(reg *resolution.Registry, group transpose.Group, opts ...Option) *Transformer {
	t := &Transformer{
		reg:   reg,
		group: group,
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Layout returns the resolution selected by tag and the part of it owned by
// this rank, which fixes the shapes of the spectral input (NSpec2 columns)
// and the grid-point output (GridPoints points).
func (t *Transformer) Layout(tag resolution.Tag) (*resolution.Resolution, resolution.RankLayout, error) {
	res, err := t.reg.Resolve(tag)
	if err != nil {
		return nil, resolution.RankLayout{}, err
	}
	if t.group.Size() != res.NProc() {
		return nil, resolution.RankLayout{}, errs.DimensionMismatch(
			"process group of %d ranks for a %dx%d distribution", t.group.Size(), res.WaveSets, res.BSets)
	}
	rl, err := res.RankLayout(t.group.Rank())
	if err != nil {
		return nil, resolution.RankLayout{}, err
	}
	return res, rl, nil
}

// prepared is the per-call state up to the transposition
type prepared struct {
	res  *resolution.Resolution
	rl   resolution.RankLayout
	plan *layout.Plan
	out  *legendre.Output
	conn *transpose.Connector
}

func (t *Transformer) prepare(args *Args, log logrus.FieldLogger) (*prepared, error) {
	if args == nil {
		return nil, errs.InvalidLayout("no arguments")
	}
	res, rl, err := t.Layout(args.Resolution)
	if err != nil {
		return nil, err
	}
	plan, err := layout.Resolve(&args.Args, layout.Geometry{
		BSet:       rl.BSet,
		BSets:      res.BSets,
		GridPoints: rl.GridPoints,
		Proma:      res.Proma,
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"resolution": res.Tag,
		"fields":     len(plan.Fields),
		"fourier":    len(plan.Fourier),
	}).Debug("layout resolved")

	out, err := legendre.Synthesize(res, rl, plan)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"waves":  len(rl.Waves),
		"local":  out.Fields,
		"nspec2": rl.NSpec2,
	}).Debug("legendre stage done")

	conn, err := transpose.NewConnector(res, plan, rl.Rank)
	if err != nil {
		return nil, err
	}
	return &prepared{res: res, rl: rl, plan: plan, out: out, conn: conn}, nil
}

// InvTrans runs one inverse transform. It is collective: every rank of the
// group must call it, and all of them return an error if any of them fails.
// The failing rank gets its own error; its peers get ErrCollectiveFailure.
func (t *Transformer) InvTrans(ctx context.Context, args *Args) error {
	log := t.log.WithFields(logrus.Fields{
		"call": uuid.New().String(),
		"rank": t.group.Rank(),
	})

	p, err := t.prepare(args, log)
	var (
		sig  uint64
		conn *transpose.Connector
		out  *legendre.Output
	)
	if err == nil {
		sig, conn, out = p.plan.Signature(), p.conn, p.out
	} else {
		log.WithError(err).Debug("preparation failed")
	}

	recv, err := transpose.Exchange(ctx, t.group, conn, out, err, sig)
	if err != nil {
		log.WithError(err).Debug("transposition failed")
		return err
	}
	log.WithField("rows", len(recv.Rows)).Debug("transposition done")

	grid, err := zonal.Synthesize(p.res, p.rl, p.plan, recv, args.Hook)
	if err = transpose.Agree(ctx, t.group, err, sig); err != nil {
		log.WithError(err).Debug("fourier stage failed")
		return err
	}

	if err := gridpoint.Assemble(p.plan.Targets(), grid, p.plan.Proma); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"points": grid.Points,
		"blocks": p.plan.Blocks,
	}).Debug("output assembled")
	return nil
}
