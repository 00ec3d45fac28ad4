package main

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	spectrans "github.com/notargets/SpecTrans"
	"github.com/notargets/SpecTrans/gridpoint"
	"github.com/notargets/SpecTrans/layout"
	"github.com/notargets/SpecTrans/resolution"
	"github.com/notargets/SpecTrans/transpose"
)

var synthOptions = []option{
	{"wave", "zonal wavenumber m of the harmonic", 0},
	{"degree", "total wavenumber n of the harmonic", 0},
	{"amplitude", "real part of the coefficient; scalar i gets amplitude*(i+1)", 1.0},
	{"scalars", "number of scalar fields", 1},
	{"derivatives", "also compute north-south and east-west derivatives", false},
	{"winds", "use the harmonic as vorticity too and compute u and v", false},
}

type synthRequest struct {
	m, n        int
	amplitude   float64
	scalars     int
	derivatives bool
	winds       bool
}

func newSynthCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Synthesize one spherical harmonic and print field statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolutionConfig(v)
			if err != nil {
				return err
			}
			req := synthRequest{
				m:           v.GetInt("wave"),
				n:           v.GetInt("degree"),
				amplitude:   v.GetFloat64("amplitude"),
				scalars:     v.GetInt("scalars"),
				derivatives: v.GetBool("derivatives"),
				winds:       v.GetBool("winds"),
			}
			log := newLogger(cmd.ErrOrStderr(), v.GetBool("verbose"))
			return synth(cmd.Context(), cmd.OutOrStdout(), log, cfg, req)
		},
	}
	addOptions(v, cmd.Flags(), synthOptions)
	return cmd
}

// fieldNames lists the output fields in the order the transform produces them
func (r synthRequest) fieldNames() []string {
	var names []string
	sc := func(prefix string) {
		for i := 0; i < r.scalars; i++ {
			names = append(names, fmt.Sprintf("%sscalar%d", prefix, i))
		}
	}
	if r.winds {
		names = append(names, "u", "v")
	}
	sc("")
	if r.derivatives {
		sc("ns ")
		if r.winds {
			names = append(names, "ew u", "ew v")
		}
		sc("ew ")
	}
	return names
}

func synth(ctx context.Context, w io.Writer, log logrus.FieldLogger, cfg resolution.Config, req synthRequest) error {
	if ctx == nil {
		ctx = context.Background()
	}
	reg := resolution.NewRegistry()
	tag, err := reg.Register(cfg)
	if err != nil {
		return err
	}
	res, err := reg.Resolve(tag)
	if err != nil {
		return err
	}
	if req.m < 0 || req.n < req.m || req.n > res.Truncation {
		return fmt.Errorf("harmonic (m=%d, n=%d) outside truncation T%d", req.m, req.n, res.Truncation)
	}
	if req.scalars < 0 || (req.scalars == 0 && !req.winds) {
		return fmt.Errorf("nothing to synthesize")
	}
	if req.scalars == 0 && req.derivatives {
		return fmt.Errorf("derivatives need at least one scalar")
	}
	names := req.fieldNames()

	nproc := res.NProc()
	group := transpose.NewLocalGroup(nproc)
	args := make([]*spectrans.Args, nproc)
	for rank := range args {
		rl, err := res.RankLayout(rank)
		if err != nil {
			return err
		}
		args[rank] = req.args(res, rl, tag, len(names))
	}

	log.WithFields(logrus.Fields{
		"ranks":  nproc,
		"fields": len(names),
	}).Info("synthesizing")
	err = transpose.Run(nproc, func(rank int) error {
		tr := spectrans.New(reg, group.Member(rank), spectrans.WithLogger(log))
		return tr.InvTrans(ctx, args[rank])
	})
	if err != nil {
		return err
	}

	for f, name := range names {
		vals := gather(res, args, f)
		n := float64(len(vals))
		fmt.Fprintf(w, "%-12s min %13.6g  max %13.6g  mean %13.6g  rms %13.6g\n", name,
			floats.Min(vals), floats.Max(vals), floats.Sum(vals)/n, floats.Norm(vals, 2)/math.Sqrt(n))
	}
	return nil
}

// args builds one rank's arguments. Every rank passes every field; b-set 0
// owns them.
func (r synthRequest) args(res *resolution.Resolution, rl resolution.RankLayout, tag resolution.Tag, nfld int) *spectrans.Args {
	owned := res.WaveSet(r.m) == rl.ASet
	harmonic := func(rows int) *mat.Dense {
		if rows == 0 {
			return &mat.Dense{}
		}
		a := mat.NewDense(rows, rl.NSpec2, nil)
		if owned {
			for i := 0; i < rows; i++ {
				a.Set(i, res.SpectralIndex(r.m, r.n), r.amplitude*float64(i+1))
			}
		}
		return a
	}

	a := &spectrans.Args{
		Resolution: tag,
		Args: layout.Args{
			ScalarDerivatives: r.derivatives && r.scalars > 0,
			WindDerivatives:   r.derivatives && r.winds,
			GP:                gridpoint.NewArray3(res.Proma, nfld, gridpoint.NumBlocks(rl.GridPoints, res.Proma)),
		},
	}
	if r.scalars > 0 {
		a.Scalar = harmonic(r.scalars)
	}
	if r.winds {
		a.Vorticity = harmonic(1)
		a.Divergence = mat.NewDense(1, rl.NSpec2, nil)
	}
	return a
}

// gather collects field f from every rank
func gather(res *resolution.Resolution, args []*spectrans.Args, f int) []float64 {
	var vals []float64
	for rank, a := range args {
		rl, _ := res.RankLayout(rank)
		for p := 0; p < rl.GridPoints; p++ {
			vals = append(vals, a.GP.At(p%a.GP.Proma, f, p/a.GP.Proma))
		}
	}
	return vals
}
