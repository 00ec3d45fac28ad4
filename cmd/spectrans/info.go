package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/SpecTrans/resolution"
)

func newInfoCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "info [resolution.toml ...]",
		Short: "Print resolutions and their process distribution",
		Long: `info prints the resolution given by the flags, or, with arguments, every
resolution file named, each registered under its own tag.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := resolution.NewRegistry()
			if len(args) == 0 {
				cfg, err := resolutionConfig(v)
				if err != nil {
					return err
				}
				if _, err := reg.Register(cfg); err != nil {
					return err
				}
			}
			for _, path := range args {
				cfg, err := resolution.LoadConfig(path)
				if err != nil {
					return err
				}
				if _, err := reg.Register(cfg); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}
			return printRegistry(cmd.OutOrStdout(), reg)
		},
	}
}

func printRegistry(w io.Writer, reg *resolution.Registry) error {
	for i, tag := range reg.Tags() {
		res, err := reg.Resolve(tag)
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "resolution %d\n", tag)
		if err := printInfo(w, res); err != nil {
			return err
		}
	}
	return nil
}

func printInfo(w io.Writer, res *resolution.Resolution) error {
	total := 0
	for _, n := range res.NLoen {
		total += n
	}
	fmt.Fprintf(w, "T%d, %d latitudes, %d grid points, radius %g m\n",
		res.Truncation, res.NLat, total, res.Radius)
	fmt.Fprintf(w, "%d ranks (%d wave sets x %d b-sets), proma %d, %v waves\n",
		res.NProc(), res.WaveSets, res.BSets, res.Proma, res.WaveDistribution)

	for rank := 0; rank < res.NProc(); rank++ {
		rl, err := res.RankLayout(rank)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "rank %3d  a=%d b=%d  waves %v  rows %v  points %d  nspec2 %d\n",
			rank, rl.ASet, rl.BSet, rl.Waves, rl.Rows, rl.GridPoints, rl.NSpec2)
	}

	ws, rs := res.WaveStats(), res.RowStats()
	fmt.Fprintf(w, "wavenumber balance: %d..%d coefficients per wave set, imbalance %.3f\n",
		ws.MinWeight, ws.MaxWeight, ws.Imbalance)
	fmt.Fprintf(w, "latitude balance:   %d..%d points per rank, imbalance %.3f\n",
		rs.MinWeight, rs.MaxWeight, rs.Imbalance)
	return nil
}
