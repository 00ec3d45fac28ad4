package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/notargets/SpecTrans/resolution"
)

type option struct {
	name, usage string
	defaultVal  interface{}
}

// Options shared by every command. Values come from, in increasing priority,
// the TOML file named by --config, SPECTRANS_* environment variables and
// command-line flags.
var resolutionOptions = []option{
	{"config", "TOML resolution file; flags and SPECTRANS_* variables override its values", ""},
	{"truncation", "spectral truncation T", 21},
	{"latitudes", "number of Gaussian latitudes", 32},
	{"grid", `grid type, "regular" or "octahedral"`, "octahedral"},
	{"proma", "grid-point blocking factor", resolution.DefaultProma},
	{"radius", "sphere radius in metres", resolution.EarthRadius},
	{"wave-sets", "processes in the zonal wavenumber direction", 1},
	{"b-sets", "processes in the field direction", 1},
	{"wave-distribution", `how wavenumbers are dealt to wave sets: "zig-zag", "round-robin" or "block"`, "zig-zag"},
	{"verbose", "log every transform stage", false},
}

func addOptions(v *viper.Viper, set *pflag.FlagSet, opts []option) {
	for _, o := range opts {
		switch d := o.defaultVal.(type) {
		case string:
			set.String(o.name, d, o.usage)
		case int:
			set.Int(o.name, d, o.usage)
		case float64:
			set.Float64(o.name, d, o.usage)
		case bool:
			set.Bool(o.name, d, o.usage)
		default:
			panic(fmt.Sprintf("option %s: invalid default type %T", o.name, o.defaultVal))
		}
		if err := v.BindPFlag(o.name, set.Lookup(o.name)); err != nil {
			panic(err)
		}
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("SPECTRANS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// resolutionConfig builds the resolution configuration. Without a config file
// every option applies, with its default if unset; with one, only options
// set explicitly override the file.
func resolutionConfig(v *viper.Viper) (resolution.Config, error) {
	var cfg resolution.Config
	path := v.GetString("config")
	if path != "" {
		var err error
		if cfg, err = resolution.LoadConfig(os.ExpandEnv(path)); err != nil {
			return cfg, err
		}
	}
	use := func(key string) bool { return path == "" || v.IsSet(key) }

	if use("truncation") {
		cfg.Truncation = v.GetInt("truncation")
	}
	if use("latitudes") {
		cfg.Latitudes = v.GetInt("latitudes")
		cfg.NLoen = nil
	}
	if use("grid") {
		cfg.Grid = v.GetString("grid")
	}
	if use("proma") {
		cfg.Proma = v.GetInt("proma")
	}
	if use("radius") {
		cfg.Radius = v.GetFloat64("radius")
	}
	if use("wave-sets") {
		cfg.WaveSets = v.GetInt("wave-sets")
	}
	if use("b-sets") {
		cfg.BSets = v.GetInt("b-sets")
	}
	if use("wave-distribution") {
		cfg.WaveDistribution = v.GetString("wave-distribution")
	}
	return cfg, nil
}

func newLogger(w io.Writer, verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
		DisableSorting:  true,
	})
	log.SetLevel(logrus.InfoLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func newRootCmd() *cobra.Command {
	v := newViper()
	root := &cobra.Command{
		Use:   "spectrans",
		Short: "Distributed inverse spectral transform on reduced Gaussian grids",
		Long: `spectrans synthesizes grid-point fields from spherical-harmonic coefficients.
The process group is simulated in-process: every rank of the wave-sets x b-sets
distribution runs on its own goroutine.`,
		SilenceUsage: true,
	}
	addOptions(v, root.PersistentFlags(), resolutionOptions)

	root.AddCommand(newInfoCmd(v))
	root.AddCommand(newSynthCmd(v))
	return root
}
