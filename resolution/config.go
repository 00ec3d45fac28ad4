package resolution

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/notargets/SpecTrans/partitions"
)

const (
	// DefaultProma is the grid-point blocking factor used when a
	// configuration does not set one.
	DefaultProma = 16
	// EarthRadius is the default sphere radius in metres.
	EarthRadius = 6371229.0
)

// Config describes one resolution: spectral truncation, reduced Gaussian grid
// and process distribution. Zero values select defaults, see withDefaults.
type Config struct {
	Truncation int   `toml:"truncation"`
	NLoen      []int `toml:"nloen"` // points per latitude row, north to south

	// Used to generate NLoen when it is empty
	Latitudes int    `toml:"latitudes"`
	Grid      string `toml:"grid"` // "regular" (default) or "octahedral"

	Proma  int     `toml:"proma"`
	Radius float64 `toml:"radius"`

	WaveSets int `toml:"wave_sets"` // processes in the wavenumber direction
	BSets    int `toml:"b_sets"`    // processes in the field (b-set) direction

	// How zonal wavenumbers are dealt to wave sets: "zig-zag" (default),
	// "round-robin" or "block"
	WaveDistribution string `toml:"wave_distribution"`
}

// waveStrategy maps a WaveDistribution name to its partition strategy
func waveStrategy(name string) (partitions.PartitionStrategy, error) {
	for _, s := range []partitions.PartitionStrategy{partitions.ZigZag, partitions.RoundRobin, partitions.BlockPartition} {
		if name == s.String() {
			return s, nil
		}
	}
	return 0, fmt.Errorf("resolution: unknown wave distribution %q", name)
}

// LoadConfig decodes a TOML resolution file. Unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("resolution: decoding %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("resolution: %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// withDefaults fills zero values and validates the result
func (cfg Config) withDefaults() (Config, error) {
	if cfg.Truncation < 0 {
		return cfg, fmt.Errorf("resolution: negative truncation %d", cfg.Truncation)
	}
	if len(cfg.NLoen) == 0 {
		if cfg.Latitudes <= 0 {
			return cfg, fmt.Errorf("resolution: neither nloen nor latitudes given")
		}
		switch cfg.Grid {
		case "", "regular":
			cfg.NLoen = RegularGrid(cfg.Latitudes, 2*cfg.Latitudes)
		case "octahedral":
			nloen, err := OctahedralGrid(cfg.Latitudes)
			if err != nil {
				return cfg, err
			}
			cfg.NLoen = nloen
		default:
			return cfg, fmt.Errorf("resolution: unknown grid %q", cfg.Grid)
		}
	} else {
		cfg.NLoen = append([]int(nil), cfg.NLoen...)
	}
	for j, n := range cfg.NLoen {
		if n < 1 {
			return cfg, fmt.Errorf("resolution: row %d has %d points", j, n)
		}
	}
	if cfg.Proma == 0 {
		cfg.Proma = DefaultProma
	}
	if cfg.Proma < 0 {
		return cfg, fmt.Errorf("resolution: negative proma %d", cfg.Proma)
	}
	if cfg.Radius == 0 {
		cfg.Radius = EarthRadius
	}
	if cfg.Radius < 0 {
		return cfg, fmt.Errorf("resolution: negative radius %g", cfg.Radius)
	}
	if cfg.WaveSets == 0 {
		cfg.WaveSets = 1
	}
	if cfg.BSets == 0 {
		cfg.BSets = 1
	}
	if cfg.WaveSets < 0 || cfg.BSets < 0 {
		return cfg, fmt.Errorf("resolution: invalid process grid %dx%d", cfg.WaveSets, cfg.BSets)
	}
	if cfg.WaveDistribution == "" {
		cfg.WaveDistribution = partitions.ZigZag.String()
	}
	if _, err := waveStrategy(cfg.WaveDistribution); err != nil {
		return cfg, err
	}
	if cfg.WaveSets > cfg.Truncation+1 {
		return cfg, fmt.Errorf("resolution: %d wave sets for only %d zonal wavenumbers",
			cfg.WaveSets, cfg.Truncation+1)
	}
	return cfg, nil
}
