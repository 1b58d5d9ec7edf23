// Package config holds the run configuration for holebench, loadable from
// a YAML job file or assembled from command-line flags.
package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/pepyakin/holebench/pkg/backend"
)

// DefaultSeed keeps runs reproducible out of the box; layout shuffling and
// junk payload generation both derive from it.
const DefaultSeed = 0xcafef00d

// Config is the full configuration of a benchmark run.
type Config struct {
	// Filename is the target file the benchmark owns for the duration of
	// the run.
	Filename string `yaml:"filename"`

	// Engine drives the measurement phase; LayoutEngine, when set, drives
	// the layout phase instead (it defaults to Engine).
	Engine       string `yaml:"engine"`
	LayoutEngine string `yaml:"layout_engine,omitempty"`

	BS    ByteSize `yaml:"bs"`
	Size  ByteSize `yaml:"size"`
	Ratio float64  `yaml:"ratio"`

	NumJobs int `yaml:"numjobs"`
	Backlog int `yaml:"backlog"`
	// Depth is the kernel ring size per uring worker; 0 picks a value
	// from the backlog.
	Depth int `yaml:"depth,omitempty"`

	Direct     bool `yaml:"direct"`
	SkipLayout bool `yaml:"skip_layout"`

	// NoSparse zero-fills the unpopulated blocks instead of leaving
	// holes. FallocZeroRange does the same through fallocate(2);
	// FallocKeepSize passes FALLOC_FL_KEEP_SIZE to the preallocation.
	NoSparse        bool `yaml:"no_sparse"`
	FallocKeepSize  bool `yaml:"falloc_keep_size"`
	FallocZeroRange bool `yaml:"falloc_zero_range"`

	RampTime Duration `yaml:"ramp_time"`
	RunTime  Duration `yaml:"run_time"`

	Seed int64 `yaml:"seed"`
}

// Default returns the configuration a bare run starts from.
func Default() Config {
	return Config{
		Engine:   string(backend.EngineSync),
		BS:       4096,
		Backlog:  256,
		NumJobs:  1,
		RampTime: Duration(2 * time.Second),
		RunTime:  Duration(60 * time.Second),
		Seed:     DefaultSeed,
	}
}

// Load reads a YAML job file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate rejects configurations the core would misbehave on. It runs
// before any backend starts.
func (c *Config) Validate() error {
	if c.Filename == "" {
		return fmt.Errorf("filename is required")
	}
	if fi, err := os.Stat(c.Filename); err == nil && fi.IsDir() {
		return fmt.Errorf("%s is a directory", c.Filename)
	}
	if _, err := backend.ParseEngine(c.Engine); err != nil {
		return err
	}
	if c.LayoutEngine != "" {
		if _, err := backend.ParseEngine(c.LayoutEngine); err != nil {
			return fmt.Errorf("layout_engine: %w", err)
		}
	}
	if c.BS < 512 || c.BS&(c.BS-1) != 0 {
		return fmt.Errorf("bs must be a power of two of at least 512 bytes, got %d", c.BS)
	}
	if c.Size <= 0 {
		return fmt.Errorf("size must be positive, got %d", c.Size)
	}
	if c.Size%c.BS != 0 {
		return fmt.Errorf("size %d is not a multiple of bs %d", c.Size, c.BS)
	}
	if c.Ratio < 0 || c.Ratio > 1 {
		return fmt.Errorf("ratio must be within [0, 1], got %g", c.Ratio)
	}
	if c.NumJobs < 1 {
		return fmt.Errorf("numjobs must be at least 1, got %d", c.NumJobs)
	}
	if c.Backlog < 1 {
		return fmt.Errorf("backlog must be at least 1, got %d", c.Backlog)
	}
	if c.Depth < 0 {
		return fmt.Errorf("depth must not be negative, got %d", c.Depth)
	}
	if c.RampTime < 0 {
		return fmt.Errorf("ramp_time must not be negative, got %s", c.RampTime)
	}
	if c.RunTime <= 0 {
		return fmt.Errorf("run_time must be positive, got %s", c.RunTime)
	}
	if c.SkipLayout {
		fi, err := os.Stat(c.Filename)
		if err != nil {
			return fmt.Errorf("skip_layout requires an existing file: %w", err)
		}
		if fi.Size() < int64(c.Size) {
			return fmt.Errorf("skip_layout: %s holds %d bytes, want at least %d",
				c.Filename, fi.Size(), c.Size)
		}
	}
	return nil
}

// MeasureEngine returns the engine of the measurement phase.
func (c *Config) MeasureEngine() backend.Engine {
	return backend.Engine(c.Engine)
}

// LayoutPhaseEngine returns the engine of the layout phase, which defaults
// to the measurement engine.
func (c *Config) LayoutPhaseEngine() backend.Engine {
	if c.LayoutEngine != "" {
		return backend.Engine(c.LayoutEngine)
	}
	return backend.Engine(c.Engine)
}

// ByteSize is a byte count parsed from human-readable notation ("4096",
// "64KiB", "2 GiB"). It satisfies both yaml.Unmarshaler and pflag.Value.
type ByteSize int64

func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// Type implements pflag.Value.
func (b *ByteSize) Type() string {
	return "bytes"
}

// Set implements pflag.Value.
func (b *ByteSize) Set(s string) error {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return fmt.Errorf("invalid byte count %q: %w", s, err)
	}
	if n > math.MaxInt64 {
		return fmt.Errorf("byte count %q overflows a signed 64-bit count", s)
	}
	*b = ByteSize(n)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("byte count must be a scalar")
	}
	return b.Set(node.Value)
}

// MarshalYAML round-trips the count as a plain number of bytes.
func (b ByteSize) MarshalYAML() (interface{}, error) {
	return int64(b), nil
}

// Duration is a time span parsed from Go duration notation ("2s",
// "150ms"). It satisfies both yaml.Unmarshaler and pflag.Value.
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

// Type implements pflag.Value.
func (d *Duration) Type() string {
	return "duration"
}

// Set implements pflag.Value.
func (d *Duration) Set(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar")
	}
	return d.Set(node.Value)
}

// MarshalYAML round-trips the span in duration notation.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}
