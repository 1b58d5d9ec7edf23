package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) Config {
	t.Helper()
	cfg := Default()
	cfg.Filename = filepath.Join(t.TempDir(), "target")
	cfg.Size = 1 << 20
	cfg.Ratio = 0.5
	return cfg
}

func TestValidateAccepts(t *testing.T) {
	cfg := validConfig(t)
	require.NoError(t, cfg.Validate())
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing filename", func(c *Config) { c.Filename = "" }},
		{"unknown engine", func(c *Config) { c.Engine = "libaio" }},
		{"unknown layout engine", func(c *Config) { c.LayoutEngine = "nope" }},
		{"zero bs", func(c *Config) { c.BS = 0 }},
		{"small bs", func(c *Config) { c.BS = 256 }},
		{"non power of two bs", func(c *Config) { c.BS = 5000 }},
		{"zero size", func(c *Config) { c.Size = 0 }},
		{"unaligned size", func(c *Config) { c.Size = 4096*4 + 512 }},
		{"negative ratio", func(c *Config) { c.Ratio = -0.1 }},
		{"ratio above one", func(c *Config) { c.Ratio = 1.1 }},
		{"zero jobs", func(c *Config) { c.NumJobs = 0 }},
		{"zero backlog", func(c *Config) { c.Backlog = 0 }},
		{"negative depth", func(c *Config) { c.Depth = -1 }},
		{"negative ramp", func(c *Config) { c.RampTime = Duration(-time.Second) }},
		{"zero runtime", func(c *Config) { c.RunTime = 0 }},
		{"skip layout without file", func(c *Config) { c.SkipLayout = true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig(t)
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestValidateSkipLayout(t *testing.T) {
	cfg := validConfig(t)
	cfg.SkipLayout = true

	require.NoError(t, os.WriteFile(cfg.Filename, make([]byte, 512), 0o644))
	require.Error(t, cfg.Validate(), "undersized file must be rejected")

	f, err := os.Create(cfg.Filename)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(int64(cfg.Size)))
	require.NoError(t, f.Close())
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsDirectory(t *testing.T) {
	cfg := validConfig(t)
	cfg.Filename = t.TempDir()
	require.Error(t, cfg.Validate())
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	job := `
filename: /tmp/holebench-target
engine: mmap
bs: 64KiB
size: 2 MiB
ratio: 0.25
numjobs: 4
run_time: 90s
`
	require.NoError(t, os.WriteFile(path, []byte(job), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "mmap", cfg.Engine)
	require.EqualValues(t, 64<<10, cfg.BS)
	require.EqualValues(t, 2<<20, cfg.Size)
	require.Equal(t, 0.25, cfg.Ratio)
	require.Equal(t, 4, cfg.NumJobs)
	require.Equal(t, Duration(90*time.Second), cfg.RunTime)
	// untouched fields keep their defaults
	require.Equal(t, 256, cfg.Backlog)
	require.Equal(t, Duration(2*time.Second), cfg.RampTime)
	require.EqualValues(t, DefaultSeed, cfg.Seed)
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bs: [not, a, scalar]"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestByteSizeAsFlag(t *testing.T) {
	var bs ByteSize
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Var(&bs, "bs", "")

	require.NoError(t, fs.Parse([]string{"--bs", "64KiB"}))
	require.EqualValues(t, 64<<10, bs)

	require.NoError(t, bs.Set("4096"))
	require.EqualValues(t, 4096, bs)

	require.Error(t, bs.Set("lots"))
	require.Equal(t, "bytes", bs.Type())
}
