package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"

	"github.com/Norgate-AV/cdbpatch/internal/compiler"
)

// Default configuration values
const (
	DefaultJobs        = 0 // one worker per CPU
	DefaultSharedCache = false
	DefaultVerbose     = false
	DefaultResolve     = false
)

// ErrNoInput is returned when no compilation database was given
var ErrNoInput = errors.New("compilation database not specified")

// ErrNoOutput is returned when no output path was given
var ErrNoOutput = errors.New("output file not specified (use --out)")

// ErrNoProbeCache is returned when a cache command has no cache directory
var ErrNoProbeCache = errors.New("probe cache directory not specified (use --probe-cache)")

// Holds the configuration options for cdbpatch
type Config struct {
	// Path to the compilation database to patch
	Input string

	// Path the patched database is written to
	Output string

	// Flags appended to every command
	CcAdd []string
	// Tokens removed from every command after escaping
	CcDel []string

	// Compiler overrides for C and C++ entries
	UseCC  string
	UseCXX string

	// Resolve the toolchain's implicit includes and add -nostdinc
	ResolveToolchainIncludes bool

	// Extra deny-list rules for probe keys
	DenyFlags []compiler.DenyRule

	// Share one probe cache between workers instead of one per worker
	SharedCache bool

	// Number of workers
	Jobs int

	// Directory of the persistent probe cache, empty to disable
	ProbeCache string

	// Enable verbose output
	Verbose bool
}

// Load builds a Config for the given database from viper's merged settings
func Load(input string) (*Config, error) {
	cfg := &Config{
		Input:                    input,
		Output:                   viper.GetString("out"),
		CcAdd:                    viper.GetStringSlice("ccadd"),
		CcDel:                    viper.GetStringSlice("ccdel"),
		UseCC:                    viper.GetString("use_cc"),
		UseCXX:                   viper.GetString("use_cxx"),
		ResolveToolchainIncludes: viper.GetBool("resolve_toolchain_includes"),
		SharedCache:              viper.GetBool("shared_cache"),
		Jobs:                     viper.GetInt("jobs"),
		ProbeCache:               viper.GetString("probe_cache"),
		Verbose:                  viper.GetBool("verbose"),
	}

	if err := viper.UnmarshalKey("deny_flags", &cfg.DenyFlags); err != nil {
		return nil, fmt.Errorf("invalid deny_flags: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Input == "" {
		return ErrNoInput
	}

	abs, err := filepath.Abs(c.Input)
	if err != nil {
		return fmt.Errorf("invalid compilation database path: %v", err)
	}

	c.Input = abs

	if c.Output == "" {
		return ErrNoOutput
	}

	abs, err = filepath.Abs(c.Output)
	if err != nil {
		return fmt.Errorf("invalid output file path: %v", err)
	}

	c.Output = abs

	if c.ProbeCache != "" {
		abs, err := filepath.Abs(c.ProbeCache)
		if err != nil {
			return fmt.Errorf("invalid probe cache path: %v", err)
		}

		c.ProbeCache = abs
	}

	if c.Jobs < 0 {
		return fmt.Errorf("invalid jobs: %d", c.Jobs)
	}

	if c.Jobs == 0 {
		c.Jobs = runtime.NumCPU()
	}

	for _, rule := range c.DenyFlags {
		if rule.Prefix == "" {
			return fmt.Errorf("invalid deny flag: prefix must not be empty")
		}
	}

	return nil
}

// DenyList returns the built-in deny list extended with the configured rules
func (c *Config) DenyList() []compiler.DenyRule {
	return compiler.DenyList(c.DenyFlags...)
}
