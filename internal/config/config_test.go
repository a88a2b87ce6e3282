package config

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/cdbpatch/internal/compiler"
)

func mustAbs(t *testing.T, path string) string {
	t.Helper()

	abs, err := filepath.Abs(path)
	require.NoError(t, err)

	return abs
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		setupViper  func()
		wantConfig  func(t *testing.T) *Config
		errContains string
	}{
		{
			name:  "load with all defaults",
			input: "compile_commands.json",
			setupViper: func() {
				viper.Reset()
				viper.SetDefault("jobs", DefaultJobs)
				viper.SetDefault("verbose", DefaultVerbose)
				viper.Set("out", "patched.json")
			},
			wantConfig: func(t *testing.T) *Config {
				return &Config{
					Input:  mustAbs(t, "compile_commands.json"),
					Output: mustAbs(t, "patched.json"),
					Jobs:   runtime.NumCPU(),
				}
			},
		},
		{
			name:  "load with custom values",
			input: "build/compile_commands.json",
			setupViper: func() {
				viper.Reset()
				viper.Set("out", "out/compile_commands.json")
				viper.Set("ccadd", []string{"-DFOO", "-Wl,-z,now"})
				viper.Set("ccdel", []string{"-Werror"})
				viper.Set("use_cc", "clang")
				viper.Set("use_cxx", "clang++")
				viper.Set("resolve_toolchain_includes", true)
				viper.Set("shared_cache", true)
				viper.Set("jobs", 3)
				viper.Set("probe_cache", "cache")
				viper.Set("verbose", true)
			},
			wantConfig: func(t *testing.T) *Config {
				return &Config{
					Input:                    mustAbs(t, "build/compile_commands.json"),
					Output:                   mustAbs(t, "out/compile_commands.json"),
					CcAdd:                    []string{"-DFOO", "-Wl,-z,now"},
					CcDel:                    []string{"-Werror"},
					UseCC:                    "clang",
					UseCXX:                   "clang++",
					ResolveToolchainIncludes: true,
					SharedCache:              true,
					Jobs:                     3,
					ProbeCache:               mustAbs(t, "cache"),
					Verbose:                  true,
				}
			},
		},
		{
			name:  "deny flags from config",
			input: "compile_commands.json",
			setupViper: func() {
				viper.Reset()
				viper.Set("out", "patched.json")
				viper.Set("jobs", 1)
				viper.Set("deny_flags", []map[string]any{
					{"prefix": "-fplugin", "takes_value": false},
					{"prefix": "--param", "takes_value": true},
				})
			},
			wantConfig: func(t *testing.T) *Config {
				return &Config{
					Input:  mustAbs(t, "compile_commands.json"),
					Output: mustAbs(t, "patched.json"),
					DenyFlags: []compiler.DenyRule{
						{Prefix: "-fplugin"},
						{Prefix: "--param", TakesValue: true},
					},
					Jobs: 1,
				}
			},
		},
		{
			name:  "missing output",
			input: "compile_commands.json",
			setupViper: func() {
				viper.Reset()
			},
			errContains: "output file not specified",
		},
		{
			name:  "missing input",
			input: "",
			setupViper: func() {
				viper.Reset()
				viper.Set("out", "patched.json")
			},
			errContains: "compilation database not specified",
		},
		{
			name:  "negative jobs",
			input: "compile_commands.json",
			setupViper: func() {
				viper.Reset()
				viper.Set("out", "patched.json")
				viper.Set("jobs", -2)
			},
			errContains: "invalid jobs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupViper()
			defer viper.Reset()

			cfg, err := Load(tt.input)

			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantConfig(t), cfg)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr error
		check   func(t *testing.T, c *Config)
	}{
		{
			name:   "makes paths absolute",
			config: &Config{Input: "db.json", Output: "out.json", ProbeCache: ".cache", Jobs: 2},
			check: func(t *testing.T, c *Config) {
				assert.True(t, filepath.IsAbs(c.Input))
				assert.True(t, filepath.IsAbs(c.Output))
				assert.True(t, filepath.IsAbs(c.ProbeCache))
				assert.Equal(t, 2, c.Jobs)
			},
		},
		{
			name:   "leaves probe cache disabled",
			config: &Config{Input: "db.json", Output: "out.json"},
			check: func(t *testing.T, c *Config) {
				assert.Empty(t, c.ProbeCache)
				assert.Equal(t, runtime.NumCPU(), c.Jobs)
			},
		},
		{
			name:   "keeps bare compiler names",
			config: &Config{Input: "db.json", Output: "out.json", UseCC: "gcc-13"},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "gcc-13", c.UseCC)
			},
		},
		{
			name:    "no input",
			config:  &Config{Output: "out.json"},
			wantErr: ErrNoInput,
		},
		{
			name:    "no output",
			config:  &Config{Input: "db.json"},
			wantErr: ErrNoOutput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			tt.check(t, tt.config)
		})
	}
}

func TestConfig_Validate_EmptyDenyPrefix(t *testing.T) {
	c := &Config{Input: "db.json", Output: "out.json", DenyFlags: []compiler.DenyRule{{Prefix: ""}}}

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prefix must not be empty")
}

func TestConfig_DenyList(t *testing.T) {
	c := &Config{DenyFlags: []compiler.DenyRule{{Prefix: "-fplugin"}}}

	list := c.DenyList()
	assert.Len(t, list, len(compiler.DefaultDenyList)+1)
	assert.Equal(t, compiler.DenyRule{Prefix: "-fplugin"}, list[len(list)-1])
}
