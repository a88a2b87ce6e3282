package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Norgate-AV/cdbpatch/internal/compiler"
)

// EnvPrefix prefixes environment variable overrides (CDBPATCH_USE_CC, ...)
const EnvPrefix = "CDBPATCH"

// Loader handles configuration loading from various sources
type Loader struct {
	userConfigDir func() (string, error)
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{userConfigDir: os.UserConfigDir}
}

// LoadForPatch loads configuration for patching the database named by args[0].
// Later sources override earlier ones: defaults, global config, local config,
// --config file, environment, flags.
func (l *Loader) LoadForPatch(cmd *cobra.Command, args []string) (*Config, error) {
	l.setupViperDefaults()
	l.loadGlobalConfig()
	l.loadLocalConfig(args)
	if err := l.loadExplicitConfig(cmd); err != nil {
		return nil, err
	}

	l.setupEnv()
	l.bindCommandFlags(cmd)
	l.bindListFlags(cmd)

	var input string
	if len(args) > 0 {
		input = args[0]
	}

	cfg, err := Load(input)
	if err != nil {
		return nil, err
	}

	denyFlags, err := cmd.Flags().GetStringArray("deny-flag")
	if err == nil {
		for _, prefix := range denyFlags {
			if prefix == "" {
				return nil, fmt.Errorf("invalid deny flag: prefix must not be empty")
			}

			cfg.DenyFlags = append(cfg.DenyFlags, compiler.DenyRule{Prefix: prefix, TakesValue: true})
		}
	}

	return cfg, nil
}

// LoadCacheDir resolves the probe cache directory for the cache subcommands.
// Local config is looked up from the working directory.
func (l *Loader) LoadCacheDir(cmd *cobra.Command) (string, error) {
	l.loadGlobalConfig()
	if cwd, err := os.Getwd(); err == nil {
		if path := FindLocalConfig(cwd); path != "" {
			l.mergeConfig(path)
		}
	}

	if err := l.loadExplicitConfig(cmd); err != nil {
		return "", err
	}

	l.setupEnv()
	_ = viper.BindPFlag("probe_cache", cmd.Flags().Lookup("probe-cache"))

	dir := viper.GetString("probe_cache")
	if dir == "" {
		return "", ErrNoProbeCache
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("invalid probe cache path: %v", err)
	}

	return abs, nil
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	viper.SetDefault("jobs", DefaultJobs)
	viper.SetDefault("shared_cache", DefaultSharedCache)
	viper.SetDefault("resolve_toolchain_includes", DefaultResolve)
	viper.SetDefault("verbose", DefaultVerbose)
}

// loadGlobalConfig loads global configuration from the user config directory
func (l *Loader) loadGlobalConfig() {
	dir, err := l.userConfigDir()
	if err != nil || dir == "" {
		return
	}

	if path := FindGlobalConfig(filepath.Join(dir, "cdbpatch")); path != "" {
		l.mergeConfig(path)
	}
}

// loadLocalConfig loads local configuration from the database's directory
func (l *Loader) loadLocalConfig(args []string) {
	if len(args) > 0 {
		absDB, err := filepath.Abs(args[0])
		if err != nil {
			return // silently ignore, config.Load() will handle validation
		}

		if path := FindLocalConfig(filepath.Dir(absDB)); path != "" {
			l.mergeConfig(path)
		}
	}
}

// loadExplicitConfig loads the file named by --config, which must exist
func (l *Loader) loadExplicitConfig(cmd *cobra.Command) error {
	path, err := cmd.Flags().GetString("config")
	if err != nil || path == "" {
		return nil
	}

	viper.SetConfigFile(path)
	if err := viper.MergeInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return nil
}

func (l *Loader) mergeConfig(path string) {
	viper.SetConfigFile(path)
	if err := viper.MergeInConfig(); err != nil {
		log.Warnf("Ignoring config file %s: %v", path, err)
		return
	}

	log.Debugf("Loaded config file %s", path)
}

// setupEnv enables CDBPATCH_* environment overrides
func (l *Loader) setupEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	_ = viper.BindPFlag("out", cmd.Flags().Lookup("out"))
	_ = viper.BindPFlag("use_cc", cmd.Flags().Lookup("use-cc"))
	_ = viper.BindPFlag("use_cxx", cmd.Flags().Lookup("use-cxx"))
	_ = viper.BindPFlag("resolve_toolchain_includes", cmd.Flags().Lookup("resolve-toolchain-includes"))
	_ = viper.BindPFlag("shared_cache", cmd.Flags().Lookup("shared-cache"))
	_ = viper.BindPFlag("jobs", cmd.Flags().Lookup("jobs"))
	_ = viper.BindPFlag("probe_cache", cmd.Flags().Lookup("probe-cache"))
	_ = viper.BindPFlag("verbose", cmd.Flags().Lookup("verbose"))
}

// bindListFlags copies list flags into viper when set on the command line.
// BindPFlag would split their values on commas, breaking flags like -Wl,-z,now.
func (l *Loader) bindListFlags(cmd *cobra.Command) {
	for _, name := range []string{"ccadd", "ccdel"} {
		if !cmd.Flags().Changed(name) {
			continue
		}

		values, err := cmd.Flags().GetStringArray(name)
		if err == nil {
			viper.Set(name, values)
		}
	}
}
