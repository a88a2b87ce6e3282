package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/cdbpatch/internal/compiler"
)

// newPatchCommand mirrors the flags of the root command
func newPatchCommand() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().StringP("out", "o", "", "Output file")
	cmd.Flags().StringArray("ccadd", nil, "Flags to add")
	cmd.Flags().StringArray("ccdel", nil, "Flags to remove")
	cmd.Flags().String("use-cc", "", "C compiler")
	cmd.Flags().String("use-cxx", "", "C++ compiler")
	cmd.Flags().Bool("resolve-toolchain-includes", false, "Resolve includes")
	cmd.Flags().StringArray("deny-flag", nil, "Deny flag")
	cmd.Flags().Bool("shared-cache", false, "Shared cache")
	cmd.Flags().IntP("jobs", "j", 0, "Jobs")
	cmd.Flags().String("probe-cache", "", "Probe cache")
	cmd.Flags().String("config", "", "Config file")
	cmd.Flags().BoolP("verbose", "v", false, "Verbose output")

	return cmd
}

func newTestLoader(dir string) *Loader {
	return &Loader{userConfigDir: func() (string, error) { return dir, nil }}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	assert.NotNil(t, loader)
	assert.NotNil(t, loader.userConfigDir)
}

func TestLoader_SetupViperDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	loader := NewLoader()
	loader.setupViperDefaults()

	assert.Equal(t, 0, viper.GetInt("jobs"))
	assert.Equal(t, false, viper.GetBool("shared_cache"))
	assert.Equal(t, false, viper.GetBool("resolve_toolchain_includes"))
	assert.Equal(t, false, viper.GetBool("verbose"))
}

func TestLoader_LoadGlobalConfig(t *testing.T) {
	tempDir := t.TempDir()

	t.Run("loads yaml config", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()

		writeFile(t, filepath.Join(tempDir, "cdbpatch", "config.yml"), "use_cc: clang\njobs: 4\n")
		defer os.Remove(filepath.Join(tempDir, "cdbpatch", "config.yml"))

		newTestLoader(tempDir).loadGlobalConfig()

		assert.Equal(t, "clang", viper.GetString("use_cc"))
		assert.Equal(t, 4, viper.GetInt("jobs"))
	})

	t.Run("loads json config", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()

		writeFile(t, filepath.Join(tempDir, "cdbpatch", "config.json"), `{"use_cxx": "clang++", "ccadd": ["-DFOO"]}`)
		defer os.Remove(filepath.Join(tempDir, "cdbpatch", "config.json"))

		newTestLoader(tempDir).loadGlobalConfig()

		assert.Equal(t, "clang++", viper.GetString("use_cxx"))
		assert.Equal(t, []string{"-DFOO"}, viper.GetStringSlice("ccadd"))
	})

	t.Run("no config directory", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()

		loader := &Loader{userConfigDir: func() (string, error) { return "", errors.New("no home") }}
		loader.loadGlobalConfig()

		assert.False(t, viper.IsSet("use_cc"))
	})
}

func TestLoader_LoadLocalConfig(t *testing.T) {
	tempDir := t.TempDir()
	writeFile(t, filepath.Join(tempDir, ".cdbpatch.toml"), "probe_cache = \".probes\"\nshared_cache = true\n")

	t.Run("found from database directory", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()

		db := filepath.Join(tempDir, "build", "compile_commands.json")
		newTestLoader(t.TempDir()).loadLocalConfig([]string{db})

		assert.Equal(t, ".probes", viper.GetString("probe_cache"))
		assert.True(t, viper.GetBool("shared_cache"))
	})

	t.Run("no args", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()

		newTestLoader(t.TempDir()).loadLocalConfig(nil)

		assert.False(t, viper.IsSet("probe_cache"))
	})
}

func TestLoader_LoadExplicitConfig(t *testing.T) {
	t.Run("missing file is an error", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()

		cmd := newPatchCommand()
		require.NoError(t, cmd.Flags().Set("config", filepath.Join(t.TempDir(), "missing.yml")))

		err := newTestLoader(t.TempDir()).loadExplicitConfig(cmd)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("unset flag", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()

		err := newTestLoader(t.TempDir()).loadExplicitConfig(newPatchCommand())
		assert.NoError(t, err)
	})
}

func TestLoader_BindCommandFlags(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	cmd := newPatchCommand()
	require.NoError(t, cmd.Flags().Set("out", "patched.json"))
	require.NoError(t, cmd.Flags().Set("use-cc", "gcc"))
	require.NoError(t, cmd.Flags().Set("jobs", "2"))
	require.NoError(t, cmd.Flags().Set("ccadd", "-Wl,-z,now"))
	require.NoError(t, cmd.Flags().Set("ccadd", "-DFOO"))

	loader := NewLoader()
	loader.bindCommandFlags(cmd)
	loader.bindListFlags(cmd)

	assert.Equal(t, "patched.json", viper.GetString("out"))
	assert.Equal(t, "gcc", viper.GetString("use_cc"))
	assert.Equal(t, 2, viper.GetInt("jobs"))
	assert.Equal(t, []string{"-Wl,-z,now", "-DFOO"}, viper.GetStringSlice("ccadd"))
	assert.False(t, viper.IsSet("ccdel"))
}

func TestLoader_LoadForPatch_Integration(t *testing.T) {
	globalDir := t.TempDir()
	projectDir := t.TempDir()
	db := filepath.Join(projectDir, "compile_commands.json")

	writeFile(t, filepath.Join(globalDir, "cdbpatch", "config.yml"), "use_cc: gcc\nuse_cxx: g++\njobs: 8\n")
	writeFile(t, filepath.Join(projectDir, ".cdbpatch.yml"), `use_cc: clang
ccdel: ["-Werror"]
deny_flags:
  - prefix: -fplugin
    takes_value: false
`)
	explicit := filepath.Join(t.TempDir(), "ci.yml")
	writeFile(t, explicit, "out: from-config.json\nshared_cache: true\n")

	t.Run("layers sources in order", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()

		cmd := newPatchCommand()
		require.NoError(t, cmd.Flags().Set("config", explicit))
		require.NoError(t, cmd.Flags().Set("out", "from-flag.json"))
		require.NoError(t, cmd.Flags().Set("jobs", "2"))
		require.NoError(t, cmd.Flags().Set("deny-flag", "--param"))

		cfg, err := newTestLoader(globalDir).LoadForPatch(cmd, []string{db})
		require.NoError(t, err)

		assert.Equal(t, db, cfg.Input)
		assert.Equal(t, mustAbs(t, "from-flag.json"), cfg.Output)
		assert.Equal(t, "clang", cfg.UseCC)
		assert.Equal(t, "g++", cfg.UseCXX)
		assert.Equal(t, []string{"-Werror"}, cfg.CcDel)
		assert.True(t, cfg.SharedCache)
		assert.Equal(t, 2, cfg.Jobs)
		assert.Equal(t, []compiler.DenyRule{
			{Prefix: "-fplugin"},
			{Prefix: "--param", TakesValue: true},
		}, cfg.DenyFlags)
	})

	t.Run("environment overrides config files", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()

		t.Setenv("CDBPATCH_USE_CC", "cc-from-env")
		t.Setenv("CDBPATCH_OUT", "env.json")

		cfg, err := newTestLoader(globalDir).LoadForPatch(newPatchCommand(), []string{db})
		require.NoError(t, err)

		assert.Equal(t, "cc-from-env", cfg.UseCC)
		assert.Equal(t, mustAbs(t, "env.json"), cfg.Output)
		assert.Equal(t, 8, cfg.Jobs)
	})

	t.Run("missing output", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()

		_, err := newTestLoader(globalDir).LoadForPatch(newPatchCommand(), []string{db})
		assert.ErrorIs(t, err, ErrNoOutput)
	})
}

func TestLoader_LoadCacheDir(t *testing.T) {
	t.Run("from flag", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()

		dir := t.TempDir()
		cmd := newPatchCommand()
		require.NoError(t, cmd.Flags().Set("probe-cache", dir))

		got, err := newTestLoader(t.TempDir()).LoadCacheDir(cmd)
		require.NoError(t, err)
		assert.Equal(t, dir, got)
	})

	t.Run("from local config", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()

		project := t.TempDir()
		writeFile(t, filepath.Join(project, ".cdbpatch.yml"), "probe_cache: .probes\n")
		t.Chdir(project)

		got, err := newTestLoader(t.TempDir()).LoadCacheDir(newPatchCommand())
		require.NoError(t, err)
		assert.Equal(t, mustAbs(t, ".probes"), got)
	})

	t.Run("not configured", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()

		t.Chdir(t.TempDir())

		_, err := newTestLoader(t.TempDir()).LoadCacheDir(newPatchCommand())
		assert.ErrorIs(t, err, ErrNoProbeCache)
	})
}
