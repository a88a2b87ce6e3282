package cmd

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/cdbpatch/internal/codes"
	"github.com/Norgate-AV/cdbpatch/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "cdbpatch <compile_commands.json>",
	Short: "Patch compilation databases",
	Long: `Rewrite the commands of a compile_commands.json file: swap compilers,
add or remove flags, and replace a toolchain's implicit system include
directories with explicit -isystem flags.`,
	RunE:         runPatch,
	SilenceUsage: true,
	Args:         exactArgs(1),
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(codes.ForError(err))
	}
}

func init() {
	rootCmd.Version = version.String()
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &codes.UsageError{Err: err}
	})

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (overrides global and local config)")
	rootCmd.PersistentFlags().String("probe-cache", "", "Directory of the persistent toolchain probe cache")

	rootCmd.Flags().StringP("out", "o", "", "Output file for the patched database")
	rootCmd.Flags().StringArray("ccadd", nil, "Flag to add to every command (repeatable)")
	rootCmd.Flags().StringArray("ccdel", nil, "Flag to remove from every command (repeatable)")
	rootCmd.Flags().String("use-cc", "", "Compiler to use for C files")
	rootCmd.Flags().String("use-cxx", "", "Compiler to use for C++ files")
	rootCmd.Flags().Bool("resolve-toolchain-includes", false, "Add the toolchain's system include directories and -nostdinc")
	rootCmd.Flags().StringArray("deny-flag", nil, "Flag prefix ignored when grouping toolchain probes (repeatable)")
	rootCmd.Flags().Bool("shared-cache", false, "Share one probe cache between workers")
	rootCmd.Flags().IntP("jobs", "j", 0, "Number of workers (default: number of CPUs)")

	rootCmd.AddCommand(cacheCmd)

	log.SetReportTimestamp(false)
}

// exactArgs is cobra.ExactArgs reporting a usage error
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &codes.UsageError{Err: err}
		}

		return nil
	}
}
