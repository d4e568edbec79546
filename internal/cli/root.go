// Package cli wires the saferm commands. The root command is the
// deletion operation itself; init and config are helpers around the
// configuration file.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func NewRoot(version string) *cobra.Command {
	opts := &deleteOptions{}
	cmd := &cobra.Command{
		Use:   "saferm [flags] PATH...",
		Short: "saferm: git-aware deletion gatekeeper",
		Long: "saferm decides per path whether deletion is safe before removing anything.\n" +
			"Paths outside the enclosing project are always refused; with\n" +
			"allow_project_deletion disabled, only clean or ignored files may go.\n" +
			"Configured allowed_paths bypass both checks for trusted directories.",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd, args, opts)
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate("saferm {{.Version}}\n")

	cmd.Flags().BoolVarP(&opts.recursive, "recursive", "r", false, "remove directories and their contents")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "ignore nonexistent paths")
	cmd.Flags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "show what would be removed without removing")
	cmd.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "enable debug logging on stderr")

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// newLogger builds the stderr logger; --verbose lowers the level to
// Debug so the engine's per-path decisions become visible.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
