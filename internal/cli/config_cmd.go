package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/saferm/saferm/internal/config"
	"github.com/saferm/saferm/internal/policy"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the saferm configuration",
	}
	cmd.AddCommand(newConfigShowCmd())
	return cmd
}

// newConfigShowCmd prints the effective configuration, including which
// allowed_paths rules actually resolved, so a user can see why a path
// was or was not bypassed.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration and resolved rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path := config.Path()
			fmt.Fprintf(out, "config file: %s", path)
			if _, err := os.Stat(path); err != nil {
				fmt.Fprint(out, " (not found, using defaults)")
			}
			fmt.Fprintln(out)

			cfg := config.Load()
			fmt.Fprintf(out, "allow_project_deletion: %v\n", cfg.AllowProjectDeletion)

			rules := policy.NewRuleSet(cfg.AllowedPaths).Rules()
			fmt.Fprintf(out, "allowed_paths (%d configured, %d resolved):\n", len(cfg.AllowedPaths), len(rules))
			for _, r := range rules {
				mode := "direct children only"
				if r.Recursive {
					mode = "recursive"
				}
				fmt.Fprintf(out, "  %s (%s)\n", r.Dir, mode)
			}

			fmt.Fprintln(out, "protected_paths:")
			for _, pat := range cfg.ProtectedPaths {
				fmt.Fprintf(out, "  %s\n", pat)
			}

			fmt.Fprintf(out, "audit: enabled=%v output=%s\n", cfg.Audit.Enabled, cfg.Audit.Output)
			return nil
		},
	}
}
