package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/saferm/saferm/internal/config"
)

const configTemplate = `# saferm configuration
# Location: ~/.config/saferm/config.yaml (override with SAFERM_CONFIG)
#
# allow_project_deletion: true (the default) permits deleting any file
# inside the project. Set it to false to require every file to be
# clean or ignored in git before deletion.
#allow_project_deletion: true

# Directories where deletion is always permitted, bypassing project
# containment and git status checks. Tilde (~) expands to your home
# directory. recursive: false matches direct children only.
allowed_paths:
  - path: ~/.claude/skills
    recursive: true
#  - path: /tmp/logs
#    recursive: false

# Glob patterns (relative to the project root) that may never be
# deleted. Uncomment to replace the built-in .git protection.
#protected_paths:
#  - .git
#  - .git/**

# Append every denied decision to a JSONL log.
#audit:
#  enabled: true
#  output: ~/.local/state/saferm/audit.log
`

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd)
		},
	}
}

func runInit(cmd *cobra.Command) error {
	path := config.Path()
	if path == "" {
		return errors.New("cannot determine config directory")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Config file already exists: %s\n", path)
		fmt.Fprintln(cmd.ErrOrStderr(), "Delete it first to regenerate.")
		return nil
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created config file: %s\n", path)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Default: ~/.claude/skills is allowed (recursive).")
	fmt.Fprintln(out, "Edit the file to add more allowed paths.")
	return nil
}
