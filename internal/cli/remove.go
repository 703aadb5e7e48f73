package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/classicvalues/phoenix/internal/config"
	"github.com/classicvalues/phoenix/internal/extension"
)

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name|path>",
		Short: "Remove an installed extension",
		Long: `Remove an installed extension directory and everything in it.

The extension can be named, in which case the active directory is searched
before the disabled one, or given as a path inside either directory.`,
		Example: `  # Remove by name
  phoenix-ext remove my-extension

  # Remove a disabled extension by path
  phoenix-ext remove ~/.phoenix/extensions/disabled/my-extension`,
		Args:    cobra.ExactArgs(1),
		Aliases: []string{"uninstall", "rm"},
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, cfg, err := newInstaller(cmd)
			if err != nil {
				return err
			}

			path, err := resolveInstalledPath(cfg, args[0])
			if err != nil {
				return err
			}

			size, _ := extension.DirSize(path)
			if removeErr := inst.Remove(cmd.Context(), path); removeErr != nil {
				return fmt.Errorf("removing %s: %w", args[0], removeErr)
			}

			if outputFormat(cmd) == outputJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"name":       filepath.Base(path),
					"path":       path,
					"bytesFreed": size,
				})
			}
			cmd.Printf("✓ Removed %s\n", filepath.Base(path))
			cmd.Printf("  Path:  %s\n", path)
			cmd.Printf("  Freed: %s\n", formatBytes(size))
			return nil
		},
	}
}

// resolveInstalledPath maps a name or path to an installed directory inside
// one of the configured extension roots.
func resolveInstalledPath(cfg *config.Config, arg string) (string, error) {
	roots := []string{cfg.Extensions.UserDir, cfg.Extensions.DisabledDir}

	if strings.ContainsRune(arg, os.PathSeparator) || strings.ContainsRune(arg, '/') {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return "", fmt.Errorf("resolving %s: %w", arg, err)
		}
		for _, root := range roots {
			rootAbs, rootErr := filepath.Abs(root)
			if rootErr == nil && filepath.Dir(abs) == rootAbs {
				return abs, nil
			}
		}
		return "", fmt.Errorf("%s is not inside an extension directory", arg)
	}

	if strings.HasPrefix(arg, ".") {
		return "", fmt.Errorf("%w: %s", extension.ErrNotFound, arg)
	}
	for _, root := range roots {
		candidate := filepath.Join(root, arg)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s", extension.ErrNotFound, arg)
}
