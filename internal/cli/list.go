package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/classicvalues/phoenix/internal/extension"
)

func newListCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed extensions",
		Long:  "List extensions in the active and disabled directories with their versions and paths.",
		Example: `  # List installed extensions
  phoenix-ext list

  # Include disk usage
  phoenix-ext list --verbose`,
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inst, cfg, err := newInstaller(cmd)
			if err != nil {
				return err
			}

			pkgs, err := inst.List(cmd.Context(), cfg.Extensions.UserDir, cfg.Extensions.DisabledDir)
			if err != nil {
				return fmt.Errorf("listing extensions: %w", err)
			}

			entries := make([]listEntry, 0, len(pkgs))
			for _, pkg := range pkgs {
				entry := listEntry{InstalledPackage: pkg}
				if verbose {
					entry.Size, _ = extension.DirSize(pkg.Path)
				}
				entries = append(entries, entry)
			}

			if outputFormat(cmd) == outputJSON {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			return renderList(cmd.OutOrStdout(), entries, verbose)
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show disk usage for each extension")

	return cmd
}
