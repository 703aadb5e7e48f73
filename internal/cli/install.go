package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/classicvalues/phoenix/internal/extension"
)

// ErrInstallFailed is returned when an archive fails validation. The result
// has already been printed when it is returned.
var ErrInstallFailed = errors.New("installation failed")

const installLong = `Install an extension from a zip or tar.gz archive.

The archive is extracted into a staging directory and validated before
anything is written to the extension directories. Extensions that require a
newer or older host API are installed into the disabled directory.

If the extension is already installed the command reports how the archive
compares (NEEDS_UPDATE, SAME_VERSION, OLDER_VERSION, ALREADY_INSTALLED) and
changes nothing. Use 'phoenix-ext update' to replace it.`

const installExample = `  # Install an extension
  phoenix-ext install ./my-extension.zip

  # Install and print the result as JSON
  phoenix-ext install ./my-extension.tar.gz --output json`

func newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "install <archive>",
		Short:   "Install an extension archive",
		Long:    installLong,
		Example: installExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd, args[0], false)
		},
	}
}

const updateLong = `Install an extension archive, replacing any installed copy of the same
extension in the active or disabled directory.

The previous copy is moved aside and deleted only after the new one is in
place. Updating to a version that is incompatible with the host API leaves the
extension installed but disabled.`

func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <archive>",
		Short: "Install an extension archive, replacing the installed version",
		Long:  updateLong,
		Example: `  # Replace the installed version
  phoenix-ext update ./my-extension-2.0.0.zip`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd, args[0], true)
		},
	}
}

func runInstall(cmd *cobra.Command, archive string, update bool) error {
	inst, cfg, err := newInstaller(cmd)
	if err != nil {
		return err
	}

	archivePath, err := filepath.Abs(archive)
	if err != nil {
		return fmt.Errorf("resolving archive path: %w", err)
	}

	ctx := cmd.Context()
	run := inst.Install
	operation := "install"
	if update {
		run = inst.Update
		operation = "update"
	}

	result, err := run(ctx, archivePath, cfg.Extensions.UserDir, cfg.InstallOptions())
	if err != nil {
		return fmt.Errorf("%s %s: %w", operation, archive, err)
	}

	logger.Debug().
		Ctx(ctx).
		Str("operation", operation).
		Str("archive", archivePath).
		Str("status", result.Status.String()).
		Int("error_count", len(result.Errors)).
		Msg("command finished")

	if outputFormat(cmd) == outputJSON {
		err = writeJSON(cmd.OutOrStdout(), result)
	} else {
		err = renderInstallResult(cmd.OutOrStdout(), result)
	}
	if err != nil {
		return fmt.Errorf("writing result: %w", err)
	}

	if result.Status == extension.StatusFailed {
		return fmt.Errorf("%w: %s", ErrInstallFailed, result.Name)
	}
	return nil
}
