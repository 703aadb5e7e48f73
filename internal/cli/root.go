package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/classicvalues/phoenix/internal/config"
	"github.com/classicvalues/phoenix/internal/extension"
	"github.com/classicvalues/phoenix/internal/logging"
)

// Output formats accepted by --output.
const (
	outputText = "text"
	outputJSON = "json"
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

type configKey struct{}

// annotationSkipConfig marks commands that run on defaults instead of the
// config file, such as the command that creates it.
const annotationSkipConfig = "phoenix/skip-config"

// configFromContext returns the configuration loaded by the root command.
func configFromContext(ctx context.Context) (*config.Config, error) {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok && cfg != nil {
		return cfg, nil
	}
	return nil, errors.New("configuration not loaded")
}

// NewRootCmd creates the root Cobra command for the phoenix-ext CLI.
func NewRootCmd(ver string) *cobra.Command {
	var (
		logResult  *logging.LogPathResult
		configPath string
		output     string
	)

	cmd := &cobra.Command{
		Use:           "phoenix-ext",
		Short:         "Install and manage phoenix extensions",
		Long:          "phoenix-ext installs extension packages from zip or tar.gz archives, checks them against the host API and keeps the extension directories consistent.",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if output != outputText && output != outputJSON {
				return fmt.Errorf("--output must be %q or %q, got %q", outputText, outputJSON, output)
			}

			cfg := config.New()
			if cmd.Annotations[annotationSkipConfig] == "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return fmt.Errorf("loading configuration: %w", err)
				}
				cfg = loaded
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, configKey{}, cfg))

			result := setupLogging(cmd, cfg)
			logResult = &result
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return cleanupLogging(logResult)
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default $PHOENIX_HOME/config.yaml)")
	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().StringVarP(&output, "output", "o", outputText, "output format: text or json")
	cmd.AddCommand(
		newInstallCmd(),
		newUpdateCmd(),
		newRemoveCmd(),
		newListCmd(),
		newConfigCmd(),
	)

	return cmd
}

const rootCmdExample = `  # Install an extension archive
  phoenix-ext install ./my-extension.zip

  # Replace an installed extension with a newer archive
  phoenix-ext update ./my-extension-2.0.0.zip

  # List installed extensions as JSON
  phoenix-ext list --output json

  # Remove an extension by name
  phoenix-ext remove my-extension

  # Check against a different host API version
  PHOENIX_API_VERSION=0.22.0 phoenix-ext install ./legacy.zip`

// newInstaller builds an Installer from the loaded configuration and makes
// sure the extension directories exist.
func newInstaller(cmd *cobra.Command) (*extension.Installer, *config.Config, error) {
	cfg, err := configFromContext(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	if dirErr := cfg.EnsureDirs(); dirErr != nil {
		return nil, nil, dirErr
	}

	inst := extension.NewInstaller(
		extension.WithStagingDir(cfg.Extensions.StagingDir),
		extension.WithDependencyFetcher(cfg.DependencyFetcher()),
	)
	return inst, cfg, nil
}

// outputFormat returns the value of the persistent --output flag.
func outputFormat(cmd *cobra.Command) string {
	format, err := cmd.Flags().GetString("output")
	if err != nil || format == "" {
		return outputText
	}
	return format
}
