package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/classicvalues/phoenix/internal/extension"
	"github.com/classicvalues/phoenix/internal/logging"
)

const (
	// DefaultAPIVersion is the host API version assumed when none is configured.
	DefaultAPIVersion = "1.0.0"

	configFileName = "config.yaml"
)

// Config is the phoenix-ext configuration.
type Config struct {
	Extensions   ExtensionsConfig   `yaml:"extensions" json:"extensions"`
	Dependencies DependenciesConfig `yaml:"dependencies" json:"dependencies"`
	Logging      LoggingConfig      `yaml:"logging" json:"logging"`
}

// ExtensionsConfig locates the extension roots and names the host API version
// that packages are checked against.
type ExtensionsConfig struct {
	UserDir     string `yaml:"user_dir" json:"user_dir"`
	DisabledDir string `yaml:"disabled_dir" json:"disabled_dir"`
	StagingDir  string `yaml:"staging_dir" json:"staging_dir"`
	APIVersion  string `yaml:"api_version" json:"api_version"`
}

// DependenciesConfig controls the post-install dependency fetch.
type DependenciesConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Command string   `yaml:"command" json:"command"`
	Args    []string `yaml:"args,omitempty" json:"args,omitempty"`
}

// New returns a Config populated with defaults rooted at the phoenix home
// directory. Environment overrides are not applied.
func New() *Config {
	home, err := GetHomeDir()
	if err != nil {
		home = ".phoenix"
	}
	extDir := filepath.Join(home, "extensions")

	return &Config{
		Extensions: ExtensionsConfig{
			UserDir:     filepath.Join(extDir, "user"),
			DisabledDir: filepath.Join(extDir, "disabled"),
			StagingDir:  filepath.Join(extDir, ".staging"),
			APIVersion:  DefaultAPIVersion,
		},
		Dependencies: DependenciesConfig{
			Enabled: true,
			Command: extension.DefaultDependencyCommand,
			Args:    extension.DefaultDependencyArgs(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML file at
// path, then environment overrides. An empty path means the default config
// file, which may be absent. An explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := New()

	explicit := path != ""
	if !explicit {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) || explicit {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	} else if mergeErr := ShallowMergeYAML(cfg, path); mergeErr != nil {
		return nil, mergeErr
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies PHOENIX_* environment variables on top of cfg.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PHOENIX_API_VERSION"); v != "" {
		c.Extensions.APIVersion = v
	}
	if v := os.Getenv("PHOENIX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PHOENIX_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if fields := strings.Fields(os.Getenv("PHOENIX_DEPS_COMMAND")); len(fields) > 0 {
		c.Dependencies.Command = fields[0]
		c.Dependencies.Args = fields[1:]
	}
}

// Validate reports configuration values that would make every install fail.
func (c *Config) Validate() error {
	var errs []error
	if c.Extensions.UserDir == "" {
		errs = append(errs, errors.New("extensions.user_dir is required"))
	}
	if c.Extensions.DisabledDir == "" {
		errs = append(errs, errors.New("extensions.disabled_dir is required"))
	}
	if c.Extensions.UserDir != "" && filepath.Clean(c.Extensions.UserDir) == filepath.Clean(c.Extensions.DisabledDir) {
		errs = append(errs, errors.New("extensions.user_dir and extensions.disabled_dir must differ"))
	}
	if !extension.IsValidVersion(c.Extensions.APIVersion) {
		errs = append(errs, fmt.Errorf("extensions.api_version %q is not a semantic version", c.Extensions.APIVersion))
	}
	if c.Dependencies.Enabled && c.Dependencies.Command == "" {
		errs = append(errs, errors.New("dependencies.command is required when dependencies are enabled"))
	}
	switch c.Logging.Format {
	case "", logging.FormatConsole, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be %q or %q",
			c.Logging.Format, logging.FormatConsole, logging.FormatJSON))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// EnsureDirs creates the extension roots and the staging directory.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.Extensions.UserDir, c.Extensions.DisabledDir, c.Extensions.StagingDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %q: %w", dir, err)
		}
	}
	return nil
}

// InstallOptions returns the options passed to every install and update.
func (c *Config) InstallOptions() extension.InstallOptions {
	return extension.InstallOptions{
		DisabledDirectory: c.Extensions.DisabledDir,
		APIVersion:        c.Extensions.APIVersion,
	}
}

// DependencyFetcher returns the configured fetcher, or nil when dependency
// resolution is disabled.
func (c *Config) DependencyFetcher() extension.DependencyFetcher {
	if !c.Dependencies.Enabled {
		return nil
	}
	return extension.NewExecFetcher(c.Dependencies.Command, c.Dependencies.Args...)
}

// Save writes cfg as YAML to path, creating the parent directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if writeErr := os.WriteFile(path, data, 0o600); writeErr != nil {
		return fmt.Errorf("writing config file %s: %w", path, writeErr)
	}
	return nil
}

// GetHomeDir returns the phoenix home directory: $PHOENIX_HOME, or ~/.phoenix.
func GetHomeDir() (string, error) {
	if home := os.Getenv("PHOENIX_HOME"); home != "" {
		return home, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".phoenix"), nil
}

// DefaultConfigPath returns the path of config.yaml in the phoenix home directory.
func DefaultConfigPath() (string, error) {
	home, err := GetHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}
