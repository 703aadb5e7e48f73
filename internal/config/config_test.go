package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classicvalues/phoenix/internal/config"
	"github.com/classicvalues/phoenix/internal/extension"
	"github.com/classicvalues/phoenix/internal/logging"
)

// isolate points PHOENIX_HOME at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("PHOENIX_HOME", home)
	for _, key := range []string{"PHOENIX_API_VERSION", "PHOENIX_LOG_LEVEL", "PHOENIX_LOG_FORMAT", "PHOENIX_DEPS_COMMAND"} {
		t.Setenv(key, "")
	}
	return home
}

// writeConfig is a test helper that writes YAML content to a temp file
// and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewDefaults(t *testing.T) {
	home := isolate(t)

	cfg := config.New()

	assert.Equal(t, filepath.Join(home, "extensions", "user"), cfg.Extensions.UserDir)
	assert.Equal(t, filepath.Join(home, "extensions", "disabled"), cfg.Extensions.DisabledDir)
	assert.Equal(t, filepath.Join(home, "extensions", ".staging"), cfg.Extensions.StagingDir)
	assert.Equal(t, config.DefaultAPIVersion, cfg.Extensions.APIVersion)
	assert.True(t, cfg.Dependencies.Enabled)
	assert.Equal(t, "npm", cfg.Dependencies.Command)
	assert.Equal(t, "info", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoadWithoutFile(t *testing.T) {
	isolate(t)

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.New(), cfg)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	isolate(t)

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadMergesFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
extensions:
  api_version: 0.22.0
  disabled_dir: /srv/ext/disabled
dependencies:
  enabled: false
logging:
  level: debug
unknown_section:
  ignored: true
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	defaults := config.New()
	assert.Equal(t, "0.22.0", cfg.Extensions.APIVersion)
	assert.Equal(t, "/srv/ext/disabled", cfg.Extensions.DisabledDir)
	assert.Equal(t, defaults.Extensions.UserDir, cfg.Extensions.UserDir, "absent fields keep defaults")
	assert.False(t, cfg.Dependencies.Enabled)
	assert.Nil(t, cfg.DependencyFetcher())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Empty(t, cfg.Logging.Format)
}

func TestLoadDefaultFileFromHome(t *testing.T) {
	home := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte("logging:\n  level: warn\n"), 0o600))

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadInvalidYAML(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "extensions: [unclosed")

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "extensions:\n  api_version: 0.22.0\n")
	t.Setenv("PHOENIX_API_VERSION", "0.30.1")
	t.Setenv("PHOENIX_LOG_LEVEL", "trace")
	t.Setenv("PHOENIX_LOG_FORMAT", "json")
	t.Setenv("PHOENIX_DEPS_COMMAND", "pnpm install --prod")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.30.1", cfg.Extensions.APIVersion)
	assert.Equal(t, "trace", cfg.Logging.Level)
	assert.Equal(t, logging.FormatJSON, cfg.Logging.Format)
	assert.Equal(t, "pnpm", cfg.Dependencies.Command)
	assert.Equal(t, []string{"install", "--prod"}, cfg.Dependencies.Args)

	fetcher, ok := cfg.DependencyFetcher().(*extension.ExecFetcher)
	require.True(t, ok)
	assert.Equal(t, "pnpm", fetcher.Command)
}

func TestValidate(t *testing.T) {
	isolate(t)

	tests := []struct {
		name    string
		mutate  func(cfg *config.Config)
		wantErr string
	}{
		{
			name:    "missing user dir",
			mutate:  func(cfg *config.Config) { cfg.Extensions.UserDir = "" },
			wantErr: "extensions.user_dir is required",
		},
		{
			name:    "missing disabled dir",
			mutate:  func(cfg *config.Config) { cfg.Extensions.DisabledDir = "" },
			wantErr: "extensions.disabled_dir is required",
		},
		{
			name:    "same roots",
			mutate:  func(cfg *config.Config) { cfg.Extensions.DisabledDir = cfg.Extensions.UserDir + "/" },
			wantErr: "must differ",
		},
		{
			name:    "bad api version",
			mutate:  func(cfg *config.Config) { cfg.Extensions.APIVersion = "latest" },
			wantErr: "not a semantic version",
		},
		{
			name: "empty dependency command",
			mutate: func(cfg *config.Config) {
				cfg.Dependencies.Command = ""
			},
			wantErr: "dependencies.command is required",
		},
		{
			name:    "bad log format",
			mutate:  func(cfg *config.Config) { cfg.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnsureDirs(t *testing.T) {
	home := isolate(t)
	cfg := config.New()

	require.NoError(t, cfg.EnsureDirs())

	for _, dir := range []string{"user", "disabled", ".staging"} {
		assert.DirExists(t, filepath.Join(home, "extensions", dir))
	}
}

func TestInstallOptions(t *testing.T) {
	isolate(t)
	cfg := config.New()

	opts := cfg.InstallOptions()
	assert.Equal(t, cfg.Extensions.DisabledDir, opts.DisabledDirectory)
	assert.Equal(t, cfg.Extensions.APIVersion, opts.APIVersion)
	require.NoError(t, opts.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	isolate(t)
	cfg := config.New()
	cfg.Extensions.APIVersion = "2.3.4"
	cfg.Logging.File = "/var/log/phoenix.log"

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestToLoggingConfig(t *testing.T) {
	tests := []struct {
		name       string
		in         config.LoggingConfig
		wantOutput string
	}{
		{name: "stderr by default", in: config.LoggingConfig{Level: "info"}, wantOutput: logging.OutputStderr},
		{name: "file when set", in: config.LoggingConfig{Level: "debug", File: "/tmp/p.log"}, wantOutput: logging.OutputFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.ToLoggingConfig()
			assert.Equal(t, tt.in.Level, got.Level)
			assert.Equal(t, tt.in.File, got.File)
			assert.Equal(t, tt.wantOutput, got.Output)
		})
	}
}
