package extension

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDescriptor(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, descriptorFile), []byte(body), 0o600))
}

func TestReadDescriptor(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		_, err := ReadDescriptor(t.TempDir())
		require.ErrorIs(t, err, ErrDescriptorNotFound)
	})

	t.Run("invalid json", func(t *testing.T) {
		dir := t.TempDir()
		writeDescriptor(t, dir, `{"name": "broken",`)

		_, err := ReadDescriptor(dir)
		require.ErrorIs(t, err, ErrInvalidDescriptor)
	})

	t.Run("wrong shape", func(t *testing.T) {
		dir := t.TempDir()
		writeDescriptor(t, dir, `{"name": 42}`)

		_, err := ReadDescriptor(dir)
		require.ErrorIs(t, err, ErrInvalidDescriptor)
	})

	t.Run("full descriptor", func(t *testing.T) {
		dir := t.TempDir()
		writeDescriptor(t, dir, `{
			"name": "my-extension",
			"version": "1.2.3",
			"title": "My Extension",
			"engines": {"brackets": ">=0.20.0"},
			"dependencies": {"lodash": "^4.0.0"}
		}`)

		desc, err := ReadDescriptor(dir)
		require.NoError(t, err)
		assert.Equal(t, "my-extension", desc.Name)
		assert.Equal(t, "1.2.3", desc.Version)
		assert.Equal(t, "My Extension", desc.Title)
		assert.Equal(t, ">=0.20.0", desc.HostAPIRange())
		assert.True(t, desc.HasDependencies())
		assert.False(t, desc.Legacy)
	})
}

func TestEnginesRange(t *testing.T) {
	tests := []struct {
		name    string
		engines *Engines
		want    string
	}{
		{name: "nil", engines: nil, want: ""},
		{name: "hostApi only", engines: &Engines{HostAPI: ">=1.0.0"}, want: ">=1.0.0"},
		{name: "legacy key only", engines: &Engines{Brackets: "<=0.30.0"}, want: "<=0.30.0"},
		{name: "hostApi wins", engines: &Engines{HostAPI: ">=1.0.0", Brackets: "<=0.30.0"}, want: ">=1.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.engines.Range())
		})
	}
}

func TestResolveDescriptor(t *testing.T) {
	const archive = "/downloads/my-legacy-ext.zip"

	tests := []struct {
		name       string
		descriptor string
		wantName   string
		wantLegacy bool
		wantKinds  []string
	}{
		{
			name:       "no descriptor",
			wantName:   "my-legacy-ext",
			wantLegacy: true,
		},
		{
			name:       "invalid descriptor",
			descriptor: `not json`,
			wantName:   "my-legacy-ext",
			wantLegacy: true,
			wantKinds:  []string{ErrKindInvalidPackageJSON},
		},
		{
			name:       "missing name",
			descriptor: `{"version": "1.0.0"}`,
			wantName:   "my-legacy-ext",
			wantKinds:  []string{ErrKindMissingPackageName},
		},
		{
			name:       "declared name",
			descriptor: `{"name": "declared", "version": "1.0.0"}`,
			wantName:   "declared",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.descriptor != "" {
				writeDescriptor(t, dir, tt.descriptor)
			}

			desc, errs, err := ResolveDescriptor(dir, archive)
			require.NoError(t, err)
			require.NotNil(t, desc)
			assert.Equal(t, tt.wantName, desc.Name)
			assert.Equal(t, tt.wantLegacy, desc.Legacy)

			kinds := make([]string, 0, len(errs))
			for _, e := range errs {
				kinds = append(kinds, e.Kind)
			}
			if len(tt.wantKinds) == 0 {
				assert.Empty(t, kinds)
			} else {
				assert.Equal(t, tt.wantKinds, kinds)
			}
		})
	}
}

func TestDeriveName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/tmp/basic-valid-extension.zip", want: "basic-valid-extension"},
		{path: "one-level-extension-master.ZIP", want: "one-level-extension-master"},
		{path: "pkg-1.0.0.tar.gz", want: "pkg-1.0.0"},
		{path: "pkg.tgz", want: "pkg"},
		{path: "weird name (1).zip", want: "weird-name-1"},
		{path: "noext", want: "noext"},
		{path: "..zip", want: fallbackName},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveName(tt.path))
		})
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "simple", want: "simple"},
		{input: "  padded  ", want: "padded"},
		{input: "../escape", want: "..-escape"},
		{input: "a/b\\c", want: "a-b-c"},
		{input: "", want: fallbackName},
		{input: ".", want: fallbackName},
		{input: "..", want: fallbackName},
		{input: "///", want: fallbackName},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := SanitizeName(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, filepath.Base(got), "sanitized name must be a single path element")
		})
	}
}
