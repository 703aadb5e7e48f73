package extension

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// testAPIVersion is the host API version used throughout the tests.
const testAPIVersion = "0.22.0"

type archiveEntry struct {
	name string
	body string
	// link, when set, makes the entry a symlink pointing at link.
	link string
}

func writeZip(t *testing.T, path string, entries ...archiveEntry) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		body := e.body
		switch {
		case e.link != "":
			hdr.SetMode(os.ModeSymlink | 0o777)
			body = e.link
		case len(e.name) > 0 && e.name[len(e.name)-1] == '/':
			hdr.SetMode(os.ModeDir | 0o755)
		default:
			hdr.SetMode(0o644)
		}
		fw, createErr := w.CreateHeader(hdr)
		require.NoError(t, createErr)
		if !hdr.Mode().IsDir() {
			_, writeErr := fw.Write([]byte(body))
			require.NoError(t, writeErr)
		}
	}
	require.NoError(t, w.Close())
	return path
}

func writeTarGz(t *testing.T, path string, entries ...archiveEntry) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0o644, Size: int64(len(e.body)), Typeflag: tar.TypeReg}
		if e.link != "" {
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = e.link
			hdr.Size = 0
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Typeflag == tar.TypeReg {
			_, writeErr := tw.Write([]byte(e.body))
			require.NoError(t, writeErr)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
	return path
}

// descriptorJSON renders a package.json body.
func descriptorJSON(t *testing.T, fields map[string]any) string {
	t.Helper()
	data, err := json.Marshal(fields)
	require.NoError(t, err)
	return string(data)
}

// packageEntries returns the entries of a minimal well-formed package.
func packageEntries(t *testing.T, name, version, hostRange string) []archiveEntry {
	t.Helper()
	fields := map[string]any{"name": name, "version": version}
	if hostRange != "" {
		fields["engines"] = map[string]string{"hostApi": hostRange}
	}
	return []archiveEntry{
		{name: "package.json", body: descriptorJSON(t, fields)},
		{name: "main.js", body: "define(function () {});\n"},
	}
}

func readVersion(t *testing.T, dir string) string {
	t.Helper()
	desc, err := ReadDescriptor(dir)
	require.NoError(t, err)
	return desc.Version
}

func listNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
