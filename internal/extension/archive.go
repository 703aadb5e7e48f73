package extension

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/classicvalues/phoenix/internal/logging"
)

const (
	// maxFileSize caps a single extracted entry at 500MB.
	maxFileSize = 500 * 1024 * 1024

	stagingPattern = "extension-stage-*"
)

// StagedArchive is an archive extracted into a private staging directory.
type StagedArchive struct {
	// Dir is the staging directory owned by this request.
	Dir string
	// Root is the package root inside Dir, after common prefix stripping.
	Root string
	// Skipped lists entries that were not materialized (symlinks, hard links,
	// special files).
	Skipped []string
}

// Cleanup removes the staging directory and whatever is left in it.
func (s *StagedArchive) Cleanup() error {
	if s == nil || s.Dir == "" {
		return nil
	}
	return os.RemoveAll(s.Dir)
}

// Stage extracts archivePath into a fresh directory under stagingParent (the
// OS temp dir when empty). Package defects such as a missing or unreadable
// archive come back as validation errors; only environment failures are
// returned as error.
func Stage(ctx context.Context, archivePath, stagingParent string) (*StagedArchive, []ValidationError, error) {
	log := logging.FromContext(ctx)

	info, err := os.Stat(archivePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, []ValidationError{NewValidationError(ErrKindNotFound, archivePath)}, nil
		}
		return nil, nil, fmt.Errorf("reading archive %s: %w", archivePath, err)
	}
	if info.IsDir() {
		return nil, []ValidationError{
			NewValidationError(ErrKindCorruptArchive, archivePath, "path is a directory"),
		}, nil
	}

	if stagingParent != "" {
		if mkErr := os.MkdirAll(stagingParent, 0o750); mkErr != nil {
			return nil, nil, fmt.Errorf("creating staging parent %s: %w", stagingParent, mkErr)
		}
	}
	dir, err := os.MkdirTemp(stagingParent, stagingPattern)
	if err != nil {
		return nil, nil, fmt.Errorf("creating staging directory: %w", err)
	}

	skipped, err := extractArchive(ctx, archivePath, dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, err
		}
		log.Debug().
			Ctx(ctx).
			Str("component", "extension").
			Str("operation", "stage").
			Str("archive", archivePath).
			Err(err).
			Msg("archive could not be extracted")
		return nil, []ValidationError{NewValidationError(ErrKindCorruptArchive, archivePath, err.Error())}, nil
	}

	root, err := findPackageRoot(dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, nil, err
	}

	for _, name := range skipped {
		log.Debug().
			Ctx(ctx).
			Str("component", "extension").
			Str("operation", "stage").
			Str("entry", name).
			Msg("skipped non-regular archive entry")
	}

	return &StagedArchive{Dir: dir, Root: root, Skipped: skipped}, nil, nil
}

// ExtractArchive extracts a zip or tar.gz archive into destDir. Symlinks and
// other non-regular entries are skipped.
func ExtractArchive(archivePath, destDir string) error {
	_, err := extractArchive(context.Background(), archivePath, destDir)
	return err
}

func extractArchive(ctx context.Context, archivePath, destDir string) ([]string, error) {
	if isTarGz(archivePath) {
		return extractTarGz(ctx, archivePath, destDir)
	}
	return extractZip(ctx, archivePath, destDir)
}

func isTarGz(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz")
}

func extractZip(ctx context.Context, archivePath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("opening zip: %w", err)
	}
	defer r.Close()

	var skipped []string
	for _, f := range r.File {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		target, pathErr := sanitizePath(destDir, f.Name)
		if pathErr != nil {
			return nil, pathErr
		}

		mode := f.Mode()
		switch {
		case mode&os.ModeSymlink != 0:
			skipped = append(skipped, f.Name)
		case mode.IsDir():
			if mkErr := os.MkdirAll(target, 0o750); mkErr != nil {
				return nil, fmt.Errorf("creating directory %s: %w", f.Name, mkErr)
			}
		case mode.IsRegular():
			if f.UncompressedSize64 > maxFileSize {
				return nil, fmt.Errorf("file %s exceeds maximum size of %d bytes", f.Name, maxFileSize)
			}
			if writeErr := extractZipFile(f, target); writeErr != nil {
				return nil, writeErr
			}
		default:
			skipped = append(skipped, f.Name)
		}
	}
	return skipped, nil
}

func extractZipFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()
	return writeFile(rc, target, f.Mode().Perm())
}

func extractTarGz(ctx context.Context, archivePath, destDir string) ([]string, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gz.Close()

	var skipped []string
	tr := tar.NewReader(gz)
	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		hdr, nextErr := tr.Next()
		if errors.Is(nextErr, io.EOF) {
			return skipped, nil
		}
		if nextErr != nil {
			return nil, fmt.Errorf("reading tar entry: %w", nextErr)
		}

		target, pathErr := sanitizePath(destDir, hdr.Name)
		if pathErr != nil {
			return nil, pathErr
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if mkErr := os.MkdirAll(target, 0o750); mkErr != nil {
				return nil, fmt.Errorf("creating directory %s: %w", hdr.Name, mkErr)
			}
		case tar.TypeReg:
			if hdr.Size > maxFileSize {
				return nil, fmt.Errorf("file %s exceeds maximum size of %d bytes", hdr.Name, maxFileSize)
			}
			if writeErr := writeFile(tr, target, os.FileMode(hdr.Mode).Perm()); writeErr != nil { //nolint:gosec // mode is masked to permission bits
				return nil, writeErr
			}
		default:
			// Symlinks, hard links and device nodes are never materialized.
			skipped = append(skipped, hdr.Name)
		}
	}
}

// writeFile copies at most maxFileSize bytes from r into a new file at target.
func writeFile(r io.Reader, target string, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("creating parent of %s: %w", target, err)
	}
	if perm == 0 {
		perm = 0o644
	}
	// Owner must be able to read and later remove what we write.
	perm |= 0o600

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}

	n, copyErr := io.Copy(out, io.LimitReader(r, maxFileSize+1))
	closeErr := out.Close()
	if copyErr != nil {
		return fmt.Errorf("writing %s: %w", target, copyErr)
	}
	if n > maxFileSize {
		return fmt.Errorf("file %s exceeds maximum size of %d bytes", target, maxFileSize)
	}
	if closeErr != nil {
		return fmt.Errorf("closing %s: %w", target, closeErr)
	}
	return nil
}

// sanitizePath joins name onto destDir and rejects entries that would land
// outside destDir (zip-slip).
func sanitizePath(destDir, name string) (string, error) {
	target := filepath.Join(destDir, filepath.FromSlash(name))
	cleanDest := filepath.Clean(destDir)
	if target != cleanDest && !strings.HasPrefix(target, cleanDest+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal file path in archive: %s", name)
	}
	return target, nil
}

// findPackageRoot returns the directory holding the package. When everything
// in dir sits under a single top-level directory (e.g. "repo-master/"), that
// directory is the root.
func findPackageRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("reading staging directory: %w", err)
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	return dir, nil
}
