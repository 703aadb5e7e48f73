package extension

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/oklog/ulid/v2"

	"github.com/classicvalues/phoenix/internal/logging"
)

// moveIntoPlace makes src visible at target in a single rename. When src and
// target live on different filesystems the tree is first copied next to
// target and then renamed, so target never holds a partial tree.
func moveIntoPlace(src, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating parent of %s: %w", target, err)
	}
	if _, err := os.Lstat(target); err == nil {
		return fmt.Errorf("target %s already exists", target)
	}

	err := os.Rename(src, target)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("moving %s into place: %w", filepath.Base(target), err)
	}

	incoming := siblingPath(target, "incoming")
	if copyErr := copyTree(src, incoming); copyErr != nil {
		_ = os.RemoveAll(incoming)
		return fmt.Errorf("copying %s across filesystems: %w", filepath.Base(target), copyErr)
	}
	if renameErr := os.Rename(incoming, target); renameErr != nil {
		_ = os.RemoveAll(incoming)
		return fmt.Errorf("moving %s into place: %w", filepath.Base(target), renameErr)
	}
	return nil
}

// replaceInstalled swaps old for the staged tree at src. The old directory is
// renamed out of its slot first, the new tree is moved in, and only then is
// the old tree deleted. If the move fails the old directory is restored.
func replaceInstalled(ctx context.Context, old *Existing, src, target string) error {
	if old == nil {
		return moveIntoPlace(src, target)
	}

	trash := siblingPath(old.Path, "removing")
	if err := os.Rename(old.Path, trash); err != nil {
		return fmt.Errorf("removing previous version of %s: %w", old.Name, err)
	}

	if err := moveIntoPlace(src, target); err != nil {
		if restoreErr := os.Rename(trash, old.Path); restoreErr != nil {
			return errors.Join(err, fmt.Errorf("restoring %s: %w", old.Path, restoreErr))
		}
		return err
	}

	if err := os.RemoveAll(trash); err != nil {
		log := logging.FromContext(ctx)
		log.Warn().
			Ctx(ctx).
			Str("component", "extension").
			Str("operation", "update").
			Str("path", trash).
			Err(err).
			Msg("failed to delete previous version")
	}
	return nil
}

// siblingPath returns a hidden, unique path next to path.
func siblingPath(path, tag string) string {
	return filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+tag+"-"+ulid.Make().String())
}

// copyTree copies regular files and directories from src to dst. Anything
// else is skipped.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		case info.Mode().IsRegular():
			return copyFile(path, target, info.Mode().Perm())
		default:
			return nil
		}
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}
	if _, copyErr := io.Copy(out, in); copyErr != nil {
		_ = out.Close()
		return fmt.Errorf("copying file: %w", copyErr)
	}
	if syncErr := out.Sync(); syncErr != nil {
		_ = out.Close()
		return fmt.Errorf("syncing destination: %w", syncErr)
	}
	return out.Close()
}

// DirSize returns the total size of regular files under path.
func DirSize(path string) (int64, error) {
	var size int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			size += info.Size()
		}
		return nil
	})
	return size, err
}
