package stager

import (
	"fmt"
	"os"
	"path/filepath"

	"jet-tools/go/pkg/logbowl"
)

// mkdirAll is replaced in tests to simulate a racing creator.
var mkdirAll = os.MkdirAll

// EnsureDir creates dir and its parents. A failed attempt is fatal only if
// dir is still missing afterwards; when another process created it in the
// meantime a warning is logged and the build goes on.
func EnsureDir(log logbowl.Logger, dir string) error {
	if dirExists(dir) {
		return nil
	}
	err := mkdirAll(dir, DefaultDirMode)
	if err == nil {
		return nil
	}
	if !dirExists(dir) {
		return fmt.Errorf("%w: %s: %w", ErrDirectoryCreate, dir, err)
	}
	log.Warn("stage", "init", "warning", "Directory appeared while it was being created", "path", dir, "error", err)
	return nil
}

// CleanDir empties dir, creating it when absent. Everything below dir is
// removed so no output from a previous run survives. Failing to read or
// remove existing content is a staging error.
func CleanDir(log logbowl.Logger, dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return EnsureDir(log, dir)
	}
	if err != nil {
		return fmt.Errorf("%w: cleaning %s: %w", ErrStaging, dir, err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("%w: cleaning %s: %w", ErrStaging, dir, err)
		}
	}
	log.Debug("stage", "clean", "success", "Directory cleaned", "path", dir, "removed", len(entries))
	return nil
}

func dirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}
