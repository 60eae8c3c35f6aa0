// Package stager copies a project's artifact and its dependencies into a
// build directory and reports them as paths relative to that directory.
//
// Staging never overwrites: a destination that already exists is kept and
// recorded as is. A stale copy left by an earlier run survives until the
// build directory is cleared. When its content differs from the source a
// warning is logged.
package stager

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"jet-tools/go/pkg/logbowl"
)

// LibDir is the dependency subdirectory under the build root.
const LibDir = "lib"

// DefaultDirMode is used for every directory the stager creates.
const DefaultDirMode os.FileMode = 0755

var (
	// ErrStaging wraps I/O failures while copying an artifact.
	ErrStaging = errors.New("staging failed")

	// ErrDirectoryCreate is returned when a required directory cannot be
	// created and is still missing afterwards.
	ErrDirectoryCreate = errors.New("directory creation failed")
)

// Entry is one staged file.
type Entry struct {
	Source string // File the entry was copied from.
	Path   string // Location relative to the build root.
	Copied bool   // False when the destination already existed.
}

// Paths returns the relative paths of entries in order.
func Paths(entries []Entry) []string {
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	return paths
}

// Stager populates build directories.
type Stager struct {
	log logbowl.Logger
}

// New creates a Stager.
func New(log logbowl.Logger) *Stager {
	return &Stager{log: log}
}

// Stage copies primary into buildRoot and each dependency into
// buildRoot/lib. The result lists the primary artifact first, then the
// dependencies in the order given.
func (s *Stager) Stage(buildRoot, primary string, dependencies []string) ([]Entry, error) {
	libDir := filepath.Join(buildRoot, LibDir)
	if err := EnsureDir(s.log, libDir); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(dependencies)+1)
	e, err := s.copy(buildRoot, primary, filepath.Join(buildRoot, filepath.Base(primary)))
	if err != nil {
		return nil, err
	}
	entries = append(entries, e)

	for _, dep := range dependencies {
		e, err := s.copy(buildRoot, dep, filepath.Join(libDir, filepath.Base(dep)))
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	s.log.Info("stage", "copy", "success", "Dependencies staged", "buildDir", buildRoot, "count", len(entries))
	return entries, nil
}

func (s *Stager) copy(buildRoot, from, to string) (Entry, error) {
	rel, err := filepath.Rel(buildRoot, to)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %s: %w", ErrStaging, to, err)
	}
	entry := Entry{Source: from, Path: rel}

	if _, err := os.Stat(to); err == nil {
		s.log.Debug("stage", "copy", "skip", "Already staged", "path", rel)
		s.warnIfStale(from, to)
		return entry, nil
	} else if !os.IsNotExist(err) {
		return Entry{}, fmt.Errorf("%w: %s: %w", ErrStaging, to, err)
	}

	if err := copyFile(from, to); os.IsExist(err) {
		s.log.Debug("stage", "copy", "skip", "Staged concurrently", "path", rel)
		return entry, nil
	} else if err != nil {
		return Entry{}, fmt.Errorf("%w: copying %s to %s: %w", ErrStaging, from, to, err)
	}
	entry.Copied = true
	s.log.Debug("stage", "copy", "success", "Staged", "from", from, "path", rel)
	return entry, nil
}

// warnIfStale compares the source with an existing destination. Hashing
// failures are not fatal, the destination is kept either way.
func (s *Stager) warnIfStale(from, to string) {
	srcSum, err := fileSha256(from)
	if err != nil {
		return
	}
	dstSum, err := fileSha256(to)
	if err != nil {
		return
	}
	if srcSum != dstSum {
		s.log.Warn("stage", "verify", "warning", "Staged copy differs from its source and was not refreshed; clean the build directory to update it", "source", from, "staged", to)
	}
}

func fileSha256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// copyFile creates dst exclusively so a concurrent writer is never
// clobbered, and keeps the source permission bits.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", src)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
