package project

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"jet-tools/go/pkg/logbowl"
)

// ExpandDependencies turns dependency patterns into an ordered file list.
//
// Patterns keep their presentation order and each glob expands in lexical
// order. A path is listed once, at its first occurrence. Matches of any
// exclude pattern are dropped; an exclude without a separator is matched
// against the file name only. Directories and other non-regular files are
// skipped. A literal path that does not exist is kept as given so the
// staging step can report it.
func ExpandDependencies(log logbowl.Logger, patterns, excludes []string) ([]string, error) {
	for _, ex := range excludes {
		if !doublestar.ValidatePattern(filepath.ToSlash(ex)) {
			return nil, fmt.Errorf("invalid exclude pattern %q", ex)
		}
	}

	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if seen[p] || excluded(p, excludes) {
			return
		}
		seen[p] = true
		out = append(out, p)
	}

	for _, pattern := range patterns {
		if !isGlob(pattern) {
			info, err := os.Stat(pattern)
			if err == nil && !info.Mode().IsRegular() {
				log.Debug("stage", "resolve", "skip", "Not a regular file", "path", pattern)
				continue
			}
			add(pattern)
			continue
		}

		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("dependency pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			log.Warn("stage", "resolve", "warning", "Dependency pattern matched nothing", "pattern", pattern)
			continue
		}
		sort.Strings(matches)
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			add(m)
		}
	}

	log.Debug("stage", "resolve", "success", "Dependencies expanded", "patterns", len(patterns), "files", len(out))
	return out, nil
}

func isGlob(p string) bool {
	return strings.ContainsAny(p, "*?[{")
}

func excluded(path string, excludes []string) bool {
	slashed := filepath.ToSlash(path)
	name := filepath.Base(path)
	for _, ex := range excludes {
		ex = filepath.ToSlash(ex)
		target := slashed
		if !strings.Contains(ex, "/") {
			target = name
		}
		if ok, _ := doublestar.Match(ex, target); ok {
			return true
		}
	}
	return false
}
