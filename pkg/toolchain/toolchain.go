// Package toolchain locates an Excelsior JET installation.
//
// A candidate directory is accepted only when its bin directory holds the
// compiler marker executable. Candidates are tried in priority order: an
// explicit override, the JET_HOME environment variable, then every PATH
// entry. Once an override or JET_HOME is given the search never falls back.
package toolchain

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"jet-tools/go/pkg/logbowl"
)

const (
	// HomeEnvVar names the environment variable consulted after the override.
	HomeEnvVar = "JET_HOME"

	// Compiler is the AOT compiler executable name.
	Compiler = "jc"

	// Packager is the packaging tool executable name.
	Packager = "xpack"

	binDir = "bin"
)

// ErrNotFound is returned when no candidate directory validates.
var ErrNotFound = errors.New("toolchain not found")

// Source records which step of the search produced a Handle.
type Source string

const (
	SourceOverride Source = "override"
	SourceEnv      Source = "env"
	SourcePath     Source = "path"
)

// Handle is a validated toolchain installation.
type Handle struct {
	root   string
	goos   string
	source Source
}

// Root returns the absolute installation directory.
func (h *Handle) Root() string { return h.root }

// Source returns the search step that produced the handle.
func (h *Handle) Source() Source { return h.source }

// Tool returns the absolute path of a toolchain executable.
func (h *Handle) Tool(name string) string {
	return filepath.Join(h.root, binDir, ExeName(name, h.goos))
}

// CompilerPath returns the absolute path of the compiler.
func (h *Handle) CompilerPath() string { return h.Tool(Compiler) }

// PackagerPath returns the absolute path of the packager.
func (h *Handle) PackagerPath() string { return h.Tool(Packager) }

// ExeName appends the platform executable suffix to name.
func ExeName(name, goos string) string {
	if goos == "windows" && !strings.HasSuffix(strings.ToLower(name), ".exe") {
		return name + ".exe"
	}
	return name
}

// Locator resolves toolchain installations.
type Locator struct {
	log    logbowl.Logger
	goos   string
	getenv func(string) string
}

// Option configures a Locator.
type Option func(*Locator)

// WithGetenv replaces the environment lookup.
func WithGetenv(getenv func(string) string) Option {
	return func(l *Locator) { l.getenv = getenv }
}

// WithGOOS sets the target operating system used for executable names.
func WithGOOS(goos string) Option {
	return func(l *Locator) { l.goos = goos }
}

// NewLocator creates a Locator reading the process environment.
func NewLocator(log logbowl.Logger, opts ...Option) *Locator {
	l := &Locator{log: log, goos: runtime.GOOS, getenv: os.Getenv}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type candidate struct {
	dir    string
	source Source
}

// candidates yields search candidates lazily in priority order. The yield
// function returns false to stop the search.
func (l *Locator) candidates(explicit string, yield func(candidate) bool) {
	if explicit != "" {
		yield(candidate{dir: explicit, source: SourceOverride})
		return
	}
	if env := l.getenv(HomeEnvVar); env != "" {
		yield(candidate{dir: env, source: SourceEnv})
		return
	}
	for _, entry := range filepath.SplitList(l.getenv("PATH")) {
		if entry == "" {
			continue
		}
		// PATH holds <home>/bin, the installation is its parent.
		if !yield(candidate{dir: filepath.Dir(filepath.Clean(entry)), source: SourcePath}) {
			return
		}
	}
}

// Resolve finds and validates the toolchain. An explicit path, when given, is
// used verbatim and its validation failure is final.
func (l *Locator) Resolve(explicit string) (*Handle, error) {
	var (
		found    *Handle
		rejected error
	)
	l.candidates(explicit, func(c candidate) bool {
		h, err := l.validate(c)
		if err != nil {
			l.log.Debug("toolchain", "validate", "skip", "Candidate rejected", "dir", c.dir, "source", string(c.source), "error", err)
			rejected = err
			return true
		}
		found = h
		return false
	})

	if found != nil {
		l.log.Info("toolchain", "resolve", "success", "Toolchain resolved", "root", found.root, "source", string(found.source))
		return found, nil
	}

	switch {
	case explicit != "":
		return nil, fmt.Errorf("%w: override %q: %w", ErrNotFound, explicit, rejected)
	case l.getenv(HomeEnvVar) != "":
		return nil, fmt.Errorf("%w: %s=%q: %w", ErrNotFound, HomeEnvVar, l.getenv(HomeEnvVar), rejected)
	default:
		return nil, fmt.Errorf("%w: set %s or add <jet-home>/%s to PATH", ErrNotFound, HomeEnvVar, binDir)
	}
}

// validate accepts a candidate only if the compiler marker exists under it.
func (l *Locator) validate(c candidate) (*Handle, error) {
	abs, err := filepath.Abs(c.dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", abs)
	}

	h := &Handle{root: abs, goos: l.goos, source: c.source}
	marker := h.CompilerPath()
	mi, err := os.Stat(marker)
	if err != nil {
		return nil, fmt.Errorf("missing %s: %w", marker, err)
	}
	if !mi.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", marker)
	}
	if runtime.GOOS != "windows" && mi.Mode()&0111 == 0 {
		return nil, fmt.Errorf("%s is not executable", marker)
	}
	return h, nil
}
