// Package pipeline drives a native build from start to finish: it resolves
// the toolchain, stages the project, runs the compiler and the packager,
// then archives the package directory.
//
// A run walks Init, Resolved, Staged, Compiled, Packaged, then Archived or
// Dirified, and ends in Done. Any failure ends the run in Failed with a
// single *Failure; nothing is retried and nothing already written to disk
// is rolled back.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"jet-tools/go/pkg/archive"
	"jet-tools/go/pkg/logbowl"
	"jet-tools/go/pkg/process"
	"jet-tools/go/pkg/stager"
	"jet-tools/go/pkg/toolchain"
)

// Layout directory names under the output root.
const (
	BuildDir   = "build"
	PackageDir = "app"

	DefaultOutputDir = "target/jet"
	DefaultIcon      = "src/main/jetresources/icon.ico"
)

// Compiler flags passed verbatim.
const (
	decorFlag      = "-decor=ht"
	hideConsoleArg = "-gui+"
)

// Config is what a build run needs to know about the project.
type Config struct {
	MainClass     string
	MainJar       string
	JetHome       string
	OutputDir     string
	OutputName    string
	FinalName     string
	Icon          string
	HideConsole   bool
	ZipOutput     bool
	ArchiveFormat archive.Format
	Dependencies  []string
}

// Locator resolves a toolchain installation.
type Locator interface {
	Resolve(explicit string) (*toolchain.Handle, error)
}

// Runner executes an external tool.
type Runner interface {
	Execute(ctx context.Context, inv process.Invocation) (*process.Result, error)
}

// Stager copies build inputs into the build directory.
type Stager interface {
	Stage(buildRoot, primary string, dependencies []string) ([]stager.Entry, error)
}

// Archiver packs a directory into one file.
type Archiver interface {
	Create(sourceDir, outputFile string) error
}

// Result describes what a run produced. It is returned on failure too,
// filled as far as the run got.
type Result struct {
	State        State
	Transitions  []State
	Toolchain    *toolchain.Handle
	Staged       []stager.Entry
	CompilerArgs []string
	BuildDir     string
	PackageDir   string
	Executable   string
	Archive      string
}

// Orchestrator runs builds. It holds no per-run state and may be reused.
type Orchestrator struct {
	log         logbowl.Logger
	goos        string
	locator     Locator
	stager      Stager
	runner      Runner
	archiverFor func(archive.Format) Archiver
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

func WithLocator(l Locator) Option { return func(o *Orchestrator) { o.locator = l } }
func WithStager(s Stager) Option   { return func(o *Orchestrator) { o.stager = s } }
func WithRunner(r Runner) Option   { return func(o *Orchestrator) { o.runner = r } }

// WithArchiver replaces the archive builder for every format.
func WithArchiver(a Archiver) Option {
	return func(o *Orchestrator) { o.archiverFor = func(archive.Format) Archiver { return a } }
}

// WithGOOS sets the platform used for argument construction and exe names.
func WithGOOS(goos string) Option { return func(o *Orchestrator) { o.goos = goos } }

// New creates an Orchestrator wired to the real collaborators unless
// overridden. The platform defaults to the host's.
func New(log logbowl.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{log: log, goos: runtime.GOOS}
	for _, opt := range opts {
		opt(o)
	}
	if o.locator == nil {
		o.locator = toolchain.NewLocator(log, toolchain.WithGOOS(o.goos))
	}
	if o.stager == nil {
		o.stager = stager.New(log)
	}
	if o.runner == nil {
		o.runner = process.NewInvoker(log)
	}
	if o.archiverFor == nil {
		o.archiverFor = func(f archive.Format) Archiver { return archive.New(log, f) }
	}
	return o
}

// run is the state of one build.
type run struct {
	cfg    Config
	result *Result
	entry  string
	format archive.Format
}

func (r *run) enter(s State) {
	r.result.State = s
	r.result.Transitions = append(r.result.Transitions, s)
}

// Run executes one build. The returned error, if any, is a *Failure.
func (o *Orchestrator) Run(ctx context.Context, cfg Config) (*Result, error) {
	r := &run{cfg: cfg, result: &Result{}}
	r.enter(StateInit)

	steps := []struct {
		to State
		fn func(context.Context, *run) *Failure
	}{
		{StateResolved, o.resolve},
		{StateStaged, o.stage},
		{StateCompiled, o.compile},
		{StatePackaged, o.pack},
		{o.finishState(cfg), o.finish},
	}
	for _, step := range steps {
		if f := step.fn(ctx, r); f != nil {
			r.enter(StateFailed)
			o.log.Error("pipeline", "finish", "failure", "Build failed", "stage", f.Stage.String(), "kind", f.Kind.String(), "error", f.Err)
			return r.result, f
		}
		r.enter(step.to)
		o.log.Debug("pipeline", "process", "ongoing", "Stage complete", "state", step.to.String())
	}
	r.enter(StateDone)

	if r.result.Archive != "" {
		o.log.Info("pipeline", "finish", "success", "Build successful", "archive", r.result.Archive)
	} else {
		o.log.Info("pipeline", "finish", "success", "Build successful", "package", r.result.PackageDir)
	}
	return r.result, nil
}

func (o *Orchestrator) finishState(cfg Config) State {
	if cfg.ZipOutput {
		return StateArchived
	}
	return StateDirified
}

// resolve checks the entry point, the primary artifact and the toolchain,
// in that order, before anything is written to disk.
func (o *Orchestrator) resolve(_ context.Context, r *run) *Failure {
	cfg := &r.cfg
	if strings.TrimSpace(cfg.MainClass) == "" {
		return fail(StateResolved, KindPrerequisite, "", ErrNoEntryPoint)
	}
	if cfg.ZipOutput {
		format, err := archive.ParseFormat(string(cfg.ArchiveFormat))
		if err != nil {
			return fail(StateResolved, KindPrerequisite, "", fmt.Errorf("%w: %w", ErrInvalidConfig, err))
		}
		r.format = format
	}

	info, err := os.Stat(cfg.MainJar)
	if cfg.MainJar == "" || err != nil || !info.Mode().IsRegular() {
		o.log.Error("pipeline", "validate", "notfound", "Main jar not found", "path", cfg.MainJar)
		return fail(StateResolved, KindPrerequisite, cfg.MainJar, ErrNoArtifact)
	}

	handle, err := o.locator.Resolve(cfg.JetHome)
	if err != nil {
		return fail(StateResolved, KindPrerequisite, cfg.JetHome, err)
	}
	r.result.Toolchain = handle

	r.entry = EntryPoint(cfg.MainClass)
	if cfg.OutputName == "" {
		cfg.OutputName = SimpleName(r.entry)
	}
	if cfg.FinalName == "" {
		cfg.FinalName = strings.TrimSuffix(filepath.Base(cfg.MainJar), filepath.Ext(cfg.MainJar))
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}
	o.log.Debug("pipeline", "validate", "success", "Prerequisites satisfied", "main", r.entry, "outputName", cfg.OutputName)
	return nil
}

// stage prepares the output layout, stages inputs and assembles the
// compiler arguments.
func (o *Orchestrator) stage(_ context.Context, r *run) *Failure {
	cfg := r.cfg
	res := r.result
	res.BuildDir = filepath.Join(cfg.OutputDir, BuildDir)
	res.PackageDir = filepath.Join(cfg.OutputDir, PackageDir)

	if err := stager.EnsureDir(o.log, res.BuildDir); err != nil {
		return fail(StateStaged, KindDirectoryCreate, res.BuildDir, err)
	}
	if err := stager.CleanDir(o.log, res.PackageDir); err != nil {
		return fail(StateStaged, stagingKind(err), res.PackageDir, err)
	}

	entries, err := o.stager.Stage(res.BuildDir, cfg.MainJar, cfg.Dependencies)
	if err != nil {
		return fail(StateStaged, stagingKind(err), res.BuildDir, err)
	}
	res.Staged = entries
	res.CompilerArgs = o.compilerArgs(cfg, r.entry, stager.Paths(entries))
	return nil
}

func stagingKind(err error) Kind {
	if errors.Is(err, stager.ErrDirectoryCreate) {
		return KindDirectoryCreate
	}
	return KindStaging
}

// compilerArgs lists the staged paths followed by the derived flags.
func (o *Orchestrator) compilerArgs(cfg Config, entry string, staged []string) []string {
	args := append([]string(nil), staged...)
	if o.goos == "windows" {
		if icon := iconPath(cfg.Icon); icon != "" {
			args = append(args, icon)
		}
		if cfg.HideConsole {
			args = append(args, hideConsoleArg)
		}
	}
	return append(args,
		"-main="+entry,
		"-outputname="+cfg.OutputName,
		decorFlag,
	)
}

func iconPath(icon string) string {
	if icon == "" {
		return ""
	}
	info, err := os.Stat(icon)
	if err != nil || !info.Mode().IsRegular() {
		return ""
	}
	abs, err := filepath.Abs(icon)
	if err != nil {
		return ""
	}
	return abs
}

func (o *Orchestrator) compile(ctx context.Context, r *run) *Failure {
	inv := process.Invocation{
		Path: r.result.Toolchain.CompilerPath(),
		Args: r.result.CompilerArgs,
		Dir:  r.result.BuildDir,
		Sink: o.log.ProcessSink("compiler", toolchain.Compiler),
	}
	return o.execute(ctx, StateCompiled, KindCompilation, inv)
}

func (o *Orchestrator) pack(ctx context.Context, r *run) *Failure {
	target, err := filepath.Abs(r.result.PackageDir)
	if err != nil {
		return fail(StatePackaged, KindPackaging, r.result.PackageDir, err)
	}
	exe := toolchain.ExeName(r.cfg.OutputName, o.goos)
	inv := process.Invocation{
		Path: r.result.Toolchain.PackagerPath(),
		Args: []string{"-add-file", exe, "/", "-target", target},
		Dir:  r.result.BuildDir,
		Sink: o.log.ProcessSink("packager", toolchain.Packager),
	}
	if f := o.execute(ctx, StatePackaged, KindPackaging, inv); f != nil {
		return f
	}
	r.result.Executable = filepath.Join(r.result.PackageDir, exe)
	return nil
}

// execute runs one tool. A launch failure and a non-zero exit are both
// fatal but carry different kinds.
func (o *Orchestrator) execute(ctx context.Context, stage State, kind Kind, inv process.Invocation) *Failure {
	o.log.Info("pipeline", "execute", "attempt", "Running tool", "command", inv.String(), "dir", inv.Dir)
	res, err := o.runner.Execute(ctx, inv)
	if err != nil {
		if errors.Is(err, process.ErrLaunch) {
			kind = KindProcessLaunch
		}
		return fail(stage, kind, inv.Path, err)
	}
	if !res.Succeeded() {
		return fail(stage, kind, inv.Path, fmt.Errorf("%w: %s exited with code %d", ErrNonZeroExit, filepath.Base(inv.Path), res.ExitCode))
	}
	return nil
}

func (o *Orchestrator) finish(_ context.Context, r *run) *Failure {
	if !r.cfg.ZipOutput {
		o.log.Info("pipeline", "finish", "info", "Package directory is the deliverable", "path", r.result.PackageDir)
		return nil
	}
	out := filepath.Join(r.cfg.OutputDir, r.cfg.FinalName+r.format.Ext())
	o.log.Info("archive", "pack", "attempt", "Archiving package", "source", r.result.PackageDir, "path", out)
	if err := o.archiverFor(r.format).Create(r.result.PackageDir, out); err != nil {
		return fail(StateArchived, KindArchive, out, err)
	}
	r.result.Archive = out
	return nil
}

// EntryPoint converts a dotted class name to the slash form the compiler
// expects.
func EntryPoint(mainClass string) string {
	return strings.ReplaceAll(strings.TrimSpace(mainClass), ".", "/")
}

// SimpleName returns the last segment of a slash-separated entry point.
func SimpleName(entry string) string {
	if i := strings.LastIndex(entry, "/"); i >= 0 {
		return entry[i+1:]
	}
	return entry
}
