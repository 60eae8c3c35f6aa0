// Package process runs external tools with their output streamed to a sink.
//
// A non-zero exit status is a normal Result, not an error. Errors are
// reserved for tools that could not be started and for failures reading
// their output.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"jet-tools/go/pkg/logbowl"
)

// ErrLaunch is returned when the executable cannot be started.
var ErrLaunch = errors.New("process launch failed")

// Sink receives the output of a running process line by line. Each stream is
// delivered in emission order; the two streams may interleave.
type Sink interface {
	Stdout(line string)
	Stderr(line string)
}

// Invocation describes one external call. Args are passed verbatim and in
// order.
type Invocation struct {
	Path string
	Args []string
	Dir  string
	Sink Sink
}

// String renders the command line for logs.
func (inv Invocation) String() string {
	return strings.TrimSpace(inv.Path + " " + strings.Join(inv.Args, " "))
}

// Result is the outcome of a process that ran to completion.
type Result struct {
	ExitCode int
}

// Succeeded reports whether the process exited with status zero.
func (r *Result) Succeeded() bool {
	return r.ExitCode == 0
}

// Invoker spawns external processes.
type Invoker struct {
	log logbowl.Logger
}

// NewInvoker creates an Invoker that logs launches through log.
func NewInvoker(log logbowl.Logger) *Invoker {
	return &Invoker{log: log}
}

// Execute starts the process and blocks until it exits. Stdout and stderr
// are drained concurrently so the child never blocks on a full pipe.
func (i *Invoker) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	cmd := exec.CommandContext(ctx, inv.Path, inv.Args...)
	cmd.Dir = inv.Dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLaunch, inv.Path, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLaunch, inv.Path, err)
	}

	i.log.Debug("builder", "execute", "attempt", "Starting process", "command", inv.String(), "dir", inv.Dir)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLaunch, inv.Path, err)
	}

	sink := inv.Sink
	if sink == nil {
		sink = discard{}
	}

	var (
		wg      sync.WaitGroup
		readErr [2]error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		readErr[0] = drain(stdout, sink.Stdout)
	}()
	go func() {
		defer wg.Done()
		readErr[1] = drain(stderr, sink.Stderr)
	}()
	// Pipes must be fully read before Wait closes them.
	wg.Wait()

	waitErr := cmd.Wait()
	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
	case ctx.Err() != nil:
		return nil, fmt.Errorf("%s interrupted: %w", inv.Path, ctx.Err())
	case errors.As(waitErr, &exitErr):
		// Killed by a signal reports -1, which still reads as a failure.
	default:
		return nil, fmt.Errorf("waiting for %s: %w", inv.Path, waitErr)
	}

	if err := errors.Join(readErr[0], readErr[1]); err != nil {
		return nil, fmt.Errorf("reading output of %s: %w", inv.Path, err)
	}

	res := &Result{ExitCode: cmd.ProcessState.ExitCode()}
	i.log.Debug("builder", "execute", "complete", "Process exited", "command", inv.String(), "exitCode", res.ExitCode)
	return res, nil
}

// drain forwards r to emit one line at a time, with no limit on line length.
func drain(r io.Reader, emit func(string)) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			emit(strings.TrimRight(line, "\r\n"))
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

type discard struct{}

func (discard) Stdout(string) {}
func (discard) Stderr(string) {}
