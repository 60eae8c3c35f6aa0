package pipeline

import (
	"errors"
	"fmt"
)

// Kind tags the cause of a failed build.
type Kind int

const (
	KindNone Kind = iota
	KindPrerequisite
	KindProcessLaunch
	KindCompilation
	KindPackaging
	KindStaging
	KindArchive
	KindDirectoryCreate
)

var kindNames = [...]string{
	KindNone:            "none",
	KindPrerequisite:    "prerequisite",
	KindProcessLaunch:   "process launch",
	KindCompilation:     "compilation",
	KindPackaging:       "packaging",
	KindStaging:         "staging",
	KindArchive:         "archive",
	KindDirectoryCreate: "directory create",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

var (
	ErrNoEntryPoint  = errors.New("entry point is not set")
	ErrNoArtifact    = errors.New("primary artifact not found")
	ErrNonZeroExit   = errors.New("tool exited with non-zero status")
	ErrInvalidConfig = errors.New("invalid build configuration")
)

// Failure is the single error a build run returns. Stage is the state the
// pipeline was trying to enter when it failed.
type Failure struct {
	Stage State
	Kind  Kind
	Path  string
	Err   error
}

func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	msg := fmt.Sprintf("%s failure entering %s", f.Kind, f.Stage)
	if f.Path != "" {
		msg += " (" + f.Path + ")"
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Err }

// KindOf returns the failure kind carried by err, or KindNone.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindNone
}

func fail(stage State, kind Kind, path string, err error) *Failure {
	return &Failure{Stage: stage, Kind: kind, Path: path, Err: err}
}
