// Package project reads the description of what to build: the entry point,
// the primary artifact and the runtime dependencies.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrDescriptor is returned for unreadable or malformed descriptors.
var ErrDescriptor = errors.New("invalid project descriptor")

// Descriptor is the on-disk project file.
type Descriptor struct {
	MainClass    string   `yaml:"mainClass"`
	MainJar      string   `yaml:"mainJar"`
	FinalName    string   `yaml:"finalName"`
	Dependencies []string `yaml:"dependencies"`
	Exclude      []string `yaml:"exclude"`

	// Dir is the directory the descriptor was loaded from.
	Dir string `yaml:"-"`
}

// Load parses the descriptor at path. Relative MainJar, dependency and
// path-shaped exclude patterns are resolved against the descriptor's
// directory.
func Load(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDescriptor, err)
	}

	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDescriptor, path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDescriptor, err)
	}
	d.Dir = filepath.Dir(abs)
	d.MainJar = d.resolve(d.MainJar)
	for i, dep := range d.Dependencies {
		d.Dependencies[i] = d.resolve(dep)
	}
	for i, ex := range d.Exclude {
		if strings.Contains(filepath.ToSlash(ex), "/") {
			d.Exclude[i] = d.resolve(ex)
		}
	}
	return &d, nil
}

func (d *Descriptor) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(d.Dir, p)
}
