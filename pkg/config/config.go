// Package config layers build settings from flags, JET_BUILDER_* environment
// variables, an optional config file and an optional project descriptor,
// highest precedence first.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"jet-tools/go/pkg/archive"
	"jet-tools/go/pkg/logbowl"
	"jet-tools/go/pkg/pipeline"
	"jet-tools/go/pkg/project"
)

const (
	EnvPrefix = "JET_BUILDER"
	AppName   = "jet-builder"
	FileName  = "config.yaml"

	// ProjectBuildDir holds the jar built as <finalName>.jar when no main
	// jar is named.
	ProjectBuildDir = "target"
)

// Setting keys. Each is also a flag name.
const (
	KeyMainClass     = "main-class"
	KeyMainJar       = "main-jar"
	KeyJetHome       = "jet-home"
	KeyOutputDir     = "output-dir"
	KeyOutputName    = "output-name"
	KeyFinalName     = "final-name"
	KeyIcon          = "icon"
	KeyHideConsole   = "hide-console"
	KeyZipOutput     = "zip-output"
	KeyArchiveFormat = "archive-format"
	KeyDependency    = "dependency"
	KeyExclude       = "exclude"
	KeyProject       = "project"
)

// ErrConfig wraps unreadable config files and invalid values.
var ErrConfig = errors.New("invalid configuration")

// RegisterFlags declares the build flags on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(KeyMainClass, "", "Fully qualified main class, e.g. com.example.App.")
	fs.String(KeyMainJar, "", "Path to the application jar (default "+ProjectBuildDir+"/<final-name>.jar).")
	fs.String(KeyJetHome, "", "Excelsior JET installation directory; disables JET_HOME and PATH lookup.")
	fs.String(KeyOutputDir, "", "Output root for build/, app/ and the archive (default "+pipeline.DefaultOutputDir+").")
	fs.String(KeyOutputName, "", "Executable name (default: simple name of the main class).")
	fs.String(KeyFinalName, "", "Archive base name (default: main jar name without extension).")
	fs.String(KeyIcon, "", "Windows .ico file for the executable (default "+pipeline.DefaultIcon+").")
	fs.Bool(KeyHideConsole, false, "Hide the console window of the Windows executable.")
	fs.Bool(KeyZipOutput, true, "Archive the package directory when the build finishes.")
	fs.String(KeyArchiveFormat, string(archive.FormatZip), "Archive format: zip or tar.zst.")
	fs.StringSlice(KeyDependency, nil, "Runtime dependency path or glob; repeatable.")
	fs.StringSlice(KeyExclude, nil, "Glob of dependencies to leave out; repeatable.")
	fs.String(KeyProject, "", "Project descriptor (YAML) to read defaults from.")
}

// Loader resolves settings through viper.
type Loader struct {
	log logbowl.Logger
	v   *viper.Viper
}

// New creates a Loader reading JET_BUILDER_* variables.
func New(log logbowl.Logger) *Loader {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault(KeyZipOutput, true)
	v.SetDefault(KeyArchiveFormat, string(archive.FormatZip))
	return &Loader{log: log, v: v}
}

// BindFlags makes explicitly set flags take precedence over every other
// source. Unset flags contribute their defaults at the lowest precedence.
func (l *Loader) BindFlags(fs *pflag.FlagSet) error {
	return l.v.BindPFlags(fs)
}

// ReadFile loads the config file. An explicit path must exist; otherwise
// jet-builder/config.yaml is looked up in the XDG config directories and
// its absence is not an error.
func (l *Loader) ReadFile(explicit string) error {
	path := explicit
	if path == "" {
		found, err := xdg.SearchConfigFile(filepath.Join(AppName, FileName))
		if err != nil {
			l.log.Debug("config", "load", "skip", "No config file found", "name", filepath.Join(AppName, FileName))
			return nil
		}
		path = found
	} else {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrConfig, err)
		}
		path = expanded
	}

	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConfig, path, err)
	}
	l.log.Debug("config", "load", "success", "Config file loaded", "path", path)
	return nil
}

// JetHome returns the expanded toolchain override.
func (l *Loader) JetHome() (string, error) {
	return l.path(KeyJetHome)
}

// Build assembles the pipeline configuration. Values from flags,
// environment or config file win over the project descriptor; descriptor
// dependencies come before those given directly.
func (l *Loader) Build() (pipeline.Config, error) {
	var cfg pipeline.Config

	desc, err := l.descriptor()
	if err != nil {
		return cfg, err
	}

	for key, dst := range map[string]*string{
		KeyMainJar:   &cfg.MainJar,
		KeyJetHome:   &cfg.JetHome,
		KeyOutputDir: &cfg.OutputDir,
		KeyIcon:      &cfg.Icon,
	} {
		if *dst, err = l.path(key); err != nil {
			return cfg, err
		}
	}
	cfg.MainClass = l.v.GetString(KeyMainClass)
	cfg.OutputName = l.v.GetString(KeyOutputName)
	cfg.FinalName = l.v.GetString(KeyFinalName)
	cfg.HideConsole = l.v.GetBool(KeyHideConsole)
	cfg.ZipOutput = l.v.GetBool(KeyZipOutput)

	format, err := archive.ParseFormat(l.v.GetString(KeyArchiveFormat))
	if err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	cfg.ArchiveFormat = format

	patterns := l.v.GetStringSlice(KeyDependency)
	excludes := l.v.GetStringSlice(KeyExclude)
	for i, p := range patterns {
		if patterns[i], err = homedir.Expand(p); err != nil {
			return cfg, fmt.Errorf("%w: %w", ErrConfig, err)
		}
	}

	baseDir := ""
	if desc != nil {
		baseDir = desc.Dir
		cfg.MainClass = firstNonEmpty(cfg.MainClass, desc.MainClass)
		cfg.MainJar = firstNonEmpty(cfg.MainJar, desc.MainJar)
		cfg.FinalName = firstNonEmpty(cfg.FinalName, desc.FinalName)
		patterns = append(append([]string(nil), desc.Dependencies...), patterns...)
		excludes = append(append([]string(nil), desc.Exclude...), excludes...)
	}
	if cfg.MainJar == "" && cfg.FinalName != "" {
		cfg.MainJar = filepath.Join(baseDir, ProjectBuildDir, cfg.FinalName+".jar")
	}
	cfg.OutputDir = firstNonEmpty(cfg.OutputDir, filepath.Join(baseDir, pipeline.DefaultOutputDir))
	cfg.Icon = firstNonEmpty(cfg.Icon, filepath.Join(baseDir, pipeline.DefaultIcon))

	if cfg.Dependencies, err = project.ExpandDependencies(l.log, patterns, excludes); err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return cfg, nil
}

func (l *Loader) descriptor() (*project.Descriptor, error) {
	path, err := l.path(KeyProject)
	if err != nil || path == "" {
		return nil, err
	}
	d, err := project.Load(path)
	if err != nil {
		return nil, err
	}
	l.log.Debug("config", "load", "success", "Project descriptor loaded", "path", path)
	return d, nil
}

func (l *Loader) path(key string) (string, error) {
	p, err := homedir.Expand(l.v.GetString(key))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrConfig, key, err)
	}
	return p, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
