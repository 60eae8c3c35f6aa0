package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"

	"jet-tools/go/pkg/archive"
	"jet-tools/go/pkg/logbowl"
	"jet-tools/go/pkg/pipeline"
	"jet-tools/go/pkg/project"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoader(t *testing.T, args ...string) *Loader {
	t.Helper()
	fs := pflag.NewFlagSet("build", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	l := New(logbowl.Discard())
	require.NoError(t, l.BindFlags(fs))
	return l
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestBuildDefaults(t *testing.T) {
	cfg, err := newLoader(t, "--main-class", "com.example.App", "--main-jar", "target/app.jar").Build()
	require.NoError(t, err)

	assert.Equal(t, "com.example.App", cfg.MainClass)
	assert.Equal(t, "target/app.jar", cfg.MainJar)
	assert.Equal(t, pipeline.DefaultOutputDir, cfg.OutputDir)
	assert.Equal(t, pipeline.DefaultIcon, cfg.Icon)
	assert.True(t, cfg.ZipOutput)
	assert.False(t, cfg.HideConsole)
	assert.Equal(t, archive.FormatZip, cfg.ArchiveFormat)
	assert.Empty(t, cfg.Dependencies)
	assert.Empty(t, cfg.JetHome)
}

func TestEnvironmentAndFlagPrecedence(t *testing.T) {
	t.Setenv("JET_BUILDER_MAIN_CLASS", "com.env.Main")
	t.Setenv("JET_BUILDER_ZIP_OUTPUT", "false")
	t.Setenv("JET_BUILDER_OUTPUT_NAME", "FromEnv")

	cfg, err := newLoader(t, "--output-name", "FromFlag").Build()
	require.NoError(t, err)

	assert.Equal(t, "com.env.Main", cfg.MainClass)
	assert.False(t, cfg.ZipOutput)
	assert.Equal(t, "FromFlag", cfg.OutputName)
}

func TestReadExplicitFile(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "jet.yaml"), `
main-class: com.file.Main
output-dir: /srv/out
hide-console: true
archive-format: tar.zst
`)
	l := newLoader(t, "--output-dir", "/cli/out")
	require.NoError(t, l.ReadFile(path))

	cfg, err := l.Build()
	require.NoError(t, err)
	assert.Equal(t, "com.file.Main", cfg.MainClass)
	assert.Equal(t, "/cli/out", cfg.OutputDir)
	assert.True(t, cfg.HideConsole)
	assert.Equal(t, archive.FormatTarZst, cfg.ArchiveFormat)
}

func TestReadExplicitFileMissing(t *testing.T) {
	err := newLoader(t).ReadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestReadMalformedFile(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "bad.yaml"), "main-class: [oops\n")

	err := newLoader(t).ReadFile(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestReadFileFromXDG(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("XDG_CONFIG_DIRS", filepath.Join(home, "none"))
	xdg.Reload()
	t.Cleanup(xdg.Reload)

	l := newLoader(t)
	require.NoError(t, l.ReadFile(""), "missing default file is not an error")

	writeFile(t, filepath.Join(home, AppName, FileName), "final-name: from-xdg\n")
	require.NoError(t, l.ReadFile(""))
	cfg, err := l.Build()
	require.NoError(t, err)
	assert.Equal(t, "from-xdg", cfg.FinalName)
}

func TestBuildMergesDescriptor(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "target", "lib", "b.jar"), "b")
	writeFile(t, filepath.Join(dir, "target", "lib", "a.jar"), "a")
	writeFile(t, filepath.Join(dir, "target", "lib", "a-tests.jar"), "t")
	extra := writeFile(t, filepath.Join(t.TempDir(), "extra.jar"), "x")
	desc := writeFile(t, filepath.Join(dir, "jet-project.yaml"), `
mainClass: com.example.App
mainJar: target/app-1.0.jar
finalName: app-1.0
dependencies:
  - target/lib/*.jar
exclude:
  - "*-tests.jar"
`)

	cfg, err := newLoader(t,
		"--project", desc,
		"--main-class", "com.example.Other",
		"--dependency", extra,
	).Build()
	require.NoError(t, err)

	assert.Equal(t, "com.example.Other", cfg.MainClass)
	assert.Equal(t, filepath.Join(dir, "target", "app-1.0.jar"), cfg.MainJar)
	assert.Equal(t, "app-1.0", cfg.FinalName)
	assert.Equal(t, filepath.Join(dir, pipeline.DefaultOutputDir), cfg.OutputDir)
	assert.Equal(t, filepath.Join(dir, pipeline.DefaultIcon), cfg.Icon)
	assert.Equal(t, []string{
		filepath.Join(dir, "target", "lib", "a.jar"),
		filepath.Join(dir, "target", "lib", "b.jar"),
		extra,
	}, cfg.Dependencies)
}

func TestBuildDerivesMainJarFromFinalName(t *testing.T) {
	dir := t.TempDir()
	desc := writeFile(t, filepath.Join(dir, "jet-project.yaml"), `
mainClass: com.example.App
finalName: app-2.0
`)

	cfg, err := newLoader(t, "--project", desc).Build()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ProjectBuildDir, "app-2.0.jar"), cfg.MainJar)

	cfg, err = newLoader(t, "--project", desc, "--main-jar", "/explicit/app.jar").Build()
	require.NoError(t, err)
	assert.Equal(t, "/explicit/app.jar", cfg.MainJar)
}

func TestBuildMissingDescriptor(t *testing.T) {
	_, err := newLoader(t, "--project", filepath.Join(t.TempDir(), "nope.yaml")).Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, project.ErrDescriptor)
}

func TestBuildExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })

	l := newLoader(t, "--jet-home", "~/jet", "--output-dir", "~/out")
	cfg, err := l.Build()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "jet"), cfg.JetHome)
	assert.Equal(t, filepath.Join(home, "out"), cfg.OutputDir)

	jetHome, err := l.JetHome()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "jet"), jetHome)
}

func TestBuildRejectsUnknownArchiveFormat(t *testing.T) {
	_, err := newLoader(t, "--archive-format", "rar").Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
}
