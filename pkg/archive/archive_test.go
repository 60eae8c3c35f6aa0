package archive

import (
	"archive/tar"
	"archive/zip"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/valyala/gozstd"

	"jet-tools/go/pkg/logbowl"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// appTree lays out a package directory shaped like packager output.
func appTree(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "app")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "rt", "bin"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "empty"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "App"), []byte("#!/bin/sh\necho app\n"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rt", "bin", "jvm.dll"), []byte("runtime"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("hello"), 0644))
	return dir
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatZip, f)

	f, err = ParseFormat(" ZIP ")
	require.NoError(t, err)
	assert.Equal(t, FormatZip, f)

	f, err = ParseFormat("tar.zst")
	require.NoError(t, err)
	assert.Equal(t, FormatTarZst, f)
	assert.Equal(t, ".tar.zst", f.Ext())

	_, err = ParseFormat("rar")
	assert.Error(t, err)
}

func TestZipEntries(t *testing.T) {
	dir := appTree(t)
	out := filepath.Join(t.TempDir(), "app-1.0.zip")

	require.NoError(t, New(logbowl.Discard(), FormatZip).Create(dir, out))

	zr, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer zr.Close()

	contents := map[string]string{}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		contents[f.Name] = string(data)

		if runtime.GOOS != "windows" {
			if f.Name == "App" {
				assert.Equal(t, os.FileMode(0777), f.Mode().Perm(), "executable mode")
			} else {
				assert.Zero(t, f.Mode().Perm()&0111, "%s must not be executable", f.Name)
			}
		}
	}

	assert.Equal(t, []string{"App", "readme.txt", "rt/bin/jvm.dll"}, names)
	assert.Equal(t, "runtime", contents["rt/bin/jvm.dll"])
	assert.Equal(t, "hello", contents["readme.txt"])
}

func TestZipEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(t.TempDir(), "empty.zip")

	require.NoError(t, New(logbowl.Discard(), FormatZip).Create(dir, out))

	zr, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer zr.Close()
	assert.Empty(t, zr.File)
}

func TestCreateUnwritableOutput(t *testing.T) {
	dir := appTree(t)
	out := filepath.Join(t.TempDir(), "missing", "app.zip")

	err := New(logbowl.Discard(), FormatZip).Create(dir, out)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrArchive)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestCreateMissingSource(t *testing.T) {
	out := filepath.Join(t.TempDir(), "app.zip")

	err := New(logbowl.Discard(), FormatZip).Create(filepath.Join(t.TempDir(), "nope"), out)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrArchive)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestTarZstEntries(t *testing.T) {
	dir := appTree(t)
	out := filepath.Join(t.TempDir(), "app-1.0.tar.zst")

	require.NoError(t, New(logbowl.Discard(), FormatTarZst).Create(dir, out))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	zr := gozstd.NewReader(f)
	defer zr.Release()
	tr := tar.NewReader(zr)

	modes := map[string]int64{}
	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, byte(tar.TypeReg), hdr.Typeflag)
		names = append(names, hdr.Name)
		modes[hdr.Name] = hdr.Mode
		if hdr.Name == "readme.txt" {
			data, err := io.ReadAll(tr)
			require.NoError(t, err)
			assert.Equal(t, "hello", string(data))
		}
	}

	sort.Strings(names)
	assert.Equal(t, []string{"App", "readme.txt", "rt/bin/jvm.dll"}, names)
	if runtime.GOOS != "windows" {
		assert.Equal(t, int64(0777), modes["App"])
		assert.Equal(t, int64(0644), modes["readme.txt"]&0777)
	}
}

func TestExtractRoundTripKeepsExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no executable bit on windows")
	}
	for _, format := range []Format{FormatZip, FormatTarZst} {
		t.Run(string(format), func(t *testing.T) {
			dir := appTree(t)
			out := filepath.Join(t.TempDir(), "app"+format.Ext())
			require.NoError(t, New(logbowl.Discard(), format).Create(dir, out))

			dest := t.TempDir()
			names, err := Extract(out, dest)
			require.NoError(t, err)
			sort.Strings(names)
			assert.Equal(t, []string{"App", "readme.txt", "rt/bin/jvm.dll"}, names)

			info, err := os.Stat(filepath.Join(dest, "App"))
			require.NoError(t, err)
			assert.NotZero(t, info.Mode()&0111, "App must stay executable")

			data, err := os.ReadFile(filepath.Join(dest, "rt", "bin", "jvm.dll"))
			require.NoError(t, err)
			assert.Equal(t, "runtime", string(data))
		})
	}
}

func TestListReportsModes(t *testing.T) {
	dir := appTree(t)
	out := filepath.Join(t.TempDir(), "app.tar.zst")
	require.NoError(t, New(logbowl.Discard(), FormatTarZst).Create(dir, out))

	entries, err := List(out)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	byName := map[string]Entry{}
	for _, e := range entries {
		byName[e.Name] = e
	}
	assert.Equal(t, int64(5), byName["readme.txt"].Size)
	if runtime.GOOS != "windows" {
		assert.True(t, byName["App"].Executable())
		assert.False(t, byName["readme.txt"].Executable())
	}
}

func TestExtractRejectsEscapingEntries(t *testing.T) {
	out := filepath.Join(t.TempDir(), "evil.zip")
	f, err := os.Create(out)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("../escaped.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	dest := filepath.Join(t.TempDir(), "dest")
	_, err = Extract(out, dest)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrArchive)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(dest), "escaped.txt"))
}

func TestDetectFormat(t *testing.T) {
	f, err := DetectFormat("/out/App-1.0.ZIP")
	require.NoError(t, err)
	assert.Equal(t, FormatZip, f)

	f, err = DetectFormat("app.tar.zst")
	require.NoError(t, err)
	assert.Equal(t, FormatTarZst, f)

	_, err = DetectFormat("app.tgz")
	assert.ErrorIs(t, err, ErrArchive)
}
