// Package archive packs a directory tree into a single portable file.
//
// Only regular files become entries, named by their slash-separated path
// relative to the source root; directories are implied by those paths. On
// Unix hosts a file with any execute bit set is stored with mode 0777 so it
// stays runnable after extraction. A partially written archive is left in
// place when an error occurs.
package archive

import (
	"archive/tar"
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/valyala/gozstd"

	"jet-tools/go/pkg/logbowl"
)

// ErrArchive wraps every failure while writing an archive.
var ErrArchive = errors.New("archive failed")

// Format selects the archive container.
type Format string

const (
	FormatZip    Format = "zip"
	FormatTarZst Format = "tar.zst"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatZip:
		return FormatZip, nil
	case FormatTarZst, "tzst":
		return FormatTarZst, nil
	default:
		return "", fmt.Errorf("unknown archive format %q (want %s or %s)", s, FormatZip, FormatTarZst)
	}
}

// Ext returns the file extension including the leading dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// executableMode is stored for executable files.
const executableMode fs.FileMode = 0777

// unixPermissions reports whether the host models Unix permission bits.
var unixPermissions = runtime.GOOS != "windows" && runtime.GOOS != "plan9"

// Builder writes archives.
type Builder struct {
	log    logbowl.Logger
	format Format
}

// New creates a Builder for the given format.
func New(log logbowl.Logger, format Format) *Builder {
	return &Builder{log: log, format: format}
}

// Create packs sourceDir into outputFile.
func (b *Builder) Create(sourceDir, outputFile string) error {
	out, err := os.OpenFile(outputFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrArchive, err)
	}
	defer out.Close()

	var count int
	switch b.format {
	case FormatTarZst:
		count, err = writeTarZst(out, sourceDir)
	default:
		count, err = writeZip(out, sourceDir)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrArchive, outputFile, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrArchive, outputFile, err)
	}

	b.log.Info("archive", "pack", "success", "Archive written", "path", outputFile, "format", string(b.format), "files", count)
	return nil
}

// file is a regular file found under the source root.
type file struct {
	path string
	name string
	info fs.FileInfo
}

func (f file) executable() bool {
	return unixPermissions && f.info.Mode().Perm()&0111 != 0
}

// walk visits regular files under root in lexical order.
func walk(root string, visit func(file) error) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		count++
		return visit(file{path: path, name: filepath.ToSlash(rel), info: info})
	})
	return count, err
}

func writeZip(w io.Writer, root string) (int, error) {
	zw := zip.NewWriter(w)
	count, err := walk(root, func(f file) error {
		hdr := &zip.FileHeader{
			Name:     f.name,
			Method:   zip.Deflate,
			Modified: f.info.ModTime(),
		}
		if f.executable() {
			hdr.SetMode(executableMode)
		}
		entry, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		return copyInto(entry, f.path)
	})
	if err != nil {
		return count, err
	}
	return count, zw.Close()
}

func writeTarZst(w io.Writer, root string) (int, error) {
	zw := gozstd.NewWriter(w)
	defer zw.Release()
	tw := tar.NewWriter(zw)

	count, err := walk(root, func(f file) error {
		hdr, err := tar.FileInfoHeader(f.info, "")
		if err != nil {
			return err
		}
		hdr.Name = f.name
		if f.executable() {
			hdr.Mode = int64(executableMode)
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		return copyInto(tw, f.path)
	})
	if err != nil {
		return count, err
	}
	if err := tw.Close(); err != nil {
		return count, err
	}
	return count, zw.Close()
}

func copyInto(w io.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()
	_, err = io.Copy(w, in)
	return err
}
