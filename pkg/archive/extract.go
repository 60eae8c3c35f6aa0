package archive

import (
	"archive/tar"
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/valyala/gozstd"
)

// Entry describes one file stored in an archive.
type Entry struct {
	Name string
	Mode fs.FileMode
	Size int64
}

// Executable reports whether any execute bit is set.
func (e Entry) Executable() bool { return e.Mode.Perm()&0111 != 0 }

// DetectFormat picks the format from the file name.
func DetectFormat(path string) (Format, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, FormatTarZst.Ext()), strings.HasSuffix(lower, ".tzst"):
		return FormatTarZst, nil
	case strings.HasSuffix(lower, FormatZip.Ext()):
		return FormatZip, nil
	default:
		return "", fmt.Errorf("%w: cannot tell the format of %s", ErrArchive, path)
	}
}

// List returns the regular-file entries of an archive in stored order.
func List(path string) ([]Entry, error) {
	var entries []Entry
	err := each(path, func(e Entry, _ io.Reader) error {
		entries = append(entries, e)
		return nil
	})
	return entries, err
}

// Extract unpacks an archive into dest and returns the names written.
// Entries resolving outside dest are rejected.
func Extract(path, dest string) ([]string, error) {
	root := filepath.Clean(dest)
	var names []string
	err := each(path, func(e Entry, r io.Reader) error {
		target := filepath.Join(root, filepath.FromSlash(e.Name))
		if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
			return fmt.Errorf("entry %q escapes %s", e.Name, dest)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, e.Mode.Perm())
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, r); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		names = append(names, e.Name)
		return nil
	})
	return names, err
}

// each calls fn for every regular file in the archive at path.
func each(path string, fn func(Entry, io.Reader) error) error {
	format, err := DetectFormat(path)
	if err != nil {
		return err
	}
	switch format {
	case FormatTarZst:
		err = eachTarZst(path, fn)
	default:
		err = eachZip(path, fn)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrArchive, path, err)
	}
	return nil
}

func eachZip(path string, fn func(Entry, io.Reader) error) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		mode := f.Mode().Perm()
		if mode == 0 {
			// No Unix attributes were stored.
			mode = 0644
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		err = fn(Entry{Name: f.Name, Mode: mode, Size: int64(f.UncompressedSize64)}, rc)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func eachTarZst(path string, fn func(Entry, io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	zr := gozstd.NewReader(f)
	defer zr.Release()
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if err := fn(Entry{Name: hdr.Name, Mode: fs.FileMode(hdr.Mode).Perm(), Size: hdr.Size}, tr); err != nil {
			return err
		}
	}
}
