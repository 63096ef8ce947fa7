// Package archive packs a directory tree into a zip file.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

// ToZip writes src into a new zip archive at dst. An existing file at dst
// is removed first, even when src turns out to be unusable. Entries are rooted at the base name of src. With
// keepDirStructure every file keeps its relative path and empty directories
// get their own entry; without it all files are stored flat under the root.
func ToZip(src, dst string, keepDirStructure bool) (err error) {
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", dst, closeErr)
		}
	}()

	zw := zip.NewWriter(out)
	root := filepath.Base(filepath.Clean(src))

	if !info.IsDir() {
		if err := addFile(zw, src, root, info); err != nil {
			return err
		}
		return zw.Close()
	}

	absDst, _ := filepath.Abs(dst)
	walkErr := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if abs, _ := filepath.Abs(p); abs == absDst {
			return nil
		}

		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		name := path.Join(root, filepath.ToSlash(rel))

		if d.IsDir() {
			if !keepDirStructure {
				return nil
			}
			empty, err := isEmptyDir(p)
			if err != nil {
				return err
			}
			if rel == "." && !empty {
				return nil
			}
			if empty {
				_, err = zw.Create(name + "/")
			}
			return err
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if !keepDirStructure {
			name = path.Join(root, d.Name())
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		return addFile(zw, p, name, fi)
	})
	if walkErr != nil {
		_ = zw.Close()
		return fmt.Errorf("zip %s: %w", src, walkErr)
	}
	return zw.Close()
}

func addFile(zw *zip.Writer, src, name string, info fs.FileInfo) error {
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("zip header %s: %w", src, err)
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("zip entry %s: %w", name, err)
	}

	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return nil
}

func isEmptyDir(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}
