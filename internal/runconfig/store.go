package runconfig

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const filePerm = 0o644

// Storage provides line-level access to the run.config file and its backup.
type Storage interface {
	ReadLines() ([]string, error)
	ReadBackupLines() ([]string, error)
	Update(updates map[string]string) error
}

// FileStore keeps run.config on disk. Writes truncate the primary file and
// then copy it over the backup; neither step is atomic and concurrent
// writers are not coordinated.
type FileStore struct {
	path       string
	backupPath string
}

// NewFileStore returns a store for the primary file at path whose backup
// lives at backupPath.
func NewFileStore(path, backupPath string) *FileStore {
	return &FileStore{
		path:       path,
		backupPath: backupPath,
	}
}

// ReadLines returns the lines of the primary file. A missing file reads as
// zero lines.
func (s *FileStore) ReadLines() ([]string, error) {
	return ReadLines(s.path)
}

// ReadBackupLines returns the lines of the backup file. A missing backup
// reads as zero lines.
func (s *FileStore) ReadBackupLines() ([]string, error) {
	return ReadLines(s.backupPath)
}

// Update rewrites the values of the given keys in the primary file and then
// refreshes the backup.
func (s *FileStore) Update(updates map[string]string) error {
	lines, err := s.ReadLines()
	if err != nil {
		return err
	}

	if err := WriteLines(s.path, Rewrite(lines, updates)); err != nil {
		return err
	}

	return s.Backup()
}

// Backup copies the primary file over the backup unconditionally.
func (s *FileStore) Backup() error {
	if err := CopyFile(s.path, s.backupPath); err != nil {
		return fmt.Errorf("backup %s: %w", s.path, err)
	}
	return nil
}

// ReadLines reads path into its lines, without line terminators. Both "\n"
// and "\r\n" endings are accepted. A missing file yields no lines and no
// error.
func ReadLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	return lines, nil
}

// WriteLines truncates path and writes every line followed by "\n".
func WriteLines(path string, lines []string) error {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(b.String()), filePerm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// CopyFile replaces dst with the contents of src, creating the parent
// directory of dst when needed.
func CopyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}

	if dir := filepath.Dir(dst); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(dst, data, filePerm); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}
