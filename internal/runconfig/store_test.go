package runconfig

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestReadLinesMissingFile(t *testing.T) {
	t.Parallel()

	lines, err := ReadLines(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected no lines, got %v", lines)
	}
}

func TestReadLinesHandlesCRLF(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.config")
	writeFile(t, path, "a=1\r\n#c\r\nb=2")

	lines, err := ReadLines(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"a=1", "#c", "b=2"}
	if !slices.Equal(lines, want) {
		t.Fatalf("expected %v, got %v", want, lines)
	}
}

func TestUpdateRewritesAndBacksUp(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "run.config")
	backup := filepath.Join(dir, "output", ".run.config")
	writeFile(t, path, "# chain\nchain_id=1\n\ngroup_id=1\n")

	store := NewFileStore(path, backup)
	if err := store.Update(map[string]string{KeyChainID: "101"}); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	want := "# chain\nchain_id=101\n\ngroup_id=1\n"
	if got := readFile(t, path); got != want {
		t.Fatalf("expected primary %q, got %q", want, got)
	}
	if got := readFile(t, backup); got != want {
		t.Fatalf("expected backup to equal primary, got %q", got)
	}
}

func TestUpdateMissingPrimaryCreatesEmptyFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "run.config")
	backup := filepath.Join(dir, "output", ".run.config")

	store := NewFileStore(path, backup)
	if err := store.Update(map[string]string{KeyChainID: "101"}); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if got := readFile(t, path); got != "" {
		t.Fatalf("expected empty primary, got %q", got)
	}
	if got := readFile(t, backup); got != "" {
		t.Fatalf("expected empty backup, got %q", got)
	}
}

func TestUpdateOverwritesStaleBackup(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "run.config")
	backup := filepath.Join(dir, ".run.config")
	writeFile(t, path, "org_id=a\n")
	writeFile(t, backup, "org_id=stale\nextra=1\n")

	store := NewFileStore(path, backup)
	if err := store.Update(map[string]string{KeyOrgID: "b"}); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if got := readFile(t, backup); got != "org_id=b\n" {
		t.Fatalf("unexpected backup content %q", got)
	}
}
