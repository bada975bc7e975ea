package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDailyFileWriter_WritesDatedFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writer := NewDailyFileWriter(dir, "worker")
	writer.now = func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	defer func() { _ = writer.Close() }()

	if _, err := writer.Write([]byte("first line\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := writer.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dir, "worker-2026-03-01.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if string(content) != "first line\n" {
		t.Fatalf("content = %q", content)
	}
}

func TestDailyFileWriter_RotatesOnDateChange(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writer := NewDailyFileWriter(dir, "worker")
	current := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	writer.now = func() time.Time { return current }
	defer func() { _ = writer.Close() }()

	if _, err := writer.Write([]byte("before midnight\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	current = current.Add(2 * time.Minute)
	if _, err := writer.Write([]byte("after midnight\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	for name, want := range map[string]string{
		"worker-2026-03-01.log": "before midnight\n",
		"worker-2026-03-02.log": "after midnight\n",
	} {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(content) != want {
			t.Fatalf("%s content = %q, want %q", name, content, want)
		}
	}
}

func TestDailyFileWriter_DefaultPrefix(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writer := NewDailyFileWriter(dir, "")
	writer.now = func() time.Time {
		return time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	}
	defer func() { _ = writer.Close() }()

	if _, err := writer.Write([]byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "import-2026-03-01.log")); err != nil {
		t.Fatalf("expected import-prefixed file: %v", err)
	}
}
