package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/InkyQuill/sedx/pkg/sandbox"
	"github.com/InkyQuill/sedx/pkg/testutil"
)

func TestWriteFileAtomicCommitsContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	if err := WriteFileAtomic(path, []byte("hello"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading committed file: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("got %q, want %q", string(data), "hello")
	}
}

func TestWriteFileAtomicLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	if err := WriteFileAtomic(path, []byte("hello"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "out.txt" {
		t.Fatalf("expected only out.txt in %s, got %v", dir, entries)
	}
}

func TestWriteFileAtomicOverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	if err := os.WriteFile(path, []byte("old"), 0644); err != nil {
		t.Fatalf("seeding fixture: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("new"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading committed file: %v", err)
	}
	if string(data) != "new" {
		t.Fatalf("got %q, want %q", string(data), "new")
	}
}

func TestDiskUsageReportsNonzeroTotals(t *testing.T) {
	free, total, err := DiskUsage(t.TempDir())
	if err != nil {
		t.Fatalf("DiskUsage: %v", err)
	}
	if total == 0 {
		t.Fatal("expected a nonzero total byte count for the temp dir's filesystem")
	}
	if free > total {
		t.Fatalf("free bytes %d exceeds total bytes %d", free, total)
	}
}

func TestCopyFilePreservesContentAndMode(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	if err := os.WriteFile(src, []byte("payload"), 0640); err != nil {
		t.Fatalf("seeding fixture: %v", err)
	}
	if err := CopyFile(src, dst, true); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("reading copy: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("got %q, want %q", string(data), "payload")
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0640 {
		t.Fatalf("got mode %v, want %v", info.Mode().Perm(), os.FileMode(0640))
	}
}

func TestReadFileDeniedOutsideSandbox(t *testing.T) {
	allowed := testutil.SandboxedTempDir(t)
	outside := t.TempDir()
	outsideFile := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(outsideFile, []byte("secret"), 0644); err != nil {
		t.Fatalf("seeding fixture: %v", err)
	}

	if _, err := ReadFile(outsideFile); !errors.Is(err, sandbox.ErrAccessDenied) {
		t.Fatalf("got %v, want sandbox.ErrAccessDenied", err)
	}

	insideFile := filepath.Join(allowed, "ok.txt")
	if err := WriteFile(insideFile, []byte("ok"), 0644); err != nil {
		t.Fatalf("expected write inside the sandbox to succeed, got %v", err)
	}
}
