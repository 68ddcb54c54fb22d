package backup

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("writing fixture %s: %v", p, err)
	}
	return p
}

func TestCreateAndListBackup(t *testing.T) {
	root := t.TempDir()
	dataDir := t.TempDir()
	f1 := writeTemp(t, dataDir, "a.txt", "hello\n")
	f2 := writeTemp(t, dataDir, "b.txt", "world\n")

	s := New(root)
	s.DiskUsage = func(string) (uint64, uint64, error) { return 1 << 40, 1 << 40, nil }

	id, warnings, err := s.CreateBackup("s/hello/bye/", []string{f1, f2})
	if err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	if id == "" {
		t.Fatal("expected non-empty backup id")
	}

	list, err := s.ListBackups()
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 backup, got %d", len(list))
	}
	if list[0].FileCount != 2 {
		t.Fatalf("expected 2 files in manifest, got %d", list[0].FileCount)
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	dataDir := t.TempDir()
	f1 := writeTemp(t, dataDir, "a.txt", "hello\n")

	s := New(root)
	s.DiskUsage = func(string) (uint64, uint64, error) { return 1 << 40, 1 << 40, nil }

	id, _, err := s.CreateBackup("s/hello/bye/", []string{f1})
	if err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}

	if err := os.WriteFile(f1, []byte("bye\n"), 0644); err != nil {
		t.Fatalf("mutating fixture: %v", err)
	}

	res, err := s.Restore(id)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if len(res.Failed) != 0 {
		t.Fatalf("expected no restore failures, got %v", res.Failed)
	}
	if len(res.Restored) != 1 {
		t.Fatalf("expected 1 restored file, got %d", len(res.Restored))
	}

	data, err := os.ReadFile(f1)
	if err != nil {
		t.Fatalf("reading restored file: %v", err)
	}
	if string(data) != "hello\n" {
		t.Fatalf("expected restored content %q, got %q", "hello\n", string(data))
	}
}

func TestCreateBackupDiskSpaceError(t *testing.T) {
	root := t.TempDir()
	dataDir := t.TempDir()
	f1 := writeTemp(t, dataDir, "a.txt", "hello\n")

	s := New(root)
	s.Policy.MaxDiskUsagePercent = 1.0
	s.DiskUsage = func(string) (uint64, uint64, error) { return 1, 1000, nil }

	_, _, err := s.CreateBackup("s/hello/bye/", []string{f1})
	if err == nil {
		t.Fatal("expected a disk-space error")
	}
}

func TestPruneKeepsNewest(t *testing.T) {
	root := t.TempDir()
	dataDir := t.TempDir()
	f1 := writeTemp(t, dataDir, "a.txt", "hello\n")

	s := New(root)
	s.DiskUsage = func(string) (uint64, uint64, error) { return 1 << 40, 1 << 40, nil }

	var ids []string
	for i := 0; i < 3; i++ {
		id, _, err := s.CreateBackup("noop", []string{f1})
		if err != nil {
			t.Fatalf("CreateBackup %d: %v", i, err)
		}
		ids = append(ids, id)
	}

	removed, err := s.Prune(1)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed backups, got %d: %v", len(removed), removed)
	}

	list, err := s.ListBackups()
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 remaining backup, got %d", len(list))
	}
	if list[0].ID != ids[len(ids)-1] {
		t.Fatalf("expected newest backup %s to survive, got %s", ids[len(ids)-1], list[0].ID)
	}
}

func TestShowBackupMissingIsCorruption(t *testing.T) {
	root := t.TempDir()
	s := New(root)
	if _, err := s.ShowBackup("nonexistent"); err == nil {
		t.Fatal("expected an error for a missing backup id")
	}
}

func TestListBackupsOnEmptyStoreRoot(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "does-not-exist-yet"))
	list, err := s.ListBackups()
	if err != nil {
		t.Fatalf("ListBackups on absent root: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected zero backups, got %d", len(list))
	}
}
