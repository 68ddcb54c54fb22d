package sedxconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, warnings, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	want := Default()
	if cfg != want {
		t.Fatalf("expected defaults %+v, got %+v", want, cfg)
	}
}

func TestLoadAppliesDefaultsForMissingKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := "[backup]\nretention_count = 10\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backup.RetentionCount != 10 {
		t.Fatalf("expected retention_count 10, got %d", cfg.Backup.RetentionCount)
	}
	if cfg.Backup.MaxSizeGB != 2.0 {
		t.Fatalf("expected default max_size_gb 2.0, got %v", cfg.Backup.MaxSizeGB)
	}
	if cfg.Compatibility.Mode != ModePCRE {
		t.Fatalf("expected default mode pcre, got %v", cfg.Compatibility.Mode)
	}
	if cfg.Processing.ContextLines != 2 {
		t.Fatalf("expected default context_lines 2, got %d", cfg.Processing.ContextLines)
	}
	if !cfg.Sandbox.Enabled {
		t.Fatal("expected default sandbox.enabled true")
	}
}

func TestLoadAppliesExtraAllowedPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := "[sandbox]\nenabled = false\nextra_allowed_paths = [\"/srv/shared\"]\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sandbox.Enabled {
		t.Fatal("expected sandbox.enabled to be overridden to false")
	}
	if len(cfg.Sandbox.ExtraAllowedPaths) != 1 || cfg.Sandbox.ExtraAllowedPaths[0] != "/srv/shared" {
		t.Fatalf("got ExtraAllowedPaths %v, want [/srv/shared]", cfg.Sandbox.ExtraAllowedPaths)
	}
}

func TestLoadWarnsOnUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := "[backup]\nretention_count = 10\nbogus_key = true\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	_, warnings, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", warnings)
	}
}

func TestSaveAndReloadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")
	cfg := Default()
	cfg.Backup.RetentionCount = 7
	cfg.Compatibility.Mode = ModeBRE

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	reloaded, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded.Backup.RetentionCount != 7 {
		t.Fatalf("expected retention_count 7, got %d", reloaded.Backup.RetentionCount)
	}
	if reloaded.Compatibility.Mode != ModeBRE {
		t.Fatalf("expected mode bre, got %v", reloaded.Compatibility.Mode)
	}
}

func TestLoadParseErrorIsReported(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("not valid toml [["), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if _, _, err := Load(path); err == nil {
		t.Fatal("expected a parse error for malformed TOML")
	}
}
