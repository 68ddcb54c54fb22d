// Package sedxconfig loads sedx's TOML configuration file, per spec.md
// §6.3. No teacher counterpart exists (the busybox applets take no
// config file at all); grounded on github.com/BurntSushi/toml, the
// corpus's dominant TOML library for exactly this kind of flat settings
// file (pulled in by inovacc-omni's go.mod and several other_examples
// manifests).
package sedxconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// CompatibilityMode names the default regex dialect, mirroring
// pkg/sed/dialect.Dialect without importing it — config decoding must
// not depend on the engine packages it configures.
type CompatibilityMode string

const (
	ModePCRE CompatibilityMode = "pcre"
	ModeERE  CompatibilityMode = "ere"
	ModeBRE  CompatibilityMode = "bre"
)

// BackupConfig mirrors spec.md §6.3's [backup] table.
type BackupConfig struct {
	MaxSizeGB           float64 `toml:"max_size_gb"`
	MaxDiskUsagePercent float64 `toml:"max_disk_usage_percent"`
	BackupDir           string  `toml:"backup_dir"`
	RetentionCount      int     `toml:"retention_count"`
}

// CompatibilityConfig mirrors spec.md §6.3's [compatibility] table.
type CompatibilityConfig struct {
	Mode         CompatibilityMode `toml:"mode"`
	ShowWarnings bool              `toml:"show_warnings"`
}

// ProcessingConfig mirrors spec.md §6.3's [processing] table.
type ProcessingConfig struct {
	ContextLines int  `toml:"context_lines"`
	MaxMemoryMB  int  `toml:"max_memory_mb"`
	Streaming    bool `toml:"streaming"`
}

// SandboxConfig mirrors spec.md §4's "sandboxed filesystem access" domain
// component: whether a `run` invocation restricts pkg/core/fs to the
// invocation's own targets and backup root, plus any extra paths an
// operator needs to allow (a shared include directory read by -f script
// files outside the target tree, for instance).
type SandboxConfig struct {
	Enabled           bool     `toml:"enabled"`
	ExtraAllowedPaths []string `toml:"extra_allowed_paths"`
}

// Config is the fully-decoded, defaults-applied configuration, per
// spec.md §6.3.
type Config struct {
	Backup        BackupConfig        `toml:"backup"`
	Compatibility CompatibilityConfig `toml:"compatibility"`
	Processing    ProcessingConfig    `toml:"processing"`
	Sandbox       SandboxConfig       `toml:"sandbox"`
}

// Default returns the configuration spec.md §6.3 specifies when no file
// is present or a key is missing.
func Default() Config {
	return Config{
		Backup: BackupConfig{
			MaxSizeGB:           2.0,
			MaxDiskUsagePercent: 60.0,
			RetentionCount:      50,
		},
		Compatibility: CompatibilityConfig{
			Mode:         ModePCRE,
			ShowWarnings: true,
		},
		Processing: ProcessingConfig{
			ContextLines: 2,
			MaxMemoryMB:  100,
			Streaming:    true,
		},
		Sandbox: SandboxConfig{
			Enabled: true,
		},
	}
}

// DefaultPath returns "<configRoot>/config.toml" under the user's config
// directory, per spec.md §6.3's "<config_root>/config.toml" contract.
func DefaultPath() (string, error) {
	root, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "sedx", "config.toml"), nil
}

// Load reads and decodes the TOML file at path over Default(), so any
// key the file omits keeps its default value, per spec.md §6.3 ("missing
// values take defaults"). A missing file is not an error: Load returns
// Default() unchanged. Unknown keys are reported as warning strings
// ("unknown keys are ignored with a warning") via toml.MetaData's
// Undecoded() list rather than failing the load.
func Load(path string) (Config, []string, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil, nil
		}
		return cfg, nil, err
	}
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return Config{}, nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	var warnings []string
	for _, key := range meta.Undecoded() {
		warnings = append(warnings, fmt.Sprintf("%s: unknown key %q ignored", path, key.String()))
	}
	return cfg, warnings, nil
}

// Save encodes cfg as TOML and writes it to path, creating parent
// directories as needed. Used by the `config edit` subcommand in
// pkg/sedxcli.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
