// Package backup implements the transactional backup/rollback store from
// spec.md §4.H: a directory of timestamped snapshots, each with a JSON
// manifest and a preserved copy of every file a run touched, supporting
// atomic restore independent of the parse/execute pipeline.
//
// No teacher equivalent exists (the teacher's sed applet has no backup
// concept at all). Grounded instead on pkg/sandbox and pkg/core/fs for
// every file operation this package performs — every copy, restore, and
// manifest write routes through the same sandboxed primitives the engine
// itself uses for r/w/R/W — and on golang.org/x/sys/unix-backed
// fs.DiskUsage for the pre-flight free/total bytes query spec.md's
// contract names.
package backup

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/InkyQuill/sedx/pkg/core/fs"
	"github.com/InkyQuill/sedx/pkg/sed/sederr"
)

// ManifestSchema is the current on-disk manifest version, per spec.md §6.4.
const ManifestSchema = 1

// FileEntry is one preserved file's record in a manifest.
type FileEntry struct {
	OriginalAbsPath string `json:"original_abs_path"`
	StoredRelPath   string `json:"stored_rel_path"`
	SizeBytes       int64  `json:"size_bytes"`
	SHA256          string `json:"sha256"`
}

// Manifest is the on-disk record for one backup, per spec.md §4.H/§6.4.
type Manifest struct {
	Schema      int         `json:"schema"`
	ID          string      `json:"id"`
	CreatedAt   time.Time   `json:"created_at"`
	ProgramText string      `json:"program_text"`
	Files       []FileEntry `json:"files"`
	TotalBytes  int64       `json:"total_bytes"`
}

// Summary is the lightweight listing row spec.md's list_backups contract
// returns — everything but the per-file detail.
type Summary struct {
	ID          string
	CreatedAt   time.Time
	ProgramText string
	FileCount   int
	TotalBytes  int64
}

// DiskUsageFunc matches fs.DiskUsage's signature; the backup store takes
// its disk probe as a dependency (spec.md §1 names "disk-space probing"
// as an external collaborator with only a contract specified here) so a
// caller can substitute a quota API or a test double.
type DiskUsageFunc func(path string) (freeBytes, totalBytes uint64, err error)

// Policy holds the backup store's configurable thresholds, mirroring the
// [backup] table in spec.md §6.3.
type Policy struct {
	MaxSizeBytes        int64   // warn-above threshold; 0 disables the warning
	MaxDiskUsagePercent float64 // hard-error threshold as a fraction of free bytes (0..100)
	RetentionCount      int     // prune() default keep-count
}

// DefaultPolicy matches spec.md §6.3's defaults (max_size_gb=2.0,
// max_disk_usage_percent=60.0, retention_count=50).
func DefaultPolicy() Policy {
	return Policy{
		MaxSizeBytes:        2 * 1024 * 1024 * 1024,
		MaxDiskUsagePercent: 60.0,
		RetentionCount:      50,
	}
}

// Store is a backup/rollback store rooted at Root, per spec.md §4.H.
type Store struct {
	Root      string
	Policy    Policy
	DiskUsage DiskUsageFunc
}

// New returns a Store rooted at root with the default policy and
// fs.DiskUsage as its disk probe.
func New(root string) *Store {
	return &Store{Root: root, Policy: DefaultPolicy(), DiskUsage: fs.DiskUsage}
}

// DefaultPath returns the store root spec.md §6.3's [backup] table
// defaults to when backup_dir is left unset: a "sedx/backups"
// subdirectory of the user's config directory, alongside config.toml
// itself (pkg/sedxconfig.DefaultPath).
func DefaultPath() (string, error) {
	root, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "sedx", "backups"), nil
}

// Warning is a non-fatal pre-flight observation (e.g. "approaching your
// size threshold") returned alongside a successful CreateBackup.
type Warning struct {
	Message string
}

// CreateBackup snapshots every path in paths under a fresh timestamped id,
// per spec.md §4.H's create_backup contract: estimate total size, check it
// against the store's disk-space policy, copy every file, then write the
// manifest last — so an incomplete manifest always means "no backup",
// never a half-written one.
func (s *Store) CreateBackup(programText string, paths []string) (id string, warnings []Warning, err error) {
	var total int64
	existing := make([]string, 0, len(paths))
	for _, p := range paths {
		info, statErr := fs.Stat(p)
		if statErr != nil {
			continue // a path that doesn't exist yet has nothing to back up
		}
		total += info.Size()
		existing = append(existing, p)
	}

	if s.Policy.MaxSizeBytes > 0 && total > s.Policy.MaxSizeBytes {
		warnings = append(warnings, Warning{Message: fmt.Sprintf(
			"backup size %d bytes exceeds the configured warn threshold of %d bytes", total, s.Policy.MaxSizeBytes)})
	}

	if s.DiskUsage != nil {
		free, _, duErr := s.DiskUsage(s.Root)
		if duErr == nil && s.Policy.MaxDiskUsagePercent > 0 {
			limit := float64(free) * s.Policy.MaxDiskUsagePercent / 100.0
			if float64(total) > limit {
				return "", nil, sederr.New(sederr.DiskSpaceError, fmt.Sprintf(
					"backup of %d bytes exceeds %.1f%% of %d free bytes on the store volume",
					total, s.Policy.MaxDiskUsagePercent, free))
			}
		}
	}

	id, err = newBackupID()
	if err != nil {
		return "", nil, sederr.Wrap(sederr.IoError, "generating backup id", err)
	}
	backupDir := filepath.Join(s.Root, id)
	filesDir := filepath.Join(backupDir, "files")
	if err := fs.MkdirAll(filesDir, 0755); err != nil {
		return "", nil, sederr.Wrap(sederr.IoError, "creating backup directory", err)
	}

	manifest := Manifest{Schema: ManifestSchema, ID: id, CreatedAt: time.Now().UTC(), ProgramText: programText}
	for i, p := range existing {
		absPath, absErr := filepath.Abs(p)
		if absErr != nil {
			absPath = p
		}
		storedRel := fmt.Sprintf("%d%s", i, filepath.Ext(absPath))
		storedAbs := filepath.Join(filesDir, storedRel)
		if err := fs.CopyFile(absPath, storedAbs, true); err != nil {
			return "", nil, sederr.Wrap(sederr.IoError, "copying "+absPath+" into backup", err)
		}
		sum, sumErr := sha256File(storedAbs)
		if sumErr != nil {
			return "", nil, sederr.Wrap(sederr.IoError, "hashing backed-up copy of "+absPath, sumErr)
		}
		info, _ := fs.Stat(storedAbs)
		var size int64
		if info != nil {
			size = info.Size()
		}
		manifest.Files = append(manifest.Files, FileEntry{
			OriginalAbsPath: absPath,
			StoredRelPath:   filepath.Join("files", storedRel),
			SizeBytes:       size,
			SHA256:          sum,
		})
		manifest.TotalBytes += size
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", nil, sederr.Wrap(sederr.IoError, "encoding manifest", err)
	}
	if err := fs.WriteFile(filepath.Join(backupDir, "manifest"), data, 0644); err != nil {
		return "", nil, sederr.Wrap(sederr.IoError, "writing manifest", err)
	}
	return id, warnings, nil
}

// ListBackups returns every backup's Summary, newest first, per spec.md's
// list_backups contract. A directory under Root with no manifest (an
// interrupted CreateBackup) is silently skipped, per spec.md's "an
// incomplete manifest means no backup" rule.
func (s *Store) ListBackups() ([]Summary, error) {
	entries, err := fs.ReadDir(s.Root)
	if err != nil {
		return nil, nil //nolint:nilerr // an absent store root means zero backups, not an error
	}
	var out []Summary
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m, err := s.readManifest(e.Name())
		if err != nil {
			continue
		}
		out = append(out, Summary{ID: m.ID, CreatedAt: m.CreatedAt, ProgramText: m.ProgramText, FileCount: len(m.Files), TotalBytes: m.TotalBytes})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// ShowBackup returns the full manifest for id.
func (s *Store) ShowBackup(id string) (*Manifest, error) {
	return s.readManifest(id)
}

// Latest returns the most recent backup's id, or "" if the store is empty.
func (s *Store) Latest() (string, error) {
	summaries, err := s.ListBackups()
	if err != nil {
		return "", err
	}
	if len(summaries) == 0 {
		return "", nil
	}
	return summaries[0].ID, nil
}

// RestoreResult reports which files a restore actually wrote back, per
// spec.md's "report which files succeeded" recovery policy: a partial
// failure does not roll back the files that did succeed.
type RestoreResult struct {
	Restored []string
	Failed   map[string]error
}

// Restore copies every file recorded under id back over its original
// path, atomically per file (temp-file + rename), per spec.md §4.H. A
// restore failure on one file does not stop the rest, and never reverses
// files already restored.
func (s *Store) Restore(id string) (RestoreResult, error) {
	m, err := s.readManifest(id)
	if err != nil {
		return RestoreResult{}, err
	}
	res := RestoreResult{Failed: map[string]error{}}
	backupDir := filepath.Join(s.Root, id)
	for _, fe := range m.Files {
		storedAbs := filepath.Join(backupDir, fe.StoredRelPath)
		data, readErr := fs.ReadFile(storedAbs)
		if readErr != nil {
			res.Failed[fe.OriginalAbsPath] = readErr
			continue
		}
		if writeErr := fs.WriteFileAtomic(fe.OriginalAbsPath, data, 0644); writeErr != nil {
			res.Failed[fe.OriginalAbsPath] = writeErr
			continue
		}
		res.Restored = append(res.Restored, fe.OriginalAbsPath)
	}
	return res, nil
}

// Remove deletes one backup by id.
func (s *Store) Remove(id string) error {
	return fs.RemoveAll(filepath.Join(s.Root, id))
}

// Prune removes backups older than the keepCount most recent, per
// spec.md's retention policy (oldest first). keepCount<=0 falls back to
// s.Policy.RetentionCount.
func (s *Store) Prune(keepCount int) ([]string, error) {
	if keepCount <= 0 {
		keepCount = s.Policy.RetentionCount
	}
	summaries, err := s.ListBackups()
	if err != nil {
		return nil, err
	}
	var removed []string
	for i := keepCount; i < len(summaries); i++ {
		id := summaries[i].ID
		// A concurrent prune may have already removed this id; that's a
		// benign no-op per spec.md §5's concurrency note, not an error.
		if err := s.Remove(id); err == nil {
			removed = append(removed, id)
		}
	}
	return removed, nil
}

func (s *Store) readManifest(id string) (*Manifest, error) {
	data, err := fs.ReadFile(filepath.Join(s.Root, id, "manifest"))
	if err != nil {
		return nil, sederr.Wrap(sederr.BackupCorruption, "reading manifest for "+id, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, sederr.Wrap(sederr.BackupCorruption, "decoding manifest for "+id, err)
	}
	if m.Schema != ManifestSchema {
		return nil, sederr.New(sederr.BackupCorruption, fmt.Sprintf("manifest schema %d is not supported (expected %d)", m.Schema, ManifestSchema))
	}
	return &m, nil
}

// newBackupID builds the YYYYMMDD-HHMMSS-XXXXXX id spec.md §4.H names:
// lexicographically sortable by construction, with a short random suffix
// from crypto/rand so two backups started in the same second never
// collide.
func newBackupID() (string, error) {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", time.Now().UTC().Format("20060102-150405"), strings.ToUpper(hex.EncodeToString(suffix))[:6]), nil
}

func sha256File(path string) (string, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
