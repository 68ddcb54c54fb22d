package sedxcli

import "github.com/InkyQuill/sedx/pkg/sed/backup"

// resolveBackupRoot returns override if set, else the config-rooted
// default spec.md §6.3's backup_dir key describes.
func resolveBackupRoot(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	return backup.DefaultPath()
}
