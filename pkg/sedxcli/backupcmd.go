package sedxcli

import (
	"fmt"

	"github.com/InkyQuill/sedx/pkg/core"
	"github.com/InkyQuill/sedx/pkg/sed/backup"
)

func backupList(stdio *core.Stdio, root string) int {
	store := backup.New(root)
	summaries, err := store.ListBackups()
	if err != nil {
		return exitForError(stdio, "sedx backup list", err)
	}
	if len(summaries) == 0 {
		stdio.Println("no backups")
		return core.ExitSuccess
	}
	for _, s := range summaries {
		stdio.Printf("%s  %s  %d files  %d bytes\n", s.ID, s.CreatedAt.Format("2006-01-02T15:04:05Z"), s.FileCount, s.TotalBytes)
	}
	return core.ExitSuccess
}

func backupShow(stdio *core.Stdio, root, id string) int {
	store := backup.New(root)
	id, err := resolveBackupID(store, id)
	if err != nil {
		return exitForError(stdio, "sedx backup show", err)
	}
	m, err := store.ShowBackup(id)
	if err != nil {
		return exitForError(stdio, "sedx backup show", err)
	}
	stdio.Printf("id: %s\ncreated: %s\nprogram:\n%s\n", m.ID, m.CreatedAt.Format("2006-01-02T15:04:05Z"), m.ProgramText)
	for _, f := range m.Files {
		stdio.Printf("  %s  %d bytes  sha256:%s\n", f.OriginalAbsPath, f.SizeBytes, f.SHA256)
	}
	return core.ExitSuccess
}

func backupRestore(stdio *core.Stdio, root, id string) int {
	store := backup.New(root)
	id, err := resolveBackupID(store, id)
	if err != nil {
		return exitForError(stdio, "sedx backup restore", err)
	}
	res, err := store.Restore(id)
	if err != nil {
		return exitForError(stdio, "sedx backup restore", err)
	}
	for _, path := range res.Restored {
		stdio.Printf("restored %s\n", path)
	}
	if len(res.Failed) > 0 {
		for path, ferr := range res.Failed {
			stdio.Errorf("sedx backup restore: %s: %v\n", path, ferr)
		}
		return core.ExitBackupFailure
	}
	return core.ExitSuccess
}

func backupRemove(stdio *core.Stdio, root, id string) int {
	store := backup.New(root)
	if err := store.Remove(id); err != nil {
		return exitForError(stdio, "sedx backup remove", err)
	}
	return core.ExitSuccess
}

func backupPrune(stdio *core.Stdio, root string, keepCount int) int {
	store := backup.New(root)
	removed, err := store.Prune(keepCount)
	if err != nil {
		return exitForError(stdio, "sedx backup prune", err)
	}
	stdio.Printf("pruned %d backup(s)\n", len(removed))
	return core.ExitSuccess
}

// resolveBackupID maps "" (or the literal "latest") onto the store's
// most recent backup, per spec.md §6.2's "rollback <id?> (default =
// most recent)" contract, reused here for `backup show`/`restore` too.
func resolveBackupID(store *backup.Store, id string) (string, error) {
	if id != "" && id != "latest" {
		return id, nil
	}
	latest, err := store.Latest()
	if err != nil {
		return "", err
	}
	if latest == "" {
		return "", fmt.Errorf("no backups exist")
	}
	return latest, nil
}
