package sedxcli

import "github.com/InkyQuill/sedx/pkg/core"

// historyInvocation implements spec.md §6.2's `history` subcommand: a
// thin alias over the backup store's listing, since the backup store
// is sedx's only record of prior runs (there is no separate journal).
func historyInvocation(stdio *core.Stdio, backupDir string) int {
	root, err := resolveBackupRoot(backupDir)
	if err != nil {
		return exitForError(stdio, "sedx history", err)
	}
	return backupList(stdio, root)
}
