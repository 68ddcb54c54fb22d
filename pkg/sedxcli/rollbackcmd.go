package sedxcli

import (
	"github.com/InkyQuill/sedx/pkg/core"
)

// rollbackInvocation implements spec.md §6.2's `rollback <id?>`
// subcommand, which "bypasses components A–F entirely" per §4.H: it
// calls straight into the backup store's Restore, never touching the
// parser, resolver, or either processor.
func rollbackInvocation(stdio *core.Stdio, backupDir, id string) int {
	root, err := resolveBackupRoot(backupDir)
	if err != nil {
		return exitForError(stdio, "sedx rollback", err)
	}
	return backupRestore(stdio, root, id)
}
