package sedxcli

import (
	"github.com/InkyQuill/sedx/pkg/core"
	"github.com/InkyQuill/sedx/pkg/sed/backup"
	"github.com/InkyQuill/sedx/pkg/sedxconfig"
)

// statusInvocation implements spec.md §6.2's `status` subcommand: a
// summary of the active configuration plus the backup store's current
// size and most recent entry, the two pieces of ambient state a user
// would otherwise have to dig for across two different files.
func statusInvocation(stdio *core.Stdio, backupDir string) int {
	cfgPath, err := sedxconfig.DefaultPath()
	if err != nil {
		return exitForError(stdio, "sedx status", err)
	}
	cfg, warnings, err := sedxconfig.Load(cfgPath)
	if err != nil {
		return exitForError(stdio, "sedx status", err)
	}
	stdio.Printf("config: %s\n", cfgPath)
	stdio.Printf("  compatibility.mode: %s\n", cfg.Compatibility.Mode)
	stdio.Printf("  processing.streaming: %v\n", cfg.Processing.Streaming)
	stdio.Printf("  processing.context_lines: %d\n", cfg.Processing.ContextLines)
	for _, w := range warnings {
		stdio.Errorf("sedx: warning: %s\n", w)
	}

	root, err := resolveBackupRoot(backupDir)
	if err != nil {
		return exitForError(stdio, "sedx status", err)
	}
	store := backup.New(root)
	summaries, err := store.ListBackups()
	if err != nil {
		return exitForError(stdio, "sedx status", err)
	}
	stdio.Printf("backups: %s (%d entries)\n", root, len(summaries))
	if len(summaries) > 0 {
		stdio.Printf("  most recent: %s\n", summaries[0].ID)
	}
	return core.ExitSuccess
}
