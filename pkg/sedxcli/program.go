package sedxcli

import (
	"strings"

	"github.com/InkyQuill/sedx/pkg/core"
	"github.com/InkyQuill/sedx/pkg/core/fs"
)

// buildScript concatenates -e expressions and -f script files in the
// order spec.md §6.2 specifies (expressions first, then each script
// file's content with its shebang line skipped), joined by the
// implicit command terminator the parser already treats a bare
// newline as.
func buildScript(stdio *core.Stdio, inv *Invocation, positional []string) (string, int, bool) {
	var parts []string
	parts = append(parts, inv.Expressions...)
	for _, path := range inv.ScriptFiles {
		data, err := fs.ReadFile(path)
		if err != nil {
			stdio.Errorf("sedx: %s: %v\n", path, err)
			return "", core.ExitNotFound, false
		}
		parts = append(parts, stripShebang(string(data)))
	}
	remaining := positional
	if len(parts) == 0 {
		if len(remaining) == 0 {
			return "", core.UsageError(stdio, "sedx", "missing script"), false
		}
		parts = append(parts, remaining[0])
		remaining = remaining[1:]
	}
	inv.Targets = remaining
	return strings.Join(parts, "\n"), 0, true
}

// stripShebang drops a leading "#!" line from a -f script file, per
// spec.md §6.2's "skip shebang line" contract.
func stripShebang(text string) string {
	if !strings.HasPrefix(text, "#!") {
		return text
	}
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		return text[idx+1:]
	}
	return ""
}
