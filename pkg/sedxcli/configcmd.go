package sedxcli

import (
	"bytes"

	"github.com/BurntSushi/toml"

	"github.com/InkyQuill/sedx/pkg/core"
	"github.com/InkyQuill/sedx/pkg/sedxconfig"
)

// configShow implements spec.md §6.2's `config show`: print the
// fully-decoded, defaults-applied configuration as TOML, the same
// shape a user would hand-edit.
func configShow(stdio *core.Stdio) int {
	cfgPath, err := sedxconfig.DefaultPath()
	if err != nil {
		return exitForError(stdio, "sedx config", err)
	}
	cfg, warnings, err := sedxconfig.Load(cfgPath)
	if err != nil {
		return exitForError(stdio, "sedx config", err)
	}
	for _, w := range warnings {
		stdio.Errorf("sedx: warning: %s\n", w)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return exitForError(stdio, "sedx config", err)
	}
	stdio.Print(buf.String())
	return core.ExitSuccess
}

// configEdit implements spec.md §6.2's `config edit`: write the
// resolved configuration (defaults applied) back to config.toml so a
// first run materializes an editable file instead of leaving every
// default implicit. Editor invocation itself is the CLI layer's
// concern per spec.md §1's "configuration file format" external-
// collaborator note; this subcommand only guarantees the file exists
// and is up to date with the current schema.
func configEdit(stdio *core.Stdio) int {
	cfgPath, err := sedxconfig.DefaultPath()
	if err != nil {
		return exitForError(stdio, "sedx config", err)
	}
	cfg, _, err := sedxconfig.Load(cfgPath)
	if err != nil {
		return exitForError(stdio, "sedx config", err)
	}
	if err := sedxconfig.Save(cfgPath, cfg); err != nil {
		return exitForError(stdio, "sedx config", err)
	}
	stdio.Printf("wrote %s\n", cfgPath)
	return core.ExitSuccess
}
