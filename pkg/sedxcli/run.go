package sedxcli

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/InkyQuill/sedx/pkg/core"
	"github.com/InkyQuill/sedx/pkg/core/fs"
	"github.com/InkyQuill/sedx/pkg/sandbox"
	"github.com/InkyQuill/sedx/pkg/sed/backup"
	"github.com/InkyQuill/sedx/pkg/sed/capability"
	"github.com/InkyQuill/sedx/pkg/sed/engine"
	"github.com/InkyQuill/sedx/pkg/sed/memproc"
	"github.com/InkyQuill/sedx/pkg/sed/program"
	"github.com/InkyQuill/sedx/pkg/sed/stream"
	"github.com/InkyQuill/sedx/pkg/sedxconfig"
)

// runInvocation implements the `run` subcommand (the default
// operation), per spec.md §2's control-flow summary: parse → select
// processor via the capability analyzer → run → commit, with the
// backup store wrapping any file-target run unless the program is
// provably read-only or --no-backup --force was both given.
func runInvocation(stdio *core.Stdio, inv *Invocation) int {
	script, code, ok := buildScript(stdio, inv, inv.Targets)
	if !ok {
		return code
	}

	prog, err := program.Parse(script, inv.Dialect)
	if err != nil {
		return exitForError(stdio, "sedx", err)
	}

	if code := initSandbox(stdio, inv); code != core.ExitSuccess {
		return code
	}
	defer sandbox.Disable()

	cfg := engine.DefaultConfig()
	cfg.Quiet = inv.Quiet

	if len(inv.Targets) == 0 {
		return runStdin(stdio, prog, cfg)
	}
	return runTargets(stdio, inv, prog, cfg)
}

// initSandbox restricts pkg/core/fs, for the lifetime of this run, to the
// run's own targets and backup root, per the [sandbox] config table and
// spec.md §4's sandboxed-filesystem-access component. A script that names
// an r/R/w/W side-channel file outside those directories silently fails
// that one command (the teacher's own read/write commands already treat a
// missing file as a no-op) rather than aborting the whole run.
func initSandbox(stdio *core.Stdio, inv *Invocation) int {
	cfgPath, err := sedxconfig.DefaultPath()
	if err != nil {
		return exitForError(stdio, "sedx", err)
	}
	cfg, _, err := sedxconfig.Load(cfgPath)
	if err != nil {
		return exitForError(stdio, "sedx", err)
	}
	if !cfg.Sandbox.Enabled {
		sandbox.Disable()
		return core.ExitSuccess
	}

	root, err := resolveBackupRoot(inv.BackupDir)
	if err != nil {
		return exitForError(stdio, "sedx", err)
	}
	rules, err := sandbox.RulesForInvocation(inv.Targets, root)
	if err != nil {
		return exitForError(stdio, "sedx", err)
	}
	for _, p := range cfg.Sandbox.ExtraAllowedPaths {
		rules = append(rules, sandbox.PathRule{Path: p, Permission: sandbox.PermRead | sandbox.PermWrite})
	}

	if err := sandbox.Init(&sandbox.Config{AllowedPaths: rules}); err != nil {
		return exitForError(stdio, "sedx", err)
	}
	return core.ExitSuccess
}

func runStdin(stdio *core.Stdio, prog *program.Program, cfg engine.Config) int {
	proc := &stream.Processor{Config: cfg}
	if _, err := proc.Process(prog, stdio.In, stdio.Out, nil); err != nil {
		return exitForError(stdio, "sedx", err)
	}
	return core.ExitSuccess
}

func runTargets(stdio *core.Stdio, inv *Invocation, prog *program.Program, cfg engine.Config) int {
	verdict := capability.Analyze(prog)
	useStream := verdict.Status == capability.Streamable
	switch inv.Streaming {
	case StreamingForce:
		useStream = true
	case StreamingForbid:
		useStream = false
	}

	targetSet := map[string]bool{}
	for _, t := range inv.Targets {
		targetSet[t] = true
	}

	if code := maybeBackup(stdio, inv, prog, targetSet); code != core.ExitSuccess {
		return code
	}

	committed := make([]string, 0, len(inv.Targets))
	for _, target := range inv.Targets {
		code := runOneTarget(stdio, inv, prog, cfg, useStream, target)
		if code != core.ExitSuccess {
			if len(committed) > 0 {
				stdio.Errorf("sedx: stopping after failure on %s; already committed: %s\n", target, strings.Join(committed, ", "))
			}
			return code
		}
		committed = append(committed, target)
	}
	return core.ExitSuccess
}

// maybeBackup creates a backup of every target unless the program is
// provably read-only or the caller passed both --no-backup and
// --force, per spec.md §4.H's "not created for read-only programs"
// rule and §6.2's "only honored when both are set" flag pairing.
func maybeBackup(stdio *core.Stdio, inv *Invocation, prog *program.Program, targetSet map[string]bool) int {
	if inv.NoBackup && inv.Force {
		return core.ExitSuccess
	}
	if capability.IsReadOnly(prog, targetSet) {
		return core.ExitSuccess
	}
	if inv.DryRun {
		return core.ExitSuccess
	}

	root, err := resolveBackupRoot(inv.BackupDir)
	if err != nil {
		return exitForError(stdio, "sedx", err)
	}
	store := backup.New(root)
	id, warnings, err := store.CreateBackup(strings.Join(inv.Expressions, "\n"), inv.Targets)
	if err != nil {
		return exitForError(stdio, "sedx backup", err)
	}
	for _, w := range warnings {
		stdio.Errorf("sedx: warning: %s\n", w.Message)
	}
	stdio.Printf("sedx: backup %s created\n", id)
	return core.ExitSuccess
}

func runOneTarget(stdio *core.Stdio, inv *Invocation, prog *program.Program, cfg engine.Config, useStream bool, target string) int {
	cfg.Filename = target

	if inv.DryRun || inv.Interactive {
		var buf bytes.Buffer
		sink := newTextDiffSink(&buf, target)
		if err := dryRun(prog, cfg, useStream, target, sink); err != nil {
			return exitForError(stdio, "sedx", err)
		}
		if !sink.Changed() {
			return core.ExitSuccess
		}
		stdio.Print(buf.String())
		if inv.DryRun && !inv.Interactive {
			return core.ExitSuccess
		}
		if inv.Interactive && !confirm(stdio, target) {
			return core.ExitSuccess
		}
	}

	if useStream {
		proc := &stream.Processor{Config: cfg, ContextSize: inv.Context}
		if _, err := proc.ProcessFile(prog, target, nil); err != nil {
			return exitForError(stdio, "sedx", err)
		}
		return core.ExitSuccess
	}

	proc := &memproc.Processor{Config: cfg}
	if _, err := proc.ProcessFile(prog, target); err != nil {
		return exitForError(stdio, "sedx", err)
	}
	return core.ExitSuccess
}

// dryRun re-runs prog over target without committing any write,
// feeding every cycle through sink so the caller can render a diff
// before deciding whether to commit (--dry-run) or ask the user
// (--interactive).
func dryRun(prog *program.Program, cfg engine.Config, useStream bool, target string, sink *textDiffSink) error {
	if useStream {
		f, err := fs.Open(target)
		if err != nil {
			return err
		}
		defer f.Close()
		proc := &stream.Processor{Config: cfg, ContextSize: 2}
		_, err = proc.Process(prog, f, io.Discard, sink)
		return err
	}

	data, err := fs.ReadFile(target)
	if err != nil {
		return err
	}
	proc := &memproc.Processor{Config: cfg}
	out, _, err := proc.Process(prog, data)
	if err != nil {
		return err
	}
	before := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	after := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	// memproc.Processor exposes no per-cycle hook (stream.Processor feeds
	// its DiffSink from the engine's OnCycle), so its dry-run diff is rendered
	// as a whole-file line comparison rather than a streamed window.
	renderWholeFileDiff(sink, before, after)
	return nil
}

func renderWholeFileDiff(sink *textDiffSink, before, after []string) {
	max := len(before)
	if len(after) > max {
		max = len(after)
	}
	for i := 0; i < max; i++ {
		hasB, hasA := i < len(before), i < len(after)
		var b, a string
		if hasB {
			b = before[i]
		}
		if hasA {
			a = after[i]
		}
		switch {
		case hasB && hasA && b == a:
			sink.Context(b)
		case hasB && hasA:
			sink.Change(stream.DiffRecord{Kind: stream.ChangeModified, Old: b, New: a})
		case hasB:
			sink.Change(stream.DiffRecord{Kind: stream.ChangeDeleted, Old: b})
		case hasA:
			sink.Change(stream.DiffRecord{Kind: stream.ChangeInserted, New: a})
		}
	}
}

func confirm(stdio *core.Stdio, target string) bool {
	stdio.Printf("apply changes to %s? [y/N] ", target)
	reader := bufio.NewReader(stdio.In)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(strings.ToLower(line))
	return line == "y" || line == "yes"
}
