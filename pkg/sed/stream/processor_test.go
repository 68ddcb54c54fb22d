package stream

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/InkyQuill/sedx/pkg/sed/dialect"
	"github.com/InkyQuill/sedx/pkg/sed/engine"
	"github.com/InkyQuill/sedx/pkg/sed/program"
)

func parseProg(t *testing.T, script string) *program.Program {
	t.Helper()
	prog, err := program.Parse(script, dialect.PCRE)
	if err != nil {
		t.Fatalf("Parse(%q): %v", script, err)
	}
	return prog
}

func TestProcessorProcessWritesTransformedOutput(t *testing.T) {
	prog := parseProg(t, "s/foo/bar/")
	var out strings.Builder
	p := &Processor{Config: engine.DefaultConfig()}
	if _, err := p.Process(prog, strings.NewReader("foo\nbaz\n"), &out, nil); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.String() != "bar\nbaz\n" {
		t.Fatalf("got %q, want %q", out.String(), "bar\nbaz\n")
	}
}

func TestProcessorProcessFileCommitsAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.txt")
	if err := os.WriteFile(path, []byte("foo\nbar\n"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	prog := parseProg(t, "s/foo/bar/")
	p := &Processor{Config: engine.DefaultConfig()}
	if _, err := p.ProcessFile(prog, path, nil); err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if e.Name() != "in.txt" {
			t.Fatalf("expected no leftover temp file, found %q", e.Name())
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading committed file: %v", err)
	}
	if string(data) != "bar\nbar\n" {
		t.Fatalf("got %q, want %q", string(data), "bar\nbar\n")
	}
}

func TestProcessorPreservesMissingTrailingNewline(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.txt")
	if err := os.WriteFile(path, []byte("foo"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	prog := parseProg(t, "s/foo/bar/")
	p := &Processor{Config: engine.DefaultConfig()}
	if _, err := p.ProcessFile(prog, path, nil); err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading committed file: %v", err)
	}
	if string(data) != "bar" {
		t.Fatalf("got %q, want %q (no trailing newline should be synthesized)", string(data), "bar")
	}
}

func TestProcessorPreservesCRLF(t *testing.T) {
	prog := parseProg(t, "s/foo/bar/")
	var out strings.Builder
	p := &Processor{Config: engine.DefaultConfig()}
	if _, err := p.Process(prog, strings.NewReader("foo\r\nbaz\r\n"), &out, nil); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.String() != "bar\r\nbaz\r\n" {
		t.Fatalf("got %q, want %q", out.String(), "bar\r\nbaz\r\n")
	}
}

func TestProcessorDiffSinkReceivesChanges(t *testing.T) {
	prog := parseProg(t, "s/foo/bar/")
	sink := &recordingSink{}
	p := &Processor{Config: engine.DefaultConfig(), ContextSize: 1}
	if _, err := p.Process(prog, strings.NewReader("foo\nunchanged\n"), &strings.Builder{}, sink); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(sink.changes) != 1 || sink.changes[0].Old != "foo" || sink.changes[0].New != "bar" {
		t.Fatalf("expected one change foo->bar, got %v", sink.changes)
	}
	if len(sink.context) != 1 || sink.context[0] != "unchanged" {
		t.Fatalf("expected context [unchanged], got %v", sink.context)
	}
}
