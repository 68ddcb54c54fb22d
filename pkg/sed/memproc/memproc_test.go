package memproc

import (
	"os"
	"path/filepath"
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

func TestProcessBatchFastPathMatchesCycleEngine(t *testing.T) {
	prog := parseProg(t, "s/a/b/g")
	p := &Processor{Config: engine.DefaultConfig()}
	out, _, err := p.Process(prog, []byte("aaa\nxyz\n"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if string(out) != "bbb\nxyz\n" {
		t.Fatalf("got %q, want %q", string(out), "bbb\nxyz\n")
	}
}

// The in-memory processor's per-line batch fast path must produce byte-
// identical output to the full cycle engine for a program that qualifies
// for it, since spec.md's universal invariant 1 requires the two
// processors to agree on every eligible program.
func TestBatchFastPathMatchesFullCycleForEligibleProgram(t *testing.T) {
	prog := parseProg(t, "s/a/b/g")
	lines := []string{"aaa", "aba", "zzz"}

	batchOut, err := runBatch(prog, lines, "\n")
	if err != nil {
		t.Fatalf("runBatch: %v", err)
	}

	var cycleOut []byte
	{
		p := &Processor{Config: engine.DefaultConfig()}
		out, _, err := p.Process(prog, []byte("aaa\naba\nzzz\n"))
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		cycleOut = out
	}

	if string(batchOut) != string(cycleOut) {
		t.Fatalf("batch path %q differs from full cycle output %q", string(batchOut), string(cycleOut))
	}
}

func TestProcessNonBatchEligibleUsesFullCycleEngine(t *testing.T) {
	prog := parseProg(t, "h\nG")
	p := &Processor{Config: engine.DefaultConfig()}
	out, _, err := p.Process(prog, []byte("a\nb\n"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	want := "a\na\nb\nb\n"
	if string(out) != want {
		t.Fatalf("got %q, want %q", string(out), want)
	}
}

func TestProcessPreservesMissingTrailingNewline(t *testing.T) {
	prog := parseProg(t, "s/a/b/")
	p := &Processor{Config: engine.DefaultConfig()}
	out, result, err := p.Process(prog, []byte("a"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.TrailingNewline {
		t.Fatal("expected TrailingNewline to be false for unterminated input")
	}
	if string(out) != "b" {
		t.Fatalf("got %q, want %q", string(out), "b")
	}
}

func TestProcessFileCommitsAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.txt")
	if err := os.WriteFile(path, []byte("foo\nbar\n"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	prog := parseProg(t, "s/foo/bar/")
	p := &Processor{Config: engine.DefaultConfig()}
	if _, err := p.ProcessFile(prog, path); err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading committed file: %v", err)
	}
	if string(data) != "bar\nbar\n" {
		t.Fatalf("got %q, want %q", string(data), "bar\nbar\n")
	}
}

func TestSplitLinesDetectsCRLFAndTrailingNewline(t *testing.T) {
	lines, newline, trailing := splitLines([]byte("a\r\nb\r\n"))
	if newline != "\r\n" {
		t.Fatalf("got newline %q, want %q", newline, "\r\n")
	}
	if !trailing {
		t.Fatal("expected trailingNewline true")
	}
	if len(lines) != 2 || lines[0] != "a" || lines[1] != "b" {
		t.Fatalf("got lines %v, want [a b]", lines)
	}
}

func TestSplitLinesEmptyInput(t *testing.T) {
	lines, newline, trailing := splitLines(nil)
	if lines != nil {
		t.Fatalf("expected nil lines for empty input, got %v", lines)
	}
	if newline != "\n" || !trailing {
		t.Fatalf("got newline=%q trailing=%v", newline, trailing)
	}
}
