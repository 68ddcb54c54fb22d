// Package memproc implements the in-memory processor (component F) from
// spec.md §4.F: the same cycle-engine semantics as pkg/sed/stream, but
// loading the whole input up front so an address like the end of a
// negated range, or $ as a range's start, can be resolved exactly instead
// of through lookahead.
//
// Grounded on the teacher's runFiles/runInPlace (pkg/applets/sed/sed.go):
// readAllLines slurps the whole file into a []string plus a
// has-trailing-newline flag, and a single engine pass runs over it. sedx
// keeps that shape and layers the same atomic commit primitive
// (fs.WriteFileAtomic) the streaming processor uses, so both processors
// share one commit contract even though they source lines differently.
package memproc

import (
	"bytes"
	"os"
	"strings"

	"github.com/InkyQuill/sedx/pkg/core/fs"
	"github.com/InkyQuill/sedx/pkg/sed/capability"
	"github.com/InkyQuill/sedx/pkg/sed/engine"
	"github.com/InkyQuill/sedx/pkg/sed/program"
)

// Result mirrors stream.Result so callers (pkg/sedxcli) can treat the two
// processors interchangeably once a run has completed.
type Result struct {
	QuitCode        int
	Quit            bool
	Newline         string
	TrailingNewline bool
	LastWasAppend   bool
}

// sliceSource is the teacher's lineReader generalized only enough to
// satisfy engine.LineSource: an index cursor over a fully-loaded slice,
// giving exact (not lookahead-based) knowledge of the last line.
type sliceSource struct {
	lines []string
	pos   int
}

func (s *sliceSource) Next() (string, bool) {
	if s.pos >= len(s.lines) {
		return "", false
	}
	l := s.lines[s.pos]
	s.pos++
	return l, true
}

func (s *sliceSource) HasNext() bool { return s.pos < len(s.lines) }

var _ engine.LineSource = (*sliceSource)(nil)

// splitLines reproduces the teacher's readAllLines byte-to-lines split:
// lines joined by "\n", tracking whether the input's final terminator was
// "\n", "\r\n", or absent. Dialect note: sedx tracks "\r\n" explicitly
// (the teacher assumed "\n" throughout) so Windows-style input round-trips
// per spec.md §4.E/§8 property 6.
func splitLines(data []byte) (lines []string, newline string, trailingNewline bool) {
	newline = "\n"
	if len(data) == 0 {
		return nil, newline, true
	}
	s := string(data)
	if strings.Contains(s, "\r\n") {
		newline = "\r\n"
	}
	trailingNewline = strings.HasSuffix(s, "\n")
	if trailingNewline {
		s = s[:len(s)-1]
		if newline == "\r\n" {
			s = strings.TrimSuffix(s, "\r")
		}
	}
	if newline == "\r\n" {
		lines = strings.Split(s, "\r\n")
	} else {
		lines = strings.Split(s, "\n")
	}
	return lines, newline, trailingNewline
}

// Processor runs prog over a fully-loaded input, per spec.md §4.F.
type Processor struct {
	Config engine.Config
}

// Process runs prog over data, returning the transformed output and a
// Result describing how the run ended.
func (p *Processor) Process(prog *program.Program, data []byte) ([]byte, Result, error) {
	lines, newline, trailingNewline := splitLines(data)

	if capability.IsBatchEligible(prog) && !p.Config.Quiet {
		out, err := runBatch(prog, lines, newline)
		if err != nil {
			return nil, Result{}, err
		}
		result := Result{Newline: newline, TrailingNewline: trailingNewline}
		return finishTrim(out, result), result, nil
	}

	var buf bytes.Buffer
	cfg := p.Config
	cfg.Newline = newline
	eng := engine.New(prog, cfg, &buf)
	src := &sliceSource{lines: lines}
	code, err := eng.Run(src)
	if err != nil {
		return nil, Result{}, err
	}
	result := Result{
		QuitCode:        code,
		Quit:            eng.Quit(),
		Newline:         newline,
		TrailingNewline: trailingNewline,
		LastWasAppend:   eng.LastWasAppend(),
	}
	return finishTrim(buf.Bytes(), result), result, nil
}

func finishTrim(out []byte, result Result) []byte {
	if !result.TrailingNewline && !result.LastWasAppend && len(out) > 0 {
		nl := []byte(result.Newline)
		if bytes.HasSuffix(out, nl) {
			out = out[:len(out)-len(nl)]
		}
	}
	return out
}

// ProcessFile loads path whole, runs prog over it, and commits the result
// atomically via fs.WriteFileAtomic, the temp-file-then-rename primitive
// the backup store also uses (the streaming processor has its own copy
// of the same pattern).
func (p *Processor) ProcessFile(prog *program.Program, path string) (Result, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	cfg := p.Config
	cfg.Filename = path
	proc := &Processor{Config: cfg}
	out, result, err := proc.Process(prog, data)
	if err != nil {
		return Result{}, err
	}
	info, statErr := fs.Stat(path)
	perm := os.FileMode(0644)
	if statErr == nil {
		perm = info.Mode()
	}
	if err := fs.WriteFileAtomic(path, out, perm); err != nil {
		return Result{}, err
	}
	return result, nil
}

// runBatch implements the per-line fast path from spec.md §4.F: every
// command in an IsBatchEligible program is a pure per-line transform (no
// hold space, branches, multi-line ops, side effects, or quit), so each
// input line can be fed to the engine as its own one-line source rather
// than through one shared LineSource cursor.
// Output is required to match the full cycle engine byte-for-byte; one
// Engine is shared across all lines, so the line counter and two-address
// range state carry over from line to line as they do under the cursor.
func runBatch(prog *program.Program, lines []string, newline string) ([]byte, error) {
	var buf bytes.Buffer
	total := len(lines)
	eng := engine.New(prog, engine.Config{Newline: newline}, &buf)
	for i, line := range lines {
		single := &oneLineSource{line: line, lastLine: i == total-1}
		// Run keeps the engine's line counter and address state between
		// calls, so only the line source changes per line.
		if _, err := eng.Run(single); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

type oneLineSource struct {
	line     string
	lastLine bool
	done     bool
}

func (s *oneLineSource) Next() (string, bool) {
	if s.done {
		return "", false
	}
	s.done = true
	return s.line, true
}

// HasNext reports whether this line is the overall input's last line, so
// the $ address resolves the same way it would under the full cursor.
func (s *oneLineSource) HasNext() bool { return !s.lastLine }

var _ engine.LineSource = (*oneLineSource)(nil)
