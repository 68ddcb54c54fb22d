// Package stream implements the streaming processor (component E) and the
// diff window (component I) from spec.md §4.E/§4.I: a bufio-driven,
// line-at-a-time cycle engine runner with bounded memory, committing
// through the same temp-file-and-rename primitive the backup store uses.
//
// Grounded on the teacher's lineReader.next/isLast (pkg/applets/sed/sed.go),
// generalized from a pre-split []string to an io.Reader pulled one line at
// a time with a single line of lookahead, and on the teacher's
// os.WriteFile commit in runInPlace, upgraded to fs.WriteFileAtomic's
// temp-file-plus-fsync-plus-rename pattern (no teacher equivalent: the
// teacher's sed applet is purely in-memory and has no streaming path at
// all).
package stream

import (
	"bufio"
	"io"
	"strings"

	"github.com/InkyQuill/sedx/pkg/sed/engine"
)

// LineSource reads lines one at a time from r with exactly one line of
// lookahead, which is what lets both the $ (LastLine) address and the
// sliding diff window work without buffering the whole input. It
// implements engine.LineSource.
//
// Line-ending handling follows spec.md §4.E: the dominant terminator is
// inferred from the first terminator actually seen (default "\n" if the
// input never terminates a line at all, e.g. a single unterminated line),
// and whether the final line had a trailing terminator is tracked
// separately so the commit path can reproduce it exactly.
type LineSource struct {
	br *bufio.Reader

	newline         string
	newlineDetected bool

	pending    *string
	pendingNL  bool
	exhausted  bool

	lastHadNewline bool
}

// NewLineSource wraps r in a LineSource, eagerly reading the first line so
// HasNext is meaningful before the first call to Next.
func NewLineSource(r io.Reader) *LineSource {
	ls := &LineSource{br: bufio.NewReaderSize(r, 64*1024), newline: "\n", lastHadNewline: true}
	ls.fill()
	return ls
}

func (ls *LineSource) fill() {
	if ls.pending != nil || ls.exhausted {
		return
	}
	text, hasNL, ok := ls.readRaw()
	if !ok {
		ls.exhausted = true
		return
	}
	ls.pending = &text
	ls.pendingNL = hasNL
}

// readRaw reads one terminator-delimited chunk, stripping the terminator
// and recording its shape on first sight.
func (ls *LineSource) readRaw() (line string, hasNL bool, ok bool) {
	text, err := ls.br.ReadString('\n')
	if len(text) == 0 && err != nil {
		return "", false, false
	}
	hasNL = strings.HasSuffix(text, "\n")
	if hasNL {
		text = text[:len(text)-1]
		if strings.HasSuffix(text, "\r") {
			text = text[:len(text)-1]
			if !ls.newlineDetected {
				ls.newline = "\r\n"
				ls.newlineDetected = true
			}
		} else if !ls.newlineDetected {
			ls.newline = "\n"
			ls.newlineDetected = true
		}
	}
	return text, hasNL, true
}

// Next implements engine.LineSource.
func (ls *LineSource) Next() (string, bool) {
	if ls.pending == nil {
		return "", false
	}
	line := *ls.pending
	ls.lastHadNewline = ls.pendingNL
	ls.pending = nil
	ls.fill()
	return line, true
}

// HasNext implements engine.LineSource.
func (ls *LineSource) HasNext() bool { return ls.pending != nil }

// Newline returns the dominant line terminator inferred from the input so
// far: "\n" or "\r\n".
func (ls *LineSource) Newline() string { return ls.newline }

// LastHadNewline reports whether the most recently returned line (from
// Next) was followed by a terminator in the source. False only for a
// final line with no trailing newline.
func (ls *LineSource) LastHadNewline() bool { return ls.lastHadNewline }

var _ engine.LineSource = (*LineSource)(nil)
