// Package engine runs a parsed Program one input line at a time.
//
// Grounded on the teacher's engine/execCmds/execOne/processLine
// (pkg/applets/sed/sed.go), generalized from the teacher's nested-group
// recursion and untyped int flow constants to a flattened command walk
// over a typed CycleResult, and extended with the side-effect ordering
// (pre/post pattern-space emission) and execution-limit guard spec.md
// names that the teacher's engine doesn't implement.
package engine

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/InkyQuill/sedx/pkg/core/fs"
	"github.com/InkyQuill/sedx/pkg/sed/address"
	"github.com/InkyQuill/sedx/pkg/sed/dialect"
	"github.com/InkyQuill/sedx/pkg/sed/program"
	"github.com/InkyQuill/sedx/pkg/sed/sederr"
)

// ResultKind classifies how one command execution ended, generalizing
// the teacher's untyped flow constants into a small typed result.
type ResultKind int

const (
	ResultContinue ResultKind = iota
	ResultDelete
	ResultRestart
	ResultBranch
	ResultQuit
)

// CycleResult is what executing one command returns. Target is the branch
// index for ResultBranch, or the process exit code for ResultQuit;
// PrintFirst is only meaningful for ResultQuit.
type CycleResult struct {
	Kind       ResultKind
	Target     int
	PrintFirst bool
}

var resultContinue = CycleResult{Kind: ResultContinue}

// LineSource abstracts where the next input line comes from, so the
// same Engine drives both the streaming processor and the in-memory
// processor.
type LineSource interface {
	// Next returns the next input line (without its terminator) and
	// whether one was available.
	Next() (line string, ok bool)
	// HasNext reports whether a further line is available, without
	// consuming it. Backs the LastLine ($) address.
	HasNext() bool
}

// Config holds the engine knobs spec.md leaves as configuration rather
// than fixed behavior.
type Config struct {
	Quiet          bool
	PrintOnNAtEOF  bool
	ExecutionLimit int
	Filename       string
	// Newline is the line terminator written after each emitted line.
	// Defaults to "\n"; the streaming and in-memory processors set it to
	// the input's own dominant terminator so line-ending preservation
	// (spec.md §4.E, testable property 6) holds for "\r\n" input too.
	Newline string
}

// DefaultConfig matches GNU sed's own defaults for the two Open
// Questions this engine resolves: N-at-EOF prints the pattern space,
// and a generous but finite per-cycle branch budget guards against
// scripts that loop forever on a line that never satisfies their exit
// condition.
func DefaultConfig() Config {
	return Config{PrintOnNAtEOF: true, ExecutionLimit: 10000}
}

// Engine walks a flattened Program over successive lines from a
// LineSource, writing pattern-space and side-effect output to out.
type Engine struct {
	Program  *program.Program
	Resolver *address.Resolver
	Config   Config

	out       *bufio.Writer
	holdSpace string
	lineNum   int

	wfiles map[string]*os.File
	rstate map[string]*bufio.Scanner
	rfiles map[string]*os.File

	lastWasAppend bool
	quit          bool

	// OnCycle, if set, is called once per completed cycle with the input
	// line the cycle started from and every line the cycle wrote (in
	// emission order, pre-pattern-space first). It is the streaming
	// processor's hook for driving the diff window (component I) without
	// the engine itself knowing anything about diffing.
	OnCycle func(input string, output []string)
}

// New builds an Engine ready to run prog over a LineSource.
func New(prog *program.Program, cfg Config, out io.Writer) *Engine {
	if cfg.Newline == "" {
		cfg.Newline = "\n"
	}
	return &Engine{
		Program:  prog,
		Resolver: address.New(),
		Config:   cfg,
		out:      bufio.NewWriter(out),
		wfiles:   make(map[string]*os.File),
		rstate:   make(map[string]*bufio.Scanner),
		rfiles:   make(map[string]*os.File),
	}
}

// Run drives the engine to completion or until a Quit command fires,
// returning the requested exit code (0 if the program never quits
// explicitly).
func (e *Engine) Run(src LineSource) (quitCode int, err error) {
	for {
		line, ok := src.Next()
		if !ok {
			break
		}
		e.lineNum++
		lastLine := !src.HasNext()
		quit, code, perr := e.processLine(line, lastLine, src)
		if perr != nil {
			return 0, perr
		}
		if quit {
			quitCode = code
			e.quit = true
			break
		}
	}
	if err := e.out.Flush(); err != nil {
		return quitCode, err
	}
	return quitCode, e.closeFiles()
}

// Quit reports whether a q/Q command ended the run, as opposed to the
// input simply being exhausted.
func (e *Engine) Quit() bool { return e.quit }

// LastWasAppend reports whether the most recently written output line
// came from a side effect (a/i/c/r/R/p/P/=/F) rather than an automatic
// pattern-space emission — the streaming and in-memory processors use
// this to decide whether to strip a synthetic trailing newline when the
// original input had none.
func (e *Engine) LastWasAppend() bool { return e.lastWasAppend }

func (e *Engine) closeFiles() error {
	var first error
	for _, f := range e.wfiles {
		if cerr := f.Close(); cerr != nil && first == nil {
			first = cerr
		}
	}
	for _, f := range e.rfiles {
		f.Close()
	}
	return first
}

type cycle struct {
	pattern     string
	lastLine    bool
	substituted bool
	preEmit     []string
	postEmit    []string
	src         LineSource
}

// processLine runs one full cycle for line, per the cycle-termination
// table in spec.md §4.D.
func (e *Engine) processLine(line string, lastLine bool, src LineSource) (quit bool, code int, err error) {
	c := &cycle{pattern: line, lastLine: lastLine, src: src}

	result, err := e.execCycle(c)
	if err != nil {
		return false, 0, err
	}

	var written []string
	switch result.Kind {
	case ResultDelete:
		written = append(written, e.emit(c.preEmit)...)
		written = append(written, e.emit(c.postEmit)...)
		e.fireOnCycle(line, written)
		return false, 0, nil
	case ResultQuit:
		written = append(written, e.emit(c.preEmit)...)
		if result.PrintFirst && !e.Config.Quiet {
			e.writeLine(c.pattern)
			e.lastWasAppend = false
			written = append(written, c.pattern)
		}
		written = append(written, e.emit(c.postEmit)...)
		e.fireOnCycle(line, written)
		return true, result.Target, nil
	default:
		written = append(written, e.emit(c.preEmit)...)
		if !e.Config.Quiet {
			e.writeLine(c.pattern)
			e.lastWasAppend = false
			written = append(written, c.pattern)
		}
		written = append(written, e.emit(c.postEmit)...)
		e.fireOnCycle(line, written)
		return false, 0, nil
	}
}

func (e *Engine) fireOnCycle(input string, output []string) {
	if e.OnCycle != nil {
		e.OnCycle(input, output)
	}
}

func (e *Engine) emit(lines []string) []string {
	for _, l := range lines {
		e.writeLine(l)
		e.lastWasAppend = true
	}
	return lines
}

func (e *Engine) writeLine(s string) {
	e.out.WriteString(s)
	e.out.WriteString(e.Config.Newline)
}

// execCycle walks the flattened command list, handling GroupStart/
// GroupEnd skip-ahead, branch targets, and the D-triggered restart,
// with a per-cycle step budget guarding against a script whose
// branches never satisfy their own exit condition.
func (e *Engine) execCycle(c *cycle) (CycleResult, error) {
	cmds := e.Program.Commands
	e.Resolver.PreActivate(cmds, e.cursor(c))

	steps := 0
	limit := e.Config.ExecutionLimit
	if limit <= 0 {
		limit = DefaultConfig().ExecutionLimit
	}

	for i := 0; i < len(cmds); i++ {
		steps++
		if steps > limit {
			return CycleResult{}, sederr.New(sederr.AddressError, "execution limit exceeded: program did not terminate its cycle")
		}

		cmd := cmds[i]
		if cmd.Kind == program.KindGroupEnd {
			continue
		}

		if !e.Resolver.Matches(cmd, e.cursor(c)) {
			if cmd.Kind == program.KindGroupStart {
				i = cmd.GroupEnd
			}
			continue
		}

		res, err := e.execOne(cmd, c)
		if err != nil {
			return CycleResult{}, err
		}

		switch res.Kind {
		case ResultDelete, ResultQuit:
			return res, nil
		case ResultBranch:
			i = res.Target - 1
		case ResultRestart:
			i = -1
		}
	}
	return resultContinue, nil
}

func (e *Engine) cursor(c *cycle) address.Cursor {
	return address.Cursor{LineNum: e.lineNum, Line: c.pattern, LastLine: c.lastLine}
}

// execOne implements the per-command semantics from spec.md §4.D.
// Unspecified commands leave state unchanged beyond what is named.
func (e *Engine) execOne(cmd *program.Command, c *cycle) (CycleResult, error) {
	switch cmd.Kind {
	case program.KindGroupStart:
		return resultContinue, nil

	case program.KindLabel:
		return resultContinue, nil

	case program.KindDelete:
		return CycleResult{Kind: ResultDelete}, nil

	case program.KindDeleteFirstLine:
		if idx := strings.IndexByte(c.pattern, '\n'); idx >= 0 {
			c.pattern = c.pattern[idx+1:]
			return CycleResult{Kind: ResultRestart}, nil
		}
		return CycleResult{Kind: ResultDelete}, nil

	case program.KindPrint:
		c.preEmit = append(c.preEmit, c.pattern)
		return resultContinue, nil

	case program.KindPrintFirstLine:
		if idx := strings.IndexByte(c.pattern, '\n'); idx >= 0 {
			c.preEmit = append(c.preEmit, c.pattern[:idx])
		} else {
			c.preEmit = append(c.preEmit, c.pattern)
		}
		return resultContinue, nil

	case program.KindClearPatternSpace:
		c.pattern = ""
		return resultContinue, nil

	case program.KindQuit:
		return CycleResult{Kind: ResultQuit, PrintFirst: true, Target: cmd.ExitCode}, nil

	case program.KindQuitSilent:
		return CycleResult{Kind: ResultQuit, PrintFirst: false, Target: cmd.ExitCode}, nil

	case program.KindHold:
		e.holdSpace = c.pattern
		return resultContinue, nil

	case program.KindHoldAppend:
		e.holdSpace += "\n" + c.pattern
		return resultContinue, nil

	case program.KindGet:
		c.pattern = e.holdSpace
		return resultContinue, nil

	case program.KindGetAppend:
		c.pattern += "\n" + e.holdSpace
		return resultContinue, nil

	case program.KindExchange:
		c.pattern, e.holdSpace = e.holdSpace, c.pattern
		return resultContinue, nil

	case program.KindNext:
		if !e.Config.Quiet {
			e.emit(c.preEmit)
			c.preEmit = nil
			e.writeLine(c.pattern)
			e.lastWasAppend = false
		}
		next, ok := c.src.Next()
		if !ok {
			return CycleResult{Kind: ResultDelete}, nil
		}
		e.lineNum++
		c.pattern = next
		c.lastLine = !c.src.HasNext()
		c.substituted = false
		return resultContinue, nil

	case program.KindNextAppend:
		next, ok := c.src.Next()
		if !ok {
			if e.Config.PrintOnNAtEOF {
				return CycleResult{Kind: ResultQuit, PrintFirst: true}, nil
			}
			return CycleResult{Kind: ResultQuit, PrintFirst: false}, nil
		}
		e.lineNum++
		c.pattern += "\n" + next
		c.lastLine = !c.src.HasNext()
		return resultContinue, nil

	case program.KindPrintLineNumber:
		c.preEmit = append(c.preEmit, strconv.Itoa(e.lineNum))
		return resultContinue, nil

	case program.KindPrintFilename:
		name := e.Config.Filename
		if name == "" {
			name = "-"
		}
		c.preEmit = append(c.preEmit, name)
		return resultContinue, nil

	case program.KindInsert:
		c.preEmit = append(c.preEmit, cmd.Text)
		return resultContinue, nil

	case program.KindAppend:
		c.postEmit = append(c.postEmit, cmd.Text)
		return resultContinue, nil

	case program.KindChange:
		if !e.Resolver.RangeActive(cmd) {
			c.preEmit = append(c.preEmit, cmd.Text)
		}
		c.pattern = ""
		return CycleResult{Kind: ResultDelete}, nil

	case program.KindSubstitute:
		e.applySubstitute(cmd, c)
		return resultContinue, nil

	case program.KindBranch:
		return CycleResult{Kind: ResultBranch, Target: cmd.BranchTarget}, nil

	case program.KindTest:
		if c.substituted {
			c.substituted = false
			return CycleResult{Kind: ResultBranch, Target: cmd.BranchTarget}, nil
		}
		return resultContinue, nil

	case program.KindTestFalse:
		if !c.substituted {
			return CycleResult{Kind: ResultBranch, Target: cmd.BranchTarget}, nil
		}
		return resultContinue, nil

	case program.KindReadFile:
		data, err := fs.ReadFile(cmd.Text)
		if err == nil {
			c.postEmit = append(c.postEmit, strings.TrimSuffix(string(data), "\n"))
		}
		return resultContinue, nil

	case program.KindReadLine:
		if line, ok := e.nextReadLine(cmd.Text); ok {
			c.postEmit = append(c.postEmit, line)
		}
		return resultContinue, nil

	case program.KindWriteFile:
		e.writeToFile(cmd.Text, c.pattern)
		return resultContinue, nil

	case program.KindWriteFirstLine:
		line := c.pattern
		if idx := strings.IndexByte(line, '\n'); idx >= 0 {
			line = line[:idx]
		}
		e.writeToFile(cmd.Text, line)
		return resultContinue, nil

	default:
		return resultContinue, nil
	}
}

// applySubstitute implements the Substitute command: find the regex
// (falling back to the last matched/substituted pattern when the
// command carries none, GNU sed's "s//repl/" reuse form), replace the
// first, nth, or every match, expand apply-time escapes in each
// replacement individually, and fire the p/w flags on an actual change.
func (e *Engine) applySubstitute(cmd *program.Command, c *cycle) {
	re := e.substRegex(cmd)
	if re == nil {
		return
	}

	old := c.pattern
	switch {
	case cmd.Global:
		c.pattern = replaceAllExpanding(re, c.pattern, cmd.Repl)
	case cmd.Nth > 0:
		count := 0
		c.pattern = re.ReplaceAllStringFunc(c.pattern, func(match string) string {
			count++
			if count != cmd.Nth {
				return match
			}
			return dialect.ExpandEscapes(re.ReplaceAllString(match, cmd.Repl))
		})
	default:
		loc := re.FindStringIndex(c.pattern)
		if loc != nil {
			matched := c.pattern[loc[0]:loc[1]]
			repl := dialect.ExpandEscapes(re.ReplaceAllString(matched, cmd.Repl))
			c.pattern = c.pattern[:loc[0]] + repl + c.pattern[loc[1]:]
		}
	}

	if c.pattern != old {
		c.substituted = true
		if cmd.PrintOnSub {
			c.preEmit = append(c.preEmit, c.pattern)
		}
		if cmd.WriteFile != "" {
			e.writeToFile(cmd.WriteFile, c.pattern)
		}
	}
}

// replaceAllExpanding mirrors regexp.ReplaceAllString but expands
// apply-time escapes within each individual match's replacement,
// rather than once over the whole result (which would also touch
// literal backslash sequences the user's unmatched text happened to
// contain).
func replaceAllExpanding(re program.CompiledRegexp, s, repl string) string {
	matches := re.FindAllStringIndex(s, -1)
	if matches == nil {
		return s
	}
	var out strings.Builder
	last := 0
	for _, loc := range matches {
		out.WriteString(s[last:loc[0]])
		matched := s[loc[0]:loc[1]]
		out.WriteString(dialect.ExpandEscapes(re.ReplaceAllString(matched, repl)))
		last = loc[1]
	}
	out.WriteString(s[last:])
	return out.String()
}

// substRegex resolves the regex an 's' command actually runs: its own
// compiled pattern, or (when the pattern was written as empty, "s//.../")
// the most recently matched regex, recording whichever is used as the
// new "last" regex for any later reuse.
func (e *Engine) substRegex(cmd *program.Command) program.CompiledRegexp {
	if cmd.Regex != nil {
		e.Resolver.SetLastRegex(cmd.Regex.Compiled)
		return cmd.Regex.Compiled
	}
	return e.Resolver.LastRegex()
}

// nextReadLine advances the per-file line cursor a KindReadLine command
// reads from, opening the file and its scanner on first use. A file
// that can't be opened, or has been exhausted, yields no line — GNU
// sed's compat behavior for both cases.
func (e *Engine) nextReadLine(path string) (string, bool) {
	sc, known := e.rstate[path]
	if !known {
		f, err := fs.Open(path)
		if err != nil {
			e.rstate[path] = nil
			return "", false
		}
		e.rfiles[path] = f
		sc = bufio.NewScanner(f)
		e.rstate[path] = sc
	}
	if sc == nil {
		return "", false
	}
	if sc.Scan() {
		return sc.Text(), true
	}
	return "", false
}

// writeToFile appends line plus a trailing newline to the writer open
// for path, creating (truncating) it on first use and keeping it open
// for the rest of the run, matching the teacher's writeFile.
func (e *Engine) writeToFile(path, line string) {
	f, ok := e.wfiles[path]
	if !ok {
		var err error
		f, err = fs.Create(path)
		if err != nil {
			return
		}
		e.wfiles[path] = f
	}
	f.WriteString(line)
	f.WriteString("\n")
}
