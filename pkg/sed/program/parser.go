package program

import (
	"strconv"
	"strings"

	"github.com/InkyQuill/sedx/pkg/sed/dialect"
	"github.com/InkyQuill/sedx/pkg/sed/sederr"
)

// Parse lexes and parses a concatenated sed program (fragments already
// joined with "\n" by the caller, per spec.md §4.B) into a flattened,
// fully validated Program.
func Parse(script string, d dialect.Dialect) (*Program, error) {
	p := &parser{src: script, dialect: d}
	if err := p.parseBlock(false); err != nil {
		return nil, err
	}
	prog := &Program{Commands: p.out, Labels: p.labels, Dialect: d}
	if err := resolveBranches(prog); err != nil {
		return nil, err
	}
	return prog, nil
}

type parser struct {
	src     string
	pos     int
	dialect dialect.Dialect
	out     []*Command
	labels  map[string]int
}

func (p *parser) errf(subKind, msg string) error {
	start := p.pos - 20
	if start < 0 {
		start = 0
	}
	end := p.pos + 20
	if end > len(p.src) {
		end = len(p.src)
	}
	return &sederr.Error{Kind: sederr.ParseError, SubKind: subKind, Message: msg, ByteOffset: p.pos, Context: p.src[start:end]}
}

func (p *parser) skipSpaces() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) skipWS() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n' || p.src[p.pos] == ';') {
		p.pos++
	}
}

// parseBlock parses commands until EOF (top level) or a closing '}'
// (inGroup), appending flattened commands directly to p.out.
func (p *parser) parseBlock(inGroup bool) error {
	for {
		p.skipWS()
		if p.pos >= len(p.src) {
			if inGroup {
				return p.errf(sederr.SubUnterminatedPattern, "unterminated group: missing '}'")
			}
			return nil
		}
		if p.src[p.pos] == '}' {
			if !inGroup {
				return p.errf(sederr.SubUnknownCommand, "unexpected '}'")
			}
			p.pos++
			return nil
		}
		if p.src[p.pos] == '#' {
			for p.pos < len(p.src) && p.src[p.pos] != '\n' {
				p.pos++
			}
			continue
		}
		if err := p.parseOneCommand(); err != nil {
			return err
		}
	}
}

func (p *parser) parseOneCommand() error {
	p.skipSpaces()
	if p.pos >= len(p.src) {
		return nil
	}

	var rng Range
	a1, err := p.parseAddress()
	if err != nil {
		return err
	}
	rng.Addr1 = a1

	if p.pos < len(p.src) && p.src[p.pos] == ',' {
		p.pos++
		p.skipSpaces()
		a2, err := p.parseAddress()
		if err != nil {
			return err
		}
		if a2 == nil {
			return p.errf(sederr.SubInvalidAddress, "expected address after ','")
		}
		rng.Addr2 = a2
		// 0,/re/ starts before line 1, so its end pattern is tested on line 1.
		if a1 != nil && a1.Kind == AddrLine && a1.Line == 0 && (a2.Kind == AddrPattern || a2.Kind == AddrReuseRegex) {
			rng.Addr1 = &Address{Kind: AddrFirstLine}
		}
	}

	p.skipSpaces()
	if p.pos >= len(p.src) || p.src[p.pos] == '\n' || p.src[p.pos] == ';' {
		if rng.Addr1 != nil {
			return p.errf(sederr.SubInvalidAddress, "address with no command")
		}
		return nil
	}

	for p.pos < len(p.src) && p.src[p.pos] == '!' {
		rng.Negated = !rng.Negated
		p.pos++
		p.skipSpaces()
	}

	if p.pos >= len(p.src) {
		return p.errf(sederr.SubUnknownCommand, "incomplete command")
	}

	letter := p.src[p.pos]
	p.pos++

	switch letter {
	case KindGroupStart:
		startIdx := len(p.out)
		start := &Command{Kind: KindGroupStart, Range: rng}
		p.out = append(p.out, start)
		if err := p.parseBlock(true); err != nil {
			return err
		}
		endIdx := len(p.out)
		end := &Command{Kind: KindGroupEnd, GroupStart: startIdx}
		p.out = append(p.out, end)
		start.GroupEnd = endIdx
		return nil

	case KindInsert, KindAppend, KindChange:
		text := p.parseTextArg()
		p.out = append(p.out, &Command{Kind: letter, Range: rng, Text: text})
		return nil

	case KindLabel:
		p.skipSpaces()
		name := p.parseLabel()
		if name == "" {
			return p.errf(sederr.SubMissingLabel, "empty label name")
		}
		if p.labels == nil {
			p.labels = map[string]int{}
		}
		if _, dup := p.labels[name]; dup {
			return p.errf(sederr.SubMissingLabel, "duplicate label: "+name)
		}
		p.labels[name] = len(p.out)
		p.out = append(p.out, &Command{Kind: KindLabel, Text: name})
		return nil

	case KindBranch, KindTest, KindTestFalse:
		p.skipSpaces()
		name := p.parseLabel()
		p.out = append(p.out, &Command{Kind: letter, Range: rng, Text: name, BranchTarget: -2})
		return nil

	case KindSubstitute:
		cmd, err := p.parseSubstitution(rng)
		if err != nil {
			return err
		}
		p.out = append(p.out, cmd)
		return nil

	case 'y', 'l', 'e':
		return p.errf(sederr.SubUnknownCommand, "command '"+string(letter)+"' is not supported by this engine")

	case KindReadFile, KindWriteFile, KindReadLine, KindWriteFirstLine:
		p.skipSpaces()
		start := p.pos
		for p.pos < len(p.src) && p.src[p.pos] != '\n' && p.src[p.pos] != ';' {
			p.pos++
		}
		name := strings.TrimSpace(p.src[start:p.pos])
		if name == "" {
			return p.errf(sederr.SubUnterminatedPattern, "missing filename for '"+string(letter)+"'")
		}
		p.out = append(p.out, &Command{Kind: letter, Range: rng, Text: name})
		return nil

	case KindQuit, KindQuitSilent:
		p.skipSpaces()
		code := 0
		if p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			start := p.pos
			for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
				p.pos++
			}
			code, _ = strconv.Atoi(p.src[start:p.pos])
		}
		p.out = append(p.out, &Command{Kind: letter, Range: rng, PrintFirst: letter == KindQuit, ExitCode: code})
		return nil

	case KindDelete, KindDeleteFirstLine, KindGet, KindGetAppend, KindHold, KindHoldAppend,
		KindPrint, KindPrintFirstLine, KindExchange, KindNext, KindNextAppend,
		KindPrintLineNumber, KindPrintFilename, KindClearPatternSpace:
		p.out = append(p.out, &Command{Kind: letter, Range: rng})
		return nil

	default:
		return p.errf(sederr.SubUnknownCommand, "unknown command: '"+string(letter)+"'")
	}
}

func (p *parser) parseAddress() (*Address, error) {
	p.skipSpaces()
	if p.pos >= len(p.src) {
		return nil, nil
	}
	ch := p.src[p.pos]
	if ch == '$' {
		p.pos++
		return &Address{Kind: AddrLastLine}, nil
	}
	if ch >= '0' && ch <= '9' {
		start := p.pos
		for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
		n, _ := strconv.Atoi(p.src[start:p.pos])
		if p.pos < len(p.src) && p.src[p.pos] == '~' {
			p.pos++
			s2 := p.pos
			for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
				p.pos++
			}
			step, _ := strconv.Atoi(p.src[s2:p.pos])
			if step < 1 {
				return nil, p.errf(sederr.SubInvalidAddress, "step must be >= 1")
			}
			return &Address{Kind: AddrStep, Line: n, Step: step}, nil
		}
		return &Address{Kind: AddrLine, Line: n}, nil
	}
	if ch == '/' || ch == '\\' {
		delim := byte('/')
		if ch == '\\' {
			p.pos++
			if p.pos >= len(p.src) {
				return nil, p.errf(sederr.SubUnterminatedPattern, "unterminated address regex")
			}
			delim = p.src[p.pos]
		}
		p.pos++
		pat, ignoreCase := p.readAddressRegex(delim)
		if pat == "" {
			return &Address{Kind: AddrReuseRegex}, nil
		}
		re, err := dialect.CompilePattern(p.dialect, pat, ignoreCase)
		if err != nil {
			return nil, err
		}
		return &Address{Kind: AddrPattern, Regex: &RegexRef{Source: pat, IgnoreCase: ignoreCase, Compiled: re}}, nil
	}
	if ch == '+' {
		p.pos++
		start := p.pos
		for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
		if p.pos > start {
			n, _ := strconv.Atoi(p.src[start:p.pos])
			return &Address{Kind: AddrRelative, Offset: n}, nil
		}
		p.pos--
	}
	if ch == '~' {
		// GNU sed "addr1,~N": next multiple of N. Modeled as a step
		// address whose Step field doubles as the multiple.
		p.pos++
		start := p.pos
		for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
		n, _ := strconv.Atoi(p.src[start:p.pos])
		return &Address{Kind: AddrStep, Step: n, Line: -1}, nil
	}
	return nil, nil
}

// readAddressRegex reads until the unescaped delimiter, returning the
// pattern text with delimiter escapes resolved, plus whether a trailing
// "I" flag requested case-insensitive matching.
func (p *parser) readAddressRegex(delim byte) (string, bool) {
	pat := p.readUntilUnescaped(delim)
	ignoreCase := false
	for p.pos < len(p.src) && (p.src[p.pos] == 'I' || p.src[p.pos] == 'M') {
		if p.src[p.pos] == 'I' {
			ignoreCase = true
		}
		p.pos++
	}
	return pat, ignoreCase
}

func (p *parser) readUntilUnescaped(delim byte) string {
	var buf strings.Builder
	for p.pos < len(p.src) {
		ch := p.src[p.pos]
		if ch == '\\' && p.pos+1 < len(p.src) {
			next := p.src[p.pos+1]
			if next == delim {
				buf.WriteByte(delim)
				p.pos += 2
				continue
			}
			buf.WriteByte(ch)
			buf.WriteByte(next)
			p.pos += 2
			continue
		}
		if ch == delim {
			p.pos++
			return buf.String()
		}
		buf.WriteByte(ch)
		p.pos++
	}
	return buf.String()
}

func (p *parser) parseTextArg() string {
	if p.pos < len(p.src) && p.src[p.pos] == '\\' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '\n' {
		p.pos += 2
	} else {
		p.skipSpaces()
	}
	return p.parseTextBlock()
}

func (p *parser) parseTextBlock() string {
	var lines []string
	for {
		start := p.pos
		for p.pos < len(p.src) && p.src[p.pos] != '\n' {
			p.pos++
		}
		line := p.src[start:p.pos]
		if p.pos < len(p.src) && p.src[p.pos] == '\n' {
			p.pos++
		}
		line = strings.ReplaceAll(line, "\\n", "\n")
		if strings.HasSuffix(line, "\\") && !strings.HasSuffix(line, "\\\\") {
			lines = append(lines, line[:len(line)-1])
			continue
		}
		lines = append(lines, line)
		break
	}
	return strings.Join(lines, "\n")
}

func (p *parser) parseLabel() string {
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] != '\n' && p.src[p.pos] != ';' && p.src[p.pos] != '}' && p.src[p.pos] != ' ' && p.src[p.pos] != '\t' {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) parseSubstitution(rng Range) (*Command, error) {
	if p.pos >= len(p.src) {
		return nil, p.errf(sederr.SubUnterminatedPattern, "unterminated 's' command")
	}
	delim := p.src[p.pos]
	p.pos++
	pattern := p.readSubstPart(delim, true)
	replacement := p.readSubstPart(delim, false)

	cmd := &Command{Kind: KindSubstitute, Range: rng}
	ignoreCase := false
	for p.pos < len(p.src) && p.src[p.pos] != '\n' && p.src[p.pos] != ';' && p.src[p.pos] != '}' {
		ch := p.src[p.pos]
		switch {
		case ch == 'g':
			cmd.Global = true
		case ch == 'p':
			cmd.PrintOnSub = true
		case ch == 'i' || ch == 'I':
			ignoreCase = true
		case ch == 'w':
			p.pos++
			p.skipSpaces()
			start := p.pos
			for p.pos < len(p.src) && p.src[p.pos] != '\n' && p.src[p.pos] != ';' {
				p.pos++
			}
			cmd.WriteFile = strings.TrimSpace(p.src[start:p.pos])
			continue
		case ch >= '1' && ch <= '9':
			n := 0
			for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
				n = n*10 + int(p.src[p.pos]-'0')
				p.pos++
			}
			cmd.Nth = n
			continue
		default:
			return nil, p.errf(sederr.SubInvalidFlag, "invalid flag: '"+string(ch)+"'")
		}
		p.pos++
	}

	if pattern != "" {
		re, err := dialect.CompilePattern(p.dialect, pattern, ignoreCase)
		if err != nil {
			return nil, err
		}
		cmd.Regex = &RegexRef{Source: pattern, IgnoreCase: ignoreCase, Compiled: re}
	}
	cmd.Repl = dialect.NormalizeReplacement(p.dialect, replacement)
	return cmd, nil
}

// readSubstPart reads one delimiter-bounded part of an s command
// (pattern or replacement). Only the delimiter escape (\<delim> ->
// literal delim) is resolved here; all other escapes (including \n,
// deferred to apply time) are left untouched for the dialect converter
// and the apply-time expander.
func (p *parser) readSubstPart(delim byte, allowCharClass bool) string {
	var buf strings.Builder
	inClass := false
	for p.pos < len(p.src) {
		ch := p.src[p.pos]
		if ch == '\\' && p.pos+1 < len(p.src) {
			next := p.src[p.pos+1]
			if next == delim {
				buf.WriteByte(delim)
				p.pos += 2
				continue
			}
			buf.WriteByte(ch)
			buf.WriteByte(next)
			p.pos += 2
			continue
		}
		if allowCharClass && ch == '[' && !inClass {
			inClass = true
			buf.WriteByte(ch)
			p.pos++
			continue
		}
		if ch == ']' && inClass {
			inClass = false
			buf.WriteByte(ch)
			p.pos++
			continue
		}
		if ch == delim && !inClass {
			p.pos++
			return buf.String()
		}
		buf.WriteByte(ch)
		p.pos++
	}
	return buf.String()
}

// resolveBranches fills in BranchTarget for every b/t/T command, and
// validates invariant 1 from spec.md §3: every named target must exist
// in the label table.
func resolveBranches(prog *Program) error {
	for _, cmd := range prog.Commands {
		switch cmd.Kind {
		case KindBranch, KindTest, KindTestFalse:
			if cmd.Text == "" {
				cmd.BranchTarget = len(prog.Commands)
				continue
			}
			idx, ok := prog.Labels[cmd.Text]
			if !ok {
				return &sederr.Error{Kind: sederr.ParseError, SubKind: sederr.SubMissingLabel, Message: "can't find label for jump to '" + cmd.Text + "'"}
			}
			cmd.BranchTarget = idx
		}
	}
	return nil
}
