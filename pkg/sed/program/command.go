// Package program implements the sed grammar: lexing, parsing into a
// flattened command vector with a label table, and the typed data model
// spec.md's §3 names (Command, Address, Range).
//
// Grounded on the teacher's hand-written recursive-descent parser
// (pkg/applets/sed/sed.go's parser/sedCommand/address), generalized to
// three dialects and to every command variant spec.md enumerates.
package program

import "github.com/InkyQuill/sedx/pkg/sed/dialect"

// Command letters. Group boundaries are synthesized markers so the
// flattened command slice the engine walks never needs to recurse.
const (
	KindSubstitute       = 's'
	KindDelete           = 'd'
	KindPrint            = 'p'
	KindClearPatternSpace = 'z'
	KindQuit             = 'q'
	KindQuitSilent       = 'Q'
	KindInsert           = 'i'
	KindAppend           = 'a'
	KindChange           = 'c'
	KindGroupStart       = '{'
	KindGroupEnd         = '}'
	KindHold             = 'h'
	KindHoldAppend       = 'H'
	KindGet              = 'g'
	KindGetAppend        = 'G'
	KindExchange         = 'x'
	KindNext             = 'n'
	KindNextAppend       = 'N'
	KindPrintFirstLine   = 'P'
	KindDeleteFirstLine  = 'D'
	KindLabel            = ':'
	KindBranch           = 'b'
	KindTest             = 't'
	KindTestFalse        = 'T'
	KindReadFile         = 'r'
	KindWriteFile        = 'w'
	KindReadLine         = 'R'
	KindWriteFirstLine   = 'W'
	KindPrintLineNumber  = '='
	KindPrintFilename    = 'F'
)

// AddressKind discriminates the Address tagged variant in spec.md §3.
type AddressKind int

const (
	AddrNone AddressKind = iota
	AddrLine
	AddrPattern
	AddrFirstLine
	AddrLastLine
	AddrNegated
	AddrRelative
	AddrStep
	AddrReuseRegex
)

// Address is a tagged variant: Line, Pattern, FirstLine, LastLine,
// Negated(inner), Relative{base,offset}, Step{start,step}.
type Address struct {
	Kind   AddressKind
	Line   int
	Regex  *RegexRef
	Inner  *Address
	Offset int
	Step   int
}

// RegexRef defers regex compilation to parse time but keeps the source
// pattern and flags around for diagnostics and for the substitution
// command's "reuse last regex" behavior.
type RegexRef struct {
	Source     string
	IgnoreCase bool
	Compiled   CompiledRegexp
}

// CompiledRegexp is the minimal surface the engine needs from a
// compiled pattern; it is satisfied by *regexp.Regexp.
type CompiledRegexp interface {
	MatchString(string) bool
	FindStringIndex(string) []int
	FindAllStringIndex(string, int) [][]int
	ReplaceAllString(string, string) string
	ReplaceAllStringFunc(string, func(string) string) string
}

// Range is Some(a,a) | Some(a,b) | None (applies to every line), plus
// negation of the whole range per spec.md §3/§4.C.
type Range struct {
	Addr1   *Address // nil => None
	Addr2   *Address // nil => single-address range (or None if Addr1 is also nil)
	Negated bool
}

// IsNone reports whether the range applies to every line.
func (r Range) IsNone() bool { return r.Addr1 == nil }

// IsTwoAddress reports whether this is a two-address range.
func (r Range) IsTwoAddress() bool { return r.Addr2 != nil }

// Command is the tagged variant from spec.md §3. A single struct with a
// Kind discriminant carries the union of fields needed by any variant,
// following the teacher's sedCommand shape, extended to cover every
// command spec.md names and to carry resolved branch targets.
type Command struct {
	Kind  byte
	Range Range

	// s
	Regex      *RegexRef
	Repl       string // normalized ($n/${0}/$$), apply-time escapes deferred
	Global     bool
	Nth        int // 0 means "first match" (unless Global)
	PrintOnSub bool
	WriteFile  string

	// a, i, c, :, r, w, R, W, b, t, T
	Text string

	// b, t, T: resolved absolute index in the flattened command slice;
	// len(Commands) means "branch to end of program" (empty label).
	BranchTarget int

	// { / }: matching group boundary index in the flattened slice.
	GroupEnd   int
	GroupStart int

	// q / Q
	PrintFirst bool
	ExitCode   int
}

// Program is the parsed output: a flattened command vector plus the
// label table, per spec.md §3.
type Program struct {
	Commands []*Command
	Labels   map[string]int
	Dialect  dialect.Dialect
}
