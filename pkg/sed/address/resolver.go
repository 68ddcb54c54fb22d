// Package address resolves a Command's Range against the current
// cycle's line number, pattern space, and last-line flag.
//
// Grounded on the teacher's addrMatch/matches/preActivateRanges trio
// (pkg/applets/sed/sed.go), generalized from the teacher's two-bool
// rangeActive/rangeStart scheme to an explicit state machine so that
// (/pattern/, +k) and (/pattern/, N) ranges — which the teacher never
// implemented — have somewhere to keep their extra state.
package address

import "github.com/InkyQuill/sedx/pkg/sed/program"

// RangeState names where a two-address range's state machine for a
// given command currently sits.
type RangeState int

const (
	LookingForStart RangeState = iota
	InRange
	WaitingForEndLine
	CountingRelative
	Done
)

func (s RangeState) String() string {
	switch s {
	case LookingForStart:
		return "LookingForStart"
	case InRange:
		return "InRange"
	case WaitingForEndLine:
		return "WaitingForEndLine"
	case CountingRelative:
		return "CountingRelative"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

type rangeTrack struct {
	state     RangeState
	startLine int
}

// Cursor carries the per-line facts every address check needs.
type Cursor struct {
	LineNum  int
	Line     string
	LastLine bool
}

// Resolver evaluates Command.Range values one cycle at a time. It is
// owned by a single engine run: range state is keyed per *program.Command
// pointer, so the same compiled Program must not be shared across two
// concurrent runs, matching the teacher's one-engine-per-invocation shape.
type Resolver struct {
	ranges    map[*program.Command]*rangeTrack
	lastRegex program.CompiledRegexp
}

// New returns a Resolver with no range or last-regex state, ready for
// the first line of a fresh run.
func New() *Resolver {
	return &Resolver{ranges: make(map[*program.Command]*rangeTrack)}
}

// LastRegex returns the most recently matched Pattern address or 's'
// regex, for the "s//repl/" and "//" reuse-last-pattern forms.
func (r *Resolver) LastRegex() program.CompiledRegexp { return r.lastRegex }

// SetLastRegex records re as the reusable "last" pattern, called by the
// engine after a substitution whose own regex was used (not reused).
func (r *Resolver) SetLastRegex(re program.CompiledRegexp) { r.lastRegex = re }

// RangeActive reports whether cmd's two-address range is currently
// mid-range (i.e. this is not the final line of the range) as of the
// last call to Matches for cmd. False for single-address commands.
func (r *Resolver) RangeActive(cmd *program.Command) bool {
	if !cmd.Range.IsTwoAddress() {
		return false
	}
	t, ok := r.ranges[cmd]
	return ok && t.state != LookingForStart && t.state != Done
}

func (r *Resolver) track(cmd *program.Command) *rangeTrack {
	t, ok := r.ranges[cmd]
	if !ok {
		t = &rangeTrack{state: LookingForStart}
		r.ranges[cmd] = t
	}
	return t
}

// PreActivate matches addr1 of every still-dormant two-address range
// against the current line before any command in this cycle runs, so a
// range whose start address is keyed to this exact line still activates
// even if an earlier command (d, a branch) ends the cycle first.
// Grounded on the teacher's preActivateRanges.
func (r *Resolver) PreActivate(cmds []*program.Command, cur Cursor) {
	for _, cmd := range cmds {
		if !cmd.Range.IsTwoAddress() {
			continue
		}
		t := r.track(cmd)
		if t.state != LookingForStart {
			continue
		}
		if r.matchAddressNoTrack(cmd.Range.Addr1, cur) {
			r.activate(cmd, t, cur)
		}
	}
}

// Matches reports whether cmd's range applies to the current line,
// advancing any two-address range's state machine as a side effect.
func (r *Resolver) Matches(cmd *program.Command, cur Cursor) bool {
	rng := cmd.Range
	if rng.IsNone() {
		return !rng.Negated
	}
	if !rng.IsTwoAddress() {
		m := r.matchAddress(rng.Addr1, cur)
		if rng.Negated {
			return !m
		}
		return m
	}
	applies := r.matchRange(cmd, cur)
	if rng.Negated {
		return !applies
	}
	return applies
}

// matchRange implements the two-address state machine from spec.md's
// §4.C resolution rules, returning whether the range (unnegated)
// applies to the current line.
func (r *Resolver) matchRange(cmd *program.Command, cur Cursor) bool {
	rng := cmd.Range
	t := r.track(cmd)

	if t.state == Done {
		t.state = LookingForStart
	}

	if t.state == LookingForStart {
		if !r.matchAddress(rng.Addr1, cur) {
			return false
		}
		r.activate(cmd, t, cur)
		// Pseudo-line-0 start addresses (0,/re/) are already "in range"
		// before line 1, so the end address is tested on line 1 itself —
		// every other range skips testing the end address on the line
		// the start address fired.
		if rng.Addr1.Kind == program.AddrFirstLine && t.state != Done {
			if r.rangeEnds(cmd, t, cur) {
				t.state = Done
			}
		}
		return true
	}

	// Already in range. A range PreActivate started on this very line
	// does not test its end address here (0,/re/ excepted, as above).
	if t.startLine == cur.LineNum && rng.Addr1.Kind != program.AddrFirstLine {
		return true
	}
	// Test whether it ends on this line.
	if r.rangeEnds(cmd, t, cur) {
		t.state = LookingForStart
	}
	return true
}

// activate transitions a range out of LookingForStart once addr1 has
// matched, choosing the sub-state addr2 implies. A fixed end line or
// relative offset that has already been reached collapses the range to
// a single matching line, per spec.md's "degenerate ranges" rule.
func (r *Resolver) activate(cmd *program.Command, t *rangeTrack, cur Cursor) {
	t.startLine = cur.LineNum
	addr2 := cmd.Range.Addr2
	switch addr2.Kind {
	case program.AddrLine:
		if addr2.Line <= cur.LineNum {
			t.state = Done
		} else {
			t.state = WaitingForEndLine
		}
	case program.AddrRelative:
		if addr2.Offset <= 0 {
			t.state = Done
		} else {
			t.state = CountingRelative
		}
	default:
		t.state = InRange
	}
}

// rangeEnds evaluates addr2 against the current line for an already
// active range.
func (r *Resolver) rangeEnds(cmd *program.Command, t *rangeTrack, cur Cursor) bool {
	addr2 := cmd.Range.Addr2
	switch addr2.Kind {
	case program.AddrRelative:
		return cur.LineNum >= t.startLine+addr2.Offset
	case program.AddrLine:
		return cur.LineNum >= addr2.Line
	case program.AddrLastLine:
		return cur.LastLine
	case program.AddrStep:
		return addr2.Step > 0 && cur.LineNum%addr2.Step == 0
	case program.AddrPattern:
		return r.regexMatches(addr2, cur.Line, true)
	case program.AddrReuseRegex:
		return r.lastRegex != nil && r.lastRegex.MatchString(cur.Line)
	default:
		return false
	}
}

// matchAddress implements the single-address resolution rules from
// spec.md's §4.C, updating lastRegex when a Pattern address matches (so
// a later // reuse-last-pattern address can find it).
func (r *Resolver) matchAddress(addr *program.Address, cur Cursor) bool {
	if addr == nil {
		return true
	}
	switch addr.Kind {
	case program.AddrLastLine:
		return cur.LastLine
	case program.AddrFirstLine:
		return cur.LineNum == 1
	case program.AddrLine:
		return cur.LineNum == addr.Line
	case program.AddrStep:
		if addr.Line <= 0 {
			return addr.Step > 0 && cur.LineNum%addr.Step == 0
		}
		return cur.LineNum >= addr.Line && (cur.LineNum-addr.Line)%addr.Step == 0
	case program.AddrRelative:
		// A standalone Relative address has no prior range to supply
		// its base; base resolves to 0, so it behaves as Line(offset).
		return cur.LineNum == addr.Offset
	case program.AddrPattern:
		return r.regexMatches(addr, cur.Line, true)
	case program.AddrReuseRegex:
		return r.lastRegex != nil && r.lastRegex.MatchString(cur.Line)
	case program.AddrNegated:
		return !r.matchAddress(addr.Inner, cur)
	default:
		return true
	}
}

// matchAddressNoTrack is matchAddress without the lastRegex side
// effect, used by PreActivate so scanning ahead for range-start
// candidates can't perturb // reuse-last-pattern resolution for
// commands that haven't actually run yet this cycle.
func (r *Resolver) matchAddressNoTrack(addr *program.Address, cur Cursor) bool {
	if addr == nil {
		return true
	}
	switch addr.Kind {
	case program.AddrLastLine:
		return cur.LastLine
	case program.AddrFirstLine:
		return cur.LineNum == 1
	case program.AddrLine:
		return cur.LineNum == addr.Line
	case program.AddrStep:
		if addr.Line <= 0 {
			return addr.Step > 0 && cur.LineNum%addr.Step == 0
		}
		return cur.LineNum >= addr.Line && (cur.LineNum-addr.Line)%addr.Step == 0
	case program.AddrRelative:
		return cur.LineNum == addr.Offset
	case program.AddrPattern:
		return r.regexMatches(addr, cur.Line, false)
	case program.AddrReuseRegex:
		return r.lastRegex != nil && r.lastRegex.MatchString(cur.Line)
	case program.AddrNegated:
		return !r.matchAddressNoTrack(addr.Inner, cur)
	default:
		return true
	}
}

// regexMatches tests a Pattern address's compiled regex, recording it
// as lastRegex on a match when track is true.
func (r *Resolver) regexMatches(addr *program.Address, line string, track bool) bool {
	if addr.Regex == nil || addr.Regex.Compiled == nil {
		return false
	}
	if !addr.Regex.Compiled.MatchString(line) {
		return false
	}
	if track {
		r.lastRegex = addr.Regex.Compiled
	}
	return true
}
