// Package sedxcli wires the engine packages (pkg/sed/...) into the
// command-line surface spec.md §6.2 specifies as a contract: an
// Invocation struct, a subcommand set, and the core.Exit* exit code
// table. Grounded on the teacher's applet-contract split
// (cmd/<applet>/main.go calling a three-line pkg/applets/<name>.Run
// function with injectable *core.Stdio) so this whole package is
// testable with the unmodified pkg/testutil harness, and on
// github.com/spf13/cobra for the command tree itself, the corpus's
// dominant CLI library (inovacc-omni's cmd/ package builds every
// subcommand the same way: a package-level *cobra.Command wired to an
// options struct in an init func).
package sedxcli

import "github.com/InkyQuill/sedx/pkg/sed/dialect"

// StreamingMode selects how the capability analyzer's verdict is
// honored, per spec.md §6.2's streaming: {auto|force|forbid} flag.
type StreamingMode string

const (
	StreamingAuto   StreamingMode = "auto"
	StreamingForce  StreamingMode = "force"
	StreamingForbid StreamingMode = "forbid"
)

// Invocation is the core's single input struct, per spec.md §6.2.
type Invocation struct {
	Expressions []string
	ScriptFiles []string
	Targets     []string

	Dialect dialect.Dialect

	Quiet       bool
	DryRun      bool
	Interactive bool

	NoBackup bool
	Force    bool

	BackupDir string
	Context   int

	Streaming StreamingMode
}

// DefaultInvocation mirrors spec.md §6.3's [processing] defaults for the
// fields an Invocation shares with the config file (context lines,
// streaming mode), so a CLI run with no flags behaves like the
// configured defaults.
func DefaultInvocation() Invocation {
	return Invocation{
		Dialect:   dialect.PCRE,
		Context:   2,
		Streaming: StreamingAuto,
	}
}
