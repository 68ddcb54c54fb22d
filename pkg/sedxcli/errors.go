package sedxcli

import (
	"errors"

	"github.com/InkyQuill/sedx/pkg/core"
	"github.com/InkyQuill/sedx/pkg/sed/sederr"
)

// exitForError maps a *sederr.Error's Kind onto spec.md §6.2's exit
// code table. An error that isn't a *sederr.Error (a bare I/O error
// from a file that the sandbox or the OS rejected, for instance) is
// treated as a general failure.
func exitForError(stdio *core.Stdio, applet string, err error) int {
	var se *sederr.Error
	if errors.As(err, &se) {
		stdio.Errorf("%s: %v\n", applet, se)
		switch se.Kind {
		case sederr.ParseError, sederr.RegexCompileError, sederr.AddressError:
			return core.ExitParseError
		case sederr.DiskSpaceError:
			return core.ExitDiskSpace
		case sederr.BackupCorruption:
			return core.ExitBackupFailure
		case sederr.IoError:
			return core.ExitIOError
		case sederr.Interrupted:
			return core.ExitInterrupted
		default:
			return core.ExitFailure
		}
	}
	stdio.Errorf("%s: %v\n", applet, err)
	return core.ExitFailure
}
