package sedxcli

import (
	"fmt"
	"io"

	"github.com/InkyQuill/sedx/pkg/sed/stream"
)

// textDiffSink renders a DiffWindow's context/change stream as plain
// unified-diff-shaped text. spec.md §1 explicitly scopes "diff
// rendering, coloring, pager integration" out of the core as an
// external collaborator; this is the minimal CLI-layer renderer that
// plugs into the stream.DiffSink seam the core exposes for exactly
// that reason — it prints, it does not color or page.
type textDiffSink struct {
	w        io.Writer
	filename string
	any      bool
}

func newTextDiffSink(w io.Writer, filename string) *textDiffSink {
	return &textDiffSink{w: w, filename: filename}
}

func (s *textDiffSink) header() {
	if s.any {
		return
	}
	s.any = true
	fmt.Fprintf(s.w, "--- %s\n", s.filename)
}

func (s *textDiffSink) Context(line string) {
	fmt.Fprintf(s.w, "  %s\n", line)
}

func (s *textDiffSink) Change(rec stream.DiffRecord) {
	s.header()
	switch rec.Kind {
	case stream.ChangeDeleted:
		fmt.Fprintf(s.w, "- %s\n", rec.Old)
	case stream.ChangeInserted:
		fmt.Fprintf(s.w, "+ %s\n", rec.New)
	default:
		fmt.Fprintf(s.w, "- %s\n", rec.Old)
		fmt.Fprintf(s.w, "+ %s\n", rec.New)
	}
}

// Changed reports whether Change was ever called, so the run command
// can decide whether a target needs the interactive confirmation
// prompt at all.
func (s *textDiffSink) Changed() bool { return s.any }

var _ stream.DiffSink = (*textDiffSink)(nil)
