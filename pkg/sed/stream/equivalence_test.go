package stream

import (
	"strings"
	"testing"

	"github.com/InkyQuill/sedx/pkg/sed/engine"
	"github.com/InkyQuill/sedx/pkg/sed/memproc"
)

// The streaming and in-memory processors must agree byte-for-byte on any
// program that qualifies for streaming, per spec.md's universal invariant
// 1 ("stream vs memproc output equivalence").
func TestStreamAndMemprocAgreeOnStreamableProgram(t *testing.T) {
	cases := []struct {
		name   string
		script string
		input  string
		quiet  bool
	}{
		{"global substitute", "s/a/b/g", "aaa\nxyz\naba\n", false},
		{"line range delete", "2,3d", "one\ntwo\nthree\nfour\n", false},
		{"pattern range print quiet", "/start/,/end/p", "x\nstart\nmid\nend\ny\n", true},
		{"hold space rotate", "1h\n2G", "a\nb\n", false},
		{"nth occurrence substitute", "s/o/0/2", "foo boo\n", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prog := parseProg(t, tc.script)

			streamCfg := engine.DefaultConfig()
			streamCfg.Quiet = tc.quiet
			var streamOut strings.Builder
			sp := &Processor{Config: streamCfg}
			if _, err := sp.Process(prog, strings.NewReader(tc.input), &streamOut, nil); err != nil {
				t.Fatalf("stream Process: %v", err)
			}

			memCfg := engine.DefaultConfig()
			memCfg.Quiet = tc.quiet
			mp := &memproc.Processor{Config: memCfg}
			memOut, _, err := mp.Process(prog, []byte(tc.input))
			if err != nil {
				t.Fatalf("memproc Process: %v", err)
			}

			if streamOut.String() != string(memOut) {
				t.Fatalf("stream output %q differs from memproc output %q", streamOut.String(), string(memOut))
			}
		})
	}
}
