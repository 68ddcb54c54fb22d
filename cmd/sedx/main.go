// Command sedx is the standalone entry point for the sedx stream
// editor, following the teacher's own cmd/<applet>/main.go shape: a
// three-line main that builds the default Stdio and hands off to the
// package that holds all the actual logic.
package main

import (
	"os"

	"github.com/InkyQuill/sedx/pkg/core"
	"github.com/InkyQuill/sedx/pkg/sedxcli"
)

func main() {
	stdio := core.DefaultStdio()
	os.Exit(sedxcli.Run(stdio, os.Args[1:]))
}
