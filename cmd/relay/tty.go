package main

import (
	"os"

	"github.com/mattn/go-isatty"
)

// colorize wraps s in an ANSI color code, but only when stdout is an actual
// terminal — piping `relay agent status` into a log file or another tool
// should never see escape codes.
func colorize(code, s string) string {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return s
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}

const (
	ansiGreen = "32"
	ansiRed   = "31"
)
