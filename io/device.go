// Package io provides the console devices for the LC-3 emulator.
// A device is both the keyboard behind KBSR/KBDR and the display written
// by the output traps. Tape replays plain readers and writers, and Console
// drives a terminal in non-canonical mode.
package io

import (
	"io"

	"github.com/ezrec/lc3/cpu"
)

// Device is a keyboard and display pair.
type Device interface {
	cpu.Keyboard
	io.Writer
}

var (
	_ Device = (*Tape)(nil)
	_ Device = (*Console)(nil)
)
