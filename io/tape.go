package io

import (
	"io"
)

// Tape is a device backed by an io.Reader for keyboard input and an
// io.Writer for the display. Input on a tape is always ready, so Poll
// only reports no key once the input is exhausted.
type Tape struct {
	Input  io.Reader // Keyboard input, nil for none.
	Output io.Writer // Display output, nil to discard.
}

// Poll returns the next input byte, if any.
func (tc *Tape) Poll() (key byte, ok bool) {
	key, err := tc.ReadByte()
	ok = (err == nil)

	return
}

// ReadByte returns the next input byte, or io.EOF once the input is exhausted.
func (tc *Tape) ReadByte() (key byte, err error) {
	if tc.Input == nil {
		err = io.EOF
		return
	}

	var one [1]byte
	_, err = io.ReadFull(tc.Input, one[:])
	key = one[0]

	return
}

// Write sends display output to the tape.
func (tc *Tape) Write(data []byte) (n int, err error) {
	if tc.Output == nil {
		n = len(data)
		return
	}

	return tc.Output.Write(data)
}
