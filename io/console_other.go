//go:build !linux

package io

import (
	"io"
	"os"
)

// Console is a device on the standard files. The terminal mode is left
// unchanged, so input stays line buffered and Poll never reports a key.
type Console struct {
	In  *os.File // Keyboard input.
	Out *os.File // Display output.
}

// NewConsole attaches a console to the in and out files.
func NewConsole(in *os.File, out *os.File) (con *Console, err error) {
	con = &Console{
		In:  in,
		Out: out,
	}

	return
}

// Close has nothing to restore.
func (con *Console) Close() (err error) {
	return
}

// Poll never reports a key.
func (con *Console) Poll() (key byte, ok bool) {
	return
}

// ReadByte blocks until a key is available.
func (con *Console) ReadByte() (key byte, err error) {
	var one [1]byte
	_, err = io.ReadFull(con.In, one[:])
	key = one[0]

	return
}

// Write sends display output to the terminal.
func (con *Console) Write(data []byte) (n int, err error) {
	if con.Out == nil {
		return io.Discard.Write(data)
	}

	return con.Out.Write(data)
}
