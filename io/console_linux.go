package io

import (
	"errors"
	"io"
	"os"
	"sync"

	"github.com/pkg/term/termios"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Console is a device on a terminal. If the input is a terminal it is
// switched to non-canonical, no-echo mode until Close.
type Console struct {
	In  *os.File // Keyboard input.
	Out *os.File // Display output.

	raw     bool
	restore unix.Termios
	once    sync.Once
}

// NewConsole attaches a console to the in and out files.
func NewConsole(in *os.File, out *os.File) (con *Console, err error) {
	con = &Console{
		In:  in,
		Out: out,
	}

	if !term.IsTerminal(int(in.Fd())) {
		return
	}

	err = termios.Tcgetattr(in.Fd(), &con.restore)
	if err != nil {
		err = errors.Join(ErrConsoleMode, err)
		return
	}

	mode := con.restore
	mode.Lflag &^= unix.ICANON | unix.ECHO
	err = termios.Tcsetattr(in.Fd(), termios.TCSANOW, &mode)
	if err != nil {
		err = errors.Join(ErrConsoleMode, err)
		return
	}

	con.raw = true

	return
}

// Close restores the terminal mode. It is safe to call more than once,
// and from another goroutine.
func (con *Console) Close() (err error) {
	con.once.Do(func() {
		if !con.raw {
			return
		}
		err = termios.Tcsetattr(con.In.Fd(), termios.TCSANOW, &con.restore)
		if err != nil {
			err = errors.Join(ErrConsoleMode, err)
		}
	})

	return
}

// ready checks for pending input without blocking.
func (con *Console) ready() (ok bool, err error) {
	fd := int(con.In.Fd())

	var readfds unix.FdSet
	readfds.Zero()
	readfds.Set(fd)

	timeout := unix.Timeval{}

	n, err := unix.Select(fd+1, &readfds, nil, nil, &timeout)
	if err != nil {
		err = errors.Join(ErrConsolePoll, err)
		return
	}

	ok = n > 0 && readfds.IsSet(fd)

	return
}

// Poll returns a pending key, if any, without blocking.
func (con *Console) Poll() (key byte, ok bool) {
	ready, err := con.ready()
	if err != nil || !ready {
		return
	}

	key, err = con.ReadByte()
	ok = (err == nil)

	return
}

// ReadByte blocks until a key is available.
func (con *Console) ReadByte() (key byte, err error) {
	var one [1]byte
	for {
		var n int
		n, err = con.In.Read(one[:])
		if n == 1 {
			key = one[0]
			err = nil
			return
		}
		if err != nil {
			return
		}
	}
}

// Write sends display output to the terminal.
func (con *Console) Write(data []byte) (n int, err error) {
	if con.Out == nil {
		return io.Discard.Write(data)
	}

	return con.Out.Write(data)
}
