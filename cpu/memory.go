package cpu

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
)

// Keyboard is the input device behind KBSR/KBDR and the GETC/IN traps.
type Keyboard interface {
	// Poll returns a pending key, if any, without blocking.
	Poll() (key byte, ok bool)
	// ReadByte blocks until a key is available.
	ReadByte() (key byte, err error)
}

// Memory is the 64Ki word address space, with the keyboard mapped
// at KBSR and KBDR.
type Memory struct {
	Keyboard Keyboard // Keyboard device, nil if none is attached.

	Word [MEMORY_SIZE]uint16 // Backing store.
}

// Reset clears all of memory.
func (mem *Memory) Reset() {
	clear(mem.Word[:])
}

// Read returns the word at addr. Reading KBSR polls the keyboard first.
func (mem *Memory) Read(addr uint16) uint16 {
	if addr == KBSR {
		var key byte
		var ok bool
		if mem.Keyboard != nil {
			key, ok = mem.Keyboard.Poll()
		}

		if ok {
			mem.Word[KBSR] = 1 << 15
			mem.Word[KBDR] = uint16(key)
		} else {
			mem.Word[KBSR] = 0
		}
	}

	return mem.Word[addr]
}

// Write stores value at addr.
func (mem *Memory) Write(addr uint16, value uint16) {
	mem.Word[addr] = value
}

// LoadImage reads an image file: a big-endian origin word followed by
// big-endian payload words. Payload past the top of memory is dropped.
func (mem *Memory) LoadImage(r io.Reader) (origin uint16, count int, err error) {
	in := bufio.NewReader(r)

	var word [2]byte
	_, err = io.ReadFull(in, word[:])
	if err != nil {
		err = errors.Join(ErrImageRead, err)
		return
	}
	origin = binary.BigEndian.Uint16(word[:])

	limit := MEMORY_SIZE - int(origin)
	for count < limit {
		_, err = io.ReadFull(in, word[:])
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			err = nil
			break
		}
		if err != nil {
			err = errors.Join(ErrImageRead, err)
			return
		}
		mem.Word[int(origin)+count] = binary.BigEndian.Uint16(word[:])
		count++
	}

	return
}
