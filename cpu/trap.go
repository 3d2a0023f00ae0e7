package cpu

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"log"
	"maps"
)

// Trap is a TRAP vector, bits [7:0] of a TRAP instruction.
type Trap uint8

//go:generate go tool stringer -linecomment -type=Trap
const (
	TRAP_GETC  = Trap(0x20) // getc
	TRAP_OUT   = Trap(0x21) // out
	TRAP_PUTS  = Trap(0x22) // puts
	TRAP_IN    = Trap(0x23) // in
	TRAP_PUTSP = Trap(0x24) // putsp
	TRAP_HALT  = Trap(0x25) // halt
)

var _trap_defines = map[string]string{
	"TRAP_GETC":  fmt.Sprintf("0x%02x", uint8(TRAP_GETC)),
	"TRAP_OUT":   fmt.Sprintf("0x%02x", uint8(TRAP_OUT)),
	"TRAP_PUTS":  fmt.Sprintf("0x%02x", uint8(TRAP_PUTS)),
	"TRAP_IN":    fmt.Sprintf("0x%02x", uint8(TRAP_IN)),
	"TRAP_PUTSP": fmt.Sprintf("0x%02x", uint8(TRAP_PUTSP)),
	"TRAP_HALT":  fmt.Sprintf("0x%02x", uint8(TRAP_HALT)),
}

// TrapDefines returns an iterator over the trap vector defines.
func TrapDefines() iter.Seq2[string, string] {
	return maps.All(_trap_defines)
}

// display returns a buffered writer for the console output.
func (cpu *Cpu) display() *bufio.Writer {
	if cpu.Display == nil {
		return bufio.NewWriter(io.Discard)
	}

	return bufio.NewWriter(cpu.Display)
}

// flush pushes buffered console output to the display.
func flush(out *bufio.Writer) (err error) {
	err = out.Flush()
	if err != nil {
		err = errors.Join(ErrDisplay, err)
	}

	return
}

// Trap runs a trap routine. R7 is set to the return address first.
// Unknown vectors are ignored.
func (cpu *Cpu) Trap(vector Trap) (err error) {
	cpu.Register[R7] = cpu.Pc

	switch vector {
	case TRAP_GETC:
		err = cpu.trapGetc()
	case TRAP_OUT:
		err = cpu.trapOut()
	case TRAP_PUTS:
		err = cpu.trapPuts()
	case TRAP_IN:
		err = cpu.trapIn()
	case TRAP_PUTSP:
		err = cpu.trapPutsp()
	case TRAP_HALT:
		err = cpu.trapHalt()
	default:
		if cpu.Verbose {
			log.Printf("cpu: trap 0x%02x ignored", uint8(vector))
		}
	}

	return
}

// trapGetc reads a single character from the keyboard into r0.
func (cpu *Cpu) trapGetc() (err error) {
	if cpu.Memory.Keyboard == nil {
		err = ErrKeyboardClosed
		return
	}

	key, err := cpu.Memory.Keyboard.ReadByte()
	if err != nil {
		err = errors.Join(ErrKeyboardClosed, err)
		return
	}

	cpu.SetRegister(R0, uint16(key))

	return
}

// trapOut writes the character in r0[7:0] to the display.
func (cpu *Cpu) trapOut() (err error) {
	out := cpu.display()
	out.WriteByte(byte(cpu.Register[R0]))

	return flush(out)
}

// trapPuts writes one character per word, starting at the address in r0,
// until a zero word. At most one full pass of memory is written.
func (cpu *Cpu) trapPuts() (err error) {
	out := cpu.display()
	addr := cpu.Register[R0]
	for range MEMORY_SIZE {
		word := cpu.Memory.Read(addr)
		if word == 0 {
			break
		}
		out.WriteByte(byte(word))
		addr++
	}

	return flush(out)
}

// trapIn prints the string at r0, then reads a character and echoes it.
func (cpu *Cpu) trapIn() (err error) {
	err = cpu.trapPuts()
	if err != nil {
		return
	}

	err = cpu.trapGetc()
	if err != nil {
		return
	}

	return cpu.trapOut()
}

// trapPutsp writes two characters per word, low byte first, starting at
// the address in r0, until a zero word. Zero bytes are not written.
func (cpu *Cpu) trapPutsp() (err error) {
	out := cpu.display()
	addr := cpu.Register[R0]
	for range MEMORY_SIZE {
		word := cpu.Memory.Read(addr)
		if word == 0 {
			break
		}
		if lo := byte(word); lo != 0 {
			out.WriteByte(lo)
		}
		if hi := byte(word >> 8); hi != 0 {
			out.WriteByte(hi)
		}
		addr++
	}

	return flush(out)
}

// trapHalt stops the processor.
func (cpu *Cpu) trapHalt() (err error) {
	if cpu.Verbose {
		log.Printf("cpu: halt at 0x%04x", cpu.Pc-1)
	}

	cpu.Halted = true

	out := cpu.display()
	out.WriteString("HALT\n")

	return flush(out)
}
