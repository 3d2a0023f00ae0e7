// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"context"
	"errors"
	"fmt"
	goio "io"
	"iter"
	"log"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/ezrec/lc3/cpu"
	"github.com/ezrec/lc3/internal"
	"github.com/ezrec/lc3/io"
)

var _emulator_defines = map[string]string{
	"MEMORY_SIZE": fmt.Sprintf("0x%x", cpu.MEMORY_SIZE),
}

// Emulator state. CPU + console device.
type Emulator struct {
	Verbose  bool         // If set, enables verbose logging.
	*cpu.Cpu              // Reference to the CPU simulation.
	Program  *cpu.Program // Listing of the most recently assembled source.

	Tape   io.Tape   // Default device.
	Device io.Device // Attached keyboard and display.
}

// NewEmulator creates a new emulator, with the tape attached.
func NewEmulator() (emu *Emulator) {
	emu = &Emulator{
		Cpu:     cpu.NewCpu(),
		Program: &cpu.Program{},
	}

	emu.Attach(&emu.Tape)

	return
}

// Attach a device as the keyboard and display.
func (emu *Emulator) Attach(dev io.Device) {
	emu.Device = dev
	emu.Cpu.Memory.Keyboard = dev
	emu.Cpu.Display = dev
}

// Defines returns an iterator over all of the defines
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	return internal.IterSeq2Concat(maps.All(_emulator_defines),
		emu.Cpu.Defines(),
		cpu.TrapDefines(),
	)
}

// Reset the processor and memory. Attached devices are kept.
func (emu *Emulator) Reset() {
	emu.Cpu.Verbose = emu.Verbose
	emu.Cpu.Reset()
	emu.Program = &cpu.Program{}
}

// Load an image into memory.
func (emu *Emulator) Load(r goio.Reader) (err error) {
	origin, count, err := emu.Cpu.Memory.LoadImage(r)
	if err != nil {
		return
	}

	if emu.Verbose {
		log.Printf("emulator: loaded %d words at 0x%04x", count, origin)
	}

	return
}

// Assemble source text, with the emulator defines predefined.
func (emu *Emulator) Assemble(r goio.Reader) (prog *cpu.Program, err error) {
	asm := &cpu.Assembler{Verbose: emu.Verbose}
	for key, value := range emu.Defines() {
		asm.Predefine(key, value)
	}

	return asm.Parse(r)
}

// AssembleFile assembles a source file.
func (emu *Emulator) AssembleFile(path string) (prog *cpu.Program, err error) {
	defer func() {
		if err != nil {
			err = &ErrImage{Path: path, Err: err}
		}
	}()

	inf, err := os.Open(path)
	if err != nil {
		return
	}
	defer inf.Close()

	return emu.Assemble(inf)
}

// IsSource returns true if the path names an assembly source file.
func IsSource(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".asm")
}

// LoadFile loads an image file into memory. Assembly sources are
// assembled first, and become the current program listing.
func (emu *Emulator) LoadFile(path string) (err error) {
	if IsSource(path) {
		var prog *cpu.Program
		prog, err = emu.AssembleFile(path)
		if err != nil {
			return
		}
		for addr, word := range prog.Words() {
			emu.Cpu.Memory.Write(addr, word)
		}
		emu.Program = prog
		return
	}

	defer func() {
		if err != nil {
			err = &ErrImage{Path: path, Err: err}
		}
	}()

	inf, err := os.Open(path)
	if err != nil {
		return
	}
	defer inf.Close()

	return emu.Load(inf)
}

// LineNo returns the source line number of the next instruction, or 0 if
// it is not in the program listing.
func (emu *Emulator) LineNo() int {
	if emu.Program == nil {
		return 0
	}

	dbg := emu.Program.Debug(emu.Cpu.Pc)
	if dbg.Statement == nil {
		return 0
	}

	return dbg.LineNo
}

// Tick executes a single instruction. done is set once the processor
// has halted.
func (emu *Emulator) Tick() (done bool, err error) {
	// Set CPU verbosity
	emu.Cpu.Verbose = emu.Verbose

	if emu.Cpu.Halted {
		done = true
		return
	}

	pc := emu.Cpu.Pc
	lineno := emu.LineNo()
	defer func() {
		if err != nil {
			err = &ErrRuntime{Pc: pc, LineNo: lineno, Err: err}
		}
	}()

	err = emu.Cpu.Step()
	if err != nil {
		return
	}

	done = emu.Cpu.Halted

	return
}

// Run executes instructions until the processor halts, an instruction
// fails, or the context is done.
func (emu *Emulator) Run(ctx context.Context) (err error) {
	for {
		err = ctx.Err()
		if err != nil {
			return
		}

		var done bool
		done, err = emu.Tick()
		if err != nil || done {
			break
		}
	}

	if emu.Verbose {
		log.Printf("emulator: %d instructions\n%v", emu.Cpu.Ticks, emu.Cpu)
	}

	return
}

// IsAbort returns true if the error is from an instruction that has no
// implementation.
func IsAbort(err error) bool {
	return errors.Is(err, cpu.ErrOpcodeUnimplemented)
}
