package cpu

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"log"
	"maps"
)

var _cpu_defines = map[string]string{
	"KBSR":                fmt.Sprintf("0x%04x", KBSR),
	"KBDR":                fmt.Sprintf("0x%04x", KBDR),
	"PC_START":            fmt.Sprintf("0x%04x", PC_START),
	"MEMSPACE_TRAP_TABLE": fmt.Sprintf("0x%04x", MEMSPACE_TRAP_TABLE),
	"MEMSPACE_INT_TABLE":  fmt.Sprintf("0x%04x", MEMSPACE_INT_TABLE),
	"MEMSPACE_SUPERVISOR": fmt.Sprintf("0x%04x", MEMSPACE_SUPERVISOR),
	"MEMSPACE_USER":       fmt.Sprintf("0x%04x", MEMSPACE_USER),
	"MEMSPACE_DEVICES":    fmt.Sprintf("0x%04x", MEMSPACE_DEVICES),
}

// Cpu is the simulation context for an LC-3 machine.
type Cpu struct {
	Verbose bool // Set to enable verbose logging.

	Memory   Memory    // Address space.
	Register [8]uint16 // Register bank.
	Pc       uint16    // Program counter.
	Cond     Cond      // Condition code, exactly one of n/z/p.
	Halted   bool      // Set once the HALT trap has run.
	Display  io.Writer // Console output, nil to discard.

	Ticks int // Instructions executed since reset.
}

// NewCpu creates a new CPU in its reset state.
func NewCpu() (cpu *Cpu) {
	cpu = &Cpu{}
	cpu.Reset()

	return
}

// Defines for the cpu memory map.
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	return maps.All(_cpu_defines)
}

// Reset the CPU state.
// - Clears the registers and memory.
// - Sets PC to PC_START, and the condition code to zero.
// - Zeros statistics counters.
//
// Attached devices are kept.
func (cpu *Cpu) Reset() {
	if cpu.Verbose {
		log.Printf("cpu: reset")
	}

	clear(cpu.Register[:])
	cpu.Memory.Reset()
	cpu.Pc = PC_START
	cpu.Cond = COND_Z
	cpu.Halted = false
	cpu.Ticks = 0
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	text += fmt.Sprintf("% 5s: %04X\n", "pc", cpu.Pc)
	text += fmt.Sprintf("% 5s: %v\n", "cond", cpu.Cond)
	for n, val := range cpu.Register {
		text += fmt.Sprintf("% 5s: %04X\n", Register(n), val)
	}

	return
}

// SetRegister stores value in a register, and updates the condition code
// from the stored value.
func (cpu *Cpu) SetRegister(reg Register, value uint16) {
	cpu.Register[reg] = value
	cpu.Cond = CondOf(value)
}

// Step fetches, decodes and executes a single instruction.
func (cpu *Cpu) Step() (err error) {
	if cpu.Halted {
		err = ErrHalted
		return
	}

	pc := cpu.Pc
	word := cpu.Memory.Read(pc)
	cpu.Pc++

	inst := Decode(word)
	if cpu.Verbose {
		log.Printf("%04x: %v", pc, inst)
	}

	err = cpu.Execute(inst)
	if err != nil {
		return
	}

	cpu.Ticks += 1

	return
}

// operand returns the second ALU operand of ADD and AND.
func (cpu *Cpu) operand(inst Instruction) uint16 {
	if inst.Immediate {
		return inst.Imm5()
	}

	return cpu.Register[inst.Source()]
}

// Execute executes a single decoded instruction. The PC must already
// point past the instruction.
func (cpu *Cpu) Execute(inst Instruction) (err error) {
	defer func() {
		if err != nil {
			err = errors.Join(ErrOpcode(inst.Word), err)
		}
	}()

	mem := &cpu.Memory
	reg := &cpu.Register

	switch inst.Opcode {
	case OP_ADD:
		cpu.SetRegister(inst.Dest, reg[inst.Base]+cpu.operand(inst))
	case OP_AND:
		cpu.SetRegister(inst.Dest, reg[inst.Base]&cpu.operand(inst))
	case OP_NOT:
		cpu.SetRegister(inst.Dest, ^reg[inst.Base])
	case OP_BR:
		if inst.Nzp()&cpu.Cond != 0 {
			cpu.Pc += inst.Offset9()
		}
	case OP_JMP:
		// RET is JMP r7
		cpu.Pc = reg[inst.Base]
	case OP_JSR:
		// r7 is linked first, so JSRR r7 continues at the next instruction.
		cpu.SetRegister(R7, cpu.Pc)
		if inst.Link() {
			cpu.Pc += inst.Offset11()
		} else {
			cpu.Pc = reg[inst.Base]
		}
	case OP_LD:
		cpu.SetRegister(inst.Dest, mem.Read(cpu.Pc+inst.Offset9()))
	case OP_LDI:
		cpu.SetRegister(inst.Dest, mem.Read(mem.Read(cpu.Pc+inst.Offset9())))
	case OP_LDR:
		cpu.SetRegister(inst.Dest, mem.Read(reg[inst.Base]+inst.Offset6()))
	case OP_LEA:
		cpu.SetRegister(inst.Dest, cpu.Pc+inst.Offset9())
	case OP_ST:
		mem.Write(cpu.Pc+inst.Offset9(), reg[inst.Dest])
	case OP_STI:
		mem.Write(mem.Read(cpu.Pc+inst.Offset9()), reg[inst.Dest])
	case OP_STR:
		mem.Write(reg[inst.Base]+inst.Offset6(), reg[inst.Dest])
	case OP_TRAP:
		err = cpu.Trap(inst.Vector())
	case OP_RTI, OP_RES:
		err = ErrOpcodeUnimplemented
	default:
		err = ErrOpcodeUnknown
	}

	return
}
