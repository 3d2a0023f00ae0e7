package cpu

import (
	"fmt"
)

// Opcode is the 4-bit operation selector in the top nibble of an instruction.
type Opcode int

//go:generate go tool stringer -linecomment -type=Opcode
const (
	OP_BR   = Opcode(0b0000) // br
	OP_ADD  = Opcode(0b0001) // add
	OP_LD   = Opcode(0b0010) // ld
	OP_ST   = Opcode(0b0011) // st
	OP_JSR  = Opcode(0b0100) // jsr
	OP_AND  = Opcode(0b0101) // and
	OP_LDR  = Opcode(0b0110) // ldr
	OP_STR  = Opcode(0b0111) // str
	OP_RTI  = Opcode(0b1000) // rti
	OP_NOT  = Opcode(0b1001) // not
	OP_LDI  = Opcode(0b1010) // ldi
	OP_STI  = Opcode(0b1011) // sti
	OP_JMP  = Opcode(0b1100) // jmp
	OP_RES  = Opcode(0b1101) // res
	OP_LEA  = Opcode(0b1110) // lea
	OP_TRAP = Opcode(0b1111) // trap
)

// Register is a general-purpose register selector.
type Register int

//go:generate go tool stringer -linecomment -type=Register
const (
	R0 = Register(0) // r0
	R1 = Register(1) // r1
	R2 = Register(2) // r2
	R3 = Register(3) // r3
	R4 = Register(4) // r4
	R5 = Register(5) // r5
	R6 = Register(6) // r6
	R7 = Register(7) // r7
)

// Cond is the condition code state, and the n/z/p mask of a branch.
type Cond uint16

const (
	COND_P = Cond(1 << 0) // Positive.
	COND_Z = Cond(1 << 1) // Zero.
	COND_N = Cond(1 << 2) // Negative.
)

// CondOf returns the condition code for a value.
func CondOf(value uint16) Cond {
	switch {
	case value == 0:
		return COND_Z
	case value>>15 == 1:
		return COND_N
	default:
		return COND_P
	}
}

// String returns the n/z/p letters of the condition.
func (cc Cond) String() (out string) {
	if cc&COND_N != 0 {
		out += "n"
	}
	if cc&COND_Z != 0 {
		out += "z"
	}
	if cc&COND_P != 0 {
		out += "p"
	}
	return
}

// UsesDestField returns true if bits [11:9] select a register, or
// the n/z/p mask of a branch.
func UsesDestField(op Opcode) bool {
	return !(op>>2 == 0b11 || op&0b11 == 0b00) ||
		op == OP_LEA ||
		op == OP_BR
}

// UsesBaseField returns true if bits [8:6] select a base or source register.
func UsesBaseField(op Opcode) bool {
	return op&0b1100 == 0b0100 || // 01__
		op&0b0111 == 0b0001 || // _001
		op == OP_JMP
}

// UsesImmediateBit returns true if bit [5] selects between a register and
// an imm5 second operand.
func UsesImmediateBit(op Opcode) bool {
	return op>>3 == 0 && op&0b11 == 0b01
}

// SignExtend widens the low 'bits' bits of value to 16 bits, two's complement.
func SignExtend(value uint16, bits uint) uint16 {
	value &= (1 << bits) - 1
	if (value>>(bits-1))&1 == 1 {
		value |= 0xFFFF << bits
	}
	return value
}

// Instruction is a decoded instruction word. Register and mode fields
// are only populated when the decoder says the opcode uses them.
type Instruction struct {
	Word      uint16   // Raw instruction word.
	Opcode    Opcode   // Operation.
	Dest      Register // Bits [11:9], if UsesDestField.
	Base      Register // Bits [8:6], if UsesBaseField.
	Immediate bool     // Bit [5], if UsesImmediateBit.
}

// Decode splits an instruction word into its fields.
func Decode(word uint16) (inst Instruction) {
	inst.Word = word
	inst.Opcode = Opcode(word >> 12)

	if UsesDestField(inst.Opcode) {
		inst.Dest = Register((word >> 9) & 0x7)
	}
	if UsesBaseField(inst.Opcode) {
		inst.Base = Register((word >> 6) & 0x7)
	}
	if UsesImmediateBit(inst.Opcode) {
		inst.Immediate = (word>>5)&0x1 == 1
	}

	return
}

// Source returns the second source register, bits [2:0].
func (inst Instruction) Source() Register {
	return Register(inst.Word & 0x7)
}

// Nzp returns the branch condition mask.
func (inst Instruction) Nzp() Cond {
	return Cond(inst.Dest)
}

// Link returns true for JSR (PC-relative), false for JSRR.
func (inst Instruction) Link() bool {
	return (inst.Word>>11)&0x1 == 1
}

// Imm5 returns the sign-extended 5-bit immediate.
func (inst Instruction) Imm5() uint16 {
	return SignExtend(inst.Word, 5)
}

// Offset6 returns the sign-extended 6-bit base offset.
func (inst Instruction) Offset6() uint16 {
	return SignExtend(inst.Word, 6)
}

// Offset9 returns the sign-extended 9-bit PC offset.
func (inst Instruction) Offset9() uint16 {
	return SignExtend(inst.Word, 9)
}

// Offset11 returns the sign-extended 11-bit PC offset.
func (inst Instruction) Offset11() uint16 {
	return SignExtend(inst.Word, 11)
}

// Vector returns the trap vector, bits [7:0].
func (inst Instruction) Vector() Trap {
	return Trap(inst.Word & 0xFF)
}

// signed renders an offset or immediate as a signed decimal.
func signed(value uint16) string {
	return fmt.Sprintf("#%d", int16(value))
}

// String returns the assembly language representation of the instruction.
func (inst Instruction) String() string {
	op := inst.Opcode
	switch op {
	case OP_ADD, OP_AND:
		if inst.Immediate {
			return fmt.Sprintf("%v %v, %v, %v", op, inst.Dest, inst.Base, signed(inst.Imm5()))
		}
		return fmt.Sprintf("%v %v, %v, %v", op, inst.Dest, inst.Base, inst.Source())
	case OP_NOT:
		return fmt.Sprintf("%v %v, %v", op, inst.Dest, inst.Base)
	case OP_BR:
		if inst.Nzp() == 0 {
			return fmt.Sprintf("nop %v", signed(inst.Offset9()))
		}
		return fmt.Sprintf("%v%v %v", op, inst.Nzp(), signed(inst.Offset9()))
	case OP_JMP:
		if inst.Base == R7 {
			return "ret"
		}
		return fmt.Sprintf("%v %v", op, inst.Base)
	case OP_JSR:
		if inst.Link() {
			return fmt.Sprintf("%v %v", op, signed(inst.Offset11()))
		}
		return fmt.Sprintf("jsrr %v", inst.Base)
	case OP_LD, OP_LDI, OP_LEA, OP_ST, OP_STI:
		return fmt.Sprintf("%v %v, %v", op, inst.Dest, signed(inst.Offset9()))
	case OP_LDR, OP_STR:
		return fmt.Sprintf("%v %v, %v, %v", op, inst.Dest, inst.Base, signed(inst.Offset6()))
	case OP_TRAP:
		return fmt.Sprintf("%v %v", op, inst.Vector())
	default:
		return fmt.Sprintf("%v 0x%04x", op, inst.Word)
	}
}
