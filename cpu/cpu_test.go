package cpu

import (
	"bytes"
	"errors"
	"io"
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
)

type mockKeyboard struct {
	keys []byte
}

func (mk *mockKeyboard) Poll() (key byte, ok bool) {
	if len(mk.keys) == 0 {
		return
	}
	key = mk.keys[0]
	mk.keys = mk.keys[1:]
	ok = true
	return
}

func (mk *mockKeyboard) ReadByte() (key byte, err error) {
	key, ok := mk.Poll()
	if !ok {
		err = io.EOF
	}
	return
}

// newTestCpu creates a CPU with a program loaded at PC_START.
func newTestCpu(program ...uint16) (cpu *Cpu, output *bytes.Buffer) {
	cpu = NewCpu()
	output = &bytes.Buffer{}
	cpu.Display = output
	for n, word := range program {
		cpu.Memory.Write(PC_START+uint16(n), word)
	}
	return
}

func TestCpuReset(t *testing.T) {
	assert := assert.New(t)

	cpu, _ := newTestCpu(0x1234)
	cpu.Register[R3] = 7
	cpu.Halted = true
	cpu.Reset()

	assert.Equal(PC_START, cpu.Pc)
	assert.Equal(COND_Z, cpu.Cond)
	assert.False(cpu.Halted)
	assert.Equal(uint16(0), cpu.Register[R3])
	assert.Equal(uint16(0), cpu.Memory.Read(PC_START))
	assert.NotNil(cpu.Display)
}

func TestFlagInvariant(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()

	for _, value := range []uint16{0, 1, 0x7FFF, 0x8000, 0xFFFF} {
		for _, prior := range []Cond{COND_N, COND_Z, COND_P} {
			cpu.Cond = prior
			cpu.SetRegister(R3, value)

			expected := COND_P
			switch {
			case value == 0:
				expected = COND_Z
			case value&0x8000 != 0:
				expected = COND_N
			}
			assert.Equal(expected, cpu.Cond)
			assert.Equal(1, bits.OnesCount16(uint16(cpu.Cond)))
			assert.Equal(value, cpu.Register[R3])
		}
	}
}

func TestAddImmediate(t *testing.T) {
	assert := assert.New(t)

	// ADD R0, R1, #3
	cpu, _ := newTestCpu(0x1063)
	cpu.Register[R1] = 5

	err := cpu.Step()
	assert.NoError(err)
	assert.Equal(uint16(8), cpu.Register[R0])
	assert.Equal(COND_P, cpu.Cond)
	assert.Equal(PC_START+1, cpu.Pc)
	assert.Equal(1, cpu.Ticks)
}

func TestAlu(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name     string
		word     uint16
		setup    map[Register]uint16
		dest     Register
		expected uint16
		cond     Cond
	}){
		{"add_reg_neg", 0x1042, map[Register]uint16{R1: 1, R2: 0xFFFE}, R0, 0xFFFF, COND_N},
		{"add_imm_neg", 0x107F, map[Register]uint16{R1: 1}, R0, 0x0000, COND_Z},
		{"add_wrap", 0x1042, map[Register]uint16{R1: 0xFFFF, R2: 2}, R0, 0x0001, COND_P},
		{"and_zero", 0x5020, map[Register]uint16{R0: 0x1234}, R0, 0x0000, COND_Z},
		{"and_reg", 0x5642, map[Register]uint16{R1: 0x0F0F, R2: 0x00FF}, R3, 0x000F, COND_P},
		{"and_imm_neg", 0x507E, map[Register]uint16{R1: 0x8001}, R0, 0x8000, COND_N},
		{"not", 0x997F, map[Register]uint16{R5: 0}, R4, 0xFFFF, COND_N},
		{"not_self", 0x927F, map[Register]uint16{R1: 0xFFFF}, R1, 0x0000, COND_Z},
	}

	for _, entry := range table {
		cpu, _ := newTestCpu(entry.word)
		for reg, value := range entry.setup {
			cpu.Register[reg] = value
		}
		err := cpu.Step()
		assert.NoError(err, entry.name)
		assert.Equal(entry.expected, cpu.Register[entry.dest], entry.name)
		assert.Equal(entry.cond, cpu.Cond, entry.name)
	}
}

func TestLoad(t *testing.T) {
	assert := assert.New(t)

	// LD R2, #1
	cpu, _ := newTestCpu(0x2401)
	cpu.Memory.Write(0x3002, 0x8000)
	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x8000), cpu.Register[R2])
	assert.Equal(COND_N, cpu.Cond)

	// LDR R0, R1, #-1
	cpu, _ = newTestCpu(0x607F)
	cpu.Register[R1] = 0x4000
	cpu.Memory.Write(0x3FFF, 7)
	assert.NoError(cpu.Step())
	assert.Equal(uint16(7), cpu.Register[R0])
	assert.Equal(COND_P, cpu.Cond)

	// LEA R3, #-2
	cpu, _ = newTestCpu(0xE7FE)
	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x2FFF), cpu.Register[R3])
	assert.Equal(COND_P, cpu.Cond)
}

func TestLoadIndirect(t *testing.T) {
	assert := assert.New(t)

	cpu, _ := newTestCpu()
	cpu.Memory.Write(0x2FFF, 0xA000) // LDI R0, #0
	cpu.Memory.Write(0x3000, 0x4000)
	cpu.Memory.Write(0x4000, 0x0042)
	cpu.Pc = 0x2FFF

	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x0042), cpu.Register[R0])
	assert.Equal(COND_P, cpu.Cond)
	assert.Equal(uint16(0x3000), cpu.Pc)
}

func TestStore(t *testing.T) {
	assert := assert.New(t)

	// ST R2, #4
	cpu, _ := newTestCpu(0x3404)
	cpu.Register[R2] = 0x1234
	cpu.Cond = COND_N
	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x1234), cpu.Memory.Read(0x3005))
	assert.Equal(COND_N, cpu.Cond)

	// STI R3, #0
	cpu, _ = newTestCpu(0xB600, 0x5000)
	cpu.Register[R3] = 0xBEEF
	assert.NoError(cpu.Step())
	assert.Equal(uint16(0xBEEF), cpu.Memory.Read(0x5000))
	assert.Equal(uint16(0x5000), cpu.Memory.Read(0x3001))
	assert.Equal(COND_Z, cpu.Cond)

	// STR R5, R4, #2
	cpu, _ = newTestCpu(0x7B02)
	cpu.Register[R4] = 0x6000
	cpu.Register[R5] = 0x55
	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x55), cpu.Memory.Read(0x6002))
}

func TestBranch(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name string
		word uint16
		cond Cond
		pc   uint16
	}){
		{"brz_taken", 0x0405, COND_Z, 0x3006},
		{"brp_not_taken", 0x0205, COND_Z, 0x3001},
		{"brn_taken", 0x0805, COND_N, 0x3006},
		{"brnp_taken", 0x0A05, COND_P, 0x3006},
		{"brnzp_back", 0x0FFF, COND_P, 0x3000},
		{"nop", 0x0005, COND_Z, 0x3001},
	}

	for _, entry := range table {
		cpu, _ := newTestCpu(entry.word)
		cpu.Cond = entry.cond
		assert.NoError(cpu.Step(), entry.name)
		assert.Equal(entry.pc, cpu.Pc, entry.name)
		assert.Equal(entry.cond, cpu.Cond, entry.name)
	}
}

func TestJump(t *testing.T) {
	assert := assert.New(t)

	// JMP R3
	cpu, _ := newTestCpu(0xC0C0)
	cpu.Register[R3] = 0x4000
	cpu.Cond = COND_N
	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x4000), cpu.Pc)
	assert.Equal(COND_N, cpu.Cond)

	// RET
	cpu, _ = newTestCpu(0xC1C0)
	cpu.Register[R7] = 0x3456
	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x3456), cpu.Pc)
	assert.Equal(COND_Z, cpu.Cond)
}

func TestJumpSubroutine(t *testing.T) {
	assert := assert.New(t)

	// JSR #16
	cpu, _ := newTestCpu(0x4810)
	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x3011), cpu.Pc)
	assert.Equal(uint16(0x3001), cpu.Register[R7])
	assert.Equal(COND_P, cpu.Cond)

	// JSR #-1024
	cpu, _ = newTestCpu(0x4C00)
	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x2C01), cpu.Pc)

	// JSRR R2
	cpu, _ = newTestCpu(0x4080)
	cpu.Register[R2] = 0x5000
	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x5000), cpu.Pc)
	assert.Equal(uint16(0x3001), cpu.Register[R7])

	// JSRR R7 links before reading the base register.
	cpu, _ = newTestCpu(0x41C0)
	cpu.Register[R7] = 0x4000
	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x3001), cpu.Pc)
	assert.Equal(uint16(0x3001), cpu.Register[R7])
	assert.Equal(COND_P, cpu.Cond)
}

func TestUnimplemented(t *testing.T) {
	assert := assert.New(t)

	for _, word := range []uint16{0x8000, 0xD000, 0xDFFF} {
		cpu, _ := newTestCpu(word)
		err := cpu.Step()
		assert.True(errors.Is(err, ErrOpcodeUnimplemented))
		assert.True(errors.Is(err, ErrOpcode(word)))
		assert.Equal(0, cpu.Ticks)
	}

	cpu := NewCpu()
	err := cpu.Execute(Instruction{Word: 0xFFFF, Opcode: Opcode(16)})
	assert.True(errors.Is(err, ErrOpcodeUnknown))
}

func TestHalt(t *testing.T) {
	assert := assert.New(t)

	// HALT; ADD R0, R0, #1
	cpu, output := newTestCpu(0xF025, 0x1021)

	assert.NoError(cpu.Step())
	assert.True(cpu.Halted)
	assert.Equal(uint16(0x3001), cpu.Register[R7])
	assert.Equal("HALT\n", output.String())

	err := cpu.Step()
	assert.ErrorIs(err, ErrHalted)
	assert.Equal(uint16(0), cpu.Register[R0])
	assert.Equal(uint16(0x3001), cpu.Pc)
	assert.Equal(1, cpu.Ticks)
}

func TestAddressWrap(t *testing.T) {
	assert := assert.New(t)

	cpu, _ := newTestCpu()
	cpu.Memory.Write(0xFFFF, 0xE000) // LEA R0, #0
	cpu.Pc = 0xFFFF
	cpu.Register[R0] = 5

	assert.NoError(cpu.Step())
	assert.Equal(uint16(0), cpu.Pc)
	assert.Equal(uint16(0), cpu.Register[R0])
	assert.Equal(COND_Z, cpu.Cond)
}

func TestCpuString(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	cpu.Register[R2] = 0xABCD

	text := cpu.String()
	assert.Contains(text, "   pc: 3000\n")
	assert.Contains(text, " cond: z\n")
	assert.Contains(text, "   r2: ABCD\n")
}
