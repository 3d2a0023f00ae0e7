package cpu

import (
	"errors"
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
)

func FuzzCpu(f *testing.F) {
	for op := range 16 {
		f.Add(uint16(op<<12), uint16(0))
		f.Add(uint16(op<<12|0x0FFF), uint16(0x8000))
	}

	f.Fuzz(func(t *testing.T, word uint16, seed uint16) {
		assert := assert.New(t)

		cpu, _ := newTestCpu(word)
		cpu.Memory.Keyboard = &mockKeyboard{keys: []byte("kk")}
		for n := range cpu.Register {
			cpu.Register[n] = seed * uint16(n+1)
		}

		inst := Decode(word)
		assert.NotEmpty(inst.String())
		if !UsesDestField(inst.Opcode) {
			assert.Equal(R0, inst.Dest)
		}
		if !UsesBaseField(inst.Opcode) {
			assert.Equal(R0, inst.Base)
		}
		if !UsesImmediateBit(inst.Opcode) {
			assert.False(inst.Immediate)
		}

		err := cpu.Step()
		switch inst.Opcode {
		case OP_RTI, OP_RES:
			assert.True(errors.Is(err, ErrOpcodeUnimplemented))
			assert.Equal(0, cpu.Ticks)
		default:
			assert.NoError(err)
			assert.Equal(1, cpu.Ticks)
		}

		assert.Equal(1, bits.OnesCount16(uint16(cpu.Cond)))

		switch inst.Opcode {
		case OP_BR, OP_JMP, OP_JSR:
		default:
			assert.Equal(PC_START+1, cpu.Pc)
		}
	})
}
