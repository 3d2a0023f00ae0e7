package cpu

import (
	"errors"

	"github.com/ezrec/lc3/translate"
)

var f = translate.From

var (
	// Cpu errors
	ErrHalted              = errors.New(f("halted"))
	ErrOpcodeUnimplemented = errors.New(f("opcode unimplemented"))
	ErrOpcodeUnknown       = errors.New(f("opcode unknown"))
	ErrKeyboardClosed      = errors.New(f("keyboard closed"))
	ErrDisplay             = errors.New(f("display write"))

	// Image errors
	ErrImageRead = errors.New(f("image read"))

	// Assembler errors
	ErrEquateSyntax       = errors.New(f(".equ syntax"))
	ErrEquateDuplicate    = errors.New(f(".equ duplicated"))
	ErrLabelDuplicate     = errors.New(f("label duplicated"))
	ErrLabelInvalid       = errors.New(f("label invalid"))
	ErrOrigMissing        = errors.New(f(".orig missing"))
	ErrOrigDuplicate      = errors.New(f(".orig duplicated"))
	ErrOrigOverflow       = errors.New(f("program exceeds memory"))
	ErrOperandMissing     = errors.New(f("operand missing"))
	ErrOperandExtra       = errors.New(f("excessive operands"))
	ErrRegisterInvalid    = errors.New(f("register invalid"))
	ErrStringInvalid      = errors.New(f(".stringz invalid"))
	ErrInstructionInvalid = errors.New(f("instruction invalid"))
)

// ErrOpcode annotates an execution error with the instruction word.
type ErrOpcode uint16

func (eo ErrOpcode) Error() string {
	return f("bad opcode 0x%04x %v", uint16(eo), Decode(uint16(eo)).String())
}

func (eo ErrOpcode) Is(err error) (ok bool) {
	_, ok = err.(ErrOpcode)
	return
}

type ErrLabelMissing string

func (el ErrLabelMissing) Error() string {
	return f("label %v missing", string(el))
}

type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (err ErrSyntax) Error() string {
	return f("line %d '%v' %v", err.LineNo, err.Line, err.Err)
}

func (err ErrSyntax) Unwrap() error {
	return err.Err
}

type ErrParseNumber string

func (err ErrParseNumber) Error() string {
	return f("'%v' is not a number", string(err))
}

type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}

// ErrRange reports a value that does not fit in its instruction field.
type ErrRange struct {
	Value int
	Bits  int
}

func (err ErrRange) Error() string {
	return f("%d does not fit in %d bits", err.Value, err.Bits)
}
