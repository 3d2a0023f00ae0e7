package cpu

import (
	"encoding/binary"
	"iter"
)

// Statement is a line of assembled code with its source location and
// generated words.
type Statement struct {
	LineNo    int      // Source line number.
	Address   uint16   // Address of the first generated word.
	Words     []string // Source words, after expansion.
	Codes     []uint16 // Generated words.
	LinkLabel string   // Label to resolve into the last generated word.
	LinkBits  int      // Width of the PC-relative link field, 16 for an absolute address.
}

// Program is an assembled LC-3 program.
type Program struct {
	Origin     uint16            // Load address.
	Statements []Statement       // Assembled statements, in address order.
	Symbol     map[string]uint16 // Label addresses.
}

type Debug struct {
	*Statement
	Index int
}

// Debug locates the statement that generated the word at addr.
func (prog *Program) Debug(addr uint16) (dbg Debug) {
	for n, st := range prog.Statements {
		if int(addr) >= int(st.Address) && int(addr) < int(st.Address)+len(st.Codes) {
			dbg = Debug{
				Statement: &prog.Statements[n],
				Index:     int(addr) - int(st.Address),
			}
			break
		}
	}

	return
}

// Words returns an iterator over the address and value of each generated word.
func (prog *Program) Words() iter.Seq2[uint16, uint16] {
	return func(yield func(addr uint16, word uint16) bool) {
		for _, st := range prog.Statements {
			for n, code := range st.Codes {
				if !yield(st.Address+uint16(n), code) {
					return
				}
			}
		}
	}
}

// Image encodes the program as an image file: the origin, followed by
// the program words, all big-endian.
func (prog *Program) Image() (image []byte) {
	image = binary.BigEndian.AppendUint16(image, prog.Origin)
	for _, word := range prog.Words() {
		image = binary.BigEndian.AppendUint16(image, word)
	}

	return
}
