// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO": "0",
}

// Assembler is a single pass LC-3 assembler, with deferred label linking.
type Assembler struct {
	Verbose   bool        // If set, verbosely logs the assembler actions.
	Statement []Statement // List of generated statements.

	predefine map[string]string // Predefines
	Label     map[string]uint16 // Map of labels to addresses.
	Equate    map[string]string // Map of equates.

	origin int  // Address of the .orig directive, or -1.
	ended  bool // Set after .end
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// regMap is a map of register names.
var regMap = map[string]Register{
	"R0": R0,
	"R1": R1,
	"R2": R2,
	"R3": R3,
	"R4": R4,
	"R5": R5,
	"R6": R6,
	"R7": R7,
}

// trapMap is a map of the trap routine aliases.
var trapMap = map[string]Trap{
	"GETC":  TRAP_GETC,
	"OUT":   TRAP_OUT,
	"PUTS":  TRAP_PUTS,
	"IN":    TRAP_IN,
	"PUTSP": TRAP_PUTSP,
	"HALT":  TRAP_HALT,
}

// pcRelativeMap maps the 'OP REG, LABEL' instructions.
var pcRelativeMap = map[string]Opcode{
	"LD":  OP_LD,
	"LDI": OP_LDI,
	"LEA": OP_LEA,
	"ST":  OP_ST,
	"STI": OP_STI,
}

// mnemonics lists the remaining instruction and directive words.
var mnemonics = []string{
	"ADD", "AND", "NOT", "JMP", "RET", "JSR", "JSRR", "LDR", "STR",
	"TRAP", "RTI",
	".ORIG", ".END", ".FILL", ".BLKW", ".STRINGZ",
}

var (
	reBranch = regexp.MustCompile(`^BR(N?Z?P?)$`)
	reLabel  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	reChar   = regexp.MustCompile(`'\\?[^']'`)
	reCharAt = regexp.MustCompile(`^'\\?[^']'`)
	reParen  = regexp.MustCompile(`\$\([^\$]*\)`)
)

// isMnemonic returns true if the word is an instruction or directive.
func isMnemonic(word string) bool {
	word = strings.ToUpper(word)
	if _, ok := trapMap[word]; ok {
		return true
	}
	if _, ok := pcRelativeMap[word]; ok {
		return true
	}
	return reBranch.MatchString(word) || slices.Contains(mnemonics, word)
}

// valueOf returns the value of a numeric word: #decimal, xHEX, or any Go
// integer literal.
func (asm *Assembler) valueOf(word string) (value int, err error) {
	text := word
	base := 0
	switch {
	case len(text) > 1 && text[0] == '#':
		text = text[1:]
		base = 10
	case len(text) > 1 && (text[0] == 'x' || text[0] == 'X'):
		text = text[1:]
		base = 16
	}

	v64, err := strconv.ParseInt(text, base, 32)
	if err != nil {
		err = ErrParseNumber(word)
		return
	}

	value = int(v64)

	return
}

// fits returns true if value can be encoded in a signed field of 'bits'.
// A 16-bit field also accepts unsigned values.
func fits(value int, bits int) bool {
	if bits == 16 {
		return value >= -0x8000 && value <= 0xFFFF
	}
	return value >= -(1<<(bits-1)) && value < (1<<(bits-1))
}

// immediate returns the value of a word as a 'bits' wide field.
func (asm *Assembler) immediate(word string, bits int) (field uint16, err error) {
	value, err := asm.valueOf(word)
	if err != nil {
		return
	}

	if !fits(value, bits) {
		err = ErrRange{Value: value, Bits: bits}
		return
	}

	field = uint16(value) & uint16((1<<bits)-1)

	return
}

// target returns either an immediate field, or a label to be linked.
func (asm *Assembler) target(word string, bits int) (field uint16, label string, err error) {
	field, err = asm.immediate(word, bits)
	if _, ok := err.(ErrParseNumber); ok && reLabel.MatchString(word) {
		err = nil
		label = word
	}

	return
}

// register returns the register named by a word.
func (asm *Assembler) register(word string) (reg Register, err error) {
	reg, ok := regMap[strings.ToUpper(word)]
	if !ok {
		err = ErrRegisterInvalid
	}

	return
}

// registers decodes a list of register words.
func (asm *Assembler) registers(words ...string) (regs []Register, err error) {
	for _, word := range words {
		var reg Register
		reg, err = asm.register(word)
		if err != nil {
			return
		}
		regs = append(regs, reg)
	}

	return
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value int, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		var number int
		number, err = asm.valueOf(str)
		if err != nil {
			// Ignore non-integer equates. They may be registers
			// or something else.
			continue
		}
		pred[key] = starlark.MakeInt(number)
	}
	err = nil
	for key, addr := range asm.Label {
		pred[key] = starlark.MakeInt(int(addr))
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int64, ok := st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value = int(st_int64)
	return
}

// charLength returns the length of a 'c' literal at the start of text,
// or 0 if there is none.
func charLength(text string) int {
	loc := reCharAt.FindStringIndex(text)
	if loc == nil {
		return 0
	}
	return loc[1]
}

// stringStart returns the index of the first '"' outside of a 'c'
// literal, or -1.
func stringStart(text string) int {
	for n := 0; n < len(text); n++ {
		switch text[n] {
		case '\'':
			if size := charLength(text[n:]); size > 0 {
				n += size - 1
			}
		case '"':
			return n
		}
	}

	return -1
}

// stripComment removes a trailing ';' comment, ignoring any in quotes.
func stripComment(text string) string {
	quoted := false
	for n := 0; n < len(text); n++ {
		switch text[n] {
		case '\\':
			if quoted {
				n++
			}
		case '\'':
			if size := charLength(text[n:]); !quoted && size > 0 {
				n += size - 1
			}
		case '"':
			quoted = !quoted
		case ';':
			if !quoted {
				return text[:n]
			}
		}
	}

	return text
}

// splitWords splits a line on whitespace and commas.
func splitWords(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

// parseLine parses a single line into words.
func (asm *Assembler) parseLine(line string, lineno int) (words []string, err error) {
	// Set line number.
	asm.Equate["LINENO"] = fmt.Sprintf("%v", lineno)

	// .stringz literals are kept as a single, unexpanded word.
	var literal string
	if quote := stringStart(line); quote >= 0 {
		literal = strings.TrimSpace(line[quote:])
		line = line[:quote]
	}

	// Do 'x' evaluations
	line = reChar.ReplaceAllStringFunc(line, func(word string) string {
		str := word[1 : len(word)-1]
		if str[0] == '\\' {
			str = str[1:]
			switch str {
			case "\\":
				str = "\\"
			case "n":
				str = "\n"
			case "r":
				str = "\r"
			case "t":
				str = "\t"
			case "e":
				str = "\033"
			case "0":
				str = "\000"
			default:
				return word
			}
		} else if len(str) != 1 {
			return word
		}
		return fmt.Sprintf("#%v", str[0])
	})

	// Do $() evaluations
	line = reParen.ReplaceAllStringFunc(line, func(str string) string {
		value, _err := asm.parenEval(str[2 : len(str)-1])
		if _err != nil {
			err = _err
		}
		return fmt.Sprintf("#%d", value)
	})
	if err != nil {
		return
	}

	words = splitWords(line)
	if len(literal) != 0 {
		words = append(words, literal)
	}

	if len(words) == 0 {
		return
	}

	// .equ CONST VALUE
	if strings.EqualFold(words[0], ".equ") {
		if len(words) != 3 {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[words[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[words[1]] = words[2]
		words = words[:0]
		return
	}

	for n, word := range words {
		// Check for equate next
		equate, ok := asm.Equate[word]
		if ok {
			words[n] = equate
		}
	}

	return
}

// currentAddress gets the address of the next generated word.
func (asm *Assembler) currentAddress() int {
	if len(asm.Statement) == 0 {
		return asm.origin
	}

	last := asm.Statement[len(asm.Statement)-1]

	return int(last.Address) + len(last.Codes)
}

// Parse parses an input stream into a Program.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {
	scanner := bufio.NewScanner(input)

	var line string
	var lineno int

	defer func() {
		if err != nil {
			err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	asm.Label = make(map[string]uint16, 16)
	asm.Statement = asm.Statement[:0]
	asm.origin = -1
	asm.ended = false
	asm.Equate = maps.Clone(sysEquate)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}

	for scanner.Scan() && !asm.ended {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno, text)
		}

		line = strings.TrimSpace(stripComment(text))

		var words []string
		words, err = asm.parseLine(line, lineno)
		if err != nil {
			return
		}

		err = asm.parseWords(words, lineno)
		if err != nil {
			return
		}
	}

	err = scanner.Err()
	if err != nil {
		return
	}

	if asm.origin < 0 {
		err = ErrOrigMissing
		return
	}

	// Final linking of labels.
	for n := range asm.Statement {
		st := &asm.Statement[n]

		if len(st.LinkLabel) == 0 {
			continue
		}

		lineno = st.LineNo
		line = strings.Join(st.Words, " ")

		addr, ok := asm.Label[st.LinkLabel]
		if !ok {
			err = ErrLabelMissing(st.LinkLabel)
			return
		}

		linked := &st.Codes[len(st.Codes)-1]
		if st.LinkBits == 16 {
			*linked = addr
			continue
		}

		pc := int(st.Address) + len(st.Codes)
		offset := int(addr) - pc
		if !fits(offset, st.LinkBits) {
			err = ErrRange{Value: offset, Bits: st.LinkBits}
			return
		}
		*linked |= uint16(offset) & uint16((1<<st.LinkBits)-1)
	}

	prog = &Program{
		Origin:     uint16(asm.origin),
		Statements: slices.Clone(asm.Statement),
		Symbol:     maps.Clone(asm.Label),
	}

	return
}

// operands checks the operand count of an instruction.
func operands(words []string, count int) (err error) {
	switch {
	case len(words) < count:
		err = ErrOperandMissing
	case len(words) > count:
		err = ErrOperandExtra
	}

	return
}

// parseWords evaluates the words in a line of assembly text.
func (asm *Assembler) parseWords(words []string, lineno int) (err error) {
	var codes []uint16
	var label string
	var bits int

	// no-op
	if len(words) == 0 {
		return
	}

	initial_words := words

	// Labels
	for len(words) > 0 && !isMnemonic(words[0]) {
		name := strings.TrimSuffix(words[0], ":")
		if !reLabel.MatchString(name) {
			err = ErrInstructionInvalid
			return
		}
		if _, ok := regMap[strings.ToUpper(name)]; ok {
			err = ErrLabelInvalid
			return
		}
		if _, ok := asm.Label[name]; ok {
			err = ErrLabelDuplicate
			return
		}
		if asm.origin < 0 {
			err = ErrOrigMissing
			return
		}
		asm.Label[name] = uint16(asm.currentAddress())
		words = words[1:]
	}

	if len(words) == 0 {
		return
	}

	mnemonic := strings.ToUpper(words[0])
	args := words[1:]

	if mnemonic == ".ORIG" {
		if asm.origin >= 0 {
			err = ErrOrigDuplicate
			return
		}
		err = operands(args, 1)
		if err != nil {
			return
		}
		var value int
		value, err = asm.valueOf(args[0])
		if err != nil {
			return
		}
		if value < 0 || value >= MEMORY_SIZE {
			err = ErrRange{Value: value, Bits: 16}
			return
		}
		asm.origin = value
		return
	}

	if asm.origin < 0 {
		err = ErrOrigMissing
		return
	}

	defer func() {
		if err != nil || len(codes) == 0 {
			return
		}
		address := asm.currentAddress()
		if address+len(codes) > MEMORY_SIZE {
			err = ErrOrigOverflow
			return
		}
		st := Statement{
			LineNo:    lineno,
			Address:   uint16(address),
			Words:     initial_words,
			Codes:     codes,
			LinkLabel: label,
			LinkBits:  bits,
		}
		asm.Statement = append(asm.Statement, st)
	}()

	if trap, ok := trapMap[mnemonic]; ok {
		err = operands(args, 0)
		if err != nil {
			return
		}
		codes = append(codes, uint16(OP_TRAP)<<12|uint16(trap))
		return
	}

	if op, ok := pcRelativeMap[mnemonic]; ok {
		err = operands(args, 2)
		if err != nil {
			return
		}
		var reg Register
		reg, err = asm.register(args[0])
		if err != nil {
			return
		}
		var field uint16
		bits = 9
		field, label, err = asm.target(args[1], bits)
		if err != nil {
			return
		}
		codes = append(codes, uint16(op)<<12|uint16(reg)<<9|field)
		return
	}

	if match := reBranch.FindStringSubmatch(mnemonic); match != nil {
		err = operands(args, 1)
		if err != nil {
			return
		}
		nzp := COND_N | COND_Z | COND_P
		if len(match[1]) != 0 {
			nzp = 0
			for _, c := range match[1] {
				switch c {
				case 'N':
					nzp |= COND_N
				case 'Z':
					nzp |= COND_Z
				case 'P':
					nzp |= COND_P
				}
			}
		}
		var field uint16
		bits = 9
		field, label, err = asm.target(args[0], bits)
		if err != nil {
			return
		}
		codes = append(codes, uint16(OP_BR)<<12|uint16(nzp)<<9|field)
		return
	}

	switch mnemonic {
	case "ADD", "AND":
		op := OP_ADD
		if mnemonic == "AND" {
			op = OP_AND
		}
		err = operands(args, 3)
		if err != nil {
			return
		}
		var regs []Register
		regs, err = asm.registers(args[0], args[1])
		if err != nil {
			return
		}
		code := uint16(op)<<12 | uint16(regs[0])<<9 | uint16(regs[1])<<6
		if reg, rerr := asm.register(args[2]); rerr == nil {
			code |= uint16(reg)
		} else {
			var imm5 uint16
			imm5, err = asm.immediate(args[2], 5)
			if err != nil {
				return
			}
			code |= 1<<5 | imm5
		}
		codes = append(codes, code)
	case "NOT":
		err = operands(args, 2)
		if err != nil {
			return
		}
		var regs []Register
		regs, err = asm.registers(args...)
		if err != nil {
			return
		}
		codes = append(codes, uint16(OP_NOT)<<12|uint16(regs[0])<<9|uint16(regs[1])<<6|0x3F)
	case "JMP", "JSRR":
		op := OP_JMP
		if mnemonic == "JSRR" {
			op = OP_JSR
		}
		err = operands(args, 1)
		if err != nil {
			return
		}
		var base Register
		base, err = asm.register(args[0])
		if err != nil {
			return
		}
		codes = append(codes, uint16(op)<<12|uint16(base)<<6)
	case "RET":
		err = operands(args, 0)
		if err != nil {
			return
		}
		codes = append(codes, uint16(OP_JMP)<<12|uint16(R7)<<6)
	case "JSR":
		err = operands(args, 1)
		if err != nil {
			return
		}
		var field uint16
		bits = 11
		field, label, err = asm.target(args[0], bits)
		if err != nil {
			return
		}
		codes = append(codes, uint16(OP_JSR)<<12|1<<11|field)
	case "LDR", "STR":
		op := OP_LDR
		if mnemonic == "STR" {
			op = OP_STR
		}
		err = operands(args, 3)
		if err != nil {
			return
		}
		var regs []Register
		regs, err = asm.registers(args[0], args[1])
		if err != nil {
			return
		}
		var offset6 uint16
		offset6, err = asm.immediate(args[2], 6)
		if err != nil {
			return
		}
		codes = append(codes, uint16(op)<<12|uint16(regs[0])<<9|uint16(regs[1])<<6|offset6)
	case "TRAP":
		err = operands(args, 1)
		if err != nil {
			return
		}
		var vector int
		vector, err = asm.valueOf(args[0])
		if err != nil {
			return
		}
		if vector < 0 || vector > 0xFF {
			err = ErrRange{Value: vector, Bits: 8}
			return
		}
		codes = append(codes, uint16(OP_TRAP)<<12|uint16(vector))
	case "RTI":
		err = operands(args, 0)
		if err != nil {
			return
		}
		codes = append(codes, uint16(OP_RTI)<<12)
	case ".FILL":
		err = operands(args, 1)
		if err != nil {
			return
		}
		var field uint16
		bits = 16
		field, label, err = asm.target(args[0], bits)
		if err != nil {
			return
		}
		codes = append(codes, field)
	case ".BLKW":
		if len(args) < 1 {
			err = ErrOperandMissing
			return
		}
		if len(args) > 2 {
			err = ErrOperandExtra
			return
		}
		var count int
		count, err = asm.valueOf(args[0])
		if err != nil {
			return
		}
		if count < 0 || count > MEMORY_SIZE {
			err = ErrRange{Value: count, Bits: 16}
			return
		}
		var fill uint16
		if len(args) == 2 {
			fill, err = asm.immediate(args[1], 16)
			if err != nil {
				return
			}
		}
		for range count {
			codes = append(codes, fill)
		}
	case ".STRINGZ":
		err = operands(args, 1)
		if err != nil {
			return
		}
		var text string
		text, err = strconv.Unquote(args[0])
		if err != nil || !strings.HasPrefix(args[0], `"`) {
			err = ErrStringInvalid
			return
		}
		for n := range len(text) {
			codes = append(codes, uint16(text[n]))
		}
		codes = append(codes, 0)
	case ".END":
		err = operands(args, 0)
		if err != nil {
			return
		}
		asm.ended = true
	default:
		err = ErrInstructionInvalid
		return
	}

	return
}
