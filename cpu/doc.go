// Package cpu implements the LC-3 processor and assembler.
//
// The CPU consists of a program counter (PC), eight 16-bit general-purpose
// registers (r0-r7), a three-state condition code (n/z/p), and a 64Ki word
// memory with a memory-mapped keyboard at KBSR/KBDR. Console I/O is provided
// by the TRAP routines GETC, OUT, PUTS, IN, PUTSP and HALT.
//
// The assembler accepts the classic LC-3 assembly language, extended with
// '.equ' constants and compile-time $(...) expression evaluation.
package cpu
