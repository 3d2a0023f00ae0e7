package cpu

const (
	MEMORY_SIZE = 1 << 16 // Number of 16-bit words in the address space.

	MEMSPACE_TRAP_TABLE = uint16(0x0000) // Trap vector table.
	MEMSPACE_INT_TABLE  = uint16(0x0100) // Interrupt vector table.
	MEMSPACE_SUPERVISOR = uint16(0x0200) // Operating system code.
	MEMSPACE_USER       = uint16(0x3000) // User programs.
	MEMSPACE_DEVICES    = uint16(0xFE00) // Memory-mapped device registers.

	KBSR = uint16(0xFE00) // Keyboard status register.
	KBDR = uint16(0xFE02) // Keyboard data register.

	PC_START = MEMSPACE_USER // Reset value of the program counter.
)
