package vm

// NumRegisters is the guest register-file width: thirteen 64-bit
// cells indexed 0..12.
const NumRegisters = 13

// Registers is the host-call input/output channel alongside guest
// memory: arguments are read from registers[7..] and results written
// back to registers[7] (and sometimes registers[8]).
type Registers [NumRegisters]uint64
