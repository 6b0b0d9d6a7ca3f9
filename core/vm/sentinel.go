// Package vm holds the machine-facing primitives the host-call layer
// operates on: paged memory, the register file, the implication pair,
// deferred transfers, the export-segment buffer, and the refine-phase
// machine registry. The opcode interpreter itself is an external
// collaborator — this package only names it through the Interpreter
// interface in machine.go.
package vm

// Sentinel is one of the in-band error codes a host call writes to
// registers[7]. The table is a closed, protocol-fixed
// set — values are the literal u64 constants the Gray Paper assigns,
// not sequential enum indices, so they're declared directly rather
// than via iota.
type Sentinel = uint64

const (
	OK   Sentinel = 0
	NONE Sentinel = ^uint64(0)     // 2^64-1
	WHAT Sentinel = ^uint64(0) - 1 // 2^64-2
	OOB  Sentinel = ^uint64(0) - 2 // 2^64-3
	WHO  Sentinel = ^uint64(0) - 3 // 2^64-4
	FULL Sentinel = ^uint64(0) - 4 // 2^64-5
	CORE Sentinel = ^uint64(0) - 5 // 2^64-6
	CASH Sentinel = ^uint64(0) - 6 // 2^64-7
	LOW  Sentinel = ^uint64(0) - 7 // 2^64-8
	HUH  Sentinel = ^uint64(0) - 8 // 2^64-9
)

// NoServiceSelector is the register value meaning "the currently
// executing service", used by lookup/info/historical_lookup/provide's
// service selector argument.
const NoServiceSelector = ^uint64(0)

// Status is the out-of-band result a host call (or the instruction
// loop) hands back to the invocation driver: continue, halt, panic,
// oog, fault, or host.
type Status int

const (
	Continue Status = iota
	Halt
	Panic
	OutOfGas
	Fault
	Host
)

func (s Status) String() string {
	switch s {
	case Continue:
		return "continue"
	case Halt:
		return "halt"
	case Panic:
		return "panic"
	case OutOfGas:
		return "oog"
	case Fault:
		return "fault"
	case Host:
		return "host"
	default:
		return "unknown"
	}
}
