package common

import "errors"

// Plumbing errors surface only to the invocation driver's Go caller —
// never to the guest, which only ever observes the in-band sentinels
// of the Gray Paper's accumulation ABI or an out-of-band status.
var (
	// ErrBadConstantTable names a compiled-in protocol constant table
	// (params.Constants) that fails its own width checks — a
	// programming error, never a guest-triggerable condition.
	// Constants.Encode performs no such check, and nothing in this
	// module returns this error.
	ErrBadConstantTable = errors.New("malformed protocol constant table")

	// ErrNoInterpreter names a Machine asked to run without an
	// interpreter collaborator attached (the opcode interpreter is
	// external to this core and only named through an interface).
	// Machine.Run calls its interpreter without checking that one is
	// attached, and nothing in this module returns this error.
	ErrNoInterpreter = errors.New("machine has no attached interpreter")
)
