package vm

// Interpreter is the opcode-decode loop this core treats as an
// external collaborator. A Machine only needs somewhere to run guest
// bytecode to completion or to a host-trap/fault/gas-exhaustion
// boundary; how it decodes 32/64-bit arithmetic opcodes is none of
// this package's concern.
type Interpreter interface {
	// Step decodes and executes instructions starting at pc until the
	// machine halts, panics, faults, exhausts gasLimit, or traps into a
	// host call. It returns the status, the PC at that point (registers
	// are updated in place), the gas used, and — for a host trap — the function id
	// that was invoked.
	Step(code []byte, mem *Memory, regs *Registers, pc uint32, gasLimit uint64) InterpreterResult
}

// InterpreterResult is what the collaborator hands back to a Machine
// (and, through it, to `invoke` and the invocation driver).
type InterpreterResult struct {
	Status     Status
	PC         uint32
	GasUsed    uint64
	HostCallID uint64 // valid when Status == Host
	FaultAddr  uint64 // valid when Status == Fault

	// CallVariant disambiguates the two function ids the Gray Paper
	// legitimately assigns to two different calls (16: bless/designate,
	// 23: query/solicit): 0 selects the first-named call, 1 the
	// second. The opcode the guest actually traps on (distinct PVM host-
	// trap instructions, not a shared numeric id alone) is what the
	// interpreter collaborator uses to set this; it is meaningless for
	// every other HostCallID.
	CallVariant uint8
}

// Machine is one guest PVM instance (code + memory + registers +
// program counter). The bitmask/jump table the Gray Paper attaches to
// PVM bytecode are the interpreter collaborator's concern to build
// and consult — this type only carries what the host calls that cross
// machine boundaries (peek/poke/pages/invoke/expunge) need to see.
type Machine struct {
	ID     uint64
	Code   []byte
	Memory *Memory
	Regs   Registers
	PC     uint32

	Interp Interpreter
}

func NewMachine(id uint64, code []byte, pc uint32, interp Interpreter) *Machine {
	return &Machine{
		ID:     id,
		Code:   code,
		Memory: NewMemory(),
		PC:     pc,
		Interp: interp,
	}
}

// Run executes the machine until it yields a terminal or host-trap
// status, for `invoke`.
func (m *Machine) Run(gasLimit uint64) InterpreterResult {
	res := m.Interp.Step(m.Code, m.Memory, &m.Regs, m.PC, gasLimit)
	m.PC = res.PC
	return res
}

// MachineRegistry maps machine id -> Machine. It exists only during
// refine-phase execution; accumulate invocations never see one.
type MachineRegistry struct {
	machines map[uint64]*Machine
}

func NewMachineRegistry() *MachineRegistry {
	return &MachineRegistry{machines: make(map[uint64]*Machine)}
}

// Create installs a fresh Machine under the first unused integer id,
// counting from zero, so an id freed by `expunge` becomes reusable.
func (r *MachineRegistry) Create(code []byte, pc uint32, interp Interpreter) uint64 {
	id := uint64(0)
	for {
		if _, taken := r.machines[id]; !taken {
			break
		}
		id++
	}
	r.machines[id] = NewMachine(id, code, pc, interp)
	return id
}

func (r *MachineRegistry) Get(id uint64) (*Machine, bool) {
	m, ok := r.machines[id]
	return m, ok
}

// Remove implements `expunge`: returns the machine's final program
// counter and deletes it from the registry.
func (r *MachineRegistry) Remove(id uint64) (pc uint32, ok bool) {
	m, ok := r.machines[id]
	if !ok {
		return 0, false
	}
	delete(r.machines, id)
	return m.PC, true
}
