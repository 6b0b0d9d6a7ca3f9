// Package driver implements the invocation driver: the loop that
// steps a guest PVM machine, dispatches its host traps through
// core/vm/hostcall, applies gas accounting and the checkpoint/
// rollback recovery policy when the guest panics or exhausts its gas,
// and — once the guest halts — settles the invocation's deferred
// transfers.
package driver

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/probeum/jampvm/core/state"
	"github.com/probeum/jampvm/core/vm"
	"github.com/probeum/jampvm/core/vm/hostcall"
	"github.com/probeum/jampvm/params"
)

// Driver owns the host-call registry and the opcode interpreter every
// invocation runs against.
type Driver struct {
	Dispatcher *hostcall.Dispatcher
	Interp     vm.Interpreter
	Log        hostcall.Logger
}

func New(interp vm.Interpreter, log hostcall.Logger) *Driver {
	return &Driver{Dispatcher: hostcall.NewDispatcher(), Interp: interp, Log: log}
}

// Result is what one invocation reports to its caller, the
// accumulation pipeline stage above this package.
type Result struct {
	Status  vm.Status
	GasUsed uint64
	Regs    vm.Registers
	PC      uint32
}

// InvokeAccumulate runs a single accumulate-phase invocation of
// serviceID's code starting at pc with gasLimit gas, against impair.
// Machines/Segments stay nil: both are refine-phase-only
// collaborators an accumulate invocation never touches.
func (d *Driver) InvokeAccumulate(
	code []byte,
	pc uint32,
	gasLimit uint64,
	impair *vm.ImplicationPair,
	timeslot uint32,
	expungePeriod uint32,
	constantsPayload []byte,
) Result {
	preInvocation := impair.Regular.Clone()

	gas := gasLimit
	regs := &vm.Registers{}
	mem := vm.NewMemory()

	ctx := &hostcall.Context{
		Gas:              &gas,
		Regs:             regs,
		Memory:           mem,
		Impair:           impair,
		Timeslot:         timeslot,
		ExpungePeriod:    expungePeriod,
		ConstantsPayload: constantsPayload,
		Log:              d.Log,
	}

	status, curPC := d.run(code, mem, regs, pc, &gas, ctx)

	switch status {
	case vm.Panic, vm.OutOfGas:
		if impair.Checkpointed {
			impair.Rollback()
			if d.Log != nil {
				d.Log.WithField("service", uint32(impair.Regular.ServiceID)).
					Warnf("invocation ended with %s, rolled back to checkpoint", status)
			}
		} else {
			impair.Regular = preInvocation
			if d.Log != nil {
				d.Log.WithField("service", uint32(impair.Regular.ServiceID)).
					Warnf("invocation ended with %s, discarded without checkpoint", status)
			}
		}
	case vm.Halt:
		d.settle(impair, timeslot)
	}

	return Result{Status: status, GasUsed: gasLimit - gas, Regs: *regs, PC: curPC}
}

// InvokeRefine runs a refine-phase invocation: unlike
// InvokeAccumulate, it wires a live MachineRegistry and SegmentBuffer
// and the refine-only `fetch` data sources, and never touches a
// PartialState — refine code has no accumulate-phase account to
// mutate, so impair/timeslot/expungePeriod are left zero.
func (d *Driver) InvokeRefine(
	code []byte,
	pc uint32,
	gasLimit uint64,
	refine *hostcall.RefineData,
	constantsPayload []byte,
) Result {
	gas := gasLimit
	regs := &vm.Registers{}
	mem := vm.NewMemory()

	ctx := &hostcall.Context{
		Gas:              &gas,
		Regs:             regs,
		Memory:           mem,
		Machines:         vm.NewMachineRegistry(),
		Segments:         &vm.SegmentBuffer{},
		Refine:           refine,
		Interp:           d.Interp,
		ConstantsPayload: constantsPayload,
		Log:              d.Log,
	}

	status, curPC := d.run(code, mem, regs, pc, &gas, ctx)
	return Result{Status: status, GasUsed: gasLimit - gas, Regs: *regs, PC: curPC}
}

// run steps the guest machine, dispatching host traps as they occur,
// until a terminal status (halt/panic/oog/fault) is reached.
func (d *Driver) run(
	code []byte,
	mem *vm.Memory,
	regs *vm.Registers,
	pc uint32,
	gas *uint64,
	ctx *hostcall.Context,
) (vm.Status, uint32) {
	curPC := pc
	for {
		res := d.Interp.Step(code, mem, regs, curPC, *gas)
		if res.GasUsed > *gas {
			*gas = 0
			return vm.OutOfGas, res.PC
		}
		*gas -= res.GasUsed
		curPC = res.PC

		switch res.Status {
		case vm.Halt, vm.Panic, vm.Fault, vm.OutOfGas:
			return res.Status, curPC
		case vm.Host:
			cost := params.BaseHostCallGas
			if res.HostCallID == params.HostCallLog {
				cost = 0
			}
			if *gas < cost {
				*gas = 0
				return vm.OutOfGas, curPC
			}
			*gas -= cost

			ctx.PendingGasCharge = 0
			hstatus := d.dispatch(res.HostCallID, res.CallVariant, ctx)

			if ctx.PendingGasCharge > 0 {
				if *gas < ctx.PendingGasCharge {
					*gas = 0
					return vm.OutOfGas, curPC
				}
				*gas -= ctx.PendingGasCharge
			}

			if hstatus == vm.Panic || hstatus == vm.Fault {
				return hstatus, curPC
			}
			// vm.Continue: keep stepping at curPC.
		default:
			return res.Status, curPC
		}
	}
}

// dispatch resolves id 16/23's colliding pair by CallVariant before
// falling back to the Dispatcher's by-id table for every other call.
func (d *Driver) dispatch(id uint64, variant uint8, ctx *hostcall.Context) vm.Status {
	if d.Log != nil {
		d.Log.WithField("hostcall", hostcall.CallName(id, variant)).
			WithField("service", uint32(ctx.Impair.Regular.ServiceID)).
			Debugf("dispatching host call id=%d gas=%d", id, *ctx.Gas)
	}
	switch id {
	case params.HostCallBless: // == HostCallDesignate
		if variant == 0 {
			return hostcall.HostBless(ctx)
		}
		return hostcall.HostDesignate(ctx)
	case params.HostCallQuery: // == HostCallSolicit
		if variant == 0 {
			return hostcall.HostQuery(ctx)
		}
		return hostcall.HostSolicit(ctx)
	default:
		return d.Dispatcher.Dispatch(id, ctx)
	}
}

// settle applies an invocation's deferred transfers once it halts
// successfully; provisions are not touched (see the end of the body). Each transfer's destination is checked
// to exist before the balance moves; those checks fan out
// concurrently via errgroup ahead of the single-threaded apply
// phase.
func (d *Driver) settle(impair *vm.ImplicationPair, timeslot uint32) {
	im := impair.Regular
	ps := im.State

	if acct, ok := ps.Accounts[im.ServiceID]; ok {
		acct.LastAccumulateAt = timeslot
	}

	g, _ := errgroup.WithContext(context.Background())
	exists := make([]bool, len(im.Transfers))
	for i, t := range im.Transfers {
		i, t := i, t
		g.Go(func() error {
			_, ok := ps.Accounts[t.Dest]
			exists[i] = ok
			return nil
		})
	}
	_ = g.Wait()

	for i, t := range im.Transfers {
		if !exists[i] {
			continue
		}
		dest := ps.Accounts[t.Dest]
		if sum, ok := state.AddU64Checked(dest.Balance, t.Amount); ok {
			dest.Balance = sum
		}
	}
	im.Transfers = nil

	// im.Provisions is left as-is: `provide` (hostcall/accumulate.go
	// hostProvide) already commits its preimage directly onto the
	// target account's Requests/Preimages when it runs, since a panic
	// later in the same invocation discards that mutation along with
	// everything else via the rollback/discard path above. The table
	// only exists to report what this invocation provided.
}
