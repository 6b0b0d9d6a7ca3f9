package hostcall

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/probeum/jampvm/common"
	"github.com/probeum/jampvm/core/state"
	"github.com/probeum/jampvm/core/vm"
	"github.com/probeum/jampvm/params"
)

// fixedInterpreter is a stub vm.Interpreter returning the same result
// for every Step call.
type fixedInterpreter struct {
	result vm.InterpreterResult
}

func (f *fixedInterpreter) Step(code []byte, mem *vm.Memory, regs *vm.Registers, pc uint32, gasLimit uint64) vm.InterpreterResult {
	return f.result
}

// withRefineCollaborators attaches a machine registry and segment
// buffer to ctx, as the driver does for refine-phase invocations.
func withRefineCollaborators(ctx *Context, interp vm.Interpreter) {
	ctx.Machines = vm.NewMachineRegistry()
	ctx.Segments = &vm.SegmentBuffer{}
	ctx.Interp = interp
}

func TestHostGasReportsCounter(t *testing.T) {
	caller := state.NewAccount(7)
	ctx, _ := newTestContext(t, caller)
	*ctx.Gas = 424_242

	require.Equal(t, vm.Continue, hostGas(ctx))
	require.Equal(t, uint64(424_242), ctx.Regs[7])
}

func TestHostFetchConstantsPayload(t *testing.T) {
	caller := state.NewAccount(7)
	ctx, _ := newTestContext(t, caller)
	ctx.ConstantsPayload = params.ConstantsFor(params.TestConfig()).Encode()
	require.Len(t, ctx.ConstantsPayload, params.ConstantsPayloadSize)

	ctx.Regs[7] = 0 // dest offset
	ctx.Regs[8] = 0 // f
	ctx.Regs[9] = uint64(params.ConstantsPayloadSize)
	ctx.Regs[10] = 0 // selector

	require.Equal(t, vm.Continue, hostFetch(ctx))
	require.Equal(t, uint64(params.ConstantsPayloadSize), ctx.Regs[7])

	got, _, ok := ctx.Memory.ReadOctets(0, uint64(params.ConstantsPayloadSize))
	require.True(t, ok)
	require.Equal(t, ctx.ConstantsPayload, got)
}

func TestHostFetchSliceClamping(t *testing.T) {
	caller := state.NewAccount(7)
	ctx, _ := newTestContext(t, caller)
	ctx.ConstantsPayload = []byte{1, 2, 3, 4}

	// f beyond |v| clamps to an empty write; the length still returns.
	ctx.Regs[7] = 0
	ctx.Regs[8] = 100
	ctx.Regs[9] = 100
	ctx.Regs[10] = 0

	require.Equal(t, vm.Continue, hostFetch(ctx))
	require.Equal(t, uint64(4), ctx.Regs[7])
}

func TestHostFetchUnknownSelectorIsNone(t *testing.T) {
	caller := state.NewAccount(7)
	ctx, _ := newTestContext(t, caller)

	ctx.Regs[10] = 99

	require.Equal(t, vm.Continue, hostFetch(ctx))
	require.Equal(t, vm.NONE, ctx.Regs[7])
}

func TestHostFetchRefineSourcesAbsentInAccumulate(t *testing.T) {
	caller := state.NewAccount(7)
	ctx, _ := newTestContext(t, caller)

	ctx.Regs[10] = 1 // entropy: refine-only

	require.Equal(t, vm.Continue, hostFetch(ctx))
	require.Equal(t, vm.NONE, ctx.Regs[7])
}

func TestHostLookupReadsPreimage(t *testing.T) {
	caller := state.NewAccount(7)
	h := common.Hash{0xAB}
	blob := []byte("preimage body")
	caller.Preimages[h] = blob
	ctx, _ := newTestContext(t, caller)

	ctx.Memory.WriteOctets(0, h[:])
	ctx.Regs[7] = vm.NoServiceSelector
	ctx.Regs[8] = 0  // hash offset
	ctx.Regs[9] = 64 // dest offset
	ctx.Regs[10] = 0 // f
	ctx.Regs[11] = uint64(len(blob))

	require.Equal(t, vm.Continue, hostLookup(ctx))
	require.Equal(t, uint64(len(blob)), ctx.Regs[7])

	got, _, ok := ctx.Memory.ReadOctets(64, uint64(len(blob)))
	require.True(t, ok)
	require.Equal(t, blob, got)
}

func TestHostLookupAbsentIsNone(t *testing.T) {
	caller := state.NewAccount(7)
	ctx, _ := newTestContext(t, caller)

	ctx.Memory.WriteOctets(0, make([]byte, 32))
	ctx.Regs[7] = vm.NoServiceSelector
	ctx.Regs[8] = 0

	require.Equal(t, vm.Continue, hostLookup(ctx))
	require.Equal(t, vm.NONE, ctx.Regs[7])
}

func TestHostLookupFaultOnHashIsPanic(t *testing.T) {
	caller := state.NewAccount(7)
	ctx, _ := newTestContext(t, caller)

	ctx.Regs[7] = vm.NoServiceSelector
	ctx.Regs[8] = 1 << 40 // unreadable
	before := ctx.Regs[7]

	require.Equal(t, vm.Panic, hostLookup(ctx))
	require.Equal(t, before, ctx.Regs[7])
}

func TestHostHistoricalLookupHonoursAvailabilityWindow(t *testing.T) {
	caller := state.NewAccount(7)
	h := common.Hash{0xAB}
	blob := []byte("body")
	caller.Preimages[h] = blob
	// Available when 5 <= t < 20.
	caller.PutRequest(
		state.RequestKey{Hash: h, Length: uint64(len(blob))},
		state.Request{Slots: [3]uint32{5, 20}, Len: 2},
	)
	ctx, _ := newTestContext(t, caller)

	ctx.Memory.WriteOctets(0, h[:])
	ctx.Regs[7] = vm.NoServiceSelector
	ctx.Regs[8] = 0  // hash offset
	ctx.Regs[9] = 10 // timeslot inside the window
	ctx.Regs[10] = 64
	ctx.Regs[11] = 0
	ctx.Regs[12] = uint64(len(blob))

	require.Equal(t, vm.Continue, hostHistoricalLookup(ctx))
	require.Equal(t, uint64(len(blob)), ctx.Regs[7])

	ctx.Regs[7] = vm.NoServiceSelector
	ctx.Regs[9] = 30 // past the forget slot
	require.Equal(t, vm.Continue, hostHistoricalLookup(ctx))
	require.Equal(t, vm.NONE, ctx.Regs[7])
}

func TestHostWriteThenReadRoundTrip(t *testing.T) {
	caller := state.NewAccount(7)
	caller.Balance = 1_000_000
	ctx, _ := newTestContext(t, caller)

	key := []byte("config")
	value := []byte("enabled")
	ctx.Memory.WriteOctets(0, key)
	ctx.Memory.WriteOctets(64, value)

	ctx.Regs[7] = 0
	ctx.Regs[8] = uint64(len(key))
	ctx.Regs[9] = 64
	ctx.Regs[10] = uint64(len(value))

	require.Equal(t, vm.Continue, hostWrite(ctx))
	require.Equal(t, vm.NONE, ctx.Regs[7]) // no previous value

	require.Equal(t, uint32(1), caller.Items)
	require.Equal(t, uint64(34+len(key)+len(value)), caller.Octets)

	ctx.Regs[7] = vm.NoServiceSelector
	ctx.Regs[8] = 0
	ctx.Regs[9] = uint64(len(key))
	ctx.Regs[10] = 128
	ctx.Regs[11] = 0
	ctx.Regs[12] = uint64(len(value))

	require.Equal(t, vm.Continue, hostRead(ctx))
	require.Equal(t, uint64(len(value)), ctx.Regs[7])

	got, _, ok := ctx.Memory.ReadOctets(128, uint64(len(value)))
	require.True(t, ok)
	require.Equal(t, value, got)
}

func TestHostWriteDeleteReturnsPreviousLength(t *testing.T) {
	caller := state.NewAccount(7)
	caller.Balance = 1_000_000
	caller.Storage["k"] = []byte("12345")
	caller.RecomputeFootprint()
	ctx, _ := newTestContext(t, caller)

	ctx.Memory.WriteOctets(0, []byte("k"))
	ctx.Regs[7] = 0
	ctx.Regs[8] = 1
	ctx.Regs[9] = 0
	ctx.Regs[10] = 0 // zero length deletes

	require.Equal(t, vm.Continue, hostWrite(ctx))
	require.Equal(t, uint64(5), ctx.Regs[7])
	require.Empty(t, caller.Storage)
	require.Equal(t, uint32(0), caller.Items)
}

func TestHostWriteFullWhenBelowDepositFloor(t *testing.T) {
	caller := state.NewAccount(7)
	caller.Balance = 0
	ctx, _ := newTestContext(t, caller)

	ctx.Memory.WriteOctets(0, []byte("k"))
	ctx.Memory.WriteOctets(64, []byte("v"))
	ctx.Regs[7] = 0
	ctx.Regs[8] = 1
	ctx.Regs[9] = 64
	ctx.Regs[10] = 1

	require.Equal(t, vm.Continue, hostWrite(ctx))
	require.Equal(t, vm.FULL, ctx.Regs[7])
	require.Empty(t, caller.Storage)
}

func TestHostInfoEncodesAccountRecord(t *testing.T) {
	caller := state.NewAccount(7)
	caller.Balance = 12_345
	ctx, _ := newTestContext(t, caller)

	record := caller.Encode()
	ctx.Regs[7] = vm.NoServiceSelector
	ctx.Regs[8] = 0
	ctx.Regs[9] = 0
	ctx.Regs[10] = uint64(len(record))

	require.Equal(t, vm.Continue, hostInfo(ctx))
	require.Equal(t, uint64(len(record)), ctx.Regs[7])

	got, _, ok := ctx.Memory.ReadOctets(0, uint64(len(record)))
	require.True(t, ok)
	require.Equal(t, record, got)
}

func TestHostInfoUnknownServiceIsNone(t *testing.T) {
	caller := state.NewAccount(7)
	ctx, _ := newTestContext(t, caller)

	ctx.Regs[7] = 404

	require.Equal(t, vm.Continue, hostInfo(ctx))
	require.Equal(t, vm.NONE, ctx.Regs[7])
}

func TestHostExportReturnsSegmentIndex(t *testing.T) {
	caller := state.NewAccount(7)
	ctx, _ := newTestContext(t, caller)
	withRefineCollaborators(ctx, nil)
	ctx.Segments.Offset = 10

	ctx.Memory.WriteOctets(0, []byte("segment data"))
	ctx.Regs[7] = 0
	ctx.Regs[8] = 12

	require.Equal(t, vm.Continue, hostExport(ctx))
	require.Equal(t, uint64(10), ctx.Regs[7])
	require.Len(t, ctx.Segments.Segments, 1)
	require.Equal(t, byte('s'), ctx.Segments.Segments[0][0])
	// zero padding to the fixed segment size
	require.Equal(t, byte(0), ctx.Segments.Segments[0][params.SegmentSize-1])
}

func TestHostExportFullAtCapacity(t *testing.T) {
	caller := state.NewAccount(7)
	ctx, _ := newTestContext(t, caller)
	withRefineCollaborators(ctx, nil)
	ctx.Segments.Offset = params.MaxPackageExports - 1

	ctx.Regs[7] = 0
	ctx.Regs[8] = 1
	require.Equal(t, vm.Continue, hostExport(ctx))
	require.Equal(t, uint64(params.MaxPackageExports-1), ctx.Regs[7])

	ctx.Regs[7] = 0
	ctx.Regs[8] = 1
	require.Equal(t, vm.Continue, hostExport(ctx))
	require.Equal(t, vm.FULL, ctx.Regs[7])
}

func TestHostExportOutsideRefineIsWhat(t *testing.T) {
	caller := state.NewAccount(7)
	ctx, _ := newTestContext(t, caller)

	require.Equal(t, vm.Continue, hostExport(ctx))
	require.Equal(t, vm.WHAT, ctx.Regs[7])
}

func TestHostMachineCreatesAndExpungeRemoves(t *testing.T) {
	caller := state.NewAccount(7)
	ctx, _ := newTestContext(t, caller)
	withRefineCollaborators(ctx, &fixedInterpreter{})

	code := []byte{0x01, 0x02, 0x03}
	ctx.Memory.WriteOctets(0, code)
	ctx.Regs[7] = 0
	ctx.Regs[8] = uint64(len(code))
	ctx.Regs[9] = 7 // initial pc

	require.Equal(t, vm.Continue, hostMachine(ctx))
	id := ctx.Regs[7]
	require.Equal(t, uint64(0), id)

	m, ok := ctx.Machines.Get(id)
	require.True(t, ok)
	require.Equal(t, code, m.Code)
	require.Equal(t, uint32(7), m.PC)

	ctx.Regs[7] = id
	require.Equal(t, vm.Continue, hostExpunge(ctx))
	require.Equal(t, uint64(7), ctx.Regs[7]) // final pc

	ctx.Regs[7] = id
	require.Equal(t, vm.Continue, hostExpunge(ctx))
	require.Equal(t, vm.WHO, ctx.Regs[7])
}

func TestHostPeekCopiesAcrossMachines(t *testing.T) {
	caller := state.NewAccount(7)
	ctx, _ := newTestContext(t, caller)
	withRefineCollaborators(ctx, &fixedInterpreter{})

	id := ctx.Machines.Create(nil, 0, nil)
	m, _ := ctx.Machines.Get(id)
	m.Memory.SetPageAccess(0, 1, vm.AccessWrite)
	m.Memory.WriteOctets(8, []byte("abcd"))

	ctx.Regs[7] = id
	ctx.Regs[8] = 8  // source in machine memory
	ctx.Regs[9] = 32 // dest in current memory
	ctx.Regs[10] = 4

	require.Equal(t, vm.Continue, hostPeek(ctx))
	require.Equal(t, vm.OK, ctx.Regs[7])

	got, _, ok := ctx.Memory.ReadOctets(32, 4)
	require.True(t, ok)
	require.Equal(t, []byte("abcd"), got)
}

func TestHostPeekUnreadableSourceIsOOB(t *testing.T) {
	caller := state.NewAccount(7)
	ctx, _ := newTestContext(t, caller)
	withRefineCollaborators(ctx, &fixedInterpreter{})

	id := ctx.Machines.Create(nil, 0, nil) // machine memory starts with no access

	ctx.Regs[7] = id
	ctx.Regs[8] = 0
	ctx.Regs[9] = 32
	ctx.Regs[10] = 4

	require.Equal(t, vm.Continue, hostPeek(ctx))
	require.Equal(t, vm.OOB, ctx.Regs[7])
}

func TestHostPokeUnknownMachineIsWho(t *testing.T) {
	caller := state.NewAccount(7)
	ctx, _ := newTestContext(t, caller)
	withRefineCollaborators(ctx, &fixedInterpreter{})

	ctx.Regs[7] = 9
	ctx.Regs[8] = 0
	ctx.Regs[9] = 0
	ctx.Regs[10] = 4

	require.Equal(t, vm.Continue, hostPoke(ctx))
	require.Equal(t, vm.WHO, ctx.Regs[7])
}

func TestHostPokeUnwritableDestIsOOB(t *testing.T) {
	caller := state.NewAccount(7)
	ctx, _ := newTestContext(t, caller)
	withRefineCollaborators(ctx, &fixedInterpreter{})

	id := ctx.Machines.Create(nil, 0, nil)

	ctx.Regs[7] = id
	ctx.Regs[8] = 0 // readable in current memory
	ctx.Regs[9] = 0 // machine memory has no access
	ctx.Regs[10] = 4

	require.Equal(t, vm.Continue, hostPoke(ctx))
	require.Equal(t, vm.OOB, ctx.Regs[7])
}

func TestHostPagesBoundaryChecks(t *testing.T) {
	caller := state.NewAccount(7)
	ctx, _ := newTestContext(t, caller)
	withRefineCollaborators(ctx, &fixedInterpreter{})
	id := ctx.Machines.Create(nil, 0, nil)

	cases := []struct {
		name    string
		p, c, r uint64
	}{
		{"rights out of range", 16, 1, 5},
		{"page below sixteen", 15, 1, 1},
		{"range past address space", 16, uint64(vm.PageCount) - 16, 1},
	}
	for _, tc := range cases {
		ctx.Regs[7] = id
		ctx.Regs[8] = tc.p
		ctx.Regs[9] = tc.c
		ctx.Regs[10] = tc.r

		require.Equal(t, vm.Continue, hostPages(ctx), tc.name)
		require.Equal(t, vm.HUH, ctx.Regs[7], tc.name)
	}
}

func TestHostPagesPreservingRightsNeedMappedPages(t *testing.T) {
	caller := state.NewAccount(7)
	ctx, _ := newTestContext(t, caller)
	withRefineCollaborators(ctx, &fixedInterpreter{})
	id := ctx.Machines.Create(nil, 0, nil)

	ctx.Regs[7] = id
	ctx.Regs[8] = 16
	ctx.Regs[9] = 1
	ctx.Regs[10] = 3 // preserve contents over an unmapped page

	require.Equal(t, vm.Continue, hostPages(ctx))
	require.Equal(t, vm.HUH, ctx.Regs[7])
}

func TestHostPagesZeroingGrant(t *testing.T) {
	caller := state.NewAccount(7)
	ctx, _ := newTestContext(t, caller)
	withRefineCollaborators(ctx, &fixedInterpreter{})
	id := ctx.Machines.Create(nil, 0, nil)
	m, _ := ctx.Machines.Get(id)

	ctx.Regs[7] = id
	ctx.Regs[8] = 16
	ctx.Regs[9] = 2
	ctx.Regs[10] = 2 // write access, zeroed

	require.Equal(t, vm.Continue, hostPages(ctx))
	require.Equal(t, vm.OK, ctx.Regs[7])
	require.Equal(t, vm.AccessWrite, m.Memory.PageAccess(16))
	require.Equal(t, vm.AccessWrite, m.Memory.PageAccess(17))

	got, _, ok := m.Memory.ReadOctets(16*vm.PageSize, 8)
	require.True(t, ok)
	require.Equal(t, make([]byte, 8), got)
}

func TestHostInvokeRunsMachineAndReportsHostTrap(t *testing.T) {
	caller := state.NewAccount(7)
	ctx, _ := newTestContext(t, caller)
	withRefineCollaborators(ctx, &fixedInterpreter{})
	id := ctx.Machines.Create(nil, 0, &fixedInterpreter{result: vm.InterpreterResult{
		Status:     vm.Host,
		HostCallID: params.HostCallGas,
		GasUsed:    40,
		PC:         9,
	}})

	region := make([]byte, 112)
	common.PutUint64(region[:8], 100) // gas limit
	common.PutUint64(region[8:16], 0xAABB)
	ctx.Memory.WriteOctets(0, region)

	ctx.Regs[7] = id
	ctx.Regs[8] = 0

	require.Equal(t, vm.Continue, hostInvoke(ctx))
	require.Equal(t, InvokeHost, ctx.Regs[7])
	require.Equal(t, params.HostCallGas, ctx.Regs[8])

	out, _, ok := ctx.Memory.ReadOctets(0, 112)
	require.True(t, ok)
	require.Equal(t, uint64(60), common.Uint64(out[:8])) // 100 - 40 remaining

	m, _ := ctx.Machines.Get(id)
	require.Equal(t, uint32(9), m.PC)
	require.Equal(t, uint64(0xAABB), m.Regs[0]) // registers seeded from the region
}

func TestHostInvokeUnknownMachineIsWho(t *testing.T) {
	caller := state.NewAccount(7)
	ctx, _ := newTestContext(t, caller)
	withRefineCollaborators(ctx, &fixedInterpreter{})

	ctx.Regs[7] = 5
	require.Equal(t, vm.Continue, hostInvoke(ctx))
	require.Equal(t, vm.WHO, ctx.Regs[7])
}

func TestHostLogBadMemoryIsSilentNoOp(t *testing.T) {
	caller := state.NewAccount(7)
	ctx, _ := newTestContext(t, caller)

	ctx.Regs[10] = 1 << 40 // unreadable message
	ctx.Regs[11] = 4
	before := ctx.Regs[7]

	require.Equal(t, vm.Continue, hostLog(ctx))
	require.Equal(t, before, ctx.Regs[7])
}

func TestDispatcherUnknownIDIsWhat(t *testing.T) {
	caller := state.NewAccount(7)
	ctx, _ := newTestContext(t, caller)
	d := NewDispatcher()

	require.Equal(t, vm.Continue, d.Dispatch(999, ctx))
	require.Equal(t, vm.WHAT, ctx.Regs[7])
}

func TestCallNameResolvesCollidingIDs(t *testing.T) {
	require.Equal(t, "bless", CallName(params.HostCallBless, 0))
	require.Equal(t, "designate", CallName(params.HostCallDesignate, 1))
	require.Equal(t, "query", CallName(params.HostCallQuery, 0))
	require.Equal(t, "solicit", CallName(params.HostCallSolicit, 1))
	require.Equal(t, "forget", CallName(params.HostCallForget, 0))
	require.Equal(t, "unknown", CallName(999, 0))
}
