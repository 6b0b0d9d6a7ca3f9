package hostcall

import (
	"github.com/probeum/jampvm/common"
	"github.com/probeum/jampvm/core/state"
	"github.com/probeum/jampvm/core/vm"
	"github.com/probeum/jampvm/params"
)

// Register-layout convention: each call's parameters occupy
// registers[7..] in argument order, and any register that both takes
// an input and reports the call's primary result is overwritten in
// place (registers[7,8,9,10,11,12] = code-hash offset, l,
// min_acc_gas, min_memo_gas, gratis, desired_id for `new`; [7,8,9,10]
// = dest, amount, gas_limit, memo_offset for `transfer`; [7,8] =
// hash_offset, z for `solicit`). DESIGN.md records the convention;
// each handler's layout is the order of its register reads below.

func writeResultSlice(ctx *Context, destOffset uint64, v []byte, f, l uint64) (vm.Status, bool) {
	if f > uint64(len(v)) {
		f = uint64(len(v))
	}
	if l > uint64(len(v))-f {
		l = uint64(len(v)) - f
	}
	if l == 0 {
		return vm.Continue, true
	}
	if _, ok := ctx.Memory.WriteOctets(destOffset, v[f:f+l]); !ok {
		return vm.Panic, false
	}
	return vm.Continue, true
}

func hostGas(ctx *Context) vm.Status {
	ctx.Regs[7] = *ctx.Gas
	return vm.Continue
}

func hostFetch(ctx *Context) vm.Status {
	destOffset := ctx.Regs[7]
	f := ctx.Regs[8]
	l := ctx.Regs[9]
	selector := ctx.Regs[10]

	v, ok := ctx.fetchSource(selector)
	if !ok {
		ctx.Regs[7] = vm.NONE
		return vm.Continue
	}

	st, wrote := writeResultSlice(ctx, destOffset, v, f, l)
	if !wrote {
		return st
	}
	ctx.Regs[7] = uint64(len(v))
	return vm.Continue
}

// fetchSource resolves one of the 16 data sources `fetch` selects
// among.
func (c *Context) fetchSource(selector uint64) ([]byte, bool) {
	switch selector {
	case 0:
		return c.ConstantsPayload, c.ConstantsPayload != nil
	case 1:
		if c.Refine == nil {
			return nil, false
		}
		return c.Refine.Entropy[:], true
	case 2:
		if c.Refine == nil || c.Refine.AuthorizerTrace == nil {
			return nil, false
		}
		return c.Refine.AuthorizerTrace, true
	case 3:
		i, j := c.Regs[11], c.Regs[12]
		if c.Segments == nil || i >= uint64(len(c.Segments.Segments)) {
			return nil, false
		}
		seg := c.Segments.Segments[i]
		if j >= uint64(len(seg)) {
			return nil, false
		}
		return seg[j:], true
	case 4:
		if c.Refine == nil || c.Refine.CurrentWorkItemExport == nil {
			return nil, false
		}
		return c.Refine.CurrentWorkItemExport, true
	case 5:
		if c.Refine == nil {
			return nil, false
		}
		idx := c.Regs[11]
		if int(idx) >= len(c.Refine.ImportSegments) {
			return nil, false
		}
		return c.Refine.ImportSegments[idx], true
	case 6:
		if c.Refine == nil || c.Refine.CurrentImportIndex == nil {
			return nil, false
		}
		return c.Refine.CurrentImportIndex(c.Regs[11])
	case 7:
		if c.Refine == nil {
			return nil, false
		}
		return c.Refine.WorkPackageEncoded, nonEmpty(c.Refine.WorkPackageEncoded)
	case 8:
		if c.Refine == nil {
			return nil, false
		}
		return c.Refine.AuthConfig, nonEmpty(c.Refine.AuthConfig)
	case 9:
		if c.Refine == nil {
			return nil, false
		}
		return c.Refine.AuthToken, nonEmpty(c.Refine.AuthToken)
	case 10:
		if c.Refine == nil {
			return nil, false
		}
		return c.Refine.WorkPackageContext, nonEmpty(c.Refine.WorkPackageContext)
	case 11:
		if c.Refine == nil {
			return nil, false
		}
		return c.Refine.WorkItemSummaries, nonEmpty(c.Refine.WorkItemSummaries)
	case 12:
		if c.Refine == nil || c.Refine.WorkItemSummary == nil {
			return nil, false
		}
		return c.Refine.WorkItemSummary(c.Regs[11])
	case 13:
		if c.Refine == nil || c.Refine.WorkItemPayload == nil {
			return nil, false
		}
		return c.Refine.WorkItemPayload(c.Regs[11])
	case 14:
		if c.Refine == nil {
			return nil, false
		}
		return c.Refine.WorkItemsEncoded, nonEmpty(c.Refine.WorkItemsEncoded)
	case 15:
		if c.Refine == nil || c.Refine.WorkItemEncoded == nil {
			return nil, false
		}
		return c.Refine.WorkItemEncoded(c.Regs[11])
	default:
		return nil, false
	}
}

func nonEmpty(b []byte) bool { return b != nil }

func hostLookup(ctx *Context) vm.Status {
	selector := ctx.Regs[7]
	hashOffset := ctx.Regs[8]
	destOffset := ctx.Regs[9]
	f, l := ctx.Regs[10], ctx.Regs[11]

	hashBytes, _, ok := ctx.Memory.ReadOctets(hashOffset, common.HashLength)
	if !ok {
		return vm.Panic
	}
	h := common.BytesToHash(hashBytes)

	svc := ctx.currentService(selector)
	acct, ok := ctx.AccountByID(svc)
	if !ok {
		ctx.Regs[7] = vm.NONE
		return vm.Continue
	}
	blob, ok := acct.Preimages[h]
	if !ok {
		ctx.Regs[7] = vm.NONE
		return vm.Continue
	}

	st, wrote := writeResultSlice(ctx, destOffset, blob, f, l)
	if !wrote {
		return st
	}
	ctx.Regs[7] = uint64(len(blob))
	return vm.Continue
}

func hostHistoricalLookup(ctx *Context) vm.Status {
	selector := ctx.Regs[7]
	hashOffset := ctx.Regs[8]
	timeslot := uint32(ctx.Regs[9])
	destOffset := ctx.Regs[10]
	f, l := ctx.Regs[11], ctx.Regs[12]

	hashBytes, _, ok := ctx.Memory.ReadOctets(hashOffset, common.HashLength)
	if !ok {
		return vm.Panic
	}
	h := common.BytesToHash(hashBytes)

	svc := ctx.currentService(selector)
	acct, ok := ctx.AccountByID(svc)
	if !ok {
		ctx.Regs[7] = vm.NONE
		return vm.Continue
	}
	blob, hasBlob := acct.Preimages[h]
	if !hasBlob {
		ctx.Regs[7] = vm.NONE
		return vm.Continue
	}
	req, hasReq := acct.Requests[state.RequestKey{Hash: h, Length: uint64(len(blob))}]
	if !hasReq || !req.Available(timeslot) {
		ctx.Regs[7] = vm.NONE
		return vm.Continue
	}

	st, wrote := writeResultSlice(ctx, destOffset, blob, f, l)
	if !wrote {
		return st
	}
	ctx.Regs[7] = uint64(len(blob))
	return vm.Continue
}

func hostRead(ctx *Context) vm.Status {
	selector := ctx.Regs[7]
	keyOffset, keyLen := ctx.Regs[8], ctx.Regs[9]
	destOffset := ctx.Regs[10]
	f, l := ctx.Regs[11], ctx.Regs[12]

	key, _, ok := ctx.Memory.ReadOctets(keyOffset, keyLen)
	if !ok {
		return vm.Panic
	}

	svc := ctx.currentService(selector)
	acct, ok := ctx.AccountByID(svc)
	if !ok {
		ctx.Regs[7] = vm.NONE
		return vm.Continue
	}
	v, ok := acct.Storage[string(key)]
	if !ok {
		ctx.Regs[7] = vm.NONE
		return vm.Continue
	}

	st, wrote := writeResultSlice(ctx, destOffset, v, f, l)
	if !wrote {
		return st
	}
	ctx.Regs[7] = uint64(len(v))
	return vm.Continue
}

func hostWrite(ctx *Context) vm.Status {
	keyOffset, keyLen := ctx.Regs[7], ctx.Regs[8]
	valueOffset, valueLen := ctx.Regs[9], ctx.Regs[10]

	key, _, ok := ctx.Memory.ReadOctets(keyOffset, keyLen)
	if !ok {
		return vm.Panic
	}

	acct := ctx.CurrentAccount()
	prevValue, existed := acct.Storage[string(key)]
	prevLen := vm.NONE
	if existed {
		prevLen = uint64(len(prevValue))
	}

	restore := func() {
		if existed {
			acct.Storage[string(key)] = prevValue
		} else {
			delete(acct.Storage, string(key))
		}
		acct.RecomputeFootprint()
	}

	if valueLen == 0 {
		delete(acct.Storage, string(key))
	} else {
		value, _, ok := ctx.Memory.ReadOctets(valueOffset, valueLen)
		if !ok {
			return vm.Panic
		}
		acct.Storage[string(key)] = value
	}

	if !acct.RecomputeFootprint() {
		restore()
		ctx.Regs[7] = vm.FULL
		return vm.Continue
	}
	if minBal, ok := acct.MinBalance(); !ok || minBal > acct.Balance {
		restore()
		ctx.Regs[7] = vm.FULL
		return vm.Continue
	}
	ctx.Regs[7] = prevLen
	return vm.Continue
}

func hostInfo(ctx *Context) vm.Status {
	selector := ctx.Regs[7]
	destOffset := ctx.Regs[8]
	f, l := ctx.Regs[9], ctx.Regs[10]

	svc := ctx.currentService(selector)
	acct, ok := ctx.AccountByID(svc)
	if !ok {
		ctx.Regs[7] = vm.NONE
		return vm.Continue
	}
	record := acct.Encode()

	st, wrote := writeResultSlice(ctx, destOffset, record, f, l)
	if !wrote {
		return st
	}
	ctx.Regs[7] = uint64(len(record))
	return vm.Continue
}

func hostExport(ctx *Context) vm.Status {
	if ctx.Segments == nil {
		ctx.Regs[7] = vm.WHAT
		return vm.Continue
	}
	blobOffset := ctx.Regs[7]
	z := ctx.Regs[8]
	if z > params.SegmentSize {
		z = params.SegmentSize
	}

	blob, _, ok := ctx.Memory.ReadOctets(blobOffset, z)
	if !ok {
		return vm.Panic
	}

	index, ok := ctx.Segments.Append(blob)
	if !ok {
		ctx.Regs[7] = vm.FULL
		return vm.Continue
	}
	ctx.Regs[7] = index
	return vm.Continue
}

func hostMachine(ctx *Context) vm.Status {
	if ctx.Machines == nil {
		ctx.Regs[7] = vm.WHAT
		return vm.Continue
	}
	codeOffset, codeLen := ctx.Regs[7], ctx.Regs[8]
	initialPC := uint32(ctx.Regs[9])

	code, _, ok := ctx.Memory.ReadOctets(codeOffset, codeLen)
	if !ok {
		return vm.Panic
	}

	id := ctx.Machines.Create(code, initialPC, ctx.Interp)
	ctx.Regs[7] = id
	return vm.Continue
}

func hostPeek(ctx *Context) vm.Status {
	if ctx.Machines == nil {
		ctx.Regs[7] = vm.WHAT
		return vm.Continue
	}
	machineID := ctx.Regs[7]
	sourceOffset := ctx.Regs[8]
	destOffset := ctx.Regs[9]
	z := ctx.Regs[10]

	m, ok := ctx.Machines.Get(machineID)
	if !ok {
		ctx.Regs[7] = vm.WHO
		return vm.Continue
	}
	data, _, ok := m.Memory.ReadOctets(sourceOffset, z)
	if !ok {
		ctx.Regs[7] = vm.OOB
		return vm.Continue
	}
	if _, ok := ctx.Memory.WriteOctets(destOffset, data); !ok {
		return vm.Panic
	}
	ctx.Regs[7] = vm.OK
	return vm.Continue
}

func hostPoke(ctx *Context) vm.Status {
	if ctx.Machines == nil {
		ctx.Regs[7] = vm.WHAT
		return vm.Continue
	}
	machineID := ctx.Regs[7]
	sourceOffset := ctx.Regs[8]
	destOffset := ctx.Regs[9]
	z := ctx.Regs[10]

	data, _, ok := ctx.Memory.ReadOctets(sourceOffset, z)
	if !ok {
		return vm.Panic
	}
	m, ok := ctx.Machines.Get(machineID)
	if !ok {
		ctx.Regs[7] = vm.WHO
		return vm.Continue
	}
	if _, ok := m.Memory.WriteOctets(destOffset, data); !ok {
		ctx.Regs[7] = vm.OOB
		return vm.Continue
	}
	ctx.Regs[7] = vm.OK
	return vm.Continue
}

func hostPages(ctx *Context) vm.Status {
	if ctx.Machines == nil {
		ctx.Regs[7] = vm.WHAT
		return vm.Continue
	}
	machineID := ctx.Regs[7]
	p64, c64 := ctx.Regs[8], ctx.Regs[9]
	r := ctx.Regs[10]

	m, ok := ctx.Machines.Get(machineID)
	if !ok {
		ctx.Regs[7] = vm.WHO
		return vm.Continue
	}
	if r > 4 || p64 < 16 || c64 > vm.PageCount || p64+c64 >= vm.PageCount {
		ctx.Regs[7] = vm.HUH
		return vm.Continue
	}
	p, c := uint32(p64), uint32(c64)
	if r > 2 {
		// Preserving page contents only makes sense over pages that
		// are already mapped.
		for i := uint32(0); i < c; i++ {
			if m.Memory.PageAccess(p+i) == vm.AccessNone {
				ctx.Regs[7] = vm.HUH
				return vm.Continue
			}
		}
	}

	var access vm.Access
	switch {
	case r == 0:
		access = vm.AccessNone
	case r == 1 || r == 3:
		access = vm.AccessRead
	default:
		access = vm.AccessWrite
	}
	if r < 3 {
		m.Memory.ZeroPages(p, c)
	}
	m.Memory.SetPageAccess(p, c, access)
	ctx.Regs[7] = vm.OK
	return vm.Continue
}

// Invoke result classification codes written to registers[7]: Status
// is an internal Go type, not part of the guest-visible ABI, so
// invoke maps it onto the small integers documented here.
const (
	InvokeHalt  = uint64(0)
	InvokePanic = uint64(1)
	InvokeFault = uint64(2)
	InvokeOOG   = uint64(3)
	InvokeHost  = uint64(4)
)

func hostInvoke(ctx *Context) vm.Status {
	if ctx.Machines == nil {
		ctx.Regs[7] = vm.WHAT
		return vm.Continue
	}
	machineID := ctx.Regs[7]
	regionOffset := ctx.Regs[8]

	m, ok := ctx.Machines.Get(machineID)
	if !ok {
		ctx.Regs[7] = vm.WHO
		return vm.Continue
	}

	region, _, ok := ctx.Memory.ReadOctets(regionOffset, 112)
	if !ok {
		return vm.Panic
	}
	gasLimit := common.Uint64(region[:8])
	for i := 0; i < vm.NumRegisters; i++ {
		m.Regs[i] = common.Uint64(region[8+i*8 : 16+i*8])
	}

	res := m.Run(gasLimit)

	remaining := uint64(0)
	if res.GasUsed < gasLimit {
		remaining = gasLimit - res.GasUsed
	}
	out := make([]byte, 112)
	common.PutUint64(out[:8], remaining)
	for i := 0; i < vm.NumRegisters; i++ {
		common.PutUint64(out[8+i*8:16+i*8], m.Regs[i])
	}
	if _, ok := ctx.Memory.WriteOctets(regionOffset, out); !ok {
		return vm.Panic
	}

	switch res.Status {
	case vm.Halt:
		ctx.Regs[7] = InvokeHalt
	case vm.Panic:
		ctx.Regs[7] = InvokePanic
	case vm.OutOfGas:
		ctx.Regs[7] = InvokeOOG
	case vm.Fault:
		ctx.Regs[7] = InvokeFault
		ctx.Regs[8] = res.FaultAddr
	case vm.Host:
		ctx.Regs[7] = InvokeHost
		ctx.Regs[8] = res.HostCallID
	}
	return vm.Continue
}

func hostExpunge(ctx *Context) vm.Status {
	if ctx.Machines == nil {
		ctx.Regs[7] = vm.WHAT
		return vm.Continue
	}
	machineID := ctx.Regs[7]
	pc, ok := ctx.Machines.Remove(machineID)
	if !ok {
		ctx.Regs[7] = vm.WHO
		return vm.Continue
	}
	ctx.Regs[7] = uint64(pc)
	return vm.Continue
}

func hostLog(ctx *Context) vm.Status {
	level := ctx.Regs[7]
	targetOffset, targetLen := ctx.Regs[8], ctx.Regs[9]
	messageOffset, messageLen := ctx.Regs[10], ctx.Regs[11]

	message, _, ok := ctx.Memory.ReadOctets(messageOffset, messageLen)
	if !ok {
		return vm.Continue // invalid memory access is a silent no-op
	}
	var target string
	if targetLen > 0 {
		if t, _, ok := ctx.Memory.ReadOctets(targetOffset, targetLen); ok {
			target = string(t)
		}
	}
	if ctx.Log != nil {
		ctx.Log.WithField("target", target).Debugf("guest log level=%d: %s", level, string(message))
	}
	return vm.Continue
}
