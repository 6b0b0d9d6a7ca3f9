package hostcall

import (
	"github.com/probeum/jampvm/common"
	"github.com/probeum/jampvm/core/state"
	"github.com/probeum/jampvm/core/vm"
	"github.com/probeum/jampvm/crypto"
	"github.com/probeum/jampvm/params"
)

// Accumulate-phase host calls (Gray Paper). `bless`/`designate` and
// `query`/`solicit` share a literal function id (16, 23); the
// dispatcher table can only hold one handler per id, so both members
// of each pair are exported by name in dispatcher.go and the
// accumulate-phase driver calls the right one directly rather than
// resolving id 16/23 through Dispatch.

func hostBless(ctx *Context) vm.Status {
	manager := ctx.Regs[7]
	assignersOffset := ctx.Regs[8]
	delegator := ctx.Regs[9]
	registrar := ctx.Regs[10]
	alwaysOffset := ctx.Regs[11]
	alwaysCount := ctx.Regs[12]

	coreCount := uint64(ctx.partialState().Config().CoreCount)
	assigners, _, ok := ctx.Memory.ReadOctets(assignersOffset, coreCount*4)
	if !ok {
		return vm.Panic
	}

	alwaysRaw, _, ok := ctx.Memory.ReadOctets(alwaysOffset, alwaysCount*12)
	if !ok {
		return vm.Panic
	}

	if manager >= 1<<32 || delegator >= 1<<32 || registrar >= 1<<32 {
		ctx.Regs[7] = vm.WHO
		return vm.Continue
	}

	ps := ctx.partialState()
	if ps.Manager != ctx.state().ServiceID {
		ctx.Regs[7] = vm.HUH
		return vm.Continue
	}

	assignerIDs := make([]common.ServiceID, coreCount)
	for i := uint64(0); i < coreCount; i++ {
		assignerIDs[i] = common.ServiceID(common.Uint32(assigners[i*4 : i*4+4]))
	}
	always := make([]state.AlwaysAccumulateEntry, alwaysCount)
	for i := uint64(0); i < alwaysCount; i++ {
		rec := alwaysRaw[i*12 : i*12+12]
		always[i] = state.AlwaysAccumulateEntry{
			ServiceID: common.ServiceID(common.Uint32(rec[:4])),
			Gas:       common.Uint64(rec[4:12]),
		}
	}

	ps.Manager = common.ServiceID(manager)
	ps.Delegator = common.ServiceID(delegator)
	ps.Registrar = common.ServiceID(registrar)
	ps.Assigners = assignerIDs
	ps.AlwaysAccumulate = always

	ctx.Regs[7] = vm.OK
	return vm.Continue
}

func hostAssign(ctx *Context) vm.Status {
	core := ctx.Regs[7]
	queueOffset := ctx.Regs[8]
	newAssigner := ctx.Regs[9]

	queue, _, ok := ctx.Memory.ReadOctets(queueOffset, uint64(params.AuthQueueSize)*common.HashLength)
	if !ok {
		return vm.Panic
	}

	ps := ctx.partialState()
	if core >= uint64(len(ps.Assigners)) {
		ctx.Regs[7] = vm.CORE
		return vm.Continue
	}
	if ps.Assigners[core] != ctx.state().ServiceID {
		ctx.Regs[7] = vm.HUH
		return vm.Continue
	}
	if newAssigner >= 1<<32 {
		ctx.Regs[7] = vm.WHO
		return vm.Continue
	}

	ps.AuthQueues[core] = queue
	ps.Assigners[core] = common.ServiceID(newAssigner)

	ctx.Regs[7] = vm.OK
	return vm.Continue
}

func hostDesignate(ctx *Context) vm.Status {
	offset := ctx.Regs[7]

	ps := ctx.partialState()
	valCount := uint64(ps.Config().ValidatorCount)
	staging, _, ok := ctx.Memory.ReadOctets(offset, valCount*params.ValidatorRecordSize)
	if !ok {
		return vm.Panic
	}

	if ps.Delegator != ctx.state().ServiceID {
		ctx.Regs[7] = vm.HUH
		return vm.Continue
	}

	ps.StagingSet = staging
	ctx.Regs[7] = vm.OK
	return vm.Continue
}

func hostCheckpoint(ctx *Context) vm.Status {
	ctx.Impair.Checkpoint()
	if ctx.Log != nil {
		ctx.Log.WithField("hostcall", "checkpoint").
			WithField("service", uint32(ctx.state().ServiceID)).
			Debugf("exceptional snapshot taken, gas=%d", *ctx.Gas)
	}
	ctx.Regs[7] = *ctx.Gas
	return vm.Continue
}

func hostNew(ctx *Context) vm.Status {
	codeHashOffset := ctx.Regs[7]
	l := ctx.Regs[8]
	minAccGas := ctx.Regs[9]
	minMemoGas := ctx.Regs[10]
	gratis := ctx.Regs[11]
	desiredID := ctx.Regs[12]

	if l >= 1<<32 {
		return vm.Panic
	}

	codeHashBytes, _, ok := ctx.Memory.ReadOctets(codeHashOffset, common.HashLength)
	if !ok {
		return vm.Panic
	}
	codeHash := common.BytesToHash(codeHashBytes)

	ps := ctx.partialState()
	caller := ctx.CurrentAccount()

	// Only the manager may grant a deposit rebate to the new service.
	if gratis != 0 && ps.Manager != caller.ID {
		ctx.Regs[7] = vm.HUH
		return vm.Continue
	}

	requestItems, requestOctets, ok := state.Footprint([]uint64{l}, nil)
	if !ok {
		ctx.Regs[7] = vm.FULL
		return vm.Continue
	}
	minBal, ok := state.MinBalance(
		params.BaseDeposit, params.ItemDeposit, params.ByteDeposit,
		requestItems, requestOctets, gratis,
	)
	if !ok {
		ctx.Regs[7] = vm.FULL
		return vm.Continue
	}

	// The debit must be coverable, and the caller's remaining balance
	// must still satisfy its own deposit floor afterwards.
	callerMin, ok := caller.MinBalance()
	if !ok {
		ctx.Regs[7] = vm.FULL
		return vm.Continue
	}
	if caller.Balance < minBal || caller.Balance-minBal < callerMin {
		ctx.Regs[7] = vm.CASH
		return vm.Continue
	}

	var id common.ServiceID
	if ps.Registrar == caller.ID && gratis == 0 && desiredID < uint64(params.MinPublicIndex) {
		// Reserved-id allocation: the cursor does not move.
		id = common.ServiceID(desiredID)
		if _, taken := ps.Accounts[id]; taken {
			ctx.Regs[7] = vm.FULL
			return vm.Continue
		}
	} else {
		id = ps.AllocateServiceID()
	}

	acct := state.NewAccount(id)
	acct.CodeHash = codeHash
	acct.Balance = minBal
	acct.MinAccumulateGas = minAccGas
	acct.MinMemoGas = minMemoGas
	acct.Gratis = gratis
	acct.CreatedAt = ctx.Timeslot
	acct.LastAccumulateAt = ctx.Timeslot
	acct.ParentID = caller.ID
	acct.PutRequest(state.RequestKey{Hash: codeHash, Length: l}, state.NewSolicitedRequest())
	acct.RecomputeFootprint()

	caller.Balance -= minBal
	ps.Accounts[id] = acct

	ctx.Regs[7] = uint64(id)
	return vm.Continue
}

func hostUpgrade(ctx *Context) vm.Status {
	codeHashOffset := ctx.Regs[7]
	minAccGas := ctx.Regs[8]
	minMemoGas := ctx.Regs[9]

	codeHashBytes, _, ok := ctx.Memory.ReadOctets(codeHashOffset, common.HashLength)
	if !ok {
		return vm.Panic
	}

	acct := ctx.CurrentAccount()
	acct.CodeHash = common.BytesToHash(codeHashBytes)
	acct.MinAccumulateGas = minAccGas
	acct.MinMemoGas = minMemoGas

	ctx.Regs[7] = vm.OK
	return vm.Continue
}

func hostTransfer(ctx *Context) vm.Status {
	dest := ctx.Regs[7]
	amount := ctx.Regs[8]
	gasLimit := ctx.Regs[9]
	memoOffset := ctx.Regs[10]

	memo, _, ok := ctx.Memory.ReadOctets(memoOffset, params.MemoSize)
	if !ok {
		return vm.Panic
	}

	ps := ctx.partialState()
	destAcct, ok := ps.Accounts[common.ServiceID(dest)]
	if !ok {
		ctx.Regs[7] = vm.WHO
		return vm.Continue
	}
	if gasLimit < destAcct.MinMemoGas {
		ctx.Regs[7] = vm.LOW
		return vm.Continue
	}
	caller := ctx.CurrentAccount()
	callerMin, okMin := caller.MinBalance()
	if !okMin || caller.Balance < amount || caller.Balance-amount < callerMin {
		ctx.Regs[7] = vm.CASH
		return vm.Continue
	}

	caller.Balance -= amount
	var memoArr [128]byte
	copy(memoArr[:], memo)
	ctx.state().Transfers = append(ctx.state().Transfers, vm.DeferredTransfer{
		Source:   ctx.state().ServiceID,
		Dest:     common.ServiceID(dest),
		Amount:   amount,
		Memo:     memoArr,
		GasLimit: gasLimit,
	})

	ctx.Regs[7] = vm.OK
	ctx.PendingGasCharge = gasLimit
	return vm.Continue
}

func hostEject(ctx *Context) vm.Status {
	target := ctx.Regs[7]
	hashOffset := ctx.Regs[8]

	hashBytes, _, ok := ctx.Memory.ReadOctets(hashOffset, common.HashLength)
	if !ok {
		return vm.Panic
	}
	h := common.BytesToHash(hashBytes)

	caller := ctx.state().ServiceID
	if common.ServiceID(target) == caller {
		ctx.Regs[7] = vm.WHO
		return vm.Continue
	}

	ps := ctx.partialState()
	targetAcct, ok := ps.Accounts[common.ServiceID(target)]
	if !ok {
		ctx.Regs[7] = vm.WHO
		return vm.Continue
	}
	// An account consents to ejection by this caller by carrying the
	// caller's id, fixed-width-32 encoded, as its code hash.
	if targetAcct.CodeHash != common.CodeHashForServiceID(caller) {
		ctx.Regs[7] = vm.WHO
		return vm.Continue
	}

	if targetAcct.Items != 2 {
		ctx.Regs[7] = vm.HUH
		return vm.Continue
	}
	z := uint64(0)
	if targetAcct.Octets > 81 {
		z = targetAcct.Octets - 81
	}
	req, hasReq := targetAcct.Requests[state.RequestKey{Hash: h, Length: z}]
	if !hasReq || req.Len < 2 || !expiredAt(req.Slots[1], ctx.Timeslot, ctx.ExpungePeriod) {
		ctx.Regs[7] = vm.HUH
		return vm.Continue
	}

	callerAcct := ctx.CurrentAccount()
	merged, ok := state.AddU64Checked(callerAcct.Balance, targetAcct.Balance)
	if !ok {
		ctx.Regs[7] = vm.FULL
		return vm.Continue
	}
	callerAcct.Balance = merged
	delete(ps.Accounts, common.ServiceID(target))

	ctx.Regs[7] = vm.OK
	return vm.Continue
}

// expiredAt reports whether a forgotten-at timeslot lies strictly
// before now - period, the expiry condition `forget` and `eject`
// share. Widened to uint64 so at+period cannot wrap.
func expiredAt(at, now, period uint32) bool {
	return uint64(at)+uint64(period) < uint64(now)
}

func hostQuery(ctx *Context) vm.Status {
	hashOffset := ctx.Regs[7]

	hashBytes, _, ok := ctx.Memory.ReadOctets(hashOffset, common.HashLength)
	if !ok {
		return vm.Panic
	}
	h := common.BytesToHash(hashBytes)
	z := ctx.Regs[8]

	acct := ctx.CurrentAccount()
	req, ok := acct.Requests[state.RequestKey{Hash: h, Length: z}]
	if !ok {
		ctx.Regs[7] = vm.NONE
		ctx.Regs[8] = 0
		return vm.Continue
	}
	lo, hi := req.EncodeQuery()
	ctx.Regs[7] = lo
	ctx.Regs[8] = hi
	return vm.Continue
}

func hostSolicit(ctx *Context) vm.Status {
	hashOffset := ctx.Regs[7]
	z := ctx.Regs[8]

	hashBytes, _, ok := ctx.Memory.ReadOctets(hashOffset, common.HashLength)
	if !ok {
		return vm.Panic
	}
	h := common.BytesToHash(hashBytes)

	acct := ctx.CurrentAccount()
	key := state.RequestKey{Hash: h, Length: z}
	prev, exists := acct.Requests[key]

	var req state.Request
	switch {
	case !exists:
		req = state.NewSolicitedRequest()
	case prev.Len == 2:
		req = prev
		req.Slots[2] = ctx.Timeslot
		req.Len = 3
	default:
		ctx.Regs[7] = vm.HUH
		return vm.Continue
	}

	restore := func() {
		if exists {
			acct.PutRequest(key, prev)
		} else {
			acct.DeleteRequest(key)
		}
		acct.RecomputeFootprint()
	}

	acct.PutRequest(key, req)
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

	ctx.Regs[7] = vm.OK
	return vm.Continue
}

func hostForget(ctx *Context) vm.Status {
	hashOffset := ctx.Regs[7]

	hashBytes, _, ok := ctx.Memory.ReadOctets(hashOffset, common.HashLength)
	if !ok {
		return vm.Panic
	}
	h := common.BytesToHash(hashBytes)
	z := ctx.Regs[8]

	acct := ctx.CurrentAccount()
	key := state.RequestKey{Hash: h, Length: z}
	req, ok := acct.Requests[key]
	if !ok {
		ctx.Regs[7] = vm.HUH
		return vm.Continue
	}

	switch req.Len {
	case 0:
		acct.DeleteRequest(key)
		delete(acct.Preimages, h)
	case 1:
		req.Slots[1] = ctx.Timeslot
		req.Len = 2
		acct.PutRequest(key, req)
	case 2:
		if !expiredAt(req.Slots[1], ctx.Timeslot, ctx.ExpungePeriod) {
			ctx.Regs[7] = vm.HUH
			return vm.Continue
		}
		acct.DeleteRequest(key)
		delete(acct.Preimages, h)
	case 3:
		if !expiredAt(req.Slots[1], ctx.Timeslot, ctx.ExpungePeriod) {
			ctx.Regs[7] = vm.HUH
			return vm.Continue
		}
		req.Slots[0], req.Slots[1], req.Slots[2] = req.Slots[2], ctx.Timeslot, 0
		req.Len = 2
		acct.PutRequest(key, req)
	}
	acct.RecomputeFootprint()

	ctx.Regs[7] = vm.OK
	return vm.Continue
}

func hostProvide(ctx *Context) vm.Status {
	targetSelector := ctx.Regs[7]
	blobOffset := ctx.Regs[8]
	z := ctx.Regs[9]

	blob, _, ok := ctx.Memory.ReadOctets(blobOffset, z)
	if !ok {
		return vm.Panic
	}
	h := crypto.Blake2b256(blob)

	target := ctx.currentService(targetSelector)
	acct, ok := ctx.AccountByID(target)
	if !ok {
		ctx.Regs[7] = vm.WHO
		return vm.Continue
	}

	key := state.RequestKey{Hash: h, Length: uint64(len(blob))}
	req, hasReq := acct.Requests[key]
	if !hasReq || req.Len != 0 {
		ctx.Regs[7] = vm.HUH
		return vm.Continue
	}

	pkey := vm.ProvisionKey{Service: target, Request: key}
	if ctx.state().Provisions == nil {
		ctx.state().Provisions = make(map[vm.ProvisionKey][]byte)
	}
	if _, dup := ctx.state().Provisions[pkey]; dup {
		ctx.Regs[7] = vm.HUH
		return vm.Continue
	}
	ctx.state().Provisions[pkey] = blob

	req.Slots[0] = ctx.Timeslot
	req.Len = 1
	acct.PutRequest(key, req)
	acct.Preimages[h] = blob
	acct.RecomputeFootprint()

	ctx.Regs[7] = vm.OK
	return vm.Continue
}

func hostYield(ctx *Context) vm.Status {
	hashOffset := ctx.Regs[7]

	hashBytes, _, ok := ctx.Memory.ReadOctets(hashOffset, common.HashLength)
	if !ok {
		return vm.Panic
	}

	ctx.state().YieldHash = common.BytesToHash(hashBytes)
	ctx.state().HasYield = true

	ctx.Regs[7] = vm.OK
	return vm.Continue
}
