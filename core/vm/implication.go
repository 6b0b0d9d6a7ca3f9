package vm

import (
	"github.com/probeum/jampvm/common"
	"github.com/probeum/jampvm/core/state"
)

// DeferredTransfer is one queued balance movement: (source_id,
// dest_id, amount, 128-byte memo, gas_limit).
type DeferredTransfer struct {
	Source   common.ServiceID
	Dest     common.ServiceID
	Amount   uint64
	Memo     [128]byte
	GasLimit uint64
}

// ProvisionKey identifies one preimage provided during an invocation:
// the target service plus the (hash, length) request it satisfies.
// Provisions are keyed per target because `provide` may name any
// service, not only the invoking one (Gray Paper provide).
type ProvisionKey struct {
	Service common.ServiceID
	Request state.RequestKey
}

// Implication is one invocation's view of the world: the current
// service id, a partial state, a yield hash (optional), a
// deferred-transfer queue, and a provisions table.
type Implication struct {
	ServiceID common.ServiceID
	State     *state.PartialState

	YieldHash  common.Hash
	HasYield   bool
	Transfers  []DeferredTransfer
	Provisions map[ProvisionKey][]byte
}

func NewImplication(serviceID common.ServiceID, st *state.PartialState) *Implication {
	return &Implication{
		ServiceID:  serviceID,
		State:      st,
		Provisions: make(map[ProvisionKey][]byte),
	}
}

// Clone deep-copies an Implication, including its PartialState, for
// the checkpoint host call: accounts with their storage and
// preimages, authorisation queues, deferred transfers, provisions,
// yield, next-free-id, assigners.
func (im *Implication) Clone() *Implication {
	cp := &Implication{
		ServiceID:  im.ServiceID,
		State:      im.State.Clone(),
		YieldHash:  im.YieldHash,
		HasYield:   im.HasYield,
		Transfers:  append([]DeferredTransfer(nil), im.Transfers...),
		Provisions: make(map[ProvisionKey][]byte, len(im.Provisions)),
	}
	for k, v := range im.Provisions {
		vv := make([]byte, len(v))
		copy(vv, v)
		cp.Provisions[k] = vv
	}
	return cp
}

// ImplicationPair is the regular/exceptional pair: checkpoint
// deep-copies regular into exceptional so that a later PANIC or
// out-of-gas reverts to the exceptional snapshot.
type ImplicationPair struct {
	Regular     *Implication
	Exceptional *Implication

	// Checkpointed is set once `checkpoint` runs at least once during
	// this invocation. The driver consults it to pick the right
	// recovery policy on PANIC/OOG : Rollback to the
	// Exceptional snapshot if true, or discard the whole invocation
	// (the driver's own pre-invocation clone) if false.
	Checkpointed bool
}

func NewImplicationPair(serviceID common.ServiceID, st *state.PartialState) *ImplicationPair {
	regular := NewImplication(serviceID, st)
	return &ImplicationPair{
		Regular:     regular,
		Exceptional: regular.Clone(),
	}
}

// Checkpoint implements the `checkpoint` host call's state transition:
// deep-copy Regular into Exceptional (Gray Paper).
func (p *ImplicationPair) Checkpoint() {
	p.Exceptional = p.Regular.Clone()
	p.Checkpointed = true
}

// Rollback is the recovery path: on PANIC/OOG after a checkpoint,
// atomically swap Regular for the Exceptional
// snapshot, discarding every mutation since. Without a prior
// checkpoint the driver instead discards the whole invocation
// (handled by the driver holding its own pre-invocation clone, not by
// this method).
func (p *ImplicationPair) Rollback() {
	p.Regular = p.Exceptional.Clone()
}
