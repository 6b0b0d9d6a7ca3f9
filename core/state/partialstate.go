// Package state implements the accumulation core's data model:
// service accounts, preimage requests, and the partial state a single
// invocation observes and mutates.
package state

import (
	"github.com/probeum/jampvm/common"
	"github.com/probeum/jampvm/params"
)

// AlwaysAccumulateEntry is one row of the always-accumulate table
// mapping service id -> gas.
type AlwaysAccumulateEntry struct {
	ServiceID common.ServiceID
	Gas       uint64
}

// PartialState is a collection of service accounts plus the
// network-wide tables that travel with them: the validator staging
// set, per-core authorisation queues, per-core assigners, the three
// privilege holders, and the always-accumulate table.
//
// The type is owned exclusively by one invocation through its
// implication pair. There is no per-field undo journal: rollback is
// an atomic replacement of the whole state slot, so the only
// mutation-adjacent operation it exposes is Clone.
type PartialState struct {
	Accounts map[common.ServiceID]*Account

	// NextFreeID is the standard-path id allocator cursor, always
	// >= C_min_public_index.
	NextFreeID uint32

	StagingSet []byte // val_count * 336 bytes, raw validator records

	// AuthQueues[core] is always exactly AuthQueueSize 32-byte
	// hashes, stored flat (AuthQueueSize*32 bytes).
	AuthQueues [][]byte
	Assigners  []common.ServiceID // per-core assigner service id

	Manager   common.ServiceID
	Delegator common.ServiceID
	Registrar common.ServiceID

	AlwaysAccumulate []AlwaysAccumulateEntry

	cfg params.Config
}

func NewPartialState(cfg params.Config) *PartialState {
	queues := make([][]byte, cfg.CoreCount)
	for i := range queues {
		queues[i] = make([]byte, int(params.AuthQueueSize)*common.HashLength)
	}
	return &PartialState{
		Accounts:   make(map[common.ServiceID]*Account),
		NextFreeID: params.MinPublicIndex,
		AuthQueues: queues,
		Assigners:  make([]common.ServiceID, cfg.CoreCount),
		cfg:        cfg,
	}
}

func (s *PartialState) Config() params.Config { return s.cfg }

// Clone deep-copies the entire partial state for `checkpoint`. Every
// Account is cloned via Account.Clone so that a later mutation of the
// regular dimension can never alias the exceptional snapshot.
func (s *PartialState) Clone() *PartialState {
	cp := &PartialState{
		Accounts:   make(map[common.ServiceID]*Account, len(s.Accounts)),
		NextFreeID: s.NextFreeID,
		cfg:        s.cfg,
		Manager:    s.Manager,
		Delegator:  s.Delegator,
		Registrar:  s.Registrar,
	}
	for id, a := range s.Accounts {
		cp.Accounts[id] = a.Clone()
	}

	cp.StagingSet = append([]byte(nil), s.StagingSet...)

	cp.AuthQueues = make([][]byte, len(s.AuthQueues))
	for i, q := range s.AuthQueues {
		cp.AuthQueues[i] = append([]byte(nil), q...)
	}
	cp.Assigners = append([]common.ServiceID(nil), s.Assigners...)
	cp.AlwaysAccumulate = append([]AlwaysAccumulateEntry(nil), s.AlwaysAccumulate...)

	return cp
}

// AllocateServiceID hands out the standard-path id for `new`: the
// returned id is the next_free_id observed at call entry, and the
// cursor is then advanced via
//
//	next_free_id <- C_min_public_index +
//	  ((prev - C_min_public_index + 42) mod (2^32 - C_min_public_index - 2^8))
//
// probing forward by +1 (mod the same range) until an unused id is
// found, expressed as a bounded loop terminating when the probe
// returns to its starting candidate. The just-allocated id counts as
// taken during the probe even though the caller has not inserted the
// new account yet.
func (s *PartialState) AllocateServiceID() common.ServiceID {
	allocated := s.NextFreeID
	for {
		if _, taken := s.Accounts[common.ServiceID(allocated)]; !taken {
			break
		}
		allocated = nextServiceCandidate(allocated, 1)
	}

	candidate := nextServiceCandidate(allocated, 42)
	first := candidate
	for {
		_, taken := s.Accounts[common.ServiceID(candidate)]
		if !taken && candidate != allocated {
			break
		}
		candidate = nextServiceCandidate(candidate, 1)
		if candidate == first {
			break // search space exhausted
		}
	}
	s.NextFreeID = candidate
	return common.ServiceID(allocated)
}

func nextServiceCandidate(prev uint32, delta uint64) uint32 {
	base := uint64(params.MinPublicIndex)
	modulus := uint64(1<<32) - base - uint64(1<<8)
	offset := (uint64(prev) - base + delta) % modulus
	return uint32(base + offset)
}
