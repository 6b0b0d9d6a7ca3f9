package state

import (
	"hash"
	"hash/fnv"

	bloomfilter "github.com/holiman/bloomfilter/v2"

	"github.com/probeum/jampvm/common"
	"github.com/probeum/jampvm/params"
)

// Account is a service account. User storage and preimage-request
// records live in two separate maps rather than one prefix-
// discriminated blob store, because every host call already knows
// which namespace it wants (write/read never touch Requests;
// solicit/forget/query/provide/eject never touch Storage), so a
// single discriminated map buys nothing beyond an extra decode step
// at every access.
type Account struct {
	ID ServiceIDType

	CodeHash common.Hash
	Balance  uint64

	MinAccumulateGas uint64
	MinMemoGas       uint64

	Items  uint32
	Octets uint64

	Gratis uint64

	CreatedAt        uint32
	LastAccumulateAt uint32
	ParentID         ServiceIDType

	Storage  map[string][]byte
	Requests map[RequestKey]Request

	Preimages map[common.Hash][]byte

	// requestFilter is a fast negative-lookup membership filter in
	// front of Requests, consulted through MayHaveRequest. The host-call
	// handlers (`query`, `historical_lookup` and the rest) index
	// Requests directly and do not consult it.
	requestFilter *bloomfilter.Filter
}

// ServiceIDType aliases common.ServiceID for this package's account
// fields. The "current service" register selector is a full-width
// 2^64-1 sentinel compared before narrowing (vm.NoServiceSelector),
// never a reserved id value, so no in-type sentinel exists here.
type ServiceIDType = common.ServiceID

func NewAccount(id ServiceIDType) *Account {
	return &Account{
		ID:        id,
		Storage:   make(map[string][]byte),
		Requests:  make(map[RequestKey]Request),
		Preimages: make(map[common.Hash][]byte),
	}
}

// MinBalance is min_balance(a) for this account's current
// Items/Octets/Gratis.
func (a *Account) MinBalance() (uint64, bool) {
	return MinBalance(params.BaseDeposit, params.ItemDeposit, params.ByteDeposit, a.Items, a.Octets, a.Gratis)
}

// RecomputeFootprint derives Items/Octets from the current Requests
// and Storage maps and commits them onto the account. Every mutation
// path that adds/removes a request or a storage entry calls this so
// Items/Octets never drift from the maps they're derived from.
func (a *Account) RecomputeFootprint() bool {
	lengths := make([]uint64, 0, len(a.Requests))
	for k := range a.Requests {
		lengths = append(lengths, k.Length)
	}
	kv := make([][2]int, 0, len(a.Storage))
	for k, v := range a.Storage {
		kv = append(kv, [2]int{len(k), len(v)})
	}
	items, octets, ok := Footprint(lengths, kv)
	if !ok {
		return false
	}
	a.Items, a.Octets = items, octets
	return true
}

// rebuildRequestFilter resizes/repopulates the negative-lookup filter
// from the current Requests: after a clone, and from PutRequest
// whenever the filter is absent or does not yet report the key being
// installed. Cheap relative to block-bounded account sizes.
func (a *Account) rebuildRequestFilter() {
	n := uint64(len(a.Requests))
	if n == 0 {
		n = 1
	}
	f, err := bloomfilter.NewOptimal(n*4, 0.01)
	if err != nil {
		a.requestFilter = nil
		return
	}
	for k := range a.Requests {
		f.Add(requestFilterHash(k))
	}
	a.requestFilter = f
}

func requestFilterHash(k RequestKey) hash.Hash64 {
	h := fnv.New64a()
	h.Write(k.Hash[:])
	h.Write(common.EncodeUint64(k.Length))
	return h
}

// MayHaveRequest reports whether (h, z) could be a pending request.
// false is authoritative ("definitely absent" — skip the map lookup);
// true requires the caller to still check Requests, since a bloom
// filter has false positives but never false negatives.
func (a *Account) MayHaveRequest(h common.Hash, z uint64) bool {
	if a.requestFilter == nil {
		return true
	}
	return a.requestFilter.Contains(requestFilterHash(RequestKey{Hash: h, Length: z}))
}

// PutRequest installs/overwrites a pending request and keeps the
// negative-lookup filter in sync.
func (a *Account) PutRequest(k RequestKey, r Request) {
	a.Requests[k] = r
	if a.requestFilter == nil || !a.MayHaveRequest(k.Hash, k.Length) {
		a.rebuildRequestFilter()
	}
}

// DeleteRequest removes a pending request. The filter is left as-is
// (a stray false positive just costs one extra map lookup later) and
// only rebuilt wholesale by rebuildRequestFilter, matching a bloom
// filter's append-only nature.
func (a *Account) DeleteRequest(k RequestKey) {
	delete(a.Requests, k)
}

// Clone deep-copies the account, the unit of work `checkpoint`
// needs: a structural clone is correct and cost-bounded because
// block-limited state is small.
func (a *Account) Clone() *Account {
	cp := *a
	cp.Storage = make(map[string][]byte, len(a.Storage))
	for k, v := range a.Storage {
		vv := make([]byte, len(v))
		copy(vv, v)
		cp.Storage[k] = vv
	}
	cp.Requests = make(map[RequestKey]Request, len(a.Requests))
	for k, v := range a.Requests {
		cp.Requests[k] = v.clone()
	}
	cp.Preimages = make(map[common.Hash][]byte, len(a.Preimages))
	for k, v := range a.Preimages {
		vv := make([]byte, len(v))
		copy(vv, v)
		cp.Preimages[k] = vv
	}
	cp.rebuildRequestFilter()
	return &cp
}

// Encode packs the account record `info` fetches: code hash +
// balance + gas floors + footprint + gratis + creation/
// last-accumulate timeslots + parent.
func (a *Account) Encode() []byte {
	b := make([]byte, 0, 32+8+8+8+4+8+8+4+4+4)
	b = append(b, a.CodeHash[:]...)
	b = append(b, common.EncodeUint64(a.Balance)...)
	b = append(b, common.EncodeUint64(a.MinAccumulateGas)...)
	b = append(b, common.EncodeUint64(a.MinMemoGas)...)
	b = append(b, common.EncodeUint32(a.Items)...)
	b = append(b, common.EncodeUint64(a.Octets)...)
	b = append(b, common.EncodeUint64(a.Gratis)...)
	b = append(b, common.EncodeUint32(a.CreatedAt)...)
	b = append(b, common.EncodeUint32(a.LastAccumulateAt)...)
	b = append(b, common.EncodeUint32(uint32(a.ParentID))...)
	return b
}
