package state

import "github.com/probeum/jampvm/common"

// RequestKey identifies a preimage request by (hash, length) — the
// pair every solicit/forget/provide/query/eject call keys on.
type RequestKey struct {
	Hash   common.Hash
	Length uint64
}

// Request is a preimage request's status: a sequence of at most
// three timeslots. Len encodes which shape it is:
//
//	0: []        solicited but unseen
//	1: [x]       provided at x
//	2: [x,y]     forgotten at y after being provided at x
//	3: [x,y,z]   re-solicited at z
type Request struct {
	Slots [3]uint32
	Len   int
}

func NewSolicitedRequest() Request { return Request{Len: 0} }

// Available reports whether the preimage is available at timeslot t
// under each shape's interpretation.
func (r Request) Available(t uint32) bool {
	switch r.Len {
	case 1:
		return r.Slots[0] <= t
	case 2:
		return r.Slots[0] <= t && t < r.Slots[1]
	case 3:
		return (r.Slots[0] <= t && t < r.Slots[1]) || r.Slots[2] <= t
	default:
		return false
	}
}

// EncodeQuery packs a Request into the (lo, hi) pair `query` writes
// to registers[7] and registers[8]:
//
//	[]      -> (0, 0)
//	[x]     -> (1 + 2^32*x, 0)
//	[x,y]   -> (2 + 2^32*x, y)
//	[x,y,z] -> (3 + 2^32*x, y + 2^32*z)
func (r Request) EncodeQuery() (lo, hi uint64) {
	switch r.Len {
	case 0:
		return 0, 0
	case 1:
		return 1 + (uint64(r.Slots[0]) << 32), 0
	case 2:
		return 2 + (uint64(r.Slots[0]) << 32), uint64(r.Slots[1])
	case 3:
		return 3 + (uint64(r.Slots[0]) << 32), uint64(r.Slots[1]) + (uint64(r.Slots[2]) << 32)
	default:
		return 0, 0
	}
}

func (r Request) clone() Request { return r }
