package common

import "encoding/hex"

// HashLength is the byte length of a hash value exchanged across the
// host-call ABI (code hashes, preimage hashes, yield hashes, segment
// roots).
const HashLength = 32

// Hash is a fixed-width 32-byte digest: either a blake2b output or a
// zero-padded little-endian encoding of a ServiceID. Nothing in this
// core derives an address from a Hash.
type Hash [HashLength]byte

// BytesToHash copies b into the tail of a Hash, zero-padding on the
// left (a longer b keeps only its last 32 bytes). Used when decoding
// fixed 32-byte ranges read from guest memory.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

func (h Hash) Bytes() []byte { return h[:] }

func (h Hash) String() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) IsZero() bool { return h == Hash{} }

// ServiceID identifies a service account. The protocol bound
// (strictly less than 2^32) holds trivially since Go's uint32 cannot
// represent a larger value; checks against C_min_public_index and
// against the full uint32 range still need explicit comparisons
// wherever a 64-bit intermediate (e.g. a decoded id field that could
// in principle carry a wider value) is narrowed.
type ServiceID uint32

// CodeHashForServiceID returns the fixed-width-32 little-endian
// encoding of id, zero padded — the convention the ejection protocol
// uses to recognize "this account's code hash names that service".
func CodeHashForServiceID(id ServiceID) Hash {
	var h Hash
	PutUint32(h[:4], uint32(id))
	return h
}
