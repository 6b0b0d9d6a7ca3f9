package common

import "encoding/binary"

// Fixed-width little-endian integer encode/decode, the one codec
// convention every host call shares: all multi-byte integers crossing
// the guest memory boundary are little-endian at fixed widths. Thin
// wrappers over encoding/binary rather than a hand-rolled
// bit-twiddling shim.

func Uint16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }
func Uint32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }
func Uint64(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }

func PutUint16(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }
func PutUint32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
func PutUint64(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }

// EncodeUint16 / EncodeUint32 / EncodeUint64 allocate and return the
// little-endian encoding, for call sites building up a buffer to
// append rather than writing into a pre-sized slice.
func EncodeUint16(v uint16) []byte {
	b := make([]byte, 2)
	PutUint16(b, v)
	return b
}

func EncodeUint32(v uint32) []byte {
	b := make([]byte, 4)
	PutUint32(b, v)
	return b
}

func EncodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	PutUint64(b, v)
	return b
}
