package vm

import "github.com/probeum/jampvm/params"

// SegmentBuffer is the refine-phase "append-only ordered sequence of
// fixed-size (4104-byte, zero-padded) segments plus a segment offset
// base" used to compute returned indices.
type SegmentBuffer struct {
	Offset   uint64
	Segments [][params.SegmentSize]byte
}

// Append zero-pads data to exactly C_segment_size and appends it,
// implementing the `export` host call's mutation.
// ok is false when the buffer would exceed C_max_package_exports.
func (b *SegmentBuffer) Append(data []byte) (index uint64, ok bool) {
	if b.Offset+uint64(len(b.Segments)) >= params.MaxPackageExports {
		return 0, false
	}
	var seg [params.SegmentSize]byte
	copy(seg[:], data)
	index = b.Offset + uint64(len(b.Segments))
	b.Segments = append(b.Segments, seg)
	return index, true
}
