package vm

import "math"

// PageSize is the guest memory page granularity.
const PageSize = 4096

// PageCount is the number of pages spanning the full 2^32-byte address
// space.
const PageCount = uint64(math.MaxUint32+1) / PageSize

// Access is a page's access tag.
type Access uint8

const (
	AccessNone Access = iota
	AccessRead
	AccessWrite
)

// Memory is the paged guest address space: a flat page-access table
// over the full 2^32/4096 page count plus a sparse page store, so an
// untouched guest address space costs one tag array and nothing else.
type Memory struct {
	access []Access
	pages  map[uint32][]byte // sparse: a page exists only once written
}

func NewMemory() *Memory {
	return &Memory{
		access: make([]Access, PageCount),
		pages:  make(map[uint32][]byte),
	}
}

func pageOf(addr uint64) uint32   { return uint32(addr / PageSize) }
func offsetOf(addr uint64) uint32 { return uint32(addr % PageSize) }

func (m *Memory) pageAccess(page uint32) Access {
	if uint64(page) >= uint64(len(m.access)) {
		return AccessNone
	}
	return m.access[page]
}

func (m *Memory) pageBytes(page uint32, alloc bool) []byte {
	if b, ok := m.pages[page]; ok {
		return b
	}
	if !alloc {
		return nil
	}
	b := make([]byte, PageSize)
	m.pages[page] = b
	return b
}

// IsReadableWithFault reports whether [offset, offset+length) is
// entirely readable, and if not, the first byte address lacking read
// access (is_readable_with_fault).
func (m *Memory) IsReadableWithFault(offset uint64, length uint64) (bool, uint64) {
	return m.checkRangeWithFault(offset, length, AccessRead)
}

// IsWritableWithFault is the write-access analogue.
func (m *Memory) IsWritableWithFault(offset uint64, length uint64) (bool, uint64) {
	return m.checkRangeWithFault(offset, length, AccessWrite)
}

func (m *Memory) checkRangeWithFault(offset, length uint64, need Access) (bool, uint64) {
	if length == 0 {
		return true, 0
	}
	end := offset + length
	for addr := offset; addr < end; {
		page := pageOf(addr)
		access := m.pageAccess(page)
		ok := access == need || (need == AccessRead && access == AccessWrite)
		if !ok {
			return false, addr
		}
		// advance to the start of the next page
		next := uint64(page+1) * PageSize
		addr = next
	}
	return true, 0
}

// ReadOctets succeeds when the entire range is readable, else
// returns (nil, firstFaultOffset).
func (m *Memory) ReadOctets(offset, length uint64) ([]byte, uint64, bool) {
	if ok, fault := m.IsReadableWithFault(offset, length); !ok {
		return nil, fault, false
	}
	out := make([]byte, length)
	m.copyOut(out, offset)
	return out, 0, true
}

// WriteOctets is the write analogue of ReadOctets.
func (m *Memory) WriteOctets(offset uint64, data []byte) (uint64, bool) {
	length := uint64(len(data))
	if ok, fault := m.IsWritableWithFault(offset, length); !ok {
		return fault, false
	}
	m.copyIn(offset, data)
	return 0, true
}

func (m *Memory) copyOut(dst []byte, offset uint64) {
	remaining := dst
	addr := offset
	for len(remaining) > 0 {
		page := pageOf(addr)
		off := offsetOf(addr)
		src := m.pageBytes(page, false)
		n := PageSize - int(off)
		if n > len(remaining) {
			n = len(remaining)
		}
		if src != nil {
			copy(remaining[:n], src[off:int(off)+n])
		}
		remaining = remaining[n:]
		addr += uint64(n)
	}
}

func (m *Memory) copyIn(offset uint64, data []byte) {
	remaining := data
	addr := offset
	for len(remaining) > 0 {
		page := pageOf(addr)
		off := offsetOf(addr)
		dst := m.pageBytes(page, true)
		n := PageSize - int(off)
		if n > len(remaining) {
			n = len(remaining)
		}
		copy(dst[off:int(off)+n], remaining[:n])
		remaining = remaining[n:]
		addr += uint64(n)
	}
}

// SetPageAccess sets the access tag on [startPage, startPage+count)
// (set_page_access).
func (m *Memory) SetPageAccess(startPage uint32, count uint32, kind Access) {
	end := uint64(startPage) + uint64(count)
	if end > uint64(len(m.access)) {
		end = uint64(len(m.access))
	}
	for p := uint64(startPage); p < end; p++ {
		m.access[p] = kind
	}
}

// ZeroPages overwrites [startPage, startPage+count) with zero bytes
// without changing access tags ("page-wise zero-fill").
func (m *Memory) ZeroPages(startPage uint32, count uint32) {
	end := uint64(startPage) + uint64(count)
	for p := uint64(startPage); p < end; p++ {
		delete(m.pages, uint32(p))
	}
}

// PageAccess exposes a single page's access tag, used by `pages` to
// refuse content-preserving grants over unmapped pages.
func (m *Memory) PageAccess(page uint32) Access { return m.pageAccess(page) }
