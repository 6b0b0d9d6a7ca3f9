package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryReadWriteRoundTrip(t *testing.T) {
	m := NewMemory()
	m.SetPageAccess(0, 1, AccessWrite)

	_, ok := m.WriteOctets(100, []byte("hello"))
	require.True(t, ok)

	got, fault, ok := m.ReadOctets(100, 5)
	require.True(t, ok)
	require.Equal(t, uint64(0), fault)
	require.Equal(t, []byte("hello"), got)
}

func TestMemoryReadFaultsOnNoAccess(t *testing.T) {
	m := NewMemory()
	_, fault, ok := m.ReadOctets(PageSize*3+10, 4)
	require.False(t, ok)
	require.Equal(t, uint64(PageSize*3+10), fault)
}

func TestMemoryWriteFaultsOnReadOnlyPage(t *testing.T) {
	m := NewMemory()
	m.SetPageAccess(0, 1, AccessRead)

	_, ok := m.WriteOctets(0, []byte("x"))
	require.False(t, ok)
}

func TestMemoryFaultSpansPageBoundary(t *testing.T) {
	m := NewMemory()
	m.SetPageAccess(0, 1, AccessWrite) // only page 0 is writable

	_, ok := m.WriteOctets(PageSize-2, []byte("abcd")) // spills into page 1
	require.False(t, ok)
}

func TestZeroPagesClearsContentNotAccess(t *testing.T) {
	m := NewMemory()
	m.SetPageAccess(0, 1, AccessWrite)
	m.WriteOctets(0, []byte("data"))

	m.ZeroPages(0, 1)

	got, _, ok := m.ReadOctets(0, 4)
	require.True(t, ok)
	require.Equal(t, []byte{0, 0, 0, 0}, got)
}
