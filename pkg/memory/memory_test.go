package memory

import (
	"testing"

	"github.com/oisee/evmvm/pkg/u256"
)

func TestWriteReadRoundTrip(t *testing.T) {
	var m Memory
	v := u256.FromUint64(0xdeadbeef)
	if err := m.Write(0, v); err != nil {
		t.Fatal(err)
	}
	got, err := m.Read(0)
	if err != nil {
		t.Fatal(err)
	}
	if got != v {
		t.Errorf("read after write = %v, want %v", got, v)
	}
}

func TestSizeAfterWrite(t *testing.T) {
	var m Memory
	if m.Size() != 0 {
		t.Fatalf("fresh memory size = %d, want 0", m.Size())
	}
	if err := m.Write(0, u256.Zero); err != nil {
		t.Fatal(err)
	}
	if m.Size() != 32 {
		t.Errorf("size after one word write = %d, want 32", m.Size())
	}
	if err := m.WriteByte(40, 0xff); err != nil {
		t.Fatal(err)
	}
	if m.Size() != 64 {
		t.Errorf("size after byte write at 40 = %d, want 64 (ceil to word)", m.Size())
	}
}

func TestExtendZeroSizeNeverGrows(t *testing.T) {
	var m Memory
	if err := m.Extend(1000, 0); err != nil {
		t.Fatal(err)
	}
	if m.Size() != 0 {
		t.Errorf("zero-size extend must not grow memory, size=%d", m.Size())
	}
}

func TestExtendDoesNotShrink(t *testing.T) {
	var m Memory
	m.Extend(1000, 32)
	sizeAfterFirst := m.Size()
	m.Extend(0, 1)
	if m.Size() != sizeAfterFirst {
		t.Errorf("a smaller extend must not shrink memory: %d != %d", m.Size(), sizeAfterFirst)
	}
}

func TestCapacityExceeded(t *testing.T) {
	var m Memory
	if err := m.Extend(MaxBytes, 1); err == nil {
		t.Fatal("expected a CapacityError")
	}
}

func TestHighOffsetIsCapacityErrorNotPanic(t *testing.T) {
	var m Memory
	// The low 64 bits of a u256 a program fully controls can be
	// anywhere in [0, 2^64), including values that would narrow to a
	// negative int (e.g. 0x8000000000000000). Extend/Read/Write must
	// reject these as CapacityError, not panic on a negative slice index.
	const huge = uint64(1) << 63
	if _, err := m.Read(huge); err == nil {
		t.Fatal("expected a CapacityError for a high offset")
	}
	if err := m.Write(huge, u256.Zero); err == nil {
		t.Fatal("expected a CapacityError for a high offset")
	}
	if err := m.WriteByte(huge, 0xff); err == nil {
		t.Fatal("expected a CapacityError for a high offset")
	}
	if err := m.Extend(huge, 32); err == nil {
		t.Fatal("expected a CapacityError for a high offset")
	}
	// An offset right at the uint64 wraparound edge must not overflow
	// the offset+size bounds check either.
	if err := m.Extend(^uint64(0), 32); err == nil {
		t.Fatal("expected a CapacityError for offset at the uint64 max")
	}
}

func TestReadOfUnwrittenMemoryIsZero(t *testing.T) {
	var m Memory
	got, err := m.Read(64)
	if err != nil {
		t.Fatal(err)
	}
	if !u256.IsZeroBool(got) {
		t.Errorf("unwritten memory should read as zero, got %v", got)
	}
}
