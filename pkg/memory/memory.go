// Package memory implements the VM's capacity-bounded, word-extending
// linear memory.
package memory

import (
	"fmt"

	"github.com/oisee/evmvm/pkg/u256"
)

// MaxWords bounds memory growth: 65536 32-byte words (2 MiB), matching
// the reference's up-front allocation.
const MaxWords = 65536

// MaxBytes is the memory capacity in bytes.
const MaxBytes = MaxWords * 32

// Memory is a zero-filled byte buffer that grows in 32-byte words up to
// a fixed capacity. Zero value is ready to use.
type Memory struct {
	buf      [MaxBytes]byte
	lenWords int
}

// Size returns the current logical size in bytes (len_words * 32).
func (m *Memory) Size() int { return m.lenWords * 32 }

// Extend grows the logical size to cover [offset, offset+size), rounded
// up to the next whole word. A zero-sized access never extends.
//
// offset and size are taken as raw uint64 (the low 64 bits of a u256
// stack value, which a program fully controls) and bounds-checked
// against MaxBytes before any narrowing to int, so an offset whose
// low 64 bits happen to be huge — e.g. pushed as 0x8000000000000000 —
// reports a CapacityError instead of wrapping negative once narrowed.
func (m *Memory) Extend(offset, size uint64) error {
	if size == 0 {
		return nil
	}
	if size > MaxBytes || offset > MaxBytes-size {
		return &CapacityError{Offset: offset, Size: size}
	}
	end := offset + size
	newWords := (end + 31) / 32
	if newWords > MaxWords {
		return &CapacityError{Offset: offset, Size: size}
	}
	if int(newWords) > m.lenWords {
		m.lenWords = int(newWords)
	}
	return nil
}

// Read loads 32 big-endian bytes starting at offset, extending memory
// first.
func (m *Memory) Read(offset uint64) (u256.U256, error) {
	if err := m.Extend(offset, 32); err != nil {
		return u256.Zero, err
	}
	var raw [32]byte
	copy(raw[:], m.buf[offset:offset+32])
	return u256.FromBytes32(raw), nil
}

// Write stores v as 32 big-endian bytes starting at offset, extending
// memory first.
func (m *Memory) Write(offset uint64, v u256.U256) error {
	if err := m.Extend(offset, 32); err != nil {
		return err
	}
	raw := v.Bytes32()
	copy(m.buf[offset:offset+32], raw[:])
	return nil
}

// WriteByte stores a single byte at offset, extending memory first.
func (m *Memory) WriteByte(offset uint64, b byte) error {
	if err := m.Extend(offset, 1); err != nil {
		return err
	}
	m.buf[offset] = b
	return nil
}

// CapacityError reports an access that would grow memory past MaxWords.
type CapacityError struct {
	Offset, Size uint64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("memory: access [%d, %d) exceeds capacity of %d bytes", e.Offset, e.Offset+e.Size, MaxBytes)
}
