// Package rom preprocesses raw EVM-subset bytecode into a fixed-size
// slab the dispatch loop executes against: the code itself with PUSH
// immediates byte-reversed for native little-endian loads, followed by
// a JUMPDEST bitmap.
package rom

import (
	"fmt"

	"github.com/oisee/evmvm/pkg/opcode"
)

// MaxCodeSize bounds the addressable program image. EIP-170 states a
// max contract code size of 2**14 + 2**13; this rounds up to the next
// power of two.
const MaxCodeSize = 32768

// jumpdestBytes is one bit per address, byte-indexed (addr/8, addr%8)
// rather than the 64-bit-chunk scheme, which has a boundary bug when a
// PUSH immediate's skipped bytes straddle a 64-byte chunk.
const jumpdestBytes = MaxCodeSize / 8

// ROM is the preprocessed, immutable program image the dispatch loop
// reads from. Zero value is not usable; build one with Preprocess.
type ROM struct {
	code      [MaxCodeSize]byte
	jumpdests [jumpdestBytes]byte
	size      int
}

// Preprocess rewrites bytecode into a ROM: PUSH immediates are
// byte-reversed in place and a JUMPDEST bitmap is built in one pass
// over the code, skipping PUSH immediate bytes exactly as the dispatch
// loop will.
func Preprocess(bytecode []byte) (*ROM, error) {
	if len(bytecode) > MaxCodeSize {
		return nil, &OversizeError{Len: len(bytecode)}
	}
	r := &ROM{size: len(bytecode)}
	copy(r.code[:], bytecode)

	i := 0
	for i < len(bytecode) {
		tag := opcode.Decode(bytecode[i])
		if tag.IsPush() {
			n := tag.PushBytes()
			start := i + 1
			avail := n
			if start+avail > len(bytecode) {
				avail = len(bytecode) - start
			}
			srcEnd := start + avail
			windowEnd := start + n
			if windowEnd > MaxCodeSize {
				windowEnd = MaxCodeSize
			}
			// Bytes missing past the end of bytecode are the low-order
			// bytes of the big-endian immediate: reverse the real bytes
			// into the tail of the N-byte window and zero the head, so
			// the zero padding lands on the conceptually-missing bytes
			// rather than the ones actually present.
			reverseBytes(r.code[start:srcEnd])
			newStart := windowEnd - avail
			if newStart != start {
				copy(r.code[newStart:windowEnd], r.code[start:srcEnd])
				for j := start; j < newStart; j++ {
					r.code[j] = 0
				}
			}
			i += 1 + n
			continue
		}
		if tag == opcode.JUMPDEST {
			r.setJumpdest(i)
		}
		i++
	}
	return r, nil
}

func reverseBytes(b []byte) {
	for l, h := 0, len(b)-1; l < h; l, h = l+1, h-1 {
		b[l], b[h] = b[h], b[l]
	}
}

func (r *ROM) setJumpdest(addr int) {
	r.jumpdests[addr/8] |= 1 << uint(addr%8)
}

// IsJumpdest reports whether addr is both within the program image and
// lands on a JUMPDEST opcode byte (never inside a PUSH immediate).
func (r *ROM) IsJumpdest(addr uint64) bool {
	if addr >= MaxCodeSize {
		return false
	}
	return r.jumpdests[addr/8]&(1<<uint(addr%8)) != 0
}

// Code returns the preprocessed program image, fixed at MaxCodeSize.
// Bytes past Size() are zero and read as implicit STOP, except the
// immediate window of a PUSH truncated by the end of the bytecode, which
// may extend past Size() and is never executed as opcodes.
func (r *ROM) Code() []byte { return r.code[:] }

// Size returns the length of the original bytecode, before padding.
func (r *ROM) Size() int { return r.size }

// OversizeError reports bytecode longer than MaxCodeSize.
type OversizeError struct {
	Len int
}

func (e *OversizeError) Error() string {
	return fmt.Sprintf("rom: bytecode length %d exceeds max code size %d", e.Len, MaxCodeSize)
}
