package u256

import "golang.org/x/sys/cpu"

// lane128 mirrors one 128-bit SIMD lane as a pair of 64-bit limbs, the
// portable stand-in for the reference implementation's __m128i/__m256i
// register halves. The "wide" op functions below operate lane-at-a-time
// instead of limb-at-a-time; they are bit-exact with the scalar versions
// in u256.go and exist purely so the AVX2/SSSE3-feature-detected path
// has a structurally distinct implementation to select, the way the
// reference selects between compiled AVX2/SSSE3/scalar code paths.
type lane128 struct {
	lo, hi uint64
}

func toLanes(a U256) (lane128, lane128) {
	return lane128{a.limbs[0], a.limbs[1]}, lane128{a.limbs[2], a.limbs[3]}
}

func fromLanes(lo, hi lane128) U256 {
	return U256{limbs: [4]uint64{lo.lo, lo.hi, hi.lo, hi.hi}}
}

func (l lane128) and(o lane128) lane128 { return lane128{l.lo & o.lo, l.hi & o.hi} }
func (l lane128) or(o lane128) lane128  { return lane128{l.lo | o.lo, l.hi | o.hi} }
func (l lane128) xor(o lane128) lane128 { return lane128{l.lo ^ o.lo, l.hi ^ o.hi} }
func (l lane128) not() lane128          { return lane128{^l.lo, ^l.hi} }

func wideAnd(a, b U256) U256 {
	alo, ahi := toLanes(a)
	blo, bhi := toLanes(b)
	return fromLanes(alo.and(blo), ahi.and(bhi))
}

func wideOr(a, b U256) U256 {
	alo, ahi := toLanes(a)
	blo, bhi := toLanes(b)
	return fromLanes(alo.or(blo), ahi.or(bhi))
}

func wideXor(a, b U256) U256 {
	alo, ahi := toLanes(a)
	blo, bhi := toLanes(b)
	return fromLanes(alo.xor(blo), ahi.xor(bhi))
}

func wideNot(a U256) U256 {
	lo, hi := toLanes(a)
	return fromLanes(lo.not(), hi.not())
}

// SIMDPath reports which accelerated path was selected at init, for
// diagnostics (the CLI's startup banner mirrors the reference's
// print_config()).
var SIMDPath = "scalar"

// Shl's carry-across-limbs makes a lane-parallel rewrite error-prone to
// keep bit-exact, so only the elementwise bitwise group (AND/OR/XOR/NOT)
// gets a wide/scalar choice; Shl always uses shlScalar.
var (
	opAnd = and
	opOr  = or
	opXor = xor
	opNot = not
	opShl = shlScalar
)

func init() {
	if cpu.X86.HasAVX2 || cpu.X86.HasSSSE3 {
		opAnd = wideAnd
		opOr = wideOr
		opXor = wideXor
		opNot = wideNot
		if cpu.X86.HasAVX2 {
			SIMDPath = "avx2-wide"
		} else {
			SIMDPath = "ssse3-wide"
		}
	}
}
