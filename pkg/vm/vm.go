// Package vm implements the dispatch loop: fetch an opcode from a
// preprocessed ROM, execute it against a stack and memory, advance the
// program counter, and terminate on STOP/RETURN/INVALID/GAS.
package vm

import (
	"github.com/oisee/evmvm/pkg/memory"
	"github.com/oisee/evmvm/pkg/opcode"
	"github.com/oisee/evmvm/pkg/rom"
	"github.com/oisee/evmvm/pkg/stack"
	"github.com/oisee/evmvm/pkg/u256"
)

// MaxSteps, when nonzero, bounds the number of instructions Execute
// will run before returning a StepLimitExceeded fault. Zero means
// unbounded, the core semantics described by the dispatch loop.
// Options carries this and an optional trace hook; it is a CLI/driver
// concern layered on top of the unbounded core contract.
type Options struct {
	MaxSteps uint64
	Trace    func(step Step)
}

// Step describes one executed instruction, for the CLI's run --trace.
type Step struct {
	PC        uint64
	Opcode    opcode.Tag
	StackSize int
}

// Execute runs r to termination against a fresh stack, reading and
// writing m, and returns the top-of-stack value at halt.
func Execute(r *rom.ROM, m *memory.Memory) (u256.U256, error) {
	return ExecuteWithOptions(r, m, Options{})
}

// ExecuteWithOptions is Execute with CLI-layer tracing/step-bounding.
func ExecuteWithOptions(r *rom.ROM, m *memory.Memory, opts Options) (u256.U256, error) {
	var s stack.Stack
	code := r.Code()
	var pc uint64
	var steps uint64

	for {
		if opts.MaxSteps != 0 && steps >= opts.MaxSteps {
			return u256.Zero, &Fault{Kind: StepLimitExceeded, PC: pc}
		}
		steps++

		// A PUSH near the end of the image can advance pc past the
		// physical ROM bound even though every byte beyond the actual
		// bytecode is logically zero (STOP); treat falling off the end
		// the same as reading an implicit STOP there.
		if pc >= uint64(len(code)) {
			v, err := s.Pop()
			if err != nil {
				return u256.Zero, wrap(err, pc)
			}
			return v, nil
		}

		op := opcode.Decode(code[pc])
		if opts.Trace != nil {
			opts.Trace(Step{PC: pc, Opcode: op, StackSize: s.Len()})
		}

		switch {
		case op == opcode.STOP || op == opcode.INVALID || op == opcode.RETURN || op == opcode.GAS:
			v, err := s.Pop()
			if err != nil {
				return u256.Zero, wrap(err, pc)
			}
			return v, nil

		case op == opcode.ADD:
			a, b, err := pop2(&s)
			if err != nil {
				return u256.Zero, wrap(err, pc)
			}
			if err := s.Push(u256.Add(a, b)); err != nil {
				return u256.Zero, wrap(err, pc)
			}
			pc++

		case op == opcode.MUL:
			a, b, err := pop2(&s)
			if err != nil {
				return u256.Zero, wrap(err, pc)
			}
			if err := s.Push(u256.Mul(a, b)); err != nil {
				return u256.Zero, wrap(err, pc)
			}
			pc++

		case op == opcode.SUB:
			a, b, err := pop2(&s)
			if err != nil {
				return u256.Zero, wrap(err, pc)
			}
			if err := s.Push(u256.Sub(a, b)); err != nil {
				return u256.Zero, wrap(err, pc)
			}
			pc++

		case op == opcode.SIGNEXTEND:
			b, x, err := pop2(&s)
			if err != nil {
				return u256.Zero, wrap(err, pc)
			}
			if err := s.Push(u256.SignExtend(b, x)); err != nil {
				return u256.Zero, wrap(err, pc)
			}
			pc++

		case op == opcode.GT:
			a, b, err := pop2(&s)
			if err != nil {
				return u256.Zero, wrap(err, pc)
			}
			if err := s.Push(u256.Gt(a, b)); err != nil {
				return u256.Zero, wrap(err, pc)
			}
			pc++

		case op == opcode.EQ:
			a, b, err := pop2(&s)
			if err != nil {
				return u256.Zero, wrap(err, pc)
			}
			if err := s.Push(u256.Eq(a, b)); err != nil {
				return u256.Zero, wrap(err, pc)
			}
			pc++

		case op == opcode.ISZERO:
			a, err := s.Pop()
			if err != nil {
				return u256.Zero, wrap(err, pc)
			}
			if err := s.Push(u256.IsZero(a)); err != nil {
				return u256.Zero, wrap(err, pc)
			}
			pc++

		case op == opcode.AND:
			a, b, err := pop2(&s)
			if err != nil {
				return u256.Zero, wrap(err, pc)
			}
			if err := s.Push(u256.And(a, b)); err != nil {
				return u256.Zero, wrap(err, pc)
			}
			pc++

		case op == opcode.OR:
			a, b, err := pop2(&s)
			if err != nil {
				return u256.Zero, wrap(err, pc)
			}
			if err := s.Push(u256.Or(a, b)); err != nil {
				return u256.Zero, wrap(err, pc)
			}
			pc++

		case op == opcode.XOR:
			a, b, err := pop2(&s)
			if err != nil {
				return u256.Zero, wrap(err, pc)
			}
			if err := s.Push(u256.Xor(a, b)); err != nil {
				return u256.Zero, wrap(err, pc)
			}
			pc++

		case op == opcode.NOT:
			a, err := s.Pop()
			if err != nil {
				return u256.Zero, wrap(err, pc)
			}
			if err := s.Push(u256.Not(a)); err != nil {
				return u256.Zero, wrap(err, pc)
			}
			pc++

		case op == opcode.BYTE:
			i, v, err := pop2(&s)
			if err != nil {
				return u256.Zero, wrap(err, pc)
			}
			if err := s.Push(u256.Byte(i, v)); err != nil {
				return u256.Zero, wrap(err, pc)
			}
			pc++

		case op == opcode.SHL:
			shift, value, err := pop2(&s)
			if err != nil {
				return u256.Zero, wrap(err, pc)
			}
			if err := s.Push(u256.Shl(shift, value)); err != nil {
				return u256.Zero, wrap(err, pc)
			}
			pc++

		case op == opcode.CODESIZE:
			if err := s.Push(u256.FromUint64(uint64(r.Size()))); err != nil {
				return u256.Zero, wrap(err, pc)
			}
			pc++

		case op == opcode.POP:
			if _, err := s.Pop(); err != nil {
				return u256.Zero, wrap(err, pc)
			}
			pc++

		case op == opcode.MLOAD:
			offset, err := s.Pop()
			if err != nil {
				return u256.Zero, wrap(err, pc)
			}
			v, err := m.Read(offset.Uint64())
			if err != nil {
				return u256.Zero, wrap(err, pc)
			}
			if err := s.Push(v); err != nil {
				return u256.Zero, wrap(err, pc)
			}
			pc++

		case op == opcode.MSTORE:
			offset, value, err := pop2(&s)
			if err != nil {
				return u256.Zero, wrap(err, pc)
			}
			if err := m.Write(offset.Uint64(), value); err != nil {
				return u256.Zero, wrap(err, pc)
			}
			pc++

		case op == opcode.MSTORE8:
			offset, value, err := pop2(&s)
			if err != nil {
				return u256.Zero, wrap(err, pc)
			}
			if err := m.WriteByte(offset.Uint64(), byte(value.Uint64())); err != nil {
				return u256.Zero, wrap(err, pc)
			}
			pc++

		case op == opcode.JUMP:
			addr, err := s.Pop()
			if err != nil {
				return u256.Zero, wrap(err, pc)
			}
			target, ok := validJumpTarget(r, addr)
			if !ok {
				return u256.Zero, &Fault{Kind: InvalidJumpDest, PC: pc}
			}
			pc = target

		case op == opcode.JUMPI:
			addr, cond, err := pop2(&s)
			if err != nil {
				return u256.Zero, wrap(err, pc)
			}
			if u256.IsZeroBool(cond) {
				pc++
				continue
			}
			target, ok := validJumpTarget(r, addr)
			if !ok {
				return u256.Zero, &Fault{Kind: InvalidJumpDest, PC: pc}
			}
			pc = target

		case op == opcode.PC:
			if err := s.Push(u256.FromUint64(pc)); err != nil {
				return u256.Zero, wrap(err, pc)
			}
			pc++

		case op == opcode.MSIZE:
			if err := s.Push(u256.FromUint64(uint64(m.Size()))); err != nil {
				return u256.Zero, wrap(err, pc)
			}
			pc++

		case op == opcode.JUMPDEST:
			pc++

		case op.IsPush():
			n := op.PushBytes()
			start := pc + 1
			end := start + uint64(n)
			if end > uint64(len(code)) {
				end = uint64(len(code))
			}
			v := u256.FromLERotated(code[start:end])
			if err := s.Push(v); err != nil {
				return u256.Zero, wrap(err, pc)
			}
			pc += 1 + uint64(n)

		case op.IsDup():
			v, err := s.PeekN(op.DupIndex())
			if err != nil {
				return u256.Zero, wrap(err, pc)
			}
			if err := s.Push(v); err != nil {
				return u256.Zero, wrap(err, pc)
			}
			pc++

		case op.IsSwap():
			top, err := s.Peek()
			if err != nil {
				return u256.Zero, wrap(err, pc)
			}
			// SWAP_N exchanges the top with the slot N below it.
			prev, err := s.SetN(op.SwapIndex()+1, top)
			if err != nil {
				return u256.Zero, wrap(err, pc)
			}
			if _, err := s.Pop(); err != nil {
				return u256.Zero, wrap(err, pc)
			}
			if err := s.Push(prev); err != nil {
				return u256.Zero, wrap(err, pc)
			}
			pc++

		default:
			return u256.Zero, &Fault{Kind: InvalidJumpDest, PC: pc, msg: "unreachable opcode classification"}
		}
	}
}

func pop2(s *stack.Stack) (a, b u256.U256, err error) {
	a, err = s.Pop()
	if err != nil {
		return u256.Zero, u256.Zero, err
	}
	b, err = s.Pop()
	if err != nil {
		return u256.Zero, u256.Zero, err
	}
	return a, b, nil
}

// validJumpTarget reports whether addr is in bounds and lands on a
// JUMPDEST, returning the target as a pc value when valid.
func validJumpTarget(r *rom.ROM, addr u256.U256) (uint64, bool) {
	if !u256.IsLtPow2(addr, rom.MaxCodeSize) {
		return 0, false
	}
	low := addr.Uint64()
	if !r.IsJumpdest(low) {
		return 0, false
	}
	return low, true
}
