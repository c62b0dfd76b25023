package vm

import (
	"errors"
	"fmt"

	"github.com/oisee/evmvm/pkg/memory"
	"github.com/oisee/evmvm/pkg/stack"
)

// FaultKind classifies why execution halted abnormally.
type FaultKind int

const (
	// InvalidJumpDest means a JUMP/JUMPI target was out of bounds or did
	// not land on a JUMPDEST.
	InvalidJumpDest FaultKind = iota
	// StackUnderflow means an operation needed more operands than the
	// stack held.
	StackUnderflow
	// StackOverflow means a push exceeded the 1024-slot stack.
	StackOverflow
	// MemoryCapacityExceeded means an access would grow memory past its
	// fixed capacity.
	MemoryCapacityExceeded
	// StepLimitExceeded is a CLI-layer convenience (run --max-steps), not
	// part of the core dispatch loop's contract.
	StepLimitExceeded
)

func (k FaultKind) String() string {
	switch k {
	case InvalidJumpDest:
		return "invalid jump destination"
	case StackUnderflow:
		return "stack underflow"
	case StackOverflow:
		return "stack overflow"
	case MemoryCapacityExceeded:
		return "memory capacity exceeded"
	case StepLimitExceeded:
		return "step limit exceeded"
	default:
		return "unknown fault"
	}
}

// Fault is the error Execute returns when the dispatch loop cannot
// continue, replacing the reference's panic!-on-invalid-input with a
// typed, recoverable error.
type Fault struct {
	Kind FaultKind
	PC   uint64
	Err  error
	msg  string
}

func (f *Fault) Error() string {
	if f.msg != "" {
		return fmt.Sprintf("vm: %s at pc=%d: %s", f.Kind, f.PC, f.msg)
	}
	if f.Err != nil {
		return fmt.Sprintf("vm: %s at pc=%d: %v", f.Kind, f.PC, f.Err)
	}
	return fmt.Sprintf("vm: %s at pc=%d", f.Kind, f.PC)
}

func (f *Fault) Unwrap() error { return f.Err }

// wrap classifies an underlying stack/memory error into a *Fault at pc.
func wrap(err error, pc uint64) *Fault {
	switch {
	case errors.Is(err, stack.ErrUnderflow):
		return &Fault{Kind: StackUnderflow, PC: pc, Err: err}
	case errors.Is(err, stack.ErrOverflow):
		return &Fault{Kind: StackOverflow, PC: pc, Err: err}
	default:
		var capErr *memory.CapacityError
		if errors.As(err, &capErr) {
			return &Fault{Kind: MemoryCapacityExceeded, PC: pc, Err: err}
		}
		return &Fault{Kind: InvalidJumpDest, PC: pc, Err: err, msg: "unclassified fault"}
	}
}
