package vm

import (
	"encoding/hex"
	"testing"

	"github.com/oisee/evmvm/pkg/memory"
	"github.com/oisee/evmvm/pkg/rom"
	"github.com/oisee/evmvm/pkg/u256"
)

func run(t *testing.T, hexCode string) (u256.U256, error) {
	t.Helper()
	code, err := hex.DecodeString(hexCode)
	if err != nil {
		t.Fatalf("bad test hex %q: %v", hexCode, err)
	}
	r, err := rom.Preprocess(code)
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	var m memory.Memory
	return Execute(r, &m)
}

func TestPushPushAdd(t *testing.T) {
	got, err := run(t, "6001600101")
	if err != nil {
		t.Fatal(err)
	}
	if got != u256.FromUint64(2) {
		t.Errorf("got %v, want 2", got)
	}
}

func TestSubPushZeroWraps(t *testing.T) {
	// PUSH1 3, PUSH1 2, SUB, PUSH1 0 -- driver reports top after STOP,
	// which is the last PUSH1 0.
	got, err := run(t, "60036002036000")
	if err != nil {
		t.Fatal(err)
	}
	if !u256.IsZeroBool(got) {
		t.Errorf("got %v, want 0", got)
	}
}

func TestEqFalse(t *testing.T) {
	got, err := run(t, "60ff600014")
	if err != nil {
		t.Fatal(err)
	}
	if !u256.IsZeroBool(got) {
		t.Errorf("got %v, want 0 (0xff != 0)", got)
	}
}

func TestGtFalse(t *testing.T) {
	// PUSH1 5, PUSH1 3, GT -> pops a=3,b=5 -> gt(3,5) = 0
	got, err := run(t, "6005600311")
	if err != nil {
		t.Fatal(err)
	}
	if !u256.IsZeroBool(got) {
		t.Errorf("got %v, want 0", got)
	}
}

func TestMulMstoreReturn(t *testing.T) {
	got, err := run(t, "600560020260005260206000f3")
	if err != nil {
		t.Fatal(err)
	}
	if !u256.IsZeroBool(got) {
		t.Errorf("got %v, want 0 (the memory offset pushed last)", got)
	}
}

func TestJumpLoopBoundedByMaxSteps(t *testing.T) {
	code, err := hex.DecodeString("5b600056")
	if err != nil {
		t.Fatal(err)
	}
	r, err := rom.Preprocess(code)
	if err != nil {
		t.Fatal(err)
	}
	var m memory.Memory
	var lastStep Step
	_, err = ExecuteWithOptions(r, &m, Options{
		MaxSteps: 1,
		Trace:    func(s Step) { lastStep = s },
	})
	f, ok := err.(*Fault)
	if !ok || f.Kind != StepLimitExceeded {
		t.Fatalf("expected StepLimitExceeded fault, got %v", err)
	}
	if lastStep.PC != 0 {
		t.Errorf("the one traced step should be JUMPDEST at pc=0, got pc=%d", lastStep.PC)
	}
}

func TestUndefinedOpcodeIsInvalid(t *testing.T) {
	// PUSH1 1, PUSH1 2, ADD, PUSH1 3, then 0x5f (undefined -> INVALID).
	got, err := run(t, "600160020160035f")
	if err != nil {
		t.Fatal(err)
	}
	if got != u256.FromUint64(3) {
		t.Errorf("got %v, want 3", got)
	}
}

func TestStackUnderflowIsAFault(t *testing.T) {
	// A bare ADD with nothing on the stack.
	_, err := run(t, "01")
	f, ok := err.(*Fault)
	if !ok || f.Kind != StackUnderflow {
		t.Fatalf("expected StackUnderflow fault, got %v", err)
	}
}

func TestInvalidJumpDestIsAFault(t *testing.T) {
	// PUSH1 5, JUMP -- 5 is not a JUMPDEST.
	_, err := run(t, "600556")
	f, ok := err.(*Fault)
	if !ok || f.Kind != InvalidJumpDest {
		t.Fatalf("expected InvalidJumpDest fault, got %v", err)
	}
}

func TestHighMemoryOffsetIsMemoryFaultNotPanic(t *testing.T) {
	// PUSH8 0x8000000000000000, MLOAD: the low 64 bits of the offset
	// narrow to a negative int if converted to int before bounds
	// checking, which used to panic instead of faulting.
	_, err := run(t, "678000000000000000"+"51")
	f, ok := err.(*Fault)
	if !ok || f.Kind != MemoryCapacityExceeded {
		t.Fatalf("expected MemoryCapacityExceeded fault, got %v", err)
	}
}

func TestSwapThenDup(t *testing.T) {
	// PUSH1 1, PUSH1 2, SWAP1, DUP1 -- confirms dispatch reaches SWAP/DUP
	// without faulting and leaves the expected value on top.
	got, err := run(t, "6001600290" + "80")
	if err != nil {
		t.Fatal(err)
	}
	// stack after PUSH1 1, PUSH1 2: [1,2]; SWAP1 -> [2,1]; DUP1 -> [2,1,1]
	if got != u256.FromUint64(1) {
		t.Errorf("got %v, want 1", got)
	}
}
