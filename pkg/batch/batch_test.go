package batch

import (
	"context"
	"testing"
)

func TestRunPreservesOrderAndRunID(t *testing.T) {
	inputs := []string{"6001600101", "60ff600014", "zz"}
	results, err := Run(context.Background(), Config{Workers: 2}, inputs)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != len(inputs) {
		t.Fatalf("got %d results, want %d", len(results), len(inputs))
	}
	for i, r := range results {
		if r.Index != i {
			t.Errorf("result %d has Index=%d", i, r.Index)
		}
		if r.Input != inputs[i] {
			t.Errorf("result %d Input=%q, want %q", i, r.Input, inputs[i])
		}
		if r.RunID == "" {
			t.Errorf("result %d missing RunID", i)
		}
	}
	if results[0].Top != "0x0000000000000000000000000000000000000000000000000000000000000002" {
		t.Errorf("result 0 Top = %q", results[0].Top)
	}
	if results[2].Error == "" {
		t.Errorf("result 2 (invalid hex) should carry an Error")
	}
}

func TestRunSharesOneRunIDAcrossInputs(t *testing.T) {
	results, err := Run(context.Background(), Config{}, []string{"00", "00"})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].RunID != results[1].RunID {
		t.Errorf("one batch run should share a single RunID, got %q and %q", results[0].RunID, results[1].RunID)
	}
}
