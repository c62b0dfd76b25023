// Package batch runs many independent bytecode programs concurrently,
// one VM instance per input, and collects a report. It is a CLI/driver
// concern layered on top of pkg/vm; each instance still owns its own
// stack, memory, and ROM exclusively.
package batch

import (
	"context"
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/oisee/evmvm/internal/hexutil"
	"github.com/oisee/evmvm/pkg/memory"
	"github.com/oisee/evmvm/pkg/rom"
	"github.com/oisee/evmvm/pkg/vm"
)

// Config controls a batch run.
type Config struct {
	Workers  int // 0 means runtime.GOMAXPROCS(0)
	MaxSteps uint64
}

// Result is one input's outcome, JSON-serializable for `evmvm batch
// --output`.
type Result struct {
	RunID  string `json:"run_id"`
	Index  int    `json:"index"`
	Input  string `json:"input"`
	Length int    `json:"length"`
	Top    string `json:"top,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Run executes every hex string in inputs concurrently and returns one
// Result per input, in input order.
func Run(ctx context.Context, cfg Config, inputs []string) ([]Result, error) {
	results := make([]Result, len(inputs))
	runID := uuid.NewString()

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Workers > 0 {
		g.SetLimit(cfg.Workers)
	} else {
		g.SetLimit(runtime.GOMAXPROCS(0))
	}

	for i, input := range inputs {
		i, input := i, input
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = Result{RunID: runID, Index: i, Input: input, Error: err.Error()}
				return nil
			}
			results[i] = evaluate(runID, i, input, cfg.MaxSteps)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}
	return results, nil
}

func evaluate(runID string, index int, input string, maxSteps uint64) Result {
	r := Result{RunID: runID, Index: index, Input: input}

	bytecode, err := hexutil.Decode(input)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.Length = len(bytecode)

	rm, err := rom.Preprocess(bytecode)
	if err != nil {
		r.Error = err.Error()
		return r
	}

	var m memory.Memory
	top, err := vm.ExecuteWithOptions(rm, &m, vm.Options{MaxSteps: maxSteps})
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.Top = hexutil.EncodeU256(top)
	return r
}
