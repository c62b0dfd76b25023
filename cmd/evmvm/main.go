package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/oisee/evmvm/internal/hexutil"
	"github.com/oisee/evmvm/pkg/batch"
	"github.com/oisee/evmvm/pkg/memory"
	"github.com/oisee/evmvm/pkg/opcode"
	"github.com/oisee/evmvm/pkg/rom"
	"github.com/oisee/evmvm/pkg/u256"
	"github.com/oisee/evmvm/pkg/vm"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "evmvm [HEXSTRING]",
		Short: "Stack-based interpreter for an EVM opcode subset",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printBanner()
			if len(args) == 0 {
				fmt.Println("The first positional argument must be a hex string")
				return nil
			}
			runRoot(args[0])
			return nil
		},
	}

	var trace bool
	var maxSteps uint64
	runCmd := &cobra.Command{
		Use:   "run <HEXSTRING>",
		Short: "Execute a hex bytecode string and print the top-of-stack result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplicit(args[0], trace, maxSteps)
		},
	}
	runCmd.Flags().BoolVar(&trace, "trace", false, "print a step trace (pc, opcode, stack depth) to stderr")
	runCmd.Flags().Uint64Var(&maxSteps, "max-steps", 0, "bound execution to N steps (0 = unbounded)")

	var workers int
	var output string
	batchCmd := &cobra.Command{
		Use:   "batch <FILE>",
		Short: "Execute one hex bytecode per line concurrently and report results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(args[0], workers, output)
		},
	}
	batchCmd.Flags().IntVar(&workers, "workers", 0, "concurrent worker limit (0 = GOMAXPROCS)")
	batchCmd.Flags().StringVar(&output, "output", "", "write the JSON report to this file instead of stdout")

	disasmCmd := &cobra.Command{
		Use:   "disasm <HEXSTRING>",
		Short: "Disassemble a hex bytecode string",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDisasm(args[0])
		},
	}

	rootCmd.AddCommand(runCmd, batchCmd, disasmCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// printBanner mirrors the reference's print_config(): build mode and
// the detected u256 SIMD path, printed once before execution.
func printBanner() {
	mode := "release"
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "-gcflags" && s.Value != "" {
				mode = "debug"
			}
		}
	}
	fmt.Printf("mode: %s (%s)\n", mode, runtime.Version())
	fmt.Printf("path: %s\n", u256.SIMDPath)
}

// runRoot reproduces the distilled spec's exact CLI contract: decode,
// preprocess, execute, print byte length then the top-of-stack value.
// A decode failure prints the error and performs no execution; exit
// code stays 0 either way.
func runRoot(hexArg string) {
	bytecode, err := hexutil.Decode(hexArg)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("%d bytes\n", len(bytecode))

	r, err := rom.Preprocess(bytecode)
	if err != nil {
		fmt.Println(err)
		return
	}
	var m memory.Memory
	top, err := vm.Execute(r, &m)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(hexutil.EncodeU256(top))
}

// runExplicit is the scripting-friendly `run` subcommand: same
// execution, but a fault is surfaced as a nonzero exit code instead of
// being swallowed, and --trace/--max-steps are CLI-only conveniences.
func runExplicit(hexArg string, trace bool, maxSteps uint64) error {
	bytecode, err := hexutil.Decode(hexArg)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	fmt.Printf("%d bytes\n", len(bytecode))

	r, err := rom.Preprocess(bytecode)
	if err != nil {
		return fmt.Errorf("preprocess: %w", err)
	}

	opts := vm.Options{MaxSteps: maxSteps}
	if trace {
		opts.Trace = func(s vm.Step) {
			fmt.Fprintf(os.Stderr, "pc=%-6d %-10s stack=%d\n", s.PC, s.Opcode.Mnemonic(), s.StackSize)
		}
	}

	var m memory.Memory
	top, err := vm.ExecuteWithOptions(r, &m, opts)
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	fmt.Println(hexutil.EncodeU256(top))
	return nil
}

func runBatch(path string, workers int, output string) error {
	var f *os.File
	if path == "-" {
		f = os.Stdin
	} else {
		var err error
		f, err = os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
	}

	var inputs []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		inputs = append(inputs, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	results, err := batch.Run(context.Background(), batch.Config{Workers: workers}, inputs)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if output != "" {
		outFile, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("create %s: %w", output, err)
		}
		defer outFile.Close()
		enc = json.NewEncoder(outFile)
		enc.SetIndent("", "  ")
		fmt.Printf("%d results written to %s\n", len(results), output)
	}
	if err := enc.Encode(results); err != nil {
		return err
	}
	failed := 0
	for _, res := range results {
		if res.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d inputs failed", failed, len(results))
	}
	return nil
}

func runDisasm(hexArg string) error {
	bytecode, err := hexutil.Decode(hexArg)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	r, err := rom.Preprocess(bytecode)
	if err != nil {
		return fmt.Errorf("preprocess: %w", err)
	}

	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	pc := 0
	for pc < len(bytecode) {
		tag := opcode.Decode(bytecode[pc])
		n := tag.InstructionBytes()
		end := pc + n
		if end > len(bytecode) {
			end = len(bytecode)
		}
		raw := bytecode[pc:end]
		mark := ""
		if r.IsJumpdest(uint64(pc)) {
			mark = "*"
		}
		if interactive {
			fmt.Printf("%6d %1s  %-10s %x\n", pc, mark, tag.Mnemonic(), raw)
		} else {
			fmt.Printf("%d\t%s\t%s\t%x\n", pc, mark, tag.Mnemonic(), raw)
		}
		pc = end
	}
	return nil
}
