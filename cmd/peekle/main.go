// Command peekle lifts a serialized pickle byte stream into IL, optimizes
// it, and writes the resulting listing to an output file. It carries no IL
// semantics of its own (SPEC_FULL.md §1) — it just wires the scanner,
// lifter, oracle, and pass pipeline together behind a CLI surface.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/lunbun/peekle/internal/il"
	"github.com/lunbun/peekle/internal/lifter"
	"github.com/lunbun/peekle/internal/oracle"
	"github.com/lunbun/peekle/internal/passes"
	"github.com/urfave/cli/v3"
)

const defaultMaxPasses = 20

func main() {
	cmd := &cli.Command{
		Name:      "peekle",
		Usage:     "lift a pickle byte stream into readable IL",
		ArgsUsage: "INPUT OUTPUT",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-analysis",
				Usage: "skip the optimization pass pipeline and print the lifted IL as-is",
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, diagnose(err))
		os.Exit(1)
	}
}

// diagnose renders a top-level error for the user, naming the violated
// invariant when the failure came from the pass driver's panic/recover
// boundary (SPEC_FULL.md §7).
func diagnose(err error) string {
	var invariant *il.InvariantError
	if errors.As(err, &invariant) {
		return "peekle: internal error: " + invariant.Error()
	}
	return "peekle: " + err.Error()
}

func run(_ context.Context, cmd *cli.Command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if invariant, ok := r.(*il.InvariantError); ok {
				err = invariant
				return
			}
			panic(r)
		}
	}()

	args := cmd.Args()
	if args.Len() != 2 {
		return errors.New("usage: peekle INPUT OUTPUT [--no-analysis]")
	}
	inputPath, outputPath := args.Get(0), args.Get(1)

	input, readErr := os.Open(inputPath)
	if readErr != nil {
		return fmt.Errorf("opening input: %w", readErr)
	}
	defer input.Close()

	program := lifter.Disassemble(input)

	passCount := 0
	if !cmd.Bool("no-analysis") {
		passCount = passes.Default(oracle.NewManifest()).Run(program, defaultMaxPasses)
	}

	if writeErr := os.WriteFile(outputPath, []byte(il.Print(program)), 0o644); writeErr != nil {
		return fmt.Errorf("writing output: %w", writeErr)
	}

	if passCount > 0 {
		fmt.Printf("Analysis passes ran %d time(s).\n", passCount)
	}
	if program.Poison {
		fmt.Println("some errors encountered")
	} else {
		fmt.Println("Happy reversing!")
	}
	return nil
}
