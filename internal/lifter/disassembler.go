// Package lifter translates a decoded pickle opcode stream into peekle's
// SSA IL (internal/il), reproducing the pickle virtual machine's stack,
// metastack and memo as it goes.
package lifter

import (
	"fmt"
	"io"
	"math/big"

	"github.com/lunbun/peekle/internal/il"
	"github.com/lunbun/peekle/internal/pickleops"
)

// UnknownOpcodeError is raised when the scanner produces an opcode the
// lifter has no handler for (anything REDUCE/BUILD/GLOBAL and friends
// don't cover — see step in dispatch.go).
type UnknownOpcodeError struct {
	Op  pickleops.Opcode
	Pos int64
}

func (e *UnknownOpcodeError) Error() string {
	return fmt.Sprintf("lifter: unknown or unimplemented opcode %s at offset %d", e.Op, e.Pos)
}

// StackError is raised when an opcode's stack preconditions aren't met
// (pop from empty stack, pop-mark with no open mark) — always a symptom of
// a truncated or corrupt pickle stream, never a bug in a well-formed one.
type StackError struct {
	Message string
	Pos     int64
}

func (e *StackError) Error() string {
	return fmt.Sprintf("lifter: %s at offset %d", e.Message, e.Pos)
}

// disassembler holds the lifter's working state for a single program: the
// pickle VM's operand stack, the metastack that MARK/popMark juggle, and
// the memo table, mirroring original_source/peekle/il/dis.py's
// Disassembler exactly.
type disassembler struct {
	program   *il.Program
	stack     []il.Value
	metastack [][]il.Value
	memo      map[int64]il.Value
	pos       int64
}

// Disassemble scans r as a pickle byte stream and lifts it into a Program.
// Any lifting failure (unknown opcode, stack underflow, truncated stream)
// appends a POISON instruction carrying the error message and sets
// Program.Poison, rather than returning an error — the caller always gets
// back whatever prefix was successfully lifted.
func Disassemble(r io.Reader) *il.Program {
	d := &disassembler{
		program: il.NewProgram(),
		memo:    make(map[int64]il.Value),
	}

	scanner := pickleops.NewScanner(r)
	err := d.run(scanner)
	if err == nil {
		err = scanner.Err()
	}
	if err != nil {
		d.program.AppendInsn(il.OpPOISON, il.NewString(err.Error()))
		d.program.Poison = true
	}
	return d.program
}

func (d *disassembler) run(scanner *pickleops.Scanner) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if ie, ok := r.(*il.InvariantError); ok {
				err = ie
				return
			}
			panic(r)
		}
	}()

	for scanner.Scan() {
		rec := scanner.Record()
		d.pos = rec.Pos
		stop, stepErr := d.step(rec)
		if stepErr != nil {
			return stepErr
		}
		if stop {
			return nil
		}
	}
	return nil
}

func (d *disassembler) push(v il.Value) { d.stack = append(d.stack, v) }

func (d *disassembler) pop() (il.Value, error) {
	if len(d.stack) == 0 {
		return nil, &StackError{Message: "pop from empty stack", Pos: d.pos}
	}
	top := d.stack[len(d.stack)-1]
	d.stack = d.stack[:len(d.stack)-1]
	return top, nil
}

func (d *disassembler) top() (il.Value, error) {
	if len(d.stack) == 0 {
		return nil, &StackError{Message: "stack is empty", Pos: d.pos}
	}
	return d.stack[len(d.stack)-1], nil
}

func (d *disassembler) pushMark() {
	d.metastack = append(d.metastack, d.stack)
	d.stack = nil
}

func (d *disassembler) popMark() ([]il.Value, error) {
	if len(d.metastack) == 0 {
		return nil, &StackError{Message: "pop_mark with no open mark", Pos: d.pos}
	}
	popped := d.stack
	d.stack = d.metastack[len(d.metastack)-1]
	d.metastack = d.metastack[:len(d.metastack)-1]
	return popped, nil
}

// constant converts a pickleops.Record's decoded argument into an IL
// scalar. NONE carries a nil arg and maps to il.Null.
func constant(arg any) il.Value {
	switch v := arg.(type) {
	case nil:
		return il.Null
	case bool:
		return il.NewBool(v)
	case int64:
		return il.NewInt(v)
	case *big.Int:
		return il.NewBigInt(v)
	case float64:
		return il.NewFloat(v)
	case string:
		return il.NewString(v)
	case []byte:
		return il.NewBytes(v)
	default:
		panic(fmt.Sprintf("lifter: unexpected decoded argument type %T", arg))
	}
}

func memoIndex(arg any) int64 {
	switch v := arg.(type) {
	case int64:
		return v
	case *big.Int:
		return v.Int64()
	default:
		panic(fmt.Sprintf("lifter: non-integer memo index argument %T", arg))
	}
}
