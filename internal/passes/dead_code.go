package passes

import (
	"github.com/lunbun/peekle/internal/analysis"
	"github.com/lunbun/peekle/internal/il"
	"github.com/lunbun/peekle/internal/oracle"
)

// Oracle is an alias of the full oracle.Oracle interface, re-exported so
// callers constructing a PassManager don't need to import
// internal/oracle directly just to name the type.
type Oracle = oracle.Oracle

// DeadCodePass removes an unused Insn outright when it cannot have a side
// effect, or downgrades an unused VariableInsn with a side effect to a
// plain Insn of the same op/args (keeping the effect, discarding the dead
// SSA name), grounded on dead_code.py's DeadCodePass.
type DeadCodePass struct {
	oracle Oracle
}

func (*DeadCodePass) Name() string { return "Dead Code Elimination" }

func (p *DeadCodePass) Run(program *il.Program) bool {
	modified := false
	c := program.Cursor()
	for insn, ok := c.Next(); ok; insn, ok = c.Next() {
		v, isVar := insn.(*il.VariableInsn)
		if isVar && v.HasUses() {
			continue
		}

		if !analysis.HasSideEffects(insn, p.oracle) {
			c.RemoveInsn()
			modified = true
			continue
		}

		if isVar {
			c.ReplaceInsn(il.NewPlainInsn(v.Op(), v.Args()...), false)
			modified = true
		}
	}
	return modified
}
