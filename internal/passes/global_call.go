package passes

import (
	"github.com/lunbun/peekle/internal/analysis"
	"github.com/lunbun/peekle/internal/il"
)

// GlobalCallPass replaces a CALL whose constant callee resolves through the
// oracle to a known global-call entry (e.g. int.__add__, getattr) with a
// VariableInsn of the mapped opcode, grounded on known_builtins.py's
// GlobalCallPass.
type GlobalCallPass struct {
	oracle Oracle
}

func (*GlobalCallPass) Name() string { return "Global Call Simplification" }

func (p *GlobalCallPass) Run(program *il.Program) bool {
	modified := false
	c := program.Cursor()
	for insn, ok := c.Next(); ok; insn, ok = c.Next() {
		sym, ok := analysis.MaybeGetConstantCallee(insn, p.oracle)
		if !ok {
			continue
		}
		entry, ok := p.oracle.GlobalCall(sym)
		if !ok {
			continue
		}

		args := insn.Args()[1].(il.ConstantTuple).Values
		if len(args) != entry.NArgs {
			continue
		}

		replacement := program.CreateVarInsn(entry.Op, args...)
		c.ReplaceInsn(replacement, false)
		modified = true
	}
	return modified
}

// InstanceDunderPass recognizes GET_ATTR(recv, "<dunder>") and rewrites
// each CALL use whose arity matches the dunder's mapped arity into a
// VariableInsn of the mapped opcode with recv prepended to the call's
// arguments, grounded on known_builtins.py's InstanceDunderPass.
type InstanceDunderPass struct{}

func (*InstanceDunderPass) Name() string { return "Instance Dunder Simplification" }

func (*InstanceDunderPass) Run(program *il.Program) bool {
	modified := false
	c := program.Cursor()
	for insn, ok := c.Next(); ok; insn, ok = c.Next() {
		v, isVar := insn.(*il.VariableInsn)
		if !isVar || v.Op() != il.OpGET_ATTR {
			continue
		}
		args := v.Args()
		if len(args) != 2 {
			continue
		}
		name, ok := args[1].(il.ConstantScalar)
		if !ok || name.Kind != il.ScalarString {
			continue
		}
		entry, ok := analysis.InstanceDunderMap[name.String]
		if !ok {
			continue
		}

		recv := args[0]
		var replaceable []il.Insn
		for _, use := range v.Uses() {
			if use.Op() != il.OpCALL {
				continue
			}
			useArgs := use.Args()
			if len(useArgs) != 2 || useArgs[0] != il.Value(v) {
				continue
			}
			tuple, ok := useArgs[1].(il.ConstantTuple)
			if !ok || len(tuple.Values) != entry.NArgs {
				continue
			}
			replaceable = append(replaceable, use)
		}

		for _, use := range replaceable {
			tuple := use.Args()[1].(il.ConstantTuple)
			callArgs := append([]il.Value{recv}, tuple.Values...)
			replacement := program.CreateVarInsn(entry.Op, callArgs...)
			program.ReplaceInsn(use, replacement, false)
			modified = true
		}

		if !v.HasUses() {
			c.RemoveInsn()
			modified = true
		}
	}
	return modified
}

// ImportToGlobalPass replaces a CALL into the runtime's import function
// with a ConstantGlobal when the module name is a constant string, or a
// fresh GLOBAL VariableInsn otherwise, grounded on known_builtins.py's
// ImportToGlobalPass.
type ImportToGlobalPass struct {
	oracle Oracle
}

func (*ImportToGlobalPass) Name() string { return "Import to Global Simplification" }

func (p *ImportToGlobalPass) Run(program *il.Program) bool {
	modified := false
	c := program.Cursor()
	for insn, ok := c.Next(); ok; insn, ok = c.Next() {
		_, isVar := insn.(*il.VariableInsn)
		if !isVar {
			continue
		}
		sym, ok := analysis.MaybeGetConstantCallee(insn, p.oracle)
		if !ok || !p.oracle.IdentityEquals(sym, p.oracle.Import()) {
			continue
		}

		tuple := insn.Args()[1].(il.ConstantTuple)
		if len(tuple.Values) == 0 {
			continue
		}
		module := tuple.Values[0]

		if name, ok := module.(il.ConstantScalar); ok && name.Kind == il.ScalarString {
			c.ReplaceInsn(il.NewModuleGlobal(name.String), true)
			modified = true
			continue
		}
		replacement := program.CreateVarInsn(il.OpGLOBAL, module)
		c.ReplaceInsn(replacement, false)
		modified = true
	}
	return modified
}

// GlobalReductionPass collapses GET_ATTR chains rooted at a ConstantGlobal
// into a single ConstantGlobal with a dotted member path, then recurses
// into each use (which may have become reducible itself), grounded on
// known_builtins.py's GlobalReductionPass.
type GlobalReductionPass struct{}

func (*GlobalReductionPass) Name() string { return "Global Reduction" }

func (*GlobalReductionPass) Run(program *il.Program) bool {
	modified := false
	c := program.Cursor()
	for insn, ok := c.Next(); ok; insn, ok = c.Next() {
		if reduceGlobal(program, insn, c) {
			modified = true
		}
	}
	return modified
}

// reduceGlobal attempts to fold insn (a GET_ATTR on a ConstantGlobal with a
// constant member name) into a single ConstantGlobal. cur is the live
// cursor to use when insn is the cursor's current instruction (nil for
// recursive calls on an instruction the cursor has already passed).
func reduceGlobal(program *il.Program, insn il.Insn, cur *il.Cursor) bool {
	v, isVar := insn.(*il.VariableInsn)
	if !isVar || v.Op() != il.OpGET_ATTR {
		return false
	}
	args := v.Args()
	if len(args) != 2 {
		return false
	}
	base, ok := args[0].(il.ConstantGlobal)
	if !ok {
		return false
	}
	attr, ok := args[1].(il.ConstantScalar)
	if !ok || attr.Kind != il.ScalarString {
		return false
	}

	name := attr.String
	if base.Name != nil {
		name = *base.Name + "." + name
	}
	reduced := il.NewGlobalMember(base.Module, name)

	uses := v.Uses()
	if cur != nil {
		cur.ReplaceInsn(reduced, true)
	} else {
		program.ReplaceInsn(v, reduced, true)
	}

	for _, use := range uses {
		reduceGlobal(program, use, nil)
	}
	return true
}

// LocalsPass replaces GET_ITEM(thisCall, key) with a fresh LOCAL(key) for
// every use of a CALL into the runtime's locals function, grounded on
// known_builtins.py's LocalsPass.
type LocalsPass struct {
	oracle Oracle
}

func (*LocalsPass) Name() string { return "Locals Simplification" }

func (p *LocalsPass) Run(program *il.Program) bool {
	modified := false
	c := program.Cursor()
	for insn, ok := c.Next(); ok; insn, ok = c.Next() {
		v, isVar := insn.(*il.VariableInsn)
		if !isVar {
			continue
		}
		sym, ok := analysis.MaybeGetConstantCallee(insn, p.oracle)
		if !ok || !p.oracle.IdentityEquals(sym, p.oracle.Locals()) {
			continue
		}

		var replaceable []il.Insn
		for _, use := range v.Uses() {
			if use.Op() != il.OpGET_ITEM {
				continue
			}
			if use.Args()[0] != il.Value(v) {
				continue
			}
			replaceable = append(replaceable, use)
		}

		for _, use := range replaceable {
			key := use.Args()[1]
			replacement := program.CreateVarInsn(il.OpLOCAL, key)
			program.ReplaceInsn(use, replacement, false)
			modified = true
		}

		if !v.HasUses() {
			c.RemoveInsn()
			modified = true
		}
	}
	return modified
}
