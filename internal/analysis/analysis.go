// Package analysis provides the small Program-level queries the
// optimization passes share: recognizing a constant call to a known
// global, checking whether an instruction can have a side effect, and the
// fixed dunder-method-to-opcode table InstanceDunderPass rewrites against.
package analysis

import (
	"github.com/lunbun/peekle/internal/il"
	"github.com/lunbun/peekle/internal/oracle"
)

// DunderEntry is the instruction and bound (self excluded) arg count a
// recognized dunder method name rewrites into.
type DunderEntry struct {
	Op    il.Op
	NArgs int
}

// InstanceDunderMap mirrors analysis.INSTANCE_DUNDER_MAP: it needs no
// oracle lookup, since recognizing a dunder method is purely a function of
// its name string, not of any resolved host identity.
var InstanceDunderMap = map[string]DunderEntry{
	"__getitem__":  {il.OpGET_ITEM, 1},
	"__setitem__":  {il.OpSET_ITEM, 2},
	"__len__":      {il.OpLEN, 0},
	"__eq__":       {il.OpEQUALS, 1},
	"__ne__":       {il.OpNOT_EQUALS, 1},
	"__lt__":       {il.OpLESS_THAN, 1},
	"__le__":       {il.OpLESS_EQUALS, 1},
	"__gt__":       {il.OpGREATER_THAN, 1},
	"__ge__":       {il.OpGREATER_EQUALS, 1},
	"__add__":      {il.OpADD, 1},
	"__sub__":      {il.OpSUB, 1},
	"__mul__":      {il.OpMUL, 1},
	"__floordiv__": {il.OpFLOOR_DIV, 1},
	"__truediv__":  {il.OpTRUE_DIV, 1},
	"__mod__":      {il.OpMOD, 1},
	"__pow__":      {il.OpPOW, 1},
	"__and__":      {il.OpBITWISE_AND, 1},
	"__or__":       {il.OpBITWISE_OR, 1},
	"__xor__":      {il.OpBITWISE_XOR, 1},
	"__lshift__":   {il.OpLSHIFT, 1},
	"__rshift__":   {il.OpRSHIFT, 1},
}

// IsConstantCall reports whether insn is a CALL whose callee is a constant
// global reference and whose argument list is a constant tuple — the
// shape GlobalCallPass, ImportToGlobalPass and LocalsPass all need before
// they can resolve the callee through the oracle.
func IsConstantCall(insn il.Insn) bool {
	if insn.Op() != il.OpCALL {
		return false
	}
	args := insn.Args()
	if len(args) != 2 {
		return false
	}
	_, globalOk := args[0].(il.ConstantGlobal)
	_, tupleOk := args[1].(il.ConstantTuple)
	return globalOk && tupleOk
}

// MaybeGetConstantCallee resolves insn's callee through o if insn is a
// constant call, or the zero Symbol (ok=false) otherwise.
func MaybeGetConstantCallee(insn il.Insn, o oracle.Oracle) (oracle.Symbol, bool) {
	if !IsConstantCall(insn) {
		return oracle.Symbol{}, false
	}
	g := insn.Args()[0].(il.ConstantGlobal)
	return o.Resolve(g.Module, g.Name)
}

// HasSideEffects reports whether insn may have a side effect: either its
// opcode is intrinsically impure (il.HasIntrinsicSideEffect), or it is a
// CALL whose callee cannot be resolved to a known side-effect-free symbol.
func HasSideEffects(insn il.Insn, o oracle.Oracle) bool {
	if il.HasIntrinsicSideEffect(insn.Op()) {
		return true
	}
	if insn.Op() != il.OpCALL {
		return false
	}
	callee, ok := MaybeGetConstantCallee(insn, o)
	if !ok {
		return true
	}
	return !o.SideEffectFree(callee)
}
