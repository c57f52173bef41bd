package il

import "strings"

// Op identifies an IL instruction's operation. The full set is fixed by the
// pickle format's semantics (SPEC_FULL.md §3.3); there is no extension
// point because the lifter and passes both switch on it exhaustively.
type Op int

const (
	OpSTOP Op = iota
	OpCALL
	OpGLOBAL
	OpGET_ATTR
	OpSET_ATTR
	OpGET_ITEM
	OpSET_ITEM
	OpLOCAL
	OpMUTABLE_CONSTANT
	OpBUILD
	OpLEN
	OpEXTEND
	OpEQUALS
	OpNOT_EQUALS
	OpLESS_THAN
	OpLESS_EQUALS
	OpGREATER_THAN
	OpGREATER_EQUALS
	OpADD
	OpSUB
	OpMUL
	OpFLOOR_DIV
	OpTRUE_DIV
	OpMOD
	OpPOW
	OpBITWISE_AND
	OpBITWISE_OR
	OpBITWISE_XOR
	OpLSHIFT
	OpRSHIFT
	OpPOISON
)

var opNames = map[Op]string{
	OpSTOP:             "stop",
	OpCALL:             "call",
	OpGLOBAL:           "global",
	OpGET_ATTR:         "get_attr",
	OpSET_ATTR:         "set_attr",
	OpGET_ITEM:         "get_item",
	OpSET_ITEM:         "set_item",
	OpLOCAL:            "local",
	OpMUTABLE_CONSTANT: "mutable_constant",
	OpBUILD:            "build",
	OpLEN:              "len",
	OpEXTEND:           "extend",
	OpEQUALS:           "equals",
	OpNOT_EQUALS:       "not_equals",
	OpLESS_THAN:        "less_than",
	OpLESS_EQUALS:      "less_equals",
	OpGREATER_THAN:     "greater_than",
	OpGREATER_EQUALS:   "greater_equals",
	OpADD:              "add",
	OpSUB:              "sub",
	OpMUL:              "mul",
	OpFLOOR_DIV:        "floor_div",
	OpTRUE_DIV:         "true_div",
	OpMOD:              "mod",
	OpPOW:              "pow",
	OpBITWISE_AND:      "bitwise_and",
	OpBITWISE_OR:       "bitwise_or",
	OpBITWISE_XOR:      "bitwise_xor",
	OpLSHIFT:           "lshift",
	OpRSHIFT:           "rshift",
	OpPOISON:           "poison",
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "unknown"
}

// binaryOps is the set of opcodes ConstantValuePass is allowed to fold:
// every arithmetic/comparison/bitwise op, all strictly binary.
var binaryOps = map[Op]struct{}{
	OpEQUALS: {}, OpNOT_EQUALS: {}, OpLESS_THAN: {}, OpLESS_EQUALS: {},
	OpGREATER_THAN: {}, OpGREATER_EQUALS: {},
	OpADD: {}, OpSUB: {}, OpMUL: {}, OpFLOOR_DIV: {}, OpTRUE_DIV: {}, OpMOD: {}, OpPOW: {},
	OpBITWISE_AND: {}, OpBITWISE_OR: {}, OpBITWISE_XOR: {}, OpLSHIFT: {}, OpRSHIFT: {},
}

// IsBinaryArithmetic reports whether op is one of the binary
// arithmetic/comparison/bitwise operators foldable by ConstantValuePass.
func IsBinaryArithmetic(op Op) bool {
	_, ok := binaryOps[op]
	return ok
}

// sideEffectOps mirrors SIDE_EFFECT_INSNS from SPEC_FULL.md §4.3; kept here
// (rather than only in internal/analysis) because it is a property of the
// opcode itself, independent of any oracle.
var sideEffectOps = map[Op]struct{}{
	OpSTOP: {}, OpSET_ATTR: {}, OpSET_ITEM: {}, OpBUILD: {}, OpEXTEND: {}, OpPOISON: {},
}

// HasIntrinsicSideEffect reports whether op always has a side effect
// regardless of its operands (CALL is handled separately by
// internal/analysis, since whether a call is pure depends on its callee).
func HasIntrinsicSideEffect(op Op) bool {
	_, ok := sideEffectOps[op]
	return ok
}

// Insn is an instruction in the program's doubly linked list: either a
// PlainInsn (no result) or a *VariableInsn (defines a named SSA value and
// is itself usable as a Value).
type Insn interface {
	// Op returns the instruction's opcode.
	Op() Op
	// Args returns the instruction's ordered operand list. Mutating it
	// directly leaves ArgDefs stale: the cached read-set is refreshed only
	// by Program's own rewriting methods (ReplaceInsn).
	Args() []Value
	// ArgDefs returns the VariableInsns this instruction reads (the cached
	// union of Args()'s value-defs) — not to be confused with Value.Defs,
	// which (for a *VariableInsn used as an operand) reports the variable
	// it defines.
	ArgDefs() map[*VariableInsn]struct{}

	header() *insnHeader
}

// InsnString renders an instruction's defining form, "opname operand,
// operand" or "name = opname operand, operand" for a VariableInsn. This is
// deliberately a free function rather than an Insn method: *VariableInsn's
// String() already has a different meaning (its Value rendering, i.e. just
// its name) and Go doesn't allow the same method to mean two things.
func InsnString(i Insn) string {
	if v, ok := i.(*VariableInsn); ok {
		return v.InsnString()
	}
	return i.(*PlainInsn).String()
}

// insnHeader holds the fields common to PlainInsn and VariableInsn: the
// doubly linked list pointers and the cached read-set (I1, the defs cache
// from SPEC_FULL.md §3.2).
type insnHeader struct {
	op      Op
	args    []Value
	prev    Insn
	next    Insn
	argDefs map[*VariableInsn]struct{}
}

func newHeader(op Op, args []Value) insnHeader {
	return insnHeader{op: op, args: args, argDefs: unionDefs(args)}
}

func (h *insnHeader) refresh() { h.argDefs = unionDefs(h.args) }

func (h *insnHeader) Op() Op                             { return h.op }
func (h *insnHeader) Args() []Value                      { return h.args }
func (h *insnHeader) ArgDefs() map[*VariableInsn]struct{} { return h.argDefs }

func stringifyArgs(args []Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

// PlainInsn is an instruction that performs a side effect but defines no
// value (STOP, SET_ATTR, SET_ITEM, BUILD, EXTEND, POISON; also a downgraded
// VariableInsn whose result became unused — see DeadCodePass).
type PlainInsn struct {
	insnHeader
}

// NewPlainInsn constructs a detached PlainInsn. Use Program.InsertInsn (or
// Program.AppendInsn) to wire it into a program.
func NewPlainInsn(op Op, args ...Value) *PlainInsn {
	return &PlainInsn{insnHeader: newHeader(op, args)}
}

func (i *PlainInsn) header() *insnHeader { return &i.insnHeader }

func (i *PlainInsn) String() string {
	if len(i.args) == 0 {
		return i.op.String()
	}
	return i.op.String() + " " + stringifyArgs(i.args)
}

// VariableInsn is an instruction that defines a named SSA value ("v<k>")
// and is itself a Value usable as another instruction's operand.
type VariableInsn struct {
	insnHeader
	name string
	uses map[Insn]struct{}
}

func (VariableInsn) isValue() {}

func (v *VariableInsn) header() *insnHeader { return &v.insnHeader }

// Name returns the instruction's stable SSA name, e.g. "v3".
func (v *VariableInsn) Name() string { return v.name }

// HasUses reports whether any instruction in the program currently reads
// this variable.
func (v *VariableInsn) HasUses() bool { return len(v.uses) > 0 }

// Uses returns the set of instructions using this variable, in a
// deterministic (but process-local, not cross-run-stable) order.
func (v *VariableInsn) Uses() []Insn { return sortedUses(v.uses) }

// String, as a Value, is just the variable's name (it appears as an
// operand reference elsewhere in the program).
func (v *VariableInsn) String() string { return v.name }

// InsnString renders the defining form: "v3 = op operand, operand".
func (v *VariableInsn) InsnString() string {
	if len(v.args) == 0 {
		return v.name + " = " + v.op.String()
	}
	return v.name + " = " + v.op.String() + " " + stringifyArgs(v.args)
}

// Defs implements Value: a VariableInsn used as an operand depends on
// itself.
func (v *VariableInsn) Defs() map[*VariableInsn]struct{} {
	return map[*VariableInsn]struct{}{v: {}}
}

// replaceVar is a no-op for *VariableInsn: callers (container Values, and
// Program.ReplaceInsn for top-level arguments) always check reference
// identity against old themselves before recursing, so this is only ever
// reached when v != old.
func (v *VariableInsn) replaceVar(*VariableInsn, Value) {}
