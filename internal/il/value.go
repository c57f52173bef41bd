// Package il implements the SSA intermediate representation that the pickle
// lifter (internal/lifter) produces and the optimization passes
// (internal/passes) rewrite: a doubly linked instruction list with a
// use/def graph, where a defining instruction (VariableInsn) is itself a
// value that can appear as an operand elsewhere.
package il

import (
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
)

// Value is an operand of an instruction: either a constant of some kind, a
// symbolic global reference, or a reference to another instruction's
// result (a VariableInsn used as a VariableRef). The set of concrete
// implementations is closed; external packages never implement Value.
type Value interface {
	// String renders the value the way it would appear as an operand in an
	// IL listing.
	String() string

	// Defs returns the set of VariableInsns this value transitively reads.
	// Most variants have none; containers union their elements' defs, and a
	// VariableInsn depends on itself.
	Defs() map[*VariableInsn]struct{}

	// replaceVar rewrites any occurrence of old (recursively, into nested
	// containers) with new. Scalars, globals and VariableRefs that are not
	// themselves old are no-ops.
	replaceVar(old *VariableInsn, new Value)

	isValue()
}

func unionDefs(values []Value) map[*VariableInsn]struct{} {
	if len(values) == 0 {
		return nil
	}
	var defs map[*VariableInsn]struct{}
	for _, v := range values {
		for d := range v.Defs() {
			if defs == nil {
				defs = make(map[*VariableInsn]struct{})
			}
			defs[d] = struct{}{}
		}
	}
	return defs
}

// ScalarKind discriminates the payload carried by a ConstantScalar.
type ScalarKind int

const (
	ScalarNull ScalarKind = iota
	ScalarBool
	ScalarInt
	ScalarFloat
	ScalarString
	ScalarBytes
)

// ConstantScalar is a serialized primitive: an integer, float, bool, string,
// bytes value, or the distinguished null marker. Integers that overflow an
// int64 (e.g. lifted from LONG/LONG1/LONG4, or produced by folding) are
// carried in Big instead, per ADR-2 in DESIGN.md.
type ConstantScalar struct {
	Kind ScalarKind

	Bool   bool
	Int    int64
	Big    *big.Int // non-nil only when Kind == ScalarInt and it overflows Int
	Float  float64
	String string
	Bytes  []byte
}

func (ConstantScalar) isValue() {}

// Null is the distinguished absence marker (pickle's NONE).
var Null = ConstantScalar{Kind: ScalarNull}

// True and False are the distinguished boolean scalars.
var (
	True  = ConstantScalar{Kind: ScalarBool, Bool: true}
	False = ConstantScalar{Kind: ScalarBool, Bool: false}
)

// NewInt returns a ConstantScalar holding v.
func NewInt(v int64) ConstantScalar { return ConstantScalar{Kind: ScalarInt, Int: v} }

// NewBigInt returns a ConstantScalar holding an arbitrary-precision integer,
// normalizing back to Int when it fits in 64 bits.
func NewBigInt(v *big.Int) ConstantScalar {
	if v.IsInt64() {
		return NewInt(v.Int64())
	}
	return ConstantScalar{Kind: ScalarInt, Big: new(big.Int).Set(v)}
}

// NewFloat returns a ConstantScalar holding v.
func NewFloat(v float64) ConstantScalar { return ConstantScalar{Kind: ScalarFloat, Float: v} }

// NewString returns a ConstantScalar holding v.
func NewString(v string) ConstantScalar { return ConstantScalar{Kind: ScalarString, String: v} }

// NewBytes returns a ConstantScalar holding v.
func NewBytes(v []byte) ConstantScalar { return ConstantScalar{Kind: ScalarBytes, Bytes: v} }

// NewBool returns the distinguished True/False scalar for v.
func NewBool(v bool) ConstantScalar {
	if v {
		return True
	}
	return False
}

// AsBigInt returns the scalar's integer value as a big.Int, regardless of
// whether it is stored inline or promoted.
func (c ConstantScalar) AsBigInt() *big.Int {
	if c.Big != nil {
		return new(big.Int).Set(c.Big)
	}
	return big.NewInt(c.Int)
}

// Equal reports whether two scalars are equal under host (Python-like)
// equality: numeric scalars compare by value across int/float/bool, and
// other kinds compare structurally within their own kind.
func (c ConstantScalar) Equal(other ConstantScalar) bool {
	cn, cIsNum := c.numeric()
	on, oIsNum := other.numeric()
	if cIsNum && oIsNum {
		return cn.Cmp(on) == 0
	}
	if c.Kind == ScalarFloat || other.Kind == ScalarFloat {
		toFloat := func(s ConstantScalar, n *big.Int) (float64, bool) {
			if s.Kind == ScalarFloat {
				return s.Float, true
			}
			if n == nil {
				return 0, false
			}
			f, _ := new(big.Float).SetInt(n).Float64()
			return f, true
		}
		cf, cOk := toFloat(c, cn)
		of, oOk := toFloat(other, on)
		return cOk && oOk && cf == of
	}
	if c.Kind != other.Kind {
		return false
	}
	switch c.Kind {
	case ScalarNull:
		return true
	case ScalarString:
		return c.String == other.String
	case ScalarBytes:
		return string(c.Bytes) == string(other.Bytes)
	}
	return false
}

// numeric returns the scalar as a big.Rat-free comparable big.Int for
// integral kinds (int/bool), or false if the scalar isn't exactly
// comparable that way (floats are compared via a different path to avoid
// precision-losing round trips through big.Int in the common case).
func (c ConstantScalar) numeric() (*big.Int, bool) {
	switch c.Kind {
	case ScalarBool:
		if c.Bool {
			return big.NewInt(1), true
		}
		return big.NewInt(0), true
	case ScalarInt:
		return c.AsBigInt(), true
	}
	return nil, false
}

func (c ConstantScalar) String() string {
	switch c.Kind {
	case ScalarNull:
		return "None"
	case ScalarBool:
		if c.Bool {
			return "True"
		}
		return "False"
	case ScalarInt:
		if c.Big != nil {
			return c.Big.String()
		}
		return strconv.FormatInt(c.Int, 10)
	case ScalarFloat:
		return formatFloat(c.Float)
	case ScalarString:
		return strconv.Quote(c.String)
	case ScalarBytes:
		return fmt.Sprintf("b%s", strconv.Quote(string(c.Bytes)))
	default:
		return "<?scalar>"
	}
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") && !strings.Contains(s, "inf") && !strings.Contains(s, "nan") {
		s += ".0"
	}
	return s
}

func (ConstantScalar) Defs() map[*VariableInsn]struct{} { return nil }
func (ConstantScalar) replaceVar(*VariableInsn, Value)  {}

// ConstantTuple is an immutable ordered sequence of values.
type ConstantTuple struct{ Values []Value }

func (ConstantTuple) isValue() {}

func (t ConstantTuple) String() string {
	if len(t.Values) == 1 {
		return "(" + t.Values[0].String() + ",)"
	}
	return "(" + joinValues(t.Values) + ")"
}
func (t ConstantTuple) Defs() map[*VariableInsn]struct{} { return unionDefs(t.Values) }
func (t ConstantTuple) replaceVar(old *VariableInsn, new Value) {
	replaceInSlice(t.Values, old, new)
}

// ConstantList is a mutable ordered sequence used as a list-literal seed.
type ConstantList struct{ Values []Value }

func (ConstantList) isValue() {}

func (l ConstantList) String() string { return "[" + joinValues(l.Values) + "]" }
func (l ConstantList) Defs() map[*VariableInsn]struct{} { return unionDefs(l.Values) }
func (l ConstantList) replaceVar(old *VariableInsn, new Value) {
	replaceInSlice(l.Values, old, new)
}

// DictPair is a single key/value entry of a ConstantDict, in insertion
// order.
type DictPair struct {
	Key   Value
	Value Value
}

// ConstantDict is a mutable ordered mapping used as a dict-literal seed.
type ConstantDict struct{ Pairs []DictPair }

func (ConstantDict) isValue() {}

func (d ConstantDict) String() string {
	parts := make([]string, len(d.Pairs))
	for i, p := range d.Pairs {
		parts[i] = p.Key.String() + ": " + p.Value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (d ConstantDict) Defs() map[*VariableInsn]struct{} {
	keys := make([]Value, len(d.Pairs))
	vals := make([]Value, len(d.Pairs))
	for i, p := range d.Pairs {
		keys[i] = p.Key
		vals[i] = p.Value
	}
	defs := unionDefs(keys)
	for d2 := range unionDefs(vals) {
		if defs == nil {
			defs = make(map[*VariableInsn]struct{})
		}
		defs[d2] = struct{}{}
	}
	return defs
}

func (d ConstantDict) replaceVar(old *VariableInsn, new Value) {
	for i, p := range d.Pairs {
		if ref, ok := p.Key.(*VariableInsn); ok && ref == old {
			d.Pairs[i].Key = new
		} else {
			p.Key.replaceVar(old, new)
		}
		if ref, ok := p.Value.(*VariableInsn); ok && ref == old {
			d.Pairs[i].Value = new
		} else {
			p.Value.replaceVar(old, new)
		}
	}
}

// ConstantSet is a mutable set-literal seed.
type ConstantSet struct{ Values []Value }

func (ConstantSet) isValue() {}

func (s ConstantSet) String() string {
	if len(s.Values) == 0 {
		return "set()"
	}
	return "set(" + joinValues(s.Values) + ")"
}
func (s ConstantSet) Defs() map[*VariableInsn]struct{} { return unionDefs(s.Values) }
func (s ConstantSet) replaceVar(old *VariableInsn, new Value) {
	replaceInSlice(s.Values, old, new)
}

// ConstantFrozenSet is an immutable set literal.
type ConstantFrozenSet struct{ Values []Value }

func (ConstantFrozenSet) isValue() {}

func (s ConstantFrozenSet) String() string {
	return "frozenset(" + joinValues(s.Values) + ")"
}
func (s ConstantFrozenSet) Defs() map[*VariableInsn]struct{} { return unionDefs(s.Values) }
func (s ConstantFrozenSet) replaceVar(old *VariableInsn, new Value) {
	replaceInSlice(s.Values, old, new)
}

// ConstantGlobal is a symbolic reference to a named global: a module path,
// plus an optional dotted member path within it (nil for a bare module
// reference).
type ConstantGlobal struct {
	Module string
	Name   *string
}

func (ConstantGlobal) isValue() {}

// NewModuleGlobal builds a bare module reference (Name nil). Use
// NewGlobalMember for a reference with a member path; note that it keeps
// an empty name as a non-nil "" rather than treating it as a bare module.
func NewModuleGlobal(module string) ConstantGlobal {
	return ConstantGlobal{Module: module}
}

func NewGlobalMember(module, name string) ConstantGlobal {
	n := name
	return ConstantGlobal{Module: module, Name: &n}
}

func (g ConstantGlobal) String() string {
	if g.Name == nil {
		return g.Module
	}
	return g.Module + "." + *g.Name
}
func (ConstantGlobal) Defs() map[*VariableInsn]struct{} { return nil }
func (ConstantGlobal) replaceVar(*VariableInsn, Value)  {}

func replaceInSlice(values []Value, old *VariableInsn, new Value) {
	for i, v := range values {
		if ref, ok := v.(*VariableInsn); ok && ref == old {
			values[i] = new
		} else {
			v.replaceVar(old, new)
		}
	}
}

func joinValues(values []Value) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

// sortedUses returns insns in a stable order for deterministic iteration
// where the original only needed set semantics (e.g. GlobalReductionPass's
// use-set snapshot). Ordering is by instruction name for VariableInsns and
// falls back to pointer-derived identity only to break ties deterministically
// within a single process run; it is not meant to be stable across runs.
func sortedUses(uses map[Insn]struct{}) []Insn {
	out := make([]Insn, 0, len(uses))
	for u := range uses {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		return insnOrderKey(out[i]) < insnOrderKey(out[j])
	})
	return out
}

func insnOrderKey(i Insn) string {
	if v, ok := i.(*VariableInsn); ok {
		return v.name
	}
	return fmt.Sprintf("%p", i)
}
