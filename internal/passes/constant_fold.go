package passes

import (
	"math"
	"math/big"

	"github.com/lunbun/peekle/internal/il"
)

// ConstantValuePass folds a binary arithmetic/comparison/bitwise VariableInsn
// whose two operands are both ConstantScalar into its host-semantics
// result, grounded on constant_fold.py's ConstantValuePass.
type ConstantValuePass struct{}

func (*ConstantValuePass) Name() string { return "Constant Value Folding" }

func (*ConstantValuePass) Run(program *il.Program) bool {
	modified := false
	c := program.Cursor()
	for insn, ok := c.Next(); ok; insn, ok = c.Next() {
		v, isVar := insn.(*il.VariableInsn)
		if !isVar || !il.IsBinaryArithmetic(v.Op()) {
			continue
		}
		args := v.Args()
		if len(args) != 2 {
			continue
		}
		a, aOk := args[0].(il.ConstantScalar)
		b, bOk := args[1].(il.ConstantScalar)
		if !aOk || !bOk {
			continue
		}

		result, ok := evalBinaryScalar(v.Op(), a, b)
		if !ok {
			continue
		}
		c.ReplaceInsn(result, true)
		modified = true
	}
	return modified
}

// ConstantGlobalPass folds a GLOBAL VariableInsn whose module (and optional
// member name) operands are constant strings into a ConstantGlobal value.
type ConstantGlobalPass struct{}

func (*ConstantGlobalPass) Name() string { return "Constant Global Folding" }

func (*ConstantGlobalPass) Run(program *il.Program) bool {
	modified := false
	c := program.Cursor()
	for insn, ok := c.Next(); ok; insn, ok = c.Next() {
		v, isVar := insn.(*il.VariableInsn)
		if !isVar || v.Op() != il.OpGLOBAL {
			continue
		}
		args := v.Args()
		module, ok := args[0].(il.ConstantScalar)
		if !ok || module.Kind != il.ScalarString {
			continue
		}

		var name *string
		if len(args) > 1 {
			n, ok := args[1].(il.ConstantScalar)
			if !ok || n.Kind != il.ScalarString {
				continue
			}
			name = &n.String
		}

		c.ReplaceInsn(il.ConstantGlobal{Module: module.String, Name: name}, true)
		modified = true
	}
	return modified
}

// ConstantGetItemPass folds GET_ITEM against a constant tuple/list/dict
// container with a constant scalar key. Per ADR-4 in DESIGN.md, dict
// lookup is genuine key equality over Pairs (not the reference
// implementation's accidental positional indexing).
type ConstantGetItemPass struct{}

func (*ConstantGetItemPass) Name() string { return "Constant Get Item Folding" }

func (*ConstantGetItemPass) Run(program *il.Program) bool {
	modified := false
	c := program.Cursor()
	for insn, ok := c.Next(); ok; insn, ok = c.Next() {
		v, isVar := insn.(*il.VariableInsn)
		if !isVar || v.Op() != il.OpGET_ITEM {
			continue
		}
		args := v.Args()
		if len(args) != 2 {
			continue
		}
		key, ok := args[1].(il.ConstantScalar)
		if !ok {
			continue
		}

		var (
			value    il.Value
			resolved bool
		)
		switch container := args[0].(type) {
		case il.ConstantTuple:
			value, resolved = indexSequence(container.Values, key)
		case il.ConstantList:
			value, resolved = indexSequence(container.Values, key)
		case il.ConstantDict:
			value, resolved = lookupDict(container.Pairs, key)
		default:
			continue
		}
		if !resolved {
			continue
		}

		c.ReplaceInsn(value, true)
		modified = true
	}
	return modified
}

// InlineMutableConstantPass replaces a MUTABLE_CONSTANT VariableInsn that
// has exactly one use with its seed value directly, avoiding a pointless
// intermediate name for a container nothing else aliases. It is left alone
// when that use is a BUILD/EXTEND/SET_ITEM/SET_ATTR mutating it as its
// target. Per ADR-1 in
// DESIGN.md this sets modified on every replacement, fixing the reference
// implementation's silent-progress bug.
type InlineMutableConstantPass struct{}

func (*InlineMutableConstantPass) Name() string { return "Inline Mutable Constants" }

func (*InlineMutableConstantPass) Run(program *il.Program) bool {
	modified := false
	c := program.Cursor()
	for insn, ok := c.Next(); ok; insn, ok = c.Next() {
		v, isVar := insn.(*il.VariableInsn)
		if !isVar || v.Op() != il.OpMUTABLE_CONSTANT {
			continue
		}
		uses := v.Uses()
		if len(uses) != 1 {
			continue
		}
		switch uses[0].Op() {
		case il.OpBUILD, il.OpEXTEND, il.OpSET_ITEM, il.OpSET_ATTR:
			if target, ok := uses[0].Args()[0].(*il.VariableInsn); ok && target == v {
				continue
			}
		}

		c.ReplaceInsn(v.Args()[0], true)
		modified = true
	}
	return modified
}

func indexSequence(values []il.Value, key il.ConstantScalar) (il.Value, bool) {
	idx, ok := scalarAsIndex(key)
	if !ok {
		return nil, false
	}
	if idx < 0 {
		idx += int64(len(values))
	}
	if idx < 0 || idx >= int64(len(values)) {
		return nil, false
	}
	return values[idx], true
}

func lookupDict(pairs []il.DictPair, key il.ConstantScalar) (il.Value, bool) {
	for _, p := range pairs {
		k, ok := p.Key.(il.ConstantScalar)
		if ok && k.Equal(key) {
			return p.Value, true
		}
	}
	return nil, false
}

func scalarAsIndex(c il.ConstantScalar) (int64, bool) {
	switch c.Kind {
	case il.ScalarInt:
		if c.Big != nil {
			if !c.Big.IsInt64() {
				return 0, false
			}
			return c.Big.Int64(), true
		}
		return c.Int, true
	case il.ScalarBool:
		if c.Bool {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func isIntLike(c il.ConstantScalar) bool {
	return c.Kind == il.ScalarInt || c.Kind == il.ScalarBool
}

func scalarAsFloat(c il.ConstantScalar) (float64, bool) {
	switch c.Kind {
	case il.ScalarFloat:
		return c.Float, true
	case il.ScalarBool:
		if c.Bool {
			return 1, true
		}
		return 0, true
	case il.ScalarInt:
		if c.Big != nil {
			f, _ := new(big.Float).SetInt(c.Big).Float64()
			return f, true
		}
		return float64(c.Int), true
	}
	return 0, false
}

// evalBinaryScalar evaluates op on two constant scalars under host
// (Python-like) semantics, returning ok=false for anything unfoldable
// (non-numeric operands where the op requires them, division/modulo by
// zero, a negative shift count) rather than panicking — matching
// constant_fold.py's "skip on exception" behavior.
func evalBinaryScalar(op il.Op, a, b il.ConstantScalar) (il.ConstantScalar, bool) {
	switch op {
	case il.OpEQUALS:
		return il.NewBool(a.Equal(b)), true
	case il.OpNOT_EQUALS:
		return il.NewBool(!a.Equal(b)), true
	case il.OpLESS_THAN, il.OpLESS_EQUALS, il.OpGREATER_THAN, il.OpGREATER_EQUALS:
		return compareScalars(op, a, b)
	case il.OpADD:
		return addScalars(a, b)
	case il.OpSUB, il.OpMUL:
		return arithScalars(op, a, b)
	case il.OpFLOOR_DIV, il.OpMOD:
		return floorDivModScalars(op, a, b)
	case il.OpTRUE_DIV:
		return trueDivScalars(a, b)
	case il.OpPOW:
		return powScalars(a, b)
	case il.OpBITWISE_AND, il.OpBITWISE_OR, il.OpBITWISE_XOR, il.OpLSHIFT, il.OpRSHIFT:
		return bitwiseScalars(op, a, b)
	}
	return il.ConstantScalar{}, false
}

func compareScalars(op il.Op, a, b il.ConstantScalar) (il.ConstantScalar, bool) {
	var cmp int
	switch {
	case isIntLike(a) && isIntLike(b):
		cmp = a.AsBigInt().Cmp(b.AsBigInt())
	case a.Kind == il.ScalarString && b.Kind == il.ScalarString:
		cmp = compareStrings(a.String, b.String)
	case a.Kind == il.ScalarBytes && b.Kind == il.ScalarBytes:
		cmp = compareStrings(string(a.Bytes), string(b.Bytes))
	default:
		af, aOk := scalarAsFloat(a)
		bf, bOk := scalarAsFloat(b)
		if !aOk || !bOk {
			return il.ConstantScalar{}, false
		}
		switch {
		case af < bf:
			cmp = -1
		case af > bf:
			cmp = 1
		default:
			cmp = 0
		}
	}

	var result bool
	switch op {
	case il.OpLESS_THAN:
		result = cmp < 0
	case il.OpLESS_EQUALS:
		result = cmp <= 0
	case il.OpGREATER_THAN:
		result = cmp > 0
	case il.OpGREATER_EQUALS:
		result = cmp >= 0
	}
	return il.NewBool(result), true
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func addScalars(a, b il.ConstantScalar) (il.ConstantScalar, bool) {
	if a.Kind == il.ScalarString && b.Kind == il.ScalarString {
		return il.NewString(a.String + b.String), true
	}
	if a.Kind == il.ScalarBytes && b.Kind == il.ScalarBytes {
		out := make([]byte, 0, len(a.Bytes)+len(b.Bytes))
		out = append(out, a.Bytes...)
		out = append(out, b.Bytes...)
		return il.NewBytes(out), true
	}
	return arithScalars(il.OpADD, a, b)
}

func arithScalars(op il.Op, a, b il.ConstantScalar) (il.ConstantScalar, bool) {
	if !isIntLike(a) || !isIntLike(b) {
		af, aOk := scalarAsFloat(a)
		bf, bOk := scalarAsFloat(b)
		if !aOk || !bOk {
			return il.ConstantScalar{}, false
		}
		switch op {
		case il.OpADD:
			return il.NewFloat(af + bf), true
		case il.OpSUB:
			return il.NewFloat(af - bf), true
		case il.OpMUL:
			return il.NewFloat(af * bf), true
		}
		return il.ConstantScalar{}, false
	}

	ai, bi := a.AsBigInt(), b.AsBigInt()
	result := new(big.Int)
	switch op {
	case il.OpADD:
		result.Add(ai, bi)
	case il.OpSUB:
		result.Sub(ai, bi)
	case il.OpMUL:
		result.Mul(ai, bi)
	default:
		return il.ConstantScalar{}, false
	}
	return il.NewBigInt(result), true
}

// floorDivSign computes the quotient/remainder pair of ai/bi under Python's
// floor-division rule: the remainder always takes the divisor's sign,
// unlike Go's big.Int.QuoRem (truncated toward zero).
func floorDivSign(ai, bi *big.Int) (q, r *big.Int) {
	q, r = new(big.Int), new(big.Int)
	q.QuoRem(ai, bi, r)
	if r.Sign() != 0 && (r.Sign() < 0) != (bi.Sign() < 0) {
		q.Sub(q, big.NewInt(1))
		r.Add(r, bi)
	}
	return q, r
}

func floorDivModScalars(op il.Op, a, b il.ConstantScalar) (il.ConstantScalar, bool) {
	if isIntLike(a) && isIntLike(b) {
		bi := b.AsBigInt()
		if bi.Sign() == 0 {
			return il.ConstantScalar{}, false
		}
		q, r := floorDivSign(a.AsBigInt(), bi)
		if op == il.OpFLOOR_DIV {
			return il.NewBigInt(q), true
		}
		return il.NewBigInt(r), true
	}

	af, aOk := scalarAsFloat(a)
	bf, bOk := scalarAsFloat(b)
	if !aOk || !bOk || bf == 0 {
		return il.ConstantScalar{}, false
	}
	if op == il.OpFLOOR_DIV {
		return il.NewFloat(math.Floor(af / bf)), true
	}
	m := math.Mod(af, bf)
	if m != 0 && (m < 0) != (bf < 0) {
		m += bf
	}
	return il.NewFloat(m), true
}

func trueDivScalars(a, b il.ConstantScalar) (il.ConstantScalar, bool) {
	af, aOk := scalarAsFloat(a)
	bf, bOk := scalarAsFloat(b)
	if !aOk || !bOk || bf == 0 {
		return il.ConstantScalar{}, false
	}
	return il.NewFloat(af / bf), true
}

func powScalars(a, b il.ConstantScalar) (il.ConstantScalar, bool) {
	if isIntLike(a) && isIntLike(b) {
		exp := b.AsBigInt()
		if exp.Sign() >= 0 {
			return il.NewBigInt(new(big.Int).Exp(a.AsBigInt(), exp, nil)), true
		}
	}
	af, aOk := scalarAsFloat(a)
	bf, bOk := scalarAsFloat(b)
	if !aOk || !bOk {
		return il.ConstantScalar{}, false
	}
	return il.NewFloat(math.Pow(af, bf)), true
}

func bitwiseScalars(op il.Op, a, b il.ConstantScalar) (il.ConstantScalar, bool) {
	if !isIntLike(a) || !isIntLike(b) {
		return il.ConstantScalar{}, false
	}
	ai, bi := a.AsBigInt(), b.AsBigInt()
	result := new(big.Int)
	switch op {
	case il.OpBITWISE_AND:
		result.And(ai, bi)
	case il.OpBITWISE_OR:
		result.Or(ai, bi)
	case il.OpBITWISE_XOR:
		result.Xor(ai, bi)
	case il.OpLSHIFT, il.OpRSHIFT:
		if !bi.IsUint64() {
			return il.ConstantScalar{}, false
		}
		shift := uint(bi.Uint64())
		if op == il.OpLSHIFT {
			result.Lsh(ai, shift)
		} else {
			result.Rsh(ai, shift)
		}
	default:
		return il.ConstantScalar{}, false
	}
	return il.NewBigInt(result), true
}
