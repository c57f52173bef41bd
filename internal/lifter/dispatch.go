package lifter

import (
	"strings"

	"github.com/lunbun/peekle/internal/il"
	"github.com/lunbun/peekle/internal/pickleops"
)

// step lifts a single decoded opcode, mutating the disassembler's stack,
// metastack, memo and program. It reports stop=true after STOP, at which
// point the caller halts disassembly (matching pickle's own one-value
// convention — trailing opcodes after STOP are not meaningful).
func (d *disassembler) step(rec pickleops.Record) (stop bool, err error) {
	switch rec.Op {
	case pickleops.Mark:
		d.pushMark()

	case pickleops.Stop:
		v, e := d.pop()
		if e != nil {
			return false, e
		}
		d.program.AppendInsn(il.OpSTOP, v)
		return true, nil

	case pickleops.Pop:
		_, e := d.pop()
		return false, e

	case pickleops.PopMark:
		_, e := d.popMark()
		return false, e

	case pickleops.Dup:
		v, e := d.top()
		if e != nil {
			return false, e
		}
		d.push(v)

	case pickleops.Float, pickleops.Int, pickleops.BinInt, pickleops.BinInt1, pickleops.Long,
		pickleops.BinInt2, pickleops.None_, pickleops.String, pickleops.BinString,
		pickleops.ShortBinString, pickleops.Unicode, pickleops.BinUnicode, pickleops.NewTrue,
		pickleops.NewFalse, pickleops.Long1, pickleops.Long4, pickleops.BinBytes,
		pickleops.ShortBinBytes, pickleops.ShortBinUnicode, pickleops.BinUnicode8,
		pickleops.BinBytes8, pickleops.ByteArray8, pickleops.BinFloat:
		d.push(constant(rec.Arg))

	case pickleops.Reduce:
		args, e := d.pop()
		if e != nil {
			return false, e
		}
		fn, e := d.pop()
		if e != nil {
			return false, e
		}
		d.push(d.program.AppendVarInsn(il.OpCALL, fn, args))

	case pickleops.Build:
		args, e := d.pop()
		if e != nil {
			return false, e
		}
		obj, e := d.top()
		if e != nil {
			return false, e
		}
		d.program.AppendInsn(il.OpBUILD, obj, args)

	case pickleops.Global:
		module, name, ok := strings.Cut(rec.Arg.(string), " ")
		if !ok {
			return false, &StackError{Message: "malformed GLOBAL argument", Pos: rec.Pos}
		}
		d.push(il.NewGlobalMember(module, name))

	case pickleops.Dict:
		flat, e := d.popMark()
		if e != nil {
			return false, e
		}
		pairs, e := pairUp(flat, rec.Pos)
		if e != nil {
			return false, e
		}
		d.push(d.program.AppendVarInsn(il.OpMUTABLE_CONSTANT, dictValue(pairs)))

	case pickleops.EmptyDict:
		d.push(d.program.AppendVarInsn(il.OpMUTABLE_CONSTANT, dictValue(nil)))

	case pickleops.Appends:
		items, e := d.popMark()
		if e != nil {
			return false, e
		}
		l, e := d.top()
		if e != nil {
			return false, e
		}
		d.program.AppendInsn(il.OpEXTEND, l, il.ConstantList{Values: items})

	case pickleops.Get, pickleops.BinGet, pickleops.LongBinGet:
		v, ok := d.memo[memoIndex(rec.Arg)]
		if !ok {
			return false, &StackError{Message: "GET references an unset memo slot", Pos: rec.Pos}
		}
		d.push(v)

	case pickleops.List:
		items, e := d.popMark()
		if e != nil {
			return false, e
		}
		d.push(d.program.AppendVarInsn(il.OpMUTABLE_CONSTANT, il.ConstantList{Values: items}))

	case pickleops.EmptyList:
		d.push(d.program.AppendVarInsn(il.OpMUTABLE_CONSTANT, il.ConstantList{}))

	case pickleops.Put, pickleops.BinPut, pickleops.LongBinPut:
		v, e := d.top()
		if e != nil {
			return false, e
		}
		d.memo[memoIndex(rec.Arg)] = v

	case pickleops.SetItem:
		value, e := d.pop()
		if e != nil {
			return false, e
		}
		key, e := d.pop()
		if e != nil {
			return false, e
		}
		dict, e := d.top()
		if e != nil {
			return false, e
		}
		d.program.AppendInsn(il.OpSET_ITEM, dict, key, value)

	case pickleops.Tuple:
		items, e := d.popMark()
		if e != nil {
			return false, e
		}
		d.push(il.ConstantTuple{Values: items})

	case pickleops.EmptyTuple:
		d.push(il.ConstantTuple{})

	case pickleops.SetItems:
		flat, e := d.popMark()
		if e != nil {
			return false, e
		}
		dict, e := d.top()
		if e != nil {
			return false, e
		}
		pairs, e := pairUp(flat, rec.Pos)
		if e != nil {
			return false, e
		}
		for _, p := range pairs {
			d.program.AppendInsn(il.OpSET_ITEM, dict, p.Key, p.Value)
		}

	case pickleops.NewObj:
		args, e := d.pop()
		if e != nil {
			return false, e
		}
		cls, e := d.pop()
		if e != nil {
			return false, e
		}
		d.push(d.program.AppendVarInsn(il.OpCALL, cls, args))

	case pickleops.Tuple1:
		a, e := d.pop()
		if e != nil {
			return false, e
		}
		d.push(il.ConstantTuple{Values: []il.Value{a}})

	case pickleops.Tuple2:
		b, e := d.pop()
		if e != nil {
			return false, e
		}
		a, e := d.pop()
		if e != nil {
			return false, e
		}
		d.push(il.ConstantTuple{Values: []il.Value{a, b}})

	case pickleops.Tuple3:
		c, e := d.pop()
		if e != nil {
			return false, e
		}
		b, e := d.pop()
		if e != nil {
			return false, e
		}
		a, e := d.pop()
		if e != nil {
			return false, e
		}
		d.push(il.ConstantTuple{Values: []il.Value{a, b, c}})

	case pickleops.EmptySet:
		d.push(d.program.AppendVarInsn(il.OpMUTABLE_CONSTANT, il.ConstantSet{}))

	case pickleops.FrozenSet:
		items, e := d.popMark()
		if e != nil {
			return false, e
		}
		d.push(d.program.AppendVarInsn(il.OpMUTABLE_CONSTANT, il.ConstantFrozenSet{Values: items}))

	case pickleops.StackGlobal:
		name, e := d.pop()
		if e != nil {
			return false, e
		}
		module, e := d.pop()
		if e != nil {
			return false, e
		}
		d.push(d.program.AppendVarInsn(il.OpGLOBAL, module, name))

	case pickleops.Memoize:
		v, e := d.top()
		if e != nil {
			return false, e
		}
		d.memo[int64(len(d.memo))] = v

	case pickleops.Proto, pickleops.Frame:
		// Framing/protocol metadata; no stack or IL effect.

	default:
		return false, &UnknownOpcodeError{Op: rec.Op, Pos: rec.Pos}
	}

	return false, nil
}

func pairUp(flat []il.Value, pos int64) ([]il.DictPair, error) {
	if len(flat)%2 != 0 {
		return nil, &StackError{Message: "dict/setitems operand count is odd", Pos: pos}
	}
	pairs := make([]il.DictPair, 0, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		pairs = append(pairs, il.DictPair{Key: flat[i], Value: flat[i+1]})
	}
	return pairs, nil
}

func dictValue(pairs []il.DictPair) il.ConstantDict {
	return il.ConstantDict{Pairs: pairs}
}
