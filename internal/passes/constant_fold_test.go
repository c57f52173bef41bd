package passes

import (
	"math/big"
	"testing"

	"github.com/lunbun/peekle/internal/il"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singleInsnProgram(op il.Op, args ...il.Value) (*il.Program, *il.VariableInsn) {
	p := il.NewProgram()
	v := p.AppendVarInsn(op, args...)
	return p, v
}

func TestConstantValuePassFoldsArithmetic(t *testing.T) {
	cases := []struct {
		name     string
		op       il.Op
		a, b     il.ConstantScalar
		expected il.ConstantScalar
	}{
		{"add ints", il.OpADD, il.NewInt(1), il.NewInt(2), il.NewInt(3)},
		{"sub ints", il.OpSUB, il.NewInt(5), il.NewInt(2), il.NewInt(3)},
		{"mul mixed float", il.OpMUL, il.NewInt(2), il.NewFloat(1.5), il.NewFloat(3)},
		{"floor div", il.OpFLOOR_DIV, il.NewInt(-7), il.NewInt(2), il.NewInt(-4)},
		{"mod sign of divisor", il.OpMOD, il.NewInt(-7), il.NewInt(2), il.NewInt(1)},
		{"true div", il.OpTRUE_DIV, il.NewInt(3), il.NewInt(2), il.NewFloat(1.5)},
		{"pow int", il.OpPOW, il.NewInt(2), il.NewInt(10), il.NewInt(1024)},
		{"bitwise and", il.OpBITWISE_AND, il.NewInt(6), il.NewInt(3), il.NewInt(2)},
		{"lshift", il.OpLSHIFT, il.NewInt(1), il.NewInt(4), il.NewInt(16)},
		{"equals", il.OpEQUALS, il.NewInt(1), il.NewBool(true), il.True},
		{"less than", il.OpLESS_THAN, il.NewInt(1), il.NewInt(2), il.True},
		{"string concat", il.OpADD, il.NewString("ab"), il.NewString("cd"), il.NewString("abcd")},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			prog, v := singleInsnProgram(c.op, c.a, c.b)
			modified := (&ConstantValuePass{}).Run(prog)
			require.True(t, modified)
			assert.NotEqual(t, il.Insn(v), prog.Begin(), "folded insn should have been replaced")
			require.Len(t, prog.All(), 0, "the value-only result leaves no Insn in the program")
		})
	}
}

func TestConstantValuePassSkipsDivisionByZero(t *testing.T) {
	prog, _ := singleInsnProgram(il.OpTRUE_DIV, il.NewInt(1), il.NewInt(0))
	modified := (&ConstantValuePass{}).Run(prog)
	assert.False(t, modified)
	assert.Len(t, prog.All(), 1)
}

func TestConstantValuePassSkipsNonConstantOperand(t *testing.T) {
	prog := il.NewProgram()
	nonConst := prog.AppendVarInsn(il.OpLOCAL, il.NewInt(0))
	prog.AppendVarInsn(il.OpADD, nonConst, il.NewInt(1))
	modified := (&ConstantValuePass{}).Run(prog)
	assert.False(t, modified)
}

func TestConstantValuePassPromotesBigInt(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 100)
	prog, _ := singleInsnProgram(il.OpMUL, il.NewBigInt(huge), il.NewInt(2))
	modified := (&ConstantValuePass{}).Run(prog)
	require.True(t, modified)
}

func TestConstantGlobalPassFoldsModuleAndName(t *testing.T) {
	prog, _ := singleInsnProgram(il.OpGLOBAL, il.NewString("os"), il.NewString("path"))
	modified := (&ConstantGlobalPass{}).Run(prog)
	require.True(t, modified)
	assert.Empty(t, prog.All())
}

func TestConstantGlobalPassBareModule(t *testing.T) {
	prog, _ := singleInsnProgram(il.OpGLOBAL, il.NewString("os"))
	modified := (&ConstantGlobalPass{}).Run(prog)
	assert.True(t, modified)
}

func TestConstantGetItemPassTupleIndex(t *testing.T) {
	prog, _ := singleInsnProgram(il.OpGET_ITEM,
		il.ConstantTuple{Values: []il.Value{il.NewString("a"), il.NewString("b")}},
		il.NewInt(1))
	modified := (&ConstantGetItemPass{}).Run(prog)
	require.True(t, modified)
}

func TestConstantGetItemPassNegativeIndex(t *testing.T) {
	prog, _ := singleInsnProgram(il.OpGET_ITEM,
		il.ConstantList{Values: []il.Value{il.NewInt(10), il.NewInt(20), il.NewInt(30)}},
		il.NewInt(-1))
	modified := (&ConstantGetItemPass{}).Run(prog)
	require.True(t, modified)
}

func TestConstantGetItemPassOutOfRangeSkips(t *testing.T) {
	prog, _ := singleInsnProgram(il.OpGET_ITEM,
		il.ConstantTuple{Values: []il.Value{il.NewInt(1)}},
		il.NewInt(5))
	modified := (&ConstantGetItemPass{}).Run(prog)
	assert.False(t, modified)
}

func TestConstantGetItemPassDictKeyLookup(t *testing.T) {
	prog, _ := singleInsnProgram(il.OpGET_ITEM,
		il.ConstantDict{Pairs: []il.DictPair{
			{Key: il.NewString("a"), Value: il.NewInt(1)},
			{Key: il.NewString("b"), Value: il.NewInt(2)},
		}},
		il.NewString("b"))
	modified := (&ConstantGetItemPass{}).Run(prog)
	require.True(t, modified, "ADR-4: dict folding must use key equality, not positional indexing")
}

func TestConstantGetItemPassDictKeyMiss(t *testing.T) {
	prog, _ := singleInsnProgram(il.OpGET_ITEM,
		il.ConstantDict{Pairs: []il.DictPair{{Key: il.NewString("a"), Value: il.NewInt(1)}}},
		il.NewString("missing"))
	modified := (&ConstantGetItemPass{}).Run(prog)
	assert.False(t, modified)
}

func TestInlineMutableConstantPassInlinesSingleUse(t *testing.T) {
	prog := il.NewProgram()
	seed := il.ConstantList{Values: []il.Value{il.NewInt(1)}}
	mc := prog.AppendVarInsn(il.OpMUTABLE_CONSTANT, seed)
	prog.AppendInsn(il.OpSTOP, mc)

	modified := (&InlineMutableConstantPass{}).Run(prog)
	require.True(t, modified)
	insns := prog.All()
	require.Len(t, insns, 1)
	assert.Equal(t, il.OpSTOP, insns[0].Op())
}

func TestInlineMutableConstantPassSkipsMultiUse(t *testing.T) {
	prog := il.NewProgram()
	seed := il.ConstantList{Values: []il.Value{il.NewInt(1)}}
	mc := prog.AppendVarInsn(il.OpMUTABLE_CONSTANT, seed)
	prog.AppendInsn(il.OpSTOP, mc)
	prog.AppendInsn(il.OpSTOP, mc)

	modified := (&InlineMutableConstantPass{}).Run(prog)
	assert.False(t, modified)
}
