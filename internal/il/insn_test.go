package il

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpString(t *testing.T) {
	assert.Equal(t, "add", OpADD.String())
	assert.Equal(t, "unknown", Op(999).String())
}

func TestIsBinaryArithmetic(t *testing.T) {
	assert.True(t, IsBinaryArithmetic(OpADD))
	assert.True(t, IsBinaryArithmetic(OpLSHIFT))
	assert.False(t, IsBinaryArithmetic(OpCALL))
	assert.False(t, IsBinaryArithmetic(OpSTOP))
}

func TestHasIntrinsicSideEffect(t *testing.T) {
	assert.True(t, HasIntrinsicSideEffect(OpSET_ATTR))
	assert.True(t, HasIntrinsicSideEffect(OpSTOP))
	assert.False(t, HasIntrinsicSideEffect(OpCALL), "CALL's purity depends on the callee, not the opcode")
	assert.False(t, HasIntrinsicSideEffect(OpADD))
}

func TestPlainInsnString(t *testing.T) {
	insn := NewPlainInsn(OpSTOP)
	assert.Equal(t, "stop", insn.String())

	withArgs := NewPlainInsn(OpSET_ATTR, NewString("x"), NewInt(1))
	assert.Equal(t, `set_attr "x", 1`, withArgs.String())
}

func TestVariableInsnStringVsInsnString(t *testing.T) {
	prog := NewProgram()
	v := prog.AppendVarInsn(OpADD, NewInt(1), NewInt(2))

	assert.Equal(t, "v0", v.String(), "as a Value, a VariableInsn renders just its name")
	assert.Equal(t, "v0 = add 1, 2", InsnString(v))
}

func TestVariableInsnDefsIsSelf(t *testing.T) {
	prog := NewProgram()
	v := prog.CreateVarInsn(OpLOCAL)
	defs := v.Defs()
	require.Len(t, defs, 1)
	_, ok := defs[v]
	assert.True(t, ok)
}

func TestInsnStringDispatchesOnConcreteType(t *testing.T) {
	prog := NewProgram()
	plain := prog.AppendInsn(OpSTOP)
	assert.Equal(t, "stop", InsnString(plain))
}
