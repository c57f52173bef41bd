package passes

import (
	"testing"

	"github.com/lunbun/peekle/internal/il"
	"github.com/lunbun/peekle/internal/oracle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestDeadCodePassRemovesUnusedPureInsn(t *testing.T) {
	prog := il.NewProgram()
	prog.AppendVarInsn(il.OpADD, il.NewInt(1), il.NewInt(2))

	modified := (&DeadCodePass{oracle: oracle.NewFixture()}).Run(prog)
	assert.True(t, modified)
	assert.Empty(t, prog.All())
}

func TestDeadCodePassDowngradesUnusedSideEffectInsn(t *testing.T) {
	prog := il.NewProgram()
	build := prog.AppendVarInsn(il.OpBUILD, il.NewInt(1))
	_ = build

	modified := (&DeadCodePass{oracle: oracle.NewFixture()}).Run(prog)
	require.True(t, modified)
	insns := prog.All()
	require.Len(t, insns, 1)
	assert.Equal(t, il.OpBUILD, insns[0].Op())
	_, stillVar := insns[0].(*il.VariableInsn)
	assert.False(t, stillVar, "a downgraded side-effecting Insn loses its SSA name")
}

func TestDeadCodePassKeepsUsedInsn(t *testing.T) {
	prog := il.NewProgram()
	v := prog.AppendVarInsn(il.OpADD, il.NewInt(1), il.NewInt(2))
	prog.AppendInsn(il.OpSTOP, v)

	modified := (&DeadCodePass{oracle: oracle.NewFixture()}).Run(prog)
	assert.False(t, modified)
	assert.Len(t, prog.All(), 2)
}

func TestDeadCodePassKeepsUnresolvedCall(t *testing.T) {
	prog := il.NewProgram()
	prog.AppendVarInsn(il.OpCALL, il.NewGlobalMember("os", "system"), il.ConstantTuple{Values: []il.Value{il.NewString("ls")}})

	modified := (&DeadCodePass{oracle: oracle.NewFixture()}).Run(prog)
	assert.True(t, modified, "a call with an unknown callee might have a side effect, so it is downgraded to a plain Insn, not removed")
	assert.Len(t, prog.All(), 1)
}

func TestDeadCodePassRemovesUnusedPureCall(t *testing.T) {
	o := oracle.NewFixture().
		WithSymbol("builtins", strPtr("len"), "builtins.len").
		WithSideEffectFree("builtins.len")
	prog := il.NewProgram()
	prog.AppendVarInsn(il.OpCALL, il.NewGlobalMember("builtins", "len"), il.ConstantTuple{Values: []il.Value{il.NewString("x")}})

	modified := (&DeadCodePass{oracle: o}).Run(prog)
	assert.True(t, modified)
	assert.Empty(t, prog.All())
}
