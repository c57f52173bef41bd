package il

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgramAppendAndString(t *testing.T) {
	prog := NewProgram()
	a := prog.AppendVarInsn(OpLOCAL, NewInt(0))
	prog.AppendInsn(OpSET_ATTR, a, NewString("x"), NewInt(1))
	prog.AppendInsn(OpSTOP)

	expected := "v0 = local 0\n" + `set_attr v0, "x", 1` + "\n" + "stop"
	assert.Equal(t, expected, prog.String())
}

func TestInsertInsnRegistersUse(t *testing.T) {
	prog := NewProgram()
	v := prog.AppendVarInsn(OpLOCAL, NewInt(0))
	use := prog.AppendInsn(OpSET_ATTR, v, NewString("x"), NewInt(1))

	require.True(t, v.HasUses())
	uses := v.Uses()
	require.Len(t, uses, 1)
	assert.Same(t, use, uses[0])
}

func TestRemoveInsnClearsUses(t *testing.T) {
	prog := NewProgram()
	v := prog.AppendVarInsn(OpLOCAL, NewInt(0))
	use := prog.AppendInsn(OpSET_ATTR, v, NewString("x"), NewInt(1))

	prog.RemoveInsn(use, false)
	assert.False(t, v.HasUses())
}

func TestRemoveInsnWithUsesPanics(t *testing.T) {
	prog := NewProgram()
	v := prog.AppendVarInsn(OpLOCAL, NewInt(0))
	prog.AppendInsn(OpSET_ATTR, v, NewString("x"), NewInt(1))

	assert.Panics(t, func() { prog.RemoveInsn(v, false) })
}

func TestRemoveInsnSkipUseCheckAllowsDetach(t *testing.T) {
	prog := NewProgram()
	v := prog.AppendVarInsn(OpLOCAL, NewInt(0))
	prog.AppendInsn(OpSET_ATTR, v, NewString("x"), NewInt(1))

	assert.NotPanics(t, func() { prog.RemoveInsn(v, true) })
}

func TestReplaceInsnInsnToInsnRewritesUses(t *testing.T) {
	prog := NewProgram()
	old := prog.AppendVarInsn(OpLOCAL, NewInt(0))
	use := prog.AppendInsn(OpSET_ATTR, old, NewString("x"), NewInt(1))

	fresh := prog.CreateVarInsn(OpLOCAL, NewInt(1))
	prog.ReplaceInsn(old, fresh, false)

	assert.Same(t, fresh, use.Args()[0])
	assert.True(t, fresh.HasUses())
	assert.False(t, old.HasUses())
}

func TestReplaceInsnInsnToInsnRejectsNonVariableWhenUsed(t *testing.T) {
	prog := NewProgram()
	old := prog.AppendVarInsn(OpLOCAL, NewInt(0))
	prog.AppendInsn(OpSET_ATTR, old, NewString("x"), NewInt(1))

	replacement := NewPlainInsn(OpSTOP)
	assert.Panics(t, func() { prog.ReplaceInsn(old, replacement, false) })
}

func TestReplaceInsnInsnToValueSubstitutesOperand(t *testing.T) {
	prog := NewProgram()
	old := prog.AppendVarInsn(OpLOCAL, NewInt(0))
	use := prog.AppendInsn(OpSET_ATTR, old, NewString("x"), NewInt(1))

	prog.ReplaceInsn(old, NewInt(42), true)

	assert.Equal(t, "42", use.Args()[0].String())
}

func TestReplaceInsnValueKindInferredWithoutFlag(t *testing.T) {
	prog := NewProgram()
	old := prog.AppendVarInsn(OpLOCAL, NewInt(0))
	use := prog.AppendInsn(OpSET_ATTR, old, NewString("x"), NewInt(1))

	prog.ReplaceInsn(old, NewInt(7), false)
	assert.Equal(t, "7", use.Args()[0].String())
}

func TestCursorIterationAfterRemove(t *testing.T) {
	prog := NewProgram()
	prog.AppendInsn(OpSTOP)
	b := prog.AppendInsn(OpSTOP)
	prog.AppendInsn(OpSTOP)

	cur := prog.Cursor()
	var seen int
	for insn, ok := cur.Next(); ok; insn, ok = cur.Next() {
		seen++
		if insn == b {
			cur.RemoveInsn()
		}
	}
	assert.Equal(t, 3, seen)
	assert.Len(t, prog.All(), 2)
}

func TestCursorReplaceInsnToValueSteppingBack(t *testing.T) {
	prog := NewProgram()
	v := prog.AppendVarInsn(OpLOCAL, NewInt(0))
	prog.AppendInsn(OpSTOP)

	cur := prog.Cursor()
	insn, _ := cur.Next()
	require.Same(t, Insn(v), insn)
	cur.ReplaceInsn(NewInt(5), true)

	next, ok := cur.Next()
	require.True(t, ok)
	assert.Equal(t, OpSTOP, next.Op(), "cursor should resume at the instruction after the replaced one")
}

func TestCursorMoveInsn(t *testing.T) {
	prog := NewProgram()
	first := prog.AppendInsn(OpSTOP)
	second := prog.AppendInsn(OpSET_ATTR, NewString("x"), NewInt(1))
	third := prog.AppendInsn(OpSTOP)

	cur := prog.Cursor()
	cur.Next() // first
	insn, _ := cur.Next()
	require.Same(t, Insn(second), insn)
	cur.MoveInsn(third)

	all := prog.All()
	require.Len(t, all, 3)
	assert.Same(t, Insn(first), all[0])
	assert.Same(t, Insn(third), all[1])
	assert.Same(t, Insn(second), all[2])
}

func TestCreateVarInsnNamesAreSequential(t *testing.T) {
	prog := NewProgram()
	a := prog.CreateVarInsn(OpLOCAL, NewInt(0))
	b := prog.CreateVarInsn(OpLOCAL, NewInt(1))
	assert.Equal(t, "v0", a.Name())
	assert.Equal(t, "v1", b.Name())
}

func TestInsertInsnTwiceViolatesInvariant(t *testing.T) {
	prog := NewProgram()
	insn := prog.CreateVarInsn(OpLOCAL, NewInt(0))
	prog.InsertInsn(insn, nil)
	assert.Panics(t, func() { prog.InsertInsn(insn, nil) })
}
