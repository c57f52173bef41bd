package passes

import (
	"testing"

	"github.com/lunbun/peekle/internal/il"
	"github.com/lunbun/peekle/internal/oracle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalCallPassRewritesKnownDunder(t *testing.T) {
	o := oracle.NewManifest()
	prog := il.NewProgram()
	prog.AppendVarInsn(il.OpCALL,
		il.NewGlobalMember("builtins", "int.__add__"),
		il.ConstantTuple{Values: []il.Value{il.NewInt(1), il.NewInt(2)}})

	modified := (&GlobalCallPass{oracle: o}).Run(prog)
	require.True(t, modified)
	insns := prog.All()
	require.Len(t, insns, 1)
	assert.Equal(t, il.OpADD, insns[0].Op())
}

func TestGlobalCallPassSkipsArityMismatch(t *testing.T) {
	o := oracle.NewManifest()
	prog := il.NewProgram()
	prog.AppendVarInsn(il.OpCALL,
		il.NewGlobalMember("builtins", "int.__add__"),
		il.ConstantTuple{Values: []il.Value{il.NewInt(1)}})

	modified := (&GlobalCallPass{oracle: o}).Run(prog)
	assert.False(t, modified)
}

func TestInstanceDunderPassRewritesQualifyingCall(t *testing.T) {
	prog := il.NewProgram()
	recv := prog.AppendVarInsn(il.OpLOCAL, il.NewInt(0))
	getattr := prog.AppendVarInsn(il.OpGET_ATTR, recv, il.NewString("__getitem__"))
	prog.AppendVarInsn(il.OpCALL, getattr, il.ConstantTuple{Values: []il.Value{il.NewString("k")}})

	modified := (&InstanceDunderPass{}).Run(prog)
	require.True(t, modified)

	var sawGetItem bool
	for _, insn := range prog.All() {
		if insn.Op() == il.OpGET_ITEM {
			sawGetItem = true
		}
		assert.NotEqual(t, il.OpGET_ATTR, insn.Op(), "the GET_ATTR is removed once its only use is rewritten")
	}
	assert.True(t, sawGetItem)
}

func TestInstanceDunderPassKeepsGetAttrWithOtherUses(t *testing.T) {
	prog := il.NewProgram()
	recv := prog.AppendVarInsn(il.OpLOCAL, il.NewInt(0))
	getattr := prog.AppendVarInsn(il.OpGET_ATTR, recv, il.NewString("__len__"))
	prog.AppendVarInsn(il.OpCALL, getattr, il.ConstantTuple{})
	prog.AppendInsn(il.OpSTOP, getattr)

	modified := (&InstanceDunderPass{}).Run(prog)
	assert.True(t, modified)

	var sawGetAttr bool
	for _, insn := range prog.All() {
		if insn.Op() == il.OpGET_ATTR {
			sawGetAttr = true
		}
	}
	assert.True(t, sawGetAttr, "still has the STOP use, so GET_ATTR must survive")
}

func TestImportToGlobalPassConstantModule(t *testing.T) {
	o := oracle.NewManifest()
	prog := il.NewProgram()
	prog.AppendVarInsn(il.OpCALL, il.NewGlobalMember("builtins", "__import__"),
		il.ConstantTuple{Values: []il.Value{il.NewString("os")}})

	modified := (&ImportToGlobalPass{oracle: o}).Run(prog)
	require.True(t, modified)
	assert.Empty(t, prog.All())
}

func TestImportToGlobalPassDynamicModule(t *testing.T) {
	o := oracle.NewManifest()
	prog := il.NewProgram()
	name := prog.AppendVarInsn(il.OpLOCAL, il.NewInt(0))
	prog.AppendVarInsn(il.OpCALL, il.NewGlobalMember("builtins", "__import__"),
		il.ConstantTuple{Values: []il.Value{name}})

	modified := (&ImportToGlobalPass{oracle: o}).Run(prog)
	require.True(t, modified)
	var sawGlobal bool
	for _, insn := range prog.All() {
		if insn.Op() == il.OpGLOBAL {
			sawGlobal = true
		}
	}
	assert.True(t, sawGlobal)
}

func TestGlobalReductionPassCollapsesChain(t *testing.T) {
	prog := il.NewProgram()
	base := il.NewModuleGlobal("os")
	path := prog.AppendVarInsn(il.OpGET_ATTR, base, il.NewString("path"))
	prog.AppendVarInsn(il.OpGET_ATTR, path, il.NewString("join"))

	modified := (&GlobalReductionPass{}).Run(prog)
	require.True(t, modified)
	assert.Empty(t, prog.All(), "both GET_ATTRs collapse into a single ConstantGlobal with no residual Insn")
}

func TestLocalsPassRewritesGetItemUses(t *testing.T) {
	o := oracle.NewManifest()
	prog := il.NewProgram()
	localsCall := prog.AppendVarInsn(il.OpCALL, il.NewGlobalMember("builtins", "locals"), il.ConstantTuple{})
	prog.AppendVarInsn(il.OpGET_ITEM, localsCall, il.NewString("x"))

	modified := (&LocalsPass{oracle: o}).Run(prog)
	require.True(t, modified)

	var sawLocal bool
	for _, insn := range prog.All() {
		if insn.Op() == il.OpLOCAL {
			sawLocal = true
		}
		assert.NotEqual(t, il.OpCALL, insn.Op())
	}
	assert.True(t, sawLocal)
}
