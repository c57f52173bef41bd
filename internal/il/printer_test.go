package il

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintMatchesProgramString(t *testing.T) {
	prog := NewProgram()
	prog.AppendInsn(OpSTOP, NewInt(1))
	assert.Equal(t, prog.String(), Print(prog))
}

func TestPrintPoisonRendersMessage(t *testing.T) {
	prog := NewProgram()
	prog.AppendInsn(OpPOISON, NewString("unknown opcode 0x9f at offset 12"))
	prog.Poison = true

	assert.Equal(t, `poison "unknown opcode 0x9f at offset 12"`, Print(prog))
}
