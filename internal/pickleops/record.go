package pickleops

import "fmt"

// Record is one decoded opcode: its code, its decoded argument (nil for
// opcodes that carry none), and its byte offset in the stream (for
// diagnostics).
type Record struct {
	Op  Opcode
	Arg any
	Pos int64
}

// DecodeError reports a malformed or unrecognized opcode encountered while
// scanning. Pos is the byte offset the scan had reached when the error was
// detected.
type DecodeError struct {
	Pos     int64
	Message string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("pickleops: at offset %d: %s", e.Pos, e.Message)
}
