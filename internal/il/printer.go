package il

// Print renders a program's full IL listing, one instruction per line, in
// list order — the textual form the CLI writes out and the form a future
// source emitter would read back in.
func Print(program *Program) string {
	return program.String()
}
