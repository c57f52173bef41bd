package oracle

import "github.com/lunbun/peekle/internal/il"

// Fixture is a minimal, test-built Oracle: unlike Manifest it starts empty,
// and tests populate only the symbols a given scenario needs via its
// fluent builder methods, following the teacher's ModuleBuilder pattern of
// constructing a fixed table through chained calls.
type Fixture struct {
	*Manifest
}

// NewFixture returns an empty Fixture with no seeded symbols.
func NewFixture() *Fixture {
	return &Fixture{Manifest: newEmptyManifest()}
}

// WithSymbol registers module/name as resolving to a fresh Symbol
// identified by path, and returns the Fixture for chaining.
func (f *Fixture) WithSymbol(module string, name *string, path string) *Fixture {
	sym := f.intern(path)
	f.symbols[canonicalKey(module, name)] = sym
	return f
}

// WithGlobalCall marks path as rewriting into op with nargs operands when
// called with a constant-tuple argument list of that length.
func (f *Fixture) WithGlobalCall(path string, op il.Op, nargs int) *Fixture {
	sym := f.intern(path)
	f.globalCalls[sym] = GlobalCallEntry{Op: op, NArgs: nargs}
	return f
}

// WithSideEffectFree marks path as safe to elide when its call's result is
// unused.
func (f *Fixture) WithSideEffectFree(path string) *Fixture {
	f.sideEffectFree[f.intern(path)] = struct{}{}
	return f
}

// WithImport registers path as the well-known __import__ symbol.
func (f *Fixture) WithImport(path string) *Fixture {
	f.importSymbol = f.intern(path)
	return f
}

// WithLocals registers path as the well-known locals() symbol.
func (f *Fixture) WithLocals(path string) *Fixture {
	f.localsSymbol = f.intern(path)
	return f
}
