// Package oracle stands in for the host-runtime reflection the original
// pickle-aware passes lean on (sys.modules, getattr chains, object identity
// comparisons against builtins). Since this tool never runs the pickle's
// own interpreter, those questions are answered from a static, reproducible
// manifest instead of live introspection.
package oracle

import "github.com/lunbun/peekle/internal/il"

// Symbol is a resolved host-object identity, standing in for Python's `is`
// comparison against a known builtin or class member. Two Symbols compare
// equal iff they denote the same canonical dotted path, which is the
// reproducible substitute for live object identity this package's design
// commits to.
type Symbol struct {
	path string
}

func (s Symbol) String() string { return s.path }

// IsZero reports whether s is the zero Symbol (no resolution).
func (s Symbol) IsZero() bool { return s.path == "" }

// GlobalCallEntry is the instruction and operand count GlobalCallPass
// rewrites a constant call to this symbol into, mirroring
// analysis.GLOBAL_CALL_MAP's (insn, nargs) pairs.
type GlobalCallEntry struct {
	Op    il.Op
	NArgs int
}

// Oracle answers every question internal/analysis and internal/passes need
// about a resolved global that this tool cannot determine from the pickle
// bytecode alone.
type Oracle interface {
	// Resolve looks up the symbol a (module, name) pair denotes — module
	// is a ConstantGlobal.Module, name its optional dotted Name — the Go
	// analog of sys.modules[module] followed by a chain of getattr calls.
	Resolve(module string, name *string) (Symbol, bool)

	// GlobalCall reports the rewrite GlobalCallPass should perform for a
	// constant call to sym, if any.
	GlobalCall(sym Symbol) (GlobalCallEntry, bool)

	// SideEffectFree reports whether a call to sym is known to have no
	// side effects (DeadCodePass may remove it if its result is unused).
	SideEffectFree(sym Symbol) bool

	// Import is the well-known __import__ symbol, compared against a
	// constant call's callee by ImportToGlobalPass.
	Import() Symbol

	// Locals is the well-known locals() symbol, compared against a
	// constant call's callee by LocalsPass.
	Locals() Symbol

	// IdentityEquals reports whether sym and wellKnown denote the same
	// resolved host object — the Go analog of Python's `is` comparison
	// against a known builtin, used by passes instead of raw `==` so the
	// comparability of Symbol stays an oracle-owned detail rather than a
	// fact callers depend on directly.
	IdentityEquals(sym, wellKnown Symbol) bool

	// AllBuiltins returns every symbol the oracle knows about. Used for
	// classification and diagnostics (e.g. confirming a well-known symbol
	// was actually seeded into the manifest that builds GLOBAL_CALL_MAP
	// and SIDE_EFFECT_FREE_CALLS), never for correctness of a single
	// lookup.
	AllBuiltins() []Symbol
}
