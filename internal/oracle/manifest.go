package oracle

import (
	"sort"

	"github.com/lunbun/peekle/internal/il"
)

// moduleAliases maps Python 2-era module names a serialized pickle may
// still reference onto their Python 3 canonical names, the way a real
// unpickler's compatibility shims do.
var moduleAliases = map[string]string{
	"__builtin__": "builtins",
	"copy_reg":    "copyreg",
	"cPickle":     "pickle",
}

// dunderClasses are the builtin types analysis.py walks when seeding
// GLOBAL_CALL_MAP with each class's dunder methods.
var dunderClasses = []string{
	"int", "float", "complex", "str", "bytes", "bytearray",
	"list", "tuple", "dict", "set", "frozenset",
}

// instanceDunders mirrors analysis.INSTANCE_DUNDER_MAP: a dunder method
// name to the instruction it becomes when called directly (as an unbound
// call with the instance prepended) or via InstanceDunderPass's GET_ATTR
// recognition. nargs here is the *bound* arg count (self excluded);
// NewManifest adds one for the unbound class-method form.
var instanceDunders = []struct {
	name  string
	op    il.Op
	nargs int
}{
	{"__getitem__", il.OpGET_ITEM, 1},
	{"__setitem__", il.OpSET_ITEM, 2},
	{"__len__", il.OpLEN, 0},
	{"__eq__", il.OpEQUALS, 1},
	{"__ne__", il.OpNOT_EQUALS, 1},
	{"__lt__", il.OpLESS_THAN, 1},
	{"__le__", il.OpLESS_EQUALS, 1},
	{"__gt__", il.OpGREATER_THAN, 1},
	{"__ge__", il.OpGREATER_EQUALS, 1},
	{"__add__", il.OpADD, 1},
	{"__sub__", il.OpSUB, 1},
	{"__mul__", il.OpMUL, 1},
	{"__floordiv__", il.OpFLOOR_DIV, 1},
	{"__truediv__", il.OpTRUE_DIV, 1},
	{"__mod__", il.OpMOD, 1},
	{"__pow__", il.OpPOW, 1},
	{"__and__", il.OpBITWISE_AND, 1},
	{"__or__", il.OpBITWISE_OR, 1},
	{"__xor__", il.OpBITWISE_XOR, 1},
	{"__lshift__", il.OpLSHIFT, 1},
	{"__rshift__", il.OpRSHIFT, 1},
}

// sideEffectFreeBuiltins mirrors analysis.SIDE_EFFECT_FREE_CALLS.
var sideEffectFreeBuiltins = []string{
	"__import__", "range", "abs", "bin", "chr", "copyright", "credits",
	"dir", "getattr", "globals", "hasattr", "hash", "help", "hex", "id",
	"len", "license", "locals", "map", "max", "min", "oct", "round",
}

// Manifest is the default Oracle: a fixed table of builtin and stdlib
// symbols built once at construction, seeded the way analysis.py seeds
// GLOBAL_CALL_MAP and SIDE_EFFECT_FREE_CALLS from a live `builtins` module.
type Manifest struct {
	symbols        map[string]Symbol
	globalCalls    map[Symbol]GlobalCallEntry
	sideEffectFree map[Symbol]struct{}
	importSymbol   Symbol
	localsSymbol   Symbol
}

// NewManifest builds the default manifest: getattr/setattr, every builtin
// class's recognized dunder methods, and the side-effect-free builtin
// call set.
func NewManifest() *Manifest {
	m := newEmptyManifest()

	getattrSym := m.intern("builtins.getattr")
	setattrSym := m.intern("builtins.setattr")
	m.globalCalls[getattrSym] = GlobalCallEntry{Op: il.OpGET_ATTR, NArgs: 2}
	m.globalCalls[setattrSym] = GlobalCallEntry{Op: il.OpSET_ATTR, NArgs: 3}

	for _, cls := range dunderClasses {
		for _, d := range instanceDunders {
			sym := m.intern("builtins." + cls + "." + d.name)
			m.globalCalls[sym] = GlobalCallEntry{Op: d.op, NArgs: d.nargs + 1}
		}
	}

	for _, name := range sideEffectFreeBuiltins {
		sym := m.intern("builtins." + name)
		m.sideEffectFree[sym] = struct{}{}
	}
	m.sideEffectFree[m.intern("functools.partial")] = struct{}{}

	m.importSymbol = m.intern("builtins.__import__")
	m.localsSymbol = m.intern("builtins.locals")

	// The reference implementation seeds GLOBAL_CALL_MAP and
	// SIDE_EFFECT_FREE_CALLS by walking a live `builtins` module and
	// checking each candidate's identity against the well-knowns it
	// cares about; a static manifest has no module to walk, but it can
	// still confirm the well-knowns it just interned are genuinely part
	// of the builtin surface it reports via AllBuiltins, using the same
	// identity check (IdentityEquals) the live walk would use.
	if !m.isKnownBuiltin(m.importSymbol) || !m.isKnownBuiltin(m.localsSymbol) {
		panic("oracle: well-known symbol missing from seeded builtin table")
	}

	return m
}

// isKnownBuiltin reports whether sym was seeded into m's builtin table,
// scanning AllBuiltins with IdentityEquals rather than a second map lookup.
func (m *Manifest) isKnownBuiltin(sym Symbol) bool {
	for _, b := range m.AllBuiltins() {
		if m.IdentityEquals(b, sym) {
			return true
		}
	}
	return false
}

func newEmptyManifest() *Manifest {
	return &Manifest{
		symbols:        make(map[string]Symbol),
		globalCalls:    make(map[Symbol]GlobalCallEntry),
		sideEffectFree: make(map[Symbol]struct{}),
	}
}

func (m *Manifest) intern(path string) Symbol {
	sym := Symbol{path: path}
	m.symbols[path] = sym
	return sym
}

func canonicalModule(module string) string {
	if canon, ok := moduleAliases[module]; ok {
		return canon
	}
	return module
}

func canonicalKey(module string, name *string) string {
	module = canonicalModule(module)
	if name == nil || *name == "" {
		return module
	}
	return module + "." + *name
}

// Resolve implements Oracle.
func (m *Manifest) Resolve(module string, name *string) (Symbol, bool) {
	sym, ok := m.symbols[canonicalKey(module, name)]
	return sym, ok
}

// GlobalCall implements Oracle.
func (m *Manifest) GlobalCall(sym Symbol) (GlobalCallEntry, bool) {
	entry, ok := m.globalCalls[sym]
	return entry, ok
}

// SideEffectFree implements Oracle.
func (m *Manifest) SideEffectFree(sym Symbol) bool {
	_, ok := m.sideEffectFree[sym]
	return ok
}

// Import implements Oracle.
func (m *Manifest) Import() Symbol { return m.importSymbol }

// Locals implements Oracle.
func (m *Manifest) Locals() Symbol { return m.localsSymbol }

// IdentityEquals implements Oracle. Symbol is comparable (ADR-3), so this
// is a plain `==`; the method exists so callers go through the oracle
// abstraction rather than relying on that comparability directly.
func (m *Manifest) IdentityEquals(sym, wellKnown Symbol) bool { return sym == wellKnown }

// AllBuiltins implements Oracle, returning every symbol seeded into the
// manifest in a stable (sorted) order.
func (m *Manifest) AllBuiltins() []Symbol {
	out := make([]Symbol, 0, len(m.symbols))
	for _, sym := range m.symbols {
		out = append(out, sym)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}
