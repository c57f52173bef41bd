package il

import (
	"fmt"
	"strings"
)

// InvariantError is raised (via panic; cmd/peekle recovers it at the top
// level, and the lifter turns one raised while lifting into a POISON
// instruction — see SPEC_FULL.md §7) when a caller attempts an operation that
// would violate one of the Program invariants I1-I5. These are programming
// errors, not data errors: a well-behaved lifter and pass never triggers
// one.
type InvariantError struct {
	Invariant string
	Message   string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("il: invariant %s violated: %s", e.Invariant, e.Message)
}

func violate(invariant, format string, args ...any) {
	panic(&InvariantError{Invariant: invariant, Message: fmt.Sprintf(format, args...)})
}

// Program is a doubly linked list of Insns plus the bookkeeping the SSA
// form needs: a monotonic name counter and the poison flag set by the
// lifter on failure (SPEC_FULL.md §3.4, §7).
type Program struct {
	begin, end    Insn
	variableCount int
	Poison        bool
}

// NewProgram returns an empty program.
func NewProgram() *Program { return &Program{} }

// Begin returns the first instruction, or nil if the program is empty.
func (p *Program) Begin() Insn { return p.begin }

// End returns the last instruction, or nil if the program is empty.
func (p *Program) End() Insn { return p.end }

// All returns every instruction in list order. Prefer Cursor for code that
// mutates while iterating.
func (p *Program) All() []Insn {
	var out []Insn
	for i := p.begin; i != nil; i = i.header().next {
		out = append(out, i)
	}
	return out
}

func attached(i Insn) bool {
	h := i.header()
	return h.prev != nil || h.next != nil
}

// InsertInsn splices a detached instruction into the list immediately after
// `after` (or at the head if after is nil), and registers it as a use of
// every VariableInsn its arguments read (I2).
func (p *Program) InsertInsn(insn Insn, after Insn) {
	h := insn.header()
	if attached(insn) || insn == p.begin {
		violate("I1", "cannot insert an instruction that is already in a program")
	}

	if after == nil {
		h.next = p.begin
		if p.begin != nil {
			p.begin.header().prev = insn
		}
		p.begin = insn
		if p.end == nil {
			p.end = insn
		}
	} else {
		ah := after.header()
		h.next = ah.next
		if ah.next != nil {
			ah.next.header().prev = insn
		}
		ah.next = insn
		if after == p.end {
			p.end = insn
		}
	}
	h.prev = after

	for def := range h.argDefs {
		addUse(def, insn)
	}
}

// RemoveInsn unlinks an attached instruction. Unless skipUseCheck is set,
// removing a VariableInsn with non-empty uses is an invariant violation
// (I3); skipUseCheck is used by Cursor.MoveInsn, which re-inserts the same
// instruction immediately afterward, and by ReplaceInsn, which has already
// moved old's uses onto the replacement before unlinking it.
func (p *Program) RemoveInsn(insn Insn, skipUseCheck bool) {
	if !attached(insn) && insn != p.begin {
		violate("I1", "cannot remove an instruction that is not in a program")
	}
	if v, ok := insn.(*VariableInsn); ok && !skipUseCheck && v.HasUses() {
		violate("I3", "cannot remove variable %s: still has %d use(s)", v.name, len(v.uses))
	}

	h := insn.header()
	if h.prev == nil {
		p.begin = h.next
	} else {
		h.prev.header().next = h.next
	}
	if h.next == nil {
		p.end = h.prev
	} else {
		h.next.header().prev = h.prev
	}
	h.prev, h.next = nil, nil

	for def := range h.argDefs {
		removeUse(def, insn)
	}
}

// ReplaceInsn replaces old with new at old's position in the list.
//
// If new is an Insn (and treatVariableAsValue is false), this is the
// Insn-to-Insn mode: when old is a used VariableInsn, new must also be a
// VariableInsn, every existing use is rewritten to reference new instead of
// old, and new inherits old's use set.
//
// Otherwise (new is a Value, or treatVariableAsValue is set even though new
// happens to be an Insn), this is the Insn-to-Value mode: every use
// substitutes new for old directly wherever old appeared as an operand; old
// is removed from the list and new is not inserted (it is a Value, not
// necessarily a list member).
func (p *Program) ReplaceInsn(old Insn, new any, treatVariableAsValue bool) {
	if newInsn, ok := new.(Insn); ok && !treatVariableAsValue {
		p.replaceInsnWithInsn(old, newInsn)
		return
	}
	newValue, ok := new.(Value)
	if !ok {
		panic("il: ReplaceInsn's new argument must be an Insn or a Value")
	}
	p.replaceInsnWithValue(old, newValue)
}

func (p *Program) replaceInsnWithInsn(old Insn, new Insn) {
	if oldVar, isVar := old.(*VariableInsn); isVar && oldVar.HasUses() {
		newVar, ok := new.(*VariableInsn)
		if !ok {
			violate("I3", "cannot replace used variable %s with a non-variable instruction", oldVar.name)
		}
		for use := range oldVar.uses {
			use.header().replaceArg(oldVar, newVar)
		}
		newVar.uses = oldVar.uses
		oldVar.uses = nil
	}

	after := old.header().prev
	p.RemoveInsn(old, true)
	p.InsertInsn(new, after)
}

func (p *Program) replaceInsnWithValue(old Insn, new Value) {
	if oldVar, isVar := old.(*VariableInsn); isVar {
		for use := range oldVar.uses {
			use.header().replaceArg(oldVar, new)
			for def := range new.Defs() {
				addUse(def, use)
			}
		}
		oldVar.uses = nil
	}
	p.RemoveInsn(old, true)
}

// replaceArg rewrites h's own argument slots (not nested containers — those
// are handled by Value.replaceVar) to substitute new for old, then
// refreshes the cached read-set.
func (h *insnHeader) replaceArg(old *VariableInsn, new Value) {
	for i, a := range h.args {
		if ref, ok := a.(*VariableInsn); ok && ref == old {
			h.args[i] = new
		} else {
			a.replaceVar(old, new)
		}
	}
	h.refresh()
}

func addUse(def *VariableInsn, user Insn) {
	if def.uses == nil {
		def.uses = make(map[Insn]struct{})
	}
	def.uses[user] = struct{}{}
}

func removeUse(def *VariableInsn, user Insn) {
	delete(def.uses, user)
}

// CreateVarInsn allocates a fresh, detached VariableInsn named "v<k>". It is
// not inserted into the program; call InsertInsn (or use AppendVarInsn) to
// wire it in.
func (p *Program) CreateVarInsn(op Op, args ...Value) *VariableInsn {
	v := &VariableInsn{insnHeader: newHeader(op, args), name: fmt.Sprintf("v%d", p.variableCount)}
	p.variableCount++
	return v
}

// AppendInsn creates a plain instruction and appends it to the program.
func (p *Program) AppendInsn(op Op, args ...Value) *PlainInsn {
	insn := NewPlainInsn(op, args...)
	p.InsertInsn(insn, p.end)
	return insn
}

// AppendVarInsn creates a VariableInsn and appends it to the program.
func (p *Program) AppendVarInsn(op Op, args ...Value) *VariableInsn {
	v := p.CreateVarInsn(op, args...)
	p.InsertInsn(v, p.end)
	return v
}

// String renders the full IL listing, one instruction per line — the
// "Printer interface (produced)" of SPEC_FULL.md §6.
func (p *Program) String() string {
	var b strings.Builder
	for i := p.begin; i != nil; i = i.header().next {
		b.WriteString(InsnString(i))
		if i.header().next != nil {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Cursor walks a Program's instruction list, tolerating the current
// instruction being removed, replaced, or moved mid-iteration
// (SPEC_FULL.md §4.1/§5). Passes must use it instead of All() when they
// rewrite the program as they go.
type Cursor struct {
	program *Program
	current Insn
	started bool
}

// Cursor returns a fresh cursor positioned before the first instruction.
func (p *Program) Cursor() *Cursor { return &Cursor{program: p} }

// Next advances the cursor and returns the next instruction, or (nil,
// false) at the end of the list.
func (c *Cursor) Next() (Insn, bool) {
	if !c.started {
		c.started = true
		c.current = c.program.begin
	} else if c.current != nil {
		c.current = c.current.header().next
	}
	if c.current == nil {
		return nil, false
	}
	return c.current, true
}

// RemoveInsn removes the cursor's current instruction; the cursor steps
// back to its predecessor so the next Next() lands on its successor.
func (c *Cursor) RemoveInsn() {
	target := c.current
	c.current = target.header().prev
	c.started = c.current != nil
	c.program.RemoveInsn(target, false)
}

// ReplaceInsn replaces the current instruction. If replacement is an Insn,
// the cursor adopts it as current (so Next() continues from its
// successor); if it is a Value, the cursor steps back to the predecessor
// of the replaced instruction, matching Program.ReplaceInsn's semantics.
func (c *Cursor) ReplaceInsn(replacement any, treatVariableAsValue bool) {
	target := c.current
	if newInsn, ok := replacement.(Insn); ok && !treatVariableAsValue {
		c.current = newInsn
	} else {
		c.current = target.header().prev
		c.started = c.current != nil
	}
	c.program.ReplaceInsn(target, replacement, treatVariableAsValue)
}

// MoveInsn relocates the current instruction to immediately after `after`,
// bypassing the used-variable removal check (the instruction isn't being
// deleted, just repositioned).
func (c *Cursor) MoveInsn(after Insn) {
	target := c.current
	c.current = target.header().prev
	c.started = c.current != nil
	c.program.RemoveInsn(target, true)
	c.program.InsertInsn(target, after)
}
