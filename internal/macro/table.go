package macro

import (
	"fmt"
	"strings"

	"github.com/emirpasic/gods/v2/trees/redblacktree"
)

// Policy decides what happens when a name is redefined with an incompatible
// definition.
type Policy int

const (
	// Report keeps the old definition and reports the redefinition.
	Report Policy = iota
	// Override silently replaces the old definition.
	Override
	// Preserve silently keeps the old definition.
	Preserve
	// WarnOverride replaces the old definition and reports a warning.
	WarnOverride
)

var policyNames = map[string]Policy{
	"report":        Report,
	"override":      Override,
	"preserve":      Preserve,
	"warn-override": WarnOverride,
}

func (p Policy) String() string {
	for name, v := range policyNames {
		if v == p {
			return name
		}
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

func ParsePolicy(s string) (Policy, error) {
	if p, ok := policyNames[strings.ToLower(s)]; ok {
		return p, nil
	}
	return Report, fmt.Errorf("unknown redefinition policy %q", s)
}

func ParseCompare(s string) (Compare, error) {
	switch strings.ToLower(s) {
	case "exact":
		return Exact, nil
	case "semantic":
		return Semantic, nil
	}
	return Exact, fmt.Errorf("unknown redefinition compare mode %q", s)
}

// RedefinitionError reports an incompatible redefinition. Replaced tells
// whether the new definition is now live.
type RedefinitionError struct {
	Old, New *Macro
	Replaced bool
}

func (e *RedefinitionError) Error() string {
	return fmt.Sprintf("%q redefined", e.New.Name)
}

// Table maps names to their live definition.
type Table struct {
	Policy  Policy
	Compare Compare

	tree *redblacktree.Tree[string, *Macro]
}

func NewTable(policy Policy, cmp Compare) *Table {
	return &Table{
		Policy:  policy,
		Compare: cmp,
		tree:    redblacktree.New[string, *Macro](),
	}
}

// Define installs m. An identical redefinition is a no-op. An incompatible
// one is resolved by the table's policy; a *RedefinitionError is returned
// when the policy asks for it to be reported.
func (t *Table) Define(m *Macro) error {
	old, ok := t.tree.Get(m.Name)
	if !ok {
		t.tree.Put(m.Name, m)
		return nil
	}
	if old.Equal(m, t.Compare) {
		return nil
	}
	switch t.Policy {
	case Override:
		t.tree.Put(m.Name, m)
		return nil
	case Preserve:
		return nil
	case WarnOverride:
		t.tree.Put(m.Name, m)
		return &RedefinitionError{Old: old, New: m, Replaced: true}
	default:
		return &RedefinitionError{Old: old, New: m}
	}
}

// Undef removes name and reports whether it was defined.
func (t *Table) Undef(name string) bool {
	if _, ok := t.tree.Get(name); !ok {
		return false
	}
	t.tree.Remove(name)
	return true
}

func (t *Table) Lookup(name string) (*Macro, bool) {
	return t.tree.Get(name)
}

func (t *Table) Defined(name string) bool {
	_, ok := t.tree.Get(name)
	return ok
}

func (t *Table) Len() int { return t.tree.Size() }

// Each calls fn for every definition in name order.
func (t *Table) Each(fn func(*Macro)) {
	it := t.tree.Iterator()
	for it.Next() {
		fn(it.Value())
	}
}

// Clone returns an independent table with the same definitions. Macros are
// immutable, so they are shared.
func (t *Table) Clone() *Table {
	c := NewTable(t.Policy, t.Compare)
	t.Each(func(m *Macro) { c.tree.Put(m.Name, m) })
	return c
}
