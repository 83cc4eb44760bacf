package token

import (
	"sort"
	"strings"
)

// HideSet is the set of macro names whose expansion produced a token. A name
// in a token's hide set is never expanded again from that token, which is
// what stops self- and mutually-referential macros.
//
// A HideSet is immutable. Operations that would not change the set return the
// receiver, so tokens from one substitution share a single set. The nil
// *HideSet is the empty set.
type HideSet struct {
	names []string // sorted, unique
}

func NewHideSet(names ...string) *HideSet {
	if len(names) == 0 {
		return nil
	}
	s := append([]string(nil), names...)
	sort.Strings(s)
	out := s[:1]
	for _, n := range s[1:] {
		if n != out[len(out)-1] {
			out = append(out, n)
		}
	}
	return &HideSet{names: out}
}

func (h *HideSet) Len() int {
	if h == nil {
		return 0
	}
	return len(h.names)
}

func (h *HideSet) Contains(name string) bool {
	if h == nil {
		return false
	}
	i := sort.SearchStrings(h.names, name)
	return i < len(h.names) && h.names[i] == name
}

// Names returns the members in sorted order. The slice must not be modified.
func (h *HideSet) Names() []string {
	if h == nil {
		return nil
	}
	return h.names
}

// With returns h ∪ {name}.
func (h *HideSet) With(name string) *HideSet {
	if h.Contains(name) {
		return h
	}
	if h == nil {
		return &HideSet{names: []string{name}}
	}
	i := sort.SearchStrings(h.names, name)
	names := make([]string, 0, len(h.names)+1)
	names = append(names, h.names[:i]...)
	names = append(names, name)
	names = append(names, h.names[i:]...)
	return &HideSet{names: names}
}

func (h *HideSet) Union(o *HideSet) *HideSet {
	switch {
	case o.Len() == 0:
		return h
	case h.Len() == 0:
		return o
	case h == o:
		return h
	}
	names := make([]string, 0, len(h.names)+len(o.names))
	i, j := 0, 0
	for i < len(h.names) && j < len(o.names) {
		switch {
		case h.names[i] < o.names[j]:
			names = append(names, h.names[i])
			i++
		case h.names[i] > o.names[j]:
			names = append(names, o.names[j])
			j++
		default:
			names = append(names, h.names[i])
			i++
			j++
		}
	}
	names = append(names, h.names[i:]...)
	names = append(names, o.names[j:]...)
	switch len(names) {
	case len(h.names):
		return h
	case len(o.names):
		return o
	}
	return &HideSet{names: names}
}

func (h *HideSet) Intersect(o *HideSet) *HideSet {
	if h.Len() == 0 || o.Len() == 0 {
		return nil
	}
	if h == o {
		return h
	}
	var names []string
	i, j := 0, 0
	for i < len(h.names) && j < len(o.names) {
		switch {
		case h.names[i] < o.names[j]:
			i++
		case h.names[i] > o.names[j]:
			j++
		default:
			names = append(names, h.names[i])
			i++
			j++
		}
	}
	switch len(names) {
	case 0:
		return nil
	case len(h.names):
		return h
	case len(o.names):
		return o
	}
	return &HideSet{names: names}
}

func (h *HideSet) String() string {
	return "{" + strings.Join(h.Names(), ",") + "}"
}
