package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHideSet(t *testing.T) {
	var empty *HideSet
	assert.Equal(t, 0, empty.Len())
	assert.False(t, empty.Contains("A"))
	assert.Equal(t, "{}", empty.String())

	a := empty.With("B").With("A")
	assert.Equal(t, []string{"A", "B"}, a.Names())
	assert.Same(t, a, a.With("A"), "adding a member must not allocate a new set")

	b := NewHideSet("C", "B", "C")
	assert.Equal(t, []string{"B", "C"}, b.Names())

	u := a.Union(b)
	assert.Equal(t, []string{"A", "B", "C"}, u.Names())
	assert.Equal(t, []string{"A", "B"}, a.Names(), "operands are never modified")
	assert.Same(t, u, u.Union(a))
	assert.Same(t, a, a.Union(nil))
	assert.Same(t, b, empty.Union(b))

	i := a.Intersect(b)
	assert.Equal(t, []string{"B"}, i.Names())
	assert.Nil(t, a.Intersect(NewHideSet("Z")))
	assert.Nil(t, empty.Intersect(a))
	assert.Same(t, a, u.Intersect(a))
}

func TestJoinSpacing(t *testing.T) {
	toks := []*Token{
		{Kind: Punct, Text: "-"},
		{Kind: Punct, Text: "-", Expanded: true},
		{Kind: Ident, Text: "a", Expanded: true},
		{Kind: Ident, Text: "b", Expanded: true},
		{Kind: Punct, Text: "(", Space: false},
		{Kind: Newline, Text: "\n"},
		{Kind: Ident, Text: "x", Space: true},
		{Kind: Number, Text: "1", Space: true},
	}
	assert.Equal(t, "- -a b(\nx 1", Join(toks))
}

func TestJoinSourceAdjacency(t *testing.T) {
	f := NewFile("a.c", 16)
	g := NewFile("b.c", 16)
	tests := []struct {
		name string
		toks []*Token
		want string
	}{
		{
			"touching in source",
			[]*Token{{Kind: Punct, Text: "-", File: f, Pos: 1}, {Kind: Punct, Text: "-", File: f, Pos: 2}},
			"--",
		},
		{
			"gap left by an empty expansion",
			[]*Token{{Kind: Punct, Text: "-", File: f, Pos: 1}, {Kind: Punct, Text: "-", File: f, Pos: 3}},
			"- -",
		},
		{
			"gap between tokens that cannot merge",
			[]*Token{{Kind: Ident, Text: "a", File: f, Pos: 1}, {Kind: Punct, Text: "=", File: f, Pos: 4}},
			"a=",
		},
		{
			"different files",
			[]*Token{{Kind: Punct, Text: "+", File: f, Pos: 1}, {Kind: Punct, Text: "+", File: g, Pos: 2}},
			"+ +",
		},
		{
			"no position",
			[]*Token{{Kind: Punct, Text: "=", Pos: 1}, {Kind: Punct, Text: "=", Pos: 2}},
			"= =",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Join(tt.toks))
		})
	}
}
