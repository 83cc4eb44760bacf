package macro

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableDefineLookupUndef(t *testing.T) {
	tab := NewTable(Report, Exact)
	require.NoError(t, tab.Define(mustDefine(t, "B 2")))
	require.NoError(t, tab.Define(mustDefine(t, "A 1")))
	require.NoError(t, tab.Define(mustDefine(t, "A 1")), "identical redefinition")

	m, ok := tab.Lookup("A")
	require.True(t, ok)
	assert.Equal(t, "A 1", m.Signature())
	assert.Equal(t, 2, tab.Len())

	assert.True(t, tab.Undef("A"))
	assert.False(t, tab.Undef("A"), "undef of an unknown name is a no-op")
	assert.False(t, tab.Defined("A"))
	assert.True(t, tab.Defined("B"))
}

func TestTableRedefinitionPolicy(t *testing.T) {
	tests := []struct {
		policy   Policy
		wantErr  bool
		replaced bool
		live     string
	}{
		{Report, true, false, "A a"},
		{Override, false, true, "A b"},
		{Preserve, false, false, "A a"},
		{WarnOverride, true, true, "A b"},
	}
	for _, tt := range tests {
		tab := NewTable(tt.policy, Exact)
		require.NoError(t, tab.Define(mustDefine(t, "A a")))
		err := tab.Define(mustDefine(t, "A b"))

		var re *RedefinitionError
		assert.Equal(t, tt.wantErr, errors.As(err, &re), "policy %d", tt.policy)
		if re != nil {
			assert.Equal(t, tt.replaced, re.Replaced)
			assert.Equal(t, `"A" redefined`, re.Error())
		}
		m, _ := tab.Lookup("A")
		assert.Equal(t, tt.live, m.Signature(), "policy %d", tt.policy)
	}
}

func TestTableSemanticCompare(t *testing.T) {
	tab := NewTable(Report, Semantic)
	require.NoError(t, tab.Define(mustDefine(t, "F(a) (a+1)")))
	assert.NoError(t, tab.Define(mustDefine(t, "F(x) ( x + 1 )")))

	tab.Compare = Exact
	assert.Error(t, tab.Define(mustDefine(t, "F(y) (y+1)")))
}

func TestTableEachAndClone(t *testing.T) {
	tab := NewTable(Report, Exact)
	for _, d := range []string{"ZED 1", "ALPHA 2", "MID 3"} {
		require.NoError(t, tab.Define(mustDefine(t, d)))
	}
	clone := tab.Clone()
	require.NoError(t, clone.Define(mustDefine(t, "EXTRA 4")))
	clone.Undef("ZED")

	names := func(tab *Table) []string {
		var out []string
		tab.Each(func(m *Macro) { out = append(out, m.Name) })
		return out
	}
	if diff := cmp.Diff([]string{"ALPHA", "MID", "ZED"}, names(tab)); diff != "" {
		t.Errorf("original changed (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"ALPHA", "EXTRA", "MID"}, names(clone)); diff != "" {
		t.Errorf("clone mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("warn-override")
	require.NoError(t, err)
	assert.Equal(t, WarnOverride, p)
	_, err = ParsePolicy("explode")
	assert.Error(t, err)

	c, err := ParseCompare("Semantic")
	require.NoError(t, err)
	assert.Equal(t, Semantic, c)
	_, err = ParseCompare("fuzzy")
	assert.Error(t, err)
}
