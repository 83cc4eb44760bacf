package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fwessels/cppx/internal/macro"
	"github.com/fwessels/cppx/internal/preprocessor"
)

const sample = `
include_dirs: [inc, /usr/include]
quote_dirs: [local]
defines:
  DEBUG: "1"
  "MAX(a,b)": "((a)>(b)?(a):(b))"
undefines: [NDEBUG]
redefine: warn-override
redefine_compare: semantic
variadic_comma: keep
expansion_limit: 1000
max_include_depth: 16
line_markers: true
glsl:
  versions: ">= 3.3"
  extensions: [GL_ARB_shading_language_include]
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, []string{"inc", "/usr/include"}, c.IncludeDirs)
	require.NotNil(t, c.GLSL)
	assert.Equal(t, ">= 3.3", c.GLSL.Versions)

	opts, err := c.Options()
	require.NoError(t, err)
	assert.Equal(t, macro.WarnOverride, opts.Redefinition)
	assert.Equal(t, macro.Semantic, opts.RedefinitionCompare)
	assert.Equal(t, preprocessor.KeepComma, opts.VariadicComma)
	assert.Equal(t, 1000, opts.ExpansionLimit)
	assert.Equal(t, 16, opts.MaxIncludeDepth)
	assert.True(t, opts.LineMarkers)
	assert.False(t, opts.DiscardPragmas)
	assert.Equal(t, map[string]string{"DEBUG": "1", "MAX(a,b)": "((a)>(b)?(a):(b))"}, opts.Defines)
	assert.Equal(t, []string{"NDEBUG"}, opts.Undefines)
	assert.Equal(t, &preprocessor.DirIncluder{QuoteDirs: []string{"local"}, Dirs: []string{"inc", "/usr/include"}}, opts.Includer)

	h, err := c.Handlers()
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, map[string]string{"GL_ARB_shading_language_include": "1"}, h.Defines())
}

func TestParseEmpty(t *testing.T) {
	c, err := Parse(nil)
	require.NoError(t, err)
	opts, err := c.Options()
	require.NoError(t, err)
	assert.Equal(t, macro.Report, opts.Redefinition)
	assert.Equal(t, preprocessor.DeleteComma, opts.VariadicComma)
	h, err := c.Handlers()
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestParseErrors(t *testing.T) {
	for _, tt := range []struct {
		name  string
		input string
	}{
		{"unknown key", "include_path: [a]\n"},
		{"bad policy", "redefine: sometimes\n"},
		{"bad compare", "redefine_compare: fuzzy\n"},
		{"bad comma", "variadic_comma: maybe\n"},
		{"negative limit", "expansion_limit: -1\n"},
		{"wrong type", "line_markers: [1]\n"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cppx.yaml")
	require.NoError(t, os.WriteFile(path, []byte("defines: {A: \"2\"}\n"), 0o644))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "2"}, c.Defines)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
