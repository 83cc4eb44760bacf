package glsl

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fwessels/cppx/internal/diag"
	"github.com/fwessels/cppx/internal/preprocessor"
)

func lines(a ...string) string {
	return strings.Join(a, "\n") + "\n"
}

func run(t *testing.T, cfg Config, src string) *preprocessor.Result {
	t.Helper()
	h, err := New(cfg)
	require.NoError(t, err)
	p := preprocessor.New(preprocessor.Options{Defines: h.Defines()})
	require.NoError(t, h.Register(p))
	res, err := p.Run(context.Background(), "shader.frag", []byte(src))
	require.NoError(t, err)
	return res
}

func TestVersion(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		input  string
		output string
		kind   diag.Kind
	}{
		{
			name:   "core",
			input:  lines("#version 330 core", "int v = __VERSION__;", "#ifdef GL_ES", "es", "#endif"),
			output: lines("#version 330 core", "int v = 330;"),
		},
		{
			name:   "es profile",
			input:  lines("#version 300 es", "#if defined(GL_ES) && __VERSION__ >= 300", "es3", "#endif"),
			output: lines("#version 300 es", "es3"),
		},
		{
			name:   "es 100",
			input:  lines("#version 100", "GL_ES"),
			output: lines("#version 100", "1"),
		},
		{
			name:   "after blank lines and comments",
			input:  lines("", "// header", "#version 450", "x"),
			output: lines("", "", "#version 450", "x"),
		},
		{
			name:   "not first",
			input:  lines("x", "#version 450"),
			output: lines("x"),
			kind:   diag.MalformedDirective,
		},
		{
			name:   "missing number",
			input:  lines("#version core"),
			output: "",
			kind:   diag.MalformedDirective,
		},
		{
			name:   "bad profile",
			input:  lines("#version 450 fancy"),
			output: "",
			kind:   diag.MalformedDirective,
		},
		{
			name:   "outside constraint",
			cfg:    Config{Versions: ">= 3.3, < 4.6"},
			input:  lines("#version 460", "__VERSION__"),
			output: lines("__VERSION__"),
			kind:   diag.HandlerError,
		},
		{
			name:   "inside constraint",
			cfg:    Config{Versions: ">= 3.3, < 4.6"},
			input:  lines("#version 450 core"),
			output: lines("#version 450 core"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, tt.cfg, tt.input)
			if diff := cmp.Diff(tt.output, res.String()); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
			if tt.kind == 0 {
				assert.Empty(t, res.Diagnostics)
				return
			}
			require.Len(t, res.Diagnostics, 1)
			assert.Equal(t, tt.kind, res.Diagnostics[0].Kind)
			assert.Equal(t, diag.Error, res.Diagnostics[0].Severity)
		})
	}
}

func TestExtension(t *testing.T) {
	cfg := Config{Extensions: []string{"GL_OES_standard_derivatives"}}
	tests := []struct {
		name   string
		input  string
		output string
		sev    diag.Severity
		kind   diag.Kind
	}{
		{
			name:   "supported",
			input:  lines("#extension GL_OES_standard_derivatives : require", "#ifdef GL_OES_standard_derivatives", "yes", "#endif"),
			output: lines("#extension GL_OES_standard_derivatives : require", "yes"),
		},
		{
			name:   "all",
			input:  lines("#extension all : warn"),
			output: lines("#extension all : warn"),
		},
		{
			name:   "all with require",
			input:  lines("#extension all : require"),
			sev:    diag.Error,
			kind:   diag.MalformedDirective,
		},
		{
			name:   "unsupported required",
			input:  lines("#extension GL_EXT_foo : require"),
			sev:    diag.Error,
			kind:   diag.HandlerError,
		},
		{
			name:   "unsupported enabled",
			input:  lines("#extension GL_EXT_foo : enable"),
			output: lines("#extension GL_EXT_foo : enable"),
			sev:    diag.Warning,
			kind:   diag.HandlerError,
		},
		{
			name:   "unknown behavior",
			input:  lines("#extension GL_EXT_foo : maybe"),
			sev:    diag.Error,
			kind:   diag.MalformedDirective,
		},
		{
			name:   "malformed",
			input:  lines("#extension GL_EXT_foo"),
			sev:    diag.Error,
			kind:   diag.MalformedDirective,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, cfg, tt.input)
			if diff := cmp.Diff(tt.output, res.String()); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
			if tt.kind == 0 {
				assert.Empty(t, res.Diagnostics)
				return
			}
			require.Len(t, res.Diagnostics, 1)
			assert.Equal(t, tt.kind, res.Diagnostics[0].Kind)
			assert.Equal(t, tt.sev, res.Diagnostics[0].Severity)
		})
	}
}

func TestAnyExtension(t *testing.T) {
	res := run(t, Config{}, lines("#extension GL_EXT_anything : require"))
	assert.Empty(t, res.Diagnostics)
	assert.Equal(t, lines("#extension GL_EXT_anything : require"), res.String())
}

func TestNewBadConstraint(t *testing.T) {
	_, err := New(Config{Versions: "not a constraint"})
	assert.Error(t, err)
}

func TestDefines(t *testing.T) {
	h, err := New(Config{Extensions: []string{"B", "A"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "1"}, h.Defines())
}
