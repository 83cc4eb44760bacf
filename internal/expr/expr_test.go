package expr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fwessels/cppx/internal/lexer"
	"github.com/fwessels/cppx/internal/token"
)

func eval(text string) (int64, error) {
	return Eval(lexer.Tokenize(token.NewFile("if.c", len(text)), []byte(text), nil))
}

func TestEval(t *testing.T) {
	tests := []struct {
		expr string
		want int64
	}{
		{"1", 1},
		{"0", 0},
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"10 / 3", 3},
		{"-7 % 3", -1},
		{"1 << 4 | 1", 17},
		{"0x10 + 010 + 0b11", 27},
		{"10u + 2L + 3ull", 15},
		{"~0", -1},
		{"!0 + !5", 1},
		{"-(-3)", 3},
		{"+4", 4},
		{"2 < 3 && 3 <= 3 && 4 > 3 && 4 >= 5", 0},
		{"1 == 1 != 0", 1},
		{"6 & 3 ^ 1", 3},
		{"0 || 2", 1},
		{"1 ? 2 : 3", 2},
		{"0 ? 2 : 0 ? 3 : 4", 4},
		{"UNDEFINED_NAME", 0},
		{"UNDEFINED_NAME + 1", 1},
		{"'a'", 97},
		{"'\\n' == 10", 1},
		{"'\\377'", -1},
		{"'\\x41'", 65},
		{"L'\\xff'", 255},
		{"'ab'", 0x6162},
		{"0 && 1 / 0", 0},
		{"1 || 1 % 0", 1},
		{"1 ? 1 : 1 / 0", 1},
		{"0 ? 1 / 0 : 5", 5},
		{"0x7fffffffffffffff + 1 < 0", 1},
		{"-1 >> 1", -1},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := eval(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalErrors(t *testing.T) {
	tests := []struct {
		expr string
		at   string
	}{
		{"", ""},
		{"1 / 0", "/"},
		{"5 % (2 - 2)", "%"},
		{"1 +", ""},
		{"(1", ""},
		{"1 2", "2"},
		{"1 ? 2", ""},
		{"1.5", "1.5"},
		{"08", "08"},
		{"1lL", "1lL"},
		{"99999999999999999999", "99999999999999999999"},
		{"\"str\"", "\"str\""},
		{"1 << 64", "<<"},
		{"'\\q'", "'\\q'"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := eval(tt.expr)
			var e *Error
			require.True(t, errors.As(err, &e), "want error, got %v", err)
			if tt.at == "" {
				assert.Nil(t, e.Tok)
			} else {
				require.NotNil(t, e.Tok)
				assert.Equal(t, tt.at, e.Tok.Text)
			}
		})
	}
}

func TestTrue(t *testing.T) {
	ok, err := True(lexer.Tokenize(token.NewFile("t", 5), []byte("2 - 2"), nil))
	require.NoError(t, err)
	assert.False(t, ok)
}
