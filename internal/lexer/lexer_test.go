package lexer

import (
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fwessels/cppx/internal/diag"
	"github.com/fwessels/cppx/internal/token"
)

type lexError struct {
	line int
	kind diag.Kind
}

// drain renders tokens as a dot-separated list; whitespace shows up as "_"
// and newlines as "\n".
func drain(t *testing.T, input string) (string, []lexError) {
	t.Helper()
	file := token.NewFile("test.c", len(input))
	var errs []lexError
	toks := Tokenize(file, []byte(input), func(pos token.Pos, kind diag.Kind, msg string) {
		errs = append(errs, lexError{file.Position(pos).Line, kind})
	})
	var parts []string
	for _, tok := range toks {
		switch tok.Kind {
		case token.EOF:
		case token.Space:
			parts = append(parts, "_")
		default:
			parts = append(parts, tok.Text)
		}
	}
	return strings.Join(parts, "."), errs
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		output string
	}{
		{"empty", "", ""},
		{"simple", "1 (a)", "1._.(.a.)"},
		{"identifiers", "foo _bar $baz q1", "foo._._bar._.$baz._.q1"},
		{"pp-numbers", "0x1F 1.5e+10 .5 12u 0x1e+5", "0x1F._.1.5e+10._..5._.12u._.0x1e+5"},
		{"longest punct first", "a<<=b>>=c...d##e->f", "a.<<=.b.>>=.c.....d.##.e.->.f"},
		{"ellipsis vs dots", "..", "..."},
		{"strings", `"a\"b" 'c' '\''`, `"a\"b"._.'c'._.'\''`},
		{"prefixed literals", `L"w" u8"x" U'y' u"z"`, `L"w"._.u8"x"._.U'y'._.u"z"`},
		{"line comment", "a // note\nb", "a._.\n.b"},
		{"block comment is one space", "a/* x */b", "a._.b"},
		{"comment and blanks merge", "a \t/* x */ /* y */ b", "a._.b"},
		{"multiline block comment", "a/*\n\n*/b", "a._.b"},
		{"splice inside identifier", "fo\\\no bar", "foo._.bar"},
		{"splice inside punct", "a +\\\n= b", "a._.+=._.b"},
		{"splice with CRLF", "x\\\r\ny", "xy"},
		{"lone backslash", `a \ b`, `a._.\._.b`},
		{"other bytes", "@`", "@.`"},
		{"hash directive", "  #define X 1\n", "_.#.define._.X._.1.\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, errs := drain(t, tt.input)
			assert.Empty(t, errs)
			if diff := cmp.Diff(tt.output, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTokenizeErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		output string
		errs   []lexError
	}{
		{
			"unterminated string runs to end of line",
			"a \"abc\nb",
			"a._.\"abc.\n.b",
			[]lexError{{1, diag.UnterminatedLiteral}},
		},
		{
			"unterminated char",
			"'x\n",
			"'x.\n",
			[]lexError{{1, diag.UnterminatedLiteral}},
		},
		{
			"unterminated comment",
			"a\nb /* never closed\n",
			"a.\n.b._",
			[]lexError{{2, diag.UnterminatedComment}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, errs := drain(t, tt.input)
			if diff := cmp.Diff(tt.output, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.errs, errs, cmp.AllowUnexported(lexError{})); diff != "" {
				t.Errorf("errors mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPositions(t *testing.T) {
	src := "a\n  bb\\\ncc\nd"
	file := token.NewFile("pos.c", len(src))
	toks := Tokenize(file, []byte(src), nil)

	var got []string
	for _, tok := range toks {
		if tok.Kind == token.Ident {
			p := tok.Position()
			got = append(got, tok.Text+"@"+strconv.Itoa(p.Line)+":"+strconv.Itoa(p.Column))
		}
	}
	assert.Equal(t, []string{"a@1:1", "bbcc@2:3", "d@4:1"}, got)
	assert.True(t, toks[3].Space, "bbcc follows whitespace")
}

func TestResetRestarts(t *testing.T) {
	src := []byte("x y")
	l := New(token.NewFile("r.c", len(src)), src, nil)
	first := []string{l.Next().Text, l.Next().Text, l.Next().Text}
	l.Reset()
	second := []string{l.Next().Text, l.Next().Text, l.Next().Text}
	assert.Equal(t, first, second)
	assert.Equal(t, token.EOF, l.Next().Kind)
	assert.Equal(t, token.EOF, l.Next().Kind)
}

func TestSingle(t *testing.T) {
	for _, tt := range []struct {
		text string
		kind token.Kind
		ok   bool
	}{
		{"foobar", token.Ident, true},
		{"12", token.Number, true},
		{"+=", token.Punct, true},
		{`L"x"`, token.String, true},
		{"x1.y", token.Ident, false},
		{"+-", token.Punct, false},
		{"//", token.Space, false},
		{`"open`, token.String, false},
		{"", token.EOF, false},
	} {
		tok, ok := Single(tt.text)
		require.Equal(t, tt.ok, ok, tt.text)
		if ok {
			assert.Equal(t, tt.kind, tok.Kind, tt.text)
			assert.Equal(t, tt.text, tok.Text)
		}
	}
}
