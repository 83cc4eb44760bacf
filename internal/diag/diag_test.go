package diag

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fwessels/cppx/internal/token"
)

func TestErrorIsKind(t *testing.T) {
	err := Errorf(UserError, Fatal, token.Position{Filename: "a.c", Line: 3, Column: 2}, "#error %s", "stop")
	wrapped := fmt.Errorf("run: %w", err)

	assert.True(t, errors.Is(wrapped, UserError))
	assert.False(t, errors.Is(wrapped, StrayConditional))
	assert.Equal(t, "a.c:3:2: #error stop", err.Error())
	assert.True(t, err.Fatal())

	var de *Failure
	assert.True(t, errors.As(wrapped, &de))
	assert.Equal(t, "a.c:3:2: fatal: #error stop", de.Diagnostic.String())

	failure := Errorf(MacroArity, Error, token.Position{}, "bad call")
	assert.Equal(t, "bad call", failure.Error())
	assert.False(t, failure.Fatal())
	assert.Equal(t, "error: bad call", failure.Diagnostic.String())
}

func TestList(t *testing.T) {
	var l List
	var sink Sink = &l
	sink.Report(Diagnostic{Severity: Warning, Kind: UserWarning})
	sink.Report(Diagnostic{Severity: Error, Kind: MacroArity})

	assert.Equal(t, 2, l.Count(Warning))
	assert.Equal(t, 1, l.Count(Error))
	assert.True(t, l.Has(MacroArity))
	assert.False(t, l.Has(InvalidPaste))
	assert.True(t, MacroArity.Lexical() == false)
	assert.True(t, UnterminatedInvocation.Lexical())
	assert.Equal(t, "MacroArityError", MacroArity.String())
}
