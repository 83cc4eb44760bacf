// Package diag classifies the problems found while preprocessing. It does not
// format or print anything; that is left to the embedder.
package diag

import (
	"fmt"

	"github.com/fwessels/cppx/internal/token"
)

// Severity of a diagnostic.
type Severity int

const (
	Note Severity = iota
	Warning
	Error
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Note:
		return "note"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Kind identifies the class of a diagnostic. A Kind is also an error value so
// that errors.Is(err, diag.UserError) works on returned errors.
type Kind int

const (
	LexError Kind = iota + 1
	UnterminatedLiteral
	UnterminatedComment
	UnterminatedInvocation
	MacroRedefinition
	MacroArity
	UnknownDirective
	MalformedDirective
	StrayConditional
	UnterminatedConditional
	InvalidPaste
	InvalidConstantExpr
	IncludeNotFound
	IncludeDepth
	UserError
	UserWarning
	ExpansionLimit
	HandlerError
)

var kindNames = map[Kind]string{
	LexError:                "LexError",
	UnterminatedLiteral:     "UnterminatedLiteral",
	UnterminatedComment:     "UnterminatedComment",
	UnterminatedInvocation:  "UnterminatedInvocation",
	MacroRedefinition:       "MacroRedefinitionError",
	MacroArity:              "MacroArityError",
	UnknownDirective:        "UnknownDirective",
	MalformedDirective:      "MalformedDirective",
	StrayConditional:        "StrayConditional",
	UnterminatedConditional: "UnterminatedConditional",
	InvalidPaste:            "InvalidPaste",
	InvalidConstantExpr:     "InvalidConstantExpr",
	IncludeNotFound:         "IncludeNotFound",
	IncludeDepth:            "IncludeDepth",
	UserError:               "UserError",
	UserWarning:             "UserWarning",
	ExpansionLimit:          "ExpansionLimit",
	HandlerError:            "HandlerError",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) Error() string { return k.String() }

// Lexical reports whether k belongs to the LexError class.
func (k Kind) Lexical() bool {
	switch k {
	case LexError, UnterminatedLiteral, UnterminatedComment, UnterminatedInvocation:
		return true
	}
	return false
}

// Diagnostic is one reported problem. Pos points at the original source site,
// never inside a macro body, when the problem surfaced during expansion.
type Diagnostic struct {
	Severity Severity
	Kind     Kind
	Message  string
	Pos      token.Position
}

func (d Diagnostic) String() string {
	if d.Pos.Filename == "" && d.Pos.Line == 0 {
		return fmt.Sprintf("%s: %s", d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", posString(d.Pos), d.Severity, d.Message)
}

func posString(p token.Position) string {
	s := p.Filename
	if p.Line > 0 {
		s = fmt.Sprintf("%s:%d", s, p.Line)
		if p.Column > 0 {
			s = fmt.Sprintf("%s:%d", s, p.Column)
		}
	}
	return s
}

// Failure wraps a diagnostic as a Go error.
type Failure struct {
	Diagnostic
}

func (e *Failure) Error() string {
	if e.Pos.Filename == "" && e.Pos.Line == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", posString(e.Pos), e.Message)
}

// Is matches a Kind target.
func (e *Failure) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

func (e *Failure) Fatal() bool { return e.Severity == Fatal }

// Errorf builds a Failure of the given kind and severity.
func Errorf(kind Kind, sev Severity, pos token.Position, format string, args ...interface{}) *Failure {
	return &Failure{Diagnostic{
		Severity: sev,
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Pos:      pos,
	}}
}

// Sink receives diagnostics as they are produced.
type Sink interface {
	Report(Diagnostic)
}

type SinkFunc func(Diagnostic)

func (f SinkFunc) Report(d Diagnostic) { f(d) }

// List collects diagnostics.
type List []Diagnostic

func (l *List) Report(d Diagnostic) { *l = append(*l, d) }

// Count returns how many diagnostics have at least the given severity.
func (l List) Count(min Severity) int {
	n := 0
	for _, d := range l {
		if d.Severity >= min {
			n++
		}
	}
	return n
}

// Has reports whether a diagnostic of the given kind was recorded.
func (l List) Has(kind Kind) bool {
	for _, d := range l {
		if d.Kind == kind {
			return true
		}
	}
	return false
}
