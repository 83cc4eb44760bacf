package preprocessor

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/fwessels/cppx/internal/diag"
	"github.com/fwessels/cppx/internal/lexer"
	"github.com/fwessels/cppx/internal/macro"
	"github.com/fwessels/cppx/internal/token"
)

// run is the state of one translation unit. Nothing in it is shared with
// other runs.
type run struct {
	p   *Preprocessor
	ctx context.Context
	id  string
	log logr.Logger

	macros *macro.Table
	diags  diag.List
	out    []*token.Token

	sources []*source
	once    map[string]bool

	counter    int64
	expansions int
	limitHit   bool

	content bool // a non-newline token was emitted
	leading int  // non-blank lines read from the main file

	err error
}

// source is one file being read, line by line.
type source struct {
	name string
	file *token.File
	lex  *lexer.Lexer
	cond *condStack

	pending    []*token.Token
	hasPending bool
}

func (r *run) newSource(name string, src []byte) *source {
	s := &source{
		name: name,
		file: token.NewFile(name, len(src)),
		cond: newCondStack(),
	}
	s.lex = lexer.New(s.file, src, func(pos token.Pos, kind diag.Kind, msg string) {
		if s.cond.Active() {
			r.report(diag.Error, kind, s.file.PositionFor(pos, true), "%s", msg)
		}
	})
	return s
}

// line returns the next logical line with whitespace folded into the Space
// flags. The trailing newline token is kept when present. nil means EOF.
func (s *source) line() []*token.Token {
	if s.hasPending {
		s.hasPending = false
		return s.pending
	}
	var toks []*token.Token
	for {
		t := s.lex.Next()
		switch t.Kind {
		case token.EOF:
			return toks
		case token.Space:
			continue
		case token.Newline:
			return append(toks, t)
		}
		toks = append(toks, t)
	}
}

func (s *source) unread(line []*token.Token) {
	s.pending = line
	s.hasPending = true
}

func isDirective(line []*token.Token) bool {
	return len(line) > 0 && line[0].IsPunct("#")
}

// splitNewline separates the trailing newline token from a line.
func splitNewline(line []*token.Token) ([]*token.Token, *token.Token) {
	if n := len(line); n > 0 && line[n-1].Kind == token.Newline {
		return line[:n-1], line[n-1]
	}
	return line, nil
}

func (r *run) current() *source {
	if len(r.sources) == 0 {
		return nil
	}
	return r.sources[len(r.sources)-1]
}

// process reads s to its end. Directive lines are always dispatched so that
// conditional nesting is tracked; text lines are expanded only in active
// regions.
func (r *run) process(s *source) {
	r.sources = append(r.sources, s)
	defer func() { r.sources = r.sources[:len(r.sources)-1] }()

	if r.p.opts.LineMarkers {
		r.marker(1, s.name)
	}
	for r.err == nil {
		if err := r.ctx.Err(); err != nil {
			r.err = err
			return
		}
		line := s.line()
		if line == nil {
			break
		}
		if len(r.sources) == 1 && len(line) > 0 && line[0].Kind != token.Newline {
			r.leading++
		}
		if isDirective(line) {
			r.directive(s, line)
			continue
		}
		if !s.cond.Active() {
			continue
		}
		r.emit(r.expandLine(s, line)...)
	}
	if r.err == nil && s.cond.Depth() != 0 {
		r.fatal(diag.UnterminatedConditional, s.cond.Unclosed(), "unterminated conditional directive in %s", shortPath(s.name))
	}
}

// expandLine expands one text line. An invocation left open at the end of
// the line may pull further text lines from s.
func (r *run) expandLine(s *source, line []*token.Token) []*token.Token {
	e := r.newExpander(false)
	e.more = func() []*token.Token {
		next := s.line()
		if next == nil {
			return nil
		}
		if isDirective(next) {
			s.unread(next)
			return nil
		}
		return next
	}
	e.push(line)
	return e.expand()
}

func (r *run) emit(toks ...*token.Token) {
	for _, t := range toks {
		switch t.Kind {
		case token.Placemarker, token.EOF:
			continue
		case token.Newline:
		default:
			r.content = true
		}
		r.out = append(r.out, t)
	}
}

// marker emits a `# line "file"` line.
func (r *run) marker(line int, name string) {
	r.emit(
		&token.Token{Kind: token.Punct, Text: "#"},
		&token.Token{Kind: token.Number, Text: fmt.Sprint(line), Space: true},
		&token.Token{Kind: token.String, Text: quote(name), Space: true},
		&token.Token{Kind: token.Newline, Text: "\n"},
	)
}

func (r *run) report(sev diag.Severity, kind diag.Kind, pos token.Position, format string, args ...interface{}) {
	d := diag.Diagnostic{Severity: sev, Kind: kind, Message: fmt.Sprintf(format, args...), Pos: pos}
	r.diags.Report(d)
	if r.p.opts.Sink != nil {
		r.p.opts.Sink.Report(d)
	}
	diagnosticsTotal.WithLabelValues(kind.String(), sev.String()).Inc()
	r.log.V(1).Info("diagnostic", "kind", kind.String(), "severity", sev.String(), "pos", pos.String(), "msg", d.Message)
}

// fatal reports a fatal diagnostic and stops the run.
func (r *run) fatal(kind diag.Kind, pos token.Position, format string, args ...interface{}) {
	r.report(diag.Fatal, kind, pos, format, args...)
	d := r.diags[len(r.diags)-1]
	r.err = &diag.Failure{Diagnostic: d}
}

// fail records err coming from a handler or collaborator.
func (r *run) fail(kind diag.Kind, pos token.Position, err error) {
	var de *diag.Failure
	if errors.As(err, &de) {
		if de.Pos.Filename == "" && de.Pos.Line == 0 {
			de.Pos = pos
		}
		r.report(de.Severity, de.Kind, de.Pos, "%s", de.Message)
		if de.Fatal() {
			r.err = de
		}
		return
	}
	r.report(diag.Error, kind, pos, "%v", err)
}

// defineText defines a macro from its spelling: key is the name with an
// optional parameter list, body the replacement text.
func (r *run) defineText(key, body string) error {
	text := key + " " + body
	file := token.NewFile("<command-line>", len(text))
	var lexErr error
	toks := lexer.Tokenize(file, []byte(text), func(pos token.Pos, kind diag.Kind, msg string) {
		if lexErr == nil {
			lexErr = errors.New(msg)
		}
	})
	if lexErr != nil {
		return lexErr
	}
	var line []*token.Token
	for _, t := range toks {
		switch t.Kind {
		case token.Space, token.EOF:
			continue
		case token.Newline:
			// Multi-line values keep going on one logical line.
			continue
		}
		line = append(line, t)
	}
	if len(line) == 0 {
		return fmt.Errorf("empty macro name")
	}
	m, err := macro.Parse(line[0], line[1:])
	if err != nil {
		return err
	}
	return r.define(m, m.Loc.Position())
}

// define installs m and reports an incompatible redefinition.
func (r *run) define(m *macro.Macro, pos token.Position) error {
	err := r.macros.Define(m)
	var re *macro.RedefinitionError
	if errors.As(err, &re) {
		sev := diag.Error
		if re.Replaced {
			sev = diag.Warning
		}
		r.report(sev, diag.MacroRedefinition, pos, "%v", re)
		if prev := re.Old.Loc.Position(); prev.IsValid() {
			r.report(diag.Note, diag.MacroRedefinition, prev, "previous definition of %q was here", re.Old.Name)
		}
		return nil
	}
	if err != nil {
		return err
	}
	r.log.V(1).Info("defined macro", "name", m.Name, "kind", m.Kind.String())
	return nil
}

func (r *run) result() *Result {
	return &Result{
		ID:          r.id,
		Tokens:      r.out,
		Diagnostics: r.diags,
		Macros:      r.macros,
	}
}
