package preprocessor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fwessels/cppx/internal/diag"
	"github.com/fwessels/cppx/internal/token"
)

// ErrNotFound is returned by an Includer when the requested file does not
// exist anywhere it looked.
var ErrNotFound = errors.New("include file not found")

// IncludeForm tells how the include operand was spelled.
type IncludeForm int

const (
	Quoted IncludeForm = iota // #include "file"
	Angle                     // #include <file>
)

func (f IncludeForm) String() string {
	if f == Angle {
		return "angle"
	}
	return "quoted"
}

// Includer resolves #include operands. from is the resolved name of the
// requesting file. The returned name identifies the file for diagnostics,
// __FILE__ and #pragma once.
type Includer interface {
	Include(ctx context.Context, spec string, form IncludeForm, from string) (name string, content []byte, err error)
}

// IncluderFunc adapts a function to the Includer interface.
type IncluderFunc func(ctx context.Context, spec string, form IncludeForm, from string) (string, []byte, error)

func (f IncluderFunc) Include(ctx context.Context, spec string, form IncludeForm, from string) (string, []byte, error) {
	return f(ctx, spec, form, from)
}

// ---------------- Include resolution ----------------

// DirIncluder searches the file system. Quoted includes look next to the
// requesting file, then in QuoteDirs, then in Dirs. Angle includes only
// look in Dirs.
type DirIncluder struct {
	QuoteDirs []string
	Dirs      []string
}

func (d *DirIncluder) Include(ctx context.Context, spec string, form IncludeForm, from string) (string, []byte, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	resolved, err := d.resolveAsFile(spec, form, from)
	if err != nil {
		return "", nil, err
	}
	bs, err := os.ReadFile(resolved)
	if err != nil {
		return "", nil, fmt.Errorf("include %q: %w", spec, err)
	}
	return resolved, bs, nil
}

func (d *DirIncluder) resolveAsFile(path string, form IncludeForm, includingFile string) (string, error) {
	if filepath.IsAbs(path) {
		if fileExists(path) {
			return filepath.Clean(path), nil
		}
		return "", fmt.Errorf("%q: %w", path, ErrNotFound)
	}

	var dirs []string
	if form == Quoted {
		// 1) relative to including file directory
		if includingFile != "" && includingFile != "<stdin>" {
			dirs = append(dirs, filepath.Dir(includingFile))
		}
		dirs = append(dirs, d.QuoteDirs...)
	}
	// 2) include dirs
	dirs = append(dirs, d.Dirs...)

	for _, dir := range dirs {
		cand := filepath.Join(dir, path)
		if fileExists(cand) {
			return filepath.Clean(cand), nil
		}
	}
	return "", fmt.Errorf("cannot resolve include %q: %w", path, ErrNotFound)
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

// MapIncluder serves includes from memory, keyed by the spelled operand.
// Quoted lookups first try the key joined with the requesting file's
// directory.
type MapIncluder map[string]string

func (m MapIncluder) Include(ctx context.Context, spec string, form IncludeForm, from string) (string, []byte, error) {
	if form == Quoted && from != "" {
		if dir := filepath.Dir(from); dir != "." {
			key := filepath.ToSlash(filepath.Join(dir, spec))
			if s, ok := m[key]; ok {
				return key, []byte(s), nil
			}
		}
	}
	if s, ok := m[spec]; ok {
		return spec, []byte(s), nil
	}
	return "", nil, fmt.Errorf("%q: %w", spec, ErrNotFound)
}

func shortPath(p string) string {
	if p == "" {
		return p
	}
	return filepath.Base(p)
}

// includeOperand splits an include operand into the file spec and its form.
func includeOperand(text string) (string, IncludeForm, bool) {
	text = strings.TrimSpace(text)
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		return text[1 : len(text)-1], Quoted, true
	}
	if len(text) >= 2 && text[0] == '<' && text[len(text)-1] == '>' {
		return text[1 : len(text)-1], Angle, true
	}
	return "", Quoted, false
}

// include handles #include. A missing file or too deep nesting stops the
// run.
func (r *run) include(s *source, dir *token.Token, args []*token.Token, nl *token.Token) {
	spec, form, ok := r.includeSpec(args)
	if !ok {
		r.report(diag.Error, diag.MalformedDirective, dir.Position(), "#include expects \"FILENAME\" or <FILENAME>")
		return
	}
	if len(r.sources) >= r.p.opts.MaxIncludeDepth {
		r.fatal(diag.IncludeDepth, dir.Position(), "#include nested depth %d exceeds maximum of %d", len(r.sources), r.p.opts.MaxIncludeDepth)
		return
	}
	if r.p.opts.Includer == nil {
		r.fatal(diag.IncludeNotFound, dir.Position(), "%s: no include resolver configured", spec)
		return
	}
	name, content, err := r.p.opts.Includer.Include(r.ctx, spec, form, s.name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			r.fatal(diag.IncludeNotFound, dir.Position(), "%s: No such file or directory", spec)
		} else {
			r.fatal(diag.IncludeNotFound, dir.Position(), "include %q: %v", spec, err)
		}
		return
	}
	if r.once[name] {
		r.log.V(1).Info("skipping #pragma once file", "include", name)
		return
	}
	includesTotal.Inc()
	r.log.V(1).Info("entering include", "include", name, "form", form.String(), "depth", len(r.sources))
	r.process(r.newSource(name, content))
	if r.err == nil && r.p.opts.LineMarkers && nl != nil {
		pos := s.file.PositionFor(nl.Pos, true)
		r.marker(pos.Line+1, pos.Filename)
	}
}

// includeSpec reads the operand of #include: a string literal, a <...>
// sequence, or tokens that macro-expand to one of those.
func (r *run) includeSpec(args []*token.Token) (string, IncludeForm, bool) {
	if spec, form, ok := includeOperandTokens(args); ok {
		return spec, form, true
	}
	expanded, _ := r.expandTokens(args, false)
	return includeOperandTokens(expanded)
}

func includeOperandTokens(args []*token.Token) (string, IncludeForm, bool) {
	if len(args) == 0 {
		return "", Quoted, false
	}
	if len(args) == 1 && args[0].Kind == token.String {
		return includeOperand(args[0].Text)
	}
	if !args[0].IsPunct("<") || !args[len(args)-1].IsPunct(">") || len(args) < 2 {
		return "", Quoted, false
	}
	var b strings.Builder
	b.WriteByte('<')
	for i, t := range args[1 : len(args)-1] {
		if i > 0 && t.Space {
			b.WriteByte(' ')
		}
		b.WriteString(t.Text)
	}
	b.WriteByte('>')
	return includeOperand(b.String())
}
