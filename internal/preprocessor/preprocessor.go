// Package preprocessor expands macros and evaluates conditional compilation
// over C-family source, with room for embedder supplied directives.
package preprocessor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/fwessels/cppx/internal/diag"
	"github.com/fwessels/cppx/internal/macro"
	"github.com/fwessels/cppx/internal/token"
)

// VariadicComma selects what happens to a comma in front of __VA_ARGS__ when
// a variadic macro receives no variadic arguments.
type VariadicComma int

const (
	DeleteComma VariadicComma = iota
	KeepComma
)

func ParseVariadicComma(s string) (VariadicComma, error) {
	switch strings.ToLower(s) {
	case "delete", "delete-comma":
		return DeleteComma, nil
	case "keep", "keep-comma":
		return KeepComma, nil
	}
	return DeleteComma, fmt.Errorf("unknown variadic comma policy %q", s)
}

const (
	DefaultExpansionLimit = 1 << 20
	DefaultIncludeDepth   = 200
)

// Options configure a Preprocessor. The zero value is usable: includes all
// fail, redefinitions are reported and pragmas are kept in the output.
type Options struct {
	Includer Includer

	// Defines are installed before every run, in name order. A key may
	// carry a parameter list, as in "MAX(a,b)".
	Defines   map[string]string
	Undefines []string

	Redefinition        macro.Policy
	RedefinitionCompare macro.Compare
	VariadicComma       VariadicComma

	ExpansionLimit  int
	MaxIncludeDepth int

	// DiscardPragmas drops unknown #pragma lines instead of passing them
	// through to the output.
	DiscardPragmas bool
	// LineMarkers emits `# N "file"` lines whenever the output switches
	// between files.
	LineMarkers bool

	Sink   diag.Sink
	Logger logr.Logger
}

var (
	ErrHandlerExists     = errors.New("directive handler already registered")
	ErrRegistryFrozen    = errors.New("directive handlers can only be registered before the first run")
	ErrReservedDirective = errors.New("directive name is reserved")
	ErrHandlerReentry    = errors.New("directive used outside of its handler")
)

// ---------------- Preprocessor ----------------

// Preprocessor holds configuration and registered directive handlers. A
// single Preprocessor may serve concurrent runs; each run owns its macro
// table and conditional state.
type Preprocessor struct {
	opts Options

	mu       sync.Mutex
	handlers map[string]Handler
	frozen   atomic.Bool
}

func New(opts Options) *Preprocessor {
	if opts.ExpansionLimit <= 0 {
		opts.ExpansionLimit = DefaultExpansionLimit
	}
	if opts.MaxIncludeDepth <= 0 {
		opts.MaxIncludeDepth = DefaultIncludeDepth
	}
	if opts.Logger.GetSink() == nil {
		opts.Logger = logr.Discard()
	}
	return &Preprocessor{
		opts:     opts,
		handlers: map[string]Handler{},
	}
}

// Register adds a handler for a directive name. It must be called before the
// first Run; built-in directive names cannot be taken over.
func (p *Preprocessor) Register(name string, h Handler) error {
	if p.frozen.Load() {
		return fmt.Errorf("register %q: %w", name, ErrRegistryFrozen)
	}
	if builtinDirectives[name] {
		return fmt.Errorf("register %q: %w", name, ErrReservedDirective)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.handlers[name]; ok {
		return fmt.Errorf("register %q: %w", name, ErrHandlerExists)
	}
	p.handlers[name] = h
	return nil
}

// Result is the outcome of a run. It is returned even when the run failed,
// holding whatever output was produced up to that point.
type Result struct {
	ID          string
	Tokens      []*token.Token
	Diagnostics diag.List
	Macros      *macro.Table
}

// String renders the output tokens as text.
func (r *Result) String() string { return token.Join(r.Tokens) }

func (r *Result) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, r.String())
	return int64(n), err
}

// Run preprocesses src as the translation unit called name. The error is
// non-nil only when the run was aborted: by a fatal diagnostic, returned as
// a *diag.Failure, or by ctx.
func (p *Preprocessor) Run(ctx context.Context, name string, src []byte) (*Result, error) {
	p.frozen.Store(true)
	start := time.Now()

	r := p.newRun(ctx, name, macro.NewTable(p.opts.Redefinition, p.opts.RedefinitionCompare))
	r.log.V(1).Info("starting run", "size", len(src))
	r.installPredefined()
	r.process(r.newSource(name, src))

	res := r.result()
	runDuration.Observe(time.Since(start).Seconds())
	result := "ok"
	if r.err != nil {
		result = "failed"
	}
	runsTotal.WithLabelValues(result).Inc()
	r.log.Info("run finished", "result", result, "tokens", len(res.Tokens),
		"diagnostics", len(res.Diagnostics), "macros", res.Macros.Len(), "duration", time.Since(start))
	return res, r.err
}

func (p *Preprocessor) newRun(ctx context.Context, name string, macros *macro.Table) *run {
	id := uuid.NewString()
	return &run{
		p:      p,
		ctx:    ctx,
		id:     id,
		log:    p.opts.Logger.WithValues("run", id, "file", shortPath(name)),
		macros: macros,
		once:   map[string]bool{},
	}
}

// installPredefined installs the builtin macros and Options.Defines, then
// applies Options.Undefines.
func (r *run) installPredefined() {
	r.installBuiltins()
	keys := make([]string, 0, len(r.p.opts.Defines))
	for k := range r.p.opts.Defines {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := r.defineText(k, r.p.opts.Defines[k]); err != nil {
			r.report(diag.Error, diag.MalformedDirective, token.Position{Filename: "<command-line>"}, "-D%s: %v", k, err)
		}
	}
	for _, name := range r.p.opts.Undefines {
		r.macros.Undef(name)
	}
}

// ParseDefine splits a command line definition of the form NAME or
// NAME=VALUE. A bare NAME is defined as 1.
func ParseDefine(s string) (name, value string) {
	if i := strings.IndexByte(s, '='); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, "1"
}
