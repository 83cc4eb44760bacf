// Package glsl adds the GLSL #version and #extension directives to a
// preprocessor. Both lines are checked and then passed through, since the
// shader compiler needs to see them.
package glsl

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/Masterminds/semver/v3"

	"github.com/fwessels/cppx/internal/diag"
	"github.com/fwessels/cppx/internal/preprocessor"
	"github.com/fwessels/cppx/internal/token"
)

// Config selects what a shader may ask for.
type Config struct {
	// Versions is a semver constraint on the #version number, read as
	// MAJOR.MINOR: 330 is 3.3, 100 is 1.0. Empty accepts any version.
	Versions string
	// Extensions lists the supported extensions. nil supports all of them.
	Extensions []string
}

type Handlers struct {
	versions   *semver.Constraints
	extensions map[string]bool
}

func New(cfg Config) (*Handlers, error) {
	expr := cfg.Versions
	if expr == "" {
		expr = ">=0.0.0"
	}
	c, err := semver.NewConstraint(expr)
	if err != nil {
		return nil, fmt.Errorf("glsl version constraint %q: %w", cfg.Versions, err)
	}
	h := &Handlers{versions: c}
	if cfg.Extensions != nil {
		h.extensions = map[string]bool{}
		for _, e := range cfg.Extensions {
			h.extensions[e] = true
		}
	}
	return h, nil
}

// Register installs the #version and #extension handlers on p.
func (h *Handlers) Register(p *preprocessor.Preprocessor) error {
	if err := p.Register("version", preprocessor.HandlerFunc(h.version)); err != nil {
		return err
	}
	return p.Register("extension", preprocessor.HandlerFunc(h.extension))
}

// Defines returns a macro per supported extension, defined as 1, the way a
// GLSL compiler announces them.
func (h *Handlers) Defines() map[string]string {
	names := make([]string, 0, len(h.extensions))
	for name := range h.extensions {
		names = append(names, name)
	}
	sort.Strings(names)
	defs := make(map[string]string, len(names))
	for _, name := range names {
		defs[name] = "1"
	}
	return defs
}

// Profiles accepted after the version number.
const (
	Core          = "core"
	Compatibility = "compatibility"
	ES            = "es"
)

// versionOf maps a #version number to MAJOR.MINOR.
func versionOf(n uint64) *semver.Version {
	return semver.New(n/100, n%100/10, 0, "", "")
}

// version handles `#version NUMBER [PROFILE]`.
func (h *Handlers) version(d *preprocessor.Directive) error {
	if !d.Leading() {
		return diag.Errorf(diag.MalformedDirective, diag.Error, d.Pos(), "#version must occur before anything else")
	}
	if len(d.Args) == 0 || d.Args[0].Kind != token.Number {
		return diag.Errorf(diag.MalformedDirective, diag.Error, d.Pos(), "#version requires a version number")
	}
	n, err := strconv.ParseUint(d.Args[0].Text, 10, 32)
	if err != nil {
		return diag.Errorf(diag.MalformedDirective, diag.Error, d.Args[0].Position(), "invalid #version number %q", d.Args[0].Text)
	}
	profile := ""
	switch len(d.Args) {
	case 1:
	case 2:
		profile = d.Args[1].Text
		if d.Args[1].Kind != token.Ident || profile != Core && profile != Compatibility && profile != ES {
			return diag.Errorf(diag.MalformedDirective, diag.Error, d.Args[1].Position(), "invalid #version profile %q", profile)
		}
	default:
		return diag.Errorf(diag.MalformedDirective, diag.Error, d.Args[2].Position(), "extra tokens at end of #version directive")
	}
	if v := versionOf(n); !h.versions.Check(v) {
		return diag.Errorf(diag.HandlerError, diag.Error, d.Pos(), "#version %d is not supported (accepted: %s)", n, h.versions)
	}

	d.Logger().V(1).Info("glsl version", "version", n, "profile", profile)
	if err := d.DefineText("__VERSION__", strconv.FormatUint(n, 10)); err != nil {
		return err
	}
	if profile == ES || n == 100 {
		if err := d.DefineText("GL_ES", "1"); err != nil {
			return err
		}
	}
	return d.PassThrough()
}

var behaviors = map[string]bool{
	"require": true,
	"enable":  true,
	"warn":    true,
	"disable": true,
}

// extension handles `#extension NAME : BEHAVIOR`.
func (h *Handlers) extension(d *preprocessor.Directive) error {
	a := d.Args
	if len(a) != 3 || a[0].Kind != token.Ident || !a[1].IsPunct(":") || a[2].Kind != token.Ident {
		return diag.Errorf(diag.MalformedDirective, diag.Error, d.Pos(), "#extension expects NAME : BEHAVIOR")
	}
	name, behavior := a[0].Text, a[2].Text
	if !behaviors[behavior] {
		return diag.Errorf(diag.MalformedDirective, diag.Error, a[2].Position(), "unknown extension behavior %q", behavior)
	}
	if name == "all" {
		if behavior != "warn" && behavior != "disable" {
			return diag.Errorf(diag.MalformedDirective, diag.Error, a[2].Position(), "extension 'all' cannot have %q behavior", behavior)
		}
	} else if h.extensions != nil && !h.extensions[name] {
		switch behavior {
		case "require":
			return diag.Errorf(diag.HandlerError, diag.Error, a[0].Position(), "extension %q is not supported", name)
		case "enable", "warn":
			d.Report(diag.Warning, diag.HandlerError, "extension %q is not supported", name)
		}
	}
	d.Logger().V(1).Info("glsl extension", "name", name, "behavior", behavior)
	return d.PassThrough()
}
