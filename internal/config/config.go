// Package config reads the cppx configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/fwessels/cppx/internal/glsl"
	"github.com/fwessels/cppx/internal/macro"
	"github.com/fwessels/cppx/internal/preprocessor"
)

// Config mirrors the command line flags. Flags given on the command line
// override what the file sets.
type Config struct {
	IncludeDirs []string          `yaml:"include_dirs"`
	QuoteDirs   []string          `yaml:"quote_dirs"`
	Defines     map[string]string `yaml:"defines"`
	Undefines   []string          `yaml:"undefines"`

	Redefine        string `yaml:"redefine"`
	RedefineCompare string `yaml:"redefine_compare"`
	VariadicComma   string `yaml:"variadic_comma"`

	ExpansionLimit  int  `yaml:"expansion_limit"`
	MaxIncludeDepth int  `yaml:"max_include_depth"`
	LineMarkers     bool `yaml:"line_markers"`
	DiscardPragmas  bool `yaml:"discard_pragmas"`

	GLSL *GLSL `yaml:"glsl"`
}

type GLSL struct {
	Versions   string   `yaml:"versions"`
	Extensions []string `yaml:"extensions"`
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes data strictly: unknown keys are an error.
func Parse(data []byte) (*Config, error) {
	c := &Config{}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return nil, err
	}
	if _, err := c.Options(); err != nil {
		return nil, err
	}
	return c, nil
}

// Options turns the configuration into preprocessor options. Logger and
// Sink are left for the caller.
func (c *Config) Options() (preprocessor.Options, error) {
	opts := preprocessor.Options{
		Defines:         map[string]string{},
		Undefines:       c.Undefines,
		ExpansionLimit:  c.ExpansionLimit,
		MaxIncludeDepth: c.MaxIncludeDepth,
		LineMarkers:     c.LineMarkers,
		DiscardPragmas:  c.DiscardPragmas,
		Includer: &preprocessor.DirIncluder{
			QuoteDirs: c.QuoteDirs,
			Dirs:      c.IncludeDirs,
		},
	}
	for k, v := range c.Defines {
		opts.Defines[k] = v
	}

	var err error
	if c.Redefine != "" {
		if opts.Redefinition, err = macro.ParsePolicy(c.Redefine); err != nil {
			return opts, err
		}
	}
	if c.RedefineCompare != "" {
		if opts.RedefinitionCompare, err = macro.ParseCompare(c.RedefineCompare); err != nil {
			return opts, err
		}
	}
	if c.VariadicComma != "" {
		if opts.VariadicComma, err = preprocessor.ParseVariadicComma(c.VariadicComma); err != nil {
			return opts, err
		}
	}
	if c.ExpansionLimit < 0 || c.MaxIncludeDepth < 0 {
		return opts, fmt.Errorf("expansion_limit and max_include_depth must not be negative")
	}
	return opts, nil
}

// Handlers builds the GLSL directive handlers, or returns nil when the file
// does not enable them.
func (c *Config) Handlers() (*glsl.Handlers, error) {
	if c.GLSL == nil {
		return nil, nil
	}
	return glsl.New(glsl.Config{Versions: c.GLSL.Versions, Extensions: c.GLSL.Extensions})
}
