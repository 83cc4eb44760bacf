package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"

	"github.com/fwessels/cppx/internal/config"
	"github.com/fwessels/cppx/internal/diag"
	"github.com/fwessels/cppx/internal/macro"
	"github.com/fwessels/cppx/internal/preprocessor"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

type flags struct {
	includes, quotes, defines, undefines listFlag

	output, configPath string
	debug, dumpMacros  bool
	lineMarkers        bool
	watch, stats       bool

	glsl        bool
	glslVersion string
	glslExts    listFlag

	redefine, redefineCompare, variadicComma string
}

func parseFlags(args []string, stderr io.Writer) (*flags, *flag.FlagSet, error) {
	f := &flags{}
	fs := flag.NewFlagSet("cppx", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Var(&f.includes, "I", "Add a directory to the include search path")
	fs.Var(&f.quotes, "iquote", "Add a directory searched only by #include \"...\"")
	fs.Var(&f.defines, "D", "Define a macro, as NAME or NAME=VALUE")
	fs.Var(&f.undefines, "U", "Undefine a predefined macro")
	fs.StringVar(&f.output, "o", "", "Write output to this file instead of stdout")
	fs.StringVar(&f.configPath, "config", "", "YAML configuration file")
	fs.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&f.dumpMacros, "dM", false, "Print the macro definitions in effect at the end instead of the output")
	fs.BoolVar(&f.lineMarkers, "line-markers", false, "Emit # N \"file\" markers when the output switches files")
	fs.BoolVar(&f.watch, "watch", false, "Run again whenever the input or an include directory changes")
	fs.BoolVar(&f.stats, "stats", false, "Print preprocessing metrics to stderr when done")
	fs.BoolVar(&f.glsl, "glsl", false, "Handle the GLSL #version and #extension directives")
	fs.StringVar(&f.glslVersion, "glsl-version", "", "Semver constraint on accepted GLSL versions, e.g. \">= 3.3\"")
	fs.Var(&f.glslExts, "glsl-extension", "Declare a supported GLSL extension")
	fs.StringVar(&f.redefine, "redefine", "", "Redefinition policy: report, override, preserve or warn-override")
	fs.StringVar(&f.redefineCompare, "redefine-compare", "", "How redefinitions are compared: exact or semantic")
	fs.StringVar(&f.variadicComma, "variadic-comma", "", "Comma before an empty __VA_ARGS__: delete or keep")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if fs.NArg() > 1 {
		return nil, nil, fmt.Errorf("at most one input file, got %d", fs.NArg())
	}
	return f, fs, nil
}

// merge applies command line flags on top of the configuration file.
func (f *flags) merge(c *config.Config) {
	c.IncludeDirs = append(c.IncludeDirs, f.includes...)
	c.QuoteDirs = append(c.QuoteDirs, f.quotes...)
	if c.Defines == nil {
		c.Defines = map[string]string{}
	}
	for _, d := range f.defines {
		name, value := preprocessor.ParseDefine(d)
		c.Defines[name] = value
	}
	c.Undefines = append(c.Undefines, f.undefines...)
	if f.redefine != "" {
		c.Redefine = f.redefine
	}
	if f.redefineCompare != "" {
		c.RedefineCompare = f.redefineCompare
	}
	if f.variadicComma != "" {
		c.VariadicComma = f.variadicComma
	}
	if f.lineMarkers {
		c.LineMarkers = true
	}
	if f.glsl || f.glslVersion != "" || len(f.glslExts) > 0 {
		if c.GLSL == nil {
			c.GLSL = &config.GLSL{}
		}
		if f.glslVersion != "" {
			c.GLSL.Versions = f.glslVersion
		}
		c.GLSL.Extensions = append(c.GLSL.Extensions, f.glslExts...)
	}
}

func newLogger(debug bool) (logr.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	zl, err := cfg.Build()
	if err != nil {
		return logr.Discard(), err
	}
	return zapr.NewLogger(zl), nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	f, fs, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg := &config.Config{}
	if f.configPath != "" {
		if cfg, err = config.Load(f.configPath); err != nil {
			return err
		}
	}
	f.merge(cfg)

	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	if opts.Logger, err = newLogger(f.debug); err != nil {
		return fmt.Errorf("constructing logger: %w", err)
	}
	opts.Sink = diag.SinkFunc(func(d diag.Diagnostic) {
		fmt.Fprintln(stderr, d)
	})

	handlers, err := cfg.Handlers()
	if err != nil {
		return err
	}
	if handlers != nil {
		for k, v := range handlers.Defines() {
			if _, ok := opts.Defines[k]; !ok {
				opts.Defines[k] = v
			}
		}
	}
	p := preprocessor.New(opts)
	if handlers != nil {
		if err := handlers.Register(p); err != nil {
			return fmt.Errorf("registering glsl directives: %w", err)
		}
	}

	j := &job{
		p:      p,
		input:  fs.Arg(0),
		output: f.output,
		dumpM:  f.dumpMacros,
		stdin:  stdin,
		stdout: stdout,
		log:    opts.Logger,
	}
	if f.watch {
		err = j.watch(ctx, cfg.IncludeDirs, cfg.QuoteDirs)
	} else {
		err = j.once(ctx)
	}
	if f.stats {
		if serr := writeStats(stderr); serr != nil && err == nil {
			err = serr
		}
	}
	return err
}

// job is one configured preprocessing task, run once or on every change.
type job struct {
	p             *preprocessor.Preprocessor
	input, output string
	dumpM         bool
	stdin         io.Reader
	stdout        io.Writer
	log           logr.Logger
}

func (j *job) name() string {
	if j.input == "" || j.input == "-" {
		return "<stdin>"
	}
	return j.input
}

func (j *job) once(ctx context.Context) error {
	var src []byte
	var err error
	if j.name() == "<stdin>" {
		src, err = io.ReadAll(j.stdin)
	} else {
		src, err = os.ReadFile(j.input)
	}
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	res, runErr := j.p.Run(ctx, j.name(), src)

	if j.output == "" {
		err = j.write(j.stdout, res)
	} else {
		err = j.writeFile(res)
	}
	if err != nil {
		return err
	}

	if runErr != nil {
		return runErr
	}
	if n := res.Diagnostics.Count(diag.Error); n > 0 {
		return fmt.Errorf("%d error(s) generated", n)
	}
	return nil
}

func (j *job) write(w io.Writer, res *preprocessor.Result) error {
	var err error
	if j.dumpM {
		err = dumpMacros(w, res.Macros)
	} else {
		_, err = res.WriteTo(w)
	}
	if err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

func (j *job) writeFile(res *preprocessor.Result) error {
	file, err := os.Create(j.output)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if err := j.write(file, res); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing output: %w", err)
	}
	return nil
}

// dumpMacros prints every user visible definition as a #define line.
func dumpMacros(w io.Writer, t *macro.Table) error {
	var err error
	t.Each(func(m *macro.Macro) {
		if err != nil || m.Kind == macro.Builtin {
			return
		}
		_, err = fmt.Fprintf(w, "#define %s\n", m.Signature())
	})
	return err
}

// watch runs the job, then again on every change under the input's
// directory and the include directories, until ctx is done.
func (j *job) watch(ctx context.Context, dirs ...[]string) error {
	if j.name() == "<stdin>" {
		return errors.New("-watch needs an input file")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	watched := map[string]bool{}
	add := func(dir string) error {
		abs, err := filepath.Abs(dir)
		if err != nil || watched[abs] {
			return err
		}
		watched[abs] = true
		return w.Add(abs)
	}
	if err := add(filepath.Dir(j.input)); err != nil {
		return err
	}
	for _, list := range dirs {
		for _, dir := range list {
			if err := add(dir); err != nil {
				j.log.Error(err, "cannot watch include directory", "dir", dir)
			}
		}
	}

	var output string
	if j.output != "" {
		output, _ = filepath.Abs(j.output)
	}

	if err := j.once(ctx); err != nil {
		j.log.Error(err, "preprocessing failed")
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if abs, _ := filepath.Abs(ev.Name); abs == output {
				continue
			}
			j.log.V(1).Info("change detected", "path", ev.Name, "op", ev.Op.String())
			if err := j.once(ctx); err != nil {
				j.log.Error(err, "preprocessing failed")
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			j.log.Error(err, "watch error")
		}
	}
}

// writeStats prints the cppx metrics in the Prometheus text format.
func writeStats(w io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "cppx_") {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
