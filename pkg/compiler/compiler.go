// Package compiler ties the phases together: preprocessing, parsing and
// code generation of a translation unit under one configuration.
package compiler

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/raymyers/ccx64/pkg/ast"
	"github.com/raymyers/ccx64/pkg/codegen"
	"github.com/raymyers/ccx64/pkg/cpp"
	"github.com/raymyers/ccx64/pkg/diag"
	"github.com/raymyers/ccx64/pkg/driver"
	"github.com/raymyers/ccx64/pkg/lexer"
	"github.com/raymyers/ccx64/pkg/parser"
)

// Context compiles translation units under one configuration. Every unit
// gets a fresh preprocessor, parser and generator; only the reporter is
// shared, so warnings accumulate across units.
type Context struct {
	Config   *Config
	Reporter *diag.Reporter

	files []*lexer.File // files read by the last preprocessed unit
}

// NewContext creates a context reporting warnings to stderr. cfg must have
// passed WarnLevel validation (LoadConfig does this).
func NewContext(cfg *Config, stderr io.Writer) *Context {
	if cfg == nil {
		cfg = &Config{}
	}
	level, _ := cfg.WarnLevel()
	rep := diag.NewReporter(stderr, level)
	rep.Werror = cfg.Werror
	return &Context{Config: cfg, Reporter: rep}
}

// Files returns the source files read by the last preprocessed unit, the
// main file first.
func (c *Context) Files() []*lexer.File {
	return c.files
}

// Preprocess reads and preprocesses a source file. "-" reads stdin.
func (c *Context) Preprocess(ctx context.Context, path string) ([]lexer.Token, error) {
	if c.Config.ExternalCPP && path != "-" {
		src, err := c.externalPreprocess(ctx, path)
		if err != nil {
			return nil, err
		}
		return c.PreprocessSource(path, src)
	}
	src, err := driver.ReadSource(path)
	if err != nil {
		return nil, err
	}
	return c.PreprocessSource(path, src)
}

// PreprocessSource preprocesses an in-memory buffer named name.
func (c *Context) PreprocessSource(name, src string) ([]lexer.Token, error) {
	toks, err := lexer.TokenizeString(name, src)
	if err != nil {
		return nil, err
	}
	pp, err := cpp.New(cpp.Options{
		IncludePaths: c.Config.IncludePaths,
		SystemPaths:  c.Config.SystemPaths,
		Defines:      c.Config.Defines,
		Undefines:    c.Config.Undefines,
		Reporter:     c.Reporter,
		Now:          c.Config.Now,
	})
	if err != nil {
		return nil, err
	}
	out, err := pp.Run(toks)
	c.files = pp.Files()
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Parse converts preprocessing tokens and parses them into a program.
func (c *Context) Parse(toks []lexer.Token) (*ast.Program, error) {
	if err := lexer.ConvertPPTokens(toks); err != nil {
		return nil, err
	}
	return parser.Parse(toks, c.Reporter)
}

// Generate writes the assembly for prog.
func (c *Context) Generate(prog *ast.Program, w io.Writer) error {
	bw := bufio.NewWriter(w)
	gen := codegen.New(bw, codegen.Options{Debug: c.Config.Debug, Files: c.files})
	if err := gen.Emit(prog); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write assembly: %w", err)
	}
	return nil
}

// CompileSource compiles an in-memory buffer to assembly on w.
func (c *Context) CompileSource(name, src string, w io.Writer) (err error) {
	defer recoverInternal(&err)
	c.Reporter.Reset()
	toks, err := c.PreprocessSource(name, src)
	if err != nil {
		return err
	}
	return c.compileTokens(toks, w)
}

// CompileFile compiles a source file to assembly on w.
func (c *Context) CompileFile(ctx context.Context, path string, w io.Writer) (err error) {
	defer recoverInternal(&err)
	c.Reporter.Reset()
	toks, err := c.Preprocess(ctx, path)
	if err != nil {
		return err
	}
	return c.compileTokens(toks, w)
}

func (c *Context) compileTokens(toks []lexer.Token, w io.Writer) error {
	prog, err := c.Parse(toks)
	if err != nil {
		return err
	}
	if err := c.Generate(prog, w); err != nil {
		return err
	}
	return c.Reporter.Err()
}

// recoverInternal turns an internal-error panic into an error so callers
// can report it and exit with a distinct status.
func recoverInternal(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if ie, ok := r.(*diag.InternalError); ok {
		*errp = ie
		return
	}
	panic(r)
}
