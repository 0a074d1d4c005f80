package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/raymyers/ccx64/pkg/ast"
	"github.com/raymyers/ccx64/pkg/compiler"
	"github.com/raymyers/ccx64/pkg/cpp"
	"github.com/raymyers/ccx64/pkg/diag"
	"github.com/raymyers/ccx64/pkg/driver"
	"github.com/raymyers/ccx64/pkg/lexer"
)

var version = "0.1.0"

// Output selection
var (
	outputPath     string
	assemblyOnly   bool // -S
	compileOnly    bool // -c
	preprocessOnly bool // -E
	echoCommands   bool // -###
)

// Preprocessor and diagnostic options
var (
	includePaths  []string
	systemPaths   []string
	defineFlags   []string
	undefineFlags []string
	warnFlags     []string // -Wall, -Werror
	noWarnings    bool     // -w
	debugInfo     bool     // -g
	externalCPP   bool
	configPath    string
)

// Debug dumps
var (
	dumpTokens bool
	dumpAST    bool
)

func main() {
	os.Exit(run())
}

func run() int {
	return execute(normalizeFlags(os.Args[1:]), os.Stdout, os.Stderr)
}

// execute runs the command line and maps the outcome to an exit status:
// 1 for invalid input or a failing tool, 2 for a compiler defect.
func execute(args []string, out, errOut io.Writer) (code int) {
	defer func() {
		if r := recover(); r != nil {
			ie, ok := r.(*diag.InternalError)
			if !ok {
				panic(r)
			}
			fmt.Fprintf(errOut, "ccx64: %v\n", ie)
			code = 2
		}
	}()

	rootCmd := newRootCmd(out, errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	var de *diag.Error
	if errors.As(err, &de) && de.Line > 0 {
		// Source-anchored diagnostics carry their own location.
		fmt.Fprintln(errOut, err)
	} else {
		fmt.Fprintf(errOut, "ccx64: %v\n", err)
	}
	if diag.IsInternal(err) {
		return 2
	}
	return 1
}

// longFlagNames lists flags that also accept the single-dash spelling.
var longFlagNames = []string{"dump-tokens", "dump-ast", "isystem", "external-cpp"}

// normalizeFlags converts GCC-style single-dash spellings like -dump-ast
// to --dump-ast, and -### to --echo-commands.
func normalizeFlags(args []string) []string {
	result := make([]string, len(args))
	for i, arg := range args {
		if arg == "-###" {
			result[i] = "--echo-commands"
			continue
		}
		for _, flagName := range longFlagNames {
			if arg == "-"+flagName {
				result[i] = "--" + flagName
				break
			}
		}
		if result[i] == "" {
			result[i] = arg
		}
	}
	return result
}

// wordSepNormalizeFunc accepts --dump_ast as a spelling of --dump-ast.
func wordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ccx64 [flags] file...",
		Short: "ccx64 is a small C compiler for x86-64 Linux",
		Long: `ccx64 compiles C source files to x86-64 assembly (GNU as, Intel
syntax) and drives the system assembler and linker to build
executables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("no input files")
			}
			cfg, err := buildConfig()
			if err != nil {
				return err
			}
			return compileAll(cmd.Context(), cfg, args, out, errOut)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.Flags().SetNormalizeFunc(wordSepNormalizeFunc)

	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write output to `file`")
	rootCmd.Flags().BoolVarP(&assemblyOnly, "assemble-only", "S", false, "Compile only; write assembly")
	rootCmd.Flags().BoolVarP(&compileOnly, "compile-only", "c", false, "Compile and assemble, but do not link")
	rootCmd.Flags().BoolVarP(&preprocessOnly, "preprocess", "E", false, "Preprocess only, output to stdout")
	rootCmd.Flags().BoolVar(&echoCommands, "echo-commands", false, "Print subprocess command lines (-###)")

	rootCmd.Flags().StringArrayVarP(&includePaths, "include", "I", nil, "Add directory to include search path")
	rootCmd.Flags().StringArrayVar(&systemPaths, "isystem", nil, "Add directory to system include search path")
	rootCmd.Flags().StringArrayVarP(&defineFlags, "define", "D", nil, "Define macro (NAME or NAME=VALUE)")
	rootCmd.Flags().StringArrayVarP(&undefineFlags, "undefine", "U", nil, "Undefine macro")
	rootCmd.Flags().BoolVar(&externalCPP, "external-cpp", false, "Run the system preprocessor first")

	rootCmd.Flags().StringArrayVarP(&warnFlags, "warn", "W", nil, "Warning option: all, error")
	rootCmd.Flags().BoolVarP(&noWarnings, "no-warnings", "w", false, "Suppress all warnings")
	rootCmd.Flags().BoolVarP(&debugInfo, "debug", "g", false, "Emit .file/.loc debug line directives")
	rootCmd.Flags().StringVar(&configPath, "config", "", "Read settings from a YAML `file`")

	rootCmd.Flags().BoolVar(&dumpTokens, "dump-tokens", false, "Dump preprocessed tokens")
	rootCmd.Flags().BoolVar(&dumpAST, "dump-ast", false, "Dump the parsed AST")

	return rootCmd
}

// buildConfig loads the config file, if any, and applies the flags on top.
func buildConfig() (*compiler.Config, error) {
	cfg := &compiler.Config{}
	if configPath != "" {
		var err error
		if cfg, err = compiler.LoadConfig(configPath); err != nil {
			return nil, err
		}
	}
	cfg.IncludePaths = append(cfg.IncludePaths, includePaths...)
	cfg.SystemPaths = append(cfg.SystemPaths, systemPaths...)
	cfg.Defines = append(cfg.Defines, defineFlags...)
	cfg.Undefines = append(cfg.Undefines, undefineFlags...)
	cfg.Debug = cfg.Debug || debugInfo
	cfg.ExternalCPP = cfg.ExternalCPP || externalCPP

	for _, w := range warnFlags {
		switch w {
		case "all":
			cfg.Warnings = "all"
		case "error":
			cfg.Werror = true
		default:
			return nil, fmt.Errorf("unknown warning option '-W%s'", w)
		}
	}
	if noWarnings {
		cfg.Warnings = "none"
	}
	return cfg, nil
}

// compileAll processes each input by extension and links the results
// unless -c, -S or -E stops earlier.
func compileAll(ctx context.Context, cfg *compiler.Config, inputs []string, out, errOut io.Writer) error {
	if len(inputs) > 1 && outputPath != "" && (compileOnly || assemblyOnly || preprocessOnly) {
		return errors.New("cannot specify '-o' with '-c', '-S' or '-E' with multiple files")
	}

	d := driver.New(out, errOut)
	d.Echo = echoCommands
	defer d.Cleanup()

	cc := compiler.NewContext(cfg, errOut)
	var ldInputs []string

	for _, input := range inputs {
		ext := filepath.Ext(input)
		switch {
		case ext == ".o" || ext == ".a" || strings.HasSuffix(input, ".so"):
			ldInputs = append(ldInputs, input)
			continue
		case ext == ".s":
			if assemblyOnly || preprocessOnly {
				continue
			}
			obj, err := objectPath(d, input)
			if err != nil {
				return err
			}
			if err := d.Assemble(ctx, input, obj); err != nil {
				return err
			}
			if !compileOnly {
				ldInputs = append(ldInputs, obj)
			}
			continue
		}

		if dumpTokens || dumpAST {
			if err := dump(ctx, cc, input, out); err != nil {
				return err
			}
			continue
		}

		if preprocessOnly {
			if err := preprocess(ctx, cc, input, out, errOut); err != nil {
				return err
			}
			continue
		}

		if assemblyOnly {
			path := outputPath
			if path == "" {
				path = driver.ReplaceExt(input, ".s")
			}
			if err := compileTo(ctx, cc, input, path, errOut); err != nil {
				return err
			}
			continue
		}

		asmPath, err := d.TempFile(".s")
		if err != nil {
			return err
		}
		if err := compileTo(ctx, cc, input, asmPath, errOut); err != nil {
			return err
		}
		obj, err := objectPath(d, input)
		if err != nil {
			return err
		}
		if err := d.Assemble(ctx, asmPath, obj); err != nil {
			return err
		}
		if !compileOnly {
			ldInputs = append(ldInputs, obj)
		}
	}

	if len(ldInputs) == 0 || compileOnly || assemblyOnly || preprocessOnly {
		return nil
	}
	exe := outputPath
	if exe == "" {
		exe = "a.out"
	}
	return d.Link(ctx, ldInputs, exe)
}

// objectPath picks where the object file of input goes: the -o path or
// foo.o with -c, a temp file otherwise.
func objectPath(d *driver.Driver, input string) (string, error) {
	if !compileOnly {
		return d.TempFile(".o")
	}
	if outputPath != "" {
		return outputPath, nil
	}
	return driver.ReplaceExt(input, ".o"), nil
}

// openOutput opens path, falling back to stdout with a warning.
func openOutput(path string, errOut io.Writer) io.WriteCloser {
	w, err := driver.OpenOutput(path)
	if err != nil {
		fmt.Fprintf(errOut, "ccx64: warning: %v; writing to standard output\n", err)
	}
	return w
}

func compileTo(ctx context.Context, cc *compiler.Context, input, path string, errOut io.Writer) error {
	w := openOutput(path, errOut)
	if err := cc.CompileFile(ctx, input, w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func preprocess(ctx context.Context, cc *compiler.Context, input string, out, errOut io.Writer) error {
	toks, err := cc.Preprocess(ctx, input)
	if err != nil {
		return err
	}
	if outputPath == "" {
		_, err := io.WriteString(out, cpp.Render(toks))
		return err
	}
	w := openOutput(outputPath, errOut)
	if _, err := io.WriteString(w, cpp.Render(toks)); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// dump prints the preprocessed tokens or the AST of input to out.
func dump(ctx context.Context, cc *compiler.Context, input string, out io.Writer) error {
	toks, err := cc.Preprocess(ctx, input)
	if err != nil {
		return err
	}
	if dumpTokens {
		fmt.Fprintln(out, lexer.Dump(toks))
		if !dumpAST {
			return nil
		}
	}
	prog, err := cc.Parse(toks)
	if err != nil {
		return err
	}
	ast.NewPrinter(out).PrintProgram(prog)
	return nil
}
