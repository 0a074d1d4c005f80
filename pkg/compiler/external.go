package compiler

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/raymyers/ccx64/pkg/driver"
)

// NeedsPreprocessing reports whether a file should go through the system
// preprocessor. .i files are already preprocessed.
func NeedsPreprocessing(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) != ".i"
}

// externalArgs builds the cc -E command line for path.
func (c *Context) externalArgs(path string) []string {
	args := []string{"-E"}
	for _, p := range c.Config.IncludePaths {
		args = append(args, "-I"+p)
	}
	for _, p := range c.Config.SystemPaths {
		args = append(args, "-isystem", p)
	}
	for _, d := range c.Config.Defines {
		args = append(args, "-D"+d)
	}
	for _, u := range c.Config.Undefines {
		args = append(args, "-U"+u)
	}
	return append(args, path)
}

// externalPreprocess runs the system preprocessor on path. Its output
// keeps GNU line markers, which the built-in preprocessor applies when it
// re-reads the text.
func (c *Context) externalPreprocess(ctx context.Context, path string) (string, error) {
	if !NeedsPreprocessing(path) {
		return driver.ReadSource(path)
	}
	cppCmd := findPreprocessor()
	if cppCmd == "" {
		return "", fmt.Errorf("no C preprocessor found (tried: cc, gcc, clang)")
	}

	cmd := exec.CommandContext(ctx, cppCmd, c.externalArgs(path)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("preprocessing failed: %w\n%s", err, stderr.String())
	}
	return stdout.String(), nil
}

func findPreprocessor() string {
	for _, name := range []string{"cc", "gcc", "clang"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}
