// Package driver implements the thin orchestration around the compiler:
// reading sources, opening outputs, temp files and running the system
// assembler and linker as subprocesses.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ReadSource reads a whole source file; "-" reads standard input. The
// result always ends with a newline.
func ReadSource(path string) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("cannot open %s: %w", path, err)
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	return string(data), nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// OpenOutput opens path for writing. "" and "-" mean standard output.
// When the file cannot be created the standard output is returned
// together with the error, so the caller can warn and carry on.
func OpenOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nopCloser{os.Stdout}, fmt.Errorf("cannot open output file: %s: %w", path, err)
	}
	return f, nil
}

// ReplaceExt returns the base name of path with its extension replaced by
// ext, as in foo/bar.c -> bar.o.
func ReplaceExt(path, ext string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ext
}

// Driver runs external tools and owns the temp files of one invocation.
type Driver struct {
	Stdout io.Writer
	Stderr io.Writer
	Echo   bool // -###: print each command line before running it

	tmpfiles []string
}

// New creates a driver whose subprocesses write to stdout and stderr.
func New(stdout, stderr io.Writer) *Driver {
	return &Driver{Stdout: stdout, Stderr: stderr}
}

// Run executes argv and waits for it. A non-zero exit status is an
// error carrying the tool name.
func (d *Driver) Run(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return errors.New("empty command line")
	}
	if d.Echo {
		fmt.Fprintln(d.Stderr, strings.Join(argv, " "))
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = d.Stdout
	cmd.Stderr = d.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", argv[0], err)
	}
	return nil
}

// TempFile creates an empty temp file that Cleanup removes.
func (d *Driver) TempFile(suffix string) (string, error) {
	f, err := os.CreateTemp("", "ccx64-*"+suffix)
	if err != nil {
		return "", fmt.Errorf("cannot create temp file: %w", err)
	}
	f.Close()
	d.tmpfiles = append(d.tmpfiles, f.Name())
	return f.Name(), nil
}

// Cleanup removes the temp files created so far.
func (d *Driver) Cleanup() {
	for _, path := range d.tmpfiles {
		os.Remove(path)
	}
	d.tmpfiles = nil
}

// Assemble runs the system assembler on an assembly file.
func (d *Driver) Assemble(ctx context.Context, in, out string) error {
	return d.Run(ctx, []string{"as", "-c", in, "-o", out})
}

// Link links object files into an executable against the C library.
func (d *Driver) Link(ctx context.Context, inputs []string, out string) error {
	tc, err := FindToolchain()
	if err != nil {
		return err
	}
	return d.Run(ctx, LinkArgs(tc, inputs, out))
}
