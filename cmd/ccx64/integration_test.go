package main

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/raymyers/ccx64/pkg/driver"
)

// E2EAsmTestSpec represents a single end-to-end assembly test case
type E2EAsmTestSpec struct {
	Name         string   `yaml:"name"`
	Input        string   `yaml:"input"`
	Flags        []string `yaml:"flags"`         // Extra command-line flags
	Expect       []string `yaml:"expect"`        // Strings that must appear in output
	ExpectOrder  []string `yaml:"expect_order"`  // Strings that must appear in this order
	ExpectUnique []string `yaml:"expect_unique"` // Strings that must appear exactly once
	ExpectNot    []string `yaml:"expect_not"`    // Strings that must NOT appear in output
	Skip         string   `yaml:"skip,omitempty"`
}

// E2EAsmTestFile represents the e2e_asm.yaml file structure
type E2EAsmTestFile struct {
	Tests []E2EAsmTestSpec `yaml:"tests"`
}

// E2ERuntimeTestSpec represents a single end-to-end runtime test case
type E2ERuntimeTestSpec struct {
	Name         string `yaml:"name"`
	Input        string `yaml:"input"`
	ExpectedExit int    `yaml:"expected_exit"`
	Skip         string `yaml:"skip,omitempty"`
}

// E2ERuntimeTestFile represents the e2e_runtime.yaml file structure
type E2ERuntimeTestFile struct {
	Tests []E2ERuntimeTestSpec `yaml:"tests"`
}

func loadYAML(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("%s not found: %v", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		t.Fatalf("failed to parse %s: %v", path, err)
	}
}

// TestE2EAsmYAML compiles each yaml test case with -S and checks the assembly
func TestE2EAsmYAML(t *testing.T) {
	var testFile E2EAsmTestFile
	loadYAML(t, "../../testdata/e2e_asm.yaml", &testFile)

	for _, tc := range testFile.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			if tc.Skip != "" {
				t.Skip(tc.Skip)
			}

			tmpDir := t.TempDir()
			testCFile := filepath.Join(tmpDir, "test.c")
			if err := os.WriteFile(testCFile, []byte(tc.Input), 0644); err != nil {
				t.Fatalf("failed to write test file: %v", err)
			}
			asmFile := filepath.Join(tmpDir, "test.s")

			var out, errOut bytes.Buffer
			args := append([]string{"-S", "-o", asmFile}, tc.Flags...)
			args = append(args, testCFile)
			if code := execute(normalizeFlags(args), &out, &errOut); code != 0 {
				t.Fatalf("ccx64 exited with %d\nStderr: %s", code, errOut.String())
			}
			data, err := os.ReadFile(asmFile)
			if err != nil {
				t.Fatalf("no assembly written: %v", err)
			}
			output := string(data)

			for _, exp := range tc.Expect {
				if !strings.Contains(output, exp) {
					t.Errorf("expected output to contain %q\nGot:\n%s", exp, output)
				}
			}

			if len(tc.ExpectOrder) > 0 {
				lastIdx := -1
				for _, exp := range tc.ExpectOrder {
					idx := strings.Index(output[lastIdx+1:], exp)
					if idx == -1 {
						t.Errorf("expected %q after position %d\nGot:\n%s", exp, lastIdx, output)
						break
					}
					lastIdx += idx + 1
				}
			}

			for _, exp := range tc.ExpectUnique {
				if count := strings.Count(output, exp); count != 1 {
					t.Errorf("expected %q to appear exactly once, found %d times\nGot:\n%s", exp, count, output)
				}
			}

			for _, exp := range tc.ExpectNot {
				if strings.Contains(output, exp) {
					t.Errorf("expected output NOT to contain %q\nGot:\n%s", exp, output)
				}
			}
		})
	}
}

// TestE2ERuntimeYAML builds each yaml test case into an executable and
// checks its exit status
func TestE2ERuntimeYAML(t *testing.T) {
	if _, err := exec.LookPath("as"); err != nil {
		t.Skip("assembler 'as' not found in PATH")
	}
	if _, err := exec.LookPath("ld"); err != nil {
		t.Skip("linker 'ld' not found in PATH")
	}
	if _, err := driver.FindToolchain(); err != nil {
		t.Skipf("C runtime not found: %v", err)
	}

	var testFile E2ERuntimeTestFile
	loadYAML(t, "../../testdata/e2e_runtime.yaml", &testFile)

	for _, tc := range testFile.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			if tc.Skip != "" {
				t.Skip(tc.Skip)
			}

			tmpDir := t.TempDir()
			testCFile := filepath.Join(tmpDir, "test.c")
			if err := os.WriteFile(testCFile, []byte(tc.Input), 0644); err != nil {
				t.Fatalf("failed to write test file: %v", err)
			}
			exe := filepath.Join(tmpDir, "test")

			var out, errOut bytes.Buffer
			if code := execute([]string{"-o", exe, testCFile}, &out, &errOut); code != 0 {
				t.Fatalf("ccx64 exited with %d\nStderr: %s", code, errOut.String())
			}

			err := exec.Command(exe).Run()
			exitCode := 0
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				exitCode = exitErr.ExitCode()
			} else if err != nil {
				t.Fatalf("failed to run %s: %v", exe, err)
			}
			if exitCode != tc.ExpectedExit {
				t.Errorf("exit status = %d, want %d", exitCode, tc.ExpectedExit)
			}
		})
	}
}

// TestSeparateCompilation builds two units with -c and links the objects
func TestSeparateCompilation(t *testing.T) {
	for _, tool := range []string{"as", "ld"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not found in PATH", tool)
		}
	}
	if _, err := driver.FindToolchain(); err != nil {
		t.Skipf("C runtime not found: %v", err)
	}

	tmpDir := t.TempDir()
	lib := filepath.Join(tmpDir, "lib.c")
	mainC := filepath.Join(tmpDir, "main.c")
	os.WriteFile(lib, []byte("int twice(int x) { return x * 2; }\n"), 0644)
	os.WriteFile(mainC, []byte("int twice(int x);\nint main() { return twice(21); }\n"), 0644)

	libObj := filepath.Join(tmpDir, "lib.o")
	var out, errOut bytes.Buffer
	if code := execute([]string{"-c", "-o", libObj, lib}, &out, &errOut); code != 0 {
		t.Fatalf("compiling lib.c exited with %d\nStderr: %s", code, errOut.String())
	}
	exe := filepath.Join(tmpDir, "prog")
	if code := execute([]string{"-o", exe, mainC, libObj}, &out, &errOut); code != 0 {
		t.Fatalf("linking exited with %d\nStderr: %s", code, errOut.String())
	}

	err := exec.Command(exe).Run()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 42 {
		t.Errorf("prog: %v, want exit status 42", err)
	}
}
