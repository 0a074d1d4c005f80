package driver

import (
	"errors"
	"os"
	"path/filepath"
)

// Toolchain locates the C runtime objects the linker needs.
type Toolchain struct {
	LibPath    string // directory of crt1.o, crti.o, crtn.o
	GCCLibPath string // directory of crtbegin.o, crtend.o, libgcc
}

var (
	libPathCandidates = []string{
		"/usr/lib/x86_64-linux-gnu",
		"/usr/lib64",
	}
	gccLibPathGlobs = []string{
		"/usr/lib/gcc/x86_64-linux-gnu/*/crtbegin.o",
		"/usr/lib/gcc/x86_64-pc-linux-gnu/*/crtbegin.o", // Gentoo
		"/usr/lib/gcc/x86_64-redhat-linux/*/crtbegin.o", // Fedora
	}
)

const dynamicLinker = "/lib64/ld-linux-x86-64.so.2"

// FindToolchain searches the usual Linux locations for crt objects.
func FindToolchain() (Toolchain, error) {
	var tc Toolchain
	for _, dir := range libPathCandidates {
		if fileExists(filepath.Join(dir, "crti.o")) {
			tc.LibPath = dir
			break
		}
	}
	if tc.LibPath == "" {
		return tc, errors.New("library path is not found")
	}

	for _, pattern := range gccLibPathGlobs {
		// Glob sorts its result; the last match is the newest version.
		if matches, _ := filepath.Glob(pattern); len(matches) > 0 {
			tc.GCCLibPath = filepath.Dir(matches[len(matches)-1])
			break
		}
	}
	if tc.GCCLibPath == "" {
		return tc, errors.New("gcc library path is not found")
	}
	return tc, nil
}

// LinkArgs builds the ld command line linking inputs into out.
func LinkArgs(tc Toolchain, inputs []string, out string) []string {
	args := []string{
		"ld",
		"-o", out,
		"-m", "elf_x86_64",
		filepath.Join(tc.LibPath, "crt1.o"),
		filepath.Join(tc.LibPath, "crti.o"),
		filepath.Join(tc.GCCLibPath, "crtbegin.o"),
		"-L" + tc.GCCLibPath,
		"-L/usr/lib/x86_64-linux-gnu",
		"-L/usr/lib64",
		"-L/lib64",
		"-L/usr/lib/x86_64-pc-linux-gnu",
		"-L/usr/lib/x86_64-redhat-linux",
		"-L/usr/lib",
		"-L/lib",
		"-dynamic-linker", dynamicLinker,
	}
	args = append(args, inputs...)
	args = append(args,
		"-lc",
		"-lgcc",
		"--as-needed",
		"-lgcc_s",
		"--no-as-needed",
		filepath.Join(tc.GCCLibPath, "crtend.o"),
		filepath.Join(tc.LibPath, "crtn.o"),
	)
	return args
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
