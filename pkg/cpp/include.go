// Include path handling for the C preprocessor.
package cpp

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

//go:embed include/*.h
var builtinHeaders embed.FS

// BuiltinDir is the pseudo directory that holds the compiler's own headers.
const BuiltinDir = "<builtin>"

// IncludeKind distinguishes between <file> and "file" includes.
type IncludeKind int

const (
	IncludeQuoted IncludeKind = iota // "file" form
	IncludeAngled                    // <file> form
)

// IncludeResolver handles include path resolution.
type IncludeResolver struct {
	UserPaths      []string        // -I directories
	SystemPaths    []string        // system directories, searched last
	includeStack   []string        // files currently being included
	includedOnce   map[string]bool // files with #pragma once
	systemDetected bool
}

// NewIncludeResolver creates a new include resolver.
func NewIncludeResolver() *IncludeResolver {
	return &IncludeResolver{
		includedOnce: make(map[string]bool),
	}
}

// AddUserPath adds a -I include directory.
func (r *IncludeResolver) AddUserPath(path string) {
	r.UserPaths = append(r.UserPaths, path)
}

// AddSystemPath adds a system include directory. Adding any path disables
// detection of the host defaults.
func (r *IncludeResolver) AddSystemPath(path string) {
	r.SystemPaths = append(r.SystemPaths, path)
	r.systemDetected = true
}

// DetectSystemPaths fills in the host system include directories.
func (r *IncludeResolver) DetectSystemPaths() {
	if r.systemDetected {
		return
	}
	r.systemDetected = true
	r.SystemPaths = append(r.SystemPaths, defaultSystemPaths()...)
}

// Resolve finds an include file. The search order is the directory of the
// including file (quoted form only), the -I directories, the builtin
// headers and finally the system directories.
func (r *IncludeResolver) Resolve(filename string, kind IncludeKind, currentFile string) (string, error) {
	if filepath.IsAbs(filename) {
		if fileExists(filename) {
			return filename, nil
		}
		return "", &IncludeError{Filename: filename, Kind: kind}
	}

	if kind == IncludeQuoted && currentFile != "" && !strings.HasPrefix(currentFile, BuiltinDir) {
		if p := filepath.Join(filepath.Dir(currentFile), filename); fileExists(p) {
			return p, nil
		}
	}
	for _, dir := range r.UserPaths {
		if p := filepath.Join(dir, filename); fileExists(p) {
			return p, nil
		}
	}
	if _, err := fs.Stat(builtinHeaders, path.Join("include", filename)); err == nil {
		return BuiltinDir + "/" + filename, nil
	}
	r.DetectSystemPaths()
	for _, dir := range r.SystemPaths {
		if p := filepath.Join(dir, filename); fileExists(p) {
			return p, nil
		}
	}
	return "", &IncludeError{Filename: filename, Kind: kind}
}

// ReadInclude returns the contents of a resolved include path.
func ReadInclude(p string) ([]byte, error) {
	if name, ok := strings.CutPrefix(p, BuiltinDir+"/"); ok {
		return builtinHeaders.ReadFile(path.Join("include", name))
	}
	return os.ReadFile(p)
}

// PushFile records that path is being included. It fails once the
// nesting exceeds MaxIncludeDepth.
func (r *IncludeResolver) PushFile(path string) error {
	if len(r.includeStack) >= MaxIncludeDepth {
		return fmt.Errorf("#include nested depth %d exceeds maximum of %d", len(r.includeStack)+1, MaxIncludeDepth)
	}
	r.includeStack = append(r.includeStack, path)
	return nil
}

// PopFile removes the current file from the include stack.
func (r *IncludeResolver) PopFile() {
	if len(r.includeStack) > 0 {
		r.includeStack = r.includeStack[:len(r.includeStack)-1]
	}
}

// MarkPragmaOnce marks a file as having #pragma once.
func (r *IncludeResolver) MarkPragmaOnce(path string) {
	r.includedOnce[canonical(path)] = true
}

// IsAlreadyIncluded reports whether the file has #pragma once and was
// already included.
func (r *IncludeResolver) IsAlreadyIncluded(path string) bool {
	return r.includedOnce[canonical(path)]
}

func canonical(p string) string {
	if strings.HasPrefix(p, BuiltinDir) {
		return p
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// MaxIncludeDepth is the maximum allowed include nesting.
const MaxIncludeDepth = 200

// IncludeError indicates that an include file was not found.
type IncludeError struct {
	Filename string
	Kind     IncludeKind
}

func (e *IncludeError) Error() string {
	if e.Kind == IncludeAngled {
		return "<" + e.Filename + ">: cannot open file"
	}
	return "\"" + e.Filename + "\": cannot open file"
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func defaultSystemPaths() []string {
	var paths []string
	for _, p := range []string{
		"/usr/local/include",
		"/usr/include/x86_64-linux-gnu",
		"/usr/include",
	} {
		if dirExists(p) {
			paths = append(paths, p)
		}
	}
	return paths
}
