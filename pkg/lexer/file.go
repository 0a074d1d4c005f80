package lexer

import (
	"modernc.org/token"
)

// File is a source file loaded into memory.
type File struct {
	Name     string // name used in diagnostics and __FILE__
	Path     string // path on disk, used to resolve quoted includes
	Index    int    // position in the input file list, used for .file
	Contents string

	lines *token.File
}

// NewFile creates a File. contents should already be normalised with
// Normalize.
func NewFile(name string, index int, contents string) *File {
	return &File{Name: name, Path: name, Index: index, Contents: contents}
}

// Renamed returns a copy of f reported under another name, as #line does.
func (f *File) Renamed(name string) *File {
	g := *f
	g.Name = name
	return &g
}

// LineOf returns the 1-based line number of byte offset off.
func (f *File) LineOf(off int) int {
	if f.lines == nil {
		f.indexLines()
	}
	if off >= len(f.Contents) {
		off = len(f.Contents) - 1
	}
	if off < 0 {
		return 1
	}
	return f.lines.Position(f.lines.Pos(off)).Line
}

func (f *File) indexLines() {
	f.lines = token.NewFile(f.Name, len(f.Contents))
	for i := 0; i < len(f.Contents); i++ {
		if f.Contents[i] == '\n' {
			f.lines.AddLine(i + 1)
		}
	}
}

// Normalize canonicalizes line endings, guarantees a trailing newline and
// removes backslash-newline sequences. Removed newlines are re-inserted at
// the end of the logical line so that line numbers stay correct.
func Normalize(src string) string {
	b := []byte(src)

	// \r\n and \r become \n
	out := b[:0:0]
	for i := 0; i < len(b); i++ {
		if b[i] == '\r' {
			if i+1 < len(b) && b[i+1] == '\n' {
				continue
			}
			out = append(out, '\n')
			continue
		}
		out = append(out, b[i])
	}
	if len(out) == 0 || out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}

	res := make([]byte, 0, len(out))
	pending := 0
	for i := 0; i < len(out); i++ {
		if out[i] == '\\' && i+1 < len(out) && out[i+1] == '\n' {
			i++
			pending++
			continue
		}
		res = append(res, out[i])
		if out[i] == '\n' {
			for ; pending > 0; pending-- {
				res = append(res, '\n')
			}
		}
	}
	return string(res)
}
