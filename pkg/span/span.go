package span

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

// Span is a named position: a half-open [Start, End) range of Positions
// within SourceFile. Invariant: Start <= End (per Position.Compare), and
// both endpoints lie within the file.
type Span struct {
	File  *SourceFile
	Start Position
	End   Position
}

// New constructs a Span after checking the start<=end invariant.
func New(file *SourceFile, start, end Position) (Span, error) {
	if start.Compare(end) > 0 {
		return Span{}, fmt.Errorf("invalid span: start %s is after end %s", start, end)
	}
	return Span{File: file, Start: start, End: end}, nil
}

// Compare totally orders spans by (source file path, start, end), per §3.
func (s Span) Compare(o Span) int {
	if s.File.Path != o.File.Path {
		if s.File.Path < o.File.Path {
			return -1
		}
		return 1
	}
	if c := s.Start.Compare(o.Start); c != 0 {
		return c
	}
	return s.End.Compare(o.End)
}

// storageString renders the span relative to root, in the canonical
// "path:startL:startC-endL:endC" form (columns 1-based for display) used
// both as the persistent-store primary key and in console output.
func (s Span) storageString(path string) string {
	return fmt.Sprintf("%s:%d:%d-%d:%d", path, s.Start.Line, s.Start.Column+1, s.End.Line, s.End.Column+1)
}

// String renders the span relative to the current working directory, for
// console output (§6 "Span text format").
func (s Span) String() string {
	path := s.File.Path
	if abs, err := filepath.Abs(path); err == nil {
		if wd, err := os.Getwd(); err == nil {
			if rel, err := filepath.Rel(wd, abs); err == nil {
				path = rel
			}
		}
	}
	return s.storageString(path)
}

// StorageKey renders the span relative to root, for use as the persistent
// store's primary key (§4.F, §6).
func (s Span) StorageKey(root string) string {
	path := s.File.Path
	if abs, err := filepath.Abs(path); err == nil {
		if rootAbs, err := filepath.Abs(root); err == nil {
			if rel, err := filepath.Rel(rootAbs, abs); err == nil {
				path = rel
			}
		}
	}
	return s.storageString(path)
}

// ID returns the first 16 hex characters of SHA-256 over the span's
// storage-key string form, the short identity used to key the
// NECESSIST_REMOVAL environment variable and instrumentation guards (§4.F,
// §6).
func (s Span) ID(root string) string {
	sum := sha256.Sum256([]byte(s.StorageKey(root)))
	return hex.EncodeToString(sum[:])[:16]
}

var spanStringPattern = regexp.MustCompile(`^(.+):(\d+):(\d+)-(\d+):(\d+)$`)

// Parse parses a span's string form (as produced by String/StorageKey)
// back into its path and positions. The path component is returned
// verbatim; callers resolve it against a SourceFile themselves via
// ParseWithFile, since parsing alone cannot load file contents.
func Parse(text string) (path string, start, end Position, err error) {
	m := spanStringPattern.FindStringSubmatch(text)
	if m == nil {
		return "", Position{}, Position{}, fmt.Errorf("invalid span string: %q", text)
	}
	startLine, _ := strconv.Atoi(m[2])
	startCol, _ := strconv.Atoi(m[3])
	endLine, _ := strconv.Atoi(m[4])
	endCol, _ := strconv.Atoi(m[5])
	return m[1], Position{Line: startLine, Column: startCol - 1}, Position{Line: endLine, Column: endCol - 1}, nil
}

// ParseWithFile parses text and resolves it against a loaded SourceFile,
// reconstructing the original Span. The persistence replay (pkg/store.Replay)
// does not call it: it compares storage-key strings directly.
func ParseWithFile(text string, file *SourceFile) (Span, error) {
	_, start, end, err := Parse(text)
	if err != nil {
		return Span{}, err
	}
	return New(file, start, end)
}

// TrimStart returns a Span advanced past any leading whitespace in the
// underlying file, used to normalize method-call spans so they start
// exactly at the "." (§4.B, §9's third Open Question — always applied,
// never optional, since receiver expressions can carry trailing
// whitespace/line breaks before the call).
func TrimStart(s Span) (Span, error) {
	text, err := s.File.Text(s)
	if err != nil {
		return Span{}, err
	}
	i := 0
	line, col := s.Start.Line, s.Start.Column
	for i < len(text) {
		r := rune(text[i])
		switch r {
		case ' ', '\t', '\r':
			col++
			i++
		case '\n':
			line++
			col = 0
			i++
		default:
			return New(s.File, Position{Line: line, Column: col}, s.End)
		}
	}
	return New(s.File, Position{Line: line, Column: col}, s.End)
}

// WithStart returns a copy of s truncated on the left to p. The Go backend
// uses it to cut a method call's span down to the suffix that starts at the
// receiver's trailing '.' (§4.D step 2).
func WithStart(s Span, p Position) (Span, error) {
	return New(s.File, p, s.End)
}
