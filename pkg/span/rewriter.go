package span

import (
	"fmt"
	"os"
	"strings"
)

// Edit is a single (span, replacement) pair to splice into a file.
type Edit struct {
	Span        Span
	Replacement string
}

// Rewriter composes a SourceFile's offset calculator with an offset-based
// splicer: Apply walks a sorted list of edits left to right, copying
// unedited bytes through and substituting each edit's replacement text for
// its span's byte range (§4.A).
type Rewriter struct {
	file *SourceFile
}

// NewRewriter returns a Rewriter bound to file.
func NewRewriter(file *SourceFile) *Rewriter {
	return &Rewriter{file: file}
}

// Apply applies edits, which must already be sorted by Span.Start in
// non-decreasing order and must not overlap, and returns the resulting
// contents. Calls with edits out of start order or overlapping fail a
// precondition, per §4.A.
func (rw *Rewriter) Apply(edits []Edit) (string, error) {
	contents := rw.file.Contents()
	var out strings.Builder
	out.Grow(len(contents))

	cursor := 0 // byte offset already copied through
	lastStart := -1
	for i, e := range edits {
		start, end, err := rw.file.ByteRange(e.Span)
		if err != nil {
			return "", fmt.Errorf("edit %d: %w", i, err)
		}
		if start < lastStart {
			return "", fmt.Errorf("edit %d: edits must be applied in non-decreasing start order", i)
		}
		if start < cursor {
			return "", fmt.Errorf("edit %d: overlaps preceding edit", i)
		}
		out.Write(contents[cursor:start])
		out.WriteString(e.Replacement)
		cursor = end
		lastStart = start
	}
	out.Write(contents[cursor:])
	return out.String(), nil
}

// Delete is a convenience for the common case of a single span replaced
// with the empty string (§4.G step 3.ii, non-instrumenting backends).
func (rw *Rewriter) Delete(s Span) (string, error) {
	return rw.Apply([]Edit{{Span: s, Replacement: ""}})
}

// WriteFile applies edits and writes the result to the file's path,
// preserving the original file's mode.
func (rw *Rewriter) WriteFile(edits []Edit) error {
	result, err := rw.Apply(edits)
	if err != nil {
		return err
	}
	info, err := os.Stat(rw.file.Path)
	mode := os.FileMode(0o644)
	if err == nil {
		mode = info.Mode()
	}
	if err := os.WriteFile(rw.file.Path, []byte(result), mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", rw.file.Path, err)
	}
	return nil
}
