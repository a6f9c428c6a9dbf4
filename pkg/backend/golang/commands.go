package golang

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mpyw/necessist/pkg/backend"
	"github.com/mpyw/necessist/pkg/span"
)

// packageDir returns the "./"-relative package directory of file, relative
// to rc.Root, for use as a `go test`/`go build` target (e.g. "./pkg/foo").
func packageDir(rc backend.RunContext, file *File) (string, error) {
	abs, err := filepath.Abs(file.path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", file.path, err)
	}
	rootAbs, err := filepath.Abs(rc.Root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root %s: %w", rc.Root, err)
	}
	rel, err := filepath.Rel(rootAbs, filepath.Dir(abs))
	if err != nil {
		return "", fmt.Errorf("failed to compute package dir for %s: %w", file.path, err)
	}
	if rel == "." {
		return ".", nil
	}
	return "./" + filepath.ToSlash(rel), nil
}

// runPattern converts a (possibly subtest-qualified) test name into a
// `go test -run` regular expression, anchoring each "/"-separated segment
// (e.g. "TestFoo/sub" -> "^TestFoo$/^sub$").
func runPattern(testName string) string {
	parts := strings.Split(testName, "/")
	for i, p := range parts {
		parts[i] = "^" + regexpQuoteLiteralName(p) + "$"
	}
	return strings.Join(parts, "/")
}

// regexpQuoteLiteralName escapes regexp metacharacters in a Go test/subtest
// name so it is matched literally by `go test -run`.
func regexpQuoteLiteralName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch r {
		case '.', '+', '*', '?', '(', ')', '|', '[', ']', '{', '}', '^', '$', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func newCommand(rc backend.RunContext, dir string, args ...string) backend.Command {
	full := append([]string{"test"}, args...)
	full = append(full, dir)
	cmd := exec.Command("go", full...)
	cmd.Dir = rc.Root
	return backend.Command{Cmd: cmd}
}

// CommandToRunSourceFile builds the dry-run command: run every test in the
// file's package unmodified (§4.G step 2).
func (b *Backend) CommandToRunSourceFile(rc backend.RunContext, file backend.File) (backend.Command, error) {
	gf := file.(*File)
	dir, err := packageDir(rc, gf)
	if err != nil {
		return backend.Command{}, err
	}
	cmd := newCommand(rc, dir)
	cmd.Cmd.Args = append(cmd.Cmd.Args, rc.ExtraArgs...)
	return cmd, nil
}

// CommandToBuildSourceFile builds a compile-only check: `go test -run=^$`
// compiles the package's tests without running any of them (§4.G step 1).
func (b *Backend) CommandToBuildSourceFile(rc backend.RunContext, file backend.File) (backend.Command, error) {
	gf := file.(*File)
	dir, err := packageDir(rc, gf)
	if err != nil {
		return backend.Command{}, err
	}
	return newCommand(rc, dir, "-run=^$"), nil
}

// CommandToBuildTest is the per-candidate build-only check before running
// the mutated test (§4.G step 3.iii).
func (b *Backend) CommandToBuildTest(rc backend.RunContext, file backend.File, testName string, s span.Span) (backend.Command, error) {
	gf := file.(*File)
	dir, err := packageDir(rc, gf)
	if err != nil {
		return backend.Command{}, err
	}
	return newCommand(rc, dir, "-run=^$"), nil
}

// CommandToRunTest builds the per-candidate run command, targeting exactly
// testName (and its subtest path, if any) (§4.G step 3.iv). The command
// carries no timeout itself; the run controller applies it.
func (b *Backend) CommandToRunTest(rc backend.RunContext, file backend.File, testName string, s span.Span) (backend.Command, error) {
	gf := file.(*File)
	dir, err := packageDir(rc, gf)
	if err != nil {
		return backend.Command{}, err
	}
	cmd := newCommand(rc, dir, "-run", runPattern(testName), "-v")
	cmd.Cmd.Args = append(cmd.Cmd.Args, rc.ExtraArgs...)
	cmd.LineMatcher = func(line string) bool {
		return strings.Contains(line, "=== RUN")
	}
	return cmd, nil
}

// Instrumenting implements backend.Backend: Go's fast build makes per-
// candidate textual deletion practical, so no runtime-guard instrumentation
// is used (§9 "Instrumentation vs deletion" — fast-build languages delete
// and rebuild).
func (b *Backend) Instrumenting() bool { return false }

func (b *Backend) InstrumentSourceFile(file backend.File, candidates []backend.Candidate) (string, error) {
	return "", fmt.Errorf("golang backend does not use instrumentation")
}

func (b *Backend) StatementPrefixAndSuffix(s span.Span) (prefix, suffix string) {
	return "", ""
}
