package golang

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/mpyw/necessist/pkg/backend"
	"github.com/mpyw/necessist/pkg/span"
)

func TestRunPatternAnchorsEachSegment(t *testing.T) {
	got := runPattern("TestFoo/sub")
	want := "^TestFoo$/^sub$"
	if got != want {
		t.Errorf("runPattern = %q, want %q", got, want)
	}
}

func TestRegexpQuoteLiteralName(t *testing.T) {
	got := regexpQuoteLiteralName("a.b[c]")
	want := `a\.b\[c\]`
	if got != want {
		t.Errorf("regexpQuoteLiteralName = %q, want %q", got, want)
	}
}

func TestPackageDirRelativeToRoot(t *testing.T) {
	root := t.TempDir()
	gf := &File{path: filepath.Join(root, "pkg", "foo", "a_test.go")}

	got, err := packageDir(backend.RunContext{Root: root}, gf)
	if err != nil {
		t.Fatalf("packageDir: %v", err)
	}
	if got != "./pkg/foo" {
		t.Errorf("packageDir = %q, want %q", got, "./pkg/foo")
	}
}

func TestPackageDirAtRoot(t *testing.T) {
	root := t.TempDir()
	gf := &File{path: filepath.Join(root, "a_test.go")}

	got, err := packageDir(backend.RunContext{Root: root}, gf)
	if err != nil {
		t.Fatalf("packageDir: %v", err)
	}
	if got != "." {
		t.Errorf("packageDir = %q, want %q", got, ".")
	}
}

func TestCommandToBuildTestUsesCompileOnlyFlag(t *testing.T) {
	b := New()
	gf := &File{path: filepath.Join(t.TempDir(), "a_test.go")}

	cmd, err := b.CommandToBuildTest(backend.RunContext{Root: filepath.Dir(gf.path)}, gf, "TestFoo", span.Span{})
	if err != nil {
		t.Fatalf("CommandToBuildTest: %v", err)
	}
	if !contains(cmd.Cmd.Args, "-run=^$") {
		t.Errorf("args %v missing compile-only flag", cmd.Cmd.Args)
	}
}

func TestCommandToRunTestTargetsPatternAndHasLineMatcher(t *testing.T) {
	b := New()
	gf := &File{path: filepath.Join(t.TempDir(), "a_test.go")}

	cmd, err := b.CommandToRunTest(backend.RunContext{Root: filepath.Dir(gf.path), ExtraArgs: []string{"-count=1"}}, gf, "TestFoo", span.Span{})
	if err != nil {
		t.Fatalf("CommandToRunTest: %v", err)
	}
	if !contains(cmd.Cmd.Args, "^TestFoo$") {
		t.Errorf("args %v missing run pattern", cmd.Cmd.Args)
	}
	if !contains(cmd.Cmd.Args, "-count=1") {
		t.Errorf("args %v missing passthrough extra arg", cmd.Cmd.Args)
	}
	if cmd.LineMatcher == nil || !cmd.LineMatcher("=== RUN   TestFoo") {
		t.Error("expected LineMatcher to recognize a \"=== RUN\" line")
	}
	if cmd.LineMatcher("FAIL") {
		t.Error("expected LineMatcher to reject an unrelated line")
	}
}

func TestInstrumentingFalseAndStubsError(t *testing.T) {
	b := New()
	if b.Instrumenting() {
		t.Fatal("golang backend must not report Instrumenting")
	}
	if _, err := b.InstrumentSourceFile(nil, nil); err == nil {
		t.Error("expected InstrumentSourceFile to error for a non-instrumenting backend")
	}
}

func contains(args []string, want string) bool {
	for _, a := range args {
		if strings.TrimSpace(a) == want {
			return true
		}
	}
	return false
}
