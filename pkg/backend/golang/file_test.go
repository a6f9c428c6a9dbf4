package golang

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"testing"
)

func TestApplicableDetectsGoMod(t *testing.T) {
	dir := t.TempDir()
	if ok, err := New().Applicable(dir); err != nil || ok {
		t.Fatalf("Applicable on empty dir = (%v, %v), want (false, nil)", ok, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/x\n\ngo 1.22\n"), 0o644); err != nil {
		t.Fatalf("write go.mod: %v", err)
	}
	if ok, err := New().Applicable(dir); err != nil || !ok {
		t.Fatalf("Applicable with go.mod = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestModulePath(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/widgets\n\ngo 1.22\n"), 0o644); err != nil {
		t.Fatalf("write go.mod: %v", err)
	}
	got, err := ModulePath(dir)
	if err != nil {
		t.Fatalf("ModulePath: %v", err)
	}
	if got != "example.com/widgets" {
		t.Errorf("ModulePath = %q, want %q", got, "example.com/widgets")
	}
}

func TestModulePathMissingModuleDirective(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("go 1.22\n"), 0o644); err != nil {
		t.Fatalf("write go.mod: %v", err)
	}
	if _, err := ModulePath(dir); err == nil {
		t.Fatal("expected error for go.mod missing a module directive")
	}
}

func declByName(t *testing.T, src, name string) *ast.FuncDecl {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "x_test.go", src, 0)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	for _, decl := range file.Decls {
		if fd, ok := decl.(*ast.FuncDecl); ok {
			if funcKey(fd) == name {
				return fd
			}
		}
	}
	t.Fatalf("no decl named %q", name)
	return nil
}

func TestFuncKeyFunctionAndMethod(t *testing.T) {
	src := `package a

func helper() {}

type Suite struct{}

func (s *Suite) helper() {}
`
	if fd := declByName(t, src, "helper"); fd == nil {
		t.Fatal("expected bare function key")
	}
	if fd := declByName(t, src, "Suite.helper"); fd == nil {
		t.Fatal("expected receiver-qualified method key")
	}
}

func TestIsTestFunc(t *testing.T) {
	src := `package a

import "testing"

func TestOK(t *testing.T) {}

func TestWrongParams(t *testing.T, x int) {}

func NotATest(t *testing.T) {}

func (s *Suite) TestMethod(t *testing.T) {}

type Suite struct{}
`
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "x_test.go", src, 0)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	want := map[string]bool{
		"TestOK":           true,
		"TestWrongParams":  false,
		"NotATest":         false,
		"TestMethod":       false,
	}
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		if got, expected := isTestFunc(fd), want[fd.Name.Name]; got != expected {
			t.Errorf("isTestFunc(%s) = %v, want %v", fd.Name.Name, got, expected)
		}
	}
}

func TestParseFileBuildsLocalsMap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a_test.go")
	src := `package a

import "testing"

func helper() {}

func TestFoo(t *testing.T) {
	helper()
}
`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	f, err := New().ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	gf := f.(*File)
	if _, ok := gf.locals["helper"]; !ok {
		t.Error("expected locals to contain \"helper\"")
	}
	if _, ok := gf.locals["TestFoo"]; !ok {
		t.Error("expected locals to contain \"TestFoo\"")
	}
}

func TestSpanOfRoundTripsPosition(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a_test.go")
	src := "package a\n\nfunc TestFoo(t *testing.T) {\n\tdoStuff()\n}\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	f, err := New().ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	gf := f.(*File)

	fd := gf.locals["TestFoo"]
	stmt := fd.Body.List[0]
	s, err := spanOf(gf, stmt.Pos(), stmt.End())
	if err != nil {
		t.Fatalf("spanOf: %v", err)
	}
	text, err := gf.sf.Text(s)
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if text != "doStuff()" {
		t.Errorf("spanOf text = %q, want %q", text, "doStuff()")
	}
}
