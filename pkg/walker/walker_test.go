package walker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mpyw/necessist/pkg/backend"
	"github.com/mpyw/necessist/pkg/ignore"
	"github.com/mpyw/necessist/pkg/span"
)

func loadTemp(t *testing.T, contents string) *span.SourceFile {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	span.Forget(path)
	sf, err := span.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return sf
}

func noIgnores(t *testing.T) Ignores {
	t.Helper()
	empty, err := ignore.Compile(nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return Ignores{Functions: empty, Macros: empty, Methods: empty}
}

func TestLastStatementNeverCandidate(t *testing.T) {
	w := New(noIgnores(t))
	w.EnterTest("TestA")
	s1 := span.Span{}
	w.VisitStatement(s1, true, false, false, false)
	s2 := span.Span{}
	w.VisitStatement(s2, true, false, false, true) // last
	w.LeaveTest()

	if len(w.Result().Statements) != 1 {
		t.Fatalf("expected 1 candidate (last statement excluded), got %d", len(w.Result().Statements))
	}
}

func TestControlAndDeclarationExcluded(t *testing.T) {
	w := New(noIgnores(t))
	w.EnterTest("TestA")
	w.VisitStatement(span.Span{}, true, true, false, false)  // control
	w.VisitStatement(span.Span{}, true, false, true, false)  // declaration
	w.VisitStatement(span.Span{}, false, false, false, false) // not removable
	w.LeaveTest()

	if len(w.Result().Statements) != 0 {
		t.Fatalf("expected 0 candidates, got %d", len(w.Result().Statements))
	}
}

func TestIgnoredCalleeYieldsNoCandidate(t *testing.T) {
	functions := ignore.MustCompile([]string{"assert*"})
	empty, _ := ignore.Compile(nil)
	w := New(Ignores{Functions: functions, Macros: empty, Methods: empty})
	w.EnterTest("TestA")

	stmtSpan := span.Span{}
	w.VisitCall(backend.CallInfo{
		StatementSpan:       stmtSpan,
		CallSpan:            stmtSpan,
		IsTopLevelStatement: true,
		CalleeName:          "assert_eq",
	})
	w.LeaveTest()

	if len(w.Result().Statements) != 0 {
		t.Fatalf("expected ignored callee to yield no candidate, got %d", len(w.Result().Statements))
	}
}

func TestIgnoreChainPropagatesOutward(t *testing.T) {
	functions := ignore.MustCompile([]string{"format"})
	empty, _ := ignore.Compile(nil)
	w := New(Ignores{Functions: functions, Macros: empty, Methods: empty})
	w.EnterTest("TestA")

	stmtSpan := span.Span{}
	// log(format(x)) - innermost "format" is ignored, so the outer "log"
	// call should also be treated as ignored-as-call.
	w.VisitCall(backend.CallInfo{
		StatementSpan:       stmtSpan,
		CallSpan:            stmtSpan,
		IsTopLevelStatement: true,
		CalleeName:          "log",
		InnermostIgnored:    true,
	})
	w.LeaveTest()

	if len(w.Result().Statements) != 0 {
		t.Fatalf("expected ignore-chain rule to suppress outer call, got %d candidates", len(w.Result().Statements))
	}
}

func TestVisitCallLastStatementSuppressed(t *testing.T) {
	w := New(noIgnores(t))
	w.EnterTest("TestA")

	stmtSpan := span.Span{}
	w.VisitCall(backend.CallInfo{
		StatementSpan:       stmtSpan,
		CallSpan:            stmtSpan,
		IsTopLevelStatement: true,
		IsMethodCall:        true,
		CalleeName:          "require.NoError",
		MethodSuffix:        "NoError",
		IsLastStatement:     true,
	})
	w.LeaveTest()

	if len(w.Result().Statements) != 0 {
		t.Errorf("expected 0 statement candidates for the last statement, got %d", len(w.Result().Statements))
	}
	if len(w.Result().MethodCalls) != 0 {
		t.Errorf("expected 0 method-call candidates for the last statement, got %d", len(w.Result().MethodCalls))
	}
}

func TestMethodCallSpanEmittedIndependently(t *testing.T) {
	sf := loadTemp(t, "package p\nfunc f() {\n\tx.to_string().trim()\n}\n")
	stmtSpan, err := span.New(sf, span.Position{Line: 3, Column: 1}, span.Position{Line: 3, Column: 21})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	callSpan, err := span.New(sf, span.Position{Line: 3, Column: 14}, span.Position{Line: 3, Column: 21})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	w := New(noIgnores(t))
	w.EnterTest("TestA")

	w.VisitCall(backend.CallInfo{
		StatementSpan:       stmtSpan,
		CallSpan:            callSpan,
		IsTopLevelStatement: true,
		IsMethodCall:        true,
		CalleeName:          "x.to_string.trim",
		MethodSuffix:        "trim",
	})
	w.LeaveTest()

	if len(w.Result().Statements) != 1 {
		t.Errorf("expected 1 statement candidate, got %d", len(w.Result().Statements))
	}
	if len(w.Result().MethodCalls) != 1 {
		t.Errorf("expected 1 method-call candidate, got %d", len(w.Result().MethodCalls))
	}
}
