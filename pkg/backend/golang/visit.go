package golang

import (
	"context"
	"fmt"
	"go/ast"
	"strconv"

	"github.com/mpyw/necessist/internal/directive"
	"github.com/mpyw/necessist/pkg/backend"
	"github.com/mpyw/necessist/pkg/ignore"
	"github.com/mpyw/necessist/pkg/span"
)

// builtin ignore lists (§4.C IGNORED_FUNCTIONS/IGNORED_MACROS/IGNORED_METHODS).
// Grounding: original_source/backends/src/go/mod.rs lists t.Helper/t.Parallel/
// t.Skip* as built-in ignored methods (harness bookkeeping calls, not
// assertions under test) and has no macro concept for Go (IGNORED_MACROS is
// "feature not supported" — nil).
var (
	builtinIgnoredFunctions = []string{}
	builtinIgnoredMethods   = []string{
		"Helper", "Parallel", "Skip", "SkipNow", "Skipf",
	}
)

func (b *Backend) Ignores() backend.IgnoreLists {
	return backend.IgnoreLists{
		Functions: builtinIgnoredFunctions,
		Macros:    nil, // Go has no macro construct (§4.C "feature not supported")
		Methods:   builtinIgnoredMethods,
	}
}

// Configure implements backend.Backend.
func (b *Backend) Configure(functions, macros, methods *ignore.Matcher) {
	b.functions = functions
	b.macros = macros
	b.methods = methods
}

// Visit implements backend.Backend (§4.C visit_file): drives w over every
// top-level TestXxx function in file, recursing into t.Run subtests and
// locally-defined helper functions reached from a test body.
func (b *Backend) Visit(ctx context.Context, w backend.Walker, file backend.File) (*backend.VisitResult, error) {
	gf, ok := file.(*File)
	if !ok {
		return nil, fmt.Errorf("golang backend: unexpected file type %T", file)
	}

	v := &visitor{b: b, w: w, f: gf, visitedLocals: map[string]bool{}}
	for _, decl := range gf.astFile.Decls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || !isTestFunc(fd) || fd.Body == nil {
			continue
		}
		v.walkTestBody(fd.Name.Name, fd.Body)
	}
	return w.Result(), nil
}

// visitor holds the per-file walk state bridging go/ast traversal to the
// generic walker's callback contract (§9 "the walker holds a mutable
// reference to the backend, and traverses via the backend's native
// visitor").
type visitor struct {
	b             *Backend
	w             backend.Walker
	f             *File
	visitedLocals map[string]bool // local helper functions already walked (§4.D "Local-function following")
}

// walkTestBody opens a test scope named name, walks body's top-level
// statements with last-statement protection, then closes the scope.
func (v *visitor) walkTestBody(name string, body *ast.BlockStmt) {
	v.w.EnterTest(name)
	defer v.w.LeaveTest()
	v.walkStatements(name, body.List, true)
}

// walkStatements walks a list of statements. protectLast is true only for
// a test's (or subtest's) own outermost body — nested blocks (if/for/
// switch bodies) never protect their own last statement (SPEC_FULL.md
// "SUPPLEMENTED FEATURES": last-statement protection is per-test-body, not
// per-block).
func (v *visitor) walkStatements(testName string, stmts []ast.Stmt, protectLast bool) {
	for i, stmt := range stmts {
		isLast := protectLast && i == len(stmts)-1
		v.walkStatement(testName, stmt, isLast)
	}
}

// walkStatement classifies and visits one statement (§4.D). A statement
// (or its trailing comment) carrying a "necessist:skip" directive is
// excluded from the walk entirely, along with anything nested under it.
func (v *visitor) walkStatement(testName string, stmt ast.Stmt, isLast bool) {
	if directive.HasStmtSkipDirective(v.f.comments, stmt) {
		return
	}
	switch s := stmt.(type) {
	case *ast.BlockStmt:
		v.descendComposite(testName, s.List)
	case *ast.IfStmt:
		v.descendComposite(testName, s.Body.List)
		if s.Else != nil {
			v.walkStatement(testName, s.Else, false)
		}
	case *ast.ForStmt:
		v.descendComposite(testName, s.Body.List)
	case *ast.RangeStmt:
		v.descendComposite(testName, s.Body.List)
	case *ast.SwitchStmt:
		v.descendCaseClauses(testName, s.Body.List)
	case *ast.TypeSwitchStmt:
		v.descendCaseClauses(testName, s.Body.List)
	case *ast.SelectStmt:
		v.descendCommClauses(testName, s.Body.List)
	case *ast.LabeledStmt:
		v.walkStatement(testName, s.Stmt, isLast)
	case *ast.ExprStmt:
		v.walkExprStatement(testName, s, isLast)
	case *ast.AssignStmt:
		v.emitLeafStatement(testName, stmt, isLast)
		for _, rhs := range s.Rhs {
			v.walkExpr(testName, rhs)
		}
	case *ast.ReturnStmt:
		v.emitLeafStatement(testName, stmt, isLast)
		for _, res := range s.Results {
			v.walkExpr(testName, res)
		}
	default:
		v.emitLeafStatement(testName, stmt, isLast)
	}
}

func (v *visitor) descendComposite(testName string, stmts []ast.Stmt) {
	v.w.EnterComposite()
	v.walkStatements(testName, stmts, false)
	v.w.LeaveComposite()
}

func (v *visitor) descendCaseClauses(testName string, clauses []ast.Stmt) {
	v.w.EnterComposite()
	for _, c := range clauses {
		if cc, ok := c.(*ast.CaseClause); ok {
			v.walkStatements(testName, cc.Body, false)
		}
	}
	v.w.LeaveComposite()
}

func (v *visitor) descendCommClauses(testName string, clauses []ast.Stmt) {
	v.w.EnterComposite()
	for _, c := range clauses {
		if cc, ok := c.(*ast.CommClause); ok {
			v.walkStatements(testName, cc.Body, false)
		}
	}
	v.w.LeaveComposite()
}

// walkExprStatement handles a statement that is exactly a call expression
// or a `t.Run(...)` subtest (§4.D "Candidate recognition — calls").
func (v *visitor) walkExprStatement(testName string, stmt *ast.ExprStmt, isLast bool) {
	call, ok := stmt.Expr.(*ast.CallExpr)
	if !ok {
		v.emitLeafStatement(testName, stmt, isLast)
		return
	}

	if sub, subBody, ok := subtestCall(call); ok {
		v.w.EnterTest(testName + "/" + sub)
		v.walkStatements(testName+"/"+sub, subBody.List, true)
		v.w.LeaveTest()
		return
	}

	stmtSpan, err := spanOf(v.f, stmt.Pos(), stmt.End())
	if err != nil {
		return
	}
	info, descend := v.callInfo(call, stmtSpan, true, isLast)
	v.w.VisitCall(info)
	if descend {
		v.descendCallArgs(testName, call)
	}
}

// callInfo builds a backend.CallInfo for call, resolving the dotted
// receiver chain and the innermost call's ignored status (§4.D steps 2-3).
// For a method call, CallSpan is left-truncated to start at the receiver's
// trailing '.' (§4.B, §4.D rule 4 "span covers just the .method(args)
// suffix"); VisitCall's own span.TrimStart then absorbs any whitespace
// between the receiver and the dot.
func (v *visitor) callInfo(call *ast.CallExpr, stmtSpan span.Span, isTopLevel, isLast bool) (backend.CallInfo, bool) {
	callSpan, err := spanOf(v.f, call.Pos(), call.End())
	if err != nil {
		callSpan = stmtSpan
	}

	info := backend.CallInfo{
		StatementSpan:       stmtSpan,
		CallSpan:            callSpan,
		IsTopLevelStatement: isTopLevel,
		IsLastStatement:     isLast,
	}

	sel, isMethod := call.Fun.(*ast.SelectorExpr)
	if !isMethod {
		if ident, ok := call.Fun.(*ast.Ident); ok {
			info.CalleeName = ident.Name
			if fd, ok := v.f.locals[ident.Name]; ok {
				v.scheduleLocal(ident.Name, fd)
			}
		}
		shouldDescend := v.w.ShouldDescend(info)
		return info, shouldDescend
	}

	info.IsMethodCall = true
	info.MethodSuffix = sel.Sel.Name
	base, innermostIgnored := v.resolveReceiver(sel.X)
	info.CalleeName = joinDotted(base, sel.Sel.Name)
	info.InnermostIgnored = innermostIgnored

	if dotPos, err := dotPosition(v.f, sel.X.End()); err == nil {
		if methodSpan, err := span.WithStart(callSpan, dotPos); err == nil {
			info.CallSpan = methodSpan
		}
	}

	shouldDescend := v.w.ShouldDescend(info)
	return info, shouldDescend
}

// resolveReceiver walks a dotted chain (a.b.c) or a nested call (a().b())
// left to right to build the base name and determine whether an innermost
// chained call is itself ignored (§4.D step 2, "Ignore-chain rule", §9
// "Call-chain analysis without cyclic graphs" — linear walk, no recursion
// across components).
func (v *visitor) resolveReceiver(expr ast.Expr) (base string, innermostIgnored bool) {
	switch e := expr.(type) {
	case *ast.Ident:
		return e.Name, false
	case *ast.SelectorExpr:
		inner, ignored := v.resolveReceiver(e.X)
		return joinDotted(inner, e.Sel.Name), ignored
	case *ast.CallExpr:
		name, isMethod, methodSuffix := v.calleeName(e)
		ignored := v.b.functions.Match(name)
		if isMethod {
			ignored = ignored || v.b.methods.Match(methodSuffix)
		}
		return name, ignored
	default:
		return "", false
	}
}

func (v *visitor) calleeName(call *ast.CallExpr) (name string, isMethod bool, methodSuffix string) {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		if ident, ok := call.Fun.(*ast.Ident); ok {
			return ident.Name, false, ""
		}
		return "", false, ""
	}
	base, _ := v.resolveReceiver(sel.X)
	return joinDotted(base, sel.Sel.Name), true, sel.Sel.Name
}

func joinDotted(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}

// walkExpr visits expr for nested candidates: a call expression anywhere in
// expression position (an assignment RHS, a return operand, or another
// call's argument) is itself visited, not just a call that is the entire
// top-level statement (§4.D "Candidate recognition — calls" is not limited
// to top-level ExprStmts).
func (v *visitor) walkExpr(testName string, expr ast.Expr) {
	switch e := expr.(type) {
	case *ast.CallExpr:
		callSpan, err := spanOf(v.f, e.Pos(), e.End())
		if err != nil {
			return
		}
		info, descend := v.callInfo(e, callSpan, false, false)
		v.w.VisitCall(info)
		if descend {
			v.descendCallArgs(testName, e)
		}
	case *ast.FuncLit:
		if e.Body == nil {
			return
		}
		v.w.EnterComposite()
		v.walkStatements(testName, e.Body.List, false)
		v.w.LeaveComposite()
	}
}

// descendCallArgs walks a call's arguments looking for nested calls and
// function-literal bodies. t.Run's own callback is already special-cased by
// subtestCall before reaching here.
func (v *visitor) descendCallArgs(testName string, call *ast.CallExpr) {
	for _, arg := range call.Args {
		v.walkExpr(testName, arg)
	}
}

// scheduleLocal walks fd's body once per file, the first time a test body
// reaches a call to it (§4.D "Local-function following"). Its candidates
// are attributed only to the test scope open during that walk; tests that
// call the same helper later in the file are not added to those
// candidates' test sets. Pure/view-style
// exclusions don't apply to Go (§9 — that carve-out is backend-specific to
// Solidity's runtime guard).
func (v *visitor) scheduleLocal(name string, fd *ast.FuncDecl) {
	if v.visitedLocals[name] || fd.Body == nil {
		return
	}
	v.visitedLocals[name] = true
	v.walkStatements(name, fd.Body.List, false)
}

// emitLeafStatement classifies and visits an ordinary (non-call) leaf
// statement (§4.D "Candidate recognition — statements").
func (v *visitor) emitLeafStatement(testName string, stmt ast.Stmt, isLast bool) {
	s, err := spanOf(v.f, stmt.Pos(), stmt.End())
	if err != nil {
		return
	}
	removable := statementIsRemovable(stmt)
	control := statementIsControl(stmt)
	declaration := statementIsDeclaration(stmt)
	v.w.VisitStatement(s, removable, control, declaration, isLast)
}

// statementIsRemovable implements the Open Question resolution in
// SPEC_FULL.md: a bare block or a composite-literal-only expression
// statement is never removable.
func statementIsRemovable(stmt ast.Stmt) bool {
	switch s := stmt.(type) {
	case *ast.BlockStmt:
		return false
	case *ast.ExprStmt:
		_, isComposite := s.X.(*ast.CompositeLit)
		return !isComposite
	default:
		return true
	}
}

// statementIsControl implements §4.D's backend hook per SPEC_FULL.md's
// Open Question resolution: break/continue/goto/return/defer.
func statementIsControl(stmt ast.Stmt) bool {
	switch stmt.(type) {
	case *ast.BranchStmt, *ast.ReturnStmt, *ast.DeferStmt:
		return true
	default:
		return false
	}
}

func statementIsDeclaration(stmt ast.Stmt) bool {
	_, ok := stmt.(*ast.DeclStmt)
	return ok
}

// subtestCall reports whether call is `t.Run("name", func(t *testing.T) { ... })`,
// returning the subtest's literal name and body (§4.D "t.Run subtests are
// walked as nested test scopes").
func subtestCall(call *ast.CallExpr) (name string, body *ast.BlockStmt, ok bool) {
	sel, isSel := call.Fun.(*ast.SelectorExpr)
	if !isSel || sel.Sel.Name != "Run" || len(call.Args) != 2 {
		return "", nil, false
	}
	lit, ok := call.Args[0].(*ast.BasicLit)
	if !ok {
		return "", nil, false
	}
	fn, ok := call.Args[1].(*ast.FuncLit)
	if !ok || fn.Body == nil {
		return "", nil, false
	}
	unquoted, err := strconv.Unquote(lit.Value)
	if err != nil {
		return "", nil, false
	}
	return unquoted, fn.Body, true
}
