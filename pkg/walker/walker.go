// Package walker implements the generic, AST-agnostic test walker (§4.D):
// given callbacks from a backend's native visitor, it decides which
// statements and calls are candidates, independent of the concrete AST
// shape (§9 "Polymorphism over AST shape").
//
// Grounding: original_source/backends/src/generic_visitor.rs and
// original_source/frameworks/src/generic_visitor.rs implement exactly this
// split (native visitor drives, generic walker decides). No teacher file
// underlies this package — ctxweaver's pkg/processor walks a single
// concrete Go AST and makes no statement-removability decisions at all.
package walker

import (
	"github.com/mpyw/necessist/pkg/backend"
	"github.com/mpyw/necessist/pkg/ignore"
	"github.com/mpyw/necessist/pkg/span"
)

// Ignores bundles the compiled matchers the walker consults (§4.D step 3,
// §4.E) — the merge of backend built-ins and user config already done by
// pkg/config.Compile.
type Ignores struct {
	Functions *ignore.Matcher
	Macros    *ignore.Matcher
	Methods   *ignore.Matcher
}

// testScope tracks the state needed to decide last-statement protection
// and leaf-counting for one test body (§4.D "State held during a walk").
type testScope struct {
	name               string
	lastStatementSpan  span.Span // never set or read: last-statement protection uses the isLast/IsLastStatement arguments
	nLeavesBeforeChild int       // never set or read: leaf counting uses Walker.nBefore
}

// Walker implements backend.Walker. A backend's native visitor constructs
// one per file, opens/closes test scopes as it enters/leaves test bodies,
// and calls VisitStatement/VisitCall at each leaf.
type Walker struct {
	ignores Ignores

	stack  []*testScope // nested test scopes (Go subtests push a new scope)
	result *backend.VisitResult

	// nStatementLeavesVisited and nBefore implement §4.D's leaf-counting:
	// a composite statement pushes the current leaf count before
	// descending; if the count is unchanged on return, the composite had
	// no visited children and whether it itself is a leaf is up to the
	// backend (the Go backend never emits its composite statements —
	// blocks, if/for/range/switch/select — as candidates; it only descends
	// into them).
	nStatementLeavesVisited int
	nBefore                 []int

	warnUnsupportedOnce map[string]bool
}

// New returns a Walker ready to drive one file's traversal.
func New(ignores Ignores) *Walker {
	return &Walker{
		ignores:             ignores,
		result:              &backend.VisitResult{Statements: map[span.Span][]string{}, MethodCalls: map[span.Span][]string{}},
		warnUnsupportedOnce: map[string]bool{},
	}
}

// EnterTest opens a new test scope (§4.D "current test_name").
func (w *Walker) EnterTest(name string) {
	w.result.Tests = append(w.result.Tests, name)
	w.stack = append(w.stack, &testScope{name: name})
}

// LeaveTest closes the innermost test scope.
func (w *Walker) LeaveTest() {
	if len(w.stack) == 0 {
		return
	}
	w.stack = w.stack[:len(w.stack)-1]
}

func (w *Walker) current() *testScope {
	if len(w.stack) == 0 {
		return nil
	}
	return w.stack[len(w.stack)-1]
}

// EnterComposite pushes a leaf-count checkpoint before descending into a
// composite (block) statement's children (§4.D "Leaf counting").
func (w *Walker) EnterComposite() {
	w.nBefore = append(w.nBefore, w.nStatementLeavesVisited)
}

// LeaveComposite pops the checkpoint and reports whether no statement or
// call was visited while inside (i.e. whether the composite, as a whole, is
// itself a leaf). The Go backend ignores the result, but the signal is
// kept general for future backends.
func (w *Walker) LeaveComposite() (isLeaf bool) {
	n := len(w.nBefore) - 1
	before := w.nBefore[n]
	w.nBefore = w.nBefore[:n]
	return w.nStatementLeavesVisited == before
}

// VisitStatement implements backend.Walker (§4.D "Candidate recognition —
// statements"). isLast indicates the backend determined this is the test's
// syntactically last top-level statement.
func (w *Walker) VisitStatement(s span.Span, removable, control, declaration, isLast bool) {
	scope := w.current()
	if scope == nil {
		return
	}
	w.nStatementLeavesVisited++
	if isLast {
		return // §4.D "Last-statement protection"
	}
	if !removable || control || declaration {
		return
	}
	w.emitStatement(s, scope.name)
}

func (w *Walker) emitStatement(s span.Span, test string) {
	w.result.Statements[s] = appendUnique(w.result.Statements[s], test)
}

func (w *Walker) emitMethodCall(s span.Span, test string) {
	w.result.MethodCalls[s] = appendUnique(w.result.MethodCalls[s], test)
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// VisitCall implements backend.Walker (§4.D "Candidate recognition —
// calls", "Ignore-chain rule"). The backend has already computed whether
// the callee (or its innermost chained call) is ignored; VisitCall applies
// the emission rules and records the leaf visit.
func (w *Walker) VisitCall(info backend.CallInfo) {
	scope := w.current()
	if scope == nil {
		return
	}
	w.nStatementLeavesVisited++
	if info.IsLastStatement {
		return // §4.D "Last-statement protection"
	}

	isIgnoredAsCall := info.InnermostIgnored || w.matchCallee(info)
	isIgnoredAsMethodCall := info.IsMethodCall && w.ignores.Methods.Match(info.MethodSuffix)

	if info.IsTopLevelStatement && !isIgnoredAsCall {
		w.emitStatement(info.StatementSpan, scope.name)
	}
	if info.IsMethodCall && !isIgnoredAsCall && !isIgnoredAsMethodCall {
		trimmed, err := span.TrimStart(info.CallSpan)
		if err == nil {
			w.emitMethodCall(trimmed, scope.name)
		}
	}
}

func (w *Walker) matchCallee(info backend.CallInfo) bool {
	if info.IsMacro {
		return w.ignores.Macros.Match(info.CalleeName)
	}
	if w.ignores.Functions.Match(info.CalleeName) {
		return true
	}
	if info.IsMethodCall && w.ignores.Methods.Match(info.MethodSuffix) {
		return true
	}
	return false
}

// ShouldDescend reports whether a call's arguments should still be walked,
// per §4.D rule 4's third bullet: descend iff neither ignore flag is set.
func (w *Walker) ShouldDescend(info backend.CallInfo) bool {
	isIgnoredAsCall := info.InnermostIgnored || w.matchCallee(info)
	isIgnoredAsMethodCall := info.IsMethodCall && w.ignores.Methods.Match(info.MethodSuffix)
	return !isIgnoredAsCall && !isIgnoredAsMethodCall
}

// Result implements backend.Walker.
func (w *Walker) Result() *backend.VisitResult {
	return w.result
}
