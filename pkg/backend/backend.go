// Package backend defines the pluggable backend contract (§4.C): a pair of
// Parse and Run operations over one ecosystem's test suites, plus the
// shared types (Candidate, Outcome, TestSpanMap) the generic walker and run
// controller exchange with any backend.
//
// Grounding: the capability-typed-handle shape ("§9 Polymorphism over AST
// shape" — opaque node identities plus classifier callbacks, not a shared
// concrete AST) comes straight from original_source/core/src/framework.rs
// and original_source/backends/src/lib.rs. No teacher file underlies this
// package: ctxweaver's pkg/processor is a single-ecosystem (Go) AST
// rewriter with no backend abstraction to generalize from.
package backend

import (
	"context"
	"os/exec"

	"github.com/mpyw/necessist/pkg/ignore"
	"github.com/mpyw/necessist/pkg/span"
)

// Kind distinguishes the two candidate shapes (§3 Candidate).
type Kind int

const (
	Statement Kind = iota
	MethodCall
)

func (k Kind) String() string {
	if k == MethodCall {
		return "MethodCall"
	}
	return "Statement"
}

// Outcome is the result of running one candidate's mutated test (§3).
type Outcome int

const (
	Passed Outcome = iota
	Failed
	TimedOut
	Nonbuildable
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Passed:
		return "Passed"
	case Failed:
		return "Failed"
	case TimedOut:
		return "TimedOut"
	case Nonbuildable:
		return "Nonbuildable"
	default:
		return "Skipped"
	}
}

// Candidate is a (Span, TestName, Kind) triple (§3).
type Candidate struct {
	Span     span.Span
	TestName string
	Kind     Kind
}

// SpanTestMap maps a candidate span to the set of test names that exercise
// it (§3 TestSpanMap — one span may belong to several tests via a shared
// helper function).
type SpanTestMap map[string]map[string]bool // span.StorageKey -> set of test names

// Add records that span s is exercised by test.
func (m SpanTestMap) Add(s span.Span, key, test string) {
	tests, ok := m[key]
	if !ok {
		tests = map[string]bool{}
		m[key] = tests
	}
	tests[test] = true
	_ = s
}

// TestSpanMap is the per-file result of a walk (§3): statement candidates
// and method-call candidates, each keyed by span storage key to its set of
// covering test names.
type TestSpanMap struct {
	Statements  SpanTestMap
	MethodCalls SpanTestMap
}

// NewTestSpanMap returns an empty TestSpanMap.
func NewTestSpanMap() *TestSpanMap {
	return &TestSpanMap{Statements: SpanTestMap{}, MethodCalls: SpanTestMap{}}
}

// VisitResult is what visiting one parsed file produces: the set of test
// names discovered, plus the span/test maps for both candidate kinds.
type VisitResult struct {
	Tests       []string
	Statements  map[span.Span][]string
	MethodCalls map[span.Span][]string
}

// IgnoreLists are a backend's built-in glob patterns (§4.C). A nil slice
// means "feature not supported" for that category; passing user
// configuration for an unsupported category is a warning, not an error
// (§4.C, §4.E).
type IgnoreLists struct {
	Functions []string
	Macros    []string
	Methods   []string
}

// RunContext carries the per-run parameters commands need (timeout,
// extra args after "--", the target module root).
type RunContext struct {
	Root     string
	Timeout  int // seconds; 0 = no timeout
	ExtraArgs []string
}

// Command is a backend-constructed external command plus an optional
// stdout line-matcher used to confirm the intended test really ran
// (§4.C command_to_run_test).
type Command struct {
	Cmd         *exec.Cmd
	LineMatcher func(line string) bool
}

// Backend is the full Parse+Run contract for one ecosystem (§4.C). File
// and Test are backend-owned opaque types threaded back through the
// generic walker via the Go type parameters below is avoided in favor of
// `any` + type assertions inside the concrete backend, matching the
// "capability-typed handles, not a common concrete AST" design note (§9):
// the walker never needs to know the concrete File/Test representation,
// only the classifier callbacks this interface exposes.
type Backend interface {
	// Name identifies the backend for --framework selection and console
	// output (e.g. "go").
	Name() string

	// Applicable reports whether root looks like a project this backend
	// can handle (§6 "project inputs detected").
	Applicable(root string) (bool, error)

	// WalkDir returns candidate test file paths under root.
	WalkDir(root string) ([]string, error)

	// ParseFile parses one file into a backend-internal File handle.
	ParseFile(path string) (File, error)

	// Visit drives the generic walker over file and returns the
	// discovered tests and candidate span maps (§4.C visit_file).
	Visit(ctx context.Context, w Walker, file File) (*VisitResult, error)

	// Ignores returns this backend's built-in ignore pattern lists
	// (§4.C IGNORED_FUNCTIONS/IGNORED_MACROS/IGNORED_METHODS).
	Ignores() IgnoreLists
	// Configure supplies the compiled matchers (backend built-ins merged
	// with user config, per pkg/config.Compile) so the backend's own
	// call-chain resolution can test an innermost chained call's name
	// against the same rules the walker applies to top-level calls (§4.D
	// "Ignore-chain rule").
	Configure(functions, macros, methods *ignore.Matcher)

	// CommandToRunSourceFile builds the full per-file test command (§4.C).
	CommandToRunSourceFile(rc RunContext, file File) (Command, error)
	// CommandToBuildSourceFile builds the per-file build command.
	CommandToBuildSourceFile(rc RunContext, file File) (Command, error)
	// CommandToBuildTest builds a per-test build command.
	CommandToBuildTest(rc RunContext, file File, testName string, s span.Span) (Command, error)
	// CommandToRunTest builds the per-candidate run command.
	CommandToRunTest(rc RunContext, file File, testName string, s span.Span) (Command, error)

	// Instrumenting reports whether this backend uses the instrument/guard
	// strategy (§4.G step 2, §9 "Instrumentation vs deletion") rather than
	// textual deletion per candidate.
	Instrumenting() bool
	// InstrumentSourceFile pre-edits file to add n runtime guards, one per
	// candidate, keyed on each candidate's span id (§4.C, only called when
	// Instrumenting() is true).
	InstrumentSourceFile(file File, candidates []Candidate) (string, error)
	// StatementPrefixAndSuffix returns the guard strings wrapping s for
	// instrumented deletion (§4.C, only called when Instrumenting() is true).
	StatementPrefixAndSuffix(s span.Span) (prefix, suffix string)
}

// File is an opaque backend-owned parsed-file handle. Concrete backends
// type-assert it back to their own struct.
type File interface {
	Path() string
	Contents() []byte
}

// Walker is the subset of the generic walker (pkg/walker) a backend's
// native visitor calls back into while traversing its own AST (§9
// "traverses via the backend's native visitor, which calls back into the
// walker at each interesting node").
type Walker interface {
	// EnterTest starts a new test scope named name; every statement
	// visited until the matching Leave is attributed to this test.
	EnterTest(name string)
	// LeaveTest ends the innermost test scope.
	LeaveTest()
	// VisitStatement records one leaf statement's candidacy, applying the
	// last-statement/control/declaration/removability filters (§4.D).
	VisitStatement(s span.Span, removable, control, declaration, isLast bool)
	// VisitCall records a call expression's candidacy, applying the
	// ignore-chain and method-call rules (§4.D).
	VisitCall(info CallInfo)
	// EnterComposite pushes a leaf-count checkpoint before descending into
	// a composite (block) statement's children (§4.D "Leaf counting").
	EnterComposite()
	// LeaveComposite pops the checkpoint, reporting whether the composite
	// is itself a leaf (no statement or call was visited within it).
	LeaveComposite() bool
	// ShouldDescend reports whether a call's arguments should be walked,
	// per the ignore flags computed for info (§4.D rule 4, third bullet).
	ShouldDescend(info CallInfo) bool
	// Result returns the accumulated VisitResult after a full walk.
	Result() *VisitResult
}

// CallInfo is what a backend's visitor reports about one call expression
// so the generic walker can apply §4.D's emission rules without knowing
// the concrete AST node type.
type CallInfo struct {
	// StatementSpan is the enclosing top-level statement's span, used for
	// the Statement-kind emission.
	StatementSpan span.Span
	// CallSpan is the span used for MethodCall emission after trim_start
	// (§4.B): the whole call expression, or for a method call the
	// ".method(args)" suffix starting at the receiver's trailing '.'.
	CallSpan span.Span
	// IsTopLevelStatement is true when this call is itself the entire
	// enclosing statement (§4.D rule 4, first bullet).
	IsTopLevelStatement bool
	// IsMethodCall is true when the callee is a dotted field access
	// (§4.D rule 2).
	IsMethodCall bool
	// CalleeName is the call's own name, or the fully-qualified chained
	// name (Receiver.b.c) when IsMethodCall (§4.D rule 2-3).
	CalleeName string
	// MethodSuffix is the trailing ".method" name alone, used against
	// ignored_methods (§4.D rule 3, second bullet). Empty when !IsMethodCall.
	MethodSuffix string
	// InnermostIgnored is true when the chain's innermost call is itself
	// ignored-as-call, propagating the ignore-chain rule outward (§4.D
	// "Ignore-chain rule").
	InnermostIgnored bool
	// IsMacro is true when this is a macro-style call, checked against
	// ignored_macros instead of ignored_functions.
	IsMacro bool
	// IsLastStatement is true when this call is the last statement of its
	// enclosing test body, mirroring VisitStatement's isLast guard so a
	// trailing assertion call never becomes a candidate (§4.D "the last
	// statement of any test body is never a candidate").
	IsLastStatement bool
}
