package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mpyw/necessist/pkg/backend"
	"github.com/mpyw/necessist/pkg/ignore"
	"github.com/mpyw/necessist/pkg/span"
)

func TestValidateOptionsRejectsIncompatiblePairs(t *testing.T) {
	cases := []Options{
		{Dump: true, Reset: true},
		{Dump: true, Resume: true},
		{Dump: true, NoPersist: true},
		{Reset: true, Resume: true},
		{Reset: true, NoPersist: true},
		{Resume: true, NoPersist: true},
		{Quiet: true, Verbose: true},
		{Dump: true, DumpCandidates: true},
	}
	for _, o := range cases {
		if err := ValidateOptions(o); err == nil {
			t.Errorf("ValidateOptions(%+v) = nil, want error", o)
		}
	}
}

func TestValidateOptionsAcceptsCompatibleCombination(t *testing.T) {
	o := Options{Verbose: true, Resume: true}
	if err := ValidateOptions(o); err != nil {
		t.Errorf("ValidateOptions(%+v) = %v, want nil", o, err)
	}
}

// fakeBackend is a minimal backend.Backend stand-in used only to exercise
// ProbeBackends's name/applicability logic.
type fakeBackend struct {
	name       string
	applicable bool
	applyErr   error
}

func (f *fakeBackend) Name() string { return f.name }
func (f *fakeBackend) Applicable(root string) (bool, error) {
	return f.applicable, f.applyErr
}
func (f *fakeBackend) WalkDir(root string) ([]string, error)      { return nil, nil }
func (f *fakeBackend) ParseFile(path string) (backend.File, error) { return nil, nil }
func (f *fakeBackend) Visit(ctx context.Context, w backend.Walker, file backend.File) (*backend.VisitResult, error) {
	return nil, nil
}
func (f *fakeBackend) Ignores() backend.IgnoreLists { return backend.IgnoreLists{} }
func (f *fakeBackend) Configure(functions, macros, methods *ignore.Matcher) {}
func (f *fakeBackend) CommandToRunSourceFile(rc backend.RunContext, file backend.File) (backend.Command, error) {
	return backend.Command{}, nil
}
func (f *fakeBackend) CommandToBuildSourceFile(rc backend.RunContext, file backend.File) (backend.Command, error) {
	return backend.Command{}, nil
}
func (f *fakeBackend) CommandToBuildTest(rc backend.RunContext, file backend.File, testName string, s span.Span) (backend.Command, error) {
	return backend.Command{}, nil
}
func (f *fakeBackend) CommandToRunTest(rc backend.RunContext, file backend.File, testName string, s span.Span) (backend.Command, error) {
	return backend.Command{}, nil
}
func (f *fakeBackend) Instrumenting() bool { return false }
func (f *fakeBackend) InstrumentSourceFile(file backend.File, candidates []backend.Candidate) (string, error) {
	return "", nil
}
func (f *fakeBackend) StatementPrefixAndSuffix(s span.Span) (string, string) { return "", "" }

func TestProbeBackendsNoneApplicable(t *testing.T) {
	backends := []backend.Backend{&fakeBackend{name: "go", applicable: false}}
	_, err := ProbeBackends(backends, "/tmp/proj", "")
	if _, ok := err.(*ErrNoApplicableBackend); !ok {
		t.Fatalf("got %v (%T), want *ErrNoApplicableBackend", err, err)
	}
}

func TestProbeBackendsMultipleApplicable(t *testing.T) {
	backends := []backend.Backend{
		&fakeBackend{name: "go", applicable: true},
		&fakeBackend{name: "ruby", applicable: true},
	}
	_, err := ProbeBackends(backends, "/tmp/proj", "")
	merr, ok := err.(*ErrMultipleApplicableBackends)
	if !ok {
		t.Fatalf("got %v (%T), want *ErrMultipleApplicableBackends", err, err)
	}
	if len(merr.Names) != 2 {
		t.Errorf("Names = %v, want 2 entries", merr.Names)
	}
}

func TestProbeBackendsUniqueApplicable(t *testing.T) {
	backends := []backend.Backend{
		&fakeBackend{name: "go", applicable: true},
		&fakeBackend{name: "ruby", applicable: false},
	}
	b, err := ProbeBackends(backends, "/tmp/proj", "")
	if err != nil {
		t.Fatalf("ProbeBackends: %v", err)
	}
	if b.Name() != "go" {
		t.Errorf("got %q, want %q", b.Name(), "go")
	}
}

func TestProbeBackendsByExplicitFramework(t *testing.T) {
	backends := []backend.Backend{
		&fakeBackend{name: "go", applicable: true},
		&fakeBackend{name: "ruby", applicable: true},
	}
	b, err := ProbeBackends(backends, "/tmp/proj", "ruby")
	if err != nil {
		t.Fatalf("ProbeBackends: %v", err)
	}
	if b.Name() != "ruby" {
		t.Errorf("got %q, want %q", b.Name(), "ruby")
	}
}

func TestProbeBackendsUnknownFramework(t *testing.T) {
	backends := []backend.Backend{&fakeBackend{name: "go", applicable: true}}
	if _, err := ProbeBackends(backends, "/tmp/proj", "rust"); err == nil {
		t.Fatal("expected error for unknown --framework")
	}
}

func testSourceFile(t *testing.T) *span.SourceFile {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "a_test.go")
	if err := os.WriteFile(path, []byte("package a\n"), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	span.Forget(path)
	sf, err := span.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return sf
}

func mustSpan(t *testing.T, sf *span.SourceFile, line int) span.Span {
	t.Helper()
	s, err := span.New(sf, span.Position{Line: line, Column: 0}, span.Position{Line: line, Column: 1})
	if err != nil {
		t.Fatalf("span.New: %v", err)
	}
	return s
}

func TestFlattenCandidatesPicksLexicographicallyFirstTest(t *testing.T) {
	sf := testSourceFile(t)
	s := mustSpan(t, sf, 1)
	result := &backend.VisitResult{
		Statements:  map[span.Span][]string{s: {"TestZ", "TestA", "TestM"}},
		MethodCalls: map[span.Span][]string{},
	}
	cands := flattenCandidates(result, nil)
	if len(cands) != 1 {
		t.Fatalf("got %d candidates, want 1", len(cands))
	}
	if cands[0].TestName != "TestA" {
		t.Errorf("TestName = %q, want %q", cands[0].TestName, "TestA")
	}
}

func TestFlattenCandidatesDropsSpanCoveredOnlyByIgnoredTests(t *testing.T) {
	sf := testSourceFile(t)
	s := mustSpan(t, sf, 1)
	result := &backend.VisitResult{
		Statements:  map[span.Span][]string{s: {"TestFlaky"}},
		MethodCalls: map[span.Span][]string{},
	}
	ignoredTests := ignore.MustCompile([]string{"TestFlaky"})
	cands := flattenCandidates(result, ignoredTests)
	if len(cands) != 0 {
		t.Errorf("got %d candidates, want 0 (span covered only by an ignored test)", len(cands))
	}
}

func TestFlattenCandidatesFallsBackToNextEligibleTest(t *testing.T) {
	sf := testSourceFile(t)
	s := mustSpan(t, sf, 1)
	result := &backend.VisitResult{
		Statements:  map[span.Span][]string{s: {"TestFlaky", "TestOK"}},
		MethodCalls: map[span.Span][]string{},
	}
	ignoredTests := ignore.MustCompile([]string{"TestFlaky"})
	cands := flattenCandidates(result, ignoredTests)
	if len(cands) != 1 || cands[0].TestName != "TestOK" {
		t.Fatalf("got %+v, want a single candidate naming TestOK", cands)
	}
}

func TestSummaryRecordAndTotal(t *testing.T) {
	s := &Summary{}
	s.record(backend.Passed)
	s.record(backend.Failed)
	s.record(backend.Failed)
	s.record(backend.TimedOut)
	s.record(backend.Nonbuildable)
	s.record(backend.Skipped)
	if s.Total() != 6 {
		t.Errorf("Total() = %d, want 6", s.Total())
	}
	if s.Failed != 2 {
		t.Errorf("Failed = %d, want 2", s.Failed)
	}
}
