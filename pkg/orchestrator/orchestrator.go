// Package orchestrator implements the top-level run loop (§4.H): option
// validation, backend selection, candidate collection/ordering, the
// resume/replay interleaving, and the final summary.
//
// Grounding: original_source/core/src/core.rs's `run`/`prepare` functions
// (option-incompatibility macro, dump-and-return-early, build-then-dry-run-
// then-mutate-per-file loop, skip-past-removals resume merge) and
// original_source/core/src/cli.rs's applicable-backend probe. No teacher
// file underlies this package — ctxweaver has no run loop, only a single
// Process entry point.
package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/mpyw/necessist/internal/color"
	"github.com/mpyw/necessist/internal/flock"
	"github.com/mpyw/necessist/pkg/backend"
	"github.com/mpyw/necessist/pkg/config"
	"github.com/mpyw/necessist/pkg/control"
	"github.com/mpyw/necessist/pkg/errs"
	"github.com/mpyw/necessist/pkg/ignore"
	"github.com/mpyw/necessist/pkg/span"
	"github.com/mpyw/necessist/pkg/store"
	"github.com/mpyw/necessist/pkg/walker"
)

// Options bundles every orchestrator-level flag (§6 "CLI surface").
type Options struct {
	Root           string
	Framework      string
	Timeout        int // seconds; 0 = no timeout
	Verbose        bool
	Quiet          bool
	Allow          []string
	Deny           []string
	Reset          bool
	Resume         bool
	NoPersist      bool
	Dump           bool
	DumpCandidates bool

	// Paths narrows discovery to specific test files (positional
	// TEST_FILES…, §6); empty means "every test file WalkDir finds".
	Paths     []string
	ExtraArgs []string

	// Logger receives per-candidate diagnostic tracing (internal/diag); a
	// nil Logger is treated as zap.NewNop().
	Logger *zap.Logger
}

// incompatiblePair names one pairwise-incompatible flag combination (§4.H,
// §7.1). original_source/core/src/core.rs's `incompatible!` macro lists its
// own set; this one covers the CLI flag pairs listed below.
type incompatiblePair struct {
	a, b string
	test func(Options) bool
}

var incompatiblePairs = []incompatiblePair{
	{"--dump", "--reset", func(o Options) bool { return o.Dump && o.Reset }},
	{"--dump", "--resume", func(o Options) bool { return o.Dump && o.Resume }},
	{"--dump", "--no-persist", func(o Options) bool { return o.Dump && o.NoPersist }},
	{"--reset", "--resume", func(o Options) bool { return o.Reset && o.Resume }},
	{"--reset", "--no-persist", func(o Options) bool { return o.Reset && o.NoPersist }},
	{"--resume", "--no-persist", func(o Options) bool { return o.Resume && o.NoPersist }},
	{"--quiet", "--verbose", func(o Options) bool { return o.Quiet && o.Verbose }},
	{"--dump", "--dump-candidates", func(o Options) bool { return o.Dump && o.DumpCandidates }},
}

// ValidateOptions rejects pairwise-contradictory flag combinations (§4.H
// "Validates option compatibility").
func ValidateOptions(o Options) error {
	for _, p := range incompatiblePairs {
		if p.test(o) {
			return fmt.Errorf("%s and %s are incompatible", p.a, p.b)
		}
	}
	return nil
}

// ErrNoApplicableBackend and ErrMultipleApplicableBackends are the two
// distinct fatal shapes of the backend probe (§4.H, §7.2; SPEC_FULL.md
// "SUPPLEMENTED FEATURES" carries both as distinguishable errors, not one
// generic probe failure).
type ErrNoApplicableBackend struct{ Root string }

func (e *ErrNoApplicableBackend) Error() string {
	return fmt.Sprintf("found no applicable backend for %s", e.Root)
}

type ErrMultipleApplicableBackends struct {
	Root  string
	Names []string
}

func (e *ErrMultipleApplicableBackends) Error() string {
	return fmt.Sprintf("found multiple applicable backends for %s: %v (pass --framework to disambiguate)", e.Root, e.Names)
}

// ProbeBackends chooses a backend: the user-named one if framework is
// non-empty, otherwise the unique applicable one (§4.H).
func ProbeBackends(backends []backend.Backend, root, framework string) (backend.Backend, error) {
	if framework != "" {
		for _, b := range backends {
			if b.Name() == framework {
				return b, nil
			}
		}
		return nil, fmt.Errorf("unknown --framework %q", framework)
	}

	var applicable []backend.Backend
	for _, b := range backends {
		ok, err := b.Applicable(root)
		if err != nil {
			return nil, fmt.Errorf("probing backend %s: %w", b.Name(), err)
		}
		if ok {
			applicable = append(applicable, b)
		}
	}
	switch len(applicable) {
	case 0:
		return nil, &ErrNoApplicableBackend{Root: root}
	case 1:
		return applicable[0], nil
	default:
		names := make([]string, len(applicable))
		for i, b := range applicable {
			names[i] = b.Name()
		}
		return nil, &ErrMultipleApplicableBackends{Root: root, Names: names}
	}
}

// FileCandidates is one parsed file's backend handle plus its
// deterministically-ordered candidates.
type FileCandidates struct {
	File       backend.File
	Candidates []backend.Candidate
}

// CollectCandidates walks paths, parsing and visiting each one, and returns
// one FileCandidates per file that parsed successfully. A file that fails
// to parse emits a ParsingFailed warning through policy rather than
// aborting the whole run (§7.3).
func CollectCandidates(ctx context.Context, b backend.Backend, paths []string, ignores walker.Ignores, ignoredTests *ignore.Matcher, policy *errs.Policy) ([]FileCandidates, error) {
	var out []FileCandidates
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		file, err := b.ParseFile(path)
		if err != nil {
			if escErr := applyWarning(policy, errs.Warning{ID: errs.ParsingFailed, Subject: path, Detail: err.Error()}); escErr != nil {
				return nil, escErr
			}
			continue
		}

		w := walker.New(ignores)
		result, err := b.Visit(ctx, w, file)
		if err != nil {
			if escErr := applyWarning(policy, errs.Warning{ID: errs.ParsingFailed, Subject: path, Detail: err.Error()}); escErr != nil {
				return nil, escErr
			}
			continue
		}

		candidates := flattenCandidates(result, ignoredTests)
		if len(candidates) == 0 {
			continue
		}
		out = append(out, FileCandidates{File: file, Candidates: candidates})
	}
	return out, nil
}

// flattenCandidates reduces a VisitResult's span->tests maps to one
// Candidate per span per kind, picking the lexicographically first
// non-ignored covering test name as the representative execution target:
// every test sharing a span necessarily observes the same removal, so
// running one of them is sufficient signal and avoids redundant identical
// runs of the same mutation (§3 Candidate carries a single TestName;
// TestSpanMap's full covering set remains informative but is not
// separately executed). A span covered only by ignored_tests entries
// (§4.E) is dropped entirely, since no eligible test remains to run it
// under.
func flattenCandidates(result *backend.VisitResult, ignoredTests *ignore.Matcher) []backend.Candidate {
	var out []backend.Candidate
	out = append(out, candidatesFromMap(result.Statements, backend.Statement, ignoredTests)...)
	out = append(out, candidatesFromMap(result.MethodCalls, backend.MethodCall, ignoredTests)...)
	sort.Slice(out, func(i, j int) bool { return out[i].Span.Compare(out[j].Span) < 0 })
	return out
}

func candidatesFromMap(m map[span.Span][]string, kind backend.Kind, ignoredTests *ignore.Matcher) []backend.Candidate {
	var out []backend.Candidate
	for s, tests := range m {
		var eligible []string
		for _, t := range tests {
			if ignoredTests == nil || !ignoredTests.Match(t) {
				eligible = append(eligible, t)
			}
		}
		if len(eligible) == 0 {
			continue
		}
		sort.Strings(eligible)
		out = append(out, backend.Candidate{Span: s, TestName: eligible[0], Kind: kind})
	}
	return out
}

func applyWarning(policy *errs.Policy, w errs.Warning) error {
	if _, err := policy.Apply(w); err != nil {
		return err
	}
	return nil
}

// Summary is the per-outcome candidate count printed at the end of a run
// (§4.H "prints a count summary").
type Summary struct {
	Passed       int
	Failed       int
	TimedOut     int
	Nonbuildable int
	Skipped      int
	FilesSkipped int
}

func (s *Summary) record(outcome backend.Outcome) {
	switch outcome {
	case backend.Passed:
		s.Passed++
	case backend.Failed:
		s.Failed++
	case backend.TimedOut:
		s.TimedOut++
	case backend.Nonbuildable:
		s.Nonbuildable++
	default:
		s.Skipped++
	}
}

// Total is every candidate this run reached a classification for.
func (s *Summary) Total() int {
	return s.Passed + s.Failed + s.TimedOut + s.Nonbuildable + s.Skipped
}

// Print writes the final count summary to stdout (§4.H "After processing
// every file, prints a count summary").
func (s *Summary) Print() {
	fmt.Printf("%d candidates processed in %d file(s) skipped\n", s.Total(), s.FilesSkipped)
	fmt.Printf("  %s: %d\n", color.Outcome(backend.Passed), s.Passed)
	fmt.Printf("  %s: %d\n", color.Outcome(backend.Failed), s.Failed)
	fmt.Printf("  %s: %d\n", color.Outcome(backend.TimedOut), s.TimedOut)
	fmt.Printf("  %s: %d\n", color.Outcome(backend.Nonbuildable), s.Nonbuildable)
	fmt.Printf("  %s: %d\n", color.Outcome(backend.Skipped), s.Skipped)
}

// Run executes one full necessist pass: validate options, acquire the
// whole-project lock, load config, probe the backend, collect and order
// candidates, then either dump them or run the full build/dry-run/mutate
// pipeline per file (§4.G, §4.H).
func Run(ctx context.Context, opts Options, backends []backend.Backend, cancelled func() bool) (*Summary, error) {
	if err := ValidateOptions(opts); err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	// The lock is acquired before config/backend validation (§5, SPEC_FULL.md
	// "SUPPLEMENTED FEATURES" — a second concurrent instance must fail fast
	// before doing any parsing work).
	lock, err := flock.Acquire(opts.Root)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	policy := errs.NewPolicy(opts.Allow, opts.Deny)
	if conflicts := policy.Conflicts(); len(conflicts) > 0 {
		return nil, fmt.Errorf("--allow and --deny both name %v", conflicts)
	}

	cfg, err := config.Load(opts.Root)
	if err != nil {
		return nil, err
	}

	b, err := ProbeBackends(backends, opts.Root, opts.Framework)
	if err != nil {
		return nil, err
	}
	log.Debug("selected backend", zap.String("name", b.Name()))

	builtins := b.Ignores()
	matchers, err := config.Compile(cfg, builtins.Functions, builtins.Macros, builtins.Methods, nil)
	if err != nil {
		return nil, err
	}
	b.Configure(matchers.Functions, matchers.Macros, matchers.Methods)

	paths := opts.Paths
	if len(paths) == 0 {
		paths, err = b.WalkDir(opts.Root)
		if err != nil {
			return nil, err
		}
	}

	ignores := walker.Ignores{Functions: matchers.Functions, Macros: matchers.Macros, Methods: matchers.Methods}
	files, err := CollectCandidates(ctx, b, paths, ignores, matchers.Tests, policy)
	if err != nil {
		return nil, err
	}
	log.Debug("collected candidates", zap.Int("files", len(files)))

	// Files in ascending path order, candidates within a file in ascending
	// span order (§4.H, §5 "Ordering guarantees").
	sort.Slice(files, func(i, j int) bool { return files[i].File.Path() < files[j].File.Path() })

	if opts.Dump {
		printDump(files)
		return &Summary{}, nil
	}
	if opts.DumpCandidates {
		printDumpCandidates(files)
		return &Summary{}, nil
	}

	var st *store.Store
	if !opts.NoPersist {
		st, err = store.Open(opts.Root, opts.Reset)
		if err != nil {
			return nil, err
		}
		defer st.Close()
	}

	var replay store.ReplayResult
	if opts.Resume {
		if st == nil {
			return nil, fmt.Errorf("--resume requires persistence (incompatible with --no-persist)")
		}
		stored, err := st.LoadAll()
		if err != nil {
			return nil, err
		}
		replay = store.Replay(stored, allSpanKeys(files, opts.Root))
		if len(replay.Drifted) > 0 {
			if escErr := applyWarning(policy, errs.Warning{ID: errs.FilesChanged, Detail: fmt.Sprintf("%d persisted span(s) no longer present", len(replay.Drifted))}); escErr != nil {
				return nil, escErr
			}
		}
	}

	rc := backend.RunContext{Root: opts.Root, Timeout: resolveTimeout(opts.Timeout), ExtraArgs: opts.ExtraArgs}
	controller := control.New(b, rc)
	summary := &Summary{}

	for _, fc := range files {
		if cancelled != nil && cancelled() {
			break
		}

		if err := controller.BuildFile(ctx, fc.File); err != nil {
			if escErr := applyWarning(policy, errs.Warning{ID: errs.DryRunFailed, Subject: fc.File.Path(), Detail: err.Error()}); escErr != nil {
				return nil, escErr
			}
			summary.FilesSkipped++
			continue
		}
		if err := controller.DryRun(ctx, fc.File); err != nil {
			if escErr := applyWarning(policy, errs.Warning{ID: errs.DryRunFailed, Subject: fc.File.Path(), Detail: err.Error()}); escErr != nil {
				return nil, escErr
			}
			summary.FilesSkipped++
			continue
		}

		for _, cand := range fc.Candidates {
			if cancelled != nil && cancelled() {
				break
			}

			key := cand.Span.StorageKey(opts.Root)
			if opts.Resume {
				if r, ok := replay.Replayed[key]; ok {
					summary.record(r.Outcome)
					log.Debug("replayed candidate", zap.String("span", key), zap.String("outcome", r.Outcome.String()))
					continue
				}
			}

			log.Debug("running candidate", zap.String("span", key), zap.String("test", cand.TestName), zap.String("kind", cand.Kind.String()))
			outcome, err := controller.RunCandidate(ctx, fc.File, cand, cand.TestName)
			if err != nil {
				return nil, err // I/O errors are fatal (§7.9)
			}
			summary.record(outcome)
			log.Debug("classified candidate", zap.String("span", key), zap.String("outcome", outcome.String()))

			// A Skipped outcome here is always the line-matcher reporting
			// no signal (control.RunCandidate's other Skipped paths carry a
			// non-nil error and return above before reaching this point);
			// §4.G step 5 says not to persist that case.
			if st != nil && outcome != backend.Skipped {
				text, _ := cand.Span.File.Text(cand.Span)
				if err := st.Record(key, text, outcome, cand.Span.Start.Line, cand.Span.End.Line); err != nil {
					return nil, err
				}
			}

			if opts.Verbose || outcome == backend.Passed {
				fmt.Printf("%s  %s\n", color.Outcome(outcome), cand.Span.String())
			}
		}
	}

	if !opts.Quiet {
		summary.Print()
	}
	return summary, nil
}

// resolveTimeout returns t unchanged (§4.G step 4 "default 60s, 0 = no
// timeout, configurable"): Options has no way to distinguish "unset" from
// "explicitly 60", so the 60s default is cmd/necessist's flag default and
// 0 always means "no timeout" here.
func resolveTimeout(t int) int {
	return t
}

func allSpanKeys(files []FileCandidates, root string) []string {
	var keys []string
	for _, fc := range files {
		for _, c := range fc.Candidates {
			keys = append(keys, c.Span.StorageKey(root))
		}
	}
	sort.Strings(keys)
	return keys
}

// printDump lists every candidate with its kind and representative test
// (--dump).
func printDump(files []FileCandidates) {
	total := 0
	for _, fc := range files {
		for _, c := range fc.Candidates {
			fmt.Printf("%s\t%s\t%s\n", c.Kind, c.TestName, c.Span.String())
			total++
		}
	}
	fmt.Printf("%d candidates in %d file(s)\n", total, len(files))
}

// printDumpCandidates lists only spans, one per line, with no kind or test
// column (--dump-candidates): the lighter machine-parseable form a caller
// greps or pipes into another tool.
func printDumpCandidates(files []FileCandidates) {
	for _, fc := range files {
		for _, c := range fc.Candidates {
			fmt.Println(c.Span.String())
		}
	}
}
