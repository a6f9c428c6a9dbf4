// Package control implements the per-file, per-candidate run controller
// (§4.G): build once, dry-run once, then for each surviving candidate
// back up, edit, build, run-with-timeout, classify, and restore.
//
// Grounding: no teacher file underlies this package directly (ctxweaver
// rewrites and formats source; it never builds or executes the project
// under test). The pipeline shape and backup discipline are grounded on
// original_source/core/src/{running,backup}.rs; the process-group timeout
// handling is grounded on _examples/theRebelliousNerd-codenerd/internal/tactile.
package control

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/mpyw/necessist/pkg/backend"
	"github.com/mpyw/necessist/pkg/span"
)

// DefaultTimeoutSeconds is the per-candidate run timeout absent an
// explicit --timeout (§4.G step 4).
const DefaultTimeoutSeconds = 60

// Controller drives one backend's build/run commands for one project run.
type Controller struct {
	Backend backend.Backend
	RC      backend.RunContext
}

// New returns a Controller bound to b for the given run parameters.
func New(b backend.Backend, rc backend.RunContext) *Controller {
	return &Controller{Backend: b, RC: rc}
}

// timeoutSeconds returns RC.Timeout unchanged; it applies no default of its
// own. 0 means "no timeout" (a valid user choice), and the 60s default
// comes from cmd/necessist's --timeout flag default, so RC.Timeout here is
// always the final value.
func (c *Controller) timeoutSeconds() int {
	return c.RC.Timeout
}

// BuildFile runs the per-file build command (§4.G step 1). A non-nil
// error means the file's build failed and its candidates are uncovered.
func (c *Controller) BuildFile(ctx context.Context, file backend.File) error {
	cmd, err := c.Backend.CommandToBuildSourceFile(c.RC, file)
	if err != nil {
		return err
	}
	exitCode, _, _, err := c.run(ctx, cmd, 0)
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return fmt.Errorf("build failed for %s (exit %d)", file.Path(), exitCode)
	}
	return nil
}

// DryRun runs the unmodified file's full test command as a baseline sanity
// check (§4.G step 2). A non-nil error means the file must be skipped
// entirely, its candidates counted as uncovered.
func (c *Controller) DryRun(ctx context.Context, file backend.File) error {
	cmd, err := c.Backend.CommandToRunSourceFile(c.RC, file)
	if err != nil {
		return err
	}
	exitCode, timedOut, _, err := c.run(ctx, cmd, c.timeoutSeconds())
	if err != nil {
		return err
	}
	if timedOut {
		return fmt.Errorf("dry run timed out for %s", file.Path())
	}
	if exitCode != 0 {
		return fmt.Errorf("dry run failed for %s (exit %d)", file.Path(), exitCode)
	}
	return nil
}

// RunCandidate executes the full backup/edit/build/run/classify/restore
// cycle for one candidate (§4.G step 3). The returned outcome is Skipped
// both when the line-matcher fails to observe the test running and as the
// placeholder result of any setup error (the caller still gets the error).
func (c *Controller) RunCandidate(ctx context.Context, file backend.File, cand backend.Candidate, testName string) (backend.Outcome, error) {
	path := cand.Span.File.Path

	backup, err := NewBackup(path)
	if err != nil {
		return backend.Skipped, err
	}
	defer func() {
		_ = backup.Restore()
		span.Forget(path)
	}()

	if err := c.applyEdit(cand); err != nil {
		return backend.Skipped, err
	}
	span.Forget(path)

	buildCmd, err := c.Backend.CommandToBuildTest(c.RC, file, testName, cand.Span)
	if err != nil {
		return backend.Skipped, err
	}
	if exitCode, _, _, err := c.run(ctx, buildCmd, 0); err != nil {
		return backend.Skipped, err
	} else if exitCode != 0 {
		return backend.Nonbuildable, nil
	}

	runCmd, err := c.Backend.CommandToRunTest(c.RC, file, testName, cand.Span)
	if err != nil {
		return backend.Skipped, err
	}
	exitCode, timedOut, matched, err := c.run(ctx, runCmd, c.timeoutSeconds())
	if err != nil {
		return backend.Skipped, err
	}

	switch {
	case timedOut:
		return backend.TimedOut, nil
	case runCmd.LineMatcher != nil && !matched:
		return backend.Skipped, nil
	case exitCode == 0:
		return backend.Passed, nil
	default:
		return backend.Failed, nil
	}
}

// applyEdit replaces cand's span with the empty string for non-instrumenting
// backends (§4.G step 3.ii). Instrumenting backends pre-edit the whole file
// once via InstrumentSourceFile before the per-candidate loop begins, and
// activate individual guards at run time instead (§9 "Instrumentation vs
// deletion"); RunCandidate is only reached per-candidate for the deleting
// strategy.
func (c *Controller) applyEdit(cand backend.Candidate) error {
	if c.Backend.Instrumenting() {
		return nil
	}
	rw := span.NewRewriter(cand.Span.File)
	return rw.WriteFile([]span.Edit{{Span: cand.Span, Replacement: ""}})
}

// run starts command, waits up to timeoutSeconds (0 = no timeout), and
// reports its exit code, whether it was killed for timing out, and
// whether its stdout/stderr matched the command's optional line-matcher
// (§4.G step 5, "optional post-processor").
func (c *Controller) run(ctx context.Context, command backend.Command, timeoutSeconds int) (exitCode int, timedOut bool, matched bool, err error) {
	cmd := command.Cmd
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	setupProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return -1, false, false, fmt.Errorf("failed to start %s: %w", strings.Join(cmd.Args, " "), err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var timer *time.Timer
	var timerC <-chan time.Time
	if timeoutSeconds > 0 {
		timer = time.NewTimer(time.Duration(timeoutSeconds) * time.Second)
		defer timer.Stop()
		timerC = timer.C
	}

	select {
	case waitErr := <-done:
		matched = command.LineMatcher != nil && anyLineMatches(buf.String(), command.LineMatcher)
		if waitErr == nil {
			return 0, false, matched, nil
		}
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			return exitErr.ExitCode(), false, matched, nil
		}
		return -1, false, matched, fmt.Errorf("command %s failed: %w", strings.Join(cmd.Args, " "), waitErr)

	case <-timerC:
		_ = killProcessGroup(cmd)
		<-done
		return -1, true, false, nil

	case <-ctx.Done():
		_ = killProcessGroup(cmd)
		<-done
		return -1, false, false, ctx.Err()
	}
}

func anyLineMatches(output string, matcher func(string) bool) bool {
	for _, line := range strings.Split(output, "\n") {
		if matcher(line) {
			return true
		}
	}
	return false
}
