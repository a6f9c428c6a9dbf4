// Package color provides TTY-gated ANSI color helpers for the run summary
// and per-candidate progress line (§4.H), plus a mapping from backend
// outcomes to the color/label pair they are printed with.
package color

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/mpyw/necessist/pkg/backend"
)

// ANSI color codes.
const (
	Reset  = "\033[0m"
	Cyan   = "\033[36m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Red    = "\033[31m"
	Dim    = "\033[2m"
)

var (
	stdoutIsTTY = term.IsTerminal(int(os.Stdout.Fd()))
	stderrIsTTY = term.IsTerminal(int(os.Stderr.Fd()))
)

// Stdout returns c if stdout is a TTY, otherwise the empty string.
func Stdout(c string) string {
	if stdoutIsTTY {
		return c
	}
	return ""
}

// Stderr returns c if stderr is a TTY, otherwise the empty string.
func Stderr(c string) string {
	if stderrIsTTY {
		return c
	}
	return ""
}

// outcomeColor and outcomeLabel are the color/label pairs used when
// reporting a candidate's classification. A removed candidate (Passed) is
// the interesting case and gets red; everything that kept the suite
// honest is green, with yellow reserved for the ambiguous Nonbuildable
// case.
var outcomeColor = map[backend.Outcome]string{
	backend.Passed:       Red,
	backend.Failed:       Green,
	backend.TimedOut:     Green,
	backend.Nonbuildable: Yellow,
	backend.Skipped:      Dim,
}

// Outcome renders outcome as a TTY-gated colored label for stdout.
func Outcome(outcome backend.Outcome) string {
	c := outcomeColor[outcome]
	return fmt.Sprintf("%s%s%s", Stdout(c), outcome, Stdout(Reset))
}
