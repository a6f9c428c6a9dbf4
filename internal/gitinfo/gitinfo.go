// Package gitinfo builds the clickable source URL persisted alongside a
// removal record (§4.F "Additional persisted metadata"), by shelling out
// to the git binary rather than a Git-plumbing library — the need is two
// one-shot reads, not a Git client (see DESIGN.md domain-stack table).
package gitinfo

import (
	"fmt"
	"os/exec"
	"strings"
)

// URL returns a browsable source URL for spanKey (a "path:startL:startC-
// endL:endC" storage-key string, §4.F) at root's current git remote and
// commit, or an error if root is not a git repository or has no "origin"
// remote.
func URL(root, spanKey string, startLine, endLine int) (string, error) {
	remote, err := run(root, "remote", "get-url", "origin")
	if err != nil {
		return "", fmt.Errorf("no git remote: %w", err)
	}
	commit, err := run(root, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("no git commit: %w", err)
	}
	path := spanPath(spanKey)
	base := webBaseURL(remote)
	if base == "" {
		return "", fmt.Errorf("unrecognized remote URL form: %q", remote)
	}
	if startLine == endLine {
		return fmt.Sprintf("%s/blob/%s/%s#L%d", base, commit, path, startLine), nil
	}
	return fmt.Sprintf("%s/blob/%s/%s#L%d-L%d", base, commit, path, startLine, endLine), nil
}

func run(root string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// spanPath extracts the file path component of a span storage-key string
// ("path:startL:startC-endL:endC", §4.F) without needing the full
// pkg/span.Parse round trip (gitinfo has no SourceFile to resolve
// positions against, and the caller already has the line numbers).
func spanPath(key string) string {
	rest := key
	for i := 0; i < 3; i++ {
		j := strings.LastIndex(rest, ":")
		if j < 0 {
			return key
		}
		rest = rest[:j]
	}
	return rest
}

// webBaseURL normalizes a git remote URL (https or ssh form) into a
// browsable web base URL, supporting github.com/gitlab.com shapes.
func webBaseURL(remote string) string {
	remote = strings.TrimSuffix(remote, ".git")
	switch {
	case strings.HasPrefix(remote, "git@"):
		rest := strings.TrimPrefix(remote, "git@")
		rest = strings.Replace(rest, ":", "/", 1)
		return "https://" + rest
	case strings.HasPrefix(remote, "https://"), strings.HasPrefix(remote, "http://"):
		return remote
	default:
		return ""
	}
}
