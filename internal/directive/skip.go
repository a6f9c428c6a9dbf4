// Package directive recognizes necessist's own comment-based candidate
// override: a "necessist:skip" comment attached to a statement marks that
// statement (and everything nested under it) as never a candidate,
// regardless of what ignored_functions/ignored_methods/ignored_tests say.
//
// Grounding: ctxweaver's internal/directive/skip.go recognized its own
// "ctxweaver:skip" comment via dave/dst decorations. necessist never
// needs dst's print-preserving AST (it only deletes byte ranges, never
// re-inserts code), so the same idea is rebuilt on go/ast's CommentMap
// instead of carrying the dst dependency just for this one directive.
package directive

import (
	"go/ast"
	"strings"
)

const skipDirective = "necessist:skip"

// isSkipComment reports whether text (a single "//..." comment's Text) is
// a skip directive. Supports both "//necessist:skip" and "// necessist:skip".
func isSkipComment(text string) bool {
	text = strings.TrimPrefix(text, "//")
	text = strings.TrimSpace(text)
	return strings.HasPrefix(text, skipDirective)
}

// HasSkipDirective reports whether any comment in group is a skip
// directive.
func HasSkipDirective(group *ast.CommentGroup) bool {
	if group == nil {
		return false
	}
	for _, c := range group.List {
		if isSkipComment(c.Text) {
			return true
		}
	}
	return false
}

// HasStmtSkipDirective reports whether stmt carries a skip directive,
// checking every comment group cmap associates with it (both a leading
// comment on its own line and a trailing same-line comment).
func HasStmtSkipDirective(cmap ast.CommentMap, stmt ast.Stmt) bool {
	for _, group := range cmap[stmt] {
		if HasSkipDirective(group) {
			return true
		}
	}
	return false
}
