// Package errs defines the warning taxonomy of §7 as sentinel-comparable
// typed warnings, the way original_source/core/src/warn.rs defines a
// Warning enum. Warnings are non-fatal by default; --allow/--deny let the
// user suppress or escalate them by ID (§7, last paragraph).
package errs

import "fmt"

// ID names one warning kind. IDs are stable strings so they can be passed
// on the command line via --allow/--deny.
type ID string

const (
	ParsingFailed    ID = "ParsingFailed"
	ModulePathUnknown ID = "ModulePathUnknown"
	DryRunFailed     ID = "DryRunFailed"
	FilesChanged     ID = "FilesChanged"
	UnsupportedFeature ID = "UnsupportedFeature"
)

// All lists every known warning ID, used to expand "--allow all" / "--deny all".
var All = []ID{ParsingFailed, ModulePathUnknown, DryRunFailed, FilesChanged, UnsupportedFeature}

// Warning is a single non-fatal diagnostic, identified by ID, describing
// where it occurred and why.
type Warning struct {
	ID      ID
	Subject string // file path, test name, or feature name the warning concerns
	Detail  string
}

func (w Warning) Error() string {
	if w.Subject == "" {
		return fmt.Sprintf("%s: %s", w.ID, w.Detail)
	}
	return fmt.Sprintf("%s: %s: %s", w.ID, w.Subject, w.Detail)
}

// Escalated wraps a Warning that --deny turned into a fatal error (§7).
type Escalated struct {
	Warning Warning
}

func (e *Escalated) Error() string {
	return fmt.Sprintf("%s (escalated to error via --deny)", e.Warning.Error())
}

func (e *Escalated) Unwrap() error { return e.Warning }

// Policy decides, per warning ID, whether to suppress, escalate, or pass a
// warning through unchanged (§7 final paragraph).
type Policy struct {
	allow map[ID]bool
	deny  map[ID]bool
}

// NewPolicy builds a Policy from --allow/--deny ID lists. "all" in either
// list expands to every known ID. Config validation (not this constructor)
// is responsible for rejecting a mix of --allow and --deny naming the same
// ID (§7.1 "incompatible flags").
func NewPolicy(allow, deny []string) *Policy {
	p := &Policy{allow: map[ID]bool{}, deny: map[ID]bool{}}
	for _, s := range allow {
		for _, id := range expand(s) {
			p.allow[id] = true
		}
	}
	for _, s := range deny {
		for _, id := range expand(s) {
			p.deny[id] = true
		}
	}
	return p
}

func expand(s string) []ID {
	if s == "all" {
		return All
	}
	return []ID{ID(s)}
}

// Conflicts reports IDs present in both the allow and deny lists, which is
// a configuration error (§7.1).
func (p *Policy) Conflicts() []ID {
	var ids []ID
	for id := range p.allow {
		if p.deny[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

// Apply decides what to do with w: (nil, nil) means suppressed, (w, nil)
// means pass through, (w, err) means escalated to a fatal error.
func (p *Policy) Apply(w Warning) (*Warning, error) {
	if p != nil && p.allow[w.ID] {
		return nil, nil
	}
	if p != nil && p.deny[w.ID] {
		return &w, &Escalated{Warning: w}
	}
	return &w, nil
}
