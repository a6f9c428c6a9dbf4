// Package store implements the durable removal log (§4.F): a single
// sqlite-backed table keyed by span text, with resume/replay and drift
// detection, plus a git-remote URL computed when each removal is recorded
// and stored in the url column (§4.F, §6).
//
// Grounding: the WAL-pragma, schema-on-open `CREATE TABLE IF NOT EXISTS`
// shape, and connection-string style follow
// theRebelliousNerd-codenerd/internal/northstar.Store. No teacher
// (ctxweaver) file underlies this — ctxweaver has no persistence layer at
// all.
package store

import (
	"database/sql"
	"fmt"
	"sort"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mpyw/necessist/internal/gitinfo"
	"github.com/mpyw/necessist/pkg/backend"
)

// DefaultFileName is necessist.db's conventional name at the project root
// (§6 "Persistent store layout").
const DefaultFileName = "necessist.db"

// Removal is one persisted outcome (§3 "Removal record").
type Removal struct {
	Span        string // primary key: span's canonical storage-key text form
	DeletedText string
	Outcome     backend.Outcome
	URL         string
}

// Store is a handle on the sqlite-backed removal log.
type Store struct {
	db   *sql.DB
	root string
}

// Open opens (creating if absent) <root>/necessist.db and ensures the
// `removal` table exists (§6). If reset is true, the table is dropped and
// recreated first (`--reset`).
func Open(root string, reset bool) (*Store, error) {
	path := root + "/" + DefaultFileName
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	s := &Store{db: db, root: root}
	if reset {
		if _, err := db.Exec(`DROP TABLE IF EXISTS removal`); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to reset %s: %w", path, err)
		}
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS removal (
			span         TEXT PRIMARY KEY,
			deleted_text TEXT NOT NULL,
			outcome      TEXT NOT NULL,
			url          TEXT
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create removal table in %s: %w", path, err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Record persists one candidate's outcome, computing the clickable URL at
// write time from the project's current git remote and commit and storing
// it in the url column (§4.F "Additional persisted metadata"). LoadAll
// returns the stored URL as is; it is not regenerated on read.
func (s *Store) Record(spanKey, deletedText string, outcome backend.Outcome, startLine, endLine int) error {
	url, _ := gitinfo.URL(s.root, spanKey, startLine, endLine) // best-effort; empty URL is not an error (§4.F "optional")
	_, err := s.db.Exec(
		`INSERT INTO removal (span, deleted_text, outcome, url) VALUES (?, ?, ?, ?)
		 ON CONFLICT(span) DO UPDATE SET deleted_text=excluded.deleted_text, outcome=excluded.outcome, url=excluded.url`,
		spanKey, deletedText, outcome.String(), url,
	)
	if err != nil {
		return fmt.Errorf("failed to record removal for %s: %w", spanKey, err)
	}
	return nil
}

// LoadAll reads every persisted Removal, ordered by span (ascending), the
// order the resume/replay loop consumes them in (§4.F).
func (s *Store) LoadAll() ([]Removal, error) {
	rows, err := s.db.Query(`SELECT span, deleted_text, outcome, url FROM removal ORDER BY span ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query removal table: %w", err)
	}
	defer rows.Close()

	var out []Removal
	for rows.Next() {
		var r Removal
		var outcome string
		var url sql.NullString
		if err := rows.Scan(&r.Span, &r.DeletedText, &outcome, &url); err != nil {
			return nil, fmt.Errorf("failed to scan removal row: %w", err)
		}
		r.Outcome = parseOutcome(outcome)
		r.URL = url.String
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Span < out[j].Span })
	return out, rows.Err()
}

func parseOutcome(s string) backend.Outcome {
	switch s {
	case "Passed":
		return backend.Passed
	case "Failed":
		return backend.Failed
	case "TimedOut":
		return backend.TimedOut
	case "Nonbuildable":
		return backend.Nonbuildable
	default:
		return backend.Skipped
	}
}
