// Package flock implements the whole-project exclusive lock (§5): two
// necessist instances targeting the same project must not collide.
// Acquired before config/backend validation (original_source/core/src/flock.rs
// ordering, carried in SPEC_FULL.md) so a second concurrent instance fails
// fast.
//
// Grounding: no example repo carries a dedicated file-locking library
// (DESIGN.md domain-stack table); golang.org/x/sys/unix is already a
// teacher-indirect dependency, so unix.Flock is used directly.
package flock

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// FileName is the lock file's conventional name at the project root.
const FileName = ".necessist.lock"

// Lock holds an acquired exclusive lock. Release unlocks and closes the
// underlying file descriptor; it is safe to call once per successful
// Acquire.
type Lock struct {
	f *os.File
}

// Acquire takes a non-blocking exclusive lock on <root>/.necessist.lock,
// creating the file if absent. Returns an error immediately if another
// process already holds it (§5 "two instances targeting the same project
// cannot collide").
func Acquire(root string) (*Lock, error) {
	path := filepath.Join(root, FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("project %s is locked by another necessist instance: %w", root, err)
	}
	return &Lock{f: f}, nil
}

// Release unlocks and closes the lock file. Called on every exit path,
// including signal handling (§5), so the next instance can acquire it.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		l.f.Close()
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return l.f.Close()
}
