package control

import (
	"fmt"
	"os"
	"time"
)

// Backup is a scoped, byte-identical copy of one source file (§4.G step
// 3.i). Restore writes the original bytes back and loops until the
// file's mtime strictly advances, so build systems that key off mtime
// (common on filesystems with coarse timestamp resolution, notably HFS+)
// observe the restoration as a real change.
//
// Grounding: original_source/core/src/backup.rs (Backup / Drop impl).
type Backup struct {
	path     string
	original []byte
	mode     os.FileMode
}

// NewBackup reads path's current contents and mode for later restoration.
func NewBackup(path string) (*Backup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to back up %s: %w", path, err)
	}
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode()
	}
	return &Backup{path: path, original: data, mode: mode}, nil
}

// Restore writes the original bytes back to path. Called on every exit
// path of a candidate's evaluation, including panic (via defer) and
// signal-driven cancellation (§4.G, §3 "Backups ... are restored on all
// exit paths").
func (b *Backup) Restore() error {
	before, _ := mtime(b.path)
	for {
		if err := os.WriteFile(b.path, b.original, b.mode); err != nil {
			return fmt.Errorf("failed to restore %s: %w", b.path, err)
		}
		after, err := mtime(b.path)
		if err != nil || after.After(before) {
			return nil
		}
	}
}

func mtime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
