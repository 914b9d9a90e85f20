package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Document is the persisted suppression state.
type Document struct {
	// SessionStarts maps a notification id to its last delivered SessionStart.
	SessionStarts map[string]time.Time `json:"session_starts"`
}

func newDocument() *Document {
	return &Document{SessionStarts: make(map[string]time.Time)}
}

// LastStart returns the last recorded SessionStart for id.
func (d *Document) LastStart(id string) (time.Time, bool) {
	t, ok := d.SessionStarts[id]
	return t, ok
}

// Prune drops entries recorded before cutoff and returns how many were dropped.
func (d *Document) Prune(cutoff time.Time) int {
	n := 0
	for id, t := range d.SessionStarts {
		if t.Before(cutoff) {
			delete(d.SessionStarts, id)
			n++
		}
	}
	return n
}

// StateFile guards the suppression document shared by every dispatcher
// process. Each read or read-modify-write cycle runs under the file lock,
// and writes replace the document atomically.
type StateFile struct {
	path     string
	lockPath string
}

// NewStateFile returns a StateFile for the document at path. The lock file
// lives at path + ".lock".
func NewStateFile(path string) *StateFile {
	return &StateFile{path: path, lockPath: path + ".lock"}
}

// Path returns the document location.
func (s *StateFile) Path() string {
	return s.path
}

// Read returns the current document under a shared lock. A missing or
// unreadable document reads as empty.
func (s *StateFile) Read() (*Document, error) {
	if err := s.ensureDir(); err != nil {
		return nil, err
	}

	fl := NewFileLock(s.lockPath)
	if err := fl.RLock(); err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	defer func() { _ = fl.Unlock() }()

	return s.load()
}

// Update runs fn on the current document under an exclusive lock and
// persists the result. The document is not written when fn returns an error.
func (s *StateFile) Update(fn func(*Document) error) error {
	if err := s.ensureDir(); err != nil {
		return err
	}

	fl := NewFileLock(s.lockPath)
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer func() { _ = fl.Unlock() }()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.store(doc)
}

func (s *StateFile) ensureDir() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	return nil
}

// load must be called with the lock held.
func (s *StateFile) load() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return newDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	doc := newDocument()
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		slog.Warn("suppression state unreadable, starting empty", "path", s.path, "error", err)
		return newDocument(), nil
	}
	if doc.SessionStarts == nil {
		doc.SessionStarts = make(map[string]time.Time)
	}
	return doc, nil
}

// store must be called with the exclusive lock held.
func (s *StateFile) store(doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
