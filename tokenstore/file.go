package tokenstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-booking-session/principal"
)

var _ Store = (*File)(nil)

// File persists the tokens of one scope as a JSON document keyed by storage key.
// The file is re-read on every Load so separate processes sharing it observe each
// other's writes.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile creates a file-backed store at dir/<scope>.json.
func NewFile(dir, scope string) (*File, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("token store directory is required")
	}
	if scope == "" || strings.ContainsAny(scope, `/\`) || scope == "." || scope == ".." {
		return nil, ErrInvalidScope
	}
	return &File{path: filepath.Join(dir, scope+".json")}, nil
}

// FileProvider returns file stores rooted at dir.
func FileProvider(dir string) Provider {
	return func(scope string) (Store, error) {
		return NewFile(dir, scope)
	}
}

func (f *File) Save(_ context.Context, kind principal.Kind, token string, ttl time.Duration) error {
	if !kind.Valid() {
		return ErrInvalidKind
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.readLocked()
	if err != nil {
		return err
	}
	entries[kind.StorageKey()] = newEntry(token, ttl, NowTimeFunc())
	return f.writeLocked(entries)
}

func (f *File) Load(_ context.Context, kind principal.Kind) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.readLocked()
	if err != nil {
		return "", err
	}
	e, ok := entries[kind.StorageKey()]
	if !ok {
		return "", ErrNotFound
	}
	if e.expired(NowTimeFunc()) {
		delete(entries, kind.StorageKey())
		if err := f.writeLocked(entries); err != nil {
			return "", err
		}
		return "", ErrNotFound
	}
	return e.Token, nil
}

func (f *File) Remove(_ context.Context, kind principal.Kind) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.readLocked()
	if err != nil {
		return err
	}
	if _, ok := entries[kind.StorageKey()]; !ok {
		return nil
	}
	delete(entries, kind.StorageKey())
	return f.writeLocked(entries)
}

func (f *File) readLocked() (map[string]entry, error) {
	entries := make(map[string]entry)
	b, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return entries, nil
		}
		return nil, fmt.Errorf("read token store file: %w", err)
	}
	if len(b) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("decode token store file: %w", err)
	}
	return entries, nil
}

func (f *File) writeLocked(entries map[string]entry) error {
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token store file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("mkdir token store dir: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write token store file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace token store file: %w", err)
	}
	return nil
}
