package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File keeps every key in a single JSON document on disk and rewrites it after each change.
type File struct {
	Path    string
	entries map[string]json.RawMessage
	mu      sync.RWMutex
	keys    keyedMutex
}

// OpenFile loads the document at path, starting empty if it does not exist yet.
func OpenFile(path string) (*File, error) {
	f := &File{
		Path:    path,
		entries: make(map[string]json.RawMessage),
	}
	if _, err := os.Stat(path); err == nil {
		if err := f.load(); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *File) load() error {
	fh, err := os.Open(f.Path)
	if err != nil {
		return err
	}
	defer fh.Close()
	if err := json.NewDecoder(fh).Decode(&f.entries); err != nil {
		return fmt.Errorf("failed to decode store file %s: %w", f.Path, err)
	}
	if f.entries == nil {
		f.entries = make(map[string]json.RawMessage)
	}
	return nil
}

// save must be called with f.mu held.
func (f *File) save() error {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	tmp := f.Path + ".tmp"
	fh, err := os.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(fh)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(f.entries); err != nil {
		fh.Close()
		return err
	}
	if err := fh.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, f.Path)
}

func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (f *File) Set(_ context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("store: value for %s is not valid JSON", key)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.entries[key]
	f.entries[key] = append(json.RawMessage(nil), value...)
	if err := f.save(); err != nil {
		if had {
			f.entries[key] = prev
		} else {
			delete(f.entries, key)
		}
		return err
	}
	return nil
}

func (f *File) Update(ctx context.Context, key string, fn func([]byte) ([]byte, error)) error {
	unlock := f.keys.Lock(key)
	defer unlock()

	current, err := f.Get(ctx, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	next, err := fn(current)
	if errors.Is(err, ErrNoChange) {
		return nil
	}
	if err != nil {
		return err
	}
	return f.Set(ctx, key, next)
}

func (f *File) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.entries[key]; !exists {
		return nil
	}
	delete(f.entries, key)
	return f.save()
}

func (f *File) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = make(map[string]json.RawMessage)
	return f.save()
}

func (f *File) Close() error { return nil }
