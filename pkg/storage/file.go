package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File keeps all entries in one JSON object on disk. The file is re-read on
// every call so separate processes sharing it see each other's writes, and
// rewritten through a temp file plus rename.
type File struct {
	mu   sync.Mutex
	path string
}

func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("storage file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &File{path: path}, nil
}

// Path returns the backing file location.
func (f *File) Path() string { return f.path }

func (f *File) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.read()
	if err != nil {
		return "", err
	}
	val, ok := data[key]
	if !ok {
		return "", ErrNotFound
	}
	return val, nil
}

func (f *File) Set(ctx context.Context, key, value string) error {
	return f.Apply(ctx, map[string]string{key: value}, nil)
}

func (f *File) Remove(ctx context.Context, key string) error {
	return f.Apply(ctx, nil, []string{key})
}

func (f *File) Apply(_ context.Context, sets map[string]string, removes []string) error {
	for key := range sets {
		if err := validateKey(key); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.read()
	if err != nil {
		return err
	}
	changed := false
	for key, value := range sets {
		data[key] = value
		changed = true
	}
	for _, key := range removes {
		if _, ok := data[key]; ok {
			delete(data, key)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return f.write(data)
}

func (f *File) read() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read storage file: %w", err)
	}
	data := map[string]string{}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode storage file %s: %w", f.path, err)
	}
	return data, nil
}

func (f *File) write(data map[string]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode storage file: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".storage-*.json")
	if err != nil {
		return fmt.Errorf("create temp storage file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp storage file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp storage file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace storage file: %w", err)
	}
	return nil
}
