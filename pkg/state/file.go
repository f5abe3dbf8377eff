package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// FileStore is a JSON-file backed state store. Saves go through a
// temporary file followed by a rename, so a crash mid-write leaves the
// previous valid document in place.
type FileStore struct {
	path string
}

// NewFileStore creates a file store at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (f *FileStore) Path() string { return f.path }

// Load reads the state file. A missing file yields an empty state; a file
// whose top level is not the expected document shape yields an empty
// countries map rather than an error, so a damaged entry set never blocks
// a fresh run.
func (f *FileStore) Load(_ context.Context) (*State, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var loaded State
	if err := json.Unmarshal(data, &loaded); err != nil {
		return NewState(), nil
	}
	if loaded.Countries == nil {
		loaded.Countries = make(map[string]CursorState)
	}
	return &loaded, nil
}

// Save writes the state atomically (tmp file + rename).
func (f *FileStore) Save(_ context.Context, s *State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Reset removes the state file.
func (f *FileStore) Reset(_ context.Context) error {
	err := os.Remove(f.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove state file: %w", err)
	}
	return nil
}
