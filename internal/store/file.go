package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

type fileRecord struct {
	Key       string `json:"key"`
	SessionID string `json:"session_id"`
}

// FileBackend persists the identity as a small JSON document on disk.
type FileBackend struct {
	path string
	key  string
}

func NewFileBackend(path, key string) *FileBackend {
	return &FileBackend{path: path, key: key}
}

func (f *FileBackend) Load(context.Context) (string, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	var rec fileRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return "", fmt.Errorf("decode %s: %w", f.path, err)
	}
	if rec.Key != "" && f.key != "" && rec.Key != f.key {
		return "", nil
	}
	return rec.SessionID, nil
}

func (f *FileBackend) Save(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("invalid session id")
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(fileRecord{Key: f.key, SessionID: sessionID}, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
