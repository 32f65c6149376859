package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore writes media below a directory served at publicURL.
type LocalStore struct {
	validator *PathValidator
	publicURL string
}

func NewLocalStore(root string, publicURL string) (*LocalStore, error) {
	validator, err := NewPathValidator(root)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(validator.RootAbs(), 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}

	return &LocalStore{validator: validator, publicURL: publicURL}, nil
}

func (s *LocalStore) RootAbs() string {
	return s.validator.RootAbs()
}

func (s *LocalStore) Put(ctx context.Context, key string, _ string, body []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	resolved, err := s.validator.ResolveKey(key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return "", fmt.Errorf("create parent directory: %w", err)
	}

	// Write to a temp file first so readers never observe a partial object.
	tmp, err := os.CreateTemp(filepath.Dir(resolved), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp object: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write object %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("close object %q: %w", key, err)
	}
	if err := os.Rename(tmpPath, resolved); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("commit object %q: %w", key, err)
	}

	return joinURL(s.publicURL, key), nil
}
