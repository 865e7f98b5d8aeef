package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalProvider stores blobs under a base directory. Keys may contain
// slashes; path traversal outside the base directory is rejected.
type LocalProvider struct {
	basePath string
}

func NewLocalProvider(basePath string) (*LocalProvider, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage base path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalProvider{basePath: abs}, nil
}

func (p *LocalProvider) resolve(key string) (string, error) {
	full := filepath.Join(p.basePath, filepath.Clean("/"+key))
	if !strings.HasPrefix(full, p.basePath+string(os.PathSeparator)) && full != p.basePath {
		return "", fmt.Errorf("invalid storage key: %s", key)
	}
	return full, nil
}

func (p *LocalProvider) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	full, err := p.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("failed to create storage subdirectory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o640); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	return key, nil
}

func (p *LocalProvider) Get(ctx context.Context, ref string) ([]byte, error) {
	full, err := p.resolve(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

func (p *LocalProvider) Delete(ctx context.Context, ref string) error {
	full, err := p.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}
