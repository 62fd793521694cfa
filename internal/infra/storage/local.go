package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore writes artifacts under a directory on local disk. Dipakai CLI
// one-shot run yang gak punya object storage.
type LocalStore struct {
	Dir string
}

func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{Dir: dir}
}

func (s *LocalStore) Upload(ctx context.Context, filePath, key string) (string, error) {
	dst := filepath.Join(s.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	in, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return "", fmt.Errorf("copy artifact: %w", err)
	}
	return dst, nil
}

func (s *LocalStore) UploadAndCleanup(ctx context.Context, filePath, key string) (string, error) {
	dst, err := s.Upload(ctx, filePath, key)
	if err != nil {
		return "", err
	}
	_ = os.Remove(filePath)
	return dst, nil
}
