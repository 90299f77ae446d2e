package writer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"ibovflow/logger"
)

// LocalObjectStore mirrors the S3 key scheme on the local filesystem, for
// development runs without AWS access.
type LocalObjectStore struct {
	root string
	log  *logger.Log
}

func NewLocalObjectStore(root string) *LocalObjectStore {
	return &LocalObjectStore{root: root, log: logger.GetLogger()}
}

func (s *LocalObjectStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *LocalObjectStore) Put(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create partition directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	s.log.WithComponent("local_store").WithFields(logger.Fields{
		"path":      path,
		"data_size": len(data),
		"metadata":  metadata,
	}).Info("object written")
	return nil
}

func (s *LocalObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", s.path(key), err)
	}
	return data, nil
}
