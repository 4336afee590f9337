package seen

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// FileStore keeps the seen-set as a JSON array in a single file. It is the
// default backend for single-instance deployments.
type FileStore struct {
	path   string
	logger *zap.Logger
}

func NewFileStore(dir, key string, logger *zap.Logger) *FileStore {
	if key == "" {
		key = DefaultKey
	}
	return &FileStore{
		path:   filepath.Join(dir, key+".json"),
		logger: logger,
	}
}

func (s *FileStore) Load(_ context.Context) ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("seen-set file unreadable, starting empty",
				zap.String("path", s.path),
				zap.Error(err),
			)
		}
		return nil, nil
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		// Corrupted value fails open into an empty set so the tracker
		// re-enters baselining instead of crashing.
		s.logger.Warn("seen-set file corrupted, starting empty",
			zap.String("path", s.path),
			zap.Error(err),
		)
		return nil, nil
	}
	return ids, nil
}

func (s *FileStore) Save(_ context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}

	// Write-then-rename so a crash mid-write never leaves a half file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) Reset(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
