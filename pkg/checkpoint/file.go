package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"photosync/pkg/logger"
	"photosync/pkg/timeutil"
)

// FileStore keeps the checkpoint in a plain text file
type FileStore struct {
	path   string
	norm   *timeutil.Normalizer
	logger logger.Logger
}

// NewFileStore creates a store backed by the file at path. The file is not
// touched until the first Write.
func NewFileStore(path string, norm *timeutil.Normalizer, log logger.Logger) *FileStore {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &FileStore{path: path, norm: norm, logger: log}
}

// Path returns the checkpoint file location
func (s *FileStore) Path() string {
	return s.path
}

// Read loads the checkpoint
func (s *FileStore) Read(ctx context.Context) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.DebugWithFields("No checkpoint file, starting from the beginning", map[string]interface{}{
				"path": s.path,
			})
			return s.norm.Min(), nil
		}
		return time.Time{}, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	t, err := decode(s.norm, s.path, data)
	if err != nil {
		return time.Time{}, err
	}

	s.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"path":       s.path,
		"checkpoint": s.norm.Format(t),
	})
	return t, nil
}

// Write replaces the checkpoint file atomically
func (s *FileStore) Write(ctx context.Context, t time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	file, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}
	tempPath := file.Name()

	if _, err := file.WriteString(s.norm.Format(t)); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	// Ensure data is written to disk
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}
	syncDir(dir)

	s.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"path":       s.path,
		"checkpoint": s.norm.Format(t),
	})
	return nil
}

// Delete removes the checkpoint file
func (s *FileStore) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	s.logger.InfoWithFields("Checkpoint deleted", map[string]interface{}{"path": s.path})
	return nil
}

// Close is a no-op; the file is only open during Read and Write
func (s *FileStore) Close() error {
	return nil
}

// syncDir flushes directory metadata so the rename survives a crash. Not all
// platforms support it, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
