package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"photosync/pkg/config"
	"photosync/pkg/logger"
	"photosync/pkg/storage"
	"photosync/pkg/timeutil"
)

// LibraryAlbum is the album name that means the whole library
const LibraryAlbum = "All Photos"

// ErrCorrupt is returned by Read when a stored checkpoint cannot be parsed
var ErrCorrupt = errors.New("checkpoint is corrupt")

// CorruptError carries the unparsable value and where it was found
type CorruptError struct {
	Source string
	Raw    string
	Err    error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("%s: %s contains %q: %v", ErrCorrupt, e.Source, e.Raw, e.Err)
}

func (e *CorruptError) Unwrap() []error {
	return []error{ErrCorrupt, e.Err}
}

// Store is the durable home of a single checkpoint
type Store interface {
	// Read returns the stored checkpoint, or the minimum timestamp if none is stored.
	Read(ctx context.Context) (time.Time, error)
	// Write replaces the stored checkpoint.
	Write(ctx context.Context, t time.Time) error
	Close() error
}

// Deleter is implemented by stores that can forget their checkpoint
type Deleter interface {
	Delete(ctx context.Context) error
}

// Open returns the store selected by cfg.Backend. The album keys the bolt
// backend and picks the file for the file backend (see FilePath).
func Open(cfg config.CheckpointConfig, album string, norm *timeutil.Normalizer, log logger.Logger) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "file":
		return NewFileStore(FilePath(cfg.Path, album), norm, log), nil
	case "bolt":
		return OpenBoltStore(cfg.Path, album, norm, log)
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Backend)
	}
}

// FilePath returns the checkpoint file for album. The whole library uses path
// itself; any other album gets its own file beside it, so
// "last_download_time.txt" becomes "last_download_time-Holidays.txt".
func FilePath(path, album string) string {
	if album == "" || album == LibraryAlbum {
		return path
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-" + storage.SanitizeFilename(album) + ext
}

// Reset removes the stored checkpoint so the next run starts from the minimum
func Reset(ctx context.Context, s Store) error {
	d, ok := s.(Deleter)
	if !ok {
		return fmt.Errorf("checkpoint store %T does not support reset", s)
	}
	return d.Delete(ctx)
}

// decode applies the shared Read semantics to a raw stored value
func decode(norm *timeutil.Normalizer, source string, raw []byte) (time.Time, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return norm.Min(), nil
	}
	t, err := norm.Parse(text)
	if err != nil {
		return time.Time{}, &CorruptError{Source: source, Raw: text, Err: err}
	}
	return t, nil
}
