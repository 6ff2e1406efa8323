package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"photosync/pkg/logger"
	"photosync/pkg/timeutil"
)

var bucketName = []byte("checkpoints")

// BoltStore keeps one checkpoint per album in a bbolt database. The database
// file lock rejects a second process for the same path.
type BoltStore struct {
	db     *bbolt.DB
	key    []byte
	norm   *timeutil.Normalizer
	logger logger.Logger
}

// OpenBoltStore opens (creating if needed) the database at path and scopes
// the store to album.
func OpenBoltStore(path, album string, norm *timeutil.Normalizer, log logger.Logger) (*BoltStore, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if album == "" {
		return nil, fmt.Errorf("album is required for the bolt checkpoint store")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create checkpoint bucket: %w", err)
	}

	return &BoltStore{db: db, key: []byte(album), norm: norm, logger: log}, nil
}

func (s *BoltStore) source() string {
	return fmt.Sprintf("%s[%s]", s.db.Path(), s.key)
}

// Read loads the album's checkpoint
func (s *BoltStore) Read(ctx context.Context) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}

	var raw []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketName).Get(s.key); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	t, err := decode(s.norm, s.source(), raw)
	if err != nil {
		return time.Time{}, err
	}

	s.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"album":      string(s.key),
		"checkpoint": s.norm.Format(t),
	})
	return t, nil
}

// Write replaces the album's checkpoint in a single transaction
func (s *BoltStore) Write(ctx context.Context, t time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value := []byte(s.norm.Format(t))
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put(s.key, value)
	})
	if err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	s.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"album":      string(s.key),
		"checkpoint": string(value),
	})
	return nil
}

// Delete removes the album's checkpoint
func (s *BoltStore) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete(s.key)
	})
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	s.logger.InfoWithFields("Checkpoint deleted", map[string]interface{}{"album": string(s.key)})
	return nil
}

// Albums lists every album that has a stored checkpoint
func (s *BoltStore) Albums() ([]string, error) {
	var albums []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(k, _ []byte) error {
			albums = append(albums, string(k))
			return nil
		})
	})
	return albums, err
}

// Close releases the database and its file lock
func (s *BoltStore) Close() error {
	return s.db.Close()
}
