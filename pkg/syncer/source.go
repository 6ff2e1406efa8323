package syncer

import (
	"context"
	"io"
	"time"
)

// Item is one remote photo or video
type Item interface {
	ID() string
	// Filename is the service-supplied name; it may contain unsafe characters.
	Filename() string
	// CreatedAt is zero when the service supplied no usable creation time.
	CreatedAt() time.Time
	// Open starts streaming the item's content.
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Iterator yields items newest first. Next returns io.EOF when exhausted.
type Iterator interface {
	Next(ctx context.Context) (Item, error)
	Close() error
}

// Source lists the items of an album
type Source interface {
	List(ctx context.Context, album string) (Iterator, error)
}
