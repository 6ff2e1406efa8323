package photos

import (
	"context"
	"io"
	"time"

	"photosync/pkg/syncer"
	"photosync/pkg/timeutil"
)

// pageFunc fetches the page that follows token
type pageFunc func(ctx context.Context, token string) (*ListMediaItemsResponse, error)

// List implements syncer.Source. The library is listed in the service's
// native order, which is newest first.
func (c *Client) List(ctx context.Context, album string) (syncer.Iterator, error) {
	if album == "" || album == AllPhotos {
		c.logger.DebugWithFields("listing library", map[string]interface{}{"album": AllPhotos})
		return &iterator{client: c, fetch: c.ListMediaItems}, nil
	}

	a, err := c.FindAlbum(ctx, album)
	if err != nil {
		return nil, err
	}
	c.logger.DebugWithFields("listing album", map[string]interface{}{
		"album":    a.Title,
		"album_id": a.ID,
		"items":    a.MediaItemsCount,
	})

	return &iterator{
		client: c,
		fetch: func(ctx context.Context, token string) (*ListMediaItemsResponse, error) {
			return c.SearchAlbum(ctx, a.ID, token)
		},
	}, nil
}

// iterator pulls pages lazily; a page is fetched only once the previous one
// has been consumed.
type iterator struct {
	client *Client
	fetch  pageFunc
	buf    []MediaItem
	token  string
	done   bool
	pages  int
}

func (it *iterator) Next(ctx context.Context) (syncer.Item, error) {
	for {
		for len(it.buf) > 0 {
			m := it.buf[0]
			it.buf = it.buf[1:]
			if it.client.skipVideos && m.IsVideo() {
				it.client.logger.DebugWithFields("skipping video", map[string]interface{}{"item_id": m.ID})
				continue
			}
			return newItem(it.client, m), nil
		}
		if it.done {
			return nil, io.EOF
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := it.fetch(ctx, it.token)
		if err != nil {
			return nil, err
		}
		it.pages++
		it.buf = page.MediaItems
		it.token = page.NextPageToken
		it.done = page.NextPageToken == ""
	}
}

func (it *iterator) Close() error {
	it.buf = nil
	it.done = true
	return nil
}

// Item is a listed media item bound to the client that can download it
type Item struct {
	client  *Client
	media   MediaItem
	created time.Time
}

func newItem(c *Client, m MediaItem) *Item {
	return &Item{
		client:  c,
		media:   m,
		created: timeutil.ParseServiceTime(m.MediaMetadata.CreationTime),
	}
}

func (i *Item) ID() string { return i.media.ID }

// Filename falls back to the item ID when the service omits a name
func (i *Item) Filename() string {
	if i.media.Filename == "" {
		return i.media.ID
	}
	return i.media.Filename
}

func (i *Item) CreatedAt() time.Time { return i.created }

// Media returns the raw service record
func (i *Item) Media() MediaItem { return i.media }

func (i *Item) Open(ctx context.Context) (io.ReadCloser, error) {
	return i.client.Download(ctx, i.media)
}

var (
	_ syncer.Source = (*Client)(nil)
	_ syncer.Item   = (*Item)(nil)
)
