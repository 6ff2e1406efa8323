package photos

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultBaseURL is the Photos Library API root
	DefaultBaseURL = "https://photoslibrary.googleapis.com/"

	// ReadOnlyScope is the only OAuth scope the client needs
	ReadOnlyScope = "https://www.googleapis.com/auth/photoslibrary.readonly"

	// AllPhotos names the whole library rather than a user album
	AllPhotos = "All Photos"

	// MaxPageSize is the largest page the API accepts for media items
	MaxPageSize = 100

	// maxAlbumPageSize is the largest page the API accepts for albums
	maxAlbumPageSize = 50

	mediaItemsPath = "v1/mediaItems"
	searchPath     = "v1/mediaItems:search"
	albumsPath     = "v1/albums"
)

// clampPageSize keeps size within 1..max, defaulting to max
func clampPageSize(size, max int) int {
	if size <= 0 || size > max {
		return max
	}
	return size
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + path
}

// MediaItemsURL constructs the URL for one page of the whole library
func MediaItemsURL(base string, pageSize int, pageToken string) string {
	params := url.Values{}
	params.Set("pageSize", strconv.Itoa(clampPageSize(pageSize, MaxPageSize)))
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	return joinURL(base, mediaItemsPath) + "?" + params.Encode()
}

// SearchURL is the endpoint for album-scoped media searches
func SearchURL(base string) string {
	return joinURL(base, searchPath)
}

// AlbumsURL constructs the URL for one page of the user's albums
func AlbumsURL(base string, pageSize int, pageToken string) string {
	params := url.Values{}
	params.Set("pageSize", strconv.Itoa(clampPageSize(pageSize, maxAlbumPageSize)))
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	return joinURL(base, albumsPath) + "?" + params.Encode()
}

// DownloadURL returns the original-bytes URL for a media item. Videos need
// the "dv" parameter; "d" on a video yields a still frame.
func DownloadURL(baseURL string, isVideo bool) string {
	if isVideo {
		return baseURL + "=dv"
	}
	return baseURL + "=d"
}
