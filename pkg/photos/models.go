package photos

import "strings"

// MediaItem is a photo or video in the user's library
type MediaItem struct {
	ID            string        `json:"id"`
	Description   string        `json:"description,omitempty"`
	ProductURL    string        `json:"productUrl,omitempty"`
	BaseURL       string        `json:"baseUrl"`
	MimeType      string        `json:"mimeType"`
	Filename      string        `json:"filename"`
	MediaMetadata MediaMetadata `json:"mediaMetadata"`
}

// MediaMetadata carries the item's creation time and kind
type MediaMetadata struct {
	CreationTime string         `json:"creationTime"`
	Width        string         `json:"width,omitempty"`
	Height       string         `json:"height,omitempty"`
	Photo        *PhotoMetadata `json:"photo,omitempty"`
	Video        *VideoMetadata `json:"video,omitempty"`
}

type PhotoMetadata struct {
	CameraMake  string `json:"cameraMake,omitempty"`
	CameraModel string `json:"cameraModel,omitempty"`
}

type VideoMetadata struct {
	FPS    float64 `json:"fps,omitempty"`
	Status string  `json:"status,omitempty"`
}

// IsVideo reports whether the item must be downloaded as a video
func (m MediaItem) IsVideo() bool {
	return m.MediaMetadata.Video != nil || strings.HasPrefix(m.MimeType, "video/")
}

// ListMediaItemsResponse is one page of media items, from either list or search
type ListMediaItemsResponse struct {
	MediaItems    []MediaItem `json:"mediaItems"`
	NextPageToken string      `json:"nextPageToken"`
}

// SearchRequest is the body of a mediaItems:search call
type SearchRequest struct {
	AlbumID   string `json:"albumId"`
	PageSize  int    `json:"pageSize,omitempty"`
	PageToken string `json:"pageToken,omitempty"`
}

// Album is a user album
type Album struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	MediaItemsCount string `json:"mediaItemsCount,omitempty"`
}

// ListAlbumsResponse is one page of albums
type ListAlbumsResponse struct {
	Albums        []Album `json:"albums"`
	NextPageToken string  `json:"nextPageToken"`
}

// apiError is the error envelope returned by Google APIs
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
