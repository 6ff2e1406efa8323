package photos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"photosync/pkg/config"
	errs "photosync/pkg/errors"
	"photosync/pkg/logger"
	"photosync/pkg/ratelimit"
	"photosync/pkg/retry"
)

// maxErrorBody bounds how much of a failed response is read for its message
const maxErrorBody = 4 << 10

// Client talks to the Photos Library API
type Client struct {
	httpClient *http.Client
	tokens     oauth2.TokenSource
	baseURL    string
	pageSize   int
	skipVideos bool
	retry      *retry.Config
	logger     logger.Logger
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL points the client at another API root
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithPageSize sets the listing page size
func WithPageSize(n int) Option {
	return func(c *Client) { c.pageSize = clampPageSize(n, MaxPageSize) }
}

// WithSkipVideos drops videos from listings
func WithSkipVideos(skip bool) Option {
	return func(c *Client) { c.skipVideos = skip }
}

// WithRetry sets the retry policy for API calls
func WithRetry(cfg *retry.Config) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithLogger sets the client logger
func WithLogger(log logger.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.logger = log
		}
	}
}

// WithTokenSource sets the token source Verify refreshes
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// NewClient creates a client over an already authenticated http.Client
func NewClient(httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		httpClient: httpClient,
		baseURL:    DefaultBaseURL,
		pageSize:   MaxPageSize,
		logger:     logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry == nil {
		c.retry = retry.DefaultConfig()
		c.retry.Logger = c.logger
	}
	return c
}

// OAuthConfig returns the OAuth2 client configuration for the Photos Library API
func OAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{ReadOnlyScope},
	}
}

// NewFromConfig builds a rate-limited, OAuth-authenticated client from the
// application settings and a stored refresh token.
func NewFromConfig(ctx context.Context, cfg *config.Config, refreshToken string, log logger.Logger) (*Client, error) {
	if refreshToken == "" {
		return nil, errs.New(errs.ErrorTypeAuth, http.StatusUnauthorized, "no refresh token for account %q", cfg.Photos.Account)
	}
	if cfg.Photos.ClientID == "" || cfg.Photos.ClientSecret == "" {
		return nil, fmt.Errorf("photos.client_id and photos.client_secret must be set")
	}
	if log == nil {
		log = logger.GetLogger()
	}

	oauthCfg := OAuthConfig(cfg.Photos.ClientID, cfg.Photos.ClientSecret)
	tokens := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	limiter := ratelimit.FromConfig(cfg.RateLimit)
	httpClient := &http.Client{
		Timeout: cfg.Download.Timeout,
		Transport: &oauth2.Transport{
			Source: tokens,
			Base:   ratelimit.NewTransport(limiter, nil),
		},
	}

	return NewClient(httpClient,
		WithBaseURL(cfg.Photos.BaseURL),
		WithPageSize(cfg.Photos.PageSize),
		WithSkipVideos(cfg.Download.SkipVideos),
		WithRetry(retry.FromConfig(cfg.Retry, log)),
		WithLogger(log),
		WithTokenSource(tokens),
	), nil
}

// Verify checks that the credentials work: it refreshes the access token
// when a token source is configured and then fetches a single album page.
func (c *Client) Verify(ctx context.Context) error {
	if c.tokens != nil {
		if _, err := c.tokens.Token(); err != nil {
			if authErr := tokenError(err); authErr != nil {
				return authErr
			}
			return errs.New(errs.ErrorTypeAuth, 0, "token refresh failed: %v", err)
		}
	}

	var page ListAlbumsResponse
	if err := c.getJSON(ctx, AlbumsURL(c.baseURL, 1, ""), &page); err != nil {
		return fmt.Errorf("verifying credentials: %w", err)
	}
	c.logger.Debug("credentials verified")
	return nil
}

// doRequest performs one HTTP request and logs it
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      redact(req.URL.String()),
			"error":    err.Error(),
			"duration": duration,
		})
		if authErr := tokenError(err); authErr != nil {
			return nil, authErr
		}
		return nil, errs.New(errs.ErrorTypeNetwork, 0, "network error: %v", err)
	}

	logger.LogRequest(c.logger, req.Method, redact(req.URL.String()), resp.StatusCode, duration)
	return resp, nil
}

// checkResponseStatus turns a non-2xx response into a typed error, consuming
// and closing its body.
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := http.StatusText(resp.StatusCode)

	var env apiError
	if json.Unmarshal(body, &env) == nil && env.Error.Message != "" {
		msg = env.Error.Message
	}
	return errs.FromStatus(resp.StatusCode, msg)
}

// send performs a request with retries and returns a 2xx response.
// newReq is called per attempt so request bodies can be replayed.
func (c *Client) send(ctx context.Context, newReq func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	return retry.DoWithResult(ctx, func(ctx context.Context) (*http.Response, error) {
		req, err := newReq(ctx)
		if err != nil {
			return nil, errs.New(errs.ErrorTypeUnknown, 0, "failed to create request: %v", err)
		}
		resp, err := c.doRequest(req)
		if err != nil {
			return nil, err
		}
		if err := c.checkResponseStatus(resp); err != nil {
			return nil, err
		}
		return resp, nil
	}, c.retry)
}

func (c *Client) decode(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.New(errs.ErrorTypeNetwork, resp.StatusCode, "failed to read response body: %v", err)
	}
	if err := json.Unmarshal(body, target); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return errs.New(errs.ErrorTypeParsing, resp.StatusCode, "failed to parse JSON: %v", err)
	}
	return nil
}

// getJSON performs a GET request and decodes the JSON response
func (c *Client) getJSON(ctx context.Context, url string, target interface{}) error {
	resp, err := c.send(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
	if err != nil {
		return err
	}
	return c.decode(resp, target)
}

// postJSON performs a POST request with a JSON body and decodes the response
func (c *Client) postJSON(ctx context.Context, url string, body, target interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	resp, err := c.send(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return err
	}
	return c.decode(resp, target)
}

// ListMediaItems fetches one page of the whole library
func (c *Client) ListMediaItems(ctx context.Context, pageToken string) (*ListMediaItemsResponse, error) {
	var page ListMediaItemsResponse
	if err := c.getJSON(ctx, MediaItemsURL(c.baseURL, c.pageSize, pageToken), &page); err != nil {
		return nil, fmt.Errorf("listing media items: %w", err)
	}
	return &page, nil
}

// SearchAlbum fetches one page of an album's media items
func (c *Client) SearchAlbum(ctx context.Context, albumID, pageToken string) (*ListMediaItemsResponse, error) {
	req := SearchRequest{AlbumID: albumID, PageSize: c.pageSize, PageToken: pageToken}

	var page ListMediaItemsResponse
	if err := c.postJSON(ctx, SearchURL(c.baseURL), req, &page); err != nil {
		return nil, fmt.Errorf("searching album %s: %w", albumID, err)
	}
	return &page, nil
}

// ListAlbums fetches one page of the user's albums
func (c *Client) ListAlbums(ctx context.Context, pageToken string) (*ListAlbumsResponse, error) {
	var page ListAlbumsResponse
	if err := c.getJSON(ctx, AlbumsURL(c.baseURL, maxAlbumPageSize, pageToken), &page); err != nil {
		return nil, fmt.Errorf("listing albums: %w", err)
	}
	return &page, nil
}

// FindAlbum resolves an album title to its ID. Titles are compared exactly;
// the first match wins.
func (c *Client) FindAlbum(ctx context.Context, title string) (*Album, error) {
	token := ""
	for {
		page, err := c.ListAlbums(ctx, token)
		if err != nil {
			return nil, err
		}
		for i := range page.Albums {
			if page.Albums[i].Title == title {
				return &page.Albums[i], nil
			}
		}
		if page.NextPageToken == "" {
			return nil, errs.New(errs.ErrorTypeNotFound, http.StatusNotFound, "album %q not found", title)
		}
		token = page.NextPageToken
	}
}

// Download starts streaming the original bytes of a media item
func (c *Client) Download(ctx context.Context, item MediaItem) (io.ReadCloser, error) {
	if item.BaseURL == "" {
		return nil, errs.New(errs.ErrorTypeParsing, 0, "media item %s has no base URL", item.ID)
	}
	url := DownloadURL(item.BaseURL, item.IsVideo())

	resp, err := c.send(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", item.ID, err)
	}
	return resp.Body, nil
}

// tokenError maps a rejected token refresh to an auth error
func tokenError(err error) *errs.Error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return nil
	}
	code := 0
	if re.Response != nil {
		code = re.Response.StatusCode
	}
	reason := re.ErrorCode
	if reason == "" {
		reason = strings.TrimSpace(string(re.Body))
	}
	return errs.New(errs.ErrorTypeAuth, code, "token refresh rejected: %s", reason)
}

// redact drops the query string, which can carry page tokens
func redact(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}
