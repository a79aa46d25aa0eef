package attendance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/cuckoodile/attendance-cam/pkg/types"
)

const (
	attendancePath = "/api/attendance/"
	uploadField    = "img"
	uploadFilename = "capture.jpg"
	uploadMIME     = "image/jpeg"

	defaultTimeout = 30 * time.Second
)

// Client talks to the remote attendance service. Neither path retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *QueryCache
	timeout    time.Duration
}

// NewClient creates a client with its own query cache
func NewClient(serverURL string) (*Client, error) {
	return NewClientWithCache(serverURL, NewQueryCache())
}

// NewClientWithCache creates a client sharing an existing query cache
func NewClientWithCache(serverURL string, cache *QueryCache) (*Client, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("attendance service URL is required")
	}
	if !strings.HasPrefix(serverURL, "http://") && !strings.HasPrefix(serverURL, "https://") {
		return nil, fmt.Errorf("unsupported attendance service URL: %s", serverURL)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(serverURL, "/"),
		httpClient: &http.Client{},
		cache:      cache,
		timeout:    defaultTimeout,
	}, nil
}

// SetTimeout sets the deadline applied when a request context has none
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

// FetchAttendance returns the attendance list, from cache when it is fresh
func (c *Client) FetchAttendance(ctx context.Context) ([]types.AttendanceRecord, error) {
	return c.cache.Load(ListKey, func() ([]types.AttendanceRecord, error) {
		return c.fetch(ctx)
	})
}

// Cached returns the cached attendance list without any I/O
func (c *Client) Cached() ([]types.AttendanceRecord, bool) {
	return c.cache.Get(ListKey)
}

// Invalidate marks the attendance list stale
func (c *Client) Invalidate() {
	c.cache.Invalidate(ListKey)
}

// Refresh invalidates the list and fetches it again
func (c *Client) Refresh(ctx context.Context) ([]types.AttendanceRecord, error) {
	c.Invalidate()
	return c.FetchAttendance(ctx)
}

func (c *Client) fetch(ctx context.Context) ([]types.AttendanceRecord, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+attendancePath, nil)
	if err != nil {
		return nil, &FetchError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{StatusCode: resp.StatusCode}
	}

	var records []types.AttendanceRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, &FetchError{Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if records == nil {
		records = []types.AttendanceRecord{}
	}
	return records, nil
}

// SubmitCapture uploads a JPEG payload as multipart field "img". On success the
// attendance list is invalidated; on failure the cache is left untouched.
func (c *Client) SubmitCapture(ctx context.Context, payload []byte) (*types.AttendanceRecord, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	body, contentType, err := multipartBody(payload)
	if err != nil {
		return nil, &UploadError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+attendancePath, body)
	if err != nil {
		return nil, &UploadError{Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UploadError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &UploadError{StatusCode: resp.StatusCode}
	}

	var record types.AttendanceRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, &UploadError{Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	c.Invalidate()
	return &record, nil
}

func multipartBody(payload []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, uploadField, uploadFilename))
	h.Set("Content-Type", uploadMIME)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(payload); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}
