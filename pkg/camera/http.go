package camera

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cuckoodile/attendance-cam/pkg/types"
)

// HTTPSource fetches stills from per-facing snapshot URLs (IP camera still endpoints)
type HTTPSource struct {
	urls       map[types.Facing]string
	httpClient *http.Client
}

// NewHTTPSource validates the snapshot URLs; an empty URL disables that facing
func NewHTTPSource(front, back string) (*HTTPSource, error) {
	for _, u := range []string{front, back} {
		if u == "" {
			continue
		}
		parsedURL, err := url.Parse(u)
		if err != nil {
			return nil, fmt.Errorf("invalid snapshot URL: %w", err)
		}
		if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
		}
	}

	return &HTTPSource{
		urls: map[types.Facing]string{
			types.FacingFront: front,
			types.FacingBack:  back,
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (s *HTTPSource) Snapshot(ctx context.Context, facing types.Facing) (string, error) {
	snapshotURL := s.urls[facing]
	if snapshotURL == "" {
		return "", ErrNoFrame
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, snapshotURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "attendance-cam/1.0")
	req.Header.Set("X-Facing-Mode", facing.ModeHint())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoFrame, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: HTTP %d", ErrNoFrame, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: not an image (Content-Type: %s)", ErrNoFrame, contentType)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read frame: %w", err)
	}
	if len(data) == 0 {
		return "", ErrNoFrame
	}

	return frameDataURI(data), nil
}
