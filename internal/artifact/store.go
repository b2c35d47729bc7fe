// Package artifact persists generated image bytes and returns the public
// reference written into the item's result.
package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

// Store is the storage collaborator used on a successful generation,
// before the item settles.
type Store interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
}

// HTTPStore PUTs artifacts to a storage service (CDN origin) keyed by a
// fresh UUID and returns the resulting public URL.
type HTTPStore struct {
	baseURL string
	http    *http.Client
}

func NewHTTPStore(baseURL string) *HTTPStore {
	return &HTTPStore{baseURL: baseURL, http: &http.Client{}}
}

func (s *HTTPStore) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	url := fmt.Sprintf("%s/%s%s", s.baseURL, uuid.NewString(), extensionFor(contentType))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading artifact: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("uploading artifact: unexpected status %d", resp.StatusCode)
	}
	return url, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
