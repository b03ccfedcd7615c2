// Package fetcher provides rate-limited HTTP access to the statistics
// providers and map-data servers the scoring service reads from.
package fetcher

import (
	"context"
	"io"
)

// Fetcher defines the interface for reading remote data.
type Fetcher interface {
	// Download performs a GET and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// Post sends body with the given content type and returns the response body.
	Post(ctx context.Context, url, contentType string, body []byte) (io.ReadCloser, error)
}
