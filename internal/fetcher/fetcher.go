// Package fetcher downloads remote datasets and streams CSV rows.
package fetcher

import (
	"context"
	"io"
)

// Fetcher downloads remote data.
type Fetcher interface {
	// Download returns the body of url. The caller closes it.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile writes the body of url to path and returns the bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)

	// DownloadIfChanged sends etag as If-None-Match. When the server answers
	// 304 the body is nil and changed is false.
	DownloadIfChanged(ctx context.Context, url string, etag string) (body io.ReadCloser, newETag string, changed bool, err error)
}
