// Package netx fetches blobs from presigned object storage URLs.
package netx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

const maxRetries = 3

// HTTPClient is the subset of *http.Client used here.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Downloader streams presigned GETs, retrying transport errors and 5xx
// answers with exponential backoff. A retry only happens before any byte
// has been written to the destination.
type Downloader struct {
	client  HTTPClient
	backoff time.Duration
}

func NewDownloader(client HTTPClient) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Downloader{client: client, backoff: 200 * time.Millisecond}
}

// Download copies the object at url into w and returns the byte count.
func (d *Downloader) Download(ctx context.Context, url string, w io.Writer) (int64, error) {
	var written int64

	b := retry.WithMaxRetries(maxRetries, retry.NewExponential(d.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}

		resp, err := d.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			err := fmt.Errorf("download failed: %s; body: %s", resp.Status, string(body))
			if resp.StatusCode >= http.StatusInternalServerError {
				return retry.RetryableError(err)
			}
			return err
		}

		written, err = io.Copy(w, resp.Body)
		return err
	})

	return written, err
}
