// Package fetch downloads remote images for document rendering.
package fetch

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

const defaultMaxSize = 10 << 20

type Fetcher struct {
	http    *http.Client
	maxSize int64
}

func New(httpClient *http.Client, maxSize int64) *Fetcher {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	return &Fetcher{http: httpClient, maxSize: maxSize}
}

// Fetch returns the body of url. Non-2xx responses, HTML pages (a sign of a
// sign-in or viewer redirect) and bodies over the size limit are errors.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("get %s: status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "text/html") {
		return nil, errors.Errorf("get %s: unexpected content type %s", url, ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", url)
	}
	if int64(len(data)) > f.maxSize {
		return nil, errors.Errorf("get %s: body exceeds %d bytes", url, f.maxSize)
	}
	if len(data) == 0 {
		return nil, errors.Errorf("get %s: empty body", url)
	}
	return data, nil
}
