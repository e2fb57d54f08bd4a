package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/365businessdev/alget/internal/domain"
	"github.com/365businessdev/alget/internal/version"
	"github.com/schollz/progressbar/v3"
)

// HTTPFetcher performs authenticated GETs against package feeds.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	progress  io.Writer
}

func New(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: "alget/" + version.Version,
	}
}

// WithProgress renders a download bar for package downloads on w.
func (f *HTTPFetcher) WithProgress(w io.Writer) *HTTPFetcher {
	f.progress = w
	return f
}

// StatusError is returned for any non-200 response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

func (f *HTTPFetcher) do(ctx context.Context, url string, src domain.PackageSource) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	if src.AuthHeader != "" {
		req.Header.Set("Authorization", src.AuthHeader)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrFeedUnavailable, src.Name, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// Get returns the full response body.
func (f *HTTPFetcher) Get(ctx context.Context, url string, src domain.PackageSource) ([]byte, error) {
	resp, err := f.do(ctx, url, src)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// Download is Get with a progress bar labelled with name.
func (f *HTTPFetcher) Download(ctx context.Context, url string, src domain.PackageSource, name string) ([]byte, error) {
	resp, err := f.do(ctx, url, src)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if f.progress == nil {
		_, err = io.Copy(&buf, resp.Body)
		return buf.Bytes(), err
	}

	bar := progressbar.NewOptions64(
		resp.ContentLength,
		progressbar.OptionSetWriter(f.progress),
		progressbar.OptionSetDescription(fmt.Sprintf("Downloading %s", name)),
		progressbar.OptionShowBytes(true),
		progressbar.OptionClearOnFinish(),
	)
	defer bar.Close()

	if _, err := io.Copy(io.MultiWriter(&buf, bar), resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
