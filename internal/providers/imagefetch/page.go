package imagefetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrNotHTML is returned by FetchPage for non-HTML bodies
var ErrNotHTML = errors.New("page is not html")

// StatusError reports a page fetch that completed with a non-2xx status
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("page returned status %d", e.Code)
}

// Page is a fetched HTML document
type Page struct {
	URL         string
	ContentType string
	Body        []byte
}

// FetchPage downloads an HTML page whose images will be scraped
func (f *Fetcher) FetchPage(ctx context.Context, url string) (*Page, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	resp, err := f.client.Get(ctx, url, map[string]string{
		"Accept": "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5",
	})
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	contentType := resp.ContentType
	if !strings.Contains(strings.ToLower(contentType), "html") {
		detected := mimetype.Detect(resp.Body)
		if !detected.Is("text/html") {
			return nil, fmt.Errorf("%w: %s", ErrNotHTML, detected.String())
		}
		contentType = detected.String()
	}

	return &Page{URL: resp.URL, ContentType: contentType, Body: resp.Body}, nil
}
