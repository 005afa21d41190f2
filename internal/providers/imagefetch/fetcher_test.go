package imagefetch

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/GriffinCanCode/AgentOS/artwork/internal/media"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/providers/http/client"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/sequence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type completionFunc func(res media.DownloadResult)

func (f completionFunc) OnFinishDownloadImage(res media.DownloadResult) { f(res) }

func newFetcher(t *testing.T, opts ...Option) *Fetcher {
	t.Helper()
	cfg := client.DefaultConfig()
	cfg.RetryMax = 0
	c, err := client.New(cfg)
	require.NoError(t, err)

	f := New(c, append([]Option{WithTimeout(2 * time.Second)}, opts...)...)
	t.Cleanup(f.Close)
	return f
}

var defaultOpts = media.DownloadOptions{MinSize: 100, IdealSize: 200, MaxBitmapSize: media.MaxBitmapSizeForDownload}

func await(t *testing.T, ch <-chan media.DownloadResult) media.DownloadResult {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(3 * time.Second):
		t.Fatal("completion not delivered")
		return media.DownloadResult{}
	}
}

func TestDownloadImageDeliversOnRunner(t *testing.T) {
	body := encodePNG(t, 300, 300)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	defer srv.Close()

	runner := sequence.New("test", 0, nil)
	defer runner.Close()

	f := newFetcher(t)
	results := make(chan media.DownloadResult, 1)
	var onRunner bool
	marker := make(chan struct{}, 1)

	id := f.On(runner).DownloadImage(srv.URL+"/art.png", defaultOpts, completionFunc(func(res media.DownloadResult) {
		// Runs on the runner goroutine: a task posted from here executes after it
		onRunner = runner.Post(func() { marker <- struct{}{} })
		results <- res
	}))
	assert.Equal(t, 1, id)

	res := await(t, results)
	assert.True(t, onRunner)
	<-marker

	assert.Equal(t, 1, res.RequestID)
	assert.Equal(t, http.StatusOK, res.HTTPStatus)
	assert.Equal(t, srv.URL+"/art.png", res.URL)
	require.Len(t, res.Bitmaps, 1)
	assert.Equal(t, []media.Size{{Width: 300, Height: 300}}, res.OriginalSizes)
}

func TestRequestIDsAreUnique(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	runner := sequence.New("test", 0, nil)
	defer runner.Close()

	f := newFetcher(t)
	results := make(chan media.DownloadResult, 10)
	done := completionFunc(func(res media.DownloadResult) { results <- res })

	seen := map[int]bool{}
	for i := 0; i < 5; i++ {
		id := f.On(runner).DownloadImage(srv.URL, defaultOpts, done)
		assert.False(t, seen[id])
		assert.Positive(t, id)
		seen[id] = true
	}

	for i := 0; i < 5; i++ {
		res := await(t, results)
		assert.True(t, seen[res.RequestID])
		delete(seen, res.RequestID)
	}
	assert.Empty(t, seen)
}

func TestFetchImageOutcomes(t *testing.T) {
	png := encodePNG(t, 64, 64)
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) { w.Write(png) })
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) })
	mux.HandleFunc("/text", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("hello")) })
	mux.HandleFunc("/created", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write(png)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// A listener that is closed straight away gives a refused connection
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadURL := "http://" + ln.Addr().String() + "/gone"
	ln.Close()

	tests := []struct {
		name    string
		url     string
		status  int
		bitmaps int
	}{
		{"success", srv.URL + "/ok", http.StatusOK, 1},
		{"non 200 success", srv.URL + "/created", http.StatusCreated, 1},
		{"not found", srv.URL + "/missing", http.StatusNotFound, 0},
		{"undecodable", srv.URL + "/text", http.StatusOK, 0},
		{"transport failure", deadURL, 0, 0},
		{"bad scheme", "data:image/png;base64,AAAA", 0, 0},
	}

	f := newFetcher(t)
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.FetchImage(context.Background(), i+1, tt.url, defaultOpts)
			assert.Equal(t, i+1, res.RequestID)
			assert.Equal(t, tt.url, res.URL)
			assert.Equal(t, tt.status, res.HTTPStatus)
			assert.Len(t, res.Bitmaps, tt.bitmaps)
			assert.Len(t, res.OriginalSizes, tt.bitmaps)
		})
	}
}

func TestFetchImageOversizedIsAbsent(t *testing.T) {
	big := encodePNG(t, 120, 120)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(big)
	}))
	defer srv.Close()

	f := newFetcher(t, WithMaxPixels(100*100))
	res := f.FetchImage(context.Background(), 1, srv.URL, defaultOpts)
	assert.Equal(t, http.StatusOK, res.HTTPStatus)
	assert.Empty(t, res.Bitmaps)
	assert.Empty(t, res.OriginalSizes)

	f = newFetcher(t)
	res = f.FetchImage(context.Background(), 2, srv.URL, defaultOpts)
	assert.Equal(t, http.StatusOK, res.HTTPStatus)
	assert.Len(t, res.Bitmaps, 1)
}

func TestBypassCacheHeader(t *testing.T) {
	got := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("Cache-Control")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	f := newFetcher(t)
	f.FetchImage(context.Background(), 1, srv.URL, defaultOpts)
	assert.Equal(t, "", <-got)

	opts := defaultOpts
	opts.BypassCache = true
	f.FetchImage(context.Background(), 2, srv.URL, opts)
	assert.Equal(t, "no-cache", <-got)
}

func TestClosedRunnerDropsCompletion(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	defer close(release)

	runner := sequence.New("test", 0, nil)
	f := newFetcher(t)

	called := make(chan struct{}, 1)
	f.On(runner).DownloadImage(srv.URL, defaultOpts, completionFunc(func(media.DownloadResult) {
		called <- struct{}{}
	}))
	runner.Close()
	release <- struct{}{}

	select {
	case <-called:
		t.Fatal("completion delivered after runner closed")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestOnContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	runner := sequence.New("test", 0, nil)
	defer runner.Close()

	f := newFetcher(t)
	ctx, cancel := context.WithCancel(context.Background())

	results := make(chan media.DownloadResult, 1)
	f.OnContext(ctx, runner).DownloadImage(srv.URL, defaultOpts, completionFunc(func(res media.DownloadResult) {
		results <- res
	}))
	cancel()

	res := await(t, results)
	assert.Equal(t, 0, res.HTTPStatus)
	assert.Empty(t, res.Bitmaps)
}

func TestFetchPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><head><title>t</title></head></html>"))
	})
	mux.HandleFunc("/sniffed", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("<!DOCTYPE html><html><body></body></html>"))
	})
	mux.HandleFunc("/image", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(encodePNG(t, 2, 2))
	})
	mux.HandleFunc("/missing", http.NotFound)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := newFetcher(t)

	page, err := f.FetchPage(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, "text/html; charset=utf-8", page.ContentType)
	assert.Contains(t, string(page.Body), "<title>t</title>")

	page, err = f.FetchPage(context.Background(), srv.URL+"/sniffed")
	require.NoError(t, err)
	assert.Contains(t, page.ContentType, "text/html")

	_, err = f.FetchPage(context.Background(), srv.URL+"/image")
	assert.ErrorIs(t, err, ErrNotHTML)

	_, err = f.FetchPage(context.Background(), srv.URL+"/missing")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
}
