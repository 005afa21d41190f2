package imagefetch

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/AgentOS/artwork/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/media"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/providers/http/client"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/sequence"
	"go.uber.org/zap"
)

// Re-exported client sentinels
var (
	ErrHostNotAllowed    = client.ErrHostNotAllowed
	ErrUnsupportedScheme = client.ErrUnsupportedScheme
	ErrBodyTooLarge      = client.ErrBodyTooLarge
)

// Fetch outcomes recorded in metrics
const (
	OutcomeOK          = "ok"
	OutcomeStatus      = "status"
	OutcomeTransport   = "transport"
	OutcomeUndecodable = "undecodable"
)

// Fetcher downloads and decodes images on behalf of media.Manager.
// Request ids are unique for the Fetcher's lifetime.
type Fetcher struct {
	client    *client.Client
	timeout   time.Duration
	maxPixels int64
	logger    *zap.Logger
	metrics   *monitoring.Metrics
	tracer    *tracing.Tracer

	nextID atomic.Int64
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option customizes a Fetcher
type Option func(*Fetcher)

// WithLogger sets the fetcher logger
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithMetrics records fetch durations and sizes
func WithMetrics(m *monitoring.Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

// WithTracer wraps every fetch in a span
func WithTracer(t *tracing.Tracer) Option {
	return func(f *Fetcher) { f.tracer = t }
}

// WithTimeout bounds each image fetch, retries included
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.timeout = d }
}

// WithMaxPixels caps the declared area of a decoded image
func WithMaxPixels(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxPixels = n
		}
	}
}

// New creates a fetcher on top of c
func New(c *client.Client, opts ...Option) *Fetcher {
	ctx, cancel := context.WithCancel(context.Background())
	f := &Fetcher{
		client:    c,
		maxPixels: DefaultMaxPixels,
		logger:    zap.NewNop(),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Close cancels in-flight fetches and waits for them to finish
func (f *Fetcher) Close() {
	f.cancel()
	f.wg.Wait()
}

// On returns a media.Downloader whose completions are posted to runner
func (f *Fetcher) On(runner sequence.Poster) media.Downloader {
	return f.OnContext(f.ctx, runner)
}

// OnContext is like On; fetches started through the returned Downloader
// are also cancelled when ctx is done
func (f *Fetcher) OnContext(ctx context.Context, runner sequence.Poster) media.Downloader {
	return &downloader{fetcher: f, ctx: ctx, runner: runner}
}

type downloader struct {
	fetcher *Fetcher
	ctx     context.Context
	runner  sequence.Poster
}

// DownloadImage starts the fetch and returns immediately. The completion is
// posted to the runner exactly once, or dropped if the runner has closed.
func (d *downloader) DownloadImage(url string, opts media.DownloadOptions, done media.Completion) int {
	f := d.fetcher
	requestID := int(f.nextID.Add(1))

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()

		ctx, cancel := mergeContext(f.ctx, d.ctx)
		defer cancel()

		res := f.FetchImage(ctx, requestID, url, opts)
		if !d.runner.Post(func() { done.OnFinishDownloadImage(res) }) {
			f.logger.Debug("runner closed, dropping image completion", zap.Int("request", requestID))
		}
	}()

	return requestID
}

// FetchImage downloads url and decodes it into a DownloadResult. A transport
// failure yields status 0; an undecodable body keeps the real status. Both
// carry no bitmaps.
func (f *Fetcher) FetchImage(ctx context.Context, requestID int, url string, opts media.DownloadOptions) media.DownloadResult {
	res := media.DownloadResult{RequestID: requestID, URL: url}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	var span *tracing.Span
	if f.tracer != nil {
		span, ctx = f.tracer.StartSpan(ctx, "image.fetch")
		span.SetTag("url", url)
		defer func() {
			span.SetStatus(res.HTTPStatus)
			span.Finish()
			f.tracer.Submit(span)
		}()
	}

	timer := monitoring.NewTimer(f.metrics)
	log := f.logger.With(zap.Int("request", requestID), zap.String("url", url))
	log = log.With(tracing.Fields(ctx)...)

	header := map[string]string{"Accept": "image/*"}
	if opts.BypassCache {
		header["Cache-Control"] = "no-cache"
		header["Pragma"] = "no-cache"
	}

	resp, err := f.client.Get(ctx, url, header)
	if resp != nil {
		res.HTTPStatus = resp.StatusCode
	}
	if err != nil {
		if span != nil {
			span.SetError(err)
		}
		level := zap.WarnLevel
		if errors.Is(err, context.Canceled) {
			level = zap.DebugLevel
		}
		log.Check(level, "image fetch failed").Write(zap.Error(err))
		timer.Stop(OutcomeTransport, 0)
		return res
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		log.Debug("image fetch returned non-success status", zap.Int("status", resp.StatusCode))
		timer.Stop(OutcomeStatus, int64(len(resp.Body)))
		return res
	}

	frames, format, err := Decode(resp.Body, f.maxPixels)
	if err != nil {
		log.Debug("image body not decodable", zap.String("format", format), zap.Error(err))
		timer.Stop(OutcomeUndecodable, int64(len(resp.Body)))
		return res
	}

	res.Bitmaps, res.OriginalSizes = Prepare(frames, opts.IdealSize, opts.MaxBitmapSize)
	timer.Stop(OutcomeOK, int64(len(resp.Body)))

	log.Debug("image fetched",
		zap.String("format", format),
		zap.Int("frames", len(res.Bitmaps)),
		zap.Int("bytes", len(resp.Body)),
	)
	return res
}

// mergeContext returns a context cancelled when either parent is done
func mergeContext(a, b context.Context) (context.Context, context.CancelFunc) {
	if a == b || b == nil {
		return context.WithCancel(a)
	}
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
