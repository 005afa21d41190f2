package artwork

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/AgentOS/artwork/internal/media"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/providers/imagefetch"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/providers/scraper"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/sequence"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/shared/id"
	"go.uber.org/zap"
)

var (
	ErrNoArtwork       = errors.New("no suitable artwork")
	ErrTooManySessions = errors.New("session limit reached")
	ErrSessionClosed   = errors.New("session closed")
	ErrServiceClosed   = errors.New("artwork service closed")
)

// Source supplies downloads and pages
type Source interface {
	OnContext(ctx context.Context, runner sequence.Poster) media.Downloader
	FetchPage(ctx context.Context, url string) (*imagefetch.Page, error)
}

// Config holds service settings
type Config struct {
	MinSize        int
	IdealSize      int
	ResolveTimeout time.Duration
	MaxSessions    int
}

// Option customizes a Service
type Option func(*Service)

// WithLogger sets the service logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver is attached to every manager the service creates
func WithObserver(o media.Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithSessionGauge is called with the open session count on every change
func WithSessionGauge(fn func(count int)) Option {
	return func(s *Service) { s.sessionGauge = fn }
}

// Service resolves artwork for one-shot requests and long-lived sessions
type Service struct {
	source       Source
	cfg          Config
	logger       *zap.Logger
	observer     media.Observer
	sessionGauge func(count int)

	sessions sync.Map // id.SessionID -> *Session
	count    atomic.Int64
	closed   atomic.Bool
}

// PageArtwork is the outcome of ResolvePage
type PageArtwork struct {
	PageURL    string
	Title      string
	Candidates []media.Image
	Image      image.Image
}

// NewService creates a new artwork service
func NewService(source Source, cfg Config, opts ...Option) *Service {
	s := &Service{
		source: source,
		cfg:    cfg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the service settings
func (s *Service) Config() Config {
	return s.cfg
}

// Resolve picks, downloads and returns the best image among images. It
// blocks until the manager reports a result or ctx is done. An absent result
// is ErrNoArtwork.
func (s *Service) Resolve(ctx context.Context, images []media.Image) (image.Image, error) {
	if s.closed.Load() {
		return nil, ErrServiceClosed
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	runner := sequence.New("resolve", 1, s.logger)
	defer runner.Close()

	manager := s.newManager()
	manager.SetDownloader(s.source.OnContext(ctx, runner))

	result := make(chan image.Image, 1)
	posted := runner.Post(func() {
		manager.DownloadImage(images, media.CallbackFunc(func(img image.Image) {
			result <- img
		}))
	})
	if !posted {
		return nil, ErrServiceClosed
	}

	select {
	case img := <-result:
		if img == nil {
			return nil, ErrNoArtwork
		}
		return img, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ResolvePage fetches an HTML page, extracts its candidates and resolves
// them
func (s *Service) ResolvePage(ctx context.Context, pageURL string) (*PageArtwork, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	page, err := s.scrape(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	if len(page.Candidates) == 0 {
		return page, ErrNoArtwork
	}

	img, err := s.Resolve(ctx, page.Candidates)
	if err != nil {
		return page, err
	}
	page.Image = img
	return page, nil
}

func (s *Service) scrape(ctx context.Context, pageURL string) (*PageArtwork, error) {
	page, err := s.source.FetchPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	base := page.URL
	if base == "" {
		base = pageURL
	}
	extracted, err := scraper.Extract(page.Body, page.ContentType, base)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	s.logger.Debug("page scraped",
		zap.String("url", base),
		zap.Int("candidates", len(extracted.Images)),
	)

	return &PageArtwork{
		PageURL:    base,
		Title:      extracted.Title,
		Candidates: extracted.Images,
	}, nil
}

// Open starts a session
func (s *Service) Open() (*Session, error) {
	if s.closed.Load() {
		return nil, ErrServiceClosed
	}

	if n := s.count.Add(1); s.cfg.MaxSessions > 0 && n > int64(s.cfg.MaxSessions) {
		s.count.Add(-1)
		return nil, ErrTooManySessions
	}

	sess := newSession(s, id.NewSessionID())
	s.sessions.Store(sess.id, sess)
	s.publishCount()

	s.logger.Debug("session opened", zap.String("session", sess.id.String()))
	return sess, nil
}

// Get returns an open session
func (s *Service) Get(sessionID id.SessionID) (*Session, bool) {
	v, ok := s.sessions.Load(sessionID)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Close ends a session. It reports false for unknown ids.
func (s *Service) Close(sessionID id.SessionID) bool {
	v, ok := s.sessions.LoadAndDelete(sessionID)
	if !ok {
		return false
	}
	v.(*Session).shutdown()
	s.count.Add(-1)
	s.publishCount()

	s.logger.Debug("session closed", zap.String("session", sessionID.String()))
	return true
}

// Count returns the number of open sessions
func (s *Service) Count() int {
	return int(s.count.Load())
}

// Shutdown closes every session and rejects new work
func (s *Service) Shutdown() {
	s.closed.Store(true)
	s.sessions.Range(func(key, _ interface{}) bool {
		s.Close(key.(id.SessionID))
		return true
	})
}

func (s *Service) newManager() *media.Manager {
	m := media.NewManager(s.cfg.MinSize, s.cfg.IdealSize).WithLogger(s.logger.Named("media"))
	if s.observer != nil {
		m.WithObserver(s.observer)
	}
	return m
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.ResolveTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.ResolveTimeout)
}

func (s *Service) publishCount() {
	if s.sessionGauge != nil {
		s.sessionGauge(s.Count())
	}
}
