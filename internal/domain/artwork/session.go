package artwork

import (
	"context"
	"image"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/AgentOS/artwork/internal/media"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/sequence"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/shared/id"
	"go.uber.org/zap"
)

// Session owns one manager on its own sequence. Only the latest request of
// a session is ever answered: a newer request supersedes any unresolved one.
type Session struct {
	id      id.SessionID
	service *Service
	runner  *sequence.Runner
	manager *media.Manager
	created time.Time

	ctx    context.Context
	cancel context.CancelFunc

	// generation orders page requests against requests issued after them
	generation atomic.Uint64
}

func newSession(s *Service, sessionID id.SessionID) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	runner := sequence.New(sessionID.String(), 0, s.logger)

	sess := &Session{
		id:      sessionID,
		service: s,
		runner:  runner,
		manager: s.newManager(),
		created: time.Now(),
		ctx:     ctx,
		cancel:  cancel,
	}
	downloader := s.source.OnContext(ctx, runner)
	runner.Post(func() { sess.manager.SetDownloader(downloader) })
	return sess
}

// ID returns the session id
func (s *Session) ID() id.SessionID {
	return s.id
}

// Created returns when the session was opened
func (s *Session) Created() time.Time {
	return s.created
}

// Request resolves images and calls fn with the result, nil when absent.
// fn runs on the session sequence and is never called if a later request
// supersedes this one.
func (s *Session) Request(images []media.Image, fn func(img image.Image)) error {
	s.generation.Add(1)
	return s.post(func() {
		s.manager.DownloadImage(images, media.CallbackFunc(fn))
	})
}

// RequestPage scrapes pageURL and resolves its candidates. fn receives the
// scraped page with Image set, or an error. Nothing is reported when a
// later request supersedes this one.
func (s *Session) RequestPage(pageURL string, fn func(page *PageArtwork, err error)) error {
	gen := s.generation.Add(1)
	if err := s.post(s.manager.ClearPending); err != nil {
		return err
	}

	go func() {
		page, err := s.service.scrape(s.ctx, pageURL)

		ok := s.post(func() {
			if s.generation.Load() != gen {
				return
			}
			if err != nil {
				fn(nil, err)
				return
			}
			if len(page.Candidates) == 0 {
				fn(page, ErrNoArtwork)
				return
			}
			s.manager.DownloadImage(page.Candidates, media.CallbackFunc(func(img image.Image) {
				if img == nil {
					fn(page, ErrNoArtwork)
					return
				}
				page.Image = img
				fn(page, nil)
			}))
		})
		if ok != nil {
			s.service.logger.Debug("session closed before page resolved",
				zap.String("session", s.id.String()),
				zap.String("url", pageURL),
			)
		}
	}()
	return nil
}

// Pending reports whether a download is outstanding. It blocks until the
// session sequence answers and reports false once the session is closed.
func (s *Session) Pending() bool {
	result := make(chan bool, 1)
	if s.post(func() { result <- s.manager.HasPending() }) != nil {
		return false
	}
	select {
	case pending := <-result:
		return pending
	case <-s.runner.Done():
		// the runner drops queued tasks on close
		select {
		case pending := <-result:
			return pending
		default:
			return false
		}
	}
}

func (s *Session) post(task func()) error {
	if !s.runner.Post(task) {
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) shutdown() {
	s.cancel()
	s.runner.Close()
}
