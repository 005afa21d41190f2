package media

import (
	"image"

	"go.uber.org/zap"
)

// MaxBitmapSizeForDownload caps the edge length of bitmaps the downloader
// hands back; larger images are scaled down before delivery.
const MaxBitmapSizeForDownload = 2048

// Skip reasons reported to the Observer
const (
	SkipNoCandidates = "no_candidates"
	SkipUndersized   = "undersized"
	SkipNoDownloader = "no_downloader"
)

// Callback receives the outcome of a DownloadImage call.
// img is nil when no suitable image could be produced.
type Callback interface {
	OnImageDownloaded(img image.Image)
}

// CallbackFunc adapts a function to Callback
type CallbackFunc func(img image.Image)

// OnImageDownloaded calls f(img)
func (f CallbackFunc) OnImageDownloaded(img image.Image) {
	f(img)
}

// DownloadOptions are passed through to the Downloader with every request
type DownloadOptions struct {
	MinSize       int
	IdealSize     int
	MaxBitmapSize int
	BypassCache   bool
}

// DownloadResult is the completion of one download request
type DownloadResult struct {
	RequestID     int
	HTTPStatus    int
	URL           string
	Bitmaps       []image.Image
	OriginalSizes []Size // parallel to Bitmaps
}

// Completion receives download results. Manager implements it.
type Completion interface {
	OnFinishDownloadImage(res DownloadResult)
}

// Downloader starts an asynchronous image download and returns its request
// id. The id must be unique among outstanding requests, and done must be
// invoked at most once for it, on the sequence that owns the Manager.
type Downloader interface {
	DownloadImage(url string, opts DownloadOptions, done Completion) int
}

// Observer receives correlation events. All methods are called on the
// owning sequence.
type Observer interface {
	RequestIssued(requestID int, url string)
	RequestSkipped(reason string)
	RequestResolved(requestID int, found bool)
	CompletionDropped(requestID int)
}

type pendingRequest struct {
	requestID int
	callback  Callback
}

// Manager picks the best candidate from a list of images, downloads it and
// reports the result. Only the most recent request is tracked: issuing a new
// one makes any earlier unresolved request's completion stale.
//
// Manager is not safe for concurrent use.
type Manager struct {
	minSize    int
	idealSize  int
	downloader Downloader
	observer   Observer
	logger     *zap.Logger
	pending    *pendingRequest
}

// NewManager creates a manager that ignores images smaller than minSize px
// and prefers images of idealSize px
func NewManager(minSize, idealSize int) *Manager {
	return &Manager{
		minSize:   minSize,
		idealSize: idealSize,
		logger:    zap.NewNop(),
	}
}

// WithLogger sets the logger used for debug tracing
func (m *Manager) WithLogger(logger *zap.Logger) *Manager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// WithObserver registers an observer for correlation events
func (m *Manager) WithObserver(o Observer) *Manager {
	m.observer = o
	return m
}

// SetDownloader replaces the collaborator. Any pending request is forgotten,
// its callback is never invoked.
func (m *Manager) SetDownloader(d Downloader) {
	m.downloader = d
	m.ClearPending()
}

// ClearPending forgets the pending request without invoking its callback.
// A later completion for it is dropped as stale.
func (m *Manager) ClearPending() {
	if m.pending != nil {
		m.logger.Debug("clearing pending image request", zap.Int("request", m.pending.requestID))
		m.pending = nil
	}
}

// MinSize returns the minimum accepted edge length in pixels
func (m *Manager) MinSize() int {
	return m.minSize
}

// IdealSize returns the preferred edge length in pixels
func (m *Manager) IdealSize() int {
	return m.idealSize
}

// HasPending reports whether a request is waiting for its completion
func (m *Manager) HasPending() bool {
	return m.pending != nil
}

// DownloadImage downloads the first acceptable image from images and
// reports it to cb. Candidates with an empty Src are ignored; a list holding
// only such candidates counts as empty. When nothing is acceptable cb
// receives nil before DownloadImage returns. Every call supersedes the
// previous pending request, whether or not a new download is issued.
func (m *Manager) DownloadImage(images []Image, cb Callback) {
	m.ClearPending()

	candidate, reason := m.selectImage(images)
	if reason != "" {
		m.skip(reason, cb)
		return
	}

	if m.downloader == nil {
		m.skip(SkipNoDownloader, cb)
		return
	}

	requestID := m.downloader.DownloadImage(candidate.Src, DownloadOptions{
		MinSize:       m.minSize,
		IdealSize:     m.idealSize,
		MaxBitmapSize: MaxBitmapSizeForDownload,
	}, m)

	m.pending = &pendingRequest{requestID: requestID, callback: cb}

	m.logger.Debug("image download issued",
		zap.Int("request", requestID),
		zap.String("url", candidate.Src),
	)
	if m.observer != nil {
		m.observer.RequestIssued(requestID, candidate.Src)
	}
}

// OnFinishDownloadImage resolves the pending request if res belongs to it.
// Completions for superseded or already resolved requests are dropped.
func (m *Manager) OnFinishDownloadImage(res DownloadResult) {
	if m.pending == nil || m.pending.requestID != res.RequestID {
		m.logger.Debug("dropping stale image completion", zap.Int("request", res.RequestID))
		if m.observer != nil {
			m.observer.CompletionDropped(res.RequestID)
		}
		return
	}

	cb := m.pending.callback
	m.pending = nil

	var selected image.Image
	if isSuccess(res.HTTPStatus) {
		selected = m.selectBitmap(res.Bitmaps, res.OriginalSizes)
	}

	m.logger.Debug("image download resolved",
		zap.Int("request", res.RequestID),
		zap.Int("status", res.HTTPStatus),
		zap.Int("bitmaps", len(res.Bitmaps)),
		zap.Bool("found", selected != nil),
	)
	if m.observer != nil {
		m.observer.RequestResolved(res.RequestID, selected != nil)
	}

	cb.OnImageDownloaded(selected)
}

func (m *Manager) skip(reason string, cb Callback) {
	if m.observer != nil {
		m.observer.RequestSkipped(reason)
	}
	cb.OnImageDownloaded(nil)
}

// selectImage returns the first sourced image that declares no sizes or
// declares at least one large enough size, or the skip reason when none does
func (m *Manager) selectImage(images []Image) (Image, string) {
	reason := SkipNoCandidates
	for _, img := range images {
		if img.Src == "" {
			continue
		}
		reason = SkipUndersized
		if len(img.Sizes) == 0 {
			return img, ""
		}
		for _, size := range img.Sizes {
			if m.largeEnough(size) {
				return img, ""
			}
		}
	}
	return Image{}, reason
}

// selectBitmap returns the first bitmap whose original size is large enough
func (m *Manager) selectBitmap(bitmaps []image.Image, sizes []Size) image.Image {
	n := len(bitmaps)
	if len(sizes) < n {
		n = len(sizes)
	}
	for i := 0; i < n; i++ {
		if bitmaps[i] != nil && m.largeEnough(sizes[i]) {
			return bitmaps[i]
		}
	}
	return nil
}

// largeEnough is false only when both dimensions are below the minimum
func (m *Manager) largeEnough(s Size) bool {
	return s.Width >= m.minSize || s.Height >= m.minSize
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
