package monitoring

import "github.com/GriffinCanCode/AgentOS/artwork/internal/media"

// Observer feeds media.Manager events into Metrics
type Observer struct {
	metrics *Metrics
}

var _ media.Observer = (*Observer)(nil)

// NewObserver creates an observer recording into metrics
func NewObserver(metrics *Metrics) *Observer {
	return &Observer{metrics: metrics}
}

// RequestIssued counts an issued download
func (o *Observer) RequestIssued(requestID int, url string) {
	o.metrics.DownloadsIssued.Inc()
}

// RequestSkipped counts a request answered without a download
func (o *Observer) RequestSkipped(reason string) {
	o.metrics.DownloadsSkipped.WithLabelValues(reason).Inc()
	o.countResult(false)
}

// RequestResolved counts a matched completion
func (o *Observer) RequestResolved(requestID int, found bool) {
	result := "absent"
	if found {
		result = "found"
	}
	o.metrics.DownloadsResolved.WithLabelValues(result).Inc()
	o.countResult(found)
}

// CompletionDropped counts a stale completion
func (o *Observer) CompletionDropped(requestID int) {
	o.metrics.CompletionsDropped.Inc()
}

func (o *Observer) countResult(found bool) {
	o.metrics.mu.Lock()
	if found {
		o.metrics.snapshot.ImagesFound++
	} else {
		o.metrics.snapshot.ImagesAbsent++
	}
	o.metrics.mu.Unlock()
}
