/*
Package resilience provides a circuit breaker for calls to remote image hosts.

The breaker keeps one slow or failing origin from tying up every artwork
fetch: after enough consecutive failures it opens and rejects calls
immediately, then lets a few probes through once Timeout has passed.

# Usage

	breaker := resilience.New("image-fetch", resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	resp, err := resilience.Do(breaker, func() (*resty.Response, error) {
		return req.Get(url)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                       [failure]
	                                           v
	                                         Open

Context cancellation is not counted as a failure unless Settings.IsSuccessful
says otherwise.
*/
package resilience
