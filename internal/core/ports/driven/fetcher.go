package driven

import "context"

// Fetcher issues resilient HTTP requests against hostile upstreams.
type Fetcher interface {
	// Fetch retrieves a page body. It retries transient failures with
	// linear backoff and anti-bot challenges with exponential backoff,
	// then returns the body and the final URL after redirects. Failures
	// surface as *domain.BlockedError or *domain.NetworkError.
	Fetch(ctx context.Context, url string) (body string, finalURL string, err error)

	// Politeness sleeps for a randomized inter-request delay so request
	// timing does not fingerprint the harvester.
	Politeness(ctx context.Context) error
}
