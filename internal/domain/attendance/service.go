package attendance

import (
	"context"
)

// FetchService defines business logic for retrieving and deriving a
// user's overtime from the portal.
type FetchService interface {
	// Fetch runs login, crawl, parse and compute synchronously and
	// returns the full result. At most one fetch runs at a time;
	// a second call while one is in flight fails with ErrFetchInProgress.
	Fetch(ctx context.Context, req FetchRequest) (FetchResult, error)

	// Start runs Fetch on a background worker and delivers the outcome
	// on the returned channel. The channel is buffered and receives
	// exactly one value. Cancelling ctx stops the worker at the next
	// page boundary and discards partial results.
	Start(ctx context.Context, req FetchRequest) (<-chan FetchOutcome, error)
}
