package attendance

import "errors"

// Attendance domain errors
var (
	// Fetch errors
	ErrFetchInProgress = errors.New("a fetch is already in progress for this session")

	// Crawl errors
	ErrTooManyPages        = errors.New("pagination exceeded the configured page cap")
	ErrUnexpectedPageShape = errors.New("page does not contain the expected anomaly table")
)
