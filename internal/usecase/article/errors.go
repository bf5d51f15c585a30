// Package article implements the Article Processor: given (url, source_id)
// it fetches the page, extracts structured content, fingerprints it, and
// persists it, fanning out the embed-and-cluster job on success.
package article

import "errors"

// Sentinel errors distinguishing the Article Processor's skip/retry outcomes.
var (
	// ErrEmptyText is returned when extraction produced no usable body text;
	// the caller should treat the job as a no-op skip, not a retryable failure.
	ErrEmptyText = errors.New("article: extracted text is empty")
)
