package article

import (
	"context"
	"time"
)

// Extraction is the structured result of fetching and parsing one article
// page: title, body text, authorship, language, canonical URL, and
// whichever publication-date variant the page exposed.
type Extraction struct {
	Title        string
	Text         string
	Author       string
	Lang         string
	CanonicalURL string
	PublishedAt  *time.Time
	ModifiedAt   *time.Time
}

// Extractor fetches a URL and returns its structured extraction. An
// implementation is expected to enforce its own HTTP deadline, redirect
// handling, and SSRF protection.
type Extractor interface {
	Extract(ctx context.Context, url string) (*Extraction, error)
}
