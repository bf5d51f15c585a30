// Package entity defines the core domain entities and validation logic for the application.
// It contains the fundamental business objects such as Article and Source, along with
// their validation rules and domain-specific errors.
package entity

import "time"

// Article represents a normalized piece of content fetched from a Source.
// URL and URLCanonical are distinct: URL is the exact link encountered during
// ingestion, URLCanonical is the resolved form used for cross-source dedup.
type Article struct {
	ID           int64
	SourceID     int64
	URL          string
	URLCanonical string
	Title        string
	Author       string
	Lang         string
	PublishedAt  *time.Time
	RawHTML      string
	TextContent  string
	Hash64       []byte // first 8 bytes of a content hash, used for exact-dup lookup
	Simhash64    uint64
	QualityScore *float64
	CreatedAt    time.Time
}

// Validate checks that the Article carries the minimum fields required to
// be fingerprinted, embedded, and clustered.
func (a *Article) Validate() error {
	if a.SourceID == 0 {
		return &ValidationError{Field: "source_id", Message: "source_id is required"}
	}

	if a.URL != "" {
		if err := ValidateURL(a.URL); err != nil {
			return err
		}
	}

	if a.TextContent == "" {
		return &ValidationError{Field: "text_content", Message: "text_content is required"}
	}

	if a.QualityScore != nil && *a.QualityScore < 0 {
		return &ValidationError{Field: "quality_score", Message: "quality_score cannot be negative"}
	}

	return nil
}

// DuplicateKind classifies how an Article relates to another as a duplicate.
type DuplicateKind string

const (
	DuplicateKindExact DuplicateKind = "exact"
	DuplicateKindNear  DuplicateKind = "near"
)

// ArticleDuplicate links an Article to the earlier Article it duplicates.
// Distance is the Hamming distance between simhashes for near duplicates,
// and is nil for exact duplicates (hash_64 equality alone decides those).
type ArticleDuplicate struct {
	ArticleID     int64
	DuplicateOfID int64
	Kind          DuplicateKind
	Distance      *int
}
