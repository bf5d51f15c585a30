package entity

import "time"

// SourceKind identifies how a Source is polled for new content.
type SourceKind string

const (
	SourceKindRSS    SourceKind = "rss"
	SourceKindSite   SourceKind = "site"
	SourceKindSocial SourceKind = "social"
	SourceKindAPI    SourceKind = "api"
)

// SourceScope describes the geographic reach a Source covers.
type SourceScope string

const (
	SourceScopeLocal         SourceScope = "local"
	SourceScopeRegional      SourceScope = "regional"
	SourceScopeNational      SourceScope = "national"
	SourceScopeInternational SourceScope = "international"
)

// TrustTier is an editorial trust rating assigned to a Source.
type TrustTier string

const (
	TrustTierA TrustTier = "A"
	TrustTierB TrustTier = "B"
	TrustTierC TrustTier = "C"
)

// Source represents a media outlet or feed that articles are ingested from.
type Source struct {
	ID          int64
	Name        string
	URL         string
	Kind        SourceKind
	CountryCode string
	LangDefault string
	TrustTier   TrustTier
	Scope       SourceScope
	HomeAreaID  *int64
	LastFetchAt *time.Time
	ErrorRate   float64
	CreatedAt   time.Time
}

// Validate checks that the Source has a usable configuration.
// Unset Kind/TrustTier/Scope are defaulted rather than rejected, mirroring
// the column defaults the persistence layer applies.
func (s *Source) Validate() error {
	if s.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}

	if err := ValidateURL(s.URL); err != nil {
		return err
	}

	if s.Kind == "" {
		s.Kind = SourceKindRSS
	}
	switch s.Kind {
	case SourceKindRSS, SourceKindSite, SourceKindSocial, SourceKindAPI:
	default:
		return &ValidationError{Field: "kind", Message: "kind must be one of rss, site, social, api"}
	}

	if s.TrustTier == "" {
		s.TrustTier = TrustTierB
	}
	switch s.TrustTier {
	case TrustTierA, TrustTierB, TrustTierC:
	default:
		return &ValidationError{Field: "trust_tier", Message: "trust_tier must be one of A, B, C"}
	}

	if s.Scope == "" {
		s.Scope = SourceScopeNational
	}
	switch s.Scope {
	case SourceScopeLocal, SourceScopeRegional, SourceScopeNational, SourceScopeInternational:
	default:
		return &ValidationError{Field: "scope", Message: "scope must be one of local, regional, national, international"}
	}

	if s.ErrorRate < 0 {
		return &ValidationError{Field: "error_rate", Message: "error_rate cannot be negative"}
	}

	return nil
}
