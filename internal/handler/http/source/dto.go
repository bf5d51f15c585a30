package source

import (
	"time"

	"trendpulse/internal/domain/entity"
)

type DTO struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	URL         string     `json:"url"`
	Kind        string     `json:"kind"`
	CountryCode string     `json:"country_code"`
	LangDefault string     `json:"lang_default"`
	TrustTier   string     `json:"trust_tier"`
	Scope       string     `json:"scope"`
	LastFetchAt *time.Time `json:"last_fetch_at,omitempty"`
	ErrorRate   float64    `json:"error_rate"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toDTO(e *entity.Source) DTO {
	return DTO{
		ID:          e.ID,
		Name:        e.Name,
		URL:         e.URL,
		Kind:        string(e.Kind),
		CountryCode: e.CountryCode,
		LangDefault: e.LangDefault,
		TrustTier:   string(e.TrustTier),
		Scope:       string(e.Scope),
		LastFetchAt: e.LastFetchAt,
		ErrorRate:   e.ErrorRate,
		CreatedAt:   e.CreatedAt,
	}
}
