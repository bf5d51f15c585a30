// Package seed loads a static list of Sources from a YAML file and upserts
// them into the SourceRepository, so a fresh deployment has something for
// the ingestion dispatcher to poll before any admin API calls happen.
package seed

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"trendpulse/internal/domain/entity"
	"trendpulse/internal/repository"
)

type sourceDef struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	Kind        string `yaml:"kind"`
	CountryCode string `yaml:"country_code"`
	LangDefault string `yaml:"lang_default"`
	TrustTier   string `yaml:"trust_tier"`
	Scope       string `yaml:"scope"`
}

type sourcesFile struct {
	Sources []sourceDef `yaml:"sources"`
}

// Sources parses data as a sources YAML file and creates any Source whose
// URL isn't already present in the repository. Existing sources are left
// untouched: this is a seed, not a sync.
func Sources(ctx context.Context, repo repository.SourceRepository, data []byte) (int, error) {
	var sf sourcesFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return 0, fmt.Errorf("seed: parse sources yaml: %w", err)
	}

	existing, err := repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("seed: list existing sources: %w", err)
	}
	byURL := make(map[string]bool, len(existing))
	for _, s := range existing {
		byURL[s.URL] = true
	}

	created := 0
	for _, def := range sf.Sources {
		if byURL[def.URL] {
			continue
		}

		src := &entity.Source{
			Name:        def.Name,
			URL:         def.URL,
			Kind:        entity.SourceKind(def.Kind),
			CountryCode: def.CountryCode,
			LangDefault: def.LangDefault,
			TrustTier:   entity.TrustTier(def.TrustTier),
			Scope:       entity.SourceScope(def.Scope),
		}
		if err := src.Validate(); err != nil {
			return created, fmt.Errorf("seed: invalid source %q: %w", def.Name, err)
		}
		if err := repo.Create(ctx, src); err != nil {
			return created, fmt.Errorf("seed: create source %q: %w", def.Name, err)
		}
		created++
	}

	return created, nil
}
