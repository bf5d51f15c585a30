package source

import (
	"context"
	"fmt"

	"trendpulse/internal/domain/entity"
	"trendpulse/internal/repository"
)

// CreateInput represents the input parameters for registering a new source.
type CreateInput struct {
	Name        string
	URL         string
	Kind        entity.SourceKind
	CountryCode string
	LangDefault string
	TrustTier   entity.TrustTier
	Scope       entity.SourceScope
	HomeAreaID  *int64
}

// UpdateInput represents the input parameters for updating an existing
// source. Empty string fields are left unchanged.
type UpdateInput struct {
	ID          int64
	Name        string
	URL         string
	Kind        entity.SourceKind
	CountryCode string
	LangDefault string
	TrustTier   entity.TrustTier
	Scope       entity.SourceScope
}

// Service provides source management use cases, delegating persistence to
// the repository and keeping Source.Validate as the single source of truth
// for field rules.
type Service struct {
	Repo repository.SourceRepository
}

// List retrieves every registered source.
func (s *Service) List(ctx context.Context) ([]*entity.Source, error) {
	sources, err := s.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return sources, nil
}

// ListActive retrieves sources currently eligible for the ingestion
// dispatcher (error_rate below the repository's cutoff).
func (s *Service) ListActive(ctx context.Context) ([]*entity.Source, error) {
	sources, err := s.Repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active sources: %w", err)
	}
	return sources, nil
}

// Create registers a new source after validating its fields.
func (s *Service) Create(ctx context.Context, in CreateInput) error {
	src := &entity.Source{
		Name:        in.Name,
		URL:         in.URL,
		Kind:        in.Kind,
		CountryCode: in.CountryCode,
		LangDefault: in.LangDefault,
		TrustTier:   in.TrustTier,
		Scope:       in.Scope,
		HomeAreaID:  in.HomeAreaID,
	}
	if err := src.Validate(); err != nil {
		return err
	}
	if err := s.Repo.Create(ctx, src); err != nil {
		return fmt.Errorf("create source: %w", err)
	}
	return nil
}

// Update modifies an existing source with the provided input.
// Returns ErrSourceNotFound if the source does not exist.
func (s *Service) Update(ctx context.Context, in UpdateInput) error {
	if in.ID <= 0 {
		return &entity.ValidationError{Field: "id", Message: "must be positive"}
	}

	src, err := s.Repo.Get(ctx, in.ID)
	if err != nil {
		return fmt.Errorf("get source: %w", err)
	}
	if src == nil {
		return ErrSourceNotFound
	}

	if in.Name != "" {
		src.Name = in.Name
	}
	if in.URL != "" {
		src.URL = in.URL
	}
	if in.Kind != "" {
		src.Kind = in.Kind
	}
	if in.CountryCode != "" {
		src.CountryCode = in.CountryCode
	}
	if in.LangDefault != "" {
		src.LangDefault = in.LangDefault
	}
	if in.TrustTier != "" {
		src.TrustTier = in.TrustTier
	}
	if in.Scope != "" {
		src.Scope = in.Scope
	}

	if err := src.Validate(); err != nil {
		return err
	}
	if err := s.Repo.Update(ctx, src); err != nil {
		return fmt.Errorf("update source: %w", err)
	}
	return nil
}

// Delete removes a source by its ID.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return &entity.ValidationError{Field: "id", Message: "must be positive"}
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	return nil
}
