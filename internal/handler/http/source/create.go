package source

import (
	"encoding/json"
	"errors"
	"net/http"

	"trendpulse/internal/domain/entity"
	"trendpulse/internal/handler/http/respond"
	srcUC "trendpulse/internal/usecase/source"
)

type CreateHandler struct{ Svc srcUC.Service }

// ServeHTTP registers a new source.
// @Summary      Create source
// @Description  Registers a new source
// @Tags         sources
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        source body object true "Source definition"
// @Success      201 "Created"
// @Failure      400 {string} string "Bad request - invalid input"
// @Failure      401 {string} string "Authentication required"
// @Failure      403 {string} string "Forbidden - admin role required"
// @Router       /sources [post]
func (h CreateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		URL         string `json:"url"`
		Kind        string `json:"kind"`
		CountryCode string `json:"country_code"`
		LangDefault string `json:"lang_default"`
		TrustTier   string `json:"trust_tier"`
		Scope       string `json:"scope"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Name == "" || req.URL == "" {
		respond.SafeError(w, http.StatusBadRequest, errors.New("name and url required"))
		return
	}
	err := h.Svc.Create(r.Context(), srcUC.CreateInput{
		Name:        req.Name,
		URL:         req.URL,
		Kind:        entity.SourceKind(req.Kind),
		CountryCode: req.CountryCode,
		LangDefault: req.LangDefault,
		TrustTier:   entity.TrustTier(req.TrustTier),
		Scope:       entity.SourceScope(req.Scope),
	})
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}
