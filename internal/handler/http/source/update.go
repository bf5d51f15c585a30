package source

import (
	"encoding/json"
	"errors"
	"net/http"

	"trendpulse/internal/domain/entity"
	"trendpulse/internal/handler/http/pathutil"
	"trendpulse/internal/handler/http/respond"
	srcUC "trendpulse/internal/usecase/source"
)

type UpdateHandler struct{ Svc srcUC.Service }

// ServeHTTP updates an existing source. Empty string fields are left
// unchanged.
// @Summary      Update source
// @Description  Updates an existing source
// @Tags         sources
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id path int true "Source ID"
// @Param        source body object true "Fields to update"
// @Success      204 "No Content"
// @Failure      400 {string} string "Bad request - invalid input"
// @Failure      401 {string} string "Authentication required"
// @Failure      403 {string} string "Forbidden - admin role required"
// @Failure      404 {string} string "Not found - source not found"
// @Router       /sources/{id} [put]
func (h UpdateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ExtractID(r.URL.Path, "/sources/")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

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

	err = h.Svc.Update(r.Context(), srcUC.UpdateInput{
		ID:          id,
		Name:        req.Name,
		URL:         req.URL,
		Kind:        entity.SourceKind(req.Kind),
		CountryCode: req.CountryCode,
		LangDefault: req.LangDefault,
		TrustTier:   entity.TrustTier(req.TrustTier),
		Scope:       entity.SourceScope(req.Scope),
	})
	if err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, srcUC.ErrSourceNotFound) {
			code = http.StatusNotFound
		}
		respond.SafeError(w, code, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
