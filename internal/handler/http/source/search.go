package source

import (
	"net/http"

	"trendpulse/internal/handler/http/respond"
	srcUC "trendpulse/internal/usecase/source"
)

type ActiveHandler struct{ Svc srcUC.Service }

// ServeHTTP returns sources currently eligible for ingestion (error_rate
// below the repository's cutoff).
// @Summary      List active sources
// @Description  Returns sources the ingestion dispatcher currently polls
// @Tags         sources
// @Security     BearerAuth
// @Produce      json
// @Success      200 {array} DTO
// @Failure      401 {string} string "Authentication required"
// @Failure      500 {string} string "Server error"
// @Router       /sources/active [get]
func (h ActiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	list, err := h.Svc.ListActive(r.Context())
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]DTO, 0, len(list))
	for _, e := range list {
		out = append(out, toDTO(e))
	}
	respond.JSON(w, http.StatusOK, out)
}
