package source

import (
	"net/http"

	"trendpulse/internal/handler/http/respond"
	srcUC "trendpulse/internal/usecase/source"
)

type ListHandler struct{ Svc srcUC.Service }

// ServeHTTP returns every registered source.
// @Summary      List sources
// @Description  Returns all registered sources
// @Tags         sources
// @Security     BearerAuth
// @Produce      json
// @Success      200 {array} DTO
// @Failure      401 {string} string "Authentication required"
// @Failure      500 {string} string "Server error"
// @Router       /sources [get]
func (h ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	list, err := h.Svc.List(r.Context())
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
