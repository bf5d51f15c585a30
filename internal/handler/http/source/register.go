package source

import (
	"net/http"

	"trendpulse/internal/handler/http/auth"
	"trendpulse/internal/handler/http/middleware"
	srcUC "trendpulse/internal/usecase/source"
)

// Register registers all source-related HTTP handlers with the given mux.
// It sets up routes for listing, creating, updating, and deleting sources.
// Protected routes (create, update, delete) require authentication via the
// auth middleware. The active-sources listing is rate limited since it is
// also polled by operational tooling.
func Register(mux *http.ServeMux, svc srcUC.Service, searchRateLimiter *middleware.RateLimiter) {
	mux.Handle("GET    /sources", ListHandler{svc})
	mux.Handle("GET    /sources/active", searchRateLimiter.Middleware(ActiveHandler{svc}))

	mux.Handle("POST   /sources", auth.Authz(CreateHandler{svc}))
	mux.Handle("PUT    /sources/", auth.Authz(UpdateHandler{svc}))
	mux.Handle("DELETE /sources/", auth.Authz(DeleteHandler{svc}))
}
