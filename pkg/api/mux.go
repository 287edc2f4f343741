package api

import (
	"net/http"

	"github.com/klappy/bible-search-engine/pkg/api/middleware"
)

// newMux creates and returns a new HTTP ServeMux with the API's routes registered.
func (a *API) newMux() *http.ServeMux {
	mux := http.NewServeMux()

	withReqID := middleware.NewReqID()

	// Health check.
	mux.Handle("GET /livez", middleware.Use(a.healthCheck, withReqID))

	// Search contract: POST with a JSON body, GET via query
	// parameters for small queries.
	mux.Handle("POST /search", middleware.Use(a.searchPost, withReqID))
	mux.Handle("GET /search", middleware.Use(a.searchGet, withReqID))

	return mux
}
