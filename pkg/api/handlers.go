package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/klappy/bible-search-engine/pkg/core"
)

// healthCheck verifies the server is running and returns 200 OK.
func (a *API) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte("Ok")); err != nil {
		slog.ErrorContext(r.Context(), "Failed to write response", "error", err)

		return
	}
}

// searchPost handles POST /search with a JSON request body.
func (a *API) searchPost(w http.ResponseWriter, r *http.Request) {
	var req core.SearchRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.ErrorContext(r.Context(), "Failed to decode search request", "error", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)

		return
	}

	a.search(w, r, req)
}

// searchGet handles GET /search with query parameters, for small queries.
func (a *API) searchGet(w http.ResponseWriter, r *http.Request) {
	req, err := requestFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	a.search(w, r, req)
}

// search runs the orchestrator and writes the response, mapping
// core.ErrInvalidRequest to 400 and everything else to 500.
func (a *API) search(w http.ResponseWriter, r *http.Request, req core.SearchRequest) {
	resp, err := a.svc.Search(r.Context(), req)

	switch {
	case errors.Is(err, core.ErrInvalidRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "Search failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(r.Context(), "Failed to encode response", "error", err)
	}
}

// requestFromQuery builds a SearchRequest from URL query parameters.
// Unparseable numeric or boolean values are caller errors, reported before
// any work is scheduled.
func requestFromQuery(r *http.Request) (core.SearchRequest, error) {
	q := r.URL.Query()

	req := core.SearchRequest{
		Query:     q.Get("query"),
		Language:  q.Get("language"),
		Owner:     q.Get("owner"),
		Reference: q.Get("reference"),
	}

	if req.Query == "" {
		req.Query = q.Get("q")
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return req, errors.New("limit must be an integer")
		}

		req.Limit = &limit
	}

	if v := q.Get("includeHelps"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, errors.New("includeHelps must be a boolean")
		}

		req.IncludeHelps = &b
	}

	if v := q.Get("fuzzy"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, errors.New("fuzzy must be a number")
		}

		req.Fuzzy = &f
	}

	if v := q.Get("prefix"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, errors.New("prefix must be a boolean")
		}

		req.Prefix = &b
	}

	if v := q.Get("timeoutMs"); v != "" {
		t, err := strconv.Atoi(v)
		if err != nil {
			return req, errors.New("timeoutMs must be an integer")
		}

		req.TimeoutMs = t
	}

	return req, nil
}
