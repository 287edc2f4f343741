package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klappy/bible-search-engine/pkg/core"
)

func TestSearch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req core.SearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "grace", req.Query)

		w.Header().Set("Content-Type", "application/json")

		resp := core.SearchResponse{
			Query:         req.Query,
			ResourceCount: 1,
			Hits:          []core.Hit{{ResourceID: "en_tw", Score: 1.2, Preview: "...grace..."}},
			Failures:      []core.Failure{},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := New(srv.URL)

	resp, err := c.Search(t.Context(), core.SearchRequest{Query: "grace", Language: "en", Owner: "unfoldingWord"})
	require.NoError(t, err)

	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "en_tw", resp.Hits[0].ResourceID)
}

func TestSearch_TrimsTrailingSlash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)

		_, err := w.Write([]byte(`{"hits":[],"failures":[]}`))
		require.NoError(t, err)
	}))
	defer srv.Close()

	c := New(srv.URL + "/")

	_, err := c.Search(t.Context(), core.SearchRequest{Query: "grace"})
	assert.NoError(t, err)
}

func TestSearch_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "query must not be empty", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(srv.URL)

	_, err := c.Search(t.Context(), core.SearchRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 400")
	assert.Contains(t, err.Error(), "query must not be empty")
}

func TestSearch_ServerDown(t *testing.T) {
	c := New("http://localhost:1")

	_, err := c.Search(t.Context(), core.SearchRequest{Query: "grace"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP request failed")
}

func TestSearch_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, err := w.Write([]byte("{not json"))
		require.NoError(t, err)
	}))
	defer srv.Close()

	c := New(srv.URL)

	_, err := c.Search(t.Context(), core.SearchRequest{Query: "grace"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse response")
}
