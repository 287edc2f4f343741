package fetch_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klappy/bible-search-engine/pkg/cache"
	"github.com/klappy/bible-search-engine/pkg/core"
	"github.com/klappy/bible-search-engine/pkg/fetch"
)

func testConfig() fetch.Config {
	cfg := fetch.DefaultConfig()
	cfg.HedgeDelay = 10 * time.Millisecond

	return cfg
}

func TestFetcher_Fetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("archive-bytes"))
	}))
	defer server.Close()

	f, err := fetch.New(cache.NewMemory(), testConfig())
	require.NoError(t, err)

	data, err := f.Fetch(t.Context(), core.ResourceDescriptor{ResourceID: "r1", ArchiveURL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, []byte("archive-bytes"), data)
}

func TestFetcher_Fetch_CachesResult(t *testing.T) {
	var hits int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte("archive-bytes"))
	}))
	defer server.Close()

	f, err := fetch.New(cache.NewMemory(), testConfig())
	require.NoError(t, err)

	descriptor := core.ResourceDescriptor{ResourceID: "r1", ArchiveURL: server.URL}

	_, err = f.Fetch(t.Context(), descriptor)
	require.NoError(t, err)

	_, err = f.Fetch(t.Context(), descriptor)
	require.NoError(t, err)

	assert.Equal(t, 1, hits)
}

func TestFetcher_Fetch_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f, err := fetch.New(cache.NewMemory(), testConfig())
	require.NoError(t, err)

	_, err = f.Fetch(t.Context(), core.ResourceDescriptor{ResourceID: "r1", ArchiveURL: server.URL})
	require.Error(t, err)

	var fetchErr *core.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, core.ReasonFetchNotFound, fetchErr.Reason)
}

func TestFetcher_Fetch_TooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 1024))
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.MaxBytes = 100

	f, err := fetch.New(cache.NewMemory(), cfg)
	require.NoError(t, err)

	_, err = f.Fetch(t.Context(), core.ResourceDescriptor{ResourceID: "r1", ArchiveURL: server.URL})
	require.Error(t, err)

	var fetchErr *core.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, core.ReasonFetchTooLarge, fetchErr.Reason)
}

func TestFetcher_Fetch_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f, err := fetch.New(cache.NewMemory(), testConfig())
	require.NoError(t, err)

	_, err = f.Fetch(t.Context(), core.ResourceDescriptor{ResourceID: "r1", ArchiveURL: server.URL})
	require.Error(t, err)

	var fetchErr *core.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, core.ReasonFetchTransient, fetchErr.Reason)
}

func TestFetcher_Fetch_NoopCacheAlwaysRefetches(t *testing.T) {
	var hits int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte("archive-bytes"))
	}))
	defer server.Close()

	f, err := fetch.New(cache.NoopCache{}, testConfig())
	require.NoError(t, err)

	descriptor := core.ResourceDescriptor{ResourceID: "r1", ArchiveURL: server.URL}

	_, err = f.Fetch(t.Context(), descriptor)
	require.NoError(t, err)

	_, err = f.Fetch(t.Context(), descriptor)
	require.NoError(t, err)

	assert.Equal(t, 2, hits)
}
