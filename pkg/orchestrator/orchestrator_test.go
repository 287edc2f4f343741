package orchestrator

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klappy/bible-search-engine/pkg/content/markdown"
	"github.com/klappy/bible-search-engine/pkg/core"
)

type fakeResolver struct {
	descriptors []core.ResourceDescriptor
	failures    []core.Failure
}

func (r *fakeResolver) Resolve(_ context.Context, _, _, _ string, _ bool) ([]core.ResourceDescriptor, []core.Failure) {
	return r.descriptors, r.failures
}

type fakeFetcher struct {
	archives map[string][]byte
	errs     map[string]error
	delay    time.Duration
}

func (f *fakeFetcher) Fetch(ctx context.Context, d core.ResourceDescriptor) ([]byte, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, core.NewFetchError(core.ReasonFetchTimeout, ctx.Err())
		}
	}

	if err, ok := f.errs[d.ResourceID]; ok {
		return nil, err
	}

	archive, ok := f.archives[d.ResourceID]
	if !ok {
		return nil, core.NewFetchError(core.ReasonFetchNotFound, errors.New("no such archive"))
	}

	return archive, nil
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer

	w := zip.NewWriter(&buf)

	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)

		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())

	return buf.Bytes()
}

func descriptor(id string, kind core.ContentKind) core.ResourceDescriptor {
	return core.ResourceDescriptor{
		Owner:        "unfoldingWord",
		Language:     "en",
		ResourceID:   id,
		ResourceKind: kind,
		ArchiveURL:   "https://example.test/" + id + ".zip",
	}
}

func newTestOrchestrator(resolver CatalogResolver, fetcher ArchiveFetcher) *Orchestrator {
	return New(resolver, fetcher, markdown.New(), Options{})
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }

func TestSearch_ReturnsRankedHitsAcrossResources(t *testing.T) {
	resolver := &fakeResolver{descriptors: []core.ResourceDescriptor{
		descriptor("en_ult", core.KindBible),
		descriptor("en_tw", core.KindWords),
	}}
	fetcher := &fakeFetcher{archives: map[string][]byte{
		"en_ult": buildZip(t, map[string]string{
			"43-JHN.usfm": "\\v 16 For God so loved the world that he gave grace upon grace",
		}),
		"en_tw": buildZip(t, map[string]string{
			"bible/kt/grace.md": "# grace\n\nGrace is favor given to someone who has not earned it. Grace appears throughout scripture.",
		}),
	}}

	o := newTestOrchestrator(resolver, fetcher)

	resp, err := o.Search(context.Background(), core.SearchRequest{
		Query:    "grace",
		Language: "en",
		Owner:    "unfoldingWord",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, resp.ResourceCount)
	require.NotEmpty(t, resp.Hits)
	assert.Empty(t, resp.Failures)

	for i := 1; i < len(resp.Hits); i++ {
		assert.GreaterOrEqual(t, resp.Hits[i-1].Score, resp.Hits[i].Score)
	}

	resources := make(map[string]bool)
	for _, h := range resp.Hits {
		assert.Positive(t, h.Score)
		assert.NotEmpty(t, h.Preview)
		resources[h.ResourceID] = true
	}

	assert.True(t, resources["en_ult"])
	assert.True(t, resources["en_tw"])
}

func TestSearch_ValidationRejects(t *testing.T) {
	o := newTestOrchestrator(&fakeResolver{}, &fakeFetcher{})

	tests := []struct {
		name string
		req  core.SearchRequest
	}{
		{"empty query", core.SearchRequest{Language: "en", Owner: "unfoldingWord"}},
		{"whitespace query", core.SearchRequest{Query: "   ", Language: "en", Owner: "unfoldingWord"}},
		{"missing language", core.SearchRequest{Query: "grace", Owner: "unfoldingWord"}},
		{"missing owner", core.SearchRequest{Query: "grace", Language: "en"}},
		{"limit above max", core.SearchRequest{Query: "grace", Language: "en", Owner: "o", Limit: intPtr(201)}},
		{"negative limit", core.SearchRequest{Query: "grace", Language: "en", Owner: "o", Limit: intPtr(-1)}},
		{"fuzzy above one", core.SearchRequest{Query: "grace", Language: "en", Owner: "o", Fuzzy: floatPtr(1.5)}},
		{"negative timeout", core.SearchRequest{Query: "grace", Language: "en", Owner: "o", TimeoutMs: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.Search(context.Background(), tt.req)
			assert.ErrorIs(t, err, core.ErrInvalidRequest)
		})
	}
}

func TestSearch_LongQueryRejected(t *testing.T) {
	o := newTestOrchestrator(&fakeResolver{}, &fakeFetcher{})

	long := make([]byte, core.MaxQueryChars+1)
	for i := range long {
		long[i] = 'a'
	}

	_, err := o.Search(context.Background(), core.SearchRequest{Query: string(long), Language: "en", Owner: "o"})
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
}

func TestSearch_ZeroLimitReturnsEmptyHits(t *testing.T) {
	resolver := &fakeResolver{descriptors: []core.ResourceDescriptor{descriptor("en_ult", core.KindBible)}}

	o := newTestOrchestrator(resolver, &fakeFetcher{})

	resp, err := o.Search(context.Background(), core.SearchRequest{
		Query:    "grace",
		Language: "en",
		Owner:    "unfoldingWord",
		Limit:    intPtr(0),
	})
	require.NoError(t, err)

	assert.Empty(t, resp.Hits)
	assert.Equal(t, 1, resp.ResourceCount)
}

func TestSearch_LimitTruncates(t *testing.T) {
	files := make(map[string]string)
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		files["bible/kt/"+name+".md"] = "grace and more grace in document " + name
	}

	resolver := &fakeResolver{descriptors: []core.ResourceDescriptor{descriptor("en_tw", core.KindWords)}}
	fetcher := &fakeFetcher{archives: map[string][]byte{"en_tw": buildZip(t, files)}}

	o := newTestOrchestrator(resolver, fetcher)

	resp, err := o.Search(context.Background(), core.SearchRequest{
		Query:    "grace",
		Language: "en",
		Owner:    "unfoldingWord",
		Limit:    intPtr(3),
	})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 3)

	// Equal scores fall back to lexicographic path order.
	for i := 1; i < len(resp.Hits); i++ {
		if resp.Hits[i-1].Score == resp.Hits[i].Score {
			assert.Less(t, resp.Hits[i-1].Path, resp.Hits[i].Path)
		}
	}
}

func TestSearch_PartialFailureStillSucceeds(t *testing.T) {
	resolver := &fakeResolver{descriptors: []core.ResourceDescriptor{
		descriptor("en_ult", core.KindBible),
		descriptor("en_tn", core.KindNotes),
	}}
	fetcher := &fakeFetcher{
		archives: map[string][]byte{
			"en_ult": buildZip(t, map[string]string{"43-JHN.usfm": "\\v 1 grace and truth"}),
		},
		errs: map[string]error{
			"en_tn": core.NewFetchError(core.ReasonFetchNotFound, errors.New("404")),
		},
	}

	o := newTestOrchestrator(resolver, fetcher)

	resp, err := o.Search(context.Background(), core.SearchRequest{
		Query:    "grace",
		Language: "en",
		Owner:    "unfoldingWord",
	})
	require.NoError(t, err)

	require.NotEmpty(t, resp.Hits)
	require.Len(t, resp.Failures, 1)
	assert.Equal(t, "en_tn", resp.Failures[0].ResourceID)
	assert.Equal(t, string(core.ReasonFetchNotFound), resp.Failures[0].Reason)
}

func TestSearch_CorruptArchiveRecordedAsFailure(t *testing.T) {
	resolver := &fakeResolver{descriptors: []core.ResourceDescriptor{descriptor("en_ult", core.KindBible)}}
	fetcher := &fakeFetcher{archives: map[string][]byte{"en_ult": []byte("not a zip archive")}}

	o := newTestOrchestrator(resolver, fetcher)

	resp, err := o.Search(context.Background(), core.SearchRequest{
		Query:    "grace",
		Language: "en",
		Owner:    "unfoldingWord",
	})
	require.NoError(t, err)

	assert.Empty(t, resp.Hits)
	require.Len(t, resp.Failures, 1)
	assert.Equal(t, string(core.ReasonArchiveCorrupt), resp.Failures[0].Reason)
}

func TestSearch_SlowResourceTimesOutOthersSucceed(t *testing.T) {
	resolver := &fakeResolver{descriptors: []core.ResourceDescriptor{
		descriptor("en_ult", core.KindBible),
		descriptor("en_slow", core.KindNotes),
	}}

	slowFetcher := &fetcherFunc{fn: func(ctx context.Context, d core.ResourceDescriptor) ([]byte, error) {
		if d.ResourceID == "en_slow" {
			select {
			case <-time.After(10 * time.Second):
			case <-ctx.Done():
				return nil, core.NewFetchError(core.ReasonFetchTimeout, ctx.Err())
			}
		}

		return buildZip(t, map[string]string{"43-JHN.usfm": "\\v 1 grace and truth"}), nil
	}}

	o := newTestOrchestrator(resolver, slowFetcher)

	start := time.Now()

	resp, err := o.Search(context.Background(), core.SearchRequest{
		Query:     "grace",
		Language:  "en",
		Owner:     "unfoldingWord",
		TimeoutMs: 300,
	})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	require.NotEmpty(t, resp.Hits)

	for _, h := range resp.Hits {
		assert.Equal(t, "en_ult", h.ResourceID)
	}

	require.NotEmpty(t, resp.Failures)

	reasons := map[string]bool{
		string(core.ReasonWorkerTimeout): true,
		string(core.ReasonFetchTimeout):  true,
	}
	assert.True(t, reasons[resp.Failures[0].Reason], "unexpected reason %q", resp.Failures[0].Reason)
}

type fetcherFunc struct {
	fn func(context.Context, core.ResourceDescriptor) ([]byte, error)
}

func (f *fetcherFunc) Fetch(ctx context.Context, d core.ResourceDescriptor) ([]byte, error) {
	return f.fn(ctx, d)
}

func TestSearch_InternalErrorWhenFallbackYieldsNothing(t *testing.T) {
	resolver := &fakeResolver{
		descriptors: nil,
		failures:    []core.Failure{{Reason: string(core.ReasonCatalogFallback)}},
	}

	o := newTestOrchestrator(resolver, &fakeFetcher{})

	_, err := o.Search(context.Background(), core.SearchRequest{
		Query:    "grace",
		Language: "xx",
		Owner:    "nobody",
	})
	assert.ErrorIs(t, err, core.ErrInternal)
}

func TestSearch_EmptyCatalogWithoutFallbackIsSuccess(t *testing.T) {
	o := newTestOrchestrator(&fakeResolver{}, &fakeFetcher{})

	resp, err := o.Search(context.Background(), core.SearchRequest{
		Query:    "grace",
		Language: "en",
		Owner:    "unfoldingWord",
	})
	require.NoError(t, err)

	assert.Empty(t, resp.Hits)
	assert.Zero(t, resp.ResourceCount)
}

func TestSearch_CatalogFallbackRecordedInformationally(t *testing.T) {
	resolver := &fakeResolver{
		descriptors: []core.ResourceDescriptor{descriptor("en_ult", core.KindBible)},
		failures:    []core.Failure{{Reason: string(core.ReasonCatalogFallback)}},
	}
	fetcher := &fakeFetcher{archives: map[string][]byte{
		"en_ult": buildZip(t, map[string]string{"43-JHN.usfm": "\\v 1 grace and truth"}),
	}}

	o := newTestOrchestrator(resolver, fetcher)

	resp, err := o.Search(context.Background(), core.SearchRequest{
		Query:    "grace",
		Language: "en",
		Owner:    "unfoldingWord",
	})
	require.NoError(t, err)

	require.NotEmpty(t, resp.Hits)

	var sawFallback bool
	for _, f := range resp.Failures {
		if f.Reason == string(core.ReasonCatalogFallback) {
			sawFallback = true
		}
	}

	assert.True(t, sawFallback)
}

func TestSearch_FuzzyQueryScoresBelowExact(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"bible/kt/grace.md": "# grace\n\nGrace is favor given freely.",
	})

	resolver := &fakeResolver{descriptors: []core.ResourceDescriptor{descriptor("en_tw", core.KindWords)}}
	fetcher := &fakeFetcher{archives: map[string][]byte{"en_tw": archive}}

	o := newTestOrchestrator(resolver, fetcher)

	exact, err := o.Search(context.Background(), core.SearchRequest{
		Query: "grace", Language: "en", Owner: "unfoldingWord",
	})
	require.NoError(t, err)
	require.NotEmpty(t, exact.Hits)

	fuzzy, err := o.Search(context.Background(), core.SearchRequest{
		Query: "graec", Language: "en", Owner: "unfoldingWord", Fuzzy: floatPtr(0.3),
	})
	require.NoError(t, err)
	require.NotEmpty(t, fuzzy.Hits)

	assert.Contains(t, fuzzy.Hits[0].Preview, "race")
	assert.Less(t, fuzzy.Hits[0].Score, exact.Hits[0].Score)
}

func TestSearch_IdempotentHits(t *testing.T) {
	resolver := &fakeResolver{descriptors: []core.ResourceDescriptor{descriptor("en_tw", core.KindWords)}}
	fetcher := &fakeFetcher{archives: map[string][]byte{
		"en_tw": buildZip(t, map[string]string{
			"bible/kt/grace.md": "grace upon grace",
			"bible/kt/mercy.md": "mercy follows grace",
		}),
	}}

	o := newTestOrchestrator(resolver, fetcher)

	req := core.SearchRequest{Query: "grace", Language: "en", Owner: "unfoldingWord"}

	first, err := o.Search(context.Background(), req)
	require.NoError(t, err)

	second, err := o.Search(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Hits, second.Hits)
}

func TestSearch_NormalizeScoresRescalesPerWorker(t *testing.T) {
	resolver := &fakeResolver{descriptors: []core.ResourceDescriptor{
		descriptor("en_ult", core.KindBible),
		descriptor("en_tw", core.KindWords),
	}}
	fetcher := &fakeFetcher{archives: map[string][]byte{
		"en_ult": buildZip(t, map[string]string{"43-JHN.usfm": "\\v 1 grace"}),
		"en_tw":  buildZip(t, map[string]string{"bible/kt/grace.md": "grace grace grace"}),
	}}

	o := New(resolver, fetcher, markdown.New(), Options{NormalizeScores: true})

	resp, err := o.Search(context.Background(), core.SearchRequest{
		Query: "grace", Language: "en", Owner: "unfoldingWord",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Hits)

	for _, h := range resp.Hits {
		assert.LessOrEqual(t, h.Score, 1.0)
		assert.Positive(t, h.Score)
	}
}

func TestValidate_Defaults(t *testing.T) {
	resolved, err := validate(core.SearchRequest{Query: "grace", Language: "en", Owner: "o"}, 2500*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, core.DefaultLimit, resolved.Limit)
	assert.True(t, resolved.IncludeHelps)
	assert.True(t, resolved.Prefix)
	assert.InDelta(t, core.DefaultFuzzy, resolved.Fuzzy, 1e-9)
	assert.Equal(t, 2500*time.Millisecond, resolved.Timeout)
}

func TestValidate_TimeoutClampedToCeiling(t *testing.T) {
	resolved, err := validate(core.SearchRequest{Query: "grace", Language: "en", Owner: "o", TimeoutMs: 99999}, time.Second)
	require.NoError(t, err)

	assert.Equal(t, time.Duration(core.MaxTimeoutMs)*time.Millisecond, resolved.Timeout)
}

func TestValidate_OptionOverrides(t *testing.T) {
	resolved, err := validate(core.SearchRequest{
		Query:        "grace",
		Language:     "en",
		Owner:        "o",
		Limit:        intPtr(5),
		IncludeHelps: boolPtr(false),
		Fuzzy:        floatPtr(0.5),
		Prefix:       boolPtr(false),
		TimeoutMs:    1000,
	}, time.Second)
	require.NoError(t, err)

	assert.Equal(t, 5, resolved.Limit)
	assert.False(t, resolved.IncludeHelps)
	assert.False(t, resolved.Prefix)
	assert.InDelta(t, 0.5, resolved.Fuzzy, 1e-9)
	assert.Equal(t, time.Second, resolved.Timeout)
}

func TestSortMerged_KindPriorityBreaksTies(t *testing.T) {
	hits := []core.Hit{
		{ResourceID: "en_tw", ResourceKind: string(core.KindWords), Path: "a.md", Score: 1.0},
		{ResourceID: "en_ult", ResourceKind: string(core.KindBible), Path: "b.usfm", Score: 1.0},
		{ResourceID: "en_tn", ResourceKind: string(core.KindNotes), Path: "c.tsv", Score: 2.0},
	}

	sortMerged(hits)

	assert.Equal(t, "en_tn", hits[0].ResourceID)
	assert.Equal(t, "en_ult", hits[1].ResourceID)
	assert.Equal(t, "en_tw", hits[2].ResourceID)
}
