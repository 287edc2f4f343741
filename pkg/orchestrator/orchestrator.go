// Package orchestrator is the request-level coordinator: it validates
// the caller's request, resolves the
// candidate resources, fans out one Per-Resource Worker per descriptor
// under a global deadline, merges the workers' hit streams, and assembles
// the final response. It is the only component exposed to callers.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/klappy/bible-search-engine/pkg/core"
)

// CatalogResolver discovers the candidate resources for a request.
// Implemented by catalog.Resolver.
type CatalogResolver interface {
	Resolve(ctx context.Context, language, owner, reference string, includeHelps bool) ([]core.ResourceDescriptor, []core.Failure)
}

// ArchiveFetcher delivers the raw archive bytes for one descriptor.
// Implemented by fetch.Fetcher.
type ArchiveFetcher interface {
	Fetch(ctx context.Context, descriptor core.ResourceDescriptor) ([]byte, error)
}

// Normalizer converts markdown source to indexable plain text. Implemented
// by markdown.Renderer.
type Normalizer interface {
	ToPlainText(src []byte) string
}

// Options tunes the orchestrator and every worker it dispatches. Zero
// values are replaced by the defaults in New.
type Options struct {
	// MaxParallelism bounds in-flight workers per request
	// (SEARCH_MAX_PARALLELISM, recommended 16).
	MaxParallelism int
	// DefaultTimeout applies when a request carries no timeoutMs
	// (SEARCH_TIMEOUT_MS_DEFAULT).
	DefaultTimeout time.Duration
	// CPUBudget is the per-worker indexing budget; the per-worker
	// deadline is min(2×CPUBudget, remaining global deadline).
	CPUBudget time.Duration
	// PreviewMaxChars bounds hit previews (SEARCH_PREVIEW_MAX_CHARS).
	PreviewMaxChars int
	// MaxFiles and MaxBytesPerFile are the Archive Reader caps
	// (SEARCH_MAX_FILES_PER_RESOURCE, per-file 1 MiB recommendation).
	MaxFiles        int
	MaxBytesPerFile int64
	// NormalizeScores divides each worker's scores by that worker's top
	// score before the global merge. Off by default: raw BM25 scores
	// keep per-resource term-rarity signal that normalization would
	// erase. See DESIGN.md for the rationale.
	NormalizeScores bool
	// K1 and B are the BM25 tunables threaded through to every worker.
	K1, B float64
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		MaxParallelism:  16,
		DefaultTimeout:  time.Duration(core.DefaultTimeoutMs) * time.Millisecond,
		CPUBudget:       400 * time.Millisecond,
		PreviewMaxChars: 200,
		MaxFiles:        500,
		MaxBytesPerFile: 1 << 20,
		K1:              1.2,
		B:               0.75,
	}
}

// Orchestrator coordinates one search request end to end.
type Orchestrator struct {
	resolver   CatalogResolver
	fetcher    ArchiveFetcher
	normalizer Normalizer
	opts       Options
}

// New constructs an Orchestrator. Zero fields in opts fall back to
// DefaultOptions values so callers only set what they tune.
func New(resolver CatalogResolver, fetcher ArchiveFetcher, normalizer Normalizer, opts Options) *Orchestrator {
	def := DefaultOptions()

	if opts.MaxParallelism <= 0 {
		opts.MaxParallelism = def.MaxParallelism
	}

	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = def.DefaultTimeout
	}

	if opts.CPUBudget <= 0 {
		opts.CPUBudget = def.CPUBudget
	}

	if opts.PreviewMaxChars <= 0 {
		opts.PreviewMaxChars = def.PreviewMaxChars
	}

	if opts.MaxFiles <= 0 {
		opts.MaxFiles = def.MaxFiles
	}

	if opts.MaxBytesPerFile <= 0 {
		opts.MaxBytesPerFile = def.MaxBytesPerFile
	}

	if opts.K1 <= 0 {
		opts.K1 = def.K1
	}

	if opts.B <= 0 {
		opts.B = def.B
	}

	return &Orchestrator{resolver: resolver, fetcher: fetcher, normalizer: normalizer, opts: opts}
}

// Search executes one request. The only errors it returns are
// core.ErrInvalidRequest (validation, before any work is scheduled) and
// core.ErrInternal (no resolver or fallback produced anything at all);
// every other failure mode becomes a diagnostic in the response.
func (o *Orchestrator) Search(ctx context.Context, req core.SearchRequest) (*core.SearchResponse, error) {
	start := time.Now()

	resolved, err := validate(req, o.opts.DefaultTimeout)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, resolved.Timeout)
	defer cancel()

	descriptors, failures := o.resolver.Resolve(ctx, req.Language, req.Owner, req.Reference, resolved.IncludeHelps)

	fallbackUsed := len(failures) > 0

	if len(descriptors) == 0 && fallbackUsed {
		return nil, fmt.Errorf("%w: catalog and fallback both yielded no resources for %s/%s", core.ErrInternal, req.Language, req.Owner)
	}

	resp := &core.SearchResponse{
		Query:         req.Query,
		Language:      req.Language,
		Owner:         req.Owner,
		ResourceCount: len(descriptors),
		Hits:          []core.Hit{},
		Failures:      failures,
	}

	if resp.Failures == nil {
		resp.Failures = []core.Failure{}
	}

	if resolved.Limit == 0 || len(descriptors) == 0 {
		resp.TookMs = time.Since(start).Milliseconds()
		return resp, nil
	}

	hits, workerFailures := o.fanOut(ctx, descriptors, req.Query, resolved)

	resp.Failures = append(resp.Failures, workerFailures...)

	mergeHits(hits, o.opts.NormalizeScores)

	merged := flatten(hits)

	sortMerged(merged)

	if len(merged) > resolved.Limit {
		merged = merged[:resolved.Limit]
	}

	resp.Hits = merged
	resp.TookMs = time.Since(start).Milliseconds()

	slog.DebugContext(ctx, "search complete",
		"query", req.Query,
		"resources", len(descriptors),
		"hits", len(merged),
		"failures", len(resp.Failures),
		"took_ms", resp.TookMs,
	)

	return resp, nil
}

// validate applies defaults and bounds. Out-of-range options
// are rejected with core.ErrInvalidRequest, except timeoutMs, which is
// clamped to its hard ceiling rather than rejected.
func validate(req core.SearchRequest, defaultTimeout time.Duration) (core.ResolvedOptions, error) {
	var opts core.ResolvedOptions

	if strings.TrimSpace(req.Query) == "" {
		return opts, fmt.Errorf("%w: query must not be empty", core.ErrInvalidRequest)
	}

	if utf8.RuneCountInString(req.Query) > core.MaxQueryChars {
		return opts, fmt.Errorf("%w: query exceeds %d characters", core.ErrInvalidRequest, core.MaxQueryChars)
	}

	if strings.TrimSpace(req.Language) == "" {
		return opts, fmt.Errorf("%w: language must not be empty", core.ErrInvalidRequest)
	}

	if strings.TrimSpace(req.Owner) == "" {
		return opts, fmt.Errorf("%w: owner must not be empty", core.ErrInvalidRequest)
	}

	opts.Limit = core.DefaultLimit
	if req.Limit != nil {
		if *req.Limit < 0 || *req.Limit > core.MaxLimit {
			return opts, fmt.Errorf("%w: limit must be between 0 and %d", core.ErrInvalidRequest, core.MaxLimit)
		}

		opts.Limit = *req.Limit
	}

	opts.IncludeHelps = true
	if req.IncludeHelps != nil {
		opts.IncludeHelps = *req.IncludeHelps
	}

	opts.Fuzzy = core.DefaultFuzzy
	if req.Fuzzy != nil {
		if *req.Fuzzy < 0 || *req.Fuzzy > 1 {
			return opts, fmt.Errorf("%w: fuzzy must be between 0.0 and 1.0", core.ErrInvalidRequest)
		}

		opts.Fuzzy = *req.Fuzzy
	}

	opts.Prefix = true
	if req.Prefix != nil {
		opts.Prefix = *req.Prefix
	}

	switch {
	case req.TimeoutMs < 0:
		return opts, fmt.Errorf("%w: timeoutMs must not be negative", core.ErrInvalidRequest)
	case req.TimeoutMs == 0:
		opts.Timeout = defaultTimeout
	case req.TimeoutMs > core.MaxTimeoutMs:
		opts.Timeout = time.Duration(core.MaxTimeoutMs) * time.Millisecond
	default:
		opts.Timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}

	return opts, nil
}

// workerResult carries one worker's outcome back to the collector; idx is
// the descriptor's position so abandoned workers can be identified.
type workerResult struct {
	idx     int
	hits    []core.Hit
	failure *core.Failure
}

// fanOut dispatches one worker per descriptor with bounded parallelism and
// collects results until every worker reports or the global deadline
// fires. Workers still outstanding at the deadline are abandoned and
// recorded as WorkerTimeout; their goroutines observe cancellation at the
// next suspension point and exit on their own.
func (o *Orchestrator) fanOut(ctx context.Context, descriptors []core.ResourceDescriptor, query string, resolved core.ResolvedOptions) ([][]core.Hit, []core.Failure) {
	results := make(chan workerResult, len(descriptors))

	var g errgroup.Group

	g.SetLimit(o.opts.MaxParallelism)

	deadline, _ := ctx.Deadline()

	for i, d := range descriptors {
		g.Go(func() error {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				results <- workerResult{idx: i, failure: &core.Failure{ResourceID: d.ResourceID, Reason: string(core.ReasonWorkerTimeout)}}
				return nil
			}

			budget := 2 * o.opts.CPUBudget
			if budget > remaining {
				budget = remaining
			}

			workerCtx, cancel := context.WithTimeout(ctx, budget)
			defer cancel()

			hits, failure := o.runWorker(workerCtx, d, query, resolved)

			results <- workerResult{idx: i, hits: hits, failure: failure}

			return nil
		})
	}

	perWorker := make([][]core.Hit, len(descriptors))
	completed := make([]bool, len(descriptors))

	// Failures are appended in completion order.
	var failures []core.Failure

	received := 0

collect:
	for received < len(descriptors) {
		select {
		case r := <-results:
			received++
			completed[r.idx] = true
			perWorker[r.idx] = r.hits

			if r.failure != nil {
				failures = append(failures, *r.failure)
			}
		case <-ctx.Done():
			break collect
		}
	}

	for i, d := range descriptors {
		if !completed[i] {
			failures = append(failures, core.Failure{ResourceID: d.ResourceID, Reason: string(core.ReasonWorkerTimeout)})
		}
	}

	return perWorker, failures
}

// mergeHits optionally rescales each worker's scores by its own maximum so
// cross-worker scores share a [0,1] basis. Mutates in place.
func mergeHits(perWorker [][]core.Hit, normalize bool) {
	if !normalize {
		return
	}

	for _, hits := range perWorker {
		if len(hits) == 0 {
			continue
		}

		// Worker hit lists arrive sorted, so the first score is the max.
		top := hits[0].Score
		if top <= 0 {
			continue
		}

		for i := range hits {
			hits[i].Score /= top
		}
	}
}

func flatten(perWorker [][]core.Hit) []core.Hit {
	total := 0
	for _, hits := range perWorker {
		total += len(hits)
	}

	merged := make([]core.Hit, 0, total)
	for _, hits := range perWorker {
		merged = append(merged, hits...)
	}

	return merged
}

// kindPriority is the tie-break order for equal scores: scripture
// outranks helps, and helps rank in their conventional study order.
var kindPriority = map[string]int{
	string(core.KindBible):     0,
	string(core.KindNotes):     1,
	string(core.KindQuestions): 2,
	string(core.KindWordLinks): 3,
	string(core.KindWords):     4,
	string(core.KindAcademy):   5,
	string(core.KindOBS):       6,
}

// sortMerged applies the global ordering: score descending, then
// resourceKind priority, then lexicographic path.
func sortMerged(hits []core.Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}

		pi, pj := kindPriority[hits[i].ResourceKind], kindPriority[hits[j].ResourceKind]
		if pi != pj {
			return pi < pj
		}

		return hits[i].Path < hits[j].Path
	})
}

// reasonForErr maps a worker-stage Go error to its diagnostic Reason,
// defaulting to FetchTransient for anything unclassified.
func reasonForErr(err error) core.Reason {
	var fe *core.FetchError
	if errors.As(err, &fe) {
		return fe.Reason
	}

	var se *core.StageError
	if errors.As(err, &se) {
		return se.Reason
	}

	return core.ReasonFetchTransient
}

// ctxReason distinguishes a per-worker deadline from a request-wide
// cancellation for diagnostic purposes.
func ctxReason(ctx context.Context) core.Reason {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return core.ReasonWorkerTimeout
	}

	return core.ReasonCancelled
}
