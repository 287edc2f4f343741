// Package catalog discovers which resources exist for a (language,
// owner) pair,
// falling back to a static, hard-coded list when the upstream catalog is
// unavailable. Resolutions are memoized for a short TTL with request
// coalescing so concurrent callers never stampede the upstream API.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cristalhq/hedgedhttp"

	"github.com/klappy/bible-search-engine/pkg/core"
)

// Config controls Resolver behavior, bound from environment variables the
// way the rest of this engine's components are.
type Config struct {
	// UpstreamURL is the catalog search endpoint, queried with
	// ?owner=...&lang=... query parameters.
	UpstreamURL string
	// Timeout bounds the upstream HTTP call; the Resolver always falls
	// back to the static catalog rather than letting this propagate.
	Timeout time.Duration
	// MemoTTL is how long a resolved descriptor list is memoized.
	MemoTTL time.Duration
	// HedgeDelay/HedgeUpto configure the hedged HTTP client the same way
	// pkg/fetch does, so a slow upstream catalog doesn't stall behind one
	// unlucky connection.
	HedgeDelay time.Duration
	HedgeUpto  int
}

// DefaultConfig returns conservative production defaults.
func DefaultConfig() Config {
	return Config{
		UpstreamURL: "https://git.door43.org/api/v1/catalog/search",
		Timeout:     2 * time.Second,
		MemoTTL:     5 * time.Minute,
		HedgeDelay:  100 * time.Millisecond,
		HedgeUpto:   2,
	}
}

// Resolver is the Catalog Resolver.
type Resolver struct {
	client    *http.Client
	cfg       Config
	coalescer *coalescer
}

// New constructs a Resolver. memo may be nil to use an in-process
// MemoryMemo; pass an *ESMemo for a distributed deployment.
func New(cfg Config, memo MemoBackend) (*Resolver, error) {
	if memo == nil {
		memo = NewMemoryMemo()
	}

	client, err := hedgedhttp.NewClient(cfg.HedgeDelay, cfg.HedgeUpto, http.DefaultClient)
	if err != nil {
		return nil, fmt.Errorf("failed to build hedged http client: %w", err)
	}

	return &Resolver{client: client, cfg: cfg, coalescer: newCoalescer(memo)}, nil
}

// catalogEntry is the shape of one record in the upstream catalog's JSON
// response body (a subset of the Door43 Content Service catalog schema).
type catalogEntry struct {
	Owner    string `json:"owner"`
	Name     string `json:"name"`
	Language string `json:"language"`
	Subject  string `json:"subject"`
	Branch   string `json:"branch_or_tag_name"`
}

type catalogResponse struct {
	Data []catalogEntry `json:"data"`
}

// Resolve returns the ordered candidate ResourceDescriptors for a
// (language, owner) pair, annotated with a book filter when reference
// resolves to a canonical book code. It has no error result: when the live
// catalog cannot be used, the static fallback list is returned and the
// switch is reported as a ReasonCatalogFallback entry in the returned
// failures. The descriptor list can be empty.
func (r *Resolver) Resolve(ctx context.Context, language, owner, reference string, includeHelps bool) ([]core.ResourceDescriptor, []core.Failure) {
	key := memoKey(language, owner, includeHelps)

	var failures []core.Failure

	descriptors, err := r.coalescer.getOrFill(ctx, key, r.cfg.MemoTTL, func() ([]core.ResourceDescriptor, error) {
		return r.fetchUpstream(ctx, language, owner, includeHelps)
	})

	if err != nil {
		slog.WarnContext(ctx, "catalog: upstream unavailable, using static fallback", "language", language, "owner", owner, "error", err)

		descriptors = staticFallback(language, owner, includeHelps)
		failures = append(failures, core.Failure{
			ResourceID: "",
			Reason:     string(core.ReasonCatalogFallback),
		})
	}

	if reference == "" {
		return descriptors, failures
	}

	bookCode, ok := ResolveBookCode(reference)
	if !ok {
		// Drop the filter rather than apply an impossible one.
		slog.DebugContext(ctx, "catalog: could not resolve reference to a book code, searching without a filter", "reference", reference)
		return descriptors, failures
	}

	filtered := make([]core.ResourceDescriptor, len(descriptors))
	for i, d := range descriptors {
		d.BookFilter = bookCode
		filtered[i] = d
	}

	return filtered, failures
}

func (r *Resolver) fetchUpstream(ctx context.Context, language, owner string, includeHelps bool) ([]core.ResourceDescriptor, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	url := fmt.Sprintf("%s?owner=%s&lang=%s", r.cfg.UpstreamURL, owner, language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	var body catalogResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode catalog response: %w", err)
	}

	descriptors := make([]core.ResourceDescriptor, 0, len(body.Data))

	for _, entry := range body.Data {
		kind, ok := kindForSubject(entry.Subject)
		if !ok {
			continue
		}

		if !includeHelps && kind != core.KindBible {
			continue
		}

		branch := entry.Branch
		if branch == "" {
			branch = "master"
		}

		descriptors = append(descriptors, core.ResourceDescriptor{
			Owner:         entry.Owner,
			Language:      entry.Language,
			ResourceID:    entry.Name,
			ResourceKind:  kind,
			ArchiveURL:    archiveURL(entry.Owner, entry.Name, branch),
			DefaultBranch: branch,
		})
	}

	if len(descriptors) == 0 {
		return nil, fmt.Errorf("catalog returned zero usable resources for %s/%s", owner, language)
	}

	return descriptors, nil
}
