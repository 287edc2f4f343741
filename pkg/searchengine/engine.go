// Package searchengine implements the ranking core of the Per-Resource
// Worker: an ephemeral BM25 index built fresh per request,
// disjunctive multi-term scoring with fuzzy and prefix contributions,
// contextual preview extraction, and a CPU-equivalent indexing budget.
// Fetching and archive reading are the responsibility of pkg/fetch,
// pkg/archivereader, and the worker that composes them (pkg/orchestrator);
// this package only ever sees already-extracted core.Document values.
package searchengine

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/klappy/bible-search-engine/pkg/core"
)

// Options tunes one Search call, threaded through from the orchestrator's
// core.ResolvedOptions plus the BM25 and budget parameters.
type Options struct {
	Fuzzy           float64
	Prefix          bool
	PreviewMaxChars int
	PerWorkerLimit  int
	CPUBudget       time.Duration
	K1              float64
	B               float64
}

// DefaultOptions returns the production defaults (k1=1.2, b=0.75 are
// the conventional BM25 parameters).
func DefaultOptions() Options {
	return Options{
		Fuzzy:           core.DefaultFuzzy,
		Prefix:          true,
		PreviewMaxChars: 200,
		PerWorkerLimit:  50,
		CPUBudget:       400 * time.Millisecond,
		K1:              1.2,
		B:               0.75,
	}
}

// Result is the Per-Resource Worker's output: a bounded,
// sorted hit list plus at most one diagnostic. Diagnostic is non-nil only
// for BudgetExceeded, which -- unlike every other worker-stage failure --
// still carries whatever hits were scored before the budget ran out.
type Result struct {
	Hits       []core.Hit
	Diagnostic *core.Failure
}

// Search builds an ephemeral BM25 index over documents, executes query
// against it, extracts previews, and returns a bounded, deterministically
// sorted hit list. It never returns a Go error: indexing and querying over
// an in-memory document slice has no failure mode other than running
// out of budget.
func Search(ctx context.Context, documents []core.Document, query string, opts Options) Result {
	queryTerms := dedupTerms(Tokenize(query))
	if len(queryTerms) == 0 {
		return Result{}
	}

	idx := NewIndex(opts.K1, opts.B)

	start := time.Now()

	var budgetExceeded bool

	for i, doc := range documents {
		if ctx.Err() != nil {
			break
		}

		if opts.CPUBudget > 0 && time.Since(start) > opts.CPUBudget {
			budgetExceeded = true
			break
		}

		content := strings.TrimSpace(doc.Content)
		if content == "" {
			continue
		}

		idx.Add(i, doc.Content)
	}

	scored := idx.Query(queryTerms, opts.Fuzzy, opts.Prefix)

	hits := make([]core.Hit, 0, len(scored))

	for _, s := range scored {
		doc := documents[s.DocIdx]

		matched := make([]string, 0, len(s.MatchedTerm))
		for _, term := range s.MatchedTerm {
			matched = append(matched, term)
		}

		hits = append(hits, core.Hit{
			ResourceID:   doc.ResourceID,
			ResourceKind: string(doc.Kind),
			Path:         doc.Path,
			Score:        s.Score,
			Preview:      ExtractPreview(doc.Content, matched, opts.PreviewMaxChars),
		})
	}

	sortHits(hits)

	limit := opts.PerWorkerLimit
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	result := Result{Hits: hits}

	if budgetExceeded {
		resourceID := ""
		if len(documents) > 0 {
			resourceID = documents[0].ResourceID
		}

		result.Diagnostic = &core.Failure{ResourceID: resourceID, Reason: string(core.ReasonBudgetExceeded)}
	}

	return result
}

// sortHits applies the per-worker tie-break from score
// descending, then shorter path, then lexicographic path.
func sortHits(hits []core.Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}

		if len(hits[i].Path) != len(hits[j].Path) {
			return len(hits[i].Path) < len(hits[j].Path)
		}

		return hits[i].Path < hits[j].Path
	})
}

// dedupTerms returns the distinct lowercase terms from tokens, preserving
// first-seen order so disjunctive scoring never double-counts a repeated
// query word.
func dedupTerms(tokens []Token) []string {
	seen := make(map[string]struct{}, len(tokens))
	terms := make([]string, 0, len(tokens))

	for _, t := range tokens {
		if _, ok := seen[t.Term]; ok {
			continue
		}

		seen[t.Term] = struct{}{}

		terms = append(terms, t.Term)
	}

	return terms
}
