package orchestrator

import (
	"context"
	"log/slog"
	"strings"

	"github.com/klappy/bible-search-engine/pkg/archivereader"
	"github.com/klappy/bible-search-engine/pkg/core"
	"github.com/klappy/bible-search-engine/pkg/searchengine"
)

// runWorker executes the per-resource pipeline of
// fetch → read → index → query → preview → bound. It never returns a Go
// error; any stage failure collapses to a single diagnostic and an empty
// hit list. The one exception is BudgetExceeded, which carries the hits
// scored before the budget fired alongside its diagnostic.
func (o *Orchestrator) runWorker(ctx context.Context, d core.ResourceDescriptor, query string, resolved core.ResolvedOptions) ([]core.Hit, *core.Failure) {
	if ctx.Err() != nil {
		return nil, failure(d, ctxReason(ctx))
	}

	archive, err := o.fetcher.Fetch(ctx, d)
	if err != nil {
		return nil, failure(d, reasonForErr(err))
	}

	caps := archivereader.Caps{MaxFiles: o.opts.MaxFiles, MaxBytesPerFile: o.opts.MaxBytesPerFile}

	entries, contents, skipped, err := archivereader.Read(ctx, archive, d.ResourceKind, d.BookFilter, caps)
	if err != nil {
		return nil, failure(d, reasonForErr(err))
	}

	if len(skipped) > 0 {
		slog.DebugContext(ctx, "worker: skipped archive entries", "resource", d.ResourceID, "count", len(skipped))
	}

	if ctx.Err() != nil {
		return nil, failure(d, ctxReason(ctx))
	}

	documents := o.buildDocuments(d, entries, contents)

	result := searchengine.Search(ctx, documents, query, searchengine.Options{
		Fuzzy:           resolved.Fuzzy,
		Prefix:          resolved.Prefix,
		PreviewMaxChars: o.opts.PreviewMaxChars,
		PerWorkerLimit:  perWorkerLimit(resolved.Limit),
		CPUBudget:       o.opts.CPUBudget,
		K1:              o.opts.K1,
		B:               o.opts.B,
	})

	if ctx.Err() != nil && len(result.Hits) == 0 {
		return nil, failure(d, ctxReason(ctx))
	}

	return result.Hits, result.Diagnostic
}

// buildDocuments materializes the archive entries into indexable
// documents, normalizing markdown-kind content to plain text and dropping
// anything empty after normalization.
func (o *Orchestrator) buildDocuments(d core.ResourceDescriptor, entries []core.ArchiveEntry, contents map[string][]byte) []core.Document {
	documents := make([]core.Document, 0, len(entries))

	for _, entry := range entries {
		raw := contents[entry.Path]

		var content string
		if d.ResourceKind.NormalizesMarkdown() && strings.HasSuffix(strings.ToLower(entry.Path), ".md") {
			content = o.normalizer.ToPlainText(raw)
		} else {
			content = string(raw)
		}

		if strings.TrimSpace(content) == "" {
			continue
		}

		documents = append(documents, core.Document{
			DocID:      d.ResourceID + "::" + entry.Path,
			Content:    content,
			Kind:       d.ResourceKind,
			ResourceID: d.ResourceID,
			Path:       entry.Path,
		})
	}

	return documents
}

// perWorkerLimit caps each worker's hit list at min(limit, 50).
func perWorkerLimit(limit int) int {
	if limit < 50 {
		return limit
	}

	return 50
}

func failure(d core.ResourceDescriptor, reason core.Reason) *core.Failure {
	return &core.Failure{ResourceID: d.ResourceID, Reason: string(reason)}
}
