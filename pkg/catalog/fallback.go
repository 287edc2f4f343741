package catalog

import (
	"fmt"

	"github.com/klappy/bible-search-engine/pkg/core"
)

// fallbackResource is a hard-coded, well-known resource shape used when
// the upstream catalog is unavailable. The suffix is joined with the
// requested language to build the conventional Door43-style resource
// identifier (e.g. "en" + "_ult" -> "en_ult").
type fallbackResource struct {
	suffix string
	kind   core.ContentKind
}

// knownFallbackResources lists the resources the fallback catalog can
// produce for any (language, owner) pair. It intentionally covers only the
// most common unfoldingWord-style resource IDs; an upstream catalog outage
// for an unusual owner may still legitimately return zero descriptors.
var knownFallbackResources = []fallbackResource{
	{suffix: "ult", kind: core.KindBible},
	{suffix: "ust", kind: core.KindBible},
	{suffix: "tn", kind: core.KindNotes},
	{suffix: "tq", kind: core.KindQuestions},
	{suffix: "twl", kind: core.KindWordLinks},
	{suffix: "tw", kind: core.KindWords},
	{suffix: "ta", kind: core.KindAcademy},
	{suffix: "obs", kind: core.KindOBS},
}

// staticFallback builds the fallback descriptor list for a (language, owner)
// pair. It never fails: in the worst case it returns an empty slice, which
// the orchestrator's success rule treats as zero attempted
// resources rather than an error by itself.
func staticFallback(language, owner string, includeHelps bool) []core.ResourceDescriptor {
	descriptors := make([]core.ResourceDescriptor, 0, len(knownFallbackResources))

	for _, r := range knownFallbackResources {
		if !includeHelps && r.kind != core.KindBible {
			continue
		}

		resourceID := fmt.Sprintf("%s_%s", language, r.suffix)

		descriptors = append(descriptors, core.ResourceDescriptor{
			Owner:         owner,
			Language:      language,
			ResourceID:    resourceID,
			ResourceKind:  r.kind,
			ArchiveURL:    archiveURL(owner, resourceID, "master"),
			DefaultBranch: "master",
		})
	}

	return descriptors
}

// archiveURL builds the conventional Door43 Content Service archive URL for
// a repository at a given branch or tag.
func archiveURL(owner, repo, ref string) string {
	return fmt.Sprintf("https://git.door43.org/%s/%s/archive/%s.zip", owner, repo, ref)
}
