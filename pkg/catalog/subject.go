package catalog

import "github.com/klappy/bible-search-engine/pkg/core"

// subjectKinds maps the upstream catalog's subject tags to
// the engine's ContentKind. Subjects not present here are skipped.
var subjectKinds = map[string]core.ContentKind{
	"Bible":                       core.KindBible,
	"Aligned Bible":               core.KindBible,
	"TSV Translation Notes":       core.KindNotes,
	"TSV Translation Questions":   core.KindQuestions,
	"TSV Translation Words Links": core.KindWordLinks,
	"Translation Words":           core.KindWords,
	"Translation Academy":         core.KindAcademy,
	"Open Bible Stories":          core.KindOBS,
}

// kindForSubject returns the ContentKind for an upstream subject tag.
func kindForSubject(subject string) (core.ContentKind, bool) {
	kind, ok := subjectKinds[subject]
	return kind, ok
}
