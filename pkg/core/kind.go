// Package core provides the domain types shared across the search engine:
// resource descriptors, archive entries, documents, hits, and the request/
// response shapes of the public search contract.
package core

// ContentKind identifies the category of a searchable resource. It uniquely
// determines the set of permitted archive file extensions and the preview
// strategy used when extracting a snippet around a match.
type ContentKind string

const (
	KindBible     ContentKind = "bible"
	KindNotes     ContentKind = "notes"
	KindQuestions ContentKind = "questions"
	KindWordLinks ContentKind = "word-links"
	KindWords     ContentKind = "words"
	KindAcademy   ContentKind = "academy"
	KindOBS       ContentKind = "obs"
)

// kindRule describes the file extensions a ContentKind accepts and whether
// its documents should be normalized through the markdown plain-text
// converter before indexing.
type kindRule struct {
	extensions []string
	markdown   bool
}

// kindRules is a tagged-variant jump table: the worker pipeline itself
// never branches on ContentKind, only extension whitelisting and
// plain-text normalization do.
var kindRules = map[ContentKind]kindRule{
	KindBible:     {extensions: []string{".usfm", ".usfm3"}},
	KindNotes:     {extensions: []string{".tsv", ".md"}},
	KindQuestions: {extensions: []string{".tsv", ".md"}},
	KindWordLinks: {extensions: []string{".tsv", ".md"}},
	KindWords:     {extensions: []string{".md"}, markdown: true},
	KindAcademy:   {extensions: []string{".md"}, markdown: true},
	KindOBS:       {extensions: []string{".md"}, markdown: true},
}

// AllowsExtension reports whether ext (including the leading dot, any case)
// is permitted for documents of this kind. Unknown kinds allow nothing.
func (k ContentKind) AllowsExtension(ext string) bool {
	rule, ok := kindRules[k]
	if !ok {
		return false
	}

	for _, allowed := range rule.extensions {
		if allowed == ext {
			return true
		}
	}

	return false
}

// NormalizesMarkdown reports whether documents of this kind should be
// converted from markdown to plain text before indexing and preview
// extraction.
func (k ContentKind) NormalizesMarkdown() bool {
	return kindRules[k].markdown
}

// Valid reports whether k is one of the known resource kinds.
func (k ContentKind) Valid() bool {
	_, ok := kindRules[k]
	return ok
}
