package catalog

import (
	_ "embed"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed books.yaml
var booksYAML []byte

// bookEntry is one canonical book record as stored in books.yaml.
type bookEntry struct {
	Code    string   `yaml:"code"`
	Aliases []string `yaml:"aliases"`
}

// bookIndex maps any lowercase alias (including the canonical code itself)
// to its canonical three-letter USFM book code.
var bookIndex = buildBookIndex()

func buildBookIndex() map[string]string {
	var entries []bookEntry
	if err := yaml.Unmarshal(booksYAML, &entries); err != nil {
		// The manifest is a compile-time asset; a parse failure here means
		// the embedded file is malformed, not a runtime condition.
		panic("catalog: failed to parse books.yaml: " + err.Error())
	}

	idx := make(map[string]string, len(entries)*2)

	for _, e := range entries {
		idx[strings.ToLower(e.Code)] = e.Code
		for _, alias := range e.Aliases {
			idx[strings.ToLower(alias)] = e.Code
		}
	}

	return idx
}

// ResolveBookCode maps a free-form reference string (e.g. "John 3:16",
// "jhn", "1 Corinthians") to its canonical USFM book code. It returns
// ok=false when no book could be identified, in which case the caller
// must drop the filter rather than apply an impossible one.
func ResolveBookCode(reference string) (code string, ok bool) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return "", false
	}

	// Try the whole string, then progressively shorter leading-word
	// prefixes, since references are usually "<book> <chapter>:<verse>".
	fields := strings.Fields(reference)
	for end := len(fields); end > 0; end-- {
		candidate := strings.ToLower(strings.Join(fields[:end], " "))
		if code, ok := bookIndex[candidate]; ok {
			return code, true
		}
	}

	// Fall back to the first token alone, stripped of punctuation, for
	// inputs like "jhn.3.16" or "gen1".
	first := strings.ToLower(fields[0])
	first = strings.TrimRight(first, ".:0123456789")

	if code, ok := bookIndex[first]; ok {
		return code, true
	}

	return "", false
}
