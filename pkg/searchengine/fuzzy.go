package searchengine

import (
	"strings"

	"github.com/hbollon/go-edlib"
)

// similarity returns the normalized [0,1] similarity between a and b.
// go-edlib already returns a normalized similarity score, not a raw
// edit-distance count. OSA Damerau-Levenshtein counts a transposition as one
// edit, so common typos like "graec" stay within a 0.3 threshold of
// "grace".
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}

	if a == "" || b == "" {
		return 0.0
	}

	score, err := edlib.StringsSimilarity(a, b, edlib.OSADamerauLevenshtein)
	if err != nil {
		return 0.0
	}

	return float64(score)
}

// fuzzyMatch reports whether term is within fuzzy of queryTerm, where
// the normalized edit distance is 1 - similarity. It returns the
// similarity so callers can derive the multiplicative penalty.
func fuzzyMatch(queryTerm, term string, fuzzy float64) (sim float64, ok bool) {
	if fuzzy <= 0 {
		return 0, false
	}

	sim = similarity(queryTerm, term)
	distance := 1 - sim

	return sim, distance <= fuzzy
}

// hasPrefix reports whether term carries queryTerm as a prefix and is not
// identical to it (an identical term is an exact match, not a prefix
// bonus).
func hasPrefix(queryTerm, term string) bool {
	return term != queryTerm && strings.HasPrefix(term, queryTerm)
}
