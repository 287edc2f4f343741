package searchengine

import (
	"strings"
	"unicode/utf8"
)

// ExtractPreview returns a window of up to maxChars around the earliest
// occurrence of any term in matchedTerms within content.
// Whitespace (including line breaks) is collapsed to single spaces, the
// window is trimmed to a word boundary on both ends, and an ellipsis
// marks truncation. If no term is found directly, the caller is expected
// to have passed the fuzzy-matched token instead, so the window still
// centers on the text that produced the match.
func ExtractPreview(content string, matchedTerms []string, maxChars int) string {
	collapsed := collapseWhitespace(content)
	runes := []rune(collapsed)

	pos := earliestRuneIndex(collapsed, matchedTerms)
	if pos < 0 {
		pos = 0
	}

	return window(runes, pos, maxChars)
}

// collapseWhitespace replaces every run of whitespace (spaces, tabs, line
// breaks) with a single space and drops any other control character.
func collapseWhitespace(s string) string {
	var b strings.Builder

	prevSpace := false

	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}

			continue
		}

		if r < 0x20 {
			continue
		}

		b.WriteRune(r)
		prevSpace = false
	}

	return strings.TrimSpace(b.String())
}

// earliestRuneIndex returns the rune offset of the earliest case-insensitive
// occurrence of any term in terms within s, or -1 if none occur.
func earliestRuneIndex(s string, terms []string) int {
	lower := strings.ToLower(s)

	bestByte := -1

	for _, term := range terms {
		if term == "" {
			continue
		}

		if idx := strings.Index(lower, term); idx != -1 && (bestByte == -1 || idx < bestByte) {
			bestByte = idx
		}
	}

	if bestByte == -1 {
		return -1
	}

	return utf8.RuneCountInString(lower[:bestByte])
}

// window extracts up to maxChars runes centered on pos, shrunk to a word
// boundary on both sides and ellipsis-marked where truncated. The ellipsis
// marks count against the budget: the returned string never exceeds
// maxChars runes.
func window(runes []rune, pos, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}

	if len(runes) <= maxChars {
		return string(runes)
	}

	// A budget too small to fit ellipsis marks degrades to a bare cut at
	// the match.
	if maxChars <= 2 {
		end := pos + maxChars
		if end > len(runes) {
			end = len(runes)
		}

		return strings.TrimSpace(string(runes[pos:end]))
	}

	// Reserve room inside the budget for the ellipsis marks.
	budget := maxChars - 2

	half := budget / 2

	start := pos - half
	if start < 0 {
		start = 0
	}

	end := start + budget
	if end > len(runes) {
		end = len(runes)
		start = end - budget

		if start < 0 {
			start = 0
		}
	}

	// Shrink, never extend, to the nearest interior word boundary. When no
	// boundary exists before the match the hard cut stands: staying within
	// the budget wins over a clean word edge.
	if start > 0 && runes[start-1] != ' ' {
		for i := start; i < pos; i++ {
			if runes[i] == ' ' {
				start = i + 1
				break
			}
		}
	}

	if end < len(runes) && runes[end] != ' ' {
		for i := end - 1; i > pos; i-- {
			if runes[i] == ' ' {
				end = i
				break
			}
		}
	}

	var prefix, suffix string
	if start > 0 {
		prefix = "…"
	}

	if end < len(runes) {
		suffix = "…"
	}

	return prefix + strings.TrimSpace(string(runes[start:end])) + suffix
}
