package searchengine

import (
	"strings"

	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
)

// tok is bleve's word-boundary tokenizer, used standalone (it has no
// index or persistence coupling) for Unicode-aware word splitting.
var tok = unicode.NewUnicodeTokenizer()

// Token is one occurrence of a lowercase-folded term in a document, with
// its byte offsets in the original content.
type Token struct {
	Term  string
	Start int
	End   int
}

// Tokenize splits text into lowercase-folded word tokens. Punctuation
// outside word boundaries is stripped by the underlying Unicode tokenizer;
// numeric tokens are retained.
func Tokenize(text string) []Token {
	stream := tok.Tokenize([]byte(text))

	tokens := make([]Token, 0, len(stream))

	for _, t := range stream {
		term := strings.ToLower(string(t.Term))
		if term == "" {
			continue
		}

		tokens = append(tokens, Token{Term: term, Start: t.Start, End: t.End})
	}

	return tokens
}
