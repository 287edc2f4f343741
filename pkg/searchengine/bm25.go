package searchengine

import "math"

// Weight multipliers applied to non-exact term matches: prefix matches
// get a small positive bonus; fuzzy matches contribute with a
// multiplicative penalty proportional to the distance. Both are kept
// well under 1.0 so an exact match always outranks a fuzzy one for an
// otherwise identical document.
const (
	prefixMultiplier = 0.5
	fuzzyMultiplier  = 0.4
)

// docEntry is one indexed document's term-frequency table.
type docEntry struct {
	docIdx   int
	termFreq map[string]int
	length   int
}

// variant is one vocabulary term that can satisfy a query term, either
// exactly, as a prefix match, or as a fuzzy match, carrying the score
// multiplier for that relationship.
type variant struct {
	term       string
	multiplier float64
}

// Index is an ephemeral, worker-local BM25 index, built and discarded
// per request. It is never shared across requests or workers.
type Index struct {
	K1, B float64

	docs     []docEntry
	df       map[string]int
	vocab    map[string]struct{}
	totalLen int
}

// NewIndex creates an empty BM25 index with the given tunable parameters.
func NewIndex(k1, b float64) *Index {
	return &Index{
		K1:    k1,
		B:     b,
		df:    make(map[string]int),
		vocab: make(map[string]struct{}),
	}
}

// Len reports how many documents have been indexed.
func (ix *Index) Len() int { return len(ix.docs) }

// Add tokenizes and indexes content, associated with the document at
// docIdx in the caller's own document slice. It reports false (and skips
// indexing) when content has no tokens.
func (ix *Index) Add(docIdx int, content string) bool {
	tokens := Tokenize(content)
	if len(tokens) == 0 {
		return false
	}

	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t.Term]++
	}

	ix.docs = append(ix.docs, docEntry{docIdx: docIdx, termFreq: tf, length: len(tokens)})
	ix.totalLen += len(tokens)

	for term := range tf {
		ix.df[term]++
		ix.vocab[term] = struct{}{}
	}

	return true
}

func (ix *Index) avgDocLen() float64 {
	if len(ix.docs) == 0 {
		return 0
	}

	return float64(ix.totalLen) / float64(len(ix.docs))
}

// idf is the BM25 inverse document frequency with +1 smoothing, which
// keeps the weight strictly positive for every term regardless of df.
func (ix *Index) idf(term string) float64 {
	n := float64(len(ix.docs))
	df := float64(ix.df[term])

	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

// candidatesFor returns every vocabulary term that can satisfy queryTerm:
// the exact term itself, prefix matches when prefix is enabled, and fuzzy
// matches within the fuzzy threshold.
func (ix *Index) candidatesFor(queryTerm string, fuzzy float64, prefix bool) []variant {
	var variants []variant

	if _, ok := ix.vocab[queryTerm]; ok {
		variants = append(variants, variant{term: queryTerm, multiplier: 1.0})
	}

	for term := range ix.vocab {
		if term == queryTerm {
			continue
		}

		if prefix && hasPrefix(queryTerm, term) {
			variants = append(variants, variant{term: term, multiplier: prefixMultiplier})
			continue
		}

		if sim, ok := fuzzyMatch(queryTerm, term, fuzzy); ok {
			variants = append(variants, variant{term: term, multiplier: sim * fuzzyMultiplier})
		}
	}

	return variants
}

// ScoredDoc is one document's aggregate BM25 score and the vocabulary term
// that satisfied each query term (used by preview extraction to find the
// earliest match, including fuzzy/prefix matches).
type ScoredDoc struct {
	DocIdx      int
	Score       float64
	MatchedTerm map[string]string // query term -> matched vocabulary term
}

// Query scores every indexed document against a disjunction of
// queryTerms; the document score is the sum of per-term contributions.
// Only documents with a positive score are returned.
func (ix *Index) Query(queryTerms []string, fuzzy float64, prefix bool) []ScoredDoc {
	if len(ix.docs) == 0 || len(queryTerms) == 0 {
		return nil
	}

	avgdl := ix.avgDocLen()

	candidatesByTerm := make(map[string][]variant, len(queryTerms))
	for _, qt := range queryTerms {
		candidatesByTerm[qt] = ix.candidatesFor(qt, fuzzy, prefix)
	}

	results := make([]ScoredDoc, 0, len(ix.docs))

	for _, d := range ix.docs {
		var total float64

		matched := make(map[string]string)

		for _, qt := range queryTerms {
			best, bestTerm := ix.bestContribution(d, candidatesByTerm[qt], avgdl)
			if best > 0 {
				total += best
				matched[qt] = bestTerm
			}
		}

		if total > 0 {
			results = append(results, ScoredDoc{DocIdx: d.docIdx, Score: total, MatchedTerm: matched})
		}
	}

	return results
}

func (ix *Index) bestContribution(d docEntry, candidates []variant, avgdl float64) (best float64, bestTerm string) {
	for _, v := range candidates {
		tf, ok := d.termFreq[v.term]
		if !ok {
			continue
		}

		tfComponent := float64(tf) * (ix.K1 + 1) / (float64(tf) + ix.K1*(1-ix.B+ix.B*float64(d.length)/avgdl))
		contribution := v.multiplier * ix.idf(v.term) * tfComponent

		if contribution > best {
			best = contribution
			bestTerm = v.term
		}
	}

	return best, bestTerm
}
