package scoring

import (
	"math"
	"strings"
)

/*
BM25 ranks a small candidate set against a query by lexical overlap.
Document frequency and average document length are computed over just
the supplied candidates, which makes the keyword channel local to each
query's vector shortlist rather than corpus-global.
*/
type BM25 struct {
	K1 float64
	B  float64
}

/*
NewBM25 returns a scorer with the conventional parameters.
*/
func NewBM25() *BM25 {
	return &BM25{K1: 1.5, B: 0.75}
}

/*
Document is one scoring candidate.
*/
type Document struct {
	ID      string
	Content string
}

/*
Score computes a BM25 score per candidate, keyed by document ID.
Documents that share no terms with the query score 0.
*/
func (bm *BM25) Score(query string, docs []Document) map[string]float64 {
	scores := make(map[string]float64, len(docs))

	if len(docs) == 0 {
		return scores
	}

	queryTerms := tokenize(query)
	docTerms := make([][]string, len(docs))

	var totalLen float64

	for i, doc := range docs {
		docTerms[i] = tokenize(doc.Content)
		totalLen += float64(len(docTerms[i]))
	}

	avgLen := totalLen / float64(len(docs))

	if avgLen == 0 {
		avgLen = 1
	}

	// Document frequency over the candidate set only.
	df := make(map[string]int)

	for _, terms := range docTerms {
		seen := make(map[string]bool, len(terms))

		for _, t := range terms {
			if !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}

	n := float64(len(docs))

	for i, doc := range docs {
		tf := make(map[string]int, len(docTerms[i]))

		for _, t := range docTerms[i] {
			tf[t]++
		}

		docLen := float64(len(docTerms[i]))
		var score float64

		for _, term := range queryTerms {
			freq := float64(tf[term])

			if freq == 0 {
				continue
			}

			idf := math.Log(1 + (n-float64(df[term])+0.5)/(float64(df[term])+0.5))
			score += idf * (freq * (bm.K1 + 1)) /
				(freq + bm.K1*(1-bm.B+bm.B*docLen/avgLen))
		}

		scores[doc.ID] = score
	}

	return scores
}

/*
tokenize lowercases and splits on anything that is not a letter or
digit.
*/
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}
