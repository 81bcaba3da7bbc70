package textutil

import (
	"math"
	"regexp"
	"strings"
)

var tokenSplitPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Fingerprint is a normalized term-frequency vector over a short text such as
// "artist album title". Comparing two fingerprints with CosineSimilarity ranks
// how much vocabulary they share regardless of word order.
type Fingerprint struct {
	terms map[string]float64
	norm  float64
}

// Tokenize lowercases text, splits on runs of non-alphanumeric characters,
// and drops tokens shorter than three characters. Callers that need a match
// for an all-short query ("ac dc") fall back to substring search themselves.
func Tokenize(text string) []string {
	raw := tokenSplitPattern.Split(strings.ToLower(text), -1)
	terms := make([]string, 0, len(raw))
	for _, token := range raw {
		if len(token) < 3 {
			continue
		}
		terms = append(terms, token)
	}
	return terms
}

// NewFingerprint builds a fingerprint from text, or nil when tokenization
// leaves nothing to compare.
func NewFingerprint(text string) *Fingerprint {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	var norm float64
	for _, count := range counts {
		norm += count * count
	}
	return &Fingerprint{terms: counts, norm: math.Sqrt(norm)}
}

// CosineSimilarity returns the cosine of the angle between two fingerprints,
// in [0, 1]. Either side nil scores 0.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for term, weight := range a.terms {
		if other, ok := b.terms[term]; ok {
			dot += weight * other
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.norm * b.norm)
}
