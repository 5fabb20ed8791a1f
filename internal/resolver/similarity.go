package resolver

import (
	"strings"
)

// noiseWords are removed from names before similarity scoring: corporate
// suffixes, the word "of", and full street-type words that appear in location
// names but carry no identity.
var noiseWords = map[string]bool{
	"inc": true, "llc": true, "corp": true, "of": true,
	"street": true, "avenue": true, "boulevard": true, "road": true,
	"drive": true, "lane": true, "court": true, "place": true,
}

// NormalizeName prepares a store name for similarity comparison: lowercase,
// punctuation stripped, noise words removed, whitespace collapsed
func NormalizeName(name string) string {
	name = strings.ToLower(name)

	var b strings.Builder
	b.Grow(len(name))
	for _, c := range name {
		if c >= 'a' && c <= 'z' || c >= '0' && c <= '9' {
			b.WriteRune(c)
		} else {
			b.WriteByte(' ')
		}
	}

	fields := strings.Fields(b.String())
	out := fields[:0]
	for _, f := range fields {
		if !noiseWords[f] {
			out = append(out, f)
		}
	}
	return strings.Join(out, " ")
}

// Similarity returns a normalized Levenshtein similarity in [0,1] between two
// store names: (maxLen - distance) / maxLen over the normalized forms. Used
// only by the offline backfill tool and the merge-suggestion feature, never in
// the live ingestion path.
func Similarity(a, b string) float64 {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" && nb == "" {
		return 0
	}
	maxLen := len(na)
	if len(nb) > maxLen {
		maxLen = len(nb)
	}
	if maxLen == 0 {
		return 0
	}
	return float64(maxLen-levenshtein(na, nb)) / float64(maxLen)
}

// levenshtein computes the classic edit distance between two strings
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min3(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
