package question

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// similarity is the SequenceMatcher ratio between two strings, case-insensitive.
func similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	return difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, "")).Ratio()
}

// bestSimilarity returns the highest similarity between s and any candidate.
func bestSimilarity(s string, candidates []string) float64 {
	var best float64
	for _, c := range candidates {
		if r := similarity(s, c); r > best {
			best = r
		}
	}
	return best
}

// closeMatches returns the candidates whose similarity to s clears the cutoff.
func closeMatches(s string, candidates []string, cutoff float64) []string {
	var matched []string
	for _, c := range candidates {
		if similarity(s, c) >= cutoff {
			matched = append(matched, c)
		}
	}
	return matched
}
