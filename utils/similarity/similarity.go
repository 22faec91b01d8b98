// Package similarity scores how closely two titles match. The catalog service
// uses it to rank search results against the user's query.
package similarity

import (
	"strings"
	"unicode"
)

// Score returns a match score between 0 (unrelated) and 1 (same title).
// Titles are normalized before comparison so punctuation, case, and
// "&" vs "and" differences do not matter.
func Score(a, b string) float64 {
	a = normalize(a)
	b = normalize(b)

	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	// "The Office" should rank near the top for query "office": a query that
	// appears as a whole-word prefix or suffix of the title scores high,
	// scaled by how much of the title it covers.
	if score := containmentScore(a, b); score > 0 {
		return score
	}

	distance := levenshtein(a, b)
	longest := max(len(a), len(b))
	return 1.0 - float64(distance)/float64(longest)
}

// containmentScore handles one title containing the other at a word boundary.
func containmentScore(a, b string) float64 {
	longer, shorter := a, b
	if len(a) < len(b) {
		longer, shorter = b, a
	}

	var covered bool
	if strings.HasPrefix(longer, shorter) {
		covered = len(longer) == len(shorter) || longer[len(shorter)] == ' '
	}
	if !covered && strings.HasSuffix(longer, shorter) {
		boundary := len(longer) - len(shorter)
		covered = boundary == 0 || longer[boundary-1] == ' '
	}
	if !covered {
		return 0
	}

	ratio := float64(len(shorter)) / float64(len(longer))
	return 0.5 + ratio*0.5
}

// normalize lowercases, maps "&" to "and", and strips everything but letters,
// digits, and single spaces.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "&", " and ")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '.' || r == '-' || r == '_':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
