package matching

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/ignite/cohort-match/internal/domain"
)

// NameThreshold is the lowest similarity accepted by the name phase.
const NameThreshold = 0.8

// Similarity returns 1 - lev(a, b)/max(len(a), len(b)) over the runes of the
// case-folded, trimmed names, or 0 when either name is blank.
func Similarity(a, b string) float64 {
	return similarity(domain.NormalizeName(a), domain.NormalizeName(b))
}

// similarity expects names already passed through domain.NormalizeName.
// The ratio is taken over integers so that e.g. 4/5 is exactly 0.8.
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	dist := levenshtein.ComputeDistance(a, b)
	return float64(maxLen-dist) / float64(maxLen)
}
