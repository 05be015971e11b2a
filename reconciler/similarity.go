package reconciler

import (
	"strings"

	"github.com/codewidneha/kitchenhub/normalizer"
)

// NamesSimilar decides whether two kitchen names plausibly refer to the
// same business. Proximity alone is never enough (food courts, adjacent
// stalls), so this runs alongside the distance check, not instead of it.
//
// Match when the canonical forms are equal, when one token set contains
// the other ("Tasty Bites" vs "Tasty Bites Kitchen"), or when the token
// Jaccard overlap reaches the configured threshold.
func NamesSimilar(a, b string, threshold float64) bool {
	ca := normalizer.CanonicalName(a)
	cb := normalizer.CanonicalName(b)
	if ca == "" || cb == "" {
		return false
	}
	if ca == cb {
		return true
	}

	ta := tokenSet(ca)
	tb := tokenSet(cb)
	inter := 0
	for tok := range ta {
		if tb[tok] {
			inter++
		}
	}
	if inter == 0 {
		return false
	}
	if inter == len(ta) || inter == len(tb) {
		return true
	}

	union := len(ta) + len(tb) - inter
	return float64(inter)/float64(union) >= threshold
}

func tokenSet(canonical string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(canonical) {
		set[tok] = true
	}
	return set
}
