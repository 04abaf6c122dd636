package learning

import "strings"

// jaccardThreshold is the token-Jaccard cut-off in FindSimilar's three-way
// "exact title match OR containment OR token-Jaccard > 0.7" rule (§4.11).
const jaccardThreshold = 0.7

// normalizeTitle lower-cases and collapses whitespace so similarity is
// symmetric under casing and incidental spacing differences (§8's
// "FindSimilar is symmetric under title normalization" invariant).
func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// titlesSimilar reports whether a and b are the same entry under §4.11's
// rule: exact normalized match, or one contains the other as a
// substring, or their token sets have Jaccard similarity > 0.7. Every
// branch is symmetric in (a, b) by construction.
func titlesSimilar(a, b string) bool {
	na, nb := normalizeTitle(a), normalizeTitle(b)
	if na == nb {
		return true
	}
	if na == "" || nb == "" {
		return false
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return true
	}
	return tokenJaccard(na, nb) > jaccardThreshold
}

func tokenJaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA)
	for tok := range setB {
		if !setA[tok] {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	out := map[string]bool{}
	for _, tok := range strings.Fields(s) {
		out[tok] = true
	}
	return out
}

// FindSimilar returns the first entry of the given type and area whose
// title is similar to title under titlesSimilar, or false if none match.
// Area is matched case-insensitively since it is a free-text field
// populated by callers across tools/components.
func FindSimilar(entries []Entry, entryType EntryType, title, area string) (Entry, bool) {
	for _, e := range entries {
		if e.Type != entryType {
			continue
		}
		if area != "" && !strings.EqualFold(e.Area, area) {
			continue
		}
		if titlesSimilar(e.Title, title) {
			return e, true
		}
	}
	return Entry{}, false
}
