package domain

import "github.com/antzucaro/matchr"

// suggestionThreshold is the minimum Jaro-Winkler similarity for a hint.
const suggestionThreshold = 0.85

// SuggestCity returns the canonical city most similar to name, for "did you
// mean" hints on listings that failed the exact join. It never changes join
// semantics. ok is false when nothing is similar enough.
func SuggestCity(name string, cities Cities) (suggestion string, similarity float64, ok bool) {
	if name == "" {
		return "", 0, false
	}
	for _, c := range cities.names {
		s := matchr.JaroWinkler(name, c, false)
		if s > similarity {
			similarity = s
			suggestion = c
		}
	}
	if similarity < suggestionThreshold {
		return "", similarity, false
	}
	return suggestion, similarity, true
}
