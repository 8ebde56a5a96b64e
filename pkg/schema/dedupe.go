package schema

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// NormalizeName is the identity key for characters: every Unicode space,
// including the ideographic U+3000, is removed and the rest case-folded.
func NormalizeName(name string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, name)
	return cases.Fold().String(stripped)
}

type relationKey struct {
	person1, person2, relation string
}

// DedupeCharacters keeps the first character per normalized name.
func DedupeCharacters(chars []Character) []Character {
	return dedupeBy(chars, func(c Character) string { return NormalizeName(c.Name) })
}

// DedupeRelationships keeps the first relationship per ordered
// (person1, person2, relation_type) triple. No normalization is applied.
func DedupeRelationships(rels []Relationship) []Relationship {
	return dedupeBy(rels, func(r Relationship) relationKey {
		return relationKey{r.Person1, r.Person2, r.RelationType}
	})
}

func dedupeBy[T any, K comparable](items []T, key func(T) K) []T {
	seen := make(map[K]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		k := key(item)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}
