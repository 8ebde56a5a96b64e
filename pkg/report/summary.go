// Package report turns an extraction batch into statistics, files on disk
// and a terminal summary.
package report

import (
	"strings"

	"bunseki/pkg/schema"
)

type Summary struct {
	TotalCharacters        int            `json:"total_characters"`
	UniqueNames            int            `json:"unique_names"`
	TotalEmotions          int            `json:"total_emotions"`
	EmotionTypes           map[string]int `json:"emotion_types"`
	TotalRelationships     int            `json:"total_relationships"`
	RelationTypes          map[string]int `json:"relation_types"`
	GenderDistribution     map[string]int `json:"gender_distribution"`
	CharactersWithEmotions int            `json:"characters_with_emotions"`
}

func Summarize(b schema.Batch) Summary {
	s := Summary{
		TotalCharacters:    len(b.Characters),
		TotalEmotions:      len(b.Emotions),
		TotalRelationships: len(b.Relationships),
		EmotionTypes:       map[string]int{},
		RelationTypes:      map[string]int{},
		GenderDistribution: map[string]int{},
	}

	names := map[string]struct{}{}
	for _, c := range b.Characters {
		names[c.Name] = struct{}{}
		s.GenderDistribution[string(c.Gender)]++
	}
	s.UniqueNames = len(names)

	subjects := map[string]struct{}{}
	for _, e := range b.Emotions {
		s.EmotionTypes[e.EmotionType]++
		subjects[e.Subject] = struct{}{}
	}
	s.CharactersWithEmotions = len(subjects)

	for _, r := range b.Relationships {
		s.RelationTypes[r.RelationType]++
	}
	return s
}

var (
	firstPersonPronouns = []string{"私", "僕", "俺", "わたし", "わたくし", "あたし"}
	indirectMarkers     = []string{"そうだ", "らしい", "ようだ", "みたい"}
	formalRelations     = []string{"上司部下", "師弟", "先輩後輩"}
)

type IndirectEmotion struct {
	Subject string `json:"subject"`
	Emotion string `json:"emotion"`
	Quote   string `json:"quote"`
}

type FormalRelationship struct {
	Persons string `json:"persons"`
	Type    string `json:"type"`
}

// JapaneseAnalysis picks out features specific to Japanese prose: narrators
// named by a first-person pronoun, emotions reported through hearsay or
// conjecture endings, and hierarchical relationships.
type JapaneseAnalysis struct {
	FirstPersonPronouns []string             `json:"first_person_pronouns"`
	IndirectEmotions    []IndirectEmotion    `json:"indirect_emotions"`
	FormalRelationships []FormalRelationship `json:"formal_relationships"`
}

func AnalyzeJapanese(b schema.Batch) JapaneseAnalysis {
	a := JapaneseAnalysis{
		FirstPersonPronouns: []string{},
		IndirectEmotions:    []IndirectEmotion{},
		FormalRelationships: []FormalRelationship{},
	}

	for _, c := range b.Characters {
		if containsAny(c.Name, firstPersonPronouns) {
			a.FirstPersonPronouns = append(a.FirstPersonPronouns, c.Name)
		}
	}

	for _, e := range b.Emotions {
		if containsAny(e.Quote, indirectMarkers) {
			a.IndirectEmotions = append(a.IndirectEmotions, IndirectEmotion{
				Subject: e.Subject,
				Emotion: e.EmotionType,
				Quote:   e.Quote,
			})
		}
	}

	for _, r := range b.Relationships {
		for _, f := range formalRelations {
			if r.RelationType == f {
				a.FormalRelationships = append(a.FormalRelationships, FormalRelationship{
					Persons: r.Person1 + " - " + r.Person2,
					Type:    r.RelationType,
				})
				break
			}
		}
	}
	return a
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
