package schema

import (
	"fmt"
	"strings"
)

// Unknown fills required text fields the model left out.
const Unknown = "不明"

type Kind string

const (
	KindCharacter    Kind = "character"
	KindEmotion      Kind = "emotion"
	KindRelationship Kind = "relationship"
)

// Kinds lists the record kinds in extraction order.
var Kinds = []Kind{KindCharacter, KindEmotion, KindRelationship}

type Gender string

const (
	Male          Gender = "男性"
	Female        Gender = "女性"
	GenderUnknown Gender = Unknown
)

type Intensity string

const (
	Weak   Intensity = "弱い"
	Normal Intensity = "普通"
	Strong Intensity = "強い"
)

type Direction string

const (
	OneWay Direction = "一方向"
	Mutual Direction = "双方向"
)

type Character struct {
	Name        string `json:"name"`
	Gender      Gender `json:"gender"`
	Age         string `json:"age"`
	Occupation  string `json:"occupation"`
	Appearance  string `json:"appearance"`
	Personality string `json:"personality"`
}

type Emotion struct {
	EmotionType string    `json:"emotion_type"`
	Subject     string    `json:"subject"`
	Target      string    `json:"target"`
	Intensity   Intensity `json:"intensity"`
	Quote       string    `json:"quote"`
}

type Relationship struct {
	Person1      string    `json:"person1"`
	Person2      string    `json:"person2"`
	RelationType string    `json:"relation_type"`
	Direction    Direction `json:"direction"`
	Evidence     string    `json:"evidence"`
}

// Batch is everything extracted from one document.
type Batch struct {
	Characters    []Character    `json:"characters"`
	Emotions      []Emotion      `json:"emotions"`
	Relationships []Relationship `json:"relationships"`
}

// Add converts extractions into records of the given kind and appends them.
// It returns the number of records added.
func (b *Batch) Add(kind Kind, extractions []Extraction) int {
	switch kind {
	case KindCharacter:
		for _, e := range extractions {
			b.Characters = append(b.Characters, CharacterFrom(e))
		}
	case KindEmotion:
		for _, e := range extractions {
			b.Emotions = append(b.Emotions, EmotionFrom(e))
		}
	case KindRelationship:
		for _, e := range extractions {
			b.Relationships = append(b.Relationships, RelationshipFrom(e))
		}
	default:
		return 0
	}
	return len(extractions)
}

// Len returns the number of records of kind.
func (b *Batch) Len(kind Kind) int {
	switch kind {
	case KindCharacter:
		return len(b.Characters)
	case KindEmotion:
		return len(b.Emotions)
	case KindRelationship:
		return len(b.Relationships)
	}
	return 0
}

func CharacterFrom(e Extraction) Character {
	return Character{
		Name:        firstNonEmpty(e.Text, attr(e.Attributes, "name"), Unknown),
		Gender:      ParseGender(attr(e.Attributes, "gender")),
		Age:         attr(e.Attributes, "age"),
		Occupation:  attr(e.Attributes, "occupation"),
		Appearance:  attr(e.Attributes, "appearance"),
		Personality: attr(e.Attributes, "personality"),
	}
}

func EmotionFrom(e Extraction) Emotion {
	return Emotion{
		EmotionType: firstNonEmpty(attr(e.Attributes, "emotion_type"), Unknown),
		Subject:     firstNonEmpty(attr(e.Attributes, "subject"), Unknown),
		Target:      attr(e.Attributes, "target"),
		Intensity:   ParseIntensity(attr(e.Attributes, "intensity")),
		Quote:       firstNonEmpty(e.Text, attr(e.Attributes, "quote"), Unknown),
	}
}

func RelationshipFrom(e Extraction) Relationship {
	return Relationship{
		Person1:      firstNonEmpty(attr(e.Attributes, "person1"), Unknown),
		Person2:      firstNonEmpty(attr(e.Attributes, "person2"), Unknown),
		RelationType: firstNonEmpty(attr(e.Attributes, "relation_type"), Unknown),
		Direction:    ParseDirection(attr(e.Attributes, "direction")),
		Evidence:     firstNonEmpty(e.Text, attr(e.Attributes, "evidence")),
	}
}

func ParseGender(s string) Gender {
	switch strings.ToLower(s) {
	case "男性", "男", "male", "man":
		return Male
	case "女性", "女", "female", "woman":
		return Female
	}
	return GenderUnknown
}

func ParseIntensity(s string) Intensity {
	switch strings.ToLower(s) {
	case "弱い", "弱", "weak", "low":
		return Weak
	case "強い", "強", "strong", "high":
		return Strong
	}
	return Normal
}

func ParseDirection(s string) Direction {
	switch strings.ToLower(s) {
	case "双方向", "相互", "mutual", "bidirectional", "two-way":
		return Mutual
	}
	return OneWay
}

// attr reads a scalar attribute as trimmed text. Missing keys, nulls and
// nested values read as empty.
func attr(attrs map[string]any, key string) string {
	v, ok := attrs[key]
	if !ok || v == nil {
		return ""
	}
	switch v := v.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64, int, int64, bool:
		return fmt.Sprint(v)
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
