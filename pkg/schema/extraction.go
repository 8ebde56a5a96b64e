package schema

// Document is the envelope every model response is parsed into.
type Document struct {
	Extractions []Extraction `json:"extractions" jsonschema_description:"Every span of the input that matches the requested class, in order of appearance"`
}

// Extraction is one span of source text plus loosely typed attributes. It is
// converted into a record by CharacterFrom, EmotionFrom or RelationshipFrom
// before anything else looks at it.
type Extraction struct {
	Class      string         `json:"extraction_class" jsonschema_description:"The class being extracted (character, emotion or relationship)"`
	Text       string         `json:"extraction_text" jsonschema_description:"Verbatim span copied from the input text"`
	Attributes map[string]any `json:"attributes" jsonschema_description:"Attribute names and values for this span, as described in the instructions"`
}

// Example is a worked few-shot example shown to the model.
type Example struct {
	Text        string       `json:"text"`
	Extractions []Extraction `json:"extractions"`
}
