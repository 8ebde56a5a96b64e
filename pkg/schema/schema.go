package schema

import (
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v3"
)

func generateSchema[T any]() any {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return r.Reflect(v)
}

var DocumentSchema = generateSchema[Document]()

// ResponseFormat asks OpenAI-compatible endpoints for a Document. Attributes
// are a free-form object so the schema cannot be strict.
func ResponseFormat(kind Kind) openai.ChatCompletionNewParamsResponseFormatUnion {
	p := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        fmt.Sprintf("%s_extractions", kind),
		Description: openai.String(fmt.Sprintf("Spans of a Japanese literary text classified as %s, with attributes", kind)),
		Schema:      DocumentSchema,
		Strict:      openai.Bool(false),
	}
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: p},
	}
}
