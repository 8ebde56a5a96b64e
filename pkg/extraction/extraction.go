// Package extraction wraps a single model call that returns classified
// spans of a text with their attributes.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go/v3"

	"bunseki/pkg/inference"
	"bunseki/pkg/schema"
	"bunseki/pkg/utils"
)

// ErrMalformed marks a reply that could not be parsed into extractions.
var ErrMalformed = errors.New("malformed extraction output")

type (
	Extraction = schema.Extraction
	Example    = schema.Example
)

// Request describes one extraction. Passes, Workers and BufferSize enable
// scaling mode when any of them asks for more than a single plain call.
type Request struct {
	Kind     schema.Kind
	Text     string
	Prompt   string
	Examples []Example

	Passes     int
	Workers    int
	BufferSize int
}

func (r Request) scaling() bool {
	return r.Passes > 1 || r.Workers > 1 || r.BufferSize > 0
}

type Client struct {
	Inferencer inference.Inferencer
	Model      string

	// EstimateTokens sizes the completion budget.
	EstimateTokens func(string) int
}

func New(inf inference.Inferencer, model string) *Client {
	return &Client{
		Inferencer:     inf,
		Model:          model,
		EstimateTokens: utils.EstimateTokens,
	}
}

// Extract runs the request and returns the extractions in text order.
func (c *Client) Extract(ctx context.Context, req Request) ([]Extraction, error) {
	if req.scaling() {
		return c.extractScaled(ctx, req)
	}
	return c.extractOnce(ctx, req, req.Text)
}

func (c *Client) extractOnce(ctx context.Context, req Request, text string) ([]Extraction, error) {
	system := SystemPrompt(req.Kind, req.Prompt, req.Examples)

	estimate := c.EstimateTokens
	if estimate == nil {
		estimate = utils.EstimateTokens
	}
	tokens := estimate(system + text)
	log.Debug("extracting", "kind", req.Kind, "chars", len([]rune(text)), "tokens", tokens)

	params := &openai.ChatCompletionNewParams{
		Model:               c.Model,
		MaxCompletionTokens: openai.Int(int64(min(max(tokens*2, 4096), 8192*4))),
		ResponseFormat:      schema.ResponseFormat(req.Kind),
	}

	out, err := c.Inferencer.Infer(ctx, params, system, text)
	if err != nil {
		return nil, err
	}

	doc, err := Parse(out, req.Kind)
	if err != nil {
		log.Debug("raw model output", "kind", req.Kind, "output", utils.LimitStr(out, 500))
		return nil, err
	}

	for i := range doc.Extractions {
		if doc.Extractions[i].Class == "" {
			doc.Extractions[i].Class = string(req.Kind)
		}
	}
	return doc.Extractions, nil
}

// SystemPrompt renders the task description, the output contract and the
// worked examples.
func SystemPrompt(kind schema.Kind, prompt string, examples []Example) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(prompt))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, `出力形式: {"extractions":[{"extraction_class":"%s","extraction_text":"<原文からの正確な引用>","attributes":{...}}]}`, kind)
	b.WriteString("\nextraction_text は入力テキストの文字列をそのまま使い、言い換えないこと。該当がなければ {\"extractions\":[]} を返すこと。JSON以外は出力しないこと。\n")

	for i, ex := range examples {
		bin, err := json.Marshal(schema.Document{Extractions: ex.Extractions})
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "\n例%d:\n入力: %s\n出力: %s\n", i+1, ex.Text, bin)
	}
	return b.String()
}

// Parse reads a model reply into a Document. Code fences, <think> preambles
// and prose around the JSON object are tolerated. Entries may use either the
// extraction_class/extraction_text form or the "<class>": "<text>",
// "<class>_attributes": {...} form; in the latter, kind picks the class when
// an entry carries more than one string value.
func Parse(out string, kind schema.Kind) (schema.Document, error) {
	out = utils.CleanJSON(utils.StripThink(out))
	if out == "" {
		return schema.Document{}, fmt.Errorf("%w: empty output", ErrMalformed)
	}
	out, ok := utils.TrimToObject(out)
	if !ok {
		return schema.Document{}, fmt.Errorf("%w: no JSON object found", ErrMalformed)
	}

	var raw struct {
		Extractions []map[string]any `json:"extractions"`
	}
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return schema.Document{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	doc := schema.Document{Extractions: make([]Extraction, 0, len(raw.Extractions))}
	for _, m := range raw.Extractions {
		if e, ok := fromMap(m, kind); ok {
			doc.Extractions = append(doc.Extractions, e)
		}
	}
	return doc, nil
}

func fromMap(m map[string]any, kind schema.Kind) (Extraction, bool) {
	if class, ok := m["extraction_class"].(string); ok {
		e := Extraction{Class: class}
		e.Text, _ = m["extraction_text"].(string)
		e.Attributes, _ = m["attributes"].(map[string]any)
		return e, true
	}
	keys := slices.Sorted(maps.Keys(m))
	if i := slices.Index(keys, string(kind)); i > 0 {
		keys = append([]string{string(kind)}, slices.Delete(keys, i, i+1)...)
	}
	for _, k := range keys {
		if strings.HasSuffix(k, "_attributes") {
			continue
		}
		text, ok := m[k].(string)
		if !ok {
			continue
		}
		e := Extraction{Class: k, Text: text}
		e.Attributes, _ = m[k+"_attributes"].(map[string]any)
		return e, true
	}
	if attrs, ok := m["attributes"].(map[string]any); ok {
		return Extraction{Attributes: attrs}, true
	}
	return Extraction{}, false
}
