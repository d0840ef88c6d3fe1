package generative

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const questionSchema = `{
	"type": "object",
	"required": ["question", "answer", "category"],
	"properties": {
		"question":  {"type": "string", "pattern": "\\S"},
		"answer":    {"type": "string", "pattern": "\\S"},
		"category":  {"type": "string", "minLength": 1},
		"qtype":     {"type": "string"},
		"rationale": {"type": "string"}
	}
}`

var itemsSchema = mustSchema(`{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["questions"],
		"properties": {
			"paragraph": {"type": "string"},
			"questions": {"type": "array", "items": ` + questionSchema + `}
		}
	}
}`)

var textSchema = mustSchema(`{
	"type": "object",
	"required": ["paragraphs", "items"],
	"properties": {
		"paragraphs": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
		"items": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["questions"],
				"properties": {
					"paragraph": {"type": "string"},
					"questions": {"type": "array", "items": ` + questionSchema + `}
				}
			}
		}
	}
}`)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("invalid schema: %v", err))
	}
	return s
}

// ValidationError reports LLM output that does not match the expected
// shape.
type ValidationError struct {
	Stage    string // "items" or "text"
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s output: %s", e.Stage, strings.Join(e.Problems, "; "))
}

func validate(schema *gojsonschema.Schema, stage string, data []byte) error {
	res, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return &ValidationError{Stage: stage, Problems: []string{err.Error()}}
	}
	if res.Valid() {
		return nil
	}
	problems := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		problems = append(problems, e.String())
	}
	return &ValidationError{Stage: stage, Problems: problems}
}

// cut returns raw from the first open to the last close delimiter,
// dropping any prose or code fence around the JSON.
func cut(raw string, opening, closing byte) (string, bool) {
	start := strings.IndexByte(raw, opening)
	end := strings.LastIndexByte(raw, closing)
	if start < 0 || end < start {
		return "", false
	}
	return raw[start : end+1], true
}
