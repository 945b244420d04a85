package ai

import "encoding/json"

// JSONSchema describes tool parameters and structured responses in the
// JSON Schema subset accepted by OpenAI-compatible APIs.
type JSONSchema struct {
	Type                 string                 `json:"type"`
	Properties           map[string]*JSONSchema `json:"properties,omitempty"`
	Items                *JSONSchema            `json:"items,omitempty"`
	Required             []string               `json:"required,omitempty"`
	Enum                 []string               `json:"enum,omitempty"`
	Description          string                 `json:"description,omitempty"`
	AdditionalProperties *bool                  `json:"additionalProperties,omitempty"`
}

func (s *JSONSchema) MarshalJSON() ([]byte, error) {
	type alias JSONSchema
	return json.Marshal((*alias)(s))
}

// Object returns an object schema that rejects unknown properties.
func Object(properties map[string]*JSONSchema, required ...string) *JSONSchema {
	closed := false
	return &JSONSchema{
		Type:                 "object",
		Properties:           properties,
		Required:             required,
		AdditionalProperties: &closed,
	}
}

// String returns a string schema with a description.
func String(description string) *JSONSchema {
	return &JSONSchema{Type: "string", Description: description}
}

// Integer returns an integer schema with a description.
func Integer(description string) *JSONSchema {
	return &JSONSchema{Type: "integer", Description: description}
}

// Enum returns a string schema restricted to values.
func Enum(description string, values ...string) *JSONSchema {
	return &JSONSchema{Type: "string", Description: description, Enum: values}
}
