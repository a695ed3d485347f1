package llm

import (
	"encoding/json"
	"fmt"

	"github.com/google/generative-ai-go/genai"
)

// jsonSchemaNode is the subset of JSON Schema that Gemini response schemas can express.
// Bounds such as minimum and maximum are dropped here and enforced by validation instead.
type jsonSchemaNode struct {
	Type        string                     `json:"type"`
	Description string                     `json:"description"`
	Enum        []string                   `json:"enum"`
	Items       *jsonSchemaNode            `json:"items"`
	Properties  map[string]*jsonSchemaNode `json:"properties"`
	Required    []string                   `json:"required"`
}

func toGenaiSchema(raw string) (*genai.Schema, error) {
	var root jsonSchemaNode
	if err := json.Unmarshal([]byte(raw), &root); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	return convertSchemaNode(&root, "(root)")
}

func convertSchemaNode(n *jsonSchemaNode, path string) (*genai.Schema, error) {
	s := &genai.Schema{Description: n.Description}

	switch n.Type {
	case "object":
		s.Type = genai.TypeObject
		s.Properties = make(map[string]*genai.Schema, len(n.Properties))
		for name, prop := range n.Properties {
			child, err := convertSchemaNode(prop, path+"."+name)
			if err != nil {
				return nil, err
			}
			s.Properties[name] = child
		}
		s.Required = n.Required
	case "array":
		s.Type = genai.TypeArray
		if n.Items == nil {
			return nil, fmt.Errorf("%s: array without items", path)
		}
		items, err := convertSchemaNode(n.Items, path+"[]")
		if err != nil {
			return nil, err
		}
		s.Items = items
	case "string":
		s.Type = genai.TypeString
		if len(n.Enum) > 0 {
			s.Format = "enum"
			s.Enum = n.Enum
		}
	case "integer":
		s.Type = genai.TypeInteger
	case "number":
		s.Type = genai.TypeNumber
	case "boolean":
		s.Type = genai.TypeBoolean
	default:
		return nil, fmt.Errorf("%s: unsupported schema type %q", path, n.Type)
	}

	return s, nil
}
