package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "json code block", input: "```json\n{\"key\": \"value\"}\n```", expected: `{"key": "value"}`},
		{name: "generic code block", input: "```\n{\"key\": \"value\"}\n```", expected: `{"key": "value"}`},
		{name: "code block with language", input: "```javascript\n{\"key\": \"value\"}\n```", expected: `{"key": "value"}`},
		{name: "plain JSON", input: `{"key": "value"}`, expected: `{"key": "value"}`},
		{name: "preamble before object", input: "As requested, here is the JSON:\n{\"fit_score\": 80}", expected: `{"fit_score": 80}`},
		{name: "preamble before array", input: "Here are the items:\n[\"Go\", \"SQL\"]", expected: `["Go", "SQL"]`},
		{name: "object containing array after preamble", input: "Result: {\"keywords\": [\"Go\"]}", expected: `{"keywords": ["Go"]}`},
		{name: "trailing text", input: "{\"key\": \"value\"}\n\nLet me know if you need anything else!", expected: `{"key": "value"}`},
		{name: "escaped quotes", input: "Result: {\"message\": \"He said \\\"hi\\\" {ok}\"}", expected: `{"message": "He said \"hi\" {ok}"}`},
		{name: "no JSON", input: "I cannot help with that.", expected: "I cannot help with that."},
		{name: "unbalanced", input: "{\"key\": ", expected: "{\"key\":"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJSONBlock(tt.input))
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "nested objects", input: `{"outer": {"inner": "value"}}`, expected: `{"outer": {"inner": "value"}}`},
		{name: "object with trailing text", input: `{"key": "value"} and more`, expected: `{"key": "value"}`},
		{name: "string with braces inside", input: `{"template": "Hello {name}!"}`, expected: `{"template": "Hello {name}!"}`},
		{name: "empty input", input: "", expected: ""},
		{name: "not starting with brace", input: "not json", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractJSONObject(tt.input))
		})
	}
}

func TestExtractJSONArray(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "nested arrays", input: `[[1, 2], [3, 4]]`, expected: `[[1, 2], [3, 4]]`},
		{name: "array of objects", input: `[{"id": 1}, {"id": 2}]`, expected: `[{"id": 1}, {"id": 2}]`},
		{name: "array with trailing text", input: `[1, 2, 3] extra`, expected: `[1, 2, 3]`},
		{name: "bracket inside string", input: `["a]b", "c"]`, expected: `["a]b", "c"]`},
		{name: "not starting with bracket", input: "not array", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractJSONArray(tt.input))
		})
	}
}
