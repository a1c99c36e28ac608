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
		{
			name:     "plain JSON untouched",
			input:    `{"match_score": 82}`,
			expected: `{"match_score": 82}`,
		},
		{
			name:     "json fenced block",
			input:    "```json\n{\"match_score\": 82}\n```",
			expected: `{"match_score": 82}`,
		},
		{
			name:     "generic fenced block",
			input:    "```\n{\"changes\": []}\n```",
			expected: `{"changes": []}`,
		},
		{
			name:     "fenced block with language identifier",
			input:    "```javascript\n{\"a\": 1}\n```",
			expected: `{"a": 1}`,
		},
		{
			name:     "surrounding whitespace",
			input:    "  \n {\"a\": 1} \n ",
			expected: `{"a": 1}`,
		},
		{
			name:     "fence opens directly on brace",
			input:    "```{\"a\": 1}```",
			expected: `{"a": 1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJSONBlock(tt.input))
		})
	}
}
