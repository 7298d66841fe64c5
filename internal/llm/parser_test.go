// File: internal/llm/parser_test.go
package llm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagepilot-ai/pagepilot/internal/llm"
)

type extractedProduct struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

func TestParseJSON(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		response string
		want     extractedProduct
	}{
		{
			name:     "bare json object",
			response: `{"name": "Widget", "price": 9.99}`,
			want:     extractedProduct{Name: "Widget", Price: 9.99},
		},
		{
			name:     "markdown fenced with language tag",
			response: "```json\n{\"name\": \"Widget\", \"price\": 9.99}\n```",
			want:     extractedProduct{Name: "Widget", Price: 9.99},
		},
		{
			name:     "markdown fenced without language tag",
			response: "```\n{\"name\": \"Widget\", \"price\": 9.99}\n```",
			want:     extractedProduct{Name: "Widget", Price: 9.99},
		},
		{
			name:     "object buried in conversational text",
			response: "Sure! Here is the data you asked for:\n{\"name\": \"Widget\", \"price\": 9.99}\nLet me know if you need anything else.",
			want:     extractedProduct{Name: "Widget", Price: 9.99},
		},
		{
			name:     "surrounding whitespace",
			response: "\n\n  {\"name\": \"Widget\", \"price\": 9.99}  \n",
			want:     extractedProduct{Name: "Widget", Price: 9.99},
		},
	}

	for _, tc := range testCases {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := llm.ParseJSON[extractedProduct](tt.response)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseJSONArray(t *testing.T) {
	t.Parallel()

	response := "```json\n[{\"name\": \"A\", \"price\": 1}, {\"name\": \"B\", \"price\": 2}]\n```"
	got, err := llm.ParseJSON[[]extractedProduct](response)
	require.NoError(t, err)
	require.Len(t, *got, 2)
	assert.Equal(t, "B", (*got)[1].Name)
}

func TestParseJSONIntoMap(t *testing.T) {
	t.Parallel()

	// The extract path parses into a generic map before coercion.
	got, err := llm.ParseJSON[map[string]any](`{"title": "Hello", "count": 3}`)
	require.NoError(t, err)
	assert.Equal(t, "Hello", (*got)["title"])
	assert.Equal(t, float64(3), (*got)["count"])
}

func TestParseJSONErrors(t *testing.T) {
	t.Parallel()

	t.Run("malformed json reports a truncated snippet", func(t *testing.T) {
		t.Parallel()
		_, err := llm.ParseJSON[extractedProduct](`{"name": "Widget", "price":`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to unmarshal model JSON response")
	})

	t.Run("plain prose with no structure", func(t *testing.T) {
		t.Parallel()
		_, err := llm.ParseJSON[extractedProduct]("I could not find any products on this page.")
		require.Error(t, err)
	})
}
