package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/pagepilot-ai/pagepilot/internal/schema"
)

func productContract() *schema.Contract {
	return schema.Object(map[string]*schema.Contract{
		"name":  schema.String().Describe("display name"),
		"price": schema.Number(),
		"sold":  schema.Boolean().AsOptional(),
		"tags":  schema.Array(schema.String()),
		"blob":  schema.Any(),
	})
}

func TestGenAISchemaConversion(t *testing.T) {
	t.Parallel()

	s := productContract().GenAISchema()
	require.Equal(t, genai.TypeObject, s.Type)

	// Required excludes optional members and is sorted for determinism.
	assert.Equal(t, []string{"blob", "name", "price", "tags"}, s.Required)
	assert.Equal(t, []string{"blob", "name", "price", "sold", "tags"}, s.PropertyOrdering)

	assert.Equal(t, genai.TypeString, s.Properties["name"].Type)
	assert.Equal(t, "display name", s.Properties["name"].Description)
	assert.Equal(t, genai.TypeNumber, s.Properties["price"].Type)

	sold := s.Properties["sold"]
	assert.Equal(t, genai.TypeBoolean, sold.Type)
	require.NotNil(t, sold.Nullable)
	assert.True(t, *sold.Nullable, "optional members become nullable")

	tags := s.Properties["tags"]
	assert.Equal(t, genai.TypeArray, tags.Type)
	assert.Equal(t, genai.TypeString, tags.Items.Type)

	// The Gemini schema set has no unconstrained member.
	assert.Equal(t, genai.TypeString, s.Properties["blob"].Type)
}

func TestJSONSchemaConversion(t *testing.T) {
	t.Parallel()

	m := productContract().JSONSchema()
	assert.Equal(t, "object", m["type"])
	assert.Equal(t, false, m["additionalProperties"], "closed objects reject undeclared keys")
	assert.ElementsMatch(t, []string{"name", "price", "tags", "blob"}, m["required"])

	props := m["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "string", "description": "display name"}, props["name"])
	assert.Equal(t, map[string]any{}, props["blob"], "unconstrained nodes render as the empty schema")

	tags := props["tags"].(map[string]any)
	assert.Equal(t, "array", tags["type"])
	assert.Equal(t, map[string]any{"type": "string"}, tags["items"])

	open := schema.OpenObject().JSONSchema()
	_, constrained := open["additionalProperties"]
	assert.False(t, constrained, "open objects leave additionalProperties unset")
}

func TestCoerce(t *testing.T) {
	t.Parallel()

	contract := schema.Object(map[string]*schema.Contract{
		"name":  schema.String(),
		"price": schema.Number(),
		"sold":  schema.Boolean().AsOptional(),
		"tags":  schema.Array(schema.Number()),
	})

	out, err := schema.Coerce(contract, map[string]any{
		"name":    float64(42),
		"price":   "12.50",
		"tags":    []any{"1", 2.0},
		"ignored": "dropped",
	})
	require.NoError(t, err)

	assert.Equal(t, "42", out["name"], "numbers convert to strings losslessly")
	assert.Equal(t, 12.5, out["price"], "numeric strings parse to numbers")
	assert.Equal(t, []any{1.0, 2.0}, out["tags"])
	_, present := out["sold"]
	assert.False(t, present, "absent optional members stay absent")
	_, present = out["ignored"]
	assert.False(t, present, "closed objects drop undeclared keys")
}

func TestCoerceErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		contract *schema.Contract
		value    any
		detail   string
	}{
		{
			name:     "missing required",
			contract: schema.Object(map[string]*schema.Contract{"id": schema.String()}),
			value:    map[string]any{},
			detail:   `missing required property "id"`,
		},
		{
			name:     "null required scalar",
			contract: schema.Object(map[string]*schema.Contract{"id": schema.String()}),
			value:    map[string]any{"id": nil},
			detail:   "null but required",
		},
		{
			name:     "not an object",
			contract: schema.Object(map[string]*schema.Contract{"id": schema.String()}),
			value:    []any{"id"},
			detail:   "expected an object",
		},
		{
			name:     "unparseable number",
			contract: schema.Object(map[string]*schema.Contract{"n": schema.Number()}),
			value:    map[string]any{"n": "twelve"},
			detail:   "cannot parse",
		},
		{
			name:     "array element mismatch",
			contract: schema.Object(map[string]*schema.Contract{"xs": schema.Array(schema.Boolean())}),
			value:    map[string]any{"xs": []any{true, "maybe"}},
			detail:   "index 1",
		},
		{
			name:     "scalar target",
			contract: schema.String(),
			value:    map[string]any{},
			detail:   "must be an object contract",
		},
	}

	for _, tc := range testCases {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := schema.Coerce(tt.contract, tt.value)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.detail)
		})
	}
}

func TestCoerceOpenObjectAndNullAny(t *testing.T) {
	t.Parallel()

	contract := schema.Object(map[string]*schema.Contract{
		"meta": schema.OpenObject(),
		"blob": schema.Any(),
	})

	out, err := schema.Coerce(contract, map[string]any{
		"meta": map[string]any{"anything": []any{1.0}},
		"blob": nil,
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"anything": []any{1.0}}, out["meta"], "open objects pass unknown keys through")
	blob, present := out["blob"]
	assert.True(t, present)
	assert.Nil(t, blob, "null satisfies an unconstrained member")
}
