package schema_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagepilot-ai/pagepilot/internal/schema"
)

func TestParseExpression(t *testing.T) {
	t.Parallel()

	src := `object({
		title: string().describe("product name"),
		price: number().optional(),
		sold:  boolean(),
		tags:  array(string()),
		"raw payload": any(),
		vendor: object({ id: string() }).optional(),
	})`

	got, err := schema.ParseExpression(src)
	require.NoError(t, err)

	want := schema.Object(map[string]*schema.Contract{
		"title":       schema.String().Describe("product name"),
		"price":       schema.Number().AsOptional(),
		"sold":        schema.Boolean(),
		"tags":        schema.Array(schema.String()),
		"raw payload": schema.Any(),
		"vendor": schema.Object(map[string]*schema.Contract{
			"id": schema.String(),
		}).AsOptional(),
	})

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("parsed contract mismatch (-want +got):\n%s", diff)
	}
}

// TestParseExpressionMatchesCombinators checks that text and programmatic
// construction share one vocabulary: whatever the combinators build, the
// equivalent expression parses to.
func TestParseExpressionMatchesCombinators(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		src  string
		want *schema.Contract
	}{
		{
			name: "minimal object",
			src:  "object({})",
			want: schema.Object(nil),
		},
		{
			name: "single quoted strings",
			src:  "object({ note: string().describe('free text') })",
			want: schema.Object(map[string]*schema.Contract{
				"note": schema.String().Describe("free text"),
			}),
		},
		{
			name: "nested arrays",
			src:  "object({ grid: array(array(number())) })",
			want: schema.Object(map[string]*schema.Contract{
				"grid": schema.Array(schema.Array(schema.Number())),
			}),
		},
		{
			name: "escapes in descriptions",
			src:  `object({ a: any().describe("line\none") })`,
			want: schema.Object(map[string]*schema.Contract{
				"a": schema.Any().Describe("line\none"),
			}),
		},
	}

	for _, tc := range testCases {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := schema.ParseExpression(tt.src)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("contract mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseExpressionErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		src    string
		detail string
	}{
		{name: "empty source", src: "   \n", detail: "expression is empty"},
		{name: "scalar root", src: "string()", detail: "must produce an object contract"},
		{name: "array root", src: "array(string())", detail: "must produce an object contract"},
		{name: "unknown constructor", src: "object({ a: uuid() })", detail: `unknown contract constructor "uuid"`},
		{name: "unknown modifier", src: "object({ a: string().nullable() })", detail: `unknown modifier "nullable"`},
		{name: "duplicate property", src: "object({ a: string(), a: number() })", detail: `duplicate property "a"`},
		{name: "missing colon", src: "object({ a string() })", detail: `expected ":"`},
		{name: "trailing garbage", src: "object({}) extra", detail: "after expression"},
		{name: "unterminated string", src: `object({ a: string().describe("oops) })`, detail: "unterminated string"},
		{name: "bad escape", src: `object({ a: string().describe("\q") })`, detail: "unsupported escape"},
		{name: "stray character", src: "object({ a: #string() })", detail: "unexpected character"},
		{name: "describe without literal", src: "object({ a: string().describe(name) })", detail: "requires a string literal"},
	}

	for _, tc := range testCases {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := schema.ParseExpression(tt.src)
			var schemaErr *schema.SchemaError
			require.ErrorAs(t, err, &schemaErr)
			assert.Contains(t, schemaErr.Error(), tt.detail)
		})
	}
}

func TestParseExpressionDepthLimit(t *testing.T) {
	t.Parallel()

	// object({ v: array(array(...array(string())...)) }) nested far past
	// the limit must fail cleanly instead of exhausting the stack.
	deep := "object({ v: " + strings.Repeat("array(", 80) + "string()" + strings.Repeat(")", 80) + " })"

	_, err := schema.ParseExpression(deep)
	var schemaErr *schema.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Contains(t, schemaErr.Detail, "nesting exceeds")
}

func TestParseExpressionReportsPosition(t *testing.T) {
	t.Parallel()

	src := "object({ a: strang() })"
	_, err := schema.ParseExpression(src)

	var schemaErr *schema.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, strings.Index(src, "strang"), schemaErr.Pos)
}

// -- Fuzz Testing --

// FuzzParseExpression feeds arbitrary source text to the parser. Survival
// without panicking is the bar; successful parses must satisfy the
// object-root invariant.
func FuzzParseExpression(f *testing.F) {
	f.Add("object({})")
	f.Add("object({ a: string(), b: array(number()).optional() })")
	f.Add(`object({ "k": any().describe("x") })`)
	f.Add("string()")
	f.Add("object({ a: object({ b: object({ c: boolean() }) }) })")
	f.Add("object({ a: ")
	f.Add(strings.Repeat("array(", 64))

	f.Fuzz(func(t *testing.T, src string) {
		c, err := schema.ParseExpression(src)
		if err != nil {
			var schemaErr *schema.SchemaError
			assert.ErrorAs(t, err, &schemaErr, "parser errors must be SchemaErrors")
			return
		}
		require.NotNil(t, c)
		assert.Equal(t, schema.KindObject, c.Kind)
	})
}
