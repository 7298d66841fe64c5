package schema

import "google.golang.org/genai"

// GenAISchema renders the contract as a Gemini response schema. The Gemini
// schema type set has no unconstrained member, so KindAny nodes degrade to
// strings; optional properties become nullable and are left out of the
// required list.
func (c *Contract) GenAISchema() *genai.Schema {
	if c == nil {
		c = Any()
	}
	s := &genai.Schema{Description: c.Description}
	if c.Optional {
		s.Nullable = genai.Ptr(true)
	}
	switch c.Kind {
	case KindString, KindAny:
		s.Type = genai.TypeString
	case KindNumber:
		s.Type = genai.TypeNumber
	case KindBoolean:
		s.Type = genai.TypeBoolean
	case KindArray:
		s.Type = genai.TypeArray
		s.Items = c.Items.GenAISchema()
	case KindObject:
		s.Type = genai.TypeObject
		names := c.PropertyNames()
		if len(names) > 0 {
			s.Properties = make(map[string]*genai.Schema, len(names))
			for _, name := range names {
				s.Properties[name] = c.Properties[name].GenAISchema()
			}
			s.PropertyOrdering = names
		}
		s.Required = c.requiredNames()
	default:
		s.Type = genai.TypeString
	}
	return s
}

// JSONSchema renders the contract as a JSON-Schema-style map, suitable for
// embedding in prompts or passing to providers that constrain output with a
// schema document. KindAny renders as the empty (unconstrained) schema.
func (c *Contract) JSONSchema() map[string]any {
	if c == nil {
		return map[string]any{}
	}
	m := map[string]any{}
	if c.Description != "" {
		m["description"] = c.Description
	}
	switch c.Kind {
	case KindString:
		m["type"] = "string"
	case KindNumber:
		m["type"] = "number"
	case KindBoolean:
		m["type"] = "boolean"
	case KindArray:
		m["type"] = "array"
		m["items"] = c.Items.JSONSchema()
	case KindObject:
		m["type"] = "object"
		props := make(map[string]any, len(c.Properties))
		for name, prop := range c.Properties {
			props[name] = prop.JSONSchema()
		}
		m["properties"] = props
		if required := c.requiredNames(); len(required) > 0 {
			m["required"] = required
		}
		if !c.Open {
			m["additionalProperties"] = false
		}
	}
	return m
}
