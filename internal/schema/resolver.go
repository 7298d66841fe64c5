package schema

import (
	"encoding/json"
	"strings"

	"github.com/pagepilot-ai/pagepilot/api/schemas"
)

// Resolve normalizes a schema descriptor into a type contract. Exactly one
// descriptor variant is consulted, selected by the source tag, and the
// result is always object-shaped. Resolution is stateless and idempotent:
// the same descriptor always yields the same contract.
func Resolve(spec *schemas.SchemaSpec) (*Contract, error) {
	if spec == nil {
		return nil, errf("", "descriptor is missing")
	}
	switch spec.Source {
	case schemas.SchemaSourceFields:
		return resolveFields(spec.Fields)
	case schemas.SchemaSourceExample:
		return resolveExample(spec.Example)
	case schemas.SchemaSourceDocument:
		return resolveDocument(spec.Document)
	case schemas.SchemaSourceExpression:
		return ParseExpression(spec.Expression)
	default:
		return nil, errf(spec.Source, "unknown schema source %q", string(spec.Source))
	}
}

// resolveFields maps a flat field list onto an object contract. Kinds are
// deliberately coarse: array elements and object members stay unconstrained,
// and an unrecognized kind degrades to an unconstrained node rather than
// failing.
func resolveFields(fields []schemas.FieldSpec) (*Contract, error) {
	props := make(map[string]*Contract, len(fields))
	for _, f := range fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return nil, errf(schemas.SchemaSourceFields, "field name must not be empty")
		}
		if _, exists := props[name]; exists {
			return nil, errf(schemas.SchemaSourceFields, "duplicate field name %q", name)
		}
		c := contractForKind(f.Kind)
		if f.Optional {
			c.AsOptional()
		}
		props[name] = c
	}
	return Object(props), nil
}

func contractForKind(kind schemas.FieldKind) *Contract {
	switch kind {
	case schemas.FieldString:
		return String()
	case schemas.FieldNumber:
		return Number()
	case schemas.FieldBoolean:
		return Boolean()
	case schemas.FieldArray:
		return Array(Any())
	case schemas.FieldObject:
		return OpenObject()
	default:
		return Any()
	}
}

// resolveExample infers a contract from a concrete example value. The
// example must itself be an object; every key becomes a required property
// typed after its runtime value, recursing into nested objects. Array
// elements are typed after the first element.
func resolveExample(example any) (*Contract, error) {
	obj, ok := asObject(example)
	if !ok {
		return nil, errf(schemas.SchemaSourceExample, "example value must be an object, got %T", example)
	}
	props := make(map[string]*Contract, len(obj))
	for key, value := range obj {
		props[key] = inferContract(value)
	}
	return Object(props), nil
}

func inferContract(v any) *Contract {
	switch t := v.(type) {
	case string:
		return String()
	case bool:
		return Boolean()
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, json.Number:
		return Number()
	case []any:
		if len(t) == 0 {
			return Array(Any())
		}
		return Array(inferContract(t[0]))
	case map[string]any:
		props := make(map[string]*Contract, len(t))
		for key, value := range t {
			props[key] = inferContract(value)
		}
		return Object(props)
	default:
		return Any()
	}
}

// asObject normalizes the decoded representations an object example may
// arrive in. YAML decoding yields map[string]any for string-keyed mappings
// and map[any]any otherwise.
func asObject(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case map[any]any:
		out := make(map[string]any, len(t))
		for key, value := range t {
			s, ok := key.(string)
			if !ok {
				return nil, false
			}
			out[s] = value
		}
		return out, true
	default:
		return nil, false
	}
}

// resolveDocument structurally translates a JSON-Schema-style document. The
// root must describe an object. Descriptions are preserved as metadata;
// properties are optional unless listed in "required"; unknown keys are
// stripped at coercion time unless the document sets
// additionalProperties=true.
func resolveDocument(doc map[string]any) (*Contract, error) {
	if len(doc) == 0 {
		return nil, errf(schemas.SchemaSourceDocument, "schema document is empty")
	}
	c, err := translateNode(doc)
	if err != nil {
		return nil, err
	}
	if c.Kind != KindObject {
		return nil, errf(schemas.SchemaSourceDocument, "document root must describe an object, not %s", c.Kind)
	}
	return c, nil
}

func translateNode(node map[string]any) (*Contract, error) {
	typeName := ""
	if raw, present := node["type"]; present {
		s, ok := raw.(string)
		if !ok {
			return nil, errf(schemas.SchemaSourceDocument, "type declaration must be a string, got %T", raw)
		}
		typeName = s
	} else if _, hasProps := node["properties"]; hasProps {
		// Documents commonly omit "type" when "properties" makes the
		// object shape evident.
		typeName = "object"
	}

	var c *Contract
	switch typeName {
	case "object":
		var err error
		if c, err = translateObject(node); err != nil {
			return nil, err
		}
	case "array":
		item := Any()
		if rawItems, present := node["items"]; present {
			itemNode, ok := rawItems.(map[string]any)
			if !ok {
				return nil, errf(schemas.SchemaSourceDocument, "items must be a schema object, got %T", rawItems)
			}
			var err error
			if item, err = translateNode(itemNode); err != nil {
				return nil, err
			}
		}
		c = Array(item)
	case "string":
		c = String()
	case "number", "integer":
		c = Number()
	case "boolean":
		c = Boolean()
	default:
		c = Any()
	}

	if desc, ok := node["description"].(string); ok && desc != "" {
		c.Describe(desc)
	}
	return c, nil
}

func translateObject(node map[string]any) (*Contract, error) {
	props := map[string]*Contract{}
	if rawProps, present := node["properties"]; present {
		propsMap, ok := rawProps.(map[string]any)
		if !ok {
			return nil, errf(schemas.SchemaSourceDocument, "properties must be an object, got %T", rawProps)
		}
		for name, rawProp := range propsMap {
			propNode, ok := rawProp.(map[string]any)
			if !ok {
				return nil, errf(schemas.SchemaSourceDocument, "property %q must be a schema object, got %T", name, rawProp)
			}
			prop, err := translateNode(propNode)
			if err != nil {
				return nil, err
			}
			// Optional until proven required below.
			props[name] = prop.AsOptional()
		}
	}

	if rawRequired, present := node["required"]; present {
		list, ok := rawRequired.([]any)
		if !ok {
			return nil, errf(schemas.SchemaSourceDocument, "required must be a list, got %T", rawRequired)
		}
		for _, entry := range list {
			name, ok := entry.(string)
			if !ok {
				continue
			}
			if prop, declared := props[name]; declared {
				prop.Optional = false
			}
		}
	}

	c := Object(props)
	if open, ok := node["additionalProperties"].(bool); ok && open {
		c.Open = true
	}
	return c, nil
}
