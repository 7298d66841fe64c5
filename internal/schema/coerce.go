package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Coerce aligns an extracted value with an object contract: required
// properties must be present, scalar values are converted toward their
// declared kind where the conversion is lossless (numeric strings, stringly
// booleans), and undeclared keys are dropped unless the object is open.
// Coercion failures are ordinary errors, not SchemaErrors: the descriptor
// was fine, the extracted value was not.
func Coerce(c *Contract, value any) (map[string]any, error) {
	if c == nil || c.Kind != KindObject {
		return nil, fmt.Errorf("coerce target must be an object contract")
	}
	out, err := coerceObject(c, value)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func coerceObject(c *Contract, value any) (map[string]any, error) {
	obj, ok := asObject(value)
	if !ok {
		return nil, fmt.Errorf("expected an object, got %T", value)
	}
	out := make(map[string]any, len(obj))
	for _, name := range c.PropertyNames() {
		prop := c.Properties[name]
		raw, present := obj[name]
		if !present || raw == nil {
			if prop.Optional {
				continue
			}
			if present && prop.Kind == KindAny {
				out[name] = nil
				continue
			}
			if present {
				return nil, fmt.Errorf("property %q is null but required", name)
			}
			return nil, fmt.Errorf("missing required property %q", name)
		}
		coerced, err := coerceValue(prop, raw)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		out[name] = coerced
	}
	if c.Open {
		for key, raw := range obj {
			if _, declared := c.Properties[key]; !declared {
				out[key] = raw
			}
		}
	}
	return out, nil
}

func coerceValue(c *Contract, value any) (any, error) {
	if c == nil {
		return value, nil
	}
	switch c.Kind {
	case KindAny:
		return value, nil
	case KindString:
		return coerceString(value)
	case KindNumber:
		return coerceNumber(value)
	case KindBoolean:
		return coerceBoolean(value)
	case KindArray:
		list, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("expected an array, got %T", value)
		}
		out := make([]any, len(list))
		for i, item := range list {
			coerced, err := coerceValue(c.Items, item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = coerced
		}
		return out, nil
	case KindObject:
		return coerceObject(c, value)
	default:
		return value, nil
	}
}

func coerceString(value any) (any, error) {
	switch t := value.(type) {
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	case json.Number:
		return t.String(), nil
	default:
		return nil, fmt.Errorf("cannot represent %T as a string", value)
	}
}

func coerceNumber(value any) (any, error) {
	switch t := value.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as a number", t)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("cannot represent %T as a number", value)
	}
}

func coerceBoolean(value any) (any, error) {
	switch t := value.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as a boolean", t)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("cannot represent %T as a boolean", value)
	}
}
