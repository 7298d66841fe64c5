// Package schema normalizes the four user-facing schema descriptor variants
// into a single type contract used to shape structured extraction.
package schema

import "sort"

// Kind is the coarse type of a contract node.
type Kind string

const (
	KindAny     Kind = "any"
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindArray   Kind = "array"
	KindObject  Kind = "object"
)

// Contract is the normalized description of an expected value shape. The
// resolver always produces an object-shaped root; nested nodes may be any
// kind. A Contract is immutable once resolved and safe for reuse across
// extractions.
type Contract struct {
	Kind        Kind
	Description string
	// Optional marks a property as not required by its enclosing object.
	Optional bool
	// Items is the element contract for KindArray. Nil means unconstrained.
	Items *Contract
	// Properties holds the named members of a KindObject node.
	Properties map[string]*Contract
	// Open lets a KindObject node pass through keys it does not declare.
	Open bool
}

// Any returns an unconstrained contract node.
func Any() *Contract { return &Contract{Kind: KindAny} }

// String returns a string-typed contract node.
func String() *Contract { return &Contract{Kind: KindString} }

// Number returns a number-typed contract node.
func Number() *Contract { return &Contract{Kind: KindNumber} }

// Boolean returns a boolean-typed contract node.
func Boolean() *Contract { return &Contract{Kind: KindBoolean} }

// Array returns an array contract with the given element contract. A nil
// item leaves the element shape unconstrained.
func Array(item *Contract) *Contract {
	if item == nil {
		item = Any()
	}
	return &Contract{Kind: KindArray, Items: item}
}

// Object returns a closed object contract with the given named properties.
func Object(props map[string]*Contract) *Contract {
	if props == nil {
		props = map[string]*Contract{}
	}
	return &Contract{Kind: KindObject, Properties: props}
}

// OpenObject returns an object contract that declares no properties and
// passes every key through unconstrained.
func OpenObject() *Contract {
	return &Contract{Kind: KindObject, Properties: map[string]*Contract{}, Open: true}
}

// AsOptional marks the node as optional in its enclosing object and returns
// it for chaining.
func (c *Contract) AsOptional() *Contract {
	c.Optional = true
	return c
}

// Describe attaches informational metadata to the node and returns it for
// chaining. Descriptions are never enforced.
func (c *Contract) Describe(text string) *Contract {
	c.Description = text
	return c
}

// PropertyNames returns the declared property names of an object node in
// sorted order. Nil for non-object nodes.
func (c *Contract) PropertyNames() []string {
	if c == nil || c.Kind != KindObject {
		return nil
	}
	names := make([]string, 0, len(c.Properties))
	for name := range c.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// requiredNames returns the non-optional property names in sorted order.
func (c *Contract) requiredNames() []string {
	required := make([]string, 0, len(c.Properties))
	for name, prop := range c.Properties {
		if prop != nil && !prop.Optional {
			required = append(required, name)
		}
	}
	sort.Strings(required)
	return required
}
