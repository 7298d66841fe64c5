package schema

import (
	"fmt"

	"github.com/pagepilot-ai/pagepilot/api/schemas"
)

// SchemaError reports a malformed or unresolvable schema descriptor. It is
// the only error kind the resolver produces; callers classify it with
// errors.As.
type SchemaError struct {
	// Source is the descriptor variant being resolved. Empty when the
	// descriptor itself was missing or carried no recognizable tag.
	Source schemas.SchemaSource
	Detail string
	// Pos is a byte offset into expression source text, -1 when the error
	// is not positional.
	Pos int
}

func (e *SchemaError) Error() string {
	switch {
	case e.Pos >= 0:
		return fmt.Sprintf("schema descriptor (%s): %s at offset %d", e.Source, e.Detail, e.Pos)
	case e.Source != "":
		return fmt.Sprintf("schema descriptor (%s): %s", e.Source, e.Detail)
	default:
		return fmt.Sprintf("schema descriptor: %s", e.Detail)
	}
}

func errf(src schemas.SchemaSource, format string, args ...any) *SchemaError {
	return &SchemaError{Source: src, Detail: fmt.Sprintf(format, args...), Pos: -1}
}
