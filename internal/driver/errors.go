// File: internal/driver/errors.go
package driver

import (
	"fmt"

	"github.com/pagepilot-ai/pagepilot/api/schemas"
)

// ConnectionError reports a failure to open a session. The item never
// reached a usable browser, so no operation was attempted.
type ConnectionError struct {
	// URL is the remote endpoint, empty when the engine launches locally.
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("opening browser session: %v", e.Err)
	}
	return fmt.Sprintf("opening browser session at %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// NavigationError reports a failed pre-dispatch page load.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigating to %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// OperationError reports a failure while running an item's operation,
// including panics recovered during dispatch.
type OperationError struct {
	Op  schemas.OperationKind
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s operation failed: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// UnsupportedOperationError reports an operation tag the driver does not
// recognize. Nothing is dispatched for such an item.
type UnsupportedOperationError struct {
	Op schemas.OperationKind
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported operation %q", string(e.Op))
}
