package inventory

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when name resolution yields no match for a friendly
// name. It is never substituted with a default silently.
var ErrNotFound = errors.New("not found")

// notFoundError renders the user-facing "X not found: name" message while
// staying matchable via errors.Is(err, ErrNotFound).
func notFoundError(kind, name string) error {
	return fmt.Errorf("%s %w: %s", kind, ErrNotFound, name)
}
