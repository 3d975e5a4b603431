package artifact

import "fmt"

var (
	// ErrNotFound is returned when no version exists for the given artifact id.
	ErrNotFound = fmt.Errorf("artifact not found")

	// ErrVersionNotFound is returned when the artifact exists but the requested
	// version number does not.
	ErrVersionNotFound = fmt.Errorf("artifact version not found")
)
