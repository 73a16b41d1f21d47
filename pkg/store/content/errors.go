package content

import "errors"

// These errors provide a consistent way to indicate common failure conditions
// across all content store implementations. Implementations wrap them with
// context:
//
//	return fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)

var (
	// ErrContentNotFound indicates the requested content does not exist.
	//
	// Protocol Mapping:
	//   - HTTP: 404 Not Found
	ErrContentNotFound = errors.New("content not found")

	// ErrInvalidContentID indicates the content ID cannot be mapped to the
	// backend's key space (empty, or escaping the base directory).
	ErrInvalidContentID = errors.New("invalid content id")
)
