package portabletab

import "errors"

// Error kinds. Every error the store returns that a caller might want to
// branch on wraps one of these with errors.Is; the wrapped text carries
// the specific path/attribute/position.
var (
	// ErrNotFound covers a missing table directory, descriptor, or page
	// file when one was required to exist.
	ErrNotFound = errors.New("portabletab: not found")

	// ErrNoIndex is returned when a search is attempted on an attribute
	// that has no trie index file.
	ErrNoIndex = errors.New("portabletab: no index")

	// ErrInvalidSchema is returned when schema text fails to compile and
	// cannot be auto-repaired.
	ErrInvalidSchema = errors.New("portabletab: invalid schema")

	// ErrInvalidArgument covers out-of-range ordinals, unknown search
	// modes, unknown attributes, and empty record names.
	ErrInvalidArgument = errors.New("portabletab: invalid argument")

	// ErrCorruption is returned when a page fails the frame checks made
	// when it is opened (size, magic, offset directory, data length,
	// checksum). It is classified as an IO error with a corruption marker
	// rather than a plain invalid-argument error. A page whose frame is
	// intact but holds fewer records than the descriptor's count implies
	// is not reported as ErrCorruption: reading one of the missing slots
	// returns the codec's out-of-range error unclassified.
	ErrCorruption = errors.New("portabletab: corruption")
)
