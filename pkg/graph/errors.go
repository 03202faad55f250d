package graph

import (
	"errors"
	"fmt"
	"strings"
)

// Bookkeeping errors. These signal a mis-tracked dependency graph and are
// never expected from correct API use.
var (
	ErrDetached         = errors.New("graph: entity is not attached to a document")
	ErrDisposed         = errors.New("graph: entity has been disposed")
	ErrAlreadyDependant = errors.New("graph: dependant is already registered")
	ErrNotDependant     = errors.New("graph: dependant was never registered")
)

// User-facing errors.
var (
	ErrHasDependants      = errors.New("graph: entity is referenced by other entities")
	ErrInvalidReplacement = errors.New("graph: replacement failed validation")
	ErrForwardReference   = errors.New("graph: link target does not precede the entity")
	ErrDuplicateLink      = errors.New("graph: target is already linked by another connector of the entity")
	ErrForeignEntity      = errors.New("graph: entity belongs to another document")
	ErrIndexOutOfRange    = errors.New("graph: index out of range")
	ErrParameterType      = errors.New("graph: unsupported parameter value")
	ErrUnknownKind        = errors.New("graph: unknown entity kind")
)

// Resolution and decoding errors.
var (
	ErrDanglingReference = errors.New("graph: link target no longer exists")
	ErrUnlinked          = errors.New("graph: connector is not linked")
	ErrMalformedDocument = errors.New("graph: malformed document")
)

// IsBookkeeping reports whether err belongs to the internal bookkeeping class.
func IsBookkeeping(err error) bool {
	return errors.Is(err, ErrDetached) ||
		errors.Is(err, ErrDisposed) ||
		errors.Is(err, ErrAlreadyDependant) ||
		errors.Is(err, ErrNotDependant)
}

// ReplaceError is returned by ReplaceItem when the candidate fails
// CheckReplaceItem. It carries every finding.
type ReplaceError struct {
	Index    int
	Problems []ValidationError
}

func (e *ReplaceError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Message)
	}
	return fmt.Sprintf("graph: cannot replace element %d: %s", e.Index, strings.Join(msgs, "; "))
}

// Unwrap allows errors.Is(err, ErrInvalidReplacement).
func (e *ReplaceError) Unwrap() error {
	return ErrInvalidReplacement
}
