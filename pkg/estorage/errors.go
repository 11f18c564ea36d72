package estorage

import (
	"errors"
	"fmt"
)

var ErrIdentifierInvalid = errors.New("identifier invalid")

// IdentifierInvalidError is returned before any backend call when an id or
// query does not match its pattern. Field names the offending input.
type IdentifierInvalidError struct {
	Field  string
	Reason string
}

func (e *IdentifierInvalidError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *IdentifierInvalidError) Is(target error) bool {
	return target == ErrIdentifierInvalid
}
