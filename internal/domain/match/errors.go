package match

import "errors"

// ErrDuplicate reports a unique-key violation on insert. The import loop
// treats it as an already-present fixture, not a failure.
var ErrDuplicate = errors.New("duplicate fixture")
