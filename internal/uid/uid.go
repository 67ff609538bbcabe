// Package uid generates the opaque identifiers used to address uploads.
package uid

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// New returns a fresh 128-bit id rendered as 32 lowercase hex characters,
// with no separators. It is used both as the upload id and as the basis for
// the <id> and <id>.info filenames in the store.
func New() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// Valid reports whether s has the shape of an id produced by New: exactly 32
// lowercase hex characters. The store's enumerate operation uses this same
// length check as a heuristic for "is an upload id".
func Valid(s string) bool {
	if len(s) != 32 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
