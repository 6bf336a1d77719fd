package xid

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a random identifier tagged with prefix, e.g. "batch-4f1c...".
func New(prefix string) string {
	id := uuid.NewString()
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}

// Valid reports whether id carries prefix followed by a well-formed UUID.
func Valid(prefix string, id string) bool {
	if prefix != "" {
		rest, ok := strings.CutPrefix(id, prefix+"-")
		if !ok {
			return false
		}
		id = rest
	}
	_, err := uuid.Parse(id)
	return err == nil
}
