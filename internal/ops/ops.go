// Package ops implements the caller-facing note and tag operations shared
// by the HTTP, MCP and CLI surfaces: input validation and defaults on top
// of the db store.
package ops

import (
	"fmt"
	"math"
	"time"

	"github.com/hpungsan/lenote/internal/errors"
	"github.com/hpungsan/lenote/internal/note"
)

// Note id bounds applied when a caller omits them.
const (
	DefaultMinID int64 = 1
	DefaultMaxID int64 = math.MaxInt64 - 1
)

// now is the clock used to stamp new notes. Tests replace it.
var now = time.Now

// ValidateTag normalizes a tag argument ("Todo", "#todo", " #TODO ") to its
// stored form and rejects anything that could never have been extracted.
func ValidateTag(raw string) (string, error) {
	tag := note.NormalizeTag(raw)
	if tag == "" {
		return "", errors.NewInvalidRequest("tag is required")
	}
	if !note.ValidTagName(tag) {
		return "", errors.NewInvalidRequest(fmt.Sprintf("invalid tag %q: want # followed by letters, digits, '-' or '_'", raw))
	}
	return tag, nil
}
