package note

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hpungsan/lenote/internal/errors"
)

// NoteType distinguishes plain text notes from image notes.
// The integer value is what the notes.note_type column stores.
type NoteType int

const (
	TypeText  NoteType = 0
	TypeImage NoteType = 1
)

// ParseNoteType decodes a persisted note_type value.
// Unknown values fail with a CONVERSION_ERROR instead of defaulting.
func ParseNoteType(v int64) (NoteType, error) {
	switch NoteType(v) {
	case TypeText, TypeImage:
		return NoteType(v), nil
	}
	return 0, errors.NewConversion("NoteType", v)
}

// String returns the wire name of the note type.
func (t NoteType) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeImage:
		return "image"
	}
	return fmt.Sprintf("NoteType(%d)", int(t))
}

// MarshalJSON encodes the type as its wire name.
func (t NoteType) MarshalJSON() ([]byte, error) {
	if t != TypeText && t != TypeImage {
		return nil, errors.NewConversion("NoteType", int64(t))
	}
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts "text" or "image" (case-insensitive).
func (t *NoteType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("note_type must be a string: %w", err)
	}
	v, err := ParseNoteTypeName(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseNoteTypeName decodes a wire name ("text", "Image", ...).
func ParseNoteTypeName(s string) (NoteType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text":
		return TypeText, nil
	case "image":
		return TypeImage, nil
	}
	return 0, fmt.Errorf("unknown note_type %q", s)
}

// TagMapStatus is the lifecycle state of a (tag, note) pairing.
type TagMapStatus int

const (
	StatusActive   TagMapStatus = 0
	StatusArchived TagMapStatus = 1
)

// ParseTagMapStatus decodes a persisted status value.
func ParseTagMapStatus(v int64) (TagMapStatus, error) {
	switch TagMapStatus(v) {
	case StatusActive, StatusArchived:
		return TagMapStatus(v), nil
	}
	return 0, errors.NewConversion("TagMapStatus", v)
}

// ParseStatusName decodes a wire status name ("active" or "archived").
func ParseStatusName(s string) (TagMapStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return StatusActive, nil
	case "archived":
		return StatusArchived, nil
	}
	return 0, fmt.Errorf("unknown status %q", s)
}

// String returns the wire name of the status.
func (s TagMapStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusArchived:
		return "archived"
	}
	return fmt.Sprintf("TagMapStatus(%d)", int(s))
}

// Valid reports whether s is a known status.
func (s TagMapStatus) Valid() bool {
	return s == StatusActive || s == StatusArchived
}

// MarshalJSON encodes the status as its wire name.
func (s TagMapStatus) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, errors.NewConversion("TagMapStatus", int64(s))
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts "active" or "archived" (case-insensitive).
func (s *TagMapStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("status must be a string: %w", err)
	}
	v, err := ParseStatusName(name)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Note is a single timestamped entry.
type Note struct {
	// ID is assigned by the store on insert
	ID int64 `json:"id"`

	// Text is the raw content; for image notes, the stored file reference
	Text string `json:"text"`

	// Timestamp is Unix seconds, assigned by the server at insert time
	Timestamp int64 `json:"timestamp"`

	Type NoteType `json:"note_type"`

	// Tags is derived on read from tag_map, sorted, never persisted on the row
	Tags []string `json:"tags"`
}

// Tag is a #-prefixed lowercase label with a display color.
type Tag struct {
	Name  string   `json:"tag"`
	Color string   `json:"color"`
	Maps  []TagMap `json:"maps"`
}

// TagMap links one tag to one note.
type TagMap struct {
	NoteID    int64        `json:"note_id"`
	Status    TagMapStatus `json:"status"`
	Timestamp int64        `json:"timestamp"`
}

// TagMapHistory is one append-only audit row for a status transition.
type TagMapHistory struct {
	ID        int64        `json:"id"`
	Tag       string       `json:"tag"`
	NoteID    int64        `json:"note_id"`
	Status    TagMapStatus `json:"status"`
	Timestamp int64        `json:"timestamp"`
}
