package ops

import (
	"context"

	"github.com/hpungsan/lenote/internal/db"
	"github.com/hpungsan/lenote/internal/errors"
	"github.com/hpungsan/lenote/internal/note"
)

// GetTags returns every tag seen in the newest pairings, alphabetically.
func GetTags(ctx context.Context, store *db.Store) ([]note.Tag, error) {
	return store.GetTags(ctx)
}

// GetTagMapInput contains parameters for the GetTagMap operation.
type GetTagMapInput struct {
	Tag string // required; the leading '#' is optional
}

// GetTagMap returns all pairings of one tag, newest note first.
func GetTagMap(ctx context.Context, store *db.Store, input GetTagMapInput) ([]note.TagMap, error) {
	tag, err := ValidateTag(input.Tag)
	if err != nil {
		return nil, err
	}
	return store.GetTagMap(ctx, tag)
}

// UpdateTagMapStatusInput contains parameters for the UpdateTagMapStatus operation.
type UpdateTagMapStatusInput struct {
	Tag    string            // required; the leading '#' is optional
	NoteID int64             // required
	Status note.TagMapStatus // required
}

// UpdateTagMapStatus moves one (tag, note) pairing to Status and records
// the transition in the history log.
func UpdateTagMapStatus(ctx context.Context, store *db.Store, input UpdateTagMapStatusInput) (*note.TagMap, error) {
	tag, err := ValidateTag(input.Tag)
	if err != nil {
		return nil, err
	}
	if input.NoteID <= 0 {
		return nil, errors.NewInvalidRequest("note_id must be positive")
	}
	if !input.Status.Valid() {
		return nil, errors.NewInvalidRequest("status must be active or archived")
	}

	return store.UpdateTagMapStatus(ctx, tag, note.TagMap{
		NoteID: input.NoteID,
		Status: input.Status,
	})
}

// TagHistoryInput contains parameters for the TagHistory operation.
type TagHistoryInput struct {
	Tag string // required; the leading '#' is optional
}

// TagHistory returns the recorded status transitions of one tag, newest first.
func TagHistory(ctx context.Context, store *db.Store, input TagHistoryInput) ([]note.TagMapHistory, error) {
	tag, err := ValidateTag(input.Tag)
	if err != nil {
		return nil, err
	}
	return store.TagHistory(ctx, tag)
}
