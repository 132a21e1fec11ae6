package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/lenote/internal/db"
	"github.com/hpungsan/lenote/internal/errors"
	"github.com/hpungsan/lenote/internal/media"
	"github.com/hpungsan/lenote/internal/note"
)

// SaveNoteInput contains parameters for the SaveNote operation.
// Any client timestamp is ignored; the server stamps the note.
type SaveNoteInput struct {
	Text string        // required
	Type note.NoteType // default: TypeText
}

// SaveNote stamps the note with the current time, moves an image body into
// a file when Type is TypeImage, then runs the compound write. The file is
// removed again if the write fails.
// images may be nil, in which case image bodies are stored verbatim.
func SaveNote(ctx context.Context, store *db.Store, images *media.Extractor, input SaveNoteInput) (*note.Note, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, errors.NewInvalidRequest("text is required")
	}
	if _, err := note.ParseNoteType(int64(input.Type)); err != nil {
		return nil, errors.NewInvalidRequest("note_type must be text or image")
	}

	n := note.Note{
		Text:      input.Text,
		Timestamp: now().Unix(),
		Type:      input.Type,
	}

	stored := false
	if n.Type == note.TypeImage && images != nil {
		ref, ok, err := images.Extract(n.Text)
		if err != nil {
			return nil, err
		}
		n.Text, stored = ref, ok
	}

	saved, err := store.SaveNoteWithTags(ctx, n)
	if err != nil {
		// No row points at the file once the write rolls back.
		if stored {
			_ = images.Remove(n.Text)
		}
		return nil, err
	}
	return saved, nil
}

// GetNotesInput contains parameters for the GetNotes operation.
type GetNotesInput struct {
	MinID *int64 // default: DefaultMinID
	MaxID *int64 // default: DefaultMaxID
}

// GetNotes returns the newest page of notes in [MinID, MaxID], oldest first.
func GetNotes(ctx context.Context, store *db.Store, input GetNotesInput) ([]note.Note, error) {
	minID, maxID := DefaultMinID, DefaultMaxID
	if input.MinID != nil {
		minID = *input.MinID
	}
	if input.MaxID != nil {
		maxID = *input.MaxID
	}
	return store.GetNotes(ctx, minID, maxID)
}
