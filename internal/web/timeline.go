package web

import (
	"net/http"

	"github.com/hpungsan/lenote/internal/note"
	"github.com/hpungsan/lenote/internal/ops"
)

// defaultTagColor is used for a tag whose pairings fell outside the tag page.
const defaultTagColor = "#7f8c8d"

// TagChip is a tag as drawn next to a note.
type TagChip struct {
	Name     string
	Color    string
	Archived bool
}

// NoteView is one timeline entry.
type NoteView struct {
	ID        int64
	Timestamp int64
	IsImage   bool
	Text      string
	Tags      []TagChip
}

// TimelinePageData is the template data for the timeline page.
type TimelinePageData struct {
	PageData
	Notes []NoteView
	Tags  []TagChip
	Tag   string
}

// handleTimeline handles GET /app: the newest notes, oldest first, with an
// optional ?tag= filter.
func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := ""
	if raw := r.URL.Query().Get("tag"); raw != "" {
		tag, err := ops.ValidateTag(raw)
		if err != nil {
			s.renderer.renderError(w, err)
			return
		}
		filter = tag
	}

	tags, err := ops.GetTags(ctx, s.store)
	if err != nil {
		s.renderer.renderError(w, err)
		return
	}

	colors := make(map[string]string, len(tags))
	archived := make(map[string]map[int64]bool, len(tags))
	chips := make([]TagChip, 0, len(tags))
	for _, t := range tags {
		colors[t.Name] = t.Color
		chips = append(chips, TagChip{Name: t.Name, Color: t.Color})
		for _, m := range t.Maps {
			if m.Status == note.StatusArchived {
				if archived[t.Name] == nil {
					archived[t.Name] = make(map[int64]bool)
				}
				archived[t.Name][m.NoteID] = true
			}
		}
	}

	notes, err := ops.GetNotes(ctx, s.store, ops.GetNotesInput{})
	if err != nil {
		s.renderer.renderError(w, err)
		return
	}

	views := make([]NoteView, 0, len(notes))
	for _, n := range notes {
		if filter != "" && !hasTag(n, filter) {
			continue
		}
		v := NoteView{
			ID:        n.ID,
			Timestamp: n.Timestamp,
			IsImage:   n.Type == note.TypeImage,
			Text:      n.Text,
			Tags:      make([]TagChip, 0, len(n.Tags)),
		}
		for _, name := range n.Tags {
			color, ok := colors[name]
			if !ok {
				color = defaultTagColor
			}
			v.Tags = append(v.Tags, TagChip{Name: name, Color: color, Archived: archived[name][n.ID]})
		}
		views = append(views, v)
	}

	title := "Timeline"
	if filter != "" {
		title = filter
	}
	s.renderer.renderPage(w, http.StatusOK, "timeline", TimelinePageData{
		PageData: PageData{Title: title, Version: s.renderer.version},
		Notes:    views,
		Tags:     chips,
		Tag:      filter,
	})
}

func hasTag(n note.Note, tag string) bool {
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
