package web

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hpungsan/lenote/internal/errors"
	"github.com/hpungsan/lenote/internal/note"
	"github.com/hpungsan/lenote/internal/ops"
)

// saveNoteRequest is the POST /api/notes body. Clients may echo back id,
// timestamp or tags; they are ignored.
type saveNoteRequest struct {
	Text     string `json:"text" validate:"required"`
	NoteType string `json:"note_type" validate:"omitempty,oneof=text image"`
}

// updateTagMapRequest is the POST /api/tags/{tag} body. The timestamp a
// client sends is ignored; the transition is stamped by the server.
type updateTagMapRequest struct {
	NoteID    int64  `json:"note_id" validate:"required,gt=0"`
	Status    string `json:"status" validate:"required,oneof=active archived"`
	Timestamp int64  `json:"timestamp"`
}

// wireName folds an enum name to the lowercase form the validators check.
// Older clients send "Text", "Archived" and so on.
func wireName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// handleHealth reports that the server is up.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSaveNote handles POST /api/notes.
func (s *Server) handleSaveNote(w http.ResponseWriter, r *http.Request) {
	var req saveNoteRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		renderAPIError(w, err)
		return
	}
	req.NoteType = wireName(req.NoteType)
	if err := s.validate.Validate(req); err != nil {
		renderAPIError(w, err)
		return
	}

	input := ops.SaveNoteInput{Text: req.Text, Type: note.TypeText}
	if req.NoteType != "" {
		t, err := note.ParseNoteTypeName(req.NoteType)
		if err != nil {
			renderAPIError(w, errors.NewInvalidRequest(err.Error()))
			return
		}
		input.Type = t
	}

	saved, err := ops.SaveNote(r.Context(), s.store, s.images, input)
	if err != nil {
		renderAPIError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, saved)
}

// handleGetNotes handles GET /api/notes?min_id=&max_id=.
func (s *Server) handleGetNotes(w http.ResponseWriter, r *http.Request) {
	var input ops.GetNotesInput
	var err error
	if input.MinID, err = parseInt64Param(r, "min_id"); err != nil {
		renderAPIError(w, err)
		return
	}
	if input.MaxID, err = parseInt64Param(r, "max_id"); err != nil {
		renderAPIError(w, err)
		return
	}

	notes, err := ops.GetNotes(r.Context(), s.store, input)
	if err != nil {
		renderAPIError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, notes)
}

// handleGetTags handles GET /api/tags.
func (s *Server) handleGetTags(w http.ResponseWriter, r *http.Request) {
	tags, err := ops.GetTags(r.Context(), s.store)
	if err != nil {
		renderAPIError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, tags)
}

// handleGetTagMap handles GET /api/tags/{tag}. The path omits the '#'.
func (s *Server) handleGetTagMap(w http.ResponseWriter, r *http.Request) {
	maps, err := ops.GetTagMap(r.Context(), s.store, ops.GetTagMapInput{Tag: chi.URLParam(r, "tag")})
	if err != nil {
		renderAPIError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, maps)
}

// handleUpdateTagMap handles POST /api/tags/{tag}.
func (s *Server) handleUpdateTagMap(w http.ResponseWriter, r *http.Request) {
	var req updateTagMapRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		renderAPIError(w, err)
		return
	}
	req.Status = wireName(req.Status)
	if err := s.validate.Validate(req); err != nil {
		renderAPIError(w, err)
		return
	}

	status, err := note.ParseStatusName(req.Status)
	if err != nil {
		renderAPIError(w, errors.NewInvalidRequest(err.Error()))
		return
	}

	updated, err := ops.UpdateTagMapStatus(r.Context(), s.store, ops.UpdateTagMapStatusInput{
		Tag:    chi.URLParam(r, "tag"),
		NoteID: req.NoteID,
		Status: status,
	})
	if err != nil {
		renderAPIError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, updated)
}

// handleTagHistory handles GET /api/tags/{tag}/history.
func (s *Server) handleTagHistory(w http.ResponseWriter, r *http.Request) {
	history, err := ops.TagHistory(r.Context(), s.store, ops.TagHistoryInput{Tag: chi.URLParam(r, "tag")})
	if err != nil {
		renderAPIError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, history)
}

// decodeBody reads a JSON body capped at the upload limit plus base64 and
// envelope overhead.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	limit := s.cfg.MaxUploadBytes/3*4 + 64<<10
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			return errors.NewPayloadTooLarge(maxErr.Limit, -1)
		}
		if stderrors.Is(err, io.EOF) {
			return errors.NewInvalidRequest("request body is required")
		}
		return errors.NewInvalidRequest(fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

// parseInt64Param parses an optional integer query parameter.
func parseInt64Param(r *http.Request, name string) (*int64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("%s must be an integer", name))
	}
	return &v, nil
}
