package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/lenote/internal/db"
	"github.com/hpungsan/lenote/internal/errors"
	"github.com/hpungsan/lenote/internal/media"
	"github.com/hpungsan/lenote/internal/note"
	"github.com/hpungsan/lenote/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	store   *db.Store
	images  *media.Extractor
	dataDir string
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store *db.Store, images *media.Extractor, dataDir string) *Handlers {
	return &Handlers{store: store, images: images, dataDir: dataDir}
}

type noteSaveRequest struct {
	Text     string `json:"text"`
	NoteType string `json:"note_type,omitempty"`
}

type noteListRequest struct {
	MinID *int64 `json:"min_id,omitempty"`
	MaxID *int64 `json:"max_id,omitempty"`
}

type noteExportRequest struct {
	Path string `json:"path,omitempty"`
}

type tagRequest struct {
	Tag string `json:"tag"`
}

type tagMapUpdateRequest struct {
	Tag    string `json:"tag"`
	NoteID int64  `json:"note_id"`
	Status string `json:"status"`
}

// HandleNoteSave handles the note_save tool.
func (h *Handlers) HandleNoteSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[noteSaveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	noteType := note.TypeText
	if input.NoteType != "" {
		if noteType, err = note.ParseNoteTypeName(input.NoteType); err != nil {
			return errorResult(errors.NewInvalidRequest(
				fmt.Sprintf("note_type must be text or image, got %q", input.NoteType))), nil
		}
	}

	saved, err := ops.SaveNote(ctx, h.store, h.images, ops.SaveNoteInput{
		Text: input.Text,
		Type: noteType,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(saved)
}

// HandleNoteList handles the note_list tool.
func (h *Handlers) HandleNoteList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[noteListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	notes, err := ops.GetNotes(ctx, h.store, ops.GetNotesInput{
		MinID: input.MinID,
		MaxID: input.MaxID,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"notes": notes})
}

// HandleNoteExport handles the note_export tool.
func (h *Handlers) HandleNoteExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[noteExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.store, ops.ExportInput{
		Path:    input.Path,
		DataDir: h.dataDir,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleTagList handles the tag_list tool.
func (h *Handlers) HandleTagList(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tags, err := ops.GetTags(ctx, h.store)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"tags": tags})
}

// HandleTagMapGet handles the tag_map_get tool.
func (h *Handlers) HandleTagMapGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[tagRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	maps, err := ops.GetTagMap(ctx, h.store, ops.GetTagMapInput{Tag: input.Tag})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"maps": maps})
}

// HandleTagMapUpdate handles the tag_map_update tool.
func (h *Handlers) HandleTagMapUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[tagMapUpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	status, err := note.ParseStatusName(input.Status)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	updated, err := ops.UpdateTagMapStatus(ctx, h.store, ops.UpdateTagMapStatusInput{
		Tag:    input.Tag,
		NoteID: input.NoteID,
		Status: status,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(updated)
}

// HandleTagHistory handles the tag_history tool.
func (h *Handlers) HandleTagHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[tagRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	history, err := ops.TagHistory(ctx, h.store, ops.TagHistoryInput{Tag: input.Tag})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"history": history})
}

// errorResult converts an error to an MCP error result.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if e, ok := errors.As(err); ok && e.Code != errors.ErrInternal {
		errorObj := map[string]any{
			"code":    e.Code,
			"message": e.Message,
			"status":  e.Status,
		}
		if len(e.Details) > 0 {
			errorObj["details"] = e.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		// Internal errors may carry file paths or SQL text.
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates a successful MCP result with JSON data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
