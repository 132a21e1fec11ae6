package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/lenote/internal/config"
	"github.com/hpungsan/lenote/internal/db"
	"github.com/hpungsan/lenote/internal/errors"
	"github.com/hpungsan/lenote/internal/logger"
	"github.com/hpungsan/lenote/internal/media"
)

// testSetup opens a store in a temporary data directory.
func testSetup(t *testing.T) (*db.Store, *media.Extractor, *config.Config, string) {
	t.Helper()

	dataDir := t.TempDir()
	store, err := db.Open(dataDir, nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	images := media.NewExtractor(dataDir, 1<<20, logger.Discard())
	return store, images, config.DefaultConfig(), dataDir
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func TestHandleNoteSave(t *testing.T) {
	store, images, _, dataDir := testSetup(t)
	h := NewHandlers(store, images, dataDir)
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
	}{
		{
			name: "text note with tags",
			args: map[string]any{"text": "ship it #work #Todo"},
		},
		{
			name: "explicit text type",
			args: map[string]any{"text": "plain", "note_type": "text"},
		},
		{
			name: "capitalized type",
			args: map[string]any{"text": "plain", "note_type": "Text"},
		},
		{
			name:      "missing text",
			args:      map[string]any{},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "blank text",
			args:      map[string]any{"text": "   "},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "unknown note type",
			args:      map[string]any{"text": "x", "note_type": "video"},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "text has wrong type",
			args:      map[string]any{"text": 42},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleNoteSave(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}

			if tt.wantError {
				if !result.IsError {
					t.Errorf("expected error result, got success")
				}
				if tt.errorCode != "" {
					assertErrorCode(t, result, tt.errorCode)
				}
			} else if result.IsError {
				t.Errorf("expected success, got error: %v", extractErrorMessage(result))
			}
		})
	}
}

func TestHandleNoteSave_ReturnsSavedNote(t *testing.T) {
	store, images, _, dataDir := testSetup(t)
	h := NewHandlers(store, images, dataDir)

	result, err := h.HandleNoteSave(context.Background(), makeRequest(map[string]any{
		"text": "groceries #home #errands #home",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)

	if id, _ := output["id"].(float64); id != 1 {
		t.Errorf("id = %v, want 1", output["id"])
	}
	if output["note_type"] != "text" {
		t.Errorf("note_type = %v, want text", output["note_type"])
	}
	if ts, _ := output["timestamp"].(float64); ts <= 0 {
		t.Errorf("timestamp = %v, want server-assigned value", output["timestamp"])
	}
	tags, _ := output["tags"].([]any)
	if len(tags) != 2 {
		t.Errorf("tags = %v, want 2 distinct tags", output["tags"])
	}
}

func TestHandleNoteSave_Image(t *testing.T) {
	store, images, _, dataDir := testSetup(t)
	h := NewHandlers(store, images, dataDir)

	payload := base64.StdEncoding.EncodeToString([]byte("\x89PNG fake image"))
	result, err := h.HandleNoteSave(context.Background(), makeRequest(map[string]any{
		"text":      "data:image/png;base64," + payload,
		"note_type": "image",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)

	ref, _ := output["text"].(string)
	if !strings.HasPrefix(ref, "/res/images/") || !strings.HasSuffix(ref, ".png") {
		t.Fatalf("text = %q, want /res/images/<name>.png", ref)
	}
	if _, err := os.Stat(filepath.Join(images.Dir(), filepath.Base(ref))); err != nil {
		t.Errorf("image file not written: %v", err)
	}
}

func TestHandleNoteList(t *testing.T) {
	store, images, _, dataDir := testSetup(t)
	h := NewHandlers(store, images, dataDir)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		saveNote(t, h, fmt.Sprintf("note %d #n%d", i, i))
	}

	tests := []struct {
		name    string
		args    map[string]any
		wantIDs []float64
	}{
		{name: "defaults", args: map[string]any{}, wantIDs: []float64{1, 2, 3, 4, 5}},
		{name: "range", args: map[string]any{"min_id": 2, "max_id": 4}, wantIDs: []float64{2, 3, 4}},
		{name: "min only", args: map[string]any{"min_id": 4}, wantIDs: []float64{4, 5}},
		{name: "empty range", args: map[string]any{"min_id": 9, "max_id": 10}, wantIDs: []float64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleNoteList(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			output := parseOutput(t, result)

			notes, _ := output["notes"].([]any)
			if len(notes) != len(tt.wantIDs) {
				t.Fatalf("got %d notes, want %d", len(notes), len(tt.wantIDs))
			}
			for i, raw := range notes {
				n := raw.(map[string]any)
				if n["id"] != tt.wantIDs[i] {
					t.Errorf("notes[%d].id = %v, want %v", i, n["id"], tt.wantIDs[i])
				}
			}
		})
	}
}

func TestHandleNoteList_BadArgs(t *testing.T) {
	store, images, _, dataDir := testSetup(t)
	h := NewHandlers(store, images, dataDir)

	result, err := h.HandleNoteList(context.Background(), makeRequest(map[string]any{"min_id": "one"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleTagList(t *testing.T) {
	store, images, _, dataDir := testSetup(t)
	h := NewHandlers(store, images, dataDir)

	saveNote(t, h, "a #zeta #alpha")
	saveNote(t, h, "b #alpha")

	result, err := h.HandleTagList(context.Background(), makeRequest(nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)

	tags, _ := output["tags"].([]any)
	if len(tags) != 2 {
		t.Fatalf("got %d tags, want 2", len(tags))
	}
	first := tags[0].(map[string]any)
	if first["tag"] != "#alpha" {
		t.Errorf("tags[0].tag = %v, want #alpha", first["tag"])
	}
	if maps, _ := first["maps"].([]any); len(maps) != 2 {
		t.Errorf("#alpha maps = %d, want 2", len(maps))
	}
	if tags[1].(map[string]any)["tag"] != "#zeta" {
		t.Errorf("tags[1].tag = %v, want #zeta", tags[1].(map[string]any)["tag"])
	}
}

func TestHandleTagMapGet(t *testing.T) {
	store, images, _, dataDir := testSetup(t)
	h := NewHandlers(store, images, dataDir)
	ctx := context.Background()

	saveNote(t, h, "one #work")
	saveNote(t, h, "two #work")

	tests := []struct {
		name      string
		args      map[string]any
		wantMaps  int
		errorCode string
	}{
		{name: "with hash", args: map[string]any{"tag": "#work"}, wantMaps: 2},
		{name: "without hash", args: map[string]any{"tag": "WORK"}, wantMaps: 2},
		{name: "unknown tag", args: map[string]any{"tag": "play"}, wantMaps: 0},
		{name: "missing tag", args: map[string]any{}, errorCode: "INVALID_REQUEST"},
		{name: "invalid tag", args: map[string]any{"tag": "no spaces"}, errorCode: "INVALID_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleTagMapGet(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if tt.errorCode != "" {
				assertErrorCode(t, result, tt.errorCode)
				return
			}
			output := parseOutput(t, result)
			maps, _ := output["maps"].([]any)
			if len(maps) != tt.wantMaps {
				t.Errorf("got %d maps, want %d", len(maps), tt.wantMaps)
			}
		})
	}
}

func TestHandleTagMapUpdate(t *testing.T) {
	store, images, _, dataDir := testSetup(t)
	h := NewHandlers(store, images, dataDir)
	ctx := context.Background()

	saveNote(t, h, "read later #queue")

	tests := []struct {
		name      string
		args      map[string]any
		errorCode string
	}{
		{
			name: "archive",
			args: map[string]any{"tag": "queue", "note_id": 1, "status": "archived"},
		},
		{
			name: "reactivate",
			args: map[string]any{"tag": "#queue", "note_id": 1, "status": "active"},
		},
		{
			name:      "unknown pairing",
			args:      map[string]any{"tag": "queue", "note_id": 99, "status": "archived"},
			errorCode: "NOT_FOUND",
		},
		{
			name:      "unknown status",
			args:      map[string]any{"tag": "queue", "note_id": 1, "status": "deleted"},
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "missing note id",
			args:      map[string]any{"tag": "queue", "status": "archived"},
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "fractional note id",
			args:      map[string]any{"tag": "queue", "note_id": 1.5, "status": "archived"},
			errorCode: "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleTagMapUpdate(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if tt.errorCode != "" {
				assertErrorCode(t, result, tt.errorCode)
				return
			}
			output := parseOutput(t, result)
			if output["status"] != tt.args["status"] {
				t.Errorf("status = %v, want %v", output["status"], tt.args["status"])
			}
		})
	}

	// Only the two successful updates are logged.
	result, err := h.HandleTagHistory(ctx, makeRequest(map[string]any{"tag": "queue"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	history, _ := output["history"].([]any)
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	newest := history[0].(map[string]any)
	if newest["status"] != "active" {
		t.Errorf("newest history status = %v, want active", newest["status"])
	}
}

func TestHandleTagHistory_Empty(t *testing.T) {
	store, images, _, dataDir := testSetup(t)
	h := NewHandlers(store, images, dataDir)

	result, err := h.HandleTagHistory(context.Background(), makeRequest(map[string]any{"tag": "never"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	history, ok := output["history"].([]any)
	if !ok {
		t.Fatalf("history = %v, want empty array", output["history"])
	}
	if len(history) != 0 {
		t.Errorf("history length = %d, want 0", len(history))
	}
}

func TestHandleNoteExport(t *testing.T) {
	store, images, _, dataDir := testSetup(t)
	h := NewHandlers(store, images, dataDir)
	ctx := context.Background()

	saveNote(t, h, "first #a")
	saveNote(t, h, "second")

	path := filepath.Join(t.TempDir(), "out.jsonl")
	result, err := h.HandleNoteExport(ctx, makeRequest(map[string]any{"path": path}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)

	if output["count"] != float64(2) {
		t.Errorf("count = %v, want 2", output["count"])
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Errorf("export has %d lines, want header + 2 records", len(lines))
	}

	result, err = h.HandleNoteExport(ctx, makeRequest(map[string]any{"path": filepath.Join(t.TempDir(), "out.txt")}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleNoteExport_DefaultPath(t *testing.T) {
	store, images, _, dataDir := testSetup(t)
	h := NewHandlers(store, images, dataDir)

	result, err := h.HandleNoteExport(context.Background(), makeRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)

	path, _ := output["path"].(string)
	if filepath.Dir(path) != filepath.Join(dataDir, "exports") {
		t.Errorf("path = %q, want file under %s", path, filepath.Join(dataDir, "exports"))
	}
}

func TestHandlers_CancelledContext(t *testing.T) {
	store, images, _, dataDir := testSetup(t)
	h := NewHandlers(store, images, dataDir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := h.HandleNoteSave(ctx, makeRequest(map[string]any{"text": "late #x"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for cancelled context")
	}
	assertErrorCode(t, result, "CANCELLED")

	list, err := h.HandleNoteList(context.Background(), makeRequest(nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if notes, _ := parseOutput(t, list)["notes"].([]any); len(notes) != 0 {
		t.Errorf("got %d notes after cancelled save, want 0", len(notes))
	}
}

func TestServerRegistration(t *testing.T) {
	store, images, cfg, dataDir := testSetup(t)

	s := NewServer(store, images, cfg, dataDir, "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{
		"note_save",
		"note_list",
		"note_export",
		"tag_list",
		"tag_map_get",
		"tag_map_update",
		"tag_history",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}

	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	store, images, cfg, dataDir := testSetup(t)

	cfg.DisabledTools = []string{"note_export", "tag_map_update", "tag_map_update"}
	s := NewServer(store, images, cfg, dataDir, "test")
	tools := s.ListTools()

	if len(tools) != 5 {
		t.Errorf("registered tool count = %d, want 5", len(tools))
	}
	for _, name := range []string{"note_export", "tag_map_update"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
	if _, ok := tools["note_save"]; !ok {
		t.Error("note_save should be registered")
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	store, images, cfg, dataDir := testSetup(t)

	cfg.DisabledTools = AllToolNames()
	s := NewServer(store, images, cfg, dataDir, "test")

	if tools := s.ListTools(); len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{name: "all valid", input: []string{"note_export", "tag_map_update"}, wantLen: 0},
		{name: "one unknown", input: []string{"note_export", "note_delete"}, wantLen: 1},
		{name: "all unknown", input: []string{"foo", "bar", "baz"}, wantLen: 3},
		{name: "empty list", input: []string{}, wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unknown := ValidateDisabledTools(tt.input)
			if len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()

	if len(names) != 7 {
		t.Errorf("AllToolNames() returned %d names, want 7", len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("AllToolNames() not sorted: %v", names)
			break
		}
	}
	if unknown := ValidateDisabledTools(names); len(unknown) != 0 {
		t.Errorf("AllToolNames() returned invalid names: %v", unknown)
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
	if msg, _ := errObj["message"].(string); strings.Contains(msg, "secret.db") {
		t.Errorf("message leaks internal detail: %s", msg)
	}
}

func TestErrorResult_PlainErrorIsInternal(t *testing.T) {
	errObj := errorObject(t, errorResult(fmt.Errorf("boom")))
	if errObj["code"] != string(errors.ErrInternal) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
}

func TestErrorResult_WrappedErrorKeepsCode(t *testing.T) {
	wrapped := fmt.Errorf("update: %w", errors.NewNotFound("tag map", "#x/3"))

	errObj := errorObject(t, errorResult(wrapped))
	if errObj["code"] != string(errors.ErrNotFound) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrNotFound)
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

// Helper functions

// saveNote saves a text note through the handler and fails the test on error.
func saveNote(t *testing.T, h *Handlers, text string) {
	t.Helper()
	result, err := h.HandleNoteSave(context.Background(), makeRequest(map[string]any{"text": text}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("setup save failed: %v", extractErrorMessage(result))
	}
}

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

// errorObject returns the "error" object of an error result.
func errorObject(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("payload has no error object: %v", payload)
	}
	return errObj
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()
	if !result.IsError {
		t.Fatalf("expected error %s, got success", expectedCode)
	}
	if code := errorObject(t, result)["code"]; code != expectedCode {
		t.Errorf("error code = %v, want %s", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "no content"
	}
	if tc, ok := result.Content[0].(mcp.TextContent); ok {
		return tc.Text
	}
	return "unknown content type"
}

func TestDecode(t *testing.T) {
	got, err := decode[tagMapUpdateRequest](makeRequest(map[string]any{
		"tag": "#x", "note_id": 3, "status": "archived",
	}))
	if err != nil {
		t.Fatalf("decode() error = %v", err)
	}
	if got.Tag != "#x" || got.NoteID != 3 || got.Status != "archived" {
		t.Errorf("decode() = %+v", got)
	}

	if _, err := decode[tagRequest](makeRequest(map[string]any{"tga": "#x"})); err == nil {
		t.Error("expected error for unknown argument")
	}

	empty, err := decode[noteListRequest](makeRequest(nil))
	if err != nil {
		t.Fatalf("decode(nil) error = %v", err)
	}
	if empty.MinID != nil || empty.MaxID != nil {
		t.Errorf("decode(nil) = %+v, want zero value", empty)
	}
}
