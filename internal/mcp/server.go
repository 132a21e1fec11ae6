package mcp

import (
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/lenote/internal/config"
	"github.com/hpungsan/lenote/internal/db"
	"github.com/hpungsan/lenote/internal/media"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"note_save": {
		def:     noteSaveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNoteSave },
	},
	"note_list": {
		def:     noteListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNoteList },
	},
	"note_export": {
		def:     noteExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNoteExport },
	},
	"tag_list": {
		def:     tagListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTagList },
	},
	"tag_map_get": {
		def:     tagMapGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTagMapGet },
	},
	"tag_map_update": {
		def:     tagMapUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTagMapUpdate },
	},
	"tag_history": {
		def:     tagHistoryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTagHistory },
	},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with the journal tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(store *db.Store, images *media.Extractor, cfg *config.Config, dataDir, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"lenote",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(store, images, dataDir)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(store *db.Store, images *media.Extractor, cfg *config.Config, dataDir, version string) error {
	s := NewServer(store, images, cfg, dataDir, version)
	return server.ServeStdio(s)
}
