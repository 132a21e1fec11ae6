package mcp

import "github.com/mark3labs/mcp-go/mcp"

var noteSaveToolDef = mcp.NewTool("note_save",
	mcp.WithDescription("Save a note. Hashtags in the text are extracted and paired with the note. "+
		"The server assigns the id and timestamp. For image notes, text is a base64 data URL."),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("Note body, or a data:image/<ext>;base64,<payload> URL for image notes"),
	),
	mcp.WithString("note_type",
		mcp.Description("Note type (default: text)"),
		mcp.Enum("text", "image"),
	),
)

var noteListToolDef = mcp.NewTool("note_list",
	mcp.WithDescription("List notes with ids in [min_id, max_id]. Returns the newest page (at most 500), "+
		"oldest first, each with its tags."),
	mcp.WithNumber("min_id",
		mcp.Description("Lowest note id to include (default: 1)"),
	),
	mcp.WithNumber("max_id",
		mcp.Description("Highest note id to include (default: no limit)"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var noteExportToolDef = mcp.NewTool("note_export",
	mcp.WithDescription("Export every note with its tag pairings to a JSONL file. "+
		"Returns the file path and record count."),
	mcp.WithString("path",
		mcp.Description("Destination .jsonl path (default: <data dir>/exports/lenote-<timestamp>.jsonl)"),
	),
)

var tagListToolDef = mcp.NewTool("tag_list",
	mcp.WithDescription("List tags sorted by name, each with its color and its note pairings."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var tagMapGetToolDef = mcp.NewTool("tag_map_get",
	mcp.WithDescription("List the note pairings of one tag, newest note first."),
	mcp.WithString("tag",
		mcp.Required(),
		mcp.Description("Tag name; the leading '#' is optional"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var tagMapUpdateToolDef = mcp.NewTool("tag_map_update",
	mcp.WithDescription("Set the status of one (tag, note) pairing and record the transition in the tag's history."),
	mcp.WithString("tag",
		mcp.Required(),
		mcp.Description("Tag name; the leading '#' is optional"),
	),
	mcp.WithNumber("note_id",
		mcp.Required(),
		mcp.Description("Id of the paired note"),
	),
	mcp.WithString("status",
		mcp.Required(),
		mcp.Description("New status"),
		mcp.Enum("active", "archived"),
	),
)

var tagHistoryToolDef = mcp.NewTool("tag_history",
	mcp.WithDescription("List the recorded status transitions of one tag, newest first."),
	mcp.WithString("tag",
		mcp.Required(),
		mcp.Description("Tag name; the leading '#' is optional"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)
