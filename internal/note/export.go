package note

// ExportHeader is the first line of a JSONL export file.
type ExportHeader struct {
	LenoteExport  bool  `json:"_lenote_export"`
	SchemaVersion int   `json:"schema_version"`
	ExportedAt    int64 `json:"exported_at"`
}

// ExportTagMap is a tag pairing as written to an export file.
type ExportTagMap struct {
	Tag    string       `json:"tag"`
	Color  string       `json:"color"`
	Status TagMapStatus `json:"status"`
}

// ExportRecord represents one note in JSONL export format.
type ExportRecord struct {
	ID        int64          `json:"id"`
	Text      string         `json:"text"`
	Timestamp int64          `json:"timestamp"`
	Type      NoteType       `json:"note_type"`
	Tags      []ExportTagMap `json:"tags"`
}
