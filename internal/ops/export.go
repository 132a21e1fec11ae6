package ops

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/hpungsan/lenote/internal/db"
	"github.com/hpungsan/lenote/internal/errors"
	"github.com/hpungsan/lenote/internal/note"
)

// ExportsDir is the default export directory under the data dir.
const ExportsDir = "exports"

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path    string // optional, default: <DataDir>/exports/lenote-<timestamp>.jsonl
	DataDir string // required when Path is empty
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// Export writes every note with its current tag pairings to a JSONL file:
// one header line, then one record per note in id order.
func Export(ctx context.Context, store *db.Store, input ExportInput) (*ExportOutput, error) {
	t := now()
	exportedAt := t.Unix()

	exportPath := input.Path
	if exportPath == "" {
		if input.DataDir == "" {
			return nil, errors.NewInvalidRequest("path is required")
		}
		exportPath = filepath.Join(input.DataDir, ExportsDir,
			fmt.Sprintf("lenote-%s.jsonl", t.Format("2006-01-02T150405")))
	}

	if err := ValidateExportPath(exportPath, input.DataDir); err != nil {
		return nil, err
	}

	dir := filepath.Dir(exportPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	// Write to temp file first, then atomic rename to preserve existing file on failure
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	enc := json.NewEncoder(file)
	enc.SetEscapeHTML(false)

	header := note.ExportHeader{
		LenoteExport:  true,
		SchemaVersion: db.CurrentSchemaVersion,
		ExportedAt:    exportedAt,
	}
	if err := enc.Encode(header); err != nil {
		return nil, errors.NewInternal(err)
	}

	count, err := store.ForEachNote(ctx, func(r note.ExportRecord) error {
		if err := enc.Encode(r); err != nil {
			return errors.NewInternal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}

	// Close before atomic replace (required on Windows; fine elsewhere).
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlink at the destination
	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInvalidRequest("export path is a symlink")
	}

	// On Windows, os.Rename fails if the destination exists; fail safely
	// rather than delete-then-rename.
	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return &ExportOutput{
		Path:       exportPath,
		Count:      count,
		ExportedAt: exportedAt,
	}, nil
}
