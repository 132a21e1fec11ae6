package ops

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hpungsan/lenote/internal/errors"
	"github.com/hpungsan/lenote/internal/media"
)

// ValidateExportPath checks an export destination. The path needs a .jsonl
// extension and no ".." components. Neither the file nor its parent may be
// a symlink, and an existing directory is refused. When dataDir is set, the
// path may not fall under <dataDir>/res, which the HTTP server publishes.
func ValidateExportPath(path, dataDir string) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.NewInvalidRequest("invalid path: " + err.Error())
	}
	if filepath.Ext(absPath) != ".jsonl" {
		return errors.NewInvalidRequest("path must have .jsonl extension")
	}

	if dataDir != "" {
		resDir, err := filepath.Abs(filepath.Join(dataDir, media.ResDir))
		if err == nil && within(resDir, absPath) {
			return errors.NewInvalidRequest("path must not be inside the served res directory")
		}
	}

	if info, err := os.Lstat(filepath.Dir(absPath)); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("parent directory must not be a symlink")
	}
	if info, err := os.Lstat(absPath); err == nil {
		switch {
		case info.Mode()&os.ModeSymlink != 0:
			return errors.NewInvalidRequest("path must not be a symlink")
		case info.IsDir():
			return errors.NewInvalidRequest("path is a directory")
		}
	}
	return nil
}

// containsTraversal reports whether any component of path, split on the OS
// separator or '/', is "..".
func containsTraversal(path string) bool {
	split := func(r rune) bool { return r == '/' || r == filepath.Separator }
	return slices.Contains(strings.FieldsFunc(path, split), "..")
}

// within reports whether target is dir or lies below it. Both are absolute.
func within(dir, target string) bool {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
