// Package media stores image note bodies as files and hands back the
// reference text that the note row keeps instead.
package media

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/lenote/internal/errors"
)

// ResDir is the directory under the data dir served at /res/.
const ResDir = "res"

// imagesDir is where extracted images land, relative to ResDir.
const imagesDir = "images"

// dataURLPrefix matches the part of a data URL before the comma.
var dataURLPrefix = regexp.MustCompile(`^data:image/([a-zA-Z0-9.+-]+);base64$`)

// Extractor decodes data-URL image bodies into files under
// <dataDir>/res/images.
type Extractor struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger
}

// NewExtractor returns an Extractor rooted at dataDir. maxBytes <= 0
// disables the size limit.
func NewExtractor(dataDir string, maxBytes int64, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Extractor{
		dir:      filepath.Join(dataDir, ResDir, imagesDir),
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Dir returns the directory images are written to.
func (e *Extractor) Dir() string {
	return e.dir
}

// Extract stores the image carried by a "data:image/<ext>;base64,<payload>"
// body and returns "/res/images/<ulid>.<ext>". Text that is not an image
// data URL is returned unchanged with stored=false.
func (e *Extractor) Extract(text string) (ref string, stored bool, err error) {
	pos := strings.IndexByte(text, ',')
	if pos < 0 {
		return text, false, nil
	}
	m := dataURLPrefix.FindStringSubmatch(text[:pos])
	if m == nil {
		return text, false, nil
	}
	ext := strings.ToLower(m[1])
	payload := text[pos+1:]

	if e.maxBytes > 0 {
		if n := int64(base64.StdEncoding.DecodedLen(len(payload))); n > e.maxBytes+2 {
			return "", false, errors.NewPayloadTooLarge(e.maxBytes, n)
		}
	}

	bin, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", false, errors.NewInvalidRequest(fmt.Sprintf("invalid base64 image payload: %v", err))
	}
	if e.maxBytes > 0 && int64(len(bin)) > e.maxBytes {
		return "", false, errors.NewPayloadTooLarge(e.maxBytes, int64(len(bin)))
	}

	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return "", false, errors.NewInternal(fmt.Errorf("failed to create images directory: %w", err))
	}

	name, err := generateName()
	if err != nil {
		return "", false, errors.NewInternal(err)
	}
	fileName := name + "." + ext
	path := filepath.Join(e.dir, fileName)

	e.logger.Info("saving image", "bytes", len(bin), "path", path)
	if err := atomic.WriteFile(path, bytes.NewReader(bin)); err != nil {
		return "", false, errors.NewInternal(fmt.Errorf("failed to write image: %w", err))
	}
	// atomic.WriteFile leaves temp-file permissions on new files.
	_ = os.Chmod(path, 0644)

	return "/" + ResDir + "/" + imagesDir + "/" + fileName, true, nil
}

// Remove deletes the file behind a ref returned by Extract. Refs outside
// the images directory are ignored, and a missing file is not an error.
func (e *Extractor) Remove(ref string) error {
	prefix := "/" + ResDir + "/" + imagesDir + "/"
	name, ok := strings.CutPrefix(ref, prefix)
	if !ok || name == "" || strings.ContainsAny(name, `/\`) || name == ".." {
		return nil
	}
	if err := os.Remove(filepath.Join(e.dir, name)); err != nil && !os.IsNotExist(err) {
		return errors.NewInternal(fmt.Errorf("failed to remove image: %w", err))
	}
	return nil
}

// generateName creates a new time-sortable file name.
func generateName() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
