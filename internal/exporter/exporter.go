// Package exporter serializes the folder tree to and from the portable
// backup document {"folders": [...]}.
package exporter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/starford/kenaz-notebook/internal/apperr"
	"github.com/starford/kenaz-notebook/internal/models"
	"github.com/starford/kenaz-notebook/internal/tree"
)

const filePrefix = "kenaz-backup-"

// Filename returns the artifact name for an export taken at now, e.g.
// kenaz-backup-2025-03-01T12-00-00-000Z.json.
func Filename(now time.Time) string {
	stamp := now.UTC().Format("2006-01-02T15:04:05.000Z")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return filePrefix + stamp + ".json"
}

// Export renders t as an indented backup document.
func Export(t models.Tree, now time.Time) (string, []byte, error) {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("exporter: encode: %w", err)
	}
	return Filename(now), append(data, '\n'), nil
}

// Import decodes a backup document. Documents with duplicate ids are
// rejected with apperr.ErrInvalid.
func Import(r io.Reader) (models.Tree, error) {
	var t models.Tree
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return models.Tree{}, fmt.Errorf("exporter: decode: %w: %w", apperr.ErrInvalid, err)
	}
	if t.Folders == nil {
		t.Folders = []models.Folder{}
	}
	for id, count := range tree.IDs(t) {
		if id == "" {
			return models.Tree{}, fmt.Errorf("exporter: empty id: %w", apperr.ErrInvalid)
		}
		if count > 1 {
			return models.Tree{}, fmt.Errorf("exporter: duplicate id %q: %w", id, apperr.ErrInvalid)
		}
	}
	return t, nil
}
