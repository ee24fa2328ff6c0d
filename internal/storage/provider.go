// Package storage persists named JSON values. Providers store raw bytes;
// Load and Save add the JSON encoding and the default-value fallback.
package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Keys used by the workspace.
const (
	KeyFolders        = "folders"
	KeyActiveFolderID = "activeFolderId"
	KeySelectedNoteID = "selectedNoteId"
	KeySidebar        = "sidebar"
)

// Provider is a durable mapping from key to bytes.
type Provider interface {
	// Load returns the stored bytes for key. ok is false when nothing is stored.
	Load(key string) (data []byte, ok bool, err error)
	// Save stores data under key, replacing any previous value.
	Save(key string, data []byte) error
	// Close releases the provider's resources.
	Close() error
}

var keyRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidateKey rejects keys that are empty or could escape a directory.
func ValidateKey(key string) error {
	if err := validation.Validate(key,
		validation.Required,
		validation.Length(1, 128),
		validation.Match(keyRe),
	); err != nil {
		return fmt.Errorf("storage: invalid key %q: %w", key, err)
	}
	return nil
}

// Load decodes the value stored under key into a T. Missing keys, read
// failures and undecodable data all yield def; failures are logged only.
func Load[T any](p Provider, logger *slog.Logger, key string, def T) T {
	data, ok, err := p.Load(key)
	if err != nil {
		logger.Warn("storage: load failed, using default",
			slog.String("key", key), slog.String("error", err.Error()))
		return def
	}
	if !ok {
		return def
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		logger.Warn("storage: malformed value, using default",
			slog.String("key", key), slog.String("error", err.Error()))
		return def
	}
	return v
}

// Save encodes v and stores it under key. Errors are logged and otherwise
// dropped; callers treat persistence as fire-and-forget.
func Save[T any](p Provider, logger *slog.Logger, key string, v T) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Error("storage: encode failed", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	if err := p.Save(key, data); err != nil {
		logger.Error("storage: save failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}
