// Package models defines the domain types for the Kenaz notebook.
package models

import (
	"encoding/json"
	"time"
)

// Note is a single note owned by exactly one folder.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"-"`
}

// Folder owns its notes (most recent first) and subfolders.
type Folder struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Notes      []Note   `json:"notes"`
	Subfolders []Folder `json:"subfolders"`
}

// Tree is the canonical snapshot of all folders. Values of this type are
// treated as immutable once handed out.
type Tree struct {
	Folders []Folder `json:"folders"`
}

// NoteRef is a note tagged with the id of the folder that owns it.
type NoteRef struct {
	Note     Note   `json:"note"`
	FolderID string `json:"folder_id"`
}

// NotePatch carries the fields to replace on a note. Nil fields are left alone.
type NotePatch struct {
	Title   *string   `json:"title,omitempty"`
	Content *string   `json:"content,omitempty"`
	Tags    *[]string `json:"tags,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p NotePatch) Empty() bool {
	return p.Title == nil && p.Content == nil && p.Tags == nil
}

// noteJSON is the persisted shape. createdAt is Unix milliseconds so that
// documents written by the browser version of the app load unchanged.
type noteJSON struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags"`
	CreatedAt int64    `json:"createdAt"`
}

// MarshalJSON implements json.Marshaler.
func (n Note) MarshalJSON() ([]byte, error) {
	var ms int64
	if !n.CreatedAt.IsZero() {
		ms = n.CreatedAt.UnixMilli()
	}
	return json.Marshal(noteJSON{
		ID:        n.ID,
		Title:     n.Title,
		Content:   n.Content,
		Tags:      nonNil(n.Tags),
		CreatedAt: ms,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Note) UnmarshalJSON(data []byte) error {
	var raw noteJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = Note{
		ID:      raw.ID,
		Title:   raw.Title,
		Content: raw.Content,
		Tags:    nonNil(raw.Tags),
	}
	if raw.CreatedAt != 0 {
		n.CreatedAt = time.UnixMilli(raw.CreatedAt)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Tree) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Folders []Folder `json:"folders"`
	}{Folders: nonNil(t.Folders)})
}

type folderJSON struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Notes      []Note   `json:"notes"`
	Subfolders []Folder `json:"subfolders"`
}

// MarshalJSON implements json.Marshaler. Empty collections encode as [].
func (f Folder) MarshalJSON() ([]byte, error) {
	return json.Marshal(folderJSON{
		ID:         f.ID,
		Name:       f.Name,
		Notes:      nonNil(f.Notes),
		Subfolders: nonNil(f.Subfolders),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Folder) UnmarshalJSON(data []byte) error {
	var raw folderJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = Folder{
		ID:         raw.ID,
		Name:       raw.Name,
		Notes:      nonNil(raw.Notes),
		Subfolders: nonNil(raw.Subfolders),
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
