package api

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/kenaz-notebook/internal/links"
	"github.com/starford/kenaz-notebook/internal/models"
	"github.com/starford/kenaz-notebook/internal/workspace"
)

// CreateFolderRequest is the request body for creating a folder. A blank
// name gets the default folder name.
type CreateFolderRequest struct {
	Name string `json:"name" example:"Schule"`
}

// Validate implements validation.Validatable.
func (r CreateFolderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Length(0, 200)),
	)
}

// RenameFolderRequest is the request body for renaming a folder.
type RenameFolderRequest struct {
	Name string `json:"name" example:"Geschichte" validate:"required"`
}

// Validate implements validation.Validatable.
func (r RenameFolderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
	)
}

// NoteRequest carries optional note fields, used both for creating and for
// patching a note.
type NoteRequest struct {
	Title   *string   `json:"title,omitempty" example:"Mathe LK"`
	Content *string   `json:"content,omitempty" example:"Siehe [[Julius]]"`
	Tags    *[]string `json:"tags,omitempty" example:"#schule"`
}

func (r NoteRequest) patch() models.NotePatch {
	return models.NotePatch{Title: r.Title, Content: r.Content, Tags: r.Tags}
}

// PatchNoteRequest must change at least one field.
type PatchNoteRequest struct {
	NoteRequest
}

// Validate implements validation.Validatable.
func (r PatchNoteRequest) Validate() error {
	if r.patch().Empty() {
		return errors.New("at least one of title, content, tags is required")
	}
	return nil
}

// DraftRequest is an editor keystroke batch. Fields are committed after the
// configured commit delay; later drafts replace earlier ones.
type DraftRequest struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// Validate implements validation.Validatable.
func (r DraftRequest) Validate() error {
	if r.Title == nil && r.Content == nil {
		return errors.New("title or content is required")
	}
	return nil
}

// MoveNoteRequest is the request body for moving a note.
type MoveNoteRequest struct {
	FolderID string `json:"folder_id" example:"f-schule" validate:"required"`
}

// Validate implements validation.Validatable.
func (r MoveNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FolderID, validation.Required),
	)
}

// TagsRequest replaces a note's tags.
type TagsRequest struct {
	Tags []string `json:"tags" example:"#schule"`
}

// TagRequest adds a single tag.
type TagRequest struct {
	Tag string `json:"tag" example:"#schule" validate:"required"`
}

// Validate implements validation.Validatable.
func (r TagRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Tag, validation.Required),
	)
}

// FollowLinkRequest names the link label to follow. A blank label is valid
// and yields navigated=false.
type FollowLinkRequest struct {
	Label string `json:"label" example:"Julius"`
}

// SessionRequest updates the navigation state. Nil fields are left alone;
// an empty selected_note_id clears the selection.
type SessionRequest struct {
	ActiveFolderID *string `json:"active_folder_id,omitempty"`
	SelectedNoteID *string `json:"selected_note_id,omitempty"`
	SidebarOpen    *bool   `json:"sidebar_open,omitempty"`
}

// SessionResponse is the navigation state plus the save indicator.
type SessionResponse struct {
	Session workspace.Session    `json:"session" validate:"required"`
	Status  workspace.SaveStatus `json:"status" example:"saved" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []models.NoteRef `json:"results" validate:"required"`
}

// ImportResponse summarizes an imported backup.
type ImportResponse struct {
	Folders int `json:"folders" example:"2" validate:"required"`
	Notes   int `json:"notes" example:"5" validate:"required"`
}

// GraphResponse is the link graph.
type GraphResponse = links.Graph

// NoteViewResponse is a note with its derived link data.
type NoteViewResponse = workspace.NoteView
