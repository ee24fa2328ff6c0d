// Package tree implements the folder/note store as pure operations over an
// immutable models.Tree. Every operation returns a new tree; the input is
// never modified, and folders or notes that are not touched are shared.
package tree

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/kenaz-notebook/internal/models"
)

// IDFunc generates a fresh, globally unique identifier.
type IDFunc func() string

// NewID is the default IDFunc.
func NewID() string {
	return uuid.NewString()
}

// CreateFolder inserts an empty folder with the given id at the front.
func CreateFolder(t models.Tree, id, name string) (models.Tree, string) {
	f := models.Folder{
		ID:         id,
		Name:       name,
		Notes:      []models.Note{},
		Subfolders: []models.Folder{},
	}
	folders := make([]models.Folder, 0, len(t.Folders)+1)
	folders = append(folders, f)
	folders = append(folders, t.Folders...)
	return models.Tree{Folders: folders}, id
}

// RenameFolder sets a folder's display name. Unknown ids leave t unchanged.
func RenameFolder(t models.Tree, folderID, name string) models.Tree {
	return mapFolder(t, folderID, func(f models.Folder) models.Folder {
		f.Name = name
		return f
	})
}

// DeleteFolder removes a folder together with its notes. removed reports
// whether anything was deleted so the caller can fix its selection.
func DeleteFolder(t models.Tree, folderID string) (models.Tree, bool) {
	i := folderIndex(t, folderID)
	if i < 0 {
		return t, false
	}
	return models.Tree{Folders: slices.Delete(slices.Clone(t.Folders), i, i+1)}, true
}

// CreateNote prepends n to the folder's notes. An unknown folder returns t
// unchanged and an empty id.
func CreateNote(t models.Tree, folderID string, n models.Note) (models.Tree, string) {
	if folderIndex(t, folderID) < 0 {
		return t, ""
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}
	out := mapFolder(t, folderID, func(f models.Folder) models.Folder {
		f.Notes = prepend(f.Notes, n)
		return f
	})
	return out, n.ID
}

// NewNote builds an empty note stamped with now.
func NewNote(id, title string, now time.Time) models.Note {
	return models.Note{
		ID:        id,
		Title:     title,
		Tags:      []string{},
		CreatedAt: now,
	}
}

// UpdateNote merges patch into the addressed note. Unknown ids or an empty
// patch leave t unchanged.
func UpdateNote(t models.Tree, folderID, noteID string, patch models.NotePatch) models.Tree {
	if patch.Empty() {
		return t
	}
	fi := folderIndex(t, folderID)
	if fi < 0 || noteIndex(t.Folders[fi], noteID) < 0 {
		return t
	}
	return mapFolder(t, folderID, func(f models.Folder) models.Folder {
		notes := slices.Clone(f.Notes)
		ni := noteIndex(f, noteID)
		notes[ni] = ApplyPatch(notes[ni], patch)
		f.Notes = notes
		return f
	})
}

// ApplyPatch returns n with the non-nil patch fields replaced.
func ApplyPatch(n models.Note, patch models.NotePatch) models.Note {
	if patch.Title != nil {
		n.Title = *patch.Title
	}
	if patch.Content != nil {
		n.Content = *patch.Content
	}
	if patch.Tags != nil {
		n.Tags = NormalizeTags(*patch.Tags)
	}
	return n
}

// DeleteNote removes a note from whichever folder holds it.
func DeleteNote(t models.Tree, noteID string) (models.Tree, bool) {
	_, folderID, ok := FindNote(t, noteID)
	if !ok {
		return t, false
	}
	return mapFolder(t, folderID, func(f models.Folder) models.Folder {
		i := noteIndex(f, noteID)
		f.Notes = slices.Delete(slices.Clone(f.Notes), i, i+1)
		return f
	}), true
}

// MoveNote removes the note from its current folder and prepends it to the
// target folder. The note value itself is carried over unchanged. Missing
// note or target folder leaves t unchanged.
func MoveNote(t models.Tree, noteID, targetFolderID string) models.Tree {
	if folderIndex(t, targetFolderID) < 0 {
		return t
	}
	n, sourceID, ok := FindNote(t, noteID)
	if !ok {
		return t
	}

	folders := slices.Clone(t.Folders)
	for i, f := range folders {
		if f.ID == sourceID {
			ni := noteIndex(f, noteID)
			f.Notes = slices.Delete(slices.Clone(f.Notes), ni, ni+1)
			folders[i] = f
			break
		}
	}
	for i, f := range folders {
		if f.ID == targetFolderID {
			f.Notes = prepend(f.Notes, n)
			folders[i] = f
			break
		}
	}
	return models.Tree{Folders: folders}
}

// Flatten lists every note with its owning folder id, in folder order then
// note order.
func Flatten(t models.Tree) []models.NoteRef {
	out := make([]models.NoteRef, 0, NoteCount(t))
	for _, f := range t.Folders {
		for _, n := range f.Notes {
			out = append(out, models.NoteRef{Note: n, FolderID: f.ID})
		}
	}
	return out
}

// FolderRefs tags the notes of a single folder with its id.
func FolderRefs(f models.Folder) []models.NoteRef {
	out := make([]models.NoteRef, 0, len(f.Notes))
	for _, n := range f.Notes {
		out = append(out, models.NoteRef{Note: n, FolderID: f.ID})
	}
	return out
}

// NoteCount returns the number of notes across all folders.
func NoteCount(t models.Tree) int {
	n := 0
	for _, f := range t.Folders {
		n += len(f.Notes)
	}
	return n
}

// FindFolder returns the folder with the given id.
func FindFolder(t models.Tree, folderID string) (models.Folder, bool) {
	i := folderIndex(t, folderID)
	if i < 0 {
		return models.Folder{}, false
	}
	return t.Folders[i], true
}

// FindNote returns the first note with the given id and its folder id.
func FindNote(t models.Tree, noteID string) (models.Note, string, bool) {
	if noteID == "" {
		return models.Note{}, "", false
	}
	for _, f := range t.Folders {
		if i := noteIndex(f, noteID); i >= 0 {
			return f.Notes[i], f.ID, true
		}
	}
	return models.Note{}, "", false
}

// Filter returns the notes whose title or content contains query,
// case-insensitively. A blank query returns notes as is.
func Filter(notes []models.NoteRef, query string) []models.NoteRef {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return notes
	}
	out := []models.NoteRef{}
	for _, r := range notes {
		if strings.Contains(strings.ToLower(r.Note.Title), q) ||
			strings.Contains(strings.ToLower(r.Note.Content), q) {
			out = append(out, r)
		}
	}
	return out
}

// NormalizeTags trims tags and drops empty and duplicate entries, keeping
// first-seen order. Comparison is case-sensitive.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// IDs returns every folder and note id in t, with the number of times each
// occurs.
func IDs(t models.Tree) map[string]int {
	out := make(map[string]int)
	var walk func(fs []models.Folder)
	walk = func(fs []models.Folder) {
		for _, f := range fs {
			out[f.ID]++
			for _, n := range f.Notes {
				out[n.ID]++
			}
			walk(f.Subfolders)
		}
	}
	walk(t.Folders)
	return out
}

func mapFolder(t models.Tree, folderID string, fn func(models.Folder) models.Folder) models.Tree {
	i := folderIndex(t, folderID)
	if i < 0 {
		return t
	}
	folders := slices.Clone(t.Folders)
	folders[i] = fn(folders[i])
	return models.Tree{Folders: folders}
}

func folderIndex(t models.Tree, folderID string) int {
	if folderID == "" {
		return -1
	}
	return slices.IndexFunc(t.Folders, func(f models.Folder) bool { return f.ID == folderID })
}

func noteIndex(f models.Folder, noteID string) int {
	return slices.IndexFunc(f.Notes, func(n models.Note) bool { return n.ID == noteID })
}

func prepend(notes []models.Note, n models.Note) []models.Note {
	out := make([]models.Note, 0, len(notes)+1)
	out = append(out, n)
	return append(out, notes...)
}
