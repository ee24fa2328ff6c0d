package workspace

import (
	"github.com/starford/kenaz-notebook/internal/links"
	"github.com/starford/kenaz-notebook/internal/models"
	"github.com/starford/kenaz-notebook/internal/parser"
	"github.com/starford/kenaz-notebook/internal/tree"
)

// LinkView is one forward link of a note, resolved in the link scope.
type LinkView struct {
	Label    string `json:"label"`
	NoteID   string `json:"note_id,omitempty"`
	Dangling bool   `json:"dangling"`
}

// BacklinkView is a note that links to the viewed note.
type BacklinkView struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	FolderID   string `json:"folder_id"`
	FolderName string `json:"folder_name"`
}

// NoteView is a note with its derived link data.
type NoteView struct {
	Note         models.Note      `json:"note"`
	FolderID     string           `json:"folder_id"`
	FolderName   string           `json:"folder_name"`
	ForwardLinks []LinkView       `json:"forward_links"`
	Backlinks    []BacklinkView   `json:"backlinks"`
	Segments     []parser.Segment `json:"segments"`
	Pending      bool             `json:"pending"`
}

// Snapshot returns the current tree. The value is immutable and safe to
// read without further locking.
func (w *Workspace) Snapshot() models.Tree {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tree
}

// Session returns the current navigation state.
func (w *Workspace) Session() Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session
}

// SaveStatus reports whether a commit happened within the indicator delay.
func (w *Workspace) SaveStatus() SaveStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Folder returns the folder with the given id.
func (w *Workspace) Folder(folderID string) (models.Folder, error) {
	f, ok := tree.FindFolder(w.Snapshot(), folderID)
	if !ok {
		return models.Folder{}, folderNotFound(folderID)
	}
	return f, nil
}

// Note returns the committed state of a note. Pending edits are not applied.
func (w *Workspace) Note(noteID string) (models.NoteRef, error) {
	n, folderID, ok := tree.FindNote(w.Snapshot(), noteID)
	if !ok {
		return models.NoteRef{}, noteNotFound(noteID)
	}
	return models.NoteRef{Note: n, FolderID: folderID}, nil
}

// ActiveNote returns the selected note, if any.
func (w *Workspace) ActiveNote() (models.NoteRef, bool) {
	w.mu.Lock()
	t, id := w.tree, w.session.SelectedNoteID
	w.mu.Unlock()
	n, folderID, ok := tree.FindNote(t, id)
	return models.NoteRef{Note: n, FolderID: folderID}, ok
}

// ForwardLinks returns the distinct link labels of a note.
func (w *Workspace) ForwardLinks(noteID string) ([]string, error) {
	r, err := w.Note(noteID)
	if err != nil {
		return nil, err
	}
	return links.ForwardLinks(r.Note), nil
}

// Backlinks returns the notes across all folders that link to noteID.
func (w *Workspace) Backlinks(noteID string) ([]models.NoteRef, error) {
	t := w.Snapshot()
	n, _, ok := tree.FindNote(t, noteID)
	if !ok {
		return nil, noteNotFound(noteID)
	}
	return links.Backlinks(n, tree.Flatten(t)), nil
}

// View assembles a note with resolved forward links, backlinks and the
// segmented content used for rendering.
func (w *Workspace) View(noteID string) (NoteView, error) {
	w.mu.Lock()
	t, scope := w.tree, w.scope
	pending := w.hasPending(noteID)
	w.mu.Unlock()

	n, folderID, ok := tree.FindNote(t, noteID)
	if !ok {
		return NoteView{}, noteNotFound(noteID)
	}
	folder, _ := tree.FindFolder(t, folderID)
	all := tree.Flatten(t)

	candidates := tree.FolderRefs(folder)
	if scope == links.ScopeTree {
		candidates = all
	}

	v := NoteView{
		Note:         n,
		FolderID:     folderID,
		FolderName:   folder.Name,
		ForwardLinks: []LinkView{},
		Backlinks:    []BacklinkView{},
		Segments:     parser.Segments(n.Content),
		Pending:      pending,
	}
	for _, label := range links.ForwardLinks(n) {
		lv := LinkView{Label: label, Dangling: true}
		if hit, found := links.Find(label, candidates); found {
			lv.NoteID, lv.Dangling = hit.Note.ID, false
		}
		v.ForwardLinks = append(v.ForwardLinks, lv)
	}
	names := make(map[string]string, len(t.Folders))
	for _, f := range t.Folders {
		names[f.ID] = f.Name
	}
	for _, b := range links.Backlinks(n, all) {
		v.Backlinks = append(v.Backlinks, BacklinkView{
			ID:         b.Note.ID,
			Title:      b.Note.Title,
			FolderID:   b.FolderID,
			FolderName: names[b.FolderID],
		})
	}
	return v, nil
}

// Search filters notes by a case-insensitive substring of title or content.
// Unless all is set only the active folder is searched.
func (w *Workspace) Search(query string, all bool) []models.NoteRef {
	w.mu.Lock()
	t, active := w.tree, w.session.ActiveFolderID
	w.mu.Unlock()

	if all {
		return tree.Filter(tree.Flatten(t), query)
	}
	f, ok := tree.FindFolder(t, active)
	if !ok {
		return []models.NoteRef{}
	}
	return tree.Filter(tree.FolderRefs(f), query)
}

// Graph builds the link graph of the whole tree.
func (w *Workspace) Graph() links.Graph {
	return links.BuildGraph(tree.Flatten(w.Snapshot()))
}

// HasPendingEdits reports whether noteID has uncommitted edits.
func (w *Workspace) HasPendingEdits(noteID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.hasPending(noteID)
}

func (w *Workspace) hasPending(noteID string) bool {
	return w.edits.Pending(editKey(noteID, "title")) || w.edits.Pending(editKey(noteID, "content"))
}
