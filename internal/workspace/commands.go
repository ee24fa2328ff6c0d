package workspace

import (
	"fmt"
	"slices"
	"strings"

	"github.com/starford/kenaz-notebook/internal/apperr"
	"github.com/starford/kenaz-notebook/internal/links"
	"github.com/starford/kenaz-notebook/internal/models"
	"github.com/starford/kenaz-notebook/internal/storage"
	"github.com/starford/kenaz-notebook/internal/tree"
)

// FollowResult is the outcome of following a wiki-link.
type FollowResult struct {
	Note      models.NoteRef `json:"note"`
	Created   bool           `json:"created"`
	Navigated bool           `json:"navigated"`
}

// do runs fn under the lock, persists session changes and emits the
// resulting events once the lock is released.
func (w *Workspace) do(fn func() ([]Event, error)) error {
	w.mu.Lock()
	evs, err := fn()
	if w.persistSession() {
		evs = append(evs, Event{Kind: EventSessionUpdated})
	}
	w.mu.Unlock()
	w.emit(evs...)
	return err
}

// selectNote changes the selection. Pending edits of the previously selected
// note are committed first so they never outlive their editor. Caller holds
// w.mu.
func (w *Workspace) selectNote(noteID string) []Event {
	var evs []Event
	if prev := w.session.SelectedNoteID; prev != "" && prev != noteID {
		evs = w.flushNote(prev)
	}
	w.session.SelectedNoteID = noteID
	return evs
}

// activate makes folderID the active folder and drops a selection that does
// not live there. Caller holds w.mu.
func (w *Workspace) activate(folderID string) []Event {
	w.session.ActiveFolderID = folderID
	if _, fid, ok := tree.FindNote(w.tree, w.session.SelectedNoteID); !ok || fid != folderID {
		return w.selectNote("")
	}
	return nil
}

func folderNotFound(id string) error {
	return fmt.Errorf("folder %q: %w", id, apperr.ErrNotFound)
}

func noteNotFound(id string) error {
	return fmt.Errorf("note %q: %w", id, apperr.ErrNotFound)
}

// CreateFolder adds a folder at the front and makes it active. A blank name
// becomes DefaultFolderName.
func (w *Workspace) CreateFolder(name string) (models.Folder, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultFolderName
	}
	var f models.Folder
	err := w.do(func() ([]Event, error) {
		t, id := tree.CreateFolder(w.tree, w.newID(), name)
		w.commitTree(t)
		f, _ = tree.FindFolder(t, id)
		evs := []Event{{Kind: EventFolderCreated, FolderID: id}}
		return append(evs, w.activate(id)...), nil
	})
	return f, err
}

// RenameFolder changes a folder's display name.
func (w *Workspace) RenameFolder(folderID, name string) error {
	return w.do(func() ([]Event, error) {
		if _, ok := tree.FindFolder(w.tree, folderID); !ok {
			return nil, folderNotFound(folderID)
		}
		w.commitTree(tree.RenameFolder(w.tree, folderID, name))
		return []Event{{Kind: EventFolderUpdated, FolderID: folderID}}, nil
	})
}

// DeleteFolder removes a folder and its notes. Pending edits of those notes
// are dropped. When the folder was active the selection is cleared and the
// first remaining folder, if any, becomes active.
func (w *Workspace) DeleteFolder(folderID string) error {
	return w.do(func() ([]Event, error) {
		f, ok := tree.FindFolder(w.tree, folderID)
		if !ok {
			return nil, folderNotFound(folderID)
		}
		for _, n := range f.Notes {
			w.cancelEdits(editPrefix(n.ID))
		}
		t, _ := tree.DeleteFolder(w.tree, folderID)
		w.commitTree(t)

		if w.session.ActiveFolderID == folderID {
			w.session.SelectedNoteID = ""
			w.session.ActiveFolderID = ""
			if len(t.Folders) > 0 {
				w.session.ActiveFolderID = t.Folders[0].ID
			}
		}
		return []Event{{Kind: EventFolderDeleted, FolderID: folderID}}, nil
	})
}

// SelectFolder makes folderID the active folder.
func (w *Workspace) SelectFolder(folderID string) error {
	return w.do(func() ([]Event, error) {
		if _, ok := tree.FindFolder(w.tree, folderID); !ok {
			return nil, folderNotFound(folderID)
		}
		return w.activate(folderID), nil
	})
}

// SelectNote selects a note and activates its folder. An empty id clears
// the selection.
func (w *Workspace) SelectNote(noteID string) error {
	return w.do(func() ([]Event, error) {
		if noteID == "" {
			return w.selectNote(""), nil
		}
		_, folderID, ok := tree.FindNote(w.tree, noteID)
		if !ok {
			return nil, noteNotFound(noteID)
		}
		evs := w.selectNote(noteID)
		w.session.ActiveFolderID = folderID
		return evs, nil
	})
}

// SetSidebar records whether the sidebar is open.
func (w *Workspace) SetSidebar(open bool) {
	_ = w.do(func() ([]Event, error) {
		w.session.SidebarOpen = open
		return nil, nil
	})
}

// CreateNote inserts a note at the front of folderID (the active folder when
// empty), applies the optional initial patch and selects the note. Without
// a title in init the note is called DefaultNoteTitle.
func (w *Workspace) CreateNote(folderID string, init models.NotePatch) (models.NoteRef, error) {
	var out models.NoteRef
	err := w.do(func() ([]Event, error) {
		if folderID == "" {
			folderID = w.session.ActiveFolderID
		}
		if _, ok := tree.FindFolder(w.tree, folderID); !ok {
			return nil, folderNotFound(folderID)
		}
		if init.Title == nil {
			title := DefaultNoteTitle
			init.Title = &title
		}
		n := tree.ApplyPatch(tree.NewNote(w.newID(), "", w.now()), init)
		t, id := tree.CreateNote(w.tree, folderID, n)
		w.commitTree(t)
		out = models.NoteRef{Note: n, FolderID: folderID}

		evs := []Event{{Kind: EventNoteCreated, FolderID: folderID, NoteID: id}}
		evs = append(evs, w.selectNote(id)...)
		w.session.ActiveFolderID = folderID
		return evs, nil
	})
	return out, err
}

// UpdateNote applies patch immediately. Pending edits of the same fields are
// dropped since this write is newer.
func (w *Workspace) UpdateNote(noteID string, patch models.NotePatch) (models.NoteRef, error) {
	var out models.NoteRef
	err := w.do(func() ([]Event, error) {
		_, folderID, ok := tree.FindNote(w.tree, noteID)
		if !ok {
			return nil, noteNotFound(noteID)
		}
		if patch.Title != nil {
			w.cancelEdit(editKey(noteID, "title"))
		}
		if patch.Content != nil {
			w.cancelEdit(editKey(noteID, "content"))
		}
		w.commitTree(tree.UpdateNote(w.tree, folderID, noteID, patch))
		n, _, _ := tree.FindNote(w.tree, noteID)
		out = models.NoteRef{Note: n, FolderID: folderID}
		return []Event{{Kind: EventNoteUpdated, FolderID: folderID, NoteID: noteID}}, nil
	})
	return out, err
}

// EditTitle schedules a title change. Repeated calls within the commit delay
// coalesce; only the last value is committed.
func (w *Workspace) EditTitle(noteID, title string) error {
	return w.scheduleEdit(noteID, "title", models.NotePatch{Title: &title})
}

// EditContent schedules a content change, coalesced like EditTitle.
func (w *Workspace) EditContent(noteID, content string) error {
	return w.scheduleEdit(noteID, "content", models.NotePatch{Content: &content})
}

func (w *Workspace) scheduleEdit(noteID, field string, patch models.NotePatch) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, _, ok := tree.FindNote(w.tree, noteID); !ok {
		return noteNotFound(noteID)
	}
	if w.closed {
		return nil
	}
	w.queueEdit(pendingEdit{Key: editKey(noteID, field), NoteID: noteID, Patch: patch})
	return nil
}

// FlushEdits commits the pending edits of noteID now.
func (w *Workspace) FlushEdits(noteID string) error {
	return w.do(func() ([]Event, error) {
		if _, _, ok := tree.FindNote(w.tree, noteID); !ok {
			return nil, noteNotFound(noteID)
		}
		return w.flushNote(noteID), nil
	})
}

// SetTags replaces a note's tags. Blank and duplicate tags are dropped.
func (w *Workspace) SetTags(noteID string, tags []string) (models.NoteRef, error) {
	return w.UpdateNote(noteID, models.NotePatch{Tags: &tags})
}

// AddTag appends tag unless it is blank or already present.
func (w *Workspace) AddTag(noteID, tag string) (models.NoteRef, error) {
	return w.editTags(noteID, func(tags []string) []string {
		return append(slices.Clone(tags), tag)
	})
}

// RemoveTag removes tag from the note.
func (w *Workspace) RemoveTag(noteID, tag string) (models.NoteRef, error) {
	return w.editTags(noteID, func(tags []string) []string {
		return slices.DeleteFunc(slices.Clone(tags), func(t string) bool { return t == tag })
	})
}

func (w *Workspace) editTags(noteID string, fn func([]string) []string) (models.NoteRef, error) {
	var out models.NoteRef
	err := w.do(func() ([]Event, error) {
		n, folderID, ok := tree.FindNote(w.tree, noteID)
		if !ok {
			return nil, noteNotFound(noteID)
		}
		next := tree.NormalizeTags(fn(n.Tags))
		if slices.Equal(next, n.Tags) {
			out = models.NoteRef{Note: n, FolderID: folderID}
			return nil, nil
		}
		w.commitTree(tree.UpdateNote(w.tree, folderID, noteID, models.NotePatch{Tags: &next}))
		n, _, _ = tree.FindNote(w.tree, noteID)
		out = models.NoteRef{Note: n, FolderID: folderID}
		return []Event{{Kind: EventNoteUpdated, FolderID: folderID, NoteID: noteID}}, nil
	})
	return out, err
}

// MoveNote moves a note to the front of targetFolderID and makes that folder
// active.
func (w *Workspace) MoveNote(noteID, targetFolderID string) error {
	return w.do(func() ([]Event, error) {
		if _, _, ok := tree.FindNote(w.tree, noteID); !ok {
			return nil, noteNotFound(noteID)
		}
		if _, ok := tree.FindFolder(w.tree, targetFolderID); !ok {
			return nil, folderNotFound(targetFolderID)
		}
		w.commitTree(tree.MoveNote(w.tree, noteID, targetFolderID))
		evs := []Event{{Kind: EventNoteMoved, FolderID: targetFolderID, NoteID: noteID}}
		return append(evs, w.activate(targetFolderID)...), nil
	})
}

// DeleteNote removes a note. Its pending edits are dropped and it is
// deselected.
func (w *Workspace) DeleteNote(noteID string) error {
	return w.do(func() ([]Event, error) {
		_, folderID, ok := tree.FindNote(w.tree, noteID)
		if !ok {
			return nil, noteNotFound(noteID)
		}
		w.cancelEdits(editPrefix(noteID))
		t, _ := tree.DeleteNote(w.tree, noteID)
		w.commitTree(t)
		if w.session.SelectedNoteID == noteID {
			w.session.SelectedNoteID = ""
		}
		return []Event{{Kind: EventNoteDeleted, FolderID: folderID, NoteID: noteID}}, nil
	})
}

// FollowLink resolves label in the configured scope and selects the result,
// creating a note titled label in the active folder when nothing matches. A
// blank label yields a result with Navigated false.
func (w *Workspace) FollowLink(label string) (FollowResult, error) {
	var res FollowResult
	err := w.do(func() ([]Event, error) {
		if _, ok := tree.FindFolder(w.tree, w.session.ActiveFolderID); !ok {
			return nil, fmt.Errorf("active folder: %w", apperr.ErrNotFound)
		}
		// Commit the source note first so its latest title is what we match.
		evs := w.flushNote(w.session.SelectedNoteID)

		folder, _ := tree.FindFolder(w.tree, w.session.ActiveFolderID)
		candidates := tree.FolderRefs(folder)
		if w.scope == links.ScopeTree {
			candidates = tree.Flatten(w.tree)
		}

		create := func(title string) (models.Note, bool) {
			n := tree.NewNote(w.newID(), title, w.now())
			t, id := tree.CreateNote(w.tree, folder.ID, n)
			if id == "" {
				return models.Note{}, false
			}
			w.commitTree(t)
			return n, true
		}

		n, created, ok := links.ResolveOrCreate(label, candidates, create)
		if !ok {
			return evs, nil
		}
		_, folderID, _ := tree.FindNote(w.tree, n.ID)
		if created {
			evs = append(evs, Event{Kind: EventNoteCreated, FolderID: folderID, NoteID: n.ID})
		}
		evs = append(evs, w.selectNote(n.ID)...)
		w.session.ActiveFolderID = folderID

		res = FollowResult{
			Note:      models.NoteRef{Note: n, FolderID: folderID},
			Created:   created,
			Navigated: true,
		}
		return evs, nil
	})
	return res, err
}

// Replace swaps in a whole new tree, e.g. from an imported backup. All
// pending edits are dropped.
func (w *Workspace) Replace(t models.Tree) {
	_ = w.do(func() ([]Event, error) {
		w.cancelEdits("note/")
		if t.Folders == nil {
			t.Folders = []models.Folder{}
		}
		w.commitTree(t)
		w.fixSession()
		return []Event{{Kind: EventTreeReloaded}}, nil
	})
}

// Reload re-reads the tree from storage after it was changed elsewhere.
// Unreadable data leaves the current tree in place.
func (w *Workspace) Reload() {
	_ = w.do(func() ([]Event, error) {
		folders := storage.Load[[]models.Folder](w.provider, w.logger, storage.KeyFolders, nil)
		if folders == nil {
			w.logger.Warn("workspace: reload skipped, stored tree unreadable")
			return nil, nil
		}
		w.tree = models.Tree{Folders: folders}
		w.fixSession()
		return []Event{{Kind: EventTreeReloaded}}, nil
	})
}
