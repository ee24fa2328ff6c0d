// Package workspace is the runtime that owns the single current folder tree
// together with the session (active folder, selected note, sidebar). It
// applies commands through the pure tree operations, debounces editor
// commits, mirrors every committed change to a storage.Provider and tells
// subscribers what changed.
//
// All commands and all debounced commits are serialized on one mutex, so
// each one runs to completion before the next starts.
package workspace

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/kenaz-notebook/internal/debounce"
	"github.com/starford/kenaz-notebook/internal/links"
	"github.com/starford/kenaz-notebook/internal/models"
	"github.com/starford/kenaz-notebook/internal/storage"
	"github.com/starford/kenaz-notebook/internal/tree"
)

// Defaults for new folders and notes.
const (
	DefaultFolderName = "Neuer Ordner"
	DefaultNoteTitle  = "Neue Notiz"
)

// SaveStatus is the coarse save indicator shown to the user.
type SaveStatus string

// Save indicator states.
const (
	StatusSaved  SaveStatus = "saved"
	StatusSaving SaveStatus = "saving"
)

// Session is the per-user navigation state, persisted key by key.
type Session struct {
	ActiveFolderID string `json:"activeFolderId"`
	SelectedNoteID string `json:"selectedNoteId"`
	SidebarOpen    bool   `json:"sidebarOpen"`
}

// Options configures a Workspace.
type Options struct {
	Provider           storage.Provider
	Logger             *slog.Logger
	CommitDelay        time.Duration
	SaveIndicatorDelay time.Duration
	LinkScope          string
	SeedDemo           bool
	NewID              tree.IDFunc
	Now                func() time.Time
}

// pendingEdit is a debounced title or content change for one note. Seq
// identifies the Trigger that queued it.
type pendingEdit struct {
	Key    string
	Seq    uint64
	NoteID string
	Patch  models.NotePatch
}

// Workspace is safe for concurrent use.
type Workspace struct {
	provider           storage.Provider
	logger             *slog.Logger
	commitDelay        time.Duration
	saveIndicatorDelay time.Duration
	scope              string
	newID              tree.IDFunc
	now                func() time.Time

	edits     *debounce.Group[pendingEdit]
	indicator *debounce.Group[struct{}]

	mu        sync.Mutex
	tree      models.Tree
	session   Session
	persisted Session
	status    SaveStatus
	closed    bool

	// editSeq numbers scheduled edits; liveEdits holds the newest number per
	// edit key. A fired edit missing from liveEdits was cancelled or
	// superseded after its timer went off.
	editSeq   uint64
	liveEdits map[string]uint64

	lmu       sync.Mutex
	listeners map[int]Listener
	nextLID   int
}

// Open loads the workspace state from opts.Provider. Missing or malformed
// values fall back to defaults; with SeedDemo an absent tree is replaced by
// the demo folders.
func Open(opts Options) *Workspace {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.CommitDelay <= 0 {
		opts.CommitDelay = 200 * time.Millisecond
	}
	if opts.SaveIndicatorDelay <= 0 {
		opts.SaveIndicatorDelay = 800 * time.Millisecond
	}
	if opts.LinkScope == "" {
		opts.LinkScope = links.ScopeFolder
	}
	if opts.NewID == nil {
		opts.NewID = tree.NewID
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	w := &Workspace{
		provider:           opts.Provider,
		logger:             opts.Logger,
		commitDelay:        opts.CommitDelay,
		saveIndicatorDelay: opts.SaveIndicatorDelay,
		scope:              opts.LinkScope,
		newID:              opts.NewID,
		now:                opts.Now,
		status:             StatusSaved,
		liveEdits:          make(map[string]uint64),
		listeners:          make(map[int]Listener),
	}
	w.edits = debounce.New(w.fireEdit)
	w.indicator = debounce.New(w.fireIndicator)

	w.tree = w.loadTree(opts.SeedDemo)
	w.session = w.loadSession()
	w.fixSession()
	w.persistSession()

	w.logger.Info("workspace: opened",
		slog.Int("folders", len(w.tree.Folders)),
		slog.Int("notes", tree.NoteCount(w.tree)),
		slog.String("link_scope", w.scope))
	return w
}

func (w *Workspace) loadTree(seed bool) models.Tree {
	folders := storage.Load[[]models.Folder](w.provider, w.logger, storage.KeyFolders, nil)
	if folders == nil {
		if seed {
			t := DemoTree(w.now())
			storage.Save(w.provider, w.logger, storage.KeyFolders, t.Folders)
			return t
		}
		return models.Tree{Folders: []models.Folder{}}
	}
	t := models.Tree{Folders: folders}
	for id, n := range tree.IDs(t) {
		if n > 1 {
			w.logger.Warn("workspace: duplicate id in stored tree", slog.String("id", id))
		}
	}
	return t
}

func (w *Workspace) loadSession() Session {
	var firstFolder, firstNote string
	if len(w.tree.Folders) > 0 {
		firstFolder = w.tree.Folders[0].ID
		if notes := w.tree.Folders[0].Notes; len(notes) > 0 {
			firstNote = notes[0].ID
		}
	}
	return Session{
		ActiveFolderID: deref(storage.Load(w.provider, w.logger, storage.KeyActiveFolderID, ref(firstFolder))),
		SelectedNoteID: deref(storage.Load(w.provider, w.logger, storage.KeySelectedNoteID, ref(firstNote))),
		SidebarOpen:    storage.Load(w.provider, w.logger, storage.KeySidebar, true),
	}
}

// fixSession drops session references that no longer resolve: an unknown
// active folder falls back to the first folder, and the selected note must
// live in the active folder. Caller holds w.mu.
func (w *Workspace) fixSession() {
	if _, ok := tree.FindFolder(w.tree, w.session.ActiveFolderID); !ok {
		w.session.ActiveFolderID = ""
		if len(w.tree.Folders) > 0 {
			w.session.ActiveFolderID = w.tree.Folders[0].ID
		}
	}
	if _, folderID, ok := tree.FindNote(w.tree, w.session.SelectedNoteID); !ok || folderID != w.session.ActiveFolderID {
		w.session.SelectedNoteID = ""
	}
}

// commitTree installs t as the current snapshot and persists it. Caller
// holds w.mu.
func (w *Workspace) commitTree(t models.Tree) {
	w.tree = t
	w.markSaving()
	storage.Save(w.provider, w.logger, storage.KeyFolders, t.Folders)
}

// persistSession saves the session keys that changed since the last save.
// Caller holds w.mu.
func (w *Workspace) persistSession() bool {
	changed := false
	if w.session.ActiveFolderID != w.persisted.ActiveFolderID {
		storage.Save(w.provider, w.logger, storage.KeyActiveFolderID, ref(w.session.ActiveFolderID))
		changed = true
	}
	if w.session.SelectedNoteID != w.persisted.SelectedNoteID {
		storage.Save(w.provider, w.logger, storage.KeySelectedNoteID, ref(w.session.SelectedNoteID))
		changed = true
	}
	if w.session.SidebarOpen != w.persisted.SidebarOpen {
		storage.Save(w.provider, w.logger, storage.KeySidebar, w.session.SidebarOpen)
		changed = true
	}
	w.persisted = w.session
	return changed
}

func (w *Workspace) markSaving() {
	w.status = StatusSaving
	w.indicator.Trigger("status", w.saveIndicatorDelay, struct{}{})
}

func (w *Workspace) fireIndicator(string, struct{}) {
	w.mu.Lock()
	w.status = StatusSaved
	w.mu.Unlock()
}

func (w *Workspace) fireEdit(_ string, e pendingEdit) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	ev, ok := w.applyEdit(e)
	w.mu.Unlock()
	if ok {
		w.emit(ev)
	}
}

// queueEdit records e as the newest edit for its key and restarts the key's
// timer. Caller holds w.mu.
func (w *Workspace) queueEdit(e pendingEdit) {
	w.editSeq++
	e.Seq = w.editSeq
	w.liveEdits[e.Key] = e.Seq
	w.edits.Trigger(e.Key, w.commitDelay, e)
}

// cancelEdit drops the pending edit under key, including one whose timer
// already fired and is waiting for w.mu. Caller holds w.mu.
func (w *Workspace) cancelEdit(key string) {
	delete(w.liveEdits, key)
	w.edits.Cancel(key)
}

// cancelEdits is cancelEdit for every key starting with prefix. Caller
// holds w.mu.
func (w *Workspace) cancelEdits(prefix string) {
	for key := range w.liveEdits {
		if strings.HasPrefix(key, prefix) {
			delete(w.liveEdits, key)
		}
	}
	w.edits.CancelPrefix(prefix)
}

// applyEdit commits a debounced edit to whichever folder holds the note now.
// Edits that were cancelled or superseded are dropped. Caller holds w.mu.
func (w *Workspace) applyEdit(e pendingEdit) (Event, bool) {
	if seq, ok := w.liveEdits[e.Key]; !ok || seq != e.Seq {
		return Event{}, false
	}
	delete(w.liveEdits, e.Key)
	_, folderID, ok := tree.FindNote(w.tree, e.NoteID)
	if !ok {
		return Event{}, false
	}
	w.commitTree(tree.UpdateNote(w.tree, folderID, e.NoteID, e.Patch))
	return Event{Kind: EventNoteUpdated, FolderID: folderID, NoteID: e.NoteID}, true
}

// flushNote commits every pending edit of noteID right away. Caller holds w.mu.
func (w *Workspace) flushNote(noteID string) []Event {
	if noteID == "" {
		return nil
	}
	var evs []Event
	for _, p := range w.edits.TakePrefix(editPrefix(noteID)) {
		if ev, ok := w.applyEdit(p.Value); ok {
			evs = append(evs, ev)
		}
	}
	return evs
}

// Close commits pending edits and stops all timers.
func (w *Workspace) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	var evs []Event
	for _, p := range w.edits.Stop() {
		if ev, ok := w.applyEdit(p.Value); ok {
			evs = append(evs, ev)
		}
	}
	clear(w.liveEdits)
	w.indicator.Stop()
	w.status = StatusSaved
	w.mu.Unlock()
	w.emit(evs...)
	w.logger.Info("workspace: closed")
}

func editKey(noteID, field string) string {
	return editPrefix(noteID) + field
}

func editPrefix(noteID string) string {
	return "note/" + noteID + "/"
}

func ref(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
