package workspace

// Event kinds.
const (
	EventFolderCreated  = "folder.created"
	EventFolderUpdated  = "folder.updated"
	EventFolderDeleted  = "folder.deleted"
	EventNoteCreated    = "note.created"
	EventNoteUpdated    = "note.updated"
	EventNoteDeleted    = "note.deleted"
	EventNoteMoved      = "note.moved"
	EventSessionUpdated = "session.updated"
	EventTreeReloaded   = "tree.reloaded"
)

// Event describes one committed change.
type Event struct {
	Kind     string `json:"kind"`
	FolderID string `json:"folder_id,omitempty"`
	NoteID   string `json:"note_id,omitempty"`
}

// Listener receives events after the change is committed, outside the
// workspace lock. Listeners must not block for long.
type Listener func(Event)

// Subscribe registers l and returns a function that removes it.
func (w *Workspace) Subscribe(l Listener) (unsubscribe func()) {
	w.lmu.Lock()
	id := w.nextLID
	w.nextLID++
	w.listeners[id] = l
	w.lmu.Unlock()

	return func() {
		w.lmu.Lock()
		delete(w.listeners, id)
		w.lmu.Unlock()
	}
}

func (w *Workspace) emit(evs ...Event) {
	if len(evs) == 0 {
		return
	}
	w.lmu.Lock()
	ls := make([]Listener, 0, len(w.listeners))
	for _, l := range w.listeners {
		ls = append(ls, l)
	}
	w.lmu.Unlock()

	for _, ev := range evs {
		for _, l := range ls {
			l(ev)
		}
	}
}
