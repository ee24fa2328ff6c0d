package workspace

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/kenaz-notebook/internal/apperr"
	"github.com/starford/kenaz-notebook/internal/links"
	"github.com/starford/kenaz-notebook/internal/models"
	"github.com/starford/kenaz-notebook/internal/storage"
	"github.com/starford/kenaz-notebook/internal/tree"
)

// memProvider records every save so tests can count commits.
type memProvider struct {
	mu    sync.Mutex
	data  map[string][]byte
	saves map[string]int
}

func newMemProvider() *memProvider {
	return &memProvider{data: map[string][]byte{}, saves: map[string]int{}}
}

func (m *memProvider) Load(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[key]
	return d, ok, nil
}

func (m *memProvider) Save(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	m.saves[key]++
	return nil
}

func (m *memProvider) Close() error { return nil }

func (m *memProvider) saveCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves[key]
}

func (m *memProvider) raw(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.data[key])
}

func (m *memProvider) storedTree(t *testing.T) models.Tree {
	t.Helper()
	var folders []models.Folder
	require.NoError(t, json.Unmarshal([]byte(m.raw(storage.KeyFolders)), &folders))
	return models.Tree{Folders: folders}
}

const commitDelay = 30 * time.Millisecond

// epoch has millisecond precision so it survives a JSON round trip.
var epoch = time.UnixMilli(1_740_830_400_000)

func seqIDs() tree.IDFunc {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func openTest(t *testing.T, p storage.Provider, mutate ...func(*Options)) *Workspace {
	t.Helper()
	opts := Options{
		Provider:           p,
		Logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		CommitDelay:        commitDelay,
		SaveIndicatorDelay: 2 * commitDelay,
		SeedDemo:           true,
		NewID:              seqIDs(),
		Now:                func() time.Time { return epoch },
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	w := Open(opts)
	t.Cleanup(w.Close)
	return w
}

func strPtr(s string) *string { return &s }

// schule sets up the "Schule" folder holding "Mathe LK" which links to
// [[Julius]], and leaves it active with Mathe LK selected.
func schule(t *testing.T, w *Workspace) (folderID, noteID string) {
	t.Helper()
	f, err := w.CreateFolder("Schule")
	require.NoError(t, err)
	r, err := w.CreateNote(f.ID, models.NotePatch{
		Title:   strPtr("Mathe LK"),
		Content: strPtr("Siehe [[Julius]]"),
	})
	require.NoError(t, err)
	return f.ID, r.Note.ID
}

func TestOpen_SeedsDemo(t *testing.T) {
	p := newMemProvider()
	w := openTest(t, p)

	snap := w.Snapshot()
	require.Len(t, snap.Folders, 2)
	assert.Equal(t, "Allgemein", snap.Folders[0].Name)
	assert.Equal(t, "Schule / Geschichte", snap.Folders[1].Name)

	s := w.Session()
	assert.Equal(t, "f-allg", s.ActiveFolderID)
	assert.Equal(t, "n-welcome", s.SelectedNoteID)
	assert.True(t, s.SidebarOpen)

	assert.Equal(t, 1, p.saveCount(storage.KeyFolders))
	assert.Equal(t, `"f-allg"`, p.raw(storage.KeyActiveFolderID))
}

func TestOpen_NoSeed(t *testing.T) {
	w := openTest(t, newMemProvider(), func(o *Options) { o.SeedDemo = false })
	assert.Empty(t, w.Snapshot().Folders)
	assert.Equal(t, Session{SidebarOpen: true}, w.Session())
}

func TestOpen_MalformedValuesFallBack(t *testing.T) {
	p := newMemProvider()
	p.data[storage.KeyFolders] = []byte("{not json")
	p.data[storage.KeySidebar] = []byte(`"yes"`)
	p.data[storage.KeyActiveFolderID] = []byte(`"gone"`)

	w := openTest(t, p)
	assert.Len(t, w.Snapshot().Folders, 2)
	assert.True(t, w.Session().SidebarOpen)
	assert.Equal(t, "f-allg", w.Session().ActiveFolderID)
}

func TestOpen_RestoresStoredState(t *testing.T) {
	p := newMemProvider()
	w := openTest(t, p)
	_, noteID := schule(t, w)
	w.SetSidebar(false)
	w.Close()

	again := openTest(t, p)
	assert.Equal(t, w.Snapshot(), again.Snapshot())
	assert.Equal(t, noteID, again.Session().SelectedNoteID)
	assert.False(t, again.Session().SidebarOpen)
}

func TestFollowLink_CreatesInActiveFolder(t *testing.T) {
	w := openTest(t, newMemProvider(), func(o *Options) { o.SeedDemo = false })
	folderID, mathe := schule(t, w)

	res, err := w.FollowLink("Julius")
	require.NoError(t, err)
	require.True(t, res.Navigated)
	assert.True(t, res.Created)
	assert.Equal(t, "Julius", res.Note.Note.Title)
	assert.Empty(t, res.Note.Note.Content)
	assert.Empty(t, res.Note.Note.Tags)
	assert.Equal(t, folderID, res.Note.FolderID)
	assert.Equal(t, res.Note.Note.ID, w.Session().SelectedNoteID)

	back, err := w.Backlinks(res.Note.Note.ID)
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.Equal(t, mathe, back[0].Note.ID)
}

func TestFollowLink_Idempotent(t *testing.T) {
	w := openTest(t, newMemProvider())
	schule(t, w)

	first, err := w.FollowLink("Julius")
	require.NoError(t, err)
	count := tree.NoteCount(w.Snapshot())

	second, err := w.FollowLink("  julius ")
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Note.Note.ID, second.Note.Note.ID)
	assert.Equal(t, count, tree.NoteCount(w.Snapshot()))
}

func TestFollowLink_BlankLabelDoesNotNavigate(t *testing.T) {
	w := openTest(t, newMemProvider())
	before, session := w.Snapshot(), w.Session()

	res, err := w.FollowLink("   ")
	require.NoError(t, err)
	assert.False(t, res.Navigated)
	assert.Equal(t, before, w.Snapshot())
	assert.Equal(t, session, w.Session())
}

func TestFollowLink_FolderScope(t *testing.T) {
	w := openTest(t, newMemProvider())
	schuleID, _ := schule(t, w)
	_, err := w.FollowLink("Julius")
	require.NoError(t, err)

	// The welcome note links [[Julius]] too, but lives in another folder.
	require.NoError(t, w.SelectNote("n-welcome"))
	res, err := w.FollowLink("Julius")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "f-allg", res.Note.FolderID)
	assert.NotEqual(t, schuleID, res.Note.FolderID)
}

func TestFollowLink_TreeScope(t *testing.T) {
	w := openTest(t, newMemProvider(), func(o *Options) { o.LinkScope = links.ScopeTree })
	schuleID, _ := schule(t, w)
	julius, err := w.FollowLink("Julius")
	require.NoError(t, err)

	require.NoError(t, w.SelectNote("n-welcome"))
	res, err := w.FollowLink("Julius")
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, julius.Note.Note.ID, res.Note.Note.ID)
	assert.Equal(t, schuleID, w.Session().ActiveFolderID)
}

func TestFollowLink_NoActiveFolder(t *testing.T) {
	w := openTest(t, newMemProvider(), func(o *Options) { o.SeedDemo = false })
	_, err := w.FollowLink("Julius")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRenamedTitleLeavesLinkDangling(t *testing.T) {
	w := openTest(t, newMemProvider())
	_, mathe := schule(t, w)
	res, err := w.FollowLink("Julius")
	require.NoError(t, err)
	julius := res.Note.Note.ID

	_, err = w.UpdateNote(julius, models.NotePatch{Title: strPtr("Jules")})
	require.NoError(t, err)

	back, err := w.Backlinks(julius)
	require.NoError(t, err)
	assert.Empty(t, back)

	v, err := w.View(mathe)
	require.NoError(t, err)
	assert.Equal(t, "Siehe [[Julius]]", v.Note.Content)
	require.Len(t, v.ForwardLinks, 1)
	assert.True(t, v.ForwardLinks[0].Dangling)
}

func TestDeleteActiveFolder_Reselects(t *testing.T) {
	w := openTest(t, newMemProvider())
	folderID, _ := schule(t, w)

	require.NoError(t, w.DeleteFolder(folderID))
	s := w.Session()
	assert.Equal(t, "f-allg", s.ActiveFolderID)
	assert.Empty(t, s.SelectedNoteID)

	require.NoError(t, w.DeleteFolder("f-allg"))
	require.NoError(t, w.DeleteFolder("f-schule"))
	s = w.Session()
	assert.Empty(t, s.ActiveFolderID)
	assert.Equal(t, "null", w.provider.(*memProvider).raw(storage.KeyActiveFolderID))
}

func TestDeleteInactiveFolder_KeepsSelection(t *testing.T) {
	w := openTest(t, newMemProvider())
	before := w.Session()
	require.NoError(t, w.DeleteFolder("f-schule"))
	assert.Equal(t, before, w.Session())
}

func TestEdits_CoalesceIntoOneCommit(t *testing.T) {
	p := newMemProvider()
	w := openTest(t, p)
	base := p.saveCount(storage.KeyFolders)

	for _, s := range []string{"a", "ab", "abc"} {
		require.NoError(t, w.EditContent("n-welcome", s))
	}
	assert.True(t, w.HasPendingEdits("n-welcome"))

	require.Eventually(t, func() bool {
		return p.saveCount(storage.KeyFolders) == base+1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(3 * commitDelay)

	assert.Equal(t, base+1, p.saveCount(storage.KeyFolders))
	n, _, _ := tree.FindNote(p.storedTree(t), "n-welcome")
	assert.Equal(t, "abc", n.Content)
	assert.False(t, w.HasPendingEdits("n-welcome"))
}

func TestEdits_TitleAndContentIndependent(t *testing.T) {
	w := openTest(t, newMemProvider())
	require.NoError(t, w.EditTitle("n-welcome", "Hallo"))
	require.NoError(t, w.EditContent("n-welcome", "Text"))

	require.Eventually(t, func() bool {
		r, _ := w.Note("n-welcome")
		return r.Note.Title == "Hallo" && r.Note.Content == "Text"
	}, time.Second, 5*time.Millisecond)
}

func TestSelectNote_FlushesWithoutLeaking(t *testing.T) {
	p := newMemProvider()
	w := openTest(t, p)
	other, err := w.CreateNote("f-allg", models.NotePatch{Title: strPtr("Other"), Content: strPtr("kept")})
	require.NoError(t, err)
	require.NoError(t, w.SelectNote("n-welcome"))

	require.NoError(t, w.EditContent("n-welcome", "draft"))
	require.NoError(t, w.SelectNote(other.Note.ID))

	welcome, _ := w.Note("n-welcome")
	assert.Equal(t, "draft", welcome.Note.Content, "switching commits the previous note")
	o, _ := w.Note(other.Note.ID)
	assert.Equal(t, "kept", o.Note.Content)

	commits := p.saveCount(storage.KeyFolders)
	time.Sleep(3 * commitDelay)
	assert.Equal(t, commits, p.saveCount(storage.KeyFolders), "no late commit after flush")
}

func TestDeleteNote_CancelsPendingEdits(t *testing.T) {
	p := newMemProvider()
	w := openTest(t, p)
	require.NoError(t, w.EditContent("n-welcome", "lost"))
	require.NoError(t, w.DeleteNote("n-welcome"))
	commits := p.saveCount(storage.KeyFolders)

	time.Sleep(3 * commitDelay)
	assert.Equal(t, commits, p.saveCount(storage.KeyFolders))
	assert.Empty(t, w.Session().SelectedNoteID)
	_, err := w.Note("n-welcome")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateNote_DropsOlderDraft(t *testing.T) {
	w := openTest(t, newMemProvider())
	require.NoError(t, w.EditContent("n-welcome", "draft"))
	_, err := w.UpdateNote("n-welcome", models.NotePatch{Content: strPtr("final")})
	require.NoError(t, err)

	time.Sleep(3 * commitDelay)
	r, _ := w.Note("n-welcome")
	assert.Equal(t, "final", r.Note.Content)
}

// firedEdit removes the pending edit from its timer the way expiry does and
// returns it, leaving the workspace to apply it later.
func firedEdit(t *testing.T, w *Workspace, noteID, field string) pendingEdit {
	t.Helper()
	e, ok := w.edits.Take(editKey(noteID, field))
	require.True(t, ok, "no pending %s edit for %s", field, noteID)
	return e
}

func TestEdits_FiredDraftLosesToNewerPatch(t *testing.T) {
	w := openTest(t, newMemProvider(), func(o *Options) { o.CommitDelay = time.Hour })
	require.NoError(t, w.EditContent("n-welcome", "stale draft"))
	e := firedEdit(t, w, "n-welcome", "content")

	_, err := w.UpdateNote("n-welcome", models.NotePatch{Content: strPtr("newer patch")})
	require.NoError(t, err)
	w.fireEdit(e.Key, e)

	r, _ := w.Note("n-welcome")
	assert.Equal(t, "newer patch", r.Note.Content)
}

func TestEdits_FiredDraftSupersededByNewerDraft(t *testing.T) {
	w := openTest(t, newMemProvider(), func(o *Options) { o.CommitDelay = time.Hour })
	require.NoError(t, w.EditContent("n-welcome", "old"))
	e := firedEdit(t, w, "n-welcome", "content")
	require.NoError(t, w.EditContent("n-welcome", "new"))

	w.fireEdit(e.Key, e)
	r, _ := w.Note("n-welcome")
	assert.Equal(t, DemoTree(epoch).Folders[0].Notes[0].Content, r.Note.Content, "superseded draft must not commit")

	require.NoError(t, w.FlushEdits("n-welcome"))
	r, _ = w.Note("n-welcome")
	assert.Equal(t, "new", r.Note.Content)
}

func TestEdits_FiredDraftDroppedByReplace(t *testing.T) {
	p := newMemProvider()
	w := openTest(t, p, func(o *Options) { o.CommitDelay = time.Hour })
	require.NoError(t, w.EditContent("n-welcome", "draft"))
	e := firedEdit(t, w, "n-welcome", "content")

	imported := DemoTree(epoch)
	imported.Folders[0].Notes[0].Content = "imported"
	w.Replace(imported)
	w.fireEdit(e.Key, e)

	r, _ := w.Note("n-welcome")
	assert.Equal(t, "imported", r.Note.Content)
	n, _, _ := tree.FindNote(p.storedTree(t), "n-welcome")
	assert.Equal(t, "imported", n.Content)
}

func TestEdits_FiredDraftDroppedAfterClose(t *testing.T) {
	p := newMemProvider()
	w := openTest(t, p, func(o *Options) { o.CommitDelay = time.Hour })
	require.NoError(t, w.EditTitle("n-welcome", "late"))
	e := firedEdit(t, w, "n-welcome", "title")

	w.Close()
	commits := p.saveCount(storage.KeyFolders)
	w.fireEdit(e.Key, e)

	assert.Equal(t, commits, p.saveCount(storage.KeyFolders))
	n, _, _ := tree.FindNote(p.storedTree(t), "n-welcome")
	assert.Equal(t, "Welcome 👋", n.Title)
}

func TestFlushEdits(t *testing.T) {
	w := openTest(t, newMemProvider(), func(o *Options) { o.CommitDelay = time.Hour })
	require.NoError(t, w.EditTitle("n-welcome", "Hallo"))
	require.NoError(t, w.FlushEdits("n-welcome"))

	assert.False(t, w.HasPendingEdits("n-welcome"))
	r, _ := w.Note("n-welcome")
	assert.Equal(t, "Hallo", r.Note.Title)

	assert.ErrorIs(t, w.FlushEdits("missing"), apperr.ErrNotFound)
}

func TestClose_CommitsPendingEdits(t *testing.T) {
	p := newMemProvider()
	w := openTest(t, p, func(o *Options) { o.CommitDelay = time.Hour })
	require.NoError(t, w.EditTitle("n-welcome", "Bye"))
	w.Close()

	n, _, _ := tree.FindNote(p.storedTree(t), "n-welcome")
	assert.Equal(t, "Bye", n.Title)
}

func TestMoveNote_ConservesAndActivates(t *testing.T) {
	w := openTest(t, newMemProvider())
	count := tree.NoteCount(w.Snapshot())

	require.NoError(t, w.MoveNote("n-welcome", "f-schule"))
	assert.Equal(t, count, tree.NoteCount(w.Snapshot()))
	r, err := w.Note("n-welcome")
	require.NoError(t, err)
	assert.Equal(t, "f-schule", r.FolderID)
	assert.Equal(t, "f-schule", w.Session().ActiveFolderID)
	assert.Equal(t, "n-welcome", w.Session().SelectedNoteID)
}

func TestNotFound_LeavesStateUnchanged(t *testing.T) {
	p := newMemProvider()
	w := openTest(t, p)
	before, commits := w.Snapshot(), p.saveCount(storage.KeyFolders)

	errs := []error{
		w.RenameFolder("x", "y"),
		w.DeleteFolder("x"),
		w.SelectFolder("x"),
		w.SelectNote("x"),
		w.MoveNote("x", "f-allg"),
		w.MoveNote("n-welcome", "x"),
		w.DeleteNote("x"),
		w.EditContent("x", "y"),
	}
	_, err := w.CreateNote("x", models.NotePatch{})
	errs = append(errs, err)
	_, err = w.UpdateNote("x", models.NotePatch{Title: strPtr("y")})
	errs = append(errs, err)
	_, err = w.AddTag("x", "#t")
	errs = append(errs, err)

	for i, err := range errs {
		assert.ErrorIs(t, err, apperr.ErrNotFound, "call %d", i)
	}
	assert.Equal(t, before, w.Snapshot())
	assert.Equal(t, commits, p.saveCount(storage.KeyFolders))
}

func TestTags(t *testing.T) {
	w := openTest(t, newMemProvider())
	r, err := w.AddTag("n-welcome", " #go ")
	require.NoError(t, err)
	assert.Equal(t, []string{"#ErsteNotiz", "#go"}, r.Note.Tags)

	r, err = w.AddTag("n-welcome", "#go")
	require.NoError(t, err)
	assert.Len(t, r.Note.Tags, 2)

	r, err = w.RemoveTag("n-welcome", "#ErsteNotiz")
	require.NoError(t, err)
	assert.Equal(t, []string{"#go"}, r.Note.Tags)

	r, err = w.SetTags("n-welcome", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{}, r.Note.Tags)
}

func TestCreateDefaults(t *testing.T) {
	w := openTest(t, newMemProvider())
	f, err := w.CreateFolder("  ")
	require.NoError(t, err)
	assert.Equal(t, DefaultFolderName, f.Name)
	assert.Equal(t, f.ID, w.Snapshot().Folders[0].ID)
	assert.Empty(t, w.Session().SelectedNoteID)

	r, err := w.CreateNote("", models.NotePatch{})
	require.NoError(t, err)
	assert.Equal(t, DefaultNoteTitle, r.Note.Title)
	assert.Equal(t, f.ID, r.FolderID)
	assert.Equal(t, r.Note.ID, w.Session().SelectedNoteID)
}

func TestSelectFolder_DropsForeignSelection(t *testing.T) {
	w := openTest(t, newMemProvider())
	require.NoError(t, w.SelectFolder("f-schule"))
	assert.Equal(t, Session{ActiveFolderID: "f-schule", SidebarOpen: true}, w.Session())

	require.NoError(t, w.SelectNote("n-welcome"))
	assert.Equal(t, "f-allg", w.Session().ActiveFolderID)
}

func TestEvents(t *testing.T) {
	w := openTest(t, newMemProvider())
	var mu sync.Mutex
	var got []string
	unsubscribe := w.Subscribe(func(ev Event) {
		mu.Lock()
		got = append(got, ev.Kind)
		mu.Unlock()
	})

	_, err := w.CreateFolder("Neu")
	require.NoError(t, err)
	unsubscribe()
	require.NoError(t, w.RenameFolder("f-allg", "X"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{EventFolderCreated, EventSessionUpdated}, got)
}

func TestSaveStatus(t *testing.T) {
	w := openTest(t, newMemProvider())
	require.NoError(t, w.RenameFolder("f-allg", "A"))
	assert.Equal(t, StatusSaving, w.SaveStatus())
	require.Eventually(t, func() bool {
		return w.SaveStatus() == StatusSaved
	}, time.Second, 5*time.Millisecond)
}

func TestSearch(t *testing.T) {
	w := openTest(t, newMemProvider())
	schule(t, w)

	assert.Len(t, w.Search("mathe", false), 1)
	assert.Empty(t, w.Search("welcome", false))
	assert.Len(t, w.Search("welcome", true), 1)
	assert.Len(t, w.Search("", true), 2)
}

func TestGraph(t *testing.T) {
	w := openTest(t, newMemProvider())
	g := w.Graph()
	assert.Len(t, g.Nodes, 1)
	assert.Empty(t, g.Edges)
	assert.Len(t, g.Dangling, 2)
}

func TestReload(t *testing.T) {
	p := newMemProvider()
	w := openTest(t, p)

	other := tree.RenameFolder(w.Snapshot(), "f-allg", "Extern")
	data, err := json.Marshal(other.Folders)
	require.NoError(t, err)
	require.NoError(t, p.Save(storage.KeyFolders, data))

	w.Reload()
	f, err := w.Folder("f-allg")
	require.NoError(t, err)
	assert.Equal(t, "Extern", f.Name)
}

func TestReplace_FixesSession(t *testing.T) {
	w := openTest(t, newMemProvider())
	var imported models.Tree
	imported, _ = tree.CreateFolder(imported, "f-new", "Import")
	w.Replace(imported)

	assert.Equal(t, imported, w.Snapshot())
	assert.Equal(t, "f-new", w.Session().ActiveFolderID)
	assert.Empty(t, w.Session().SelectedNoteID)
}
