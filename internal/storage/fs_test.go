package storage

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func tempStore(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSaveAndLoad(t *testing.T) {
	s := tempStore(t)
	if err := s.Save("folders", []byte(`[1,2]`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, ok, err := s.Load("folders")
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if string(got) != "[1,2]" {
		t.Errorf("content = %q", got)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "folders.json")); err != nil {
		t.Errorf("expected folders.json on disk: %v", err)
	}
}

func TestLoadMissing(t *testing.T) {
	s := tempStore(t)
	_, ok, err := s.Load("nothing")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Error("missing key should report ok=false")
	}
}

func TestInvalidKeysRejected(t *testing.T) {
	s := tempStore(t)
	for _, k := range []string{"", "../escape", "a/b", ".hidden", "/etc/passwd"} {
		if err := s.Save(k, []byte("x")); err == nil {
			t.Errorf("expected error for save key %q", k)
		}
		if _, _, err := s.Load(k); err == nil {
			t.Errorf("expected error for load key %q", k)
		}
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempStore(t)
	_ = s.Save("atomic", []byte("original"))
	if err := s.Save("atomic", []byte("updated")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, _, _ := s.Load("atomic")
	if string(got) != "updated" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.Root(), ".kenaz-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestIsOwnWrite(t *testing.T) {
	s := tempStore(t)
	_ = s.Save("k", []byte("mine"))
	if !s.IsOwnWrite("k", []byte("mine")) {
		t.Error("expected own write to be recognised")
	}
	if s.IsOwnWrite("k", []byte("theirs")) {
		t.Error("foreign content reported as own write")
	}
	if s.IsOwnWrite("other", []byte("mine")) {
		t.Error("unknown key reported as own write")
	}
}

func TestKeyOf(t *testing.T) {
	s := tempStore(t)
	if k, ok := s.KeyOf(filepath.Join(s.Root(), "folders.json")); !ok || k != "folders" {
		t.Errorf("KeyOf = %q, %v", k, ok)
	}
	for _, p := range []string{
		filepath.Join(s.Root(), ".kenaz-tmp-123"),
		filepath.Join(s.Root(), "sub", "folders.json"),
		filepath.Join(s.Root(), "notes.txt"),
	} {
		if _, ok := s.KeyOf(p); ok {
			t.Errorf("KeyOf(%q) should not match", p)
		}
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestGenericLoad_FallsBackToDefault(t *testing.T) {
	s := tempStore(t)
	log := discard()

	if got := Load(s, log, "sidebar", true); got != true {
		t.Errorf("missing key: got %v, want default true", got)
	}

	_ = s.Save("sidebar", []byte("{not json"))
	if got := Load(s, log, "sidebar", true); got != true {
		t.Errorf("malformed value: got %v, want default true", got)
	}

	if got := Load(s, log, "../bad", "def"); got != "def" {
		t.Errorf("invalid key: got %q, want default", got)
	}
}

func TestGenericSaveLoadRoundTrip(t *testing.T) {
	s := tempStore(t)
	log := discard()

	Save(s, log, "activeFolderId", "f-allg")
	if got := Load(s, log, "activeFolderId", ""); got != "f-allg" {
		t.Errorf("got %q", got)
	}

	var none *string
	Save(s, log, "selectedNoteId", none)
	if got := Load[*string](s, log, "selectedNoteId", nil); got != nil {
		t.Errorf("expected nil, got %v", *got)
	}
}
