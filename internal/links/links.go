// Package links derives the wiki-link graph from note text. Nothing here is
// cached: every call recomputes from the notes it is given.
package links

import (
	"strings"

	"github.com/starford/kenaz-notebook/internal/models"
	"github.com/starford/kenaz-notebook/internal/parser"
)

// Link resolution scopes.
const (
	ScopeFolder = "folder"
	ScopeTree   = "tree"
)

// CreateFunc inserts a new note titled title and returns it.
type CreateFunc func(title string) (models.Note, bool)

// ForwardLinks returns the distinct labels referenced by n.
func ForwardLinks(n models.Note) []string {
	return parser.ParseLinks(n.Content)
}

// Backlinks returns the notes in all, in input order, whose content links to
// n's title. n itself is never included; a blank title has no backlinks.
func Backlinks(n models.Note, all []models.NoteRef) []models.NoteRef {
	out := []models.NoteRef{}
	if strings.TrimSpace(n.Title) == "" {
		return out
	}
	for _, r := range all {
		if r.Note.ID == n.ID {
			continue
		}
		if parser.Contains(parser.ParseLinks(r.Note.Content), n.Title) {
			out = append(out, r)
		}
	}
	return out
}

// Find returns the first candidate whose title matches label.
func Find(label string, candidates []models.NoteRef) (models.NoteRef, bool) {
	key := parser.NormalizeTitle(label)
	if key == "" {
		return models.NoteRef{}, false
	}
	for _, r := range candidates {
		if parser.NormalizeTitle(r.Note.Title) == key {
			return r, true
		}
	}
	return models.NoteRef{}, false
}

// ResolveOrCreate follows label: the first candidate with a matching title
// is returned, otherwise create is called with the trimmed label. ok is
// false for a blank label or when create fails; the caller must not
// navigate then.
func ResolveOrCreate(label string, candidates []models.NoteRef, create CreateFunc) (n models.Note, created, ok bool) {
	clean := strings.TrimSpace(label)
	if clean == "" {
		return models.Note{}, false, false
	}
	if hit, found := Find(clean, candidates); found {
		return hit.Note, false, true
	}
	if create == nil {
		return models.Note{}, false, false
	}
	n, ok = create(clean)
	return n, ok, ok
}
