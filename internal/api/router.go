package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/kenaz-notebook/internal/workspace"
)

const maxBodyBytes = 10 << 20

// NewRouter creates a chi router with all API routes mounted.
// sseHandler, if non-nil, is mounted at GET /events.
func NewRouter(ws *workspace.Workspace, sseHandler http.Handler) chi.Router {
	h := NewHandler(ws)

	r := chi.NewRouter()
	r.Use(LimitBody(maxBodyBytes))

	// Folders.
	r.Get("/folders", h.ListFolders)
	r.Post("/folders", h.CreateFolder)
	r.Patch("/folders/{id}", h.RenameFolder)
	r.Delete("/folders/{id}", h.DeleteFolder)
	r.Post("/folders/{id}/notes", h.CreateNote)

	// Notes.
	r.Get("/notes/{id}", h.GetNote)
	r.Patch("/notes/{id}", h.PatchNote)
	r.Delete("/notes/{id}", h.DeleteNote)
	r.Put("/notes/{id}/draft", h.Draft)
	r.Post("/notes/{id}/flush", h.Flush)
	r.Post("/notes/{id}/move", h.MoveNote)
	r.Put("/notes/{id}/tags", h.SetTags)
	r.Post("/notes/{id}/tags", h.AddTag)
	r.Delete("/notes/{id}/tags/{tag}", h.RemoveTag)

	// Links.
	r.Post("/links/follow", h.FollowLink)

	// Session.
	r.Get("/session", h.GetSession)
	r.Put("/session", h.PutSession)

	// Search and graph.
	r.Get("/search", h.Search)
	r.Get("/graph", h.Graph)

	// Backup.
	r.Get("/export", h.Export)
	r.Post("/import", h.Import)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
