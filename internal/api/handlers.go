package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/kenaz-notebook/internal/checksum"
	"github.com/starford/kenaz-notebook/internal/exporter"
	"github.com/starford/kenaz-notebook/internal/tree"
	"github.com/starford/kenaz-notebook/internal/workspace"
)

// Handler holds API route handlers.
type Handler struct {
	ws  *workspace.Workspace
	now func() time.Time
}

// NewHandler creates a new Handler.
func NewHandler(ws *workspace.Workspace) *Handler {
	return &Handler{ws: ws, now: time.Now}
}

// ListFolders handles GET /api/folders.
//
//	@Summary		List the folder tree with all notes
//	@Tags			folders
//	@Produce		json
//	@Param			If-None-Match	header	string	false	"ETag of a previous response"
//	@Success		200	{object}	models.Tree
//	@Success		304	"Tree unchanged"
//	@Router			/folders [get]
func (h *Handler) ListFolders(w http.ResponseWriter, r *http.Request) {
	data, err := json.Marshal(h.ws.Snapshot())
	if err != nil {
		writeError(w, "list folders", err)
		return
	}
	etag := checksum.ETag(data)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(append(data, '\n'))
}

// CreateFolder handles POST /api/folders.
//
//	@Summary		Create a folder and make it active
//	@Tags			folders
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateFolderRequest	true	"Folder to create"
//	@Success		201		{object}	models.Folder
//	@Failure		400		{object}	errResponse
//	@Router			/folders [post]
func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req CreateFolderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "create folder", err)
		return
	}
	f, err := h.ws.CreateFolder(req.Name)
	if err != nil {
		writeError(w, "create folder", err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// RenameFolder handles PATCH /api/folders/{id}.
//
//	@Summary		Rename a folder
//	@Tags			folders
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Folder id"
//	@Param			body	body		RenameFolderRequest	true	"New name"
//	@Success		200		{object}	models.Folder
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/folders/{id} [patch]
func (h *Handler) RenameFolder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req RenameFolderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "rename folder", err)
		return
	}
	if err := h.ws.RenameFolder(id, req.Name); err != nil {
		writeError(w, "rename folder", err)
		return
	}
	f, err := h.ws.Folder(id)
	if err != nil {
		writeError(w, "rename folder", err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// DeleteFolder handles DELETE /api/folders/{id}.
//
//	@Summary		Delete a folder and all of its notes
//	@Tags			folders
//	@Param			id	path	string	true	"Folder id"
//	@Success		204	"Folder deleted"
//	@Failure		404	{object}	errResponse
//	@Router			/folders/{id} [delete]
func (h *Handler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	if err := h.ws.DeleteFolder(chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete folder", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateNote handles POST /api/folders/{id}/notes.
//
//	@Summary		Create a note at the front of a folder and select it
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Folder id"
//	@Param			body	body		NoteRequest	false	"Initial fields"
//	@Success		201		{object}	models.NoteRef
//	@Failure		404		{object}	errResponse
//	@Router			/folders/{id}/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, "create note", err)
			return
		}
	}
	ref, err := h.ws.CreateNote(chi.URLParam(r, "id"), req.patch())
	if err != nil {
		writeError(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, ref)
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a note with forward links and backlinks
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	NoteViewResponse
//	@Failure		404	{object}	errResponse
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	v, err := h.ws.View(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// PatchNote handles PATCH /api/notes/{id}.
//
//	@Summary		Apply a patch to a note immediately
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Note id"
//	@Param			body	body		PatchNoteRequest	true	"Fields to replace"
//	@Success		200		{object}	models.NoteRef
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/notes/{id} [patch]
func (h *Handler) PatchNote(w http.ResponseWriter, r *http.Request) {
	var req PatchNoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "patch note", err)
		return
	}
	ref, err := h.ws.UpdateNote(chi.URLParam(r, "id"), req.patch())
	if err != nil {
		writeError(w, "patch note", err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

// Draft handles PUT /api/notes/{id}/draft.
//
//	@Summary		Schedule a debounced title or content edit
//	@Tags			notes
//	@Accept			json
//	@Param			id		path	string			true	"Note id"
//	@Param			body	body	DraftRequest	true	"Draft fields"
//	@Success		202		"Edit scheduled"
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/notes/{id}/draft [put]
func (h *Handler) Draft(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req DraftRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "draft", err)
		return
	}
	if req.Title != nil {
		if err := h.ws.EditTitle(id, *req.Title); err != nil {
			writeError(w, "draft", err)
			return
		}
	}
	if req.Content != nil {
		if err := h.ws.EditContent(id, *req.Content); err != nil {
			writeError(w, "draft", err)
			return
		}
	}
	w.WriteHeader(http.StatusAccepted)
}

// Flush handles POST /api/notes/{id}/flush. Clients call it when the editor
// closes so scheduled drafts are committed before the note is read again.
//
//	@Summary		Commit a note's pending drafts now
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	models.NoteRef
//	@Failure		404	{object}	errResponse
//	@Router			/notes/{id}/flush [post]
func (h *Handler) Flush(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.ws.FlushEdits(id); err != nil {
		writeError(w, "flush", err)
		return
	}
	ref, err := h.ws.Note(id)
	if err != nil {
		writeError(w, "flush", err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		404	{object}	errResponse
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.ws.DeleteNote(chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveNote handles POST /api/notes/{id}/move.
//
//	@Summary		Move a note to another folder
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Note id"
//	@Param			body	body		MoveNoteRequest	true	"Target folder"
//	@Success		200		{object}	models.NoteRef
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/notes/{id}/move [post]
func (h *Handler) MoveNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req MoveNoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "move note", err)
		return
	}
	if err := h.ws.MoveNote(id, req.FolderID); err != nil {
		writeError(w, "move note", err)
		return
	}
	h.writeNote(w, "move note", id)
}

// SetTags handles PUT /api/notes/{id}/tags.
//
//	@Summary		Replace a note's tags
//	@Tags			tags
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Note id"
//	@Param			body	body		TagsRequest	true	"Tags"
//	@Success		200		{object}	models.NoteRef
//	@Failure		404		{object}	errResponse
//	@Router			/notes/{id}/tags [put]
func (h *Handler) SetTags(w http.ResponseWriter, r *http.Request) {
	var req TagsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "set tags", err)
		return
	}
	ref, err := h.ws.SetTags(chi.URLParam(r, "id"), req.Tags)
	if err != nil {
		writeError(w, "set tags", err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

// AddTag handles POST /api/notes/{id}/tags.
//
//	@Summary		Add a tag to a note
//	@Tags			tags
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Note id"
//	@Param			body	body		TagRequest	true	"Tag"
//	@Success		200		{object}	models.NoteRef
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/notes/{id}/tags [post]
func (h *Handler) AddTag(w http.ResponseWriter, r *http.Request) {
	var req TagRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "add tag", err)
		return
	}
	ref, err := h.ws.AddTag(chi.URLParam(r, "id"), req.Tag)
	if err != nil {
		writeError(w, "add tag", err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

// RemoveTag handles DELETE /api/notes/{id}/tags/{tag}.
//
//	@Summary		Remove a tag from a note
//	@Tags			tags
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Param			tag	path		string	true	"Tag (URL-encoded)"
//	@Success		200	{object}	models.NoteRef
//	@Failure		404	{object}	errResponse
//	@Router			/notes/{id}/tags/{tag} [delete]
func (h *Handler) RemoveTag(w http.ResponseWriter, r *http.Request) {
	tag, err := pathParam(r, "tag")
	if err != nil {
		writeError(w, "remove tag", err)
		return
	}
	ref, err := h.ws.RemoveTag(chi.URLParam(r, "id"), tag)
	if err != nil {
		writeError(w, "remove tag", err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

// FollowLink handles POST /api/links/follow.
//
//	@Summary		Follow a wiki-link, creating the target note if needed
//	@Tags			links
//	@Accept			json
//	@Produce		json
//	@Param			body	body		FollowLinkRequest	true	"Link label"
//	@Success		200		{object}	workspace.FollowResult	"Existing note"
//	@Success		201		{object}	workspace.FollowResult	"Created note"
//	@Failure		404		{object}	errResponse
//	@Router			/links/follow [post]
func (h *Handler) FollowLink(w http.ResponseWriter, r *http.Request) {
	var req FollowLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "follow link", err)
		return
	}
	res, err := h.ws.FollowLink(req.Label)
	if err != nil {
		writeError(w, "follow link", err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

// GetSession handles GET /api/session.
//
//	@Summary		Get the navigation state and save indicator
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	SessionResponse
//	@Router			/session [get]
func (h *Handler) GetSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, SessionResponse{Session: h.ws.Session(), Status: h.ws.SaveStatus()})
}

// PutSession handles PUT /api/session.
//
//	@Summary		Change the active folder, selected note or sidebar state
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SessionRequest	true	"Fields to change"
//	@Success		200		{object}	SessionResponse
//	@Failure		404		{object}	errResponse
//	@Router			/session [put]
func (h *Handler) PutSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "update session", err)
		return
	}
	if req.ActiveFolderID != nil {
		if err := h.ws.SelectFolder(*req.ActiveFolderID); err != nil {
			writeError(w, "update session", err)
			return
		}
	}
	if req.SelectedNoteID != nil {
		if err := h.ws.SelectNote(*req.SelectedNoteID); err != nil {
			writeError(w, "update session", err)
			return
		}
	}
	if req.SidebarOpen != nil {
		h.ws.SetSidebar(*req.SidebarOpen)
	}
	h.GetSession(w, r)
}

// Search handles GET /api/search.
//
//	@Summary		Filter notes by title or content substring
//	@Tags			search
//	@Produce		json
//	@Param			q	query		string	false	"Search query; blank lists all"
//	@Param			all	query		bool	false	"Search every folder instead of the active one"
//	@Success		200	{object}	SearchResponse
//	@Failure		400	{object}	errResponse
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	all := false
	if v := q.Get("all"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'all' must be a boolean"))
			return
		}
		all = b
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: h.ws.Search(q.Get("q"), all)})
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the wiki-link graph
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.ws.Graph())
}

// Export handles GET /api/export.
//
//	@Summary		Download a JSON backup of all folders
//	@Tags			backup
//	@Produce		json
//	@Success		200	{object}	models.Tree
//	@Router			/export [get]
func (h *Handler) Export(w http.ResponseWriter, _ *http.Request) {
	name, data, err := exporter.Export(h.ws.Snapshot(), h.now())
	if err != nil {
		writeError(w, "export", err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Error("export write failed", slog.String("error", err.Error()))
	}
}

// Import handles POST /api/import.
//
//	@Summary		Replace all folders with a backup document
//	@Tags			backup
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.Tree	true	"Backup document"
//	@Success		200		{object}	ImportResponse
//	@Failure		400		{object}	errResponse
//	@Router			/import [post]
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	t, err := exporter.Import(r.Body)
	if err != nil {
		writeError(w, "import", err)
		return
	}
	h.ws.Replace(t)
	writeJSON(w, http.StatusOK, ImportResponse{Folders: len(t.Folders), Notes: tree.NoteCount(t)})
}

func (h *Handler) writeNote(w http.ResponseWriter, op, id string) {
	ref, err := h.ws.Note(id)
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}
