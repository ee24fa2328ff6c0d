// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes notebook tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/kenaz-notebook/internal/models"
	"github.com/starford/kenaz-notebook/internal/workspace"
)

const noteFormatURI = "kenaz://note-format"

// Server wraps the MCP server with notebook tools.
type Server struct {
	mcp *server.MCPServer
	ws  *workspace.Workspace
}

// New creates a new MCP server with all notebook tools registered.
func New(ws *workspace.Workspace, version string) *Server {
	s := &Server{ws: ws}

	s.mcp = server.NewMCPServer(
		"Kenaz Notebook",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_folders",
		mcp.WithDescription("List all folders with the ids and titles of their notes."),
	), s.listFolders)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note with its forward links and backlinks."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note at the front of a folder. Read the format via "+
			"get_note_contract or the "+noteFormatURI+" resource first."),
		mcp.WithString("folder_id", mcp.Description("Target folder id (empty for the active folder)")),
		mcp.WithString("title", mcp.Description("Note title")),
		mcp.WithString("content", mcp.Description("Note text, may contain [[wiki-links]]")),
		mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Tags, e.g. #schule")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Replace the title, content or tags of a note. Omitted fields stay unchanged."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("content", mcp.Description("New content")),
		mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("New tags")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("follow_link",
		mcp.WithDescription("Follow a [[wiki-link]] label from the active folder. "+
			"Creates an empty note with that title if none matches."),
		mcp.WithString("label", mcp.Required(), mcp.Description("Link label without brackets")),
	), s.followLink)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to the specified note."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Find notes whose title or content contains the query, case-insensitively."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
		mcp.WithBoolean("all_folders", mcp.Description("Search every folder instead of the active one")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("move_note",
		mcp.WithDescription("Move a note to the front of another folder."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("folder_id", mcp.Required(), mcp.Description("Target folder id")),
	), s.moveNote)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns how notes, tags and wiki-links behave. "+
			"Call this before creating or updating notes."),
	), s.getNoteContract)

	s.mcp.AddResource(
		mcp.NewResource(noteFormatURI, "Note Format",
			mcp.WithResourceDescription("How notes, tags and wiki-links behave."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

// optString returns the argument only when the caller supplied it, so an
// explicit "" can clear a field.
func optString(req mcp.CallToolRequest, key string) *string {
	if _, ok := req.GetArguments()[key]; !ok {
		return nil
	}
	v := req.GetString(key, "")
	return &v
}

func optStrings(req mcp.CallToolRequest, key string) *[]string {
	if _, ok := req.GetArguments()[key]; !ok {
		return nil
	}
	v := req.GetStringSlice(key, []string{})
	return &v
}

type folderSummary struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Notes []noteSummary `json:"notes"`
}

type noteSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func (s *Server) listFolders(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := s.ws.Snapshot()
	out := make([]folderSummary, 0, len(snap.Folders))
	for _, f := range snap.Folders {
		fs := folderSummary{ID: f.ID, Name: f.Name, Notes: make([]noteSummary, 0, len(f.Notes))}
		for _, n := range f.Notes {
			fs.Notes = append(fs.Notes, noteSummary{ID: n.ID, Title: n.Title})
		}
		out = append(out, fs)
	}
	return jsonResult(out), nil
}

func (s *Server) readNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.ws.View(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	v.Segments = nil
	return jsonResult(v), nil
}

func (s *Server) createNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	patch := models.NotePatch{
		Title:   optString(req, "title"),
		Content: optString(req, "content"),
		Tags:    optStrings(req, "tags"),
	}
	ref, err := s.ws.CreateNote(req.GetString("folder_id", ""), patch)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(ref), nil
}

func (s *Server) updateNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	patch := models.NotePatch{
		Title:   optString(req, "title"),
		Content: optString(req, "content"),
		Tags:    optStrings(req, "tags"),
	}
	if patch.Empty() {
		return mcp.NewToolResultError("nothing to update: pass title, content or tags"), nil
	}
	ref, err := s.ws.UpdateNote(id, patch)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(ref), nil
}

func (s *Server) followLink(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	label, err := req.RequireString("label")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.ws.FollowLink(label)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !res.Navigated {
		return mcp.NewToolResultText("empty label, nothing to follow"), nil
	}
	return jsonResult(res), nil
}

func (s *Server) getBacklinks(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.ws.Backlinks(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	lines := make([]string, 0, len(bl))
	for _, r := range bl {
		lines = append(lines, r.Note.ID+"\t"+r.Note.Title)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) searchNotes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results := s.ws.Search(query, req.GetBool("all_folders", false))
	return jsonResult(results), nil
}

func (s *Server) moveNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	folderID, err := req.RequireString("folder_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.ws.MoveNote(id, folderID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("moved: %s -> %s", id, folderID)), nil
}

func (s *Server) getNoteContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      noteFormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
