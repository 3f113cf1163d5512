// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the Folio note hierarchy to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/noteservice"
	"github.com/starford/folio/internal/storage"
	"github.com/starford/folio/internal/tree"
)

// NoteFormatURI is the resource holding NoteFormatContract.
const NoteFormatURI = "folio://note-format"

// Server wraps the MCP server with Folio tools.
type Server struct {
	mcp     *server.MCPServer
	notes   *noteservice.Service
	uploads storage.Provider
}

// New creates a new MCP server with all Folio tools registered. uploads may be nil, which leaves out
// the upload_asset tool.
func New(notes *noteservice.Service, uploads storage.Provider) *Server {
	s := &Server{notes: notes, uploads: uploads}

	s.mcp = server.NewMCPServer(
		"Folio",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_tree",
		mcp.WithDescription("Show the whole note hierarchy as an indented outline with note ids."),
	), s.listTree)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read one note (title, Markdown content, sidenote, parent and position) as JSON."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note at the end of its parent's children. "+
			"Read the contract first via the get_note_contract tool or the "+NoteFormatURI+" resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title, 1-255 characters")),
		mcp.WithString("content", mcp.Description("Markdown body")),
		mcp.WithString("parent_id", mcp.Description("Parent note id; omit for a top-level note")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("move_note",
		mcp.WithDescription("Move a note to a position among the children of a parent. "+
			"A note cannot be moved under itself or one of its descendants."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("parent_id", mcp.Description("New parent id; omit to move to the top level")),
		mcp.WithNumber("position", mcp.Required(), mcp.Description("Zero-based index among the new siblings")),
	), s.moveNote)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note titles and content."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the Folio note format contract. "+
			"Call this before creating or moving notes."),
	), s.getNoteContract)

	if uploads != nil {
		s.mcp.AddTool(mcp.NewTool("upload_asset",
			mcp.WithDescription("Store an image from an http(s) URL or a base64 data URI and return a "+
				"Markdown image reference to paste into a note."),
			mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data: URI")),
		), s.uploadAsset)
	}

	s.mcp.AddResource(
		mcp.NewResource(NoteFormatURI, "Note Format Contract",
			mcp.WithResourceDescription("How Folio notes and their hierarchy are structured."),
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

// toolError turns a service error into a tool result the model can act on.
func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("note not found")
	case apperr.IsBadRequest(err):
		return mcp.NewToolResultError(err.Error())
	default:
		return mcp.NewToolResultError("internal error: " + err.Error())
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func optionalString(req mcp.CallToolRequest, key string) *string {
	v, err := req.RequireString(key)
	if err != nil || v == "" {
		return nil
	}
	return &v
}

func (s *Server) listTree(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roots, err := s.notes.Tree(ctx)
	if err != nil {
		return toolError(err), nil
	}
	if len(roots) == 0 {
		return mcp.NewToolResultText("no notes"), nil
	}
	return mcp.NewToolResultText(Outline(roots)), nil
}

// Outline renders roots as a two-space indented list: "- Title (id)".
func Outline(roots []*tree.Node) string {
	var b strings.Builder
	tree.NewIndex(roots).Walk(func(n *tree.Node, depth int) bool {
		fmt.Fprintf(&b, "%s- %s (%s)\n", strings.Repeat("  ", depth), n.Title, n.ID)
		return true
	})
	return b.String()
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.notes.Get(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(n), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.notes.Create(ctx, models.NoteCreate{
		Title:    title,
		Content:  optionalString(req, "content"),
		ParentID: optionalString(req, "parent_id"),
	})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(n), nil
}

func (s *Server) moveNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pos, err := req.RequireFloat("position")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.notes.Reorder(ctx, id, models.NoteReorder{
		ParentID: optionalString(req, "parent_id"),
		Position: int(pos),
	})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(n), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.notes.Search(ctx, query, 20)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(results), nil
}

func (s *Server) getNoteContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      NoteFormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
