package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/noteservice"
	"github.com/starford/folio/internal/testutil"
)

func testServer(t *testing.T) (*Server, string) {
	t.Helper()
	uploadDir, uploads := testutil.TestRoot(t, nil)
	return New(noteservice.New(testutil.TestDB(t)), uploads), uploadDir
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no in-process "call tool" helper, so the handlers are called directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_tree":
		result, err = srv.listTree(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "create_note":
		result, err = srv.createNote(ctx, req)
	case "move_note":
		result, err = srv.moveNote(ctx, req)
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "get_note_contract":
		result, err = srv.getNoteContract(ctx, req)
	case "upload_asset":
		result, err = srv.uploadAsset(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func createNote(t *testing.T, srv *Server, args map[string]any) models.Note {
	t.Helper()
	r := callTool(t, srv, "create_note", args)
	if r.IsError {
		t.Fatalf("create_note failed: %s", resultText(r))
	}
	var n models.Note
	if err := json.Unmarshal([]byte(resultText(r)), &n); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestCreateAndReadNote(t *testing.T) {
	srv, _ := testServer(t)

	n := createNote(t, srv, map[string]any{"title": "Test", "content": "Hello"})
	if n.ID == "" || n.Title != "Test" || n.Content == nil || *n.Content != "Hello" {
		t.Fatalf("created = %+v", n)
	}

	r := callTool(t, srv, "read_note", map[string]any{"id": n.ID})
	var got models.Note
	_ = json.Unmarshal([]byte(resultText(r)), &got)
	if got.ID != n.ID || got.Title != "Test" {
		t.Errorf("read result = %s", resultText(r))
	}
}

func TestCreateNoteValidation(t *testing.T) {
	srv, _ := testServer(t)
	if r := callTool(t, srv, "create_note", map[string]any{}); !r.IsError {
		t.Error("expected error without title")
	}
	r := callTool(t, srv, "create_note", map[string]any{"title": "x", "parent_id": "nope"})
	if !r.IsError || !strings.Contains(resultText(r), "parent") {
		t.Errorf("missing parent result = %q", resultText(r))
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_note", map[string]any{"id": "nope"})
	if !r.IsError || resultText(r) != "note not found" {
		t.Errorf("missing note result = %q", resultText(r))
	}
}

func TestListTreeAndMove(t *testing.T) {
	srv, _ := testServer(t)

	if got := resultText(callTool(t, srv, "list_tree", nil)); got != "no notes" {
		t.Errorf("empty tree = %q", got)
	}

	a := createNote(t, srv, map[string]any{"title": "A"})
	b := createNote(t, srv, map[string]any{"title": "B"})
	c := createNote(t, srv, map[string]any{"title": "C", "parent_id": a.ID})

	r := callTool(t, srv, "move_note", map[string]any{"id": b.ID, "parent_id": a.ID, "position": float64(0)})
	if r.IsError {
		t.Fatalf("move_note: %s", resultText(r))
	}

	want := "- A (" + a.ID + ")\n" +
		"  - B (" + b.ID + ")\n" +
		"  - C (" + c.ID + ")\n"
	if got := resultText(callTool(t, srv, "list_tree", nil)); got != want {
		t.Errorf("tree =\n%s\nwant\n%s", got, want)
	}

	r = callTool(t, srv, "move_note", map[string]any{"id": a.ID, "parent_id": c.ID, "position": float64(0)})
	if !r.IsError {
		t.Error("moving a note under its descendant should fail")
	}
	r = callTool(t, srv, "move_note", map[string]any{"id": a.ID})
	if !r.IsError {
		t.Error("move without position should fail")
	}
}

func TestSearchNotes(t *testing.T) {
	srv, _ := testServer(t)
	n := createNote(t, srv, map[string]any{"title": "Recipes", "content": "sourdough starter"})
	createNote(t, srv, map[string]any{"title": "Other"})

	r := callTool(t, srv, "search_notes", map[string]any{"query": "sourdough"})
	if r.IsError || !strings.Contains(resultText(r), n.ID) || strings.Contains(resultText(r), "Other") {
		t.Errorf("search result = %s", resultText(r))
	}
}

func TestNoteContract(t *testing.T) {
	srv, _ := testServer(t)
	if got := resultText(callTool(t, srv, "get_note_contract", nil)); got != NoteFormatContract {
		t.Error("contract tool does not return the contract")
	}
	res, err := srv.readNoteFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(res) != 1 {
		t.Fatalf("resource = %v, %v", res, err)
	}
	if tc, ok := res[0].(mcp.TextResourceContents); !ok || tc.URI != NoteFormatURI {
		t.Errorf("resource contents = %+v", res[0])
	}
}

// Smallest valid PNG header followed by padding.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)

func TestUploadAssetDataURI(t *testing.T) {
	srv, dir := testServer(t)

	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
	r := callTool(t, srv, "upload_asset", map[string]any{"url": uri})
	if r.IsError {
		t.Fatalf("upload_asset: %s", resultText(r))
	}
	var out uploadResult
	if err := json.Unmarshal([]byte(resultText(r)), &out); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.URL, "/uploads/") || !strings.HasSuffix(out.URL, ".png") {
		t.Errorf("url = %q", out.URL)
	}
	if out.MarkdownImage != "![image]("+out.URL+")" {
		t.Errorf("markdown = %q", out.MarkdownImage)
	}
	if _, err := os.Stat(filepath.Join(dir, strings.TrimPrefix(out.URL, "/uploads/"))); err != nil {
		t.Errorf("asset not on disk: %v", err)
	}
}

func TestUploadAssetRejections(t *testing.T) {
	srv, _ := testServer(t)
	tests := map[string]string{
		"mismatched content": "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("not a png")),
		"unsupported type":   "data:application/pdf;base64," + base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")),
		"not base64":         "data:image/png,plain",
		"loopback":           "http://127.0.0.1/x.png",
		"bad scheme":         "ftp://example.com/x.png",
	}
	for name, uri := range tests {
		t.Run(name, func(t *testing.T) {
			if r := callTool(t, srv, "upload_asset", map[string]any{"url": uri}); !r.IsError {
				t.Errorf("expected error, got %s", resultText(r))
			}
		})
	}
}
