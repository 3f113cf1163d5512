package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/folio/internal/docs"
	"github.com/starford/folio/internal/metrics"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/noteservice"
	"github.com/starford/folio/internal/testutil"
	"github.com/starford/folio/internal/tree"
)

type testEnv struct {
	handler   http.Handler
	svc       *noteservice.Service
	uploadDir string
}

type envOption func(*Deps)

func withAuth(token string) envOption {
	return func(d *Deps) {
		d.AuthEnabled = true
		d.AuthToken = token
	}
}

func withUploadLimit(n int64) envOption {
	return func(d *Deps) {
		d.Uploads = NewUploadHandler(d.Uploads.store, n, nil)
	}
}

// newTestEnv wires the full server over a temp SQLite store, a docs root and an uploads dir.
func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	db := testutil.TestDB(t)
	svc := noteservice.New(db)

	_, docsFS := testutil.TestRoot(t, map[string]string{
		"README.md":    "# Folio\nDrag notes around.\n",
		"QA_REPORT.md": "| Tree Tests | 9/9 PASSING |\n",
	}, ".md")
	uploadDir, uploadFS := testutil.TestRoot(t, nil)

	d := Deps{
		Notes:   svc,
		Docs:    docs.NewService(docsFS, []string{"README.md", "QA_REPORT.md"}, nil),
		Uploads: NewUploadHandler(uploadFS, 0, nil),
		Events: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		Metrics:     metrics.New(),
		CORSOrigins: []string{"http://localhost:3000"},
	}
	for _, o := range opts {
		o(&d)
	}
	return &testEnv{handler: NewServer(d), svc: svc, uploadDir: uploadDir}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) create(t *testing.T, title string, parent *string) models.Note {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/notes", models.NoteCreate{Title: title, ParentID: parent})
	if w.Code != http.StatusCreated {
		t.Fatalf("create %s = %d, body = %s", title, w.Code, w.Body.String())
	}
	var n models.Note
	if err := json.Unmarshal(w.Body.Bytes(), &n); err != nil {
		t.Fatal(err)
	}
	return n
}

func (e *testEnv) list(t *testing.T) []models.Note {
	t.Helper()
	w := e.do(t, http.MethodGet, "/api/notes", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var notes []models.Note
	if err := json.Unmarshal(w.Body.Bytes(), &notes); err != nil {
		t.Fatal(err)
	}
	return notes
}

func errorOf(w *httptest.ResponseRecorder) string {
	var e errResponse
	_ = json.Unmarshal(w.Body.Bytes(), &e)
	return e.Error
}

func TestCreateAndGetNote(t *testing.T) {
	env := newTestEnv(t)

	n := env.create(t, "Hello", nil)
	if n.ID == "" || n.Position != 0 || n.ParentID != nil {
		t.Fatalf("created = %+v", n)
	}

	w := env.do(t, http.MethodGet, "/api/notes/"+n.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var got models.Note
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Title != "Hello" {
		t.Errorf("title = %q, want Hello", got.Title)
	}
}

func TestCreateAppendsToParent(t *testing.T) {
	env := newTestEnv(t)
	p := env.create(t, "Parent", nil)
	a := env.create(t, "A", &p.ID)
	b := env.create(t, "B", &p.ID)
	if a.Position != 0 || b.Position != 1 {
		t.Errorf("positions = %d, %d; want 0, 1", a.Position, b.Position)
	}
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	missing := "nope"

	tests := []struct {
		name string
		body any
	}{
		{"blank title", models.NoteCreate{Title: ""}},
		{"missing parent", models.NoteCreate{Title: "x", ParentID: &missing}},
		{"bad json", "{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/notes", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (%s)", w.Code, w.Body.String())
			}
			if errorOf(w) == "" {
				t.Error("missing error message")
			}
		})
	}
}

func TestGetNote_NotFound(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/notes/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if errorOf(w) != "not found" {
		t.Errorf("error = %q", errorOf(w))
	}
}

func TestUpdateNote(t *testing.T) {
	env := newTestEnv(t)
	n := env.create(t, "Draft", nil)

	w := env.do(t, http.MethodPatch, "/api/notes/"+n.ID, `{"title":"Final","content":"body"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("patch = %d, body = %s", w.Code, w.Body.String())
	}
	var got models.Note
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Title != "Final" || got.Content == nil || *got.Content != "body" {
		t.Errorf("updated = %+v", got)
	}

	w = env.do(t, http.MethodPatch, "/api/notes/"+n.ID, `{"content":null}`)
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if w.Code != http.StatusOK || got.Content != nil {
		t.Errorf("null content: status %d, content %v", w.Code, got.Content)
	}

	if w := env.do(t, http.MethodPatch, "/api/notes/"+n.ID, `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("empty patch = %d, want 400", w.Code)
	}
	if w := env.do(t, http.MethodPatch, "/api/notes/missing", `{"title":"x"}`); w.Code != http.StatusNotFound {
		t.Errorf("missing note = %d, want 404", w.Code)
	}
}

func TestUpdateParentRejectsCycles(t *testing.T) {
	env := newTestEnv(t)
	a := env.create(t, "A", nil)
	b := env.create(t, "B", &a.ID)

	for name, body := range map[string]string{
		"self":       `{"parent_id":"` + a.ID + `"}`,
		"descendant": `{"parent_id":"` + b.ID + `"}`,
		"missing":    `{"parent_id":"nope"}`,
	} {
		w := env.do(t, http.MethodPatch, "/api/notes/"+a.ID, body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, w.Code)
		}
	}
}

func TestReorderNote(t *testing.T) {
	env := newTestEnv(t)
	a := env.create(t, "A", nil)
	b := env.create(t, "B", nil)
	c := env.create(t, "C", nil)

	w := env.do(t, http.MethodPatch, "/api/notes/"+c.ID+"/reorder", `{"parent_id":null,"position":0}`)
	if w.Code != http.StatusOK {
		t.Fatalf("reorder = %d, body = %s", w.Code, w.Body.String())
	}

	notes := env.list(t)
	want := []string{c.ID, a.ID, b.ID}
	for i, n := range notes {
		if n.ID != want[i] || n.Position != i {
			t.Errorf("notes[%d] = %s@%d, want %s@%d", i, n.Title, n.Position, want[i], i)
		}
	}

	// Nest B under C at a position beyond the end.
	w = env.do(t, http.MethodPatch, "/api/notes/"+b.ID+"/reorder", `{"parent_id":"`+c.ID+`","position":99}`)
	var moved models.Note
	_ = json.Unmarshal(w.Body.Bytes(), &moved)
	if w.Code != http.StatusOK || moved.Parent() != c.ID || moved.Position != 0 {
		t.Errorf("nest = %d %+v", w.Code, moved)
	}
}

func TestReorderNote_Rejections(t *testing.T) {
	env := newTestEnv(t)
	a := env.create(t, "A", nil)
	child := env.create(t, "Child", &a.ID)

	tests := []struct {
		name string
		id   string
		body string
		want int
	}{
		{"missing position", a.ID, `{"parent_id":null}`, http.StatusBadRequest},
		{"self parent", a.ID, `{"parent_id":"` + a.ID + `","position":0}`, http.StatusBadRequest},
		{"descendant parent", a.ID, `{"parent_id":"` + child.ID + `","position":0}`, http.StatusBadRequest},
		{"unknown note", "missing", `{"position":0}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPatch, "/api/notes/"+tt.id+"/reorder", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestDeleteNoteCascades(t *testing.T) {
	env := newTestEnv(t)
	p := env.create(t, "Parent", nil)
	c := env.create(t, "Child", &p.ID)
	other := env.create(t, "Other", nil)

	if w := env.do(t, http.MethodDelete, "/api/notes/"+p.ID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/notes/"+c.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("child after cascade = %d, want 404", w.Code)
	}
	notes := env.list(t)
	if len(notes) != 1 || notes[0].ID != other.ID || notes[0].Position != 0 {
		t.Errorf("remaining = %+v", notes)
	}
	if w := env.do(t, http.MethodDelete, "/api/notes/"+p.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestResetAll(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "A", nil)
	env.create(t, "B", nil)

	if w := env.do(t, http.MethodDelete, "/api/notes/reset/all", nil); w.Code != http.StatusNoContent {
		t.Fatalf("reset = %d", w.Code)
	}
	w := env.do(t, http.MethodGet, "/api/notes", nil)
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("list after reset = %s", w.Body.String())
	}
}

func TestTreeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	p := env.create(t, "Parent", nil)
	env.create(t, "Child", &p.ID)

	w := env.do(t, http.MethodGet, "/api/notes/tree", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("tree = %d", w.Code)
	}
	var roots []tree.Node
	if err := json.Unmarshal(w.Body.Bytes(), &roots); err != nil {
		t.Fatal(err)
	}
	if len(roots) != 1 || len(roots[0].Children) != 1 || roots[0].Children[0].Title != "Child" {
		t.Errorf("tree = %s", w.Body.String())
	}
}

func TestSearchEndpoint(t *testing.T) {
	env := newTestEnv(t)
	body := "banana bread recipe"
	w := env.do(t, http.MethodPost, "/api/notes", models.NoteCreate{Title: "Baking", Content: &body})
	if w.Code != http.StatusCreated {
		t.Fatal(w.Body.String())
	}
	env.create(t, "Unrelated", nil)

	w = env.do(t, http.MethodGet, "/api/search?q=banana", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d", w.Code)
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].Title != "Baking" {
		t.Errorf("results = %+v", resp.Results)
	}

	if w := env.do(t, http.MethodGet, "/api/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing q = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t, withAuth("secret123"))

	tests := []struct {
		name   string
		path   string
		header []string
		want   int
	}{
		{"missing token", "/api/notes", nil, http.StatusUnauthorized},
		{"wrong token", "/api/notes", []string{"Authorization", "Bearer wrong"}, http.StatusUnauthorized},
		{"valid token", "/api/notes", []string{"Authorization", "Bearer secret123"}, http.StatusOK},
		{"query token for events", "/api/events?token=secret123", nil, http.StatusOK},
		{"events without token", "/api/events", nil, http.StatusUnauthorized},
		{"health is public", "/health", nil, http.StatusOK},
		{"metrics is public", "/metrics", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.path, nil, tt.header...)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestAuthDisabled(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(t, http.MethodGet, "/api/notes", nil); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	for _, p := range []string{"/health", "/health/live", "/health/ready"} {
		w := env.do(t, http.MethodGet, p, nil)
		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
			t.Errorf("%s = %d %s", p, w.Code, w.Body.String())
		}
	}

	env.create(t, "A", nil)
	w := env.do(t, http.MethodGet, "/metrics", nil)
	body := w.Body.String()
	if !strings.Contains(body, `folio_http_requests_total{method="POST",route="/api/notes`) || !strings.Contains(body, `status="201"`) {
		t.Errorf("request metric missing from:\n%s", body)
	}
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/notes", nil, "Origin", "http://localhost:3000")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("allowed origin header = %q", got)
	}
	w = env.do(t, http.MethodGet, "/api/notes", nil, "Origin", "http://evil.example")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin header = %q", got)
	}
}

// Documentation API tests.

func TestDocsEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/docs/tree", nil)
	var nodes []docs.TreeNode
	_ = json.Unmarshal(w.Body.Bytes(), &nodes)
	if w.Code != http.StatusOK || len(nodes) != 2 || nodes[0].ID != "readme" || nodes[1].Title != "Qa Report" {
		t.Errorf("tree = %d %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/api/docs/readme", nil)
	var d docs.Doc
	_ = json.Unmarshal(w.Body.Bytes(), &d)
	if w.Code != http.StatusOK || d.Title != "Folio" {
		t.Errorf("doc = %d %s", w.Code, w.Body.String())
	}
	if w := env.do(t, http.MethodGet, "/api/docs/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing doc = %d, want 404", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/docs/status", nil)
	var st docs.Status
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if st.FilesChecked != 2 || len(st.Badges) != 1 || st.Badges[0].Status != docs.StatusPassing {
		t.Errorf("status = %s", w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/api/docs/pulse", nil)
	var p docs.Pulse
	_ = json.Unmarshal(w.Body.Bytes(), &p)
	if w.Code != http.StatusOK || p.Metrics["Tree Tests"] != "100%" || p.GeneratedBy != docs.GeneratedByRules {
		t.Errorf("pulse = %d %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/api/docs/search?q=drag", nil)
	var hits []docs.SearchResult
	_ = json.Unmarshal(w.Body.Bytes(), &hits)
	if w.Code != http.StatusOK || len(hits) != 1 || hits[0].Line != 2 {
		t.Errorf("search = %d %s", w.Code, w.Body.String())
	}
	if w := env.do(t, http.MethodGet, "/api/docs/search?q=d", nil); w.Code != http.StatusBadRequest {
		t.Errorf("short query = %d, want 400", w.Code)
	}
}

// Upload tests.

func (e *testEnv) upload(t *testing.T, field, filename string, content []byte, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write(content)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func TestUploadAndServe(t *testing.T) {
	env := newTestEnv(t)

	w := env.upload(t, "file", "Diagram.PNG", []byte("fake-png-data"))
	if w.Code != http.StatusOK {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	var resp UploadResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Filename != "Diagram.PNG" {
		t.Errorf("filename = %q", resp.Filename)
	}
	name := strings.TrimPrefix(resp.URL, "/uploads/")
	if !strings.HasPrefix(resp.URL, "/uploads/") || !strings.HasSuffix(name, ".png") || len(name) != 32+len(".png") {
		t.Errorf("url = %q", resp.URL)
	}

	data, err := os.ReadFile(filepath.Join(env.uploadDir, name))
	if err != nil || string(data) != "fake-png-data" {
		t.Fatalf("on disk = %q, %v", data, err)
	}

	w = env.do(t, http.MethodGet, resp.URL, nil)
	if w.Code != http.StatusOK || w.Body.String() != "fake-png-data" {
		t.Errorf("serve = %d %q", w.Code, w.Body.String())
	}
}

func TestUploadRejections(t *testing.T) {
	env := newTestEnv(t, withUploadLimit(8))

	if w := env.upload(t, "file", "notes.txt", []byte("x")); w.Code != http.StatusBadRequest {
		t.Errorf("txt = %d, want 400", w.Code)
	}
	if w := env.upload(t, "file", "big.png", []byte("more than eight bytes")); w.Code != http.StatusBadRequest {
		t.Errorf("too large = %d, want 400", w.Code)
	}
	if w := env.upload(t, "other", "x.png", []byte("x")); w.Code != http.StatusBadRequest {
		t.Errorf("missing field = %d, want 400", w.Code)
	}
}

func TestUploadAuthProtected(t *testing.T) {
	env := newTestEnv(t, withAuth("secret"))
	if w := env.upload(t, "file", "x.png", []byte("data")); w.Code != http.StatusUnauthorized {
		t.Errorf("upload no auth = %d, want 401", w.Code)
	}
	if w := env.upload(t, "file", "x.png", []byte("data"), "Authorization", "Bearer secret"); w.Code != http.StatusOK {
		t.Errorf("upload with auth = %d, want 200", w.Code)
	}
}

func TestServeUpload_NotFoundAndTraversal(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(t, http.MethodGet, "/uploads/nope.png", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing = %d, want 404", w.Code)
	}
	for _, p := range []string{"/uploads/..%2Fsecret.md", "/uploads/.hidden"} {
		if w := env.do(t, http.MethodGet, p, nil); w.Code == http.StatusOK {
			t.Errorf("%s should not return 200", p)
		}
	}
}
