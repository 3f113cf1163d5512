// Package notesclient is the HTTP client for the note storage and documentation APIs.
package notesclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/docs"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/store"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 10 * time.Second

// APIError is a non-2xx response. It unwraps to apperr.ErrNotFound for 404 and apperr.ErrValidation for 400.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return apperr.ErrNotFound
	case http.StatusBadRequest:
		return apperr.ErrValidation
	}
	return nil
}

// Client talks to a Folio server. It is safe for concurrent use.
type Client struct {
	base   string
	token  string
	http   *http.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends "Authorization: Bearer <token>" with every request.
func WithToken(token string) Option { return func(c *Client) { c.token = token } }

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// WithTimeout bounds each request. Ignored for non-positive d.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			hc := *c.http
			hc.Timeout = d
			c.http = &hc
		}
	}
}

// New creates a client for the server at baseURL (e.g. "http://localhost:8080").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:   strings.TrimRight(baseURL, "/"),
		http:   &http.Client{Timeout: DefaultTimeout},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("notesclient: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+"/api"+path, body)
	if err != nil {
		return fmt.Errorf("notesclient: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("notesclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("notesclient: decode %s %s: %w", method, path, err)
	}
	return nil
}

// ListNotes returns every note, roots first, then by position.
func (c *Client) ListNotes(ctx context.Context) ([]models.Note, error) {
	var notes []models.Note
	if err := c.do(ctx, http.MethodGet, "/notes", nil, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// GetNote returns the note, or nil without error when it does not exist.
func (c *Client) GetNote(ctx context.Context, id string) (*models.Note, error) {
	var n models.Note
	err := c.do(ctx, http.MethodGet, "/notes/"+url.PathEscape(id), nil, &n)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// CreateNote creates a note at the end of its parent's children.
func (c *Client) CreateNote(ctx context.Context, in models.NoteCreate) (*models.Note, error) {
	var n models.Note
	if err := c.do(ctx, http.MethodPost, "/notes", in, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// UpdateNote sends only the fields set in u.
func (c *Client) UpdateNote(ctx context.Context, id string, u models.NoteUpdate) (*models.Note, error) {
	var n models.Note
	if err := c.do(ctx, http.MethodPatch, "/notes/"+url.PathEscape(id), u, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// ReorderNote moves a note; the server shifts and renumbers siblings in one transaction.
func (c *Client) ReorderNote(ctx context.Context, id string, r models.NoteReorder) (*models.Note, error) {
	var n models.Note
	if err := c.do(ctx, http.MethodPatch, "/notes/"+url.PathEscape(id)+"/reorder", r, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// DeleteNote deletes a note and its descendants.
func (c *Client) DeleteNote(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/notes/"+url.PathEscape(id), nil, nil)
}

// ResetNotes deletes every note.
func (c *Client) ResetNotes(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/notes/reset/all", nil, nil)
}

// SearchNotes runs a full-text query. limit <= 0 uses the server default.
func (c *Client) SearchNotes(ctx context.Context, query string, limit int) ([]store.SearchResult, error) {
	q := url.Values{"q": {query}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp struct {
		Results []store.SearchResult `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "/search?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// DocsTree lists the documentation pages.
func (c *Client) DocsTree(ctx context.Context) ([]docs.TreeNode, error) {
	var nodes []docs.TreeNode
	if err := c.do(ctx, http.MethodGet, "/docs/tree", nil, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// Doc returns one documentation page, or nil without error when it does not exist.
func (c *Client) Doc(ctx context.Context, id string) (*docs.Doc, error) {
	var d docs.Doc
	err := c.do(ctx, http.MethodGet, "/docs/"+url.PathEscape(id), nil, &d)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// SearchDocs searches the documentation line by line.
func (c *Client) SearchDocs(ctx context.Context, query string) ([]docs.SearchResult, error) {
	var res []docs.SearchResult
	if err := c.do(ctx, http.MethodGet, "/docs/search?"+url.Values{"q": {query}}.Encode(), nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// DocsPulse returns the project health summary.
func (c *Client) DocsPulse(ctx context.Context) (*docs.Pulse, error) {
	var p docs.Pulse
	if err := c.do(ctx, http.MethodGet, "/docs/pulse", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DocsStatus returns the aggregated status badges.
func (c *Client) DocsStatus(ctx context.Context) (*docs.Status, error) {
	var st docs.Status
	if err := c.do(ctx, http.MethodGet, "/docs/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
