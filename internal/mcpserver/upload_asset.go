package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

const maxAssetSize = 10 << 20

var mimeToExt = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

type uploadResult struct {
	URL           string `json:"url"`
	MarkdownImage string `json:"markdownImage"`
}

func (s *Server) uploadAsset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var data []byte
	var ext string
	if strings.HasPrefix(rawURL, "data:") {
		data, ext, err = decodeDataURI(rawURL)
	} else {
		data, ext, err = fetchHTTP(ctx, rawURL)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if ext == "" {
		return mcp.NewToolResultError("unsupported content type (allowed: png, jpg, gif, webp, svg)"), nil
	}
	if err := validateMagicBytes(data, ext); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	name := strings.ReplaceAll(uuid.NewString(), "-", "") + ext
	if err := s.uploads.Write(name, data); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save asset: %v", err)), nil
	}

	urlPath := "/uploads/" + name
	out, _ := json.Marshal(uploadResult{
		URL:           urlPath,
		MarkdownImage: fmt.Sprintf("![%s](%s)", altText(rawURL), urlPath),
	})
	return mcp.NewToolResultText(string(out)), nil
}

// altText uses the last URL path element without extension, or "image".
func altText(rawURL string) string {
	if !strings.HasPrefix(rawURL, "data:") {
		if u, err := url.Parse(rawURL); err == nil {
			base := path.Base(u.Path)
			if stem := strings.TrimSuffix(base, path.Ext(base)); stem != "" && stem != "." && stem != "/" {
				return stem
			}
		}
	}
	return "image"
}

// decodeDataURI parses a data:<mediatype>;base64,<data> URI.
func decodeDataURI(uri string) ([]byte, string, error) {
	meta, encoded, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, "", fmt.Errorf("invalid data URI: missing comma separator")
	}
	if !strings.Contains(meta, ";base64") {
		return nil, "", fmt.Errorf("only base64 data URIs are supported")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	if len(data) > maxAssetSize {
		return nil, "", fmt.Errorf("file too large: %d bytes (max %d)", len(data), maxAssetSize)
	}

	mime, _, _ := strings.Cut(meta, ";")
	return data, mimeToExt[mime], nil
}

// fetchHTTP downloads an image, refusing loopback and cloud metadata hosts.
func fetchHTTP(ctx context.Context, rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme: %s (only http/https)", parsed.Scheme)
	}
	if err := checkBlockedHost(parsed.Hostname()); err != nil {
		return nil, "", err
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return checkBlockedHost(req.URL.Hostname())
		},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > maxAssetSize {
		return nil, "", fmt.Errorf("file too large: exceeds %d bytes", maxAssetSize)
	}

	ct, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	ext := mimeToExt[strings.TrimSpace(ct)]
	if ext == "" {
		sniffed, _, _ := strings.Cut(http.DetectContentType(data), ";")
		ext = mimeToExt[sniffed]
	}
	return data, ext, nil
}

// checkBlockedHost rejects loopback and cloud metadata addresses.
func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client report DNS failures
		}
		ip = ips[0]
	}
	if ip.IsLoopback() {
		return fmt.Errorf("blocked host: loopback address %s", host)
	}
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("blocked host: cloud metadata address %s", host)
	}
	return nil
}

// validateMagicBytes verifies that content matches the declared type.
func validateMagicBytes(data []byte, ext string) error {
	if ext == ".svg" {
		prefix := data[:min(len(data), 1024)]
		if !bytes.Contains(prefix, []byte("<svg")) {
			return fmt.Errorf("content does not appear to be a valid SVG (missing <svg tag)")
		}
		return nil
	}
	detected := http.DetectContentType(data)
	got, _, _ := strings.Cut(detected, ";")
	if mimeToExt[got] != ext {
		return fmt.Errorf("content does not match %s (detected: %s)", ext, detected)
	}
	return nil
}
