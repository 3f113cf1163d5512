// Package parser extracts frontmatter, the title and the heading outline from Markdown content.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	headingRe = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)
	anchorRe  = regexp.MustCompile(`[^a-z0-9]+`)
)

// Heading is one entry of a document outline.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
	ID    string `json:"id"`
}

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]interface{}
	Body        string
	Title       string
	Headings    []Heading
}

// Parse extracts frontmatter, body, title and headings from raw Markdown bytes.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Title:       deriveTitle(fm, body),
		Headings:    extractHeadings(body),
	}, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]interface{}, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		// No closing delimiter; everything is body.
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		// Invalid YAML: body only, no error.
		return nil, string(data), nil
	}

	return fm, body, nil
}

// extractHeadings returns every ATX heading in document order.
func extractHeadings(body string) []Heading {
	matches := headingRe.FindAllStringSubmatch(body, -1)
	out := make([]Heading, 0, len(matches))
	for _, m := range matches {
		text := strings.TrimSpace(m[2])
		out = append(out, Heading{
			Level: len(m[1]),
			Text:  text,
			ID:    Anchor(text),
		})
	}
	return out
}

// Anchor turns heading text into a fragment id: lower case, runs of anything but [a-z0-9] become "-".
func Anchor(text string) string {
	return strings.Trim(anchorRe.ReplaceAllString(strings.ToLower(text), "-"), "-")
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]interface{}, body string) string {
	if fm != nil {
		if t, ok := fm["title"]; ok {
			if s, ok := t.(string); ok && s != "" {
				return s
			}
		}
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
