package mcpserver

// NoteFormatContract describes how notes and their hierarchy are structured, for LLM consumers
// creating or moving notes.
const NoteFormatContract = `# Folio Note Format Contract

Folio stores notes as rows, not files. Every note has:

| Field       | Type            | Notes                                                  |
|-------------|-----------------|--------------------------------------------------------|
| id          | string (UUID)   | assigned by the server                                 |
| title       | string          | REQUIRED, 1-255 characters, shown in the sidebar       |
| content     | Markdown / null | the page body                                          |
| sidenote    | Markdown / null | short margin note shown next to the body               |
| parent_id   | id / null       | null means a top-level page                            |
| position    | integer         | zero-based order among siblings, managed by the server |

## Hierarchy rules

1. Pages nest without a depth limit. A page's children are ordered by ` + "`position`" + `, always 0..n-1.
2. ` + "`create_note`" + ` appends the new page after its last sibling.
3. ` + "`move_note`" + ` inserts the page at ` + "`position`" + ` among its new siblings and renumbers both the
   old and new parent's children. Positions past the end land at the end.
4. A page can never become its own parent or a child of one of its descendants; such moves are rejected.
5. Deleting a page deletes all of its descendants.

## Content

- Standard Markdown. Start the body with the content itself; the title is stored separately.
- Images: upload with ` + "`upload_asset`" + ` and paste the returned ` + "`markdownImage`" + `,
  e.g. ` + "`![diagram](/uploads/3f0c9e2a4b7d4e1f8a6b5c4d3e2f1a0b.png)`" + `.
- Supported image formats: png, jpg, gif, webp, svg (max 10 MB).

## Example

` + "```" + `markdown
## Meeting 2025-01-20

Attendees: Alice, Bob.

![Whiteboard](/uploads/9b1d4c2e7f3a4b5c8d6e0f1a2b3c4d5e.jpg)

- [ ] Alice reviews the design page
` + "```" + `
`
