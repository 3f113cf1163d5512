// Package models defines the domain types shared by the server and the tree engine.
package models

import (
	"encoding/json"
	"time"
)

// Note is a single page in the hierarchy. ParentID nil means the note is a root.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   *string   `json:"content"`
	Sidenote  *string   `json:"sidenote"`
	ParentID  *string   `json:"parent_id"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Parent returns the declared parent id, or "" for a root note.
func (n Note) Parent() string {
	if n.ParentID == nil {
		return ""
	}
	return *n.ParentID
}

// NoteCreate is the payload for creating a note.
type NoteCreate struct {
	Title    string  `json:"title"`
	Content  *string `json:"content,omitempty"`
	Sidenote *string `json:"sidenote,omitempty"`
	ParentID *string `json:"parent_id,omitempty"`
}

// NoteReorder moves a note to Position among the children of ParentID (nil = root level).
type NoteReorder struct {
	ParentID *string `json:"parent_id"`
	Position int     `json:"position"`
}

// Nullable distinguishes an absent JSON field from an explicit null.
type Nullable struct {
	Set   bool
	Value *string
}

// Value returns a Nullable holding s.
func Value(s string) Nullable {
	return Nullable{Set: true, Value: &s}
}

// Null returns a Nullable that clears the field.
func Null() Nullable {
	return Nullable{Set: true}
}

// NoteUpdate is a partial update. Only set fields are applied.
type NoteUpdate struct {
	Title    *string
	Content  Nullable
	Sidenote Nullable
	ParentID Nullable
	Position *int
}

// Empty reports whether the update carries no field at all.
func (u NoteUpdate) Empty() bool {
	return u.Title == nil && !u.Content.Set && !u.Sidenote.Set && !u.ParentID.Set && u.Position == nil
}

// MarshalJSON emits only the set fields, writing explicit nulls where requested.
func (u NoteUpdate) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 5)
	if u.Title != nil {
		m["title"] = *u.Title
	}
	if u.Content.Set {
		m["content"] = u.Content.Value
	}
	if u.Sidenote.Set {
		m["sidenote"] = u.Sidenote.Value
	}
	if u.ParentID.Set {
		m["parent_id"] = u.ParentID.Value
	}
	if u.Position != nil {
		m["position"] = *u.Position
	}
	return json.Marshal(m)
}

// UnmarshalJSON records which fields were present. A null title or position is ignored.
func (u *NoteUpdate) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*u = NoteUpdate{}
	for key, val := range raw {
		switch key {
		case "title":
			if err := json.Unmarshal(val, &u.Title); err != nil {
				return err
			}
		case "position":
			if err := json.Unmarshal(val, &u.Position); err != nil {
				return err
			}
		case "content":
			if err := decodeNullable(val, &u.Content); err != nil {
				return err
			}
		case "sidenote":
			if err := decodeNullable(val, &u.Sidenote); err != nil {
				return err
			}
		case "parent_id":
			if err := decodeNullable(val, &u.ParentID); err != nil {
				return err
			}
		}
	}
	return nil
}

func decodeNullable(val json.RawMessage, dst *Nullable) error {
	dst.Set = true
	return json.Unmarshal(val, &dst.Value)
}
