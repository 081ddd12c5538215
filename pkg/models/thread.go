// Package models holds the typed domain entities persisted by the storage
// layer. JSON columns are materialized here as typed structs; the DAL in
// pkg/storage marshals/unmarshals at the read/write boundary so no other
// package touches raw json.RawMessage.
package models

import "time"

// JSONMap is a shallow-mergeable JSON object column.
type JSONMap map[string]any

// Merge returns a new JSONMap with delta's top-level keys overwriting m's.
// Shallow-merge semantics: no recursive merge.
func (m JSONMap) Merge(delta JSONMap) JSONMap {
	out := make(JSONMap, len(m)+len(delta))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range delta {
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy, never nil.
func (m JSONMap) Clone() JSONMap {
	out := make(JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Thread is one conversation: (app_name, user_id, id) is unique.
type Thread struct {
	ID        string    `json:"id"`
	AppName   string    `json:"app_name"`
	UserID    string    `json:"user_id"`
	State     JSONMap   `json:"state"`
	Metadata  JSONMap   `json:"metadata"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Title returns metadata["title"] as a string, or "" if absent/wrong type.
func (t *Thread) Title() string {
	if t.Metadata == nil {
		return ""
	}
	v, _ := t.Metadata["title"].(string)
	return v
}

// UserState holds keys that arrived with the "user:" prefix.
type UserState struct {
	UserID    string    `json:"user_id"`
	AppName   string    `json:"app_name"`
	State     JSONMap   `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppState holds keys that arrived with the "app:" prefix.
type AppState struct {
	AppName   string    `json:"app_name"`
	State     JSONMap   `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ThreadFilters filters ListSessions.
type ThreadFilters struct {
	AppName string
	UserID  string
	Limit   int
	Offset  int
}
