package models

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// Author identifies who contributed an Event.
type Author string

const (
	AuthorUser  Author = "user"
	AuthorAgent Author = "agent"
	AuthorTool  Author = "tool"
)

// ContentKind tags the EventContent variant on the wire.
type ContentKind string

const (
	ContentKindText  ContentKind = "text"
	ContentKindParts ContentKind = "parts"
	ContentKindBlob  ContentKind = "blob"
)

// Part is one element of a ContentKindParts payload, a closed struct in
// place of a free-form nested object.
type Part struct {
	Type string         `json:"type"`
	Text string         `json:"text,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

// EventContent is a tagged variant over event payloads (plain text,
// structured parts, or raw bytes). Exactly one of Text, Parts, Blob is
// meaningful, selected by Kind.
type EventContent struct {
	Kind  ContentKind `json:"type"`
	Text  string      `json:"text,omitempty"`
	Parts []Part      `json:"parts,omitempty"`
	Blob  []byte      `json:"blob,omitempty"` // base64 over JSON
}

// NewTextContent builds a Text-variant EventContent.
func NewTextContent(text string) EventContent {
	return EventContent{Kind: ContentKindText, Text: text}
}

// NewPartsContent builds a Parts-variant EventContent.
func NewPartsContent(parts []Part) EventContent {
	return EventContent{Kind: ContentKindParts, Parts: parts}
}

// NewBlobContent builds a Blob-variant EventContent.
func NewBlobContent(blob []byte) EventContent {
	return EventContent{Kind: ContentKindBlob, Blob: blob}
}

// TextParts extracts the plain-text segments of the content, used by
// consolidation.
func (c EventContent) TextParts() []string {
	switch c.Kind {
	case ContentKindText:
		if c.Text == "" {
			return nil
		}
		return []string{c.Text}
	case ContentKindParts:
		var out []string
		for _, p := range c.Parts {
			if p.Text != "" {
				out = append(out, p.Text)
			}
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON implements the canonical tagged wire form: {"type": "...", ...}.
// Blob bytes are written as a standard-encoding base64 string.
func (c EventContent) MarshalJSON() ([]byte, error) {
	type wire struct {
		Type  ContentKind `json:"type"`
		Text  string      `json:"text,omitempty"`
		Parts []Part      `json:"parts,omitempty"`
		Blob  string      `json:"blob,omitempty"`
	}
	w := wire{Type: c.Kind, Text: c.Text, Parts: c.Parts}
	if len(c.Blob) > 0 {
		w.Blob = base64.StdEncoding.EncodeToString(c.Blob)
	}
	return json.Marshal(w)
}

// UnmarshalJSON is the parallel inverse of MarshalJSON. Unknown or missing
// type tags fall back to the Text variant.
func (c *EventContent) UnmarshalJSON(data []byte) error {
	var w struct {
		Type  ContentKind `json:"type"`
		Text  string      `json:"text,omitempty"`
		Parts []Part      `json:"parts,omitempty"`
		Blob  string      `json:"blob,omitempty"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("unmarshal event content: %w", err)
	}
	switch w.Type {
	case ContentKindParts:
		c.Kind = ContentKindParts
		c.Parts = w.Parts
	case ContentKindBlob:
		blob, err := base64.StdEncoding.DecodeString(w.Blob)
		if err != nil {
			return fmt.Errorf("decode blob content: %w", err)
		}
		c.Kind = ContentKindBlob
		c.Blob = blob
	default:
		c.Kind = ContentKindText
		c.Text = w.Text
	}
	return nil
}

// StateDelta is the actions.state_delta map carried by an Event.
type StateDelta map[string]any

// Event is one append-only turn contribution within a Thread.
type Event struct {
	ID           string       `json:"id"`
	ThreadID     string       `json:"thread_id"`
	InvocationID string       `json:"invocation_id"`
	Author       Author       `json:"author"`
	EventType    string       `json:"event_type"`
	Content      EventContent `json:"content"`
	StateDelta   StateDelta   `json:"state_delta,omitempty"`
	SequenceNum  int64        `json:"sequence_num"`
	CreatedAt    time.Time    `json:"created_at"`
}

// AppendEventRequest is the input to SessionStore.AppendEvent.
type AppendEventRequest struct {
	InvocationID string
	Author       Author
	EventType    string
	Content      EventContent
	StateDelta   StateDelta
}
