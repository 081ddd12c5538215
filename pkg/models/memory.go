package models

import "time"

// Memory is one episodic-memory row, vector-searchable.
type Memory struct {
	ID             string    `json:"id"`
	ThreadID       *string   `json:"thread_id,omitempty"`
	UserID         string    `json:"user_id"`
	AppName        string    `json:"app_name"`
	MemoryType     string    `json:"memory_type"`
	Content        string    `json:"content"`
	Embedding      []float32 `json:"embedding,omitempty"`
	Metadata       JSONMap   `json:"metadata"`
	RetentionScore float64   `json:"retention_score"`
	AccessCount    int       `json:"access_count"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CreateMemoryRequest is the input to MemoryStore.CreateMemory.
type CreateMemoryRequest struct {
	ThreadID   *string
	UserID     string
	AppName    string
	MemoryType string
	Content    string
	Embedding  []float32
	Metadata   JSONMap
}

// ScoredMemory pairs a Memory with its search relevance score.
type ScoredMemory struct {
	Memory         *Memory `json:"memory"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Fact is a structured semantic-memory row. Unique key is
// (user_id, app_name, fact_type, key).
type Fact struct {
	ID         string     `json:"id"`
	ThreadID   *string    `json:"thread_id,omitempty"`
	UserID     string     `json:"user_id"`
	AppName    string     `json:"app_name"`
	FactType   string     `json:"fact_type"`
	Key        string     `json:"key"`
	Value      JSONMap    `json:"value"`
	Embedding  []float32  `json:"embedding,omitempty"`
	Confidence float64    `json:"confidence"`
	ValidFrom  time.Time  `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// EffectiveAt reports whether the fact is effective at time t.
func (f *Fact) EffectiveAt(t time.Time) bool {
	if f.ValidFrom.After(t) {
		return false
	}
	if f.ValidUntil != nil && !f.ValidUntil.After(t) {
		return false
	}
	return true
}

// UpsertFactRequest is the input to FactStore.UpsertFact.
type UpsertFactRequest struct {
	ThreadID   *string
	UserID     string
	AppName    string
	FactType   string
	Key        string
	Value      JSONMap
	Confidence float64
	ValidFrom  *time.Time
	ValidUntil *time.Time
}

// AuditDecision is one of the three governance actions.
type AuditDecision string

const (
	DecisionRetain    AuditDecision = "retain"
	DecisionDelete    AuditDecision = "delete"
	DecisionAnonymize AuditDecision = "anonymize"
)

// ValidAuditDecision reports whether d is one of the three allowed values.
func ValidAuditDecision(d string) bool {
	switch AuditDecision(d) {
	case DecisionRetain, DecisionDelete, DecisionAnonymize:
		return true
	default:
		return false
	}
}

// MemoryAuditLog is one governance decision record.
type MemoryAuditLog struct {
	ID             string        `json:"id"`
	AppName        string        `json:"app_name"`
	UserID         string        `json:"user_id"`
	MemoryID       string        `json:"memory_id"`
	Decision       AuditDecision `json:"decision"`
	Note           *string       `json:"note,omitempty"`
	IdempotencyKey *string       `json:"idempotency_key,omitempty"`
	Version        int           `json:"version"`
	CreatedAt      time.Time     `json:"created_at"`
}

// AuditMemoryRequest is the input to Governance.AuditMemory.
type AuditMemoryRequest struct {
	UserID           string
	AppName          string
	Decisions        map[string]AuditDecision // memory_id -> decision
	ExpectedVersions map[string]int           // memory_id -> expected version, optional
	Note             *string
	IdempotencyKey   *string
}
