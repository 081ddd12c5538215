package models

import "time"

// SpanKind mirrors the span-kind attribute of the tracing wire contract.
type SpanKind string

const (
	SpanKindInternal SpanKind = "internal"
	SpanKindClient   SpanKind = "client"
	SpanKindServer   SpanKind = "server"
)

// SpanStatusCode is the terminal status of a span.
type SpanStatusCode string

const (
	SpanStatusUnset SpanStatusCode = "unset"
	SpanStatusOK    SpanStatusCode = "ok"
	SpanStatusError SpanStatusCode = "error"
)

// SpanEvent is one timestamped event attached to a span.
type SpanEvent struct {
	Name       string    `json:"name"`
	Time       time.Time `json:"time"`
	Attributes JSONMap   `json:"attributes,omitempty"`
}

// Span is one persisted trace span.
type Span struct {
	TraceID       string         `json:"trace_id"` // 32-hex
	SpanID        string         `json:"span_id"`  // 16-hex
	ParentSpanID  *string        `json:"parent_span_id,omitempty"`
	OperationName string         `json:"operation_name"`
	SpanKind      SpanKind       `json:"span_kind"`
	Attributes    JSONMap        `json:"attributes"`
	Events        []SpanEvent    `json:"events"`
	StartTime     time.Time      `json:"start_time"`
	EndTime       *time.Time     `json:"end_time,omitempty"`
	DurationNs    *int64         `json:"duration_ns,omitempty"`
	StatusCode    SpanStatusCode `json:"status_code"`
	StatusMessage *string        `json:"status_message,omitempty"`
}

// LLM span attribute keys injected by the tracing middleware.
const (
	AttrRequestModel     = "gen_ai.request.model"
	AttrUsageCost        = "gen_ai.usage.cost"
	AttrLangfuseCostDtl  = "langfuse.observation.cost_details"
	AttrSessionID        = "session.id"
	AttrUserID           = "user.id"
)
