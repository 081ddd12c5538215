// Package session implements the Session & Event Persistence component
//: thread/event append-only storage, state-delta routing, and
// title-generation scheduling.
package session

import (
	"context"

	"github.com/negentropy-ai/engine/pkg/models"
)

// Store is the Session & Event Persistence contract. Both the database and
// in-memory backends implement it; the HTTP boundary and agent-framework
// collaborator depend only on this interface.
type Store interface {
	CreateSession(ctx context.Context, appName, userID string, state models.JSONMap) (*models.Thread, error)
	GetSession(ctx context.Context, appName, userID, id string, recentN int) (*models.Thread, []*models.Event, error)
	ListSessions(ctx context.Context, f models.ThreadFilters) ([]*models.Thread, error)
	DeleteSession(ctx context.Context, appName, userID, id string) error
	AppendEvent(ctx context.Context, appName, userID, threadID string, req models.AppendEventRequest) (*models.Event, error)
	UpdateSessionTitle(ctx context.Context, threadID, title string) error
}

// TitleGenerator produces a short title from a thread's recent events. It is
// invoked out-of-transaction by AppendEvent once the ≥2-non-tool-event
// condition is met; failures are logged, never surfaced.
type TitleGenerator interface {
	GenerateTitle(ctx context.Context, events []*models.Event) (string, error)
}
