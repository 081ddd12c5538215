package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negentropy-ai/engine/pkg/apperrors"
	"github.com/negentropy-ai/engine/pkg/models"
)

type fakeTitleGenerator struct{ title string }

func (f *fakeTitleGenerator) GenerateTitle(context.Context, []*models.Event) (string, error) {
	return f.title, nil
}

func TestMemoryStore_CreateAndGetSession(t *testing.T) {
	store := NewMemoryStore(NewLocalTempCache(), nil, nil)
	ctx := context.Background()

	thread, err := store.CreateSession(ctx, "app1", "user1", models.JSONMap{"a": 1})
	require.NoError(t, err)
	assert.NotEmpty(t, thread.ID)

	got, events, err := store.GetSession(ctx, "app1", "user1", thread.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, got.State["a"])
	assert.Empty(t, events)
}

func TestMemoryStore_GetSession_RejectsNonUUID(t *testing.T) {
	store := NewMemoryStore(NewLocalTempCache(), nil, nil)
	_, _, err := store.GetSession(context.Background(), "app1", "user1", "not-a-uuid", 0)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestMemoryStore_AppendEvent_RoutesStateDelta(t *testing.T) {
	store := NewMemoryStore(NewLocalTempCache(), nil, nil)
	ctx := context.Background()
	thread, err := store.CreateSession(ctx, "app1", "user1", nil)
	require.NoError(t, err)

	_, err = store.AppendEvent(ctx, "app1", "user1", thread.ID, models.AppendEventRequest{
		Author:    models.AuthorUser,
		EventType: "message",
		Content:   models.NewTextContent("hi"),
		StateDelta: models.StateDelta{
			"temp:scratch":  "v1",
			"user:nickname": "bob",
			"app:feature_x": true,
			"topic":         "greeting",
		},
	})
	require.NoError(t, err)

	got, _, err := store.GetSession(ctx, "app1", "user1", thread.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "greeting", got.State["topic"])

	userState := store.userStates[stateKey("user1", "app1")]
	assert.Equal(t, "bob", userState["nickname"])

	appState := store.appStates["app1"]
	assert.Equal(t, true, appState["feature_x"])

	cached, err := store.temp.Get(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, "v1", cached["scratch"])
}

func TestMemoryStore_AppendEvent_SchedulesTitleAfterTwoNonToolEvents(t *testing.T) {
	gen := &fakeTitleGenerator{title: "Greeting thread"}
	store := NewMemoryStore(NewLocalTempCache(), gen, nil)
	ctx := context.Background()
	thread, err := store.CreateSession(ctx, "app1", "user1", nil)
	require.NoError(t, err)

	_, err = store.AppendEvent(ctx, "app1", "user1", thread.ID, models.AppendEventRequest{
		Author: models.AuthorUser, EventType: "message", Content: models.NewTextContent("hi"),
	})
	require.NoError(t, err)
	_, err = store.AppendEvent(ctx, "app1", "user1", thread.ID, models.AppendEventRequest{
		Author: models.AuthorAgent, EventType: "message", Content: models.NewTextContent("hello"),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, _, _ := store.GetSession(ctx, "app1", "user1", thread.ID, 0)
		return got.Title() == "Greeting thread"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRouteStateDelta(t *testing.T) {
	r := routeStateDelta(map[string]any{
		"temp:a": 1, "user:b": 2, "app:c": 3, "d": 4,
	})
	assert.Equal(t, 1, r.temp["a"])
	assert.Equal(t, 2, r.user["b"])
	assert.Equal(t, 3, r.app["c"])
	assert.Equal(t, 4, r.thread["d"])
}
