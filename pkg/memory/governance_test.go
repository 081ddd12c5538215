package memory

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negentropy-ai/engine/pkg/apperrors"
	"github.com/negentropy-ai/engine/pkg/models"
	testdb "github.com/negentropy-ai/engine/test/database"
)

func TestGovernance_RetainKeepsMemory(t *testing.T) {
	pool := testdb.NewTestPool(t)
	mems := NewMemories(pool, nil, slog.Default())
	gov := NewGovernance(pool, slog.Default())

	mem, err := mems.CreateMemory(context.Background(), models.CreateMemoryRequest{
		UserID: "u1", AppName: "app1", MemoryType: "episodic", Content: "hello",
	})
	require.NoError(t, err)

	logs, err := gov.AuditMemory(context.Background(), models.AuditMemoryRequest{
		UserID: "u1", AppName: "app1",
		Decisions: map[string]models.AuditDecision{mem.ID: models.DecisionRetain},
	})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.DecisionRetain, logs[0].Decision)
	assert.Equal(t, 1, logs[0].Version)

	got, err := mems.Get(context.Background(), mem.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)
}

func TestGovernance_DeleteRemovesMemory(t *testing.T) {
	pool := testdb.NewTestPool(t)
	mems := NewMemories(pool, nil, slog.Default())
	gov := NewGovernance(pool, slog.Default())

	mem, err := mems.CreateMemory(context.Background(), models.CreateMemoryRequest{
		UserID: "u1", AppName: "app1", MemoryType: "episodic", Content: "secret",
	})
	require.NoError(t, err)

	_, err = gov.AuditMemory(context.Background(), models.AuditMemoryRequest{
		UserID: "u1", AppName: "app1",
		Decisions: map[string]models.AuditDecision{mem.ID: models.DecisionDelete},
	})
	require.NoError(t, err)

	_, err = mems.Get(context.Background(), mem.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGovernance_AnonymizeClearsContent(t *testing.T) {
	pool := testdb.NewTestPool(t)
	mems := NewMemories(pool, nil, slog.Default())
	gov := NewGovernance(pool, slog.Default())

	mem, err := mems.CreateMemory(context.Background(), models.CreateMemoryRequest{
		UserID: "u1", AppName: "app1", MemoryType: "episodic", Content: "pii here",
	})
	require.NoError(t, err)

	_, err = gov.AuditMemory(context.Background(), models.AuditMemoryRequest{
		UserID: "u1", AppName: "app1",
		Decisions: map[string]models.AuditDecision{mem.ID: models.DecisionAnonymize},
	})
	require.NoError(t, err)

	got, err := mems.Get(context.Background(), mem.ID)
	require.NoError(t, err)
	assert.Equal(t, "[ANONYMIZED]", got.Content)
	assert.Nil(t, got.Embedding)
}

func TestGovernance_RejectsInvalidDecision(t *testing.T) {
	pool := testdb.NewTestPool(t)
	gov := NewGovernance(pool, slog.Default())

	_, err := gov.AuditMemory(context.Background(), models.AuditMemoryRequest{
		UserID: "u1", AppName: "app1",
		Decisions: map[string]models.AuditDecision{"some-id": "burn-it-down"},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestGovernance_RejectsVersionConflict(t *testing.T) {
	pool := testdb.NewTestPool(t)
	mems := NewMemories(pool, nil, slog.Default())
	gov := NewGovernance(pool, slog.Default())

	mem, err := mems.CreateMemory(context.Background(), models.CreateMemoryRequest{
		UserID: "u1", AppName: "app1", MemoryType: "episodic", Content: "v1",
	})
	require.NoError(t, err)

	_, err = gov.AuditMemory(context.Background(), models.AuditMemoryRequest{
		UserID: "u1", AppName: "app1",
		Decisions:        map[string]models.AuditDecision{mem.ID: models.DecisionRetain},
		ExpectedVersions: map[string]int{mem.ID: 5},
	})
	assert.ErrorIs(t, err, apperrors.ErrVersionConflict)
}

func TestGovernance_ConcurrentAuditsExactlyOneWins(t *testing.T) {
	pool := testdb.NewTestPool(t)
	mems := NewMemories(pool, nil, slog.Default())
	gov := NewGovernance(pool, slog.Default())

	mem, err := mems.CreateMemory(context.Background(), models.CreateMemoryRequest{
		UserID: "u1", AppName: "app1", MemoryType: "episodic", Content: "contested",
	})
	require.NoError(t, err)

	// Two clients race the same expected version with the same delete
	// decision. Exactly one commits; the other must observe the conflict
	// and leave no second audit row behind.
	start := make(chan struct{})
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			<-start
			_, err := gov.AuditMemory(context.Background(), models.AuditMemoryRequest{
				UserID: "u1", AppName: "app1",
				Decisions:        map[string]models.AuditDecision{mem.ID: models.DecisionDelete},
				ExpectedVersions: map[string]int{mem.ID: 0},
			})
			results <- err
		}()
	}
	close(start)

	var succeeded, conflicted int
	for i := 0; i < 2; i++ {
		err := <-results
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, apperrors.ErrVersionConflict):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)

	_, err = mems.Get(context.Background(), mem.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	history, err := gov.History(context.Background(), "app1", "u1", mem.ID)
	require.NoError(t, err)
	require.Len(t, history, 1, "the losing request must not record a decision")
	assert.Equal(t, 1, history[0].Version)
}

func TestGovernance_IdempotentReplay(t *testing.T) {
	pool := testdb.NewTestPool(t)
	mems := NewMemories(pool, nil, slog.Default())
	gov := NewGovernance(pool, slog.Default())

	mem, err := mems.CreateMemory(context.Background(), models.CreateMemoryRequest{
		UserID: "u1", AppName: "app1", MemoryType: "episodic", Content: "replay me",
	})
	require.NoError(t, err)

	key := "idem-key-1"
	req := models.AuditMemoryRequest{
		UserID: "u1", AppName: "app1",
		Decisions:      map[string]models.AuditDecision{mem.ID: models.DecisionAnonymize},
		IdempotencyKey: &key,
	}

	first, err := gov.AuditMemory(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := gov.AuditMemory(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[0].Version, second[0].Version)

	history, err := gov.History(context.Background(), "app1", "u1", mem.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1, "replay must not write a second audit row")
}
