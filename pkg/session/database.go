package session

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/negentropy-ai/engine/pkg/apperrors"
	"github.com/negentropy-ai/engine/pkg/models"
	"github.com/negentropy-ai/engine/pkg/storage"
)

// DatabaseStore is the database-backed Store: one round trip per
// operation, row-level locking for the append protocol's serialization
// requirement.
type DatabaseStore struct {
	pool      *storage.Pool
	threads   *storage.ThreadStore
	events    *storage.EventStore
	userState *storage.UserStateStore
	appState  *storage.AppStateStore
	temp      TempCache
	titles    TitleGenerator
	log       *slog.Logger
}

// NewDatabaseStore builds a DatabaseStore. titles may be nil, in which case
// title generation is skipped entirely (no-op, not an error).
func NewDatabaseStore(pool *storage.Pool, temp TempCache, titles TitleGenerator, log *slog.Logger) *DatabaseStore {
	return &DatabaseStore{
		pool:      pool,
		threads:   storage.NewThreadStore(),
		events:    storage.NewEventStore(),
		userState: storage.NewUserStateStore(),
		appState:  storage.NewAppStateStore(),
		temp:      temp,
		titles:    titles,
		log:       log,
	}
}

func (s *DatabaseStore) CreateSession(ctx context.Context, appName, userID string, state models.JSONMap) (*models.Thread, error) {
	t := &models.Thread{
		ID:       newUUID(),
		AppName:  appName,
		UserID:   userID,
		State:    state,
		Metadata: models.JSONMap{},
		Version:  1,
	}
	if t.State == nil {
		t.State = models.JSONMap{}
	}
	if err := s.threads.Insert(ctx, s.pool.Pool, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *DatabaseStore) GetSession(ctx context.Context, appName, userID, id string, recentN int) (*models.Thread, []*models.Event, error) {
	if err := validateUUID("session_id", id); err != nil {
		return nil, nil, err
	}
	t, err := s.threads.Get(ctx, s.pool.Pool, appName, userID, id)
	if err != nil {
		return nil, nil, err
	}
	events, err := s.events.ListByThread(ctx, s.pool.Pool, t.ID, recentN)
	if err != nil {
		return nil, nil, err
	}
	return t, events, nil
}

func (s *DatabaseStore) ListSessions(ctx context.Context, f models.ThreadFilters) ([]*models.Thread, error) {
	return s.threads.List(ctx, s.pool.Pool, f)
}

func (s *DatabaseStore) DeleteSession(ctx context.Context, appName, userID, id string) error {
	if err := validateUUID("session_id", id); err != nil {
		return err
	}
	if err := s.threads.Delete(ctx, s.pool.Pool, appName, userID, id); err != nil {
		return err
	}
	if s.temp != nil {
		_ = s.temp.Evict(ctx, id)
	}
	return nil
}

// AppendEvent runs the 4-step protocol inside one transaction,
// then — outside the transaction — conditionally schedules title
// generation per step 4's trailing clause.
func (s *DatabaseStore) AppendEvent(ctx context.Context, appName, userID, threadID string, req models.AppendEventRequest) (*models.Event, error) {
	if err := validateUUID("session_id", threadID); err != nil {
		return nil, err
	}

	var event *models.Event
	var shouldGenerateTitle bool
	var thread *models.Thread

	err := storage.WithTx(ctx, s.pool.Pool, func(tx pgx.Tx) error {
		t, err := s.threads.GetForUpdate(ctx, tx, threadID)
		if err != nil {
			return err
		}
		if t.AppName != appName || t.UserID != userID {
			return apperrors.ErrNotFound
		}
		thread = t

		seq, err := s.events.NextSequenceNum(ctx, tx, threadID)
		if err != nil {
			return err
		}
		event = &models.Event{
			ID:           newUUID(),
			ThreadID:     threadID,
			InvocationID: req.InvocationID,
			Author:       req.Author,
			EventType:    req.EventType,
			Content:      req.Content,
			StateDelta:   req.StateDelta,
			SequenceNum:  seq,
		}
		if err := s.events.Insert(ctx, tx, event); err != nil {
			return err
		}

		routed := routeStateDelta(req.StateDelta)
		if len(routed.temp) > 0 && s.temp != nil {
			if err := s.temp.Merge(ctx, threadID, routed.temp); err != nil {
				return err
			}
		}
		if len(routed.user) > 0 {
			if _, err := s.userState.Upsert(ctx, tx, userID, appName, routed.user); err != nil {
				return err
			}
		}
		if len(routed.app) > 0 {
			if _, err := s.appState.Upsert(ctx, tx, appName, routed.app); err != nil {
				return err
			}
		}
		if len(routed.thread) > 0 {
			t.State = t.State.Merge(routed.thread)
		}
		if err := s.threads.UpdateState(ctx, tx, t); err != nil {
			return err
		}

		if t.Title() == "" {
			n, err := s.events.CountNonTool(ctx, tx, threadID)
			if err != nil {
				return err
			}
			shouldGenerateTitle = n >= 2
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if shouldGenerateTitle && s.titles != nil {
		s.scheduleTitleGeneration(thread.ID)
	}
	return event, nil
}

// scheduleTitleGeneration runs title generation out-of-transaction, per
// failures are logged and never affect the append that
// triggered them.
func (s *DatabaseStore) scheduleTitleGeneration(threadID string) {
	go func() {
		ctx := context.Background()
		events, err := s.events.ListByThread(ctx, s.pool.Pool, threadID, 20)
		if err != nil {
			s.log.Warn("title generation: failed to load recent events", "thread_id", threadID, "error", err)
			return
		}
		title, err := s.titles.GenerateTitle(ctx, events)
		if err != nil {
			s.log.Warn("title generation failed", "thread_id", threadID, "error", err)
			return
		}
		if title == "" {
			return
		}
		if err := s.threads.PatchTitle(ctx, s.pool.Pool, threadID, title); err != nil {
			s.log.Warn("title generation: failed to patch thread title", "thread_id", threadID, "error", err)
		}
	}()
}

func (s *DatabaseStore) UpdateSessionTitle(ctx context.Context, threadID, title string) error {
	if err := validateUUID("session_id", threadID); err != nil {
		return err
	}
	return s.threads.PatchTitle(ctx, s.pool.Pool, threadID, title)
}
