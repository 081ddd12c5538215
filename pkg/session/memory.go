package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/negentropy-ai/engine/pkg/apperrors"
	"github.com/negentropy-ai/engine/pkg/models"
)

// MemoryStore is the in-process Store backend (NE_SESSION_BACKEND=memory).
// Intended for tests and single-process development, not multi-pod
// deployments (no cross-process visibility).
type MemoryStore struct {
	mu         sync.Mutex
	threads    map[string]*models.Thread
	events     map[string][]*models.Event
	userStates map[string]models.JSONMap // "userID|appName"
	appStates  map[string]models.JSONMap
	temp       TempCache
	titles     TitleGenerator
	log        *slog.Logger
}

func NewMemoryStore(temp TempCache, titles TitleGenerator, log *slog.Logger) *MemoryStore {
	return &MemoryStore{
		threads:    make(map[string]*models.Thread),
		events:     make(map[string][]*models.Event),
		userStates: make(map[string]models.JSONMap),
		appStates:  make(map[string]models.JSONMap),
		temp:       temp,
		titles:     titles,
		log:        log,
	}
}

func stateKey(parts ...string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += "|" + p
	}
	return out
}

func (s *MemoryStore) CreateSession(_ context.Context, appName, userID string, state models.JSONMap) (*models.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state == nil {
		state = models.JSONMap{}
	}
	t := &models.Thread{ID: newUUID(), AppName: appName, UserID: userID, State: state, Metadata: models.JSONMap{}, Version: 1}
	s.threads[t.ID] = t
	return cloneThread(t), nil
}

func (s *MemoryStore) GetSession(_ context.Context, appName, userID, id string, recentN int) (*models.Thread, []*models.Event, error) {
	if err := validateUUID("session_id", id); err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[id]
	if !ok || t.AppName != appName || t.UserID != userID {
		return nil, nil, apperrors.ErrNotFound
	}
	ev := s.events[id]
	if recentN > 0 && len(ev) > recentN {
		ev = ev[len(ev)-recentN:]
	}
	return cloneThread(t), ev, nil
}

func (s *MemoryStore) ListSessions(_ context.Context, f models.ThreadFilters) ([]*models.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Thread
	for _, t := range s.threads {
		if t.AppName == f.AppName && t.UserID == f.UserID {
			out = append(out, cloneThread(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	lo := f.Offset
	if lo > len(out) {
		lo = len(out)
	}
	hi := lo + limit
	if hi > len(out) {
		hi = len(out)
	}
	return out[lo:hi], nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, appName, userID, id string) error {
	if err := validateUUID("session_id", id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[id]
	if !ok || t.AppName != appName || t.UserID != userID {
		return apperrors.ErrNotFound
	}
	delete(s.threads, id)
	delete(s.events, id)
	if s.temp != nil {
		_ = s.temp.Evict(context.Background(), id)
	}
	return nil
}

func (s *MemoryStore) AppendEvent(ctx context.Context, appName, userID, threadID string, req models.AppendEventRequest) (*models.Event, error) {
	if err := validateUUID("session_id", threadID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	t, ok := s.threads[threadID]
	if !ok || t.AppName != appName || t.UserID != userID {
		s.mu.Unlock()
		return nil, apperrors.ErrNotFound
	}

	seq := int64(len(s.events[threadID]) + 1)
	event := &models.Event{
		ID: newUUID(), ThreadID: threadID, InvocationID: req.InvocationID, Author: req.Author,
		EventType: req.EventType, Content: req.Content, StateDelta: req.StateDelta, SequenceNum: seq,
	}
	s.events[threadID] = append(s.events[threadID], event)

	routed := routeStateDelta(req.StateDelta)
	if len(routed.user) > 0 {
		k := stateKey(userID, appName)
		s.userStates[k] = s.userStates[k].Merge(routed.user)
	}
	if len(routed.app) > 0 {
		s.appStates[appName] = s.appStates[appName].Merge(routed.app)
	}
	if len(routed.thread) > 0 {
		t.State = t.State.Merge(routed.thread)
	}
	t.Version++

	shouldGenerateTitle := false
	if t.Title() == "" {
		nonTool := 0
		for _, e := range s.events[threadID] {
			if e.Author != models.AuthorTool {
				nonTool++
			}
		}
		shouldGenerateTitle = nonTool >= 2
	}
	recent := append([]*models.Event(nil), s.events[threadID]...)
	s.mu.Unlock()

	if len(routed.temp) > 0 && s.temp != nil {
		_ = s.temp.Merge(ctx, threadID, routed.temp)
	}
	if shouldGenerateTitle && s.titles != nil {
		go s.generateTitle(threadID, recent)
	}
	return event, nil
}

func (s *MemoryStore) generateTitle(threadID string, events []*models.Event) {
	title, err := s.titles.GenerateTitle(context.Background(), events)
	if err != nil {
		if s.log != nil {
			s.log.Warn("title generation failed", "thread_id", threadID, "error", err)
		}
		return
	}
	if title == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.threads[threadID]; ok {
		t.Metadata = t.Metadata.Merge(models.JSONMap{"title": title})
	}
}

func (s *MemoryStore) UpdateSessionTitle(_ context.Context, threadID, title string) error {
	if err := validateUUID("session_id", threadID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return apperrors.ErrNotFound
	}
	t.Metadata = t.Metadata.Merge(models.JSONMap{"title": title})
	return nil
}

func cloneThread(t *models.Thread) *models.Thread {
	clone := *t
	clone.State = t.State.Clone()
	clone.Metadata = t.Metadata.Clone()
	return &clone
}
