package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/negentropy-ai/engine/pkg/models"
)

// TempCache implements the `temp:` state-delta destination: never persisted
// to the database and evicted on session delete. The default backend is
// process-local and is lost on restart; the Redis backend is shared across
// processes.
type TempCache interface {
	Merge(ctx context.Context, threadID string, delta models.JSONMap) error
	Get(ctx context.Context, threadID string) (models.JSONMap, error)
	Evict(ctx context.Context, threadID string) error
}

// LocalTempCache is a process-local map, the default backend.
type LocalTempCache struct {
	mu    sync.Mutex
	state map[string]models.JSONMap
}

func NewLocalTempCache() *LocalTempCache {
	return &LocalTempCache{state: make(map[string]models.JSONMap)}
}

func (c *LocalTempCache) Merge(_ context.Context, threadID string, delta models.JSONMap) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state[threadID] = c.state[threadID].Merge(delta)
	return nil
}

func (c *LocalTempCache) Get(_ context.Context, threadID string) (models.JSONMap, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state[threadID].Clone(), nil
}

func (c *LocalTempCache) Evict(_ context.Context, threadID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.state, threadID)
	return nil
}

// RedisTempCache gives the temp cache cross-pod visibility, selected by
// NE_SESSION_TEMP_CACHE=redis. It is still "temp:" in the
// usual sense — never written to the durable schema — just shared across
// process boundaries instead of held in a single pod's heap.
type RedisTempCache struct {
	client *redis.Client
}

func NewRedisTempCache(addr string) *RedisTempCache {
	return &RedisTempCache{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (c *RedisTempCache) Merge(ctx context.Context, threadID string, delta models.JSONMap) error {
	current, err := c.Get(ctx, threadID)
	if err != nil {
		return err
	}
	merged := current.Merge(delta)
	b, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, redisKey(threadID), b, 0).Err()
}

func (c *RedisTempCache) Get(ctx context.Context, threadID string) (models.JSONMap, error) {
	b, err := c.client.Get(ctx, redisKey(threadID)).Bytes()
	if err == redis.Nil {
		return models.JSONMap{}, nil
	}
	if err != nil {
		return nil, err
	}
	var out models.JSONMap
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RedisTempCache) Evict(ctx context.Context, threadID string) error {
	return c.client.Del(ctx, redisKey(threadID)).Err()
}

func redisKey(threadID string) string { return "ne:temp:" + threadID }
