package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/negentropy-ai/engine/pkg/apperrors"
	"github.com/negentropy-ai/engine/pkg/models"
)

// UserStateStore is the hand-written SQL DAL for per-(user,app) state.
type UserStateStore struct{}

func NewUserStateStore() *UserStateStore { return &UserStateStore{} }

// Upsert shallow-merges delta into the existing state for (userID, appName),
// creating the row if absent. The merge itself happens in Go (not SQL) so
// the "delta overwrites top-level keys, no recursive merge" rule in is
// exactly the JSONMap.Merge semantics, not Postgres's own `||` operator
// behavior (which happens to coincide for objects, but we don't rely on it).
func (s *UserStateStore) Upsert(ctx context.Context, db DBTX, userID, appName string, delta models.JSONMap) (models.JSONMap, error) {
	var current models.JSONMap
	row := db.QueryRow(ctx, `SELECT state FROM user_states WHERE user_id=$1 AND app_name=$2`, userID, appName)
	if err := row.Scan(jsonColumn(&current)); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewDatabaseError("read user state", err)
		}
		current = models.JSONMap{}
	}
	merged := current.Merge(delta)
	val, err := jsonValue(merged)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(ctx, `
		INSERT INTO user_states (user_id, app_name, state, updated_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, app_name) DO UPDATE SET state=$3, updated_at=now()
	`, userID, appName, val)
	if err != nil {
		return nil, apperrors.NewDatabaseError("upsert user state", err)
	}
	return merged, nil
}

// Get returns the state for (userID, appName), or an empty map if absent.
func (s *UserStateStore) Get(ctx context.Context, db DBTX, userID, appName string) (models.JSONMap, error) {
	var state models.JSONMap
	row := db.QueryRow(ctx, `SELECT state FROM user_states WHERE user_id=$1 AND app_name=$2`, userID, appName)
	if err := row.Scan(jsonColumn(&state)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.JSONMap{}, nil
		}
		return nil, apperrors.NewDatabaseError("read user state", err)
	}
	return state, nil
}

// AppStateStore is the hand-written SQL DAL for per-app state.
type AppStateStore struct{}

func NewAppStateStore() *AppStateStore { return &AppStateStore{} }

// Upsert shallow-merges delta into the existing state for appName.
func (s *AppStateStore) Upsert(ctx context.Context, db DBTX, appName string, delta models.JSONMap) (models.JSONMap, error) {
	var current models.JSONMap
	row := db.QueryRow(ctx, `SELECT state FROM app_states WHERE app_name=$1`, appName)
	if err := row.Scan(jsonColumn(&current)); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewDatabaseError("read app state", err)
		}
		current = models.JSONMap{}
	}
	merged := current.Merge(delta)
	val, err := jsonValue(merged)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(ctx, `
		INSERT INTO app_states (app_name, state, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (app_name) DO UPDATE SET state=$2, updated_at=now()
	`, appName, val)
	if err != nil {
		return nil, apperrors.NewDatabaseError("upsert app state", err)
	}
	return merged, nil
}

// Get returns the state for appName, or an empty map if absent.
func (s *AppStateStore) Get(ctx context.Context, db DBTX, appName string) (models.JSONMap, error) {
	var state models.JSONMap
	row := db.QueryRow(ctx, `SELECT state FROM app_states WHERE app_name=$1`, appName)
	if err := row.Scan(jsonColumn(&state)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.JSONMap{}, nil
		}
		return nil, apperrors.NewDatabaseError("read app state", err)
	}
	return state, nil
}
