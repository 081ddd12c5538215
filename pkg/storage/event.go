package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/negentropy-ai/engine/pkg/apperrors"
	"github.com/negentropy-ai/engine/pkg/models"
)

// EventStore is the hand-written SQL DAL for events.
type EventStore struct{}

func NewEventStore() *EventStore { return &EventStore{} }

const eventColumns = "id, thread_id, invocation_id, author, event_type, content, actions, sequence_num, created_at"

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	var contentRaw, actionsRaw []byte
	if err := row.Scan(&e.ID, &e.ThreadID, &e.InvocationID, &e.Author, &e.EventType,
		&contentRaw, &actionsRaw, &e.SequenceNum, &e.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.NewDatabaseError("scan event", err)
	}
	if err := json.Unmarshal(contentRaw, &e.Content); err != nil {
		return nil, apperrors.NewDatabaseError("decode event content", err)
	}
	var actions struct {
		StateDelta models.StateDelta `json:"state_delta"`
	}
	if len(actionsRaw) > 0 {
		if err := json.Unmarshal(actionsRaw, &actions); err != nil {
			return nil, apperrors.NewDatabaseError("decode event actions", err)
		}
	}
	e.StateDelta = actions.StateDelta
	return &e, nil
}

// NextSequenceNum returns 1 + the current max sequence_num for threadID,
// computed inside the caller's transaction so it is consistent with the
// row-level lock taken by ThreadStore.GetForUpdate.
func (s *EventStore) NextSequenceNum(ctx context.Context, tx pgx.Tx, threadID string) (int64, error) {
	var maxSeq *int64
	err := tx.QueryRow(ctx, `SELECT max(sequence_num) FROM events WHERE thread_id=$1`, threadID).Scan(&maxSeq)
	if err != nil {
		return 0, apperrors.NewDatabaseError("compute next sequence number", err)
	}
	if maxSeq == nil {
		return 1, nil
	}
	return *maxSeq + 1, nil
}

// Insert appends one event at the given sequence number.
func (s *EventStore) Insert(ctx context.Context, db DBTX, e *models.Event) error {
	contentBytes, err := json.Marshal(e.Content)
	if err != nil {
		return apperrors.NewDatabaseError("encode event content", err)
	}
	actionsBytes, err := json.Marshal(struct {
		StateDelta models.StateDelta `json:"state_delta,omitempty"`
	}{StateDelta: e.StateDelta})
	if err != nil {
		return apperrors.NewDatabaseError("encode event actions", err)
	}
	_, err = db.Exec(ctx, `
		INSERT INTO events (id, thread_id, invocation_id, author, event_type, content, actions, sequence_num, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
	`, e.ID, e.ThreadID, e.InvocationID, e.Author, e.EventType, contentBytes, actionsBytes, e.SequenceNum)
	if err != nil {
		return apperrors.NewDatabaseError("insert event", err)
	}
	return nil
}

// ListByThread returns events for a thread in sequence order, optionally
// limited to the most recent N (recent-N filter).
func (s *EventStore) ListByThread(ctx context.Context, db DBTX, threadID string, recentN int) ([]*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE thread_id=$1 ORDER BY sequence_num ASC`
	args := []any{threadID}
	if recentN > 0 {
		query = `
			SELECT ` + eventColumns + ` FROM (
				SELECT ` + eventColumns + ` FROM events WHERE thread_id=$1 ORDER BY sequence_num DESC LIMIT $2
			) recent ORDER BY sequence_num ASC`
		args = append(args, recentN)
	}
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list events", err)
	}
	defer rows.Close()

	var out []*models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountNonTool returns the count of events for threadID whose author is not
// "tool" — the title-generation trigger condition counts these.
func (s *EventStore) CountNonTool(ctx context.Context, db DBTX, threadID string) (int, error) {
	var n int
	err := db.QueryRow(ctx, `SELECT count(*) FROM events WHERE thread_id=$1 AND author != 'tool'`, threadID).Scan(&n)
	if err != nil {
		return 0, apperrors.NewDatabaseError("count non-tool events", err)
	}
	return n, nil
}
