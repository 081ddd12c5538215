package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/negentropy-ai/engine/pkg/apperrors"
	"github.com/negentropy-ai/engine/pkg/models"
)

// AuditLogStore is the hand-written SQL DAL for memory governance decisions.
type AuditLogStore struct{}

func NewAuditLogStore() *AuditLogStore { return &AuditLogStore{} }

const auditColumns = "id, app_name, user_id, memory_id, decision, note, idempotency_key, version, created_at"

func scanAuditLog(row pgx.Row) (*models.MemoryAuditLog, error) {
	var a models.MemoryAuditLog
	if err := row.Scan(&a.ID, &a.AppName, &a.UserID, &a.MemoryID, &a.Decision, &a.Note,
		&a.IdempotencyKey, &a.Version, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.NewDatabaseError("scan audit log", err)
	}
	return &a, nil
}

// FindByIdempotencyKey looks up a prior decision recorded under the same
// (app_name, user_id, memory_id, idempotency_key), implementing the replay
// check of the governance protocol's step 1.
func (s *AuditLogStore) FindByIdempotencyKey(ctx context.Context, db DBTX, appName, userID, memoryID, idempotencyKey string) (*models.MemoryAuditLog, error) {
	if idempotencyKey == "" {
		return nil, nil
	}
	row := db.QueryRow(ctx, `
		SELECT `+auditColumns+` FROM memory_audit_logs
		WHERE app_name=$1 AND user_id=$2 AND memory_id=$3 AND idempotency_key=$4
	`, appName, userID, memoryID, idempotencyKey)
	a, err := scanAuditLog(row)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	return a, err
}

// LatestVersion returns the highest version already recorded for
// (appName, userID, memoryID), or 0 if none exists — used for the
// expected-version optimistic-lock check.
func (s *AuditLogStore) LatestVersion(ctx context.Context, db DBTX, appName, userID, memoryID string) (int, error) {
	var v *int
	err := db.QueryRow(ctx, `
		SELECT max(version) FROM memory_audit_logs WHERE app_name=$1 AND user_id=$2 AND memory_id=$3
	`, appName, userID, memoryID).Scan(&v)
	if err != nil {
		return 0, apperrors.NewDatabaseError("read latest audit version", err)
	}
	if v == nil {
		return 0, nil
	}
	return *v, nil
}

// Insert records one governance decision at the given version. Callers must
// run this inside the same transaction as the memory action it accompanies,
// so the whole multi-memory audit commits atomically.
func (s *AuditLogStore) Insert(ctx context.Context, db DBTX, a *models.MemoryAuditLog) error {
	_, err := db.Exec(ctx, `
		INSERT INTO memory_audit_logs (id, app_name, user_id, memory_id, decision, note, idempotency_key, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
	`, a.ID, a.AppName, a.UserID, a.MemoryID, a.Decision, a.Note, a.IdempotencyKey, a.Version)
	if err != nil {
		// Either unique constraint firing means a concurrent request already
		// recorded a decision this one did not see: a lost version CAS, or an
		// idempotency twin that committed first. Both are a stale view.
		if isUniqueViolation(err) {
			return apperrors.ErrVersionConflict
		}
		return apperrors.NewDatabaseError("insert audit log", err)
	}
	return nil
}

// ListForMemory returns the decision history for one memory, newest first.
func (s *AuditLogStore) ListForMemory(ctx context.Context, db DBTX, appName, userID, memoryID string) ([]*models.MemoryAuditLog, error) {
	rows, err := db.Query(ctx, `
		SELECT `+auditColumns+` FROM memory_audit_logs
		WHERE app_name=$1 AND user_id=$2 AND memory_id=$3
		ORDER BY version DESC
	`, appName, userID, memoryID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list audit logs", err)
	}
	defer rows.Close()

	var out []*models.MemoryAuditLog
	for rows.Next() {
		a, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
