package memory

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/negentropy-ai/engine/pkg/apperrors"
	"github.com/negentropy-ai/engine/pkg/models"
	"github.com/negentropy-ai/engine/pkg/storage"
)

// Governance implements the audit protocol: validate decisions,
// honor idempotency replay, enforce per-memory optimistic version checks,
// execute retain/delete/anonymize, and commit one audit log row per memory
// atomically with the whole request.
type Governance struct {
	pool      *storage.Pool
	memories  *storage.MemoryStore
	facts     *storage.FactStore
	auditLogs *storage.AuditLogStore
	log       *slog.Logger
}

func NewGovernance(pool *storage.Pool, log *slog.Logger) *Governance {
	return &Governance{
		pool:      pool,
		memories:  storage.NewMemoryStore(),
		facts:     storage.NewFactStore(),
		auditLogs: storage.NewAuditLogStore(),
		log:       log,
	}
}

// AuditMemory runs the six-step protocol. The whole request commits once;
// any failure for any memory_id rolls back the entire batch.
func (g *Governance) AuditMemory(ctx context.Context, req models.AuditMemoryRequest) ([]*models.MemoryAuditLog, error) {
	for id, decision := range req.Decisions {
		if !models.ValidAuditDecision(string(decision)) {
			return nil, apperrors.NewValidationError("decisions["+id+"]", "must be one of retain, delete, anonymize")
		}
	}

	if req.IdempotencyKey != nil && *req.IdempotencyKey != "" {
		replayed, err := g.findReplay(ctx, req)
		if err != nil {
			return nil, err
		}
		if replayed != nil {
			return replayed, nil
		}
	}

	// Lock memories in a fixed order so two concurrent multi-memory audits
	// cannot deadlock on each other's row locks.
	memoryIDs := make([]string, 0, len(req.Decisions))
	for id := range req.Decisions {
		memoryIDs = append(memoryIDs, id)
	}
	sort.Strings(memoryIDs)

	var out []*models.MemoryAuditLog
	err := storage.WithTx(ctx, g.pool.Pool, func(tx pgx.Tx) error {
		out = nil
		for _, memoryID := range memoryIDs {
			record, err := g.applyDecision(ctx, tx, req, memoryID, req.Decisions[memoryID])
			if err != nil {
				return err
			}
			out = append(out, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// findReplay returns the prior result set for an idempotency key if every
// memory_id in the request was already decided under that key
// (at-most-once semantics). A partial prior match is treated as absent —
// the caller is expected to retry the exact same request shape.
func (g *Governance) findReplay(ctx context.Context, req models.AuditMemoryRequest) ([]*models.MemoryAuditLog, error) {
	var out []*models.MemoryAuditLog
	for memoryID := range req.Decisions {
		rec, err := g.auditLogs.FindByIdempotencyKey(ctx, g.pool.Pool, req.AppName, req.UserID, memoryID, *req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, nil
		}
		out = append(out, rec)
	}
	return out, nil
}

func (g *Governance) applyDecision(ctx context.Context, tx pgx.Tx, req models.AuditMemoryRequest, memoryID string, decision models.AuditDecision) (*models.MemoryAuditLog, error) {
	// Lock the memory row first: concurrent audits on the same memory
	// serialize here, so the version read below cannot go stale between the
	// check and the audit-row insert.
	mem, err := g.memories.GetForUpdate(ctx, tx, memoryID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Row already gone. If an audit trail exists, a prior decision
			// deleted it and this caller's view is stale.
			current, verr := g.auditLogs.LatestVersion(ctx, tx, req.AppName, req.UserID, memoryID)
			if verr != nil {
				return nil, verr
			}
			if current > 0 {
				return nil, apperrors.ErrVersionConflict
			}
		}
		return nil, err
	}

	currentVersion, err := g.auditLogs.LatestVersion(ctx, tx, req.AppName, req.UserID, memoryID)
	if err != nil {
		return nil, err
	}
	if expected, ok := req.ExpectedVersions[memoryID]; ok && expected != currentVersion {
		return nil, apperrors.ErrVersionConflict
	}

	switch decision {
	case models.DecisionRetain:
		// no mutation
	case models.DecisionDelete:
		if err := g.memories.Delete(ctx, tx, memoryID); err != nil {
			return nil, err
		}
		if mem.ThreadID != nil {
			if err := g.facts.DeleteByThread(ctx, tx, req.UserID, req.AppName, *mem.ThreadID); err != nil {
				return nil, err
			}
		}
	case models.DecisionAnonymize:
		if err := g.memories.Anonymize(ctx, tx, memoryID); err != nil {
			return nil, err
		}
		if mem.ThreadID != nil {
			if err := g.facts.AnonymizeByThread(ctx, tx, req.UserID, req.AppName, *mem.ThreadID); err != nil {
				return nil, err
			}
		}
	}

	record := &models.MemoryAuditLog{
		ID:             newID(),
		AppName:        req.AppName,
		UserID:         req.UserID,
		MemoryID:       memoryID,
		Decision:       decision,
		Note:           req.Note,
		IdempotencyKey: req.IdempotencyKey,
		Version:        currentVersion + 1,
	}
	if err := g.auditLogs.Insert(ctx, tx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// History returns the decision history for one memory, used by callers
// deciding eviction or reviewing governance activity.
func (g *Governance) History(ctx context.Context, appName, userID, memoryID string) ([]*models.MemoryAuditLog, error) {
	return g.auditLogs.ListForMemory(ctx, g.pool.Pool, appName, userID, memoryID)
}
