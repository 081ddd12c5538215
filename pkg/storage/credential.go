package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/negentropy-ai/engine/pkg/apperrors"
	"github.com/negentropy-ai/engine/pkg/models"
)

// CredentialStore is the hand-written SQL DAL for opaque per-(app,user,key)
// credential payloads.
type CredentialStore struct{}

func NewCredentialStore() *CredentialStore { return &CredentialStore{} }

const credentialColumns = "app_name, user_id, credential_key, credential_data, updated_at"

func scanCredential(row pgx.Row) (*models.Credential, error) {
	var c models.Credential
	if err := row.Scan(&c.AppName, &c.UserID, &c.CredentialKey, jsonColumn(&c.CredentialData), &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.NewDatabaseError("scan credential", err)
	}
	return &c, nil
}

// Upsert writes or overwrites the credential payload for
// (app_name, user_id, credential_key).
func (s *CredentialStore) Upsert(ctx context.Context, db DBTX, c *models.Credential) error {
	data, err := jsonValue(c.CredentialData)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `
		INSERT INTO credentials (app_name, user_id, credential_key, credential_data, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (app_name, user_id, credential_key) DO UPDATE SET credential_data=$4, updated_at=now()
	`, c.AppName, c.UserID, c.CredentialKey, data)
	if err != nil {
		return apperrors.NewDatabaseError("upsert credential", err)
	}
	return nil
}

// Get fetches a credential by its full key.
func (s *CredentialStore) Get(ctx context.Context, db DBTX, appName, userID, key string) (*models.Credential, error) {
	row := db.QueryRow(ctx, `
		SELECT `+credentialColumns+` FROM credentials WHERE app_name=$1 AND user_id=$2 AND credential_key=$3
	`, appName, userID, key)
	return scanCredential(row)
}

// Delete removes a credential by its full key.
func (s *CredentialStore) Delete(ctx context.Context, db DBTX, appName, userID, key string) error {
	tag, err := db.Exec(ctx, `
		DELETE FROM credentials WHERE app_name=$1 AND user_id=$2 AND credential_key=$3
	`, appName, userID, key)
	if err != nil {
		return apperrors.NewDatabaseError("delete credential", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
