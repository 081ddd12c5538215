package models

import "time"

// Credential is a per-(app,user,key) opaque JSON payload.
type Credential struct {
	AppName        string    `json:"app_name"`
	UserID         string    `json:"user_id"`
	CredentialKey  string    `json:"credential_key"`
	CredentialData JSONMap   `json:"credential_data"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UpsertCredentialRequest is the input to CredentialStore.Upsert.
type UpsertCredentialRequest struct {
	AppName        string
	UserID         string
	CredentialKey  string
	CredentialData JSONMap
}

// Artifact is an opaque binary blob's storage record.
type Artifact struct {
	ID          string    `json:"id"`
	AppName     string    `json:"app_name"`
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size"`
	URI         string    `json:"uri"`
	CreatedAt   time.Time `json:"created_at"`
}
