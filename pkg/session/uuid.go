package session

import (
	"github.com/google/uuid"

	"github.com/negentropy-ai/engine/pkg/apperrors"
)

// validateUUID fails fast on a malformed session id with invalid-argument.
// It never silently coerces or generates a replacement id: a caller sending
// a bad id has a bug worth surfacing.
func validateUUID(field, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.NewValidationError(field, "must be a valid UUID")
	}
	return nil
}

func newUUID() string { return uuid.New().String() }
