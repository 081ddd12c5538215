package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negentropy-ai/engine/pkg/apperrors"
)

func respondWith(t *testing.T, err error) (*httptest.ResponseRecorder, errorResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := &Server{}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)
	s.respondError(c, err)

	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestRespondError_StatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", apperrors.NewValidationError("mode", "bad mode"), http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"not found", apperrors.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"version conflict", apperrors.ErrVersionConflict, http.StatusConflict, "VERSION_CONFLICT"},
		{"already exists", apperrors.ErrAlreadyExists, http.StatusConflict, "ALREADY_EXISTS"},
		{"embedding failed", apperrors.NewInfrastructureError("embedding-failed", errors.New("down")), http.StatusInternalServerError, "EMBEDDING_FAILED"},
		{"database", apperrors.NewDatabaseError("insert", errors.New("io")), http.StatusInternalServerError, "DATABASE_ERROR"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, body := respondWith(t, tc.err)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, body.Code)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestRespondError_ValidationCarriesField(t *testing.T) {
	_, body := respondWith(t, apperrors.NewValidationError("semantic_weight", "must be between 0 and 1"))
	require.NotNil(t, body.Details)
	assert.Equal(t, "semantic_weight", body.Details["field"])
	assert.Equal(t, "must be between 0 and 1", body.Message)
}

func TestRespondError_InternalHidesCause(t *testing.T) {
	_, body := respondWith(t, errors.New("pq: secret connection string"))
	assert.Equal(t, "internal error", body.Message)
}
