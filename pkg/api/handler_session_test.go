package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negentropy-ai/engine/pkg/models"
	"github.com/negentropy-ai/engine/pkg/session"
)

func newTestServer(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := NewServer(ServerDeps{
		Sessions: session.NewMemoryStore(session.NewLocalTempCache(), nil, nil),
	})
	return s, s.Router()
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-App-Name", "app1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createThread(t *testing.T, r http.Handler) models.Thread {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/sessions", gin.H{"user_id": "u1", "state": gin.H{"k": "v"}})
	require.Equal(t, http.StatusCreated, w.Code)
	var thread models.Thread
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &thread))
	return thread
}

func TestSessionEndpoints_CreateGetDelete(t *testing.T) {
	_, r := newTestServer(t)
	thread := createThread(t, r)

	w := doJSON(t, r, http.MethodGet, fmt.Sprintf("/sessions/%s?user_id=u1", thread.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got sessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, thread.ID, got.Thread.ID)
	assert.Equal(t, "v", got.Thread.State["k"])

	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/sessions/%s?user_id=u1", thread.ID), nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/sessions/%s?user_id=u1", thread.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionEndpoints_AppendEventRoutesState(t *testing.T) {
	_, r := newTestServer(t)
	thread := createThread(t, r)

	w := doJSON(t, r, http.MethodPost, "/sessions/"+thread.ID+"/events", gin.H{
		"user_id":    "u1",
		"author":     "user",
		"event_type": "message",
		"content":    gin.H{"type": "text", "text": "hi"},
		"state_delta": gin.H{
			"topic":     "greeting",
			"temp:x":    9,
			"user:pref": "dark",
		},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var event models.Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &event))
	assert.Equal(t, int64(1), event.SequenceNum)

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/sessions/%s?user_id=u1", thread.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got sessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "greeting", got.Thread.State["topic"])
	_, hasTemp := got.Thread.State["temp:x"]
	assert.False(t, hasTemp, "temp: keys never reach the thread state")
}

func TestSessionEndpoints_InvalidAuthorRejected(t *testing.T) {
	_, r := newTestServer(t)
	thread := createThread(t, r)

	w := doJSON(t, r, http.MethodPost, "/sessions/"+thread.ID+"/events", gin.H{
		"user_id": "u1",
		"author":  "robot",
		"content": gin.H{"type": "text", "text": "hi"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "INVALID_ARGUMENT", body.Code)
}

func TestSessionEndpoints_BadUUIDRejected(t *testing.T) {
	_, r := newTestServer(t)

	w := doJSON(t, r, http.MethodGet, "/sessions/not-a-uuid?user_id=u1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionEndpoints_ListReturnsCreated(t *testing.T) {
	_, r := newTestServer(t)
	createThread(t, r)
	createThread(t, r)

	w := doJSON(t, r, http.MethodGet, "/sessions?user_id=u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Items []*models.Thread `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Items, 2)
}

func TestRequestContextMiddleware_EchoesRequestID(t *testing.T) {
	_, r := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/sessions?user_id=u1", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}
