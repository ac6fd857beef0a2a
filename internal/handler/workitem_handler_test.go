package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// newCRUDRouter wires the handler without a live repository; these tests only
// exercise the validation paths that reject before any query runs.
func newCRUDRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewWorkItemHandler(nil, "task", zap.NewNop())

	r := gin.New()
	r.POST("/tasks", h.Create)
	r.GET("/tasks", h.List)
	r.GET("/tasks/:id", h.Get)
	r.PUT("/tasks/:id", h.Update)
	r.DELETE("/tasks/:id", h.Delete)
	return r
}

func TestCreateRejectsInvalidBody(t *testing.T) {
	r := newCRUDRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(`not json`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(`{"owner_id": 0, "title": "x"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "owner_id")

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(`{"owner_id": 1, "title": ""}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "title")
}

func TestPathIDValidation(t *testing.T) {
	r := newCRUDRouter()

	for _, path := range []string{"/tasks/abc", "/tasks/0", "/tasks/-7"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.Contains(t, w.Body.String(), "invalid id")

		w = httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, path, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

func TestUpdateRejectsEmptyAndInvalid(t *testing.T) {
	r := newCRUDRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/tasks/1", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no fields to update")

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/tasks/1", strings.NewReader(`{"status": "archived"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/tasks/1", strings.NewReader(`{"priority": 9}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "priority")
}

func TestListFilterValidation(t *testing.T) {
	r := newCRUDRouter()

	cases := []struct {
		query string
		field string
	}{
		{"owner_id=abc", "owner_id"},
		{"status=archived", "status"},
		{"message_type=fax", "message_type"},
		{"min_priority=9", "min_priority"},
		{"min_priority=0", "min_priority"},
		{"limit=abc", "limit"},
		{"offset=abc", "offset"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tasks?"+tc.query, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, tc.query)
		assert.Contains(t, w.Body.String(), tc.field, tc.query)
	}
}
