package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"actions-service/internal/model"
	"actions-service/internal/service/sync"
)

type stubClassifications struct {
	records []model.ClassificationRecord
	err     error
}

func (s *stubClassifications) GetClassifications(context.Context, string, string) ([]model.ClassificationRecord, error) {
	return s.records, s.err
}

type stubMessages struct{}

func (stubMessages) GetMessage(context.Context, string) (*model.EnrichedMessage, error) {
	return nil, errors.New("unavailable")
}

type stubStore struct {
	table  string
	nextID int
	items  map[int]model.WorkItem
}

func newStubStore(table string) *stubStore {
	return &stubStore{table: table, items: map[int]model.WorkItem{}}
}

func (s *stubStore) Create(_ context.Context, in *model.WorkItemCreate) (int, error) {
	s.nextID++
	s.items[s.nextID] = model.WorkItem{
		ID:          s.nextID,
		OwnerID:     in.OwnerID,
		SourceMsgID: in.SourceMsgID,
		Title:       in.Title,
		Status:      model.StatusOpen,
		Priority:    in.Priority,
		MessageType: in.MessageType,
		Sender:      in.Sender,
	}
	return s.nextID, nil
}

func (s *stubStore) GetByID(_ context.Context, id int) (*model.WorkItem, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &item, nil
}

func (s *stubStore) Table() string { return s.table }

func newSyncRouter(cls *stubClassifications) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := sync.NewService(cls, stubMessages{},
		newStubStore("tasks"), newStubStore("todos"), newStubStore("followups"),
		zap.NewNop())
	h := NewSyncHandler(svc, zap.NewNop())

	r := gin.New()
	r.POST("/sync", h.Sync)
	r.POST("/classifications/webhook", h.Webhook)
	r.POST("/tasks/batch", h.TaskBatch)
	return r
}

func TestSyncRequiresUserID(t *testing.T) {
	r := newSyncRouter(&stubClassifications{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sync", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "user_id required")
}

func TestSyncReturnsCounts(t *testing.T) {
	r := newSyncRouter(&stubClassifications{records: []model.ClassificationRecord{
		{ClsID: "cls-1", MsgID: "msg-1", Label: model.LabelTodo, Priority: 8},
		{ClsID: "cls-2", MsgID: "msg-2", Label: model.LabelNoise, Priority: 1},
	}})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sync?user_id=42", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var result sync.SyncResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 2, result.ClassificationsProcessed)
	assert.Equal(t, 1, result.TasksCreated)
	assert.Equal(t, 0, result.FollowupsCreated)
	assert.False(t, result.FetchFailed)
}

func TestSyncFetchFailureStillReturns200(t *testing.T) {
	r := newSyncRouter(&stubClassifications{err: errors.New("connection refused")})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sync?user_id=42", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var result sync.SyncResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.FetchFailed)
	assert.Equal(t, 0, result.ClassificationsProcessed)
}

func TestWebhookRequiresUserID(t *testing.T) {
	r := newSyncRouter(&stubClassifications{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/classifications/webhook", strings.NewReader(`[]`))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookRejectsEmptyBatch(t *testing.T) {
	r := newSyncRouter(&stubClassifications{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/classifications/webhook?user_id=42", strings.NewReader(`[]`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no messages provided")
}

func TestWebhookRejectsNonArrayBody(t *testing.T) {
	r := newSyncRouter(&stubClassifications{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/classifications/webhook?user_id=42", strings.NewReader(`{"id": "m-1"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "JSON array")
}

func TestTaskBatchCreatesEverythingAsTasks(t *testing.T) {
	r := newSyncRouter(&stubClassifications{})
	body := `[
		{"id": "m-1", "sender": "a@x.com", "classification": "todo", "task": "buy milk", "priority": 4},
		{"id": "m-2", "sender": "b@x.com", "classification": "followup", "task": "reply to John", "priority": 9},
		{"id": "m-3", "sender": "c@x.com", "classification": "noise", "task": "newsletter", "priority": 1}
	]`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tasks/batch?user_id=42", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var items []model.WorkItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 2)
	assert.Equal(t, "Buy milk", items[0].Title)
	assert.Equal(t, "Reply: John", items[1].Title)
}

func TestTaskBatchRequiresUserID(t *testing.T) {
	r := newSyncRouter(&stubClassifications{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tasks/batch", strings.NewReader(`[{"id": "m-1"}]`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "user_id required")
}

func TestWebhookProcessesBatch(t *testing.T) {
	r := newSyncRouter(&stubClassifications{})
	body := `[
		{"id": "m-1", "sender": "a@x.com", "classification": "todo", "task": "buy milk", "priority": 4},
		{"id": "m-2", "sender": "b@x.com", "classification": "followup", "task": "reply to John", "priority": 9},
		{"id": "m-3", "sender": "c@x.com", "classification": "noise", "task": "newsletter", "priority": 1}
	]`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/classifications/webhook?user_id=42", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Message string           `json:"message"`
		Created sync.BatchCounts `json:"created"`
		Items   sync.BatchItems  `json:"items"`
		Errors  []string         `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "classifications processed", resp.Message)
	assert.Equal(t, 1, resp.Created.TodosCount)
	assert.Equal(t, 1, resp.Created.FollowupsCount)
	assert.Equal(t, 0, resp.Created.TasksCount)
	require.Len(t, resp.Items.Todos, 1)
	assert.Equal(t, "Buy milk", resp.Items.Todos[0].Title)
	assert.Empty(t, resp.Errors)
}
