package sync

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawMessages(t *testing.T, msgs ...map[string]any) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		require.NoError(t, err)
		out = append(out, b)
	}
	return out
}

func TestProcessBatchRouting(t *testing.T) {
	f := newFixture()
	batch := rawMessages(t,
		map[string]any{"id": "m-1", "sender": "a@x.com", "classification": "todo", "task": "buy milk", "priority": 4},
		map[string]any{"id": "m-2", "sender": "b@x.com", "classification": "followup", "task": "reply to John", "priority": 10},
		map[string]any{"id": "m-3", "sender": "c@x.com", "classification": "something-new", "task": "investigate outage", "priority": 9},
		map[string]any{"id": "m-4", "sender": "d@x.com", "classification": "noise", "task": "newsletter", "priority": 1},
	)

	result := f.svc.ProcessBatch(context.Background(), batch, "42")

	assert.Equal(t, 1, result.Created.TodosCount)
	assert.Equal(t, 1, result.Created.FollowupsCount)
	assert.Equal(t, 1, result.Created.TasksCount)
	assert.Empty(t, result.Errors)

	require.Len(t, f.todos.created, 1)
	assert.Equal(t, "m-1", f.todos.created[0].SourceMsgID)
	assert.Equal(t, 2, f.todos.created[0].Priority) // 4 -> 2

	require.Len(t, f.followups.created, 1)
	assert.Equal(t, 5, f.followups.created[0].Priority) // 10 -> 5

	// unrecognized labels land in tasks, noise creates nothing anywhere
	require.Len(t, f.tasks.created, 1)
	assert.Equal(t, "m-3", f.tasks.created[0].SourceMsgID)

	require.Len(t, result.Items.Todos, 1)
	require.Len(t, result.Items.Followups, 1)
	require.Len(t, result.Items.Tasks, 1)
	assert.Positive(t, result.Items.Todos[0].ID)
}

func TestProcessBatchNormalization(t *testing.T) {
	f := newFixture()
	batch := rawMessages(t,
		map[string]any{"id": "m-1", "sender": "a@x.com", "classification": "todo", "task": "todo: send the report tomorrow", "priority": 6},
		map[string]any{"id": "m-2", "sender": "b@x.com", "classification": "followup", "task": "reply to Dana about the contract", "priority": 5},
	)

	result := f.svc.ProcessBatch(context.Background(), batch, "42")
	require.Empty(t, result.Errors)

	require.Len(t, f.todos.created, 1)
	todo := f.todos.created[0]
	assert.Equal(t, "Send the report tomorrow", todo.Title)
	require.NotNil(t, todo.DueAt)
	expected := time.Now().AddDate(0, 0, 1)
	assert.Equal(t, expected.Day(), todo.DueAt.Day())

	require.Len(t, f.followups.created, 1)
	assert.Equal(t, "Reply: Dana about the contract", f.followups.created[0].Title)
}

func TestProcessBatchMalformedElement(t *testing.T) {
	f := newFixture()
	batch := []json.RawMessage{
		json.RawMessage(`{"id": "m-1", "sender": "a@x.com",`),
		json.RawMessage(`{"id": "m-2", "sender": "b@x.com", "classification": "todo", "task": "ship it", "priority": 3}`),
		json.RawMessage(`{"id": "", "sender": "c@x.com", "classification": "todo", "task": "no id", "priority": 3}`),
	}

	result := f.svc.ProcessBatch(context.Background(), batch, "42")

	assert.Equal(t, 1, result.Created.TodosCount)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "message 0: invalid format", result.Errors[0])
	assert.Contains(t, result.Errors[1], "message 2")
	require.Len(t, f.todos.created, 1)
	assert.Equal(t, "m-2", f.todos.created[0].SourceMsgID)
}

func TestProcessBatchDefaultsMessageType(t *testing.T) {
	f := newFixture()
	batch := rawMessages(t,
		map[string]any{"id": "m-1", "sender": "a@x.com", "classification": "todo", "task": "check the logs", "priority": 2},
		map[string]any{"id": "m-2", "sender": "b@x.com", "type": "slack", "classification": "todo", "task": "check the metrics", "priority": 2},
	)

	result := f.svc.ProcessBatch(context.Background(), batch, "42")
	require.Empty(t, result.Errors)
	require.Len(t, f.todos.created, 2)
	assert.Equal(t, "email", string(f.todos.created[0].MessageType))
	assert.Equal(t, "slack", string(f.todos.created[1].MessageType))
}

func TestProcessBatchCountsMirrorItems(t *testing.T) {
	f := newFixture()
	f.todos.failGet = assert.AnError
	batch := rawMessages(t,
		map[string]any{"id": "m-1", "sender": "a@x.com", "classification": "todo", "task": "buy milk", "priority": 3},
		map[string]any{"id": "m-2", "sender": "b@x.com", "classification": "followup", "task": "reply soon", "priority": 3},
	)

	result := f.svc.ProcessBatch(context.Background(), batch, "42")

	// the todo was persisted but could not be fetched back, so it appears
	// in neither the counts nor the items
	require.Len(t, f.todos.created, 1)
	assert.Equal(t, 0, result.Created.TodosCount)
	assert.Empty(t, result.Items.Todos)
	assert.Empty(t, result.Errors)

	assert.Equal(t, 1, result.Created.FollowupsCount)
	require.Len(t, result.Items.Followups, 1)
}

func TestProcessTaskBatch(t *testing.T) {
	f := newFixture()
	batch := rawMessages(t,
		map[string]any{"id": "m-1", "sender": "a@x.com", "classification": "todo", "task": "todo: send the report tomorrow", "priority": 6},
		map[string]any{"id": "m-2", "sender": "b@x.com", "classification": "followup", "task": "ping Dana about the contract", "priority": 9},
		map[string]any{"id": "m-3", "sender": "c@x.com", "classification": "noise", "task": "newsletter", "priority": 1},
		map[string]any{"id": "m-4", "sender": "d@x.com", "classification": "something-new", "task": "investigate outage", "priority": 4},
	)

	items, errs := f.svc.ProcessTaskBatch(context.Background(), batch, "42")

	assert.Empty(t, errs)
	// everything non-noise lands in tasks, whatever the label says
	require.Len(t, items, 3)
	require.Len(t, f.tasks.created, 3)
	assert.Empty(t, f.todos.created)
	assert.Empty(t, f.followups.created)

	assert.Equal(t, "Send the report tomorrow", items[0].Title)
	require.NotNil(t, f.tasks.created[0].DueAt)
	// normalization still applies: the followup keeps its Reply: title
	assert.Equal(t, "Reply: ping Dana about the contract", items[1].Title)
	assert.Equal(t, 4, items[1].Priority) // 9 -> 4
	assert.Equal(t, "m-4", items[2].SourceMsgID)
}

func TestProcessTaskBatchMalformedElement(t *testing.T) {
	f := newFixture()
	batch := []json.RawMessage{
		json.RawMessage(`{"id": "m-1",`),
		json.RawMessage(`{"id": "m-2", "sender": "b@x.com", "classification": "todo", "task": "ship it", "priority": 3}`),
	}

	items, errs := f.svc.ProcessTaskBatch(context.Background(), batch, "42")

	require.Len(t, items, 1)
	require.Len(t, errs, 1)
	assert.Equal(t, "message 0: invalid format", errs[0])
}

func TestProcessBatchPersistError(t *testing.T) {
	f := newFixture()
	f.todos.failWith = assert.AnError
	batch := rawMessages(t,
		map[string]any{"id": "m-1", "sender": "a@x.com", "classification": "todo", "task": "doomed", "priority": 3},
		map[string]any{"id": "m-2", "sender": "b@x.com", "classification": "followup", "task": "reply soon", "priority": 3},
	)

	result := f.svc.ProcessBatch(context.Background(), batch, "42")

	assert.Equal(t, 0, result.Created.TodosCount)
	assert.Equal(t, 1, result.Created.FollowupsCount)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "message 0")
}
