package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"actions-service/internal/model"
	"actions-service/pkg/metrics"
)

// BatchCounts reports how many items the push pipeline created per type.
type BatchCounts struct {
	TasksCount     int `json:"tasks_count"`
	TodosCount     int `json:"todos_count"`
	FollowupsCount int `json:"followups_count"`
}

// BatchItems holds the created records grouped by type.
type BatchItems struct {
	Tasks     []model.WorkItem `json:"tasks"`
	Todos     []model.WorkItem `json:"todos"`
	Followups []model.WorkItem `json:"followups"`
}

// BatchResult aggregates one push-pipeline run.
type BatchResult struct {
	Created BatchCounts `json:"created"`
	Items   BatchItems  `json:"items"`
	Errors  []string    `json:"errors,omitempty"`
}

// ProcessBatch runs the push pipeline over a batch of pre-classified
// messages. Unlike the pull path it derives due dates and titles from the
// task text, and routes todo to the todos table, followup to followups, and
// everything else (including unrecognized labels) to tasks. A malformed
// element never aborts the rest of the batch.
func (s *Service) ProcessBatch(ctx context.Context, rawMessages []json.RawMessage, owner string) *BatchResult {
	result := &BatchResult{
		Items: BatchItems{
			Tasks:     []model.WorkItem{},
			Todos:     []model.WorkItem{},
			Followups: []model.WorkItem{},
		},
	}
	ownerID := ResolveOwnerID(owner)
	now := time.Now()

	for i, raw := range rawMessages {
		var msg model.IncomingMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Warn("Skipping undecodable message",
				zap.Int("index", i),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, fmt.Sprintf("message %d: invalid format", i))
			metrics.IncrementClassificationsProcessed("push", "error")
			continue
		}
		if err := msg.Validate(); err != nil {
			s.logger.Warn("Skipping invalid message",
				zap.Int("index", i),
				zap.String("msg_id", msg.ID),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, fmt.Sprintf("message %d: %v", i, err))
			metrics.IncrementClassificationsProcessed("push", "error")
			continue
		}

		if msg.Classification == model.LabelNoise {
			metrics.IncrementClassificationsProcessed("push", "noise")
			continue
		}

		var store ItemStore
		switch msg.Classification {
		case model.LabelTodo:
			store = s.todos
		case model.LabelFollowup:
			store = s.followups
		default:
			// tasks absorb anything the classifier did not recognize
			store = s.tasks
		}

		if s.isDuplicate(ctx, store.Table(), ownerID, msg.ID) {
			metrics.IncrementClassificationsProcessed("push", "duplicate")
			continue
		}

		messageType := msg.Type
		if messageType == "" {
			messageType = model.MessageTypeEmail
		}
		item := &model.WorkItemCreate{
			OwnerID:     ownerID,
			SourceMsgID: msg.ID,
			Title:       CleanTitle(msg.Task, msg.Classification),
			Status:      model.StatusOpen,
			DueAt:       ExtractDueDate(msg.Task, now),
			Priority:    model.MapPriority(msg.Priority),
			MessageType: messageType,
			Sender:      msg.Sender,
			Subject:     msg.Subject,
		}

		id, err := store.Create(ctx, item)
		if err != nil {
			s.logger.Warn("Failed to persist work item",
				zap.String("msg_id", msg.ID),
				zap.String("table", store.Table()),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, fmt.Sprintf("message %d: %v", i, err))
			metrics.IncrementClassificationsProcessed("push", "error")
			continue
		}

		metrics.IncrementClassificationsProcessed("push", "created")
		metrics.IncrementWorkItemsCreated(store.Table())
		s.publishCreated(store.Table(), id, item)

		// counts mirror the returned items: an item that cannot be fetched
		// back is persisted but not reported
		created, err := store.GetByID(ctx, id)
		if err != nil {
			s.logger.Warn("Created item could not be fetched back",
				zap.String("table", store.Table()),
				zap.Int("id", id),
				zap.Error(err),
			)
			continue
		}
		switch store.Table() {
		case s.tasks.Table():
			result.Created.TasksCount++
			result.Items.Tasks = append(result.Items.Tasks, *created)
		case s.todos.Table():
			result.Created.TodosCount++
			result.Items.Todos = append(result.Items.Todos, *created)
		case s.followups.Table():
			result.Created.FollowupsCount++
			result.Items.Followups = append(result.Items.Followups, *created)
		}
	}

	s.logger.Info("Batch processed",
		zap.String("owner", owner),
		zap.Int("owner_id", ownerID),
		zap.Int("messages", len(rawMessages)),
		zap.Int("tasks_created", result.Created.TasksCount),
		zap.Int("todos_created", result.Created.TodosCount),
		zap.Int("followups_created", result.Created.FollowupsCount),
		zap.Int("errors", len(result.Errors)),
	)
	return result
}

// ProcessTaskBatch normalizes a batch of pre-classified messages and creates
// every non-noise item in the tasks table, regardless of label. This is the
// bulk intake behind POST /tasks/batch; followup-labeled items still get
// their Reply: title but are not routed to the followups table.
func (s *Service) ProcessTaskBatch(ctx context.Context, rawMessages []json.RawMessage, owner string) ([]model.WorkItem, []string) {
	created := []model.WorkItem{}
	var errs []string
	ownerID := ResolveOwnerID(owner)
	now := time.Now()

	for i, raw := range rawMessages {
		var msg model.IncomingMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Warn("Skipping undecodable message",
				zap.Int("index", i),
				zap.Error(err),
			)
			errs = append(errs, fmt.Sprintf("message %d: invalid format", i))
			metrics.IncrementClassificationsProcessed("batch", "error")
			continue
		}
		if err := msg.Validate(); err != nil {
			s.logger.Warn("Skipping invalid message",
				zap.Int("index", i),
				zap.String("msg_id", msg.ID),
				zap.Error(err),
			)
			errs = append(errs, fmt.Sprintf("message %d: %v", i, err))
			metrics.IncrementClassificationsProcessed("batch", "error")
			continue
		}

		if msg.Classification == model.LabelNoise {
			metrics.IncrementClassificationsProcessed("batch", "noise")
			continue
		}

		if s.isDuplicate(ctx, s.tasks.Table(), ownerID, msg.ID) {
			metrics.IncrementClassificationsProcessed("batch", "duplicate")
			continue
		}

		messageType := msg.Type
		if messageType == "" {
			messageType = model.MessageTypeEmail
		}
		item := &model.WorkItemCreate{
			OwnerID:     ownerID,
			SourceMsgID: msg.ID,
			Title:       CleanTitle(msg.Task, msg.Classification),
			Status:      model.StatusOpen,
			DueAt:       ExtractDueDate(msg.Task, now),
			Priority:    model.MapPriority(msg.Priority),
			MessageType: messageType,
			Sender:      msg.Sender,
			Subject:     msg.Subject,
		}

		id, err := s.tasks.Create(ctx, item)
		if err != nil {
			s.logger.Warn("Failed to persist task",
				zap.String("msg_id", msg.ID),
				zap.Error(err),
			)
			errs = append(errs, fmt.Sprintf("message %d: %v", i, err))
			metrics.IncrementClassificationsProcessed("batch", "error")
			continue
		}
		metrics.IncrementClassificationsProcessed("batch", "created")
		metrics.IncrementWorkItemsCreated(s.tasks.Table())
		s.publishCreated(s.tasks.Table(), id, item)

		if got, err := s.tasks.GetByID(ctx, id); err == nil {
			created = append(created, *got)
		}
	}

	s.logger.Info("Task batch processed",
		zap.String("owner", owner),
		zap.Int("owner_id", ownerID),
		zap.Int("messages", len(rawMessages)),
		zap.Int("tasks_created", len(created)),
		zap.Int("errors", len(errs)),
	)
	return created, errs
}
