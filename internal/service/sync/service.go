package sync

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"time"

	"go.uber.org/zap"

	mqcontracts "actions-service/contracts/mq"
	"actions-service/internal/model"
	"actions-service/pkg/metrics"
)

// ClassificationFetcher pulls classification records for one user.
type ClassificationFetcher interface {
	GetClassifications(ctx context.Context, userID, label string) ([]model.ClassificationRecord, error)
}

// MessageFetcher looks up full message content for enrichment.
type MessageFetcher interface {
	GetMessage(ctx context.Context, messageID string) (*model.EnrichedMessage, error)
}

// ItemStore is the slice of the repository the pipelines need.
type ItemStore interface {
	Create(ctx context.Context, in *model.WorkItemCreate) (int, error)
	GetByID(ctx context.Context, id int) (*model.WorkItem, error)
	Table() string
}

// EventPublisher emits domain events after successful persistence.
type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

// Deduper suppresses repeat persistence of the same upstream record.
type Deduper interface {
	AcquireOnce(ctx context.Context, scope, key string) bool
}

// Service drives both ingestion pipelines: the pull sync against the
// classification service and the push batch from webhook or queue. Records
// are processed sequentially and one bad record never aborts the batch.
type Service struct {
	classifications ClassificationFetcher
	messages        MessageFetcher
	tasks           ItemStore
	todos           ItemStore
	followups       ItemStore
	logger          *zap.Logger

	// optional collaborators, nil when the deployment does not carry them
	deduper   Deduper
	publisher EventPublisher
}

func NewService(
	classifications ClassificationFetcher,
	messages MessageFetcher,
	tasks, todos, followups ItemStore,
	logger *zap.Logger,
) *Service {
	return &Service{
		classifications: classifications,
		messages:        messages,
		tasks:           tasks,
		todos:           todos,
		followups:       followups,
		logger:          logger,
	}
}

// SetDeduper enables the opt-in duplicate suppression policy.
func (s *Service) SetDeduper(d Deduper) { s.deduper = d }

// SetPublisher enables workitem.created event emission.
func (s *Service) SetPublisher(p EventPublisher) { s.publisher = p }

// SyncResult aggregates one pull-sync run. FetchFailed distinguishes "the
// upstream fetch failed" from "the owner genuinely has no classifications";
// both yield zero counts.
type SyncResult struct {
	ClassificationsProcessed int      `json:"classifications_processed"`
	TasksCreated             int      `json:"tasks_created"`
	FollowupsCreated         int      `json:"followups_created"`
	FetchFailed              bool     `json:"fetch_failed,omitempty"`
	Errors                   []string `json:"errors,omitempty"`
}

// SyncForOwner runs the pull pipeline for one owner identifier. The pull
// path routes todo-labeled records to tasks and followup-labeled records to
// followups; the todos table is only fed by the push pipeline.
func (s *Service) SyncForOwner(ctx context.Context, owner string) *SyncResult {
	result := &SyncResult{}
	ownerID := ResolveOwnerID(owner)

	records, err := s.classifications.GetClassifications(ctx, owner, "")
	if err != nil {
		s.logger.Warn("Classification fetch failed, returning empty sync result",
			zap.String("owner", owner),
			zap.Error(err),
		)
		result.FetchFailed = true
		return result
	}

	s.logger.Info("Processing classifications",
		zap.String("owner", owner),
		zap.Int("owner_id", ownerID),
		zap.Int("count", len(records)),
	)

	for _, rec := range records {
		result.ClassificationsProcessed++

		if err := rec.Validate(); err != nil {
			s.logger.Warn("Skipping malformed classification record",
				zap.String("cls_id", rec.ClsID),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", rec.ClsID, err))
			metrics.IncrementClassificationsProcessed("pull", "error")
			continue
		}

		if rec.Label == model.LabelNoise {
			metrics.IncrementClassificationsProcessed("pull", "noise")
			continue
		}

		var store ItemStore
		switch rec.Label {
		case model.LabelTodo:
			store = s.tasks
		case model.LabelFollowup:
			store = s.followups
		}

		if s.isDuplicate(ctx, store.Table(), ownerID, rec.MsgID) {
			metrics.IncrementClassificationsProcessed("pull", "duplicate")
			continue
		}

		enriched := s.enrich(ctx, rec.MsgID)
		clsID := rec.ClsID
		item := &model.WorkItemCreate{
			OwnerID:          ownerID,
			SourceMsgID:      rec.MsgID,
			ClassificationID: &clsID,
			Title:            deriveTitle(enriched, rec.ClsID),
			Status:           model.StatusOpen,
			Priority:         model.MapPriority(rec.Priority),
			MessageType:      enriched.Type,
			Sender:           enriched.Sender,
			Subject:          enriched.Subject,
		}

		id, err := store.Create(ctx, item)
		if err != nil {
			s.logger.Warn("Failed to persist work item",
				zap.String("cls_id", rec.ClsID),
				zap.String("table", store.Table()),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", rec.ClsID, err))
			metrics.IncrementClassificationsProcessed("pull", "error")
			continue
		}

		switch rec.Label {
		case model.LabelTodo:
			result.TasksCreated++
		case model.LabelFollowup:
			result.FollowupsCreated++
		}
		metrics.IncrementClassificationsProcessed("pull", "created")
		metrics.IncrementWorkItemsCreated(store.Table())
		s.publishCreated(store.Table(), id, item)
	}

	s.logger.Info("Sync completed",
		zap.String("owner", owner),
		zap.Int("processed", result.ClassificationsProcessed),
		zap.Int("tasks_created", result.TasksCreated),
		zap.Int("followups_created", result.FollowupsCreated),
		zap.Int("errors", len(result.Errors)),
	)
	return result
}

// enrich is best-effort: any failure falls back to an empty email-typed
// message instead of failing the record.
func (s *Service) enrich(ctx context.Context, messageID string) *model.EnrichedMessage {
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		s.logger.Debug("Enrichment unavailable, proceeding with empty message",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
		metrics.IncrementEnrichmentFailures()
		return &model.EnrichedMessage{Type: model.MessageTypeEmail}
	}
	if msg.Type == "" {
		msg.Type = model.MessageTypeEmail
	}
	return msg
}

const bodyTitleLen = 100

// deriveTitle prefers the enriched subject, then a body excerpt, then a
// generic title carrying a classification id prefix.
func deriveTitle(enriched *model.EnrichedMessage, clsID string) string {
	if enriched.Subject != nil && *enriched.Subject != "" {
		return model.TruncateTitle(*enriched.Subject)
	}
	if enriched.Body != nil && *enriched.Body != "" {
		runes := []rune(*enriched.Body)
		if len(runes) > bodyTitleLen {
			return string(runes[:bodyTitleLen]) + "..."
		}
		return *enriched.Body
	}
	prefix := clsID
	if runes := []rune(prefix); len(runes) > 8 {
		prefix = string(runes[:8])
	}
	return fmt.Sprintf("Task from classification %s", prefix)
}

func (s *Service) isDuplicate(ctx context.Context, table string, ownerID int, sourceMsgID string) bool {
	if s.deduper == nil {
		return false
	}
	return !s.deduper.AcquireOnce(ctx, table, fmt.Sprintf("%d:%s", ownerID, sourceMsgID))
}

func (s *Service) publishCreated(table string, id int, item *model.WorkItemCreate) {
	if s.publisher == nil {
		return
	}
	payload := mqcontracts.WorkItemCreatedPayload{
		Table:       table,
		ID:          id,
		OwnerID:     item.OwnerID,
		SourceMsgID: item.SourceMsgID,
		Title:       item.Title,
		CreatedAt:   time.Now(),
	}
	if err := s.publisher.Publish(mqcontracts.RoutingKeyWorkItemCreated, payload); err != nil {
		s.logger.Warn("Failed to publish workitem.created event",
			zap.String("table", table),
			zap.Int("id", id),
			zap.Error(err),
		)
	}
}

// ResolveOwnerID maps a caller-supplied owner identifier to the internal
// numeric key. Numeric identifiers pass through; anything else hashes to a
// stable positive bucket. Lossy but deterministic, not a security mechanism.
func ResolveOwnerID(owner string) int {
	if n, err := strconv.Atoi(owner); err == nil && n > 0 {
		return n
	}
	h := fnv.New32a()
	h.Write([]byte(owner))
	return int(h.Sum32() & 0x7fffffff)
}
