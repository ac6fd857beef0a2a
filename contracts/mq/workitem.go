package mq

import (
	"encoding/json"
	"time"
)

// RoutingKeyWorkItemCreated carries one persisted work item.
const RoutingKeyWorkItemCreated = "workitem.created"

// RoutingKeyMessageClassified carries a batch of pre-classified messages for
// the push ingestion pipeline.
const RoutingKeyMessageClassified = "message.classified"

type WorkItemCreatedPayload struct {
	Table       string    `json:"table"`
	ID          int       `json:"id"`
	OwnerID     int       `json:"owner_id"`
	SourceMsgID string    `json:"source_msg_id"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"created_at"`
}

// Messages stay raw so one malformed element cannot fail decoding of the
// whole batch.
type MessageClassifiedPayload struct {
	UserID   string            `json:"user_id"`
	Messages []json.RawMessage `json:"messages"`
}
