package model

import (
	"fmt"
	"time"
)

// MaxTitleLen is the storage limit for work item titles. Longer titles are
// truncated with a "..." marker.
const MaxTitleLen = 200

type Status string

const (
	StatusOpen Status = "open"
	StatusDone Status = "done"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusOpen, StatusDone:
		return Status(s), nil
	}
	return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", s)}
}

type MessageType string

const (
	MessageTypeEmail MessageType = "email"
	MessageTypeSlack MessageType = "slack"
)

func ParseMessageType(s string) (MessageType, error) {
	switch MessageType(s) {
	case MessageTypeEmail, MessageTypeSlack:
		return MessageType(s), nil
	}
	return "", &ValidationError{Field: "message_type", Reason: fmt.Sprintf("unknown message type %q", s)}
}

// Label is the classification assigned upstream to a source message.
type Label string

const (
	LabelTodo     Label = "todo"
	LabelFollowup Label = "followup"
	LabelNoise    Label = "noise"
)

func (l Label) Known() bool {
	return l == LabelTodo || l == LabelFollowup || l == LabelNoise
}

// WorkItem is the persisted record shared by the tasks, todos and followups
// tables.
type WorkItem struct {
	ID               int         `json:"id"`
	OwnerID          int         `json:"owner_id"`
	SourceMsgID      string      `json:"source_msg_id"`
	ClassificationID *string     `json:"classification_id,omitempty"`
	Title            string      `json:"title"`
	Status           Status      `json:"status"`
	DueAt            *time.Time  `json:"due_at,omitempty"`
	Priority         int         `json:"priority"`
	MessageType      MessageType `json:"message_type"`
	Sender           string      `json:"sender"`
	Subject          *string     `json:"subject,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// WorkItemCreate carries the caller-supplied fields for an insert. Status,
// Priority and MessageType may be left zero; the repository applies defaults
// (open, 1, email).
type WorkItemCreate struct {
	OwnerID          int         `json:"owner_id"`
	SourceMsgID      string      `json:"source_msg_id"`
	ClassificationID *string     `json:"classification_id,omitempty"`
	Title            string      `json:"title"`
	Status           Status      `json:"status,omitempty"`
	DueAt            *time.Time  `json:"due_at,omitempty"`
	Priority         int         `json:"priority,omitempty"`
	MessageType      MessageType `json:"message_type,omitempty"`
	Sender           string      `json:"sender"`
	Subject          *string     `json:"subject,omitempty"`
}

func (c *WorkItemCreate) Validate() error {
	if c.OwnerID <= 0 {
		return &ValidationError{Field: "owner_id", Reason: "must be positive"}
	}
	if c.Title == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if len([]rune(c.Title)) > MaxTitleLen {
		return &ValidationError{Field: "title", Reason: fmt.Sprintf("exceeds %d characters", MaxTitleLen)}
	}
	if c.Priority < 0 || c.Priority > 5 {
		return &ValidationError{Field: "priority", Reason: "must be in [1,5]"}
	}
	if c.Status != "" {
		if _, err := ParseStatus(string(c.Status)); err != nil {
			return err
		}
	}
	if c.MessageType != "" {
		if _, err := ParseMessageType(string(c.MessageType)); err != nil {
			return err
		}
	}
	return nil
}

// WorkItemUpdate is a partial update; nil fields are left untouched.
type WorkItemUpdate struct {
	Title    *string    `json:"title,omitempty"`
	Status   *Status    `json:"status,omitempty"`
	DueAt    *time.Time `json:"due_at,omitempty"`
	Priority *int       `json:"priority,omitempty"`
}

func (u *WorkItemUpdate) Empty() bool {
	return u.Title == nil && u.Status == nil && u.DueAt == nil && u.Priority == nil
}

func (u *WorkItemUpdate) Validate() error {
	if u.Title != nil {
		if *u.Title == "" {
			return &ValidationError{Field: "title", Reason: "must not be empty"}
		}
		if len([]rune(*u.Title)) > MaxTitleLen {
			return &ValidationError{Field: "title", Reason: fmt.Sprintf("exceeds %d characters", MaxTitleLen)}
		}
	}
	if u.Status != nil {
		if _, err := ParseStatus(string(*u.Status)); err != nil {
			return err
		}
	}
	if u.Priority != nil && (*u.Priority < 1 || *u.Priority > 5) {
		return &ValidationError{Field: "priority", Reason: "must be in [1,5]"}
	}
	return nil
}

// MapPriority maps an upstream 1..10 priority onto the stored 1..5 scale:
// clamp(floor(p/2), 1, 5).
func MapPriority(p int) int {
	mapped := p / 2
	if mapped < 1 {
		return 1
	}
	if mapped > 5 {
		return 5
	}
	return mapped
}

// TruncateTitle caps a title at MaxTitleLen characters, replacing the tail
// with "..." when it does not fit.
func TruncateTitle(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxTitleLen {
		return s
	}
	return string(runes[:MaxTitleLen-3]) + "..."
}

// ValidationError reports a malformed input field. Pipeline callers record it
// per item and keep going; CRUD handlers surface it as a 400.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
