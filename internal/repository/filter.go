package repository

import (
	"fmt"
	"strings"

	"actions-service/internal/model"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// ListFilter describes the predicate and page window for List. Nil fields are
// not part of the predicate. Every filter maps to a parameterized clause over
// a fixed column; no user-supplied identifiers reach the SQL text.
type ListFilter struct {
	OwnerID     *int
	Status      *model.Status
	MessageType *model.MessageType
	Sender      *string
	SourceMsgID *string
	MinPriority *int

	Limit  int
	Offset int
}

func (f ListFilter) normalized() ListFilter {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

func (f ListFilter) whereClause() (string, []any) {
	clauses := []string{}
	args := []any{}

	add := func(cond string, val any) {
		args = append(args, val)
		clauses = append(clauses, fmt.Sprintf(cond, len(args)))
	}

	if f.OwnerID != nil {
		add("owner_id = $%d", *f.OwnerID)
	}
	if f.Status != nil {
		add("status = $%d", string(*f.Status))
	}
	if f.MessageType != nil {
		add("message_type = $%d", string(*f.MessageType))
	}
	if f.Sender != nil {
		add("sender = $%d", *f.Sender)
	}
	if f.SourceMsgID != nil {
		add("source_msg_id = $%d", *f.SourceMsgID)
	}
	if f.MinPriority != nil {
		add("priority >= $%d", *f.MinPriority)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

// buildUpdate renders the SET clause for a partial update. updated_at is
// always stamped; an empty clause means no fields were provided.
func buildUpdate(upd *model.WorkItemUpdate) (string, []any) {
	if upd == nil || upd.Empty() {
		return "", nil
	}

	sets := []string{}
	args := []any{}

	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.Title != nil {
		add("title", *upd.Title)
	}
	if upd.Status != nil {
		add("status", string(*upd.Status))
	}
	if upd.DueAt != nil {
		add("due_at", *upd.DueAt)
	}
	if upd.Priority != nil {
		add("priority", *upd.Priority)
	}
	sets = append(sets, "updated_at = now()")

	return strings.Join(sets, ", "), args
}
