package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"actions-service/internal/model"
	"actions-service/internal/storage"
	"actions-service/pkg/metrics"
)

var (
	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("work item not found")
	// ErrConstraintViolation means the insert or update broke a table
	// constraint (class 23 integrity errors).
	ErrConstraintViolation = errors.New("constraint violation")
)

const (
	TableTasks     = "tasks"
	TableTodos     = "todos"
	TableFollowups = "followups"
)

const workItemColumns = `id, owner_id, source_msg_id, classification_id, title, status, due_at,
       priority, message_type, sender, subject, created_at, updated_at`

// WorkItemRepository provides CRUD and filtered listing over one of the three
// structurally identical work item tables. The table name comes from the
// fixed set above, never from user input.
type WorkItemRepository struct {
	store  *storage.Store
	table  string
	logger *zap.Logger
}

func NewWorkItemRepository(store *storage.Store, table string, logger *zap.Logger) *WorkItemRepository {
	return &WorkItemRepository{store: store, table: table, logger: logger}
}

func (r *WorkItemRepository) Table() string { return r.table }

// Create inserts a new work item and returns its generated id. Unset status,
// priority and message type default to open, 1 and email.
func (r *WorkItemRepository) Create(ctx context.Context, in *model.WorkItemCreate) (int, error) {
	status := in.Status
	if status == "" {
		status = model.StatusOpen
	}
	priority := in.Priority
	if priority == 0 {
		priority = 1
	}
	messageType := in.MessageType
	if messageType == "" {
		messageType = model.MessageTypeEmail
	}

	start := time.Now()
	conn, err := r.store.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
        INSERT INTO %s (owner_id, source_msg_id, classification_id, title, status, due_at, priority, message_type, sender, subject)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING id
    `, r.table)

	var id int
	err = tx.QueryRow(ctx, query,
		in.OwnerID,
		in.SourceMsgID,
		in.ClassificationID,
		in.Title,
		string(status),
		in.DueAt,
		priority,
		string(messageType),
		in.Sender,
		in.Subject,
	).Scan(&id)
	if err != nil {
		r.logger.Error("Failed to insert work item",
			zap.String("table", r.table),
			zap.Int("owner_id", in.OwnerID),
			zap.Error(err),
		)
		return 0, classifyError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}

	metrics.RecordDBQueryDuration("insert", r.table, time.Since(start))
	r.logger.Info("Work item created",
		zap.String("table", r.table),
		zap.Int("id", id),
		zap.Int("owner_id", in.OwnerID),
	)
	return id, nil
}

// GetByID fetches a single work item. ErrNotFound covers an absent row;
// storage.ErrStoreUnavailable covers a degraded store.
func (r *WorkItemRepository) GetByID(ctx context.Context, id int) (*model.WorkItem, error) {
	start := time.Now()
	conn, err := r.store.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, workItemColumns, r.table)

	var item model.WorkItem
	err = conn.QueryRow(ctx, query, id).Scan(
		&item.ID,
		&item.OwnerID,
		&item.SourceMsgID,
		&item.ClassificationID,
		&item.Title,
		&item.Status,
		&item.DueAt,
		&item.Priority,
		&item.MessageType,
		&item.Sender,
		&item.Subject,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to fetch work item",
			zap.String("table", r.table),
			zap.Int("id", id),
			zap.Error(err),
		)
		return nil, err
	}

	metrics.RecordDBQueryDuration("select", r.table, time.Since(start))
	return &item, nil
}

// List runs a count query and a page query over the same predicate and
// returns the page plus the unpaginated total. Ordering is priority
// descending then due_at ascending with nulls last.
func (r *WorkItemRepository) List(ctx context.Context, f ListFilter) ([]model.WorkItem, int, error) {
	f = f.normalized()
	where, args := f.whereClause()

	start := time.Now()
	conn, err := r.store.Acquire(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer conn.Release()

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s %s`, r.table, where)
	var total int
	if err := conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count work items",
			zap.String("table", r.table),
			zap.Error(err),
		)
		return nil, 0, err
	}

	pageQuery := fmt.Sprintf(`
        SELECT %s FROM %s %s
        ORDER BY priority DESC, due_at ASC NULLS LAST
        LIMIT $%d OFFSET $%d
    `, workItemColumns, r.table, where, len(args)+1, len(args)+2)
	pageArgs := append(args, f.Limit, f.Offset)

	rows, err := conn.Query(ctx, pageQuery, pageArgs...)
	if err != nil {
		r.logger.Error("Failed to query work items",
			zap.String("table", r.table),
			zap.Error(err),
		)
		return nil, 0, err
	}
	defer rows.Close()

	items := []model.WorkItem{}
	for rows.Next() {
		var item model.WorkItem
		if err := rows.Scan(
			&item.ID,
			&item.OwnerID,
			&item.SourceMsgID,
			&item.ClassificationID,
			&item.Title,
			&item.Status,
			&item.DueAt,
			&item.Priority,
			&item.MessageType,
			&item.Sender,
			&item.Subject,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	metrics.RecordDBQueryDuration("list", r.table, time.Since(start))
	return items, total, nil
}

// Update applies the provided fields and stamps updated_at. It reports false
// when no fields were given, the row is absent, or the store is unavailable.
func (r *WorkItemRepository) Update(ctx context.Context, id int, upd *model.WorkItemUpdate) (bool, error) {
	set, args := buildUpdate(upd)
	if set == "" {
		return false, nil
	}

	start := time.Now()
	conn, err := r.store.Acquire(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d`, r.table, set, len(args)+1)
	args = append(args, id)

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update work item",
			zap.String("table", r.table),
			zap.Int("id", id),
			zap.Error(err),
		)
		return false, classifyError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}

	metrics.RecordDBQueryDuration("update", r.table, time.Since(start))
	return tag.RowsAffected() > 0, nil
}

// Delete removes a work item. False means the row was absent or the store is
// unavailable.
func (r *WorkItemRepository) Delete(ctx context.Context, id int) (bool, error) {
	start := time.Now()
	conn, err := r.store.Acquire(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table)
	tag, err := tx.Exec(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to delete work item",
			zap.String("table", r.table),
			zap.Int("id", id),
			zap.Error(err),
		)
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}

	metrics.RecordDBQueryDuration("delete", r.table, time.Since(start))
	return tag.RowsAffected() > 0, nil
}

func classifyError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) == 5 && pgErr.Code[:2] == "23" {
		return fmt.Errorf("%w: %s", ErrConstraintViolation, pgErr.Message)
	}
	return err
}
