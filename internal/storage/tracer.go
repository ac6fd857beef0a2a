package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"actions-service/pkg/metrics"
)

const slowQueryThreshold = 100 * time.Millisecond

type queryInfoKey struct{}

type queryInfo struct {
	start time.Time
	sql   string
}

// slowQueryTracer logs queries that exceed slowQueryThreshold. pgx does not
// carry the SQL text into the end-of-query callback, so it travels through
// the context.
type slowQueryTracer struct {
	logger    *zap.Logger
	threshold time.Duration
}

func newSlowQueryTracer(logger *zap.Logger, threshold time.Duration) *slowQueryTracer {
	if threshold <= 0 {
		threshold = slowQueryThreshold
	}
	return &slowQueryTracer{logger: logger, threshold: threshold}
}

func (t *slowQueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryInfoKey{}, queryInfo{start: time.Now(), sql: data.SQL})
}

func (t *slowQueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	info, ok := ctx.Value(queryInfoKey{}).(queryInfo)
	if !ok {
		return
	}
	took := time.Since(info.start)
	if took < t.threshold {
		return
	}

	sql := info.sql
	if len(sql) > 200 {
		sql = sql[:200] + "..."
	}
	t.logger.Warn("Slow query",
		zap.String("sql", sql),
		zap.Duration("took", took),
		zap.String("command_tag", data.CommandTag.String()),
	)
	metrics.IncrementSlowQueries()
}
