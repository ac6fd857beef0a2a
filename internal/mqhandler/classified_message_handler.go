package mqhandler

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	mqcontracts "actions-service/contracts/mq"
	"actions-service/internal/service/sync"
)

// ClassifiedMessageHandler feeds message.classified events into the push
// ingestion pipeline. Per-message validation failures are absorbed by the
// pipeline; only an undecodable envelope is returned as an error.
type ClassifiedMessageHandler struct {
	svc    *sync.Service
	logger *zap.Logger
}

func NewClassifiedMessageHandler(svc *sync.Service, logger *zap.Logger) *ClassifiedMessageHandler {
	return &ClassifiedMessageHandler{svc: svc, logger: logger}
}

func (h *ClassifiedMessageHandler) HandleMessageClassified(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.MessageClassifiedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal message.classified payload", zap.Error(err))
		return err
	}

	h.logger.Info("Processing classified message batch",
		zap.String("user_id", p.UserID),
		zap.Int("messages", len(p.Messages)),
	)

	result := h.svc.ProcessBatch(ctx, p.Messages, p.UserID)
	if len(result.Errors) > 0 {
		h.logger.Warn("Batch completed with per-message errors",
			zap.String("user_id", p.UserID),
			zap.Strings("errors", result.Errors),
		)
	}
	return nil
}
