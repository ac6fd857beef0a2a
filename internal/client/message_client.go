package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"actions-service/internal/model"
	"actions-service/pkg/circuitbreaker"
	"actions-service/pkg/metrics"
)

const messageTimeout = 10 * time.Second

// ErrMessageNotFound means the message service has no record for the id.
var ErrMessageNotFound = errors.New("message not found")

// MessageClient looks up full message content from the message service. All
// failures are non-fatal to callers: the sync pipeline falls back to empty
// enrichment. Calls run under a circuit breaker so a downed message service
// fails fast instead of costing the full timeout per record.
type MessageClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
}

func NewMessageClient(baseURL string, logger *zap.Logger) *MessageClient {
	return &MessageClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: messageTimeout,
		},
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig()),
		logger:  logger,
	}
}

func (c *MessageClient) GetMessage(ctx context.Context, messageID string) (*model.EnrichedMessage, error) {
	var msg *model.EnrichedMessage
	err := c.breaker.Execute(func() error {
		var err error
		msg, err = c.getMessage(ctx, messageID)
		if errors.Is(err, ErrMessageNotFound) {
			// a 404 is a healthy response, not a dependency failure
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	return msg, nil
}

func (c *MessageClient) getMessage(ctx context.Context, messageID string) (*model.EnrichedMessage, error) {
	reqURL := c.baseURL + "/messages/" + url.PathEscape(messageID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstreamCallDuration("message", "error", time.Since(start))
		c.logger.Warn("Message fetch failed",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("message service request failed: %w", err)
	}
	defer resp.Body.Close()

	metrics.RecordUpstreamCallDuration("message", strconv.Itoa(resp.StatusCode), time.Since(start))

	switch {
	case resp.StatusCode == http.StatusOK:
		var msg model.EnrichedMessage
		if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		if msg.Type == "" {
			msg.Type = model.MessageTypeEmail
		}
		return &msg, nil
	case resp.StatusCode == http.StatusNotFound:
		c.logger.Debug("Message not found", zap.String("message_id", messageID))
		return nil, ErrMessageNotFound
	default:
		return nil, fmt.Errorf("message service returned %d", resp.StatusCode)
	}
}
