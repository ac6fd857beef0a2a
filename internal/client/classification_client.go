package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"actions-service/internal/model"
	"actions-service/pkg/metrics"
)

const classificationTimeout = 30 * time.Second

// ClassificationClient pulls classification records from the classification
// service.
type ClassificationClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClassificationClient(baseURL string, logger *zap.Logger) *ClassificationClient {
	return &ClassificationClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: classificationTimeout,
		},
		logger: logger,
	}
}

// GetClassifications fetches classifications for a user, optionally filtered
// by label. Any transport failure, timeout or non-200 response is an error;
// the sync layer maps it to an empty result.
func (c *ClassificationClient) GetClassifications(ctx context.Context, userID, label string) ([]model.ClassificationRecord, error) {
	params := url.Values{}
	if userID != "" {
		params.Set("user_id", userID)
	}
	if label != "" {
		params.Set("label", label)
	}

	reqURL := c.baseURL + "/classifications"
	if encoded := params.Encode(); encoded != "" {
		reqURL += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstreamCallDuration("classification", "error", time.Since(start))
		c.logger.Warn("Classification fetch failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("classification service request failed: %w", err)
	}
	defer resp.Body.Close()

	metrics.RecordUpstreamCallDuration("classification", strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Classification service returned non-200",
			zap.String("user_id", userID),
			zap.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("classification service returned %d", resp.StatusCode)
	}

	var records []model.ClassificationRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode classifications: %w", err)
	}
	return records, nil
}
