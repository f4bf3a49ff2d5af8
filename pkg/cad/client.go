// Package cad integrates with the external CAD processing service that
// extracts geometry and PMI from uploaded STEP files. The handoff is
// asynchronous: the service acknowledges the request immediately and
// reports progress by writing pmi_* fields back into the part's metadata,
// which the engine observes through the change notifier.
package cad

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/apperrors"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/config"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/retry"
)

// ProcessRequest asks the CAD service to process one part's file.
type ProcessRequest struct {
	PartID   uuid.UUID `json:"part_id"`
	FileURL  string    `json:"file_url"`
	FileName string    `json:"file_name"`
}

// ProcessResponse is the service's acknowledgement of an async request.
type ProcessResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message,omitempty"`
}

// Client calls the CAD processing service.
type Client struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	retryCfg *retry.Config
	logger   *zap.Logger
}

// NewClient creates a CAD service client from configuration. Returns nil
// when the service is not configured; callers must check Enabled.
func NewClient(cfg *config.CADConfig, logger *zap.Logger) *Client {
	if !cfg.IsAvailable() {
		return nil
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  cfg.ServiceURL,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
		retryCfg: retry.DefaultConfig(),
		logger:   logger.Named("cad-client"),
	}
}

// Enabled reports whether the client can be used.
func (c *Client) Enabled() bool {
	return c != nil
}

// ProcessAsync submits a part file for asynchronous processing. A nil error
// means the service accepted the handoff; extraction progress arrives later
// through the part's metadata.
func (c *Client) ProcessAsync(ctx context.Context, req ProcessRequest) (*ProcessResponse, error) {
	if req.FileURL == "" {
		return nil, fmt.Errorf("%w: file_url is required", apperrors.ErrValidation)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal process request: %w", err)
	}

	result, err := retry.DoWithResult(ctx, c.retryCfg, func() (*ProcessResponse, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/process-async", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			httpReq.Header.Set("X-API-Key", c.apiKey)
		}

		resp, err := c.client.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrTransport, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: CAD service returned %d", apperrors.ErrTransport, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("%w: CAD service rejected request with %d", apperrors.ErrValidation, resp.StatusCode)
		}

		var pr ProcessResponse
		if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
			return nil, fmt.Errorf("failed to decode CAD response: %w", err)
		}
		return &pr, nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("CAD processing requested",
		zap.String("part_id", req.PartID.String()),
		zap.String("file_name", req.FileName),
		zap.Bool("accepted", result.Accepted))
	return result, nil
}
