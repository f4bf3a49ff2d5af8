package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/apperrors"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/retry"
)

// Payload is the fixed delivery shape consumers depend on.
type Payload struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	TenantID  uuid.UUID   `json:"tenant_id"`
	Data      interface{} `json:"data"`
}

// EventName derives an "<entity>.<verb>" event name from a table name,
// e.g. ("operations", "completed") -> "operation.completed".
func EventName(table, verb string) string {
	return inflection.Singular(table) + "." + verb
}

// Dispatcher posts signed payloads to every configured endpoint.
type Dispatcher struct {
	endpoints map[string]string // url -> secret
	client    *http.Client
	retryCfg  *retry.Config
	logger    *zap.Logger
}

// NewDispatcher creates a dispatcher for the given url -> secret endpoints.
func NewDispatcher(endpoints map[string]string, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		endpoints: endpoints,
		client:    &http.Client{Timeout: timeout},
		retryCfg:  retry.DefaultConfig(),
		logger:    logger.Named("webhook"),
	}
}

// Enabled reports whether any endpoint is configured.
func (d *Dispatcher) Enabled() bool {
	return len(d.endpoints) > 0
}

// Dispatch signs and posts the event to all endpoints. Each endpoint is
// retried independently on transport errors; a failing endpoint never
// blocks the others. Delivery failures are logged, not returned: webhooks
// are best-effort and must not fail the triggering mutation.
func (d *Dispatcher) Dispatch(ctx context.Context, event string, tenantID uuid.UUID, data interface{}) {
	if !d.Enabled() {
		return
	}

	body, err := json.Marshal(Payload{
		Event:     event,
		Timestamp: time.Now().UTC(),
		TenantID:  tenantID,
		Data:      data,
	})
	if err != nil {
		d.logger.Error("Failed to marshal webhook payload",
			zap.String("event", event),
			zap.Error(err))
		return
	}

	// Deliveries outlive the triggering request: the caller's context is
	// request-scoped and would cancel retries the moment the handler
	// returns. Values (trace metadata) are kept, cancellation is not.
	detached := context.WithoutCancel(ctx)
	for url, secret := range d.endpoints {
		go d.deliver(detached, url, secret, event, body)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, url, secret, event string, body []byte) {
	signature := Sign(secret, body)

	err := retry.Do(ctx, d.retryCfg, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(SignatureHeader, signature)

		resp, err := d.client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrTransport, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: endpoint returned %d", apperrors.ErrTransport, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			// Consumer rejected the delivery; retrying will not help.
			return fmt.Errorf("endpoint rejected delivery with %d", resp.StatusCode)
		}
		return nil
	})
	if err != nil {
		d.logger.Warn("Webhook delivery failed",
			zap.String("url", url),
			zap.String("event", event),
			zap.Error(err))
		return
	}

	d.logger.Debug("Webhook delivered",
		zap.String("url", url),
		zap.String("event", event))
}
