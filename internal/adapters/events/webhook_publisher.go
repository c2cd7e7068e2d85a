package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/atvirokodosprendimai/ruleapi/internal/core/domain"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookPublisher POSTs outbox events to a configured HTTP endpoint. Bodies
// are signed with HMAC-SHA256. Non-2xx responses are returned as errors so the
// outbox dispatcher retries them.
type WebhookPublisher struct {
	url    string
	secret []byte
	client *http.Client
}

// NewWebhookPublisher returns a publisher for url. A zero or negative timeout
// falls back to defaultWebhookTimeout.
func NewWebhookPublisher(url, secret string, timeout time.Duration) *WebhookPublisher {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookPublisher{
		url:    url,
		secret: []byte(secret),
		client: &http.Client{Timeout: timeout},
	}
}

// Publish sends event as JSON with these headers:
//
//	Content-Type:           application/json
//	X-Ruleapi-Topic:        <topic>
//	X-Ruleapi-Event-Type:   <event.EventType>
//	X-Ruleapi-Rule-Set:     <event.RuleSet>
//	X-Hub-Signature-256:    sha256=<hex-encoded HMAC-SHA256>
func (p *WebhookPublisher) Publish(ctx context.Context, topic string, event domain.EventEnvelope) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Ruleapi-Topic", topic)
	req.Header.Set("X-Ruleapi-Event-Type", event.EventType)
	req.Header.Set("X-Ruleapi-Rule-Set", event.RuleSet)
	req.Header.Set("X-Hub-Signature-256", "sha256="+Sign(p.secret, payload))

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the lowercase hex HMAC-SHA256 of payload.
func Sign(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
