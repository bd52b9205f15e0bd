package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/supportops/owner-relay/internal/config"
	"github.com/supportops/owner-relay/internal/domain"
)

const (
	defaultNotifyTimeout = 10 * time.Second
	maxSinkBodyLog       = 512
)

// FormatMessage renders the two-line chat notification for an event.
func FormatMessage(title string, owner domain.OwnerInfo) string {
	ownerStr := owner.Name
	if owner.HasMention() {
		ownerStr = fmt.Sprintf("%s <@%s>", owner.Name, owner.ID)
	}
	return fmt.Sprintf("%s\nOwner: %s", title, ownerStr)
}

// SlackNotifier posts messages to the configured chat webhook.
type SlackNotifier struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

type slackPayload struct {
	Message string `json:"message"`
}

// NewSlackNotifier creates the notifier. An empty URL is allowed; every
// Notify then reports false without making a request.
func NewSlackNotifier(cfg config.WebhookConfig, client *http.Client, logger *zap.Logger) *SlackNotifier {
	if client == nil {
		timeout := cfg.NotifyTimeout()
		if timeout <= 0 {
			timeout = defaultNotifyTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlackNotifier{url: strings.TrimSpace(cfg.SlackURL), client: client, logger: logger}
}

// Notify reports whether the sink answered HTTP 200. Failures are logged,
// never returned.
func (n *SlackNotifier) Notify(ctx context.Context, message string) bool {
	if n.url == "" {
		n.logger.Error("slack webhook URL not configured; skipping notification")
		return false
	}

	body, err := json.Marshal(slackPayload{Message: message})
	if err != nil {
		n.logger.Error("encode slack payload", zap.Error(err))
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		n.logger.Error("build slack request", zap.Error(err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	n.logger.Info("sending to slack", zap.String("message", message))
	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Error("error sending to slack", zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxSinkBodyLog))

	if resp.StatusCode != http.StatusOK {
		n.logger.Error("failed to send to slack",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", respBody),
		)
		return false
	}
	n.logger.Debug("slack response", zap.Int("status", resp.StatusCode), zap.ByteString("response", respBody))
	return true
}
