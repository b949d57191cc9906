package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mhessel/penaltypot/internal/config"
)

// SendResult classifies a delivery attempt.
type SendResult int

const (
	// SendOK means the webhook accepted the payload.
	SendOK SendResult = iota
	// SendRetryable means a transient failure (429, network error, 5xx).
	SendRetryable
	// SendFatal means a permanent failure (bad webhook, 401/403).
	SendFatal
)

// Sender abstracts webhook delivery for testing.
type Sender interface {
	// Send posts a payload. The duration is the retry-after hint for
	// rate-limited responses, zero otherwise.
	Send(ctx context.Context, payload DiscordPayload) (SendResult, time.Duration)
}

// DiscordSender posts payloads to a Discord webhook.
type DiscordSender struct {
	webhookURL config.Secret
	client     *http.Client
	logger     *slog.Logger
}

// SenderOption configures a DiscordSender.
type SenderOption func(*DiscordSender)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) SenderOption {
	return func(s *DiscordSender) { s.client = client }
}

// WithSenderLogger sets the logger.
func WithSenderLogger(logger *slog.Logger) SenderOption {
	return func(s *DiscordSender) { s.logger = logger }
}

// NewDiscordSender creates a sender for the given webhook.
// The URL stays wrapped in a Secret so it logs as [REDACTED].
func NewDiscordSender(webhookURL config.Secret, opts ...SenderOption) *DiscordSender {
	s := &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send implements Sender.
func (s *DiscordSender) Send(ctx context.Context, payload DiscordPayload) (SendResult, time.Duration) {
	if s.webhookURL.IsEmpty() {
		s.logger.Warn("Discord webhook URL not configured")
		return SendFatal, 0
	}

	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to marshal Discord payload", "error", err)
		return SendFatal, 0
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL.Value(), bytes.NewReader(body))
	if err != nil {
		s.logger.Error("failed to create request", "error", err)
		return SendFatal, 0
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "PenaltyPot")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("Discord request failed", "error", err)
		return SendRetryable, 0
	}
	defer resp.Body.Close()

	// Drain body to allow connection reuse.
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		s.logger.Debug("Discord notification sent", "status", resp.StatusCode)
		return SendOK, 0

	case resp.StatusCode == 429:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		s.logger.Warn("Discord rate limited", "retry_after", retryAfter)
		return SendRetryable, retryAfter

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// 4xx (except 429) means a configuration error that retrying
		// will not fix.
		s.logger.Error("Discord webhook client error",
			"status", resp.StatusCode,
			"webhook_url", s.webhookURL, // logs as [REDACTED]
		)
		return SendFatal, 0

	case resp.StatusCode >= 500:
		s.logger.Warn("Discord server error", "status", resp.StatusCode)
		return SendRetryable, 0

	default:
		s.logger.Warn("Discord request failed", "status", resp.StatusCode)
		return SendRetryable, 0
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	// Discord typically sends seconds as an integer.
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	// Sometimes as a decimal.
	if secs, err := strconv.ParseFloat(header, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return 0
}
