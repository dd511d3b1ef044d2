// internal/notify/telegram.go
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/sony/gobreaker"
)

const defaultTelegramURL = "https://api.telegram.org"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TelegramConfig configures a TelegramSink.
type TelegramConfig struct {
	Token  string
	ChatID string

	// BaseURL overrides the Bot API host, mainly for tests.
	BaseURL string
	// MaxTries bounds the attempts per message. Defaults to 3.
	MaxTries uint
	Client   *http.Client
}

// TelegramSink posts messages to a chat through the Telegram Bot API.
// Transient failures are retried with exponential backoff; repeated failures
// open a circuit breaker so a dead API is not hammered.
type TelegramSink struct {
	cfg     TelegramConfig
	breaker *gobreaker.CircuitBreaker
}

func NewTelegramSink(cfg TelegramConfig) *TelegramSink {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTelegramURL
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 3
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}

	return &TelegramSink{
		cfg: cfg,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "telegram",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (s *TelegramSink) Send(ctx context.Context, text string) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return backoff.Retry(ctx, func() (struct{}, error) {
			return struct{}{}, s.post(ctx, text)
		},
			backoff.WithBackOff(backoff.NewExponentialBackOff()),
			backoff.WithMaxTries(s.cfg.MaxTries),
		)
	})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

func (s *TelegramSink) post(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: s.cfg.ChatID, Text: text})
	if err != nil {
		return backoff.Permanent(err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.cfg.BaseURL, s.cfg.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.cfg.Client.Do(req)
	if err != nil {
		// The request URL carries the bot token; keep it out of the error.
		var uerr *neturl.Error
		if errors.As(err, &uerr) {
			err = fmt.Errorf("%s sendMessage: %w", uerr.Op, uerr.Err)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return backoff.Permanent(err)
		}
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	default:
		return backoff.Permanent(fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}
}
