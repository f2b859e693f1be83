// Package webhook — JSON-клиент исходящих HTTP-вызовов с повторами.
//
// Используется Poster'ом публикаций и Alerter'ом SLA. Повторяются только
// сетевые ошибки и ответы 502/503/504; остальные статусы возвращаются сразу.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// Default configuration values.
const (
	DefaultMaxRetries  = 3
	DefaultBaseBackoff = 500 * time.Millisecond
	DefaultMaxBackoff  = 5 * time.Second
	DefaultTimeout     = 30 * time.Second
)

// StatusError — неуспешный HTTP-ответ.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("webhook returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("webhook returned status %d: %s", e.StatusCode, e.Body)
}

// Retryable сообщает, стоит ли повторять запрос.
func (e *StatusError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Config — конфигурация Client.
type Config struct {
	URL        string
	Token      string
	HTTPClient *http.Client

	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	Logger *slog.Logger
}

// Client отправляет JSON POST на один URL.
type Client struct {
	url    string
	token  string
	http   *http.Client
	policy retrypolicy.RetryPolicy[[]byte]
	logger *slog.Logger
}

// New создаёт новый Client.
func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = DefaultBaseBackoff
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = DefaultMaxBackoff
		if cfg.MaxBackoff < cfg.BaseBackoff {
			cfg.MaxBackoff = cfg.BaseBackoff
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	logger := cfg.Logger
	policy := retrypolicy.NewBuilder[[]byte]().
		WithBackoff(cfg.BaseBackoff, cfg.MaxBackoff).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(func(_ []byte, err error) bool {
			return shouldRetry(err)
		}).
		OnRetry(func(e failsafe.ExecutionEvent[[]byte]) {
			logger.Warn("retrying webhook", "url", cfg.URL, "attempt", e.Attempts(), "error", e.LastError())
		}).
		Build()

	return &Client{
		url:    cfg.URL,
		token:  cfg.Token,
		http:   cfg.HTTPClient,
		policy: policy,
		logger: cfg.Logger,
	}
}

// URL возвращает адрес вебхука.
func (c *Client) URL() string {
	return c.url
}

// PostJSON отправляет payload и, если out != nil, декодирует тело ответа.
func (c *Client) PostJSON(ctx context.Context, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := failsafe.With(c.policy).WithContext(ctx).Get(func() ([]byte, error) {
		return c.do(ctx, body)
	})
	if err != nil {
		return err
	}

	if out == nil || len(bytes.TrimSpace(resp)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// --- Helpers ---

func (c *Client) do(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}
	return data, nil
}

func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	// Сетевые ошибки (dial, reset) повторяем.
	return true
}
