// Package notify доставляет уведомления о заказах во внешний вебхук чата.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Значения политики повторов по умолчанию.
const (
	DefaultAttempts       = 3
	DefaultRetryDelay     = 1 * time.Second
	DefaultAttemptTimeout = 5 * time.Second
)

// ReasonDisabled возвращается, если адрес вебхука не задан.
const ReasonDisabled = "webhook disabled"

// Config задаёт адрес вебхука и политику повторов.
type Config struct {
	URL            string
	Attempts       int
	RetryDelay     time.Duration
	AttemptTimeout time.Duration
	Username       string
	AvatarURL      string
}

// Result описывает итог доставки: OK либо причина неудачи.
type Result struct {
	OK       bool
	Reason   string
	Attempts int
}

// Dispatcher выполняет доставку сообщений с ограниченным числом попыток.
type Dispatcher struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewDispatcher создаёт диспетчер уведомлений. Пустой URL отключает отправку.
func NewDispatcher(cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		cfg:        cfg,
		httpClient: cleanhttp.DefaultPooledClient(),
		logger:     logger,
	}
}

// Enabled сообщает, настроен ли адрес вебхука.
func (d *Dispatcher) Enabled() bool {
	return d != nil && d.cfg.URL != ""
}

// Send доставляет сообщение. Ошибки сети, таймауты и ответы не из 2xx не возвращаются
// вызывающему коду, а отражаются в Result и в логе.
func (d *Dispatcher) Send(ctx context.Context, msg Message) Result {
	if !d.Enabled() {
		return Result{Reason: ReasonDisabled}
	}

	body, err := json.Marshal(buildPayload(msg, d.cfg.Username, d.cfg.AvatarURL))
	if err != nil {
		d.logger.Error("encode webhook payload", zap.Error(err))
		return Result{Reason: fmt.Sprintf("encode payload: %v", err)}
	}

	delay := d.cfg.RetryDelay
	backoff := retry.WithMaxRetries(uint64(d.cfg.Attempts-1), retry.BackoffFunc(func() (time.Duration, bool) {
		return delay, false
	}))

	attempts := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		if err := d.post(ctx, body); err != nil {
			d.logger.Warn("webhook attempt failed",
				zap.Int("attempt", attempts),
				zap.Int("max_attempts", d.cfg.Attempts),
				zap.Error(err),
			)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		d.logger.Error("webhook delivery failed",
			zap.String("title", msg.Title),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return Result{Reason: err.Error(), Attempts: attempts}
	}

	return Result{OK: true, Attempts: attempts}
}

func (d *Dispatcher) post(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return nil
}
