// Package roboflow calls a hosted object-detection endpoint that answers
// with a {"predictions": [...]} document.
package roboflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/menta2k/banknote-assistant/internal/logging"
)

const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 2
	DefaultBaseDelay  = time.Second
)

// ErrRetriesExhausted is returned when every attempt failed with a
// transient error. It is distinct from an empty prediction list.
var ErrRetriesExhausted = errors.New("detection endpoint unreachable after retries")

// ErrNotConfigured is returned by Predict when no endpoint or API key is set
var ErrNotConfigured = errors.New("detection endpoint is not configured")

// StatusError is a non-retryable HTTP failure from the endpoint
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("detection endpoint returned HTTP %d: %s", e.StatusCode, e.Body)
}

// Config holds the endpoint settings
type Config struct {
	Endpoint   string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
}

// Client posts images to the detection endpoint
type Client struct {
	endpoint   *url.URL
	apiKey     string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

// NewClient creates a new client. Zero timeout and delay fall back to the
// defaults; a negative MaxRetries means no retries. An empty endpoint is
// accepted so the service can start unconfigured; Predict then fails with
// ErrNotConfigured.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	var u *url.URL
	if cfg.Endpoint != "" {
		var err error
		u, err = url.Parse(cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("invalid endpoint URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("unsupported endpoint scheme: %s", u.Scheme)
		}
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &Client{
		endpoint:   u,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		logger:     logger,
	}, nil
}

// Name identifies the backend
func (c *Client) Name() string {
	return "roboflow"
}

// Predict uploads the image and returns the raw JSON body. Rate limiting,
// server errors, timeouts and transport errors are retried with exponential
// backoff; other HTTP errors fail immediately with a *StatusError.
func (c *Client) Predict(ctx context.Context, image []byte, filename string) ([]byte, error) {
	if c.endpoint == nil || c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	if filename == "" {
		filename = "image.jpg"
	}

	var body []byte
	attempt := 0
	op := func() error {
		attempt++
		b, err := c.post(ctx, image, filename)
		if err != nil {
			return err
		}
		body = b
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("detection request failed, retrying",
			"attempt", attempt,
			"wait", wait,
			"error", err)
	}

	err := backoff.RetryNotify(op, c.newBackOff(ctx), notify)
	if err == nil {
		return body, nil
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		c.logger.Error("detection endpoint rejected request", "status", statusErr.StatusCode)
		return nil, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return nil, fmt.Errorf("%w (%d attempts): %v", ErrRetriesExhausted, attempt, err)
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.baseDelay
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxInterval = c.baseDelay << 10
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.maxRetries)), ctx)
}

func (c *Client) post(ctx context.Context, image []byte, filename string) ([]byte, error) {
	payload := &bytes.Buffer{}
	writer := multipart.NewWriter(payload)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create form file: %w", err))
	}
	if _, err := part.Write(image); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("write image data: %w", err))
	}
	if err := writer.Close(); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("close multipart writer: %w", err))
	}

	u := *c.endpoint
	q := u.Query()
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), payload)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return data, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("rate limited: HTTP %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("server error: HTTP %d", resp.StatusCode)
	default:
		return nil, backoff.Permanent(&StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), 512)})
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
