// Package api is the resilient HTTP client used against the spreadsheet
// backend: fixed per-attempt timeout, classified errors, bounded retries
// with backoff and a record of the last call.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"acta-go/internal/fault"
)

const (
	// DefaultTimeout bounds each attempt.
	DefaultTimeout = 10 * time.Second

	// DefaultRetries is the number of extra attempts after the first failure.
	DefaultRetries = 2

	maxResponseSize = 10 << 20
)

// Options describes one request.
type Options struct {
	Method  string
	Headers map[string]string
	Body    []byte

	// Action labels the call in diagnostics and metrics.
	Action string
}

// Client performs backend requests.
type Client struct {
	httpClient  *http.Client
	timeout     time.Duration
	retryConfig RetryConfig
	logger      *slog.Logger
	diag        *Diagnostics
	sink        CallSink
	metrics     *Metrics
	secrets     []string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout overrides the per-attempt timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRetryConfig sets the backoff between attempts.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(c *Client) {
		c.retryConfig = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDiagnostics shares a last-call record between clients.
func WithDiagnostics(d *Diagnostics) ClientOption {
	return func(c *Client) {
		c.diag = d
	}
}

// WithCallSink also hands every call to sink.
func WithCallSink(sink CallSink) ClientOption {
	return func(c *Client) {
		c.sink = sink
	}
}

// WithMetrics records request counters and durations.
func WithMetrics(m *Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithRedaction masks the given values in recorded request bodies.
func WithRedaction(secrets ...string) ClientOption {
	return func(c *Client) {
		c.secrets = append(c.secrets, secrets...)
	}
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:  &http.Client{},
		timeout:     DefaultTimeout,
		retryConfig: DefaultRetryConfig(),
		logger:      slog.New(slog.DiscardHandler),
		diag:        NewDiagnostics(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Diagnostics returns the client's last-call record.
func (c *Client) Diagnostics() *Diagnostics {
	return c.diag
}

// Request sends opts to url and decodes the JSON answer. Failures other
// than Timeout are retried up to retries more times.
func (c *Client) Request(ctx context.Context, url string, opts Options, retries int) (Result, error) {
	if opts.Method == "" {
		opts.Method = http.MethodPost
	}

	var res Result
	err := c.withRetry(ctx, url, opts.Action, retries, func(ctx context.Context, attempt int) error {
		body, status, err := c.do(ctx, url, opts, attempt)
		if err != nil {
			return err
		}

		r := decodeResult(body, status >= 200 && status < 300)
		if status < 200 || status >= 300 {
			msg := r.ErrorMessage()
			if msg == "" {
				msg = http.StatusText(status)
			}
			return fault.ServerError(status, msg)
		}
		if !r.OK() {
			msg := r.ErrorMessage()
			if msg == "" {
				msg = "el servidor rechazó la operación"
			}
			return fault.New(fault.Logic, "%s", msg)
		}
		res = r
		return nil
	})
	return res, err
}

// GetText fetches url as raw text with the same timeout, retry and error
// classification as Request.
func (c *Client) GetText(ctx context.Context, url string, retries int) (string, error) {
	opts := Options{Method: http.MethodGet, Action: "get"}

	var text string
	err := c.withRetry(ctx, url, opts.Action, retries, func(ctx context.Context, attempt int) error {
		body, status, err := c.do(ctx, url, opts, attempt)
		if err != nil {
			return err
		}
		if status < 200 || status >= 300 {
			return fault.ServerError(status, http.StatusText(status))
		}
		text = string(body)
		return nil
	})
	return text, err
}

func (c *Client) withRetry(ctx context.Context, url, action string, retries int, fn func(context.Context, int) error) error {
	if url == "" {
		return fault.New(fault.Configuration, "backend URL is not configured")
	}
	if retries < 0 {
		retries = 0
	}

	start := time.Now()
	var err error
loop:
	for attempt := 1; attempt <= retries+1; attempt++ {
		err = fn(ctx, attempt)
		if err == nil {
			break
		}
		if fault.Is(err, fault.Timeout) || !fault.Retryable(err) || attempt > retries {
			break
		}

		backoff := c.retryConfig.Backoff(attempt)
		c.logger.Warn("backend request failed, retrying",
			"action", action,
			"attempt", attempt,
			"backoff", backoff,
			"error", err)
		if c.metrics != nil {
			c.metrics.RetriesTotal.WithLabelValues(action).Inc()
		}

		select {
		case <-ctx.Done():
			err = contextError(ctx.Err())
			break loop
		case <-time.After(backoff):
		}
	}

	if c.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = fault.KindOf(err).String()
		}
		c.metrics.RequestsTotal.WithLabelValues(action, outcome).Inc()
		c.metrics.RequestDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())
	}
	return err
}

// do performs one attempt and records it. It returns the raw body and status.
func (c *Client) do(ctx context.Context, url string, opts Options, attempt int) ([]byte, int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	call := Call{
		Endpoint: url,
		Method:   opts.Method,
		Action:   opts.Action,
		Attempt:  attempt,
		Request:  redact(string(opts.Body), c.secrets),
		At:       time.Now(),
	}

	body, status, err := c.send(attemptCtx, url, opts)
	if err != nil {
		err = classify(ctx, attemptCtx, err)
	}

	call.Status = status
	call.Response = redact(string(body), c.secrets)
	call.Duration = time.Since(call.At)
	if err != nil {
		call.Error = err.Error()
	}
	c.record(ctx, call)

	c.logger.Debug("backend request",
		"action", opts.Action,
		"attempt", attempt,
		"status", status,
		"duration", call.Duration)

	return body, status, err
}

func (c *Client) send(ctx context.Context, url string, opts Options) ([]byte, int, error) {
	var reader io.Reader
	if opts.Body != nil {
		reader = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, url, reader)
	if err != nil {
		return nil, 0, fault.Wrap(fault.Configuration, err, "invalid backend request")
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	if len(body) > maxResponseSize {
		return nil, resp.StatusCode, fault.ServerError(resp.StatusCode,
			fmt.Sprintf("response too large (over %d bytes)", maxResponseSize))
	}
	return body, resp.StatusCode, nil
}

func (c *Client) record(ctx context.Context, call Call) {
	c.diag.Record(call)
	if c.sink == nil {
		return
	}
	// The attempt context may already be done; the journal write must not be.
	if err := c.sink.RecordCall(context.WithoutCancel(ctx), call); err != nil {
		c.logger.Warn("failed to record backend call", "error", err)
	}
}

// classify maps transport failures onto fault kinds.
func classify(parent, attempt context.Context, err error) error {
	var fe *fault.Error
	if errors.As(err, &fe) {
		return err
	}
	if parent.Err() != nil {
		return contextError(parent.Err())
	}
	if errors.Is(attempt.Err(), context.DeadlineExceeded) {
		return fault.Wrap(fault.Timeout, err, "el servidor no respondió a tiempo")
	}
	return fault.Wrap(fault.Network, err, "no hay conexión con el servidor")
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fault.Wrap(fault.Timeout, err, "el servidor no respondió a tiempo")
	}
	return fault.Wrap(fault.Network, err, "request cancelled")
}
