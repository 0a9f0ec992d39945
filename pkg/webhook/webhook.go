// Package webhook posts urgency reports to HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ccollicutt/chaturgency/pkg/output"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// maxResponseBody caps how much of a response body is kept.
const maxResponseBody = 1024 * 1024

// Trigger determines when a webhook fires.
type Trigger string

const (
	// TriggerOnUrgent fires only when a message reached the urgent threshold.
	TriggerOnUrgent Trigger = "on_urgent"
	// TriggerAlways fires after every analysis.
	TriggerAlways Trigger = "always"
	// TriggerNever disables the webhook.
	TriggerNever Trigger = "never"
)

// Triggers lists the valid trigger names.
var Triggers = []Trigger{TriggerOnUrgent, TriggerAlways, TriggerNever}

// Valid reports whether t is a known trigger. The empty trigger is valid and
// means on_urgent.
func (t Trigger) Valid() bool {
	switch t {
	case "", TriggerOnUrgent, TriggerAlways, TriggerNever:
		return true
	}
	return false
}

// ShouldSend reports whether a webhook with trigger t fires for report.
func (t Trigger) ShouldSend(report *output.Report) bool {
	switch t {
	case TriggerAlways:
		return true
	case TriggerNever:
		return false
	default:
		return report.HasUrgent()
	}
}

// Target is one configured endpoint.
type Target struct {
	Name    string
	URL     string
	Token   string
	Trigger Trigger
	Timeout time.Duration
}

// label names the target in logs.
func (t Target) label() string {
	if t.Name != "" {
		return t.Name
	}
	return t.URL
}

// Client sends urgency reports to webhook endpoints.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new webhook client. A nil logger uses slog.Default().
func NewClient(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// SendOptions configures a webhook request.
type SendOptions struct {
	URL     string
	Token   string        // Bearer token (optional)
	Timeout time.Duration // Request timeout (uses DefaultTimeout if zero)
}

// Response contains the result of a webhook request.
type Response struct {
	StatusCode int
	Body       string
	Duration   time.Duration
	Error      error
}

// Success returns true if the webhook was sent successfully (2xx status).
func (r *Response) Success() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Send posts a report to a webhook endpoint.
func (c *Client) Send(ctx context.Context, report *output.Report, opts SendOptions) *Response {
	start := time.Now()
	resp := &Response{}
	fail := func(err error) *Response {
		resp.Error = err
		resp.Duration = time.Since(start)
		return resp
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return fail(fmt.Errorf("failed to marshal report: %w", err))
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.URL, bytes.NewReader(payload))
	if err != nil {
		return fail(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "chaturgency-webhook")
	req.Header.Set("X-Chaturgency-Run", report.Metadata.RunID)
	if opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.Token)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(fmt.Errorf("request failed: %w", err))
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return fail(fmt.Errorf("failed to read response: %w", err))
	}

	resp.StatusCode = httpResp.StatusCode
	resp.Body = string(body)
	resp.Duration = time.Since(start)

	if resp.StatusCode >= 400 {
		resp.Error = fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return resp
}

// Notify sends report to every target whose trigger fires and returns the
// responses keyed by target label. Failures are logged, never returned:
// a webhook outage must not fail the analysis.
func (c *Client) Notify(ctx context.Context, report *output.Report, targets []Target) map[string]*Response {
	results := make(map[string]*Response)
	for _, t := range targets {
		if !t.Trigger.ShouldSend(report) {
			c.logger.Debug("webhook skipped", "webhook", t.label(), "trigger", string(t.Trigger))
			continue
		}

		resp := c.Send(ctx, report, SendOptions{URL: t.URL, Token: t.Token, Timeout: t.Timeout})
		results[t.label()] = resp

		if resp.Success() {
			c.logger.Info("webhook sent", "webhook", t.label(), "status", resp.StatusCode, "duration", resp.Duration)
		} else {
			c.logger.Warn("webhook failed", "webhook", t.label(), "error", resp.Error)
		}
	}
	return results
}
