// Package carrier is a minimal client for the Nexmo (Vonage) SMS REST API.
package carrier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://rest.nexmo.com"
	sendPath       = "/sms/json"

	// statusOK is the per-message status Nexmo reports for accepted segments.
	statusOK = "0"

	maxErrorBody    = 512
	maxResponseBody = 1 << 20
)

var (
	// ErrTransport marks failures reaching the carrier or non-2xx replies.
	ErrTransport = errors.New("carrier transport error")
	// ErrRejected marks segments the carrier refused (bad credentials, number, balance).
	ErrRejected = errors.New("carrier rejected message")
)

// SendParams is the carrier-native shape of one outbound SMS.
type SendParams struct {
	From    string
	To      string
	Text    string
	Options map[string]string
}

// Message is one per-segment record of a send response.
type Message struct {
	To               string `json:"to,omitempty"`
	MessageID        string `json:"message-id"`
	Status           string `json:"status"`
	ErrorText        string `json:"error-text,omitempty"`
	RemainingBalance string `json:"remaining-balance,omitempty"`
	MessagePrice     string `json:"message-price,omitempty"`
	Network          string `json:"network,omitempty"`
}

// SendResponse is the decoded body of POST /sms/json.
type SendResponse struct {
	MessageCount string    `json:"message-count"`
	Messages     []Message `json:"messages"`
}

// RejectedError reports the first segment whose status was not "0".
type RejectedError struct {
	Status    string
	ErrorText string
}

func (e *RejectedError) Error() string {
	if e == nil {
		return ""
	}
	if e.ErrorText == "" {
		return fmt.Sprintf("carrier rejected message: status %s", e.Status)
	}
	return fmt.Sprintf("carrier rejected message: status %s: %s", e.Status, e.ErrorText)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// Option customises a Client.
type Option func(*Client)

// WithBaseURL points the client at another API host (tests, regional endpoints).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// Client sends SMS through the Nexmo REST API. Construction never touches the
// network.
type Client struct {
	apiKey     string
	apiSecret  string
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient builds a client for the given credentials.
func NewClient(apiKey, apiSecret string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	apiSecret = strings.TrimSpace(apiSecret)
	if apiKey == "" {
		return nil, errors.New("carrier: api key is required")
	}
	if apiSecret == "" {
		return nil, errors.New("carrier: api secret is required")
	}

	c := &Client{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.log = c.log.With("component", "carrier.nexmo")

	return c, nil
}

// SendSMS submits one message. Every segment must be accepted; the first
// rejected segment is returned as a *RejectedError.
func (c *Client) SendSMS(ctx context.Context, params SendParams) (SendResponse, error) {
	log := c.log.With("operation", "send_sms", "to", params.To)
	startedAt := time.Now()
	log.Debug("carrier request started")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sendPath, strings.NewReader(c.form(params).Encode()))
	if err != nil {
		return SendResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug("carrier request failed", "duration", time.Since(startedAt), "error", err)
		return SendResponse{}, fmt.Errorf("%w: http post: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		return SendResponse{}, fmt.Errorf("%w: read response: %w", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SendResponse{}, fmt.Errorf("%w: nexmo returned %d: %s", ErrTransport, resp.StatusCode, truncate(string(body)))
	}
	if len(body) > maxResponseBody {
		return SendResponse{}, fmt.Errorf("%w: response exceeds %d bytes", ErrTransport, maxResponseBody)
	}

	var out SendResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return SendResponse{}, fmt.Errorf("%w: decode response: %w", ErrTransport, err)
	}

	for _, msg := range out.Messages {
		if msg.Status != statusOK {
			log.Debug("carrier rejected segment", "status", msg.Status, "error_text", msg.ErrorText)
			return out, &RejectedError{Status: msg.Status, ErrorText: msg.ErrorText}
		}
	}

	log.Debug("carrier request finished", "duration", time.Since(startedAt), "segments", len(out.Messages))
	return out, nil
}

func (c *Client) form(params SendParams) url.Values {
	form := url.Values{}

	// Options first so they can never override credentials or addressing.
	keys := make([]string, 0, len(params.Options))
	for key := range params.Options {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		form.Set(key, params.Options[key])
	}

	form.Set("api_key", c.apiKey)
	form.Set("api_secret", c.apiSecret)
	form.Set("from", params.From)
	form.Set("to", params.To)
	form.Set("text", params.Text)
	return form
}

func truncate(body string) string {
	body = strings.TrimSpace(body)
	if len(body) <= maxErrorBody {
		return body
	}
	return body[:maxErrorBody] + "..."
}
