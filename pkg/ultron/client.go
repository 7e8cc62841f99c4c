// Package ultron relays chat notifications through the Ultron bot API.
package ultron

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultUser is the user name messages are sent as.
const DefaultUser = "green"

// Config configures a Client.
type Config struct {
	URL     string // base URL; messages are posted to <URL>/command
	Channel string
	User    string
	Timeout time.Duration
}

// Client sends messages to Ultron.
type Client struct {
	config Config
	client *http.Client
}

// commandPayload is the body of a POST /command request.
type commandPayload struct {
	Channel    string `json:"channel"`
	EventInput string `json:"event_input"`
	User       string `json:"user"`
	EventType  string `json:"event_type"`
}

// RequestError reports a request that never produced a response.
type RequestError struct {
	URL string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed: %s: %v", e.URL, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// ResponseError reports a non-2xx response.
type ResponseError struct {
	Status int
	Body   string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("error response %d: %s", e.Status, e.Body)
}

// NewClient creates an Ultron client. A nil http.Client uses a client with
// the configured timeout.
func NewClient(cfg Config, client *http.Client) *Client {
	if cfg.User == "" {
		cfg.User = DefaultUser
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		config: cfg,
		client: client,
	}
}

// Send posts message to the configured channel as an echo command.
func (c *Client) Send(ctx context.Context, message string) error {
	body, err := json.Marshal(commandPayload{
		Channel:    c.config.Channel,
		EventInput: "echo " + message,
		User:       c.config.User,
		EventType:  "command",
	})
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	url := strings.TrimSuffix(c.config.URL, "/") + "/command"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &RequestError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	return &ResponseError{Status: resp.StatusCode, Body: string(respBody)}
}
