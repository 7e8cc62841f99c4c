// Package webhook parses GitHub webhook deliveries and formats them as chat
// messages.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v57/github"
)

// Supported event types, as sent in the X-GitHub-Event header.
const (
	EventPush = "push"
	EventPing = "ping"
)

var (
	// ErrUnsupportedEvent indicates a valid delivery of an event type green ignores.
	ErrUnsupportedEvent = errors.New("unsupported webhook event")

	// ErrInvalidPayload indicates a delivery that failed signature or body validation.
	ErrInvalidPayload = errors.New("invalid webhook payload")
)

// Delivery is a parsed webhook delivery.
type Delivery struct {
	ID    string // X-GitHub-Delivery
	Event string // X-GitHub-Event
	// Payload is *github.PushEvent or *github.PingEvent.
	Payload any
}

// Parse validates and decodes a webhook request. When secret is non-empty the
// X-Hub-Signature-256 HMAC must match.
func Parse(r *http.Request, secret []byte) (*Delivery, error) {
	payload, err := github.ValidatePayload(r, secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	event := github.WebHookType(r)
	delivery := &Delivery{
		ID:    github.DeliveryID(r),
		Event: event,
	}

	switch event {
	case EventPush, EventPing:
	default:
		return delivery, fmt.Errorf("%w: %q", ErrUnsupportedEvent, event)
	}

	delivery.Payload, err = github.ParseWebHook(event, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return delivery, nil
}

// Push returns the push payload, if this is a push delivery.
func (d *Delivery) Push() (*github.PushEvent, bool) {
	push, ok := d.Payload.(*github.PushEvent)
	return push, ok
}

// Ping returns the ping payload, if this is a ping delivery.
func (d *Delivery) Ping() (*github.PingEvent, bool) {
	ping, ok := d.Payload.(*github.PingEvent)
	return ping, ok
}

// Sign returns the X-Hub-Signature-256 header value for payload.
func Sign(payload, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
