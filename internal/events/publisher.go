// Package events publishes tracking events to NATS.
//
// Each event goes to the subject "<prefix>.<kind>", for example
// "nutrid.tracking.food_added", as a JSON payload. The OTel trace context of
// the publishing request travels in the message headers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "nutrid.tracking"

// ErrInvalidSubject reports an event kind or prefix that is not a valid
// literal NATS subject.
var ErrInvalidSubject = errors.New("invalid subject")

// Connect dials the NATS server at url. Connection failures at startup are
// retried in the background so the server can start before NATS does.
func Connect(url string, opts ...nats.Option) (*nats.Conn, error) {
	defaults := []nats.Option{
		nats.Name("nutrid"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1 * time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// Publisher publishes JSON events on a NATS connection.
type Publisher struct {
	nc     *nats.Conn
	prefix string
}

// NewPublisher creates a publisher. An empty prefix uses
// DefaultSubjectPrefix.
func NewPublisher(nc *nats.Conn, prefix string) (*Publisher, error) {
	if nc == nil {
		return nil, errors.New("nats connection cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if err := validateSubject(prefix); err != nil {
		return nil, err
	}
	return &Publisher{nc: nc, prefix: prefix}, nil
}

// Subject returns the subject events of kind are published on.
func (p *Publisher) Subject(kind string) string {
	return p.prefix + "." + kind
}

// Publish marshals v as JSON and publishes it on Subject(kind).
func (p *Publisher) Publish(ctx context.Context, kind string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if kind == "" || strings.Contains(kind, ".") {
		return fmt.Errorf("%w: event kind %q", ErrInvalidSubject, kind)
	}
	if err := validateSubject(kind); err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", kind, err)
	}

	msg := nats.NewMsg(p.Subject(kind))
	msg.Data = data
	msg.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(http.Header(msg.Header)))

	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s event: %w", kind, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	if p.nc.IsClosed() {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		return fmt.Errorf("drain nats connection: %w", err)
	}
	return nil
}

// validateSubject rejects wildcards, whitespace and empty tokens.
func validateSubject(s string) error {
	if s == "" || strings.ContainsAny(s, "*> \t\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidSubject, s)
	}
	for _, tok := range strings.Split(s, ".") {
		if tok == "" {
			return fmt.Errorf("%w: %q has an empty token", ErrInvalidSubject, s)
		}
	}
	return nil
}
