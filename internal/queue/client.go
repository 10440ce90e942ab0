// Package queue is the broker adapter: durable pull-based work queues on
// NATS JetStream with ack/nack/reject semantics.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/debias/spider/internal/logger"
)

const (
	// StreamName is the JetStream stream carrying all pipeline subjects.
	StreamName = "debias"

	// SubjectFetch carries FetchRequest messages.
	SubjectFetch = "fetch-queue"
	// SubjectRender carries RenderRequest messages.
	SubjectRender = "render-queue"
	// SubjectProcess carries ProcessRequest messages.
	SubjectProcess = "process-queue"

	connectTimeout = 5 * time.Second
	publishTimeout = 10 * time.Second
)

// Client wraps a NATS connection with a JetStream context.
type Client struct {
	nc  *nats.Conn
	js  nats.JetStreamContext
	log logger.Interface
}

// Connect dials the broker and opens a JetStream context.
func Connect(dsn string, log logger.Interface) (*Client, error) {
	nc, err := nats.Connect(dsn, nats.Timeout(connectTimeout))
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("open jetstream context: %w", err)
	}

	return &Client{nc: nc, js: js, log: log}, nil
}

// EnsureStream creates the work-queue stream if it does not exist. With
// work-queue retention a message is deleted once any consumer acks it.
func (c *Client) EnsureStream() error {
	_, err := c.js.AddStream(&nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{SubjectFetch, SubjectRender, SubjectProcess},
		Retention: nats.WorkQueuePolicy,
		Storage:   nats.FileStorage,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("ensure stream %s: %w", StreamName, err)
	}

	return nil
}

// Publish serializes v as JSON and publishes it to the subject.
// Publishing is fire-and-forget from the pipeline's point of view; a failure
// surfaces as an error so the caller can nack its own message.
func (c *Client) Publish(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("serialize message for %s: %w", subject, err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if _, err := c.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}

	c.log.Debug("published message", "subject", subject, "size", len(data))

	return nil
}

// Close drains and closes the connection.
func (c *Client) Close() {
	if err := c.nc.Drain(); err != nil {
		c.log.Warn("failed to drain broker connection", "error", err)
		c.nc.Close()
	}
}
