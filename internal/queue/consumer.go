package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/debias/spider/internal/logger"
)

// Disposition is the terminal outcome of handling one message.
type Disposition int

const (
	// Ack marks the message consumed; the broker drops it.
	Ack Disposition = iota
	// Nack marks the message failed; the broker redelivers after backoff.
	Nack
	// Reject marks the message poison; the broker never redelivers it.
	Reject
)

// String returns the disposition name.
func (d Disposition) String() string {
	switch d {
	case Ack:
		return "ack"
	case Nack:
		return "nack"
	case Reject:
		return "reject"
	}
	return fmt.Sprintf("disposition(%d)", int(d))
}

// HandlerFunc processes one message payload and decides its disposition.
type HandlerFunc func(ctx context.Context, data []byte) Disposition

const (
	fetchMaxWait = 5 * time.Second
	nackDelay    = 30 * time.Second
)

// Consumer runs a durable pull subscription with competing consumers.
// Each worker goroutine keeps one message in flight at a time.
type Consumer struct {
	client  *Client
	subject string
	durable string
	workers int
	handler HandlerFunc
	log     logger.Interface
}

// NewConsumer creates a consumer for one subject. All replicas sharing the
// durable name compete for messages, so each message is handled by at most
// one consumer at a time.
func NewConsumer(client *Client, subject, durable string, workers int, handler HandlerFunc, log logger.Interface) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{
		client:  client,
		subject: subject,
		durable: durable,
		workers: workers,
		handler: handler,
		log:     log.With("subject", subject, "consumer_id", consumerID()),
	}
}

// Run blocks consuming messages until ctx is cancelled. In-flight messages
// finish with their disposition applied before Run returns.
func (c *Consumer) Run(ctx context.Context) error {
	sub, err := c.client.js.PullSubscribe(
		c.subject,
		c.durable,
		nats.BindStream(StreamName),
	)
	if err != nil {
		return fmt.Errorf("pull subscribe %s: %w", c.subject, err)
	}
	defer func() {
		if unsubErr := sub.Unsubscribe(); unsubErr != nil && !errors.Is(unsubErr, nats.ErrConnectionClosed) {
			c.log.Warn("failed to unsubscribe", "error", unsubErr)
		}
	}()

	c.log.Info("consumer started", "durable", c.durable, "workers", c.workers)

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.consumeLoop(ctx, sub)
		}()
	}
	wg.Wait()

	c.log.Info("consumer stopped")

	return nil
}

// consumeLoop pulls one message at a time for flow control.
func (c *Consumer) consumeLoop(ctx context.Context, sub *nats.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := sub.Fetch(1, nats.MaxWait(fetchMaxWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.Canceled) {
				continue
			}
			c.log.Error("failed to fetch message", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range msgs {
			c.dispatch(ctx, msg)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, msg *nats.Msg) {
	disposition := c.handler(ctx, msg.Data)

	var err error
	switch disposition {
	case Ack:
		err = msg.Ack()
	case Nack:
		err = msg.NakWithDelay(nackDelay)
	case Reject:
		err = msg.Term()
	}

	if err != nil {
		c.log.Error("failed to apply disposition",
			"disposition", disposition.String(),
			"error", err,
		)
		return
	}

	c.log.Debug("message handled", "disposition", disposition.String())
}

// consumerID names this process instance in logs.
func consumerID() string {
	const prefixLen = 8
	return "spider-" + uuid.New().String()[:prefixLen]
}
