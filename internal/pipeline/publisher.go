// Package pipeline holds the finish sequence and frontier expansion shared
// by the fetch and render workers.
package pipeline

import (
	"context"

	"github.com/debias/spider/internal/domain"
	"github.com/debias/spider/internal/queue"
)

// Publisher fans work out to the pipeline queues.
type Publisher interface {
	PublishFetch(ctx context.Context, req domain.FetchRequest) error
	PublishRender(ctx context.Context, req domain.RenderRequest) error
	PublishProcess(ctx context.Context, req domain.ProcessRequest) error
}

// QueuePublisher publishes over the broker adapter.
type QueuePublisher struct {
	client *queue.Client
}

// NewQueuePublisher wraps a broker client.
func NewQueuePublisher(client *queue.Client) *QueuePublisher {
	return &QueuePublisher{client: client}
}

// PublishFetch enqueues a fetch request.
func (p *QueuePublisher) PublishFetch(ctx context.Context, req domain.FetchRequest) error {
	return p.client.Publish(ctx, queue.SubjectFetch, req)
}

// PublishRender enqueues a render request.
func (p *QueuePublisher) PublishRender(ctx context.Context, req domain.RenderRequest) error {
	return p.client.Publish(ctx, queue.SubjectRender, req)
}

// PublishProcess enqueues a process request.
func (p *QueuePublisher) PublishProcess(ctx context.Context, req domain.ProcessRequest) error {
	return p.client.Publish(ctx, queue.SubjectProcess, req)
}
