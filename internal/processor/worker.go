// Package processor implements the process worker: it consumes process
// requests, retrieves the stored artifact, runs the analysis collaborator,
// and persists the result into the analytics tables.
package processor

import (
	"context"
	"encoding/json"

	"github.com/debias/spider/internal/domain"
	"github.com/debias/spider/internal/logger"
	"github.com/debias/spider/internal/metastore"
	"github.com/debias/spider/internal/nlp"
	"github.com/debias/spider/internal/queue"
)

// MetadataReader looks up metadata rows referenced by process requests.
type MetadataReader interface {
	Read(ctx context.Context, id int64) (*metastore.Metadata, error)
}

// Downloader retrieves one artifact from the object store.
type Downloader interface {
	Download(ctx context.Context, key string) ([]byte, error)
}

// ResultSaver persists one analysis result.
type ResultSaver interface {
	Save(ctx context.Context, result *nlp.Result) error
}

// Worker handles one process request per message.
type Worker struct {
	meta    MetadataReader
	objects Downloader
	nlp     nlp.Processor
	words   ResultSaver
	log     logger.Interface
}

// NewWorker creates a process worker.
func NewWorker(meta MetadataReader, objects Downloader, processor nlp.Processor, words ResultSaver, log logger.Interface) *Worker {
	return &Worker{
		meta:    meta,
		objects: objects,
		nlp:     processor,
		words:   words,
		log:     log,
	}
}

// Handle processes one process request and returns its disposition.
func (w *Worker) Handle(ctx context.Context, data []byte) queue.Disposition {
	var req domain.ProcessRequest
	if err := json.Unmarshal(data, &req); err != nil {
		w.log.Warn("rejecting malformed process request", "error", err)
		return queue.Reject
	}
	if err := req.Validate(); err != nil {
		w.log.Warn("rejecting invalid process request", "error", err)
		return queue.Reject
	}

	log := w.log.With("url", req.URL, "metadata_id", req.MetadataID)
	log.Info("received process request", "filepath", req.Filepath)

	metadata, err := w.meta.Read(ctx, req.MetadataID)
	if err != nil {
		log.Error("failed to read metadata", "error", err)
		return queue.Nack
	}
	if metadata == nil {
		log.Warn("rejecting request: metadata row does not exist")
		return queue.Reject
	}

	content, err := w.objects.Download(ctx, req.Filepath)
	if err != nil {
		log.Error("failed to download artifact", "error", err)
		return queue.Nack
	}

	result, err := w.nlp.Process(ctx, string(content), req.TargetID, req.URL, req.Datetime)
	if err != nil {
		log.Error("failed to analyze document", "error", err)
		return queue.Nack
	}
	if !result.Usable() {
		log.Warn("rejecting request: document has no article datetime")
		return queue.Reject
	}

	if err := w.words.Save(ctx, result); err != nil {
		log.Error("failed to save analysis result", "error", err)
		return queue.Nack
	}

	return queue.Ack
}
