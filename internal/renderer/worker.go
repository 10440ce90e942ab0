package renderer

import (
	"context"
	"encoding/json"

	"github.com/debias/spider/internal/dedup"
	"github.com/debias/spider/internal/domain"
	"github.com/debias/spider/internal/fetcher"
	"github.com/debias/spider/internal/logger"
	"github.com/debias/spider/internal/pipeline"
	"github.com/debias/spider/internal/queue"
	"github.com/debias/spider/internal/target"
	"github.com/debias/spider/internal/urlutil"
)

// Worker handles one render request per message.
type Worker struct {
	targets  *target.Registry
	cache    fetcher.Cache
	renderer Renderer
	finisher fetcher.Finisher
	log      logger.Interface
}

// NewWorker creates a render worker.
func NewWorker(
	targets *target.Registry,
	cache fetcher.Cache,
	renderer Renderer,
	finisher fetcher.Finisher,
	log logger.Interface,
) *Worker {
	return &Worker{
		targets:  targets,
		cache:    cache,
		renderer: renderer,
		finisher: finisher,
		log:      log,
	}
}

// Handle processes one render request and returns its disposition.
func (w *Worker) Handle(ctx context.Context, data []byte) queue.Disposition {
	var req domain.RenderRequest
	if err := json.Unmarshal(data, &req); err != nil {
		w.log.Warn("rejecting malformed render request", "error", err)
		return queue.Reject
	}
	if err := req.Validate(); err != nil {
		w.log.Warn("rejecting invalid render request", "error", err)
		return queue.Reject
	}

	url, err := urlutil.Normalize(req.URL)
	if err != nil {
		w.log.Warn("rejecting unparseable url", "url", req.URL, "error", err)
		return queue.Reject
	}

	log := w.log.With("url", url)
	log.Info("received render request")

	parser := w.targets.Lookup(urlutil.Domain(url))
	if parser == nil {
		log.Warn("skipping url: no parser registered")
		return queue.Reject
	}

	urlHash := urlutil.Hash(url)
	key := dedup.RenderSeenKey(urlHash)
	if _, seen, err := w.cache.Get(ctx, key); err != nil {
		log.Error("failed to check render dedup flag", "error", err)
		return queue.Nack
	} else if seen {
		log.Warn("skipping url: rendered within dedup window", "url_hash", urlHash)
		return queue.Reject
	}
	if err := w.cache.Set(ctx, key, "1", dedup.TTLURLSeen); err != nil {
		log.Error("failed to set render dedup flag", "error", err)
		return queue.Nack
	}

	content, err := w.renderer.Render(ctx, url)
	if err != nil {
		log.Error("failed to render url", "error", err)
		return queue.Nack
	}
	log.Debug("rendered url", "size", len(content))

	contentHash := urlutil.Hash(content)
	filepath := pipeline.ObjectKey(parser.Config().ID, urlHash, contentHash)

	if err := w.finisher.Finish(ctx, parser, url, urlHash, content, contentHash, filepath); err != nil {
		log.Error("failed to finish message processing", "error", err)
		return queue.Nack
	}
	if err := w.finisher.Expand(ctx, parser, url, content); err != nil {
		log.Warn("failed to spawn new fetch requests", "error", err)
		return queue.Nack
	}

	return queue.Ack
}
