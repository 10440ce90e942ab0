// Package fetcher implements the fetch worker: it consumes fetch requests,
// retrieves pages over HTTP, and routes them to the finish sequence or the
// render queue.
package fetcher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/debias/spider/internal/dedup"
	"github.com/debias/spider/internal/domain"
	"github.com/debias/spider/internal/logger"
	"github.com/debias/spider/internal/pipeline"
	"github.com/debias/spider/internal/queue"
	"github.com/debias/spider/internal/target"
	"github.com/debias/spider/internal/urlutil"
)

// DefaultRenderThreshold is the sampled-text length below which an
// auto-render target goes through the headless renderer.
const DefaultRenderThreshold = 300

// maxResponseBodyBytes limits the size of fetched page responses.
const maxResponseBodyBytes = 10 * 1024 * 1024 // 10 MB

// Cache is the dedup-cache slice used by the fetch worker.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Finisher runs the finish sequence and frontier expansion.
type Finisher interface {
	Finish(ctx context.Context, parser *target.Parser, url, urlHash, content, contentHash, filepath string) error
	Expand(ctx context.Context, parser *target.Parser, pageURL, content string) error
}

// Config holds fetch worker settings.
type Config struct {
	UserAgent       string
	RenderThreshold int
	RequestTimeout  time.Duration
}

// Worker handles one fetch request per message.
type Worker struct {
	targets         *target.Registry
	cache           Cache
	finisher        Finisher
	pub             pipeline.Publisher
	httpClient      *http.Client
	userAgent       string
	renderThreshold int
	log             logger.Interface
}

// NewWorker creates a fetch worker.
func NewWorker(
	targets *target.Registry,
	cache Cache,
	finisher Finisher,
	pub pipeline.Publisher,
	cfg Config,
	log logger.Interface,
) *Worker {
	threshold := cfg.RenderThreshold
	if threshold <= 0 {
		threshold = DefaultRenderThreshold
	}

	return &Worker{
		targets:         targets,
		cache:           cache,
		finisher:        finisher,
		pub:             pub,
		httpClient:      &http.Client{Timeout: cfg.RequestTimeout},
		userAgent:       cfg.UserAgent,
		renderThreshold: threshold,
		log:             log,
	}
}

// Handle processes one fetch request and returns its disposition.
func (w *Worker) Handle(ctx context.Context, data []byte) queue.Disposition {
	var req domain.FetchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		w.log.Warn("rejecting malformed fetch request", "error", err)
		return queue.Reject
	}
	if err := req.Validate(); err != nil {
		w.log.Warn("rejecting invalid fetch request", "error", err)
		return queue.Reject
	}

	url, err := urlutil.Normalize(req.URL)
	if err != nil {
		w.log.Warn("rejecting unparseable url", "url", req.URL, "error", err)
		return queue.Reject
	}

	log := w.log.With("url", url)
	log.Info("received fetch request")

	parser := w.targets.Lookup(urlutil.Domain(url))
	if parser == nil {
		log.Warn("skipping url: no parser registered")
		return queue.Reject
	}

	urlHash := urlutil.Hash(url)
	if _, seen, err := w.cache.Get(ctx, dedup.URLSeenKey(urlHash)); err != nil {
		log.Error("failed to check url dedup flag", "error", err)
		return queue.Nack
	} else if seen {
		log.Warn("skipping url: fetched within dedup window", "url_hash", urlHash)
		return queue.Reject
	}
	if err := w.cache.Set(ctx, dedup.URLSeenKey(urlHash), "1", dedup.TTLURLSeen); err != nil {
		log.Error("failed to set url dedup flag", "error", err)
		return queue.Nack
	}

	content, disposition := w.fetch(ctx, log, url)
	if disposition != queue.Ack {
		return disposition
	}

	contentHash := urlutil.Hash(content)
	cached, _, err := w.cache.Get(ctx, dedup.ContentHashKey(urlHash))
	if err != nil {
		log.Error("failed to check content hash", "error", err)
		return queue.Nack
	}
	if cached == contentHash {
		log.Info("skipping url: content unchanged", "content_hash", contentHash)
		return queue.Ack
	}
	if err := w.cache.Set(ctx, dedup.ContentHashKey(urlHash), contentHash, dedup.TTLContentHash); err != nil {
		log.Error("failed to store content hash", "error", err)
		return queue.Nack
	}

	filepath := pipeline.ObjectKey(parser.Config().ID, urlHash, contentHash)

	switch parser.RenderMode() {
	case target.RenderNever:
		return w.finish(ctx, log, parser, url, urlHash, content, contentHash, filepath)

	case target.RenderAlways:
		return w.render(ctx, log, url)

	case target.RenderAuto:
		sample := parser.ExtractText(content)
		if len(sample) < w.renderThreshold {
			log.Debug("sampled text below render threshold", "sample_len", len(sample))
			return w.render(ctx, log, url)
		}
		return w.finish(ctx, log, parser, url, urlHash, content, contentHash, filepath)
	}

	return queue.Nack
}

// fetch retrieves the URL body. Non-2xx statuses and transport errors are
// transient and nack the message.
func (w *Worker) fetch(ctx context.Context, log logger.Interface, url string) (string, queue.Disposition) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.Warn("rejecting url: cannot build request", "error", err)
		return "", queue.Reject
	}
	httpReq.Header.Set("User-Agent", w.userAgent)

	resp, err := w.httpClient.Do(httpReq)
	if err != nil {
		log.Warn("failed to retrieve url", "error", err)
		return "", queue.Nack
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		log.Warn("failed to retrieve url", "status", resp.StatusCode)
		return "", queue.Nack
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		log.Warn("failed to read response body", "error", err)
		return "", queue.Nack
	}

	log.Debug("retrieved url", "size", len(body))

	return string(body), queue.Ack
}

func (w *Worker) finish(ctx context.Context, log logger.Interface, parser *target.Parser, url, urlHash, content, contentHash, filepath string) queue.Disposition {
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

func (w *Worker) render(ctx context.Context, log logger.Interface, url string) queue.Disposition {
	if err := w.pub.PublishRender(ctx, domain.RenderRequest{URL: url}); err != nil {
		log.Error("failed to publish render request", "error", err)
		return queue.Nack
	}

	log.Info("enqueued url for rendering")

	return queue.Ack
}
