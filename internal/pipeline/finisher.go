package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/debias/spider/internal/domain"
	"github.com/debias/spider/internal/logger"
	"github.com/debias/spider/internal/metastore"
	"github.com/debias/spider/internal/target"
	"github.com/debias/spider/internal/urlutil"
)

// MetadataStore is the transactional slice of the metadata store used by the
// finish sequence.
type MetadataStore interface {
	WithTransaction(ctx context.Context, fn func(tx *sqlx.Tx) error) error
	SaveTx(ctx context.Context, tx *sqlx.Tx, m *metastore.Metadata) (int64, error)
}

// Uploader stores one artifact in the object store.
type Uploader interface {
	Upload(ctx context.Context, key string, content []byte) error
}

// ObjectKey builds the content-addressed object-store key for an artifact.
// Repeated fetches of the same URL with changed content land in sibling keys.
func ObjectKey(targetID, urlHash, contentHash string) string {
	return fmt.Sprintf("%s/%s/%s.html", targetID, urlHash, contentHash)
}

// Finisher runs the finish sequence: upload the artifact, insert the metadata
// row, and publish the process request, all within one metadata-store
// transaction scope. The upload is not rolled back on failure; an orphaned
// object without a metadata row is tolerated garbage.
type Finisher struct {
	meta    MetadataStore
	objects Uploader
	pub     Publisher
	log     logger.Interface
}

// NewFinisher wires the finish sequence dependencies.
func NewFinisher(meta MetadataStore, objects Uploader, pub Publisher, log logger.Interface) *Finisher {
	return &Finisher{meta: meta, objects: objects, pub: pub, log: log}
}

// Finish persists one crawled page. url must already be normalized.
func (f *Finisher) Finish(ctx context.Context, parser *target.Parser, url, urlHash, content, contentHash, filepath string) error {
	cfg := parser.Config()

	err := f.meta.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if err := f.objects.Upload(ctx, filepath, []byte(content)); err != nil {
			return err
		}

		now := time.Now().UTC()
		id, err := f.meta.SaveTx(ctx, tx, &metastore.Metadata{
			TargetID:    cfg.ID,
			TargetName:  cfg.Name,
			AbsoluteURL: url,
			LastScrape:  now,
			Filepath:    filepath,
			URLHash:     urlHash,
			ContentHash: contentHash,
			ContentSize: int64(len(content)),
		})
		if err != nil {
			return err
		}

		return f.pub.PublishProcess(ctx, domain.ProcessRequest{
			URL:        url,
			TargetID:   cfg.ID,
			Filepath:   filepath,
			MetadataID: id,
			Datetime:   now,
		})
	})
	if err != nil {
		return fmt.Errorf("finish %s: %w", url, err)
	}

	f.log.Info("finished page", "url", url, "filepath", filepath)

	return nil
}

// Expand extracts hrefs from finished HTML and publishes one fetch request
// per normalized URL, concurrently. Duplicates are filtered later by the
// fetch worker's dedup step. A failed publish surfaces as an error so the
// caller can nack; the committed crawl stays valid.
func (f *Finisher) Expand(ctx context.Context, parser *target.Parser, pageURL, content string) error {
	hrefs := parser.ExtractHrefs(content)
	if len(hrefs) == 0 {
		return nil
	}

	rootDomain := urlutil.Domain(pageURL)

	urls := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		normalized, err := urlutil.Normalize(urlutil.Absolute(rootDomain, href))
		if err != nil {
			f.log.Warn("skipping malformed href", "href", href, "error", err)
			continue
		}
		urls = append(urls, normalized)
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(urls))

	for _, u := range urls {
		wg.Add(1)
		go func(next string) {
			defer wg.Done()
			if err := f.pub.PublishFetch(ctx, domain.FetchRequest{URL: next}); err != nil {
				errCh <- err
			}
		}(u)
	}

	wg.Wait()
	close(errCh)

	if err := <-errCh; err != nil {
		return fmt.Errorf("expand frontier of %s: %w", pageURL, err)
	}

	f.log.Debug("expanded frontier", "url", pageURL, "links", len(urls))

	return nil
}
