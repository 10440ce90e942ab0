package cmd

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/debias/spider/internal/config"
	"github.com/debias/spider/internal/dedup"
	"github.com/debias/spider/internal/logger"
	"github.com/debias/spider/internal/metastore"
	"github.com/debias/spider/internal/objectstore"
	"github.com/debias/spider/internal/pipeline"
	"github.com/debias/spider/internal/queue"
	"github.com/debias/spider/internal/target"
)

// deps holds the shared clients a pipeline stage needs. Stages build only
// what they use on top of this.
type deps struct {
	cfg     *config.Config
	log     logger.Interface
	broker  *queue.Client
	cache   *dedup.Cache
	db      *sqlx.DB
	meta    *metastore.Store
	objects *objectstore.Client
	targets *target.Registry
	pub     *pipeline.QueuePublisher
}

// buildDeps connects the shared backends and ensures schemas and the work
// queue stream exist.
func buildDeps(ctx context.Context, cfg *config.Config, log logger.Interface) (*deps, error) {
	broker, err := queue.Connect(cfg.Nats.DSN, log)
	if err != nil {
		return nil, err
	}
	if err := broker.EnsureStream(); err != nil {
		broker.Close()
		return nil, err
	}

	cache, err := dedup.New(cfg.KeyValue.DSN)
	if err != nil {
		broker.Close()
		return nil, err
	}

	db, err := metastore.Connect(cfg.PG.Connection)
	if err != nil {
		broker.Close()
		_ = cache.Close()
		return nil, err
	}

	meta := metastore.New(db, log)
	if err := meta.Init(ctx); err != nil {
		broker.Close()
		_ = cache.Close()
		_ = db.Close()
		return nil, err
	}

	objects, err := objectstore.New(cfg.S3, log)
	if err != nil {
		broker.Close()
		_ = cache.Close()
		_ = db.Close()
		return nil, err
	}

	targets, err := target.NewRegistry(cfg.Targets, log)
	if err != nil {
		broker.Close()
		_ = cache.Close()
		_ = db.Close()
		return nil, err
	}

	return &deps{
		cfg:     cfg,
		log:     log,
		broker:  broker,
		cache:   cache,
		db:      db,
		meta:    meta,
		objects: objects,
		targets: targets,
		pub:     pipeline.NewQueuePublisher(broker),
	}, nil
}

// close releases the shared clients in reverse connection order.
func (d *deps) close() {
	if err := d.db.Close(); err != nil {
		d.log.Warn("failed to close metadata store", "error", err)
	}
	if err := d.cache.Close(); err != nil {
		d.log.Warn("failed to close dedup cache", "error", err)
	}
	d.broker.Close()
}
