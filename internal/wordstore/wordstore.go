// Package wordstore persists analysis results into the analytics tables
// that the aggregation service reads. Keyword and topic counts are
// maintained with primary-key upserts, so reprocessing a message only
// increments counters instead of failing.
package wordstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/debias/spider/internal/logger"
	"github.com/debias/spider/internal/nlp"
	"github.com/debias/spider/internal/target"
)

// Store provides access to the analytics tables.
type Store struct {
	db  *sqlx.DB
	log logger.Interface
}

// New creates a wordstore over an existing connection pool.
func New(db *sqlx.DB, log logger.Interface) *Store {
	return &Store{db: db, log: log}
}

// Init creates the analytics tables if they do not exist.
func (s *Store) Init(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS targets (
			id TEXT NOT NULL PRIMARY KEY,
			name TEXT NOT NULL,
			main_page TEXT NOT NULL,
			country TEXT NOT NULL,
			alignment TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id BIGSERIAL PRIMARY KEY,
			absolute_url TEXT NOT NULL,
			url_hash TEXT NOT NULL,
			target_id TEXT NOT NULL REFERENCES targets(id),
			scrape_datetime TIMESTAMP NOT NULL,
			article_datetime TIMESTAMP,
			title TEXT NOT NULL DEFAULT '',
			snippet TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS keywords (
			id BIGSERIAL PRIMARY KEY,
			type TEXT NOT NULL,
			keyword TEXT NOT NULL,
			count BIGINT NOT NULL,
			UNIQUE (type, keyword)
		)`,
		`CREATE TABLE IF NOT EXISTS topics (
			id BIGSERIAL PRIMARY KEY,
			type TEXT NOT NULL,
			topic TEXT NOT NULL,
			count BIGINT NOT NULL,
			UNIQUE (type, topic)
		)`,
		`CREATE TABLE IF NOT EXISTS keyword_appearances (
			keyword_id BIGINT NOT NULL REFERENCES keywords(id),
			document_id BIGINT NOT NULL REFERENCES documents(id),
			count BIGINT NOT NULL,
			PRIMARY KEY (keyword_id, document_id)
		)`,
		`CREATE TABLE IF NOT EXISTS topic_appearances (
			topic_id BIGINT NOT NULL REFERENCES topics(id),
			document_id BIGINT NOT NULL REFERENCES documents(id),
			count BIGINT NOT NULL,
			PRIMARY KEY (topic_id, document_id)
		)`,
	}

	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create analytics tables: %w", err)
		}
	}

	return nil
}

// SyncTargets upserts the configured targets into the analytics targets
// table so document rows can join on alignment and country.
func (s *Store) SyncTargets(ctx context.Context, configs []target.Config) error {
	const query = `
		INSERT INTO targets (id, name, main_page, country, alignment)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			main_page = EXCLUDED.main_page,
			country = EXCLUDED.country,
			alignment = EXCLUDED.alignment`

	for _, cfg := range configs {
		if _, err := s.db.ExecContext(ctx, query, cfg.ID, cfg.Name, cfg.RootURL, cfg.Country, cfg.Alignment); err != nil {
			return fmt.Errorf("sync target %s: %w", cfg.ID, err)
		}
	}

	s.log.Info("synced targets", "count", len(configs))

	return nil
}

// Save persists one analysis result atomically: the document row, keyword
// and topic upserts, and their appearance counts.
func (s *Store) Save(ctx context.Context, result *nlp.Result) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	documentID, err := insertDocument(ctx, tx, result)
	if err != nil {
		return err
	}

	for _, keyword := range result.Keywords {
		keywordID, insertErr := upsertKeyword(ctx, tx, keyword)
		if insertErr != nil {
			return insertErr
		}
		if appearErr := upsertAppearance(ctx, tx, "keyword_appearances", "keyword_id", keywordID, documentID); appearErr != nil {
			return appearErr
		}
	}

	for _, topic := range result.Topics {
		topicID, insertErr := upsertTopic(ctx, tx, topic)
		if insertErr != nil {
			return insertErr
		}
		if appearErr := upsertAppearance(ctx, tx, "topic_appearances", "topic_id", topicID, documentID); appearErr != nil {
			return appearErr
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit analysis result: %w", err)
	}

	s.log.Info("saved analysis result",
		"document_id", documentID,
		"keywords", len(result.Keywords),
		"topics", len(result.Topics),
	)

	return nil
}

func insertDocument(ctx context.Context, tx *sqlx.Tx, result *nlp.Result) (int64, error) {
	const query = `
		INSERT INTO documents (
			absolute_url, url_hash, target_id,
			scrape_datetime, article_datetime, title, snippet
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	var id int64
	err := tx.QueryRowContext(
		ctx, query,
		result.AbsoluteURL, result.URLHash, result.TargetID,
		result.ScrapeDatetime, result.ArticleDatetime, result.Title, result.Snippet,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert document %s: %w", result.AbsoluteURL, err)
	}

	return id, nil
}

func upsertKeyword(ctx context.Context, tx *sqlx.Tx, keyword nlp.Keyword) (int64, error) {
	const query = `
		INSERT INTO keywords (type, keyword, count) VALUES ($1, $2, 1)
		ON CONFLICT (type, keyword) DO UPDATE SET count = keywords.count + 1
		RETURNING id`

	var id int64
	if err := tx.QueryRowContext(ctx, query, keyword.Type, keyword.Text).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert keyword %q: %w", keyword.Text, err)
	}
	return id, nil
}

func upsertTopic(ctx context.Context, tx *sqlx.Tx, topic nlp.Topic) (int64, error) {
	const query = `
		INSERT INTO topics (type, topic, count) VALUES ($1, $2, 1)
		ON CONFLICT (type, topic) DO UPDATE SET count = topics.count + 1
		RETURNING id`

	var id int64
	if err := tx.QueryRowContext(ctx, query, topic.Type, topic.Text).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert topic %q: %w", topic.Text, err)
	}
	return id, nil
}

func upsertAppearance(ctx context.Context, tx *sqlx.Tx, table, idColumn string, id, documentID int64) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, document_id, count) VALUES ($1, $2, 1)
		ON CONFLICT (%s, document_id) DO UPDATE SET count = %s.count + 1`,
		table, idColumn, idColumn, table,
	)

	if _, err := tx.ExecContext(ctx, query, id, documentID); err != nil {
		return fmt.Errorf("upsert appearance in %s: %w", table, err)
	}
	return nil
}
