// Package metastore keeps the append-only record of crawled artifacts in
// PostgreSQL. Rows are written once by the finish sequence and never updated.
package metastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/debias/spider/internal/logger"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
	defaultPingTimeout     = 5 * time.Second
)

// Metadata is one row per successful fetch.
type Metadata struct {
	ID          int64     `db:"id"`
	TargetID    string    `db:"target_id"`
	TargetName  string    `db:"target_name"`
	AbsoluteURL string    `db:"absolute_url"`
	LastScrape  time.Time `db:"last_scrape"`
	Filepath    string    `db:"filepath"`
	URLHash     string    `db:"url_hash"`
	ContentHash string    `db:"content_hash"`
	ContentSize int64     `db:"content_size"`
}

// Connect opens a PostgreSQL connection pool and verifies it with a ping.
func Connect(conn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", conn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), defaultPingTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	return db, nil
}

// Store provides access to the metadata table.
type Store struct {
	db  *sqlx.DB
	log logger.Interface
}

// New creates a metadata store over an existing connection pool.
func New(db *sqlx.DB, log logger.Interface) *Store {
	return &Store{db: db, log: log}
}

// Init creates the metadata table if it does not exist.
func (s *Store) Init(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS metadata (
			id BIGSERIAL PRIMARY KEY,
			target_id TEXT NOT NULL,
			target_name TEXT NOT NULL,
			absolute_url TEXT NOT NULL,
			last_scrape TIMESTAMP NOT NULL,
			filepath TEXT NOT NULL,
			url_hash TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			content_size BIGINT NOT NULL
		)`

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create metadata table: %w", err)
	}

	return nil
}

// WithTransaction runs fn inside a transaction. The transaction commits when
// fn returns nil and rolls back otherwise.
func (s *Store) WithTransaction(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Error("transaction rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// SaveTx inserts a metadata row inside a transaction and returns the
// assigned id.
func (s *Store) SaveTx(ctx context.Context, tx *sqlx.Tx, m *Metadata) (int64, error) {
	const query = `
		INSERT INTO metadata (
			target_id, target_name, absolute_url, last_scrape,
			filepath, url_hash, content_hash, content_size
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	var id int64
	err := tx.QueryRowContext(
		ctx, query,
		m.TargetID, m.TargetName, m.AbsoluteURL, m.LastScrape,
		m.Filepath, m.URLHash, m.ContentHash, m.ContentSize,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert metadata: %w", err)
	}

	s.log.Debug("saved metadata", "id", id, "filepath", m.Filepath)

	return id, nil
}

// Read returns the metadata row with the given id, or nil if absent.
func (s *Store) Read(ctx context.Context, id int64) (*Metadata, error) {
	const query = `
		SELECT id, target_id, target_name, absolute_url, last_scrape,
		       filepath, url_hash, content_hash, content_size
		FROM metadata
		WHERE id = $1`

	var m Metadata
	if err := s.db.GetContext(ctx, &m, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("read metadata %d: %w", id, err)
	}

	return &m, nil
}
