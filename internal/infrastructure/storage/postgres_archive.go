package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"immosync/internal/domain"
	"immosync/internal/ports"
)

// PostgresArchive keeps an append-only history of every assembled record
// per run. The archive is for auditing scrape quality over time; the remote
// store stays the single source of truth for the published set.
type PostgresArchive struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.Archive = (*PostgresArchive)(nil)

// NewPostgresArchive opens the connection and ensures the schema exists.
func NewPostgresArchive(dsn string) (*PostgresArchive, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	archive := &PostgresArchive{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
	if err := archive.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return archive, nil
}

func (a *PostgresArchive) migrate() error {
	_, err := a.db.Exec(`
		CREATE TABLE IF NOT EXISTS scraped_properties (
			id           BIGSERIAL PRIMARY KEY,
			run_id       UUID        NOT NULL,
			object_key   TEXT        NOT NULL DEFAULT '',
			title        TEXT        NOT NULL DEFAULT '',
			category     VARCHAR(16) NOT NULL DEFAULT '',
			subcategory  VARCHAR(16) NOT NULL DEFAULT '',
			price        NUMERIC(12,2),
			location     TEXT        NOT NULL DEFAULT '',
			description  TEXT        NOT NULL DEFAULT '',
			summary      TEXT        NOT NULL DEFAULT '',
			image_url    TEXT        NOT NULL DEFAULT '',
			source_url   TEXT        NOT NULL DEFAULT '',
			scraped_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_scraped_properties_run ON scraped_properties(run_id);
		CREATE INDEX IF NOT EXISTS idx_scraped_properties_key ON scraped_properties(object_key);
	`)
	return err
}

// SaveRun appends the assembled records of one run.
func (a *PostgresArchive) SaveRun(ctx context.Context, runID string, records []domain.PropertyRecord) error {
	if a.db == nil || len(records) == 0 {
		return nil
	}

	insert := a.builder.
		Insert("scraped_properties").
		Columns("run_id", "object_key", "title", "category", "subcategory",
			"price", "location", "description", "summary", "image_url", "source_url")

	for _, rec := range records {
		var price any
		if rec.Price > 0 {
			price = rec.Price
		}
		insert = insert.Values(runID, rec.ObjectKey, rec.Title, string(rec.Category),
			string(rec.Subcategory), price, rec.Location, rec.Description,
			rec.Summary, rec.ImageURL, rec.SourceURL)
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := a.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run %s: %w", runID, err)
	}
	return nil
}

// Close releases the database connection.
func (a *PostgresArchive) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
