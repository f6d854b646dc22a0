package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// OpenPostgres connects to the PostgreSQL database named by dsn and creates
// the schema if needed. The database itself must already exist.
func OpenPostgres(ctx context.Context, dsn string) (*CrawlDB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect: %w", translateError(err))
	}

	cdb := &CrawlDB{
		db:      db,
		dialect: dialectPostgres,
	}
	if err := cdb.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", translateError(err))
	}
	return cdb, nil
}
