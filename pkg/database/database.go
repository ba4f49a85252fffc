package database

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createShoppingItemsTable = `
	CREATE TABLE IF NOT EXISTS shopping_items (
		id         BIGSERIAL PRIMARY KEY,
		name       TEXT NOT NULL,
		price      NUMERIC(10,2) NOT NULL CHECK (price >= 0),
		quantity   INTEGER NOT NULL CHECK (quantity >= 0),
		category   TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

const createCategoryIndex = `
	CREATE INDEX IF NOT EXISTS idx_shopping_items_category ON shopping_items (category)`

// Execer is satisfied by *pgxpool.Pool and pgxmock.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Println("Database connected successfully")

	return pool, nil
}

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, db Execer) error {
	for _, stmt := range []string{createShoppingItemsTable, createCategoryIndex} {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	log.Println("Database schema is up to date")
	return nil
}
