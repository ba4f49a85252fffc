package testhelpers

import (
	"context"
	"os"
	"testing"

	"shoppinglist/internal/models"
	"shoppinglist/pkg/database"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// TestDB holds the database connection for testing
type TestDB struct {
	Pool    *pgxpool.Pool
	Cleanup func() error
}

// SetupTestDB connects to TEST_DATABASE_URL, migrates the schema and empties
// shopping_items. The test is skipped when no database is configured.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	truncate := func() error {
		_, err := pool.Exec(context.Background(), `TRUNCATE shopping_items RESTART IDENTITY`)
		return err
	}
	if err := truncate(); err != nil {
		pool.Close()
		t.Fatalf("Failed to truncate shopping_items: %v", err)
	}

	return &TestDB{
		Pool: pool,
		Cleanup: func() error {
			defer pool.Close()
			return truncate()
		},
	}
}

// SetupTestItem inserts an item directly and returns it with storage fields set.
func SetupTestItem(t *testing.T, db *TestDB, name, price string, quantity int, category *string) *models.ShoppingItem {
	t.Helper()

	item := &models.ShoppingItem{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Quantity: quantity,
		Category: category,
	}

	query := `
		INSERT INTO shopping_items (name, price, quantity, category)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err := db.Pool.QueryRow(context.Background(), query, item.Name, item.Price, item.Quantity, item.Category).
		Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		t.Fatalf("Failed to create test item: %v", err)
	}

	return item
}

func StringPtr(s string) *string {
	return &s
}
