package repositories

import (
	"context"
	"fmt"
	"log"
	"strings"

	"shoppinglist/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type ShoppingItemRepository interface {
	Create(ctx context.Context, item *models.ShoppingItem) error
	CreateBatch(ctx context.Context, items []*models.ShoppingItem) error
	GetByID(ctx context.Context, id int64) (*models.ShoppingItem, error)
	Update(ctx context.Context, item *models.ShoppingItem) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*models.ShoppingItem, error)
	ListByCategory(ctx context.Context, category string) ([]*models.ShoppingItem, error)
	SearchByName(ctx context.Context, fragment string) ([]*models.ShoppingItem, error)
	ListByMinimumCost(ctx context.Context, minCost decimal.Decimal) ([]*models.ShoppingItem, error)
	ListCategories(ctx context.Context) ([]string, error)
	TotalCost(ctx context.Context) (decimal.NullDecimal, error)
	Count(ctx context.Context) (int64, error)
}

type shoppingItemRepo struct {
	db Database
}

func NewShoppingItemRepo(db Database) ShoppingItemRepository {
	return &shoppingItemRepo{db: db}
}

const insertItemQuery = `
	INSERT INTO shopping_items (name, price, quantity, category, created_at, updated_at)
	VALUES ($1, $2, $3, $4, NOW(), NOW())
	RETURNING id, created_at, updated_at
`

func insertItem(ctx context.Context, q rowQuerier, item *models.ShoppingItem) error {
	return q.QueryRow(ctx, insertItemQuery, item.Name, item.Price, item.Quantity, item.Category).
		Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
}

// Create inserts the item and fills in the storage-assigned id and timestamps.
func (r *shoppingItemRepo) Create(ctx context.Context, item *models.ShoppingItem) error {
	return insertItem(ctx, r.db, item)
}

// CreateBatch inserts all items in one transaction. Either every item is
// stored or none is.
func (r *shoppingItemRepo) CreateBatch(ctx context.Context, items []*models.ShoppingItem) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	for _, item := range items {
		if err := insertItem(ctx, tx, item); err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Printf("WARN: rollback failed: %v", rbErr)
			}
			return fmt.Errorf("insert %q: %w", item.Name, err)
		}
	}

	return tx.Commit(ctx)
}

// GetByID returns pgx.ErrNoRows when no row has the id.
func (r *shoppingItemRepo) GetByID(ctx context.Context, id int64) (*models.ShoppingItem, error) {
	query := `
		SELECT id, name, price, quantity, category, created_at, updated_at
		FROM shopping_items
		WHERE id = $1
	`
	item := &models.ShoppingItem{}
	err := r.db.QueryRow(ctx, query, id).Scan(&item.ID, &item.Name, &item.Price, &item.Quantity, &item.Category, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Update replaces the mutable columns of item.ID and refreshes updated_at.
// created_at is read back, never written. Returns pgx.ErrNoRows when the id is gone.
func (r *shoppingItemRepo) Update(ctx context.Context, item *models.ShoppingItem) error {
	query := `
		UPDATE shopping_items
		SET name = $1, price = $2, quantity = $3, category = $4, updated_at = GREATEST(NOW(), created_at)
		WHERE id = $5
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query, item.Name, item.Price, item.Quantity, item.Category, item.ID).
		Scan(&item.CreatedAt, &item.UpdatedAt)
}

// Delete hard-deletes the row. Returns pgx.ErrNoRows when nothing was removed.
func (r *shoppingItemRepo) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM shopping_items WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// List returns every row in id order.
func (r *shoppingItemRepo) List(ctx context.Context) ([]*models.ShoppingItem, error) {
	query := `
		SELECT id, name, price, quantity, category, created_at, updated_at
		FROM shopping_items
		ORDER BY id
	`
	return r.queryItems(ctx, query)
}

// ListByCategory: category = $1, case-sensitive.
func (r *shoppingItemRepo) ListByCategory(ctx context.Context, category string) ([]*models.ShoppingItem, error) {
	query := `
		SELECT id, name, price, quantity, category, created_at, updated_at
		FROM shopping_items
		WHERE category = $1
		ORDER BY id
	`
	return r.queryItems(ctx, query, category)
}

// SearchByName: name ILIKE %fragment%, with LIKE wildcards in fragment matched literally.
func (r *shoppingItemRepo) SearchByName(ctx context.Context, fragment string) ([]*models.ShoppingItem, error) {
	query := `
		SELECT id, name, price, quantity, category, created_at, updated_at
		FROM shopping_items
		WHERE name ILIKE $1 ESCAPE '\'
		ORDER BY id
	`
	return r.queryItems(ctx, query, "%"+escapeLike(fragment)+"%")
}

// ListByMinimumCost: price * quantity >= $1, compared as NUMERIC.
func (r *shoppingItemRepo) ListByMinimumCost(ctx context.Context, minCost decimal.Decimal) ([]*models.ShoppingItem, error) {
	query := `
		SELECT id, name, price, quantity, category, created_at, updated_at
		FROM shopping_items
		WHERE price * quantity >= $1
		ORDER BY id
	`
	return r.queryItems(ctx, query, minCost)
}

// ListCategories returns distinct non-null categories in byte order.
func (r *shoppingItemRepo) ListCategories(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT category COLLATE "C" AS category
		FROM shopping_items
		WHERE category IS NOT NULL
		ORDER BY 1
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []string{}
	for rows.Next() {
		var category string
		if err := rows.Scan(&category); err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

// TotalCost returns SUM(price * quantity); Valid is false on an empty table.
func (r *shoppingItemRepo) TotalCost(ctx context.Context) (decimal.NullDecimal, error) {
	query := `SELECT SUM(price * quantity) FROM shopping_items`
	var total decimal.NullDecimal
	if err := r.db.QueryRow(ctx, query).Scan(&total); err != nil {
		return decimal.NullDecimal{}, err
	}
	return total, nil
}

func (r *shoppingItemRepo) Count(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(*) FROM shopping_items`
	var count int64
	err := r.db.QueryRow(ctx, query).Scan(&count)
	return count, err
}

func (r *shoppingItemRepo) queryItems(ctx context.Context, query string, args ...interface{}) ([]*models.ShoppingItem, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*models.ShoppingItem{}
	for rows.Next() {
		item := &models.ShoppingItem{}
		if err := rows.Scan(&item.ID, &item.Name, &item.Price, &item.Quantity, &item.Category, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
