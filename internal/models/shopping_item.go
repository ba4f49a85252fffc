package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ShoppingItem is a single entry on the shopping list.
// Cost is never stored; it is derived from Price and Quantity on every read.
type ShoppingItem struct {
	ID        int64           `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Quantity  int             `json:"quantity" db:"quantity"`
	Category  *string         `json:"category" db:"category"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
}

// Cost returns price * quantity.
func (i *ShoppingItem) Cost() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// MarshalJSON writes price and cost as numbers with two fractional digits.
func (i ShoppingItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        int64       `json:"id"`
		Name      string      `json:"name"`
		Price     json.Number `json:"price"`
		Quantity  int         `json:"quantity"`
		Category  *string     `json:"category"`
		CreatedAt time.Time   `json:"createdAt"`
		UpdatedAt time.Time   `json:"updatedAt"`
		Cost      json.Number `json:"cost"`
	}{
		ID:        i.ID,
		Name:      i.Name,
		Price:     Money(i.Price),
		Quantity:  i.Quantity,
		Category:  i.Category,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
		Cost:      Money(i.Cost()),
	})
}

// Money renders d as a JSON number with exactly two fractional digits.
func Money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

// ShoppingItemInput is the request body for create and update.
// Pointer fields distinguish "missing" from zero.
type ShoppingItemInput struct {
	Name     string           `json:"name"`
	Price    *decimal.Decimal `json:"price"`
	Quantity *int             `json:"quantity"`
	Category *string          `json:"category"`
}

// ShoppingListSnapshot is the document written by the export job.
type ShoppingListSnapshot struct {
	GeneratedAt time.Time       `json:"generatedAt"`
	ItemCount   int             `json:"itemCount"`
	TotalCost   json.Number     `json:"totalCost"`
	Categories  []string        `json:"categories"`
	Items       []*ShoppingItem `json:"items"`
}

// ExportResult describes an uploaded export object.
type ExportResult struct {
	Bucket    string    `json:"bucket"`
	ObjectKey string    `json:"objectKey"`
	URL       string    `json:"url"`
	Format    string    `json:"format"`
	CreatedAt time.Time `json:"createdAt"`
}
