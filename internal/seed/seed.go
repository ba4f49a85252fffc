// Package seed loads the bundled sample shopping list into an empty store.
package seed

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"

	"shoppinglist/internal/models"
)

//go:embed sample-data.json
var sampleData []byte

// ItemCreator is the part of the item service the loader needs.
type ItemCreator interface {
	Count(ctx context.Context) (int64, error)
	CreateAll(ctx context.Context, inputs []*models.ShoppingItemInput) ([]*models.ShoppingItem, error)
}

// SampleItems decodes the embedded dataset.
func SampleItems() ([]*models.ShoppingItemInput, error) {
	var items []*models.ShoppingItemInput
	if err := json.Unmarshal(sampleData, &items); err != nil {
		return nil, fmt.Errorf("decode sample data: %w", err)
	}
	return items, nil
}

// Load inserts the sample items in one transaction when the store is empty and
// returns how many were inserted. A non-empty store is left untouched.
func Load(ctx context.Context, svc ItemCreator) (int, error) {
	count, err := svc.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	if count > 0 {
		log.Printf("Database already contains %d items, skipping sample data loading", count)
		return 0, nil
	}

	items, err := SampleItems()
	if err != nil {
		return 0, err
	}

	created, err := svc.CreateAll(ctx, items)
	if err != nil {
		return 0, fmt.Errorf("insert sample items: %w", err)
	}

	log.Printf("Loaded %d sample shopping items", len(created))
	return len(created), nil
}
