package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"shoppinglist/internal/caching"
	"shoppinglist/internal/models"
	"shoppinglist/internal/repositories"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type ShoppingItemService interface {
	ListAll(ctx context.Context) ([]*models.ShoppingItem, error)
	FindByID(ctx context.Context, id int64) (*models.ShoppingItem, error)
	Create(ctx context.Context, input *models.ShoppingItemInput) (*models.ShoppingItem, error)
	CreateAll(ctx context.Context, inputs []*models.ShoppingItemInput) ([]*models.ShoppingItem, error)
	Update(ctx context.Context, id int64, input *models.ShoppingItemInput) (*models.ShoppingItem, error)
	DeleteByID(ctx context.Context, id int64) error
	FindByCategory(ctx context.Context, category string) ([]*models.ShoppingItem, error)
	SearchByName(ctx context.Context, fragment string) ([]*models.ShoppingItem, error)
	FindByMinimumCost(ctx context.Context, threshold decimal.Decimal) ([]*models.ShoppingItem, error)
	ListCategories(ctx context.Context) ([]string, error)
	TotalCost(ctx context.Context) (decimal.Decimal, error)
	Count(ctx context.Context) (int64, error)
}

type shoppingItemService struct {
	itemRepo     repositories.ShoppingItemRepository
	cacheService caching.CacheService
	cacheTTL     time.Duration
}

func NewShoppingItemService(itemRepo repositories.ShoppingItemRepository, cacheService caching.CacheService, cacheTTL time.Duration) ShoppingItemService {
	if cacheService == nil {
		cacheService = caching.NewNoopCacheService()
	}
	return &shoppingItemService{
		itemRepo:     itemRepo,
		cacheService: cacheService,
		cacheTTL:     cacheTTL,
	}
}

// Column limits of shopping_items: price NUMERIC(10,2), quantity INTEGER.
var MaxPrice = decimal.RequireFromString("99999999.99")

const MaxQuantity = math.MaxInt32

// ValidateInput checks the data-model constraints of a create/update body.
func ValidateInput(input *models.ShoppingItemInput) error {
	if input == nil {
		return newValidationError("body", "request body is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return newValidationError("name", "Name is required")
	}
	if input.Price == nil {
		return newValidationError("price", "Price is required")
	}
	if input.Price.IsNegative() {
		return newValidationError("price", "Price must be zero or positive")
	}
	if !input.Price.Equal(input.Price.Truncate(2)) {
		return newValidationError("price", "Price cannot have more than two decimal places")
	}
	if input.Price.GreaterThan(MaxPrice) {
		return newValidationError("price", "Price must not exceed "+MaxPrice.StringFixed(2))
	}
	if input.Quantity == nil {
		return newValidationError("quantity", "Quantity is required")
	}
	if *input.Quantity < 0 {
		return newValidationError("quantity", "Quantity must be zero or positive")
	}
	if *input.Quantity > MaxQuantity {
		return newValidationError("quantity", fmt.Sprintf("Quantity must not exceed %d", MaxQuantity))
	}
	return nil
}

func itemFromInput(input *models.ShoppingItemInput) *models.ShoppingItem {
	item := &models.ShoppingItem{
		Name:     input.Name,
		Price:    *input.Price,
		Quantity: *input.Quantity,
	}
	if input.Category != nil {
		category := *input.Category
		item.Category = &category
	}
	return item
}

func (s *shoppingItemService) ListAll(ctx context.Context) ([]*models.ShoppingItem, error) {
	return s.itemRepo.List(ctx)
}

func (s *shoppingItemService) FindByID(ctx context.Context, id int64) (*models.ShoppingItem, error) {
	item, err := s.itemRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("get shopping item %d: %w", id, err)
	}
	return item, nil
}

func (s *shoppingItemService) Create(ctx context.Context, input *models.ShoppingItemInput) (*models.ShoppingItem, error) {
	if err := ValidateInput(input); err != nil {
		return nil, err
	}

	item := itemFromInput(input)
	if err := s.itemRepo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("create shopping item: %w", err)
	}

	s.invalidateAggregates(ctx)
	return item, nil
}

// CreateAll validates every input first and then stores them atomically.
func (s *shoppingItemService) CreateAll(ctx context.Context, inputs []*models.ShoppingItemInput) ([]*models.ShoppingItem, error) {
	items := make([]*models.ShoppingItem, 0, len(inputs))
	for _, input := range inputs {
		if err := ValidateInput(input); err != nil {
			return nil, err
		}
		items = append(items, itemFromInput(input))
	}
	if len(items) == 0 {
		return items, nil
	}

	if err := s.itemRepo.CreateBatch(ctx, items); err != nil {
		return nil, fmt.Errorf("create shopping items: %w", err)
	}

	s.invalidateAggregates(ctx)
	return items, nil
}

// Update replaces name, price, quantity and category of an existing item.
// id and createdAt are kept; updatedAt is refreshed by the store.
func (s *shoppingItemService) Update(ctx context.Context, id int64, input *models.ShoppingItemInput) (*models.ShoppingItem, error) {
	if err := ValidateInput(input); err != nil {
		return nil, err
	}

	item := itemFromInput(input)
	item.ID = id
	if err := s.itemRepo.Update(ctx, item); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("update shopping item %d: %w", id, err)
	}

	s.invalidateAggregates(ctx)
	return item, nil
}

func (s *shoppingItemService) DeleteByID(ctx context.Context, id int64) error {
	if err := s.itemRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound(id)
		}
		return fmt.Errorf("delete shopping item %d: %w", id, err)
	}

	s.invalidateAggregates(ctx)
	return nil
}

func (s *shoppingItemService) FindByCategory(ctx context.Context, category string) ([]*models.ShoppingItem, error) {
	return s.itemRepo.ListByCategory(ctx, category)
}

func (s *shoppingItemService) SearchByName(ctx context.Context, fragment string) ([]*models.ShoppingItem, error) {
	return s.itemRepo.SearchByName(ctx, fragment)
}

func (s *shoppingItemService) FindByMinimumCost(ctx context.Context, threshold decimal.Decimal) ([]*models.ShoppingItem, error) {
	return s.itemRepo.ListByMinimumCost(ctx, threshold)
}

func (s *shoppingItemService) ListCategories(ctx context.Context) ([]string, error) {
	gen, cached := s.cacheGeneration(ctx)
	if cached {
		if categories, err := s.cacheService.GetCategories(ctx, gen); categories != nil {
			return categories, nil
		} else if err != nil {
			// cache errors never fail the request
			log.Printf("WARN: categories cache read failed: %v", err)
		}
	}

	categories, err := s.itemRepo.ListCategories(ctx)
	if err != nil {
		return nil, err
	}

	if cached {
		if cacheErr := s.cacheService.SetCategories(ctx, gen, categories, s.cacheTTL); cacheErr != nil {
			log.Printf("WARN: failed to cache categories: %v", cacheErr)
		}
	}
	return categories, nil
}

// TotalCost returns the sum of price * quantity, or zero for an empty list.
func (s *shoppingItemService) TotalCost(ctx context.Context) (decimal.Decimal, error) {
	gen, cached := s.cacheGeneration(ctx)
	if cached {
		if total, err := s.cacheService.GetTotalCost(ctx, gen); total != nil {
			return *total, nil
		} else if err != nil {
			log.Printf("WARN: total cost cache read failed: %v", err)
		}
	}

	sum, err := s.itemRepo.TotalCost(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	if sum.Valid {
		total = sum.Decimal
	}

	if cached {
		if cacheErr := s.cacheService.SetTotalCost(ctx, gen, total, s.cacheTTL); cacheErr != nil {
			log.Printf("WARN: failed to cache total cost: %v", cacheErr)
		}
	}
	return total, nil
}

// cacheGeneration must be read before the store is queried. When it cannot be
// read the cache is bypassed for this call.
func (s *shoppingItemService) cacheGeneration(ctx context.Context) (int64, bool) {
	gen, err := s.cacheService.Generation(ctx)
	if err != nil {
		log.Printf("WARN: cache generation read failed: %v", err)
		return 0, false
	}
	return gen, true
}

func (s *shoppingItemService) Count(ctx context.Context) (int64, error) {
	return s.itemRepo.Count(ctx)
}

func (s *shoppingItemService) invalidateAggregates(ctx context.Context) {
	if err := s.cacheService.InvalidateAggregates(ctx); err != nil {
		log.Printf("WARN: failed to invalidate aggregate cache: %v", err)
	}
}
