package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"shoppinglist/internal/common"
	"shoppinglist/internal/middleware"
	"shoppinglist/internal/models"
	"shoppinglist/internal/services"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// ShoppingItemHandlers handles HTTP requests for shopping list items
type ShoppingItemHandlers struct {
	itemService   services.ShoppingItemService
	exportService services.ExportService
}

// NewShoppingItemHandlers creates a new shopping item handlers instance
func NewShoppingItemHandlers(itemService services.ShoppingItemService, exportService services.ExportService) *ShoppingItemHandlers {
	return &ShoppingItemHandlers{
		itemService:   itemService,
		exportService: exportService,
	}
}

// RegisterRoutes mounts the item routes on g. The write middlewares wrap
// POST, PUT and DELETE only; reads stay public.
func (h *ShoppingItemHandlers) RegisterRoutes(g *echo.Group, write ...echo.MiddlewareFunc) {
	g.GET("", h.ListItems)
	g.GET("/categories", h.ListCategories)
	g.GET("/total-cost", h.GetTotalCost)
	g.GET("/export/pdf", h.ExportPDF)
	g.GET("/:id", h.GetItem)

	g.POST("", h.CreateItem, write...)
	g.POST("/export", h.PublishExport, write...)
	g.PUT("/:id", h.UpdateItem, write...)
	g.DELETE("/:id", h.DeleteItem, write...)
}

func parseItemID(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

// respondError maps service errors onto the error envelope.
func respondError(c echo.Context, err error) error {
	var validationErr *services.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return common.SendValidationError(c, validationErr.Field, validationErr.Message)
	case errors.Is(err, services.ErrItemNotFound):
		return common.SendNotFoundError(c, "Shopping item")
	default:
		log.Printf("ERROR: %s %s [request=%s subject=%q]: %v",
			c.Request().Method, c.Request().URL.Path, common.RequestID(c), middleware.Subject(c), err)
		return common.SendServerError(c, "Internal server error")
	}
}

// ListItems returns all items, or a filtered subset. Exactly one filter is
// applied: category, then search, then minCost.
//
//	@Summary	List shopping items
//	@Tags		items
//	@Produce	json
//	@Param		category	query		string	false	"Exact category"
//	@Param		search		query		string	false	"Case-insensitive name fragment"
//	@Param		minCost		query		number	false	"Minimum price * quantity"
//	@Success	200			{array}		models.ShoppingItem
//	@Failure	400			{object}	common.ErrorResponse
//	@Router		/items [get]
func (h *ShoppingItemHandlers) ListItems(c echo.Context) error {
	ctx := c.Request().Context()
	params := c.QueryParams()

	var (
		items []*models.ShoppingItem
		err   error
	)

	if category, ok := params["category"]; ok {
		items, err = h.itemService.FindByCategory(ctx, category[0])
	} else if search, ok := params["search"]; ok {
		items, err = h.itemService.SearchByName(ctx, search[0])
	} else if minCost, ok := params["minCost"]; ok {
		threshold, parseErr := decimal.NewFromString(minCost[0])
		if parseErr != nil {
			return common.SendValidationError(c, "minCost", "minCost must be a decimal number")
		}
		items, err = h.itemService.FindByMinimumCost(ctx, threshold)
	} else {
		items, err = h.itemService.ListAll(ctx)
	}
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, items)
}

// GetItem
//
//	@Summary	Get a shopping item
//	@Tags		items
//	@Produce	json
//	@Param		id	path		int	true	"Item id"
//	@Success	200	{object}	models.ShoppingItem
//	@Failure	404	{object}	common.ErrorResponse
//	@Router		/items/{id} [get]
func (h *ShoppingItemHandlers) GetItem(c echo.Context) error {
	id, err := parseItemID(c)
	if err != nil {
		return common.SendClientError(c, "Invalid item id")
	}

	item, err := h.itemService.FindByID(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

// CreateItem
//
//	@Summary	Create a shopping item
//	@Tags		items
//	@Accept		json
//	@Produce	json
//	@Param		item	body		models.ShoppingItemInput	true	"Item"
//	@Success	201		{object}	models.ShoppingItem
//	@Failure	400		{object}	common.ErrorResponse
//	@Router		/items [post]
func (h *ShoppingItemHandlers) CreateItem(c echo.Context) error {
	var input models.ShoppingItemInput
	if err := c.Bind(&input); err != nil {
		return common.SendClientError(c, "Invalid request body")
	}

	item, err := h.itemService.Create(c.Request().Context(), &input)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, item)
}

// UpdateItem
//
//	@Summary	Replace a shopping item's fields
//	@Tags		items
//	@Accept		json
//	@Produce	json
//	@Param		id		path		int							true	"Item id"
//	@Param		item	body		models.ShoppingItemInput	true	"Item"
//	@Success	200		{object}	models.ShoppingItem
//	@Failure	400		{object}	common.ErrorResponse
//	@Failure	404		{object}	common.ErrorResponse
//	@Router		/items/{id} [put]
func (h *ShoppingItemHandlers) UpdateItem(c echo.Context) error {
	id, err := parseItemID(c)
	if err != nil {
		return common.SendClientError(c, "Invalid item id")
	}

	var input models.ShoppingItemInput
	if err := c.Bind(&input); err != nil {
		return common.SendClientError(c, "Invalid request body")
	}

	item, err := h.itemService.Update(c.Request().Context(), id, &input)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

// DeleteItem
//
//	@Summary	Delete a shopping item
//	@Tags		items
//	@Param		id	path	int	true	"Item id"
//	@Success	204
//	@Failure	404	{object}	common.ErrorResponse
//	@Router		/items/{id} [delete]
func (h *ShoppingItemHandlers) DeleteItem(c echo.Context) error {
	id, err := parseItemID(c)
	if err != nil {
		return common.SendClientError(c, "Invalid item id")
	}

	if err := h.itemService.DeleteByID(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListCategories
//
//	@Summary	Distinct categories in ascending order
//	@Tags		items
//	@Produce	json
//	@Success	200	{array}	string
//	@Router		/items/categories [get]
func (h *ShoppingItemHandlers) ListCategories(c echo.Context) error {
	categories, err := h.itemService.ListCategories(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, categories)
}

// GetTotalCost
//
//	@Summary	Sum of price * quantity over all items
//	@Tags		items
//	@Produce	json
//	@Success	200	{number}	number
//	@Router		/items/total-cost [get]
func (h *ShoppingItemHandlers) GetTotalCost(c echo.Context) error {
	total, err := h.itemService.TotalCost(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, models.Money(total))
}

// ExportPDF streams the current list as a PDF document.
//
//	@Summary	Download the list as PDF
//	@Tags		export
//	@Produce	application/pdf
//	@Success	200
//	@Router		/items/export/pdf [get]
func (h *ShoppingItemHandlers) ExportPDF(c echo.Context) error {
	data, err := h.exportService.RenderPDF(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="shopping-list.pdf"`)
	return c.Blob(http.StatusOK, "application/pdf", data)
}

// PublishExport uploads a JSON or PDF export to object storage.
//
//	@Summary	Publish an export to object storage
//	@Tags		export
//	@Produce	json
//	@Param		format	query		string	false	"json (default) or pdf"
//	@Success	201		{object}	models.ExportResult
//	@Failure	400		{object}	common.ErrorResponse
//	@Failure	503		{object}	common.ErrorResponse
//	@Router		/items/export [post]
func (h *ShoppingItemHandlers) PublishExport(c echo.Context) error {
	result, err := h.exportService.Publish(c.Request().Context(), c.QueryParam("format"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrStorageDisabled):
			return common.SendUnavailableError(c, "Export storage is not configured")
		case errors.Is(err, services.ErrUnsupportedFormat):
			return common.SendValidationError(c, "format", "format must be json or pdf")
		}
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, result)
}
