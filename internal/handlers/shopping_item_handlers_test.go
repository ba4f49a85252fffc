package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"shoppinglist/internal/common"
	"shoppinglist/internal/models"
	"shoppinglist/internal/services"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type MockShoppingItemService struct {
	mock.Mock
}

func (m *MockShoppingItemService) items(args mock.Arguments) ([]*models.ShoppingItem, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ShoppingItem), args.Error(1)
}

func (m *MockShoppingItemService) ListAll(ctx context.Context) ([]*models.ShoppingItem, error) {
	return m.items(m.Called(ctx))
}

func (m *MockShoppingItemService) FindByID(ctx context.Context, id int64) (*models.ShoppingItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ShoppingItem), args.Error(1)
}

func (m *MockShoppingItemService) Create(ctx context.Context, input *models.ShoppingItemInput) (*models.ShoppingItem, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ShoppingItem), args.Error(1)
}

func (m *MockShoppingItemService) CreateAll(ctx context.Context, inputs []*models.ShoppingItemInput) ([]*models.ShoppingItem, error) {
	return m.items(m.Called(ctx, inputs))
}

func (m *MockShoppingItemService) Update(ctx context.Context, id int64, input *models.ShoppingItemInput) (*models.ShoppingItem, error) {
	args := m.Called(ctx, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ShoppingItem), args.Error(1)
}

func (m *MockShoppingItemService) DeleteByID(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockShoppingItemService) FindByCategory(ctx context.Context, category string) ([]*models.ShoppingItem, error) {
	return m.items(m.Called(ctx, category))
}

func (m *MockShoppingItemService) SearchByName(ctx context.Context, fragment string) ([]*models.ShoppingItem, error) {
	return m.items(m.Called(ctx, fragment))
}

func (m *MockShoppingItemService) FindByMinimumCost(ctx context.Context, threshold decimal.Decimal) ([]*models.ShoppingItem, error) {
	return m.items(m.Called(ctx, threshold.String()))
}

func (m *MockShoppingItemService) ListCategories(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockShoppingItemService) TotalCost(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockShoppingItemService) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type MockExportService struct {
	mock.Mock
}

func (m *MockExportService) Snapshot(ctx context.Context) (*models.ShoppingListSnapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ShoppingListSnapshot), args.Error(1)
}

func (m *MockExportService) RenderPDF(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockExportService) Publish(ctx context.Context, format string) (*models.ExportResult, error) {
	args := m.Called(ctx, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExportResult), args.Error(1)
}

func (m *MockExportService) StorageEnabled() bool {
	return m.Called().Bool(0)
}

type ShoppingItemHandlersTestSuite struct {
	suite.Suite
	itemSvc   *MockShoppingItemService
	exportSvc *MockExportService
	e         *echo.Echo
}

func (suite *ShoppingItemHandlersTestSuite) SetupTest() {
	suite.itemSvc = new(MockShoppingItemService)
	suite.exportSvc = new(MockExportService)

	suite.e = echo.New()
	suite.e.HTTPErrorHandler = common.HTTPErrorHandler
	suite.e.Pre(echoMiddleware.RemoveTrailingSlash())

	h := NewShoppingItemHandlers(suite.itemSvc, suite.exportSvc)
	h.RegisterRoutes(suite.e.Group("/items"))
	h.RegisterRoutes(suite.e.Group("/api/items"))
}

func (suite *ShoppingItemHandlersTestSuite) TearDownTest() {
	suite.itemSvc.AssertExpectations(suite.T())
	suite.exportSvc.AssertExpectations(suite.T())
}

func TestShoppingItemHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(ShoppingItemHandlersTestSuite))
}

func (suite *ShoppingItemHandlersTestSuite) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	suite.e.ServeHTTP(rec, req)
	return rec
}

func milk() *models.ShoppingItem {
	dairy := "Dairy"
	ts := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	return &models.ShoppingItem{
		ID:        1,
		Name:      "Whole Milk",
		Price:     decimal.RequireFromString("2.50"),
		Quantity:  3,
		Category:  &dairy,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

func (suite *ShoppingItemHandlersTestSuite) TestListItems_NoFilter() {
	suite.itemSvc.On("ListAll", mock.Anything).Return([]*models.ShoppingItem{milk()}, nil)

	rec := suite.do(http.MethodGet, "/items", "")
	assert.Equal(suite.T(), http.StatusOK, rec.Code)

	var body []map[string]interface{}
	require.NoError(suite.T(), json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(suite.T(), body, 1)
	assert.Equal(suite.T(), "Whole Milk", body[0]["name"])
	assert.Equal(suite.T(), 7.5, body[0]["cost"])
	assert.Contains(suite.T(), rec.Body.String(), `"cost":7.50`)
}

func (suite *ShoppingItemHandlersTestSuite) TestListItems_EmptyIsArray() {
	suite.itemSvc.On("ListAll", mock.Anything).Return([]*models.ShoppingItem{}, nil)

	rec := suite.do(http.MethodGet, "/api/items/", "")
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.JSONEq(suite.T(), `[]`, rec.Body.String())
}

func (suite *ShoppingItemHandlersTestSuite) TestListItems_FilterPrecedence() {
	tests := []struct {
		name   string
		query  string
		method string
		arg    string
	}{
		{name: "category wins over search and minCost", query: "?category=Dairy&search=milk&minCost=1", method: "FindByCategory", arg: "Dairy"},
		{name: "search wins over minCost", query: "?search=milk&minCost=1", method: "SearchByName", arg: "milk"},
		{name: "minCost alone", query: "?minCost=7.00", method: "FindByMinimumCost", arg: "7"},
		{name: "empty category still counts as present", query: "?category=&search=milk", method: "FindByCategory", arg: ""},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			suite.itemSvc.On(tt.method, mock.Anything, tt.arg).Return([]*models.ShoppingItem{milk()}, nil).Once()

			rec := suite.do(http.MethodGet, "/items"+tt.query, "")
			assert.Equal(suite.T(), http.StatusOK, rec.Code)
		})
	}
}

func (suite *ShoppingItemHandlersTestSuite) TestListItems_EmptyCategoryFilter() {
	salt := milk()
	salt.Name = "Salt"
	salt.Category = new(string)
	suite.itemSvc.On("FindByCategory", mock.Anything, "").Return([]*models.ShoppingItem{salt}, nil).Once()

	rec := suite.do(http.MethodGet, "/api/items?category=", "")
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.Contains(suite.T(), rec.Body.String(), `"category":""`)
	suite.itemSvc.AssertNotCalled(suite.T(), "ListAll", mock.Anything)
}

func (suite *ShoppingItemHandlersTestSuite) TestListItems_BadMinCost() {
	rec := suite.do(http.MethodGet, "/items?minCost=cheap", "")

	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)
	assert.Contains(suite.T(), rec.Body.String(), "VALIDATION_ERROR")
}

func (suite *ShoppingItemHandlersTestSuite) TestGetItem() {
	suite.itemSvc.On("FindByID", mock.Anything, int64(1)).Return(milk(), nil)

	rec := suite.do(http.MethodGet, "/items/1", "")
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.Contains(suite.T(), rec.Body.String(), `"price":2.50`)
	assert.Contains(suite.T(), rec.Body.String(), `"createdAt":"2024-01-01T08:00:00Z"`)
}

func (suite *ShoppingItemHandlersTestSuite) TestGetItem_NotFound() {
	suite.itemSvc.On("FindByID", mock.Anything, int64(999)).
		Return(nil, fmt.Errorf("%w with id: 999", services.ErrItemNotFound))

	rec := suite.do(http.MethodGet, "/items/999", "")
	assert.Equal(suite.T(), http.StatusNotFound, rec.Code)
	assert.Contains(suite.T(), rec.Body.String(), "NOT_FOUND")
}

func (suite *ShoppingItemHandlersTestSuite) TestGetItem_BadID() {
	rec := suite.do(http.MethodGet, "/items/abc", "")
	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)
}

func (suite *ShoppingItemHandlersTestSuite) TestGetItem_StorageErrorIsHidden() {
	suite.itemSvc.On("FindByID", mock.Anything, int64(1)).Return(nil, errors.New("dial tcp 10.0.0.5:5432: refused"))

	rec := suite.do(http.MethodGet, "/items/1", "")
	assert.Equal(suite.T(), http.StatusInternalServerError, rec.Code)
	assert.NotContains(suite.T(), rec.Body.String(), "10.0.0.5")
}

func (suite *ShoppingItemHandlersTestSuite) TestCreateItem() {
	suite.itemSvc.On("Create", mock.Anything, mock.MatchedBy(func(in *models.ShoppingItemInput) bool {
		return in.Name == "Whole Milk" && in.Price.Equal(decimal.RequireFromString("2.5")) && *in.Quantity == 3 && *in.Category == "Dairy"
	})).Return(milk(), nil)

	rec := suite.do(http.MethodPost, "/items", `{"name":"Whole Milk","price":2.50,"quantity":3,"category":"Dairy"}`)
	assert.Equal(suite.T(), http.StatusCreated, rec.Code)
	assert.Contains(suite.T(), rec.Body.String(), `"id":1`)
}

func (suite *ShoppingItemHandlersTestSuite) TestCreateItem_ValidationError() {
	suite.itemSvc.On("Create", mock.Anything, mock.Anything).
		Return(nil, &services.ValidationError{Field: "name", Message: "Name is required"})

	rec := suite.do(http.MethodPost, "/items", `{"name":"","price":1,"quantity":1}`)
	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)

	var resp common.ErrorResponse
	require.NoError(suite.T(), json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(suite.T(), "Name is required", resp.Error.Details["name"])
}

func (suite *ShoppingItemHandlersTestSuite) TestCreateItem_EmptyCategoryPassedThrough() {
	salt := milk()
	salt.Category = new(string)
	suite.itemSvc.On("Create", mock.Anything, mock.MatchedBy(func(in *models.ShoppingItemInput) bool {
		return in.Category != nil && *in.Category == ""
	})).Return(salt, nil)

	rec := suite.do(http.MethodPost, "/items", `{"name":"Salt","price":0.99,"quantity":1,"category":""}`)
	assert.Equal(suite.T(), http.StatusCreated, rec.Code)
	assert.Contains(suite.T(), rec.Body.String(), `"category":""`)
}

func (suite *ShoppingItemHandlersTestSuite) TestCreateItem_MalformedBody() {
	rec := suite.do(http.MethodPost, "/items", `{"name":`)
	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)
	suite.itemSvc.AssertNotCalled(suite.T(), "Create", mock.Anything, mock.Anything)
}

func (suite *ShoppingItemHandlersTestSuite) TestUpdateItem() {
	updated := milk()
	updated.Name = "Oat Milk"
	updated.UpdatedAt = updated.CreatedAt.Add(time.Minute)
	suite.itemSvc.On("Update", mock.Anything, int64(1), mock.AnythingOfType("*models.ShoppingItemInput")).Return(updated, nil)

	rec := suite.do(http.MethodPut, "/items/1", `{"name":"Oat Milk","price":2.50,"quantity":3}`)
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.Contains(suite.T(), rec.Body.String(), "Oat Milk")
}

func (suite *ShoppingItemHandlersTestSuite) TestUpdateItem_NotFound() {
	suite.itemSvc.On("Update", mock.Anything, int64(42), mock.Anything).Return(nil, services.ErrItemNotFound)

	rec := suite.do(http.MethodPut, "/items/42", `{"name":"Ghost","price":1,"quantity":1}`)
	assert.Equal(suite.T(), http.StatusNotFound, rec.Code)
}

func (suite *ShoppingItemHandlersTestSuite) TestDeleteItem() {
	suite.itemSvc.On("DeleteByID", mock.Anything, int64(1)).Return(nil)

	rec := suite.do(http.MethodDelete, "/items/1", "")
	assert.Equal(suite.T(), http.StatusNoContent, rec.Code)
	assert.Empty(suite.T(), rec.Body.String())
}

func (suite *ShoppingItemHandlersTestSuite) TestDeleteItem_NotFound() {
	suite.itemSvc.On("DeleteByID", mock.Anything, int64(1)).Return(services.ErrItemNotFound)

	rec := suite.do(http.MethodDelete, "/items/1", "")
	assert.Equal(suite.T(), http.StatusNotFound, rec.Code)
}

func (suite *ShoppingItemHandlersTestSuite) TestListCategories() {
	suite.itemSvc.On("ListCategories", mock.Anything).Return([]string{"Bakery", "Dairy"}, nil)

	rec := suite.do(http.MethodGet, "/items/categories", "")
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.JSONEq(suite.T(), `["Bakery","Dairy"]`, rec.Body.String())
}

func (suite *ShoppingItemHandlersTestSuite) TestGetTotalCost() {
	suite.itemSvc.On("TotalCost", mock.Anything).Return(decimal.RequireFromString("13.5"), nil)

	rec := suite.do(http.MethodGet, "/items/total-cost", "")
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.Equal(suite.T(), "13.50", strings.TrimSpace(rec.Body.String()))
}

func (suite *ShoppingItemHandlersTestSuite) TestGetTotalCost_Empty() {
	suite.itemSvc.On("TotalCost", mock.Anything).Return(decimal.Zero, nil)

	rec := suite.do(http.MethodGet, "/items/total-cost", "")
	assert.Equal(suite.T(), "0.00", strings.TrimSpace(rec.Body.String()))
}

func (suite *ShoppingItemHandlersTestSuite) TestExportPDF() {
	suite.exportSvc.On("RenderPDF", mock.Anything).Return([]byte("%PDF-1.3 fake"), nil)

	rec := suite.do(http.MethodGet, "/items/export/pdf", "")
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.Equal(suite.T(), "application/pdf", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(suite.T(), rec.Header().Get(echo.HeaderContentDisposition), "shopping-list.pdf")
}

func (suite *ShoppingItemHandlersTestSuite) TestPublishExport() {
	suite.exportSvc.On("Publish", mock.Anything, "pdf").Return(&models.ExportResult{
		Bucket:    "shopping-list-exports",
		ObjectKey: "exports/2024/01/01/x.pdf",
		URL:       "http://minio/x.pdf",
		Format:    "pdf",
	}, nil)

	rec := suite.do(http.MethodPost, "/items/export?format=pdf", "")
	assert.Equal(suite.T(), http.StatusCreated, rec.Code)
	assert.Contains(suite.T(), rec.Body.String(), `"objectKey":"exports/2024/01/01/x.pdf"`)
}

func (suite *ShoppingItemHandlersTestSuite) TestPublishExport_StorageDisabled() {
	suite.exportSvc.On("Publish", mock.Anything, "").Return(nil, services.ErrStorageDisabled)

	rec := suite.do(http.MethodPost, "/items/export", "")
	assert.Equal(suite.T(), http.StatusServiceUnavailable, rec.Code)
}

func (suite *ShoppingItemHandlersTestSuite) TestPublishExport_BadFormat() {
	suite.exportSvc.On("Publish", mock.Anything, "csv").Return(nil, fmt.Errorf("%w: %q", services.ErrUnsupportedFormat, "csv"))

	rec := suite.do(http.MethodPost, "/items/export?format=csv", "")
	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)
}

func TestRegisterRoutes_WriteMiddlewareOnlyOnMutations(t *testing.T) {
	itemSvc := new(MockShoppingItemService)
	itemSvc.On("ListAll", mock.Anything).Return([]*models.ShoppingItem{}, nil)

	deny := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
		}
	}

	e := echo.New()
	e.HTTPErrorHandler = common.HTTPErrorHandler
	NewShoppingItemHandlers(itemSvc, new(MockExportService)).RegisterRoutes(e.Group("/items"), deny)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		target := "/items/1"
		if method == http.MethodPost {
			target = "/items"
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, method)
	}
	itemSvc.AssertExpectations(t)
}
