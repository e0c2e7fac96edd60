package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/safar/go-shop-bot/internal/database"
	"github.com/safar/go-shop-bot/internal/middleware"
	"github.com/safar/go-shop-bot/internal/models"
	"github.com/safar/go-shop-bot/internal/notify"
	"github.com/safar/go-shop-bot/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubService struct {
	admin bool

	user     *models.User
	startErr error

	products      []models.Product
	productsQuery string
	product       *models.Product
	productErr    error

	created   models.NewProduct
	createErr error
	update    models.ProductUpdate
	updateErr error
	deleteErr error
	savedName string
	savedBody string

	addErr      error
	setQuantity int
	setErr      error
	cart        []models.CartItem

	order       *models.Order
	checkoutErr error
	details     *models.OrderDetails
	detailsErr  error

	usersPage, usersPageSize int

	exportPath string
	importErr  error
}

func (s *stubService) Start(ctx context.Context, externalID int64, username string) (*models.User, error) {
	return s.user, s.startErr
}

func (s *stubService) IsAdministrator(ctx context.Context, externalID int64) (bool, error) {
	return s.admin, nil
}

func (s *stubService) SyncAdmin(ctx context.Context, externalID int64) (bool, error) {
	return s.admin, nil
}

func (s *stubService) Categories(ctx context.Context) ([]string, error) {
	return []string{"Liquids", "Pods"}, nil
}

func (s *stubService) Products(ctx context.Context, category string) ([]models.Product, error) {
	s.productsQuery = category
	return s.products, nil
}

func (s *stubService) Product(ctx context.Context, id int64) (*models.Product, error) {
	return s.product, s.productErr
}

func (s *stubService) SaveImage(r io.Reader, filename string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.savedName, s.savedBody = filename, string(data)
	return "images/abc.jpg", nil
}

func (s *stubService) CreateProduct(ctx context.Context, p models.NewProduct) (*models.Product, error) {
	s.created = p
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &models.Product{ID: 1, Name: p.Name, Price: p.Price, Category: p.Category}, nil
}

func (s *stubService) UpdateProduct(ctx context.Context, id int64, upd models.ProductUpdate) error {
	s.update = upd
	return s.updateErr
}

func (s *stubService) DeleteProduct(ctx context.Context, id int64) error {
	return s.deleteErr
}

func (s *stubService) AddToCart(ctx context.Context, externalID, productID int64) error {
	return s.addErr
}

func (s *stubService) SetCartQuantity(ctx context.Context, externalID, productID int64, quantity int) error {
	s.setQuantity = quantity
	return s.setErr
}

func (s *stubService) Cart(ctx context.Context, externalID int64) ([]models.CartItem, error) {
	return s.cart, nil
}

func (s *stubService) ClearCart(ctx context.Context, externalID int64) (bool, error) {
	return len(s.cart) > 0, nil
}

func (s *stubService) Checkout(ctx context.Context, externalID int64) (*models.Order, error) {
	return s.order, s.checkoutErr
}

func (s *stubService) OrderDetails(ctx context.Context, orderID int64) (*models.OrderDetails, error) {
	return s.details, s.detailsErr
}

func (s *stubService) Orders(ctx context.Context, externalID int64, cursor string, limit int) (*store.CursorPage, error) {
	return &store.CursorPage{Items: []models.Order{}}, nil
}

func (s *stubService) Broadcast(ctx context.Context, text string) (notify.Report, error) {
	if text == "" {
		return notify.Report{}, &database.ValidationError{Field: "text", Reason: "must not be empty"}
	}
	return notify.Report{Total: 2, Sent: 2}, nil
}

func (s *stubService) Stats(ctx context.Context) (*models.Stats, error) {
	return &models.Stats{Products: 3}, nil
}

func (s *stubService) Users(ctx context.Context, page, pageSize int) (*store.OffsetPage, error) {
	s.usersPage, s.usersPageSize = page, pageSize
	return &store.OffsetPage{Items: []models.User{}, Page: page, PageSize: pageSize}, nil
}

func (s *stubService) BackupPathFor(name string) string {
	if name == "" {
		name = "catalog.json"
	}
	return filepath.Join("backups", filepath.Base(name))
}

func (s *stubService) ExportCatalog(ctx context.Context, path string) (string, int, error) {
	s.exportPath = path
	return path, 4, nil
}

func (s *stubService) ImportCatalog(ctx context.Context, path string) (models.ImportResult, error) {
	return models.ImportResult{Imported: 1}, s.importErr
}

const testUser = "1001"

func serve(t *testing.T, svc Service, method, target string, body io.Reader, header ...string) *httptest.ResponseRecorder {
	t.Helper()

	h := NewHandler(svc, zaptest.NewLogger(t))
	req := httptest.NewRequest(method, target, body)
	req.Header.Set(middleware.UserIDHeader, testUser)
	if len(header) == 2 {
		req.Header.Set(header[0], header[1])
	}
	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestMissingIdentity(t *testing.T) {
	h := NewHandler(&stubService{}, zaptest.NewLogger(t))
	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cart", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealth(t *testing.T) {
	rec := serve(t, &stubService{}, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStart(t *testing.T) {
	svc := &stubService{user: &models.User{ExternalID: 1001, Username: "alice", IsAdmin: true}}

	rec := serve(t, svc, http.MethodPost, "/api/start", jsonBody(t, startRequest{Username: "alice"}))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, true, body["is_admin"])
}

func TestStart_WithoutBody(t *testing.T) {
	svc := &stubService{user: &models.User{ExternalID: 1001}}

	rec := serve(t, svc, http.MethodPost, "/api/start", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

// chunked mimics a streamed body whose length is not declared up front.
func chunked(data string) io.Reader {
	return io.NopCloser(strings.NewReader(data))
}

func TestStart_EmptyChunkedBody(t *testing.T) {
	svc := &stubService{user: &models.User{ExternalID: 1001}}

	rec := serve(t, svc, http.MethodPost, "/api/start", chunked(""))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStart_ChunkedBody(t *testing.T) {
	svc := &stubService{user: &models.User{ExternalID: 1001, Username: "alice"}}

	rec := serve(t, svc, http.MethodPost, "/api/start", chunked(`{"username":"alice"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decode(t, rec)["username"])
}

func TestStart_MalformedBody(t *testing.T) {
	rec := serve(t, &stubService{}, http.MethodPost, "/api/start", chunked(`{"username":`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListProducts_FiltersByCategory(t *testing.T) {
	svc := &stubService{products: []models.Product{{ID: 1, Name: "Mint"}}}

	rec := serve(t, svc, http.MethodGet, "/api/products?category=Pods", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Pods", svc.productsQuery)
}

func TestGetProduct(t *testing.T) {
	tests := []struct {
		name   string
		target string
		err    error
		status int
	}{
		{name: "found", target: "/api/products/1", status: http.StatusOK},
		{name: "not found", target: "/api/products/9", err: database.ErrProductNotFound, status: http.StatusNotFound},
		{name: "bad id", target: "/api/products/abc", status: http.StatusBadRequest},
		{name: "non-positive id", target: "/api/products/0", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{product: &models.Product{ID: 1}, productErr: tt.err}

			rec := serve(t, svc, http.MethodGet, tt.target, nil)

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestAddCartItem(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{name: "added", body: `{"product_id": 3}`, status: http.StatusNoContent},
		{name: "unknown product", body: `{"product_id": 3}`, err: database.ErrProductNotFound, status: http.StatusNotFound},
		{name: "missing product", body: `{}`, status: http.StatusBadRequest},
		{name: "malformed", body: `{`, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{addErr: tt.err}

			rec := serve(t, svc, http.MethodPost, "/api/cart/items", strings.NewReader(tt.body))

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestSetCartQuantity(t *testing.T) {
	t.Run("zero removes", func(t *testing.T) {
		svc := &stubService{}
		rec := serve(t, svc, http.MethodPut, "/api/cart/items/3", strings.NewReader(`{"quantity": 0}`))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, 0, svc.setQuantity)
	})

	t.Run("quantity required", func(t *testing.T) {
		rec := serve(t, &stubService{}, http.MethodPut, "/api/cart/items/3", strings.NewReader(`{}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("negative rejected", func(t *testing.T) {
		svc := &stubService{setErr: &database.ValidationError{Field: "quantity", Reason: "must not be negative"}}
		rec := serve(t, svc, http.MethodPut, "/api/cart/items/3", strings.NewReader(`{"quantity": -1}`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decode(t, rec)["error"], "quantity")
	})
}

func TestGetCart_Totals(t *testing.T) {
	svc := &stubService{cart: []models.CartItem{
		{ProductID: 1, Name: "Mint", Price: decimal.RequireFromString("10.50"), Quantity: 2},
		{ProductID: 2, Name: "Berry", Price: decimal.RequireFromString("4"), Quantity: 1},
	}}

	rec := serve(t, svc, http.MethodGet, "/api/cart", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp cartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "21.00", resp.Items[0].Subtotal)
	assert.Equal(t, "25.00", resp.Total)
}

func TestGetCart_EmptyIsList(t *testing.T) {
	rec := serve(t, &stubService{}, http.MethodGet, "/api/cart", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"items":[]`)
}

func TestClearCart(t *testing.T) {
	rec := serve(t, &stubService{}, http.MethodDelete, "/api/cart", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["cleared"])
}

func TestCheckout(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "placed", status: http.StatusCreated},
		{name: "empty cart", err: database.ErrEmptyCart, status: http.StatusConflict},
		{name: "unregistered", err: database.ErrUserNotFound, status: http.StatusNotFound},
		{name: "storage fault", err: fmt.Errorf("insert order: %w", errors.New("connection reset")), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{order: &models.Order{ID: 7, OrderNumber: "ORD-1"}, checkoutErr: tt.err}

			rec := serve(t, svc, http.MethodPost, "/api/checkout", nil)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusCreated {
				body := decode(t, rec)
				assert.Equal(t, "ORD-1", body["order_number"])
				assert.EqualValues(t, 7, body["order_id"])
			}
			if tt.status == http.StatusInternalServerError {
				assert.NotContains(t, rec.Body.String(), "connection reset")
			}
		})
	}
}

func orderDetails(owner int64) *models.OrderDetails {
	return &models.OrderDetails{
		OrderID:     7,
		OrderNumber: "ORD-1",
		ExternalID:  owner,
		Username:    models.UnspecifiedUsername,
		Lines: []models.OrderLine{
			{Name: "Mint", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
			{Name: "Berry", Quantity: 1, UnitPrice: decimal.RequireFromString("5.00")},
		},
	}
}

func TestGetOrder_Own(t *testing.T) {
	rec := serve(t, &stubService{details: orderDetails(1001)}, http.MethodGet, "/api/orders/7", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "25.00", body["total"])
	assert.Equal(t, "ORD-1", body["order_number"])
}

func TestGetOrder_SomeoneElsesLooksAbsent(t *testing.T) {
	rec := serve(t, &stubService{details: orderDetails(2002)}, http.MethodGet, "/api/orders/7", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRoutes_RequireAdministrator(t *testing.T) {
	rec := serve(t, &stubService{admin: false}, http.MethodGet, "/api/admin/stats", nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminGetOrder_AnyOwner(t *testing.T) {
	svc := &stubService{admin: true, details: orderDetails(2002)}

	rec := serve(t, svc, http.MethodGet, "/api/admin/orders/7", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateProduct(t *testing.T) {
	svc := &stubService{admin: true}
	body := `{"name":"Mint","description":"cool","price":"12.50","category":"Pods"}`

	rec := serve(t, svc, http.MethodPost, "/api/admin/products", strings.NewReader(body))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Mint", svc.created.Name)
	assert.True(t, svc.created.Price.Equal(decimal.RequireFromString("12.5")))
}

func TestCreateProduct_UnknownCategory(t *testing.T) {
	svc := &stubService{
		admin:     true,
		createErr: fmt.Errorf("%w: %w", &database.ValidationError{Field: "category", Reason: "unknown"}, database.ErrCategoryNotFound),
	}

	rec := serve(t, svc, http.MethodPost, "/api/admin/products", strings.NewReader(`{"name":"x","price":"1","category":"Nope"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateProduct_OnlyPresentFields(t *testing.T) {
	svc := &stubService{admin: true}

	rec := serve(t, svc, http.MethodPatch, "/api/admin/products/5", strings.NewReader(`{"price":"9.99"}`))

	require.Equal(t, http.StatusNoContent, rec.Code)
	price, ok := svc.update.Price.Get()
	require.True(t, ok)
	assert.Equal(t, "9.99", price.StringFixed(2))
	assert.True(t, svc.update.Name.IsAbsent())
	assert.True(t, svc.update.Category.IsAbsent())
}

func TestDeleteProduct_NotFound(t *testing.T) {
	svc := &stubService{admin: true, deleteErr: database.ErrProductNotFound}

	rec := serve(t, svc, http.MethodDelete, "/api/admin/products/5", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadImage(t *testing.T) {
	svc := &stubService{admin: true}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "photo.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := serve(t, svc, http.MethodPost, "/api/admin/products/images", &buf, "Content-Type", mw.FormDataContentType())

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "images/abc.jpg", decode(t, rec)["image_path"])
	assert.Equal(t, "photo.jpg", svc.savedName)
	assert.Equal(t, "jpeg-bytes", svc.savedBody)
}

func TestUploadImage_MissingFile(t *testing.T) {
	rec := serve(t, &stubService{admin: true}, http.MethodPost, "/api/admin/products/images", strings.NewReader(""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBroadcast(t *testing.T) {
	svc := &stubService{admin: true}

	rec := serve(t, svc, http.MethodPost, "/api/admin/broadcast", strings.NewReader(`{"text":"sale"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decode(t, rec)["sent"])

	rec = serve(t, svc, http.MethodPost, "/api/admin/broadcast", strings.NewReader(`{"text":""}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListUsers_Pagination(t *testing.T) {
	tests := []struct {
		query          string
		page, pageSize int
	}{
		{query: "", page: 1, pageSize: defaultPageSize},
		{query: "?page=3&page_size=10", page: 3, pageSize: 10},
		{query: "?page=-1&page_size=1000", page: 1, pageSize: defaultPageSize},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			svc := &stubService{admin: true}

			rec := serve(t, svc, http.MethodGet, "/api/admin/users"+tt.query, nil)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.page, svc.usersPage)
			assert.Equal(t, tt.pageSize, svc.usersPageSize)
		})
	}
}

func TestExportCatalog_StaysInBackupDir(t *testing.T) {
	svc := &stubService{admin: true}

	rec := serve(t, svc, http.MethodPost, "/api/admin/catalog/export", strings.NewReader(`{"file":"../../etc/passwd"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, filepath.Join("backups", "passwd"), svc.exportPath)
	assert.EqualValues(t, 4, decode(t, rec)["products"])
}

func TestExportCatalog_DefaultFile(t *testing.T) {
	svc := &stubService{admin: true}

	rec := serve(t, svc, http.MethodPost, "/api/admin/catalog/export", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, filepath.Join("backups", "catalog.json"), svc.exportPath)
}

func TestExportCatalog_EmptyChunkedBody(t *testing.T) {
	svc := &stubService{admin: true}

	rec := serve(t, svc, http.MethodPost, "/api/admin/catalog/export", chunked(""))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, filepath.Join("backups", "catalog.json"), svc.exportPath)
}

func TestImportCatalog(t *testing.T) {
	svc := &stubService{admin: true}
	rec := serve(t, svc, http.MethodPost, "/api/admin/catalog/import", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["imported"])

	svc.importErr = fmt.Errorf("read catalog file: %w", fs.ErrNotExist)
	rec = serve(t, svc, http.MethodPost, "/api/admin/catalog/import", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	rec := serve(t, &stubService{}, http.MethodGet, "/nope", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
