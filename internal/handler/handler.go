// Package handler exposes the shop over a JSON HTTP API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/safar/go-shop-bot/internal/database"
	"github.com/safar/go-shop-bot/internal/middleware"
	"github.com/safar/go-shop-bot/internal/models"
	"github.com/safar/go-shop-bot/internal/notify"
	"github.com/safar/go-shop-bot/internal/store"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxImageSize    = 10 << 20
)

// Service is the business contract used by the handlers.
type Service interface {
	Start(ctx context.Context, externalID int64, username string) (*models.User, error)
	IsAdministrator(ctx context.Context, externalID int64) (bool, error)
	SyncAdmin(ctx context.Context, externalID int64) (bool, error)

	Categories(ctx context.Context) ([]string, error)
	Products(ctx context.Context, category string) ([]models.Product, error)
	Product(ctx context.Context, id int64) (*models.Product, error)
	SaveImage(r io.Reader, filename string) (string, error)
	CreateProduct(ctx context.Context, p models.NewProduct) (*models.Product, error)
	UpdateProduct(ctx context.Context, id int64, upd models.ProductUpdate) error
	DeleteProduct(ctx context.Context, id int64) error

	AddToCart(ctx context.Context, externalID, productID int64) error
	SetCartQuantity(ctx context.Context, externalID, productID int64, quantity int) error
	Cart(ctx context.Context, externalID int64) ([]models.CartItem, error)
	ClearCart(ctx context.Context, externalID int64) (bool, error)

	Checkout(ctx context.Context, externalID int64) (*models.Order, error)
	OrderDetails(ctx context.Context, orderID int64) (*models.OrderDetails, error)
	Orders(ctx context.Context, externalID int64, cursor string, limit int) (*store.CursorPage, error)

	Broadcast(ctx context.Context, text string) (notify.Report, error)
	Stats(ctx context.Context) (*models.Stats, error)
	Users(ctx context.Context, page, pageSize int) (*store.OffsetPage, error)
	BackupPathFor(name string) string
	ExportCatalog(ctx context.Context, path string) (string, int, error)
	ImportCatalog(ctx context.Context, path string) (models.ImportResult, error)
}

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps domain outcomes to statuses. Anything else is a
// storage fault: it is logged and answered without detail.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case database.IsValidation(err):
		var vErr *database.ValidationError
		errors.As(err, &vErr)
		respondError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, database.ErrEmptyCart):
		respondError(w, http.StatusConflict, database.ErrEmptyCart.Error())
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// decodeOptionalJSON is decodeJSON for endpoints where the body may be absent.
func decodeOptionalJSON(r *http.Request, v any) error {
	if err := decodeJSON(r, v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func currentUser(r *http.Request) int64 {
	id, _ := middleware.GetUserIDFromContext(r.Context())
	return id
}

func pagination(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return page, pageSize
}
