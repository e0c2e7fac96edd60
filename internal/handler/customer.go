package handler

import (
	"net/http"
	"strconv"

	"github.com/safar/go-shop-bot/internal/database"
	"github.com/safar/go-shop-bot/internal/models"
	"github.com/shopspring/decimal"
)

type startRequest struct {
	Username string `json:"username"`
}

// Start registers the caller and refreshes the admin flag.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.service.Start(r.Context(), currentUser(r), req.Username)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

func (h *Handler) SyncAdmin(w http.ResponseWriter, r *http.Request) {
	isAdmin, err := h.service.SyncAdmin(r.Context(), currentUser(r))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"is_admin": isAdmin})
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, categories)
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.Products(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, products)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	product, err := h.service.Product(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, product)
}

type cartLineResponse struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
	Subtotal  string `json:"subtotal"`
}

type cartResponse struct {
	Items []cartLineResponse `json:"items"`
	Total string             `json:"total"`
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Cart(r.Context(), currentUser(r))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	resp := cartResponse{Items: make([]cartLineResponse, 0, len(items))}
	total := decimal.Zero
	for _, item := range items {
		resp.Items = append(resp.Items, cartLineResponse{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price.StringFixed(2),
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal().StringFixed(2),
		})
		total = total.Add(item.Subtotal())
	}
	resp.Total = total.StringFixed(2)

	respondJSON(w, http.StatusOK, resp)
}

type addItemRequest struct {
	ProductID int64 `json:"product_id"`
}

func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil || req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.AddToCart(r.Context(), currentUser(r), req.ProductID); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

func (h *Handler) SetCartQuantity(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(r, "productID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req setQuantityRequest
	if err := decodeJSON(r, &req); err != nil || req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.SetCartQuantity(r.Context(), currentUser(r), productID, *req.Quantity); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	cleared, err := h.service.ClearCart(r.Context(), currentUser(r))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"cleared": cleared})
}

type checkoutResponse struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Checkout(r.Context(), currentUser(r))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, checkoutResponse{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
	})
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}

	page, err := h.service.Orders(r.Context(), currentUser(r), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, page)
}

type orderResponse struct {
	*models.OrderDetails
	Total string `json:"total"`
}

// GetOrder serves the caller's own orders only; other orders look absent.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	h.getOrder(w, r, false)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request, anyOwner bool) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	details, err := h.service.OrderDetails(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if !anyOwner && details.ExternalID != currentUser(r) {
		h.respondServiceError(w, r, database.ErrOrderNotFound)
		return
	}

	respondJSON(w, http.StatusOK, orderResponse{
		OrderDetails: details,
		Total:        details.Total().StringFixed(2),
	})
}
