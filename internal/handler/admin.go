package handler

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/safar/go-shop-bot/internal/models"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"
)

type productRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	ImagePath   string          `json:"image_path"`
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.service.CreateProduct(r.Context(), models.NewProduct{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		ImagePath:   req.ImagePath,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, product)
}

// Absent fields are left untouched.
type productPatch struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Category    *string          `json:"category"`
	ImagePath   *string          `json:"image_path"`
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req productPatch
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	upd := models.ProductUpdate{
		Name:        mo.PointerToOption(req.Name),
		Description: mo.PointerToOption(req.Description),
		Price:       mo.PointerToOption(req.Price),
		Category:    mo.PointerToOption(req.Category),
		ImagePath:   mo.PointerToOption(req.ImagePath),
	}
	if err := h.service.UpdateProduct(r.Context(), id, upd); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadImage stores a multipart "image" part and returns its reference
// for use in a later create or update.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize)
	file, header, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	ref, err := h.service.SaveImage(file, header.Filename)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"image_path": ref})
}

type broadcastRequest struct {
	Text string `json:"text"`
}

func (h *Handler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	report, err := h.service.Broadcast(r.Context(), req.Text)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)

	users, err := h.service.Users(r.Context(), page, pageSize)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, users)
}

type catalogRequest struct {
	File string `json:"file"`
}

// catalogPath resolves an optional file name inside the backup directory.
func (h *Handler) catalogPath(r *http.Request) (string, bool) {
	var req catalogRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		return "", false
	}
	return h.service.BackupPathFor(req.File), true
}

func (h *Handler) ExportCatalog(w http.ResponseWriter, r *http.Request) {
	path, ok := h.catalogPath(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	written, count, err := h.service.ExportCatalog(r.Context(), path)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"file": written, "products": count})
}

func (h *Handler) ImportCatalog(w http.ResponseWriter, r *http.Request) {
	path, ok := h.catalogPath(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.ImportCatalog(r.Context(), path)
	if errors.Is(err, fs.ErrNotExist) {
		respondError(w, http.StatusNotFound, "backup file not found")
		return
	}
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) GetAnyOrder(w http.ResponseWriter, r *http.Request) {
	h.getOrder(w, r, true)
}
