package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/safar/go-shop-bot/internal/middleware"
)

// SetupRouter wires the customer and administrator routes.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logger(h.logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Identity)

		r.Post("/start", h.Start)
		r.Post("/update_admin", h.SyncAdmin)

		r.Get("/categories", h.ListCategories)
		r.Get("/products", h.ListProducts)
		r.Get("/products/{id}", h.GetProduct)

		r.Get("/cart", h.GetCart)
		r.Post("/cart/items", h.AddCartItem)
		r.Put("/cart/items/{productID}", h.SetCartQuantity)
		r.Delete("/cart", h.ClearCart)

		r.Post("/checkout", h.Checkout)
		r.Get("/orders", h.ListOrders)
		r.Get("/orders/{id}", h.GetOrder)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(h.service))

			r.Post("/products", h.CreateProduct)
			r.Post("/products/images", h.UploadImage)
			r.Patch("/products/{id}", h.UpdateProduct)
			r.Delete("/products/{id}", h.DeleteProduct)

			r.Post("/broadcast", h.Broadcast)
			r.Get("/stats", h.Stats)
			r.Get("/users", h.ListUsers)
			r.Get("/orders/{id}", h.GetAnyOrder)

			r.Post("/catalog/export", h.ExportCatalog)
			r.Post("/catalog/import", h.ImportCatalog)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	return r
}
