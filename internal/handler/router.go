package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/Hiroshi-99/ChampaMC/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware магазина рангов.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/healthz", h.Health)
	if h.cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.cfg.Metrics)
	}
	if h.cfg.UploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", noDirListing(http.FileServer(http.Dir(h.cfg.UploadDir)))))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/ranks", h.ListRanks)
		r.Get("/ranks/{name}", h.GetRank)
		r.Get("/settings/payment-qr", h.PaymentQR)
		r.Post("/orders", h.SubmitOrder)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.Middleware)
				r.Use(h.requireStaff)

				r.Get("/orders", h.ListOrders)
				r.Get("/orders/{id}", h.GetOrder)
				r.Patch("/orders/{id}", h.UpdateOrder)
				r.Get("/stats", h.Stats)

				r.Post("/ranks", h.CreateRank)
				r.Put("/ranks/{id}", h.UpdateRank)
				r.Delete("/ranks/{id}", h.DeleteRank)
				r.Post("/ranks/{id}/image", h.UploadRankImage)

				r.Post("/discounts", h.ApplyDiscount)
				r.Put("/settings/{key}", h.UpsertSetting)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}

func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
