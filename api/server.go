package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates the router with every route configured
func NewRouter(h *Handler, resolver CallerResolver, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", idempotencyHeader, "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", replayedHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(requireCaller(resolver))

			r.Post("/auth/credential", h.ChangeCredential)
			r.Get("/me", h.Me)

			r.Route("/accounts/{id}", func(r chi.Router) {
				r.Get("/balance", h.Balance)
				r.Get("/charges", h.AccountCharges)
				r.Get("/statement", h.Statement)
				r.Get("/ledger", h.LedgerEntries)
			})

			r.Post("/receipts", h.UploadReceipt)
			r.Get("/receipts/url", h.ReceiptURL)

			r.Post("/transactions", h.idempotent(h.SubmitTransaction))
			r.Get("/transactions", h.ListTransactions)
			r.Get("/transactions/{id}", h.GetTransaction)

			r.Post("/charges/{id}/settle", h.idempotent(h.SettleCharge))

			r.Route("/admin", func(r chi.Router) {
				r.Get("/accounts", h.ListAccounts)
				r.Post("/accounts", h.ProvisionAccount)
				r.Put("/accounts/{id}/roles/{role}", h.GrantRole)
				r.Delete("/accounts/{id}/roles/{role}", h.RevokeRole)
				r.Post("/charges", h.CreateCharges)
				r.Get("/transactions/pending", h.PendingReview)
				r.Post("/transactions/{id}/resolve", h.ResolveTransaction)
				r.Post("/adjustments", h.AdjustBalance)
			})
		})
	})

	return r
}

// NewServer wraps the router in an http.Server
func NewServer(addr string, router http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
