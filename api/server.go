/*
server.go - HTTP router and middleware configuration

ROUTER: chi, same as the teacher. Middleware stack adds a zerolog
request logger in place of the teacher's stdlib-backed
middleware.Logger, per the ambient stack's structured-logging upgrade.
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(zerologMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", h.ListSubscriptions)
			r.Post("/", h.CreateSubscription)
			r.Delete("/{id}", h.DeleteSubscription)
			r.Get("/{id}/status", h.BudgetStatus)
			r.Put("/{id}/amount", h.ChangeBudgetAmount)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Get("/monthly-minimums", h.MonthlyMinimums)
			r.Get("/export.csv", h.ExportCSV)
			r.Post("/simple", h.AddSimple)
			r.Post("/installment", h.AddInstallment)
			r.Post("/split", h.AddSplit)
			r.Patch("/{id}", h.EditTransaction)
			r.Put("/{id}/date", h.ChangeDate)
			r.Post("/{id}/convert", h.ConvertTransaction)
			r.Post("/{id}/commit", h.CommitTransaction)
			r.Delete("/{id}", h.DeleteTransaction)
			r.Delete("/group/{originID}", h.DeleteGroup)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Post("/", h.CreateCategory)
			r.Delete("/{name}", h.DeleteCategory)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/rollover", h.TriggerRollover)
			r.Post("/balance-fix", h.BalanceFix)
			r.Post("/statement-fix", h.StatementFix)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}

// zerologMiddleware logs one structured line per request, replacing the
// teacher's middleware.Logger with a zerolog equivalent.
func zerologMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		reqLogger := log.With().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Logger()
		ctx := reqLogger.WithContext(r.Context())

		next.ServeHTTP(ww, r.WithContext(ctx))

		reqLogger.Info().
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Int("bytes", ww.BytesWritten()).
			Msg("request handled")
	})
}
