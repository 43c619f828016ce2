// Package router wires every handler into the HTTP surface.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Musicofilo701/splicy-api/internal/config"
	"github.com/Musicofilo701/splicy-api/internal/database"
	"github.com/Musicofilo701/splicy-api/internal/handler"
	mw "github.com/Musicofilo701/splicy-api/internal/middleware"
	"github.com/Musicofilo701/splicy-api/internal/service"
	"github.com/Musicofilo701/splicy-api/internal/ws"
)

// New creates a Chi router with all application routes wired up. Customer
// endpoints (scan QR, view table, pay) are public; order management, webhook
// ingestion, and corrections require a restaurant principal.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, idem mw.IdempotencyStore) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	orderService := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	})
	paymentService := service.NewPaymentService(pool, func(db database.DBTX) service.PaymentStore {
		return database.New(db)
	})

	orderHandler := handler.NewOrderHandler(queries, orderService, hub)
	paymentHandler := handler.NewPaymentHandler(queries, paymentService, hub)
	tableHandler := handler.NewTableHandler(queries)
	qrHandler := handler.NewQRHandler(cfg.BaseURL)
	webhookHandler := handler.NewWebhookHandler(queries, orderService, hub)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret, cfg.SessionTTL)

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	authHandler.RegisterRoutes(r)
	orderHandler.RegisterPublicRoutes(r)
	tableHandler.RegisterPublicRoutes(r)
	qrHandler.RegisterRoutes(r)

	// Customer payment routes. Submission carries the idempotency middleware
	// so a retried confirmation cannot double-charge.
	r.Group(func(r chi.Router) {
		r.Use(mw.Idempotency(idem))
		paymentHandler.RegisterPublicRoutes(r)
	})

	// WebSocket route (authenticates via query param, not middleware)
	r.Get("/ws/tables", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require API key or session token)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(queries, cfg.JWTSecret))

		orderHandler.RegisterAdminRoutes(r)
		paymentHandler.RegisterAdminRoutes(r)
		tableHandler.RegisterAdminRoutes(r)
		webhookHandler.RegisterRoutes(r)
	})

	return r
}
