package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sofra-pos/api/internal/auth"
	"github.com/sofra-pos/api/internal/config"
	"github.com/sofra-pos/api/internal/database"
	"github.com/sofra-pos/api/internal/enum"
	"github.com/sofra-pos/api/internal/handler"
	mw "github.com/sofra-pos/api/internal/middleware"
	"github.com/sofra-pos/api/internal/service"
	"github.com/sofra-pos/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173", // terminal dev server
			"http://localhost:4173", // terminal preview build
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret, auth.NewPinLimiter())
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/tables", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Services share one pool; each call opens its own transaction.
	orderService := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	})
	tableService := service.NewTableService(pool, func(db database.DBTX) service.TableStore {
		return database.New(db)
	})
	paymentService := service.NewPaymentService(pool, func(db database.DBTX) service.PaymentStore {
		return database.New(db)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		tableHandler := handler.NewTableHandler(queries, tableService, hub)
		r.Route("/tables", tableHandler.RegisterRoutes)

		categoryHandler := handler.NewCategoryHandler(queries)
		r.Route("/categories", categoryHandler.RegisterRoutes)

		productHandler := handler.NewProductHandler(queries)
		r.Route("/products", productHandler.RegisterRoutes)

		// Payments nest under the same /sales subtree.
		r.Route("/sales", func(r chi.Router) {
			saleHandler := handler.NewSaleHandler(queries, orderService, hub)
			saleHandler.RegisterRoutes(r)

			paymentHandler := handler.NewPaymentHandler(paymentService, hub)
			paymentHandler.RegisterRoutes(r)
		})

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin))
			reportsHandler := handler.NewReportsHandler(queries)
			r.Route("/reports", reportsHandler.RegisterRoutes)
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
