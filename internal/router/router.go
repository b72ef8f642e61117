package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dinesync/api/internal/config"
	"github.com/dinesync/api/internal/database"
	"github.com/dinesync/api/internal/enum"
	"github.com/dinesync/api/internal/handler"
	mw "github.com/dinesync/api/internal/middleware"
	"github.com/dinesync/api/internal/service"
	"github.com/dinesync/api/internal/ws"
)

// New creates a Chi router with all application routes wired up. Customer
// endpoints are unauthenticated (the tableside tablet carries no credentials);
// staff endpoints require a JWT and the right role.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Services
	tableService := service.NewTableService(queries, pool, func(db database.DBTX) service.TableStore {
		return database.New(db)
	})
	orderService := service.NewOrderService(queries, pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	})
	itemService := service.NewItemService(queries, pool, func(db database.DBTX) service.ItemStore {
		return database.New(db)
	})
	checkoutService := service.NewCheckoutService(queries, pool, func(db database.DBTX) service.CheckoutStore {
		return database.New(db)
	}, tableService)
	autoKitchen := service.NewAutoKitchen(orderService, cfg.AutoKitchenDelay)

	// Handlers
	tableHandler := handler.NewTableHandler(tableService, hub)
	orderHandler := handler.NewOrderHandler(orderService, queries, autoKitchen, hub)
	itemHandler := handler.NewItemHandler(itemService, hub)
	paymentHandler := handler.NewPaymentHandler(checkoutService, hub)
	menuHandler := handler.NewMenuHandler(queries)

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/{channel}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Customer routes (tableside tablet, no credentials)
	r.Route("/api/customer", func(r chi.Router) {
		r.Route("/menu", menuHandler.RegisterRoutes)
		r.Get("/tables", tableHandler.ListPublic)
		r.Route("/tables/{tableNumber}", func(r chi.Router) {
			r.Get("/", tableHandler.GetByNumber)
			orderHandler.RegisterCustomerRoutes(r)
		})
		r.Route("/items", itemHandler.RegisterCustomerRoutes)
	})

	// Staff routes (require authentication)
	r.Route("/api", func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Floor plan lifecycle
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.RoleWaiter, enum.RoleManager, enum.RoleAdmin))
			r.Route("/tables", tableHandler.RegisterStaffRoutes)
		})

		// Table management (provision, hide, edit)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.RoleManager, enum.RoleAdmin))
			r.Route("/admin/tables", tableHandler.RegisterAdminRoutes)
		})

		// Orders: reads and lifecycle for floor and kitchen staff
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.RoleWaiter, enum.RoleKitchenStaff, enum.RoleCashier, enum.RoleManager, enum.RoleAdmin))
			r.Route("/orders", orderHandler.RegisterStaffRoutes)
		})

		// Kitchen item updates
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.RoleKitchenStaff, enum.RoleWaiter, enum.RoleManager, enum.RoleAdmin))
			r.Route("/items", itemHandler.RegisterStaffRoutes)
		})

		// Checkout
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.RoleCashier, enum.RoleManager, enum.RoleAdmin))
			r.Route("/checkout/orders", paymentHandler.RegisterOrderRoutes)
			r.Route("/payments", paymentHandler.RegisterPaymentRoutes)
		})
	})

	return r
}
