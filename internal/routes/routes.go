package routes

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yourorg/metrogate/internal/cache"
	"github.com/yourorg/metrogate/internal/graph"
	"github.com/yourorg/metrogate/internal/handlers"
	"github.com/yourorg/metrogate/internal/live"
	"github.com/yourorg/metrogate/internal/metro"
	"github.com/yourorg/metrogate/internal/middleware"
	"github.com/yourorg/metrogate/internal/models"
	"github.com/yourorg/metrogate/internal/ticketing"
)

// Register arma todas las dependencias y monta los endpoints.
func Register(app *fiber.App, db *sql.DB) *metro.Store {
	// ============================================================================
	// DEPENDENCIAS COMPARTIDAS
	// ============================================================================
	appCache := cache.NewCache(5*time.Minute, 10*time.Minute)
	metroStore := metro.NewStore(db, appCache)
	footfall := metro.NewFootfallStore(db)
	hub := live.NewHub()

	ticketStore := ticketing.NewSQLStore(db)
	fare := graph.FareConfigFromEnv()
	cfg := ticketing.ConfigFromEnv()
	cfg.Fare = fare
	ticketSvc := ticketing.NewService(ticketStore, footfall, cfg)

	// Cada scan registrado se difunde a los paneles en vivo.
	ticketSvc.OnScan(func(scan models.TicketScan) {
		name := ""
		if snap, err := metroStore.Snapshot(context.Background()); err == nil {
			if st, ok := snap.Station(scan.StationID); ok {
				name = st.Name
			}
		}
		hub.PublishScan(scan, name)
	})

	metroHandler := handlers.NewMetroHandler(metroStore, footfall)
	routeHandler := handlers.NewRouteHandler(metroStore, fare)
	ticketHandler := handlers.NewTicketHandler(metroStore, ticketSvc, ticketStore)
	scanHandler := handlers.NewScanHandler(metroStore, ticketSvc, ticketStore)
	statsHandler := handlers.NewStatsHandler(db, footfall)

	app.Use(middleware.MetricsMiddleware())

	// ============================================================================
	// API PÚBLICA
	// ============================================================================
	api := app.Group("/api")

	// Health check (sin rate limiting)
	api.Get("/health", handlers.Health)

	// ============================================================================
	// AUTENTICACIÓN (con rate limiting estricto)
	// ============================================================================
	api.Post("/login", middleware.StrictRateLimiter(), handlers.Login)
	api.Post("/register", middleware.StrictRateLimiter(), handlers.Register)

	// ============================================================================
	// CUENTA (requiere sesión)
	// ============================================================================
	account := api.Group("/account", handlers.RequireAuth)
	account.Get("/", handlers.Me)
	account.Post("/balance", handlers.TopUp)

	// ============================================================================
	// RED DE METRO (pública: el mapa no requiere sesión)
	// ============================================================================
	api.Get("/lines", metroHandler.ListLines)
	api.Get("/stations", metroHandler.ListStations)
	api.Get("/route", routeHandler.GetRoute)
	// GET /api/route?from=BAQ&to=TOB - ruta más corta + tarifa

	// ============================================================================
	// TICKETS (pasajeros autenticados)
	// ============================================================================
	tickets := api.Group("/tickets", handlers.RequireAuth)
	tickets.Post("/", middleware.StrictRateLimiter(), ticketHandler.Purchase)
	tickets.Get("/", ticketHandler.MyTickets)
	tickets.Get("/:id", ticketHandler.TicketDetail)

	// Venta presencial y auditoría (scanner/admin)
	tickets.Post("/offline",
		handlers.RequireRole(models.RoleScanner, models.RoleAdmin),
		ticketHandler.IssueOffline)
	tickets.Get("/:id/scans",
		handlers.RequireRole(models.RoleScanner, models.RoleAdmin),
		scanHandler.TicketScans)

	// ============================================================================
	// TORNIQUETES (scanner/admin)
	// ============================================================================
	scan := api.Group("/scan", handlers.RequireAuth, handlers.RequireRole(models.RoleScanner, models.RoleAdmin))
	scan.Post("/", middleware.ScanRateLimiter(), scanHandler.Scan)
	scan.Get("/dashboard", scanHandler.Dashboard)

	// ============================================================================
	// ADMINISTRACIÓN (solo admin)
	// ============================================================================
	admin := api.Group("/admin", handlers.RequireAuth, handlers.RequireRole(models.RoleAdmin))
	admin.Put("/lines/:id/active", metroHandler.SetLineActive)
	admin.Put("/lines/:id/booking", metroHandler.SetLineBooking)
	admin.Get("/footfall", metroHandler.FootfallReport)
	admin.Get("/dashboard", statsHandler.GetDashboard)

	// ============================================================================
	// MÉTRICAS PROMETHEUS
	// ============================================================================
	api.Get("/stats/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// ============================================================================
	// FEED EN VIVO DE SCANS (paneles de estación)
	// ============================================================================
	app.Use("/ws/scans", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/scans", websocket.New(func(c *websocket.Conn) {
		hub.HandleWebSocket(c)
	}))

	return metroStore
}
