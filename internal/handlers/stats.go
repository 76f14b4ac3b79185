package handlers

import (
	"database/sql"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/yourorg/metrogate/internal/metro"
	"github.com/yourorg/metrogate/internal/models"
)

// StatsHandler arma el dashboard administrativo a partir de agregaciones SQL.
type StatsHandler struct {
	db       *sql.DB
	footfall *metro.FootfallStore
}

func NewStatsHandler(db *sql.DB, footfall *metro.FootfallStore) *StatsHandler {
	return &StatsHandler{db: db, footfall: footfall}
}

// GetDashboard handles GET /api/admin/dashboard (solo admin).
func (h *StatsHandler) GetDashboard(c *fiber.Ctx) error {
	ctx := c.Context()
	today := time.Now().Format("2006-01-02")

	// Ventas e ingresos del día
	var ticketsToday, revenueToday int64
	err := h.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(price), 0)
		FROM tickets
		WHERE DATE(purchased_at) = ?
	`, today).Scan(&ticketsToday, &revenueToday)
	if err != nil {
		log.Printf("❌ Error consultando ventas del día: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "db error"})
	}

	// Distribución de estados sobre todos los tickets
	statusCounts := make(map[string]int64)
	rows, err := h.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tickets GROUP BY status`)
	if err != nil {
		log.Printf("❌ Error consultando estados de tickets: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "db error"})
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "db error"})
		}
		statusCounts[status] = count
	}
	if err := rows.Err(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "db error"})
	}

	// Estaciones más vendidas como origen (últimos 7 días)
	type originSales struct {
		StationID   int64  `json:"station_id"`
		StationName string `json:"station_name"`
		Tickets     int64  `json:"tickets"`
	}
	topOrigins := make([]originSales, 0, 5)
	originRows, err := h.db.QueryContext(ctx, `
		SELECT t.origin_id, s.name, COUNT(*) AS sold
		FROM tickets t
		JOIN stations s ON s.id = t.origin_id
		WHERE t.purchased_at >= DATE_SUB(NOW(), INTERVAL 7 DAY)
		GROUP BY t.origin_id, s.name
		ORDER BY sold DESC
		LIMIT 5
	`)
	if err != nil {
		log.Printf("❌ Error consultando ventas por origen: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "db error"})
	}
	defer originRows.Close()
	for originRows.Next() {
		var o originSales
		if err := originRows.Scan(&o.StationID, &o.StationName, &o.Tickets); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "db error"})
		}
		topOrigins = append(topOrigins, o)
	}
	if err := originRows.Err(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "db error"})
	}

	// Footfall: totales de hoy y estaciones con más tráfico de la semana
	now := time.Now()
	entriesToday, exitsToday, err := h.footfall.TodayTotals(ctx, now)
	if err != nil {
		log.Printf("❌ Error consultando footfall de hoy: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "db error"})
	}
	busiest, err := h.footfall.StationTotals(ctx, now.AddDate(0, 0, -7), now)
	if err != nil {
		log.Printf("❌ Error consultando estaciones concurridas: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "db error"})
	}
	if len(busiest) > 5 {
		busiest = busiest[:5]
	}

	return c.JSON(fiber.Map{
		"date":              today,
		"tickets_today":     ticketsToday,
		"revenue_today":     revenueToday,
		"tickets_by_status": statusCounts,
		"top_origins":       topOrigins,
		"entries_today":     entriesToday,
		"exits_today":       exitsToday,
		"busiest_stations":  busiest,
	})
}
