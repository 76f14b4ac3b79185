package handlers

import (
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/yourorg/metrogate/internal/graph"
	"github.com/yourorg/metrogate/internal/metro"
	"github.com/yourorg/metrogate/internal/models"
)

// MetroHandler expone la red: líneas, estaciones y administración.
type MetroHandler struct {
	store    *metro.Store
	footfall *metro.FootfallStore
}

func NewMetroHandler(store *metro.Store, footfall *metro.FootfallStore) *MetroHandler {
	return &MetroHandler{store: store, footfall: footfall}
}

func stationDTO(st graph.Station) models.StationDTO {
	return models.StationDTO{
		ID:          st.ID,
		Name:        st.Name,
		Code:        st.Code,
		LineID:      st.LineID,
		Position:    st.Position,
		Interchange: st.Interchange,
	}
}

// ListLines handles GET /api/lines. Incluye líneas inactivas: el cliente
// decide cómo mostrarlas.
func (h *MetroHandler) ListLines(c *fiber.Ctx) error {
	lines, err := h.store.Lines(c.Context())
	if err != nil {
		log.Printf("❌ Error consultando líneas: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "db error"})
	}
	stations, err := h.store.Stations(c.Context())
	if err != nil {
		log.Printf("❌ Error consultando estaciones: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "db error"})
	}

	counts := make(map[int64]int)
	for _, st := range stations {
		counts[st.LineID]++
	}

	out := make([]models.LineDTO, 0, len(lines))
	for _, ln := range lines {
		out = append(out, models.LineDTO{
			ID:             ln.ID,
			Name:           ln.Name,
			Color:          ln.Color,
			Active:         ln.Active,
			BookingEnabled: ln.BookingEnabled,
			StationCount:   counts[ln.ID],
		})
	}
	return c.JSON(fiber.Map{"lines": out})
}

// ListStations handles GET /api/stations?line=ID. Sin filtro retorna todas,
// ordenadas por línea y posición.
func (h *MetroHandler) ListStations(c *fiber.Ctx) error {
	stations, err := h.store.Stations(c.Context())
	if err != nil {
		log.Printf("❌ Error consultando estaciones: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "db error"})
	}

	filterLine := c.Query("line") != ""
	lineID := int64(c.QueryInt("line"))
	out := make([]models.StationDTO, 0, len(stations))
	for _, st := range stations {
		if filterLine && st.LineID != lineID {
			continue
		}
		out = append(out, stationDTO(st))
	}
	return c.JSON(fiber.Map{"stations": out})
}

// SetLineActive handles PUT /api/admin/lines/:id/active (solo admin).
// Desactivar una línea saca sus estaciones del grafo de ruteo.
func (h *MetroHandler) SetLineActive(c *fiber.Ctx) error {
	lineID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{Error: "invalid line id"})
	}
	var req struct {
		Active bool `json:"active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{Error: "invalid json"})
	}

	if err := h.store.SetLineActive(c.Context(), int64(lineID), req.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{Error: "line not found"})
		}
		log.Printf("❌ Error actualizando línea %d: %v", lineID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "db error"})
	}
	log.Printf("🚇 Línea %d active=%v (grafo invalidado)", lineID, req.Active)
	return c.JSON(fiber.Map{"id": lineID, "active": req.Active})
}

// SetLineBooking handles PUT /api/admin/lines/:id/booking (solo admin).
// Una línea sin booking sigue ruteable pero no vende tickets.
func (h *MetroHandler) SetLineBooking(c *fiber.Ctx) error {
	lineID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{Error: "invalid line id"})
	}
	var req struct {
		BookingEnabled bool `json:"booking_enabled"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{Error: "invalid json"})
	}

	if err := h.store.SetLineBooking(c.Context(), int64(lineID), req.BookingEnabled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{Error: "line not found"})
		}
		log.Printf("❌ Error actualizando línea %d: %v", lineID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "db error"})
	}
	log.Printf("🎫 Línea %d booking_enabled=%v", lineID, req.BookingEnabled)
	return c.JSON(fiber.Map{"id": lineID, "booking_enabled": req.BookingEnabled})
}

// FootfallReport handles GET /api/admin/footfall?from=YYYY-MM-DD&to=YYYY-MM-DD.
// Por defecto reporta los últimos 7 días.
func (h *MetroHandler) FootfallReport(c *fiber.Ctx) error {
	to := time.Now()
	from := to.AddDate(0, 0, -7)

	var err error
	if v := c.Query("from"); v != "" {
		if from, err = time.Parse("2006-01-02", v); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{Error: "invalid from date, expected YYYY-MM-DD"})
		}
	}
	if v := c.Query("to"); v != "" {
		if to, err = time.Parse("2006-01-02", v); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{Error: "invalid to date, expected YYYY-MM-DD"})
		}
	}
	if to.Before(from) {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{Error: "to must not precede from"})
	}

	rows, err := h.footfall.Report(c.Context(), from, to)
	if err != nil {
		log.Printf("❌ Error consultando footfall: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "db error"})
	}
	return c.JSON(fiber.Map{
		"from": from.Format("2006-01-02"),
		"to":   to.Format("2006-01-02"),
		"rows": rows,
	})
}
