package handlers

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/yourorg/metrogate/internal/metro"
	"github.com/yourorg/metrogate/internal/models"
	"github.com/yourorg/metrogate/internal/ticketing"
)

// ScanHandler procesa los scans de torniquete y el panel del operador.
type ScanHandler struct {
	metro *metro.Store
	svc   *ticketing.Service
	store *ticketing.SQLStore
}

func NewScanHandler(m *metro.Store, svc *ticketing.Service, store *ticketing.SQLStore) *ScanHandler {
	return &ScanHandler{metro: m, svc: svc, store: store}
}

// Scan handles POST /api/scan (scanner o admin). Un guard fallido retorna
// 200 con success=false: el torniquete reporta el resultado, no un error.
func (h *ScanHandler) Scan(c *fiber.Ctx) error {
	var req models.ScanRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{Error: "invalid json"})
	}

	req.Kind = strings.ToLower(strings.TrimSpace(req.Kind))
	if req.Kind != models.ScanEntry && req.Kind != models.ScanExit {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(models.ErrorResponse{Error: "kind must be entry or exit"})
	}

	ticketID, err := uuid.Parse(strings.TrimSpace(req.TicketID))
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(models.ErrorResponse{Error: "invalid ticket id"})
	}

	snap, err := h.metro.Snapshot(c.Context())
	if err != nil {
		log.Printf("❌ Error construyendo snapshot del grafo: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "network unavailable"})
	}

	station, ok := snap.StationByCode(strings.TrimSpace(req.Station))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{Error: "unknown station: " + req.Station})
	}

	scan, ticket, err := h.svc.AttemptScan(c.Context(), snap, ticketID, station, req.Kind, currentUserID(c))
	if err != nil {
		if errors.Is(err, ticketing.ErrTicketNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{Error: "ticket not found"})
		}
		log.Printf("❌ Error procesando scan: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "db error"})
	}

	return c.JSON(models.ScanResponse{
		Success: scan.Success,
		Message: scan.Message,
		Status:  ticket.Status,
	})
}

// Dashboard handles GET /api/scan/dashboard. Resumen del turno del operador:
// scans de hoy y los últimos registrados.
func (h *ScanHandler) Dashboard(c *fiber.Ctx) error {
	operatorID := currentUserID(c)

	count, err := h.store.TodayScanCount(c.Context(), operatorID, time.Now())
	if err != nil {
		log.Printf("❌ Error contando scans: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "db error"})
	}
	recent, err := h.store.RecentScansByOperator(c.Context(), operatorID, 20)
	if err != nil {
		log.Printf("❌ Error consultando scans recientes: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "db error"})
	}

	return c.JSON(fiber.Map{
		"today_scans":  count,
		"recent_scans": recent,
	})
}

// TicketScans handles GET /api/tickets/:id/scans (scanner o admin).
// Historial de auditoría completo del ticket, exitosos y fallidos.
func (h *ScanHandler) TicketScans(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{Error: "invalid ticket id"})
	}

	ticket, err := h.store.TicketByUUID(c.Context(), id)
	if err != nil {
		if errors.Is(err, ticketing.ErrTicketNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{Error: "ticket not found"})
		}
		log.Printf("❌ Error consultando ticket %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "db error"})
	}

	scans, err := h.store.ScansForTicket(c.Context(), ticket.ID)
	if err != nil {
		log.Printf("❌ Error consultando scans del ticket %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "db error"})
	}
	return c.JSON(fiber.Map{"ticket_id": id, "scans": scans})
}
