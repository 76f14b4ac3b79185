package handlers

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/yourorg/metrogate/internal/graph"
	"github.com/yourorg/metrogate/internal/metro"
	"github.com/yourorg/metrogate/internal/models"
	"github.com/yourorg/metrogate/internal/ticketing"
)

// TicketHandler maneja compra y consulta de tickets.
type TicketHandler struct {
	metro *metro.Store
	svc   *ticketing.Service
	store *ticketing.SQLStore
}

func NewTicketHandler(m *metro.Store, svc *ticketing.Service, store *ticketing.SQLStore) *TicketHandler {
	return &TicketHandler{metro: m, svc: svc, store: store}
}

// tripPlan agrupa el resultado de resolver un viaje contra la red.
type tripPlan struct {
	snap   *graph.Snapshot
	origin graph.Station
	dest   graph.Station
	path   []int64
}

// resolveTrip valida códigos de origen/destino contra el snapshot y resuelve
// la ruta. Compartido por compra online y venta offline. Si el viaje no se
// puede resolver escribe la respuesta y devuelve un plan nil; el caller debe
// propagar el error tal cual.
func (h *TicketHandler) resolveTrip(c *fiber.Ctx, originCode, destCode string) (*tripPlan, error) {
	snap, err := h.metro.Snapshot(c.Context())
	if err != nil {
		log.Printf("❌ Error construyendo snapshot del grafo: %v", err)
		return nil, c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "network unavailable"})
	}

	origin, ok := snap.StationByCode(originCode)
	if !ok {
		return nil, c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{Error: "unknown origin station: " + originCode})
	}
	dest, ok := snap.StationByCode(destCode)
	if !ok {
		return nil, c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{Error: "unknown destination station: " + destCode})
	}

	path, err := snap.ShortestPath(origin.ID, dest.ID)
	if err != nil {
		if errors.Is(err, graph.ErrNoRoute) {
			return nil, c.Status(fiber.StatusUnprocessableEntity).JSON(models.ErrorResponse{Error: "no route between stations"})
		}
		return nil, c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "routing failed"})
	}
	return &tripPlan{snap: snap, origin: origin, dest: dest, path: path}, nil
}

// Purchase handles POST /api/tickets. Descuenta el saldo y crea el ticket
// en una sola transacción.
func (h *TicketHandler) Purchase(c *fiber.Ctx) error {
	var req models.PurchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{Error: "invalid json"})
	}
	req.Origin = strings.TrimSpace(req.Origin)
	req.Destination = strings.TrimSpace(req.Destination)
	if req.Origin == "" || req.Destination == "" {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(models.ErrorResponse{Error: "origin and destination required"})
	}

	trip, err := h.resolveTrip(c, req.Origin, req.Destination)
	if trip == nil {
		return err
	}

	// La línea de origen debe estar vendiendo tickets.
	if line, ok := trip.snap.Line(trip.origin.LineID); !ok || !line.BookingEnabled {
		return c.Status(fiber.StatusConflict).JSON(models.ErrorResponse{Error: "ticket sales are suspended on the origin line"})
	}

	fare := h.svc.FareConfig().Fare(trip.path)
	ticket, err := h.svc.Purchase(c.Context(), currentUserID(c), trip.origin, trip.dest, trip.path, fare)
	if err != nil {
		if errors.Is(err, ticketing.ErrInsufficientBalance) {
			return c.Status(fiber.StatusPaymentRequired).JSON(models.ErrorResponse{Error: "insufficient balance"})
		}
		log.Printf("❌ Error comprando ticket: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "db error"})
	}

	return c.Status(fiber.StatusCreated).JSON(h.ticketDTO(c, ticket, true))
}

// IssueOffline handles POST /api/tickets/offline (scanner o admin).
// Registra una venta presencial: el ticket nace usado, con sus dos scans.
func (h *TicketHandler) IssueOffline(c *fiber.Ctx) error {
	var req models.OfflineTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{Error: "invalid json"})
	}
	req.Origin = strings.TrimSpace(req.Origin)
	req.Destination = strings.TrimSpace(req.Destination)
	req.PassengerName = strings.TrimSpace(req.PassengerName)
	if req.Origin == "" || req.Destination == "" || req.PassengerName == "" {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(models.ErrorResponse{Error: "origin, destination and passenger_name required"})
	}

	trip, err := h.resolveTrip(c, req.Origin, req.Destination)
	if trip == nil {
		return err
	}

	passengerID, err := h.store.GetOrCreateOfflineUser(c.Context(), req.PassengerName)
	if err != nil {
		log.Printf("❌ Error creando usuario offline: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "db error"})
	}

	fare := h.svc.FareConfig().Fare(trip.path)
	ticket, err := h.svc.IssueOffline(c.Context(), passengerID, trip.origin, trip.dest, trip.path, fare, currentUserID(c))
	if err != nil {
		log.Printf("❌ Error emitiendo ticket offline: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "db error"})
	}

	log.Printf("🎫 Ticket offline emitido: %s para %q por operador %d", ticket.TicketID, req.PassengerName, currentUserID(c))
	return c.Status(fiber.StatusCreated).JSON(h.ticketDTO(c, ticket, true))
}

// MyTickets handles GET /api/tickets. Lista los tickets del usuario, con
// expiración lazy aplicada antes de responder.
func (h *TicketHandler) MyTickets(c *fiber.Ctx) error {
	tickets, err := h.store.TicketsByUser(c.Context(), currentUserID(c), 50)
	if err != nil {
		log.Printf("❌ Error consultando tickets: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "db error"})
	}

	out := make([]models.TicketDTO, 0, len(tickets))
	for _, t := range tickets {
		h.svc.RefreshExpiry(c.Context(), t)
		out = append(out, h.ticketDTO(c, t, false))
	}
	return c.JSON(fiber.Map{"tickets": out})
}

// TicketDetail handles GET /api/tickets/:id. El dueño ve su ticket;
// scanner y admin ven cualquiera.
func (h *TicketHandler) TicketDetail(c *fiber.Ctx) error {
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

	role, _ := c.Locals("role").(string)
	if ticket.UserID != currentUserID(c) && role != models.RoleScanner && role != models.RoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(models.ErrorResponse{Error: "not your ticket"})
	}

	h.svc.RefreshExpiry(c.Context(), ticket)
	return c.JSON(h.ticketDTO(c, ticket, true))
}

// ticketDTO expande la ruta del ticket a estaciones. Usa StationNames en
// vez del snapshot: una estación desactivada después de la compra igual
// debe aparecer en el detalle.
func (h *TicketHandler) ticketDTO(c *fiber.Ctx, t *models.Ticket, withPath bool) models.TicketDTO {
	dto := models.TicketDTO{
		TicketID:    t.TicketID,
		Price:       t.Price,
		Status:      t.Status,
		PurchasedAt: t.PurchasedAt,
		EntryTime:   t.EntryTime,
		ExitTime:    t.ExitTime,
	}

	ids := []int64{t.OriginID, t.DestinationID}
	if withPath {
		ids = append(ids, t.Path...)
	}
	stations, err := h.metro.StationNames(c.Context(), ids)
	if err != nil {
		log.Printf("⚠️ Error expandiendo estaciones del ticket %s: %v", t.TicketID, err)
		stations = map[int64]graph.Station{}
	}

	dto.Origin = stationDTO(stations[t.OriginID])
	dto.Destination = stationDTO(stations[t.DestinationID])
	if withPath {
		dto.Path = make([]models.StationDTO, 0, len(t.Path))
		for _, id := range t.Path {
			dto.Path = append(dto.Path, stationDTO(stations[id]))
		}
	}
	return dto
}
