package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/yourorg/metrogate/internal/graph"
	"github.com/yourorg/metrogate/internal/metro"
	"github.com/yourorg/metrogate/internal/models"
)

// RouteHandler resuelve rutas y tarifas sobre el snapshot del grafo.
type RouteHandler struct {
	store *metro.Store
	fare  graph.FareConfig
}

func NewRouteHandler(store *metro.Store, fare graph.FareConfig) *RouteHandler {
	return &RouteHandler{store: store, fare: fare}
}

// GetRoute handles GET /api/route?from=CODE&to=CODE.
// Retorna la ruta más corta (menos estaciones) y su tarifa.
func (h *RouteHandler) GetRoute(c *fiber.Ctx) error {
	fromCode := c.Query("from")
	toCode := c.Query("to")
	if fromCode == "" || toCode == "" {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(models.ErrorResponse{Error: "from and to station codes required"})
	}

	snap, err := h.store.Snapshot(c.Context())
	if err != nil {
		log.Printf("❌ Error construyendo snapshot del grafo: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "network unavailable"})
	}

	origin, ok := snap.StationByCode(fromCode)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{Error: "unknown origin station: " + fromCode})
	}
	dest, ok := snap.StationByCode(toCode)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{Error: "unknown destination station: " + toCode})
	}

	path, err := snap.ShortestPath(origin.ID, dest.ID)
	if err != nil {
		switch {
		case errors.Is(err, graph.ErrUnknownStation):
			return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{Error: "station not in active network"})
		case errors.Is(err, graph.ErrNoRoute):
			return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{Error: "no route between stations"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "routing failed"})
		}
	}

	dtos := make([]models.StationDTO, 0, len(path))
	for _, id := range path {
		if st, ok := snap.Station(id); ok {
			dtos = append(dtos, stationDTO(st))
		}
	}

	return c.JSON(models.RouteResponse{
		Path: dtos,
		Hops: len(path) - 1,
		Fare: h.fare.Fare(path),
	})
}
