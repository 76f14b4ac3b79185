package ticketing

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/yourorg/metrogate/internal/graph"
	"github.com/yourorg/metrogate/internal/metrics"
	"github.com/yourorg/metrogate/internal/models"
)

// AttemptScan valida un intento de scan contra el ciclo de vida del ticket y
// SIEMPRE deja exactamente una fila de auditoría, falle o no el guard. Los
// dos tipos de scan pasan por este único punto de despacho.
//
// Retorna el registro de auditoría (con success y message), el ticket en su
// estado resultante, y un error solo para fallas reales (ticket inexistente,
// base de datos caída); un guard fallido no es un error.
func (s *Service) AttemptScan(ctx context.Context, snap *graph.Snapshot, ticketID uuid.UUID, station graph.Station, kind string, operatorID int64) (*models.TicketScan, *models.Ticket, error) {
	mu := s.locks.forTicket(ticketID)
	mu.Lock()
	defer mu.Unlock()

	t, err := s.store.TicketByUUID(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}

	var success bool
	var message string
	switch kind {
	case models.ScanEntry:
		success, message = s.scanEntry(ctx, snap, t, station)
	case models.ScanExit:
		success, message = s.scanExit(ctx, snap, t, station)
	default:
		success, message = false, fmt.Sprintf("unknown scan kind %q", kind)
	}

	scan := &models.TicketScan{
		TicketRow: t.ID,
		TicketID:  t.TicketID,
		StationID: station.ID,
		Kind:      kind,
		ScannedBy: operatorID,
		ScannedAt: s.now(),
		Success:   success,
		Message:   message,
	}
	if err := s.store.AppendScan(ctx, scan); err != nil {
		return nil, nil, err
	}

	metrics.ScanAttempts.WithLabelValues(kind, metrics.ScanOutcome(success)).Inc()
	if s.onScan != nil {
		s.onScan(*scan)
	}
	return scan, t, nil
}

// scanEntry: active → in_use si el ticket no expiró y la estación es el
// origen. La expiración se evalúa primero, antes de cualquier otro guard.
func (s *Service) scanEntry(ctx context.Context, snap *graph.Snapshot, t *models.Ticket, station graph.Station) (bool, string) {
	s.maybeExpire(ctx, t)

	if t.Status != models.TicketActive {
		return false, statusMessage(t.Status)
	}
	if station.ID != t.OriginID {
		return false, fmt.Sprintf("invalid entry station: ticket is from %s", s.stationLabel(snap, t.OriginID))
	}

	now := s.now()
	ok, err := s.store.TransitionStatus(ctx, t.ID, models.TicketActive, models.TicketInUse, &now, nil)
	if err != nil {
		log.Printf("❌ [SCAN] transición entry falló para %s: %v", t.TicketID, err)
		return false, "internal error applying entry"
	}
	if !ok {
		// Otro proceso movió el ticket entre la lectura y el CAS.
		return false, "ticket is no longer active"
	}
	t.Status = models.TicketInUse
	t.EntryTime = &now

	if err := s.footfall.RecordEntry(ctx, station.ID, now); err != nil {
		// El pasajero ya pasó el torniquete; no se revierte el scan por un
		// contador. Queda el log para reconciliar.
		log.Printf("⚠️ [FOOTFALL] entry no registrado para estación %d: %v", station.ID, err)
	}
	return true, "entry successful"
}

// scanExit: in_use → used si la estación es el destino. Sin guard de
// expiración: un pasajero dentro del sistema siempre puede salir en su
// destino.
func (s *Service) scanExit(ctx context.Context, snap *graph.Snapshot, t *models.Ticket, station graph.Station) (bool, string) {
	if t.Status != models.TicketInUse {
		return false, statusMessage(t.Status)
	}
	if station.ID != t.DestinationID {
		return false, fmt.Sprintf("invalid exit station: ticket is to %s", s.stationLabel(snap, t.DestinationID))
	}

	now := s.now()
	ok, err := s.store.TransitionStatus(ctx, t.ID, models.TicketInUse, models.TicketUsed, nil, &now)
	if err != nil {
		log.Printf("❌ [SCAN] transición exit falló para %s: %v", t.TicketID, err)
		return false, "internal error applying exit"
	}
	if !ok {
		return false, "ticket is no longer in use"
	}
	t.Status = models.TicketUsed
	t.ExitTime = &now

	if err := s.footfall.RecordExit(ctx, station.ID, now); err != nil {
		log.Printf("⚠️ [FOOTFALL] exit no registrado para estación %d: %v", station.ID, err)
	}
	return true, "exit successful"
}

// maybeExpire aplica la expiración perezosa: si el ticket sigue en active o
// in_use y ya pasó la ventana, lo mueve a expired. Se evalúa en cada intento
// de entrada y en cada lectura de estado; no hay sweeper de fondo.
func (s *Service) maybeExpire(ctx context.Context, t *models.Ticket) {
	if t.Status != models.TicketActive && t.Status != models.TicketInUse {
		return
	}
	if !s.now().After(t.PurchasedAt.Add(s.cfg.Expiry)) {
		return
	}
	ok, err := s.store.TransitionStatus(ctx, t.ID, t.Status, models.TicketExpired, nil, nil)
	if err != nil {
		log.Printf("❌ [SCAN] expiración no aplicada para %s: %v", t.TicketID, err)
		return
	}
	if ok {
		t.Status = models.TicketExpired
	}
}

// RefreshExpiry expone la expiración perezosa para lecturas directas de
// estado (mis tickets, detalle). Serializa igual que un scan.
func (s *Service) RefreshExpiry(ctx context.Context, t *models.Ticket) {
	mu := s.locks.forTicket(t.TicketID)
	mu.Lock()
	defer mu.Unlock()
	s.maybeExpire(ctx, t)
}

func statusMessage(status string) string {
	switch status {
	case models.TicketInUse:
		return "ticket is already in use"
	case models.TicketUsed:
		return "ticket is already used"
	case models.TicketExpired:
		return "ticket has expired"
	default:
		return "ticket is " + status
	}
}

func (s *Service) stationLabel(snap *graph.Snapshot, stationID int64) string {
	if snap != nil {
		if st, ok := snap.Station(stationID); ok {
			return st.Name
		}
	}
	return fmt.Sprintf("station %d", stationID)
}
