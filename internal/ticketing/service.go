package ticketing

import (
	"context"
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/metrogate/internal/graph"
	"github.com/yourorg/metrogate/internal/metrics"
	"github.com/yourorg/metrogate/internal/models"
)

// ============================================================================
// TICKETING SERVICE - CICLO DE VIDA DE TICKETS
// ============================================================================
// Estados: active → in_use → used, con (active|in_use) → expired por reloj.
// Las transiciones de un mismo ticket se serializan con un lock por identidad
// más un compare-and-set en la base de datos: el guard y la escritura son
// atómicos como unidad incluso con varios procesos.

// Errores tipados del servicio. Los guards fallidos NO son errores: son
// resultados (success=false, message) porque son desenlaces operacionales
// esperados que igual deben auditarse.
var (
	ErrTicketNotFound      = errors.New("ticket not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Store es la persistencia que el ciclo de vida necesita.
type Store interface {
	// CreateTicketWithPayment descuenta el saldo del usuario y crea el
	// ticket en una sola transacción. ErrInsufficientBalance si no alcanza.
	CreateTicketWithPayment(ctx context.Context, t *models.Ticket) error

	// CreateOfflineTicket inserta un ticket ya usado junto con sus scans
	// sintéticos de entrada y salida, atómicamente.
	CreateOfflineTicket(ctx context.Context, t *models.Ticket, scans []*models.TicketScan) error

	// TicketByUUID retorna ErrTicketNotFound si no existe.
	TicketByUUID(ctx context.Context, id uuid.UUID) (*models.Ticket, error)

	// TransitionStatus hace el compare-and-set: cambia el estado solo si el
	// actual coincide con from. Retorna false si otro escritor ganó.
	TransitionStatus(ctx context.Context, ticketRow int64, from, to string, entryTime, exitTime *time.Time) (bool, error)

	// AppendScan agrega una fila de auditoría (append-only).
	AppendScan(ctx context.Context, scan *models.TicketScan) error
}

// FootfallRecorder recibe los efectos de scans exitosos.
type FootfallRecorder interface {
	RecordEntry(ctx context.Context, stationID int64, day time.Time) error
	RecordExit(ctx context.Context, stationID int64, day time.Time) error
}

// Config controla expiración y reloj. Now permite inyectar un reloj fijo en
// tests; nil usa time.Now.
type Config struct {
	Expiry time.Duration
	Fare   graph.FareConfig
	Now    func() time.Time
}

// ConfigFromEnv lee TICKET_EXPIRY_HOURS (default 24) y la configuración de
// tarifas.
func ConfigFromEnv() Config {
	hours := 24
	if v := os.Getenv("TICKET_EXPIRY_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			hours = n
		}
	}
	return Config{
		Expiry: time.Duration(hours) * time.Hour,
		Fare:   graph.FareConfigFromEnv(),
	}
}

// Service orquesta compras, scans y expiración de tickets.
type Service struct {
	store    Store
	footfall FootfallRecorder
	cfg      Config
	now      func() time.Time
	locks    lockTable
	onScan   func(models.TicketScan)
}

func NewService(store Store, footfall FootfallRecorder, cfg Config) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, footfall: footfall, cfg: cfg, now: now}
}

// OnScan registra un hook invocado tras cada intento de scan (exitoso o no),
// ya auditado. Usado para el feed en vivo del dashboard.
func (s *Service) OnScan(fn func(models.TicketScan)) {
	s.onScan = fn
}

// FareConfig expone la configuración de tarifas vigente.
func (s *Service) FareConfig() graph.FareConfig {
	return s.cfg.Fare
}

// Purchase crea un ticket pagado: ruta y precio quedan congelados al momento
// de la compra. El descuento de saldo y la creación son atómicos.
func (s *Service) Purchase(ctx context.Context, userID int64, origin, destination graph.Station, path []int64, fare int64) (*models.Ticket, error) {
	t := &models.Ticket{
		TicketID:      uuid.New(),
		UserID:        userID,
		OriginID:      origin.ID,
		DestinationID: destination.ID,
		Price:         fare,
		Status:        models.TicketActive,
		PurchasedAt:   s.now(),
		Path:          path,
	}
	if err := s.store.CreateTicketWithPayment(ctx, t); err != nil {
		return nil, err
	}

	metrics.TicketsPurchased.WithLabelValues("online").Inc()
	metrics.FareRevenue.Add(float64(fare))
	log.Printf("🎫 Ticket %s emitido: %s → %s ($%d)", t.TicketID, origin.Code, destination.Code, fare)
	return t, nil
}

// IssueOffline registra una venta presencial ya completada: el ticket nace
// directamente en estado used con un par de scans sintéticos exitosos. No
// pasa por la tabla de transiciones.
func (s *Service) IssueOffline(ctx context.Context, userID int64, origin, destination graph.Station, path []int64, fare int64, operatorID int64) (*models.Ticket, error) {
	now := s.now()
	t := &models.Ticket{
		TicketID:      uuid.New(),
		UserID:        userID,
		OriginID:      origin.ID,
		DestinationID: destination.ID,
		Price:         fare,
		Status:        models.TicketUsed,
		PurchasedAt:   now,
		EntryTime:     &now,
		ExitTime:      &now,
		Path:          path,
	}
	scans := []*models.TicketScan{
		{
			TicketID:  t.TicketID,
			StationID: origin.ID,
			Kind:      models.ScanEntry,
			ScannedBy: operatorID,
			ScannedAt: now,
			Success:   true,
			Message:   "Offline ticket - entry recorded",
		},
		{
			TicketID:  t.TicketID,
			StationID: destination.ID,
			Kind:      models.ScanExit,
			ScannedBy: operatorID,
			ScannedAt: now,
			Success:   true,
			Message:   "Offline ticket - exit recorded",
		},
	}
	if err := s.store.CreateOfflineTicket(ctx, t, scans); err != nil {
		return nil, err
	}

	metrics.TicketsPurchased.WithLabelValues("offline").Inc()
	metrics.FareRevenue.Add(float64(fare))
	log.Printf("🎫 Ticket offline %s registrado: %s → %s ($%d)", t.TicketID, origin.Code, destination.Code, fare)
	return t, nil
}
