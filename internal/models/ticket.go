package models

import (
	"time"

	"github.com/google/uuid"
)

// Estados del ciclo de vida de un ticket. No existen otros.
const (
	TicketActive  = "active"
	TicketInUse   = "in_use"
	TicketUsed    = "used"
	TicketExpired = "expired"
)

// Tipos de scan registrados en los torniquetes.
const (
	ScanEntry = "entry"
	ScanExit  = "exit"
)

// Ticket es un pasaje comprado: ruta resuelta y precio fijados al momento de
// la compra, estado mutado únicamente por las transiciones del ciclo de vida.
// Nunca se borra; se retiene para auditoría.
type Ticket struct {
	ID            int64      `json:"-"`
	TicketID      uuid.UUID  `json:"ticket_id"`
	UserID        int64      `json:"user_id"`
	OriginID      int64      `json:"origin_id"`
	DestinationID int64      `json:"destination_id"`
	Price         int64      `json:"price"`
	Status        string     `json:"status"`
	PurchasedAt   time.Time  `json:"purchased_at"`
	EntryTime     *time.Time `json:"entry_time,omitempty"`
	ExitTime      *time.Time `json:"exit_time,omitempty"`
	Path          []int64    `json:"path"` // ids de estaciones, resueltos al comprar
}

// TicketScan es un registro de auditoría append-only: se crea en TODO
// intento de scan, exitoso o no.
type TicketScan struct {
	ID        int64     `json:"id"`
	TicketRow int64     `json:"-"`
	TicketID  uuid.UUID `json:"ticket_id"`
	StationID int64     `json:"station_id"`
	Kind      string    `json:"kind"`
	ScannedBy int64     `json:"scanned_by"`
	ScannedAt time.Time `json:"scanned_at"`
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
}

// PurchaseRequest compra un ticket entre dos estaciones (por código).
type PurchaseRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

// OfflineTicketRequest emite un ticket ya usado para un pasajero sin cuenta
// (venta presencial registrada después del hecho).
type OfflineTicketRequest struct {
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	PassengerName string `json:"passenger_name"`
}

// ScanRequest es un intento de scan en torniquete.
type ScanRequest struct {
	TicketID string `json:"ticket_id"`
	Station  string `json:"station"` // código de estación
	Kind     string `json:"kind"`    // entry | exit
}

// ScanResponse reporta el resultado del intento. Un guard fallido no es un
// error HTTP: es un resultado operacional esperado.
type ScanResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// TicketDTO es la representación de un ticket para respuestas, con la ruta
// expandida a estaciones.
type TicketDTO struct {
	TicketID    uuid.UUID    `json:"ticket_id"`
	Origin      StationDTO   `json:"origin"`
	Destination StationDTO   `json:"destination"`
	Price       int64        `json:"price"`
	Status      string       `json:"status"`
	PurchasedAt time.Time    `json:"purchased_at"`
	EntryTime   *time.Time   `json:"entry_time,omitempty"`
	ExitTime    *time.Time   `json:"exit_time,omitempty"`
	Path        []StationDTO `json:"path,omitempty"`
}
